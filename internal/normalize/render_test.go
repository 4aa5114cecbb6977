package normalize_test

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/rohmanhakim/site-archiver/internal/assets"
	"github.com/rohmanhakim/site-archiver/internal/normalize"
	"github.com/rohmanhakim/site-archiver/pkg/hashutil"
)

func TestRender_FrontmatterBlock(t *testing.T) {
	metadataSink := &metadataSinkMock{}
	constraint := normalize.NewMarkdownConstraint(metadataSink)

	fetchURL, _ := url.Parse("https://example.com/docs/page")
	content := loadFixture(t, "pass/success.md")

	assetfulDoc := assets.NewAssetfulMarkdownDoc(content, nil, nil, nil)
	normalizeParam := normalize.NewNormalizeParam("v1.0.0", time.Now(), hashutil.HashAlgoSHA256, 1, nil)

	result, err := constraint.Normalize(*fetchURL, assetfulDoc, normalizeParam)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	rendered, renderErr := result.Render()
	if renderErr != nil {
		t.Fatalf("expected render to succeed, got: %v", renderErr)
	}

	text := string(rendered)
	if !strings.HasPrefix(text, "---\n") {
		t.Error("expected rendered document to open with a frontmatter fence")
	}
	for _, want := range []string{
		"title: Getting Started",
		"source_url: https://example.com/docs/page",
		"doc_id: sha256:",
		"content_hash: sha256:",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("expected rendered frontmatter to contain %q", want)
		}
	}
	if !strings.HasSuffix(text, string(content)) {
		t.Error("expected content to follow the frontmatter unchanged")
	}
}
