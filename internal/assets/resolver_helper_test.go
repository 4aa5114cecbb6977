package assets_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/rohmanhakim/site-archiver/internal/assets"
	"github.com/rohmanhakim/site-archiver/internal/mdconvert"
	"github.com/rohmanhakim/site-archiver/internal/metadata"
	"github.com/rohmanhakim/site-archiver/pkg/retry"
	"github.com/rohmanhakim/site-archiver/pkg/timeutil"
)

type fetchEvent struct {
	url        string
	httpStatus int
	duration   time.Duration
	retryCount int
}

type errorEvent struct {
	observedAt  time.Time
	packageName string
	action      string
	cause       metadata.ErrorCause
	details     string
	attrs       []metadata.Attribute
}

type artifactEvent struct {
	kind  metadata.ArtifactKind
	path  string
	attrs []metadata.Attribute
}

// assetSinkSpy captures the metadata trail the resolver emits per asset.
type assetSinkSpy struct {
	fetches   []fetchEvent
	errors    []errorEvent
	artifacts []artifactEvent
}

func (s *assetSinkSpy) RecordError(
	observedAt time.Time,
	packageName string,
	action string,
	cause metadata.ErrorCause,
	details string,
	attrs []metadata.Attribute,
) {
	s.errors = append(s.errors, errorEvent{
		observedAt:  observedAt,
		packageName: packageName,
		action:      action,
		cause:       cause,
		details:     details,
		attrs:       attrs,
	})
}

func (s *assetSinkSpy) RecordFetch(
	fetchUrl string,
	httpStatus int,
	duration time.Duration,
	contentType string,
	retryCount int,
	crawlDepth int,
) {
}

func (s *assetSinkSpy) RecordAssetFetch(
	fetchUrl string,
	httpStatus int,
	duration time.Duration,
	retryCount int,
) {
	s.fetches = append(s.fetches, fetchEvent{
		url:        fetchUrl,
		httpStatus: httpStatus,
		duration:   duration,
		retryCount: retryCount,
	})
}

func (s *assetSinkSpy) RecordArtifact(kind metadata.ArtifactKind, path string, attrs []metadata.Attribute) {
	s.artifacts = append(s.artifacts, artifactEvent{kind: kind, path: path, attrs: attrs})
}

func (s *assetSinkSpy) reset() {
	s.fetches = nil
	s.errors = nil
	s.artifacts = nil
}

// attrsByKey flattens an attribute slice for lookup by key name.
func attrsByKey(attrs []metadata.Attribute) map[string]string {
	out := make(map[string]string, len(attrs))
	for _, attr := range attrs {
		out[string(attr.Key)] = attr.Value
	}
	return out
}

func contentDigest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// localAssetPath rebuilds the on-disk path the resolver derives:
// assets/images/<basename>-<7-char digest prefix>.<ext>.
func localAssetPath(baseName string, data []byte, ext string) string {
	return fmt.Sprintf("assets/images/%s-%s.%s", baseName, contentDigest(data)[:7], ext)
}

// imageServer serves the given body for every request, or a 404 when
// body is nil.
func imageServer(t *testing.T, body []byte) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if body == nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write(body)
	}))
	t.Cleanup(server.Close)
	return server
}

func fastRetry() retry.RetryParam {
	return retry.NewRetryParam(
		10*time.Millisecond,
		5*time.Millisecond,
		42,
		2,
		timeutil.NewBackoffParam(10*time.Millisecond, 2.0, 100*time.Millisecond),
	)
}

func newResolverUnderTest(spy *assetSinkSpy) assets.LocalResolver {
	return assets.NewLocalResolver(
		spy,
		&http.Client{Timeout: 5 * time.Second},
		"site-archiver-test",
	)
}

// resolvePage runs Resolve against a markdown body carrying image refs,
// with the archive's standard 10 MiB asset cap.
func resolvePage(
	t *testing.T,
	resolver *assets.LocalResolver,
	pageURL string,
	markdown string,
	refs []mdconvert.LinkRef,
	outputDir string,
	host string,
	scheme string,
) (assets.AssetfulMarkdownDoc, error) {
	t.Helper()
	parsed, err := url.Parse(pageURL)
	if err != nil {
		t.Fatalf("bad page url %s: %v", pageURL, err)
	}
	conversion := mdconvert.NewConversionResult([]byte(markdown), refs)
	param := assets.NewResolveParam(outputDir, 10*1024*1024)
	return resolver.Resolve(context.Background(), *parsed, host, scheme, conversion, param, fastRetry())
}
