package fetcher

import (
	"net/url"
	"time"
)

// HTTP boundary

// FetchOutcome carries the bytes and response metadata of one page
// fetch. finalURL differs from url when the server redirected; the
// scheduler re-checks the final host against scope before the record
// is kept.
type FetchOutcome struct {
	url      url.URL
	finalURL url.URL
	body     []byte
	meta     ResponseMeta
}

func (f *FetchOutcome) URL() url.URL {
	return f.url
}

func (f *FetchOutcome) FinalURL() url.URL {
	return f.finalURL
}

func (f *FetchOutcome) Body() []byte {
	return f.body
}

func (f *FetchOutcome) Code() int {
	return f.meta.statusCode
}

func (f *FetchOutcome) ContentType() string {
	return f.meta.contentType
}

func (f *FetchOutcome) SizeByte() uint64 {
	return f.meta.transferredSizeByte
}

func (f *FetchOutcome) Headers() map[string]string {
	return f.meta.responseHeaders
}

func (f *FetchOutcome) Elapsed() time.Duration {
	return f.meta.elapsed
}

// RateLimited reports whether any attempt for this fetch hit a 429,
// including attempts that later succeeded. Populated on failed
// outcomes too, so the caller can arm its cooldown either way.
func (f *FetchOutcome) RateLimited() bool {
	return f.meta.rateLimited
}

type ResponseMeta struct {
	statusCode          int
	contentType         string
	transferredSizeByte uint64
	responseHeaders     map[string]string
	elapsed             time.Duration
	rateLimited         bool
}

// NewFetchOutcomeForTest creates a FetchOutcome for testing purposes.
// This allows test packages to construct FetchOutcome values without
// accessing unexported fields directly.
func NewFetchOutcomeForTest(
	fetchUrl url.URL,
	finalURL url.URL,
	body []byte,
	statusCode int,
	contentType string,
	elapsed time.Duration,
	responseHeaders map[string]string,
) FetchOutcome {
	return FetchOutcome{
		url:      fetchUrl,
		finalURL: finalURL,
		body:     body,
		meta: ResponseMeta{
			statusCode:          statusCode,
			contentType:         contentType,
			transferredSizeByte: uint64(len(body)),
			responseHeaders:     responseHeaders,
			elapsed:             elapsed,
		},
	}
}
