package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/rohmanhakim/site-archiver/internal/metadata"
	"github.com/rohmanhakim/site-archiver/pkg/failure"
	"github.com/rohmanhakim/site-archiver/pkg/retry"
)

/*
Responsibilities

- Perform HTTP requests
- Apply headers and timeouts
- Handle redirects safely
- Classify responses

Fetch Semantics

- Only successful HTML responses are processed
- Non-HTML content is discarded
- Redirect chains are bounded
- All responses are logged with metadata

The fetcher never parses content; it only returns bytes and metadata.
Redirects are followed up to the limit and the final URL is surfaced;
whether an off-host landing page is kept is the scheduler's call.
*/

const maxRedirects = 10

var errTooManyRedirects = errors.New("stopped after 10 redirects")

type HtmlFetcher struct {
	metadataSink metadata.MetadataSink
	httpClient   *http.Client
	userAgent    string
}

func NewHtmlFetcher(
	metadataSink metadata.MetadataSink,
) HtmlFetcher {
	return HtmlFetcher{
		metadataSink: metadataSink,
	}
}

// Init takes ownership of the client: a cookie jar is attached when the
// client has none, and the redirect policy is bounded. Call once before
// Fetch.
func (h *HtmlFetcher) Init(httpClient *http.Client, userAgent string) {
	if httpClient.Jar == nil {
		// cookiejar.New only errors on bad PublicSuffixList options
		jar, _ := cookiejar.New(nil)
		httpClient.Jar = jar
	}
	httpClient.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return errTooManyRedirects
		}
		return nil
	}
	h.httpClient = httpClient
	h.userAgent = userAgent
}

func (h *HtmlFetcher) Fetch(
	ctx context.Context,
	crawlDepth int,
	fetchUrl url.URL,
	retryParam retry.RetryParam,
) (FetchOutcome, failure.ClassifiedError) {
	callerMethod := "HtmlFetcher.Fetch"
	startTime := time.Now()

	// rateLimited survives across attempts so a 429 that later
	// succeeds (or exhausts) still arms the caller's cooldown
	rateLimited := false

	fetchTask := func() (FetchOutcome, failure.ClassifiedError) {
		outcome, taskErr := h.performFetch(ctx, fetchUrl)
		if taskErr != nil {
			var fetchErr *FetchError
			if errors.As(taskErr, &fetchErr) && fetchErr.Cause == ErrCauseRequestTooMany {
				rateLimited = true
			}
			return FetchOutcome{}, taskErr
		}
		return outcome, nil
	}

	result := retry.Retry(ctx, retryParam, fetchTask)
	outcome := result.Value()
	outcome.meta.rateLimited = rateLimited
	outcome.meta.elapsed = time.Since(startTime)

	var statusCode int
	var contentType string
	if result.IsSuccess() {
		statusCode = outcome.Code()
		contentType = outcome.ContentType()
	}

	h.metadataSink.RecordFetch(
		fetchUrl.String(),
		statusCode,
		outcome.meta.elapsed,
		contentType,
		result.Attempts(),
		crawlDepth,
	)

	if err := result.Err(); err != nil {
		var retryErr *retry.RetryError
		if errors.As(err, &retryErr) {
			h.recordRetryError(callerMethod, fetchUrl, retryErr)
		} else {
			h.recordFetchError(callerMethod, fetchUrl, err)
		}
		return outcome, err
	}

	return outcome, nil
}

func (h *HtmlFetcher) recordFetchError(callerMethod string, fetchUrl url.URL, err failure.ClassifiedError) {
	var fetchError *FetchError
	if errors.As(err, &fetchError) {
		h.metadataSink.RecordError(
			time.Now(),
			"fetcher",
			callerMethod,
			mapFetchErrorToMetadataCause(fetchError),
			err.Error(),
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrURL, fetchUrl.String()),
			},
		)
	}
}

func (h *HtmlFetcher) recordRetryError(callerMethod string, fetchUrl url.URL, retryError *retry.RetryError) {
	h.metadataSink.RecordError(
		time.Now(),
		"fetcher",
		callerMethod,
		metadata.CauseRetryFailure,
		retryError.Error(),
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrMessage, retryError.Message),
			metadata.NewAttr(metadata.AttrURL, fetchUrl.String()),
		},
	)
}

func (h *HtmlFetcher) performFetch(ctx context.Context, fetchUrl url.URL) (FetchOutcome, failure.ClassifiedError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchUrl.String(), nil)
	if err != nil {
		return FetchOutcome{}, &FetchError{
			Message:   fmt.Sprintf("failed to create request: %v", err),
			Retryable: false,
			Cause:     ErrCauseNetworkFailure,
		}
	}

	for key, value := range requestHeaders(h.userAgent) {
		req.Header.Set(key, value)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, errTooManyRedirects) {
			return FetchOutcome{}, &FetchError{
				Message:   fmt.Sprintf("redirect chain exceeded %d hops", maxRedirects),
				Retryable: false,
				Cause:     ErrCauseRedirectLimitExceeded,
			}
		}
		// Network/transport errors are retryable
		return FetchOutcome{}, &FetchError{
			Message:   fmt.Sprintf("request failed: %v", err),
			Retryable: true,
			Cause:     ErrCauseNetworkFailure,
		}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		// Server errors (5xx) are retryable
		return FetchOutcome{}, &FetchError{
			Message:   fmt.Sprintf("server error: %d", resp.StatusCode),
			Retryable: true,
			Cause:     ErrCauseRequest5xx,
		}

	case resp.StatusCode == http.StatusTooManyRequests:
		return FetchOutcome{}, &FetchError{
			Message:   "rate limited (429)",
			Retryable: true,
			Cause:     ErrCauseRequestTooMany,
		}

	case resp.StatusCode == http.StatusRequestTimeout:
		return FetchOutcome{}, &FetchError{
			Message:   "request timeout (408)",
			Retryable: true,
			Cause:     ErrCauseTimeout,
		}

	case resp.StatusCode == http.StatusForbidden:
		return FetchOutcome{}, &FetchError{
			Message:   "access forbidden (403)",
			Retryable: false,
			Cause:     ErrCauseRequestPageForbidden,
		}

	case resp.StatusCode >= 400:
		// Other client errors are not retryable
		return FetchOutcome{}, &FetchError{
			Message:   fmt.Sprintf("client error: %d", resp.StatusCode),
			Retryable: false,
			Cause:     ErrCauseRequestClientError,
		}

	case resp.StatusCode >= 300:
		// The client follows redirects itself; a bare 3xx means the
		// server answered without a usable Location
		return FetchOutcome{}, &FetchError{
			Message:   fmt.Sprintf("redirect error: %d", resp.StatusCode),
			Retryable: false,
			Cause:     ErrCauseRedirectLimitExceeded,
		}
	}

	contentType := resp.Header.Get("Content-Type")
	if !isHTMLContent(contentType) {
		return FetchOutcome{}, &FetchError{
			Message:   fmt.Sprintf("non-HTML content type: %s", contentType),
			Retryable: false,
			Cause:     ErrCauseContentTypeInvalid,
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return FetchOutcome{}, &FetchError{
			Message:   fmt.Sprintf("failed to read response body: %v", err),
			Retryable: true,
			Cause:     ErrCauseReadResponseBodyError,
		}
	}

	responseHeaders := make(map[string]string)
	for key, values := range resp.Header {
		if len(values) > 0 {
			responseHeaders[key] = values[0]
		}
	}

	finalURL := fetchUrl
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = *resp.Request.URL
	}

	return FetchOutcome{
		url:      fetchUrl,
		finalURL: finalURL,
		body:     body,
		meta: ResponseMeta{
			statusCode:          resp.StatusCode,
			contentType:         contentType,
			transferredSizeByte: uint64(len(body)),
			responseHeaders:     responseHeaders,
		},
	}, nil
}

func isHTMLContent(contentType string) bool {
	contentType = strings.ToLower(contentType)
	return strings.Contains(contentType, "text/html") ||
		strings.Contains(contentType, "application/xhtml")
}

// Browser-like headers. Accept-Encoding is left to the transport so
// the client's transparent gzip handling stays on.
func requestHeaders(userAgent string) map[string]string {
	return map[string]string{
		"User-Agent":      userAgent,
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.5",
		"DNT":             "1",
		"Connection":      "keep-alive",
	}
}
