package fetcher

import (
	"context"
	"net/url"

	"github.com/rohmanhakim/site-archiver/pkg/failure"
	"github.com/rohmanhakim/site-archiver/pkg/retry"
)

type Fetcher interface {
	Fetch(
		ctx context.Context,
		crawlDepth int,
		fetchUrl url.URL,
		retryParam retry.RetryParam,
	) (FetchOutcome, failure.ClassifiedError)
}

// AuthenticatedFetcher is a fetch capability for sites behind a login.
// Cookie acquisition is external; implementations pre-attach session
// cookies before delegating to the underlying client.
type AuthenticatedFetcher interface {
	Fetcher
	AttachCookies(siteURL url.URL, cookies []CookieSpec) error
}

// CookieSpec names a cookie to pre-attach for authenticated fetching.
type CookieSpec struct {
	Name  string
	Value string
	Path  string
}
