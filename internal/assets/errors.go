package assets

import (
	"fmt"

	"github.com/rohmanhakim/site-archiver/internal/metadata"
	"github.com/rohmanhakim/site-archiver/pkg/failure"
)

type AssetsErrorCause string

const (
	ErrCauseNetworkFailure        AssetsErrorCause = "network failure"
	ErrCauseReadResponseBodyError AssetsErrorCause = "failed to read response body"
	ErrCauseRequest5xx            AssetsErrorCause = "request failed with 5xx"
	ErrCauseRequestTooMany        AssetsErrorCause = "request failed with 429"
	ErrCauseRequestPageForbidden  AssetsErrorCause = "request rejected"
	ErrCauseRedirectLimitExceeded AssetsErrorCause = "redirect limit exceeded"
	ErrCauseNotAnImage            AssetsErrorCause = "response is not an image"
	ErrCauseAssetTooLarge         AssetsErrorCause = "asset too large"
	ErrCauseHashError             AssetsErrorCause = "failed to hash asset"
	ErrCausePathError             AssetsErrorCause = "failed to create asset directory"
	ErrCauseWriteFailure          AssetsErrorCause = "failed to write asset"
	ErrCauseDiskFull              AssetsErrorCause = "disk full"
)

type AssetsError struct {
	Message   string
	Retryable bool
	Cause     AssetsErrorCause
}

func (e *AssetsError) Error() string {
	return fmt.Sprintf("assets error: %s", e.Cause)
}

func (e *AssetsError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

// mapAssetsErrorToMetadataCause maps assets-local error semantics
// to the canonical metadata.ErrorCause table.
//
// This mapping is observational only and MUST NOT be used
// to derive control-flow decisions.
func mapAssetsErrorToMetadataCause(err AssetsError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseNetworkFailure, ErrCauseReadResponseBodyError, ErrCauseRequest5xx,
		ErrCauseRequestTooMany, ErrCauseRequestPageForbidden, ErrCauseRedirectLimitExceeded:
		return metadata.CauseNetworkFailure
	case ErrCauseNotAnImage, ErrCauseAssetTooLarge, ErrCauseHashError:
		return metadata.CauseContentInvalid
	case ErrCausePathError, ErrCauseWriteFailure, ErrCauseDiskFull:
		return metadata.CauseStorageFailure
	default:
		return metadata.CauseUnknown
	}
}
