package robots

import (
	"fmt"

	"github.com/rohmanhakim/site-archiver/internal/metadata"
	"github.com/rohmanhakim/site-archiver/pkg/failure"
)

type RobotsErrorCause string

const (
	ErrCausePreFetchFailure      RobotsErrorCause = "pre-fetch failure"
	ErrCauseHttpFetchFailure     RobotsErrorCause = "http fetch failure"
	ErrCauseHttpTooManyRedirects RobotsErrorCause = "too many redirects"
	ErrCauseHttpTooManyRequests  RobotsErrorCause = "rate limited"
	ErrCauseHttpServerError      RobotsErrorCause = "server error"
	ErrCauseHttpUnexpectedStatus RobotsErrorCause = "unexpected status"
	ErrCauseParseError           RobotsErrorCause = "parse error"
	ErrCauseRepeatedFetchFailure RobotsErrorCause = "repeated fetch failure"
	ErrCauseNotInitialized       RobotsErrorCause = "robot not initialized"
)

type RobotsError struct {
	Message   string
	Retryable bool
	Cause     RobotsErrorCause
}

func (e *RobotsError) Error() string {
	return fmt.Sprintf("robots error (%s): %s", e.Cause, e.Message)
}

func (e *RobotsError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

// mapRobotsErrorToMetadataCause maps robots-local error semantics
// to the canonical metadata.ErrorCause table.
//
// This mapping is observational only and MUST NOT be used
// to derive control-flow decisions.
func mapRobotsErrorToMetadataCause(err *RobotsError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseHttpFetchFailure, ErrCauseHttpServerError,
		ErrCauseHttpTooManyRedirects, ErrCauseHttpUnexpectedStatus,
		ErrCauseRepeatedFetchFailure:
		return metadata.CauseNetworkFailure
	case ErrCauseHttpTooManyRequests:
		return metadata.CausePolicyDisallow
	case ErrCauseParseError:
		return metadata.CauseContentInvalid
	case ErrCauseNotInitialized:
		return metadata.CauseInvariantViolation
	default:
		return metadata.CauseUnknown
	}
}
