package admission

import (
	"fmt"

	"github.com/rohmanhakim/site-archiver/internal/metadata"
	"github.com/rohmanhakim/site-archiver/pkg/failure"
)

type AdmissionErrorCause string

const (
	ErrCauseInvalidExcludePattern AdmissionErrorCause = "invalid exclude pattern"
	ErrCauseInvalidApprovedList   AdmissionErrorCause = "invalid approved list"
)

type AdmissionError struct {
	Message   string
	Retryable bool
	Cause     AdmissionErrorCause
}

func (e *AdmissionError) Error() string {
	return fmt.Sprintf("admission error (%s): %s", e.Cause, e.Message)
}

func (e *AdmissionError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

// mapAdmissionErrorToMetadataCause maps admission-local error semantics
// to the canonical metadata.ErrorCause table.
//
// This mapping is observational only and MUST NOT be used
// to derive control-flow decisions.
func mapAdmissionErrorToMetadataCause(err *AdmissionError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseInvalidExcludePattern, ErrCauseInvalidApprovedList:
		return metadata.CauseInvariantViolation
	default:
		return metadata.CauseUnknown
	}
}
