package pdfgen

import (
	"fmt"

	"github.com/rohmanhakim/site-archiver/internal/metadata"
	"github.com/rohmanhakim/site-archiver/pkg/failure"
)

type PdfGenErrorCause string

const (
	ErrCauseNoRecords         PdfGenErrorCause = "no records to generate"
	ErrCausePathError         PdfGenErrorCause = "failed to create output directory"
	ErrCauseWriteFailure      PdfGenErrorCause = "failed to write pdf artifact"
	ErrCauseRenderFailure     PdfGenErrorCause = "failed to render pdf content"
	ErrCauseValidationFailure PdfGenErrorCause = "generated pdf failed validation"
)

type PdfGenError struct {
	Message   string
	Retryable bool
	Cause     PdfGenErrorCause
}

func (e *PdfGenError) Error() string {
	return fmt.Sprintf("pdfgen error: %s: %s", e.Cause, e.Message)
}

func (e *PdfGenError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

// mapPdfGenErrorToMetadataCause maps pdfgen-local error semantics to
// the canonical metadata.ErrorCause table.
//
// This mapping is observational only and MUST NOT be used
// to derive control-flow decisions.
func mapPdfGenErrorToMetadataCause(err *PdfGenError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCausePathError, ErrCauseWriteFailure:
		return metadata.CauseStorageFailure
	case ErrCauseNoRecords, ErrCauseRenderFailure:
		return metadata.CauseContentInvalid
	case ErrCauseValidationFailure:
		return metadata.CauseInvariantViolation
	default:
		return metadata.CauseUnknown
	}
}
