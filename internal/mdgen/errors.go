package mdgen

import (
	"fmt"

	"github.com/rohmanhakim/site-archiver/internal/metadata"
	"github.com/rohmanhakim/site-archiver/pkg/failure"
)

type MarkdownGenErrorCause string

const (
	ErrCauseNoRecords    MarkdownGenErrorCause = "no records to generate"
	ErrCausePathError    MarkdownGenErrorCause = "failed to create output directory"
	ErrCauseWriteFailure MarkdownGenErrorCause = "failed to write markdown artifact"
)

type MarkdownGenError struct {
	Message   string
	Retryable bool
	Cause     MarkdownGenErrorCause
}

func (e *MarkdownGenError) Error() string {
	return fmt.Sprintf("mdgen error: %s: %s", e.Cause, e.Message)
}

func (e *MarkdownGenError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

// mapMarkdownGenErrorToMetadataCause maps mdgen-local error semantics
// to the canonical metadata.ErrorCause table.
//
// This mapping is observational only and MUST NOT be used
// to derive control-flow decisions.
func mapMarkdownGenErrorToMetadataCause(err *MarkdownGenError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCausePathError, ErrCauseWriteFailure:
		return metadata.CauseStorageFailure
	case ErrCauseNoRecords:
		return metadata.CauseContentInvalid
	default:
		return metadata.CauseUnknown
	}
}
