package assembler

import (
	"fmt"

	"github.com/rohmanhakim/site-archiver/internal/metadata"
	"github.com/rohmanhakim/site-archiver/pkg/failure"
)

type AssemblerErrorCause string

const (
	ErrCauseUnknownFormat    AssemblerErrorCause = "unknown output format"
	ErrCauseNoRecords        AssemblerErrorCause = "no records to assemble"
	ErrCauseInvalidChunkSpec AssemblerErrorCause = "invalid chunk specification"
	ErrCauseChunkWriteFailed AssemblerErrorCause = "chunk write failed"
	ErrCauseIndexWriteFailed AssemblerErrorCause = "index write failed"
)

type AssemblerError struct {
	Message   string
	Retryable bool
	Cause     AssemblerErrorCause
}

func (e *AssemblerError) Error() string {
	return fmt.Sprintf("assembler error: %s: %s", e.Cause, e.Message)
}

func (e *AssemblerError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

// mapAssemblerErrorToMetadataCause maps assembler-local error semantics
// to the canonical metadata.ErrorCause table.
//
// This mapping is observational only and MUST NOT be used
// to derive control-flow decisions.
func mapAssemblerErrorToMetadataCause(err *AssemblerError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseChunkWriteFailed, ErrCauseIndexWriteFailed:
		return metadata.CauseStorageFailure
	case ErrCauseUnknownFormat, ErrCauseInvalidChunkSpec:
		return metadata.CauseInvariantViolation
	case ErrCauseNoRecords:
		return metadata.CauseContentInvalid
	default:
		return metadata.CauseUnknown
	}
}
