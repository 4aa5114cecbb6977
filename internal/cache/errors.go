package cache

import (
	"fmt"

	"github.com/rohmanhakim/site-archiver/internal/metadata"
	"github.com/rohmanhakim/site-archiver/pkg/failure"
)

type CacheErrorCause string

const (
	ErrCauseSessionExists    CacheErrorCause = "session already exists"
	ErrCauseSessionNotFound  CacheErrorCause = "session not found"
	ErrCauseSessionLocked    CacheErrorCause = "session locked by another writer"
	ErrCauseMetadataCorrupt  CacheErrorCause = "session metadata unreadable"
	ErrCausePageCorrupt      CacheErrorCause = "page record unreadable"
	ErrCauseInvalidStatus    CacheErrorCause = "invalid status transition"
	ErrCausePathError        CacheErrorCause = "failed to create cache directory"
	ErrCauseWriteFailure     CacheErrorCause = "failed to write cache file"
	ErrCauseReadFailure      CacheErrorCause = "failed to read cache file"
	ErrCausePreviewNotFound  CacheErrorCause = "preview not found"
	ErrCausePreviewCorrupt   CacheErrorCause = "preview unreadable"
	ErrCauseSessionCompleted CacheErrorCause = "session already completed"
)

type CacheError struct {
	Message   string
	Retryable bool
	Cause     CacheErrorCause
	SessionID string
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("cache error: %s: %s", e.Cause, e.Message)
}

func (e *CacheError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

// mapCacheErrorToMetadataCause maps cache-local error semantics
// to the canonical metadata.ErrorCause table.
//
// This mapping is observational only and MUST NOT be used
// to derive control-flow decisions.
func mapCacheErrorToMetadataCause(err *CacheError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCausePathError, ErrCauseWriteFailure, ErrCauseReadFailure,
		ErrCauseMetadataCorrupt, ErrCausePageCorrupt, ErrCausePreviewCorrupt:
		return metadata.CauseStorageFailure
	case ErrCauseSessionExists, ErrCauseSessionLocked, ErrCauseInvalidStatus,
		ErrCauseSessionCompleted:
		return metadata.CauseInvariantViolation
	case ErrCauseSessionNotFound, ErrCausePreviewNotFound:
		return metadata.CauseStorageFailure
	default:
		return metadata.CauseUnknown
	}
}
