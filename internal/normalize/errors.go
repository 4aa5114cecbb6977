package normalize

import (
	"fmt"

	"github.com/rohmanhakim/site-archiver/internal/metadata"
	"github.com/rohmanhakim/site-archiver/pkg/failure"
)

type NormalizationErrorCause string

const (
	// The document does not carry exactly one H1. The sanitizer should
	// have enforced this; normalization re-checks before extracting the
	// title. Non-recoverable.
	ErrCauseBrokenH1Invariant NormalizationErrorCause = "broken H1 invariant"

	// The markdown body is empty after conversion. Empty documents are
	// rejected rather than written. Non-recoverable.
	ErrCauseEmptyContent NormalizationErrorCause = "empty markdown content"

	// The section field could not be derived from the URL path. Section
	// comes mechanically from the first meaningful path segment after
	// stripping the allowed path prefix. Non-recoverable.
	ErrCauseSectionDerivationFailed NormalizationErrorCause = "section derivation failed"

	// The first H1 exists but carries no extractable text. The title
	// always comes from content, never from URL or metadata.
	// Non-recoverable, title is required for indexing.
	ErrCauseTitleExtractionFailed NormalizationErrorCause = "title extraction failed"

	// doc_id or content_hash computation failed, which happens when the
	// configured hash algorithm is unsupported. Both hashes drive change
	// detection and deduplication. Non-recoverable.
	ErrCauseHashComputationFailed NormalizationErrorCause = "hash computation failed"

	// YAML frontmatter serialization failed. The document cannot be
	// written without valid frontmatter. Non-recoverable.
	ErrCauseFrontmatterMarshalFailed NormalizationErrorCause = "frontmatter marshal failed"

	// Heading levels skip downward, e.g. H1 directly to H3 without an
	// H2. Levels may only deepen one step at a time. Non-recoverable.
	ErrCauseSkippedHeadingLevels NormalizationErrorCause = "skipped heading levels"

	// Content appears before the first H1, so it belongs to no section
	// of the H1-rooted document. Non-recoverable.
	ErrCauseOrphanContent NormalizationErrorCause = "orphan content outside root hierarchy"

	// A heading has no content before the next heading of the same or
	// higher level. Non-recoverable.
	ErrCauseEmptySection NormalizationErrorCause = "empty section"

	// A heading sits inside a fenced code block, table or other atomic
	// block, which must never be split. Non-recoverable.
	ErrCauseBrokenAtomicBlock NormalizationErrorCause = "broken atomic block"
)

type NormalizationError struct {
	Message   string
	Retryable bool
	Cause     NormalizationErrorCause
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalization error: %s", e.Cause)
}

func (e *NormalizationError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

// mapNormalizationErrorToMetadataCause maps normalize-local error semantics
// to the canonical metadata.ErrorCause table.
//
// This mapping is observational only and MUST NOT be used
// to derive control-flow decisions.
func mapNormalizationErrorToMetadataCause(err NormalizationError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseBrokenH1Invariant,
		ErrCauseSkippedHeadingLevels,
		ErrCauseOrphanContent,
		ErrCauseEmptySection,
		ErrCauseBrokenAtomicBlock,
		ErrCauseSectionDerivationFailed,
		ErrCauseTitleExtractionFailed,
		ErrCauseHashComputationFailed,
		ErrCauseFrontmatterMarshalFailed:
		return metadata.CauseInvariantViolation
	case ErrCauseEmptyContent:
		return metadata.CauseContentInvalid
	default:
		return metadata.CauseUnknown
	}
}
