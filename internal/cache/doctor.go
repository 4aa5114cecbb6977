package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rohmanhakim/site-archiver/pkg/failure"
	"github.com/rohmanhakim/site-archiver/pkg/fileutil"
)

type IssueKind string

const (
	IssueOrphanPages        IssueKind = "orphan_pages"
	IssueUnreadableMetadata IssueKind = "unreadable_metadata"
	IssueMissingField       IssueKind = "missing_field"
	IssueCorruptPage        IssueKind = "corrupt_page"
	IssueCountMismatch      IssueKind = "count_mismatch"
	IssueStaleActive        IssueKind = "stale_active"
	IssueStaleLock          IssueKind = "stale_lock"
)

type Issue struct {
	Kind   IssueKind
	Detail string
}

// SessionDiagnosis is the per-session outcome of a doctor pass.
// EffectiveStatus is the doctor's view of the session and may report
// StatusPartial, which is never persisted.
type SessionDiagnosis struct {
	SessionID       string
	EffectiveStatus Status
	Issues          []Issue
	Fixed           []string
}

type DoctorParam struct {
	Fix        bool
	DryRun     bool
	StaleAfter time.Duration
}

func DefaultDoctorParam() DoctorParam {
	return DoctorParam{
		Fix:        false,
		DryRun:     false,
		StaleAfter: 24 * time.Hour,
	}
}

// Doctor scans every session directory for integrity problems. With
// Fix set (and DryRun unset) it removes corrupt page files, reconciles
// metadata counts, clears stale locks, and re-statuses stale active
// sessions to failed. The pass is idempotent: a second run over a
// fixed tree reports no issues.
func (s *Store) Doctor(param DoctorParam) ([]SessionDiagnosis, failure.ClassifiedError) {
	entries, err := os.ReadDir(s.sessionsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, s.recordError("Store.Doctor", &CacheError{
			Message:   fmt.Sprintf("read %s: %v", s.sessionsDir(), err),
			Retryable: false,
			Cause:     ErrCauseReadFailure,
		})
	}

	mutate := param.Fix && !param.DryRun
	diagnoses := make([]SessionDiagnosis, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		diagnoses = append(diagnoses, s.diagnoseSession(entry.Name(), param.StaleAfter, mutate))
	}
	return diagnoses, nil
}

func (s *Store) diagnoseSession(id string, staleAfter time.Duration, mutate bool) SessionDiagnosis {
	diag := SessionDiagnosis{SessionID: id}
	dir := s.sessionDir(id)

	meta, metaErr := s.readMetadata(id)
	if metaErr != nil {
		kind := IssueUnreadableMetadata
		if metaErr.Cause == ErrCauseSessionNotFound {
			kind = IssueOrphanPages
		}
		diag.Issues = append(diag.Issues, Issue{Kind: kind, Detail: metaErr.Message})
		diag.EffectiveStatus = StatusPartial
		return diag
	}
	diag.EffectiveStatus = meta.Status

	for _, field := range missingMetadataFields(meta) {
		diag.Issues = append(diag.Issues, Issue{
			Kind:   IssueMissingField,
			Detail: field,
		})
	}

	// Page scan: unreadable files are corrupt, readable count feeds the
	// count reconciliation below.
	indexed, listErr := s.listPageFiles(id)
	if listErr != nil {
		diag.Issues = append(diag.Issues, Issue{Kind: IssueCorruptPage, Detail: listErr.Message})
		return diag
	}
	readable := 0
	metaDirty := false
	for _, pf := range indexed {
		if _, readErr := s.readPage(id, pf.name); readErr != nil {
			diag.Issues = append(diag.Issues, Issue{
				Kind:   IssueCorruptPage,
				Detail: pf.name,
			})
			if mutate {
				path := filepath.Join(dir, pagesDirName, pf.name)
				if rmErr := os.Remove(path); rmErr == nil {
					diag.Fixed = append(diag.Fixed, fmt.Sprintf("removed %s", pf.name))
				}
			}
			continue
		}
		readable++
	}

	if readable != meta.PagesScraped {
		diag.Issues = append(diag.Issues, Issue{
			Kind:   IssueCountMismatch,
			Detail: fmt.Sprintf("metadata says %d pages, %d readable", meta.PagesScraped, readable),
		})
		diag.EffectiveStatus = StatusPartial
		if mutate {
			meta.PagesScraped = readable
			metaDirty = true
			diag.Fixed = append(diag.Fixed, fmt.Sprintf("reconciled page count to %d", readable))
		}
	}

	if meta.Status == StatusActive && s.now().UTC().Sub(meta.LastModified) > staleAfter {
		diag.Issues = append(diag.Issues, Issue{
			Kind:   IssueStaleActive,
			Detail: fmt.Sprintf("last modified %s", meta.LastModified.Format(time.RFC3339)),
		})
		if mutate {
			meta.Status = StatusFailed
			metaDirty = true
			diag.Fixed = append(diag.Fixed, "stale active session marked failed")
		}
	}

	lockPath := filepath.Join(dir, lockFileName)
	if _, statErr := os.Stat(lockPath); statErr == nil && !lockHolderAlive(lockPath) {
		diag.Issues = append(diag.Issues, Issue{Kind: IssueStaleLock, Detail: lockFileName})
		if mutate {
			if rmErr := os.Remove(lockPath); rmErr == nil {
				diag.Fixed = append(diag.Fixed, "removed stale lock")
			}
		}
	}

	if metaDirty {
		meta.LastModified = s.now().UTC()
		meta.CacheSize = fileutil.DirSize(dir)
		if writeErr := s.writeMetadata(dir, meta); writeErr != nil {
			s.recordError("Store.Doctor", asCacheError(writeErr, id))
		}
	}
	return diag
}

func missingMetadataFields(meta SessionMetadata) []string {
	var missing []string
	if meta.SessionID == "" {
		missing = append(missing, "session_id")
	}
	if meta.BaseURL == "" {
		missing = append(missing, "base_url")
	}
	if meta.Status == "" {
		missing = append(missing, "status")
	}
	if meta.CreatedAt.IsZero() {
		missing = append(missing, "created_at")
	}
	if meta.ConfigHash == "" {
		missing = append(missing, "config_hash")
	}
	return missing
}
