package cache

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rohmanhakim/site-archiver/internal/metadata"
	"github.com/rohmanhakim/site-archiver/internal/record"
	"github.com/rohmanhakim/site-archiver/pkg/failure"
	"github.com/rohmanhakim/site-archiver/pkg/fileutil"
	"github.com/rohmanhakim/site-archiver/pkg/urlutil"
)

/*
Responsibilities
- Persist crawled pages incrementally under a per-session directory
- Keep session.json consistent with the page files on every commit
- Enforce single-writer ownership through a pid lockfile
- Serve snapshot reads to concurrent readers (export, doctor)
- Rebuild orchestrator state when a session is resumed

Output Characteristics
- cache/sessions/<id>/{session.json, lock, pages/page_NNNNNN.json[.gz]}
- Atomic temp-file-and-rename writes, never torn files
- Page indices strictly increasing and gap-free on the write path
*/

const (
	sessionsDirName = "sessions"
	previewsDirName = "previews"
	metadataName    = "session.json"
	pagesDirName    = "pages"

	// resumeHarvestLimit bounds how many trailing pages are re-read for
	// frontier links when a session is resumed.
	resumeHarvestLimit = 100
)

type Store struct {
	root             string
	metadataSink     metadata.MetadataSink
	compress         bool
	compressionLevel int
	now              func() time.Time
}

func NewStore(
	root string,
	metadataSink metadata.MetadataSink,
	compress bool,
	compressionLevel int,
) Store {
	return Store{
		root:             root,
		metadataSink:     metadataSink,
		compress:         compress,
		compressionLevel: compressionLevel,
		now:              time.Now,
	}
}

// NewStoreForTest injects a deterministic clock so session identifiers
// and timestamps are stable under test.
func NewStoreForTest(
	root string,
	metadataSink metadata.MetadataSink,
	compress bool,
	compressionLevel int,
	now func() time.Time,
) Store {
	store := NewStore(root, metadataSink, compress, compressionLevel)
	store.now = now
	return store
}

func (s *Store) sessionsDir() string {
	return filepath.Join(s.root, sessionsDirName)
}

func (s *Store) sessionDir(id string) string {
	return filepath.Join(s.sessionsDir(), id)
}

func (s *Store) previewsDir() string {
	return filepath.Join(s.root, previewsDirName)
}

// NewSessionID builds the canonical session identifier for a seed URL
// and config digest: <host slug>_<YYYYMMDD_HHMMSS>_<digest>.
func NewSessionID(seed url.URL, digest string, at time.Time) string {
	return fmt.Sprintf("%s_%s_%s", urlutil.HostSlug(seed.Host), at.Format("20060102_150405"), digest)
}

// Session is the write handle for one crawl session. Exactly one
// Session exists per directory at a time; the lockfile enforces it.
type Session struct {
	store     *Store
	dir       string
	meta      SessionMetadata
	nextIndex int
	lock      *sessionLock
}

func (sess *Session) ID() string {
	return sess.meta.SessionID
}

func (sess *Session) Metadata() SessionMetadata {
	return sess.meta
}

// CreateSession creates the session directory tree, writes the initial
// metadata with status=active, and takes the writer lock.
func (s *Store) CreateSession(
	seed url.URL,
	digest string,
	excludePatterns []string,
) (*Session, failure.ClassifiedError) {
	createdAt := s.now().UTC()
	id := NewSessionID(seed, digest, createdAt)
	dir := s.sessionDir(id)

	if _, err := os.Stat(filepath.Join(dir, metadataName)); err == nil {
		return nil, s.recordError("Store.CreateSession", &CacheError{
			Message:   fmt.Sprintf("session %s already exists", id),
			Retryable: false,
			Cause:     ErrCauseSessionExists,
			SessionID: id,
		})
	}
	if err := fileutil.EnsureDir(dir, pagesDirName); err != nil {
		return nil, s.recordError("Store.CreateSession", &CacheError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCausePathError,
			SessionID: id,
		})
	}

	lock, lockErr := acquireLock(dir, id)
	if lockErr != nil {
		cacheErr := asCacheError(lockErr, id)
		return nil, s.recordError("Store.CreateSession", cacheErr)
	}

	meta := SessionMetadata{
		SessionID:       id,
		BaseURL:         seed.String(),
		Status:          StatusActive,
		CreatedAt:       createdAt,
		LastModified:    createdAt,
		PagesScraped:    0,
		ConfigHash:      digest,
		ExcludePatterns: append([]string(nil), excludePatterns...),
		CacheSize:       0,
	}
	if err := s.writeMetadata(dir, meta); err != nil {
		lock.release()
		return nil, s.recordError("Store.CreateSession", asCacheError(err, id))
	}
	s.metadataSink.RecordArtifact(
		metadata.ArtifactSessionMetadata,
		filepath.Join(dir, metadataName),
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrSession, id),
			metadata.NewAttr(metadata.AttrURL, meta.BaseURL),
		},
	)
	return &Session{store: s, dir: dir, meta: meta, nextIndex: 0, lock: lock}, nil
}

// AppendPage commits one page record: the page file lands first via an
// atomic rename, then session.json is rewritten to match. A crash
// between the two leaves a count mismatch that doctor reconciles.
func (sess *Session) AppendPage(rec record.PageRecord) failure.ClassifiedError {
	s := sess.store

	raw, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return s.recordError("Session.AppendPage", &CacheError{
			Message:   fmt.Sprintf("marshal page %d: %v", sess.nextIndex, err),
			Retryable: false,
			Cause:     ErrCauseWriteFailure,
			SessionID: sess.meta.SessionID,
		})
	}

	name := pageFileName(sess.nextIndex, s.compress)
	path := filepath.Join(sess.dir, pagesDirName, name)
	gzipLevel := 0
	if s.compress {
		gzipLevel = s.compressionLevel
	}
	if writeErr := fileutil.WriteFileAtomic(path, raw, gzipLevel); writeErr != nil {
		return s.recordError("Session.AppendPage", &CacheError{
			Message:   writeErr.Error(),
			Retryable: false,
			Cause:     ErrCauseWriteFailure,
			SessionID: sess.meta.SessionID,
		})
	}

	sess.nextIndex++
	sess.meta.PagesScraped++
	sess.meta.LastModified = s.now().UTC()
	sess.meta.CacheSize = fileutil.DirSize(sess.dir)
	if metaErr := s.writeMetadata(sess.dir, sess.meta); metaErr != nil {
		return s.recordError("Session.AppendPage", asCacheError(metaErr, sess.meta.SessionID))
	}

	s.metadataSink.RecordArtifact(
		metadata.ArtifactPageRecord,
		path,
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrSession, sess.meta.SessionID),
			metadata.NewAttr(metadata.AttrURL, rec.URL),
			metadata.NewAttr(metadata.AttrCount, strconv.Itoa(sess.meta.PagesScraped)),
		},
	)
	return nil
}

// MarkComplete transitions the session to completed and releases the
// writer lock.
func (sess *Session) MarkComplete() failure.ClassifiedError {
	sess.meta.FailureReason = ""
	return sess.finish(StatusCompleted)
}

// MarkFailed transitions the session to failed, persisting the reason,
// and releases the writer lock. Failed sessions stay resumable.
func (sess *Session) MarkFailed(reason string) failure.ClassifiedError {
	sess.meta.FailureReason = reason
	return sess.finish(StatusFailed)
}

func (sess *Session) finish(target Status) failure.ClassifiedError {
	s := sess.store
	if sess.meta.Status != StatusActive {
		return s.recordError("Session.finish", &CacheError{
			Message:   fmt.Sprintf("cannot transition %s -> %s", sess.meta.Status, target),
			Retryable: false,
			Cause:     ErrCauseInvalidStatus,
			SessionID: sess.meta.SessionID,
		})
	}
	sess.meta.Status = target
	sess.meta.LastModified = s.now().UTC()
	sess.meta.CacheSize = fileutil.DirSize(sess.dir)
	if err := s.writeMetadata(sess.dir, sess.meta); err != nil {
		return s.recordError("Session.finish", asCacheError(err, sess.meta.SessionID))
	}
	sess.lock.release()
	sess.lock = nil
	return nil
}

// Close releases the writer lock without a status transition. Used when
// the caller abandons the handle, e.g. after a dry run.
func (sess *Session) Close() {
	sess.lock.release()
	sess.lock = nil
}

// LoadSession reads a session's metadata and pages under the snapshot
// rule: the page index range is fixed by the metadata read at entry,
// and any page committed afterwards is ignored. Corrupt page files are
// skipped and counted into a partial report instead of failing the
// load.
func (s *Store) LoadSession(id string) (SessionMetadata, []record.PageRecord, LoadReport, failure.ClassifiedError) {
	meta, err := s.readMetadata(id)
	if err != nil {
		return SessionMetadata{}, nil, LoadReport{}, s.recordError("Store.LoadSession", err)
	}

	snapshot := meta.PagesScraped
	indexed, listErr := s.listPageFiles(id)
	if listErr != nil {
		return meta, nil, LoadReport{}, s.recordError("Store.LoadSession", listErr)
	}

	var report LoadReport
	records := make([]record.PageRecord, 0, snapshot)
	for _, pf := range indexed {
		if pf.index >= snapshot {
			continue
		}
		rec, readErr := s.readPage(id, pf.name)
		if readErr != nil {
			report.CorruptPages++
			s.recordError("Store.LoadSession", readErr)
			continue
		}
		records = append(records, rec)
		report.PagesRead++
	}
	report.Partial = report.CorruptPages > 0 || report.PagesRead < snapshot
	return meta, records, report, nil
}

// ListSessions returns metadata for every readable session, newest
// first. Unreadable sessions are skipped and recorded.
func (s *Store) ListSessions() ([]SessionMetadata, failure.ClassifiedError) {
	entries, err := os.ReadDir(s.sessionsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, s.recordError("Store.ListSessions", &CacheError{
			Message:   fmt.Sprintf("read %s: %v", s.sessionsDir(), err),
			Retryable: false,
			Cause:     ErrCauseReadFailure,
		})
	}

	sessions := make([]SessionMetadata, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, readErr := s.readMetadata(entry.Name())
		if readErr != nil {
			s.recordError("Store.ListSessions", readErr)
			continue
		}
		sessions = append(sessions, meta)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	return sessions, nil
}

// DeleteSession removes a session directory and everything under it.
func (s *Store) DeleteSession(id string) failure.ClassifiedError {
	dir := s.sessionDir(id)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return s.recordError("Store.DeleteSession", &CacheError{
			Message:   fmt.Sprintf("session %s", id),
			Retryable: false,
			Cause:     ErrCauseSessionNotFound,
			SessionID: id,
		})
	}
	if err := os.RemoveAll(dir); err != nil {
		return s.recordError("Store.DeleteSession", &CacheError{
			Message:   fmt.Sprintf("remove %s: %v", dir, err),
			Retryable: false,
			Cause:     ErrCauseWriteFailure,
			SessionID: id,
		})
	}
	return nil
}

// MarkComplete transitions a session on disk without a write handle.
// Used by maintenance commands; the orchestrator goes through Session.
func (s *Store) MarkComplete(id string) failure.ClassifiedError {
	return s.transition(id, StatusCompleted, "")
}

// MarkFailed transitions a session on disk without a write handle.
func (s *Store) MarkFailed(id string, reason string) failure.ClassifiedError {
	return s.transition(id, StatusFailed, reason)
}

func (s *Store) transition(id string, target Status, reason string) failure.ClassifiedError {
	meta, err := s.readMetadata(id)
	if err != nil {
		return s.recordError("Store.transition", err)
	}
	if meta.Status != StatusActive {
		return s.recordError("Store.transition", &CacheError{
			Message:   fmt.Sprintf("cannot transition %s -> %s", meta.Status, target),
			Retryable: false,
			Cause:     ErrCauseInvalidStatus,
			SessionID: id,
		})
	}
	meta.Status = target
	meta.FailureReason = reason
	meta.LastModified = s.now().UTC()
	if writeErr := s.writeMetadata(s.sessionDir(id), meta); writeErr != nil {
		return s.recordError("Store.transition", asCacheError(writeErr, id))
	}
	return nil
}

// FindCompatible returns the most recent session whose base URL and
// config digest match the requested crawl. Completed sessions are
// skipped; only active or failed sessions can be resumed.
func (s *Store) FindCompatible(baseURL string, digest string) (SessionMetadata, bool, failure.ClassifiedError) {
	sessions, err := s.ListSessions()
	if err != nil {
		return SessionMetadata{}, false, err
	}
	for _, meta := range sessions {
		if meta.BaseURL != baseURL || meta.ConfigHash != digest {
			continue
		}
		if meta.Status == StatusCompleted {
			continue
		}
		return meta, true, nil
	}
	return SessionMetadata{}, false, nil
}

// Resume re-opens an interrupted session for writing: reacquires the
// lock, flips the status back to active, and rebuilds the state the
// orchestrator lost. Links are re-harvested only from the trailing
// pages; everything older is already represented in the persisted set.
func (s *Store) Resume(id string) (*Session, ResumeState, failure.ClassifiedError) {
	meta, err := s.readMetadata(id)
	if err != nil {
		return nil, ResumeState{}, s.recordError("Store.Resume", err)
	}
	if meta.Status == StatusCompleted {
		return nil, ResumeState{}, s.recordError("Store.Resume", &CacheError{
			Message:   fmt.Sprintf("session %s is completed", id),
			Retryable: false,
			Cause:     ErrCauseSessionCompleted,
			SessionID: id,
		})
	}

	dir := s.sessionDir(id)
	lock, lockErr := acquireLock(dir, id)
	if lockErr != nil {
		return nil, ResumeState{}, s.recordError("Store.Resume", asCacheError(lockErr, id))
	}

	_, records, _, loadErr := s.LoadSession(id)
	if loadErr != nil {
		lock.release()
		return nil, ResumeState{}, loadErr
	}

	state := ResumeState{
		PersistedURLs: make([]string, 0, len(records)),
	}
	for _, rec := range records {
		state.PersistedURLs = append(state.PersistedURLs, rec.URL)
	}
	harvestFrom := len(records) - resumeHarvestLimit
	if harvestFrom < 0 {
		harvestFrom = 0
	}
	for _, rec := range records[harvestFrom:] {
		state.RecentLinks = append(state.RecentLinks, rec.Links...)
	}

	// Gap-free on the write path, so the next index is the highest
	// on-disk index plus one rather than the metadata count.
	nextIndex := 0
	indexed, listErr := s.listPageFiles(id)
	if listErr != nil {
		lock.release()
		return nil, ResumeState{}, s.recordError("Store.Resume", listErr)
	}
	if n := len(indexed); n > 0 {
		nextIndex = indexed[n-1].index + 1
	}

	meta.Status = StatusActive
	meta.FailureReason = ""
	meta.LastModified = s.now().UTC()
	if writeErr := s.writeMetadata(dir, meta); writeErr != nil {
		lock.release()
		return nil, ResumeState{}, s.recordError("Store.Resume", asCacheError(writeErr, id))
	}
	return &Session{store: s, dir: dir, meta: meta, nextIndex: nextIndex, lock: lock}, state, nil
}

// CleanupOldSessions deletes sessions whose last activity is older
// than maxAgeDays. The newest keepCompleted completed sessions are
// exempt regardless of age; active sessions are never touched.
func (s *Store) CleanupOldSessions(maxAgeDays int, keepCompleted int) (CleanupResult, failure.ClassifiedError) {
	sessions, err := s.ListSessions()
	if err != nil {
		return CleanupResult{}, err
	}

	cutoff := s.now().UTC().AddDate(0, 0, -maxAgeDays)
	keptCompleted := 0
	var result CleanupResult
	for _, meta := range sessions {
		if meta.Status == StatusCompleted && keptCompleted < keepCompleted {
			keptCompleted++
			continue
		}
		if meta.Status == StatusActive {
			continue
		}
		if !meta.LastModified.Before(cutoff) {
			continue
		}
		size := fileutil.DirSize(s.sessionDir(meta.SessionID))
		if delErr := s.DeleteSession(meta.SessionID); delErr != nil {
			continue
		}
		result.Removed = append(result.Removed, meta.SessionID)
		result.BytesFreed += size
	}
	return result, nil
}

// Stats aggregates counts and sizes across every readable session.
func (s *Store) Stats() (CacheStats, failure.ClassifiedError) {
	sessions, err := s.ListSessions()
	if err != nil {
		return CacheStats{}, err
	}
	var stats CacheStats
	for _, meta := range sessions {
		stats.TotalSessions++
		stats.TotalPages += meta.PagesScraped
		stats.TotalBytes += fileutil.DirSize(s.sessionDir(meta.SessionID))
		switch meta.Status {
		case StatusActive:
			stats.ActiveSessions++
		case StatusCompleted:
			stats.CompletedSessions++
		case StatusFailed:
			stats.FailedSessions++
		}
	}
	return stats, nil
}

func (s *Store) writeMetadata(dir string, meta SessionMetadata) failure.ClassifiedError {
	raw, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return &CacheError{
			Message:   fmt.Sprintf("marshal metadata: %v", err),
			Retryable: false,
			Cause:     ErrCauseWriteFailure,
			SessionID: meta.SessionID,
		}
	}
	// Metadata is always plain JSON so external tooling can inspect it.
	if writeErr := fileutil.WriteFileAtomic(filepath.Join(dir, metadataName), raw, 0); writeErr != nil {
		return &CacheError{
			Message:   writeErr.Error(),
			Retryable: false,
			Cause:     ErrCauseWriteFailure,
			SessionID: meta.SessionID,
		}
	}
	return nil
}

func (s *Store) readMetadata(id string) (SessionMetadata, *CacheError) {
	path := filepath.Join(s.sessionDir(id), metadataName)
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return SessionMetadata{}, &CacheError{
				Message:   fmt.Sprintf("session %s", id),
				Retryable: false,
				Cause:     ErrCauseSessionNotFound,
				SessionID: id,
			}
		}
		return SessionMetadata{}, &CacheError{
			Message:   fmt.Sprintf("read %s: %v", path, err),
			Retryable: false,
			Cause:     ErrCauseReadFailure,
			SessionID: id,
		}
	}
	var meta SessionMetadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return SessionMetadata{}, &CacheError{
			Message:   fmt.Sprintf("parse %s: %v", path, err),
			Retryable: false,
			Cause:     ErrCauseMetadataCorrupt,
			SessionID: id,
		}
	}
	return meta, nil
}

type pageFile struct {
	index int
	name  string
}

// listPageFiles returns page files sorted by index. Files that do not
// match the page naming scheme are ignored here; doctor reports them.
func (s *Store) listPageFiles(id string) ([]pageFile, *CacheError) {
	dir := filepath.Join(s.sessionDir(id), pagesDirName)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &CacheError{
			Message:   fmt.Sprintf("read %s: %v", dir, err),
			Retryable: false,
			Cause:     ErrCauseReadFailure,
			SessionID: id,
		}
	}
	files := make([]pageFile, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		index, ok := parsePageIndex(entry.Name())
		if !ok {
			continue
		}
		files = append(files, pageFile{index: index, name: entry.Name()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].index < files[j].index })
	return files, nil
}

func (s *Store) readPage(id string, name string) (record.PageRecord, *CacheError) {
	path := filepath.Join(s.sessionDir(id), pagesDirName, name)
	raw, err := fileutil.ReadFileMaybeGzip(path)
	if err != nil {
		return record.PageRecord{}, &CacheError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCausePageCorrupt,
			SessionID: id,
		}
	}
	var rec record.PageRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return record.PageRecord{}, &CacheError{
			Message:   fmt.Sprintf("parse %s: %v", path, err),
			Retryable: false,
			Cause:     ErrCausePageCorrupt,
			SessionID: id,
		}
	}
	return rec, nil
}

func pageFileName(index int, compress bool) string {
	name := fmt.Sprintf("page_%06d.json", index)
	if compress {
		name += ".gz"
	}
	return name
}

// parsePageIndex extracts the numeric index from page_NNNNNN.json or
// page_NNNNNN.json.gz.
func parsePageIndex(name string) (int, bool) {
	rest, ok := strings.CutPrefix(name, "page_")
	if !ok {
		return 0, false
	}
	rest = strings.TrimSuffix(rest, ".gz")
	rest, ok = strings.CutSuffix(rest, ".json")
	if !ok {
		return 0, false
	}
	index, err := strconv.Atoi(rest)
	if err != nil || index < 0 {
		return 0, false
	}
	return index, true
}

func asCacheError(err failure.ClassifiedError, sessionID string) *CacheError {
	if cacheErr, ok := err.(*CacheError); ok {
		if cacheErr.SessionID == "" {
			cacheErr.SessionID = sessionID
		}
		return cacheErr
	}
	return &CacheError{
		Message:   err.Error(),
		Retryable: err.Severity() == failure.SeverityRecoverable,
		Cause:     ErrCauseWriteFailure,
		SessionID: sessionID,
	}
}

func (s *Store) recordError(action string, err *CacheError) *CacheError {
	attrs := []metadata.Attribute{
		metadata.NewAttr(metadata.AttrPath, s.root),
	}
	if err.SessionID != "" {
		attrs = append(attrs, metadata.NewAttr(metadata.AttrSession, err.SessionID))
	}
	s.metadataSink.RecordError(
		time.Now(),
		"cache",
		action,
		mapCacheErrorToMetadataCause(err),
		err.Error(),
		attrs,
	)
	return err
}
