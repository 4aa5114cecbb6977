package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rohmanhakim/site-archiver/pkg/failure"
)

const lockFileName = "lock"

// lockPayload is written into the session lock file so that a later
// process can tell whether the holder is still alive.
type lockPayload struct {
	Owner      string    `json:"owner"`
	PID        int       `json:"pid"`
	AcquiredAt time.Time `json:"acquired_at"`
}

type sessionLock struct {
	path  string
	owner string
}

// acquireLock takes the single-writer lock for a session directory.
// A lock left behind by a dead process is replaced; a lock held by a
// live process fails with ErrCauseSessionLocked.
func acquireLock(sessionDir string, sessionID string) (*sessionLock, failure.ClassifiedError) {
	path := filepath.Join(sessionDir, lockFileName)
	owner := uuid.NewString()
	payload, err := json.Marshal(lockPayload{
		Owner:      owner,
		PID:        os.Getpid(),
		AcquiredAt: time.Now().UTC(),
	})
	if err != nil {
		return nil, &CacheError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCauseWriteFailure,
			SessionID: sessionID,
		}
	}

	for attempt := 0; attempt < 2; attempt++ {
		f, createErr := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if createErr == nil {
			_, writeErr := f.Write(payload)
			closeErr := f.Close()
			if writeErr != nil || closeErr != nil {
				os.Remove(path)
				return nil, &CacheError{
					Message:   fmt.Sprintf("write lock %s: %v", path, writeErr),
					Retryable: false,
					Cause:     ErrCauseWriteFailure,
					SessionID: sessionID,
				}
			}
			return &sessionLock{path: path, owner: owner}, nil
		}
		if !errors.Is(createErr, fs.ErrExist) {
			return nil, &CacheError{
				Message:   fmt.Sprintf("create lock %s: %v", path, createErr),
				Retryable: false,
				Cause:     ErrCauseWriteFailure,
				SessionID: sessionID,
			}
		}
		if lockHolderAlive(path) {
			return nil, &CacheError{
				Message:   fmt.Sprintf("session %s is locked by a live process", sessionID),
				Retryable: false,
				Cause:     ErrCauseSessionLocked,
				SessionID: sessionID,
			}
		}
		// Stale lock from a dead process; clear and retry once.
		os.Remove(path)
	}
	return nil, &CacheError{
		Message:   fmt.Sprintf("session %s lock contention", sessionID),
		Retryable: false,
		Cause:     ErrCauseSessionLocked,
		SessionID: sessionID,
	}
}

func (l *sessionLock) release() {
	if l == nil {
		return
	}
	os.Remove(l.path)
}

// lockHolderAlive reads a lock file and reports whether the recorded
// pid still refers to a running process. Unreadable lock files are
// treated as stale.
func lockHolderAlive(path string) bool {
	raw, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	var payload lockPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return false
	}
	return pidAlive(payload.PID)
}

func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, syscall.Signal(0))
	if err == nil {
		return true
	}
	// EPERM means the process exists but belongs to another user.
	return errors.Is(err, syscall.EPERM)
}
