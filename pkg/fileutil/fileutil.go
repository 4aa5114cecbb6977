package fileutil

import (
	"compress/gzip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rohmanhakim/site-archiver/pkg/failure"
)

// GetFileExtension extracts the file extension from a path, or empty string if none
func GetFileExtension(path string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		return ""
	}
	// Remove the leading dot
	return strings.TrimPrefix(ext, ".")
}

// EnsureDir check if a given directory plus the following path exist, then create one if not
func EnsureDir(dir string, path ...string) failure.ClassifiedError {
	targetPath := []string{dir}
	targetPath = append(targetPath, path...)

	assetsDir := filepath.Join(targetPath...)
	if err := os.MkdirAll(assetsDir, 0755); err != nil {
		return &FileError{
			Message:   fmt.Sprintf("%v", err),
			Retryable: false,
			Cause:     ErrCausePathError,
		}
	}
	return nil
}

// WriteFileAtomic writes data to path via a temp file in the same
// directory, fsyncs it, and renames it into place. Readers observe either
// the previous content or the full new content, never a torn write.
// When gzipLevel > 0 the payload is gzip-compressed first; callers signal
// compression to readers through a ".gz" suffix on path.
func WriteFileAtomic(path string, data []byte, gzipLevel int) failure.ClassifiedError {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return &FileError{
			Message:   fmt.Sprintf("create temp in %s: %v", dir, err),
			Retryable: false,
			Cause:     ErrCauseWriteError,
		}
	}
	tmpName := tmp.Name()

	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	if gzipLevel > 0 {
		zw, zerr := gzip.NewWriterLevel(tmp, gzipLevel)
		if zerr != nil {
			cleanup()
			return &FileError{
				Message:   fmt.Sprintf("gzip level %d: %v", gzipLevel, zerr),
				Retryable: false,
				Cause:     ErrCauseWriteError,
			}
		}
		if _, err = zw.Write(data); err == nil {
			err = zw.Close()
		}
	} else {
		_, err = tmp.Write(data)
	}
	if err != nil {
		cleanup()
		return &FileError{
			Message:   fmt.Sprintf("write %s: %v", tmpName, err),
			Retryable: false,
			Cause:     ErrCauseWriteError,
		}
	}

	if err = tmp.Sync(); err != nil {
		cleanup()
		return &FileError{
			Message:   fmt.Sprintf("fsync %s: %v", tmpName, err),
			Retryable: false,
			Cause:     ErrCauseWriteError,
		}
	}
	if err = tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &FileError{
			Message:   fmt.Sprintf("close %s: %v", tmpName, err),
			Retryable: false,
			Cause:     ErrCauseWriteError,
		}
	}

	if err = os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return &FileError{
			Message:   fmt.Sprintf("rename %s -> %s: %v", tmpName, path, err),
			Retryable: false,
			Cause:     ErrCauseRenameError,
		}
	}
	return nil
}

// ReadFileMaybeGzip reads path, transparently decompressing when the
// filename carries a ".gz" suffix.
func ReadFileMaybeGzip(path string) ([]byte, failure.ClassifiedError) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &FileError{
			Message:   fmt.Sprintf("open %s: %v", path, err),
			Retryable: false,
			Cause:     ErrCauseReadError,
		}
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		zr, zerr := gzip.NewReader(f)
		if zerr != nil {
			return nil, &FileError{
				Message:   fmt.Sprintf("gzip open %s: %v", path, zerr),
				Retryable: false,
				Cause:     ErrCauseReadError,
			}
		}
		defer zr.Close()
		r = zr
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &FileError{
			Message:   fmt.Sprintf("read %s: %v", path, err),
			Retryable: false,
			Cause:     ErrCauseReadError,
		}
	}
	return data, nil
}

// DirSize walks dir and sums regular file sizes in bytes. Missing
// directories count as empty rather than failing: callers use this for
// reporting, not enforcement.
func DirSize(dir string) int64 {
	var total int64
	_ = filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.Type().IsRegular() {
			if info, ierr := d.Info(); ierr == nil {
				total += info.Size()
			}
		}
		return nil
	})
	return total
}
