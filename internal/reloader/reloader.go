// Package reloader provides modification-time based change detection over a
// single file.
package reloader

import (
	"log/slog"
	"os"
	"sync"
	"time"
)

// FileReloader detects changes to one file by comparing modification times.
//
// Check returns the new content together with a commit function. The caller
// commits only after successfully consuming the content; commit is a
// compare-and-swap against the modification time observed at Check time, so
// a concurrent reloader that already committed a newer state wins and the
// late commit is a no-op. The file read itself happens outside the lock.
type FileReloader struct {
	path string

	mu           sync.Mutex
	lastModified time.Time
}

// New creates a FileReloader for the given path. The file does not need to
// exist yet; Check logs and yields nothing until it appears.
func New(path string) *FileReloader {
	return &FileReloader{path: path}
}

// Path returns the watched file path.
func (r *FileReloader) Path() string {
	return r.path
}

// Check stats the file and, if it changed since the last committed read,
// returns its content and a commit function. An unchanged or missing file
// returns (nil, nil, nil); prior cached state stays intact in that case.
func (r *FileReloader) Check() (content []byte, commit func(), err error) {
	info, err := os.Stat(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Warn("Watched file does not exist", "path", r.path)
			return nil, nil, nil
		}
		return nil, nil, err
	}
	modTime := info.ModTime()

	r.mu.Lock()
	observed := r.lastModified
	r.mu.Unlock()

	if !modTime.After(observed) {
		return nil, nil, nil
	}

	content, err = os.ReadFile(r.path)
	if err != nil {
		return nil, nil, err
	}

	commit = func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		// CAS: only the reader that observed the previous state commits.
		if r.lastModified.Equal(observed) {
			r.lastModified = modTime
		}
	}
	return content, commit, nil
}
