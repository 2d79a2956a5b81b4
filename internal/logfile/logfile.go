// Package logfile owns the bot's activity log on disk. Appends and snapshots
// share one lock so a snapshot never sees a half-written line or a rotation
// in progress.
package logfile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls rotation. Zero values use lumberjack defaults.
type Options struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	// Truncate empties the file on open, matching a fresh log per process run.
	Truncate bool
}

// File is a concurrency-safe append-only log file.
type File struct {
	mu   sync.Mutex
	path string
	w    *lumberjack.Logger
}

// Open prepares the log file at path, creating its directory when needed.
func Open(path string, opts Options) (*File, error) {
	if path == "" {
		return nil, errors.New("log file path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
		}
	}

	if opts.Truncate {
		if err := os.WriteFile(path, nil, 0o644); err != nil {
			return nil, fmt.Errorf("failed to truncate log file: %w", err)
		}
	}

	return &File{
		path: path,
		w: &lumberjack.Logger{
			Filename:   path,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
		},
	}, nil
}

// Path returns the path of the live log file.
func (f *File) Path() string {
	return f.path
}

// Write appends p. lumberjack may rotate inside this call; the lock covers it.
func (f *File) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.w.Write(p)
}

// Snapshot copies the current content of the log into w while holding the
// write lock, and returns the number of bytes copied.
func (f *File) Snapshot(w io.Writer) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	src, err := os.Open(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to open log file: %w", err)
	}
	defer src.Close()

	n, err := io.Copy(w, src)
	if err != nil {
		return n, fmt.Errorf("failed to copy log file: %w", err)
	}
	return n, nil
}

// ReadAll returns the whole log as a string.
func (f *File) ReadAll() (string, error) {
	var b strings.Builder
	if _, err := f.Snapshot(&b); err != nil {
		return "", err
	}
	return b.String(), nil
}

// Rotate forces a rotation under the write lock.
func (f *File) Rotate() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.w.Rotate()
}

// Close closes the underlying file.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.w.Close()
}
