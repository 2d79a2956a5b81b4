// Package logship periodically copies the activity log to object storage and
// records every upload in a local CSV ledger.
package logship

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/i474232898/snow-report/internal/logger"
	"github.com/i474232898/snow-report/internal/objectstore"
)

const (
	objectTimeLayout = "02-01-2006-15.04.05"
	ledgerTimeLayout = "02/01/2006 15:04:05"
	contentType      = "text/plain; charset=utf-8"
)

// ErrNoUploads is returned when the ledger has no entries yet.
var ErrNoUploads = errors.New("no log uploads recorded")

// Source is a log that can be copied consistently while it is being written.
type Source interface {
	Path() string
	Snapshot(w io.Writer) (int64, error)
}

// Upload is one ledger row.
type Upload struct {
	At   time.Time
	Key  string
	ID   string
	Size int64
}

// ObjectName returns the key a snapshot taken at t is stored under,
// e.g. 17-01-2021-09.41.12_discord.log.
func ObjectName(t time.Time, base string) string {
	return t.Format(objectTimeLayout) + "_" + base
}

// Shipper uploads snapshots of a log file.
type Shipper struct {
	source     Source
	store      objectstore.Store
	ledgerPath string
	log        logger.Logger

	now   func() time.Time
	newID func() string

	// mu serializes Ship so ledger rows are appended in upload order.
	mu sync.Mutex
}

// New creates a Shipper writing its ledger to ledgerPath.
func New(source Source, store objectstore.Store, ledgerPath string, log logger.Logger) *Shipper {
	return &Shipper{
		source:     source,
		store:      store,
		ledgerPath: ledgerPath,
		log:        log.WithField("component", "log_shipper"),
		now:        time.Now,
		newID:      func() string { return uuid.NewString() },
	}
}

// Ship snapshots the log, uploads it and appends a ledger row. The ledger is
// only written after the upload succeeded.
func (s *Shipper) Ship(ctx context.Context) (Upload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var buf bytes.Buffer
	size, err := s.source.Snapshot(&buf)
	if err != nil {
		return Upload{}, fmt.Errorf("failed to snapshot log: %w", err)
	}

	at := s.now()
	up := Upload{
		At:   at,
		Key:  ObjectName(at, filepath.Base(s.source.Path())),
		ID:   s.newID(),
		Size: size,
	}

	s.log.Debugf("-----------Sending log %s to object storage-----------", up.Key)
	if err := s.store.Upload(ctx, up.Key, &buf, size, contentType); err != nil {
		return Upload{}, fmt.Errorf("failed to upload log %s: %w", up.Key, err)
	}

	if err := appendLedger(s.ledgerPath, up); err != nil {
		return Upload{}, err
	}

	s.log.WithFields(map[string]interface{}{"key": up.Key, "bytes": size}).Info("log uploaded")
	return up, nil
}

func appendLedger(path string, up Upload) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create ledger directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open ledger: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{up.At.Format(ledgerTimeLayout), up.Key, up.ID}); err != nil {
		return fmt.Errorf("failed to write ledger: %w", err)
	}
	w.Flush()
	return w.Error()
}

// ReadLedger returns every recorded upload, oldest first. Rows written before
// upload ids existed carry an empty ID.
func ReadLedger(path string) ([]Upload, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}

	uploads := make([]Upload, 0, len(rows))
	for i, row := range rows {
		if len(row) < 2 {
			return nil, fmt.Errorf("ledger row %d: expected at least 2 fields, got %d", i+1, len(row))
		}
		at, err := time.ParseInLocation(ledgerTimeLayout, row[0], time.Local)
		if err != nil {
			return nil, fmt.Errorf("ledger row %d: %w", i+1, err)
		}
		up := Upload{At: at, Key: row[1], Size: -1}
		if len(row) > 2 {
			up.ID = row[2]
		}
		uploads = append(uploads, up)
	}
	return uploads, nil
}

// Latest returns the most recent ledger entry.
func Latest(path string) (Upload, error) {
	uploads, err := ReadLedger(path)
	if err != nil {
		return Upload{}, err
	}
	if len(uploads) == 0 {
		return Upload{}, ErrNoUploads
	}
	return uploads[len(uploads)-1], nil
}
