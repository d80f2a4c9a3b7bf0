package storage

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/cutoutlab/bg-removal-service/pkg/errors"
)

// Handle points at one acquired temp file. It is owned by exactly one
// request and must be released on every exit path.
type Handle struct {
	Path         string
	OriginalName string
	Size         int64

	mu       sync.Mutex
	released bool
}

// TempStore is the ephemeral on-disk holding area for uploads between
// receipt and forwarding. Files are uuid-named, so concurrent requests
// never collide.
type TempStore struct {
	dir      string
	maxBytes int64
	logger   *slog.Logger
	cron     *cron.Cron
}

func NewTempStore(dir string, maxBytes int64, logger *slog.Logger) (*TempStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.WrapInternalError(err, "failed to create temp dir").
			WithContext("dir", dir)
	}

	return &TempStore{
		dir:      dir,
		maxBytes: maxBytes,
		logger:   logger,
	}, nil
}

// Acquire drains the upload stream into a uniquely named file and returns
// a handle for a single read. The byte cap is enforced while writing, so
// an oversized body never fully lands on disk.
func (s *TempStore) Acquire(r io.Reader, originalName string) (*Handle, error) {
	path := filepath.Join(s.dir, uuid.NewString())

	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
	if err != nil {
		return nil, errors.WrapInternalError(err, "failed to create temp file").
			WithContext("path", path)
	}

	// Read one byte past the cap so we can tell "exactly at the limit"
	// apart from "over it".
	written, err := io.Copy(out, io.LimitReader(r, s.maxBytes+1))
	closeErr := out.Close()

	if err != nil {
		_ = os.Remove(path)
		return nil, errors.WrapInternalError(err, "failed to write upload to temp file")
	}
	if closeErr != nil {
		_ = os.Remove(path)
		return nil, errors.WrapInternalError(closeErr, "failed to flush temp file")
	}
	if written > s.maxBytes {
		_ = os.Remove(path)
		return nil, errors.NewFileTooLargeError(written, s.maxBytes)
	}

	s.logger.Debug("temp file acquired", "path", path, "size", written, "name", originalName)

	return &Handle{
		Path:         path,
		OriginalName: originalName,
		Size:         written,
	}, nil
}

// Release deletes the backing file. Safe to call more than once and after
// the file is already gone.
func (s *TempStore) Release(h *Handle) {
	if h == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return
	}
	h.released = true

	if err := os.Remove(h.Path); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("failed to remove temp file", "path", h.Path, "error", err)
		return
	}
	s.logger.Debug("temp file released", "path", h.Path)
}

// StartSweeper schedules a periodic pass that deletes temp files older
// than maxAge. The per-request release already covers normal operation;
// the sweeper only mops up after crashes.
func (s *TempStore) StartSweeper(interval, maxAge time.Duration) error {
	if s.cron != nil {
		return nil
	}

	c := cron.New()
	_, err := c.AddFunc("@every "+interval.String(), func() {
		s.sweep(maxAge)
	})
	if err != nil {
		return errors.WrapInternalError(err, "failed to schedule temp sweeper")
	}

	c.Start()
	s.cron = c
	s.logger.Info("temp sweeper started", "interval", interval, "max_age", maxAge)
	return nil
}

// StopSweeper halts the scheduled sweeps. Blocks until a running sweep
// finishes.
func (s *TempStore) StopSweeper() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.cron = nil
}

func (s *TempStore) sweep(maxAge time.Duration) {
	cutoff := time.Now().Add(-maxAge)

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.logger.Warn("temp sweep failed to read dir", "dir", s.dir, "error", err)
		return
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, entry.Name())); err == nil {
			removed++
		}
	}

	if removed > 0 {
		s.logger.Info("temp sweep removed orphaned files", "count", removed)
	}
}
