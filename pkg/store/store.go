// Package store persists transient uploaded artifacts on local disk and
// reclaims the ones that were never consumed.
package store

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opsbridge-ai/opsbridge/pkg/models"
)

// Store owns a single directory of transient artifacts. Each artifact is
// keyed by a generated identifier, so concurrent saves never race on the
// same path. The handle is injected so tests can point it at a temp dir.
type Store struct {
	dir    string
	logger *zap.Logger
}

// New creates the upload directory if needed and returns a Store.
func New(dir string, logger *zap.Logger) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("upload dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Store{dir: dir, logger: logger}, nil
}

// Dir returns the directory the store owns.
func (s *Store) Dir() string {
	return s.dir
}

// Save persists the payload under a generated identifier and returns the
// artifact reference. The original name is recorded but never used as a
// path component.
func (s *Store) Save(name string, r io.Reader) (*models.Artifact, error) {
	id := uuid.NewString()
	path := filepath.Join(s.dir, id+safeExt(name))

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create artifact: %w", err)
	}

	size, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("write artifact: %w", err)
	}

	return &models.Artifact{
		ID:        id,
		Name:      filepath.Base(name),
		Path:      path,
		Size:      size,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Read returns the artifact's full content for its one downstream use.
func (s *Store) Read(a *models.Artifact) ([]byte, error) {
	data, err := os.ReadFile(a.Path)
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", a.ID, err)
	}
	return data, nil
}

// Release deletes the artifact's storage. Idempotent: releasing an
// already-released artifact is a no-op.
func (s *Store) Release(a *models.Artifact) error {
	if a == nil {
		return nil
	}
	err := os.Remove(a.Path)
	if err == nil {
		return nil
	}
	if os.IsNotExist(err) {
		s.logger.Debug("artifact already released", zap.String("id", a.ID))
		return nil
	}
	s.logger.Warn("release artifact failed", zap.String("id", a.ID), zap.Error(err))
	return fmt.Errorf("release artifact %s: %w", a.ID, err)
}

// Sweep deletes every entry in the store's directory older than maxAge,
// judged by last-modified time. Each entry is evaluated independently; a
// stat or remove failure is logged and does not abort the rest of the
// sweep. Returns the number of entries removed.
func (s *Store) Sweep(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("read upload dir: %w", err)
	}

	now := time.Now()
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			s.logger.Warn("stat upload entry failed", zap.String("name", entry.Name()), zap.Error(err))
			continue
		}
		if now.Sub(info.ModTime()) <= maxAge {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		if err := os.Remove(path); err != nil {
			s.logger.Warn("remove expired upload failed", zap.String("name", entry.Name()), zap.Error(err))
			continue
		}
		removed++
	}

	if removed > 0 {
		s.logger.Info("purge sweep removed expired uploads", zap.Int("removed", removed))
	}
	return removed, nil
}

// safeExt extracts a filename extension safe to append to a generated
// identifier. Anything suspicious is dropped.
func safeExt(name string) string {
	ext := filepath.Ext(filepath.Base(name))
	if len(ext) > 16 || strings.ContainsAny(ext, "/\\ \t\n") {
		return ""
	}
	return ext
}
