// Package file stores snapshots in a local directory.
package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rbaliyan/moodlog/snapshot"
	"github.com/rbaliyan/moodlog/store"
)

const scheme = "file://"

// Store implements snapshot.FileStore on the local filesystem.
// Files are laid out as <dir>/<yyyy>/<mm>/<dd>/<uuid>-<filename>.
type Store struct {
	dir  string
	opts options

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

var _ snapshot.FileStore = (*Store)(nil)

// New creates the directory if needed and starts retention cleanup when
// WithRetention is set.
func New(dir string, opts ...Option) (*Store, error) {
	o := options{perm: 0o600, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve snapshot directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot directory: %w", err)
	}

	s := &Store{dir: abs, opts: o, stop: make(chan struct{})}
	if o.retention > 0 {
		s.wg.Add(1)
		go s.cleanupLoop()
	}
	return s, nil
}

// Dir returns the absolute root directory.
func (s *Store) Dir() string { return s.dir }

// Upload writes content to a temp file and renames it into place.
func (s *Store) Upload(ctx context.Context, filename, _ string, content io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	rel := filepath.Join(time.Now().UTC().Format("2006/01/02"), uuid.NewString()+"-"+filepath.Base(filename))
	path := filepath.Join(s.dir, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "tmp-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(tmp, content); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Chmod(fs.FileMode(s.opts.perm)); err != nil {
		s.opts.logger.Warn("failed to set snapshot permissions", "error", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("move snapshot into place: %w", err)
	}

	s.opts.logger.Debug("wrote snapshot", "path", path)
	return scheme + filepath.ToSlash(path), nil
}

// Load opens the file at uri.
func (s *Store) Load(ctx context.Context, uri string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.resolve(uri)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, uri)
	}
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	return f, nil
}

// Delete removes the file at uri.
func (s *Store) Delete(ctx context.Context, uri string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.resolve(uri)
	if err != nil {
		return err
	}
	err = os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", store.ErrNotFound, uri)
	}
	if err != nil {
		return fmt.Errorf("remove snapshot: %w", err)
	}
	return nil
}

// Close stops retention cleanup.
func (s *Store) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	s.wg.Wait()
	return nil
}

// resolve maps a URI to a path, rejecting anything outside the root.
func (s *Store) resolve(uri string) (string, error) {
	rest, ok := strings.CutPrefix(uri, scheme)
	if !ok {
		return "", fmt.Errorf("%w: invalid file uri: %s", store.ErrInvalidID, uri)
	}
	path := filepath.Clean(filepath.FromSlash(rest))
	rel, err := filepath.Rel(s.dir, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("%w: uri outside snapshot directory: %s", store.ErrInvalidID, uri)
	}
	return path, nil
}

func (s *Store) cleanupLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.opts.retention / 2)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.cleanupExpired(time.Now())
		}
	}
}

// cleanupExpired removes snapshots last modified before now-retention.
func (s *Store) cleanupExpired(now time.Time) int {
	var removed int
	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if now.Sub(info.ModTime()) > s.opts.retention {
			if err := os.Remove(path); err == nil {
				removed++
			}
		}
		return nil
	})
	if err != nil {
		s.opts.logger.Warn("snapshot cleanup failed", "error", err)
	}
	if removed > 0 {
		s.opts.logger.Info("snapshot cleanup completed", "removed", removed)
	}
	return removed
}
