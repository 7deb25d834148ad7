package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rbaliyan/moodlog"
	"github.com/rbaliyan/moodlog/internal/config"
	"github.com/rbaliyan/moodlog/snapshot"
)

// session is one opened journal plus everything that must be released
// when the command finishes.
type session struct {
	journal moodlog.Journal
	closers []func(context.Context) error

	// journalFile is set for the file driver, whose records live in a
	// memory store between runs.
	journalFile string
	profiles    *fileProfiles
}

// openSession wires the configured backends into a connected service.
func openSession(ctx context.Context) (*session, error) {
	loc, err := cfg.LoadLocation()
	if err != nil {
		return nil, err
	}

	s := &session{}
	opts := []moodlog.Option{
		moodlog.WithLogger(logger),
		moodlog.WithLocation(loc),
		moodlog.WithWindowSize(cfg.WindowSize),
		moodlog.WithTracing(cfg.Telemetry.Tracing),
		moodlog.WithMetrics(cfg.Telemetry.Metrics),
	}

	backendOpts, err := s.openBackends(ctx)
	if err != nil {
		s.close(ctx)
		return nil, err
	}
	opts = append(opts, backendOpts...)

	svc, err := moodlog.NewService(opts...)
	if err != nil {
		s.close(ctx)
		return nil, err
	}
	if err := svc.Connect(ctx); err != nil {
		s.close(ctx)
		return nil, err
	}
	s.closers = append(s.closers, svc.Close)
	s.journal = svc.Client(cfg.User)

	if s.journalFile != "" {
		if err := s.loadJournalFile(ctx); err != nil {
			s.close(ctx)
			return nil, err
		}
	}
	return s, nil
}

// openBackends opens the store, profile store and archive.
func (s *session) openBackends(ctx context.Context) ([]moodlog.Option, error) {
	var opts []moodlog.Option

	st, closeStore, err := openStore(&cfg.Store)
	if err != nil {
		return nil, err
	}
	if closeStore != nil {
		s.closers = append(s.closers, closeStore)
	}
	opts = append(opts, moodlog.WithStore(st))
	if cfg.Store.Driver == config.DriverFile {
		if err := os.MkdirAll(cfg.Store.Dir, 0o700); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
		s.journalFile = filepath.Join(cfg.Store.Dir, cfg.User+".json")
	}

	profOpts, closeProfiles, err := s.openProfiles()
	if err != nil {
		return nil, err
	}
	if closeProfiles != nil {
		s.closers = append(s.closers, closeProfiles)
	}
	opts = append(opts, profOpts...)

	archive, closeArchive, err := openArchive(ctx, &cfg.Archive)
	if err != nil {
		return nil, err
	}
	if closeArchive != nil {
		s.closers = append(s.closers, closeArchive)
	}
	if archive != nil {
		opts = append(opts, moodlog.WithSnapshotArchive(archive))
	}
	return opts, nil
}

// loadJournalFile imports the user's journal file, if any.
func (s *session) loadJournalFile(ctx context.Context) error {
	f, err := os.Open(s.journalFile)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	snap, err := snapshot.Decode(f)
	if err != nil {
		return fmt.Errorf("read journal %s: %w", s.journalFile, err)
	}
	if err := s.journal.Import(ctx, snap); err != nil {
		return fmt.Errorf("load journal: %w", err)
	}
	logger.Debug("journal file loaded", "path", s.journalFile, "records", len(snap.Records))
	return nil
}

// save persists file-backed state after a mutation. It is a no-op for
// database drivers.
func (s *session) save(ctx context.Context) error {
	if s.profiles != nil {
		if err := s.profiles.flush(ctx, cfg.User); err != nil {
			return err
		}
	}
	if s.journalFile == "" {
		return nil
	}
	snap, err := s.journal.Export(ctx)
	if err != nil {
		return err
	}
	return writeFileAtomic(s.journalFile, func(f *os.File) error {
		return snapshot.Encode(f, snap)
	})
}

// close releases everything in reverse order of acquisition.
func (s *session) close(ctx context.Context) {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil {
			logger.Warn("close failed", "error", err)
		}
	}
	s.closers = nil
}

// writeFileAtomic writes through a temporary file in the same directory.
func writeFileAtomic(path string, write func(f *os.File) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// withSession opens a session, runs fn and closes the session. When
// mutates is set, file-backed state is written back after fn succeeds.
func withSession(ctx context.Context, mutates bool, fn func(s *session) error) error {
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.close(ctx)

	if err := fn(s); err != nil {
		return err
	}
	if mutates {
		return s.save(ctx)
	}
	return nil
}
