package moodlog

import (
	"context"
	"fmt"
	"time"

	"github.com/rbaliyan/moodlog/profile"
	"github.com/rbaliyan/moodlog/sentiment"
	"github.com/rbaliyan/moodlog/snapshot"
	"go.opentelemetry.io/otel/attribute"
)

// Profile returns the user's profile, or a default one if none was saved.
func (j *userJournal) Profile(ctx context.Context) (*profile.Profile, error) {
	if err := j.checkAccess(); err != nil {
		return nil, err
	}
	p, err := j.service.opts.profiles.Get(ctx, j.userID)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// SaveProfile stores p as the user's profile. p.UserID is overwritten.
func (j *userJournal) SaveProfile(ctx context.Context, p *profile.Profile) error {
	if err := j.checkAccess(); err != nil {
		return err
	}
	if p == nil {
		return profile.ErrInvalidProfile
	}
	c := p.Clone()
	c.UserID = j.userID
	if err := j.service.opts.profiles.Save(ctx, c); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

// NoteSentiment scores every note in the journal.
func (j *userJournal) NoteSentiment(ctx context.Context) (*sentiment.Summary, error) {
	if err := j.checkAccess(); err != nil {
		return nil, err
	}
	s := j.service
	if s.analyzer == nil {
		return nil, ErrSentimentNotConfigured
	}

	records, err := j.WithNotes(ctx)
	if err != nil {
		return nil, err
	}
	notes := make([]string, len(records))
	for i, r := range records {
		notes[i] = r.Note
	}

	ctx, endSpan := s.otel.startSpan(ctx, "moodlog.sentiment",
		attribute.String("user_id", j.userID),
		attribute.Int("notes", len(notes)),
	)
	summary, err := s.analyzer.Analyze(ctx, notes)
	endSpan(err)
	if err != nil {
		return nil, fmt.Errorf("analyze notes: %w", err)
	}
	return summary, nil
}

// Export captures the whole journal. Records and buckets are read under
// the user lock so they describe the same state.
func (j *userJournal) Export(ctx context.Context) (*snapshot.Snapshot, error) {
	var snap *snapshot.Snapshot
	err := j.readConsistent(func() error {
		var err error
		snap, err = snapshot.Export(ctx, j.service.store, j.userID, j.service.opts.location, j.service.opts.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// Import replaces the journal with snap. Snapshots of other users are
// accepted and restored under this user.
func (j *userJournal) Import(ctx context.Context, snap *snapshot.Snapshot) error {
	s := j.service
	ctx, endSpan := s.otel.startSpan(ctx, "moodlog.import",
		attribute.String("user_id", j.userID),
	)
	var importErr error
	defer func() { endSpan(importErr) }()

	importErr = j.write(ctx, func() error {
		if err := snapshot.Import(ctx, s.store, j.userID, snap); err != nil {
			return err
		}
		s.invalidateStats(j.userID)
		s.logger.Info("journal imported", "user_id", j.userID,
			"records", len(snap.Records), "buckets", len(snap.Buckets))

		return publish(ctx, s, s.events.RecordsCleared, "RecordsCleared", "", RecordsClearedEvent{
			UserID:    j.userID,
			Count:     int64(len(snap.Records)),
			ClearedAt: time.Now().UTC(),
		})
	})
	return importErr
}

// Backup exports the journal and uploads it to the archive.
func (j *userJournal) Backup(ctx context.Context) (string, error) {
	if j.service.opts.archive == nil {
		return "", ErrArchiveNotConfigured
	}
	snap, err := j.Export(ctx)
	if err != nil {
		return "", err
	}
	if err := snap.Validate(); err != nil {
		return "", err
	}
	return j.service.opts.archive.Save(ctx, snap)
}

// Restore downloads the snapshot at uri and imports it.
func (j *userJournal) Restore(ctx context.Context, uri string) error {
	if err := j.checkAccess(); err != nil {
		return err
	}
	archive := j.service.opts.archive
	if archive == nil {
		return ErrArchiveNotConfigured
	}
	snap, err := archive.Load(ctx, uri)
	if err != nil {
		return err
	}
	return j.Import(ctx, snap)
}
