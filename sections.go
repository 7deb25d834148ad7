package moodlog

import (
	"context"
	"time"

	"github.com/rbaliyan/moodlog/store"
)

// Sections partitions a journal by recency, each part in listing order.
type Sections struct {
	// Today holds records whose day is today.
	Today []store.Record
	// PastWeek holds records from the seven days before today.
	PastWeek []store.Record
	// Earlier holds everything older.
	Earlier []store.Record
}

// Len returns the total number of records across all sections.
func (s *Sections) Len() int {
	return len(s.Today) + len(s.PastWeek) + len(s.Earlier)
}

// Sections lists all records and splits them around today. Records dated
// after today, possible within the allowed clock skew, count as today.
func (j *userJournal) Sections(ctx context.Context) (*Sections, error) {
	records, err := j.List(ctx, store.ListOptions{})
	if err != nil {
		return nil, err
	}

	opts := j.service.opts
	now := opts.now()
	today := j.today()
	weekStart := store.DayOf(now.Add(-DefaultSectionHorizon), opts.location)

	return splitSections(records, today, weekStart), nil
}

func splitSections(records []store.Record, today, weekStart time.Time) *Sections {
	out := &Sections{}
	for _, r := range records {
		switch {
		case !r.Day.Before(today):
			out.Today = append(out.Today, r)
		case !r.Day.Before(weekStart):
			out.PastWeek = append(out.PastWeek, r)
		default:
			out.Earlier = append(out.Earlier, r)
		}
	}
	return out
}
