package store

import (
	"fmt"
	"time"
)

// ListOptions configures record listing.
// Records are always returned in listing order (see Less).
type ListOptions struct {
	// Since keeps records whose Day is on or after this day. Zero means unbounded.
	Since time.Time
	// Until keeps records whose Day is strictly before this day. Zero means unbounded.
	Until time.Time
	// WithNote keeps only records with a non-empty note.
	WithNote bool
	// Limit caps the number of records returned. Zero means no limit.
	Limit int
	// Offset skips records from the start of the ordered result.
	Offset int
}

// Validate checks option consistency.
func (o ListOptions) Validate() error {
	if o.Limit < 0 || o.Offset < 0 {
		return fmt.Errorf("store: negative limit or offset")
	}
	if !o.Since.IsZero() && !o.Until.IsZero() && o.Until.Before(o.Since) {
		return fmt.Errorf("store: until before since")
	}
	return nil
}

// Matches reports whether r passes the Since, Until and WithNote filters.
func (o ListOptions) Matches(r Record) bool {
	if o.WithNote && !r.HasNote() {
		return false
	}
	if !o.Since.IsZero() && r.Day.Before(o.Since) {
		return false
	}
	if !o.Until.IsZero() && !r.Day.Before(o.Until) {
		return false
	}
	return true
}

// Page applies Offset and Limit to an already ordered slice.
func Page[T any](items []T, offset, limit int) []T {
	if offset > len(items) {
		offset = len(items)
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}
