package moodlog

import (
	"fmt"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/rbaliyan/moodlog/store"
)

// RecordLimits holds record validation limits.
type RecordLimits struct {
	MaxNoteLength int           // runes
	MaxFutureSkew time.Duration // how far past now a timestamp may be

	// Location, when set, also admits any timestamp before the start of
	// tomorrow in that location.
	Location *time.Location
}

// DefaultLimits returns the default record limits.
func DefaultLimits() RecordLimits {
	return RecordLimits{
		MaxNoteLength: DefaultMaxNoteLength,
		MaxFutureSkew: DefaultMaxFutureSkew,
		Location:      time.Local,
	}
}

func (o *options) limits() RecordLimits {
	return RecordLimits{MaxNoteLength: o.maxNoteLength, MaxFutureSkew: o.maxFutureSkew, Location: o.location}
}

// ValidateState rejects anything outside the four mental states.
func ValidateState(s store.MentalState) error {
	if !s.Valid() {
		return &ValidationError{Field: "state", Message: fmt.Sprintf("unknown mental state %d", uint8(s)), Err: ErrInvalidState}
	}
	return nil
}

// ValidateNote checks encoding, control characters and length.
// Tabs and line breaks are allowed. An empty note is valid.
func ValidateNote(note string, limits RecordLimits) error {
	if !utf8.ValidString(note) {
		return &ValidationError{Field: "note", Message: "not valid UTF-8", Err: ErrInvalidNote}
	}
	for _, r := range note {
		if unicode.IsControl(r) && r != '\t' && r != '\n' && r != '\r' {
			return &ValidationError{Field: "note", Message: fmt.Sprintf("control character %U", r), Err: ErrInvalidNote}
		}
	}
	if n := utf8.RuneCountInString(note); n > limits.MaxNoteLength {
		return &ValidationError{
			Field:   "note",
			Message: fmt.Sprintf("%d characters exceeds limit %d", n, limits.MaxNoteLength),
			Err:     ErrNoteTooLong,
		}
	}
	return nil
}

// ValidateTimestamp rejects zero timestamps and future timestamps. A
// timestamp is in the future when it is more than MaxFutureSkew after now
// and, with a Location set, not earlier than the start of tomorrow.
func ValidateTimestamp(ts, now time.Time, limits RecordLimits) error {
	if ts.IsZero() {
		return &ValidationError{Field: "timestamp", Message: "zero timestamp", Err: ErrInvalidTimestamp}
	}
	if ts.After(now.Add(limits.MaxFutureSkew)) && !beforeTomorrow(ts, now, limits.Location) {
		return &ValidationError{
			Field:   "timestamp",
			Message: fmt.Sprintf("%s is in the future", ts.Format(time.RFC3339)),
			Err:     ErrInvalidTimestamp,
		}
	}
	return nil
}

func beforeTomorrow(ts, now time.Time, loc *time.Location) bool {
	if loc == nil {
		return false
	}
	return ts.Before(store.DayOf(now, loc).AddDate(0, 0, 1))
}

// ValidateRecord runs all record checks, reporting the first failure.
func ValidateRecord(ts time.Time, state store.MentalState, note string, now time.Time, limits RecordLimits) error {
	if err := ValidateState(state); err != nil {
		return err
	}
	if err := ValidateTimestamp(ts, now, limits); err != nil {
		return err
	}
	return ValidateNote(note, limits)
}

// isValidUserID rejects empty ids and ids with characters unsafe for
// cache keys, Redis keys and object names.
func isValidUserID(userID string) bool {
	if userID == "" || !utf8.ValidString(userID) {
		return false
	}
	for _, c := range userID {
		if c == '*' || c == ':' || c == '/' || c == '\\' ||
			c == ' ' || c < 32 || c == 127 {
			return false
		}
	}
	return true
}
