package moodlog

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestValidateState(t *testing.T) {
	for _, s := range []MentalState{Distressed, Anxious, Neutral, Happy} {
		if err := ValidateState(s); err != nil {
			t.Errorf("ValidateState(%s) = %v", s, err)
		}
	}
	for _, s := range []MentalState{0, 5, 255} {
		err := ValidateState(s)
		if !errors.Is(err, ErrInvalidState) {
			t.Errorf("ValidateState(%d): expected ErrInvalidState, got %v", s, err)
		}
		var ve *ValidationError
		if !errors.As(err, &ve) || ve.Field != "state" {
			t.Errorf("expected state ValidationError, got %v", err)
		}
	}
}

func TestValidateNote(t *testing.T) {
	limits := RecordLimits{MaxNoteLength: 5, MaxFutureSkew: time.Minute}

	tests := []struct {
		name string
		note string
		want error
	}{
		{"empty", "", nil},
		{"at limit", "abcde", nil},
		{"multibyte at limit", "héllo", nil},
		{"line breaks", "a\nb\tc", nil},
		{"too long", "abcdef", ErrNoteTooLong},
		{"invalid utf8", "a\xffb", ErrInvalidNote},
		{"nul", "a\x00", ErrInvalidNote},
		{"escape", "\x1b[0m", ErrInvalidNote},
		{"del", "a\x7f", ErrInvalidNote},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateNote(tt.note, limits)
			if tt.want == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestValidateTimestamp(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	limits := RecordLimits{MaxNoteLength: 10, MaxFutureSkew: 5 * time.Minute}

	tests := []struct {
		name string
		ts   time.Time
		ok   bool
	}{
		{"past", now.AddDate(-1, 0, 0), true},
		{"now", now, true},
		{"inside skew", now.Add(5 * time.Minute), true},
		{"beyond skew", now.Add(5*time.Minute + time.Second), false},
		{"zero", time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTimestamp(tt.ts, now, limits)
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidTimestamp) {
				t.Errorf("expected ErrInvalidTimestamp, got %v", err)
			}
		})
	}
}

func TestValidateTimestampLocalDay(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	now := time.Date(2024, 5, 10, 9, 0, 0, 0, loc)
	limits := RecordLimits{MaxNoteLength: 10, MaxFutureSkew: 5 * time.Minute, Location: loc}

	tests := []struct {
		name string
		ts   time.Time
		ok   bool
	}{
		{"later today", time.Date(2024, 5, 10, 21, 30, 0, 0, loc), true},
		{"last instant of today", time.Date(2024, 5, 10, 23, 59, 59, 0, loc), true},
		{"later today in another zone", time.Date(2024, 5, 10, 20, 0, 0, 0, time.UTC), true},
		{"start of tomorrow", time.Date(2024, 5, 11, 0, 0, 0, 0, loc), false},
		{"tomorrow", time.Date(2024, 5, 11, 8, 0, 0, 0, loc), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTimestamp(tt.ts, now, limits)
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidTimestamp) {
				t.Errorf("expected ErrInvalidTimestamp, got %v", err)
			}
		})
	}

	t.Run("skew reaches past midnight", func(t *testing.T) {
		late := time.Date(2024, 5, 10, 23, 58, 0, 0, loc)
		if err := ValidateTimestamp(late.Add(4*time.Minute), late, limits); err != nil {
			t.Errorf("timestamp inside skew rejected: %v", err)
		}
	})
}

func TestValidateRecordOrder(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	limits := DefaultLimits()

	// State is checked before timestamp and note.
	err := ValidateRecord(time.Time{}, MentalState(0), strings.Repeat("x", limits.MaxNoteLength+1), now, limits)
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Field != "state" {
		t.Errorf("expected state failure first, got %v", err)
	}

	err = ValidateRecord(time.Time{}, Happy, strings.Repeat("x", limits.MaxNoteLength+1), now, limits)
	if !errors.As(err, &ve) || ve.Field != "timestamp" {
		t.Errorf("expected timestamp failure, got %v", err)
	}

	if err := ValidateRecord(now, Happy, "ok", now, limits); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestIsValidUserID(t *testing.T) {
	valid := []string{"alice", "user-123", "a.b_c", "ünïcode"}
	invalid := []string{"", "a:b", "a*", "a/b", `a\b`, "a b", "a\nb", "a\x7f", "\xff"}

	for _, id := range valid {
		if !isValidUserID(id) {
			t.Errorf("expected %q to be valid", id)
		}
	}
	for _, id := range invalid {
		if isValidUserID(id) {
			t.Errorf("expected %q to be invalid", id)
		}
	}
}
