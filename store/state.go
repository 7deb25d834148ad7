package store

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MentalState is the mood category a user assigns to a logged record.
// The zero value is not a valid state.
type MentalState uint8

// Mental states, ordered from most to least severe.
const (
	Distressed MentalState = iota + 1
	Anxious
	Neutral
	Happy
)

// NumStates is the number of defined mental states.
const NumStates = 4

// States lists every mental state in severity order.
var States = [NumStates]MentalState{Distressed, Anxious, Neutral, Happy}

// Weight returns the OCD index weight of the state. This is the only
// weight table: Distressed 0.4, Anxious 0.3, Neutral 0.2, Happy 0.1.
// Invalid states weigh nothing.
func (s MentalState) Weight() float64 {
	switch s {
	case Distressed:
		return 0.4
	case Anxious:
		return 0.3
	case Neutral:
		return 0.2
	case Happy:
		return 0.1
	default:
		return 0
	}
}

// Severity returns an integer rank where higher means more severe.
// Used as the secondary sort key for records sharing a timestamp.
func (s MentalState) Severity() int {
	switch s {
	case Distressed:
		return 4
	case Anxious:
		return 3
	case Neutral:
		return 2
	case Happy:
		return 1
	default:
		return 0
	}
}

// Slot returns the position of the state in Counts, or -1.
func (s MentalState) Slot() int {
	switch s {
	case Distressed:
		return 0
	case Anxious:
		return 1
	case Neutral:
		return 2
	case Happy:
		return 3
	default:
		return -1
	}
}

// Valid reports whether s is one of the defined states.
func (s MentalState) Valid() bool {
	return s.Slot() >= 0
}

// String returns the wire name of the state.
func (s MentalState) String() string {
	switch s {
	case Distressed:
		return "Distressed"
	case Anxious:
		return "Anxious"
	case Neutral:
		return "Neutral"
	case Happy:
		return "Happy"
	default:
		return fmt.Sprintf("MentalState(%d)", uint8(s))
	}
}

// ParseMentalState parses a state name. Matching is case-insensitive.
func ParseMentalState(name string) (MentalState, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "distressed":
		return Distressed, nil
	case "anxious":
		return Anxious, nil
	case "neutral":
		return Neutral, nil
	case "happy":
		return Happy, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidState, name)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s MentalState) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidState, uint8(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *MentalState) UnmarshalText(text []byte) error {
	parsed, err := ParseMentalState(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Counts holds a per-state count, indexed by MentalState.Slot.
// All four states are always present.
type Counts [NumStates]int64

// Get returns the count for a state. Invalid states read as zero.
func (c Counts) Get(s MentalState) int64 {
	slot := s.Slot()
	if slot < 0 {
		return 0
	}
	return c[slot]
}

// Total returns the sum of all counts.
func (c Counts) Total() int64 {
	var total int64
	for _, n := range c {
		total += n
	}
	return total
}

// IsZero reports whether every count is zero.
func (c Counts) IsZero() bool {
	return c == Counts{}
}

// Map returns the counts keyed by state name.
func (c Counts) Map() map[string]int64 {
	m := make(map[string]int64, NumStates)
	for _, s := range States {
		m[s.String()] = c.Get(s)
	}
	return m
}

// MarshalJSON encodes counts as an object keyed by state name.
func (c Counts) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Map())
}

// UnmarshalJSON decodes an object keyed by state name.
// Missing states default to zero.
func (c *Counts) UnmarshalJSON(data []byte) error {
	var m map[string]int64
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	var out Counts
	for name, n := range m {
		s, err := ParseMentalState(name)
		if err != nil {
			return err
		}
		if n < 0 {
			return fmt.Errorf("%w: negative count for %s", ErrConsistency, s)
		}
		out[s.Slot()] = n
	}
	*c = out
	return nil
}
