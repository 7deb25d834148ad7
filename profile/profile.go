// Package profile stores the journal owner's profile: display name, avatar
// and a free-text description of current OCD symptoms.
package profile

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"
)

// Defaults and limits.
const (
	DefaultAvatar     = "avatar"
	MaxUsernameLength = 64
	MaxSymptomsLength = 4096
)

// UpdatePrompt is shown while a profile is incomplete.
const UpdatePrompt = "Please update your profile"

// Sentinel errors.
var (
	ErrInvalidUserID  = errors.New("profile: invalid user id")
	ErrInvalidProfile = errors.New("profile: invalid profile")
)

// Profile is a user's self-description.
type Profile struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Avatar    string    `json:"avatar"`
	Symptoms  string    `json:"symptoms"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

// Default returns the profile of a user who never saved one.
func Default(userID string) *Profile {
	return &Profile{UserID: userID, Avatar: DefaultAvatar}
}

// IsComplete reports whether both username and symptoms are filled in.
func (p *Profile) IsComplete() bool {
	return p.Username != "" && p.Symptoms != ""
}

// Prompt returns UpdatePrompt for incomplete profiles and "" otherwise.
func (p *Profile) Prompt() string {
	if p.IsComplete() {
		return ""
	}
	return UpdatePrompt
}

// Validate checks field lengths and encoding.
func (p *Profile) Validate() error {
	if p.UserID == "" {
		return ErrInvalidUserID
	}
	if !utf8.ValidString(p.Username) || !utf8.ValidString(p.Symptoms) {
		return fmt.Errorf("%w: invalid UTF-8", ErrInvalidProfile)
	}
	if n := utf8.RuneCountInString(p.Username); n > MaxUsernameLength {
		return fmt.Errorf("%w: username too long (%d > %d)", ErrInvalidProfile, n, MaxUsernameLength)
	}
	if n := utf8.RuneCountInString(p.Symptoms); n > MaxSymptomsLength {
		return fmt.Errorf("%w: symptoms too long (%d > %d)", ErrInvalidProfile, n, MaxSymptomsLength)
	}
	return nil
}

// Clone returns a copy of the profile.
func (p *Profile) Clone() *Profile {
	c := *p
	return &c
}

// Store persists profiles.
type Store interface {
	// Get returns the user's profile, or Default(userID) if none was saved.
	Get(ctx context.Context, userID string) (*Profile, error)
	// Save validates and stores the profile, stamping UpdatedAt.
	Save(ctx context.Context, p *Profile) error
	// Delete removes the user's profile. Deleting a missing profile is not an error.
	Delete(ctx context.Context, userID string) error
}

// prepare validates p and returns the copy to persist.
func prepare(p *Profile, now time.Time) (*Profile, error) {
	if p == nil {
		return nil, ErrInvalidProfile
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	c := p.Clone()
	if c.Avatar == "" {
		c.Avatar = DefaultAvatar
	}
	c.UpdatedAt = now.UTC()
	return c, nil
}
