package profile

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisStore(t *testing.T, opts ...RedisOption) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, opts...), mr
}

func TestProfile(t *testing.T) {
	p := Default("alice")
	if p.Avatar != DefaultAvatar || p.IsComplete() {
		t.Errorf("unexpected default profile %+v", p)
	}
	if p.Prompt() != UpdatePrompt {
		t.Errorf("incomplete profile should prompt, got %q", p.Prompt())
	}

	p.Username = "Alice"
	if p.IsComplete() {
		t.Error("profile without symptoms should be incomplete")
	}
	p.Symptoms = "checking locks"
	if !p.IsComplete() || p.Prompt() != "" {
		t.Errorf("complete profile should not prompt")
	}

	p.Username = strings.Repeat("a", MaxUsernameLength+1)
	if err := p.Validate(); !errors.Is(err, ErrInvalidProfile) {
		t.Errorf("expected ErrInvalidProfile, got %v", err)
	}
	p.Username = "\xff"
	if err := p.Validate(); !errors.Is(err, ErrInvalidProfile) {
		t.Errorf("expected ErrInvalidProfile for invalid UTF-8, got %v", err)
	}
}

func testStore(t *testing.T, s Store) {
	ctx := context.Background()

	t.Run("unknown user gets default", func(t *testing.T) {
		p, err := s.Get(ctx, "nobody")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if p.UserID != "nobody" || p.Avatar != DefaultAvatar || p.Username != "" {
			t.Errorf("unexpected profile %+v", p)
		}
	})

	t.Run("save and get", func(t *testing.T) {
		in := &Profile{UserID: "alice", Username: "Alice", Symptoms: "intrusive thoughts"}
		if err := s.Save(ctx, in); err != nil {
			t.Fatalf("save: %v", err)
		}
		if in.Avatar != DefaultAvatar || in.UpdatedAt.IsZero() {
			t.Errorf("save should fill avatar and timestamp: %+v", in)
		}
		out, err := s.Get(ctx, "alice")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if out.Username != "Alice" || out.Symptoms != "intrusive thoughts" || !out.IsComplete() {
			t.Errorf("unexpected profile %+v", out)
		}
	})

	t.Run("delete", func(t *testing.T) {
		if err := s.Delete(ctx, "alice"); err != nil {
			t.Fatalf("delete: %v", err)
		}
		p, _ := s.Get(ctx, "alice")
		if p.Username != "" {
			t.Errorf("expected default after delete, got %+v", p)
		}
		if err := s.Delete(ctx, "alice"); err != nil {
			t.Errorf("deleting twice should succeed: %v", err)
		}
	})

	t.Run("invalid input", func(t *testing.T) {
		if _, err := s.Get(ctx, ""); !errors.Is(err, ErrInvalidUserID) {
			t.Errorf("expected ErrInvalidUserID, got %v", err)
		}
		if err := s.Save(ctx, nil); !errors.Is(err, ErrInvalidProfile) {
			t.Errorf("expected ErrInvalidProfile, got %v", err)
		}
		if err := s.Save(ctx, &Profile{Username: "x"}); !errors.Is(err, ErrInvalidUserID) {
			t.Errorf("expected ErrInvalidUserID, got %v", err)
		}
	})
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemoryStore())
}

func TestRedisStore(t *testing.T) {
	s, _ := newRedisStore(t)
	testStore(t, s)
}

func TestRedisStoreKeysAndTTL(t *testing.T) {
	ctx := context.Background()
	s, mr := newRedisStore(t, WithKeyPrefix("test:"), WithTTL(time.Hour))

	if err := s.Save(ctx, &Profile{UserID: "bob", Username: "Bob"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if !mr.Exists("test:bob") {
		t.Fatal("expected key with custom prefix")
	}
	if ttl := mr.TTL("test:bob"); ttl != time.Hour {
		t.Errorf("expected 1h TTL, got %v", ttl)
	}

	mr.FastForward(2 * time.Hour)
	p, err := s.Get(ctx, "bob")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.Username != "" {
		t.Errorf("expired profile should fall back to default, got %+v", p)
	}
}

func TestRedisStoreCorruptValue(t *testing.T) {
	ctx := context.Background()
	s, mr := newRedisStore(t)
	if err := mr.Set(DefaultKeyPrefix+"carol", "{not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	p, err := s.Get(ctx, "carol")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.Avatar != DefaultAvatar {
		t.Errorf("corrupt value should yield default, got %+v", p)
	}
}
