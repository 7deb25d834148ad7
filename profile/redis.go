package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces profile keys in Redis.
const DefaultKeyPrefix = "moodlog:profile:"

type redisOptions struct {
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

// RedisOption configures a RedisStore.
type RedisOption func(*redisOptions)

// WithKeyPrefix sets the key prefix.
func WithKeyPrefix(prefix string) RedisOption {
	return func(o *redisOptions) {
		if prefix != "" {
			o.prefix = prefix
		}
	}
}

// WithTTL expires profiles after d. Zero keeps them forever.
func WithTTL(d time.Duration) RedisOption {
	return func(o *redisOptions) {
		if d >= 0 {
			o.ttl = d
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) RedisOption {
	return func(o *redisOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// RedisStore keeps one JSON document per user in Redis.
// Compatible with *redis.Client, *redis.ClusterClient, and redis.UniversalClient.
type RedisStore struct {
	client redis.UniversalClient
	opts   redisOptions
}

// NewRedisStore creates a profile store backed by client.
func NewRedisStore(client redis.UniversalClient, opts ...RedisOption) *RedisStore {
	o := redisOptions{prefix: DefaultKeyPrefix, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return &RedisStore{client: client, opts: o}
}

func (s *RedisStore) key(userID string) string {
	return s.opts.prefix + userID
}

// Get loads the profile or returns the default profile when the key is absent.
func (s *RedisStore) Get(ctx context.Context, userID string) (*Profile, error) {
	if userID == "" {
		return nil, ErrInvalidUserID
	}
	data, err := s.client.Get(ctx, s.key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Default(userID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("profile: get %s: %w", userID, err)
	}

	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		s.opts.logger.Warn("corrupt profile, returning default", "user_id", userID, "error", err)
		return Default(userID), nil
	}
	p.UserID = userID
	return &p, nil
}

// Save writes the profile as JSON.
func (s *RedisStore) Save(ctx context.Context, p *Profile) error {
	c, err := prepare(p, time.Now())
	if err != nil {
		return err
	}
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("profile: marshal: %w", err)
	}
	if err := s.client.Set(ctx, s.key(c.UserID), data, s.opts.ttl).Err(); err != nil {
		return fmt.Errorf("profile: save %s: %w", c.UserID, err)
	}
	p.Avatar, p.UpdatedAt = c.Avatar, c.UpdatedAt
	return nil
}

// Delete removes the profile key.
func (s *RedisStore) Delete(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrInvalidUserID
	}
	if err := s.client.Del(ctx, s.key(userID)).Err(); err != nil {
		return fmt.Errorf("profile: delete %s: %w", userID, err)
	}
	return nil
}

var _ Store = (*RedisStore)(nil)
