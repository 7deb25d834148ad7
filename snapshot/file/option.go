package file

import (
	"log/slog"
	"time"
)

type options struct {
	retention time.Duration
	perm      uint32
	logger    *slog.Logger
}

// Option configures the file store.
type Option func(*options)

// WithRetention removes snapshots older than d in the background.
// Zero, the default, keeps snapshots until deleted.
func WithRetention(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.retention = d
		}
	}
}

// WithFileMode sets the permission bits of written files. Default 0600.
func WithFileMode(perm uint32) Option {
	return func(o *options) {
		if perm != 0 {
			o.perm = perm
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}
