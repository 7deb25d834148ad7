package mongo

import (
	"log/slog"
	"time"
)

// Default configuration values.
const (
	DefaultDatabase         = "moodlog"
	DefaultCollection       = "records"
	DefaultBucketCollection = "daily_buckets"
	DefaultTimeout          = 10 * time.Second
)

// options holds MongoDB store configuration.
type options struct {
	database         string
	collection       string
	bucketCollection string
	timeout          time.Duration
	logger           *slog.Logger
	transactions     bool
}

func newOptions(opts ...Option) *options {
	o := &options{
		database:         DefaultDatabase,
		collection:       DefaultCollection,
		bucketCollection: DefaultBucketCollection,
		timeout:          DefaultTimeout,
		logger:           slog.Default(),
		transactions:     true,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Option configures a MongoDB store.
type Option func(*options)

// WithDatabase sets the database name.
func WithDatabase(name string) Option {
	return func(o *options) {
		if name != "" {
			o.database = name
		}
	}
}

// WithCollection sets the records collection name.
func WithCollection(name string) Option {
	return func(o *options) {
		if name != "" {
			o.collection = name
		}
	}
}

// WithBucketCollection sets the daily buckets collection name.
func WithBucketCollection(name string) Option {
	return func(o *options) {
		if name != "" {
			o.bucketCollection = name
		}
	}
}

// WithTimeout sets the operation timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithTransactions controls whether mutations run inside a session
// transaction. Transactions need a replica set or sharded cluster.
// When disabled, a failed bucket update is compensated by undoing the
// record change, which leaves a short window where the two disagree.
func WithTransactions(enable bool) Option {
	return func(o *options) {
		o.transactions = enable
	}
}
