package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/rbaliyan/moodlog"
	"github.com/rbaliyan/moodlog/internal/config"
	"github.com/rbaliyan/moodlog/profile"
	"github.com/rbaliyan/moodlog/snapshot"
	"github.com/rbaliyan/moodlog/snapshot/file"
	"github.com/rbaliyan/moodlog/snapshot/gcs"
	snapotel "github.com/rbaliyan/moodlog/snapshot/otel"
	"github.com/rbaliyan/moodlog/snapshot/s3"
	"github.com/rbaliyan/moodlog/store"
	"github.com/rbaliyan/moodlog/store/memory"
	mongostore "github.com/rbaliyan/moodlog/store/mongo"
	"github.com/rbaliyan/moodlog/store/postgres"
)

type closeFunc = func(context.Context) error

// openStore creates the configured record store. The file driver keeps
// records in memory; the session loads and saves them around each command.
func openStore(sc *config.StoreConfig) (store.Store, closeFunc, error) {
	switch sc.Driver {
	case config.DriverPostgres:
		db, err := sqlx.Open("postgres", sc.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		st := postgres.New(db, postgres.WithTimeout(sc.Timeout), postgres.WithLogger(logger))
		return st, func(context.Context) error { return db.Close() }, nil

	case config.DriverMongo:
		client, err := mongo.Connect(options.Client().ApplyURI(sc.URI))
		if err != nil {
			return nil, nil, fmt.Errorf("connect mongo: %w", err)
		}
		st := mongostore.New(client,
			mongostore.WithDatabase(sc.Database),
			mongostore.WithTransactions(sc.Transactions),
			mongostore.WithTimeout(sc.Timeout),
			mongostore.WithLogger(logger),
		)
		return st, client.Disconnect, nil

	default:
		return memory.New(), nil, nil
	}
}

// openProfiles selects the profile store. A Redis address also turns on
// the Redis event transport, which enables the stats cache.
func (s *session) openProfiles() ([]moodlog.Option, closeFunc, error) {
	pc := &cfg.Profile
	if pc.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: pc.RedisAddr})
		var ropts []profile.RedisOption
		if pc.KeyPrefix != "" {
			ropts = append(ropts, profile.WithKeyPrefix(pc.KeyPrefix))
		}
		if pc.TTL > 0 {
			ropts = append(ropts, profile.WithTTL(pc.TTL))
		}
		ropts = append(ropts, profile.WithLogger(logger))
		opts := []moodlog.Option{
			moodlog.WithProfileStore(profile.NewRedisStore(client, ropts...)),
			moodlog.WithRedisClient(client),
		}
		return opts, func(context.Context) error { return client.Close() }, nil
	}

	if cfg.Store.Driver == config.DriverFile {
		fp, err := loadFileProfiles(filepath.Join(cfg.Store.Dir, cfg.User+".profile.json"))
		if err != nil {
			return nil, nil, err
		}
		s.profiles = fp
		return []moodlog.Option{moodlog.WithProfileStore(fp)}, nil, nil
	}
	return nil, nil, nil
}

// openArchive builds the snapshot archive, or returns nil when no archive
// driver is configured.
func openArchive(ctx context.Context, ac *config.ArchiveConfig) (*snapshot.Archive, closeFunc, error) {
	var files snapshot.FileStore
	var closer closeFunc

	switch ac.Driver {
	case config.ArchiveNone:
		return nil, nil, nil

	case config.ArchiveFile:
		fs, err := file.New(ac.Dir, file.WithRetention(ac.Retention), file.WithLogger(logger))
		if err != nil {
			return nil, nil, fmt.Errorf("open file archive: %w", err)
		}
		files = fs
		closer = func(context.Context) error { return fs.Close() }

	case config.ArchiveS3:
		opts := []s3.Option{s3.WithBucket(ac.Bucket), s3.WithPrefix(ac.Prefix), s3.WithLogger(logger)}
		if ac.Region != "" {
			opts = append(opts, s3.WithRegion(ac.Region))
		}
		if ac.Endpoint != "" {
			opts = append(opts, s3.WithEndpoint(ac.Endpoint, ac.PathStyle))
		}
		if ac.RoleARN != "" {
			opts = append(opts, s3.WithAssumeRole(ac.RoleARN, "moodlog-cli", ""))
		}
		fs, err := s3.New(ctx, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("open s3 archive: %w", err)
		}
		files = fs

	case config.ArchiveGCS:
		opts := []gcs.Option{gcs.WithBucket(ac.Bucket), gcs.WithPrefix(ac.Prefix), gcs.WithLogger(logger)}
		if ac.Endpoint != "" {
			opts = append(opts, gcs.WithEndpoint(ac.Endpoint))
		}
		if ac.CredentialsFile != "" {
			opts = append(opts, gcs.WithCredentialsFile(ac.CredentialsFile))
		}
		fs, err := gcs.New(ctx, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("open gcs archive: %w", err)
		}
		files = fs
		closer = func(context.Context) error { return fs.Close() }

	default:
		return nil, nil, fmt.Errorf("unknown archive driver %q", ac.Driver)
	}

	if cfg.Telemetry.Tracing || cfg.Telemetry.Metrics {
		instrumented, err := snapotel.New(files,
			snapotel.WithTracing(cfg.Telemetry.Tracing),
			snapotel.WithMetrics(cfg.Telemetry.Metrics),
		)
		if err != nil {
			return nil, closer, err
		}
		files = instrumented
	}

	key, err := ac.KeyBytes()
	if err != nil {
		return nil, closer, err
	}
	archOpts := []snapshot.ArchiveOption{snapshot.WithLogger(logger)}
	if key != nil {
		archOpts = append(archOpts, snapshot.WithEncryptionKey(key))
	}
	archive, err := snapshot.NewArchive(files, archOpts...)
	if err != nil {
		return nil, closer, err
	}
	return archive, closer, nil
}

// fileProfiles keeps one user's profile in a JSON file next to the
// journal file.
type fileProfiles struct {
	*profile.MemoryStore
	path string

	mu    sync.Mutex
	dirty bool
}

func loadFileProfiles(path string) (*fileProfiles, error) {
	fp := &fileProfiles{MemoryStore: profile.NewMemoryStore(), path: path}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return fp, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	var p profile.Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse profile %s: %w", path, err)
	}
	if err := fp.MemoryStore.Save(context.Background(), &p); err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	return fp, nil
}

// Save stores the profile and marks the file for rewriting.
func (f *fileProfiles) Save(ctx context.Context, p *profile.Profile) error {
	if err := f.MemoryStore.Save(ctx, p); err != nil {
		return err
	}
	f.mu.Lock()
	f.dirty = true
	f.mu.Unlock()
	return nil
}

// flush rewrites the profile file if the profile changed.
func (f *fileProfiles) flush(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.dirty {
		return nil
	}
	p, err := f.MemoryStore.Get(ctx, userID)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	err = writeFileAtomic(f.path, func(fh *os.File) error {
		_, err := fh.Write(data)
		return err
	})
	if err == nil {
		f.dirty = false
	}
	return err
}
