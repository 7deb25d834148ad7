package snapshot

import (
	"bytes"
	"context"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"

	"github.com/rbaliyan/moodlog/retry"
	"golang.org/x/crypto/chacha20poly1305"
)

// SealedContentType is the MIME type of an encrypted snapshot.
const SealedContentType = "application/octet-stream"

// sealedAD binds ciphertexts to this format.
var sealedAD = []byte("moodlog-snapshot-v1")

// Archive errors.
var (
	// ErrFileStoreRequired is returned by NewArchive without a FileStore.
	ErrFileStoreRequired = errors.New("snapshot: file store is required")

	// ErrInvalidKey is returned for an encryption key of the wrong size.
	ErrInvalidKey = errors.New("snapshot: encryption key must be 32 bytes")

	// ErrDecrypt is returned when a sealed snapshot cannot be opened.
	ErrDecrypt = errors.New("snapshot: cannot decrypt snapshot")
)

// FileStore holds encoded snapshots. Implementations exist for the local
// filesystem, S3 and GCS.
type FileStore interface {
	// Upload stores content and returns a URI for later retrieval.
	Upload(ctx context.Context, filename, contentType string, content io.Reader) (uri string, err error)

	// Load returns a reader for the stored content.
	// Caller is responsible for closing the reader.
	Load(ctx context.Context, uri string) (io.ReadCloser, error)

	// Delete removes the stored file.
	Delete(ctx context.Context, uri string) error
}

type archiveOptions struct {
	retry  retry.Config
	logger *slog.Logger
	key    []byte
}

// ArchiveOption configures an Archive.
type ArchiveOption func(*archiveOptions)

// WithRetry sets the retry policy for file store calls.
func WithRetry(cfg retry.Config) ArchiveOption {
	return func(o *archiveOptions) {
		o.retry = cfg
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) ArchiveOption {
	return func(o *archiveOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithEncryptionKey seals archived snapshots with XChaCha20-Poly1305.
// The key must be 32 bytes. An archive with a key cannot load snapshots
// saved without one, and the other way round.
func WithEncryptionKey(key []byte) ArchiveOption {
	return func(o *archiveOptions) {
		o.key = bytes.Clone(key)
	}
}

// Archive saves and loads encoded snapshots through a FileStore,
// retrying transient failures.
type Archive struct {
	files FileStore
	opts  archiveOptions
	aead  cipher.AEAD // nil when snapshots are stored in the clear
}

// NewArchive creates an archive backed by files.
func NewArchive(files FileStore, opts ...ArchiveOption) (*Archive, error) {
	if files == nil {
		return nil, ErrFileStoreRequired
	}
	o := archiveOptions{retry: retry.DefaultConfig(), logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.retry.Logger == nil {
		o.retry.Logger = o.logger
	}

	a := &Archive{files: files, opts: o}
	if o.key != nil {
		if len(o.key) != chacha20poly1305.KeySize {
			return nil, ErrInvalidKey
		}
		aead, err := chacha20poly1305.NewX(o.key)
		if err != nil {
			return nil, fmt.Errorf("snapshot: init cipher: %w", err)
		}
		a.aead = aead
	}
	return a, nil
}

// Sealed reports whether snapshots are encrypted at rest.
func (a *Archive) Sealed() bool {
	return a.aead != nil
}

// seal returns nonce || ciphertext.
func (a *Archive) seal(plain []byte) ([]byte, error) {
	nonce := make([]byte, a.aead.NonceSize(), a.aead.NonceSize()+len(plain)+a.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("snapshot: nonce: %w", err)
	}
	return a.aead.Seal(nonce, nonce, plain, sealedAD), nil
}

func (a *Archive) open(sealed []byte) ([]byte, error) {
	n := a.aead.NonceSize()
	if len(sealed) < n+a.aead.Overhead() {
		return nil, ErrDecrypt
	}
	plain, err := a.aead.Open(nil, sealed[:n], sealed[n:], sealedAD)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecrypt, err)
	}
	return plain, nil
}

// FileName returns the object name a snapshot is stored under.
func FileName(snap *Snapshot) string {
	return fmt.Sprintf("%s-%s.json", url.PathEscape(snap.OwnerID), snap.ExportedAt.UTC().Format("20060102T150405Z"))
}

// Save encodes snap and uploads it, returning its URI.
func (a *Archive) Save(ctx context.Context, snap *Snapshot) (string, error) {
	if err := snap.Validate(); err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := Encode(&buf, snap); err != nil {
		return "", fmt.Errorf("snapshot: encode: %w", err)
	}

	name, contentType, payload := FileName(snap), ContentType, buf.Bytes()
	if a.aead != nil {
		sealed, err := a.seal(payload)
		if err != nil {
			return "", err
		}
		name, contentType, payload = name+".sealed", SealedContentType, sealed
	}

	uri, err := retry.DoWithResult(ctx, a.opts.retry, func(ctx context.Context) (string, error) {
		return a.files.Upload(ctx, name, contentType, bytes.NewReader(payload))
	})
	if err != nil {
		return "", fmt.Errorf("snapshot: upload %s: %w", name, err)
	}

	a.opts.logger.Info("snapshot archived", "owner_id", snap.OwnerID, "uri", uri,
		"records", len(snap.Records), "bytes", len(payload), "sealed", a.aead != nil)
	return uri, nil
}

// Load downloads and decodes the snapshot at uri.
func (a *Archive) Load(ctx context.Context, uri string) (*Snapshot, error) {
	data, err := retry.DoWithResult(ctx, a.opts.retry, func(ctx context.Context) ([]byte, error) {
		rc, err := a.files.Load(ctx, uri)
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	})
	if err != nil {
		return nil, fmt.Errorf("snapshot: load %s: %w", uri, err)
	}
	if a.aead != nil {
		if data, err = a.open(data); err != nil {
			return nil, err
		}
	}
	return Decode(bytes.NewReader(data))
}

// Delete removes the snapshot at uri.
func (a *Archive) Delete(ctx context.Context, uri string) error {
	err := retry.Do(ctx, a.opts.retry, func(ctx context.Context) error {
		return a.files.Delete(ctx, uri)
	})
	if err != nil {
		return fmt.Errorf("snapshot: delete %s: %w", uri, err)
	}
	return nil
}
