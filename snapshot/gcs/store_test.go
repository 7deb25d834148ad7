package gcs

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rbaliyan/moodlog/store"
)

func TestParseURI(t *testing.T) {
	bucket, key, err := parseURI("gs://journal/snapshots/a.json")
	if err != nil || bucket != "journal" || key != "snapshots/a.json" {
		t.Errorf("got %q %q %v", bucket, key, err)
	}
	for _, bad := range []string{"s3://b/k", "gs://", "gs://bucket", "gs:///key"} {
		if _, _, err := parseURI(bad); !errors.Is(err, store.ErrInvalidID) {
			t.Errorf("%q: expected ErrInvalidID, got %v", bad, err)
		}
	}
}

func TestObjectName(t *testing.T) {
	name := objectName("backups", "alice.json", time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC))
	if !strings.HasPrefix(name, "backups/2024/06/30/") || !strings.HasSuffix(name, "/alice.json") {
		t.Errorf("unexpected name %q", name)
	}
}

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(context.Background()); !errors.Is(err, ErrBucketRequired) {
		t.Errorf("expected ErrBucketRequired, got %v", err)
	}
}

func TestClientOptions(t *testing.T) {
	opts, err := clientOptions(&options{apiKey: "k", endpoint: "http://localhost:4443"})
	if err != nil {
		t.Fatalf("client options: %v", err)
	}
	if len(opts) != 2 {
		t.Errorf("expected api key and endpoint options, got %d", len(opts))
	}
	if opts, _ := clientOptions(&options{}); len(opts) != 0 {
		t.Errorf("default credentials should add no options, got %d", len(opts))
	}
}
