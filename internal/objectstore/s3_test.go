//go:build integration

package objectstore

import (
	"bytes"
	"context"
	"testing"
)

func TestS3StorageIntegration(t *testing.T) {
	// Requires real R2/S3 credentials:
	// AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY, AWS_ENDPOINT_URL, S3_BUCKET

	ctx := context.Background()
	store, err := NewS3StorageFromConfig(ctx)
	if err != nil {
		t.Skipf("skipping objectstore integration test: %v", err)
	}

	t.Run("put and get round trip", func(t *testing.T) {
		key := "objectstore-test/roundtrip.txt"
		if err := store.Put(ctx, key, bytes.NewBufferString("hello"), "text/plain", nil); err != nil {
			t.Fatalf("put: %v", err)
		}
		defer store.Delete(ctx, key)

		rc, err := store.Get(ctx, key)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		defer rc.Close()

		buf := make([]byte, 5)
		if _, err := rc.Read(buf); err != nil {
			t.Fatalf("read: %v", err)
		}
		if string(buf) != "hello" {
			t.Errorf("got %q, want %q", buf, "hello")
		}
	})

	t.Run("head missing key", func(t *testing.T) {
		_, err := store.Head(ctx, "objectstore-test/does-not-exist.txt")
		if err != ErrNotFound {
			t.Errorf("got %v, want ErrNotFound", err)
		}
	})

	t.Run("public url non-empty", func(t *testing.T) {
		if store.PublicURL(ctx, "objectstore-test/roundtrip.txt") == "" {
			t.Error("expected non-empty public URL")
		}
	})
}
