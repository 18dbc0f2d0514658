// Package objectstore is the thin, testable facade over bucket storage that
// every stage uses to put, get, head, and delete artifact bytes. Keys are
// flat strings; layout is dictated by callers (see the digests/ and feeds/
// key prefixes used throughout the pipeline).
package objectstore

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned by Get and Head when the key does not exist.
var ErrNotFound = errors.New("objectstore: not found")

// TransientError wraps an underlying error that is safe to retry (a network
// timeout, a 5xx from the backend). Callers that want to distinguish
// transient from fatal failures should check errors.As against this type.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "objectstore: transient: " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err is, or wraps, a TransientError.
func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}

// ObjectInfo is what Head returns.
type ObjectInfo struct {
	Size        int64
	ContentType string
}

// Storage is the gateway contract. Implementations must be safe for
// concurrent use by multiple stage workers.
type Storage interface {
	// Put writes bytes at key, replacing any existing object.
	Put(ctx context.Context, key string, body io.Reader, contentType string, metadata map[string]string) error
	// Get opens a stream for key's content. Callers must close it.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Head returns size and content type without transferring the body.
	Head(ctx context.Context, key string) (ObjectInfo, error)
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// PublicURL returns a URL a client can use to fetch key directly,
	// which may be a CDN/base-URL link or a time-limited presigned URL.
	PublicURL(ctx context.Context, key string) string
}
