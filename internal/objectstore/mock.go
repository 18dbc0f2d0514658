package objectstore

import (
	"context"
	"io"
)

// Mock is a Storage test double: set the XxxFunc fields a test cares about,
// leave the rest nil. Calls are appended to the matching call-log slice so
// tests can assert on arguments without a mocking framework.
type Mock struct {
	PutFunc       func(ctx context.Context, key string, body io.Reader, contentType string, metadata map[string]string) error
	GetFunc       func(ctx context.Context, key string) (io.ReadCloser, error)
	HeadFunc      func(ctx context.Context, key string) (ObjectInfo, error)
	DeleteFunc    func(ctx context.Context, key string) error
	PublicURLFunc func(ctx context.Context, key string) string

	PutCalls    []string
	GetCalls    []string
	HeadCalls   []string
	DeleteCalls []string
}

func (m *Mock) Put(ctx context.Context, key string, body io.Reader, contentType string, metadata map[string]string) error {
	m.PutCalls = append(m.PutCalls, key)
	if m.PutFunc != nil {
		return m.PutFunc(ctx, key, body, contentType, metadata)
	}
	return nil
}

func (m *Mock) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	m.GetCalls = append(m.GetCalls, key)
	if m.GetFunc != nil {
		return m.GetFunc(ctx, key)
	}
	return nil, ErrNotFound
}

func (m *Mock) Head(ctx context.Context, key string) (ObjectInfo, error) {
	m.HeadCalls = append(m.HeadCalls, key)
	if m.HeadFunc != nil {
		return m.HeadFunc(ctx, key)
	}
	return ObjectInfo{}, ErrNotFound
}

func (m *Mock) Delete(ctx context.Context, key string) error {
	m.DeleteCalls = append(m.DeleteCalls, key)
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, key)
	}
	return nil
}

func (m *Mock) PublicURL(ctx context.Context, key string) string {
	if m.PublicURLFunc != nil {
		return m.PublicURLFunc(ctx, key)
	}
	return "https://mock.invalid/" + key
}
