package transcriber

import "context"

// MockProvider is a test double for Provider.
type MockProvider struct {
	TranscribeFunc func(ctx context.Context, audioURL string) (ProviderResponse, error)
}

func (m *MockProvider) Transcribe(ctx context.Context, audioURL string) (ProviderResponse, error) {
	if m.TranscribeFunc != nil {
		return m.TranscribeFunc(ctx, audioURL)
	}
	return ProviderResponse{}, nil
}

var _ Provider = (*MockProvider)(nil)
