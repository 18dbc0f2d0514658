package ttsclient

import "context"

// Mock is a Client test double following the pack's Func-field pattern.
type Mock struct {
	SynthesizeFunc func(ctx context.Context, voiceID, text string) (Result, error)

	Calls []string // texts passed to Synthesize, in order
}

func (m *Mock) Synthesize(ctx context.Context, voiceID, text string) (Result, error) {
	m.Calls = append(m.Calls, text)
	if m.SynthesizeFunc != nil {
		return m.SynthesizeFunc(ctx, voiceID, text)
	}
	return Result{Audio: []byte("mock-audio")}, nil
}

var _ Client = (*Mock)(nil)
