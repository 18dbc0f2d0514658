package llmclient

import (
	"context"

	"google.golang.org/genai"
)

// Mock is a test double for Client following the pack's Func-field pattern.
type Mock struct {
	GenerateTextFunc func(ctx context.Context, prompt string) (string, error)
	GenerateJSONFunc func(ctx context.Context, prompt string, schema *genai.Schema) (string, error)

	TextPrompts []string
	JSONPrompts []string
}

func (m *Mock) GenerateText(ctx context.Context, prompt string) (string, error) {
	m.TextPrompts = append(m.TextPrompts, prompt)
	if m.GenerateTextFunc != nil {
		return m.GenerateTextFunc(ctx, prompt)
	}
	return "", nil
}

func (m *Mock) GenerateJSON(ctx context.Context, prompt string, schema *genai.Schema) (string, error) {
	m.JSONPrompts = append(m.JSONPrompts, prompt)
	if m.GenerateJSONFunc != nil {
		return m.GenerateJSONFunc(ctx, prompt, schema)
	}
	return "", nil
}

var _ Client = (*Mock)(nil)
