// Package llmclient wraps the Gemini client shared by the analyzer and
// narrator stages. It exists so those stages depend on a small interface
// instead of the genai SDK directly.
package llmclient

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// DefaultModel is used when config.LLMModel is unset.
const DefaultModel = "gemini-2.0-flash"

// Client is the narrow surface the analyzer and narrator stages need from
// an LLM: free-form text generation and schema-constrained JSON generation.
type Client interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
	GenerateJSON(ctx context.Context, prompt string, schema *genai.Schema) (string, error)
}

// GeminiClient is the production Client backed by google.golang.org/genai.
type GeminiClient struct {
	model   string
	gClient *genai.Client
}

// New builds a GeminiClient. model falls back to DefaultModel when empty.
func New(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("llmclient: API key is required")
	}
	if model == "" {
		model = DefaultModel
	}

	gClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("llmclient: create gemini client: %w", err)
	}

	return &GeminiClient{model: model, gClient: gClient}, nil
}

func (c *GeminiClient) GenerateText(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, prompt, nil)
}

func (c *GeminiClient) GenerateJSON(ctx context.Context, prompt string, schema *genai.Schema) (string, error) {
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
	}
	return c.generate(ctx, prompt, config)
}

func (c *GeminiClient) generate(ctx context.Context, prompt string, config *genai.GenerateContentConfig) (string, error) {
	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: prompt}},
		Role:  "user",
	}}

	resp, err := c.gClient.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("llmclient: generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("llmclient: empty response from model")
	}
	return text, nil
}

var _ Client = (*GeminiClient)(nil)
