package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/terrapper/poddigest/internal/model"
)

// candidateRegionSchema constrains the whole-episode-solicit LLM response
// (§4.F strategy 1) to 10-15 scored regions.
func candidateRegionSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"regions": {
				Type:        genai.TypeArray,
				Description: "10 to 15 candidate excerpt regions, each scored on five dimensions",
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"startSec":              {Type: genai.TypeNumber},
						"endSec":                {Type: genai.TypeNumber},
						"insightDensity":        {Type: genai.TypeInteger, Description: "0-100"},
						"emotionalIntensity":    {Type: genai.TypeInteger, Description: "0-100"},
						"actionability":         {Type: genai.TypeInteger, Description: "0-100"},
						"topicalRelevance":      {Type: genai.TypeInteger, Description: "0-100"},
						"conversationalQuality": {Type: genai.TypeInteger, Description: "0-100"},
					},
					Required: []string{"startSec", "endSec", "insightDensity", "emotionalIntensity", "actionability", "topicalRelevance", "conversationalQuality"},
				},
			},
		},
		Required: []string{"regions"},
	}
}

type regionResponse struct {
	Regions []struct {
		StartSec              float64 `json:"startSec"`
		EndSec                float64 `json:"endSec"`
		InsightDensity        int     `json:"insightDensity"`
		EmotionalIntensity    int     `json:"emotionalIntensity"`
		Actionability         int     `json:"actionability"`
		TopicalRelevance      int     `json:"topicalRelevance"`
		ConversationalQuality int     `json:"conversationalQuality"`
	} `json:"regions"`
}

// LLM is the subset of llmclient.Client the candidate generator needs.
type LLM interface {
	GenerateJSON(ctx context.Context, prompt string, schema *genai.Schema) (string, error)
}

// generateCandidates implements the whole-episode-solicit strategy: submit
// the timestamp-prefixed transcript in one request and ask for 10-15
// candidate regions (§4.F strategy 1).
func generateCandidates(ctx context.Context, llm LLM, episodeID string, transcript model.Transcript) ([]Candidate, error) {
	prompt := buildCandidatePrompt(transcript)

	raw, err := llm.GenerateJSON(ctx, prompt, candidateRegionSchema())
	if err != nil {
		return nil, fmt.Errorf("generate candidates: %w", err)
	}

	var resp regionResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, fmt.Errorf("unmarshal candidate regions: %w", err)
	}

	candidates := make([]Candidate, 0, len(resp.Regions))
	for _, r := range resp.Regions {
		if r.EndSec <= r.StartSec {
			continue
		}
		candidates = append(candidates, Candidate{
			EpisodeID: episodeID,
			StartSec:  r.StartSec,
			EndSec:    r.EndSec,
			Dims: model.ScoreDimensions{
				InsightDensity:        r.InsightDensity,
				EmotionalIntensity:    r.EmotionalIntensity,
				Actionability:         r.Actionability,
				TopicalRelevance:      r.TopicalRelevance,
				ConversationalQuality: r.ConversationalQuality,
			},
		})
	}
	return candidates, nil
}

func buildCandidatePrompt(transcript model.Transcript) string {
	var b strings.Builder
	b.WriteString("You are selecting excerpt-worthy regions from a podcast transcript for a personalized audio digest.\n")
	b.WriteString("Identify 10 to 15 candidate regions. For each, give a start and end time in seconds and score it on five dimensions from 0 to 100:\n")
	b.WriteString("insightDensity, emotionalIntensity, actionability, topicalRelevance, conversationalQuality.\n\n")
	b.WriteString("Transcript (timestamp-prefixed):\n")
	for _, seg := range transcript.Segments {
		fmt.Fprintf(&b, "[%.1f-%.1f] %s\n", seg.StartSec, seg.EndSec, seg.Text)
	}
	return b.String()
}
