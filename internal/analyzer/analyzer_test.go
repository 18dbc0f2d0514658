package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/terrapper/poddigest/internal/model"
	"github.com/terrapper/poddigest/internal/repository"
)

type fakeLLM struct {
	regionsByPrompt func(prompt string) []regionResponse
	calls           int
	err             error
}

func (f *fakeLLM) GenerateJSON(ctx context.Context, prompt string, schema *genai.Schema) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	resp := regionResponse{}
	if f.regionsByPrompt != nil {
		for _, r := range f.regionsByPrompt(prompt) {
			resp.Regions = append(resp.Regions, r.Regions...)
		}
	}
	raw, err := json.Marshal(resp)
	return string(raw), err
}

func fixedRegionResponse(startSec, endSec float64, insight, emotion, action, topical, conversational int) regionResponse {
	var r regionResponse
	r.Regions = append(r.Regions, struct {
		StartSec              float64 `json:"startSec"`
		EndSec                float64 `json:"endSec"`
		InsightDensity        int     `json:"insightDensity"`
		EmotionalIntensity    int     `json:"emotionalIntensity"`
		Actionability         int     `json:"actionability"`
		TopicalRelevance      int     `json:"topicalRelevance"`
		ConversationalQuality int     `json:"conversationalQuality"`
	}{startSec, endSec, insight, emotion, action, topical, conversational})
	return r
}

func newRepo(t *testing.T) *repository.Mock {
	t.Helper()
	transcript := &model.Transcript{
		EpisodeID: "ep1",
		Status:    model.TranscriptCompleted,
		Segments: []model.Segment{
			{StartSec: 0, EndSec: 10, Text: "hello"},
		},
	}
	return &repository.Mock{
		FindCompletedTranscriptFunc: func(ctx context.Context, episodeID string) (*model.Transcript, error) {
			return transcript, nil
		},
		GetEpisodeFunc: func(ctx context.Context, id string) (model.Episode, error) {
			return model.Episode{ID: id, PodcastID: "pod1"}, nil
		},
		GetPodcastFunc: func(ctx context.Context, id string) (model.Podcast, error) {
			return model.Podcast{ID: id, Title: "Test Show"}, nil
		},
		AppendClipFunc: func(ctx context.Context, c model.DigestClip) error {
			return nil
		},
		SetDigestClipCountFunc: func(ctx context.Context, digestID string, count int) error {
			return nil
		},
	}
}

func TestAnalyzeProducesOrderedClipsAboveThreshold(t *testing.T) {
	repo := newRepo(t)
	llm := &fakeLLM{
		regionsByPrompt: func(prompt string) []regionResponse {
			return []regionResponse{fixedRegionResponse(0, 300, 90, 90, 90, 90, 90)}
		},
	}
	a := New(repo, llm, nil)
	cfg := model.DigestConfig{TargetLengthMinutes: 30, ClipLengthPreference: model.ClipLengthMedium, Structure: model.StructureByScore, BreadthDepth: 50}

	clipIDs, outcome := a.Analyze(context.Background(), "d1", []string{"ep1"}, cfg)

	require.False(t, outcome.IsTerminal())
	require.Len(t, clipIDs, 1)
}

func TestAnalyzeFailsWithNoViableClipsWhenAllBelowThreshold(t *testing.T) {
	repo := newRepo(t)
	llm := &fakeLLM{
		regionsByPrompt: func(prompt string) []regionResponse {
			return []regionResponse{fixedRegionResponse(0, 300, 10, 10, 10, 10, 10)}
		},
	}
	a := New(repo, llm, nil)
	cfg := model.DigestConfig{TargetLengthMinutes: 30, ClipLengthPreference: model.ClipLengthMedium, BreadthDepth: 50}

	clipIDs, outcome := a.Analyze(context.Background(), "d1", []string{"ep1"}, cfg)

	require.True(t, outcome.IsTerminal())
	require.Equal(t, "no-viable-clips", outcome.Reason())
	require.Nil(t, clipIDs)
}

func TestGenerateCandidatesDropsInvertedRegions(t *testing.T) {
	llm := &fakeLLM{
		regionsByPrompt: func(prompt string) []regionResponse {
			return []regionResponse{fixedRegionResponse(300, 100, 90, 90, 90, 90, 90)} // endSec <= startSec, must be dropped
		},
	}
	candidates, err := generateCandidates(context.Background(), llm, "ep1", model.Transcript{})
	require.NoError(t, err)
	require.Empty(t, candidates)
}

func TestScoreEpisodeWithRetryPropagatesLLMError(t *testing.T) {
	repo := newRepo(t)
	llm := &fakeLLM{err: fmt.Errorf("provider unavailable")}
	a := New(repo, llm, nil)

	_, _, err := a.scoreEpisodeWithRetry(context.Background(), "ep1")
	require.Error(t, err)
}
