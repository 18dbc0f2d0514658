package narrator

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/terrapper/poddigest/internal/model"
	"github.com/terrapper/poddigest/internal/objectstore"
	"github.com/terrapper/poddigest/internal/repository"
	"github.com/terrapper/poddigest/internal/ttsclient"
)

type fakeLLM struct {
	text string
	err  error
}

func (f *fakeLLM) GenerateText(ctx context.Context, prompt string) (string, error) {
	return f.text, f.err
}

func threeScripts() string {
	return strings.Join([]string{
		"Welcome to your weekly digest.",
		"Here is our first story.",
		"That wraps up this week's digest.",
	}, scriptDelimiter)
}

func TestProduceNarrationUploadsEachSegment(t *testing.T) {
	repo := &repository.Mock{
		FindDigestForUpdateFunc: func(ctx context.Context, id string) (model.Digest, error) {
			return model.Digest{ID: id, ConfigID: "cfg1"}, nil
		},
		GetConfigFunc: func(ctx context.Context, id string) (model.DigestConfig, error) {
			return model.DigestConfig{VoiceID: "voice-1", NarrationDepth: model.NarrationBrief}, nil
		},
		ListClipsFunc: func(ctx context.Context, digestID string) ([]model.DigestClip, error) {
			return []model.DigestClip{{ID: "c1", Position: 0}}, nil
		},
	}
	llm := &fakeLLM{text: threeScripts()}
	tts := &ttsclient.Mock{}
	store := &objectstore.Mock{}

	n := New(repo, llm, tts, store)
	audios, result := n.ProduceNarration(context.Background(), "d1")

	require.Equal(t, 0, int(result.Kind()))
	require.Len(t, audios, 3)
	require.Equal(t, Intro, audios[0].Type)
	require.Equal(t, 0, audios[0].Position)
	require.Equal(t, Transition, audios[1].Type)
	require.Equal(t, 1, audios[1].Position)
	require.Equal(t, Outro, audios[2].Type)
	require.Equal(t, 2, audios[2].Position)
	require.Equal(t, []string{
		"digests/d1/narration/0-intro.mp3",
		"digests/d1/narration/1-transition.mp3",
		"digests/d1/narration/2-outro.mp3",
	}, store.PutCalls)
}

func TestProduceNarrationFailsOnWrongScriptCount(t *testing.T) {
	repo := &repository.Mock{
		FindDigestForUpdateFunc: func(ctx context.Context, id string) (model.Digest, error) {
			return model.Digest{ID: id, ConfigID: "cfg1"}, nil
		},
		GetConfigFunc: func(ctx context.Context, id string) (model.DigestConfig, error) {
			return model.DigestConfig{VoiceID: "voice-1", NarrationDepth: model.NarrationBrief}, nil
		},
		ListClipsFunc: func(ctx context.Context, digestID string) ([]model.DigestClip, error) {
			return []model.DigestClip{{ID: "c1", Position: 0}, {ID: "c2", Position: 1}}, nil
		},
	}
	llm := &fakeLLM{text: "only one script, no delimiter"}

	n := New(repo, llm, &ttsclient.Mock{}, &objectstore.Mock{})
	_, result := n.ProduceNarration(context.Background(), "d1")

	require.True(t, result.IsTerminal())
	require.Equal(t, "missing-narration", result.Reason())
}

func TestEstimateDurationUsesFallbackRate(t *testing.T) {
	// Ten words at 2.5 words/sec should estimate to 4 seconds.
	got := estimateDuration("one two three four five six seven eight nine ten")
	require.InDelta(t, 4.0, got, 0.001)
}
