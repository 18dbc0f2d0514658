package transcriber

import (
	"context"
	"errors"
	"testing"

	"github.com/terrapper/poddigest/internal/model"
	"github.com/terrapper/poddigest/internal/repository"
	"github.com/terrapper/poddigest/internal/stageresult"
)

func TestTranscribeEpisodesSkipsExistingCompletedTranscript(t *testing.T) {
	calledProvider := false
	repo := &repository.Mock{
		FindCompletedTranscriptFunc: func(ctx context.Context, episodeID string) (*model.Transcript, error) {
			return &model.Transcript{EpisodeID: episodeID, Status: model.TranscriptCompleted}, nil
		},
	}
	provider := &MockProvider{
		TranscribeFunc: func(ctx context.Context, audioURL string) (ProviderResponse, error) {
			calledProvider = true
			return ProviderResponse{}, nil
		},
	}

	tr := New(repo, provider)
	result := tr.TranscribeEpisodes(context.Background(), []string{"e1"})

	if result.Kind() != stageresult.OK {
		t.Fatalf("got kind %v, failures %v", result.Kind(), result.Failures())
	}
	if calledProvider {
		t.Error("provider should not be called for an already-completed transcript")
	}
}

func TestTranscribeEpisodesFailsEmptyTranscript(t *testing.T) {
	repo := &repository.Mock{
		FindCompletedTranscriptFunc: func(ctx context.Context, episodeID string) (*model.Transcript, error) {
			return nil, nil
		},
		GetEpisodeFunc: func(ctx context.Context, id string) (model.Episode, error) {
			return model.Episode{ID: id, AudioURL: "https://example.com/e.mp3"}, nil
		},
		SetEpisodeTranscriptStatusFunc: func(ctx context.Context, episodeID string, status model.TranscriptStatus) error {
			return nil
		},
		SaveTranscriptFunc: func(ctx context.Context, tr model.Transcript) error { return nil },
	}
	provider := &MockProvider{
		TranscribeFunc: func(ctx context.Context, audioURL string) (ProviderResponse, error) {
			return ProviderResponse{}, nil
		},
	}

	tr := New(repo, provider)
	result := tr.TranscribeEpisodes(context.Background(), []string{"e1"})

	if result.Kind() != stageresult.StageFailure {
		t.Fatalf("got kind %v, want StageFailure (zero episodes succeeded)", result.Kind())
	}
	if len(result.Failures()) != 1 {
		t.Errorf("got %d failures, want 1", len(result.Failures()))
	}
}

func TestTranscribeEpisodesPartialFailureDoesNotFailStage(t *testing.T) {
	repo := &repository.Mock{
		FindCompletedTranscriptFunc: func(ctx context.Context, episodeID string) (*model.Transcript, error) {
			return nil, nil
		},
		GetEpisodeFunc: func(ctx context.Context, id string) (model.Episode, error) {
			if id == "bad" {
				return model.Episode{}, errors.New("boom")
			}
			return model.Episode{ID: id, AudioURL: "https://example.com/e.mp3"}, nil
		},
		SetEpisodeTranscriptStatusFunc: func(ctx context.Context, episodeID string, status model.TranscriptStatus) error {
			return nil
		},
		SaveTranscriptFunc: func(ctx context.Context, tr model.Transcript) error { return nil },
	}
	provider := &MockProvider{
		TranscribeFunc: func(ctx context.Context, audioURL string) (ProviderResponse, error) {
			return ProviderResponse{Utterances: []Utterance{{StartSec: 0, EndSec: 1, Text: "hi"}}}, nil
		},
	}

	tr := New(repo, provider)
	result := tr.TranscribeEpisodes(context.Background(), []string{"good", "bad"})

	if result.Kind() != stageresult.PerItemFailures {
		t.Fatalf("got kind %v, want PerItemFailures", result.Kind())
	}
	if len(result.Failures()) != 1 || result.Failures()[0].ItemID != "bad" {
		t.Errorf("got failures %+v", result.Failures())
	}
}

func TestTranscribeEpisodesIsIdempotentAcrossRepeatCalls(t *testing.T) {
	saved := 0
	var completedTranscript *model.Transcript
	repo := &repository.Mock{
		FindCompletedTranscriptFunc: func(ctx context.Context, episodeID string) (*model.Transcript, error) {
			return completedTranscript, nil
		},
		GetEpisodeFunc: func(ctx context.Context, id string) (model.Episode, error) {
			return model.Episode{ID: id, AudioURL: "https://example.com/e.mp3"}, nil
		},
		SaveTranscriptFunc: func(ctx context.Context, tr model.Transcript) error {
			saved++
			if tr.Status == model.TranscriptCompleted {
				completedTranscript = &tr
			}
			return nil
		},
		SetEpisodeTranscriptStatusFunc: func(ctx context.Context, episodeID string, status model.TranscriptStatus) error {
			return nil
		},
	}
	provider := &MockProvider{
		TranscribeFunc: func(ctx context.Context, audioURL string) (ProviderResponse, error) {
			return ProviderResponse{Utterances: []Utterance{{StartSec: 0, EndSec: 1, Text: "hi"}}}, nil
		},
	}

	tr := New(repo, provider)
	tr.TranscribeEpisodes(context.Background(), []string{"e1"})
	tr.TranscribeEpisodes(context.Background(), []string{"e1"})

	if saved != 1 {
		t.Errorf("got %d saves, want 1 (second call must short-circuit)", saved)
	}
}
