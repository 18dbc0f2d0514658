package transcriber

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/terrapper/poddigest/internal/model"
	"github.com/terrapper/poddigest/internal/repository"
	"github.com/terrapper/poddigest/internal/stageresult"
)

// Transcriber drives Provider for each episode of a stage job and
// normalizes its response into a stored Transcript.
type Transcriber struct {
	repo     repository.Repository
	provider Provider
}

// New builds a Transcriber.
func New(repo repository.Repository, provider Provider) *Transcriber {
	return &Transcriber{repo: repo, provider: provider}
}

// TranscribeEpisodes implements the stage job contract of §4.E: episodes are
// processed one at a time, per-episode failures are collected, and the
// stage only fails when zero episodes transcribe successfully.
func (t *Transcriber) TranscribeEpisodes(ctx context.Context, episodeIDs []string) stageresult.Result {
	var failures []stageresult.ItemFailure
	succeeded := 0

	for _, episodeID := range episodeIDs {
		if err := t.transcribeOne(ctx, episodeID); err != nil {
			slog.Warn("episode transcription failed", "episode_id", episodeID, "error", err)
			failures = append(failures, stageresult.ItemFailure{ItemID: episodeID, Err: err})
			continue
		}
		succeeded++
	}

	if succeeded == 0 && len(episodeIDs) > 0 {
		return stageresult.Failed("empty-transcript", failures)
	}
	if len(failures) > 0 {
		return stageresult.PartialOK(failures)
	}
	return stageresult.Ok()
}

// transcribeOne implements §4.E transcribe(episodeId) for one episode.
func (t *Transcriber) transcribeOne(ctx context.Context, episodeID string) error {
	existing, err := t.repo.FindCompletedTranscript(ctx, episodeID)
	if err != nil {
		return fmt.Errorf("lookup existing transcript: %w", err)
	}
	if existing != nil {
		return nil
	}

	episode, err := t.repo.GetEpisode(ctx, episodeID)
	if err != nil {
		return fmt.Errorf("get episode: %w", err)
	}

	if err := t.repo.SetEpisodeTranscriptStatus(ctx, episodeID, model.TranscriptProcessing); err != nil {
		return fmt.Errorf("set processing status: %w", err)
	}

	resp, err := t.provider.Transcribe(ctx, episode.AudioURL)
	if err != nil {
		t.markFailed(ctx, episodeID, err.Error())
		return fmt.Errorf("provider transcribe: %w", err)
	}

	segments := normalizeSegments(resp)
	if len(segments) == 0 {
		t.markFailed(ctx, episodeID, "empty-transcript")
		return fmt.Errorf("empty-transcript")
	}

	transcript := model.Transcript{
		EpisodeID: episodeID,
		FullText:  resp.FullText,
		Segments:  segments,
		Language:  resp.Language,
		Status:    model.TranscriptCompleted,
	}
	if err := t.repo.SaveTranscript(ctx, transcript); err != nil {
		return fmt.Errorf("save transcript: %w", err)
	}
	if err := t.repo.SetEpisodeTranscriptStatus(ctx, episodeID, model.TranscriptCompleted); err != nil {
		return fmt.Errorf("set completed status: %w", err)
	}
	return nil
}

func (t *Transcriber) markFailed(ctx context.Context, episodeID, reason string) {
	if err := t.repo.SaveTranscript(ctx, model.Transcript{
		EpisodeID: episodeID,
		Status:    model.TranscriptFailed,
		Error:     reason,
	}); err != nil {
		slog.Warn("failed to persist failed transcript state", "episode_id", episodeID, "error", err)
	}
	if err := t.repo.SetEpisodeTranscriptStatus(ctx, episodeID, model.TranscriptFailed); err != nil {
		slog.Warn("failed to set episode transcript status", "episode_id", episodeID, "error", err)
	}
}
