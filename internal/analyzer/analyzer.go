package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/terrapper/poddigest/internal/model"
	"github.com/terrapper/poddigest/internal/repository"
	"github.com/terrapper/poddigest/internal/stageresult"
)

// maxConcurrentScoring bounds outstanding LLM calls during candidate
// generation (§5 "bounded to <= 5 concurrent LLM calls").
const maxConcurrentScoring = 5

// interBatchDelay is the pause between batches of concurrent scoring calls,
// respecting provider rate limits (§5 "~200 ms").
const interBatchDelay = 200 * time.Millisecond

// Analyzer implements the candidate scoring and selection engine (§4.F).
type Analyzer struct {
	repo    repository.Repository
	llm     LLM
	limiter *rate.Limiter
}

// New builds an Analyzer. limiter may be nil to disable outstanding-request
// throttling beyond the concurrency cap.
func New(repo repository.Repository, llm LLM, limiter *rate.Limiter) *Analyzer {
	return &Analyzer{repo: repo, llm: llm, limiter: limiter}
}

// Analyze implements §4.F analyze(digestId, episodeIds, userPrefs?) -> [clipId].
func (a *Analyzer) Analyze(ctx context.Context, digestID string, episodeIDs []string, cfg model.DigestConfig) ([]string, stageresult.Result) {
	allCandidates, meta, failures := a.generateAllCandidates(ctx, episodeIDs)

	eligible := filterByThreshold(allCandidates)
	b := newBudget(cfg)
	chosen := selectClips(eligible, b)

	if len(chosen) == 0 {
		return nil, stageresult.Failed("no-viable-clips", failures)
	}

	ordered := order(cfg.Structure, chosen, meta)

	clipIDs := make([]string, 0, len(ordered))
	for i, c := range ordered {
		clip := model.DigestClip{
			ID:              uuid.NewString(),
			DigestID:        digestID,
			EpisodeID:       c.EpisodeID,
			StartSec:        c.StartSec,
			EndSec:          c.EndSec,
			Score:           c.score,
			ScoreDimensions: c.Dims,
			Position:        i,
		}
		if err := a.repo.AppendClip(ctx, clip); err != nil {
			return nil, stageresult.Failedf("append clip: %v", err)
		}
		clipIDs = append(clipIDs, clip.ID)
	}

	if err := a.repo.SetDigestClipCount(ctx, digestID, len(clipIDs)); err != nil {
		return nil, stageresult.Failedf("set clip count: %v", err)
	}

	if len(failures) > 0 {
		return clipIDs, stageresult.PartialOK(failures)
	}
	return clipIDs, stageresult.Ok()
}

// generateAllCandidates scores every completed transcript's regions in
// bounded-concurrency batches. An episode whose candidate generation fails
// (after retry) is recorded as a per-item failure and simply contributes no
// candidates; it does not abort the others.
func (a *Analyzer) generateAllCandidates(ctx context.Context, episodeIDs []string) ([]Candidate, map[string]episodeMeta, []stageresult.ItemFailure) {
	var (
		mu         sync.Mutex
		candidates []Candidate
		failures   []stageresult.ItemFailure
		meta       = map[string]episodeMeta{}
	)

	for start := 0; start < len(episodeIDs); start += maxConcurrentScoring {
		end := start + maxConcurrentScoring
		if end > len(episodeIDs) {
			end = len(episodeIDs)
		}
		batch := episodeIDs[start:end]

		var wg sync.WaitGroup
		for _, episodeID := range batch {
			wg.Add(1)
			go func(episodeID string) {
				defer wg.Done()

				if a.limiter != nil {
					if err := a.limiter.Wait(ctx); err != nil {
						mu.Lock()
						failures = append(failures, stageresult.ItemFailure{ItemID: episodeID, Err: err})
						mu.Unlock()
						return
					}
				}

				cs, podcastTitle, err := a.scoreEpisodeWithRetry(ctx, episodeID)

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					slog.Warn("candidate generation failed for episode", "episode_id", episodeID, "error", err)
					failures = append(failures, stageresult.ItemFailure{ItemID: episodeID, Err: err})
					return
				}
				candidates = append(candidates, cs...)
				meta[episodeID] = episodeMeta{PodcastTitle: podcastTitle}
			}(episodeID)
		}
		wg.Wait()

		if end < len(episodeIDs) {
			select {
			case <-ctx.Done():
				return candidates, meta, failures
			case <-time.After(interBatchDelay):
			}
		}
	}

	return candidates, meta, failures
}

// scoreEpisodeWithRetry fetches an episode's transcript and podcast title,
// then generates candidates with exponential-backoff retry on transient
// LLM failures (§4.F "transient LLM errors are retried with backoff").
func (a *Analyzer) scoreEpisodeWithRetry(ctx context.Context, episodeID string) ([]Candidate, string, error) {
	transcript, err := a.repo.FindCompletedTranscript(ctx, episodeID)
	if err != nil {
		return nil, "", fmt.Errorf("find completed transcript: %w", err)
	}
	if transcript == nil {
		return nil, "", fmt.Errorf("no completed transcript for episode %s", episodeID)
	}

	episode, err := a.repo.GetEpisode(ctx, episodeID)
	if err != nil {
		return nil, "", fmt.Errorf("get episode: %w", err)
	}
	podcast, err := a.repo.GetPodcast(ctx, episode.PodcastID)
	if err != nil {
		return nil, "", fmt.Errorf("get podcast: %w", err)
	}

	op := func() ([]Candidate, error) {
		return generateCandidates(ctx, a.llm, episodeID, *transcript)
	}

	result, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(3),
	)
	if err != nil {
		return nil, "", fmt.Errorf("score candidates: %w", err)
	}
	return result, podcast.Title, nil
}
