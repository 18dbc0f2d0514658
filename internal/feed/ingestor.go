package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/terrapper/poddigest/internal/model"
	"github.com/terrapper/poddigest/internal/repository"
	"github.com/terrapper/poddigest/internal/stageresult"
)

// defaultLastCrawledWindow is used when a podcast has never been crawled:
// only episodes published within this window are considered new.
const defaultLastCrawledWindow = 7 * 24 * time.Hour

// fallbackEpisodeLimit bounds the "zero new episodes" fallback (§4.D).
const fallbackEpisodeLimit = 50

// Ingestor crawls subscribed feeds and upserts discovered episodes.
type Ingestor struct {
	repo   repository.Repository
	client *http.Client
}

// NewIngestor builds an Ingestor. A nil client defaults to a 30s timeout,
// matching the pack's feed-fetching convention.
func NewIngestor(repo repository.Repository, client *http.Client) *Ingestor {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Ingestor{repo: repo, client: client}
}

// CrawlForUser implements §4.D crawlForUser(userId) -> [newEpisodeId].
// weekStart bounds the zero-new-episodes fallback window.
func (in *Ingestor) CrawlForUser(ctx context.Context, userID string, weekStart time.Time) ([]string, stageresult.Result) {
	subs, err := in.repo.ListActiveSubscriptions(ctx, userID)
	if err != nil {
		return nil, stageresult.Failedf("list subscriptions: %v", err)
	}
	if len(subs) == 0 {
		return nil, stageresult.Failed("no-episodes", nil)
	}

	var newEpisodeIDs []string
	var failures []stageresult.ItemFailure
	var podcastIDs []string
	crawled := 0

	for _, sub := range subs {
		podcastIDs = append(podcastIDs, sub.PodcastID)

		podcast, err := in.repo.GetPodcast(ctx, sub.PodcastID)
		if err != nil {
			failures = append(failures, stageresult.ItemFailure{ItemID: sub.PodcastID, Err: err})
			continue
		}

		ids, err := in.crawlOnePodcast(ctx, podcast)
		if err != nil {
			slog.Warn("feed crawl failed, skipping", "podcast_id", podcast.ID, "feed_url", podcast.FeedURL, "error", err)
			failures = append(failures, stageresult.ItemFailure{ItemID: podcast.ID, Err: err})
			continue
		}
		crawled++
		newEpisodeIDs = append(newEpisodeIDs, ids...)
	}

	// A failed feed is a per-item failure only; when no feed was crawled
	// successfully the fallback is not used.
	if crawled == 0 {
		return nil, stageresult.Failed("no-episodes", failures)
	}

	if len(newEpisodeIDs) == 0 {
		fallback, err := in.repo.ListEpisodesPublishedSince(ctx, podcastIDs, weekStart, fallbackEpisodeLimit)
		if err != nil {
			return nil, stageresult.Failedf("fallback lookup: %v", err)
		}
		if len(fallback) == 0 {
			return nil, stageresult.Failed("no-episodes", failures)
		}
		for _, ep := range fallback {
			newEpisodeIDs = append(newEpisodeIDs, ep.ID)
		}
	}

	if len(failures) > 0 {
		return newEpisodeIDs, stageresult.PartialOK(failures)
	}
	return newEpisodeIDs, stageresult.Ok()
}

func (in *Ingestor) crawlOnePodcast(ctx context.Context, podcast model.Podcast) ([]string, error) {
	body, err := in.fetch(ctx, podcast.FeedURL)
	if err != nil {
		return nil, err
	}

	title, _, items, err := parseFeed(body)
	if err != nil {
		return nil, err
	}
	if title != "" && title != podcast.Title {
		podcast.Title = title
	}

	cutoff := podcast.LastCrawledAt
	if cutoff == nil {
		t := time.Now().Add(-defaultLastCrawledWindow)
		cutoff = &t
	}

	var newIDs []string
	for _, item := range items {
		if !item.PublishedAt.IsZero() && !item.PublishedAt.After(*cutoff) {
			continue
		}
		ep, isNew, err := in.repo.UpsertEpisode(ctx, model.Episode{
			ID:          uuid.NewString(),
			PodcastID:   podcast.ID,
			Title:       item.Title,
			AudioURL:    item.AudioURL,
			PublishedAt: item.PublishedAt,
			DurationSec: item.DurationSec,
			GUID:        item.GUID,
		})
		if err != nil {
			return nil, fmt.Errorf("upsert episode %s: %w", item.GUID, err)
		}
		if isNew {
			newIDs = append(newIDs, ep.ID)
		}
	}

	now := time.Now()
	podcast.LastCrawledAt = &now
	if _, err := in.repo.UpsertPodcast(ctx, podcast); err != nil {
		return nil, fmt.Errorf("update last crawled: %w", err)
	}

	return newIDs, nil
}

func (in *Ingestor) fetch(ctx context.Context, feedURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "PodDigest Feed Crawler/1.0")

	resp, err := in.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read feed body: %w", err)
	}
	return body, nil
}
