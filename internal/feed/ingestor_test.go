package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/terrapper/poddigest/internal/model"
	"github.com/terrapper/poddigest/internal/repository"
	"github.com/terrapper/poddigest/internal/stageresult"
)

const sampleFeed = `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Test Show</title>
    <item>
      <title>Episode 1</title>
      <guid>guid-1</guid>
      <pubDate>Mon, 02 Jan 2026 15:04:05 +0000</pubDate>
      <enclosure url="https://example.com/ep1.mp3" type="audio/mpeg"/>
    </item>
  </channel>
</rss>`

func TestCrawlForUserUpsertsNewEpisode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleFeed))
	}))
	defer srv.Close()

	lastCrawled := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC) // before the sample item's pubDate
	podcast := model.Podcast{ID: "p1", Title: "Old Title", FeedURL: srv.URL, LastCrawledAt: &lastCrawled}
	var upserted model.Episode

	repo := &repository.Mock{
		ListActiveSubscriptionsFunc: func(ctx context.Context, userID string) ([]model.Subscription, error) {
			return []model.Subscription{{ID: "s1", UserID: userID, PodcastID: "p1", Active: true}}, nil
		},
		GetPodcastFunc: func(ctx context.Context, id string) (model.Podcast, error) { return podcast, nil },
		UpsertEpisodeFunc: func(ctx context.Context, e model.Episode) (model.Episode, bool, error) {
			upserted = e
			e.TranscriptStatus = model.TranscriptPending
			return e, true, nil
		},
		UpsertPodcastFunc: func(ctx context.Context, p model.Podcast) (model.Podcast, error) { return p, nil },
	}

	in := NewIngestor(repo, srv.Client())
	ids, result := in.CrawlForUser(context.Background(), "u1", time.Now().AddDate(0, 0, -7))

	if result.Kind() != stageresult.OK {
		t.Fatalf("got result kind %v, failures %v", result.Kind(), result.Failures())
	}
	if len(ids) != 1 {
		t.Fatalf("got %d new episode ids, want 1", len(ids))
	}
	if upserted.GUID != "guid-1" || upserted.AudioURL != "https://example.com/ep1.mp3" {
		t.Errorf("got upserted episode %+v", upserted)
	}
}

func TestCrawlForUserNoSubscriptionsFailsStage(t *testing.T) {
	repo := &repository.Mock{
		ListActiveSubscriptionsFunc: func(ctx context.Context, userID string) ([]model.Subscription, error) {
			return nil, nil
		},
	}
	in := NewIngestor(repo, nil)
	_, result := in.CrawlForUser(context.Background(), "u1", time.Now())

	if result.Kind() != stageresult.StageFailure || result.Reason() != "no-episodes" {
		t.Errorf("got kind=%v reason=%q, want StageFailure/no-episodes", result.Kind(), result.Reason())
	}
}

func TestCrawlForUserFallsBackWhenZeroNewEpisodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<rss version="2.0"><channel><title>Empty</title></channel></rss>`))
	}))
	defer srv.Close()

	fallbackEp := model.Episode{ID: "e-fallback", PodcastID: "p1"}
	repo := &repository.Mock{
		ListActiveSubscriptionsFunc: func(ctx context.Context, userID string) ([]model.Subscription, error) {
			return []model.Subscription{{ID: "s1", UserID: userID, PodcastID: "p1", Active: true}}, nil
		},
		GetPodcastFunc: func(ctx context.Context, id string) (model.Podcast, error) {
			return model.Podcast{ID: "p1", FeedURL: srv.URL}, nil
		},
		UpsertPodcastFunc: func(ctx context.Context, p model.Podcast) (model.Podcast, error) { return p, nil },
		ListEpisodesPublishedSinceFunc: func(ctx context.Context, podcastIDs []string, since time.Time, limit int) ([]model.Episode, error) {
			return []model.Episode{fallbackEp}, nil
		},
	}

	in := NewIngestor(repo, srv.Client())
	ids, result := in.CrawlForUser(context.Background(), "u1", time.Now().AddDate(0, 0, -7))

	if result.Kind() != stageresult.OK {
		t.Fatalf("got result kind %v", result.Kind())
	}
	if len(ids) != 1 || ids[0] != "e-fallback" {
		t.Errorf("got ids %v, want fallback episode", ids)
	}
}
