package repository

import (
	"context"
	"testing"
	"time"

	"github.com/terrapper/poddigest/internal/model"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(context.Background(), "file::memory:?cache=shared")
	if err != nil {
		t.Fatalf("open repo: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestUpsertEpisodeIsIdempotent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.UpsertPodcast(ctx, model.Podcast{ID: "p1", Title: "Show", FeedURL: "https://example.com/feed.xml"}); err != nil {
		t.Fatalf("upsert podcast: %v", err)
	}

	ep := model.Episode{
		ID: "e1", PodcastID: "p1", Title: "Ep 1", AudioURL: "https://example.com/e1.mp3",
		PublishedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), DurationSec: 1800, GUID: "guid-1",
	}

	got, isNew, err := repo.UpsertEpisode(ctx, ep)
	if err != nil {
		t.Fatalf("upsert episode: %v", err)
	}
	if !isNew {
		t.Error("expected first upsert to be new")
	}
	if got.TranscriptStatus != model.TranscriptPending {
		t.Errorf("got status %q, want pending", got.TranscriptStatus)
	}

	_, isNew, err = repo.UpsertEpisode(ctx, ep)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if isNew {
		t.Error("expected second upsert on same (podcastId, guid) to be a no-op")
	}
}

func TestSetDigestStatusRejectsStaleVersion(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	d, err := repo.CreateDigest(ctx, model.Digest{
		ID: "d1", UserID: "u1", ConfigID: "c1",
		WeekStart: time.Now().AddDate(0, 0, -7), WeekEnd: time.Now(),
	})
	if err != nil {
		t.Fatalf("create digest: %v", err)
	}
	if d.Status != model.DigestPending {
		t.Errorf("got status %q, want pending", d.Status)
	}

	if err := repo.SetDigestStatus(ctx, d.ID, model.DigestCrawling, "", d.Version); err != nil {
		t.Fatalf("first status write: %v", err)
	}

	// Same (now stale) expected version must be rejected.
	if err := repo.SetDigestStatus(ctx, d.ID, model.DigestTranscribing, "", d.Version); err != ErrVersionConflict {
		t.Errorf("got %v, want ErrVersionConflict", err)
	}

	updated, err := repo.FindDigestForUpdate(ctx, d.ID)
	if err != nil {
		t.Fatalf("find digest: %v", err)
	}
	if updated.Status != model.DigestCrawling {
		t.Errorf("got status %q, want crawling (rejected write must not apply)", updated.Status)
	}
}

func TestAppendClipAndListClipsOrdering(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.CreateDigest(ctx, model.Digest{ID: "d1", UserID: "u1", ConfigID: "c1", WeekStart: time.Now(), WeekEnd: time.Now()}); err != nil {
		t.Fatalf("create digest: %v", err)
	}

	clips := []model.DigestClip{
		{ID: "clip-2", DigestID: "d1", EpisodeID: "e1", StartSec: 100, EndSec: 200, Score: 70, Position: 1},
		{ID: "clip-1", DigestID: "d1", EpisodeID: "e1", StartSec: 0, EndSec: 90, Score: 80, Position: 0},
	}
	for _, c := range clips {
		if err := repo.AppendClip(ctx, c); err != nil {
			t.Fatalf("append clip %s: %v", c.ID, err)
		}
	}

	got, err := repo.ListClips(ctx, "d1")
	if err != nil {
		t.Fatalf("list clips: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d clips, want 2", len(got))
	}
	if got[0].ID != "clip-1" || got[1].ID != "clip-2" {
		t.Errorf("clips not ordered by position: %v", got)
	}
}

func TestHasNonTerminalDigest(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	has, err := repo.HasNonTerminalDigest(ctx, "c1")
	if err != nil {
		t.Fatalf("has non-terminal: %v", err)
	}
	if has {
		t.Error("expected no non-terminal digest before any exist")
	}

	d, err := repo.CreateDigest(ctx, model.Digest{ID: "d1", UserID: "u1", ConfigID: "c1", WeekStart: time.Now(), WeekEnd: time.Now()})
	if err != nil {
		t.Fatalf("create digest: %v", err)
	}

	has, err = repo.HasNonTerminalDigest(ctx, "c1")
	if err != nil {
		t.Fatalf("has non-terminal: %v", err)
	}
	if !has {
		t.Error("expected a pending digest to count as non-terminal")
	}

	if err := repo.SetDigestStatus(ctx, d.ID, model.DigestFailed, "boom", d.Version); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	has, err = repo.HasNonTerminalDigest(ctx, "c1")
	if err != nil {
		t.Fatalf("has non-terminal: %v", err)
	}
	if has {
		t.Error("expected a failed digest to not count as non-terminal")
	}
}
