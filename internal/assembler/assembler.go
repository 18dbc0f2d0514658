// Package assembler is the most intricate pipeline stage (§4.H): it
// extracts clip audio from episode sources, interleaves narration, applies
// transitions, loudness-normalizes, tags, and uploads the final digest MP3.
// All work for one digest happens inside its own scratch directory, which
// is removed on every exit path.
package assembler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/terrapper/poddigest/internal/ffmpegutil"
	"github.com/terrapper/poddigest/internal/model"
	"github.com/terrapper/poddigest/internal/objectstore"
	"github.com/terrapper/poddigest/internal/repository"
	"github.com/terrapper/poddigest/internal/stageresult"
)

// Loudness targets for the two-pass correction (§4.H step 5 / §6).
const (
	targetLUFS     = -16.0
	targetTruePeak = -1.5
	targetLRA      = 11.0
)

// Fade timings applied to every extracted clip (§4.H step 2).
const (
	fadeIn  = 100 * time.Millisecond
	fadeOut = 300 * time.Millisecond
)

// Inter-segment gaps (§4.H step 4).
const (
	silenceGap     = 500 * time.Millisecond
	bumperSideGap  = 150 * time.Millisecond
	bumperTone     = 300 * time.Millisecond
	stingerTotalGap = bumperSideGap + bumperTone + bumperSideGap // 600ms
)

// NarrationInput is the assemble queue job's view of one narration segment,
// produced by the narrator stage and carried on the assemble job payload
// (§6 `assemble` queue shape).
type NarrationInput struct {
	Position    int
	Type        string // "intro" | "transition" | "outro"
	ObjectKey   string
	DurationSec float64
}

// Result is what assemble(digestId, narrationAudios) returns on success.
type Result struct {
	AudioObjectKey   string
	TotalDurationSec float64
	Chapters         []model.Chapter
}

// Assembler renders one digest's final audio artifact.
type Assembler struct {
	repo       repository.Repository
	store      objectstore.Storage
	fetcher    SourceFetcher
	scratchDir string // base directory under which per-digest work dirs are created
	cacheDir   string // base directory for the cross-attempt episode source cache
}

// New builds an Assembler. scratchBase and cacheBase default to
// subdirectories of os.TempDir() when empty.
func New(repo repository.Repository, store objectstore.Storage, fetcher SourceFetcher, scratchBase, cacheBase string) *Assembler {
	if scratchBase == "" {
		scratchBase = filepath.Join(os.TempDir(), "poddigest-assembly")
	}
	if cacheBase == "" {
		cacheBase = filepath.Join(os.TempDir(), "poddigest-source-cache")
	}
	return &Assembler{repo: repo, store: store, fetcher: fetcher, scratchDir: scratchBase, cacheDir: cacheBase}
}

// Assemble implements §4.H assemble(digestId, narrationAudios) ->
// {audioObjectKey, totalDurationSec, chapters}.
func (a *Assembler) Assemble(ctx context.Context, digestID string, narrations []NarrationInput) (Result, stageresult.Result) {
	digest, err := a.repo.FindDigestForUpdate(ctx, digestID)
	if err != nil {
		return Result{}, stageresult.Failedf("load digest: %v", err)
	}
	cfg, err := a.repo.GetConfig(ctx, digest.ConfigID)
	if err != nil {
		return Result{}, stageresult.Failedf("load config: %v", err)
	}
	clips, err := a.repo.ListClips(ctx, digestID)
	if err != nil {
		return Result{}, stageresult.Failedf("list clips: %v", err)
	}
	if len(clips) == 0 {
		return Result{}, stageresult.Failed("render-failed", nil)
	}
	sort.Slice(clips, func(i, j int) bool { return clips[i].Position < clips[j].Position })
	sort.Slice(narrations, func(i, j int) bool { return narrations[i].Position < narrations[j].Position })

	work := filepath.Join(a.scratchDir, digestID+"-"+uuid.NewString())
	if err := os.MkdirAll(work, 0o755); err != nil {
		return Result{}, stageresult.Failedf("create scratch dir: %v", err)
	}
	defer func() {
		if err := os.RemoveAll(work); err != nil {
			slog.Warn("scratch dir cleanup failed", "dir", work, "error", err)
		}
	}()

	// Step 1: source acquisition.
	sources, err := a.acquireSources(ctx, clips)
	if err != nil {
		return Result{}, stageresult.Failed("render-failed", []stageresult.ItemFailure{{ItemID: digestID, Err: err}})
	}
	narrationPaths, err := a.downloadNarrations(ctx, work, narrations)
	if err != nil {
		return Result{}, stageresult.Failed("render-failed", []stageresult.ItemFailure{{ItemID: digestID, Err: err}})
	}

	// Step 2: clip extraction.
	clipPaths, err := a.extractClips(ctx, work, clips, sources)
	if err != nil {
		return Result{}, stageresult.Failed("render-failed", []stageresult.ItemFailure{{ItemID: digestID, Err: err}})
	}

	// Step 3+4: sequence and concatenate.
	plan, err := buildSequence(cfg.TransitionStyle, narrations, narrationPaths, clips, clipPaths)
	if err != nil {
		return Result{}, stageresult.Failedf("build sequence: %v", err)
	}
	if err := a.materializeGaps(ctx, work, plan); err != nil {
		return Result{}, stageresult.Failed("render-failed", []stageresult.ItemFailure{{ItemID: digestID, Err: err}})
	}

	rawPath := filepath.Join(work, "concat-raw.mp3")
	if err := concatPlan(ctx, work, plan, rawPath); err != nil {
		return Result{}, stageresult.Failed("render-failed", []stageresult.ItemFailure{{ItemID: digestID, Err: err}})
	}

	// Step 5: loudness normalization.
	normalizedPath := filepath.Join(work, "normalized.mp3")
	if err := normalizeLoudness(ctx, rawPath, normalizedPath); err != nil {
		return Result{}, stageresult.Failed("render-failed", []stageresult.ItemFailure{{ItemID: digestID, Err: err}})
	}

	// Step 6: chapter index (analytical, clamped to probed duration below).
	chapters, _ := computeChapters(plan, a.podcastAndEpisodeTitles(ctx, clips))

	// Step 7: tagging.
	taggedPath := filepath.Join(work, "final.mp3")
	tags := ffmpegutil.Tags{
		Title:  digest.Title,
		Artist: "PodDigest",
		Album:  fmt.Sprintf("Week of %s", digest.WeekStart.Format("2006-01-02")),
		Genre:  "Podcast",
		Year:   fmt.Sprintf("%d", digest.WeekStart.Year()),
	}
	if err := ffmpegutil.ApplyTags(ctx, normalizedPath, taggedPath, tags); err != nil {
		return Result{}, stageresult.Failed("render-failed", []stageresult.ItemFailure{{ItemID: digestID, Err: err}})
	}

	actualDuration, err := ffmpegutil.Probe(ctx, taggedPath)
	if err != nil {
		return Result{}, stageresult.Failed("render-failed", []stageresult.ItemFailure{{ItemID: digestID, Err: err}})
	}
	totalDurationSec := actualDuration.Seconds()
	if len(chapters) > 0 && chapters[len(chapters)-1].EndSec > totalDurationSec {
		chapters[len(chapters)-1].EndSec = totalDurationSec
	}

	// Step 8: upload.
	key := fmt.Sprintf("digests/%s/digest.mp3", digestID)
	f, err := os.Open(taggedPath)
	if err != nil {
		return Result{}, stageresult.Failedf("open final render: %v", err)
	}
	defer f.Close()

	if err := a.store.Put(ctx, key, f, "audio/mpeg", map[string]string{
		"digestId":         digestID,
		"clipCount":        fmt.Sprintf("%d", len(clips)),
		"totalDurationSec": fmt.Sprintf("%.2f", totalDurationSec),
	}); err != nil {
		return Result{}, stageresult.Failedf("upload final render: %v", err)
	}

	return Result{
		AudioObjectKey:   key,
		TotalDurationSec: totalDurationSec,
		Chapters:         chapters,
	}, stageresult.Ok()
}

func (a *Assembler) downloadNarrations(ctx context.Context, work string, narrations []NarrationInput) (map[int]string, error) {
	paths := make(map[int]string, len(narrations))
	for _, n := range narrations {
		rc, err := a.store.Get(ctx, n.ObjectKey)
		if err != nil {
			return nil, fmt.Errorf("fetch narration %s: %w", n.ObjectKey, err)
		}
		dst := filepath.Join(work, fmt.Sprintf("narration-%d-%s.mp3", n.Position, n.Type))
		if err := writeStream(dst, rc); err != nil {
			return nil, fmt.Errorf("save narration %s: %w", n.ObjectKey, err)
		}
		paths[n.Position] = dst
	}
	return paths, nil
}

func writeStream(dst string, rc io.ReadCloser) error {
	defer rc.Close()
	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(f, rc)
	return err
}

// podcastAndEpisodeTitles resolves the {episodeId -> "podcast: episode"}
// lookup used for chapter titles (§4.H step 6), tolerating lookup failures
// by falling back to the episode title when the podcast cannot be loaded,
// and to the episode id when the episode cannot be loaded.
func (a *Assembler) podcastAndEpisodeTitles(ctx context.Context, clips []model.DigestClip) map[string]string {
	titles := make(map[string]string, len(clips))
	seen := map[string]bool{}
	for _, c := range clips {
		if seen[c.EpisodeID] {
			continue
		}
		seen[c.EpisodeID] = true

		episode, err := a.repo.GetEpisode(ctx, c.EpisodeID)
		if err != nil {
			titles[c.EpisodeID] = c.EpisodeID
			continue
		}
		podcast, err := a.repo.GetPodcast(ctx, episode.PodcastID)
		if err != nil {
			titles[c.EpisodeID] = episode.Title
			continue
		}
		titles[c.EpisodeID] = podcast.Title + ": " + episode.Title
	}
	return titles
}
