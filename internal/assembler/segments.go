package assembler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/terrapper/poddigest/internal/ffmpegutil"
	"github.com/terrapper/poddigest/internal/model"
)

// segment is one entry in the final concat playlist.
type segment struct {
	path        string
	durationSec float64
	isClip      bool
	episodeID   string
	title       string
}

// sequencePlan is the fully ordered playlist plus the shared gap file every
// gap marker in segments resolves to (§4.H steps 3-4).
type sequencePlan struct {
	segments    []segment
	gapPath     string // filled in by materializeGaps
	gapDuration time.Duration
}

const gapMarker = "__gap__"

// extractClips renders every clip's [start, end) window from its episode
// source into its own file (§4.H step 2), keyed by clip id.
func (a *Assembler) extractClips(ctx context.Context, work string, clips []model.DigestClip, sources map[string]string) (map[string]string, error) {
	paths := make(map[string]string, len(clips))
	for _, c := range clips {
		src, ok := sources[c.EpisodeID]
		if !ok {
			return nil, fmt.Errorf("no source resolved for episode %s", c.EpisodeID)
		}
		dst := filepath.Join(work, fmt.Sprintf("clip-%d-%s.mp3", c.Position, c.ID))
		start := time.Duration(c.StartSec * float64(time.Second))
		end := time.Duration(c.EndSec * float64(time.Second))
		if err := ffmpegutil.ExtractClip(ctx, src, dst, start, end, fadeIn, fadeOut); err != nil {
			return nil, fmt.Errorf("extract clip %s: %w", c.ID, err)
		}
		paths[c.ID] = dst
	}
	return paths, nil
}

// buildSequence interleaves narration and clip segments into playback order
// with gap placeholders between every pair (§4.H step 3), and selects the
// gap duration for cfg's transitionStyle (§4.H step 4).
func buildSequence(style model.TransitionStyle, narrations []NarrationInput, narrationPaths map[int]string, clips []model.DigestClip, clipPaths map[string]string) (*sequencePlan, error) {
	narrationByPos := make(map[int]NarrationInput, len(narrations))
	for _, n := range narrations {
		narrationByPos[n.Position] = n
	}

	intro, ok := narrationByPos[0]
	if !ok {
		return nil, fmt.Errorf("missing intro narration at position 0")
	}
	outroPos := len(clips) + 1
	outro, ok := narrationByPos[outroPos]
	if !ok {
		return nil, fmt.Errorf("missing outro narration at position %d", outroPos)
	}

	plan := &sequencePlan{gapDuration: gapDurationFor(style)}
	appendSeg := func(path string, dur float64, isClip bool, episodeID, title string) {
		plan.segments = append(plan.segments, segment{path: path, durationSec: dur, isClip: isClip, episodeID: episodeID, title: title})
	}
	appendGap := func() {
		plan.segments = append(plan.segments, segment{path: gapMarker, durationSec: plan.gapDuration.Seconds()})
	}

	introPath, ok := narrationPaths[0]
	if !ok {
		return nil, fmt.Errorf("missing downloaded intro narration audio")
	}
	appendSeg(introPath, intro.DurationSec, false, "", "")

	for i, c := range clips {
		transitionPos := i + 1
		transition, ok := narrationByPos[transitionPos]
		if !ok {
			return nil, fmt.Errorf("missing transition narration at position %d", transitionPos)
		}
		transitionPath, ok := narrationPaths[transitionPos]
		if !ok {
			return nil, fmt.Errorf("missing downloaded transition narration audio at position %d", transitionPos)
		}
		clipPath, ok := clipPaths[c.ID]
		if !ok {
			return nil, fmt.Errorf("missing extracted clip audio for %s", c.ID)
		}

		appendGap()
		appendSeg(transitionPath, transition.DurationSec, false, "", "")
		appendGap()
		appendSeg(clipPath, c.Duration(), true, c.EpisodeID, "")
	}

	outroPath, ok := narrationPaths[outroPos]
	if !ok {
		return nil, fmt.Errorf("missing downloaded outro narration audio")
	}
	appendGap()
	appendSeg(outroPath, outro.DurationSec, false, "", "")

	return plan, nil
}

func gapDurationFor(style model.TransitionStyle) time.Duration {
	if style == model.TransitionSilence {
		return silenceGap
	}
	return stingerTotalGap
}

// materializeGaps renders the single reusable gap file (plain silence, or a
// stinger bracketed by silence) that every gap marker in the plan resolves
// to (§4.H step 4).
func (a *Assembler) materializeGaps(ctx context.Context, work string, plan *sequencePlan) error {
	gapPath := filepath.Join(work, "gap.mp3")

	if plan.gapDuration == silenceGap && hasOnlySilenceGaps(plan) {
		if err := ffmpegutil.GenerateSilence(ctx, gapPath, silenceGap); err != nil {
			return fmt.Errorf("generate silence gap: %w", err)
		}
		plan.gapPath = gapPath
		return nil
	}

	silenceSidePath := filepath.Join(work, "gap-silence-side.mp3")
	stingerPath := filepath.Join(work, "gap-stinger.mp3")
	if err := ffmpegutil.GenerateSilence(ctx, silenceSidePath, bumperSideGap); err != nil {
		return fmt.Errorf("generate bumper silence: %w", err)
	}
	if err := ffmpegutil.GenerateStinger(ctx, stingerPath, bumperTone); err != nil {
		return fmt.Errorf("generate bumper stinger: %w", err)
	}

	listPath := filepath.Join(work, "gap-list.txt")
	if err := writeConcatList(listPath, []string{silenceSidePath, stingerPath, silenceSidePath}); err != nil {
		return err
	}
	if err := ffmpegutil.Concat(ctx, listPath, gapPath); err != nil {
		return fmt.Errorf("concat bumper gap: %w", err)
	}
	plan.gapPath = gapPath
	return nil
}

func hasOnlySilenceGaps(plan *sequencePlan) bool {
	return plan.gapDuration == silenceGap
}

// concatPlan writes the full ordered playlist to outPath via ffmpeg's
// concat demuxer, resolving every gap marker to the plan's shared gap file.
func concatPlan(ctx context.Context, work string, plan *sequencePlan, outPath string) error {
	files := make([]string, 0, len(plan.segments))
	for _, s := range plan.segments {
		if s.path == gapMarker {
			files = append(files, plan.gapPath)
			continue
		}
		files = append(files, s.path)
	}

	listPath := filepath.Join(work, "playlist.txt")
	if err := writeConcatList(listPath, files); err != nil {
		return err
	}
	return ffmpegutil.Concat(ctx, listPath, outPath)
}

func writeConcatList(listPath string, files []string) error {
	f, err := os.Create(listPath)
	if err != nil {
		return fmt.Errorf("create concat list: %w", err)
	}
	defer f.Close()
	for _, p := range files {
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("resolve concat entry %s: %w", p, err)
		}
		if _, err := fmt.Fprintf(f, "file '%s'\n", abs); err != nil {
			return fmt.Errorf("write concat entry: %w", err)
		}
	}
	return nil
}

// normalizeLoudness runs the two-pass EBU R128 correction (§4.H step 5).
func normalizeLoudness(ctx context.Context, inPath, outPath string) error {
	m, err := ffmpegutil.MeasureLoudness(ctx, inPath, targetLUFS, targetTruePeak, targetLRA)
	if err != nil {
		return fmt.Errorf("measure loudness: %w", err)
	}
	if err := ffmpegutil.CorrectLoudness(ctx, inPath, outPath, m, targetLUFS, targetTruePeak, targetLRA); err != nil {
		return fmt.Errorf("correct loudness: %w", err)
	}
	return nil
}
