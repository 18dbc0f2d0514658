// Package ffmpegutil wraps the ffmpeg/ffprobe subprocess invocations the
// assembler stage composes (§4.H). It follows the pack's exec.CommandContext
// shape (the teacher's own audio processor shells out to ffmpeg the same
// way) rather than a cgo or library binding, so it runs against whatever
// ffmpeg binary is on PATH.
package ffmpegutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Probe returns the duration of the media file at path, read via
// ffprobe's container-level duration field. Used for the assembler's
// post-render chapter-clamping step (§4.H step 6).
func Probe(ctx context.Context, path string) (time.Duration, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	var out bytes.Buffer
	cmd.Stdout = &out
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w: %s", path, err, stderr.String())
	}

	secs, err := strconv.ParseFloat(strings.TrimSpace(out.String()), 64)
	if err != nil {
		return 0, fmt.Errorf("parse ffprobe duration %q: %w", out.String(), err)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// ExtractClip extracts [start, end) from srcPath into dstPath, applying a
// linear fade-in of fadeIn at the start and a linear fade-out of fadeOut
// ending exactly at the clip's end (§4.H step 2).
func ExtractClip(ctx context.Context, srcPath, dstPath string, start, end, fadeIn, fadeOut time.Duration) error {
	clipDur := end - start
	if clipDur <= 0 {
		return fmt.Errorf("extract clip: non-positive duration %s", clipDur)
	}
	fadeOutStart := clipDur - fadeOut
	if fadeOutStart < 0 {
		fadeOutStart = 0
	}

	af := fmt.Sprintf("afade=t=in:st=0:d=%.3f,afade=t=out:st=%.3f:d=%.3f",
		fadeIn.Seconds(), fadeOutStart.Seconds(), fadeOut.Seconds())

	return run(ctx, "ffmpeg",
		"-y",
		"-ss", fmt.Sprintf("%.3f", start.Seconds()),
		"-to", fmt.Sprintf("%.3f", end.Seconds()),
		"-i", srcPath,
		"-af", af,
		"-ar", "44100", "-ac", "2",
		"-b:a", "160k",
		dstPath,
	)
}

// GenerateSilence writes dur seconds of digital silence to dstPath, used as
// the inter-segment pad for transitionStyle == silence (§4.H step 4).
func GenerateSilence(ctx context.Context, dstPath string, dur time.Duration) error {
	return run(ctx, "ffmpeg",
		"-y",
		"-f", "lavfi",
		"-i", "anullsrc=channel_layout=stereo:sample_rate=44100",
		"-t", fmt.Sprintf("%.3f", dur.Seconds()),
		"-q:a", "9",
		dstPath,
	)
}

// GenerateStinger synthesizes a short tone-burst with a slight vibrato,
// the bumper sound used between segments for non-silence transition
// styles (§4.H step 4). dur is the stinger's own length, excluding the
// silence padding on either side.
func GenerateStinger(ctx context.Context, dstPath string, dur time.Duration) error {
	// A 440Hz sine with ~6Hz vibrato and a short fade in/out so the tone
	// doesn't click against the surrounding silence.
	filter := fmt.Sprintf(
		"sine=frequency=440:duration=%.3f,vibrato=f=6:d=0.3,afade=t=in:st=0:d=0.05,afade=t=out:st=%.3f:d=0.05",
		dur.Seconds(), (dur - 50*time.Millisecond).Seconds(),
	)
	return run(ctx, "ffmpeg",
		"-y",
		"-f", "lavfi",
		"-i", filter,
		"-ar", "44100", "-ac", "2",
		dstPath,
	)
}

// ConcatFile is one line of an ffmpeg concat-demuxer playlist.
type ConcatFile struct {
	Path string
}

// Concat joins files in order into outPath using ffmpeg's concat demuxer,
// re-encoding to a consistent sample rate/channel layout since the inputs
// mix narration, clip, and silence/stinger segments produced independently
// (§4.H step 4).
func Concat(ctx context.Context, listPath, outPath string) error {
	return run(ctx, "ffmpeg",
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-ar", "44100", "-ac", "2",
		"-b:a", "176k",
		outPath,
	)
}

// LoudnessMeasurement is the pass-one output of the two-pass loudnorm
// filter (§4.H step 5).
type LoudnessMeasurement struct {
	InputI            string `json:"input_i"`
	InputTP           string `json:"input_tp"`
	InputLRA          string `json:"input_lra"`
	InputThresh       string `json:"input_thresh"`
	TargetOffset      string `json:"target_offset"`
}

// MeasureLoudness runs pass one of the EBU R128 loudnorm filter and
// returns the raw measurements pass two corrects from.
func MeasureLoudness(ctx context.Context, path string, targetI, targetTP, targetLRA float64) (LoudnessMeasurement, error) {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", path,
		"-af", fmt.Sprintf("loudnorm=I=%.1f:TP=%.1f:LRA=%.1f:print_format=json", targetI, targetTP, targetLRA),
		"-f", "null", "-",
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return LoudnessMeasurement{}, fmt.Errorf("loudnorm measure pass: %w: %s", err, stderr.String())
	}

	jsonBlock := extractTrailingJSON(stderr.String())
	if jsonBlock == "" {
		return LoudnessMeasurement{}, fmt.Errorf("loudnorm measure pass: no JSON block in ffmpeg output")
	}
	var m LoudnessMeasurement
	if err := json.Unmarshal([]byte(jsonBlock), &m); err != nil {
		return LoudnessMeasurement{}, fmt.Errorf("parse loudnorm measurement: %w", err)
	}
	return m, nil
}

// CorrectLoudness runs pass two: apply the linear correction computed from
// a prior MeasureLoudness call, producing the final 44.1kHz/2ch MP3 at
// 128-192 kbps (§6 final MP3 contract).
func CorrectLoudness(ctx context.Context, inPath, outPath string, m LoudnessMeasurement, targetI, targetTP, targetLRA float64) error {
	af := fmt.Sprintf(
		"loudnorm=I=%.1f:TP=%.1f:LRA=%.1f:measured_I=%s:measured_TP=%s:measured_LRA=%s:measured_thresh=%s:offset=%s:linear=true",
		targetI, targetTP, targetLRA, m.InputI, m.InputTP, m.InputLRA, m.InputThresh, m.TargetOffset,
	)
	return run(ctx, "ffmpeg",
		"-y",
		"-i", inPath,
		"-af", af,
		"-ar", "44100", "-ac", "2",
		"-b:a", "160k",
		outPath,
	)
}

// Tags is the metadata written onto the final rendered MP3 (§4.H step 7).
type Tags struct {
	Title  string
	Artist string
	Album  string
	Genre  string
	Year   string
}

// ApplyTags writes ID3 tags onto inPath, producing outPath. ffmpeg's
// -metadata flags are used rather than rewriting frames in place, matching
// the pack's preference for ffmpeg-driven metadata over manual ID3 byte
// surgery.
func ApplyTags(ctx context.Context, inPath, outPath string, tags Tags) error {
	return run(ctx, "ffmpeg",
		"-y",
		"-i", inPath,
		"-c", "copy",
		"-metadata", "title="+tags.Title,
		"-metadata", "artist="+tags.Artist,
		"-metadata", "album="+tags.Album,
		"-metadata", "genre="+tags.Genre,
		"-metadata", "year="+tags.Year,
		outPath,
	)
}

func run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		slog.Error("ffmpeg command failed", "args", args, "error", err, "stderr", stderr.String())
		return fmt.Errorf("%s: %w: %s", name, err, stderr.String())
	}
	return nil
}

// extractTrailingJSON pulls the last {...} block out of ffmpeg's stderr,
// where the loudnorm filter prints its measurement JSON after the usual
// progress lines.
func extractTrailingJSON(s string) string {
	end := strings.LastIndex(s, "}")
	if end == -1 {
		return ""
	}
	depth := 0
	for i := end; i >= 0; i-- {
		switch s[i] {
		case '}':
			depth++
		case '{':
			depth--
			if depth == 0 {
				return s[i : end+1]
			}
		}
	}
	return ""
}
