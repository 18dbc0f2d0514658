// Package narrator is the narration stage (§4.G): it writes the intro,
// transition, and outro scripts for a digest in one LLM call and
// synthesizes each to an MP3 via a third-party TTS provider.
package narrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/terrapper/poddigest/internal/model"
	"github.com/terrapper/poddigest/internal/objectstore"
	"github.com/terrapper/poddigest/internal/repository"
	"github.com/terrapper/poddigest/internal/stageresult"
	"github.com/terrapper/poddigest/internal/ttsclient"
)

// SegmentType identifies one of the three narration roles (§4.G).
type SegmentType string

const (
	Intro      SegmentType = "intro"
	Transition SegmentType = "transition"
	Outro      SegmentType = "outro"
)

// NarrationAudio is one synthesized script, stored at its stable object key.
type NarrationAudio struct {
	Position    int
	Type        SegmentType
	ObjectKey   string
	DurationSec float64
}

// LLM is the narrow surface the narrator needs for script generation.
type LLM interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// Narrator drives script generation and TTS synthesis for one digest.
type Narrator struct {
	repo  repository.Repository
	llm   LLM
	tts   ttsclient.Client
	store objectstore.Storage
}

// New builds a Narrator.
func New(repo repository.Repository, llm LLM, tts ttsclient.Client, store objectstore.Storage) *Narrator {
	return &Narrator{repo: repo, llm: llm, tts: tts, store: store}
}

// ProduceNarration implements §4.G produceNarration(digestId) -> [NarrationAudio].
// It emits N+2 scripts for the digest's N clips, synthesizes each one
// sequentially (§5 "Narrator synthesizes scripts sequentially"), and
// uploads every resulting MP3 under digests/{digestId}/narration/.
func (n *Narrator) ProduceNarration(ctx context.Context, digestID string) ([]NarrationAudio, stageresult.Result) {
	digest, err := n.repo.FindDigestForUpdate(ctx, digestID)
	if err != nil {
		return nil, stageresult.Failedf("load digest: %v", err)
	}
	cfg, err := n.repo.GetConfig(ctx, digest.ConfigID)
	if err != nil {
		return nil, stageresult.Failedf("load config: %v", err)
	}
	clips, err := n.repo.ListClips(ctx, digestID)
	if err != nil {
		return nil, stageresult.Failedf("list clips: %v", err)
	}
	if len(clips) == 0 {
		return nil, stageresult.Failed("missing-narration", nil)
	}

	scripts, err := n.generateScripts(ctx, cfg, len(clips))
	if err != nil {
		return nil, stageresult.Failed("missing-narration", []stageresult.ItemFailure{{ItemID: digestID, Err: err}})
	}

	audios := make([]NarrationAudio, 0, len(scripts))
	for i, text := range scripts {
		segType, position := roleFor(i, len(clips))
		audio, err := n.synthesizeAndStore(ctx, digestID, position, segType, cfg.VoiceID, text)
		if err != nil {
			// A dropped narration segment breaks the assembler's fixed
			// playlist shape (intro, transition_i->clip_i, outro), so any
			// synthesis failure here fails the whole stage rather than
			// being tolerated as a per-item failure.
			return nil, stageresult.Failed("missing-narration", []stageresult.ItemFailure{{ItemID: fmt.Sprintf("%s-%d", segType, position), Err: err}})
		}
		audios = append(audios, audio)
	}

	return audios, stageresult.Ok()
}

// roleFor maps a 0-indexed script slot (0..N+1) to its SegmentType and
// digest position, per §4.G: intro is position 0, transitions are
// positions 1..N, outro is position N+1.
func roleFor(i, numClips int) (SegmentType, int) {
	switch {
	case i == 0:
		return Intro, 0
	case i == numClips+1:
		return Outro, numClips + 1
	default:
		return Transition, i
	}
}

func (n *Narrator) synthesizeAndStore(ctx context.Context, digestID string, position int, segType SegmentType, voiceID, text string) (NarrationAudio, error) {
	result, err := n.tts.Synthesize(ctx, voiceID, text)
	if err != nil {
		return NarrationAudio{}, fmt.Errorf("synthesize %s %d: %w", segType, position, err)
	}

	duration := result.DurationSec
	if duration <= 0 {
		duration = estimateDuration(text)
	}

	key := fmt.Sprintf("digests/%s/narration/%d-%s.mp3", digestID, position, segType)
	if err := n.store.Put(ctx, key, strings.NewReader(string(result.Audio)), "audio/mpeg", map[string]string{
		"digestId": digestID,
		"position": fmt.Sprintf("%d", position),
		"type":     string(segType),
	}); err != nil {
		return NarrationAudio{}, fmt.Errorf("upload %s: %w", key, err)
	}

	slog.Info("narration segment synthesized", "digest_id", digestID, "position", position, "type", segType, "duration_sec", duration)
	return NarrationAudio{Position: position, Type: segType, ObjectKey: key, DurationSec: duration}, nil
}

// estimateDuration applies §4.G's fallback spoken-word rate when the TTS
// provider does not report a duration.
func estimateDuration(text string) float64 {
	words := len(strings.Fields(text))
	return float64(words) / ttsclient.WordsPerSecond
}
