package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/terrapper/poddigest/internal/assembler"
	"github.com/terrapper/poddigest/internal/model"
	"github.com/terrapper/poddigest/internal/queue"
)

// HandleCrawl implements the crawl stage-advance handler (§4.J).
func (o *Orchestrator) HandleCrawl(ctx context.Context, raw json.RawMessage) error {
	var p CrawlPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("unmarshal crawl payload: %w", err)
	}

	digest, err := o.enterStage(ctx, p.DigestID, model.DigestCrawling)
	if err != nil {
		return err
	}

	episodeIDs, result := o.ingestor.CrawlForUser(ctx, p.UserID, digest.WeekStart)
	if result.IsTerminal() {
		return o.failDigest(ctx, p.DigestID, result.Reason())
	}

	return o.enqueueNext(ctx, queue.Transcribe, p.DigestID, TranscribePayload{
		DigestID:   p.DigestID,
		EpisodeIDs: episodeIDs,
	})
}

// HandleTranscribe implements the transcribe stage-advance handler (§4.J).
func (o *Orchestrator) HandleTranscribe(ctx context.Context, raw json.RawMessage) error {
	var p TranscribePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("unmarshal transcribe payload: %w", err)
	}

	if _, err := o.enterStage(ctx, p.DigestID, model.DigestTranscribing); err != nil {
		return err
	}

	result := o.transcriber.TranscribeEpisodes(ctx, p.EpisodeIDs)
	if result.IsTerminal() {
		return o.failDigest(ctx, p.DigestID, result.Reason())
	}

	return o.enqueueNext(ctx, queue.Analyze, p.DigestID, AnalyzePayload{
		DigestID:   p.DigestID,
		EpisodeIDs: p.EpisodeIDs,
	})
}

// HandleAnalyze implements the analyze stage-advance handler (§4.J).
func (o *Orchestrator) HandleAnalyze(ctx context.Context, raw json.RawMessage) error {
	var p AnalyzePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("unmarshal analyze payload: %w", err)
	}

	digest, err := o.enterStage(ctx, p.DigestID, model.DigestAnalyzing)
	if err != nil {
		return err
	}
	cfg, err := o.repo.GetConfig(ctx, digest.ConfigID)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	clipIDs, result := o.analyzer.Analyze(ctx, p.DigestID, p.EpisodeIDs, cfg)
	if result.IsTerminal() {
		return o.failDigest(ctx, p.DigestID, result.Reason())
	}

	return o.enqueueNext(ctx, queue.Narrate, p.DigestID, NarratePayload{
		DigestID: p.DigestID,
		ClipIDs:  clipIDs,
	})
}

// HandleNarrate implements the narrate stage-advance handler (§4.J).
func (o *Orchestrator) HandleNarrate(ctx context.Context, raw json.RawMessage) error {
	var p NarratePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("unmarshal narrate payload: %w", err)
	}

	if _, err := o.enterStage(ctx, p.DigestID, model.DigestNarrating); err != nil {
		return err
	}

	audios, result := o.narrator.ProduceNarration(ctx, p.DigestID)
	if result.IsTerminal() {
		return o.failDigest(ctx, p.DigestID, result.Reason())
	}

	narrationAudios := make([]assembler.NarrationInput, 0, len(audios))
	for _, a := range audios {
		narrationAudios = append(narrationAudios, assembler.NarrationInput{
			Position:    a.Position,
			Type:        string(a.Type),
			ObjectKey:   a.ObjectKey,
			DurationSec: a.DurationSec,
		})
	}

	return o.enqueueNext(ctx, queue.Assemble, p.DigestID, AssemblePayload{
		DigestID:        p.DigestID,
		NarrationAudios: narrationAudios,
	})
}

// HandleAssemble implements the assemble stage-advance handler (§4.J).
func (o *Orchestrator) HandleAssemble(ctx context.Context, raw json.RawMessage) error {
	var p AssemblePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("unmarshal assemble payload: %w", err)
	}

	if _, err := o.enterStage(ctx, p.DigestID, model.DigestAssembling); err != nil {
		return err
	}

	result, stageOutcome := o.assembler.Assemble(ctx, p.DigestID, p.NarrationAudios)
	if stageOutcome.IsTerminal() {
		return o.failDigest(ctx, p.DigestID, stageOutcome.Reason())
	}

	if err := o.repo.SetDigestArtifact(ctx, p.DigestID, result.AudioObjectKey, result.TotalDurationSec, result.Chapters); err != nil {
		return fmt.Errorf("set digest artifact: %w", err)
	}

	return o.enqueueNext(ctx, queue.Deliver, p.DigestID, DeliverPayload{DigestID: p.DigestID})
}

// HandleDeliver implements the deliver stage-advance handler (§4.J). On
// success it is the only path that sets Digest.status to completed.
func (o *Orchestrator) HandleDeliver(ctx context.Context, raw json.RawMessage) error {
	var p DeliverPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("unmarshal deliver payload: %w", err)
	}

	if _, err := o.enterStage(ctx, p.DigestID, model.DigestDelivering); err != nil {
		return err
	}

	result := o.deliverer.Deliver(ctx, p.DigestID)
	if result.IsTerminal() {
		return o.failDigest(ctx, p.DigestID, result.Reason())
	}

	digest, err := o.repo.FindDigestForUpdate(ctx, p.DigestID)
	if err != nil {
		return fmt.Errorf("reload digest before completion: %w", err)
	}
	if err := o.repo.SetDigestStatus(ctx, p.DigestID, model.DigestCompleted, "", digest.Version); err != nil {
		return fmt.Errorf("set completed status: %w", err)
	}
	return nil
}

// HandlePipeline runs one cron tick (§4.J "Cron loop").
func (o *Orchestrator) HandlePipeline(ctx context.Context, _ json.RawMessage) error {
	return o.Tick(ctx)
}

// enterStage loads the digest and writes its in-progress status for the
// stage now starting, per §4.J's "sets Digest.status to the in-progress
// status on entry" rule.
func (o *Orchestrator) enterStage(ctx context.Context, digestID string, status model.DigestStatus) (model.Digest, error) {
	digest, err := o.repo.FindDigestForUpdate(ctx, digestID)
	if err != nil {
		return model.Digest{}, fmt.Errorf("load digest: %w", err)
	}
	if err := o.repo.SetDigestStatus(ctx, digestID, status, "", digest.Version); err != nil {
		return model.Digest{}, fmt.Errorf("set %s status: %w", status, err)
	}
	digest.Status = status
	return digest, nil
}

// failDigest transitions a digest to failed with the given short reason.
func (o *Orchestrator) failDigest(ctx context.Context, digestID, reason string) error {
	digest, err := o.repo.FindDigestForUpdate(ctx, digestID)
	if err != nil {
		return fmt.Errorf("load digest for failure: %w", err)
	}
	return o.repo.SetDigestStatus(ctx, digestID, model.DigestFailed, reason, digest.Version)
}

// enqueueNext enqueues the next stage's job under the {queue}-{digestId}
// dedup key (§4.J "Stage advance").
func (o *Orchestrator) enqueueNext(ctx context.Context, queueName, digestID string, payload any) error {
	jobID := fmt.Sprintf("%s-%s", queueName, digestID)
	if err := o.broker.Enqueue(ctx, queueName, jobID, payload); err != nil {
		return fmt.Errorf("enqueue %s: %w", queueName, err)
	}
	return nil
}
