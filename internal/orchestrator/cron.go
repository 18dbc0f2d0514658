package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/terrapper/poddigest/internal/model"
	"github.com/terrapper/poddigest/internal/queue"
)

// Trigger implements §4.J trigger(userId, configId) -> digestId: create a
// pending Digest row covering the past 7 days, then enqueue its first stage.
func (o *Orchestrator) Trigger(ctx context.Context, userID, configID string) (string, error) {
	now := time.Now().UTC()
	weekStart := now.AddDate(0, 0, -7)

	digest := model.Digest{
		ID:        uuid.NewString(),
		UserID:    userID,
		ConfigID:  configID,
		Title:     fmt.Sprintf("Week of %s", weekStart.Format("2006-01-02")),
		WeekStart: weekStart,
		WeekEnd:   now,
		Status:    model.DigestPending,
		CreatedAt: now,
	}
	created, err := o.repo.CreateDigest(ctx, digest)
	if err != nil {
		return "", fmt.Errorf("create digest: %w", err)
	}

	jobID := fmt.Sprintf("crawl-%s", created.ID)
	if err := o.broker.Enqueue(ctx, queue.Crawl, jobID, CrawlPayload{
		DigestID: created.ID,
		UserID:   userID,
		ConfigID: configID,
	}); err != nil {
		return "", fmt.Errorf("enqueue crawl: %w", err)
	}
	return created.ID, nil
}

// Retry implements §4.J retry(digestId): allowed only from status failed.
func (o *Orchestrator) Retry(ctx context.Context, digestID string) error {
	digest, err := o.repo.FindDigestForUpdate(ctx, digestID)
	if err != nil {
		return fmt.Errorf("load digest: %w", err)
	}
	if digest.Status != model.DigestFailed {
		return fmt.Errorf("retry: digest %s has status %s, not failed", digestID, digest.Status)
	}

	if err := o.repo.SetDigestStatus(ctx, digestID, model.DigestPending, "", digest.Version); err != nil {
		return fmt.Errorf("reset to pending: %w", err)
	}

	jobID := fmt.Sprintf("crawl-retry-%s-%s", digestID, uuid.NewString()[:8])
	return o.broker.Enqueue(ctx, queue.Crawl, jobID, CrawlPayload{
		DigestID: digestID,
		UserID:   digest.UserID,
		ConfigID: digest.ConfigID,
	})
}

// Cancel implements §4.J cancel(digestId): rejected for terminal digests,
// otherwise removes any pending stage jobs and fails the digest.
func (o *Orchestrator) Cancel(ctx context.Context, digestID string) error {
	digest, err := o.repo.FindDigestForUpdate(ctx, digestID)
	if err != nil {
		return fmt.Errorf("load digest: %w", err)
	}
	if digest.Status == model.DigestCompleted || digest.Status == model.DigestFailed {
		return fmt.Errorf("cancel: digest %s has terminal status %s", digestID, digest.Status)
	}

	for _, q := range []string{queue.Crawl, queue.Transcribe, queue.Analyze, queue.Narrate, queue.Assemble, queue.Deliver} {
		jobID := fmt.Sprintf("%s-%s", q, digestID)
		if err := o.broker.CancelPending(ctx, q, jobID); err != nil {
			slog.Warn("cancel pending job failed", "queue", q, "job_id", jobID, "error", err)
		}
	}

	return o.repo.SetDigestStatus(ctx, digestID, model.DigestFailed, "cancelled", digest.Version)
}

// Tick implements §4.J's hourly cron loop: for every active config with no
// non-terminal digest in flight, trigger a new run if now matches its
// configured delivery day/hour in UTC.
func (o *Orchestrator) Tick(ctx context.Context) error {
	configs, err := o.repo.ListActiveConfigs(ctx)
	if err != nil {
		return fmt.Errorf("list active configs: %w", err)
	}

	now := time.Now().UTC()
	for _, cfg := range configs {
		if !cfg.IsActive {
			continue
		}
		if now.Weekday() != cfg.DeliveryDay || now.Hour() != cfg.DeliveryHour {
			continue
		}

		inFlight, err := o.repo.HasNonTerminalDigest(ctx, cfg.ID)
		if err != nil {
			slog.Error("check non-terminal digest failed", "config_id", cfg.ID, "error", err)
			continue
		}
		if inFlight {
			continue
		}

		if _, err := o.Trigger(ctx, cfg.UserID, cfg.ID); err != nil {
			slog.Error("cron trigger failed", "config_id", cfg.ID, "error", err)
		}
	}
	return nil
}
