// Package deliverer is the delivery stage (§4.I): it dispatches a completed
// digest on its configured deliveryMethod, regenerating the user's private
// RSS feed for syndication subscribers.
package deliverer

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/terrapper/poddigest/internal/model"
	"github.com/terrapper/poddigest/internal/objectstore"
	"github.com/terrapper/poddigest/internal/repository"
	"github.com/terrapper/poddigest/internal/stageresult"
)

const feedCacheControl = "max-age=300"

// Notifier sends a best-effort email or push notification. A failure here
// never fails the stage (§4.I: "producing the notification is best-effort
// and does not fail the stage").
type Notifier interface {
	Notify(ctx context.Context, userID, digestID string, method model.DeliveryMethod) error
}

// Deliverer drives deliver(digestId).
type Deliverer struct {
	repo        repository.Repository
	store       objectstore.Storage
	notifier    Notifier
	channelLink string // public base URL used for the feed's channel <link> and atom:link
}

// New builds a Deliverer. notifier may be nil, in which case email/push
// dispatch is a logged no-op.
func New(repo repository.Repository, store objectstore.Storage, notifier Notifier, channelLink string) *Deliverer {
	return &Deliverer{repo: repo, store: store, notifier: notifier, channelLink: channelLink}
}

// Deliver implements §4.I deliver(digestId).
func (d *Deliverer) Deliver(ctx context.Context, digestID string) stageresult.Result {
	digest, err := d.repo.FindDigestForUpdate(ctx, digestID)
	if err != nil {
		return stageresult.Failedf("load digest: %v", err)
	}
	cfg, err := d.repo.GetConfig(ctx, digest.ConfigID)
	if err != nil {
		return stageresult.Failedf("load config: %v", err)
	}

	switch cfg.DeliveryMethod {
	case model.DeliverySyndication:
		if err := d.regenerateFeed(ctx, digest.UserID); err != nil {
			return stageresult.Failed("delivery-failed", []stageresult.ItemFailure{{ItemID: digestID, Err: err}})
		}
	case model.DeliveryEmail, model.DeliveryPush:
		d.notifyBestEffort(ctx, digest.UserID, digestID, cfg.DeliveryMethod)
	case model.DeliveryInApp:
		// No-op: the digest row is already queryable.
	default:
		return stageresult.Failedf("unknown delivery method %q", cfg.DeliveryMethod)
	}

	return stageresult.Ok()
}

func (d *Deliverer) notifyBestEffort(ctx context.Context, userID, digestID string, method model.DeliveryMethod) {
	if d.notifier == nil {
		slog.Info("no notifier configured, skipping delivery", "user_id", userID, "digest_id", digestID, "method", method)
		return
	}
	if err := d.notifier.Notify(ctx, userID, digestID, method); err != nil {
		slog.Warn("notification delivery failed", "user_id", userID, "digest_id", digestID, "method", method, "error", err)
	}
}

func (d *Deliverer) regenerateFeed(ctx context.Context, userID string) error {
	digests, err := d.repo.ListCompletedDigestsForUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("list completed digests: %w", err)
	}

	xmlBytes, err := buildFeedXML(ctx, userID, d.channelLink, digests, d.store)
	if err != nil {
		return fmt.Errorf("build feed xml: %w", err)
	}

	key := fmt.Sprintf("feeds/%s/feed.xml", userID)
	if err := d.store.Put(ctx, key, bytes.NewReader(xmlBytes), "application/rss+xml; charset=utf-8", map[string]string{
		"cacheControl": feedCacheControl,
	}); err != nil {
		return fmt.Errorf("upload feed: %w", err)
	}
	return nil
}
