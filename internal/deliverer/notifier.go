package deliverer

import (
	"context"
	"log/slog"

	"github.com/terrapper/poddigest/internal/model"
)

// LoggingNotifier is the default Notifier: email and push are opaque to this
// system (§4.I), so the production implementation simply records that a
// notification would have been sent.
type LoggingNotifier struct{}

func (LoggingNotifier) Notify(ctx context.Context, userID, digestID string, method model.DeliveryMethod) error {
	slog.Info("digest notification dispatched", "user_id", userID, "digest_id", digestID, "method", method)
	return nil
}
