package orchestrator

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/terrapper/poddigest/internal/deliverer"
	"github.com/terrapper/poddigest/internal/model"
	"github.com/terrapper/poddigest/internal/objectstore"
	"github.com/terrapper/poddigest/internal/repository"
)

type fakeBroker struct {
	enqueued       []fakeEnqueueCall
	cancelled      []string
	enqueueErr     error
}

type fakeEnqueueCall struct {
	Queue   string
	JobID   string
	Payload any
}

func (f *fakeBroker) Enqueue(ctx context.Context, queue, jobID string, payload any) error {
	f.enqueued = append(f.enqueued, fakeEnqueueCall{Queue: queue, JobID: jobID, Payload: payload})
	return f.enqueueErr
}

func (f *fakeBroker) CancelPending(ctx context.Context, queue, jobID string) error {
	f.cancelled = append(f.cancelled, jobID)
	return nil
}

func TestTriggerCreatesDigestAndEnqueuesCrawl(t *testing.T) {
	var created model.Digest
	repo := &repository.Mock{
		CreateDigestFunc: func(ctx context.Context, d model.Digest) (model.Digest, error) {
			created = d
			return d, nil
		},
	}
	broker := &fakeBroker{}
	o := New(repo, broker, nil, nil, nil, nil, nil, nil)

	digestID, err := o.Trigger(context.Background(), "user-1", "cfg-1")

	require.NoError(t, err)
	require.Equal(t, created.ID, digestID)
	require.Equal(t, model.DigestPending, created.Status)
	require.Equal(t, 7*24*time.Hour, created.WeekEnd.Sub(created.WeekStart).Round(time.Hour))
	require.Len(t, broker.enqueued, 1)
	require.Equal(t, "crawl", broker.enqueued[0].Queue)
	require.Equal(t, "crawl-"+digestID, broker.enqueued[0].JobID)
}

func TestRetryRejectsNonFailedDigest(t *testing.T) {
	repo := &repository.Mock{
		FindDigestForUpdateFunc: func(ctx context.Context, id string) (model.Digest, error) {
			return model.Digest{ID: id, Status: model.DigestAnalyzing}, nil
		},
	}
	o := New(repo, &fakeBroker{}, nil, nil, nil, nil, nil, nil)

	err := o.Retry(context.Background(), "d1")
	require.Error(t, err)
}

func TestRetryResetsFailedDigestAndEnqueues(t *testing.T) {
	repo := &repository.Mock{
		FindDigestForUpdateFunc: func(ctx context.Context, id string) (model.Digest, error) {
			return model.Digest{ID: id, UserID: "u1", ConfigID: "cfg1", Status: model.DigestFailed, Version: 3}, nil
		},
		SetDigestStatusFunc: func(ctx context.Context, id string, status model.DigestStatus, errMsg string, expectedVersion int) error {
			require.Equal(t, model.DigestPending, status)
			require.Equal(t, 3, expectedVersion)
			return nil
		},
	}
	broker := &fakeBroker{}
	o := New(repo, broker, nil, nil, nil, nil, nil, nil)

	require.NoError(t, o.Retry(context.Background(), "d1"))
	require.Len(t, broker.enqueued, 1)
	require.Equal(t, "crawl", broker.enqueued[0].Queue)
}

func TestCancelRejectsTerminalDigest(t *testing.T) {
	repo := &repository.Mock{
		FindDigestForUpdateFunc: func(ctx context.Context, id string) (model.Digest, error) {
			return model.Digest{ID: id, Status: model.DigestCompleted}, nil
		},
	}
	o := New(repo, &fakeBroker{}, nil, nil, nil, nil, nil, nil)

	err := o.Cancel(context.Background(), "d1")
	require.Error(t, err)
}

func TestCancelRemovesPendingJobsAndFails(t *testing.T) {
	var statusSet model.DigestStatus
	var errMsg string
	repo := &repository.Mock{
		FindDigestForUpdateFunc: func(ctx context.Context, id string) (model.Digest, error) {
			return model.Digest{ID: id, Status: model.DigestAnalyzing, Version: 1}, nil
		},
		SetDigestStatusFunc: func(ctx context.Context, id string, status model.DigestStatus, e string, expectedVersion int) error {
			statusSet = status
			errMsg = e
			return nil
		},
	}
	broker := &fakeBroker{}
	o := New(repo, broker, nil, nil, nil, nil, nil, nil)

	require.NoError(t, o.Cancel(context.Background(), "d1"))
	require.Equal(t, model.DigestFailed, statusSet)
	require.Equal(t, "cancelled", errMsg)
	require.Len(t, broker.cancelled, 6) // one per stage queue
}

func TestTickTriggersOnlyMatchingActiveConfigs(t *testing.T) {
	now := time.Now().UTC()
	matching := model.DigestConfig{ID: "cfg-match", UserID: "u1", IsActive: true, DeliveryDay: now.Weekday(), DeliveryHour: now.Hour()}
	wrongDay := model.DigestConfig{ID: "cfg-wrong-day", UserID: "u2", IsActive: true, DeliveryDay: now.Weekday() + 1, DeliveryHour: now.Hour()}
	inactive := model.DigestConfig{ID: "cfg-inactive", UserID: "u3", IsActive: false, DeliveryDay: now.Weekday(), DeliveryHour: now.Hour()}

	var triggeredConfigs []string
	repo := &repository.Mock{
		ListActiveConfigsFunc: func(ctx context.Context) ([]model.DigestConfig, error) {
			return []model.DigestConfig{matching, wrongDay, inactive}, nil
		},
		HasNonTerminalDigestFunc: func(ctx context.Context, configID string) (bool, error) {
			return false, nil
		},
		CreateDigestFunc: func(ctx context.Context, d model.Digest) (model.Digest, error) {
			triggeredConfigs = append(triggeredConfigs, d.ConfigID)
			return d, nil
		},
	}
	broker := &fakeBroker{}
	o := New(repo, broker, nil, nil, nil, nil, nil, nil)

	require.NoError(t, o.Tick(context.Background()))
	require.Equal(t, []string{"cfg-match"}, triggeredConfigs)
}

func TestTickSkipsConfigsWithNonTerminalDigest(t *testing.T) {
	now := time.Now().UTC()
	cfg := model.DigestConfig{ID: "cfg1", UserID: "u1", IsActive: true, DeliveryDay: now.Weekday(), DeliveryHour: now.Hour()}
	repo := &repository.Mock{
		ListActiveConfigsFunc: func(ctx context.Context) ([]model.DigestConfig, error) {
			return []model.DigestConfig{cfg}, nil
		},
		HasNonTerminalDigestFunc: func(ctx context.Context, configID string) (bool, error) {
			return true, nil
		},
	}
	broker := &fakeBroker{}
	o := New(repo, broker, nil, nil, nil, nil, nil, nil)

	require.NoError(t, o.Tick(context.Background()))
	require.Empty(t, broker.enqueued)
}

func TestHandleDeliverSetsCompletedOnSuccess(t *testing.T) {
	var finalStatus model.DigestStatus
	repo := &repository.Mock{
		FindDigestForUpdateFunc: func(ctx context.Context, id string) (model.Digest, error) {
			return model.Digest{ID: id, UserID: "u1", ConfigID: "cfg1", Status: model.DigestDelivering, Version: 2}, nil
		},
		GetConfigFunc: func(ctx context.Context, id string) (model.DigestConfig, error) {
			return model.DigestConfig{DeliveryMethod: model.DeliveryInApp}, nil
		},
		SetDigestStatusFunc: func(ctx context.Context, id string, status model.DigestStatus, errMsg string, expectedVersion int) error {
			finalStatus = status
			return nil
		},
	}
	dl := deliverer.New(repo, &objectstore.Mock{}, nil, "https://pod.example.com")
	o := New(repo, &fakeBroker{}, nil, nil, nil, nil, nil, dl)

	payload, err := json.Marshal(DeliverPayload{DigestID: "d1"})
	require.NoError(t, err)
	require.NoError(t, o.HandleDeliver(context.Background(), payload))
	require.Equal(t, model.DigestCompleted, finalStatus)
}
