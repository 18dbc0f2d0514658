package queue

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestBroker(t *testing.T) *Broker {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewBrokerWithClient(client)
}

func TestEnqueueDequeueRoundTrip(t *testing.T) {
	b := newTestBroker(t)
	ctx := context.Background()

	type payload struct {
		DigestID string `json:"digestId"`
	}

	if err := b.Enqueue(ctx, Crawl, "crawl-d1", payload{DigestID: "d1"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	job, err := b.Dequeue(ctx, Crawl)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if job == nil {
		t.Fatal("expected a job, got nil")
	}
	if job.ID != "crawl-d1" || job.Status != JobRunning {
		t.Errorf("got job %+v, want id crawl-d1 status running", job)
	}
}

func TestEnqueueDedupByJobID(t *testing.T) {
	b := newTestBroker(t)
	ctx := context.Background()

	if err := b.Enqueue(ctx, Crawl, "crawl-d1", map[string]string{"digestId": "d1"}); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	if err := b.Enqueue(ctx, Crawl, "crawl-d1", map[string]string{"digestId": "d1"}); err != nil {
		t.Fatalf("second enqueue: %v", err)
	}

	n, err := b.QueueLength(ctx, Crawl)
	if err != nil {
		t.Fatalf("queue length: %v", err)
	}
	if n != 1 {
		t.Errorf("got queue length %d, want 1 (dedup should drop the repeat)", n)
	}
}

func TestFailReschedulesUntilMaxAttempts(t *testing.T) {
	b := newTestBroker(t)
	ctx := context.Background()

	if err := b.Enqueue(ctx, Analyze, "analyze-d1", map[string]string{"digestId": "d1"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	job, err := b.Dequeue(ctx, Analyze)
	if err != nil || job == nil {
		t.Fatalf("dequeue: job=%v err=%v", job, err)
	}
	job.MaxAttempts = 2

	if err := b.Fail(ctx, job, errTransientStub{}); err != nil {
		t.Fatalf("fail (attempt 1): %v", err)
	}
	got, err := b.getJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if got.Status != JobQueued {
		t.Errorf("got status %q after first failure, want queued (retry scheduled)", got.Status)
	}

	if err := b.Fail(ctx, got, errTransientStub{}); err != nil {
		t.Fatalf("fail (attempt 2): %v", err)
	}
	got, err = b.getJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if got.Status != JobFailed {
		t.Errorf("got status %q after exhausting attempts, want failed", got.Status)
	}
}

func TestCancelPendingRemovesFromWaitingList(t *testing.T) {
	b := newTestBroker(t)
	ctx := context.Background()

	if err := b.Enqueue(ctx, Deliver, "deliver-d1", map[string]string{"digestId": "d1"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := b.CancelPending(ctx, Deliver, "deliver-d1"); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	n, err := b.QueueLength(ctx, Deliver)
	if err != nil {
		t.Fatalf("queue length: %v", err)
	}
	if n != 0 {
		t.Errorf("got queue length %d after cancel, want 0", n)
	}
}

type errTransientStub struct{}

func (errTransientStub) Error() string { return "transient stub failure" }
