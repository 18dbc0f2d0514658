// Package queue is the durable broker every pipeline stage drains: named
// FIFO lists backed by Redis/Valkey, with lease-based dequeue, dedup by job
// id, exponential-backoff retry, and a bounded terminal-job retention
// window. Guarantees at-least-once delivery — every consumer must be
// idempotent.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cenkalti/backoff/v5"
	"github.com/terrapper/poddigest/internal/config"
)

// Stage queue names, matching the handoffs in the pipeline flow
// J -> D -> E -> F -> G -> H -> I.
const (
	Crawl      = "crawl"
	Transcribe = "transcribe"
	Analyze    = "analyze"
	Narrate    = "narrate"
	Assemble   = "assemble"
	Deliver    = "deliver"
	Pipeline   = "pipeline" // cron tick, fans out trigger() calls
)

const (
	keyPrefix = "poddigest"
	// BlockTimeout is how long a Dequeue call waits for a job before
	// returning nil, nil.
	BlockTimeout = 5 * time.Second
	// DefaultMaxAttempts bounds the exponential backoff retry loop before a
	// job is moved to the terminal failed set.
	DefaultMaxAttempts = 5
)

// JobStatus is the lifecycle state of a queued Job.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Job is one unit of work on a named queue. Payload is left as raw JSON so
// the broker stays agnostic to each queue's payload shape (§6: crawl,
// transcribe, analyze, narrate, assemble, deliver, pipeline each carry a
// different shape).
type Job struct {
	ID          string          `json:"id"`
	Queue       string          `json:"queue"`
	Payload     json.RawMessage `json:"payload"`
	Attempt     int             `json:"attempt"`
	MaxAttempts int             `json:"max_attempts"`
	Status      JobStatus       `json:"status"`
	FailReason  string          `json:"fail_reason,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Broker manages the Redis-backed queues.
type Broker struct {
	client        *redis.Client
	retention     time.Duration
	backoffPolicy func() backoff.BackOff
}

// NewBroker dials Redis/Valkey per internal/config.
func NewBroker(ctx context.Context) (*Broker, error) {
	addr := fmt.Sprintf("%s:%d", config.ValkeyHost, config.ValkeyPort)
	client := redis.NewClient(&redis.Options{Addr: addr, DB: config.ValkeyDB})
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	slog.Info("queue broker connected", "addr", addr)
	return NewBrokerWithClient(client), nil
}

// NewBrokerWithClient wraps an existing client — used in tests with
// miniredis and by callers that want to share a connection pool.
func NewBrokerWithClient(client *redis.Client) *Broker {
	return &Broker{
		client:    client,
		retention: time.Duration(config.JobRetentionHours) * time.Hour,
		backoffPolicy: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxInterval = 2 * time.Minute
			return b
		},
	}
}

func (b *Broker) Close() error { return b.client.Close() }

func (b *Broker) waitingKey(queue string) string { return fmt.Sprintf("%s:%s:waiting", keyPrefix, queue) }
func (b *Broker) jobKey(jobID string) string      { return fmt.Sprintf("%s:job:%s", keyPrefix, jobID) }
func (b *Broker) dedupKey(queue, jobID string) string {
	return fmt.Sprintf("%s:%s:dedup:%s", keyPrefix, queue, jobID)
}
func (b *Broker) retryKey(queue string) string  { return fmt.Sprintf("%s:%s:retry", keyPrefix, queue) }
func (b *Broker) cleanupKey() string            { return keyPrefix + ":cleanup" }

// Enqueue pushes payload onto queue under jobID. If jobID was already
// enqueued (and the dedup window has not expired), Enqueue is a no-op —
// this is the `{stage}-{digestId}` dedup key from §4.C/§4.J.
func (b *Broker) Enqueue(ctx context.Context, queue, jobID string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	set, err := b.client.SetNX(ctx, b.dedupKey(queue, jobID), "1", b.retention).Result()
	if err != nil {
		return fmt.Errorf("dedup check: %w", err)
	}
	if !set {
		slog.Debug("enqueue deduplicated", "queue", queue, "job_id", jobID)
		return nil
	}

	job := Job{
		ID:          jobID,
		Queue:       queue,
		Payload:     body,
		MaxAttempts: DefaultMaxAttempts,
		Status:      JobQueued,
		CreatedAt:   time.Now(),
	}
	jobJSON, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	pipe := b.client.Pipeline()
	pipe.Set(ctx, b.jobKey(jobID), jobJSON, 0)
	pipe.LPush(ctx, b.waitingKey(queue), jobID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("enqueue job: %w", err)
	}

	slog.Info("job enqueued", "queue", queue, "job_id", jobID)
	return nil
}

// Dequeue blocks up to BlockTimeout for a job on queue. Returns (nil, nil)
// on timeout — callers loop.
func (b *Broker) Dequeue(ctx context.Context, queue string) (*Job, error) {
	result, err := b.client.BRPop(ctx, BlockTimeout, b.waitingKey(queue)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("dequeue from %s: %w", queue, err)
	}
	if len(result) < 2 {
		return nil, fmt.Errorf("unexpected BRPOP result: %v", result)
	}

	job, err := b.getJob(ctx, result[1])
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, nil
	}
	job.Status = JobRunning
	if err := b.saveJob(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

func (b *Broker) getJob(ctx context.Context, jobID string) (*Job, error) {
	raw, err := b.client.Get(ctx, b.jobKey(jobID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("get job %s: %w", jobID, err)
	}
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return nil, fmt.Errorf("unmarshal job %s: %w", jobID, err)
	}
	return &job, nil
}

func (b *Broker) saveJob(ctx context.Context, job *Job) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := b.client.Set(ctx, b.jobKey(job.ID), body, 0).Err(); err != nil {
		return fmt.Errorf("save job %s: %w", job.ID, err)
	}
	return nil
}

// Complete marks job terminal-succeeded and schedules it for cleanup after
// the retention window.
func (b *Broker) Complete(ctx context.Context, job *Job) error {
	job.Status = JobCompleted
	if err := b.saveJob(ctx, job); err != nil {
		return err
	}
	return b.scheduleCleanup(ctx, job.ID)
}

// Fail records a failed attempt. If attempts remain, the job is
// re-enqueued after an exponential backoff delay (tracked in a retry
// sorted set, promoted back to the waiting list by PromoteReadyRetries).
// Once attempts are exhausted the job becomes terminal-failed.
func (b *Broker) Fail(ctx context.Context, job *Job, cause error) error {
	job.Attempt++
	job.FailReason = cause.Error()

	if job.Attempt < job.MaxAttempts {
		job.Status = JobQueued
		delay := nthBackoffDelay(b.backoffPolicy(), job.Attempt)
		if err := b.saveJob(ctx, job); err != nil {
			return err
		}
		readyAt := float64(time.Now().Add(delay).Unix())
		if err := b.client.ZAdd(ctx, b.retryKey(job.Queue), redis.Z{Score: readyAt, Member: job.ID}).Err(); err != nil {
			return fmt.Errorf("schedule retry: %w", err)
		}
		slog.Warn("job attempt failed, scheduled retry", "queue", job.Queue, "job_id", job.ID, "attempt", job.Attempt, "delay", delay)
		return nil
	}

	job.Status = JobFailed
	if err := b.saveJob(ctx, job); err != nil {
		return err
	}
	slog.Error("job exhausted retries", "queue", job.Queue, "job_id", job.ID, "reason", job.FailReason)
	return b.scheduleCleanup(ctx, job.ID)
}

// nthBackoffDelay advances a fresh BackOff n times and returns its last
// interval. The interval includes the policy's randomization, so repeated
// calls with the same attempt number can return different delays.
func nthBackoffDelay(b backoff.BackOff, attempt int) time.Duration {
	var d time.Duration
	for i := 0; i < attempt; i++ {
		d = b.NextBackOff()
	}
	return d
}

// PromoteReadyRetries moves jobs in queue's retry set whose delay has
// elapsed back onto the waiting list. Intended to be called from the same
// periodic sweep that drives cron fan-out.
func (b *Broker) PromoteReadyRetries(ctx context.Context, queue string) (int, error) {
	now := float64(time.Now().Unix())
	ids, err := b.client.ZRangeByScore(ctx, b.retryKey(queue), &redis.ZRangeBy{Min: "-inf", Max: fmt.Sprintf("%f", now)}).Result()
	if err != nil {
		return 0, fmt.Errorf("scan retry set: %w", err)
	}
	for _, id := range ids {
		pipe := b.client.Pipeline()
		pipe.LPush(ctx, b.waitingKey(queue), id)
		pipe.ZRem(ctx, b.retryKey(queue), id)
		if _, err := pipe.Exec(ctx); err != nil {
			return 0, fmt.Errorf("promote retry %s: %w", id, err)
		}
	}
	return len(ids), nil
}

func (b *Broker) scheduleCleanup(ctx context.Context, jobID string) error {
	readyAt := float64(time.Now().Add(b.retention).Unix())
	return b.client.ZAdd(ctx, b.cleanupKey(), redis.Z{Score: readyAt, Member: jobID}).Err()
}

// CleanupExpiredJobs deletes terminal job records past the retention
// window, the same sweep shape cmd/worker runs on an hourly ticker.
func (b *Broker) CleanupExpiredJobs(ctx context.Context) (int, error) {
	now := float64(time.Now().Unix())
	ids, err := b.client.ZRangeByScore(ctx, b.cleanupKey(), &redis.ZRangeBy{Min: "-inf", Max: fmt.Sprintf("%f", now)}).Result()
	if err != nil {
		return 0, fmt.Errorf("scan cleanup set: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	pipe := b.client.Pipeline()
	for _, id := range ids {
		pipe.Del(ctx, b.jobKey(id))
		pipe.ZRem(ctx, b.cleanupKey(), id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("cleanup batch: %w", err)
	}
	slog.Info("cleaned up expired jobs", "count", len(ids))
	return len(ids), nil
}

// QueueLength reports the number of jobs waiting on queue, for /metrics.
func (b *Broker) QueueLength(ctx context.Context, queue string) (int64, error) {
	n, err := b.client.LLen(ctx, b.waitingKey(queue)).Result()
	if err != nil {
		return 0, fmt.Errorf("queue length %s: %w", queue, err)
	}
	return n, nil
}

// CancelPending removes a job from its queue's waiting list before a
// worker has leased it. Used by orchestrator.Cancel; a job already leased
// is allowed to finish per §5's cancellation semantics.
func (b *Broker) CancelPending(ctx context.Context, queue, jobID string) error {
	if err := b.client.LRem(ctx, b.waitingKey(queue), 0, jobID).Err(); err != nil {
		return fmt.Errorf("cancel pending %s: %w", jobID, err)
	}
	return nil
}
