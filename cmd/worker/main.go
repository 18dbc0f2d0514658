// Command worker runs the stage worker pools, the hourly cron sweep, and the
// health/metrics HTTP surface for one poddigest process.
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/terrapper/poddigest/internal/analyzer"
	"github.com/terrapper/poddigest/internal/assembler"
	"github.com/terrapper/poddigest/internal/config"
	"github.com/terrapper/poddigest/internal/deliverer"
	"github.com/terrapper/poddigest/internal/feed"
	"github.com/terrapper/poddigest/internal/llmclient"
	"github.com/terrapper/poddigest/internal/metrics"
	"github.com/terrapper/poddigest/internal/narrator"
	"github.com/terrapper/poddigest/internal/objectstore"
	"github.com/terrapper/poddigest/internal/orchestrator"
	"github.com/terrapper/poddigest/internal/queue"
	"github.com/terrapper/poddigest/internal/repository"
	"github.com/terrapper/poddigest/internal/transcriber"
	"github.com/terrapper/poddigest/internal/ttsclient"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	store, err := objectstore.NewS3StorageFromConfig(ctx)
	if err != nil {
		slog.Error("failed to initialize object store", "error", err)
		os.Exit(1)
	}

	repo, err := repository.NewSQLiteRepository(ctx, config.DatabaseDSN)
	if err != nil {
		slog.Error("failed to open repository", "error", err)
		os.Exit(1)
	}

	broker, err := queue.NewBroker(ctx)
	if err != nil {
		slog.Error("failed to connect to job queue", "error", err)
		os.Exit(1)
	}
	defer broker.Close()

	llmClient, err := llmclient.New(ctx, config.GeminiAPIKey, config.LLMModel)
	if err != nil {
		slog.Error("failed to initialize LLM client", "error", err)
		os.Exit(1)
	}

	ttsClient := ttsclient.New(config.TTSBaseURL, config.TTSAPIKey, time.Duration(config.TTSTimeoutSec)*time.Second)
	sttProvider := transcriber.NewRESTProvider(config.STTBaseURL, config.STTAPIKey, time.Duration(config.STTTimeoutSec)*time.Second)

	llmLimiter := rate.NewLimiter(rate.Every(time.Duration(config.LLMBatchDelayMs)*time.Millisecond), config.LLMMaxConcurrency)

	ingestor := feed.NewIngestor(repo, nil)
	tr := transcriber.New(repo, sttProvider)
	an := analyzer.New(repo, llmClient, llmLimiter)
	nr := narrator.New(repo, llmClient, ttsClient, store)
	asm := assembler.New(repo, store, assembler.NewHTTPFetcher(nil), "", "")
	channelLink := config.CDNDomain
	if channelLink == "" {
		channelLink = config.S3BaseURL
	}
	dl := deliverer.New(repo, store, deliverer.LoggingNotifier{}, channelLink)

	o := orchestrator.New(repo, broker, ingestor, tr, an, nr, asm, dl)

	var wg sync.WaitGroup
	startPool(ctx, &wg, broker, queue.Crawl, config.CrawlWorkers, o.HandleCrawl)
	startPool(ctx, &wg, broker, queue.Transcribe, config.TranscribeWorkers, o.HandleTranscribe)
	startPool(ctx, &wg, broker, queue.Analyze, config.AnalyzeWorkers, o.HandleAnalyze)
	startPool(ctx, &wg, broker, queue.Narrate, config.NarrateWorkers, o.HandleNarrate)
	startPool(ctx, &wg, broker, queue.Assemble, config.AssembleWorkers, o.HandleAssemble)
	startPool(ctx, &wg, broker, queue.Deliver, config.DeliverWorkers, o.HandleDeliver)
	startPool(ctx, &wg, broker, queue.Pipeline, 1, o.HandlePipeline)

	wg.Add(1)
	go runCronSweep(ctx, &wg, broker)

	httpServer := &http.Server{Addr: config.HealthAddr, Handler: healthRouter()}
	go func() {
		slog.Info("health server listening", "addr", config.HealthAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("health server failed", "error", err)
		}
	}()

	slog.Info("worker started, draining stage queues")

	select {
	case <-ctx.Done():
	case sig := <-sigChan:
		slog.Info("received signal, shutting down gracefully", "signal", sig)
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("health server shutdown failed", "error", err)
	}

	wg.Wait()
}

// handlerFunc dispatches one stage-advance job given its raw payload.
type handlerFunc func(ctx context.Context, payload json.RawMessage) error

// startPool launches n goroutines draining queueName, each dispatching to
// handle and reporting duration/outcome through internal/metrics.
func startPool(ctx context.Context, wg *sync.WaitGroup, broker *queue.Broker, queueName string, n int, handle handlerFunc) {
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				default:
				}

				job, err := broker.Dequeue(ctx, queueName)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					slog.Error("dequeue failed", "queue", queueName, "worker", workerID, "error", err)
					continue
				}
				if job == nil {
					continue
				}

				start := time.Now()
				if err := handle(ctx, job.Payload); err != nil {
					slog.Error("stage job failed", "queue", queueName, "job_id", job.ID, "error", err)
					metrics.ObserveStage(queueName, "error", start)
					if failErr := broker.Fail(ctx, job, err); failErr != nil {
						slog.Error("broker fail failed", "queue", queueName, "job_id", job.ID, "error", failErr)
					}
					continue
				}

				metrics.ObserveStage(queueName, "ok", start)
				if err := broker.Complete(ctx, job); err != nil {
					slog.Error("broker complete failed", "queue", queueName, "job_id", job.ID, "error", err)
				}
			}
		}(i)
	}
}

// runCronSweep is the hourly maintenance loop: enqueue the pipeline tick job
// (drained by the pipeline worker pool into orchestrator.Tick), promote
// ready retries, purge expired terminal jobs, and report queue depth, same
// ticker shape the old job-queue worker used for its own cleanup pass.
func runCronSweep(ctx context.Context, wg *sync.WaitGroup, broker *queue.Broker) {
	defer wg.Done()

	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	stages := []string{queue.Crawl, queue.Transcribe, queue.Analyze, queue.Narrate, queue.Assemble, queue.Deliver}

	for {
		select {
		case <-ctx.Done():
			return
		case tick := <-ticker.C:
			jobID := "pipeline-" + tick.UTC().Format("2006010215")
			if err := broker.Enqueue(ctx, queue.Pipeline, jobID, orchestrator.PipelinePayload{}); err != nil {
				slog.Error("enqueue pipeline tick failed", "error", err)
			}
			sweep(ctx, broker, stages)
		}
	}
}

func sweep(ctx context.Context, broker *queue.Broker, stages []string) {
	for _, q := range stages {
		if n, err := broker.PromoteReadyRetries(ctx, q); err != nil {
			slog.Error("promote ready retries failed", "queue", q, "error", err)
		} else if n > 0 {
			slog.Info("promoted retries", "queue", q, "count", n)
		}

		if depth, err := broker.QueueLength(ctx, q); err != nil {
			slog.Warn("queue length check failed", "queue", q, "error", err)
		} else {
			metrics.QueueDepth.WithLabelValues(q).Set(float64(depth))
		}
	}

	if n, err := broker.CleanupExpiredJobs(ctx); err != nil {
		slog.Error("cleanup expired jobs failed", "error", err)
	} else if n > 0 {
		slog.Info("cleaned up expired jobs", "count", n)
	}
}

func healthRouter() chi.Router {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}
