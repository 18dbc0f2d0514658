// Package orchestrator is the pipeline conductor (§4.J): it creates Digest
// rows, advances Digest.status through the stage state machine, and fans
// out the hourly cron tick that triggers new digest runs.
package orchestrator

import (
	"context"

	"github.com/terrapper/poddigest/internal/analyzer"
	"github.com/terrapper/poddigest/internal/assembler"
	"github.com/terrapper/poddigest/internal/deliverer"
	"github.com/terrapper/poddigest/internal/feed"
	"github.com/terrapper/poddigest/internal/narrator"
	"github.com/terrapper/poddigest/internal/repository"
	"github.com/terrapper/poddigest/internal/transcriber"
)

// Broker is the narrow surface the orchestrator needs from the queue
// package, satisfied by *queue.Broker. Kept as an interface so stage-advance
// logic is testable without a Redis/miniredis dependency.
type Broker interface {
	Enqueue(ctx context.Context, queue, jobID string, payload any) error
	CancelPending(ctx context.Context, queue, jobID string) error
}

// Orchestrator wires every stage component behind the state machine in §4.J.
type Orchestrator struct {
	repo        repository.Repository
	broker      Broker
	ingestor    *feed.Ingestor
	transcriber *transcriber.Transcriber
	analyzer    *analyzer.Analyzer
	narrator    *narrator.Narrator
	assembler   *assembler.Assembler
	deliverer   *deliverer.Deliverer
}

// New builds an Orchestrator from its stage collaborators.
func New(
	repo repository.Repository,
	broker Broker,
	ingestor *feed.Ingestor,
	tr *transcriber.Transcriber,
	an *analyzer.Analyzer,
	nr *narrator.Narrator,
	asm *assembler.Assembler,
	dl *deliverer.Deliverer,
) *Orchestrator {
	return &Orchestrator{
		repo:        repo,
		broker:      broker,
		ingestor:    ingestor,
		transcriber: tr,
		analyzer:    an,
		narrator:    nr,
		assembler:   asm,
		deliverer:   dl,
	}
}
