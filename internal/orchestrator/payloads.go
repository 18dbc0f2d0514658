package orchestrator

import "github.com/terrapper/poddigest/internal/assembler"

// Queue payload shapes, matching §6's per-queue contract exactly.

type CrawlPayload struct {
	DigestID string `json:"digestId"`
	UserID   string `json:"userId"`
	ConfigID string `json:"configId"`
}

type TranscribePayload struct {
	DigestID   string   `json:"digestId"`
	EpisodeIDs []string `json:"episodeIds"`
}

type AnalyzePayload struct {
	DigestID   string   `json:"digestId"`
	EpisodeIDs []string `json:"episodeIds"`
}

type NarratePayload struct {
	DigestID string   `json:"digestId"`
	ClipIDs  []string `json:"clipIds"`
}

type AssemblePayload struct {
	DigestID        string                     `json:"digestId"`
	NarrationAudios []assembler.NarrationInput `json:"narrationAudios"`
}

type DeliverPayload struct {
	DigestID string `json:"digestId"`
}

// PipelinePayload is the empty cron-tick payload.
type PipelinePayload struct{}
