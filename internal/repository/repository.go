// Package repository is the strongly typed CRUD and domain-query contract
// every stage reads and writes digest state through. Writes that advance
// Digest.status are guarded by an optimistic version counter so that two
// workers racing on the same digest id cannot regress its state machine.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/terrapper/poddigest/internal/model"
)

// ErrNotFound is returned when a lookup by id finds no row.
var ErrNotFound = errors.New("repository: not found")

// ErrVersionConflict is returned by SetDigestStatus when the caller's
// expected version no longer matches the stored row — another writer moved
// the digest first.
var ErrVersionConflict = errors.New("repository: version conflict")

// ErrDuplicateSubscription is returned when a (userId, podcastId) pair
// already has a Subscription row.
var ErrDuplicateSubscription = errors.New("repository: duplicate subscription")

// Repository is the full persistence contract for the pipeline.
type Repository interface {
	// Podcasts and subscriptions.
	UpsertPodcast(ctx context.Context, p model.Podcast) (model.Podcast, error)
	GetPodcast(ctx context.Context, id string) (model.Podcast, error)
	ListActiveSubscriptions(ctx context.Context, userID string) ([]model.Subscription, error)

	// Episodes.
	UpsertEpisode(ctx context.Context, e model.Episode) (episode model.Episode, isNew bool, err error)
	GetEpisode(ctx context.Context, id string) (model.Episode, error)
	SetEpisodeTranscriptStatus(ctx context.Context, episodeID string, status model.TranscriptStatus) error
	ListEpisodesPublishedSince(ctx context.Context, podcastIDs []string, since time.Time, limit int) ([]model.Episode, error)

	// Transcripts.
	SaveTranscript(ctx context.Context, t model.Transcript) error
	FindCompletedTranscript(ctx context.Context, episodeID string) (*model.Transcript, error)

	// Digest configs.
	GetConfig(ctx context.Context, id string) (model.DigestConfig, error)
	ListActiveConfigs(ctx context.Context) ([]model.DigestConfig, error)

	// Digests.
	CreateDigest(ctx context.Context, d model.Digest) (model.Digest, error)
	FindDigestForUpdate(ctx context.Context, id string) (model.Digest, error)
	SetDigestStatus(ctx context.Context, id string, status model.DigestStatus, errMsg string, expectedVersion int) error
	SetDigestArtifact(ctx context.Context, id string, audioObjectKey string, totalDurationSec float64, chapters []model.Chapter) error
	HasNonTerminalDigest(ctx context.Context, configID string) (bool, error)
	ListCompletedDigestsForUser(ctx context.Context, userID string) ([]model.Digest, error)

	// Clips.
	AppendClip(ctx context.Context, c model.DigestClip) error
	ListClips(ctx context.Context, digestID string) ([]model.DigestClip, error)
	SetDigestClipCount(ctx context.Context, digestID string, count int) error
}
