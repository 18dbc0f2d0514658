package repository

import (
	"context"
	"time"

	"github.com/terrapper/poddigest/internal/model"
)

// Mock is a Repository test double: set the XxxFunc fields a test cares
// about, leave the rest nil (callers relying on an unset func will panic,
// which is the point — it flags an unexpected call).
type Mock struct {
	UpsertPodcastFunc             func(ctx context.Context, p model.Podcast) (model.Podcast, error)
	GetPodcastFunc                func(ctx context.Context, id string) (model.Podcast, error)
	ListActiveSubscriptionsFunc   func(ctx context.Context, userID string) ([]model.Subscription, error)
	UpsertEpisodeFunc             func(ctx context.Context, e model.Episode) (model.Episode, bool, error)
	GetEpisodeFunc                func(ctx context.Context, id string) (model.Episode, error)
	SetEpisodeTranscriptStatusFunc func(ctx context.Context, episodeID string, status model.TranscriptStatus) error
	ListEpisodesPublishedSinceFunc func(ctx context.Context, podcastIDs []string, since time.Time, limit int) ([]model.Episode, error)
	SaveTranscriptFunc             func(ctx context.Context, t model.Transcript) error
	FindCompletedTranscriptFunc    func(ctx context.Context, episodeID string) (*model.Transcript, error)
	GetConfigFunc                  func(ctx context.Context, id string) (model.DigestConfig, error)
	ListActiveConfigsFunc          func(ctx context.Context) ([]model.DigestConfig, error)
	CreateDigestFunc               func(ctx context.Context, d model.Digest) (model.Digest, error)
	FindDigestForUpdateFunc        func(ctx context.Context, id string) (model.Digest, error)
	SetDigestStatusFunc            func(ctx context.Context, id string, status model.DigestStatus, errMsg string, expectedVersion int) error
	SetDigestArtifactFunc          func(ctx context.Context, id string, audioObjectKey string, totalDurationSec float64, chapters []model.Chapter) error
	HasNonTerminalDigestFunc       func(ctx context.Context, configID string) (bool, error)
	ListCompletedDigestsForUserFunc func(ctx context.Context, userID string) ([]model.Digest, error)
	AppendClipFunc                 func(ctx context.Context, c model.DigestClip) error
	ListClipsFunc                  func(ctx context.Context, digestID string) ([]model.DigestClip, error)
	SetDigestClipCountFunc         func(ctx context.Context, digestID string, count int) error

	SetDigestStatusCalls []model.DigestStatus
	AppendClipCalls      []model.DigestClip
}

func (m *Mock) UpsertPodcast(ctx context.Context, p model.Podcast) (model.Podcast, error) {
	return m.UpsertPodcastFunc(ctx, p)
}
func (m *Mock) GetPodcast(ctx context.Context, id string) (model.Podcast, error) {
	return m.GetPodcastFunc(ctx, id)
}
func (m *Mock) ListActiveSubscriptions(ctx context.Context, userID string) ([]model.Subscription, error) {
	return m.ListActiveSubscriptionsFunc(ctx, userID)
}
func (m *Mock) UpsertEpisode(ctx context.Context, e model.Episode) (model.Episode, bool, error) {
	return m.UpsertEpisodeFunc(ctx, e)
}
func (m *Mock) GetEpisode(ctx context.Context, id string) (model.Episode, error) {
	return m.GetEpisodeFunc(ctx, id)
}
func (m *Mock) SetEpisodeTranscriptStatus(ctx context.Context, episodeID string, status model.TranscriptStatus) error {
	return m.SetEpisodeTranscriptStatusFunc(ctx, episodeID, status)
}
func (m *Mock) ListEpisodesPublishedSince(ctx context.Context, podcastIDs []string, since time.Time, limit int) ([]model.Episode, error) {
	return m.ListEpisodesPublishedSinceFunc(ctx, podcastIDs, since, limit)
}
func (m *Mock) SaveTranscript(ctx context.Context, t model.Transcript) error {
	return m.SaveTranscriptFunc(ctx, t)
}
func (m *Mock) FindCompletedTranscript(ctx context.Context, episodeID string) (*model.Transcript, error) {
	return m.FindCompletedTranscriptFunc(ctx, episodeID)
}
func (m *Mock) GetConfig(ctx context.Context, id string) (model.DigestConfig, error) {
	return m.GetConfigFunc(ctx, id)
}
func (m *Mock) ListActiveConfigs(ctx context.Context) ([]model.DigestConfig, error) {
	return m.ListActiveConfigsFunc(ctx)
}
func (m *Mock) CreateDigest(ctx context.Context, d model.Digest) (model.Digest, error) {
	return m.CreateDigestFunc(ctx, d)
}
func (m *Mock) FindDigestForUpdate(ctx context.Context, id string) (model.Digest, error) {
	return m.FindDigestForUpdateFunc(ctx, id)
}
func (m *Mock) SetDigestStatus(ctx context.Context, id string, status model.DigestStatus, errMsg string, expectedVersion int) error {
	m.SetDigestStatusCalls = append(m.SetDigestStatusCalls, status)
	return m.SetDigestStatusFunc(ctx, id, status, errMsg, expectedVersion)
}
func (m *Mock) SetDigestArtifact(ctx context.Context, id string, audioObjectKey string, totalDurationSec float64, chapters []model.Chapter) error {
	return m.SetDigestArtifactFunc(ctx, id, audioObjectKey, totalDurationSec, chapters)
}
func (m *Mock) HasNonTerminalDigest(ctx context.Context, configID string) (bool, error) {
	return m.HasNonTerminalDigestFunc(ctx, configID)
}
func (m *Mock) ListCompletedDigestsForUser(ctx context.Context, userID string) ([]model.Digest, error) {
	return m.ListCompletedDigestsForUserFunc(ctx, userID)
}
func (m *Mock) AppendClip(ctx context.Context, c model.DigestClip) error {
	m.AppendClipCalls = append(m.AppendClipCalls, c)
	return m.AppendClipFunc(ctx, c)
}
func (m *Mock) ListClips(ctx context.Context, digestID string) ([]model.DigestClip, error) {
	return m.ListClipsFunc(ctx, digestID)
}
func (m *Mock) SetDigestClipCount(ctx context.Context, digestID string, count int) error {
	return m.SetDigestClipCountFunc(ctx, digestID, count)
}

var _ Repository = (*Mock)(nil)
