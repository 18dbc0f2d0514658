// Package model holds the durable entities of the digest production pipeline:
// Podcast, Subscription, Episode, Transcript, DigestConfig, Digest, and DigestClip.
package model

import "time"

// Priority is the weight a user assigns to one of their subscriptions.
type Priority string

const (
	PriorityMust      Priority = "must"
	PriorityPreferred Priority = "preferred"
	PriorityNice      Priority = "nice"
)

// TranscriptStatus advances monotonically: pending -> processing -> {completed|failed}.
type TranscriptStatus string

const (
	TranscriptPending    TranscriptStatus = "pending"
	TranscriptProcessing TranscriptStatus = "processing"
	TranscriptCompleted  TranscriptStatus = "completed"
	TranscriptFailed     TranscriptStatus = "failed"
)

// DigestStatus is the pipeline stage a Digest currently occupies. Transitions follow
// the stage order; only the orchestrator writes this field.
type DigestStatus string

const (
	DigestPending      DigestStatus = "pending"
	DigestCrawling     DigestStatus = "crawling"
	DigestTranscribing DigestStatus = "transcribing"
	DigestAnalyzing    DigestStatus = "analyzing"
	DigestNarrating    DigestStatus = "narrating"
	DigestAssembling   DigestStatus = "assembling"
	DigestDelivering   DigestStatus = "delivering"
	DigestCompleted    DigestStatus = "completed"
	DigestFailed       DigestStatus = "failed"
)

// StageOrder is the total order of in-progress statuses a Digest passes through.
// A Digest's observed status sequence is always a prefix of this slice, or ends
// at DigestFailed from any point in it.
var StageOrder = []DigestStatus{
	DigestPending,
	DigestCrawling,
	DigestTranscribing,
	DigestAnalyzing,
	DigestNarrating,
	DigestAssembling,
	DigestDelivering,
	DigestCompleted,
}

// ClipLengthPreference bounds candidate duration during selection.
type ClipLengthPreference string

const (
	ClipLengthShort  ClipLengthPreference = "short"
	ClipLengthMedium ClipLengthPreference = "medium"
	ClipLengthLong   ClipLengthPreference = "long"
	ClipLengthMixed  ClipLengthPreference = "mixed"
)

// DigestStructure controls the final ordering of selected clips.
type DigestStructure string

const (
	StructureByScore      DigestStructure = "byScore"
	StructureByShow       DigestStructure = "byShow"
	StructureByTopic      DigestStructure = "byTopic"
	StructureChronological DigestStructure = "chronological"
)

// NarrationDepth governs how long narrator scripts run.
type NarrationDepth string

const (
	NarrationBrief    NarrationDepth = "brief"
	NarrationStandard NarrationDepth = "standard"
	NarrationDetailed NarrationDepth = "detailed"
)

// TransitionStyle controls the inter-segment gap the Assembler renders.
type TransitionStyle string

const (
	TransitionStinger  TransitionStyle = "stinger"
	TransitionSoftFade TransitionStyle = "softFade"
	TransitionWhoosh   TransitionStyle = "whoosh"
	TransitionSilence  TransitionStyle = "silence"
)

// DeliveryMethod selects how a completed Digest is handed to the user.
type DeliveryMethod string

const (
	DeliverySyndication DeliveryMethod = "syndication"
	DeliveryPush        DeliveryMethod = "push"
	DeliveryEmail       DeliveryMethod = "email"
	DeliveryInApp        DeliveryMethod = "inApp"
)

// FeedbackTag is a user's thumbs-up/down on a rendered clip.
type FeedbackTag string

const (
	FeedbackUp   FeedbackTag = "up"
	FeedbackDown FeedbackTag = "down"
)

// Podcast is the identity of a subscribed feed. Mutated by the feed ingestor;
// never deleted while any Episode references it.
type Podcast struct {
	ID             string
	Title          string
	Author         string
	FeedURL        string
	ArtworkURL     string
	ExternalID     string
	LastCrawledAt  *time.Time
}

// Subscription is a (user, podcast) edge. Unique on (UserID, PodcastID).
type Subscription struct {
	ID         string
	UserID     string
	PodcastID  string
	Priority   Priority
	Active     bool
}

// Episode is a discovered item in a podcast feed. Unique on (PodcastID, GUID).
type Episode struct {
	ID               string
	PodcastID        string
	Title            string
	AudioURL         string
	PublishedAt      time.Time
	DurationSec      int
	GUID             string
	TranscriptStatus TranscriptStatus
}

// Segment is one word/utterance-level region of a Transcript.
// Segments are ordered, timestamps non-decreasing, and EndSec <= episode duration.
type Segment struct {
	StartSec   float64
	EndSec     float64
	SpeakerTag string // optional; empty when the provider did not diarize
	Text       string
}

// Transcript is at most one per Episode.
type Transcript struct {
	EpisodeID string
	FullText  string
	Segments  []Segment
	Language  string
	Status    TranscriptStatus
	Error     string
}

// DigestConfig is a user's standing preferences for their weekly digest.
type DigestConfig struct {
	ID                    string
	UserID                string
	TargetLengthMinutes   int // one of 30, 60, 90, 120
	ClipLengthPreference  ClipLengthPreference
	Structure             DigestStructure
	BreadthDepth          int // [0,100]
	VoiceID               string
	NarrationDepth        NarrationDepth
	MusicStyle            string
	TransitionStyle       TransitionStyle
	DeliveryDay           time.Weekday
	DeliveryHour          int // UTC hour-of-day, 0-23
	DeliveryMinute        int // UTC minute-of-hour, 0-59
	DeliveryMethod        DeliveryMethod
	IsActive              bool
}

// Chapter is one entry of a Digest's chapter index. Chapters are emitted only for
// clip segments; narration does not become a chapter.
type Chapter struct {
	Title    string
	StartSec float64
	EndSec   float64
}

// Digest is one production run: the unit the pipeline advances through its stages.
type Digest struct {
	ID               string
	UserID           string
	ConfigID         string
	Title            string
	WeekStart        time.Time
	WeekEnd          time.Time
	AudioObjectKey   string
	TotalDurationSec *float64
	ClipCount        int
	Chapters         []Chapter
	Status           DigestStatus
	Error            string
	CreatedAt        time.Time
	Version          int // optimistic concurrency counter for status writes
}

// ScoreDimensions is the five-tuple the analyzer scores every candidate region on.
type ScoreDimensions struct {
	InsightDensity        int
	EmotionalIntensity    int
	Actionability         int
	TopicalRelevance      int
	ConversationalQuality int
}

// DigestClip is a selected excerpt, exclusively owned by its Digest.
type DigestClip struct {
	ID              string
	DigestID        string
	EpisodeID       string
	StartSec        float64
	EndSec          float64
	Score           float64
	ScoreDimensions ScoreDimensions
	Position        int
	FeedbackTag     FeedbackTag
}

// Duration returns the clip length in seconds.
func (c DigestClip) Duration() float64 {
	return c.EndSec - c.StartSec
}
