package analyzer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/terrapper/poddigest/internal/model"
)

func dims(score int) model.ScoreDimensions {
	// Every dimension gets the same value; the weights sum to 1.0, so the
	// composite score equals score, which keeps threshold checks easy to read.
	return model.ScoreDimensions{InsightDensity: score, EmotionalIntensity: score, Actionability: score, TopicalRelevance: score, ConversationalQuality: score}
}

func TestScoreWeightsAndClamp(t *testing.T) {
	s := Score(model.ScoreDimensions{InsightDensity: 200, EmotionalIntensity: -10, Actionability: 80, TopicalRelevance: 80, ConversationalQuality: 80})
	// clamp(200)=100, clamp(-10)=0
	expected := 0.25*100 + 0.20*0 + 0.20*80 + 0.20*80 + 0.15*80
	require.InDelta(t, expected, s, 0.0001)
}

func TestFilterByThresholdDropsBelow40(t *testing.T) {
	candidates := []Candidate{
		{EpisodeID: "e1", StartSec: 0, EndSec: 300, Dims: dims(39)},
		{EpisodeID: "e1", StartSec: 400, EndSec: 700, Dims: dims(40)},
	}
	kept := filterByThreshold(candidates)
	require.Len(t, kept, 1)
	require.Equal(t, 400.0, kept[0].StartSec)
}

// TestTight30MinuteDigestByScore pins §8 scenario 1: a candidate that would
// push cumulative duration past availableContent is skipped, and a later
// lower-scored candidate that still fits is admitted.
func TestTight30MinuteDigestByScore(t *testing.T) {
	cfg := model.DigestConfig{
		TargetLengthMinutes:  30,
		ClipLengthPreference: model.ClipLengthMedium,
		Structure:            model.StructureByScore,
		BreadthDepth:         50,
	}
	b := newBudget(cfg)
	require.InDelta(t, 1530.0, b.availableContent, 0.001)

	scores := []float64{82, 78, 77, 71, 70, 68}
	durations := []float64{300, 420, 260, 330, 390, 210}

	var candidates []scoredCandidate
	for i, sc := range scores {
		candidates = append(candidates, scoredCandidate{
			Candidate: Candidate{EpisodeID: "e1", StartSec: float64(i * 1000), EndSec: float64(i*1000) + durations[i]},
			score:     sc,
		})
	}

	chosen := selectClips(candidates, b)

	// First 4 (1310s) fit; 5th (390s) would push to 1700 > 1530, dropped;
	// 6th (210s) fits (1310+210=1520 <= 1530).
	require.Len(t, chosen, 5)
	var total float64
	for _, c := range chosen {
		total += c.EndSec - c.StartSec
	}
	require.InDelta(t, 1520.0, total, 0.001)
	require.Equal(t, float64(68), chosen[4].score)
}

// TestBreadthDominance pins §8 scenario 2: breadthDepth 0 forces
// maxClipsPerEpisode = 1, so at most one clip per episode survives
// regardless of remaining budget.
func TestBreadthDominance(t *testing.T) {
	cfg := model.DigestConfig{
		TargetLengthMinutes:  60,
		ClipLengthPreference: model.ClipLengthMixed,
		BreadthDepth:         0,
	}
	b := newBudget(cfg)
	require.Equal(t, 1, b.maxClipsPerEpisode)

	var candidates []scoredCandidate
	episodes := []string{"e1", "e2", "e3", "e4"}
	for _, ep := range episodes {
		for i := 0; i < 8; i++ {
			start := float64(i * 1000)
			candidates = append(candidates, scoredCandidate{
				Candidate: Candidate{EpisodeID: ep, StartSec: start, EndSec: start + 200},
				score:     float64(90 - i),
			})
		}
	}

	chosen := selectClips(candidates, b)
	require.LessOrEqual(t, len(chosen), 4)

	seen := map[string]int{}
	for _, c := range chosen {
		seen[c.EpisodeID]++
	}
	for ep, count := range seen {
		require.Equalf(t, 1, count, "episode %s should contribute exactly one clip", ep)
	}
}

// TestDepthDominance pins §8 scenario 3: breadthDepth 100 widens
// maxClipsPerEpisode to 5 and derives the effective duration bounds.
func TestDepthDominance(t *testing.T) {
	cfg := model.DigestConfig{
		TargetLengthMinutes:  60,
		ClipLengthPreference: model.ClipLengthLong,
		BreadthDepth:         100,
	}
	b := newBudget(cfg)
	require.Equal(t, 5, b.maxClipsPerEpisode)
	require.InDelta(t, 606.0, b.effectiveMin, 0.001)
	require.InDelta(t, 900.0, b.effectiveMax, 0.001)

	tooShort := scoredCandidate{Candidate: Candidate{EpisodeID: "e1", StartSec: 0, EndSec: 400}, score: 90}
	tooLong := scoredCandidate{Candidate: Candidate{EpisodeID: "e1", StartSec: 2000, EndSec: 2000 + 1200}, score: 90}
	justRight := scoredCandidate{Candidate: Candidate{EpisodeID: "e1", StartSec: 5000, EndSec: 5000 + 700}, score: 90}

	chosen := selectClips([]scoredCandidate{tooShort, tooLong, justRight}, b)
	require.Len(t, chosen, 1)
	require.Equal(t, 5000.0, chosen[0].StartSec)
}

func TestOrderByShowGroupsByPodcastTitle(t *testing.T) {
	meta := map[string]episodeMeta{
		"e1": {PodcastTitle: "Zebra Cast"},
		"e2": {PodcastTitle: "Aardvark Hour"},
	}
	chosen := []selected{
		{scoredCandidate{Candidate: Candidate{EpisodeID: "e1", StartSec: 0, EndSec: 100}, score: 50}},
		{scoredCandidate{Candidate: Candidate{EpisodeID: "e2", StartSec: 0, EndSec: 100}, score: 90}},
	}
	ordered := order(model.StructureByShow, chosen, meta)
	require.Equal(t, "e2", ordered[0].EpisodeID)
	require.Equal(t, "e1", ordered[1].EpisodeID)
}

func TestOrderChronologicalSortsByEpisodeThenStart(t *testing.T) {
	chosen := []selected{
		{scoredCandidate{Candidate: Candidate{EpisodeID: "e2", StartSec: 50}, score: 10}},
		{scoredCandidate{Candidate: Candidate{EpisodeID: "e1", StartSec: 200}, score: 99}},
		{scoredCandidate{Candidate: Candidate{EpisodeID: "e1", StartSec: 10}, score: 5}},
	}
	ordered := order(model.StructureChronological, chosen, nil)
	require.Equal(t, []float64{10, 200, 50}, []float64{ordered[0].StartSec, ordered[1].StartSec, ordered[2].StartSec})
}
