// Package analyzer is the scoring and selection engine (§4.F): it turns
// completed transcripts into a ranked, budget-constrained set of clips.
package analyzer

import "github.com/terrapper/poddigest/internal/model"

// scoreThreshold is the minimum weighted score a candidate must clear to
// survive into selection.
const scoreThreshold = 40.0

// dimension weights, summing to 1.0.
const (
	weightInsightDensity        = 0.25
	weightEmotionalIntensity    = 0.20
	weightActionability         = 0.20
	weightTopicalRelevance      = 0.20
	weightConversationalQuality = 0.15
)

// Candidate is a scored region of one episode's transcript, prior to
// selection.
type Candidate struct {
	EpisodeID string
	StartSec  float64
	EndSec    float64
	Dims      model.ScoreDimensions
}

// clamp restricts a raw LLM-emitted dimension score to [0, 100].
func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// Score computes the weighted composite score for a candidate's dimensions.
func Score(dims model.ScoreDimensions) float64 {
	return weightInsightDensity*float64(clamp(dims.InsightDensity)) +
		weightEmotionalIntensity*float64(clamp(dims.EmotionalIntensity)) +
		weightActionability*float64(clamp(dims.Actionability)) +
		weightTopicalRelevance*float64(clamp(dims.TopicalRelevance)) +
		weightConversationalQuality*float64(clamp(dims.ConversationalQuality))
}

// scoredCandidate pairs a Candidate with its computed composite score.
type scoredCandidate struct {
	Candidate
	score float64
}

// filterByThreshold discards candidates whose score is below scoreThreshold.
func filterByThreshold(candidates []Candidate) []scoredCandidate {
	var kept []scoredCandidate
	for _, c := range candidates {
		s := Score(c.Dims)
		if s < scoreThreshold {
			continue
		}
		kept = append(kept, scoredCandidate{Candidate: c, score: s})
	}
	return kept
}
