package analyzer

import (
	"math"
	"sort"

	"github.com/terrapper/poddigest/internal/model"
)

// clipLengthRange is [lo, hi] in seconds for a given ClipLengthPreference.
var clipLengthRange = map[model.ClipLengthPreference][2]float64{
	model.ClipLengthShort:  {120, 240},
	model.ClipLengthMedium: {240, 480},
	model.ClipLengthLong:   {480, 900},
	model.ClipLengthMixed:  {120, 900},
}

// budget holds the derived selection parameters for one digest config (§4.F).
type budget struct {
	availableContent    float64
	effectiveMin        float64
	effectiveMax        float64
	maxClipsPerEpisode  int
}

func newBudget(cfg model.DigestConfig) budget {
	T := float64(cfg.TargetLengthMinutes) * 60
	availableContent := 0.85 * T

	lo, hi := 120.0, 900.0
	if r, ok := clipLengthRange[cfg.ClipLengthPreference]; ok {
		lo, hi = r[0], r[1]
	}

	b := float64(cfg.BreadthDepth) / 100
	effectiveMin := lo + b*(hi-lo)*0.3
	effectiveMax := hi - (1-b)*(hi-lo)*0.3
	maxClipsPerEpisode := int(math.Round(1 + 4*b))
	if maxClipsPerEpisode < 1 {
		maxClipsPerEpisode = 1
	}

	return budget{
		availableContent:   availableContent,
		effectiveMin:       effectiveMin,
		effectiveMax:       effectiveMax,
		maxClipsPerEpisode: maxClipsPerEpisode,
	}
}

// selected is a scoredCandidate that survived the greedy pass.
type selected struct {
	scoredCandidate
}

// selectClips runs the deterministic greedy selection of §4.F over
// score-eligible candidates and returns them in selection order (not yet
// the final emitted order, which order applies afterward).
func selectClips(candidates []scoredCandidate, b budget) []selected {
	sorted := make([]scoredCandidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].score != sorted[j].score {
			return sorted[i].score > sorted[j].score
		}
		if sorted[i].StartSec != sorted[j].StartSec {
			return sorted[i].StartSec < sorted[j].StartSec
		}
		return sorted[i].EpisodeID < sorted[j].EpisodeID
	})

	var chosen []selected
	var runningTotal float64
	perEpisodeCount := map[string]int{}
	perEpisodeRanges := map[string][][2]float64{}

	for _, c := range sorted {
		if runningTotal >= b.availableContent {
			break
		}
		duration := c.EndSec - c.StartSec
		if duration < 0.7*b.effectiveMin || duration > 1.3*b.effectiveMax {
			continue
		}
		if runningTotal+duration > b.availableContent {
			continue
		}
		if perEpisodeCount[c.EpisodeID] >= b.maxClipsPerEpisode {
			continue
		}
		if overlaps(perEpisodeRanges[c.EpisodeID], c.StartSec, c.EndSec) {
			continue
		}

		chosen = append(chosen, selected{c})
		runningTotal += duration
		perEpisodeCount[c.EpisodeID]++
		perEpisodeRanges[c.EpisodeID] = append(perEpisodeRanges[c.EpisodeID], [2]float64{c.StartSec, c.EndSec})
	}

	return chosen
}

func overlaps(ranges [][2]float64, start, end float64) bool {
	for _, r := range ranges {
		if start < r[1] && end > r[0] {
			return true
		}
	}
	return false
}
