package analyzer

import (
	"sort"

	"github.com/terrapper/poddigest/internal/model"
)

// episodeMeta is the lookup an ordering pass needs per episode, keyed
// separately from Candidate so the ordering stage does not re-fetch.
type episodeMeta struct {
	PodcastTitle string
}

// order applies the §4.F ordering rules and returns clips in their final
// emitted order; Analyze assigns Position 0..N-1 from this order.
func order(structure model.DigestStructure, chosen []selected, meta map[string]episodeMeta) []selected {
	ordered := make([]selected, len(chosen))
	copy(ordered, chosen)

	switch structure {
	case model.StructureByShow, model.StructureByTopic:
		sort.SliceStable(ordered, func(i, j int) bool {
			ti, tj := meta[ordered[i].EpisodeID].PodcastTitle, meta[ordered[j].EpisodeID].PodcastTitle
			if ti != tj {
				return ti < tj
			}
			if structure == model.StructureByTopic && ordered[i].score != ordered[j].score {
				return ordered[i].score > ordered[j].score
			}
			return ordered[i].StartSec < ordered[j].StartSec
		})
	case model.StructureChronological:
		sort.SliceStable(ordered, func(i, j int) bool {
			if ordered[i].EpisodeID != ordered[j].EpisodeID {
				return ordered[i].EpisodeID < ordered[j].EpisodeID
			}
			return ordered[i].StartSec < ordered[j].StartSec
		})
	default: // model.StructureByScore and any unrecognized value
		sort.SliceStable(ordered, func(i, j int) bool {
			return ordered[i].score > ordered[j].score
		})
	}

	return ordered
}
