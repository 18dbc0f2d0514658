package assembler

import "github.com/terrapper/poddigest/internal/model"

// computeChapters walks the ordered playlist summing durations, emitting one
// chapter per clip segment (§4.H step 6: "Chapters are emitted only for clip
// segments; narration does not become a chapter"). The caller clamps the
// final chapter's EndSec to the probed render duration afterward.
func computeChapters(plan *sequencePlan, titles map[string]string) ([]model.Chapter, float64) {
	var chapters []model.Chapter
	cursor := 0.0
	for _, s := range plan.segments {
		if s.isClip {
			title := titles[s.episodeID]
			if title == "" {
				title = s.episodeID
			}
			chapters = append(chapters, model.Chapter{
				Title:    title,
				StartSec: cursor,
				EndSec:   cursor + s.durationSec,
			})
		}
		cursor += s.durationSec
	}
	return chapters, cursor
}
