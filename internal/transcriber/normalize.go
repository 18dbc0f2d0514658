package transcriber

import "github.com/terrapper/poddigest/internal/model"

// normalizeSegments applies the three parsing strategies in priority
// order (§4.E) and returns the first that yields at least one segment.
func normalizeSegments(resp ProviderResponse) []model.Segment {
	if segs := fromUtterances(resp.Utterances); len(segs) > 0 {
		return segs
	}
	if segs := fromParagraphs(resp.Paragraphs); len(segs) > 0 {
		return segs
	}
	return fromWords(resp.Words)
}

func fromUtterances(utterances []Utterance) []model.Segment {
	segs := make([]model.Segment, 0, len(utterances))
	for _, u := range utterances {
		segs = append(segs, model.Segment{
			StartSec:   u.StartSec,
			EndSec:     u.EndSec,
			SpeakerTag: u.SpeakerTag,
			Text:       u.Text,
		})
	}
	return segs
}

func fromParagraphs(paragraphs []Paragraph) []model.Segment {
	segs := make([]model.Segment, 0, len(paragraphs))
	for _, p := range paragraphs {
		segs = append(segs, model.Segment{
			StartSec: p.StartSec,
			EndSec:   p.EndSec,
			Text:     p.Text,
		})
	}
	return segs
}

// fromWords coalesces consecutive words sharing a speaker tag into a
// single segment. A change in tag (including to/from the empty tag)
// starts a new segment.
func fromWords(words []Word) []model.Segment {
	var segs []model.Segment
	var current *model.Segment

	for _, w := range words {
		if current == nil || current.SpeakerTag != w.SpeakerTag {
			if current != nil {
				segs = append(segs, *current)
			}
			current = &model.Segment{
				StartSec:   w.StartSec,
				EndSec:     w.EndSec,
				SpeakerTag: w.SpeakerTag,
				Text:       w.Text,
			}
			continue
		}
		current.EndSec = w.EndSec
		current.Text += " " + w.Text
	}
	if current != nil {
		segs = append(segs, *current)
	}
	return segs
}
