// Package transcriber is the thin driver over an external diarizing
// speech-to-text provider (§4.E): it normalizes whatever shape the
// provider returns into model.Transcript.segments.
package transcriber

import "context"

// ProviderResponse is the normalized shape a speech-to-text provider
// returns for one episode. A real provider adapter fills in whichever of
// the three fields it can produce; normalizeSegments picks the first
// strategy that yields at least one segment.
type ProviderResponse struct {
	FullText string
	Language string

	// Utterances is the strongest signal: provider-detected turn
	// boundaries, already diarized.
	Utterances []Utterance

	// Paragraphs is weaker: provider-detected paragraph breaks without
	// reliable speaker attribution.
	Paragraphs []Paragraph

	// Words is the fallback: word-level timestamps with a speaker tag per
	// word, coalesced into runs by normalizeSegments.
	Words []Word
}

// Utterance is one diarized turn.
type Utterance struct {
	StartSec   float64
	EndSec     float64
	SpeakerTag string
	Text       string
}

// Paragraph is a provider-detected grouping without speaker attribution.
type Paragraph struct {
	StartSec float64
	EndSec   float64
	Text     string
}

// Word is one word-level timestamp with a speaker tag.
type Word struct {
	StartSec   float64
	EndSec     float64
	SpeakerTag string
	Text       string
}

// Provider is an external diarizing speech-to-text service.
type Provider interface {
	Transcribe(ctx context.Context, audioURL string) (ProviderResponse, error)
}
