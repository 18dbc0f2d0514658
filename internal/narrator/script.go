package narrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/terrapper/poddigest/internal/model"
)

// scriptDelimiter separates the N+2 scripts in the LLM's single response
// (§4.G "separated by a fixed delimiter token").
const scriptDelimiter = "\n===SCRIPT===\n"

// depthGuidance describes sentence-count targets per narrationDepth, for
// intro, transition, and outro scripts respectively (§4.G).
var depthGuidance = map[model.NarrationDepth]struct {
	Intro, Transition, Outro string
}{
	model.NarrationBrief: {
		Intro:      "2 to 3 sentences",
		Transition: "1 to 2 sentences (about 15 seconds spoken)",
		Outro:      "1 to 2 sentences",
	},
	model.NarrationStandard: {
		Intro:      "4 to 6 sentences",
		Transition: "2 to 4 sentences (about 30 seconds spoken)",
		Outro:      "2 to 4 sentences",
	},
	model.NarrationDetailed: {
		Intro:      "6 to 8 sentences",
		Transition: "4 to 6 sentences (about 45 seconds spoken)",
		Outro:      "4 to 6 sentences",
	},
}

// generateScripts issues the single-prompt script request and validates
// the response splits into exactly numClips+2 non-empty parts (§4.G).
func (n *Narrator) generateScripts(ctx context.Context, cfg model.DigestConfig, numClips int) ([]string, error) {
	prompt := buildScriptPrompt(cfg, numClips)

	raw, err := n.llm.GenerateText(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate scripts: %w", err)
	}

	parts := strings.Split(raw, scriptDelimiter)
	scripts := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			scripts = append(scripts, p)
		}
	}

	want := numClips + 2
	if len(scripts) != want {
		return nil, fmt.Errorf("expected %d non-empty scripts, got %d", want, len(scripts))
	}
	return scripts, nil
}

func buildScriptPrompt(cfg model.DigestConfig, numClips int) string {
	guidance, ok := depthGuidance[cfg.NarrationDepth]
	if !ok {
		guidance = depthGuidance[model.NarrationStandard]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are writing the narration script for a personalized %d-minute podcast digest with %d excerpt clips.\n", cfg.TargetLengthMinutes, numClips)
	b.WriteString("Write exactly the following scripts, each separated by the literal line \"===SCRIPT===\" and nothing else on that line:\n\n")
	fmt.Fprintf(&b, "1. One intro script (%s) welcoming the listener to this week's digest.\n", guidance.Intro)
	for i := 1; i <= numClips; i++ {
		fmt.Fprintf(&b, "%d. One transition script (%s) introducing clip %d.\n", i+1, guidance.Transition, i)
	}
	fmt.Fprintf(&b, "%d. One outro script (%s) closing out the digest.\n", numClips+2, guidance.Outro)
	b.WriteString("\nRespond with only the scripts and the delimiter lines between them. Do not number them or add any other commentary.\n")
	return b.String()
}
