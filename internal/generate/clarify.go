package generate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/flowdeck/flowdeck/internal/llmutil"
)

// Question is one clarifying question shown before generation, with
// suggested answers the user can pick from.
type Question struct {
	ID          string   `json:"id"`
	Text        string   `json:"text"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// Clarify asks the model which details are missing from the description
// before a workflow can be generated. An empty slice means the
// description is specific enough to generate directly.
func (g *Generator) Clarify(ctx context.Context, description string) ([]Question, error) {
	if g.DemoMode() {
		return demoQuestions(description), nil
	}

	text, err := g.generateText(ctx, clarifyPrompt, description)
	if err != nil {
		return nil, fmt.Errorf("clarify workflow: %w", err)
	}

	content, err := llmutil.StripMarkdownJSON(text)
	if err != nil {
		// The model answered in prose; treat it as "nothing to clarify".
		return nil, nil
	}

	var out struct {
		Questions []Question `json:"questions"`
	}
	if err := json.NewDecoder(strings.NewReader(content)).Decode(&out); err != nil {
		return nil, fmt.Errorf("parse clarify response: %w", err)
	}
	return out.Questions, nil
}
