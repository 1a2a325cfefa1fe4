package generate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/flowdeck/flowdeck/internal/flow"
	"github.com/flowdeck/flowdeck/internal/llmutil"
)

// SuggestParams proposes parameter values for a node given its type,
// label, and the surrounding workflow. The answer is a flat parameter
// map suitable for merging into the node.
func (g *Generator) SuggestParams(ctx context.Context, node flow.Node, wf *flow.Workflow) (map[string]any, error) {
	if g.DemoMode() {
		return demoParams(node), nil
	}

	req := map[string]any{
		"node": node,
	}
	if wf != nil {
		req["workflow_name"] = wf.Name
		req["workflow_description"] = wf.Description
	}
	reqJSON, err := json.MarshalIndent(req, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal suggest request: %w", err)
	}

	text, err := g.generateText(ctx, suggestPrompt, string(reqJSON))
	if err != nil {
		return nil, fmt.Errorf("suggest node params: %w", err)
	}

	content, err := llmutil.StripMarkdownJSON(text)
	if err != nil {
		return nil, fmt.Errorf("parse suggested params: %w", err)
	}

	var params map[string]any
	if err := json.NewDecoder(strings.NewReader(content)).Decode(&params); err != nil {
		return nil, fmt.Errorf("parse suggested params: %w", err)
	}
	return params, nil
}
