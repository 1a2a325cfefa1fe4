package generate

import (
	"fmt"
	"strings"

	"github.com/flowdeck/flowdeck/internal/flow"
)

// Canned answers used when no API key is configured. They keep every
// AI surface functional in demos and local development.

func demoWorkflow(description string, existing *flow.Workflow) *GeneratedWorkflow {
	name := "Generated workflow"
	if existing != nil {
		name = existing.Name
	} else if description != "" {
		name = firstWords(description, 6)
	}

	return &GeneratedWorkflow{
		Name:        name,
		Description: description,
		Nodes: []flow.Node{
			{
				ID:       "node-trigger",
				Type:     flow.NodeTypeTrigger,
				Label:    "When triggered",
				Position: flow.Position{X: 100, Y: 200},
				Parameters: map[string]any{
					"trigger_type": "manual",
				},
			},
			{
				ID:       "node-action",
				Type:     flow.NodeTypeAction,
				Label:    "Do the work",
				Position: flow.Position{X: 400, Y: 200},
				Parameters: map[string]any{
					"description": description,
				},
			},
			{
				ID:         "node-notify",
				Type:       flow.NodeTypeAction,
				Label:      "Send notification",
				Position:   flow.Position{X: 700, Y: 200},
				Parameters: map[string]any{"channel": "email"},
			},
		},
		Edges: []flow.Edge{
			{ID: "edge-1", Source: "node-trigger", Target: "node-action"},
			{ID: "edge-2", Source: "node-action", Target: "node-notify"},
		},
	}
}

func demoQuestions(description string) []Question {
	if len(strings.Fields(description)) > 12 {
		// Long descriptions are treated as specific enough.
		return nil
	}
	return []Question{
		{
			ID:          "q-trigger",
			Text:        "What should start this workflow?",
			Suggestions: []string{"A schedule", "A form submission", "Manually"},
		},
		{
			ID:          "q-outcome",
			Text:        "What should happen at the end?",
			Suggestions: []string{"Send an email", "Post to Slack", "Update a record"},
		},
	}
}

func demoParams(node flow.Node) map[string]any {
	switch node.Type {
	case flow.NodeTypeCondition:
		return map[string]any{"expression": `trigger.amount > 100`}
	case flow.NodeTypeDelay:
		return map[string]any{"duration": "1m"}
	case flow.NodeTypeAI:
		return map[string]any{"prompt": fmt.Sprintf("Summarize the input for %q", node.Label)}
	default:
		return map[string]any{"description": node.Label}
	}
}

func demoExecutionAnswer(ex *flow.Execution) string {
	if ex == nil {
		return "I couldn't find that execution."
	}
	switch ex.Status {
	case flow.ExecutionFailed:
		msg := "The run failed"
		if ex.Error != nil {
			msg += ": " + *ex.Error
		}
		return msg + ". Check the failed step's parameters and run it again."
	case flow.ExecutionPendingApproval:
		return "The run is paused waiting for an approval. Open the Approvals page to act on it."
	case flow.ExecutionCompleted:
		return fmt.Sprintf("The run completed successfully with %d steps.", len(ex.NodeExecutions))
	default:
		return "The run is still in progress."
	}
}

func demoAssistantAnswer(messages []Message) string {
	if len(messages) == 0 {
		return "Ask me anything about building or running workflows."
	}
	return "You can build that with a trigger node, one or more action nodes, and a condition branch where behavior should differ. Add an approval gate to any step that needs sign-off."
}

func firstWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}
