package generate

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/flowdeck/flowdeck/internal/flow"
)

// Message is one turn of an assistant conversation.
type Message struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

const executionChatPrompt = `You are a workflow-automation assistant. The user is looking at one
execution of their workflow and asks questions about it. Answer from the
execution record you are given: which steps ran, which failed and why,
and what the user can do next. Be concise and concrete.`

const assistantPrompt = `You are the in-product assistant of a workflow-automation platform.
Help the user build and operate workflows: triggers, actions, condition
branches, approval gates, connections to external services, and
templates. Answer briefly; prefer a concrete next step over background.`

// ExplainExecution answers a question about a specific execution.
func (g *Generator) ExplainExecution(ctx context.Context, ex *flow.Execution, wf *flow.Workflow, question string) (string, error) {
	if g.DemoMode() {
		return demoExecutionAnswer(ex), nil
	}

	record := map[string]any{"execution": ex}
	if wf != nil {
		record["workflow"] = wf
	}
	recordJSON, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal execution record: %w", err)
	}

	user := fmt.Sprintf("Execution record:\n%s\n\nQuestion: %s", string(recordJSON), question)
	text, err := g.generateText(ctx, executionChatPrompt, user)
	if err != nil {
		return "", fmt.Errorf("execution chat: %w", err)
	}
	return text, nil
}

// Assist answers a general product question given the conversation so
// far and an optional page context (e.g. the workflow being edited).
func (g *Generator) Assist(ctx context.Context, messages []Message, pageContext map[string]any) (string, error) {
	if g.DemoMode() {
		return demoAssistantAnswer(messages), nil
	}

	var user string
	if len(pageContext) > 0 {
		ctxJSON, err := json.Marshal(pageContext)
		if err != nil {
			return "", fmt.Errorf("marshal page context: %w", err)
		}
		user = fmt.Sprintf("Page context: %s\n\n", string(ctxJSON))
	}
	for _, m := range messages {
		user += fmt.Sprintf("%s: %s\n", m.Role, m.Content)
	}

	text, err := g.generateText(ctx, assistantPrompt, user)
	if err != nil {
		return "", fmt.Errorf("assistant chat: %w", err)
	}
	return text, nil
}
