// Package generate turns natural-language descriptions into workflow
// graphs and powers the contextual assistant endpoints. All model calls
// go through Gemini; without an API key the package answers with canned
// demo content so the product remains explorable.
package generate

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"

	"github.com/flowdeck/flowdeck/internal/flow"
	"github.com/flowdeck/flowdeck/internal/graph"
	"github.com/flowdeck/flowdeck/internal/llmutil"
)

//go:embed prompts/workflow-create.md
var createBasePrompt string

//go:embed prompts/workflow-edit.md
var editBasePrompt string

//go:embed prompts/clarify.md
var clarifyPrompt string

//go:embed prompts/suggest-params.md
var suggestPrompt string

// Generator converts natural-language descriptions into workflow graphs.
type Generator struct {
	apiKey string
	model  string

	once    sync.Once
	client  *genai.Client
	initErr error
}

// New creates a Generator for the given Gemini API key and model name.
// An empty key puts the generator in demo mode.
func New(apiKey, model string) *Generator {
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &Generator{apiKey: apiKey, model: model}
}

// DemoMode reports whether the generator answers with canned content.
func (g *Generator) DemoMode() bool { return g.apiKey == "" }

func (g *Generator) ensureClient(ctx context.Context) error {
	g.once.Do(func() {
		g.client, g.initErr = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  g.apiKey,
			Backend: genai.BackendGeminiAPI,
		})
	})
	return g.initErr
}

// generateText runs one system+user prompt round trip and returns the
// response text.
func (g *Generator) generateText(ctx context.Context, system, user string) (string, error) {
	if err := g.ensureClient(ctx); err != nil {
		return "", fmt.Errorf("gemini: client init failed: %w", err)
	}
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
	}
	contents := []*genai.Content{
		genai.NewContentFromText(user, genai.RoleUser),
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini: %w", err)
	}
	return llmutil.ExtractText(resp), nil
}

// GeneratedWorkflow is the model's answer to a generation request: a
// name, a description, and a full graph body.
type GeneratedWorkflow struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Nodes       []flow.Node `json:"nodes"`
	Edges       []flow.Edge `json:"edges"`
}

// Definition returns the generated body as a GraphDefinition.
func (w *GeneratedWorkflow) Definition() flow.GraphDefinition {
	return flow.GraphDefinition{Nodes: w.Nodes, Edges: w.Edges}
}

// Generate creates a workflow graph from a natural-language description.
// If existing is non-nil the generator operates in edit mode, modifying
// the given workflow according to the description.
func (g *Generator) Generate(ctx context.Context, description string, existing *flow.Workflow) (*GeneratedWorkflow, error) {
	if g.DemoMode() {
		return demoWorkflow(description, existing), nil
	}

	sysPrompt := createBasePrompt
	userContent := description
	if existing != nil {
		sysPrompt = editBasePrompt
		wfJSON, err := json.MarshalIndent(existing, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal existing workflow: %w", err)
		}
		userContent = fmt.Sprintf("Current workflow:\n%s\n\nInstruction: %s", string(wfJSON), description)
	}

	// Must be the LAST thing in the system prompt so it benefits from
	// recency bias and isn't buried under reference material.
	sysPrompt += "\n\nIMPORTANT: Your entire response must be ONLY the raw JSON object. No markdown fences, no explanation, no commentary before or after the JSON."

	text, err := g.generateText(ctx, sysPrompt, userContent)
	if err != nil {
		return nil, fmt.Errorf("generate workflow: %w", err)
	}

	content, err := llmutil.StripMarkdownJSON(text)
	if err != nil {
		return nil, fmt.Errorf("parse generated workflow (model output may be malformed): %w\nraw output: %s", err, text)
	}

	// Use json.Decoder to parse only the first JSON value and ignore trailing text.
	var wf GeneratedWorkflow
	if err := json.NewDecoder(strings.NewReader(content)).Decode(&wf); err != nil {
		return nil, fmt.Errorf("parse generated workflow (model output may be malformed): %w\nraw output: %s", err, content)
	}

	if wf.Name == "" && existing != nil {
		wf.Name = existing.Name
	}
	if wf.Name == "" {
		wf.Name = "Generated workflow"
	}

	normalizeNodeTypes(&wf)

	if _, err := graph.BuildDAG(wf.Definition()); err != nil {
		return nil, fmt.Errorf("invalid generated workflow: %w", err)
	}
	return &wf, nil
}

// normalizeNodeTypes downgrades hallucinated node types to "action" so
// the editor's catalog fallback handles them uniformly.
func normalizeNodeTypes(wf *GeneratedWorkflow) {
	known := map[flow.NodeType]bool{
		flow.NodeTypeTrigger:   true,
		flow.NodeTypeAction:    true,
		flow.NodeTypeCondition: true,
		flow.NodeTypeApproval:  true,
		flow.NodeTypeAI:        true,
		flow.NodeTypeDelay:     true,
	}
	for i := range wf.Nodes {
		if !known[wf.Nodes[i].Type] {
			wf.Nodes[i].Type = flow.NodeTypeAction
		}
	}
}
