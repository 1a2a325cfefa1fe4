package generate

import (
	"context"
	"testing"

	"github.com/flowdeck/flowdeck/internal/flow"
	"github.com/flowdeck/flowdeck/internal/graph"
)

func TestDemoGenerate_ProducesValidGraph(t *testing.T) {
	g := New("", "")
	if !g.DemoMode() {
		t.Fatal("generator without API key should be in demo mode")
	}

	wf, err := g.Generate(context.Background(), "When an invoice arrives, notify accounting", nil)
	if err != nil {
		t.Fatalf("Generate() returned error: %v", err)
	}
	if wf.Name == "" {
		t.Error("generated workflow has no name")
	}
	if len(wf.Nodes) == 0 || len(wf.Edges) == 0 {
		t.Fatalf("generated workflow is empty: %d nodes, %d edges", len(wf.Nodes), len(wf.Edges))
	}
	if _, err := graph.BuildDAG(wf.Definition()); err != nil {
		t.Errorf("generated workflow is not a valid DAG: %v", err)
	}
	if wf.Nodes[0].Type != flow.NodeTypeTrigger {
		t.Errorf("first node type = %q, want trigger", wf.Nodes[0].Type)
	}
}

func TestDemoGenerate_EditKeepsName(t *testing.T) {
	g := New("", "")
	existing := &flow.Workflow{Name: "Invoice routing"}

	wf, err := g.Generate(context.Background(), "add a slack step", existing)
	if err != nil {
		t.Fatalf("Generate() returned error: %v", err)
	}
	if wf.Name != "Invoice routing" {
		t.Errorf("Name = %q, want existing name kept", wf.Name)
	}
}

func TestDemoClarify(t *testing.T) {
	g := New("", "")

	qs, err := g.Clarify(context.Background(), "automate stuff")
	if err != nil {
		t.Fatalf("Clarify() returned error: %v", err)
	}
	if len(qs) == 0 {
		t.Fatal("short vague description should produce questions")
	}
	for _, q := range qs {
		if q.Text == "" {
			t.Errorf("question %q has no text", q.ID)
		}
	}

	qs, err = g.Clarify(context.Background(), "every monday at 9am collect the unpaid invoices from stripe and email the list to the finance team")
	if err != nil {
		t.Fatalf("Clarify() returned error: %v", err)
	}
	if len(qs) != 0 {
		t.Errorf("detailed description produced %d questions, want 0", len(qs))
	}
}

func TestDemoSuggestParams(t *testing.T) {
	g := New("", "")

	params, err := g.SuggestParams(context.Background(), flow.Node{
		ID:   "n1",
		Type: flow.NodeTypeCondition,
	}, nil)
	if err != nil {
		t.Fatalf("SuggestParams() returned error: %v", err)
	}
	if _, ok := params["expression"]; !ok {
		t.Errorf("condition suggestion missing expression: %v", params)
	}
}

func TestNormalizeNodeTypes(t *testing.T) {
	wf := &GeneratedWorkflow{
		Nodes: []flow.Node{
			{ID: "a", Type: flow.NodeTypeTrigger},
			{ID: "b", Type: "webhook-listener"},
		},
	}
	normalizeNodeTypes(wf)
	if wf.Nodes[0].Type != flow.NodeTypeTrigger {
		t.Errorf("known type was rewritten to %q", wf.Nodes[0].Type)
	}
	if wf.Nodes[1].Type != flow.NodeTypeAction {
		t.Errorf("unknown type = %q, want action fallback", wf.Nodes[1].Type)
	}
}

func TestDemoExecutionAnswer(t *testing.T) {
	g := New("", "")
	msg := "step timed out"
	ex := &flow.Execution{Status: flow.ExecutionFailed, Error: &msg}

	answer, err := g.ExplainExecution(context.Background(), ex, nil, "what happened?")
	if err != nil {
		t.Fatalf("ExplainExecution() returned error: %v", err)
	}
	if answer == "" {
		t.Fatal("empty answer")
	}
}
