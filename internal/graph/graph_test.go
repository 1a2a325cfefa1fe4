package graph

import (
	"errors"
	"reflect"
	"testing"

	"github.com/flowdeck/flowdeck/internal/flow"
)

func TestAddNode_SeedsFromCatalog(t *testing.T) {
	g := New(nil)
	n := g.AddNode(flow.NodeTypeCondition, flow.Position{X: 10, Y: 20})

	if n.ID == "" {
		t.Fatal("AddNode returned node without id")
	}
	if n.Label == "" {
		t.Error("AddNode did not seed label from catalog")
	}
	if n.Position.X != 10 || n.Position.Y != 20 {
		t.Errorf("Position = %+v, want {10 20}", n.Position)
	}
	if got := g.Node(n.ID); got == nil {
		t.Error("added node not retrievable")
	}
}

func TestAddNode_UnknownTypeFallsBack(t *testing.T) {
	g := New(nil)
	n := g.AddNode("webhook-special", flow.Position{})
	if n.ID == "" || n.Label == "" {
		t.Errorf("unknown type should still get id and fallback label, got %+v", n)
	}
}

func TestUpdateNode_MergesParameters(t *testing.T) {
	g := New(nil)
	n := g.AddNode(flow.NodeTypeAction, flow.Position{})
	g.UpdateNode(n.ID, NodePatch{Parameters: map[string]any{"channel": "email"}})
	g.UpdateNode(n.ID, NodePatch{Parameters: map[string]any{"subject": "hi"}})

	got := g.Node(n.ID)
	if got.Parameters["channel"] != "email" {
		t.Error("earlier parameter lost on merge")
	}
	if got.Parameters["subject"] != "hi" {
		t.Error("later parameter not applied")
	}
}

func TestUpdateNode_MissingIDIsNoOp(t *testing.T) {
	g := New(nil)
	g.AddNode(flow.NodeTypeAction, flow.Position{})
	before := g.Definition()

	label := "changed"
	g.UpdateNode("node-missing", NodePatch{Label: &label})

	if !reflect.DeepEqual(before, g.Definition()) {
		t.Error("UpdateNode on missing id mutated the graph")
	}
}

func TestDeleteNode_CascadesEdges(t *testing.T) {
	g := New(nil)
	a := g.AddNode(flow.NodeTypeTrigger, flow.Position{})
	b := g.AddNode(flow.NodeTypeAction, flow.Position{})
	c := g.AddNode(flow.NodeTypeAction, flow.Position{})
	if _, err := g.Connect(a.ID, b.ID, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := g.Connect(b.ID, c.ID, ""); err != nil {
		t.Fatal(err)
	}

	g.DeleteNode(b.ID)

	if g.Node(b.ID) != nil {
		t.Error("node not deleted")
	}
	for _, e := range g.Edges() {
		if e.Source == b.ID || e.Target == b.ID {
			t.Errorf("dangling edge survived delete: %+v", e)
		}
	}
	if len(g.Edges()) != 0 {
		t.Errorf("len(edges) = %d, want 0", len(g.Edges()))
	}
}

func TestConnect_RejectsUnknownEndpoints(t *testing.T) {
	g := New(nil)
	a := g.AddNode(flow.NodeTypeTrigger, flow.Position{})

	if _, err := g.Connect(a.ID, "nope", ""); !errors.Is(err, ErrUnknownNode) {
		t.Errorf("err = %v, want ErrUnknownNode", err)
	}
	if _, err := g.Connect("nope", a.ID, ""); !errors.Is(err, ErrUnknownNode) {
		t.Errorf("err = %v, want ErrUnknownNode", err)
	}
}

func TestConnect_RejectsSelfEdge(t *testing.T) {
	g := New(nil)
	a := g.AddNode(flow.NodeTypeAction, flow.Position{})

	if _, err := g.Connect(a.ID, a.ID, ""); !errors.Is(err, ErrSelfEdge) {
		t.Errorf("err = %v, want ErrSelfEdge", err)
	}
	if len(g.Edges()) != 0 {
		t.Errorf("edges = %+v, want none", g.Edges())
	}
}

func TestConnect_BranchHandleUniqueness(t *testing.T) {
	g := New(nil)
	cond := g.AddNode(flow.NodeTypeCondition, flow.Position{})
	yes := g.AddNode(flow.NodeTypeAction, flow.Position{})
	no := g.AddNode(flow.NodeTypeAction, flow.Position{})

	if _, err := g.Connect(cond.ID, yes.ID, "yes"); err != nil {
		t.Fatal(err)
	}
	if _, err := g.Connect(cond.ID, no.ID, "yes"); !errors.Is(err, ErrDuplicateBranch) {
		t.Errorf("second edge on same handle: err = %v, want ErrDuplicateBranch", err)
	}
	// The other handle is still free.
	if _, err := g.Connect(cond.ID, no.ID, "no"); err != nil {
		t.Errorf("distinct handle rejected: %v", err)
	}
}

func TestConnect_NonBranchingAllowsFanOut(t *testing.T) {
	g := New(nil)
	a := g.AddNode(flow.NodeTypeTrigger, flow.Position{})
	b := g.AddNode(flow.NodeTypeAction, flow.Position{})
	c := g.AddNode(flow.NodeTypeAction, flow.Position{})

	if _, err := g.Connect(a.ID, b.ID, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := g.Connect(a.ID, c.ID, ""); err != nil {
		t.Errorf("fan-out from non-branching node rejected: %v", err)
	}
}

func TestDefinition_RoundTrip(t *testing.T) {
	g := New(nil)
	a := g.AddNode(flow.NodeTypeTrigger, flow.Position{X: 1, Y: 2})
	b := g.AddNode(flow.NodeTypeApproval, flow.Position{X: 3, Y: 4})
	g.UpdateNode(b.ID, NodePatch{
		RequiresApproval: boolPtr(true),
		Parameters:       map[string]any{"note": "sign-off"},
	})
	if _, err := g.Connect(a.ID, b.ID, ""); err != nil {
		t.Fatal(err)
	}

	def := g.Definition()
	again := FromDefinition(def, nil).Definition()
	if !reflect.DeepEqual(def, again) {
		t.Errorf("round trip not lossless:\n got %+v\nwant %+v", again, def)
	}
}

func TestFromDefinition_Copies(t *testing.T) {
	def := flow.GraphDefinition{
		Nodes: []flow.Node{{ID: "a", Type: flow.NodeTypeTrigger}},
	}
	g := FromDefinition(def, nil)
	g.DeleteNode("a")

	if len(def.Nodes) != 1 {
		t.Error("mutation aliased the input definition")
	}
}

func boolPtr(b bool) *bool { return &b }
