package services

import (
	"context"
	"fmt"
	"time"

	"github.com/flowdeck/flowdeck/internal/flow"
	"github.com/flowdeck/flowdeck/internal/graph"
	"github.com/flowdeck/flowdeck/internal/repository"
)

// WorkflowService manages workflow definitions: CRUD, graph validation,
// and instantiation from templates.
type WorkflowService struct {
	repo repository.WorkflowRepository
}

func NewWorkflowService(repo repository.WorkflowRepository) *WorkflowService {
	return &WorkflowService{repo: repo}
}

// Validate checks the workflow body for structural problems: duplicate
// node IDs, edges referencing missing nodes, and cycles.
func (s *WorkflowService) Validate(def flow.GraphDefinition) error {
	if _, err := graph.BuildDAG(def); err != nil {
		return fmt.Errorf("invalid workflow graph: %w", err)
	}
	return nil
}

// Create validates and stores a new workflow.
func (s *WorkflowService) Create(ctx context.Context, wf *flow.Workflow) error {
	if err := s.Validate(wf.Definition()); err != nil {
		return err
	}
	if wf.ID == "" {
		wf.ID = flow.GenerateID("wf")
	}
	now := time.Now()
	wf.CreatedAt = now
	wf.UpdatedAt = now
	return s.repo.Create(ctx, wf)
}

// Get retrieves a workflow by ID.
func (s *WorkflowService) Get(ctx context.Context, id string) (*flow.Workflow, error) {
	return s.repo.Get(ctx, id)
}

// List returns all workflows.
func (s *WorkflowService) List(ctx context.Context) ([]*flow.Workflow, error) {
	return s.repo.List(ctx)
}

// Update validates and stores new workflow content.
func (s *WorkflowService) Update(ctx context.Context, wf *flow.Workflow) error {
	if err := s.Validate(wf.Definition()); err != nil {
		return err
	}
	wf.UpdatedAt = time.Now()
	return s.repo.Update(ctx, wf)
}

// Delete removes a workflow.
func (s *WorkflowService) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// CreateFromTemplate instantiates a template body into a new workflow
// owned by ownerID. Node and edge IDs are kept as authored; templates
// are self-contained graphs.
func (s *WorkflowService) CreateFromTemplate(ctx context.Context, t *flow.Template, ownerID string) (*flow.Workflow, error) {
	wf := &flow.Workflow{
		OwnerID:     ownerID,
		Name:        t.Name,
		Description: t.Description,
		Nodes:       append([]flow.Node(nil), t.Definition.Nodes...),
		Edges:       append([]flow.Edge(nil), t.Definition.Edges...),
	}
	if err := s.Create(ctx, wf); err != nil {
		return nil, err
	}
	return wf, nil
}
