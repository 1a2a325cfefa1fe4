package dashboard

import (
	"context"

	"github.com/flowdeck/flowdeck/internal/client"
	"github.com/flowdeck/flowdeck/internal/flow"
)

// EmptyWorkflowsCTA is the call-to-action shown when the workflow list is
// empty, linking to the two creation paths.
type EmptyWorkflowsCTA struct {
	Message      string
	TemplatesRef string
	CreateRef    string
}

// WorkflowsPage is the workflow list screen.
type WorkflowsPage struct {
	*ListController[flow.Workflow]
	api *client.Client
}

// NewWorkflowsPage builds the workflows screen controller.
func NewWorkflowsPage(api *client.Client) *WorkflowsPage {
	return &WorkflowsPage{
		ListController: NewListController(api.ListWorkflows),
		api:            api,
	}
}

// EmptyState returns the no-workflows call-to-action, or nil when the
// list is not empty.
func (p *WorkflowsPage) EmptyState() *EmptyWorkflowsCTA {
	if p.State() != StateEmpty {
		return nil
	}
	return &EmptyWorkflowsCTA{
		Message:      "No workflows yet",
		TemplatesRef: "/templates",
		CreateRef:    "/workflows/new",
	}
}

// Delete removes a workflow and refetches the list.
func (p *WorkflowsPage) Delete(ctx context.Context, id string) error {
	return p.Mutate(ctx, func(ctx context.Context) error {
		return p.api.DeleteWorkflow(ctx, id)
	})
}

// ToggleActive flips a workflow's is_active flag and refetches.
func (p *WorkflowsPage) ToggleActive(ctx context.Context, id string, active bool) error {
	return p.Mutate(ctx, func(ctx context.Context) error {
		_, err := p.api.UpdateWorkflow(ctx, id, map[string]any{"is_active": active})
		return err
	})
}

// ApprovalsPage is the approvals screen, filtered to one status.
type ApprovalsPage struct {
	*ListController[flow.Approval]
	api    *client.Client
	status flow.ApprovalStatus
}

// NewApprovalsPage builds the approvals screen for the given status
// filter ("" lists everything).
func NewApprovalsPage(api *client.Client, status flow.ApprovalStatus) *ApprovalsPage {
	p := &ApprovalsPage{api: api, status: status}
	p.ListController = NewListController(func(ctx context.Context) ([]flow.Approval, error) {
		return api.ListApprovals(ctx, p.status)
	})
	return p
}

// Approve approves the given approval and refetches the filtered view,
// which drops it from the pending list.
func (p *ApprovalsPage) Approve(ctx context.Context, id string) error {
	return p.Mutate(ctx, func(ctx context.Context) error {
		_, err := p.api.ApproveAction(ctx, id)
		return err
	})
}

// Reject rejects the given approval with an optional reason.
func (p *ApprovalsPage) Reject(ctx context.Context, id, reason string) error {
	return p.Mutate(ctx, func(ctx context.Context) error {
		_, err := p.api.RejectAction(ctx, id, reason)
		return err
	})
}

// ConnectOutcome tells the connections screen what to do next for a
// service: open the key-entry modal, redirect to the provider, or show
// the demo-mode notice.
type ConnectOutcome struct {
	KeyEntry    bool
	RedirectURL string
	DemoMode    bool
}

// ConnectionsPage is the connected-services screen.
type ConnectionsPage struct {
	*ListController[flow.ConnectionSafe]
	api *client.Client
}

// NewConnectionsPage builds the connections screen controller.
func NewConnectionsPage(api *client.Client) *ConnectionsPage {
	return &ConnectionsPage{
		ListController: NewListController(api.ListConnections),
		api:            api,
	}
}

// Connect resolves how the given service authorizes. Services with
// authType api_key get the key-entry modal instead of an OAuth redirect.
func (p *ConnectionsPage) Connect(ctx context.Context, serviceType string) (*ConnectOutcome, error) {
	res, err := p.api.AuthorizeConnection(ctx, serviceType)
	if err != nil {
		return nil, err
	}
	return &ConnectOutcome{
		KeyEntry:    res.APIKey,
		RedirectURL: res.URL,
		DemoMode:    res.DemoMode,
	}, nil
}

// SubmitAPIKey stores an api_key credential collected by the key-entry
// modal and refetches the list.
func (p *ConnectionsPage) SubmitAPIKey(ctx context.Context, serviceType, name, key string) error {
	return p.Mutate(ctx, func(ctx context.Context) error {
		_, err := p.api.CreateConnection(ctx, serviceType, name, map[string]string{"api_key": key})
		return err
	})
}

// Disconnect deletes a connection and refetches.
func (p *ConnectionsPage) Disconnect(ctx context.Context, id string) error {
	return p.Mutate(ctx, func(ctx context.Context) error {
		return p.api.DeleteConnection(ctx, id)
	})
}

// Refresh refreshes an OAuth connection's token and refetches.
func (p *ConnectionsPage) Refresh(ctx context.Context, id string) error {
	return p.Mutate(ctx, func(ctx context.Context) error {
		_, err := p.api.RefreshConnection(ctx, id)
		return err
	})
}

// TemplatesPage is the template gallery screen.
type TemplatesPage struct {
	*ListController[flow.Template]
	api      *client.Client
	category string
}

// NewTemplatesPage builds the template gallery, optionally filtered by
// category.
func NewTemplatesPage(api *client.Client, category string) *TemplatesPage {
	p := &TemplatesPage{api: api, category: category}
	p.ListController = NewListController(func(ctx context.Context) ([]flow.Template, error) {
		return api.ListTemplates(ctx, p.category, "")
	})
	return p
}

// Use instantiates a template into a new workflow and returns it.
func (p *TemplatesPage) Use(ctx context.Context, id string) (*flow.Workflow, error) {
	return p.api.UseTemplate(ctx, id)
}

// KnowledgePage is the knowledge-base screen.
type KnowledgePage struct {
	*ListController[flow.KnowledgeEntry]
	api      *client.Client
	category string
}

// NewKnowledgePage builds the knowledge-base screen, optionally filtered
// by category.
func NewKnowledgePage(api *client.Client, category string) *KnowledgePage {
	p := &KnowledgePage{api: api, category: category}
	p.ListController = NewListController(func(ctx context.Context) ([]flow.KnowledgeEntry, error) {
		return api.ListKnowledge(ctx, p.category)
	})
	return p
}

// Delete removes an entry and refetches.
func (p *KnowledgePage) Delete(ctx context.Context, id string) error {
	return p.Mutate(ctx, func(ctx context.Context) error {
		return p.api.DeleteKnowledge(ctx, id)
	})
}

// RunHistoryPage is the execution history screen for one workflow
// ("" lists runs across all workflows).
type RunHistoryPage struct {
	*ListController[flow.Execution]
}

// NewRunHistoryPage builds the run-history screen controller.
func NewRunHistoryPage(api *client.Client, workflowID string) *RunHistoryPage {
	return &RunHistoryPage{
		ListController: NewListController(func(ctx context.Context) ([]flow.Execution, error) {
			return api.ListExecutions(ctx, workflowID)
		}),
	}
}
