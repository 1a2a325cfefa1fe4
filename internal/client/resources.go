package client

import (
	"context"
	"io"
	"net/http"
	"net/url"

	"github.com/flowdeck/flowdeck/internal/flow"
)

// AuthResponse is the signup/login payload: the bearer token plus the
// authenticated user.
type AuthResponse struct {
	Token string    `json:"token"`
	User  flow.User `json:"user"`
}

// Signup creates an account and stores the returned bearer token.
func (c *Client) Signup(ctx context.Context, email, password, name string) (*AuthResponse, error) {
	var out AuthResponse
	body := map[string]string{"email": email, "password": password, "name": name}
	if err := c.do(ctx, http.MethodPost, "/auth/signup", body, &out); err != nil {
		return nil, err
	}
	if err := c.SetToken(out.Token); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login authenticates and stores the returned bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	var out AuthResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", body, &out); err != nil {
		return nil, err
	}
	if err := c.SetToken(out.Token); err != nil {
		return nil, err
	}
	return &out, nil
}

// Me returns the current user.
func (c *Client) Me(ctx context.Context) (*flow.User, error) {
	var out flow.User
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateMe patches the current user's profile fields.
func (c *Client) UpdateMe(ctx context.Context, patch map[string]any) (*flow.User, error) {
	var out flow.User
	if err := c.do(ctx, http.MethodPatch, "/auth/me", patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// --- Workflows ---

func (c *Client) ListWorkflows(ctx context.Context) ([]flow.Workflow, error) {
	var out []flow.Workflow
	if err := c.do(ctx, http.MethodGet, "/workflows", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetWorkflow(ctx context.Context, id string) (*flow.Workflow, error) {
	var out flow.Workflow
	if err := c.do(ctx, http.MethodGet, "/workflows/"+id, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateWorkflow(ctx context.Context, wf *flow.Workflow) (*flow.Workflow, error) {
	var out flow.Workflow
	if err := c.do(ctx, http.MethodPost, "/workflows", wf, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateWorkflow patches a workflow; the patch carries only changed
// fields (name, description, nodes, edges, is_active).
func (c *Client) UpdateWorkflow(ctx context.Context, id string, patch map[string]any) (*flow.Workflow, error) {
	var out flow.Workflow
	if err := c.do(ctx, http.MethodPatch, "/workflows/"+id, patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteWorkflow(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/workflows/"+id, nil, nil)
}

// --- Executions ---

// ListExecutions returns run history, optionally filtered by workflow.
func (c *Client) ListExecutions(ctx context.Context, workflowID string) ([]flow.Execution, error) {
	path := "/executions"
	if workflowID != "" {
		path += "?workflow_id=" + url.QueryEscape(workflowID)
	}
	var out []flow.Execution
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetExecution(ctx context.Context, id string) (*flow.Execution, error) {
	var out flow.Execution
	if err := c.do(ctx, http.MethodGet, "/executions/"+id, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RunWorkflow triggers a background run and returns the created execution.
func (c *Client) RunWorkflow(ctx context.Context, workflowID string, trigger map[string]any) (*flow.Execution, error) {
	var out flow.Execution
	body := map[string]any{"workflow_id": workflowID, "trigger_data": trigger}
	if err := c.do(ctx, http.MethodPost, "/executions", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// --- Approvals ---

// ListApprovals returns approvals, optionally filtered by status.
func (c *Client) ListApprovals(ctx context.Context, status flow.ApprovalStatus) ([]flow.Approval, error) {
	path := "/approvals"
	if status != "" {
		path += "?status=" + url.QueryEscape(string(status))
	}
	var out []flow.Approval
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetApproval(ctx context.Context, id string) (*flow.Approval, error) {
	var out flow.Approval
	if err := c.do(ctx, http.MethodGet, "/approvals/"+id, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ApproveAction approves a pending approval.
func (c *Client) ApproveAction(ctx context.Context, id string) (*flow.Approval, error) {
	return c.actionApproval(ctx, id, "approve", "")
}

// RejectAction rejects a pending approval with an optional reason.
func (c *Client) RejectAction(ctx context.Context, id, reason string) (*flow.Approval, error) {
	return c.actionApproval(ctx, id, "reject", reason)
}

func (c *Client) actionApproval(ctx context.Context, id, action, reason string) (*flow.Approval, error) {
	body := map[string]string{"action": action}
	if reason != "" {
		body["reason"] = reason
	}
	var out flow.Approval
	if err := c.do(ctx, http.MethodPost, "/approvals/"+id+"/action", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// --- Connections ---

func (c *Client) ListConnections(ctx context.Context) ([]flow.ConnectionSafe, error) {
	var out []flow.ConnectionSafe
	if err := c.do(ctx, http.MethodGet, "/connections", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateConnection stores credentials for a service (api_key services:
// the key collected by the client-side entry form).
func (c *Client) CreateConnection(ctx context.Context, serviceType, name string, credentials map[string]string) (*flow.ConnectionSafe, error) {
	body := map[string]any{"type": serviceType, "name": name, "credentials": credentials}
	var out flow.ConnectionSafe
	if err := c.do(ctx, http.MethodPost, "/connections", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteConnection(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/connections/"+id, nil, nil)
}

// AuthorizeConnection asks the server how to authorize a service: an
// OAuth redirect URL, a demo-mode flag, or an api_key marker meaning the
// client should collect the key itself.
func (c *Client) AuthorizeConnection(ctx context.Context, serviceType string) (*flow.AuthorizeResult, error) {
	var out flow.AuthorizeResult
	body := map[string]string{"type": serviceType}
	if err := c.do(ctx, http.MethodPost, "/connections/authorize", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RefreshConnection refreshes an OAuth connection's access token.
func (c *Client) RefreshConnection(ctx context.Context, id string) (*flow.ConnectionSafe, error) {
	var out flow.ConnectionSafe
	if err := c.do(ctx, http.MethodPost, "/connections/"+id+"/refresh", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// --- Templates ---

// ListTemplates returns templates filtered by category and/or business type.
func (c *Client) ListTemplates(ctx context.Context, category, businessType string) ([]flow.Template, error) {
	q := url.Values{}
	if category != "" {
		q.Set("category", category)
	}
	if businessType != "" {
		q.Set("business_type", businessType)
	}
	path := "/templates"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out []flow.Template
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetTemplate(ctx context.Context, id string) (*flow.Template, error) {
	var out flow.Template
	if err := c.do(ctx, http.MethodGet, "/templates/"+id, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UseTemplate instantiates a template into a new workflow.
func (c *Client) UseTemplate(ctx context.Context, id string) (*flow.Workflow, error) {
	var out flow.Workflow
	if err := c.do(ctx, http.MethodPost, "/templates/"+id+"/use", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// --- Knowledge base ---

func (c *Client) ListKnowledge(ctx context.Context, category string) ([]flow.KnowledgeEntry, error) {
	path := "/knowledge"
	if category != "" {
		path += "?category=" + url.QueryEscape(category)
	}
	var out []flow.KnowledgeEntry
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateKnowledge(ctx context.Context, entry *flow.KnowledgeEntry) (*flow.KnowledgeEntry, error) {
	var out flow.KnowledgeEntry
	if err := c.do(ctx, http.MethodPost, "/knowledge", entry, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateKnowledge(ctx context.Context, id string, patch map[string]any) (*flow.KnowledgeEntry, error) {
	var out flow.KnowledgeEntry
	if err := c.do(ctx, http.MethodPatch, "/knowledge/"+id, patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteKnowledge(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/knowledge/"+id, nil, nil)
}

// ImportKnowledgeFile uploads a document; the server extracts its text
// into a new knowledge entry.
func (c *Client) ImportKnowledgeFile(ctx context.Context, filename string, file io.Reader) (*flow.KnowledgeEntry, error) {
	var out flow.KnowledgeEntry
	if err := c.doMultipart(ctx, "/knowledge/import", "file", filename, file, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// --- AI ---

// ClarifyWorkflow returns follow-up questions the generator needs
// answered before it can produce a workflow from the description.
func (c *Client) ClarifyWorkflow(ctx context.Context, description string) ([]string, error) {
	var out struct {
		Questions []string `json:"questions"`
	}
	body := map[string]string{"description": description}
	if err := c.do(ctx, http.MethodPost, "/ai/clarify-workflow", body, &out); err != nil {
		return nil, err
	}
	return out.Questions, nil
}

// GenerateWorkflow produces a workflow body from a natural-language
// description. A non-nil existing definition switches to edit mode.
func (c *Client) GenerateWorkflow(ctx context.Context, description string, existing *flow.GraphDefinition) (*flow.Workflow, error) {
	body := map[string]any{"description": description}
	if existing != nil {
		body["existing"] = existing
	}
	var out flow.Workflow
	if err := c.do(ctx, http.MethodPost, "/ai/generate-workflow", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SuggestNodeParams asks the AI for parameter values for a node type in
// the context of the surrounding workflow.
func (c *Client) SuggestNodeParams(ctx context.Context, nodeType flow.NodeType, context_ map[string]any) (map[string]any, error) {
	body := map[string]any{"node_type": nodeType, "context": context_}
	var out struct {
		Parameters map[string]any `json:"parameters"`
	}
	if err := c.do(ctx, http.MethodPost, "/ai/suggest-node-params", body, &out); err != nil {
		return nil, err
	}
	return out.Parameters, nil
}

// --- Chat ---

// ChatMessage is one turn of an assistant conversation.
type ChatMessage struct {
	Role    string `json:"role"` // "user" | "assistant"
	Content string `json:"content"`
}

// ExecutionChat sends a message to the per-execution chat and returns the
// assistant's reply.
func (c *Client) ExecutionChat(ctx context.Context, executionID, message string) (string, error) {
	var out struct {
		Reply string `json:"reply"`
	}
	body := map[string]string{"message": message}
	if err := c.do(ctx, http.MethodPost, "/chat/executions/"+executionID, body, &out); err != nil {
		return "", err
	}
	return out.Reply, nil
}

// AssistantChat sends a message to the global assistant.
func (c *Client) AssistantChat(ctx context.Context, message string, history []ChatMessage) (string, error) {
	var out struct {
		Reply string `json:"reply"`
	}
	body := map[string]any{"message": message, "history": history}
	if err := c.do(ctx, http.MethodPost, "/chat/assistant", body, &out); err != nil {
		return "", err
	}
	return out.Reply, nil
}

// AssistantContext returns the assistant's summary of the account state
// (workflows, recent runs, pending approvals).
func (c *Client) AssistantContext(ctx context.Context) (string, error) {
	var out struct {
		Summary string `json:"summary"`
	}
	if err := c.do(ctx, http.MethodGet, "/chat/context", nil, &out); err != nil {
		return "", err
	}
	return out.Summary, nil
}
