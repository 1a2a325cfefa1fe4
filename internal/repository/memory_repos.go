package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/flowdeck/flowdeck/internal/flow"
	memstore "github.com/flowdeck/flowdeck/internal/repository/memory"
)

func notFound(err error, kind, id string) error {
	if errors.Is(err, memstore.ErrNotFound) {
		return fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
	}
	return err
}

// MemoryWorkflows is a thread-safe in-memory WorkflowRepository.
type MemoryWorkflows struct {
	store *memstore.Store[*flow.Workflow]
}

func NewMemoryWorkflows() *MemoryWorkflows {
	return &MemoryWorkflows{
		store: memstore.New(func(w *flow.Workflow) string { return w.ID }),
	}
}

func (r *MemoryWorkflows) Create(ctx context.Context, wf *flow.Workflow) error {
	if r.store.Has(ctx, wf.ID) {
		return fmt.Errorf("workflow %q already exists", wf.ID)
	}
	return r.store.Set(ctx, wf)
}

func (r *MemoryWorkflows) Get(ctx context.Context, id string) (*flow.Workflow, error) {
	wf, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, notFound(err, "workflow", id)
	}
	return wf, nil
}

func (r *MemoryWorkflows) List(ctx context.Context) ([]*flow.Workflow, error) {
	wfs, err := r.store.All(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(wfs, func(i, j int) bool { return wfs[i].UpdatedAt.After(wfs[j].UpdatedAt) })
	return wfs, nil
}

func (r *MemoryWorkflows) Update(ctx context.Context, wf *flow.Workflow) error {
	if !r.store.Has(ctx, wf.ID) {
		return fmt.Errorf("%w: workflow %s", ErrNotFound, wf.ID)
	}
	return r.store.Set(ctx, wf)
}

func (r *MemoryWorkflows) Delete(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, id); err != nil {
		return notFound(err, "workflow", id)
	}
	return nil
}

// MemoryExecutions is a thread-safe in-memory ExecutionRepository.
type MemoryExecutions struct {
	store *memstore.Store[*flow.Execution]
}

func NewMemoryExecutions() *MemoryExecutions {
	return &MemoryExecutions{
		store: memstore.New(func(e *flow.Execution) string { return e.ID }),
	}
}

func (r *MemoryExecutions) Create(ctx context.Context, ex *flow.Execution) error {
	return r.store.Set(ctx, ex)
}

func (r *MemoryExecutions) Get(ctx context.Context, id string) (*flow.Execution, error) {
	ex, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, notFound(err, "execution", id)
	}
	return ex, nil
}

func (r *MemoryExecutions) List(ctx context.Context, workflowID string) ([]*flow.Execution, error) {
	exs, err := r.store.Filter(ctx, func(e *flow.Execution) bool {
		return workflowID == "" || e.WorkflowID == workflowID
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(exs, func(i, j int) bool { return exs[i].CreatedAt.After(exs[j].CreatedAt) })
	return exs, nil
}

func (r *MemoryExecutions) Update(ctx context.Context, ex *flow.Execution) error {
	return r.store.Set(ctx, ex)
}

// MemoryApprovals is a thread-safe in-memory ApprovalRepository.
type MemoryApprovals struct {
	store *memstore.Store[*flow.Approval]
}

func NewMemoryApprovals() *MemoryApprovals {
	return &MemoryApprovals{
		store: memstore.New(func(a *flow.Approval) string { return a.ID }),
	}
}

func (r *MemoryApprovals) Create(ctx context.Context, a *flow.Approval) error {
	return r.store.Set(ctx, a)
}

func (r *MemoryApprovals) Get(ctx context.Context, id string) (*flow.Approval, error) {
	a, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, notFound(err, "approval", id)
	}
	return a, nil
}

func (r *MemoryApprovals) List(ctx context.Context, status flow.ApprovalStatus) ([]*flow.Approval, error) {
	as, err := r.store.Filter(ctx, func(a *flow.Approval) bool {
		return status == "" || a.Status == status
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(as, func(i, j int) bool { return as[i].CreatedAt.After(as[j].CreatedAt) })
	return as, nil
}

func (r *MemoryApprovals) Update(ctx context.Context, a *flow.Approval) error {
	return r.store.Set(ctx, a)
}

// MemoryConnections is a thread-safe in-memory ConnectionRepository.
type MemoryConnections struct {
	store *memstore.Store[*flow.Connection]
}

func NewMemoryConnections() *MemoryConnections {
	return &MemoryConnections{
		store: memstore.New(func(c *flow.Connection) string { return c.ID }),
	}
}

func (r *MemoryConnections) Create(ctx context.Context, c *flow.Connection) error {
	if r.store.Has(ctx, c.ID) {
		return fmt.Errorf("connection %q already exists", c.ID)
	}
	return r.store.Set(ctx, c)
}

func (r *MemoryConnections) Get(ctx context.Context, id string) (*flow.Connection, error) {
	c, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, notFound(err, "connection", id)
	}
	return c, nil
}

func (r *MemoryConnections) List(ctx context.Context) ([]*flow.Connection, error) {
	cs, err := r.store.All(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(cs, func(i, j int) bool { return cs[i].CreatedAt.After(cs[j].CreatedAt) })
	return cs, nil
}

func (r *MemoryConnections) Update(ctx context.Context, c *flow.Connection) error {
	if !r.store.Has(ctx, c.ID) {
		return fmt.Errorf("%w: connection %s", ErrNotFound, c.ID)
	}
	return r.store.Set(ctx, c)
}

func (r *MemoryConnections) Delete(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, id); err != nil {
		return notFound(err, "connection", id)
	}
	return nil
}

// MemoryTemplates is a thread-safe in-memory TemplateRepository.
type MemoryTemplates struct {
	store *memstore.Store[*flow.Template]
}

func NewMemoryTemplates() *MemoryTemplates {
	return &MemoryTemplates{
		store: memstore.New(func(t *flow.Template) string { return t.ID }),
	}
}

func (r *MemoryTemplates) Create(ctx context.Context, t *flow.Template) error {
	return r.store.Set(ctx, t)
}

func (r *MemoryTemplates) Get(ctx context.Context, id string) (*flow.Template, error) {
	t, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, notFound(err, "template", id)
	}
	return t, nil
}

func (r *MemoryTemplates) List(ctx context.Context, category, businessType string) ([]*flow.Template, error) {
	ts, err := r.store.Filter(ctx, func(t *flow.Template) bool {
		if category != "" && t.Category != category {
			return false
		}
		if businessType != "" && t.BusinessType != businessType {
			return false
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(ts, func(i, j int) bool { return ts[i].Name < ts[j].Name })
	return ts, nil
}

// MemoryKnowledge is a thread-safe in-memory KnowledgeRepository.
type MemoryKnowledge struct {
	store *memstore.Store[*flow.KnowledgeEntry]
}

func NewMemoryKnowledge() *MemoryKnowledge {
	return &MemoryKnowledge{
		store: memstore.New(func(e *flow.KnowledgeEntry) string { return e.ID }),
	}
}

func (r *MemoryKnowledge) Create(ctx context.Context, e *flow.KnowledgeEntry) error {
	return r.store.Set(ctx, e)
}

func (r *MemoryKnowledge) Get(ctx context.Context, id string) (*flow.KnowledgeEntry, error) {
	e, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, notFound(err, "knowledge entry", id)
	}
	return e, nil
}

func (r *MemoryKnowledge) List(ctx context.Context, category string) ([]*flow.KnowledgeEntry, error) {
	es, err := r.store.Filter(ctx, func(e *flow.KnowledgeEntry) bool {
		return category == "" || e.Category == category
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(es, func(i, j int) bool { return es[i].UpdatedAt.After(es[j].UpdatedAt) })
	return es, nil
}

func (r *MemoryKnowledge) Update(ctx context.Context, e *flow.KnowledgeEntry) error {
	if !r.store.Has(ctx, e.ID) {
		return fmt.Errorf("%w: knowledge entry %s", ErrNotFound, e.ID)
	}
	return r.store.Set(ctx, e)
}

func (r *MemoryKnowledge) Delete(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, id); err != nil {
		return notFound(err, "knowledge entry", id)
	}
	return nil
}

// MemoryUsers is a thread-safe in-memory UserRepository.
type MemoryUsers struct {
	store *memstore.Store[*flow.User]
}

func NewMemoryUsers() *MemoryUsers {
	return &MemoryUsers{
		store: memstore.New(func(u *flow.User) string { return u.ID }),
	}
}

func (r *MemoryUsers) Create(ctx context.Context, u *flow.User) error {
	if _, err := r.GetByEmail(ctx, u.Email); err == nil {
		return fmt.Errorf("email %q already registered", u.Email)
	}
	return r.store.Set(ctx, u)
}

func (r *MemoryUsers) Get(ctx context.Context, id string) (*flow.User, error) {
	u, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, notFound(err, "user", id)
	}
	return u, nil
}

func (r *MemoryUsers) GetByEmail(ctx context.Context, email string) (*flow.User, error) {
	us, err := r.store.Filter(ctx, func(u *flow.User) bool { return u.Email == email })
	if err != nil {
		return nil, err
	}
	if len(us) == 0 {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, email)
	}
	return us[0], nil
}

func (r *MemoryUsers) Update(ctx context.Context, u *flow.User) error {
	return r.store.Set(ctx, u)
}
