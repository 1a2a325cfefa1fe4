package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/flowdeck/flowdeck/internal/flow"
)

func TestMemoryWorkflows_CRUD(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryWorkflows()

	wf := &flow.Workflow{ID: "wf-1", Name: "Orders", UpdatedAt: time.Now()}
	if err := repo.Create(ctx, wf); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.Create(ctx, wf); err == nil {
		t.Fatalf("duplicate Create should fail")
	}

	got, err := repo.Get(ctx, "wf-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "Orders" {
		t.Fatalf("got %+v", got)
	}

	got.Name = "Orders v2"
	if err := repo.Update(ctx, got); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := repo.Update(ctx, &flow.Workflow{ID: "ghost"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Update missing = %v, want ErrNotFound", err)
	}

	if err := repo.Delete(ctx, "wf-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.Get(ctx, "wf-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get after delete = %v, want ErrNotFound", err)
	}
	if err := repo.Delete(ctx, "wf-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("double Delete = %v, want ErrNotFound", err)
	}
}

func TestMemoryWorkflows_ListOrdersByUpdatedAt(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryWorkflows()
	now := time.Now()
	repo.Create(ctx, &flow.Workflow{ID: "old", UpdatedAt: now.Add(-time.Hour)})
	repo.Create(ctx, &flow.Workflow{ID: "new", UpdatedAt: now})
	repo.Create(ctx, &flow.Workflow{ID: "mid", UpdatedAt: now.Add(-time.Minute)})

	wfs, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{"new", "mid", "old"}
	for i, id := range want {
		if wfs[i].ID != id {
			t.Fatalf("order[%d] = %s, want %s", i, wfs[i].ID, id)
		}
	}
}

func TestMemoryExecutions_FilterByWorkflow(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryExecutions()
	now := time.Now()
	repo.Create(ctx, &flow.Execution{ID: "e1", WorkflowID: "wf-1", CreatedAt: now.Add(-time.Minute)})
	repo.Create(ctx, &flow.Execution{ID: "e2", WorkflowID: "wf-2", CreatedAt: now})
	repo.Create(ctx, &flow.Execution{ID: "e3", WorkflowID: "wf-1", CreatedAt: now})

	all, err := repo.List(ctx, "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len(all) = %d", len(all))
	}

	filtered, err := repo.List(ctx, "wf-1")
	if err != nil {
		t.Fatalf("List filtered: %v", err)
	}
	if len(filtered) != 2 {
		t.Fatalf("len(filtered) = %d", len(filtered))
	}
	if filtered[0].ID != "e3" {
		t.Fatalf("newest first, got %s", filtered[0].ID)
	}
}

func TestMemoryApprovals_FilterByStatus(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryApprovals()
	repo.Create(ctx, &flow.Approval{ID: "a1", Status: flow.ApprovalPending})
	repo.Create(ctx, &flow.Approval{ID: "a2", Status: flow.ApprovalApproved})

	pending, err := repo.List(ctx, flow.ApprovalPending)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "a1" {
		t.Fatalf("pending = %+v", pending)
	}

	all, err := repo.List(ctx, "")
	if err != nil {
		t.Fatalf("List all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("len(all) = %d", len(all))
	}
}

func TestMemoryTemplates_Filters(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryTemplates()
	repo.Create(ctx, &flow.Template{ID: "t1", Name: "B", Category: "sales", BusinessType: "retail"})
	repo.Create(ctx, &flow.Template{ID: "t2", Name: "A", Category: "sales", BusinessType: "restaurant"})
	repo.Create(ctx, &flow.Template{ID: "t3", Name: "C", Category: "support", BusinessType: "retail"})

	sales, err := repo.List(ctx, "sales", "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(sales) != 2 || sales[0].Name != "A" {
		t.Fatalf("sales = %+v, want name-sorted pair", sales)
	}

	retailSales, err := repo.List(ctx, "sales", "retail")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(retailSales) != 1 || retailSales[0].ID != "t1" {
		t.Fatalf("retailSales = %+v", retailSales)
	}
}

func TestMemoryUsers_EmailLookup(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUsers()
	if err := repo.Create(ctx, &flow.User{ID: "u1", Email: "ana@example.com"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.Create(ctx, &flow.User{ID: "u2", Email: "ana@example.com"}); err == nil {
		t.Fatalf("duplicate email should be rejected")
	}

	u, err := repo.GetByEmail(ctx, "ana@example.com")
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	if u.ID != "u1" {
		t.Fatalf("user = %+v", u)
	}
	if _, err := repo.GetByEmail(ctx, "nobody@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing email = %v, want ErrNotFound", err)
	}
}

func TestMemoryKnowledge_CategoryFilter(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryKnowledge()
	now := time.Now()
	repo.Create(ctx, &flow.KnowledgeEntry{ID: "k1", Category: "faq", UpdatedAt: now})
	repo.Create(ctx, &flow.KnowledgeEntry{ID: "k2", Category: "policy", UpdatedAt: now})

	faqs, err := repo.List(ctx, "faq")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(faqs) != 1 || faqs[0].ID != "k1" {
		t.Fatalf("faqs = %+v", faqs)
	}
	if err := repo.Update(ctx, &flow.KnowledgeEntry{ID: "ghost"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Update missing = %v, want ErrNotFound", err)
	}
}
