package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/flowdeck/flowdeck/internal/flow"
	"github.com/flowdeck/flowdeck/internal/repository"
)

// SchedulerService fires active workflows whose trigger node carries a
// cron expression. Cron entries are synced from the workflow repository
// so edits and deactivations take effect without a restart.
type SchedulerService struct {
	workflows repository.WorkflowRepository
	runner    *Runner
	cron      *cron.Cron

	mu       sync.Mutex
	entryMap map[string]cron.EntryID // workflow ID -> cron entry

	// MaxConcurrent bounds simultaneous scheduled dispatches.
	MaxConcurrent int
}

func NewSchedulerService(workflows repository.WorkflowRepository, runner *Runner) *SchedulerService {
	return &SchedulerService{
		workflows:     workflows,
		runner:        runner,
		cron:          cron.New(),
		entryMap:      make(map[string]cron.EntryID),
		MaxConcurrent: 4,
	}
}

// Start begins cron dispatch and registers entries for all currently
// active scheduled workflows.
func (s *SchedulerService) Start(ctx context.Context) error {
	if err := s.Sync(ctx); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts cron dispatch, waiting for in-flight jobs.
func (s *SchedulerService) Stop() {
	<-s.cron.Stop().Done()
}

// Sync reconciles cron entries with the repository: active workflows
// with a cron trigger get an entry, everything else is removed.
func (s *SchedulerService) Sync(ctx context.Context) error {
	wfs, err := s.workflows.List(ctx)
	if err != nil {
		return err
	}

	want := make(map[string]string) // workflow ID -> cron expr
	for _, wf := range wfs {
		if !wf.IsActive {
			continue
		}
		if expr := cronExpr(wf); expr != "" {
			want[wf.ID] = expr
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, entryID := range s.entryMap {
		if _, ok := want[id]; !ok {
			s.cron.Remove(entryID)
			delete(s.entryMap, id)
			slog.Info("scheduler: removed cron entry", "workflow_id", id)
		}
	}

	for id, expr := range want {
		if _, ok := s.entryMap[id]; ok {
			continue
		}
		wfID := id
		entryID, err := s.cron.AddFunc(expr, func() { s.fire(wfID) })
		if err != nil {
			slog.Warn("scheduler: bad cron expression", "workflow_id", id, "cron", expr, "err", err)
			continue
		}
		s.entryMap[id] = entryID
		slog.Info("scheduler: registered cron entry", "workflow_id", id, "cron", expr)
	}
	return nil
}

// fire starts one scheduled run, draining its event channel so the run
// can finish without a streaming consumer.
func (s *SchedulerService) fire(workflowID string) {
	ctx := context.Background()
	wf, err := s.workflows.Get(ctx, workflowID)
	if err != nil {
		slog.Warn("scheduler: workflow vanished", "workflow_id", workflowID, "err", err)
		return
	}
	if !wf.IsActive {
		return
	}

	ex, events, err := s.runner.Start(ctx, wf, map[string]any{
		"source":   "schedule",
		"fired_at": time.Now().Format(time.RFC3339),
	})
	if err != nil {
		slog.Warn("scheduler: run failed to start", "workflow_id", workflowID, "err", err)
		return
	}
	slog.Info("scheduler: fired workflow", "workflow_id", workflowID, "execution_id", ex.ID)
	for range events {
	}
}

// FireDue starts runs for every active scheduled workflow at once,
// bounded by MaxConcurrent. Backs the one-shot "fire" command for
// deployments that trigger schedules externally instead of running the
// resident cron.
func (s *SchedulerService) FireDue(ctx context.Context) error {
	wfs, err := s.workflows.List(ctx)
	if err != nil {
		return err
	}

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(s.MaxConcurrent)
	for _, wf := range wfs {
		if !wf.IsActive || cronExpr(wf) == "" {
			continue
		}
		id := wf.ID
		g.Go(func() error {
			s.fire(id)
			return nil
		})
	}
	return g.Wait()
}

// cronExpr returns the cron expression of the workflow's trigger node,
// or "" when the workflow is not schedule-triggered.
func cronExpr(wf *flow.Workflow) string {
	for _, n := range wf.Nodes {
		if n.Type != flow.NodeTypeTrigger {
			continue
		}
		if expr, ok := n.Parameters["cron"].(string); ok && expr != "" {
			return expr
		}
	}
	return ""
}
