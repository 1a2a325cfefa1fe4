package services

import (
	"fmt"
	"sync"
)

// ExecutionHandle represents one in-flight execution. The runner blocks
// on it at approval gates; the approvals endpoint unblocks it when the
// user acts.
type ExecutionHandle struct {
	ExecutionID string

	mu       sync.Mutex
	canceled bool
	cancel   chan struct{}
	waitChs  map[string]chan map[string]any
}

// NewExecutionHandle creates a handle for an execution.
func NewExecutionHandle(executionID string) *ExecutionHandle {
	return &ExecutionHandle{
		ExecutionID: executionID,
		cancel:      make(chan struct{}),
		waitChs:     make(map[string]chan map[string]any),
	}
}

// WaitForResume blocks until Resume is called for the given node or the
// handle is canceled. ok is false on cancellation.
func (h *ExecutionHandle) WaitForResume(nodeID string) (payload map[string]any, ok bool) {
	h.mu.Lock()
	if h.canceled {
		h.mu.Unlock()
		return nil, false
	}
	ch := make(chan map[string]any, 1)
	h.waitChs[nodeID] = ch
	h.mu.Unlock()

	select {
	case p := <-ch:
		return p, true
	case <-h.cancel:
		return nil, false
	}
}

// Resume unblocks a waiting node with the given payload.
func (h *ExecutionHandle) Resume(nodeID string, payload map[string]any) error {
	h.mu.Lock()
	ch, ok := h.waitChs[nodeID]
	if ok {
		delete(h.waitChs, nodeID)
	}
	h.mu.Unlock()
	if !ok {
		return fmt.Errorf("node %q is not waiting for resume", nodeID)
	}
	ch <- payload
	return nil
}

// Cancel releases every waiter. Safe to call more than once.
func (h *ExecutionHandle) Cancel() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.canceled {
		return
	}
	h.canceled = true
	close(h.cancel)
}

// ExecutionRegistry tracks active execution handles by execution ID.
type ExecutionRegistry struct {
	mu      sync.RWMutex
	handles map[string]*ExecutionHandle
}

func NewExecutionRegistry() *ExecutionRegistry {
	return &ExecutionRegistry{handles: make(map[string]*ExecutionHandle)}
}

// Register adds an execution handle. Returns the handle for use by the runner.
func (r *ExecutionRegistry) Register(executionID string) *ExecutionHandle {
	h := NewExecutionHandle(executionID)
	r.mu.Lock()
	r.handles[executionID] = h
	r.mu.Unlock()
	return h
}

// Get retrieves a handle by execution ID.
func (r *ExecutionRegistry) Get(executionID string) (*ExecutionHandle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[executionID]
	return h, ok
}

// Unregister removes a completed execution.
func (r *ExecutionRegistry) Unregister(executionID string) {
	r.mu.Lock()
	delete(r.handles, executionID)
	r.mu.Unlock()
}

// CancelAll cancels every registered handle, releasing runs blocked at
// approval gates. Called during server shutdown.
func (r *ExecutionRegistry) CancelAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, h := range r.handles {
		h.Cancel()
	}
}
