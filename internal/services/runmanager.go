package services

import (
	"sync"
	"time"

	"github.com/flowdeck/flowdeck/internal/flow"
)

// EventRecord is a sequence-numbered stream event stored in the per-run
// buffer so late subscribers can replay from any offset.
type EventRecord struct {
	Seq   int              `json:"seq"`
	Event flow.StreamEvent `json:"event"`
}

// runEntry holds the in-memory state for a single execution: buffered
// events, completion status, and subscriber notification channels.
type runEntry struct {
	mu          sync.RWMutex
	events      []EventRecord
	done        bool
	finalStatus flow.ExecutionStatus
	subs        []chan struct{} // closed-and-replaced on each new event (fan-out wakeup)
	completedAt time.Time
}

// snapshot returns a copy of events from startSeq onward, registers a
// subscriber notification channel, and reports the run's done state.
func (e *runEntry) snapshot(startSeq int) (events []EventRecord, notify <-chan struct{}, done bool, finalStatus flow.ExecutionStatus) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if startSeq < len(e.events) {
		events = make([]EventRecord, len(e.events)-startSeq)
		copy(events, e.events[startSeq:])
	}

	ch := make(chan struct{})
	e.subs = append(e.subs, ch)

	return events, ch, e.done, e.finalStatus
}

// RunManager tracks in-progress and recently-completed executions with
// an in-memory per-run event buffer and subscriber fan-out. The stream
// handler writes events as they happen; the replay endpoint subscribes
// from an arbitrary offset.
type RunManager struct {
	mu   sync.RWMutex
	runs map[string]*runEntry
	ttl  time.Duration
	stop chan struct{}
}

// NewRunManager creates a RunManager that keeps completed run buffers
// for the given TTL before garbage-collecting them.
func NewRunManager(ttl time.Duration) *RunManager {
	rm := &RunManager{
		runs: make(map[string]*runEntry),
		ttl:  ttl,
		stop: make(chan struct{}),
	}
	go rm.gc()
	return rm
}

// Stop terminates the GC goroutine.
func (rm *RunManager) Stop() {
	close(rm.stop)
}

// Register creates a new run entry. Call this when an execution starts.
func (rm *RunManager) Register(executionID string) {
	rm.mu.Lock()
	rm.runs[executionID] = &runEntry{}
	rm.mu.Unlock()
}

// Append adds an event to the run's buffer and notifies all subscribers.
func (rm *RunManager) Append(executionID string, ev flow.StreamEvent) {
	rm.mu.RLock()
	entry, ok := rm.runs[executionID]
	rm.mu.RUnlock()
	if !ok {
		return
	}

	entry.mu.Lock()
	entry.events = append(entry.events, EventRecord{Seq: len(entry.events), Event: ev})
	subs := entry.subs
	entry.subs = nil
	entry.mu.Unlock()

	// Wake all subscribers by closing their channels.
	for _, ch := range subs {
		close(ch)
	}
}

// Complete marks a run as done with its final status and notifies
// subscribers.
func (rm *RunManager) Complete(executionID string, status flow.ExecutionStatus) {
	rm.mu.RLock()
	entry, ok := rm.runs[executionID]
	rm.mu.RUnlock()
	if !ok {
		return
	}

	entry.mu.Lock()
	entry.done = true
	entry.finalStatus = status
	entry.completedAt = time.Now()
	subs := entry.subs
	entry.subs = nil
	entry.mu.Unlock()

	for _, ch := range subs {
		close(ch)
	}
}

// Subscribe returns all buffered events from startSeq onward, a
// notification channel that is closed when new events arrive, and the
// run's done state. Returns found=false if the executionID is not
// tracked.
func (rm *RunManager) Subscribe(executionID string, startSeq int) (events []EventRecord, notify <-chan struct{}, done bool, finalStatus flow.ExecutionStatus, found bool) {
	rm.mu.RLock()
	entry, ok := rm.runs[executionID]
	rm.mu.RUnlock()
	if !ok {
		return nil, nil, false, "", false
	}

	events, notify, done, finalStatus = entry.snapshot(startSeq)
	return events, notify, done, finalStatus, true
}

// gc periodically removes completed run entries that have exceeded the TTL.
func (rm *RunManager) gc() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-rm.stop:
			return
		case <-ticker.C:
			rm.collectExpired()
		}
	}
}

func (rm *RunManager) collectExpired() {
	now := time.Now()
	rm.mu.Lock()
	defer rm.mu.Unlock()
	for id, entry := range rm.runs {
		entry.mu.RLock()
		expired := entry.done && now.Sub(entry.completedAt) > rm.ttl
		entry.mu.RUnlock()
		if expired {
			delete(rm.runs, id)
		}
	}
}
