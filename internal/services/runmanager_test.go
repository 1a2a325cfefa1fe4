package services

import (
	"testing"
	"time"

	"github.com/flowdeck/flowdeck/internal/flow"
)

func TestRunManager_AppendAndReplay(t *testing.T) {
	rm := NewRunManager(time.Minute)
	defer rm.Stop()

	rm.Register("exec-1")
	rm.Append("exec-1", flow.StreamEvent{Type: flow.StreamEventStart, ExecutionID: "exec-1"})
	rm.Append("exec-1", flow.StreamEvent{Type: flow.StreamEventStep, NodeID: "n1"})
	rm.Append("exec-1", flow.StreamEvent{Type: flow.StreamEventStep, NodeID: "n2"})

	events, _, done, _, found := rm.Subscribe("exec-1", 0)
	if !found {
		t.Fatalf("run not found")
	}
	if done {
		t.Fatalf("run should not be done")
	}
	if len(events) != 3 {
		t.Fatalf("len(events) = %d, want 3", len(events))
	}
	for i, rec := range events {
		if rec.Seq != i {
			t.Fatalf("seq[%d] = %d", i, rec.Seq)
		}
	}

	// Replay from an offset skips what the subscriber already saw.
	tail, _, _, _, _ := rm.Subscribe("exec-1", 2)
	if len(tail) != 1 || tail[0].Event.NodeID != "n2" {
		t.Fatalf("tail = %+v", tail)
	}
}

func TestRunManager_NotifyOnAppend(t *testing.T) {
	rm := NewRunManager(time.Minute)
	defer rm.Stop()
	rm.Register("exec-1")

	_, notify, _, _, _ := rm.Subscribe("exec-1", 0)
	select {
	case <-notify:
		t.Fatalf("notify closed before any event")
	default:
	}

	rm.Append("exec-1", flow.StreamEvent{Type: flow.StreamEventStep, NodeID: "n1"})
	select {
	case <-notify:
	case <-time.After(time.Second):
		t.Fatalf("subscriber not woken by Append")
	}

	events, _, _, _, _ := rm.Subscribe("exec-1", 0)
	if len(events) != 1 {
		t.Fatalf("len(events) = %d", len(events))
	}
}

func TestRunManager_Complete(t *testing.T) {
	rm := NewRunManager(time.Minute)
	defer rm.Stop()
	rm.Register("exec-1")

	_, notify, _, _, _ := rm.Subscribe("exec-1", 0)
	rm.Complete("exec-1", flow.ExecutionCompleted)

	select {
	case <-notify:
	case <-time.After(time.Second):
		t.Fatalf("subscriber not woken by Complete")
	}

	_, _, done, status, found := rm.Subscribe("exec-1", 0)
	if !found || !done {
		t.Fatalf("found=%v done=%v", found, done)
	}
	if status != flow.ExecutionCompleted {
		t.Fatalf("status = %q", status)
	}
}

func TestRunManager_UnknownExecution(t *testing.T) {
	rm := NewRunManager(time.Minute)
	defer rm.Stop()

	// Append and Complete on unknown IDs are no-ops.
	rm.Append("ghost", flow.StreamEvent{Type: flow.StreamEventStart})
	rm.Complete("ghost", flow.ExecutionCompleted)

	if _, _, _, _, found := rm.Subscribe("ghost", 0); found {
		t.Fatalf("ghost run should not be found")
	}
}

func TestRunManager_GCExpiresCompletedRuns(t *testing.T) {
	rm := NewRunManager(time.Millisecond)
	defer rm.Stop()
	rm.Register("exec-1")
	rm.Complete("exec-1", flow.ExecutionCompleted)

	time.Sleep(5 * time.Millisecond)
	rm.collectExpired()

	if _, _, _, _, found := rm.Subscribe("exec-1", 0); found {
		t.Fatalf("expired run still tracked")
	}
}
