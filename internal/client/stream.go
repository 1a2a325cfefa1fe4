package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/flowdeck/flowdeck/internal/flow"
)

// ErrAborted is returned by RunHandle.Wait when the stream was cancelled
// via Abort before a complete record arrived.
var ErrAborted = errors.New("run stream aborted")

// RunHandle tracks one in-flight streaming run. Wait blocks until the
// first complete record (or stream end) and resolves exactly once; Abort
// cancels the underlying request.
type RunHandle struct {
	cancel context.CancelFunc
	done   chan struct{}

	once   sync.Once
	execID string
	err    error
}

// resolve settles the handle. Only the first call wins.
func (h *RunHandle) resolve(execID string, err error) {
	h.once.Do(func() {
		h.execID = execID
		h.err = err
		close(h.done)
	})
}

// Abort cancels the in-flight request. Safe to call multiple times and
// after completion, where it is a no-op.
func (h *RunHandle) Abort() {
	h.cancel()
}

// Wait blocks until the run stream resolves and returns the execution id.
func (h *RunHandle) Wait() (string, error) {
	<-h.done
	return h.execID, h.err
}

// Done returns a channel closed when the handle resolves.
func (h *RunHandle) Done() <-chan struct{} { return h.done }

// RunWorkflowWithProgress starts a streaming run: it POSTs the workflow
// id and trigger data to /executions/stream and reads the response body
// incrementally. Each "data: <json>" line is parsed into a StreamEvent
// and handed to onEvent in arrival order; malformed lines are skipped.
// Partial lines are buffered across chunk boundaries. The reader loop
// continues until the transport signals completion or Abort is called.
func (c *Client) RunWorkflowWithProgress(ctx context.Context, workflowID string, trigger map[string]any, onEvent func(flow.StreamEvent)) (*RunHandle, error) {
	body, err := json.Marshal(map[string]any{
		"workflow_id":  workflowID,
		"trigger_data": trigger,
	})
	if err != nil {
		return nil, err
	}

	streamCtx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(streamCtx, http.MethodPost, c.baseURL+"/api/executions/stream", bytes.NewReader(body))
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if tok := c.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		cancel()
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := decodeError(resp)
		resp.Body.Close()
		cancel()
		return nil, err
	}

	h := &RunHandle{cancel: cancel, done: make(chan struct{})}
	go c.readStream(resp.Body, h, onEvent)
	return h, nil
}

// readStream consumes the event stream line by line until EOF or cancel.
func (c *Client) readStream(body io.ReadCloser, h *RunHandle, onEvent func(flow.StreamEvent)) {
	defer body.Close()
	defer h.cancel()

	var execID string
	reader := bufio.NewReader(body)
	for {
		line, err := reader.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")

		if ev, ok := parseStreamLine(line); ok {
			if ev.ExecutionID != "" {
				execID = ev.ExecutionID
			}
			if onEvent != nil {
				onEvent(ev)
			}
			if ev.Type == flow.StreamEventComplete {
				// First complete record resolves; the loop keeps
				// draining so the transport can finish cleanly.
				h.resolve(execID, nil)
			}
		}

		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				// Stream end also resolves, if complete never arrived.
				h.resolve(execID, nil)
			case errors.Is(err, context.Canceled):
				h.resolve(execID, ErrAborted)
			default:
				h.resolve(execID, err)
			}
			return
		}
	}
}

// parseStreamLine parses one "data: <json>" record. Blank lines, other
// framing, and malformed JSON are skipped, not fatal.
func parseStreamLine(line string) (flow.StreamEvent, bool) {
	var ev flow.StreamEvent
	if line == "" {
		return ev, false
	}
	payload, ok := strings.CutPrefix(line, "data:")
	if !ok {
		return ev, false
	}
	payload = strings.TrimSpace(payload)
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return ev, false
	}
	if ev.Type == "" {
		return ev, false
	}
	return ev, true
}
