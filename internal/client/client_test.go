package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/flowdeck/flowdeck/internal/flow"
	"github.com/flowdeck/flowdeck/internal/session"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	sess, err := session.Open(filepath.Join(t.TempDir(), "session.json"))
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	return New(srv.URL, sess)
}

func TestDo_SendsBearerToken(t *testing.T) {
	var gotAuth string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode([]flow.Workflow{})
	}))
	if err := c.SetToken("tok-abc"); err != nil {
		t.Fatalf("SetToken: %v", err)
	}
	if _, err := c.ListWorkflows(context.Background()); err != nil {
		t.Fatalf("ListWorkflows: %v", err)
	}
	if gotAuth != "Bearer tok-abc" {
		t.Fatalf("Authorization = %q, want Bearer tok-abc", gotAuth)
	}
}

func TestDo_ErrorMessageShapes(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"error field", http.StatusBadRequest, `{"error": "workflow name is required"}`, "workflow name is required"},
		{"message field", http.StatusConflict, `{"message": "already resolved"}`, "already resolved"},
		{"unparseable body", http.StatusInternalServerError, `<html>oops</html>`, "something went wrong"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			_, err := c.GetWorkflow(context.Background(), "wf-1")
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("want *APIError, got %v", err)
			}
			if apiErr.StatusCode != tt.status || apiErr.Message != tt.want {
				t.Fatalf("got %d %q, want %d %q", apiErr.StatusCode, apiErr.Message, tt.status, tt.want)
			}
		})
	}
}

func TestLogin_StoresToken(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/auth/login" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(AuthResponse{
			Token: "tok-login",
			User:  flow.User{ID: "user-1", Email: "ana@example.com"},
		})
	}))
	out, err := c.Login(context.Background(), "ana@example.com", "pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if out.User.ID != "user-1" {
		t.Fatalf("user = %+v", out.User)
	}
	if c.Token() != "tok-login" {
		t.Fatalf("token not stored: %q", c.Token())
	}
	if err := c.Logout(); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if c.Token() != "" {
		t.Fatalf("token survived logout")
	}
}

func TestWorkflowRoundTrip(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/workflows":
			var wf flow.Workflow
			json.NewDecoder(r.Body).Decode(&wf)
			wf.ID = "wf-1"
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(wf)
		case r.Method == http.MethodPatch && r.URL.Path == "/api/workflows/wf-1":
			var patch map[string]any
			json.NewDecoder(r.Body).Decode(&patch)
			json.NewEncoder(w).Encode(flow.Workflow{ID: "wf-1", Name: patch["name"].(string)})
		case r.Method == http.MethodDelete && r.URL.Path == "/api/workflows/wf-1":
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	}))

	ctx := context.Background()
	created, err := c.CreateWorkflow(ctx, &flow.Workflow{Name: "Orders"})
	if err != nil {
		t.Fatalf("CreateWorkflow: %v", err)
	}
	if created.ID != "wf-1" || created.Name != "Orders" {
		t.Fatalf("created = %+v", created)
	}

	updated, err := c.UpdateWorkflow(ctx, "wf-1", map[string]any{"name": "Orders v2"})
	if err != nil {
		t.Fatalf("UpdateWorkflow: %v", err)
	}
	if updated.Name != "Orders v2" {
		t.Fatalf("updated name = %q", updated.Name)
	}

	if err := c.DeleteWorkflow(ctx, "wf-1"); err != nil {
		t.Fatalf("DeleteWorkflow: %v", err)
	}
}

func TestListExecutions_QueryFilter(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("workflow_id"); got != "wf-7" {
			t.Errorf("workflow_id = %q", got)
		}
		json.NewEncoder(w).Encode([]flow.Execution{{ID: "exec-1", WorkflowID: "wf-7"}})
	}))
	execs, err := c.ListExecutions(context.Background(), "wf-7")
	if err != nil {
		t.Fatalf("ListExecutions: %v", err)
	}
	if len(execs) != 1 || execs[0].ID != "exec-1" {
		t.Fatalf("execs = %+v", execs)
	}
}

func TestImportKnowledgeFile_Multipart(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile: %v", err)
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		defer file.Close()
		if header.Filename != "notes.txt" {
			t.Errorf("filename = %q", header.Filename)
		}
		json.NewEncoder(w).Encode(flow.KnowledgeEntry{ID: "kb-1", Title: "notes"})
	}))
	entry, err := c.ImportKnowledgeFile(context.Background(), "notes.txt", strings.NewReader("store hours"))
	if err != nil {
		t.Fatalf("ImportKnowledgeFile: %v", err)
	}
	if entry.ID != "kb-1" {
		t.Fatalf("entry = %+v", entry)
	}
}

func TestClarifyWorkflow_UnwrapsQuestions(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"questions": []string{"Which channel?", "How often?"}})
	}))
	qs, err := c.ClarifyWorkflow(context.Background(), "notify me")
	if err != nil {
		t.Fatalf("ClarifyWorkflow: %v", err)
	}
	if len(qs) != 2 || qs[0] != "Which channel?" {
		t.Fatalf("questions = %v", qs)
	}
}
