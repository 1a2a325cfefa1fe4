// Package api exposes the HTTP surface of the platform under /api:
// auth, workflows, executions (including progress streaming), approvals,
// connections, templates, knowledge, and the AI endpoints.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/flowdeck/flowdeck/internal/generate"
	"github.com/flowdeck/flowdeck/internal/repository"
	"github.com/flowdeck/flowdeck/internal/services"
)

type Server struct {
	workflowSvc   *services.WorkflowService
	runner        *services.Runner
	runManager    *services.RunManager
	approvalSvc   *services.ApprovalService
	connectionSvc *services.ConnectionService
	generator     *generate.Generator

	executions repository.ExecutionRepository
	templates  repository.TemplateRepository
	knowledge  repository.KnowledgeRepository
	approvals  repository.ApprovalRepository
	users      repository.UserRepository

	jwtSecret     []byte
	tokenTTLHours int
}

func NewServer(workflowSvc *services.WorkflowService, runner *services.Runner, runManager *services.RunManager) *Server {
	return &Server{
		workflowSvc:   workflowSvc,
		runner:        runner,
		runManager:    runManager,
		tokenTTLHours: 72,
	}
}

// SetAuth configures token signing. Without a secret the auth endpoints
// return 503 and the rest of the API accepts unauthenticated requests.
func (s *Server) SetAuth(users repository.UserRepository, jwtSecret string, tokenTTLHours int) {
	s.users = users
	s.jwtSecret = []byte(jwtSecret)
	if tokenTTLHours > 0 {
		s.tokenTTLHours = tokenTTLHours
	}
}

// SetApprovals configures the approval endpoints.
func (s *Server) SetApprovals(svc *services.ApprovalService, repo repository.ApprovalRepository) {
	s.approvalSvc = svc
	s.approvals = repo
}

// SetConnectionService configures the connection endpoints.
func (s *Server) SetConnectionService(svc *services.ConnectionService) {
	s.connectionSvc = svc
}

// SetGenerator configures the AI endpoints.
func (s *Server) SetGenerator(gen *generate.Generator) {
	s.generator = gen
}

// SetExecutionRepository configures run-history reads.
func (s *Server) SetExecutionRepository(repo repository.ExecutionRepository) {
	s.executions = repo
}

// SetTemplateRepository configures the template endpoints.
func (s *Server) SetTemplateRepository(repo repository.TemplateRepository) {
	s.templates = repo
}

// SetKnowledgeRepository configures the knowledge-base endpoints.
func (s *Server) SetKnowledgeRepository(repo repository.KnowledgeRepository) {
	s.knowledge = repo
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "Last-Event-ID"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/signup", s.signup)
		r.Post("/auth/login", s.login)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/auth/me", s.me)
			r.Patch("/auth/me", s.updateMe)

			r.Route("/workflows", func(r chi.Router) {
				r.Post("/", s.createWorkflow)
				r.Get("/", s.listWorkflows)
				r.Get("/{id}", s.getWorkflow)
				r.Patch("/{id}", s.updateWorkflow)
				r.Delete("/{id}", s.deleteWorkflow)
			})

			r.Route("/executions", func(r chi.Router) {
				r.Post("/", s.createExecution)
				r.Get("/", s.listExecutions)
				r.Post("/stream", s.streamExecution)
				r.Get("/{id}", s.getExecution)
				r.Get("/{id}/events", s.streamExecutionEvents)
			})

			r.Route("/approvals", func(r chi.Router) {
				r.Get("/", s.listApprovals)
				r.Get("/{id}", s.getApproval)
				r.Post("/{id}/action", s.actionApproval)
			})

			r.Route("/connections", func(r chi.Router) {
				r.Get("/", s.listConnections)
				r.Post("/", s.createConnection)
				r.Post("/authorize", s.authorizeConnection)
				r.Delete("/{id}", s.deleteConnection)
				r.Post("/{id}/refresh", s.refreshConnection)
			})

			r.Route("/templates", func(r chi.Router) {
				r.Get("/", s.listTemplates)
				r.Get("/{id}", s.getTemplate)
				r.Post("/{id}/use", s.useTemplate)
			})

			r.Route("/knowledge", func(r chi.Router) {
				r.Get("/", s.listKnowledge)
				r.Post("/", s.createKnowledge)
				r.Post("/import", s.importKnowledge)
				r.Patch("/{id}", s.updateKnowledge)
				r.Delete("/{id}", s.deleteKnowledge)
			})

			r.Route("/ai", func(r chi.Router) {
				r.Post("/clarify-workflow", s.clarifyWorkflow)
				r.Post("/generate-workflow", s.generateWorkflow)
				r.Post("/suggest-node-params", s.suggestNodeParams)
			})

			r.Route("/chat", func(r chi.Router) {
				r.Post("/executions/{id}", s.executionChat)
				r.Post("/assistant", s.assistantChat)
				r.Get("/context", s.assistantContext)
			})
		})
	})

	// Serve the frontend bundle.
	r.Handle("/*", StaticHandler("web/dist"))

	return r
}

// respondJSON writes v as a JSON response with the given status.
func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

// respondError writes the error contract body: {"error": "..."}.
func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// decodeBody decodes the request body into v, answering 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
