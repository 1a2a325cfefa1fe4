package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/flowdeck/flowdeck/internal/api"
	"github.com/flowdeck/flowdeck/internal/config"
	"github.com/flowdeck/flowdeck/internal/crypto"
	"github.com/flowdeck/flowdeck/internal/db"
	"github.com/flowdeck/flowdeck/internal/generate"
	"github.com/flowdeck/flowdeck/internal/repository"
	"github.com/flowdeck/flowdeck/internal/services"
)

func main() {
	cmd := ""
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}
	switch cmd {
	case "serve":
		serve()
	case "fire":
		fire()
	default:
		fmt.Println("flowdeck v0.1.0")
		fmt.Println("Usage: flowdeck <serve|fire>")
	}
}

func serve() {
	// .env is optional; environment variables win over config.yaml.
	_ = godotenv.Load()

	cfg, err := config.LoadDefault()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}

	stores, closeDB, err := buildStores(cfg)
	if err != nil {
		slog.Error("storage error", "err", err)
		os.Exit(1)
	}
	if closeDB != nil {
		defer closeDB()
	}

	var enc *crypto.Encryptor
	if cfg.EncryptionKey != "" {
		key, err := hex.DecodeString(cfg.EncryptionKey)
		if err != nil {
			slog.Error("encryption key must be hex-encoded", "err", err)
			os.Exit(1)
		}
		enc, err = crypto.NewEncryptor(key)
		if err != nil {
			slog.Error("encryption init error", "err", err)
			os.Exit(1)
		}
	}

	runManager := services.NewRunManager(30 * time.Minute)
	defer runManager.Stop()
	registry := services.NewExecutionRegistry()
	runner := services.NewRunner(stores.executions, stores.approvals, registry, runManager)
	workflowSvc := services.NewWorkflowService(stores.workflows)
	approvalSvc := services.NewApprovalService(stores.approvals, registry)
	connectionSvc := services.NewConnectionService(stores.connections, enc, cfg.OAuth)
	generator := generate.New(cfg.AI.APIKey, cfg.AI.Model)
	if generator.DemoMode() {
		slog.Info("no AI api key configured, ai endpoints run in demo mode")
	}

	scheduler := services.NewSchedulerService(stores.workflows, runner)
	if err := scheduler.Start(context.Background()); err != nil {
		slog.Warn("scheduler failed to start", "err", err)
	} else {
		defer scheduler.Stop()
	}

	srv := api.NewServer(workflowSvc, runner, runManager)
	srv.SetAuth(stores.users, cfg.Auth.JWTSecret, cfg.Auth.TokenTTLHours)
	srv.SetApprovals(approvalSvc, stores.approvals)
	srv.SetConnectionService(connectionSvc)
	srv.SetGenerator(generator)
	srv.SetExecutionRepository(stores.executions)
	srv.SetTemplateRepository(stores.templates)
	srv.SetKnowledgeRepository(stores.knowledge)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpSrv := &http.Server{Addr: addr, Handler: srv.Handler()}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("shutdown error", "err", err)
		}
		// Runs blocked at approval gates would otherwise wait forever.
		registry.CancelAll()
	}()

	slog.Info("starting flowdeck server", "addr", addr)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
}

// fire starts every active scheduled workflow once and exits. Meant for
// deployments where an external cron triggers schedules instead of the
// resident scheduler in serve.
func fire() {
	_ = godotenv.Load()

	cfg, err := config.LoadDefault()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}

	stores, closeDB, err := buildStores(cfg)
	if err != nil {
		slog.Error("storage error", "err", err)
		os.Exit(1)
	}
	if closeDB != nil {
		defer closeDB()
	}

	runManager := services.NewRunManager(time.Minute)
	defer runManager.Stop()
	registry := services.NewExecutionRegistry()
	runner := services.NewRunner(stores.executions, stores.approvals, registry, runManager)
	scheduler := services.NewSchedulerService(stores.workflows, runner)

	if err := scheduler.FireDue(context.Background()); err != nil {
		slog.Error("fire error", "err", err)
		os.Exit(1)
	}
}

// stores bundles one repository per entity, backed by PostgreSQL when a
// database URL is configured and by memory otherwise.
type stores struct {
	workflows   repository.WorkflowRepository
	executions  repository.ExecutionRepository
	approvals   repository.ApprovalRepository
	connections repository.ConnectionRepository
	templates   repository.TemplateRepository
	knowledge   repository.KnowledgeRepository
	users       repository.UserRepository
}

func buildStores(cfg *config.Config) (*stores, func(), error) {
	if cfg.Database.URL == "" {
		slog.Info("no database configured, using in-memory storage")
		return &stores{
			workflows:   repository.NewMemoryWorkflows(),
			executions:  repository.NewMemoryExecutions(),
			approvals:   repository.NewMemoryApprovals(),
			connections: repository.NewMemoryConnections(),
			templates:   repository.NewMemoryTemplates(),
			knowledge:   repository.NewMemoryKnowledge(),
			users:       repository.NewMemoryUsers(),
		}, nil, nil
	}

	ctx := context.Background()
	database, err := db.New(ctx, cfg.Database.URL)
	if err != nil {
		return nil, nil, err
	}
	if err := database.Migrate(ctx); err != nil {
		database.Close()
		return nil, nil, err
	}
	slog.Info("connected to postgres")
	return &stores{
		workflows:   db.NewWorkflowStore(database),
		executions:  db.NewExecutionStore(database),
		approvals:   db.NewApprovalStore(database),
		connections: db.NewConnectionStore(database),
		templates:   db.NewTemplateStore(database),
		knowledge:   db.NewKnowledgeStore(database),
		users:       db.NewUserStore(database),
	}, func() { database.Close() }, nil
}
