package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gamelog-labs/gamelog-go/internal/pipeline"
	"github.com/gamelog-labs/gamelog-go/internal/platform/auditlog"
	"github.com/gamelog-labs/gamelog-go/internal/platform/auth"
	"github.com/gamelog-labs/gamelog-go/internal/platform/env"
	"github.com/gamelog-labs/gamelog-go/internal/platform/httpserver"
	"github.com/gamelog-labs/gamelog-go/internal/platform/postgres"
	repopg "github.com/gamelog-labs/gamelog-go/internal/repo/postgres"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx := context.Background()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := env.String("GAMELOG_PIPELINES_HTTP_ADDR", ":8082")
	shutdownTimeout, err := env.Duration("GAMELOG_PIPELINES_SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		logger.Error("invalid env", "error", err)
		os.Exit(2)
	}

	webhookSecret := env.String("GAMELOG_CI_WEBHOOK_SECRET", "")
	if webhookSecret == "" {
		logger.Error("GAMELOG_CI_WEBHOOK_SECRET is required")
		os.Exit(2)
	}

	specPath := env.String("GAMELOG_PIPELINE_SPEC", "pipeline.yaml")
	specData, err := os.ReadFile(specPath)
	if err != nil {
		logger.Error("pipeline spec unreadable", "path", specPath, "error", err)
		os.Exit(2)
	}
	spec, err := pipeline.ParseSpec(specData)
	if err != nil {
		logger.Error("pipeline spec invalid", "path", specPath, "error", err)
		os.Exit(2)
	}

	workDir := env.String("GAMELOG_PIPELINE_WORKDIR", "")
	stepTimeout, err := env.Duration("GAMELOG_PIPELINE_STEP_TIMEOUT", 15*time.Minute)
	if err != nil {
		logger.Error("invalid env", "error", err)
		os.Exit(2)
	}

	dbCfg, err := postgres.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid database config", "error", err)
		os.Exit(2)
	}
	db, err := postgres.Open(ctx, dbCfg)
	if err != nil {
		logger.Error("database unavailable", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	authCfg, err := auth.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid auth config", "error", err)
		os.Exit(2)
	}
	authenticator, err := auth.NewAuthenticator(ctx, authCfg)
	if err != nil {
		logger.Error("authenticator init failed", "error", err)
		os.Exit(1)
	}

	reporterCfg, err := reporterConfigFromEnv(env.String)
	if err != nil {
		logger.Error("invalid status reporter config", "error", err)
		os.Exit(2)
	}
	reporter := newStatusReporter(ctx, logger, reporterCfg)

	runner := &pipeline.Runner{
		Logger:      logger,
		WorkDir:     workDir,
		StepTimeout: stepTimeout,
	}

	runStore := repopg.NewRunStore(db)
	stepStore := repopg.NewStepExecutionStore(db)
	service := newPipelineService(logger, spec, runner, runStore, stepStore, db, reporter)
	defer service.Drain()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", httpserver.Healthz("pipelines"))
	mux.HandleFunc(
		"/readyz",
		httpserver.ReadyzWithChecks(
			"pipelines",
			httpserver.ReadinessCheck{
				Name: "postgres",
				Check: func(ctx context.Context) error {
					checkCtx, cancel := context.WithTimeout(ctx, 750*time.Millisecond)
					defer cancel()
					return db.PingContext(checkCtx)
				},
			},
		),
	)

	api := newPipelinesAPI(logger, service, webhookSecret)
	api.register(mux)

	// /events authenticates with the webhook HMAC, not a bearer token.
	handler := auth.Middleware{
		Logger:        logger,
		Authenticator: authenticator,
		Authorize:     auth.MethodRoleAuthorizer(),
		Audit: func(ctx context.Context, event auth.DenyEvent) error {
			auditCtx, cancel := context.WithTimeout(ctx, 750*time.Millisecond)
			defer cancel()
			return auditlog.InsertAuthDeny(auditCtx, db, "pipelines", event)
		},
		SkipPrefixes: []string{"/healthz", "/readyz", "/events"},
	}.Wrap(mux)

	cfg := httpserver.Config{
		Service:         "pipelines",
		Addr:            addr,
		ShutdownTimeout: shutdownTimeout,
	}

	if err := httpserver.Run(ctx, logger, cfg, httpserver.Wrap(logger, "pipelines", handler)); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}
