package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/cargodesk-erp/cargodesk-erp/internal/app"
	"github.com/cargodesk-erp/cargodesk-erp/internal/audit"
	audithttp "github.com/cargodesk-erp/cargodesk-erp/internal/audit/http"
	"github.com/cargodesk-erp/cargodesk-erp/internal/auth"
	"github.com/cargodesk-erp/cargodesk-erp/internal/freight/shipments"
	"github.com/cargodesk-erp/cargodesk-erp/internal/observability"
	"github.com/cargodesk-erp/cargodesk-erp/internal/platform/cache"
	"github.com/cargodesk-erp/cargodesk-erp/internal/platform/db"
	"github.com/cargodesk-erp/cargodesk-erp/internal/rbac"
	"github.com/cargodesk-erp/cargodesk-erp/internal/shared"
	"github.com/cargodesk-erp/cargodesk-erp/internal/users"
	"github.com/cargodesk-erp/cargodesk-erp/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "cargodesk_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	metrics := observability.NewMetrics()

	auditRepo := audit.NewRepository(dbpool)
	recorder := audit.NewRecorder(auditRepo, logger, cfg.AuditBuffer, metrics.AuditDropped())
	auditService := audit.NewService(auditRepo)
	auditHandler := audithttp.NewHandler(logger, auditService)

	rolesRepo := rbac.NewRepository(dbpool)
	registry := rbac.NewService(rolesRepo)

	usersRepo := users.NewRepository(dbpool)
	userService := users.NewService(usersRepo, cfg.MaxLoginAttempts)

	guard := &rbac.Middleware{Registry: registry, Users: userService, Logger: logger}

	rolesHandler := rbac.NewHandler(logger, registry, recorder, guard, userService)
	usersHandler := users.NewHandler(logger, userService, recorder, guard)

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(userService, registry, authRepo, recorder, metrics.LoginFailures())
	authHandler := auth.NewHandler(logger, authService, sessionManager)

	shipmentsRepo := shipments.NewRepository(dbpool)
	shipmentsService := shipments.NewService(shipmentsRepo)
	shipmentsHandler := shipments.NewHandler(logger, shipmentsService, recorder, guard, userService, idempotencyStore)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   sessionManager,
		CSRFManager:      csrfManager,
		AuthHandler:      authHandler,
		RolesHandler:     rolesHandler,
		UsersHandler:     usersHandler,
		AuditHandler:     auditHandler,
		ShipmentsHandler: shipmentsHandler,
		JobHandler:       jobHandler,
		RBACMiddleware:   guard,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
	recorder.Stop(shutdownCtx)
}
