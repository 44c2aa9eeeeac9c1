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

	"salesops-console/internal/audit"
	"salesops-console/internal/auth"
	"salesops-console/internal/calls"
	"salesops-console/internal/config"
	"salesops-console/internal/happyrobot"
	"salesops-console/internal/httpapi"
	"salesops-console/internal/users"
	"salesops-console/pkg/logger"
	"salesops-console/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
)

func main() {
	// Root context that cancels on shutdown.
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Local convenience; env wins over .env values already set.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	// Wiring: one shared store handle, injected explicitly. No globals.
	callStore := calls.NewPostgresStore(db)
	auditSvc := audit.NewService(audit.NewPostgresRepo(db))
	platform := happyrobot.NewClient(cfg.HappyRobot, nil)
	failedRunCache := calls.NewRedisFailedRunCache(rdb, cfg.Reconcile.Lookback)

	userSvc := users.NewService(users.NewPostgresRepo(db), authManager, cfg.Auth.AdminEmailDomain)
	triggerSvc := calls.NewTriggerService(callStore, platform, auditSvc, cfg.CallbackURL())
	reconciler := calls.NewReconciler(callStore, platform, failedRunCache, auditSvc, calls.ReconcilerOptions{
		GraceWindow: cfg.Reconcile.GraceWindow,
		CacheTTL:    cfg.Reconcile.CacheTTL,
		Lookback:    cfg.Reconcile.Lookback,
	})
	callbackApplier := calls.NewCallbackApplier(callStore, auditSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, authManager, httpapi.Handlers{
		Users:          userSvc,
		Trigger:        triggerSvc,
		Reconciler:     reconciler,
		Callback:       callbackApplier,
		Store:          callStore,
		CallbackSecret: cfg.HappyRobot.CallbackSecret,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}
