package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.temporal.io/sdk/client"
	otelcontrib "go.temporal.io/sdk/contrib/opentelemetry"
	"go.temporal.io/sdk/interceptor"
	tlog "go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/tilsley/stockroom/apps/server/internal/accounts"
	authhandler "github.com/tilsley/stockroom/apps/server/internal/accounts/handler"
	accountstore "github.com/tilsley/stockroom/apps/server/internal/accounts/store"
	"github.com/tilsley/stockroom/apps/server/internal/accounts/store/pgmigrations"
	"github.com/tilsley/stockroom/apps/server/internal/config"
	"github.com/tilsley/stockroom/apps/server/internal/ghdb"
	"github.com/tilsley/stockroom/apps/server/internal/inventory"
	"github.com/tilsley/stockroom/apps/server/internal/inventory/execution"
	invhandler "github.com/tilsley/stockroom/apps/server/internal/inventory/handler"
	invstore "github.com/tilsley/stockroom/apps/server/internal/inventory/store"
	ghplatform "github.com/tilsley/stockroom/apps/server/internal/platform/github"
	"github.com/tilsley/stockroom/apps/server/internal/platform/logger"
	pgplatform "github.com/tilsley/stockroom/apps/server/internal/platform/postgres"
	redisplatform "github.com/tilsley/stockroom/apps/server/internal/platform/redis"
	"github.com/tilsley/stockroom/apps/server/internal/platform/telemetry"
	temporalplatform "github.com/tilsley/stockroom/apps/server/internal/platform/temporal"
	"github.com/tilsley/stockroom/apps/server/internal/platform/validation"
	"github.com/tilsley/stockroom/schemas"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		slog.Error("config load failed", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Observability ---

	serviceName := telemetry.ServiceName(cfg.OTel.ServiceName)
	tel, err := telemetry.New(ctx, telemetry.Options{Enabled: cfg.OTel.Enabled, ServiceName: serviceName})
	if err != nil {
		return fmt.Errorf("telemetry init: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			log.Error("telemetry shutdown failed", "error", err)
		}
	}()

	// --- Platform: Postgres + Redis ---

	if cfg.Postgres.URL == "" {
		return errors.New("postgres.url (POSTGRES_URL) is required")
	}
	pool, err := pgplatform.New(ctx, cfg.Postgres.URL, pgmigrations.FS)
	if err != nil {
		return err
	}
	defer pool.Close()

	var rdb *goredis.Client
	if cfg.Redis.URL != "" {
		rdb, err = redisplatform.New(ctx, cfg.Redis.URL)
		if err != nil {
			return err
		}
		defer rdb.Close()
	} else {
		log.Warn("redis not configured: sessions are kept in memory and parts are not cached")
	}

	// --- Platform: GitHub ---

	gh, err := ghplatform.NewClient(ghplatform.Credentials{
		Token:          cfg.GitHub.Token,
		AppID:          cfg.GitHub.AppID,
		InstallationID: cfg.GitHub.InstallationID,
		PrivateKeyPath: cfg.GitHub.PrivateKeyPath,
		BaseURL:        cfg.GitHub.APIURL,
	})
	if err != nil {
		return err
	}
	repo, err := ghdb.New(gh, ghdb.Config{
		Owner:            cfg.RepoOwner(),
		Repo:             cfg.RepoName(),
		Branch:           cfg.GitHub.Branch,
		CommitterName:    cfg.GitHub.CommitterName,
		CommitterEmail:   cfg.GitHub.CommitterEmail,
		MaxAttempts:      cfg.GitHub.MaxAttempts,
		FetchConcurrency: cfg.GitHub.FetchConcurrency,
	}, log)
	if err != nil {
		return err
	}

	// --- Adapters ---

	var inventoryRepo inventory.Repository = invstore.NewGitHubStore(repo, log)
	var sessions accounts.SessionStore
	if rdb != nil {
		inventoryRepo = invstore.NewCachedStore(inventoryRepo, rdb, cfg.Cache.TTL, log)
		sessions = accountstore.NewRedisSessionStore(rdb)
	} else {
		sessions = accountstore.NewMemStore()
	}
	users := accountstore.NewPGStore(pool)

	accountsSvc := accounts.NewService(users, users, sessions, accounts.NewTokens(cfg.Auth.JWTSecret), cfg.Auth.SessionTTL, log)

	// --- Platform: Temporal (optional) ---

	var engine inventory.ReplenishmentEngine
	var tc client.Client
	if cfg.Temporal.HostPort != "" {
		opts := client.Options{
			HostPort:  cfg.Temporal.HostPort,
			Namespace: cfg.Temporal.Namespace,
			Logger:    tlog.NewStructuredLogger(log),
		}
		if cfg.OTel.Enabled {
			tracing, err := otelcontrib.NewTracingInterceptor(otelcontrib.TracerOptions{})
			if err != nil {
				return fmt.Errorf("temporal tracing interceptor: %w", err)
			}
			opts.Interceptors = []interceptor.ClientInterceptor{tracing}
		}
		tc, err = client.Dial(opts)
		if err != nil {
			return fmt.Errorf("temporal client: %w", err)
		}
		defer tc.Close()
		engine = temporalplatform.NewEngine(tc)
	} else {
		log.Warn("temporal not configured: replenishment runs are disabled")
	}

	svc := inventory.NewService(inventoryRepo, accountsSvc, engine, log)

	// --- Temporal Worker ---

	if tc != nil {
		w := worker.New(tc, temporalplatform.TaskQueue(), worker.Options{})
		w.RegisterWorkflowWithOptions(execution.ReplenishmentWorkflow, workflow.RegisterOptions{
			Name: inventory.ReplenishmentWorkflowName,
		})
		w.RegisterActivity(execution.NewActivities(svc, log))
		if err := w.Start(); err != nil {
			return fmt.Errorf("temporal worker: %w", err)
		}
		defer w.Stop()
		log.Info("temporal worker started", "taskQueue", temporalplatform.TaskQueue())
	}

	// --- HTTP ---

	validator, err := validation.New(schemas.OpenAPISpec)
	if err != nil {
		return fmt.Errorf("openapi validation middleware: %w", err)
	}

	router := gin.New()
	router.Use(gin.Recovery(), otelgin.Middleware(serviceName), validator)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	private := router.Group("/", authhandler.RequireAuth(accountsSvc, log))
	authhandler.RegisterRoutes(router, private, accountsSvc, log)
	invhandler.RegisterRoutes(private, svc, accountsSvc, log)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("starting stockroom", "port", cfg.Port, "repo", cfg.GitHub.Repo, "branch", cfg.GitHub.Branch)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
