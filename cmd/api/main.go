package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/escalation-service/internal/api/http"
	"github.com/spec-kit/escalation-service/internal/api/http/handlers"
	"github.com/spec-kit/escalation-service/internal/auth"
	"github.com/spec-kit/escalation-service/internal/config"
	"github.com/spec-kit/escalation-service/internal/events"
	"github.com/spec-kit/escalation-service/internal/idgen"
	"github.com/spec-kit/escalation-service/internal/observability"
	"github.com/spec-kit/escalation-service/internal/persistence"
	"github.com/spec-kit/escalation-service/internal/repository"
	"github.com/spec-kit/escalation-service/internal/repository/memory"
	"github.com/spec-kit/escalation-service/internal/service"
	"github.com/spec-kit/escalation-service/internal/worker"
	"github.com/spec-kit/escalation-service/internal/workflow"
)

type options struct {
	envFiles    []string
	migrateOnly bool
	issueToken  string
	tokenTTL    time.Duration
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if err == pflag.ErrHelp {
			return
		}
		log.Fatalf("invalid flags: %v", err)
	}

	cfg, err := config.Load(opts.envFiles...)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if opts.issueToken != "" {
		if err := issueToken(cfg.Auth, opts.issueToken, opts.tokenTTL); err != nil {
			log.Fatalf("failed to issue token: %v", err)
		}
		return
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(cfg, opts, logger); err != nil {
		logger.Fatal("service stopped", zap.Error(err))
	}
}

func parseFlags(args []string) (options, error) {
	var opts options
	flagSet := pflag.NewFlagSet("escalation-service", pflag.ContinueOnError)
	flagSet.StringSliceVar(&opts.envFiles, "env-file", nil, "dotenv files to load before reading the environment (default: .env)")
	flagSet.BoolVar(&opts.migrateOnly, "migrate-only", false, "apply database migrations and exit")
	flagSet.StringVar(&opts.issueToken, "issue-token", "", "print a bearer token for the given subject and exit")
	flagSet.DurationVar(&opts.tokenTTL, "token-ttl", time.Hour, "lifetime of tokens printed by --issue-token")
	err := flagSet.Parse(args)
	return opts, err
}

func issueToken(cfg config.AuthConfig, subject string, ttl time.Duration) error {
	if cfg.JWTSecret == "" {
		return fmt.Errorf("AUTH_JWT_SECRET is not set")
	}
	token, expiresAt, err := auth.NewTokenManager(cfg.JWTSecret, cfg.Issuer, ttl).GenerateToken(subject)
	if err != nil {
		return err
	}
	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires at %s\n", expiresAt.UTC().Format(time.RFC3339))
	return nil
}

func run(cfg *config.Config, opts options, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations || opts.migrateOnly {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}
	if opts.migrateOnly {
		return nil
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	var (
		ticketRepo repository.TicketRepository
		auditRepo  repository.AuditLogRepository
		uow        repository.UnitOfWork
	)
	if pg.Enabled() {
		pool := pg.PoolHandle()
		ticketRepo = repository.NewTicketRepository(pool)
		auditRepo = repository.NewAuditLogRepository(pool)
		uow = repository.NewUnitOfWork(pool, logger)
	} else {
		logger.Warn("serving from the in-memory store; data is lost on restart")
		store := memory.New()
		ticketRepo = store.Tickets()
		auditRepo = store.AuditLogs()
		uow = store
	}

	ids, err := idgen.NewSnowflake(cfg.Workflow.NodeID)
	if err != nil {
		return err
	}

	guard := service.NewNoopCreationGuard()
	if redis.Enabled() {
		guard = service.NewRedisCreationGuard(redis.Client, cfg.Workflow.CreationLockTTL())
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger)
	worker.StartActivityWorker(dispatcher, logger, metrics)

	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo: ticketRepo,
		UnitOfWork: uow,
		Engine:     workflow.NewEngine(ids),
		Guard:      guard,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
		Limits:     cfg.Workflow,
	})
	auditService := service.NewAuditService(auditRepo, logger, cfg.Workflow)

	var tokens *auth.TokenManager
	if cfg.Auth.Enabled {
		tokens = auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, 0)
	}

	app := httptransport.NewApp(cfg.App.Name)
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Metrics:        handlers.NewMetricsHandler(metrics),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Workflow:       handlers.NewWorkflowHandler(ticketService),
		Audit:          handlers.NewAuditHandler(auditService),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, cfg.Auth.Enabled),
	})

	listenErr := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()), zap.String("env", cfg.App.Env))
		listenErr <- app.Listen(cfg.App.Addr())
	}()

	select {
	case err := <-listenErr:
		return fmt.Errorf("fiber listen: %w", err)
	case sig := <-shutdownSignal():
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	return app.ShutdownWithTimeout(10 * time.Second)
}

func shutdownSignal() <-chan os.Signal {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	return sigCh
}
