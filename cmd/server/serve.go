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

	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/oakleydye/oakley-metrics/internal/authz"
	"github.com/oakleydye/oakley-metrics/internal/database"
	"github.com/oakleydye/oakley-metrics/internal/handler"
	"github.com/oakleydye/oakley-metrics/internal/repository"
	"github.com/oakleydye/oakley-metrics/internal/service"
	"github.com/oakleydye/oakley-metrics/internal/telemetry"
)

var skipMigrations bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "Do not apply pending migrations on start")
}

func serve(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger.Info("Starting Oakley Metrics API",
		slog.String("environment", cfg.Server.Environment),
		slog.Int("port", cfg.Server.Port),
	)

	shutdownTracing, err := telemetry.Init(ctx, cfg.Telemetry, cfg.Server.Environment, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("tracing shutdown failed", slog.String("error", err.Error()))
		}
	}()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	logger.Info("Connected to PostgreSQL")

	if !skipMigrations {
		if err := database.RunMigrations(cfg.Database); err != nil {
			return err
		}
		logger.Info("Database migrations completed")
	}

	rdb, err := database.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer rdb.Close()
	logger.Info("Connected to Redis")

	// Repositories
	userRepo := repository.NewUserRepository(db.Pool())
	orgRepo := repository.NewOrganizationRepository(db.Pool())
	websiteRepo := repository.NewWebsiteRepository(db.Pool())
	accessRepo := repository.NewAccessRepository(db.Pool())
	metricsRepo := repository.NewMetricsRepository(db.Pool())
	sessionStore := repository.NewSessionStore(rdb.Client())

	// Services
	provider := service.NewAuth0Provider(ctx, cfg.Auth)
	identities := service.NewIdentityService(userRepo, logger)
	sessions := service.NewSessionService(sessionStore, userRepo, provider, cfg.Session, logger)
	oauth := service.NewOAuthService(cfg.Auth, provider, identities, sessions, logger)
	orgs := service.NewOrganizationService(orgRepo, logger)
	websites := service.NewWebsiteService(websiteRepo, orgRepo, logger)
	clients := service.NewClientService(userRepo, orgRepo, logger)
	access := service.NewAccessService(accessRepo, websiteRepo, userRepo, logger)
	metrics := service.NewMetricsService(metricsRepo)
	accounts := service.NewAccountService(userRepo, orgRepo, websites)

	policy, err := authz.NewPolicy(accessRepo)
	if err != nil {
		return err
	}

	jar, err := handler.NewCookieJar(cfg.Session.Secret, cfg.Server.IsProduction(), cfg.Session.StateLifetime)
	if err != nil {
		return err
	}

	router := newRouter(routerDeps{
		logger:        logger,
		server:        cfg.Server,
		rateLimit:     cfg.RateLimit,
		sessions:      sessions,
		limiter:       rdb,
		checks:        []readinessCheck{{"database", db.Ping}, {"redis", rdb.Ping}},
		auth:          handler.NewAuthHandler(oauth, sessions, accounts, jar, logger),
		organizations: handler.NewOrganizationHandler(orgs, policy, logger),
		websites:      handler.NewWebsiteHandler(websites, access, policy, logger),
		clients:       handler.NewClientHandler(clients, policy, logger),
		metrics:       handler.NewMetricsHandler(metrics, policy, logger),
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      otelhttp.NewHandler(router, "oakley-metrics"),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  time.Minute,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		logger.Info("Shutting down server", slog.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	logger.Info("Server stopped gracefully")
	return nil
}
