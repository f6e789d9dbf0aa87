package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ekaya-inc/content-engine/pkg/auth"
	"github.com/ekaya-inc/content-engine/pkg/database"
	"github.com/ekaya-inc/content-engine/pkg/handlers"
	"github.com/ekaya-inc/content-engine/pkg/mcp"
	mcpauth "github.com/ekaya-inc/content-engine/pkg/mcp/auth"
	"github.com/ekaya-inc/content-engine/pkg/mcp/tools"
	"github.com/ekaya-inc/content-engine/pkg/metrics"
	"github.com/ekaya-inc/content-engine/pkg/middleware"
	"github.com/ekaya-inc/content-engine/pkg/services"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(o *options) *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, callback receiver, MCP endpoint and scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.serve(cmd.Context(), migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", true, "apply pending migrations before serving")
	return cmd
}

func (o *options) serve(ctx context.Context, migrate bool) error {
	cfg, logger, err := o.load()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("base_url", cfg.BaseURL),
		zap.Bool("auth_verification", cfg.Auth.EnableVerification),
		zap.String("database", fmt.Sprintf("%s@%s:%d/%s", cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)),
		zap.Bool("redis", cfg.Redis.Enabled),
		zap.Bool("wordpress", cfg.WordPress.IsConfigured()))

	if migrate {
		if err := migrateUp(cfg, logger); err != nil {
			return err
		}
	}

	a, err := openApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	validator, err := auth.NewTokenValidator(ctx, &auth.ValidatorConfig{
		EnableVerification: cfg.Auth.EnableVerification,
		JWKSURL:            cfg.Auth.JWKSURL,
		Secret:             cfg.Auth.JWTSecret,
		Issuer:             cfg.Auth.Issuer,
		Audience:           cfg.Auth.Audience,
	})
	if err != nil {
		return fmt.Errorf("build token validator: %w", err)
	}
	if !cfg.Auth.EnableVerification {
		logger.Warn("JWT verification is disabled; tokens are trusted without signature checks")
	}
	authService := auth.NewAuthService(validator, cfg.Auth.AdminRole, logger)

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.BindAddr, cfg.Port),
		Handler:           a.routes(authService),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return services.NewScheduler(a.scopes, a.timeouts, a.cleanup, cfg.Scheduler, logger).Run(gctx)
	})
	if a.bridge != nil {
		g.Go(func() error { return a.bridge.Run(gctx) })
	}
	g.Go(func() error {
		logger.Info("Starting content-engine",
			zap.String("addr", srv.Addr),
			zap.String("version", cfg.Version),
			zap.Bool("tls", cfg.TLSCertPath != ""))
		var err error
		if cfg.TLSCertPath != "" {
			err = srv.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath)
		} else {
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// routes registers every handler on a fresh mux and wraps it with the
// request logging and metrics middleware.
func (a *app) routes(authService auth.AuthService) http.Handler {
	cfg, logger := a.cfg, a.logger

	authMiddleware := auth.NewMiddleware(authService, logger)
	userScope := handlers.WithAPIProvenance(handlers.ScopeMiddleware(database.WithUserContext(a.db, logger)))
	systemScope := handlers.WithAPIProvenance(handlers.ScopeMiddleware(database.WithSystemContext(a.db, logger)))

	readiness := map[string]handlers.Pinger{
		"database": handlers.PingerFunc(a.db.Ping),
	}
	checks := map[string]tools.HealthCheck{
		"database": a.db.Ping,
	}
	if a.redis != nil {
		pingRedis := func(ctx context.Context) error { return a.redis.Ping(ctx).Err() }
		readiness["redis"] = handlers.PingerFunc(pingRedis)
		checks["redis"] = pingRedis
	}
	if a.objects != nil {
		readiness["storage"] = handlers.PingerFunc(a.objects.Ping)
		checks["storage"] = a.objects.Ping
	}

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, readiness, logger).RegisterRoutes(mux)
	handlers.NewIdeaHandler(a.ideaService, a.lifecycle, a.timeouts, logger).RegisterRoutes(mux, authMiddleware, userScope)
	handlers.NewSuggestionHandler(a.suggestionSvc, a.lifecycle, logger).RegisterRoutes(mux, authMiddleware, userScope)
	handlers.NewBriefHandler(a.briefService, logger).RegisterRoutes(mux, authMiddleware, userScope)
	handlers.NewContentItemHandler(a.contentItems, a.derivativeSvc, logger).RegisterRoutes(mux, authMiddleware, userScope)
	handlers.NewGeneralContentHandler(a.generalContent, a.lifecycle, a.timeouts, logger).RegisterRoutes(mux, authMiddleware, userScope)
	handlers.NewNotificationHandler(a.notifications, logger).RegisterRoutes(mux, authMiddleware, userScope)
	handlers.NewUploadHandler(a.files, a.derivativeSvc, cfg.Storage.MaxUploadMB<<20, logger).RegisterRoutes(mux, authMiddleware, userScope)
	handlers.NewEventsHandler(a.cache, logger).RegisterRoutes(mux, authMiddleware)
	handlers.NewWebhookHandler(a.webhookConfigs, logger).RegisterRoutes(mux, authMiddleware, systemScope)
	handlers.NewMaintenanceHandler(a.cleanup, a.timeouts, a.audit, logger).RegisterRoutes(mux, authMiddleware, systemScope)
	handlers.NewCallbackHandler(a.callbacks, a.security, logger).
		RegisterRoutes(mux, auth.RequireCallbackSecret(cfg.Webhooks.CallbackSecret, logger))

	callLogger := mcp.NewCallLogger(logger)
	mcpServer := mcp.NewServer("content-engine", cfg.Version, callLogger.Hooks(), logger)
	tools.RegisterHealthTool(mcpServer.MCP(), cfg.Version, checks)
	tools.RegisterMaintenanceTools(mcpServer.MCP(), &tools.MaintenanceToolDeps{
		Scopes:   a.scopes,
		Timeouts: a.timeouts,
		Cleanup:  a.cleanup,
		Logger:   logger,
	})
	mcpAuth := mcpauth.NewMiddleware(authService, logger)
	mux.Handle("/mcp", middleware.MCPRequestLogger(logger)(mcpAuth.RequireAdmin()(mcpServer.NewStreamableHTTPServer())))

	mux.Handle("GET /metrics", metrics.Handler())

	return middleware.RequestLogger(logger)(middleware.RequestMetrics(mux))
}
