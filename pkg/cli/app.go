package cli

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ekaya-inc/content-engine/pkg/audit"
	"github.com/ekaya-inc/content-engine/pkg/cache"
	"github.com/ekaya-inc/content-engine/pkg/config"
	"github.com/ekaya-inc/content-engine/pkg/crypto"
	"github.com/ekaya-inc/content-engine/pkg/database"
	"github.com/ekaya-inc/content-engine/pkg/repositories"
	"github.com/ekaya-inc/content-engine/pkg/services"
	"github.com/ekaya-inc/content-engine/pkg/storage"
	"github.com/ekaya-inc/content-engine/pkg/webhook"
	"github.com/ekaya-inc/content-engine/pkg/wordpress"
)

// core is the part of the object graph every command needs: the database,
// the query cache and the lifecycle maintenance services.
type core struct {
	cfg    *config.Config
	logger *zap.Logger

	db       *database.DB
	scopes   *database.PoolScopeProvider
	cache    *cache.QueryCache
	security *audit.SecurityAuditor

	ideas       repositories.IdeaRepository
	suggestions repositories.SuggestionRepository
	briefs      repositories.BriefRepository
	items       repositories.ContentItemRepository
	derivatives repositories.DerivativeRepository
	general     repositories.GeneralContentRepository

	audit         services.AuditService
	notifications services.NotificationService
	timeouts      services.TimeoutService
	cleanup       services.CleanupService
}

func openCore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*core, error) {
	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.URL(),
		MaxConnections: cfg.Database.MaxConnections,
		MinConnections: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		return nil, err
	}

	c := &core{
		cfg:         cfg,
		logger:      logger,
		db:          db,
		scopes:      database.NewScopeProvider(db),
		cache:       cache.New(cfg.Cache.TTL, logger),
		security:    audit.NewSecurityAuditor(logger),
		ideas:       repositories.NewIdeaRepository(),
		suggestions: repositories.NewSuggestionRepository(),
		briefs:      repositories.NewBriefRepository(),
		items:       repositories.NewContentItemRepository(),
		derivatives: repositories.NewDerivativeRepository(),
		general:     repositories.NewGeneralContentRepository(),
	}
	c.audit = services.NewAuditService(repositories.NewAuditRepository(), logger)
	c.notifications = services.NewNotificationService(repositories.NewNotificationRepository(), logger)
	c.timeouts = services.NewTimeoutService(
		c.ideas, c.suggestions, c.general,
		c.cache, c.notifications, c.audit,
		cfg.Lifecycle.ProcessingTimeout, logger,
	)
	c.cleanup = services.NewCleanupService(repositories.NewCleanupRepository(), nil, c.audit, c.security, logger)
	return c, nil
}

func (c *core) Close() {
	c.db.Close()
}

// app is the full graph the HTTP server runs on.
type app struct {
	*core

	redis   *redis.Client
	bridge  *cache.RedisBridge
	objects *storage.MinioStore

	webhookConfigs services.WebhookConfigService
	lifecycle      services.LifecycleService
	ideaService    services.IdeaService
	suggestionSvc  services.SuggestionService
	briefService   services.BriefService
	contentItems   services.ContentItemService
	derivativeSvc  services.DerivativeService
	generalContent services.GeneralContentService
	callbacks      services.CallbackService
	files          services.FileService
}

func openApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	c, err := openCore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a := &app{core: c}
	if err := a.wire(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context) error {
	cfg, logger := a.cfg, a.logger

	redisClient, err := database.NewRedisClient(ctx, &cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		a.redis = redisClient
		a.bridge = cache.NewRedisBridge(redisClient, cfg.Redis.Channel, a.cache, logger)
	}

	encryptor, err := crypto.NewSecretEncryptor(cfg.SecretsKey)
	if err != nil {
		return fmt.Errorf("SECRETS_ENCRYPTION_KEY: %w", err)
	}
	a.webhookConfigs = services.NewWebhookConfigService(repositories.NewWebhookConfigRepository(), encryptor, a.security, logger)

	dispatcher := webhook.NewDispatcher(a.webhookConfigs, webhook.Config{
		IdeaCallbackURL:    cfg.Webhooks.CallbackURL(cfg.Webhooks.IdeaCallbackPath),
		ContentCallbackURL: cfg.Webhooks.CallbackURL(cfg.Webhooks.ContentProcessingPath),
		Timeout:            cfg.Webhooks.DeliveryTimeout,
		MaxConcurrency:     cfg.Webhooks.MaxConcurrency,
	}, logger)

	var uploader services.ObjectUploader
	if cfg.Storage.AccessKey != "" {
		objects, err := storage.NewMinioStore(&cfg.Storage)
		if err != nil {
			return err
		}
		if err := objects.EnsureBuckets(ctx, cfg.Storage.IdeaBucket, cfg.Storage.DerivativeBucket); err != nil {
			return err
		}
		a.objects = objects
		uploader = storage.NewFileStore(objects, cfg.Storage.PublicBaseURL, cfg.Storage.MaxUploadMB<<20, logger)
	} else {
		logger.Warn("Object storage credentials not set; uploads are disabled")
	}

	var publisher wordpress.Publisher
	if cfg.WordPress.IsConfigured() {
		publisher = wordpress.NewClient(&cfg.WordPress)
	} else {
		logger.Warn("WordPress is not configured; publishing is disabled")
	}

	a.lifecycle = services.NewLifecycleService(
		a.ideas, a.suggestions, a.general,
		dispatcher, a.cache, a.notifications, a.audit,
		services.LifecycleOptions{
			MaxRetries:        cfg.Lifecycle.MaxRetries,
			ProcessingTimeout: cfg.Lifecycle.ProcessingTimeout,
		},
		logger,
	)
	a.ideaService = services.NewIdeaService(a.ideas, a.briefs, a.lifecycle, a.cache, a.audit, a.security, nil, logger)
	a.suggestionSvc = services.NewSuggestionService(a.suggestions, a.ideas, a.briefs, a.cache, a.audit, nil, logger)
	a.briefService = services.NewBriefService(a.briefs, dispatcher, a.cache, a.notifications, a.audit, logger)
	a.contentItems = services.NewContentItemService(a.items, a.derivatives, publisher, dispatcher, a.cache, a.notifications, a.audit, logger)
	a.files = services.NewFileService(uploader, cfg.Storage.IdeaBucket, cfg.Storage.DerivativeBucket)
	a.derivativeSvc = services.NewDerivativeService(a.derivatives, a.files, a.cache, a.audit, logger)
	a.generalContent = services.NewGeneralContentService(a.general, a.lifecycle, a.cache, a.audit, logger)
	a.callbacks = services.NewCallbackService(a.scopes, nil, services.CallbackRepositories{
		Ideas:       a.ideas,
		Suggestions: a.suggestions,
		Briefs:      a.briefs,
		Items:       a.items,
		Derivatives: a.derivatives,
		General:     a.general,
	}, a.cache, a.notifications, a.audit, logger)
	return nil
}

func (a *app) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("Failed to close Redis client", zap.Error(err))
		}
	}
	a.core.Close()
}
