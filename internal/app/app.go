// Package app wires the service's components together from configuration.
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/warmfront/warmfront/internal/collector"
	"github.com/warmfront/warmfront/internal/config"
	"github.com/warmfront/warmfront/internal/database"
	"github.com/warmfront/warmfront/internal/jobs"
	"github.com/warmfront/warmfront/internal/logging"
	"github.com/warmfront/warmfront/internal/metrics"
	"github.com/warmfront/warmfront/internal/queue"
	"github.com/warmfront/warmfront/internal/resolver"
	"github.com/warmfront/warmfront/internal/runguard"
	"github.com/warmfront/warmfront/internal/store"
	"github.com/warmfront/warmfront/internal/warmer"
)

// App holds the constructed service graph.
type App struct {
	Config   config.Config
	Logger   *zap.Logger
	DB       *pgxpool.Pool
	Stores   *store.Manager
	Engine   *warmer.Engine
	Repo     queue.Repository
	Consumer *queue.Consumer
	Enqueuer *queue.Enqueuer
	Registry *collector.Registry
	Guard    *runguard.Guard
	Jobs     *jobs.Runner
}

// New loads configuration and builds the full dependency graph.
func New(ctx context.Context, configPath string) (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	metrics.Init()

	pool, err := database.Connect(ctx, cfg.DB.DSN, cfg.DB.MaxOpenConns)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}

	stores := make([]store.Store, 0, len(cfg.Stores))
	for _, sc := range cfg.Stores {
		stores = append(stores, store.Store{ID: sc.ID, Code: sc.Code, BaseURL: sc.BaseURL})
	}
	manager := store.NewManager(stores)

	engine := warmer.New(
		warmer.NewClientFactory(manager, logger),
		warmer.NewNotifier(logger),
		logger,
	)

	repo := queue.NewPostgresRepository(pool, logger)
	composite := resolver.NewComposite(
		resolver.NewProductResolver(pool, manager, logger),
		resolver.NewCategoryResolver(pool, manager),
		resolver.NewCMSPageResolver(pool, manager),
	)
	consumer := queue.NewConsumer(repo, composite, engine, cfg, manager, logger)
	enqueuer := queue.NewEnqueuer(repo, manager, logger)

	registry := collector.NewRegistry()
	if err := registry.Register("sitemap", "Sitemap", 10, collector.NewSitemapCollector(logger)); err != nil {
		return nil, err
	}
	if err := registry.Register("product", "Product catalog", 20, collector.NewProductCollector(pool, logger)); err != nil {
		return nil, err
	}

	guard := runguard.NewGuard(pool, logger)
	runner := jobs.NewRunner(cfg, manager, repo, consumer, registry, engine, guard, logger)

	return &App{
		Config:   cfg,
		Logger:   logger,
		DB:       pool,
		Stores:   manager,
		Engine:   engine,
		Repo:     repo,
		Consumer: consumer,
		Enqueuer: enqueuer,
		Registry: registry,
		Guard:    guard,
		Jobs:     runner,
	}, nil
}

// Close releases the app's resources.
func (a *App) Close() {
	if a.DB != nil {
		a.DB.Close()
	}
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
}
