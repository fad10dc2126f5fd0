package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lepinkainen/recipe-forge/internal/config"
	"github.com/lepinkainen/recipe-forge/pkg/ai"
	"github.com/lepinkainen/recipe-forge/pkg/cache"
	"github.com/lepinkainen/recipe-forge/pkg/convert"
	"github.com/lepinkainen/recipe-forge/pkg/database"
	"github.com/lepinkainen/recipe-forge/pkg/fetch"
	"github.com/lepinkainen/recipe-forge/pkg/images"
	"github.com/lepinkainen/recipe-forge/pkg/pipeline"
	"github.com/lepinkainen/recipe-forge/pkg/ratelimit"
	"github.com/lepinkainen/recipe-forge/pkg/scraper"
)

// app holds the wired components for one CLI invocation
type app struct {
	cfg *config.Config
	// db is the recipe cache handle when the cache lives in SQLite
	db        *database.Database
	cache     *cache.Cache
	store     ratelimit.Store
	limiter   *ratelimit.Limiter
	completer ai.Completer
	importer  *pipeline.Importer
	converter *convert.Converter
}

// newApp opens storage and builds the import pipeline from cfg
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}

	cacheStore, err := a.openCacheStore(ctx)
	if err != nil {
		return nil, err
	}
	a.cache = cache.New(cacheStore, cfg.Cache.TTL)

	if a.store, err = a.openLimitStore(ctx); err != nil {
		a.Close()
		return nil, err
	}
	a.limiter = ratelimit.NewLimiter(a.store, cfg.RateLimits())

	sites, err := scraper.LoadSites(cfg.SitesFile)
	if err != nil {
		a.Close()
		return nil, err
	}
	manager := scraper.NewManager(sites, scraper.WithWeights(cfg.Weights))

	if cfg.AI.Enabled {
		a.completer = ai.NewOpenAIClient(cfg.OpenAIConfig())
	} else {
		slog.Warn("No AI API key configured, AI fallback and conversions are disabled")
	}

	a.importer = pipeline.NewImporter(manager,
		pipeline.WithCache(a.cache),
		pipeline.WithFetcher(fetch.NewFetcher(cfg.FetchConfig())),
		pipeline.WithImages(images.NewResolver(images.NewProber(cfg.ProberConfig()))),
		pipeline.WithCascade(ai.NewCascade(a.completer, cfg.CascadeConfig())),
		pipeline.WithConfig(cfg.PipelineConfig()),
	)
	a.converter = convert.NewConverter(a.limiter, a.completer)

	return a, nil
}

func (a *app) openCacheStore(ctx context.Context) (cache.Store, error) {
	switch a.cfg.Cache.Backend {
	case config.BackendRedis:
		store, err := cache.NewRedisStore(ctx, cache.RedisConfig{
			Addr:     a.cfg.Cache.RedisAddr,
			Password: a.cfg.Cache.RedisPassword,
			DB:       a.cfg.Cache.RedisDB,
			TTL:      a.cfg.Cache.TTL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect recipe cache: %w", err)
		}
		return store, nil
	default:
		db, err := database.NewDatabase(a.cfg.DatabaseConfig())
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		store, err := cache.NewSQLiteStore(db)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to open recipe cache: %w", err)
		}
		a.db = db
		return store, nil
	}
}

func (a *app) openLimitStore(ctx context.Context) (ratelimit.Store, error) {
	switch a.cfg.Store.Backend {
	case config.BackendMongo:
		store, err := ratelimit.NewMongoStore(ctx, ratelimit.MongoConfig{
			URI:        a.cfg.Store.MongoURI,
			Database:   a.cfg.Store.MongoDB,
			Collection: a.cfg.Store.MongoCollection,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect rate limit store: %w", err)
		}
		return store, nil
	case config.BackendMemory:
		return ratelimit.NewMemoryStore(), nil
	default:
		db, err := database.NewDatabase(a.cfg.DatabaseConfig())
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		store, err := ratelimit.NewSQLiteStore(db)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to open rate limit store: %w", err)
		}
		return store, nil
	}
}

// Close releases every open store. SQLite handles are reference counted and closed by their stores.
func (a *app) Close() {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			slog.Warn("Failed to close recipe cache", "error", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			slog.Warn("Failed to close rate limit store", "error", err)
		}
	}
}
