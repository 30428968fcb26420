package app

import (
	"context"
	"fmt"

	"code.cloudfoundry.org/clock"
	"github.com/harvestlink/bid-engine/internal/engine"
	"github.com/harvestlink/bid-engine/internal/fraud"
	"github.com/harvestlink/bid-engine/internal/notify"
	"github.com/harvestlink/bid-engine/internal/retry"
	"github.com/harvestlink/bid-engine/internal/storage"
	"github.com/harvestlink/bid-engine/internal/validator"
	"github.com/harvestlink/bid-engine/pkg/cache"
	"github.com/harvestlink/bid-engine/pkg/config"
	"github.com/harvestlink/bid-engine/pkg/healthprobe"
	"github.com/harvestlink/bid-engine/pkg/httpserver"
	"github.com/harvestlink/bid-engine/pkg/websocket"
	"go.uber.org/zap"
)

// New creates a new application instance.
func New(cfg *config.Config, logger *zap.Logger, opts *Options) (*App, error) {
	if opts == nil {
		opts = &Options{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	clk := clock.NewClock()

	// Setup storage
	store, err := setupStorage(cfg, logger, opts)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup storage: %w", err)
	}

	// Setup profile cache
	profileCache, err := setupCache(logger)
	if err != nil {
		cancel()
		_ = store.Close()
		return nil, fmt.Errorf("setup cache: %w", err)
	}
	profiles := storage.NewCachedProfiles(store, profileCache, cfg.ProfileCacheTTL)

	scorer, err := setupScorer(cfg, logger, clk, store, profiles)
	if err != nil {
		cancel()
		profileCache.Close()
		_ = store.Close()
		return nil, fmt.Errorf("setup fraud scorer: %w", err)
	}

	hub, err := setupHub(cfg, logger, store)
	if err != nil {
		cancel()
		profileCache.Close()
		_ = store.Close()
		return nil, fmt.Errorf("setup websocket hub: %w", err)
	}

	emitter, err := setupEmitter(cfg, logger, clk, store, hub)
	if err != nil {
		cancel()
		_ = hub.Close()
		profileCache.Close()
		_ = store.Close()
		return nil, fmt.Errorf("setup notification emitter: %w", err)
	}

	bidEngine, err := engine.New(&engine.Config{
		Lots:      store,
		Bids:      store,
		Validator: validator.New(validator.Config{MinIncrement: cfg.BidMinIncrement}),
		Scorer:    scorer,
		Retry:     setupRetry(cfg, logger, clk),
		Notifier:  emitter,
		Clock:     clk,
		Logger:    logger,
	})
	if err != nil {
		cancel()
		emitter.Close()
		_ = hub.Close()
		profileCache.Close()
		_ = store.Close()
		return nil, fmt.Errorf("setup engine: %w", err)
	}

	healthChecker := setupHealthChecker(store)
	httpServer := setupHTTPServer(cfg, logger, healthChecker, bidEngine, store, hub)

	return &App{
		cfg:           cfg,
		logger:        logger,
		healthChecker: healthChecker,
		httpServer:    httpServer,
		storage:       store,
		profileCache:  profileCache,
		emitter:       emitter,
		hub:           hub,
		engine:        bidEngine,
		ctx:           ctx,
		cancel:        cancel,
	}, nil
}

func setupHealthChecker(store storage.Storage) *healthprobe.HealthChecker {
	hc := healthprobe.New()
	hc.AddCheck("storage", store.Ping)
	return hc
}

func setupHTTPServer(
	cfg *config.Config,
	logger *zap.Logger,
	healthChecker *healthprobe.HealthChecker,
	bidEngine *engine.Engine,
	store storage.Storage,
	hub *websocket.Hub,
) *httpserver.Server {
	return httpserver.New(&httpserver.Config{
		Port:          cfg.HTTPPort,
		Logger:        logger,
		HealthChecker: healthChecker,
		Bids:          bidEngine,
		Notifications: store,
		ReadSync:      hub,
		Push:          hub,
	})
}

func setupCache(logger *zap.Logger) (*cache.RistrettoCache, error) {
	return cache.NewRistrettoCache(&cache.RistrettoConfig{
		NumCounters: 100_000, // 10x expected active bidders
		MaxCost:     10_000,  // Maximum 10k profiles in cache
		BufferItems: 64,      // Buffer size for Get operations
		Logger:      logger,
	})
}

func setupStorage(cfg *config.Config, logger *zap.Logger, opts *Options) (storage.Storage, error) {
	if cfg.StorageMode == config.StorageModePostgres {
		if opts.Seed != nil {
			logger.Warn("seed-ignored-postgres-mode")
		}

		pgStorage, err := storage.NewPostgresStorage(&storage.PostgresConfig{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPass,
			Database: cfg.PostgresDB,
			SSLMode:  cfg.PostgresSSL,
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create postgres storage: %w", err)
		}
		return pgStorage, nil
	}

	mem := storage.NewMemoryStorage(logger)
	if opts.Seed != nil {
		for _, lot := range opts.Seed.Lots {
			mem.PutLot(lot)
		}
		for bidderID, createdAt := range opts.Seed.Profiles {
			mem.PutProfile(bidderID, createdAt)
		}
		logger.Info("memory-storage-seeded",
			zap.Int("lots", len(opts.Seed.Lots)),
			zap.Int("profiles", len(opts.Seed.Profiles)))
	}
	return mem, nil
}

func setupScorer(
	cfg *config.Config,
	logger *zap.Logger,
	clk clock.Clock,
	history fraud.BidHistory,
	profiles fraud.Profiles,
) (*fraud.Scorer, error) {
	return fraud.New(&fraud.Config{
		History:          history,
		Profiles:         profiles,
		Clock:            clk,
		Logger:           logger,
		Threshold:        cfg.FraudThreshold,
		HistoryLimit:     cfg.FraudHistoryLimit,
		LotLookbackLimit: cfg.FraudLotLookbackLimit,
		RapidBidWindow:   cfg.FraudRapidBidWindow,
	})
}

func setupRetry(cfg *config.Config, logger *zap.Logger, clk clock.Clock) *retry.Controller {
	return retry.NewController(retry.Policy{
		MaxAttempts: cfg.BidRetryMaxAttempts,
		Backoff:     retry.Linear(cfg.BidRetryBaseDelay),
		Sleep:       retry.ClockSleeper(clk),
		MaxWallTime: cfg.BidRetryMaxWallTime,
	}, logger)
}

func setupHub(cfg *config.Config, logger *zap.Logger, store storage.NotificationStore) (*websocket.Hub, error) {
	return websocket.NewHub(&websocket.Config{
		Unread:       store,
		PingInterval: cfg.WSPingInterval,
		Logger:       logger,
	})
}

// setupEmitter persists first so a pushed notification is already listable.
func setupEmitter(
	cfg *config.Config,
	logger *zap.Logger,
	clk clock.Clock,
	store storage.NotificationStore,
	hub *websocket.Hub,
) (*notify.Emitter, error) {
	return notify.NewEmitter(&notify.Config{
		Sinks: []notify.Sink{
			notify.NewStoreSink(store),
			hub,
			notify.NewLogSink(logger),
		},
		Workers: cfg.NotifyWorkers,
		Timeout: cfg.NotifyTimeout,
		Clock:   clk,
		Logger:  logger,
	})
}
