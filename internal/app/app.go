package app

import (
	"context"
	"sync"
	"time"

	"github.com/harvestlink/bid-engine/internal/engine"
	"github.com/harvestlink/bid-engine/internal/notify"
	"github.com/harvestlink/bid-engine/internal/storage"
	"github.com/harvestlink/bid-engine/pkg/cache"
	"github.com/harvestlink/bid-engine/pkg/config"
	"github.com/harvestlink/bid-engine/pkg/healthprobe"
	"github.com/harvestlink/bid-engine/pkg/httpserver"
	"github.com/harvestlink/bid-engine/pkg/types"
	"github.com/harvestlink/bid-engine/pkg/websocket"
	"go.uber.org/zap"
)

// App is the main application orchestrator.
type App struct {
	cfg           *config.Config
	logger        *zap.Logger
	healthChecker *healthprobe.HealthChecker
	httpServer    *httpserver.Server
	storage       storage.Storage
	profileCache  *cache.RistrettoCache
	emitter       *notify.Emitter
	hub           *websocket.Hub
	engine        *engine.Engine
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}

// Options holds application options.
type Options struct {
	// Seed preloads memory storage. Ignored in postgres mode.
	Seed *Seed
}

// Seed is catalog and profile data for memory storage.
type Seed struct {
	Lots     []*types.Lot
	Profiles map[string]time.Time
}

// Engine returns the bid engine.
func (a *App) Engine() *engine.Engine {
	return a.engine
}

// Storage returns the configured storage backend.
func (a *App) Storage() storage.Storage {
	return a.storage
}

// WaitForNotifications blocks until queued notifications have been delivered.
func (a *App) WaitForNotifications() {
	a.emitter.Wait()
}
