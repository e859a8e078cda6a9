package app

import (
	"context"
	"fmt"
	"os"

	"gorm.io/gorm"

	"github.com/yungbote/loanbook-backend/internal/data/db"
	"github.com/yungbote/loanbook-backend/internal/data/repos"
	"github.com/yungbote/loanbook-backend/internal/ledger"
	"github.com/yungbote/loanbook-backend/internal/platform/logger"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Cfg      Config
	Repos    repos.Set
	Policies *ledger.Registry
	Engine   *ledger.Engine
	Service  *ledger.Service
	Repairer *ledger.Repairer

	bus       ledger.MutationBus
	coalescer *ledger.Coalescer
	server    *httpServer
	cancel    context.CancelFunc
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	cfg, err := LoadConfig(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("load config: %w", err)
	}

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("postgres automigrate: %w", err)
	}
	theDB := pg.DB()

	reposet := repos.NewSet(theDB, log)

	policies, err := ledger.NewRegistry(cfg.Policy)
	if err != nil {
		log.Sync()
		return nil, err
	}

	engine, err := ledger.NewEngine(theDB, log, policies, reposet.Loan, reposet.PaymentRecord)
	if err != nil {
		log.Sync()
		return nil, err
	}

	var bus ledger.MutationBus
	var coalescer *ledger.Coalescer
	if cfg.QueueEnabled {
		bus, err = ledger.NewRedisMutationBus(log)
		if err != nil {
			log.Sync()
			return nil, fmt.Errorf("init mutation bus: %w", err)
		}
		coalescer = ledger.NewCoalescer(log, engine, cfg.CoalescerWorkers)
	}

	service, err := ledger.NewService(theDB, log, engine, reposet.Loan, reposet.PaymentRecord, bus)
	if err != nil {
		log.Sync()
		return nil, err
	}

	repairer, err := ledger.NewRepairer(theDB, log, policies, reposet.Loan, reposet.PaymentRecord, cfg.RepairWorkers)
	if err != nil {
		log.Sync()
		return nil, err
	}

	a := &App{
		Log:       log,
		DB:        theDB,
		Cfg:       cfg,
		Repos:     reposet,
		Policies:  policies,
		Engine:    engine,
		Service:   service,
		Repairer:  repairer,
		bus:       bus,
		coalescer: coalescer,
	}
	a.server = wireHTTP(a)
	return a, nil
}

// Start launches the queued recompute consumer when the bus is configured.
// The HTTP surface works without it: in-transaction recomputes already keep
// aggregates consistent, the queue only absorbs replays and external writers.
func (a *App) Start() {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	if a.coalescer != nil && a.bus != nil {
		if err := a.coalescer.Run(ctx, a.bus); err != nil {
			a.Log.Error("failed to start mutation consumer", "error", err)
		}
	}
}

func (a *App) Run() error {
	if a == nil || a.server == nil {
		return fmt.Errorf("app not initialized")
	}
	a.Log.Info("server listening", "port", a.Cfg.Port)
	return a.server.Run(":" + a.Cfg.Port)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.coalescer != nil {
		a.coalescer.Wait()
	}
	if a.bus != nil {
		if err := a.bus.Close(); err != nil {
			a.Log.Warn("failed to close mutation bus", "error", err)
		}
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
