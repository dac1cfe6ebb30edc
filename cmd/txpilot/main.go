// cmd/txpilot/main.go
package main

import (
	"context"
	"flag"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/dmarkov/txpilot/internal/config"
	"github.com/dmarkov/txpilot/internal/events"
	"github.com/dmarkov/txpilot/internal/gateway"
	"github.com/dmarkov/txpilot/internal/logger"
	"github.com/dmarkov/txpilot/internal/signer"
	"github.com/dmarkov/txpilot/internal/storage"
	"github.com/dmarkov/txpilot/internal/storage/models"
	"github.com/dmarkov/txpilot/internal/storage/postgres"
	"github.com/dmarkov/txpilot/internal/txmgr"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		zap.NewExample().Fatal("Failed to load configuration", zap.Error(err))
	}

	log, err := logger.New(&logger.Config{
		LogFile:     cfg.LogFile,
		MaxSize:     100,
		MaxBackups:  3,
		MaxAge:      7,
		Compress:    true,
		Development: cfg.DebugLogging,
	})
	if err != nil {
		os.Exit(1)
	}
	defer func() { _ = logger.Sync(log) }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("txpilot exited with error", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	gw, err := gateway.Dial(ctx, cfg.RPCURL, log)
	if err != nil {
		return err
	}
	defer gw.Close()

	sg, err := signer.NewLocalSigner(cfg.PrivateKeys)
	if err != nil {
		return err
	}

	bus := events.NewBus(log, 256)
	mgr := txmgr.NewManager(txmgr.Config{
		NetworkID:        cfg.NetworkID,
		ChainID:          big.NewInt(cfg.ChainID),
		RetentionLimit:   cfg.RetentionLimit,
		MaxRetries:       cfg.MaxRetries,
		ResubmitInterval: cfg.ResubmitEvery(),
	}, gw, sg, bus, log, prometheus.DefaultRegisterer)

	if cfg.PostgresURL != "" {
		store, err := postgres.NewStorage(cfg.PostgresURL, log)
		if err != nil {
			return err
		}
		if err := store.RunMigrations(); err != nil {
			return err
		}
		if err := restorePending(ctx, store, mgr, cfg.NetworkID, log); err != nil {
			return err
		}
		attachPersistence(mgr, store, log)
	}

	projections := txmgr.NewProjectionCache(mgr.Store())
	_ = projections // consumed by the UI layer over the API surface

	mgr.Start()
	defer mgr.Stop()

	watchBlocks(ctx, gw, mgr, cfg.BlockPollEvery(), log)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return bus.Shutdown(shutdownCtx)
}

// restorePending reseeds the manager with persisted records still awaiting
// confirmation, so the resubmission loop survives process restarts.
func restorePending(ctx context.Context, store storage.Storage, mgr *txmgr.Manager, networkID uint64, log *zap.Logger) error {
	persisted, err := store.ListPending(ctx, networkID)
	if err != nil {
		return err
	}
	recs := make([]*txmgr.Record, 0, len(persisted))
	for _, p := range persisted {
		rec, err := p.ToRecord()
		if err != nil {
			log.Warn("Skipping corrupt persisted record", zap.String("record_id", p.RecordID), zap.Error(err))
			continue
		}
		recs = append(recs, rec)
	}
	return mgr.Restore(ctx, recs)
}

// attachPersistence mirrors every store change into durable storage.
func attachPersistence(mgr *txmgr.Manager, store storage.Storage, log *zap.Logger) {
	mgr.Store().OnChange(func(rec *txmgr.Record) {
		saveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := store.SaveRecord(saveCtx, models.FromRecord(rec)); err != nil {
			log.Error("Failed to persist record snapshot",
				zap.String("id", rec.ID),
				zap.Error(err))
		}
	})
}

// watchBlocks polls the head block number and feeds new-block signals to
// the confirmation watcher until ctx is cancelled.
func watchBlocks(ctx context.Context, gw gateway.Gateway, mgr *txmgr.Manager, every time.Duration, log *zap.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	var lastBlock uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			head, err := gw.BlockNumber(ctx)
			if err != nil {
				log.Warn("Head block lookup failed", zap.Error(err))
				continue
			}
			if head == lastBlock {
				continue
			}
			lastBlock = head
			mgr.OnNewBlock(ctx)
		}
	}
}
