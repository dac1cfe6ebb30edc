// internal/txmgr/watcher.go
package txmgr

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// OnNewBlock scans records awaiting confirmation and promotes the ones
// the ledger reports as included. Invoked on every new-block signal.
// Per-record lookups are read-only against the ledger and run
// concurrently; each record's store update is serialized by the store.
func (m *Manager) OnNewBlock(ctx context.Context) {
	pending := m.store.QueryBy(func(r *Record) bool { return r.Status == StatusSubmitted })
	if len(pending) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(confirmLookupConcurrency)
	for _, rec := range pending {
		rec := rec
		g.Go(func() error {
			m.checkConfirmation(gctx, rec)
			return nil
		})
	}
	_ = g.Wait()
}

func (m *Manager) checkConfirmation(ctx context.Context, rec *Record) {
	// A submitted record without a hash is a data-integrity fault; it can
	// never confirm, so it fails rather than lingering.
	if rec.Hash == nil {
		m.markFailed(rec.ID, ReasonMissingHash, errors.New("submitted record has no transaction hash"))
		return
	}

	info, err := m.gateway.TransactionByHash(ctx, *rec.Hash)
	if err != nil {
		m.recordWarning(rec.ID, "confirmation lookup failed: "+err.Error())
		return
	}
	if info == nil {
		m.recordWarning(rec.ID, "transaction not found by ledger")
		return
	}
	if info.BlockNumber == nil {
		// Still pending in the pool. Nothing to do until a later block.
		return
	}

	fresh, err := m.store.UpdateStatus(rec.ID, StatusSubmitted, StatusConfirmed)
	if err != nil {
		// Raced with another transition mid-scan; the next tick resolves it.
		return
	}
	m.metrics.confirmedCounter.Inc()
	m.logger.Info("Transaction confirmed",
		zap.String("id", rec.ID),
		zap.String("hash", rec.Hash.Hex()),
		zap.String("block", info.BlockNumber.String()))
	m.publish(newStatusChangedEvent(rec.ID, StatusConfirmed))
	m.publish(newUpdatedEvent(fresh.Clone()))
}
