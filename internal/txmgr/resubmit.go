// internal/txmgr/resubmit.go
package txmgr

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dmarkov/txpilot/internal/gateway"
)

// stuckWarning marks a record that exhausted its resubmission budget. It
// stays submitted: the original broadcast may still confirm, and forcing a
// failure would lie about a transaction the ledger might yet include.
const stuckWarning = "resubmission limit reached, awaiting confirmation or manual intervention"

// resubmitLoop re-broadcasts signed-but-pending payloads at a fixed
// cadence until the manager stops.
func (m *Manager) resubmitLoop(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.ResubmitInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.resubmitPending(ctx)
		}
	}
}

func (m *Manager) resubmitPending(ctx context.Context) {
	pending := m.store.QueryBy(func(r *Record) bool {
		return r.Status == StatusSubmitted && len(r.SignedPayload) > 0
	})

	for _, rec := range pending {
		// Cancellation is honored between records only: each record's
		// retry increment plus rebroadcast is one unit of work.
		if ctx.Err() != nil {
			return
		}
		m.resubmitOne(ctx, rec.ID)
	}
}

func (m *Manager) resubmitOne(ctx context.Context, id string) {
	rec, err := m.store.Get(id)
	if err != nil || rec.Status != StatusSubmitted {
		return
	}

	if rec.RetryCount >= m.cfg.MaxRetries {
		if rec.LastWarning != stuckWarning {
			m.logger.Warn("Transaction stuck past retry limit",
				zap.String("id", id),
				zap.Int("retry_count", rec.RetryCount))
			m.recordWarning(id, stuckWarning)
		}
		return
	}

	// The attempt and its bookkeeping land in one store write after the
	// send returns, so an interruption never leaves a counted-but-unsent
	// retry behind.
	_, sendErr := m.gateway.SendRawTransaction(ctx, rec.SignedPayload)
	if sendErr != nil && gateway.IsAlreadyKnown(sendErr) {
		// The pool already has this payload; the retry did its job.
		sendErr = nil
	}

	fresh, err := m.store.Get(id)
	if err != nil || fresh.Status != StatusSubmitted {
		return
	}
	fresh.RetryCount++
	if sendErr != nil {
		fresh.LastWarning = "resubmission failed: " + sendErr.Error()
	}
	if err := m.store.Replace(fresh); err != nil {
		return
	}
	m.metrics.resubmitCounter.Inc()

	if sendErr != nil {
		m.logger.Warn("Resubmission failed",
			zap.String("id", id),
			zap.Int("retry_count", fresh.RetryCount),
			zap.Error(sendErr))
	} else {
		m.logger.Debug("Resubmitted transaction",
			zap.String("id", id),
			zap.Int("retry_count", fresh.RetryCount))
	}
	m.publish(newUpdatedEvent(fresh.Clone()))
}
