// internal/txmgr/manager.go
package txmgr

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/dmarkov/txpilot/internal/events"
	"github.com/dmarkov/txpilot/internal/gateway"
	"github.com/dmarkov/txpilot/internal/signer"
)

// broadcastAttempts bounds the in-call retry of eth_sendRawTransaction so
// Approve surfaces a broadcast failure promptly. Longer-horizon retry
// belongs to the resubmission loop.
const broadcastAttempts = 3

const confirmLookupConcurrency = 4

type Config struct {
	NetworkID        uint64
	ChainID          *big.Int
	RetentionLimit   int
	MaxRetries       int
	ResubmitInterval time.Duration
}

// Manager drives transaction records through validation, approval,
// signing, broadcast and confirmation. One instance per process; all
// callers (UI actions, block ticks, the resubmission timer) share it.
type Manager struct {
	cfg     Config
	store   *Store
	gate    *NonceGate
	gateway gateway.Gateway
	signer  signer.Signer
	bus     *events.Bus
	logger  *zap.Logger
	metrics *Metrics

	// Highest nonce broadcast per sender this session. Guarded by the
	// nonce gate, except during Restore which runs before any Approve.
	lastNonce map[common.Address]uint64

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewManager(cfg Config, gw gateway.Gateway, sg signer.Signer, bus *events.Bus, logger *zap.Logger, reg prometheus.Registerer) *Manager {
	log := logger.Named("tx-manager")
	return &Manager{
		cfg:       cfg,
		store:     NewStore(cfg.RetentionLimit, log),
		gate:      NewNonceGate(),
		gateway:   gw,
		signer:    sg,
		bus:       bus,
		logger:    log,
		metrics:   NewMetrics(reg),
		lastNonce: make(map[common.Address]uint64),
	}
}

// Store exposes the record store for projections and the persistence
// collaborator's change subscription.
func (m *Manager) Store() *Store {
	return m.store
}

// Start launches the resubmission loop.
func (m *Manager) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.resubmitLoop(ctx)
	}()
	m.logger.Info("Transaction manager started",
		zap.Uint64("network_id", m.cfg.NetworkID),
		zap.Duration("resubmit_interval", m.cfg.ResubmitInterval))
}

// Stop cancels the resubmission loop and waits for it to exit.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	m.logger.Info("Transaction manager stopped")
}

// Submit validates params, fills gas defaults from the ledger and creates
// an unapproved record. The nonce gate is not involved; nothing here is
// nonce-sensitive.
func (m *Manager) Submit(ctx context.Context, params TxParams) (string, error) {
	if err := validateParams(&params); err != nil {
		return "", err
	}

	if params.Value == nil {
		params.Value = new(big.Int)
	}
	if params.GasPrice == nil {
		price, err := m.gateway.GasPrice(ctx)
		if err != nil {
			return "", fmt.Errorf("%w: gas price lookup: %v", ErrGasEstimationFailed, err)
		}
		params.GasPrice = price
	}
	if params.GasLimit == 0 {
		gas, err := m.gateway.EstimateGas(ctx, ethereum.CallMsg{
			From:     params.From,
			To:       params.To,
			Value:    params.Value,
			Data:     params.Data,
			GasPrice: params.GasPrice,
		})
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrGasEstimationFailed, err)
		}
		params.GasLimit = gas
	}

	rec := &Record{
		ID:        uuid.NewString(),
		NetworkID: m.cfg.NetworkID,
		Status:    StatusUnapproved,
		CreatedAt: time.Now(),
		Params:    params,
	}
	if err := m.store.Append(rec); err != nil {
		return "", err
	}

	m.logger.Info("Created unapproved transaction",
		zap.String("id", rec.ID),
		zap.String("from", params.From.Hex()))
	m.publish(newUnapprovedEvent(rec.Clone()))
	return rec.ID, nil
}

// Approve marks the record approved, then runs the nonce-sensitive
// critical section: acquire the gate, assign the nonce, sign, broadcast.
// The gate is released exactly once regardless of which step failed.
func (m *Manager) Approve(ctx context.Context, id string) error {
	defer m.metrics.TrackApprove(time.Now())

	// The unapproved->approved edge is taken atomically in the store, so
	// of two callers racing on the same record only one reaches the gate.
	if err := m.transition(id, StatusUnapproved, StatusApproved); err != nil {
		return err
	}

	gateStart := time.Now()
	if err := m.gate.Acquire(ctx); err != nil {
		m.markFailed(id, ReasonApproveAborted, err)
		return fmt.Errorf("waiting for nonce gate: %w", err)
	}
	m.metrics.TrackGateWait(gateStart)
	defer m.gate.Release()

	return m.signAndBroadcast(ctx, id)
}

// signAndBroadcast is the critical section. Caller holds the nonce gate
// and won the approval edge; a record in any other status stays untouched.
func (m *Manager) signAndBroadcast(ctx context.Context, id string) error {
	rec, err := m.store.Get(id)
	if err != nil {
		return err
	}
	if rec.Status != StatusApproved {
		return fmt.Errorf("%w: record %s is %s on entry to signing", ErrInvalidStatus, id, rec.Status)
	}

	nonce, err := m.nextNonce(ctx, rec.Params.From)
	if err != nil {
		m.markFailed(id, ReasonNonceLookupFailed, err)
		return fmt.Errorf("acquire nonce: %w", err)
	}
	rec.Params.Nonce = &nonce
	rec.Params.ChainID = new(big.Int).Set(m.cfg.ChainID)

	// The gas-price quote is applied as both tip and fee cap.
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   rec.Params.ChainID,
		Nonce:     nonce,
		GasTipCap: rec.Params.GasPrice,
		GasFeeCap: rec.Params.GasPrice,
		Gas:       rec.Params.GasLimit,
		To:        rec.Params.To,
		Value:     rec.Params.Value,
		Data:      rec.Params.Data,
	})

	payload, err := m.signer.Sign(ctx, tx, rec.Params.From)
	if err != nil {
		m.markFailed(id, ReasonSignFailed, err)
		return fmt.Errorf("%w: %v", ErrSignFailed, err)
	}
	rec.SignedPayload = payload
	rec.Status = StatusSigned
	if err := m.store.Replace(rec); err != nil {
		return err
	}
	m.publish(newStatusChangedEvent(id, StatusSigned))

	hash, err := m.broadcastWithRetry(ctx, payload)
	if err != nil {
		m.markFailed(id, ReasonBroadcastFailed, err)
		return fmt.Errorf("%w: %v", ErrBroadcastFailed, err)
	}
	rec.Hash = &hash
	rec.Status = StatusSubmitted
	if err := m.store.Replace(rec); err != nil {
		return err
	}
	m.lastNonce[rec.Params.From] = nonce
	m.metrics.submittedCounter.Inc()

	m.logger.Info("Transaction submitted",
		zap.String("id", id),
		zap.String("hash", hash.Hex()),
		zap.Uint64("nonce", nonce))
	m.publish(newStatusChangedEvent(id, StatusSubmitted))
	m.publish(newUpdatedEvent(rec.Clone()))
	return nil
}

// Reject declines an unapproved record. Terminal immediately; the nonce
// gate is not involved. The edge check is atomic, so a rejection cannot
// overwrite an approval that won the race, nor the other way around.
func (m *Manager) Reject(ctx context.Context, id string) error {
	return m.transition(id, StatusUnapproved, StatusRejected)
}

// Get returns a copy of the record for id.
func (m *Manager) Get(id string) (*Record, error) {
	return m.store.Get(id)
}

// Restore reseeds the store from persisted state at startup. Submitted
// records rejoin confirmation and resubmission tracking; records caught
// between signing and broadcast are broadcast now, so no restored record
// is left in a state the running loops never pick up. Runs before Start,
// single-threaded.
func (m *Manager) Restore(ctx context.Context, recs []*Record) error {
	for _, rec := range recs {
		if err := m.store.Append(rec); err != nil {
			return err
		}
		switch rec.Status {
		case StatusSigned:
			m.recoverSigned(ctx, rec.ID)
		case StatusSubmitted:
			if rec.Params.Nonce != nil {
				m.noteNonce(rec.Params.From, *rec.Params.Nonce)
			}
		}
	}
	m.logger.Info("Restored records from persisted state", zap.Int("count", len(recs)))
	return nil
}

// recoverSigned completes the broadcast half of an interrupted approval.
func (m *Manager) recoverSigned(ctx context.Context, id string) {
	rec, err := m.store.Get(id)
	if err != nil {
		return
	}
	if len(rec.SignedPayload) == 0 {
		m.markFailed(id, ReasonBroadcastFailed, errors.New("signed record has no payload"))
		return
	}

	hash, err := m.broadcastWithRetry(ctx, rec.SignedPayload)
	if err != nil {
		m.markFailed(id, ReasonBroadcastFailed, err)
		return
	}
	rec.Hash = &hash
	rec.Status = StatusSubmitted
	if err := m.store.Replace(rec); err != nil {
		return
	}
	if rec.Params.Nonce != nil {
		m.noteNonce(rec.Params.From, *rec.Params.Nonce)
	}
	m.metrics.submittedCounter.Inc()
	m.logger.Info("Recovered signed transaction",
		zap.String("id", id),
		zap.String("hash", hash.Hex()))
	m.publish(newStatusChangedEvent(id, StatusSubmitted))
	m.publish(newUpdatedEvent(rec.Clone()))
}

// noteNonce records a broadcast nonce if it is the highest seen for the
// sender.
func (m *Manager) noteNonce(from common.Address, nonce uint64) {
	if last, ok := m.lastNonce[from]; !ok || nonce > last {
		m.lastNonce[from] = nonce
	}
}

// nextNonce combines the ledger's pending count with local tracking, so
// consecutive approvals in one session get consecutive nonces even before
// the node's transaction pool catches up. Caller holds the nonce gate.
func (m *Manager) nextNonce(ctx context.Context, from common.Address) (uint64, error) {
	remote, err := m.gateway.PendingNonceAt(ctx, from)
	if err != nil {
		return 0, err
	}
	if last, ok := m.lastNonce[from]; ok && last+1 > remote {
		return last + 1, nil
	}
	return remote, nil
}

// broadcastWithRetry sends the payload, retrying transient failures. A
// node answering "already known" means an earlier attempt landed even if
// its response was lost, so it counts as success with the hash recovered
// from the payload itself.
func (m *Manager) broadcastWithRetry(ctx context.Context, payload []byte) (common.Hash, error) {
	var hash common.Hash
	operation := func() error {
		var err error
		hash, err = m.gateway.SendRawTransaction(ctx, payload)
		if err == nil {
			return nil
		}
		if gateway.IsAlreadyKnown(err) {
			known, hashErr := payloadHash(payload)
			if hashErr != nil {
				return backoff.Permanent(hashErr)
			}
			hash = known
			return nil
		}
		m.logger.Warn("Retrying transaction broadcast", zap.Error(err))
		return err
	}

	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), broadcastAttempts-1)
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return common.Hash{}, err
	}
	return hash, nil
}

// payloadHash recovers the canonical transaction hash from a signed
// payload.
func payloadHash(payload []byte) (common.Hash, error) {
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(payload); err != nil {
		return common.Hash{}, fmt.Errorf("decode signed payload: %w", err)
	}
	return tx.Hash(), nil
}

// transition takes a single lifecycle edge and emits the notification.
func (m *Manager) transition(id string, from, to Status) error {
	if _, err := m.store.UpdateStatus(id, from, to); err != nil {
		return err
	}
	m.publish(newStatusChangedEvent(id, to))
	return nil
}

// markFailed transitions a record to the terminal failed status with a
// structured reason. Failures to record the failure are logged, never
// allowed to crash the manager.
func (m *Manager) markFailed(id string, reason FailureReason, cause error) {
	rec, err := m.store.Get(id)
	if err != nil {
		m.logger.Error("Cannot mark missing record failed", zap.String("id", id), zap.Error(err))
		return
	}
	if rec.Status.Terminal() {
		return
	}
	rec.Status = StatusFailed
	rec.FailureReason = reason
	if cause != nil {
		rec.FailureDetail = cause.Error()
	}
	if err := m.store.Replace(rec); err != nil {
		m.logger.Error("Failed to persist failure", zap.String("id", id), zap.Error(err))
		return
	}
	m.metrics.failedCounter.Inc()
	m.logger.Error("Transaction failed",
		zap.String("id", id),
		zap.String("reason", string(reason)),
		zap.Error(cause))
	m.publish(newStatusChangedEvent(id, StatusFailed))
	m.publish(newUpdatedEvent(rec.Clone()))
}

// recordWarning attaches a non-fatal diagnostic without a transition.
func (m *Manager) recordWarning(id, warning string) {
	rec, err := m.store.Get(id)
	if err != nil {
		return
	}
	if rec.Status.Terminal() {
		return
	}
	rec.LastWarning = warning
	if err := m.store.Replace(rec); err != nil {
		return
	}
	m.publish(newUpdatedEvent(rec.Clone()))
}

func (m *Manager) publish(event events.Event) {
	if m.bus == nil {
		return
	}
	if err := m.bus.Publish(event); err != nil {
		m.logger.Warn("Dropped lifecycle notification",
			zap.String("event_type", string(event.Type())),
			zap.Error(err))
	}
}

func validateParams(params *TxParams) error {
	if params.From == (common.Address{}) {
		return fmt.Errorf("%w: missing sender", ErrInvalidParams)
	}
	if params.To == nil && len(params.Data) == 0 {
		return fmt.Errorf("%w: missing recipient", ErrInvalidParams)
	}
	if params.Value != nil && params.Value.Sign() < 0 {
		return fmt.Errorf("%w: negative value", ErrInvalidParams)
	}
	if params.GasPrice != nil && params.GasPrice.Sign() <= 0 {
		return fmt.Errorf("%w: non-positive gas price", ErrInvalidParams)
	}
	if params.Nonce != nil {
		return fmt.Errorf("%w: nonce is assigned by the pipeline", ErrInvalidParams)
	}
	return nil
}
