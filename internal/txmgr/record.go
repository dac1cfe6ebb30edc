// internal/txmgr/record.go
package txmgr

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Status is a transaction record's position in the lifecycle.
type Status string

const (
	StatusUnapproved Status = "unapproved"
	StatusApproved   Status = "approved"
	StatusSigned     Status = "signed"
	StatusSubmitted  Status = "submitted"
	StatusConfirmed  Status = "confirmed"
	StatusRejected   Status = "rejected"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	switch s {
	case StatusConfirmed, StatusRejected, StatusFailed:
		return true
	default:
		return false
	}
}

// FailureReason classifies why a record reached StatusFailed.
type FailureReason string

const (
	ReasonApproveAborted    FailureReason = "approve_aborted"
	ReasonNonceLookupFailed FailureReason = "nonce_lookup_failed"
	ReasonSignFailed        FailureReason = "sign_failed"
	ReasonBroadcastFailed   FailureReason = "broadcast_failed"
	ReasonMissingHash       FailureReason = "missing_hash"
)

// TxParams holds the ledger-specific transaction fields. The pipeline
// fills in defaults, gas and nonce before signing; once a record is signed
// its params are never touched again.
type TxParams struct {
	From     common.Address
	To       *common.Address
	Value    *big.Int
	Data     []byte
	GasPrice *big.Int
	GasLimit uint64
	Nonce    *uint64
	ChainID  *big.Int
}

// Record is the durable identity of one requested transfer as it moves
// through the lifecycle.
type Record struct {
	ID        string
	NetworkID uint64
	Status    Status
	CreatedAt time.Time
	Params    TxParams

	// Set once signing succeeds, immutable thereafter.
	SignedPayload []byte

	// Set once broadcast succeeds, immutable thereafter.
	Hash *common.Hash

	// Mutated only by the resubmission loop.
	RetryCount int

	// Set once on entering StatusFailed, never cleared.
	FailureReason FailureReason
	FailureDetail string

	// Non-fatal diagnostics: confirmation-lookup errors and the
	// stuck-after-max-retries warning land here without a transition.
	LastWarning string
}

// Clone returns a deep copy so callers can mutate without aliasing the
// store's authoritative copy.
func (r *Record) Clone() *Record {
	out := *r
	out.Params = r.Params.clone()
	if r.SignedPayload != nil {
		out.SignedPayload = append([]byte(nil), r.SignedPayload...)
	}
	if r.Hash != nil {
		h := *r.Hash
		out.Hash = &h
	}
	return &out
}

func (p TxParams) clone() TxParams {
	out := p
	if p.To != nil {
		to := *p.To
		out.To = &to
	}
	if p.Value != nil {
		out.Value = new(big.Int).Set(p.Value)
	}
	if p.Data != nil {
		out.Data = append([]byte(nil), p.Data...)
	}
	if p.GasPrice != nil {
		out.GasPrice = new(big.Int).Set(p.GasPrice)
	}
	if p.Nonce != nil {
		n := *p.Nonce
		out.Nonce = &n
	}
	if p.ChainID != nil {
		out.ChainID = new(big.Int).Set(p.ChainID)
	}
	return out
}
