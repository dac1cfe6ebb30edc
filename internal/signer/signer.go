// internal/signer/signer.go
package signer

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Signer produces a broadcast-ready payload for a fully populated
// transaction. Implementations may be slow or require out-of-band user
// confirmation (hardware devices, remote custodial signers), so Sign takes
// a context but the lifecycle manager imposes no timeout of its own.
type Signer interface {
	Sign(ctx context.Context, tx *types.Transaction, from common.Address) ([]byte, error)
}
