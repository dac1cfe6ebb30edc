// internal/gateway/gateway.go
package gateway

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

// TxInfo is the ledger's view of a broadcast transaction. BlockNumber is
// nil while the transaction is still pending.
type TxInfo struct {
	Hash        common.Hash
	BlockNumber *big.Int
}

// Gateway is the ledger RPC surface the lifecycle manager depends on.
type Gateway interface {
	// GasPrice returns the node's suggested gas price.
	GasPrice(ctx context.Context) (*big.Int, error)

	// EstimateGas estimates the gas usage of the given call.
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)

	// PendingNonceAt returns the account's next nonce including pool
	// transactions.
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)

	// TransactionByHash looks up a broadcast transaction. Returns
	// (nil, nil) when the ledger does not know the hash.
	TransactionByHash(ctx context.Context, hash common.Hash) (*TxInfo, error)

	// SendRawTransaction broadcasts a signed payload and returns its hash.
	SendRawTransaction(ctx context.Context, payload []byte) (common.Hash, error)

	// BlockNumber returns the current head block number.
	BlockNumber(ctx context.Context) (uint64, error)
}
