// internal/txmgr/mocks_test.go
package txmgr

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/dmarkov/txpilot/internal/gateway"
)

// MockGateway implements gateway.Gateway.
type MockGateway struct {
	mock.Mock
}

func (g *MockGateway) GasPrice(ctx context.Context) (*big.Int, error) {
	args := g.Called(ctx)
	if v := args.Get(0); v != nil {
		return v.(*big.Int), args.Error(1)
	}
	return nil, args.Error(1)
}

func (g *MockGateway) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	args := g.Called(ctx, msg)
	return args.Get(0).(uint64), args.Error(1)
}

func (g *MockGateway) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	args := g.Called(ctx, account)
	return args.Get(0).(uint64), args.Error(1)
}

func (g *MockGateway) TransactionByHash(ctx context.Context, hash common.Hash) (*gateway.TxInfo, error) {
	args := g.Called(ctx, hash)
	if v := args.Get(0); v != nil {
		return v.(*gateway.TxInfo), args.Error(1)
	}
	return nil, args.Error(1)
}

func (g *MockGateway) SendRawTransaction(ctx context.Context, payload []byte) (common.Hash, error) {
	args := g.Called(ctx, payload)
	return args.Get(0).(common.Hash), args.Error(1)
}

func (g *MockGateway) BlockNumber(ctx context.Context) (uint64, error) {
	args := g.Called(ctx)
	return args.Get(0).(uint64), args.Error(1)
}

// MockSigner implements signer.Signer.
type MockSigner struct {
	mock.Mock
}

func (s *MockSigner) Sign(ctx context.Context, tx *types.Transaction, from common.Address) ([]byte, error) {
	args := s.Called(ctx, tx, from)
	if v := args.Get(0); v != nil {
		return v.([]byte), args.Error(1)
	}
	return nil, args.Error(1)
}

const testNetworkID uint64 = 5

func newTestManager(gw *MockGateway, sg *MockSigner) *Manager {
	return NewManager(Config{
		NetworkID:        testNetworkID,
		ChainID:          big.NewInt(1337),
		RetentionLimit:   10,
		MaxRetries:       3,
		ResubmitInterval: time.Hour,
	}, gw, sg, nil, zap.NewNop(), prometheus.NewRegistry())
}

func testAddress(b byte) common.Address {
	var addr common.Address
	addr[19] = b
	return addr
}

func testHash(b byte) common.Hash {
	var hash common.Hash
	hash[31] = b
	return hash
}

// submittedRecord builds a record in the shape approve leaves behind.
func submittedRecord(id string, from common.Address, nonce uint64) *Record {
	hash := testHash(0xaa)
	return &Record{
		ID:            id,
		NetworkID:     testNetworkID,
		Status:        StatusSubmitted,
		CreatedAt:     time.Now(),
		Params:        TxParams{From: from, Value: big.NewInt(1), GasPrice: big.NewInt(2), GasLimit: 21000, Nonce: &nonce},
		SignedPayload: []byte{0xde, 0xad},
		Hash:          &hash,
	}
}
