// internal/gateway/ethrpc.go
package gateway

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
)

// Client implements Gateway over a JSON-RPC endpoint.
type Client struct {
	eth    *ethclient.Client
	rpc    *rpc.Client
	logger *zap.Logger
}

// Dial connects to the given HTTP or websocket RPC endpoint.
func Dial(ctx context.Context, rawURL string, logger *zap.Logger) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial rpc endpoint: %w", err)
	}
	return &Client{
		eth:    ethclient.NewClient(rpcClient),
		rpc:    rpcClient,
		logger: logger.Named("gateway"),
	}, nil
}

func (c *Client) GasPrice(ctx context.Context) (*big.Int, error) {
	price, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %w", err)
	}
	return price, nil
}

func (c *Client) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	gas, err := c.eth.EstimateGas(ctx, msg)
	if err != nil {
		return 0, fmt.Errorf("failed to estimate gas: %w", err)
	}
	return gas, nil
}

func (c *Client) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	nonce, err := c.eth.PendingNonceAt(ctx, account)
	if err != nil {
		return 0, fmt.Errorf("failed to get pending nonce: %w", err)
	}
	return nonce, nil
}

func (c *Client) TransactionByHash(ctx context.Context, hash common.Hash) (*TxInfo, error) {
	_, pending, err := c.eth.TransactionByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up transaction: %w", err)
	}

	info := &TxInfo{Hash: hash}
	if pending {
		return info, nil
	}

	receipt, err := c.eth.TransactionReceipt(ctx, hash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return info, nil
		}
		return nil, fmt.Errorf("failed to look up receipt: %w", err)
	}
	info.BlockNumber = receipt.BlockNumber
	return info, nil
}

func (c *Client) SendRawTransaction(ctx context.Context, payload []byte) (common.Hash, error) {
	var hash common.Hash
	err := c.rpc.CallContext(ctx, &hash, "eth_sendRawTransaction", hexutil.Encode(payload))
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to send raw transaction: %w", err)
	}
	c.logger.Debug("Broadcast raw transaction", zap.String("hash", hash.Hex()))
	return hash, nil
}

func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	return c.eth.BlockNumber(ctx)
}

// Close tears down the underlying RPC connection.
func (c *Client) Close() {
	c.rpc.Close()
}
