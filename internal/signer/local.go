// internal/signer/local.go
package signer

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// LocalSigner signs with in-process secp256k1 keys loaded at startup.
type LocalSigner struct {
	keys map[common.Address]*ecdsa.PrivateKey
}

// NewLocalSigner parses hex-encoded private keys (with or without an 0x
// prefix) and indexes them by their derived address.
func NewLocalSigner(hexKeys []string) (*LocalSigner, error) {
	keys := make(map[common.Address]*ecdsa.PrivateKey, len(hexKeys))
	for i, raw := range hexKeys {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(raw, "0x"))
		if err != nil {
			return nil, fmt.Errorf("invalid private key at index %d: %w", i, err)
		}
		keys[crypto.PubkeyToAddress(key.PublicKey)] = key
	}
	return &LocalSigner{keys: keys}, nil
}

// Addresses returns every address this signer can sign for.
func (s *LocalSigner) Addresses() []common.Address {
	addrs := make([]common.Address, 0, len(s.keys))
	for addr := range s.keys {
		addrs = append(addrs, addr)
	}
	return addrs
}

// Sign signs tx with the key for from using EIP-155 replay protection and
// returns the binary encoding ready for eth_sendRawTransaction.
func (s *LocalSigner) Sign(_ context.Context, tx *types.Transaction, from common.Address) ([]byte, error) {
	key, ok := s.keys[from]
	if !ok {
		return nil, fmt.Errorf("no key loaded for address %s", from.Hex())
	}

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(tx.ChainId()), key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	payload, err := signed.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to encode signed transaction: %w", err)
	}
	return payload, nil
}
