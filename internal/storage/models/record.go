// internal/storage/models/record.go
package models

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/dmarkov/txpilot/internal/txmgr"
)

// TransactionRecord is the persisted snapshot of one lifecycle record.
// Big integers are stored as decimal strings; binary blobs as hex.
type TransactionRecord struct {
	BaseModel
	RecordID      string    `gorm:"unique;not null;type:varchar(36)"`
	NetworkID     uint64    `gorm:"index;not null"`
	Status        string    `gorm:"index;not null;type:varchar(20)"`
	RecordedAt    time.Time `gorm:"not null"`
	FromAddress   string    `gorm:"index;not null;type:varchar(42)"`
	ToAddress     string    `gorm:"type:varchar(42)"`
	Value         string    `gorm:"type:varchar(80)"`
	Data          string    `gorm:"type:text"`
	GasPrice      string    `gorm:"type:varchar(80)"`
	GasLimit      uint64
	Nonce         *uint64
	ChainID       string `gorm:"type:varchar(40)"`
	SignedPayload string `gorm:"type:text"`
	Hash          string `gorm:"index;type:varchar(66)"`
	RetryCount    int
	FailureReason string `gorm:"type:varchar(40)"`
	FailureDetail string `gorm:"type:text"`
	LastWarning   string `gorm:"type:text"`
}

// FromRecord converts a lifecycle record to its persisted shape.
func FromRecord(rec *txmgr.Record) *TransactionRecord {
	out := &TransactionRecord{
		RecordID:      rec.ID,
		NetworkID:     rec.NetworkID,
		Status:        string(rec.Status),
		RecordedAt:    rec.CreatedAt,
		FromAddress:   rec.Params.From.Hex(),
		GasLimit:      rec.Params.GasLimit,
		RetryCount:    rec.RetryCount,
		FailureReason: string(rec.FailureReason),
		FailureDetail: rec.FailureDetail,
		LastWarning:   rec.LastWarning,
	}
	if rec.Params.To != nil {
		out.ToAddress = rec.Params.To.Hex()
	}
	if rec.Params.Value != nil {
		out.Value = rec.Params.Value.String()
	}
	if len(rec.Params.Data) > 0 {
		out.Data = hexutil.Encode(rec.Params.Data)
	}
	if rec.Params.GasPrice != nil {
		out.GasPrice = rec.Params.GasPrice.String()
	}
	if rec.Params.Nonce != nil {
		n := *rec.Params.Nonce
		out.Nonce = &n
	}
	if rec.Params.ChainID != nil {
		out.ChainID = rec.Params.ChainID.String()
	}
	if len(rec.SignedPayload) > 0 {
		out.SignedPayload = hexutil.Encode(rec.SignedPayload)
	}
	if rec.Hash != nil {
		out.Hash = rec.Hash.Hex()
	}
	return out
}

// ToRecord converts a persisted snapshot back to a lifecycle record.
func (m *TransactionRecord) ToRecord() (*txmgr.Record, error) {
	rec := &txmgr.Record{
		ID:        m.RecordID,
		NetworkID: m.NetworkID,
		Status:    txmgr.Status(m.Status),
		CreatedAt: m.RecordedAt,
		Params: txmgr.TxParams{
			From:     common.HexToAddress(m.FromAddress),
			GasLimit: m.GasLimit,
		},
		RetryCount:    m.RetryCount,
		FailureReason: txmgr.FailureReason(m.FailureReason),
		FailureDetail: m.FailureDetail,
		LastWarning:   m.LastWarning,
	}
	if m.ToAddress != "" {
		to := common.HexToAddress(m.ToAddress)
		rec.Params.To = &to
	}
	if m.Value != "" {
		value, ok := new(big.Int).SetString(m.Value, 10)
		if !ok {
			return nil, fmt.Errorf("record %s: invalid value %q", m.RecordID, m.Value)
		}
		rec.Params.Value = value
	}
	if m.Data != "" {
		data, err := hexutil.Decode(m.Data)
		if err != nil {
			return nil, fmt.Errorf("record %s: invalid data: %w", m.RecordID, err)
		}
		rec.Params.Data = data
	}
	if m.GasPrice != "" {
		price, ok := new(big.Int).SetString(m.GasPrice, 10)
		if !ok {
			return nil, fmt.Errorf("record %s: invalid gas price %q", m.RecordID, m.GasPrice)
		}
		rec.Params.GasPrice = price
	}
	if m.Nonce != nil {
		n := *m.Nonce
		rec.Params.Nonce = &n
	}
	if m.ChainID != "" {
		chainID, ok := new(big.Int).SetString(m.ChainID, 10)
		if !ok {
			return nil, fmt.Errorf("record %s: invalid chain id %q", m.RecordID, m.ChainID)
		}
		rec.Params.ChainID = chainID
	}
	if m.SignedPayload != "" {
		payload, err := hexutil.Decode(m.SignedPayload)
		if err != nil {
			return nil, fmt.Errorf("record %s: invalid signed payload: %w", m.RecordID, err)
		}
		rec.SignedPayload = payload
	}
	if m.Hash != "" {
		hash := common.HexToHash(m.Hash)
		rec.Hash = &hash
	}
	return rec, nil
}
