// internal/txmgr/errors.go
package txmgr

import "errors"

var (
	ErrDuplicateID         = errors.New("record id already exists")
	ErrNotFound            = errors.New("record not found")
	ErrInvalidParams       = errors.New("invalid transaction params")
	ErrInvalidStatus       = errors.New("operation not valid for record status")
	ErrGasEstimationFailed = errors.New("gas estimation failed")
	ErrSignFailed          = errors.New("transaction signing failed")
	ErrBroadcastFailed     = errors.New("transaction broadcast failed")
)
