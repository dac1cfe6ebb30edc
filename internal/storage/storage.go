// internal/storage/storage.go
package storage

import (
	"context"

	"github.com/dmarkov/txpilot/internal/storage/models"
)

// Storage persists transaction record snapshots. It is driven by the
// store's change notifications; the lifecycle manager itself stays
// storage-agnostic.
type Storage interface {
	// SaveRecord upserts the snapshot for its record id.
	SaveRecord(ctx context.Context, rec *models.TransactionRecord) error

	// ListPending returns the persisted records still awaiting
	// confirmation on the given network, oldest first. Used at startup to
	// reseed the in-memory store.
	ListPending(ctx context.Context, networkID uint64) ([]*models.TransactionRecord, error)

	RunMigrations() error
}
