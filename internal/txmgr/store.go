// internal/txmgr/store.go
package txmgr

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// ChangeListener observes every successful Append and Replace. The store
// passes a private copy, so listeners may retain it.
type ChangeListener func(rec *Record)

// Store is the ordered, mutable list of transaction records. All mutation
// in the system goes through Append and Replace so the change notification
// stays authoritative for the persistence collaborator and the projection
// cache.
type Store struct {
	mu        sync.RWMutex
	records   []*Record
	byID      map[string]*Record
	retention int
	logger    *zap.Logger

	listenerMu sync.RWMutex
	listeners  []ChangeListener
}

// NewStore creates a store that keeps at most retention records per
// network, trimming only terminal records.
func NewStore(retention int, logger *zap.Logger) *Store {
	return &Store{
		byID:      make(map[string]*Record),
		retention: retention,
		logger:    logger.Named("tx-store"),
	}
}

// OnChange registers a listener for record mutations.
func (s *Store) OnChange(fn ChangeListener) {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Append adds a new record, trimming the oldest terminal record for the
// same network first when the retention limit is reached. Live records are
// never evicted; if none of the network's records are terminal the list
// simply grows past the limit.
func (s *Store) Append(rec *Record) error {
	s.mu.Lock()
	if _, ok := s.byID[rec.ID]; ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicateID, rec.ID)
	}

	if s.countForNetworkLocked(rec.NetworkID) >= s.retention {
		s.trimOldestTerminalLocked(rec.NetworkID)
	}

	stored := rec.Clone()
	s.records = append(s.records, stored)
	s.byID[stored.ID] = stored
	s.mu.Unlock()

	s.notify(stored)
	return nil
}

// Get returns a copy of the record for id.
func (s *Store) Get(id string) (*Record, error) {
	s.mu.RLock()
	stored, ok := s.byID[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return stored.Clone(), nil
}

// Replace atomically swaps the record for updated.ID. Callers needing
// read-modify-write semantics must re-Get before Replace; the store itself
// is last-writer-wins per id.
func (s *Store) Replace(updated *Record) error {
	s.mu.Lock()
	stored, ok := s.byID[updated.ID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, updated.ID)
	}

	replacement := updated.Clone()
	for i, rec := range s.records {
		if rec == stored {
			s.records[i] = replacement
			break
		}
	}
	s.byID[updated.ID] = replacement
	s.mu.Unlock()

	s.notify(replacement)
	return nil
}

// UpdateStatus moves the record from one status to another. The check and
// the write share the store lock, so of several callers racing on the same
// edge exactly one wins; the rest get ErrInvalidStatus. Returns a copy of
// the updated record.
func (s *Store) UpdateStatus(id string, from, to Status) (*Record, error) {
	s.mu.Lock()
	stored, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if stored.Status != from {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: record %s is %s, not %s", ErrInvalidStatus, id, stored.Status, from)
	}
	stored.Status = to
	out := stored.Clone()
	s.mu.Unlock()

	s.notify(out)
	return out, nil
}

// QueryBy returns copies of all records matching pred, in insertion order.
// A nil predicate matches everything.
func (s *Store) QueryBy(pred func(*Record) bool) []*Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Record
	for _, rec := range s.records {
		if pred == nil || pred(rec) {
			out = append(out, rec.Clone())
		}
	}
	return out
}

// Len returns the total number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *Store) countForNetworkLocked(networkID uint64) int {
	count := 0
	for _, rec := range s.records {
		if rec.NetworkID == networkID {
			count++
		}
	}
	return count
}

func (s *Store) trimOldestTerminalLocked(networkID uint64) {
	for i, rec := range s.records {
		if rec.NetworkID == networkID && rec.Status.Terminal() {
			s.logger.Debug("Trimming terminal record past retention limit",
				zap.String("id", rec.ID),
				zap.String("status", string(rec.Status)))
			s.records = append(s.records[:i], s.records[i+1:]...)
			delete(s.byID, rec.ID)
			return
		}
	}
}

func (s *Store) notify(stored *Record) {
	s.listenerMu.RLock()
	listeners := make([]ChangeListener, len(s.listeners))
	copy(listeners, s.listeners)
	s.listenerMu.RUnlock()

	for _, fn := range listeners {
		fn(stored.Clone())
	}
}
