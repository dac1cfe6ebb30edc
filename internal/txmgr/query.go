// internal/txmgr/query.go
package txmgr

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Filter is an equality predicate over records. Filters compose as
// logical AND via QueryBy.
type Filter func(*Record) bool

func ByNetwork(networkID uint64) Filter {
	return func(r *Record) bool { return r.NetworkID == networkID }
}

func ByStatus(status Status) Filter {
	return func(r *Record) bool { return r.Status == status }
}

func BySender(from common.Address) Filter {
	return func(r *Record) bool { return r.Params.From == from }
}

func ByNonce(nonce uint64) Filter {
	return func(r *Record) bool { return r.Params.Nonce != nil && *r.Params.Nonce == nonce }
}

// And combines filters; an empty combination matches everything.
func And(filters ...Filter) Filter {
	return func(r *Record) bool {
		for _, f := range filters {
			if !f(r) {
				return false
			}
		}
		return true
	}
}

// QueryBy returns records matching all filters, in insertion order.
func (m *Manager) QueryBy(filters ...Filter) []*Record {
	return m.store.QueryBy(And(filters...))
}

// Unapproved returns the records still awaiting approval, keyed by id.
func (m *Manager) Unapproved() map[string]*Record {
	out := make(map[string]*Record)
	for _, rec := range m.store.QueryBy(ByStatus(StatusUnapproved)) {
		out[rec.ID] = rec
	}
	return out
}

// Counts returns the number of records per status.
func (m *Manager) Counts() map[Status]int {
	out := make(map[Status]int)
	for _, rec := range m.store.QueryBy(nil) {
		out[rec.Status]++
	}
	return out
}

// ProjectionCache holds the records for the UI's selected account and
// network. It is recomputed and replaced wholesale on every store change
// notification, never incrementally patched.
type ProjectionCache struct {
	mu       sync.RWMutex
	store    *Store
	selected *selection
	records  []*Record
}

type selection struct {
	from      common.Address
	networkID uint64
}

func NewProjectionCache(store *Store) *ProjectionCache {
	pc := &ProjectionCache{store: store}
	store.OnChange(func(*Record) { pc.recompute() })
	return pc
}

// Select switches the cached view to the given account and network.
func (pc *ProjectionCache) Select(from common.Address, networkID uint64) {
	pc.mu.Lock()
	pc.selected = &selection{from: from, networkID: networkID}
	pc.mu.Unlock()
	pc.recompute()
}

// Records returns the cached projection.
func (pc *ProjectionCache) Records() []*Record {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	return pc.records
}

func (pc *ProjectionCache) recompute() {
	pc.mu.RLock()
	sel := pc.selected
	pc.mu.RUnlock()
	if sel == nil {
		return
	}

	fresh := pc.store.QueryBy(And(BySender(sel.from), ByNetwork(sel.networkID)))

	pc.mu.Lock()
	if pc.selected == sel {
		pc.records = fresh
	}
	pc.mu.Unlock()
}
