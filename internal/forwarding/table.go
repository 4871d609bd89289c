// Package forwarding implements the external RoutingModel every
// overlay.Algorithm variant publishes its computed routes to: an
// in-memory table with optional atomic file persistence, an HTTP
// inspection surface, and HA replication between redundant
// controllers.
package forwarding

import (
	"log/slog"
	"sync"

	"github.com/okdaichi/overlayd/internal/overlay"
	"github.com/okdaichi/overlayd/observability"
)

// Store abstracts routing-table persistence.
type Store interface {
	Save(table overlay.RoutingTable) error
	// Load restores the table. Returns (nil, nil) if no data exists yet.
	Load() (overlay.RoutingTable, error)
}

// Table is an overlay.RoutingModel backed by an in-memory table with
// optional persistence. Zero-value is usable; Store is optional.
type Table struct {
	Store Store

	mu       sync.Mutex
	table    overlay.RoutingTable
	initOnce sync.Once

	log *slog.Logger
	rec *observability.Recorder
}

// NewTable creates a Table, optionally backed by store.
func NewTable(store Store) *Table {
	return &Table{
		Store: store,
		log:   slog.With("component", "forwarding_table"),
		rec:   observability.NewRecorder("forwarding_table"),
	}
}

// Update implements overlay.RoutingModel: it replaces the whole table
// with an independent copy of the given snapshot.
func (t *Table) Update(table overlay.RoutingTable) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.init()
	t.table = table.Clone()
	t.save()
	t.rec.RouteUpdated()
}

// UpdateOne implements overlay.RoutingModel: it sets a single
// destination's entry without touching the rest of the table.
func (t *Table) UpdateOne(destination, nextHop overlay.Hostname, cost overlay.Cost) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.init()
	t.table[destination] = overlay.RoutingEntry{NextHop: nextHop, Cost: cost}
	t.save()
	t.rec.RouteUpdated()
}

// Lookup returns the forwarding entry for destination, if any.
func (t *Table) Lookup(destination overlay.Hostname) (overlay.RoutingEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.init()
	entry, ok := t.table[destination]
	if ok {
		t.rec.RouteHit()
	} else {
		t.rec.RouteMiss()
	}
	return entry, ok
}

// Snapshot returns a deep-independent copy of the current table.
func (t *Table) Snapshot() overlay.RoutingTable {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.init()
	return t.table.Clone()
}

// Restore replaces the table wholesale, used when syncing from an HA
// peer rather than from the routing algorithm itself.
func (t *Table) Restore(table overlay.RoutingTable) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.table = table.Clone()
	t.save()
}

func (t *Table) init() {
	if t.table == nil {
		t.table = overlay.RoutingTable{}
	}
	t.initOnce.Do(func() {
		if t.Store == nil {
			return
		}
		restored, err := t.Store.Load()
		if err != nil {
			t.log.Error("failed to load persisted routing table", "error", err)
			return
		}
		if restored != nil {
			t.table = restored
			t.log.Info("routing table restored from store", "entries", len(restored))
		}
	})
}

func (t *Table) save() {
	if t.Store == nil {
		return
	}
	if err := t.Store.Save(t.table); err != nil {
		t.log.Error("failed to persist routing table", "error", err)
	}
}
