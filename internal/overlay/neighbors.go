package overlay

import (
	"log/slog"
	"sync"
	"time"
)

// NeighborTypeTag is the dispatcher type tag Neighbors registers
// under.
const NeighborTypeTag = "neighbor"

// pendingEntry is a single in-flight reliable unicast awaiting ack.
type pendingEntry struct {
	cost    Cost
	timer   *time.Timer
	success func()
	fail    func()
}

// Neighbors tracks directly-attached peers and their link costs, and
// mediates reliable cost mutations with retry/ack. Exactly one
// pending entry exists per destination at a time; a second Update
// call while one is pending overwrites the continuation (caller's
// responsibility).
type Neighbors struct {
	transport Transport
	store     NeighborStore
	log       *slog.Logger

	pendingLock sync.Mutex
	pending     map[Hostname]*pendingEntry

	storeLock sync.Mutex

	updateLock sync.Mutex
	onUpdateCb []func(h Hostname, cost Cost)
}

// NewNeighbors creates a Neighbors component and registers it with
// the dispatcher under NeighborTypeTag.
func NewNeighbors(transport Transport, dispatcher Dispatcher, store NeighborStore) *Neighbors {
	n := &Neighbors{
		transport: transport,
		store:     store,
		log:       slog.With("component", "neighbors"),
		pending:   make(map[Hostname]*pendingEntry),
	}
	dispatcher.Register(NeighborTypeTag, n)
	return n
}

// OnUpdate registers a callback invoked, outside any lock, whenever
// the neighbor table changes (used by Algorithm to shortcut routing
// entries).
func (n *Neighbors) OnUpdate(cb func(h Hostname, cost Cost)) {
	n.updateLock.Lock()
	n.onUpdateCb = append(n.onUpdateCb, cb)
	n.updateLock.Unlock()
}

func (n *Neighbors) fireUpdate(h Hostname, cost Cost) {
	n.updateLock.Lock()
	cbs := append([]func(Hostname, Cost){}, n.onUpdateCb...)
	n.updateLock.Unlock()
	for _, cb := range cbs {
		cb(h, cost)
	}
}

// Receive implements Handler. It validates the inbound cost, acks
// unsolicited updates by echoing the cost back, resolves the pending
// entry on an expected ack, and finally applies the cost locally.
func (n *Neighbors) Receive(source Hostname, data any) {
	cost, ok := validateCost(data)
	if !ok {
		n.log.Warn("dropping invalid neighbor payload", "source", source, "data", data)
		return
	}

	n.log.Info("receiving cost", "source", source, "cost", cost)

	n.pendingLock.Lock()
	entry, hasPending := n.pending[source]
	n.pendingLock.Unlock()

	if !hasPending {
		// Unsolicited update: ack by echoing the cost back.
		n.send(source, cost, true)
	} else {
		n.resolveSuccess(source, entry)
	}

	n.applyLocal(source, cost)
}

func (n *Neighbors) applyLocal(hostname Hostname, cost Cost) {
	n.storeLock.Lock()
	if cost == RemovalCost {
		n.store.Remove(hostname)
	} else {
		n.store.Update(hostname, cost)
	}
	n.storeLock.Unlock()
	n.fireUpdate(hostname, cost)
}

// Update initiates a reliable unicast of cost to hostname with up to
// MaxRetry attempts, each armed with a NeighborTimeout timer.
func (n *Neighbors) Update(hostname Hostname, cost Cost, onSuccess, onFail func()) {
	if onSuccess == nil {
		onSuccess = func() {}
	}
	if onFail == nil {
		onFail = func() {}
	}
	n.log.Info("updating neighbor state", "host", hostname, "cost", cost)
	n.updateWithRetry(hostname, cost, MaxRetry, onSuccess, onFail)
}

// Delete is Update(hostname, RemovalCost, ...), short-circuited if the
// neighbor is not currently known.
func (n *Neighbors) Delete(hostname Hostname, onSuccess, onFail func()) {
	n.log.Info("deleting host", "host", hostname)
	n.storeLock.Lock()
	_, ok := n.store.GetCost(hostname)
	n.storeLock.Unlock()
	if !ok {
		return
	}
	n.Update(hostname, RemovalCost, onSuccess, onFail)
}

// Get returns a snapshot enumeration of current neighbor costs.
func (n *Neighbors) Get() NeighborSnapshot {
	n.storeLock.Lock()
	defer n.storeLock.Unlock()
	return n.store.Enumerate()
}

func (n *Neighbors) updateWithRetry(hostname Hostname, cost Cost, retries int, onSuccess, onFail func()) {
	if retries == 0 {
		// The last timeout already cleared the pending slot.
		n.log.Info("retries exhausted, aborting", "host", hostname)
		onFail()
		return
	}

	entry := &pendingEntry{cost: cost}
	entry.timer = time.AfterFunc(NeighborTimeout, func() {
		n.handleTimeout(hostname, entry, cost, retries, onSuccess, onFail)
	})
	entry.success = func() {
		entry.timer.Stop()
		onSuccess()
	}
	entry.fail = onFail

	n.pendingLock.Lock()
	n.pending[hostname] = entry
	n.pendingLock.Unlock()

	n.send(hostname, cost, retries == MaxRetry)
}

func (n *Neighbors) handleTimeout(hostname Hostname, entry *pendingEntry, cost Cost, retriesLeft int, onSuccess, onFail func()) {
	// The ack path and the timer race for the pending lock; whoever
	// clears the slot first wins, the other becomes a no-op.
	n.pendingLock.Lock()
	if current, ok := n.pending[hostname]; !ok || current != entry {
		n.pendingLock.Unlock()
		return
	}
	delete(n.pending, hostname)
	n.pendingLock.Unlock()

	remaining := retriesLeft - 1
	n.log.Info("neighbor timeout", "host", hostname, "retries_left", remaining)
	n.updateWithRetry(hostname, cost, remaining, onSuccess, onFail)
}

func (n *Neighbors) resolveSuccess(hostname Hostname, entry *pendingEntry) {
	n.pendingLock.Lock()
	current, ok := n.pending[hostname]
	if ok && current == entry {
		delete(n.pending, hostname)
	} else {
		ok = false
	}
	n.pendingLock.Unlock()

	if !ok {
		return
	}
	n.log.Info("ack received", "host", hostname)
	entry.success()
}

func (n *Neighbors) send(to Hostname, cost Cost, isNew bool) {
	n.log.Info("sending cost", "to", to, "cost", cost)
	n.transport.Send(to, Payload{Type: NeighborTypeTag, Data: int(cost)}, isNew)
}

// validateCost accepts any JSON-numeric representation (float64 from a
// decoded envelope, or a plain int from an in-process caller) and
// requires it to be an integer >= RemovalCost.
func validateCost(data any) (Cost, bool) {
	var v float64
	switch d := data.(type) {
	case int:
		v = float64(d)
	case int64:
		v = float64(d)
	case float64:
		v = d
	case Cost:
		v = float64(d)
	default:
		return 0, false
	}
	if v != float64(int64(v)) {
		return 0, false
	}
	c := Cost(int64(v))
	if c < RemovalCost {
		return 0, false
	}
	return c, true
}
