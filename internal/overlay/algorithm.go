package overlay

import (
	"log/slog"
	"sync"
	"time"
)

// AlgorithmTypeTag is the dispatcher type tag every Algorithm variant
// registers under.
const AlgorithmTypeTag = "algorithm"

// Receiver is implemented by each concrete algorithm variant (DV, LS,
// CentralizedMember, CentralizedController) to handle an inbound
// "algorithm"-tagged message.
type Receiver interface {
	receive(source Hostname, data any)
}

// Ticker is implemented by each concrete algorithm variant to run one
// periodic tick: broadcast or unicast its current state.
type Ticker interface {
	tick()
}

// Variant is the pair of behaviors a concrete algorithm contributes
// to the shared Algorithm core.
type Variant interface {
	Receiver
	Ticker
}

// Algorithm holds the lifecycle, tables, and locks shared by DV, LS,
// CentralizedMember, and CentralizedController. Concrete variants
// embed *Algorithm and supply receive/tick via Variant;
// Algorithm.Receive/Run/Stop forward to them.
//
// Lock order: routingTableLock before linkStateLock when both are
// held; aliveTableLock alone. No table lock is ever held across a
// transport or dispatcher call.
type Algorithm struct {
	hostname Hostname
	interval time.Duration
	timeout  time.Duration

	transport Transport
	routing   RoutingModel
	neighbors *Neighbors

	log *slog.Logger

	routingTableLock sync.Mutex
	routingTable     RoutingTable

	linkStateLock sync.Mutex
	linkState     LinkState

	aliveTableLock sync.Mutex
	aliveTable     map[Hostname]time.Time

	timerLock sync.Mutex
	timer     *time.Timer

	variant Variant
}

// Config bundles the construction-time parameters every Algorithm
// variant needs.
type Config struct {
	Hostname       Hostname
	Transport      Transport
	RoutingModel   RoutingModel
	Neighbors      *Neighbors
	Dispatcher     Dispatcher
	UpdateInterval time.Duration
	Timeout        time.Duration
}

func newAlgorithm(cfg Config, componentName string) *Algorithm {
	interval := cfg.UpdateInterval
	if interval <= 0 {
		interval = DefaultUpdateInterval
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	a := &Algorithm{
		hostname:  cfg.Hostname,
		interval:  interval,
		timeout:   timeout,
		transport: cfg.Transport,
		routing:   cfg.RoutingModel,
		neighbors: cfg.Neighbors,
		log:       slog.With("component", componentName, "hostname", cfg.Hostname),
		routingTable: RoutingTable{
			cfg.Hostname: {NextHop: cfg.Hostname, Cost: 0},
		},
		linkState:  LinkState{},
		aliveTable: make(map[Hostname]time.Time),
	}

	if cfg.Dispatcher != nil {
		cfg.Dispatcher.Register(AlgorithmTypeTag, a)
	}
	if cfg.Neighbors != nil {
		cfg.Neighbors.OnUpdate(a.onNeighborUpdate)
	}
	return a
}

// bind attaches the concrete variant so Receive/Run can forward to it.
// Must be called once, immediately after the variant's constructor
// builds its embedded Algorithm.
func (a *Algorithm) bind(v Variant) {
	a.variant = v
}

// Receive implements Handler by forwarding to the bound variant.
func (a *Algorithm) Receive(source Hostname, data any) {
	a.variant.receive(source, data)
}

// Run executes one tick via the bound variant, then arms a
// single-shot timer for the next one. Only the periodic path arms the
// timer; a triggered update (e.g. DV's notifyNeighbors) must call the
// variant's send logic directly, never Run, to avoid double-arming.
func (a *Algorithm) Run() {
	a.variant.tick()
	a.armTimer()
}

func (a *Algorithm) armTimer() {
	a.timerLock.Lock()
	defer a.timerLock.Unlock()
	a.timer = time.AfterFunc(a.interval, a.Run)
}

// Stop cancels the outstanding periodic timer.
func (a *Algorithm) Stop() {
	a.timerLock.Lock()
	defer a.timerLock.Unlock()
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

// onNeighborUpdate subscribes to Neighbors' OnUpdate callback: a
// non-negative cost shortcuts a routing entry; -1 is ignored here,
// removal happens via the timeout path.
func (a *Algorithm) onNeighborUpdate(h Hostname, cost Cost) {
	if cost < 0 {
		return
	}
	a.routingTableLock.Lock()
	a.routingTable[h] = RoutingEntry{NextHop: h, Cost: cost}
	a.routingTableLock.Unlock()

	if a.routing != nil {
		a.routing.UpdateOne(h, h, cost)
	}
}

// publish pushes a deep-independent snapshot of the routing table to
// the external forwarding model. Caller must NOT hold
// routingTableLock.
func (a *Algorithm) publish() {
	a.routingTableLock.Lock()
	snapshot := a.routingTable.Clone()
	a.routingTableLock.Unlock()

	if a.routing != nil {
		a.routing.Update(snapshot)
	}
}

// snapshotNeighbors returns the current neighbor cost table.
func (a *Algorithm) snapshotNeighbors() NeighborSnapshot {
	if a.neighbors == nil {
		return NeighborSnapshot{}
	}
	return a.neighbors.Get()
}

// refreshAlive stamps hosts' last-seen time to now and returns the set
// of hosts now considered dead relative to the configured timeout.
// Dead hosts are dropped from the alive table so they are reported
// exactly once per death. Caller must not hold aliveTableLock.
func (a *Algorithm) refreshAlive(hosts ...Hostname) []Hostname {
	now := time.Now()

	a.aliveTableLock.Lock()
	for _, h := range hosts {
		a.aliveTable[h] = now
	}
	dead := a.collectDeadLocked(now)
	a.aliveTableLock.Unlock()

	return dead
}

// stampAlive refreshes the local hostname's last-seen time without
// collecting the dead set; tick paths use it so a node's own entry
// never goes stale between inbound messages.
func (a *Algorithm) stampAlive() {
	a.aliveTableLock.Lock()
	a.aliveTable[a.hostname] = time.Now()
	a.aliveTableLock.Unlock()
}

// collectDeadLocked removes and returns every timed-out host. Caller
// must hold aliveTableLock.
func (a *Algorithm) collectDeadLocked(now time.Time) []Hostname {
	var dead []Hostname
	for h, last := range a.aliveTable {
		if now.Sub(last) > a.timeout {
			dead = append(dead, h)
			delete(a.aliveTable, h)
		}
	}
	return dead
}

// mergeAliveMax folds an incoming alive snapshot into the local alive
// table entrywise by maximum timestamp, so merged last-seen times
// never move backward. Returns the dead set computed afterward.
func (a *Algorithm) mergeAliveMax(self Hostname, incoming AliveSnapshot) []Hostname {
	now := time.Now()

	a.aliveTableLock.Lock()
	a.aliveTable[self] = now
	for h, ts := range incoming {
		if cur, ok := a.aliveTable[h]; !ok || ts.After(cur) {
			a.aliveTable[h] = ts
		}
	}
	dead := a.collectDeadLocked(now)
	a.aliveTableLock.Unlock()

	return dead
}

// aliveSnapshot returns a deep-independent copy of the alive table.
func (a *Algorithm) aliveSnapshot() AliveSnapshot {
	a.aliveTableLock.Lock()
	defer a.aliveTableLock.Unlock()
	snap := make(AliveSnapshot, len(a.aliveTable))
	for h, ts := range a.aliveTable {
		snap[h] = ts
	}
	return snap
}

// aliveHosts partitions the alive table into (alive, dead) relative to
// the configured timeout, as of now. Dead hosts are dropped from the
// table, same as refreshAlive.
func (a *Algorithm) aliveHosts() (alive, dead []Hostname) {
	now := time.Now()
	a.aliveTableLock.Lock()
	defer a.aliveTableLock.Unlock()
	for h, last := range a.aliveTable {
		if now.Sub(last) <= a.timeout {
			alive = append(alive, h)
		} else {
			dead = append(dead, h)
			delete(a.aliveTable, h)
		}
	}
	return alive, dead
}

// notifyDead delegates dead-host handling to Neighbors, which drives
// a reliable delete for each.
func (a *Algorithm) notifyDead(dead []Hostname) {
	if len(dead) == 0 || a.neighbors == nil {
		return
	}
	a.log.Info("dead hosts detected", "hosts", dead)
	for _, h := range dead {
		a.neighbors.Delete(h, nil, nil)
	}
}

func isDead(h Hostname, dead []Hostname) bool {
	for _, d := range dead {
		if d == h {
			return true
		}
	}
	return false
}
