// Package overlay implements the routing core of an overlay-routing
// daemon: a Neighbors component for direct-link liveness/cost
// maintenance, and four interchangeable path-computation algorithms
// (DV, LS, CentralizedMember, CentralizedController) sharing a common
// lifecycle. The wire transport, message dispatcher, and forwarding
// table consumer are external collaborators, described here only as
// interfaces (see collaborators.go).
package overlay

import "time"

// Hostname identifies a participating node. It is opaque and
// compared only for equality.
type Hostname string

// Cost is a non-negative integer link weight. The wire sentinel -1
// means "remove/not-present" and must never be stored; inside
// Dijkstra's predecessor table -1 instead means "unreached". The two
// meanings are kept in distinct call sites so neither sentinel ever
// flows into a stored cost (see RemovalCost and unreached).
type Cost int

// RemovalCost is the wire sentinel meaning "delete this neighbor".
// It is never a valid stored cost.
const RemovalCost Cost = -1

// RoutingEntry is a single forwarding decision: go to Destination via
// NextHop at the given Cost. The entry for the local hostname is
// always (self, self, 0) and is invariant.
type RoutingEntry struct {
	NextHop Hostname `json:"next"`
	Cost    Cost     `json:"cost"`
}

// RoutingTable maps a destination hostname to how to reach it.
type RoutingTable map[Hostname]RoutingEntry

// Clone returns a deep-independent copy, suitable for publishing to
// the external forwarding table or sending over the transport after
// the owning lock has been released.
func (t RoutingTable) Clone() RoutingTable {
	cp := make(RoutingTable, len(t))
	for k, v := range t {
		cp[k] = v
	}
	return cp
}

// LinkState is the global adjacency database used by LS and the
// centralized variants: LinkState[a][b] = c means "a reports a direct
// link to b of cost c". Hosts heard of but never reporting their own
// adjacency exist as empty inner maps so Dijkstra enumerates them.
type LinkState map[Hostname]map[Hostname]Cost

// Clone returns a deep-independent copy of the link-state database.
func (ls LinkState) Clone() LinkState {
	cp := make(LinkState, len(ls))
	for host, adj := range ls {
		inner := make(map[Hostname]Cost, len(adj))
		for k, v := range adj {
			inner[k] = v
		}
		cp[host] = inner
	}
	return cp
}

// NeighborSnapshot is a point-in-time copy of directly-attached peers
// and their link costs.
type NeighborSnapshot map[Hostname]Cost

// AliveSnapshot is a point-in-time copy of last-seen timestamps.
type AliveSnapshot map[Hostname]time.Time

const (
	// DefaultUpdateInterval is how often an Algorithm's run() tick is
	// rescheduled when not overridden.
	DefaultUpdateInterval = 30 * time.Second

	// DefaultTimeout is how long a host may go unheard from before it
	// is considered dead.
	DefaultTimeout = 180 * time.Second

	// MaxRetry is the number of unicast attempts Neighbors makes
	// before giving up and invoking the fail continuation.
	MaxRetry = 3
)

// NeighborTimeout is how long Neighbors waits for an ack before
// retrying a cost update. A package-level var, not a const, so tests
// can shrink it instead of waiting out the production value.
var NeighborTimeout = 10 * time.Second
