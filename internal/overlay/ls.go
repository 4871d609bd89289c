package overlay

// LS is the Link-State path-computation algorithm: every node floods
// its direct adjacency to every host the transport can reach (via
// Broadcasting, not per-neighbor sends), each node assembles a global
// link-state database, and each runs Dijkstra locally over that
// database to derive its own routing table.
type LS struct {
	*Algorithm
}

// NewLS constructs a Link-State algorithm instance.
func NewLS(cfg Config) *LS {
	ls := &LS{Algorithm: newAlgorithm(cfg, "ls")}
	ls.bind(ls)
	return ls
}

func (ls *LS) receive(source Hostname, data any) {
	msg, ok := decodeLSMessage(data)
	if !ok {
		ls.log.Warn("dropping malformed ls message", "source", source)
		return
	}

	dead := ls.mergeAliveMax(ls.hostname, msg.Alive)
	ls.notifyDead(dead)

	neighbors := ls.snapshotNeighbors()

	ls.routingTableLock.Lock()
	ls.linkStateLock.Lock()

	ls.applyAdjacency(ls.hostname, neighbors)
	ls.applyAdjacency(msg.Source, msg.Neighbor)
	ls.purgeDead(dead)

	prevTable := dijkstra(ls.hostname, ls.linkState)
	ls.routingTable = deriveRouting(ls.hostname, prevTable)

	ls.linkStateLock.Unlock()
	ls.routingTableLock.Unlock()

	ls.publish()
}

func (ls *LS) tick() {
	ls.flood()
}

func (ls *LS) flood() {
	ls.stampAlive()
	msg := lsMessage{
		Source:   ls.hostname,
		Neighbor: ls.snapshotNeighbors(),
		Alive:    ls.aliveSnapshot(),
	}
	ls.transport.Broadcasting(Payload{Type: AlgorithmTypeTag, Data: msg})
}

// applyAdjacency overwrites host's adjacency in the link-state
// database with its latest report, so links the host no longer
// advertises drop out rather than lingering. Every endpoint it
// mentions is ensured at least an empty entry so Dijkstra can
// enumerate it. Caller must hold linkStateLock.
func (ls *LS) applyAdjacency(host Hostname, adjacency NeighborSnapshot) {
	ls.linkState[host] = make(map[Hostname]Cost, len(adjacency))
	for peer, cost := range adjacency {
		ls.linkState[host][peer] = cost
		if ls.linkState[peer] == nil {
			ls.linkState[peer] = make(map[Hostname]Cost)
		}
	}
}

// purgeDead removes dead hosts as outer keys and filters them out of
// every inner adjacency map. Caller must hold linkStateLock.
func (ls *LS) purgeDead(dead []Hostname) {
	for _, h := range dead {
		delete(ls.linkState, h)
	}
	for _, adj := range ls.linkState {
		for _, h := range dead {
			delete(adj, h)
		}
	}
}
