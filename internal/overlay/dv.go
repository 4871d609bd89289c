package overlay

// DV is the Distance-Vector path-computation algorithm: each node
// advertises its full routing table to its direct neighbors, and
// Bellman-Ford relaxation propagates shortest paths hop by hop. Ties
// are broken in favor of the incumbent (strict less-than only
// replaces an entry).
type DV struct {
	*Algorithm
}

// NewDV constructs a Distance-Vector algorithm instance and registers
// it with the dispatcher and neighbor-update feed via the embedded
// Algorithm core.
func NewDV(cfg Config) *DV {
	dv := &DV{Algorithm: newAlgorithm(cfg, "dv")}
	dv.bind(dv)
	return dv
}

func (dv *DV) receive(source Hostname, data any) {
	msg, ok := decodeDVMessage(data)
	if !ok {
		dv.log.Warn("dropping malformed dv message", "source", source)
		return
	}

	dead := dv.refreshAlive(dv.hostname, source)
	dv.notifyDead(dead)

	neighbors := dv.snapshotNeighbors()

	modified := false
	dv.routingTableLock.Lock()

	for dest, entry := range dv.routingTable {
		if isDead(dest, dead) || isDead(entry.NextHop, dead) {
			delete(dv.routingTable, dest)
			// Only a purged destination marks the table modified;
			// losing an entry over a dead next hop does not by itself
			// warrant a triggered update.
			if isDead(dest, dead) {
				modified = true
			}
		}
	}
	incoming := make(RoutingTable, len(msg.Routing))
	for dest, entry := range msg.Routing {
		if isDead(dest, dead) || isDead(entry.NextHop, dead) {
			continue
		}
		incoming[dest] = entry
	}

	for h, cost := range neighbors {
		if isDead(h, dead) {
			continue
		}
		if _, ok := dv.routingTable[h]; !ok {
			dv.routingTable[h] = RoutingEntry{NextHop: h, Cost: cost}
		}
	}

	if sourceEntry, ok := dv.routingTable[source]; ok {
		for dest, entry := range incoming {
			indirect := sourceEntry.Cost + entry.Cost
			existing, known := dv.routingTable[dest]
			switch {
			case !known:
				dv.routingTable[dest] = RoutingEntry{NextHop: source, Cost: indirect}
				modified = true
			case existing.Cost > indirect:
				dv.routingTable[dest] = RoutingEntry{NextHop: source, Cost: indirect}
				modified = true
			}
		}
	}

	dv.routingTableLock.Unlock()

	if modified {
		dv.notifyNeighbors()
	}
	dv.publish()
}

func (dv *DV) tick() {
	dv.stampAlive()
	dv.notifyNeighbors()
}

// notifyNeighbors snapshots the routing table under lock then sends
// it to every current neighbor after releasing the lock; a table lock
// is never held across a transport call.
func (dv *DV) notifyNeighbors() {
	dv.routingTableLock.Lock()
	snapshot := dv.routingTable.Clone()
	dv.routingTableLock.Unlock()

	msg := dvMessage{Source: dv.hostname, Routing: snapshot}
	for h := range dv.snapshotNeighbors() {
		dv.transport.Send(h, Payload{Type: AlgorithmTypeTag, Data: msg}, true)
	}
}
