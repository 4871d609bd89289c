package overlay

// CentralizedMember is a node that defers path computation to a
// single CentralizedController: it reports its direct adjacency to
// the controller and, in return, receives the full aggregated
// link-state database to run Dijkstra over locally, same as LS. It
// reuses the free dijkstra/deriveRouting functions rather than
// embedding *LS, since the shortest-path step is a pure function of
// (LinkState, self).
type CentralizedMember struct {
	*Algorithm
	centralHostname Hostname
}

// NewCentralizedMember constructs a member that reports to
// centralHostname.
func NewCentralizedMember(cfg Config, centralHostname Hostname) *CentralizedMember {
	m := &CentralizedMember{
		Algorithm:       newAlgorithm(cfg, "centralized-member"),
		centralHostname: centralHostname,
	}
	m.bind(m)
	return m
}

func (m *CentralizedMember) receive(source Hostname, data any) {
	msg, ok := decodeControllerMessage(data)
	if !ok {
		m.log.Warn("dropping malformed controller message", "source", source)
		return
	}

	m.linkStateLock.Lock()
	m.linkState = msg.Link.Clone()
	m.linkStateLock.Unlock()

	prevTable := dijkstra(m.hostname, msg.Link)

	m.routingTableLock.Lock()
	m.routingTable = deriveRouting(m.hostname, prevTable)
	m.routingTableLock.Unlock()

	// The controller is reached directly, not via Dijkstra over the
	// flooded link-state (the controller is not necessarily a member
	// of the link-state graph it distributes). Its cost comes from our
	// own neighbor table; if the controller is not currently a known
	// neighbor we leave the routing table as Dijkstra computed it
	// rather than inventing a cost.
	if centralCost, ok := m.snapshotNeighbors()[m.centralHostname]; ok {
		m.routingTableLock.Lock()
		m.routingTable[m.centralHostname] = RoutingEntry{NextHop: m.centralHostname, Cost: centralCost}
		m.routingTableLock.Unlock()
	} else {
		m.log.Warn("controller not currently a known neighbor, skipping forced route", "controller", m.centralHostname)
	}

	m.publish()
}

func (m *CentralizedMember) tick() {
	m.stampAlive()
	msg := memberMessage{Source: m.hostname, Neighbor: m.snapshotNeighbors()}
	m.transport.Send(m.centralHostname, Payload{Type: AlgorithmTypeTag, Data: msg}, true)
}
