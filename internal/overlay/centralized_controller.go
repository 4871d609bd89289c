package overlay

// CentralizedController aggregates the direct adjacency reported by
// every CentralizedMember into one global link-state database and
// distributes that database back to every currently-alive member. It
// never appears as a node in the graph it distributes: it always
// excludes itself, whether or not it happens to be present in its own
// alive table.
type CentralizedController struct {
	*Algorithm
}

// NewCentralizedController constructs a controller instance.
func NewCentralizedController(cfg Config) *CentralizedController {
	c := &CentralizedController{Algorithm: newAlgorithm(cfg, "centralized-controller")}
	c.bind(c)
	return c
}

func (c *CentralizedController) receive(source Hostname, data any) {
	msg, ok := decodeMemberMessage(data)
	if !ok {
		c.log.Warn("dropping malformed member message", "source", source)
		return
	}

	// Unlike DV/LS, only the reporting member's liveness is refreshed
	// here; the controller's own liveness is irrelevant to the graph
	// it distributes.
	dead := c.refreshAlive(msg.Source)
	c.notifyDead(dead)

	c.linkStateLock.Lock()
	c.applyAdjacency(msg.Source, msg.Neighbor)
	c.purgeDead(append(dead, c.hostname))
	c.linkStateLock.Unlock()
}

// applyAdjacency overwrites host's adjacency with its latest report,
// so links the member no longer advertises drop out of the
// distributed graph. Caller must hold linkStateLock.
func (c *CentralizedController) applyAdjacency(host Hostname, adjacency NeighborSnapshot) {
	c.linkState[host] = make(map[Hostname]Cost, len(adjacency))
	for peer, cost := range adjacency {
		c.linkState[host][peer] = cost
		if c.linkState[peer] == nil {
			c.linkState[peer] = make(map[Hostname]Cost)
		}
	}
}

func (c *CentralizedController) purgeDead(dead []Hostname) {
	for _, h := range dead {
		delete(c.linkState, h)
	}
	for _, adj := range c.linkState {
		for _, h := range dead {
			delete(adj, h)
		}
	}
}

// LinkStateSnapshot returns a deep-independent copy of the aggregated
// link-state database, for inspection surfaces outside the core.
func (c *CentralizedController) LinkStateSnapshot() LinkState {
	c.linkStateLock.Lock()
	defer c.linkStateLock.Unlock()
	return c.linkState.Clone()
}

func (c *CentralizedController) tick() {
	c.linkStateLock.Lock()
	snapshot := c.linkState.Clone()
	c.linkStateLock.Unlock()

	alive, dead := c.aliveHosts()
	c.notifyDead(dead)

	msg := controllerMessage{Source: c.hostname, Link: snapshot}
	payload := Payload{Type: AlgorithmTypeTag, Data: msg}
	for _, h := range alive {
		if h == c.hostname {
			continue
		}
		c.transport.Send(h, payload, true)
	}
}
