package overlay

// Payload is the envelope every message carries across the transport:
// a type tag the Dispatcher uses to pick a handler, plus an opaque
// body the handler interprets itself.
type Payload struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Handler is implemented by every component the Dispatcher can route
// to (Neighbors and each Algorithm variant).
type Handler interface {
	// Receive is invoked by the dispatcher for every inbound message
	// addressed to this component's type tag.
	Receive(source Hostname, data any)
}

// Dispatcher routes inbound typed messages to the component
// registered for that type tag. It is an external collaborator: the
// core only registers against it, it never implements it.
type Dispatcher interface {
	Register(typeTag string, handler Handler)
}

// Transport is the external, best-effort delivery mechanism. Send
// errors are not propagated to the core: reliability for Neighbors
// rests on retry, and for the algorithms on the next periodic tick.
type Transport interface {
	// Send delivers payload to hostname. isNew distinguishes a fresh
	// attempt from a retry; transports may ignore it.
	Send(hostname Hostname, payload Payload, isNew bool)

	// Broadcasting delivers payload to every currently-reachable host.
	Broadcasting(payload Payload)
}

// NeighborStore is the external model Neighbors mutates and the
// Algorithm reads from. Implementations need not be safe for
// concurrent use by themselves; Neighbors serializes access.
type NeighborStore interface {
	GetCost(h Hostname) (Cost, bool)
	Update(h Hostname, cost Cost)
	Remove(h Hostname)
	Enumerate() NeighborSnapshot
}

// RoutingModel is the external forwarding table every Algorithm
// publishes to after each mutation.
type RoutingModel interface {
	Update(table RoutingTable)
	UpdateOne(destination, nextHop Hostname, cost Cost)
}

// MapNeighborStore is an in-memory NeighborStore, suitable both for
// tests and as the default when no external store is wired in.
type MapNeighborStore struct {
	costs map[Hostname]Cost
}

// NewMapNeighborStore creates an empty in-memory neighbor store.
func NewMapNeighborStore() *MapNeighborStore {
	return &MapNeighborStore{costs: make(map[Hostname]Cost)}
}

func (s *MapNeighborStore) GetCost(h Hostname) (Cost, bool) {
	c, ok := s.costs[h]
	return c, ok
}

func (s *MapNeighborStore) Update(h Hostname, cost Cost) {
	s.costs[h] = cost
}

func (s *MapNeighborStore) Remove(h Hostname) {
	delete(s.costs, h)
}

func (s *MapNeighborStore) Enumerate() NeighborSnapshot {
	snap := make(NeighborSnapshot, len(s.costs))
	for h, c := range s.costs {
		snap[h] = c
	}
	return snap
}
