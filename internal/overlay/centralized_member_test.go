package overlay

import "testing"

func TestCentralizedMember_ForcesControllerRouteWhenKnownNeighbor(t *testing.T) {
	transport := &recordingTransport{}
	store := NewMapNeighborStore()
	store.Update("ctrl", 5)
	neighbors := NewNeighbors(transport, newStubDispatcher(), store)

	m := NewCentralizedMember(Config{
		Hostname:   "a",
		Transport:  transport,
		Neighbors:  neighbors,
		Dispatcher: newStubDispatcher(),
	}, "ctrl")

	m.receive("ctrl", controllerMessage{
		Source: "ctrl",
		Link: LinkState{
			"a": {"b": 1},
			"b": {"a": 1},
		},
	})

	m.routingTableLock.Lock()
	ctrlEntry, hasCtrl := m.routingTable["ctrl"]
	bEntry, hasB := m.routingTable["b"]
	m.routingTableLock.Unlock()

	if !hasCtrl || ctrlEntry.NextHop != "ctrl" || ctrlEntry.Cost != 5 {
		t.Errorf("expected forced controller route next=ctrl cost=5, got %+v (present=%v)", ctrlEntry, hasCtrl)
	}
	if !hasB || bEntry.NextHop != "b" || bEntry.Cost != 1 {
		t.Errorf("expected dijkstra-derived route to b, got %+v (present=%v)", bEntry, hasB)
	}
}

func TestCentralizedMember_SkipsForcedRouteWhenControllerNotNeighbor(t *testing.T) {
	transport := &recordingTransport{}
	neighbors := NewNeighbors(transport, newStubDispatcher(), NewMapNeighborStore())

	m := NewCentralizedMember(Config{
		Hostname:   "a",
		Transport:  transport,
		Neighbors:  neighbors,
		Dispatcher: newStubDispatcher(),
	}, "ctrl")

	m.receive("ctrl", controllerMessage{
		Source: "ctrl",
		Link:   LinkState{"a": {"b": 1}, "b": {"a": 1}},
	})

	m.routingTableLock.Lock()
	_, hasCtrl := m.routingTable["ctrl"]
	m.routingTableLock.Unlock()

	if hasCtrl {
		t.Errorf("expected no forced controller route when controller is not a known neighbor")
	}
}

func TestCentralizedMember_TickUnicastsToController(t *testing.T) {
	transport := &recordingTransport{}
	store := NewMapNeighborStore()
	store.Update("ctrl", 2)
	neighbors := NewNeighbors(transport, newStubDispatcher(), store)

	m := NewCentralizedMember(Config{
		Hostname:   "a",
		Transport:  transport,
		Neighbors:  neighbors,
		Dispatcher: newStubDispatcher(),
	}, "ctrl")

	m.tick()

	if transport.count() != 1 {
		t.Fatalf("expected exactly one unicast to the controller, got %d", transport.count())
	}
}
