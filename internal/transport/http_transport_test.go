package transport

import (
	"net/http/httptest"
	"testing"

	"github.com/okdaichi/overlayd/internal/overlay"
)

func TestHTTPTransport_SendDeliversToResolvedPeer(t *testing.T) {
	d := NewDispatcher()
	h := &recordingHandler{}
	d.Register("neighbor", h)

	srv := httptest.NewServer(MessageHandlerFunc(d))
	defer srv.Close()

	registry := NewRegistry(0)
	registry.Register("b", srv.URL)

	transport, err := NewHTTPTransport("a", registry, nil)
	if err != nil {
		t.Fatalf("unexpected error constructing transport: %v", err)
	}

	transport.Send("b", overlay.Payload{Type: "neighbor", Data: float64(5)}, true)

	if h.calls != 1 {
		t.Fatalf("expected the peer's handler to receive exactly one message, got %d", h.calls)
	}
	if h.source != "a" {
		t.Errorf("expected the sender's hostname to arrive as source, got %q", h.source)
	}
}

func TestHTTPTransport_SendToUnresolvedPeerIsNoop(t *testing.T) {
	registry := NewRegistry(0)
	transport, err := NewHTTPTransport("a", registry, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Must not panic or block; an unresolved peer is simply dropped.
	transport.Send("ghost", overlay.Payload{Type: "neighbor", Data: 1}, true)
}

func TestHTTPTransport_BroadcastingReachesEveryPeer(t *testing.T) {
	d1, d2 := NewDispatcher(), NewDispatcher()
	h1, h2 := &recordingHandler{}, &recordingHandler{}
	d1.Register("neighbor", h1)
	d2.Register("neighbor", h2)

	srv1 := httptest.NewServer(MessageHandlerFunc(d1))
	defer srv1.Close()
	srv2 := httptest.NewServer(MessageHandlerFunc(d2))
	defer srv2.Close()

	registry := NewRegistry(0)
	registry.Register("a", srv1.URL)
	registry.Register("b", srv2.URL)

	transport, err := NewHTTPTransport("c", registry, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	transport.Broadcasting(overlay.Payload{Type: "neighbor", Data: float64(1)})

	if h1.calls != 1 || h2.calls != 1 {
		t.Errorf("expected both peers to receive the broadcast, got h1=%d h2=%d", h1.calls, h2.calls)
	}
}
