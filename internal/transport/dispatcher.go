package transport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/okdaichi/overlayd/internal/overlay"
	"github.com/okdaichi/overlayd/observability"
)

// Dispatcher implements overlay.Dispatcher and, via MessageHandlerFunc,
// the HTTP-facing side of the wire: it decodes an inbound Payload and
// routes it to whichever component registered for its Type tag.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]overlay.Handler
	log      *slog.Logger
}

// NewDispatcher creates an empty Dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]overlay.Handler), log: slog.With("component", "dispatcher")}
}

// Register implements overlay.Dispatcher.
func (d *Dispatcher) Register(typeTag string, handler overlay.Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[typeTag] = handler
}

// Dispatch routes data to the handler registered for typeTag, if any.
func (d *Dispatcher) Dispatch(typeTag string, source overlay.Hostname, data any) {
	d.mu.RLock()
	handler, ok := d.handlers[typeTag]
	d.mu.RUnlock()

	if !ok {
		d.log.Warn("no handler registered for type", "type", typeTag, "source", source)
		return
	}

	_, span := observability.StartWith(context.Background(), "dispatch."+typeTag,
		observability.Attrs(observability.Str("overlay.source", string(source))),
	)
	defer span.End()

	handler.Receive(source, data)
}

// inboundEnvelope is the wire shape POSTed to /message: the sender's
// hostname plus the same Payload carried between in-process
// components.
type inboundEnvelope struct {
	Source  overlay.Hostname `json:"source"`
	Payload overlay.Payload  `json:"payload"`
}

// MessageHandlerFunc returns an http.HandlerFunc for POST /message,
// the single endpoint every HTTPTransport peer posts to.
func MessageHandlerFunc(d *Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		var env inboundEnvelope
		if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
			jsonError(w, http.StatusBadRequest, "invalid message envelope")
			return
		}
		if env.Source == "" || env.Payload.Type == "" {
			jsonError(w, http.StatusBadRequest, "source and payload.type are required")
			return
		}

		d.Dispatch(env.Payload.Type, env.Source, env.Payload.Data)
		w.WriteHeader(http.StatusAccepted)
	}
}

// PeerRegistrationHandlerFunc returns an http.HandlerFunc for
// PUT/DELETE on /peers/<hostname>, used to register or remove a
// peer's reachable address in the registry.
func PeerRegistrationHandlerFunc(registry *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hostname := strings.TrimPrefix(r.URL.Path, "/peers/")
		if hostname == "" || hostname == r.URL.Path {
			jsonError(w, http.StatusBadRequest, "path must be /peers/<hostname>")
			return
		}

		switch r.Method {
		case http.MethodPut:
			var body struct {
				Address string `json:"address"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Address == "" {
				jsonError(w, http.StatusBadRequest, "body must be {\"address\": \"...\"}")
				return
			}
			registry.Register(hostname, body.Address)
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{"status": "registered", "hostname": hostname})

		case http.MethodDelete:
			if !registry.Deregister(hostname) {
				jsonError(w, http.StatusNotFound, "peer not registered")
				return
			}
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{"status": "deregistered"})

		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}
}

func jsonError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
