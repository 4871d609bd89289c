// Package transport provides the HTTP-based best-effort unicast/broadcast
// Transport and message Dispatcher that the overlay package's
// Neighbors and Algorithm variants run over, plus the peer address
// book they resolve hostnames through.
package transport

import (
	"context"
	"sync"
	"time"
)

// peerEntry records a hostname's advertised address and when it was
// last (re-)registered.
type peerEntry struct {
	Address      string    `json:"address"`
	RegisteredAt time.Time `json:"registered_at"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
}

// Registry is the address book mapping a participating hostname to
// its reachable base URL. Entries optionally expire after TTL of no
// re-registration, so a controller or peer that stops renewing drops
// out of the forwarding set on its own.
type Registry struct {
	mu    sync.RWMutex
	peers map[string]peerEntry
	ttl   time.Duration
}

// NewRegistry creates an empty registry. ttl <= 0 means entries never
// expire on their own (still removable via Deregister).
func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{peers: make(map[string]peerEntry), ttl: ttl}
}

// Register records or refreshes hostname's address.
func (r *Registry) Register(hostname, address string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	expiresAt := time.Time{}
	if r.ttl > 0 {
		expiresAt = now.Add(r.ttl)
	}
	r.peers[hostname] = peerEntry{Address: address, RegisteredAt: now, ExpiresAt: expiresAt}
}

// Deregister removes hostname. Returns true if it was present.
func (r *Registry) Deregister(hostname string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.peers[hostname]
	delete(r.peers, hostname)
	return ok
}

// Resolve returns hostname's address, if known and not expired.
func (r *Registry) Resolve(hostname string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.peers[hostname]
	if !ok {
		return "", false
	}
	if !entry.ExpiresAt.IsZero() && time.Now().After(entry.ExpiresAt) {
		return "", false
	}
	return entry.Address, true
}

// All returns every non-expired hostname's address, keyed by
// hostname. Used for broadcast fan-out.
func (r *Registry) All() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := time.Now()
	out := make(map[string]string, len(r.peers))
	for host, entry := range r.peers {
		if !entry.ExpiresAt.IsZero() && now.After(entry.ExpiresAt) {
			continue
		}
		out[host] = entry.Address
	}
	return out
}

// Sweep removes expired entries and returns how many were removed.
func (r *Registry) Sweep() int {
	if r.ttl <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	removed := 0
	for host, entry := range r.peers {
		if !entry.ExpiresAt.IsZero() && now.After(entry.ExpiresAt) {
			delete(r.peers, host)
			removed++
		}
	}
	return removed
}

// StartSweeper runs Sweep on interval until ctx is cancelled.
func (r *Registry) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.Sweep()
			}
		}
	}()
}
