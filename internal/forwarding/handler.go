package forwarding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/okdaichi/overlayd/internal/overlay"
)

// tableResponse is the JSON wire shape for a routing table snapshot.
type tableResponse struct {
	Entries []entryResponse `json:"entries"`
}

type entryResponse struct {
	Destination string `json:"destination"`
	NextHop     string `json:"next_hop"`
	Cost        int    `json:"cost"`
}

func toResponse(table overlay.RoutingTable) tableResponse {
	resp := tableResponse{Entries: make([]entryResponse, 0, len(table))}
	for dest, entry := range table {
		resp.Entries = append(resp.Entries, entryResponse{
			Destination: string(dest),
			NextHop:     string(entry.NextHop),
			Cost:        int(entry.Cost),
		})
	}
	return resp
}

func fromResponse(resp tableResponse) overlay.RoutingTable {
	table := make(overlay.RoutingTable, len(resp.Entries))
	for _, e := range resp.Entries {
		table[overlay.Hostname(e.Destination)] = overlay.RoutingEntry{
			NextHop: overlay.Hostname(e.NextHop),
			Cost:    overlay.Cost(e.Cost),
		}
	}
	return table
}

// TableHandlerFunc returns an http.HandlerFunc for GET /table, a
// read-only inspection endpoint over the current routing table.
func TableHandlerFunc(t *Table) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(toResponse(t.Snapshot()))
	}
}

// SyncHandlerFunc returns an http.HandlerFunc implementing HA
// replication for /sync: GET exports the current table for a standby
// controller to pull, PUT imports a table pushed by the active
// controller.
func SyncHandlerFunc(t *Table) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(toResponse(t.Snapshot()))

		case http.MethodPut:
			var resp tableResponse
			if err := json.NewDecoder(r.Body).Decode(&resp); err != nil {
				jsonError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
				return
			}
			table := fromResponse(resp)
			t.Restore(table)

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]any{"status": "synced", "entries": len(table)})

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

// PeerSyncer periodically pulls the routing table from a peer (HA
// active) controller so a standby stays ready to take over.
type PeerSyncer struct {
	PeerURL  string
	Table    *Table
	Interval time.Duration
	client   *http.Client
	log      *slog.Logger
}

// NewPeerSyncer creates a syncer that pulls from peerURL.
func NewPeerSyncer(peerURL string, table *Table, interval time.Duration) *PeerSyncer {
	return &PeerSyncer{
		PeerURL:  peerURL,
		Table:    table,
		Interval: interval,
		client:   &http.Client{Timeout: 5 * time.Second},
		log:      slog.With("component", "peer_syncer"),
	}
}

// Run starts the periodic pull loop. Blocks until ctx is cancelled.
func (ps *PeerSyncer) Run(ctx context.Context) {
	ticker := time.NewTicker(ps.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := ps.pull(); err != nil {
				ps.log.Warn("peer sync failed", "peer", ps.PeerURL, "error", err)
			}
		}
	}
}

func (ps *PeerSyncer) pull() error {
	resp, err := ps.client.Get(ps.PeerURL + "/sync")
	if err != nil {
		return fmt.Errorf("GET /sync: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("peer returned status %d", resp.StatusCode)
	}

	var tr tableResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	ps.Table.Restore(fromResponse(tr))
	ps.log.Debug("synced routing table from peer", "peer", ps.PeerURL, "entries", len(tr.Entries))
	return nil
}

// Push sends the current table to a peer controller on demand, for
// faster convergence than waiting on the next pull interval.
func (ps *PeerSyncer) Push() error {
	resp := toResponse(ps.Table.Snapshot())

	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	req := &http.Request{
		Method: http.MethodPut,
		URL:    mustParseURL(ps.PeerURL + "/sync"),
		Body:   io.NopCloser(bytes.NewReader(data)),
		Header: http.Header{"Content-Type": []string{"application/json"}},
	}
	httpResp, err := ps.client.Do(req)
	if err != nil {
		return fmt.Errorf("PUT /sync: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return fmt.Errorf("peer returned status %d", httpResp.StatusCode)
	}
	return nil
}

func mustParseURL(rawURL string) *url.URL {
	u, err := url.Parse(rawURL)
	if err != nil {
		panic("invalid URL: " + rawURL)
	}
	return u
}
