package forwarding

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/okdaichi/overlayd/internal/overlay"
)

// FileStore persists the routing table as a JSON file on disk,
// suitable for single-node deployments and development.
type FileStore struct {
	Path string
}

// NewFileStore creates a FileStore that writes to the given path.
func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

// persistEntry is the JSON-serializable representation of one
// destination's routing entry.
type persistEntry struct {
	Destination string `json:"destination"`
	NextHop     string `json:"next_hop"`
	Cost        int    `json:"cost"`
}

// persistTable is the top-level JSON structure written to disk.
type persistTable struct {
	Entries []persistEntry `json:"entries"`
}

// Save writes the table atomically (write-then-rename).
func (s *FileStore) Save(table overlay.RoutingTable) error {
	pt := persistTable{Entries: make([]persistEntry, 0, len(table))}
	for dest, entry := range table {
		pt.Entries = append(pt.Entries, persistEntry{
			Destination: string(dest),
			NextHop:     string(entry.NextHop),
			Cost:        int(entry.Cost),
		})
	}

	data, err := json.MarshalIndent(pt, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal routing table: %w", err)
	}

	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}

	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// Load reads the table from the JSON file. Returns (nil, nil) if the
// file does not yet exist.
func (s *FileStore) Load() (overlay.RoutingTable, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read routing table file: %w", err)
	}

	var pt persistTable
	if err := json.Unmarshal(data, &pt); err != nil {
		return nil, fmt.Errorf("unmarshal routing table: %w", err)
	}

	table := make(overlay.RoutingTable, len(pt.Entries))
	for _, pe := range pt.Entries {
		table[overlay.Hostname(pe.Destination)] = overlay.RoutingEntry{
			NextHop: overlay.Hostname(pe.NextHop),
			Cost:    overlay.Cost(pe.Cost),
		}
	}
	return table, nil
}
