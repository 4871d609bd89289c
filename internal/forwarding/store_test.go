package forwarding

import (
	"path/filepath"
	"testing"

	"github.com/okdaichi/overlayd/internal/overlay"
)

func TestFileStore_SaveThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routes.json")
	store := NewFileStore(path)

	table := overlay.RoutingTable{
		"a": {NextHop: "a", Cost: 0},
		"b": {NextHop: "b", Cost: 1},
		"c": {NextHop: "b", Cost: 3},
	}
	if err := store.Save(table); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if len(loaded) != len(table) {
		t.Fatalf("expected %d entries, got %d", len(table), len(loaded))
	}
	for dest, want := range table {
		got, ok := loaded[dest]
		if !ok || got != want {
			t.Errorf("entry %s: got %+v, want %+v", dest, got, want)
		}
	}
}

func TestFileStore_LoadMissingFileReturnsNilNil(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "missing.json"))

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("expected no error for a missing file, got %v", err)
	}
	if loaded != nil {
		t.Errorf("expected nil table for a missing file, got %+v", loaded)
	}
}

func TestFileStore_SaveCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "routes.json")
	store := NewFileStore(path)

	if err := store.Save(overlay.RoutingTable{"a": {NextHop: "a", Cost: 0}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := store.Load(); err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
}
