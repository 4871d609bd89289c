package forwarding

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/okdaichi/overlayd/internal/overlay"
)

func TestTableHandlerFunc_ReturnsCurrentSnapshot(t *testing.T) {
	tbl := NewTable(nil)
	tbl.Update(overlay.RoutingTable{"a": {NextHop: "a", Cost: 0}})

	req := httptest.NewRequest(http.MethodGet, "/table", nil)
	rec := httptest.NewRecorder()
	TableHandlerFunc(tbl)(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp tableResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if len(resp.Entries) != 1 || resp.Entries[0].Destination != "a" {
		t.Errorf("expected one entry for a, got %+v", resp.Entries)
	}
}

func TestTableHandlerFunc_RejectsNonGet(t *testing.T) {
	tbl := NewTable(nil)
	req := httptest.NewRequest(http.MethodPost, "/table", nil)
	rec := httptest.NewRecorder()
	TableHandlerFunc(tbl)(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}

func TestSyncHandlerFunc_ExportThenImport(t *testing.T) {
	source := NewTable(nil)
	source.Update(overlay.RoutingTable{"a": {NextHop: "a", Cost: 0}, "b": {NextHop: "b", Cost: 2}})

	getReq := httptest.NewRequest(http.MethodGet, "/sync", nil)
	getRec := httptest.NewRecorder()
	SyncHandlerFunc(source)(getRec, getReq)

	if getRec.Code != http.StatusOK {
		t.Fatalf("expected 200 on export, got %d", getRec.Code)
	}

	dest := NewTable(nil)
	putReq := httptest.NewRequest(http.MethodPut, "/sync", bytes.NewReader(getRec.Body.Bytes()))
	putRec := httptest.NewRecorder()
	SyncHandlerFunc(dest)(putRec, putReq)

	if putRec.Code != http.StatusOK {
		t.Fatalf("expected 200 on import, got %d", putRec.Code)
	}

	snap := dest.Snapshot()
	if len(snap) != 2 || snap["b"].Cost != 2 {
		t.Errorf("expected imported table to match source, got %+v", snap)
	}
}

func TestSyncHandlerFunc_ImportRejectsInvalidJSON(t *testing.T) {
	tbl := NewTable(nil)
	req := httptest.NewRequest(http.MethodPut, "/sync", bytes.NewBufferString("not json"))
	rec := httptest.NewRecorder()
	SyncHandlerFunc(tbl)(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestPeerSyncer_PushAndPull(t *testing.T) {
	remote := NewTable(nil)
	remote.Update(overlay.RoutingTable{"a": {NextHop: "a", Cost: 0}})

	srv := httptest.NewServer(SyncHandlerFunc(remote))
	defer srv.Close()

	local := NewTable(nil)
	syncer := NewPeerSyncer(srv.URL, local, 0)

	if err := syncer.pull(); err != nil {
		t.Fatalf("unexpected pull error: %v", err)
	}
	if snap := local.Snapshot(); snap["a"].NextHop != "a" {
		t.Errorf("expected local table to have pulled remote's entry, got %+v", snap)
	}

	local.Update(overlay.RoutingTable{"z": {NextHop: "z", Cost: 9}})
	if err := syncer.Push(); err != nil {
		t.Fatalf("unexpected push error: %v", err)
	}
	if snap := remote.Snapshot(); snap["z"].Cost != 9 {
		t.Errorf("expected remote table to have received the push, got %+v", snap)
	}
}
