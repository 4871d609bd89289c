package transport

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/okdaichi/overlayd/internal/overlay"
)

type recordingHandler struct {
	source overlay.Hostname
	data   any
	calls  int
}

func (h *recordingHandler) Receive(source overlay.Hostname, data any) {
	h.source = source
	h.data = data
	h.calls++
}

func TestDispatcher_DispatchRoutesToRegisteredHandler(t *testing.T) {
	d := NewDispatcher()
	h := &recordingHandler{}
	d.Register("neighbor", h)

	d.Dispatch("neighbor", "a", 5)

	if h.calls != 1 || h.source != "a" {
		t.Fatalf("expected handler invoked once with source=a, got calls=%d source=%s", h.calls, h.source)
	}
}

func TestDispatcher_DispatchUnknownTypeIsNoop(t *testing.T) {
	d := NewDispatcher()
	h := &recordingHandler{}
	d.Register("neighbor", h)

	d.Dispatch("algorithm", "a", 5)

	if h.calls != 0 {
		t.Errorf("expected no dispatch for an unregistered type, got %d calls", h.calls)
	}
}

func TestMessageHandlerFunc_DecodesAndDispatches(t *testing.T) {
	d := NewDispatcher()
	h := &recordingHandler{}
	d.Register("neighbor", h)

	body := `{"source":"b","payload":{"type":"neighbor","data":5}}`
	req := httptest.NewRequest(http.MethodPost, "/message", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()

	MessageHandlerFunc(d)(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	if h.calls != 1 || h.source != "b" {
		t.Errorf("expected handler invoked with source=b, got calls=%d source=%s", h.calls, h.source)
	}
}

func TestMessageHandlerFunc_RejectsMissingFields(t *testing.T) {
	d := NewDispatcher()
	req := httptest.NewRequest(http.MethodPost, "/message", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()

	MessageHandlerFunc(d)(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing source/type, got %d", rec.Code)
	}
}

func TestPeerRegistrationHandlerFunc_PutThenDelete(t *testing.T) {
	registry := NewRegistry(0)
	handler := PeerRegistrationHandlerFunc(registry)

	putReq := httptest.NewRequest(http.MethodPut, "/peers/a", bytes.NewBufferString(`{"address":"http://a:9000"}`))
	putRec := httptest.NewRecorder()
	handler(putRec, putReq)

	if putRec.Code != http.StatusOK {
		t.Fatalf("expected 200 on PUT, got %d", putRec.Code)
	}
	if addr, ok := registry.Resolve("a"); !ok || addr != "http://a:9000" {
		t.Fatalf("expected a registered, got %q ok=%v", addr, ok)
	}

	delReq := httptest.NewRequest(http.MethodDelete, "/peers/a", nil)
	delRec := httptest.NewRecorder()
	handler(delRec, delReq)

	if delRec.Code != http.StatusOK {
		t.Fatalf("expected 200 on DELETE, got %d", delRec.Code)
	}
	if _, ok := registry.Resolve("a"); ok {
		t.Errorf("expected a removed after DELETE")
	}
}
