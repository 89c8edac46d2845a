package obsserver

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/websocket"
)

func TestHandleHealthOK(t *testing.T) {
	s := &Server{}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/healthz", nil)

	s.handleHealth(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestHandleHealthDegraded(t *testing.T) {
	s := &Server{ready: func() error { return errDependencyDown }}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/healthz", nil)

	s.handleHealth(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestBroadcastWithNoClientsDoesNotPanic(t *testing.T) {
	s := &Server{clients: make(map[*websocket.Conn]struct{})}
	s.Broadcast(ProgressEvent{Pair: "BTC/ETH", Completed: 1, Total: 1, Status: "done"})
}

var errDependencyDown = &stubError{"cache unreachable"}

type stubError struct{ msg string }

func (e *stubError) Error() string { return e.msg }
