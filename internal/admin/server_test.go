package admin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/aegis-platform/aegis/internal/comms"
	"github.com/aegis-platform/aegis/internal/testutil/testlog"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	return New("agent.test", comms.NewDefaultClient(), nil)
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	s.Router().ServeHTTP(w, req)
	return w
}

func TestHealthAndReady(t *testing.T) {
	testlog.Start(t)
	s := newTestServer(t)

	for _, path := range []string{"/health", "/ready"} {
		w := get(t, s, path)
		if w.Code != http.StatusOK {
			t.Fatalf("%s: status %d", path, w.Code)
		}
		var body map[string]any
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("%s: bad json: %v", path, err)
		}
		if body["node"] != "agent.test" {
			t.Fatalf("%s: node missing: %v", path, body)
		}
	}
}

func TestListenersSnapshot(t *testing.T) {
	testlog.Start(t)
	s := newTestServer(t)

	type msg struct {
		Text string `json:"text"`
	}
	bound, err := comms.StartListener[msg](s.Client, "127.0.0.1:0", nil, func(h *comms.ConnectionHandle[msg]) {
		h.Close()
	})
	if err != nil {
		t.Fatalf("start listener: %v", err)
	}
	defer func() { _ = s.Client.StopListener(bound.String()) }()

	w := get(t, s, "/listeners")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), bound.String()) {
		t.Fatalf("listener %s missing from snapshot: %s", bound, w.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	testlog.Start(t)
	s := newTestServer(t)

	w := get(t, s, "/metrics")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "aegis_") {
		t.Fatalf("expected aegis metrics in exposition, got: %.200s", w.Body.String())
	}
}
