package devtools

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/reflow-dev/reflow/pkg/reactive"
)

func dialEvents(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func waitClientCount(t *testing.T, s *Server, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for s.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("client count = %d, want %d", s.ClientCount(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestEventStream(t *testing.T) {
	s := NewServer()
	defer s.Close()

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn := dialEvents(t, ts)
	defer conn.Close()
	waitClientCount(t, s, 1)

	// A tracked read inside an effect produces a track event on the stream.
	w := reactive.Wrap(map[string]any{"a": 1}).(*reactive.Wrapper)
	e := reactive.NewEffect(func() any { w.Get("a"); return nil })
	defer e.Stop()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.Op != "track" {
		t.Errorf("op = %q, want track", ev.Op)
	}
	if ev.Kind != "get" || ev.Key != "a" {
		t.Errorf("event = %+v", ev)
	}
	if ev.EffectID != e.ID() {
		t.Errorf("effect id = %d, want %d", ev.EffectID, e.ID())
	}

	// A write produces a trigger event.
	w.Set("a", 2)
	_, data, err = conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.Op != "trigger" || ev.Kind != "set" {
		t.Errorf("event = %+v", ev)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := NewServer()
	defer s.Close()

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestDisconnectPrunesClient(t *testing.T) {
	s := NewServer()
	defer s.Close()

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn := dialEvents(t, ts)
	waitClientCount(t, s, 1)

	conn.Close()
	waitClientCount(t, s, 0)
}

func TestCloseDetachesObserver(t *testing.T) {
	s := NewServer()
	s.Close()

	// After Close the observer is gone; graph activity must not panic or
	// reach the server.
	w := reactive.Wrap(map[string]any{"a": 1}).(*reactive.Wrapper)
	e := reactive.NewEffect(func() any { w.Get("a"); return nil })
	defer e.Stop()
	w.Set("a", 2)

	if s.ClientCount() != 0 {
		t.Errorf("client count = %d, want 0", s.ClientCount())
	}
}
