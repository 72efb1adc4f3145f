package conn

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"hexcolony/internal/domain/hex"
	"hexcolony/internal/domain/terrain"
	"hexcolony/internal/domain/territory"
	"hexcolony/internal/protocol"

	"github.com/gorilla/websocket"
)

func frameFor(t *testing.T, q, r int) []byte {
	t.Helper()
	tile := territory.NewTile(hex.Axial(q, r), terrain.Sample{Type: terrain.Normal, Density: 0.3}, time.Unix(1700000000, 0))
	tile.ControllerUID = "plr_x"
	b, err := protocol.EncodeMessage(protocol.MessageFromEvent(territory.UpdatedEvent(tile, "plr_x", "plr_x", time.Unix(1700000000, 0))))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return b
}

// flakyServer drops the first connection after one valid and one bogus
// frame, then keeps the second connection open.
func flakyServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var conns atomic.Int32
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	first, second := frameFor(t, 1, -1), frameFor(t, 2, -1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(protocol.HeaderPlayerID) != "plr_me" {
			http.Error(w, "unauthenticated", http.StatusUnauthorized)
			return
		}
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		switch conns.Add(1) {
		case 1:
			_ = c.WriteMessage(websocket.TextMessage, first)
			_ = c.WriteMessage(websocket.TextMessage, []byte(`{"kind":"TILE_EXPLODED"}`))
		default:
			_ = c.WriteMessage(websocket.TextMessage, second)
			for {
				if _, _, err := c.ReadMessage(); err != nil {
					return
				}
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &conns
}

func next(t *testing.T, events <-chan Event) Event {
	t.Helper()
	select {
	case e := <-events:
		return e
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for a channel event")
	}
	return Event{}
}

func TestManager_ReconnectsWithNewEpoch(t *testing.T) {
	srv, _ := flakyServer(t)
	header := http.Header{}
	header.Set(protocol.HeaderPlayerID, "plr_me")
	m := NewManager(Options{
		URL:        "ws" + strings.TrimPrefix(srv.URL, "http"),
		Header:     header,
		MinBackoff: 10 * time.Millisecond,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	events := make(chan Event, 16)
	m.Subscribe(func(e Event) { events <- e })
	dropped := m.Subscribe(func(Event) { t.Errorf("unsubscribed listener was called") })
	m.Unsubscribe(dropped)

	done := make(chan error, 1)
	go func() { done <- m.Run(context.Background()) }()

	want := []struct {
		kind  EventKind
		epoch uint64
	}{
		{EventConnected, 1},
		{EventMessage, 1},
		{EventDisconnected, 1},
		{EventConnected, 2},
		{EventMessage, 2},
	}
	var msgs []protocol.Message
	for _, w := range want {
		e := next(t, events)
		if e.Kind != w.kind || e.Epoch != w.epoch {
			t.Fatalf("expected %s@%d, got %s@%d", w.kind, w.epoch, e.Kind, e.Epoch)
		}
		if e.Kind == EventMessage {
			msgs = append(msgs, e.Message)
		}
	}
	if msgs[0].Tile.ID != hex.Encode(hex.Axial(1, -1)) || msgs[1].Tile.ID != hex.Encode(hex.Axial(2, -1)) {
		t.Fatalf("unexpected messages: %+v", msgs)
	}
	if m.IsCurrent(1) || !m.IsCurrent(2) {
		t.Fatalf("epoch 2 should be the only current one, have %d", m.Epoch())
	}

	if err := m.Run(context.Background()); err != ErrAlreadyRunning {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}

	m.Close()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("Close did not stop Run")
	}
	if e := next(t, events); e.Kind != EventDisconnected || e.Epoch != 2 {
		t.Fatalf("expected disconnect of epoch 2, got %s@%d", e.Kind, e.Epoch)
	}
}

func TestManager_RetriesFailedDials(t *testing.T) {
	srv, conns := flakyServer(t)
	m := NewManager(Options{
		URL:        "ws" + strings.TrimPrefix(srv.URL, "http"),
		MinBackoff: 5 * time.Millisecond,
		MaxBackoff: 20 * time.Millisecond,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	if err := m.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	if m.Epoch() != 0 || conns.Load() != 0 {
		t.Fatalf("unauthenticated dials must never count as connections")
	}
}
