package buffer

import (
	"sync"
	"testing"
	"time"

	"hexcolony/internal/domain/hex"
	"hexcolony/internal/domain/terrain"
	"hexcolony/internal/domain/territory"
)

type manualTimer struct {
	stopped bool
}

func (t *manualTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

type manualClock struct {
	scheduled []func()
	windows   []time.Duration
	timers    []*manualTimer
}

func (c *manualClock) AfterFunc(d time.Duration, fn func()) Timer {
	c.scheduled = append(c.scheduled, fn)
	c.windows = append(c.windows, d)
	t := &manualTimer{}
	c.timers = append(c.timers, t)
	return t
}

func (c *manualClock) fireLast() {
	c.scheduled[len(c.scheduled)-1]()
}

type sink struct {
	mu      sync.Mutex
	batches [][]territory.TileRecord
}

func (s *sink) flush(batch []territory.TileRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, batch)
}

func tileAt(c hex.Coordinate, controller string, density float64) territory.TileRecord {
	t := territory.NewTile(c, terrain.Sample{Type: terrain.Normal, Density: density}, time.Unix(1700000000, 0))
	t.ControllerUID = controller
	return t
}

func TestBuffer_CoalescesBurstToLastRecord(t *testing.T) {
	clock := &manualClock{}
	out := &sink{}
	b := New(out.flush, Options{AfterFunc: clock.AfterFunc})

	c := hex.Coordinate{Q: 2, R: -1, S: -1}
	for i := 1; i <= 5; i++ {
		b.Add(tileAt(c, "plr_"+string(rune('a'+i)), float64(i)/10))
	}
	if len(clock.scheduled) != 1 {
		t.Fatalf("expected one scheduled flush, got %d", len(clock.scheduled))
	}
	if clock.windows[0] != DefaultWindow {
		t.Fatalf("expected default window, got %v", clock.windows[0])
	}
	clock.fireLast()

	if len(out.batches) != 1 || len(out.batches[0]) != 1 {
		t.Fatalf("expected one batch with one record, got %+v", out.batches)
	}
	got := out.batches[0][0]
	if got.ID != "2#-1#-1" || got.ControllerUID != "plr_f" || got.ResourceDensity != 0.5 {
		t.Fatalf("expected the last update to win, got %+v", got)
	}
	if b.Len() != 0 {
		t.Fatalf("buffer should be empty after flush")
	}
}

func TestBuffer_KeepsFirstArrivalOrder(t *testing.T) {
	clock := &manualClock{}
	out := &sink{}
	b := New(out.flush, Options{AfterFunc: clock.AfterFunc})

	a, c := hex.Axial(0, 1), hex.Axial(3, -2)
	b.Add(tileAt(a, "x", 0.1))
	b.Add(tileAt(c, "x", 0.1))
	b.Add(tileAt(a, "y", 0.2))
	clock.fireLast()

	batch := out.batches[0]
	if len(batch) != 2 || batch[0].ID != hex.Encode(a) || batch[1].ID != hex.Encode(c) {
		t.Fatalf("unexpected order: %+v", batch)
	}
	if batch[0].ControllerUID != "y" {
		t.Fatalf("expected the newer record for %s", batch[0].ID)
	}
}

func TestBuffer_SchedulesAgainAfterFlush(t *testing.T) {
	clock := &manualClock{}
	out := &sink{}
	b := New(out.flush, Options{AfterFunc: clock.AfterFunc})

	b.Add(tileAt(hex.Axial(0, 0), "x", 0.1))
	clock.fireLast()
	b.Add(tileAt(hex.Axial(1, 0), "x", 0.1))
	if len(clock.scheduled) != 2 {
		t.Fatalf("expected a second flush to be scheduled, got %d", len(clock.scheduled))
	}
	clock.fireLast()
	if len(out.batches) != 2 {
		t.Fatalf("expected two batches, got %d", len(out.batches))
	}
}

func TestBuffer_FlushNowAndClose(t *testing.T) {
	clock := &manualClock{}
	out := &sink{}
	b := New(out.flush, Options{AfterFunc: clock.AfterFunc})

	b.FlushNow()
	if len(out.batches) != 0 {
		t.Fatalf("empty flush must not deliver")
	}

	b.Add(tileAt(hex.Axial(0, 0), "x", 0.1))
	b.FlushNow()
	if len(out.batches) != 1 || !clock.timers[0].stopped {
		t.Fatalf("FlushNow should deliver and stop the timer")
	}

	b.Add(tileAt(hex.Axial(1, 0), "x", 0.1))
	b.Close()
	b.Add(tileAt(hex.Axial(2, 0), "x", 0.1))
	b.FlushNow()
	if len(out.batches) != 1 {
		t.Fatalf("closed buffer must not deliver, got %d batches", len(out.batches))
	}
}

func TestBuffer_RealTimer(t *testing.T) {
	got := make(chan []territory.TileRecord, 1)
	b := New(func(batch []territory.TileRecord) { got <- batch }, Options{Window: 10 * time.Millisecond})
	defer b.Close()

	b.Add(tileAt(hex.Axial(0, 0), "x", 0.1))
	select {
	case batch := <-got:
		if len(batch) != 1 {
			t.Fatalf("unexpected batch %+v", batch)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timer never flushed")
	}
}
