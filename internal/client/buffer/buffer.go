// Package buffer coalesces incoming tile updates by id over a short window
// so bursts reach the reconciler as one batch, newest record per tile.
package buffer

import (
	"sync"
	"time"

	"hexcolony/internal/domain/hex"
	"hexcolony/internal/domain/territory"
)

const DefaultWindow = 100 * time.Millisecond

// Timer is the part of *time.Timer the buffer needs.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules fn after d. time.AfterFunc is the default.
type AfterFunc func(d time.Duration, fn func()) Timer

func realAfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

type Options struct {
	Window    time.Duration
	AfterFunc AfterFunc
}

// Buffer holds at most one record per tile id. The first Add into an empty
// buffer schedules a flush; later adds in the same window overwrite by id
// and keep the id's first-arrival position.
type Buffer struct {
	mu        sync.Mutex
	pending   map[hex.TileID]territory.TileRecord
	order     []hex.TileID
	timer     Timer
	closed    bool
	window    time.Duration
	afterFunc AfterFunc
	flush     func([]territory.TileRecord)
}

func New(flush func([]territory.TileRecord), opts Options) *Buffer {
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.AfterFunc == nil {
		opts.AfterFunc = realAfterFunc
	}
	return &Buffer{
		pending:   map[hex.TileID]territory.TileRecord{},
		window:    opts.Window,
		afterFunc: opts.AfterFunc,
		flush:     flush,
	}
}

func (b *Buffer) Add(tile territory.TileRecord) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	if _, ok := b.pending[tile.ID]; !ok {
		b.order = append(b.order, tile.ID)
	}
	b.pending[tile.ID] = tile
	if b.timer == nil {
		b.timer = b.afterFunc(b.window, b.fire)
	}
}

func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.order)
}

// FlushNow delivers whatever is pending on the calling goroutine.
func (b *Buffer) FlushNow() {
	b.mu.Lock()
	if b.timer != nil {
		b.timer.Stop()
	}
	batch := b.drainLocked()
	b.mu.Unlock()
	b.deliver(batch)
}

// Close stops the timer and discards pending records.
func (b *Buffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	if b.timer != nil {
		b.timer.Stop()
	}
	b.drainLocked()
}

func (b *Buffer) fire() {
	b.mu.Lock()
	batch := b.drainLocked()
	b.mu.Unlock()
	b.deliver(batch)
}

func (b *Buffer) drainLocked() []territory.TileRecord {
	b.timer = nil
	if len(b.order) == 0 {
		return nil
	}
	batch := make([]territory.TileRecord, 0, len(b.order))
	for _, id := range b.order {
		batch = append(batch, b.pending[id])
	}
	b.pending = map[hex.TileID]territory.TileRecord{}
	b.order = nil
	return batch
}

func (b *Buffer) deliver(batch []territory.TileRecord) {
	if len(batch) == 0 || b.flush == nil {
		return
	}
	b.flush(batch)
}
