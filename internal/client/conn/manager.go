// Package conn owns the client's real-time channel connection. It dials,
// reconnects with backoff, and numbers each connection with an epoch so
// work started for an old connection can be recognised and discarded.
package conn

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"hexcolony/internal/protocol"

	"github.com/gorilla/websocket"
)

type EventKind int

const (
	EventConnected EventKind = iota + 1
	EventMessage
	EventDisconnected
)

func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventMessage:
		return "message"
	case EventDisconnected:
		return "disconnected"
	}
	return "unknown"
}

type Event struct {
	Kind    EventKind
	Epoch   uint64
	Message protocol.Message
	Err     error
}

// Listener is called on the manager's goroutine and must not block.
type Listener func(Event)

type Options struct {
	URL         string
	Header      http.Header
	Dialer      *websocket.Dialer
	MinBackoff  time.Duration
	MaxBackoff  time.Duration
	ReadTimeout time.Duration
	Logger      *slog.Logger
}

var ErrAlreadyRunning = errors.New("connection manager already running")

type Manager struct {
	opts Options
	log  *slog.Logger

	mu        sync.Mutex
	listeners map[uint64]Listener
	nextID    uint64
	running   bool
	cancel    context.CancelFunc

	epoch atomic.Uint64
}

func NewManager(opts Options) *Manager {
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	if opts.MinBackoff <= 0 {
		opts.MinBackoff = 250 * time.Millisecond
	}
	if opts.MaxBackoff < opts.MinBackoff {
		opts.MaxBackoff = 10 * time.Second
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 75 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		opts:      opts,
		log:       logger,
		listeners: map[uint64]Listener{},
	}
}

func (m *Manager) Subscribe(l Listener) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.listeners[m.nextID] = l
	return m.nextID
}

func (m *Manager) Unsubscribe(id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.listeners, id)
}

// Epoch is the number of the newest connection, zero before the first.
func (m *Manager) Epoch() uint64 { return m.epoch.Load() }

func (m *Manager) IsCurrent(epoch uint64) bool {
	return epoch != 0 && m.epoch.Load() == epoch
}

// Run connects and keeps reconnecting until ctx ends or Close is called.
func (m *Manager) Run(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	m.running = true
	m.cancel = cancel
	m.mu.Unlock()
	defer func() {
		cancel()
		m.mu.Lock()
		m.running = false
		m.cancel = nil
		m.mu.Unlock()
	}()

	backoff := m.opts.MinBackoff
	for ctx.Err() == nil {
		c, _, err := m.opts.Dialer.DialContext(ctx, m.opts.URL, m.opts.Header)
		if err != nil {
			m.log.Warn("channel dial failed", "url", m.opts.URL, "err", err, "retry_in", backoff)
			if !sleep(ctx, backoff) {
				break
			}
			backoff = min(backoff*2, m.opts.MaxBackoff)
			continue
		}
		backoff = m.opts.MinBackoff

		epoch := m.epoch.Add(1)
		m.log.Info("channel connected", "epoch", epoch)
		m.emit(Event{Kind: EventConnected, Epoch: epoch})

		err = m.readLoop(ctx, c, epoch)
		_ = c.Close()
		m.emit(Event{Kind: EventDisconnected, Epoch: epoch, Err: err})
		if ctx.Err() != nil {
			break
		}
		m.log.Warn("channel lost", "epoch", epoch, "err", err)
		if !sleep(ctx, backoff) {
			break
		}
	}
	return nil
}

// Close stops Run and drops the live connection.
func (m *Manager) Close() {
	m.mu.Lock()
	cancel := m.cancel
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (m *Manager) readLoop(ctx context.Context, c *websocket.Conn, epoch uint64) error {
	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer stop()

	extend := func() { _ = c.SetReadDeadline(time.Now().Add(m.opts.ReadTimeout)) }
	extend()
	c.SetPingHandler(func(data string) error {
		extend()
		return c.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})

	for {
		_, raw, err := c.ReadMessage()
		if err != nil {
			return err
		}
		extend()
		msg, err := protocol.DecodeMessage(raw)
		if err != nil {
			m.log.Warn("channel frame dropped", "epoch", epoch, "err", err)
			continue
		}
		m.emit(Event{Kind: EventMessage, Epoch: epoch, Message: msg})
	}
}

func (m *Manager) emit(e Event) {
	m.mu.Lock()
	ids := make([]uint64, 0, len(m.listeners))
	for id := range m.listeners {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	ls := make([]Listener, 0, len(ids))
	for _, id := range ids {
		ls = append(ls, m.listeners[id])
	}
	m.mu.Unlock()

	for _, l := range ls {
		l(e)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
