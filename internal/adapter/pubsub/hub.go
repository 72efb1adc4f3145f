// Package pubsub fans committed capture events out to live channel
// connections.
package pubsub

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"hexcolony/internal/domain/territory"
	"hexcolony/internal/protocol"
)

const defaultQueueSize = 64

var ErrHubClosed = errors.New("hub closed")

// DeliveryMetrics is satisfied by the in-memory recorder.
type DeliveryMetrics interface {
	RecordDelivered(n int)
	RecordDropped()
	RecordConnection(delta int)
}

// Subscription is one live connection's mailbox. C is closed when the
// subscription ends, either by Unsubscribe, by Hub.Close, or because the
// consumer fell behind and was evicted.
type Subscription struct {
	id      uint64
	uid     string
	out     chan []byte
	once    sync.Once
	evicted atomic.Bool
}

func (s *Subscription) ID() uint64 { return s.id }
func (s *Subscription) UID() string { return s.uid }
func (s *Subscription) C() <-chan []byte { return s.out }
func (s *Subscription) Evicted() bool { return s.evicted.Load() }
func (s *Subscription) close() { s.once.Do(func() { close(s.out) }) }

type HubOptions struct {
	QueueSize int
	Metrics   DeliveryMetrics
	Logger    *slog.Logger
}

// Hub is the process-wide connection manager. Broadcast events reach every
// subscription; direct events reach only the recipient's subscriptions.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	byUID  map[string]map[uint64]*Subscription
	closed bool

	nextID  atomic.Uint64
	queue   int
	metrics DeliveryMetrics
	logger  *slog.Logger
}

func NewHub(opts HubOptions) *Hub {
	queue := opts.QueueSize
	if queue <= 0 {
		queue = defaultQueueSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subs:    map[uint64]*Subscription{},
		byUID:   map[string]map[uint64]*Subscription{},
		queue:   queue,
		metrics: opts.Metrics,
		logger:  logger,
	}
}

func (h *Hub) Subscribe(uid string) (*Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrHubClosed
	}
	sub := &Subscription{
		id:  h.nextID.Add(1),
		uid: uid,
		out: make(chan []byte, h.queue),
	}
	h.subs[sub.id] = sub
	if h.byUID[uid] == nil {
		h.byUID[uid] = map[uint64]*Subscription{}
	}
	h.byUID[uid][sub.id] = sub
	if h.metrics != nil {
		h.metrics.RecordConnection(1)
	}
	h.logger.Debug("channel subscribed", "uid", uid, "sub", sub.id)
	return sub, nil
}

// Unsubscribe is idempotent.
func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(sub)
}

func (h *Hub) removeLocked(sub *Subscription) {
	if _, ok := h.subs[sub.id]; !ok {
		return
	}
	delete(h.subs, sub.id)
	if peers := h.byUID[sub.uid]; peers != nil {
		delete(peers, sub.id)
		if len(peers) == 0 {
			delete(h.byUID, sub.uid)
		}
	}
	sub.close()
	if h.metrics != nil {
		h.metrics.RecordConnection(-1)
	}
}

// Publish implements ports.EventPublisher. Sends never block: a
// subscription whose queue is full is evicted and must catch up after
// reconnecting.
func (h *Hub) Publish(_ context.Context, events []territory.CaptureEvent) error {
	var errs []error
	for _, evt := range events {
		frame, err := protocol.EncodeMessage(protocol.MessageFromEvent(evt))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := h.deliver(evt, frame); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h *Hub) deliver(evt territory.CaptureEvent, frame []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrHubClosed
	}

	var targets []*Subscription
	switch evt.Scope {
	case territory.ScopeDirect:
		for _, sub := range h.byUID[evt.RecipientID] {
			targets = append(targets, sub)
		}
	default:
		targets = make([]*Subscription, 0, len(h.subs))
		for _, sub := range h.subs {
			targets = append(targets, sub)
		}
	}

	delivered := 0
	for _, sub := range targets {
		select {
		case sub.out <- frame:
			delivered++
		default:
			sub.evicted.Store(true)
			h.removeLocked(sub)
			if h.metrics != nil {
				h.metrics.RecordDropped()
			}
			h.logger.Warn("evicting slow channel subscriber", "uid", sub.uid, "sub", sub.id)
		}
	}
	if h.metrics != nil && delivered > 0 {
		h.metrics.RecordDelivered(delivered)
	}
	return nil
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close ends every subscription and rejects further subscribes.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for _, sub := range h.subs {
		h.removeLocked(sub)
	}
}
