// Package session wires the client runtime together. One goroutine owns
// the reconciler; channel frames, buffer flushes, fetch results and catch-up
// pages all reach it as closures on a single inbox.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"hexcolony/internal/client/buffer"
	"hexcolony/internal/client/conn"
	"hexcolony/internal/client/reconcile"
	"hexcolony/internal/domain/hex"
	"hexcolony/internal/domain/territory"
	"hexcolony/internal/protocol"
)

// API is the subset of the HTTP client the session needs.
type API interface {
	MyView(ctx context.Context, distance int) (protocol.ViewResponse, error)
	BatchGet(ctx context.Context, ids []hex.TileID) ([]territory.TileRecord, error)
	EventsSince(ctx context.Context, since int64, limit int) (protocol.EventsResponse, error)
	ColonyByOwner(ctx context.Context, ownerUID string) (protocol.ColonyCard, error)
}

// Channel is the connection manager seen from the session.
type Channel interface {
	Subscribe(l conn.Listener) uint64
	Unsubscribe(id uint64)
	IsCurrent(epoch uint64) bool
}

// Cache persists the cursor and last known tiles. It is optional.
type Cache interface {
	Cursor(ctx context.Context, viewer string) (int64, error)
	AdvanceCursor(ctx context.Context, viewer string, ts int64) error
	LoadTiles(ctx context.Context, viewer string) ([]territory.TileRecord, error)
	ReplaceTiles(ctx context.Context, viewer string, tiles []territory.TileRecord) error
}

type Options struct {
	LocalID      string
	ViewDistance int
	BufferWindow time.Duration
	AfterFunc    buffer.AfterFunc
	CatchUpLimit int
	// RetryBackoff is the first wait after a failed view or catch-up fetch.
	// It doubles up to MaxRetryBackoff.
	RetryBackoff    time.Duration
	MaxRetryBackoff time.Duration
	Rules           []reconcile.Rule
	Logger       *slog.Logger
}

type Stats struct {
	CatchUpsApplied   int64
	CatchUpsDiscarded int64
	FetchRetries      int64
	FramesBuffered    int64
}

var ErrAlreadyRunning = errors.New("session already running")

type Session struct {
	api   API
	ch    Channel
	cache Cache
	rec   *reconcile.Reconciler
	buf   *buffer.Buffer
	log   *slog.Logger

	localID    string
	distance   int
	limit      int
	backoff    time.Duration
	maxBackoff time.Duration

	inbox   chan func()
	done    chan struct{}
	running atomic.Bool
	runCtx  context.Context

	// Owned by the loop goroutine.
	seeded bool
	early  []territory.TileRecord
	cursor int64
	// epoch is the newest connection; caughtUp is the newest connection
	// whose catch-up has been applied. Live frames move the cursor only
	// when the two match, so a failed catch-up never gets skipped over.
	epoch    uint64
	caughtUp uint64
	// newest is the highest timestamp among frames in the buffer.
	newest        int64
	colorsPending map[string]bool

	snap      atomic.Pointer[reconcile.Snapshot]
	applied   atomic.Int64
	discarded atomic.Int64
	retries   atomic.Int64
	buffered  atomic.Int64
}

func New(api API, ch Channel, cache Cache, opts Options) (*Session, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rec, err := reconcile.New(opts.LocalID, reconcile.Options{
		ViewDistance: opts.ViewDistance,
		Rules:        opts.Rules,
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}
	if opts.CatchUpLimit <= 0 {
		opts.CatchUpLimit = 500
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 250 * time.Millisecond
	}
	if opts.MaxRetryBackoff < opts.RetryBackoff {
		opts.MaxRetryBackoff = max(10*time.Second, opts.RetryBackoff)
	}
	afterFunc := opts.AfterFunc
	if afterFunc == nil {
		afterFunc = func(d time.Duration, fn func()) buffer.Timer { return time.AfterFunc(d, fn) }
	}
	s := &Session{
		api:           api,
		ch:            ch,
		cache:         cache,
		rec:           rec,
		log:           logger.With("player", opts.LocalID),
		localID:       opts.LocalID,
		distance:      opts.ViewDistance,
		limit:         opts.CatchUpLimit,
		backoff:       opts.RetryBackoff,
		maxBackoff:    opts.MaxRetryBackoff,
		inbox:         make(chan func(), 256),
		done:          make(chan struct{}),
		colorsPending: map[string]bool{},
	}
	// Flushes run on the loop goroutine, so a batch always covers exactly
	// the frames added before it.
	s.buf = buffer.New(s.applyLive, buffer.Options{
		Window: opts.BufferWindow,
		AfterFunc: func(d time.Duration, fire func()) buffer.Timer {
			return afterFunc(d, func() { s.post(fire) })
		},
	})
	s.publish()
	return s, nil
}

// Snapshot is the view as of the last processed input. Safe from any
// goroutine.
func (s *Session) Snapshot() reconcile.Snapshot {
	return *s.snap.Load()
}

func (s *Session) Stats() Stats {
	return Stats{
		CatchUpsApplied:   s.applied.Load(),
		CatchUpsDiscarded: s.discarded.Load(),
		FetchRetries:      s.retries.Load(),
		FramesBuffered:    s.buffered.Load(),
	}
}

func (s *Session) SetViewDistance(k int) {
	s.post(func() {
		s.distance = k
		s.handle(s.rec.SetViewDistance(k))
	})
}

func (s *Session) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	s.runCtx = ctx
	defer close(s.done)
	defer s.buf.Close()

	s.restore(ctx)
	id := s.ch.Subscribe(s.onChannel)
	defer s.ch.Unsubscribe(id)

	for {
		select {
		case <-ctx.Done():
			s.drain()
			s.buf.FlushNow()
			s.persist()
			return nil
		case fn := <-s.inbox:
			fn()
			s.publish()
		}
	}
}

// drain runs whatever is already queued.
func (s *Session) drain() {
	for {
		select {
		case fn := <-s.inbox:
			fn()
		default:
			return
		}
	}
}

func (s *Session) post(fn func()) {
	select {
	case s.inbox <- fn:
	case <-s.done:
	}
}

func (s *Session) publish() {
	snap := s.rec.Snapshot()
	s.snap.Store(&snap)
}

func (s *Session) onChannel(e conn.Event) {
	switch e.Kind {
	case conn.EventConnected:
		s.post(func() { s.onConnected(e.Epoch) })
	case conn.EventMessage:
		s.buffered.Add(1)
		s.post(func() {
			s.buf.Add(e.Message.Tile)
			s.newest = max(s.newest, e.Message.Timestamp)
		})
	case conn.EventDisconnected:
		s.log.Info("channel disconnected", "epoch", e.Epoch, "err", e.Err)
	}
}

func (s *Session) onConnected(epoch uint64) {
	s.epoch = max(s.epoch, epoch)
	if s.seeded {
		since := s.cursor
		go s.catchUp(epoch, since)
		return
	}
	distance := s.distance
	go s.seed(epoch, distance)
}

// seed loads the authoritative view once per session, then catches up.
func (s *Session) seed(epoch uint64, distance int) {
	ctx := s.runCtx
	var (
		view  protocol.ViewResponse
		owned []territory.TileRecord
	)
	ok := s.retry(epoch, "view", func() error {
		var err error
		if view, err = s.api.MyView(ctx, distance); err != nil {
			return err
		}
		owned, err = s.api.BatchGet(ctx, view.Owned)
		return err
	})
	if !ok {
		return
	}
	s.post(func() {
		if !s.ch.IsCurrent(epoch) {
			s.discarded.Add(1)
			s.log.Info("stale view discarded", "epoch", epoch)
			return
		}
		seedFx := s.rec.Seed(owned)
		fx := s.rec.Hydrate(view.Frontier)
		fx.Hydrate = append(fx.Hydrate, missing(seedFx.Hydrate, view.Frontier)...)
		// Frames that arrived while the view was loading were wiped by Seed.
		early := s.rec.ApplyBatch(s.early)
		fx.Hydrate = append(fx.Hydrate, early.Hydrate...)
		fx.ResolveColors = append(fx.ResolveColors, early.ResolveColors...)
		s.early = nil
		s.handle(fx)
		s.seeded = true

		since := s.cursor
		if since == 0 {
			since = newestUpdate(owned, view.Frontier)
		}
		go s.catchUp(epoch, since)
	})
}

func (s *Session) catchUp(epoch uint64, since int64) {
	ctx := s.runCtx
	var msgs []protocol.Message
	cursor := since
	// Pages already fetched are kept across retries.
	ok := s.retry(epoch, "catch-up", func() error {
		for {
			page, err := s.api.EventsSince(ctx, cursor, s.limit)
			if err != nil {
				return err
			}
			msgs = append(msgs, page.Events...)
			if page.Cursor > cursor {
				cursor = page.Cursor
			}
			if !page.More || len(page.Events) == 0 {
				return nil
			}
		}
	})
	if !ok {
		return
	}

	s.post(func() {
		if !s.ch.IsCurrent(epoch) {
			s.discarded.Add(1)
			s.log.Info("stale catch-up discarded", "epoch", epoch, "events", len(msgs))
			return
		}
		tiles := make([]territory.TileRecord, 0, len(msgs))
		for _, m := range msgs {
			tiles = append(tiles, m.Tile)
		}
		s.handle(s.rec.ApplyBatch(tiles))
		s.advance(cursor)
		s.caughtUp = max(s.caughtUp, epoch)
		s.applied.Add(1)
	})
}

// retry runs fn until it succeeds, the epoch is superseded or the session
// stops. It reports whether fn succeeded.
func (s *Session) retry(epoch uint64, what string, fn func() error) bool {
	wait := s.backoff
	for {
		err := fn()
		if err == nil {
			return true
		}
		if !s.ch.IsCurrent(epoch) {
			s.log.Info(what+" abandoned for newer connection", "epoch", epoch, "err", err)
			return false
		}
		s.retries.Add(1)
		s.log.Warn(what+" failed; retrying", "epoch", epoch, "wait", wait, "err", err)
		select {
		case <-s.runCtx.Done():
			return false
		case <-time.After(wait):
		}
		wait = min(wait*2, s.maxBackoff)
	}
}

// applyLive runs on the loop goroutine with everything buffered so far.
func (s *Session) applyLive(batch []territory.TileRecord) {
	newest := s.newest
	s.newest = 0
	if !s.seeded {
		s.early = append(s.early, batch...)
	}
	s.handle(s.rec.ApplyBatch(batch))
	if s.seeded && s.epoch != 0 && s.caughtUp == s.epoch {
		s.advance(newest)
	}
}

// handle starts the fetches a reconcile step asked for. Results come back
// through the inbox.
func (s *Session) handle(fx reconcile.Effects) {
	ctx := s.runCtx
	if len(fx.Hydrate) > 0 {
		ids := fx.Hydrate
		go func() {
			tiles, err := s.api.BatchGet(ctx, ids)
			if err != nil {
				s.log.Warn("hydration failed", "tiles", len(ids), "err", err)
				return
			}
			s.post(func() { s.handle(s.rec.Hydrate(tiles)) })
		}()
	}
	for _, uid := range fx.ResolveColors {
		if s.colorsPending[uid] {
			continue
		}
		s.colorsPending[uid] = true
		go func(uid string) {
			card, err := s.api.ColonyByOwner(ctx, uid)
			s.post(func() {
				delete(s.colorsPending, uid)
				if err != nil {
					s.log.Warn("color lookup failed", "controller", uid, "err", err)
					return
				}
				s.rec.SetColor(uid, card.Color)
			})
		}(uid)
	}
}

func (s *Session) advance(ts int64) {
	if ts <= s.cursor {
		return
	}
	s.cursor = ts
	if s.cache == nil {
		return
	}
	// Also called while shutting down, after the run context is cancelled.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(s.runCtx), 5*time.Second)
	defer cancel()
	if err := s.cache.AdvanceCursor(ctx, s.localID, ts); err != nil {
		s.log.Warn("cursor save failed", "err", err)
	}
}

// restore shows cached owned tiles before the network answers.
func (s *Session) restore(ctx context.Context) {
	if s.cache == nil {
		return
	}
	cursor, err := s.cache.Cursor(ctx, s.localID)
	if err != nil {
		s.log.Warn("cursor load failed", "err", err)
	}
	s.cursor = cursor

	tiles, err := s.cache.LoadTiles(ctx, s.localID)
	if err != nil {
		s.log.Warn("tile cache load failed", "err", err)
		return
	}
	var owned []territory.TileRecord
	for _, t := range tiles {
		if t.ControllerUID == s.localID {
			owned = append(owned, t)
		}
	}
	s.rec.Seed(owned)
	s.rec.Hydrate(tiles)
	s.publish()
}

func (s *Session) persist() {
	if s.cache == nil {
		return
	}
	snap := s.rec.Snapshot()
	tiles := make([]territory.TileRecord, 0, len(snap.Owned)+len(snap.Viewable))
	for _, id := range snap.OwnedIDs() {
		tiles = append(tiles, snap.Owned[id])
	}
	for _, id := range snap.ViewableIDs() {
		tiles = append(tiles, snap.Viewable[id])
	}
	// The run context is already cancelled here.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.cache.ReplaceTiles(ctx, s.localID, tiles); err != nil {
		s.log.Warn("tile cache save failed", "err", err)
	}
}

func missing(ids []hex.TileID, have []territory.TileRecord) []hex.TileID {
	known := make(map[hex.TileID]struct{}, len(have))
	for _, t := range have {
		known[t.ID] = struct{}{}
	}
	var out []hex.TileID
	for _, id := range ids {
		if _, ok := known[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

// newestUpdate picks a catch-up start for a fresh session. Anything the view
// missed happened after the newest record it returned, so replaying from one
// millisecond earlier only repeats idempotent updates.
func newestUpdate(sets ...[]territory.TileRecord) int64 {
	var newest int64
	for _, set := range sets {
		for _, t := range set {
			if t.UpdatedAt.IsZero() {
				continue
			}
			newest = max(newest, t.UpdatedAt.UnixMilli())
		}
	}
	if newest > 0 {
		newest--
	}
	return newest
}
