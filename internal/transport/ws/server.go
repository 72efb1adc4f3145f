// Package ws serves the real-time channel. Each authenticated connection
// is one hub subscription; frames flow server to client only.
package ws

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"hexcolony/internal/adapter/pubsub"
	"hexcolony/internal/app/auth"
	"hexcolony/internal/protocol"

	"github.com/gorilla/websocket"
)

// Verifier checks player credentials; auth.VerifyUseCase satisfies it.
type Verifier interface {
	Execute(ctx context.Context, req auth.VerifyRequest) error
}

type Options struct {
	PingInterval time.Duration
	WriteTimeout time.Duration
	Logger       *slog.Logger
}

type Server struct {
	hub    *pubsub.Hub
	verify Verifier
	ping   time.Duration
	write  time.Duration
	log    *slog.Logger

	upgrader websocket.Upgrader
}

const maxInboundFrame = 4 * 1024

func NewServer(hub *pubsub.Hub, verify Verifier, opts Options) *Server {
	if opts.PingInterval <= 0 {
		opts.PingInterval = 30 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Server{
		hub:    hub,
		verify: verify,
		ping:   opts.PingInterval,
		write:  opts.WriteTimeout,
		log:    opts.Logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		uid, ok := s.authenticate(r)
		if !ok {
			http.Error(rw, protocol.KindUnauthenticated, http.StatusUnauthorized)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sub, err := s.hub.Subscribe(uid)
		if err != nil {
			s.closeWith(conn, websocket.CloseGoingAway, "server shutting down")
			return
		}
		defer s.hub.Unsubscribe(sub)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		done := make(chan struct{})
		go func() {
			defer close(done)
			defer cancel()
			s.writeLoop(ctx, conn, sub)
		}()

		s.readLoop(ctx, conn)
		cancel()
		<-done
		s.log.Debug("channel closed", "uid", uid, "sub", sub.ID(), "evicted", sub.Evicted())
	}
}

// authenticate accepts the HTTP headers or, for browser clients that cannot
// set headers on a websocket, the player_id/player_key query parameters.
func (s *Server) authenticate(r *http.Request) (string, bool) {
	id := strings.TrimSpace(r.Header.Get(protocol.HeaderPlayerID))
	key := strings.TrimSpace(r.Header.Get(protocol.HeaderPlayerKey))
	if id == "" && key == "" {
		q := r.URL.Query()
		id = strings.TrimSpace(q.Get(protocol.QueryPlayerID))
		key = strings.TrimSpace(q.Get(protocol.QueryPlayerKey))
	}
	if id == "" || key == "" || s.verify == nil {
		return "", false
	}
	if err := s.verify.Execute(r.Context(), auth.VerifyRequest{PlayerID: id, PlayerKey: key}); err != nil {
		s.log.Debug("channel auth rejected", "player", id, "err", err)
		return "", false
	}
	return id, true
}

func (s *Server) writeLoop(ctx context.Context, conn *websocket.Conn, sub *pubsub.Subscription) {
	ticker := time.NewTicker(s.ping)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-sub.C():
			if !ok {
				if sub.Evicted() {
					s.closeWith(conn, websocket.CloseTryAgainLater, "slow consumer")
				} else {
					s.closeWith(conn, websocket.CloseGoingAway, "server shutting down")
				}
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(s.write))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.write)); err != nil {
				return
			}
		}
	}
}

// readLoop only services control frames; clients never send data frames.
func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn) {
	wait := 2 * s.ping
	conn.SetReadLimit(maxInboundFrame)
	_ = conn.SetReadDeadline(time.Now().Add(wait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wait))
	})
	for ctx.Err() == nil {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) closeWith(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
}
