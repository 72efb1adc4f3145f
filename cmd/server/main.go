package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "hexcolony/internal/adapter/http"
	metricsinmem "hexcolony/internal/adapter/metrics/inmemory"
	"hexcolony/internal/adapter/pubsub"
	gormrepo "hexcolony/internal/adapter/repo/gorm"
	"hexcolony/internal/adapter/repo/memory"
	"hexcolony/internal/app/auth"
	"hexcolony/internal/app/capture"
	"hexcolony/internal/app/colony"
	"hexcolony/internal/app/events"
	"hexcolony/internal/app/ports"
	"hexcolony/internal/app/tiles"
	"hexcolony/internal/config"
	"hexcolony/internal/domain/terrain"
	"hexcolony/internal/transport/ws"

	"github.com/cloudwego/hertz/pkg/app/server"
)

func main() {
	cfg, err := config.FromEnv(os.Getenv)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := cfg.Log.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := build(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("build: %v", err)
	}
	defer svc.hub.Close()

	wsSrv := &http.Server{Addr: cfg.WSAddr, Handler: svc.channel, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		logger.Info("channel listening", "addr", cfg.WSAddr)
		if err := wsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("channel server stopped", "err", err)
			stop()
		}
	}()

	h := server.Default(server.WithHostPorts(cfg.HTTPAddr))
	svc.handler.RegisterRoutes(h)
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = wsSrv.Shutdown(shutdown)
		_ = h.Shutdown(shutdown)
	}()

	logger.Info("hexcolony server listening",
		"addr", cfg.HTTPAddr,
		"driver", cfg.Store.Driver,
		"namespace", cfg.Store.Namespace,
		"seed", cfg.World.Seed,
		"enforce_adjacency", cfg.Capture.EnforceAdjacency,
	)
	h.Spin()
}

type repos struct {
	tx       ports.TxManager
	tiles    ports.TileRepository
	colonies ports.ColonyRepository
	events   ports.EventRepository
	creds    ports.PlayerCredentialRepository
}

type service struct {
	handler httpadapter.Handler
	hub     *pubsub.Hub
	channel http.Handler
	kpi     *metricsinmem.Recorder
}

func build(ctx context.Context, cfg config.Config, logger *slog.Logger) (*service, error) {
	r, err := buildRepos(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	gen := terrain.NewGenerator(cfg.World.Seed, cfg.World.Terrain)
	kpi := metricsinmem.NewRecorder()
	hub := pubsub.NewHub(pubsub.HubOptions{
		QueueSize: cfg.Channel.QueueSize,
		Metrics:   kpi,
		Logger:    logger.With("component", "hub"),
	})
	verify := auth.VerifyUseCase{Credentials: r.creds}

	h := httpadapter.Handler{
		RegisterUC: auth.RegisterUseCase{Credentials: r.creds, TxManager: r.tx, Now: time.Now},
		AuthUC:     verify,
		FoundUC: colony.FoundUseCase{
			TxManager:        r.tx,
			Tiles:            r.tiles,
			Colonies:         r.colonies,
			Events:           r.events,
			Publisher:        hub,
			Terrain:          gen,
			Logger:           logger.With("component", "colony"),
			VisibilityRadius: cfg.Colony.VisibilityRadius,
			Now:              time.Now,
		},
		StatusUC: colony.StatusUseCase{Colonies: r.colonies},
		CardUC:   colony.CardUseCase{Colonies: r.colonies},
		ViewUC:   colony.ViewUseCase{Colonies: r.colonies, Tiles: r.tiles},
		CaptureUC: capture.UseCase{
			TxManager:        r.tx,
			Tiles:            r.tiles,
			Colonies:         r.colonies,
			Events:           r.events,
			Publisher:        hub,
			Terrain:          gen,
			Metrics:          kpi,
			Logger:           logger.With("component", "capture"),
			EnforceAdjacency: cfg.Capture.EnforceAdjacency,
			MaxAttempts:      cfg.Capture.MaxAttempts,
			Now:              time.Now,
		},
		TilesUC:  tiles.UseCase{Tiles: r.tiles},
		EventsUC: events.UseCase{Events: r.events},
		Limiter:  httpadapter.NewRateLimiter(cfg.RateLimit.PerSecond, cfg.RateLimit.Burst),
		KPI:      kpi,
		Logger:   logger.With("component", "http"),
	}

	mux := http.NewServeMux()
	mux.Handle("/ws", ws.NewServer(hub, verify, ws.Options{
		PingInterval: cfg.Channel.PingInterval,
		WriteTimeout: cfg.Channel.WriteTimeout,
		Logger:       logger.With("component", "ws"),
	}).Handler())

	return &service{handler: h, hub: hub, channel: mux, kpi: kpi}, nil
}

func buildRepos(ctx context.Context, cfg config.StoreConfig) (repos, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		store := memory.NewStore()
		return repos{
			tx:       memory.NewTxManager(store),
			tiles:    memory.NewTileRepo(store),
			colonies: memory.NewColonyRepo(store),
			events:   memory.NewEventRepo(store),
			creds:    memory.NewPlayerCredentialRepo(store),
		}, nil
	case config.DriverPostgres:
		db, err := gormrepo.OpenPostgres(cfg.DSN, cfg.Namespace)
		if err != nil {
			return repos{}, fmt.Errorf("open postgres: %w", err)
		}
		if err := gormrepo.ApplyMigrations(ctx, db, gormrepo.Migrations(), cfg.Namespace); err != nil {
			return repos{}, fmt.Errorf("apply migrations: %w", err)
		}
		return repos{
			tx:       gormrepo.NewTxManager(db),
			tiles:    gormrepo.NewTileRepo(db),
			colonies: gormrepo.NewColonyRepo(db),
			events:   gormrepo.NewEventRepo(db),
			creds:    gormrepo.NewPlayerCredentialRepo(db),
		}, nil
	default:
		return repos{}, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
