package roombuilder

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/park285/chess-room/internal/config"
	"github.com/park285/chess-room/internal/msgcat"
	"github.com/park285/chess-room/internal/room"
	"github.com/park285/chess-room/internal/session"
	"github.com/park285/chess-room/internal/store"
)

// Deps is the wired server graph.
type Deps struct {
	Store     store.Store
	Persister *room.Persister
	Registry  *room.Registry
	Hub       *session.Hub
	Server    *session.Server
}

func New(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (*Deps, error) {
	if cfg == nil {
		return nil, errors.New("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	st, err := store.Open(ctx, store.Options{
		Backend:     cfg.StoreBackend,
		BadgerPath:  cfg.BadgerPath,
		DatabaseURL: cfg.DatabaseURL,
		RedisURL:    cfg.RedisURL,
		RedisKeyTTL: cfg.RedisKeyTTL,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	catalog, err := msgcat.New(strings.TrimSpace(cfg.MessagesDir))
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("load messages: %w", err)
	}

	persister := room.NewPersister(st, cfg.PersistQueueSize, logger.Named("persist"))
	registry := room.NewRegistry(st,
		room.WithSink(persister),
		room.WithInitialSeconds(cfg.InitialClockSeconds),
		room.WithLogger(logger.Named("room")),
	)
	hub := session.NewHub(registry, catalog,
		session.WithAllowedRooms(append([]string(nil), cfg.AllowedRooms...)),
		session.WithHubLogger(logger.Named("hub")),
	)
	server := session.NewServer(cfg.ListenAddr, hub, cfg.AllowedOrigins, logger.Named("http"))

	logger.Info("deps_ready",
		zap.String("store", cfg.StoreBackend),
		zap.Float64("initial_seconds", cfg.InitialClockSeconds),
		zap.Duration("tick", cfg.TickInterval),
		zap.Strings("allowed_rooms", cfg.AllowedRooms),
	)
	return &Deps{Store: st, Persister: persister, Registry: registry, Hub: hub, Server: server}, nil
}

// Close drains pending writes, then closes the store. The HTTP server is
// shut down by the caller first.
func (d *Deps) Close(ctx context.Context) error {
	var errs []error
	if err := d.Persister.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("persister: %w", err))
	}
	if err := d.Store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store: %w", err))
	}
	return errors.Join(errs...)
}
