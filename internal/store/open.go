package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	BackendBadger   = "badger"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

type Options struct {
	Backend     string
	BadgerPath  string
	DatabaseURL string
	RedisURL    string
	RedisKeyTTL time.Duration
	Logger      *zap.Logger
}

// Open builds the configured backend and verifies connectivity.
func Open(ctx context.Context, opts Options) (Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	backend := strings.ToLower(strings.TrimSpace(opts.Backend))
	switch backend {
	case "", BackendBadger:
		s, err := OpenBadger(opts.BadgerPath)
		if err != nil {
			return nil, fmt.Errorf("open badger: %w", err)
		}
		logger.Info("store_open", zap.String("backend", BackendBadger), zap.String("path", opts.BadgerPath))
		return s, nil
	case BackendPostgres:
		s, err := NewPostgres(opts.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := s.EnsureSchema(ctx); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		logger.Info("store_open", zap.String("backend", BackendPostgres))
		return s, nil
	case BackendRedis:
		if strings.TrimSpace(opts.RedisURL) == "" {
			return nil, fmt.Errorf("redis: %w", ErrMissingURL)
		}
		ro, err := redis.ParseURL(opts.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		rdb := redis.NewClient(ro)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		logger.Info("store_open", zap.String("backend", BackendRedis), zap.Duration("ttl", opts.RedisKeyTTL))
		return NewRedis(rdb, opts.RedisKeyTTL), nil
	case BackendMemory:
		logger.Warn("store_open", zap.String("backend", BackendMemory), zap.String("note", "state is lost on restart"))
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}
}
