package main

import (
	"context"
	"fmt"
	"os"

	goAuthClient "github.com/MrEthical07/goAuthClient"
	"github.com/MrEthical07/goAuthClient/internal/config"
	"github.com/MrEthical07/goAuthClient/store"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// openStore opens the configured credential store. The returned cleanup
// releases backend connections and is never nil.
func openStore(ctx context.Context, cfg config.StoreConfig, logger log.FieldLogger) (goAuthClient.CredentialStore, func(), error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return store.NewMemoryStore(), func() {}, nil

	case config.BackendFile:
		s, err := store.NewFileStore(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return s.WithLogger(logger), func() {}, nil

	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("%w: redis %s: %w", store.ErrUnavailable, cfg.Redis.Addr, err)
		}
		return store.NewRedisStore(client, cfg.Redis.Prefix, cfg.Redis.TTL.Duration), func() { _ = client.Close() }, nil

	case config.BackendPostgres:
		pool, err := pgxpool.New(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: postgres: %w", store.ErrUnavailable, err)
		}
		s := store.NewPostgresStore(pool, cfg.Postgres.Table)
		if err := s.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return s, pool.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// openAuditSink returns a JSON-lines sink appending to path, or nil when
// path is empty.
func openAuditSink(path string) (goAuthClient.AuditSink, func(), error) {
	if path == "" {
		return nil, func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("open audit file: %w", err)
	}
	return goAuthClient.NewJSONWriterSink(f), func() { _ = f.Close() }, nil
}
