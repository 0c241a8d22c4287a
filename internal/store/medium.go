// Package store opens the configured persistence medium and its connections.
package store

import (
	"context"
	"fmt"

	"trueface/internal/config"
	"trueface/internal/kv"
)

// Medium is an opened key-value medium plus a health probe for /healthz.
type Medium struct {
	kv.Store
	Backend string
	Healthy func(ctx context.Context) bool
}

// OpenMedium opens the key-value medium selected by STORE_BACKEND.
func OpenMedium(ctx context.Context, cfg config.App) (*Medium, error) {
	always := func(context.Context) bool { return true }

	switch cfg.StoreBackend {
	case "memory":
		return &Medium{Store: kv.NewMemory(), Backend: "memory", Healthy: always}, nil

	case "", "file":
		f, err := kv.OpenFile(cfg.StoreFilePath)
		if err != nil {
			return nil, err
		}
		return &Medium{Store: f, Backend: "file", Healthy: always}, nil

	case "redis":
		client := NewRedis(cfg.RedisAddr)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis %s: %w", cfg.RedisAddr, err)
		}
		return &Medium{
			Store:   kv.NewRedis(client, cfg.StoreKeyPrefix),
			Backend: "redis",
			Healthy: func(ctx context.Context) bool { return RedisHealthy(ctx, client) },
		}, nil

	case "postgres":
		db, err := NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		s := kv.NewSQL(db, kv.Postgres)
		if err := s.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		return &Medium{
			Store:   s,
			Backend: "postgres",
			Healthy: func(ctx context.Context) bool { return db.PingContext(ctx) == nil },
		}, nil

	case "sqlite":
		db, err := NewSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		s := kv.NewSQL(db, kv.SQLite)
		if err := s.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate sqlite: %w", err)
		}
		return &Medium{
			Store:   s,
			Backend: "sqlite",
			Healthy: func(ctx context.Context) bool { return db.PingContext(ctx) == nil },
		}, nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}
