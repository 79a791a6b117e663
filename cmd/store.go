package cmd

import (
	"context"
	"fmt"

	"github.com/kozaktomas/emotion-check/internal/config"
	"github.com/kozaktomas/emotion-check/internal/database/postgres"
	"github.com/kozaktomas/emotion-check/internal/session"
)

// openStore picks the session store from the configuration: PostgreSQL when
// DATABASE_URL is set, Redis when REDIS_URL is set, the file store otherwise.
// The returned close function releases the connection.
func openStore(ctx context.Context, cfg *config.Config) (session.Store, func(), error) {
	switch {
	case cfg.Database.URL != "":
		fmt.Printf("Connecting to PostgreSQL database...\n")
		pool, err := postgres.Open(ctx, &cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
		fmt.Printf("Session persistence enabled (PostgreSQL)\n")
		return postgres.NewSessionRepository(pool), func() { pool.Close() }, nil

	case cfg.Storage.RedisURL != "":
		client, err := session.NewRedisClient(ctx, cfg.Storage.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		store := session.NewRedisStore(client,
			session.WithTTL(cfg.Storage.SessionTTL),
			session.WithPrefix(cfg.Storage.RedisPrefix),
		)
		fmt.Printf("Session persistence enabled (Redis, expiry %s)\n", cfg.Storage.SessionTTL)
		return store, func() { client.Close() }, nil

	default:
		store, err := session.NewFileStore(cfg.Storage.SessionDir)
		if err != nil {
			return nil, nil, err
		}
		fmt.Printf("Session persistence enabled (files in %s)\n", store.Root())
		return store, func() {}, nil
	}
}
