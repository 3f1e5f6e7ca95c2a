package database

import (
	"context"
	"fmt"

	"github.com/kebairia/redis-backup/internal/config"
	"github.com/kebairia/redis-backup/internal/logger"
	"github.com/kebairia/redis-backup/internal/vault"
)

// OpenRedis builds a Redis store from cfg, pulling credentials from Vault when
// configured, and connects it. The caller owns the returned store and must
// Close it.
func OpenRedis(ctx context.Context, cfg config.Config, log logger.Logger) (*Redis, error) {
	opts := []RedisOption{WithRedisLogger(log)}

	if cfg.VaultEnabled() {
		client, err := vault.NewClient(ctx,
			vault.WithAddress(cfg.Vault.Address),
			vault.WithToken(cfg.Vault.Token),
			vault.WithAppRole(cfg.Vault.RoleID, cfg.Vault.ApproleName),
		)
		if err != nil {
			return nil, fmt.Errorf("vault client init: %w", err)
		}
		creds, err := client.GetRedisCredentials(ctx, cfg.Vault.SecretPath)
		if err != nil {
			return nil, fmt.Errorf("redis credentials: %w", err)
		}
		log.Debug("redis credentials loaded from vault", "path", cfg.Vault.SecretPath)
		opts = append(opts, WithRedisCredentials(creds.Username, creds.Password))
	}

	r := NewRedis(cfg, opts...)
	if err := r.Connect(ctx); err != nil {
		return nil, err
	}
	return r, nil
}
