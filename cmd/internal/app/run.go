package app

import (
	"context"

	"collab/cmd/internal/migrations"
)

// Serve loads config from the environment and runs the server until ctx is done.
// It returns an error instead of calling os.Exit so deferred cleanup runs.
func Serve(ctx context.Context) error {
	cfg := LoadConfig()
	log := NewLogger(cfg.LogLevel)

	a, err := New(ctx, cfg, log)
	if err != nil {
		return err
	}
	return a.Run(ctx)
}

// Migrate applies every pending schema migration to COLLAB_DATABASE_URL.
func Migrate(ctx context.Context) error {
	cfg := LoadConfig()
	log := NewLogger(cfg.LogLevel)

	if cfg.DatabaseURL == "" {
		return ErrNoDatabase
	}
	pool, err := NewDBPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := migrations.Up(ctx, pool); err != nil {
		return err
	}
	log.Info("db.migrated")
	return nil
}
