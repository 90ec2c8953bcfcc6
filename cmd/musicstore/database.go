package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const pingTimeout = 5 * time.Second

type pinger interface {
	PingContext(ctx context.Context) error
}

// openDatabase opens a pgx-backed pool and waits for the instance to
// answer before handing it out, so commands never race a starting database.
func openDatabase(ctx context.Context, cfg Config, log zerolog.Logger) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := waitForPing(ctx, db, cfg, log); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// waitForPing pings until the database responds, cfg.ConnectMaxWait passes,
// or the context is cancelled. The delay starts at cfg.ConnectBackoff and
// doubles per attempt, capped at ten times the initial value.
func waitForPing(ctx context.Context, db pinger, cfg Config, log zerolog.Logger) error {
	deadline := time.Now().Add(cfg.ConnectMaxWait)
	backoff := cfg.ConnectBackoff
	maxBackoff := 10 * cfg.ConnectBackoff

	for attempt := 1; ; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		err := db.PingContext(pingCtx)
		cancel()
		if err == nil {
			return nil
		}

		if ctx.Err() != nil {
			return fmt.Errorf("ping database: %w", ctx.Err())
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("ping database: %w", err)
		}

		log.Warn().Err(err).Int("attempt", attempt).Dur("backoff", backoff).Msg("database not ready, retrying")

		select {
		case <-ctx.Done():
			return fmt.Errorf("ping database: %w", ctx.Err())
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}
