package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ChangeChannel is the NOTIFY channel fed by the row change triggers.
const ChangeChannel = "row_changes"

// Change is one row-level event from the change feed.
type Change struct {
	Table  string         `json:"table"`
	Event  string         `json:"event"`
	Record map[string]any `json:"record"`
}

// DecodeChange parses a NOTIFY payload.
func DecodeChange(payload string) (Change, error) {
	var c Change
	if err := json.Unmarshal([]byte(payload), &c); err != nil {
		return Change{}, fmt.Errorf("backend: decode change: %w", err)
	}
	return c, nil
}

// Listen holds one pooled connection in LISTEN mode and calls fn for every
// change until ctx is cancelled. Connection failures are retried after a
// short pause.
func Listen(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger, fn func(Change)) error {
	for {
		err := listenOnce(ctx, pool, logger, fn)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Warn("change feed interrupted", slog.Any("error", err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
}

func listenOnce(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger, fn func(Change)) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()
	if _, err := conn.Exec(ctx, "LISTEN "+ChangeChannel); err != nil {
		return err
	}
	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		change, err := DecodeChange(n.Payload)
		if err != nil {
			logger.Warn("skip change payload", slog.Any("error", err))
			continue
		}
		fn(change)
	}
}
