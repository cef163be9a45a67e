// Package runguard coordinates full-page warming runs through flag rows in
// Postgres: a trigger flag armed by cache flushes, and an in-progress lock
// with a TTL so a crashed run cannot block warming forever.
package runguard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/warmfront/warmfront/internal/database"
)

const (
	// FlagTrigger is armed when the full-page cache is flushed and a warm
	// run should happen.
	FlagTrigger = "warmer_trigger"
	// FlagInProgress holds the start time of the run currently holding the
	// lock, or 0 when no run is active.
	FlagInProgress = "warmer_in_progress"
)

// Guard reads and writes the warmer flags.
type Guard struct {
	db     database.Querier
	logger *zap.Logger
	now    func() time.Time
}

// NewGuard constructs a Guard.
func NewGuard(db database.Querier, logger *zap.Logger) *Guard {
	return &Guard{db: db, logger: logger, now: time.Now}
}

// Arm marks that a full-page warming run is wanted.
func (g *Guard) Arm(ctx context.Context) error {
	return g.set(ctx, FlagTrigger, 1)
}

// Disarm clears the trigger flag.
func (g *Guard) Disarm(ctx context.Context) error {
	return g.set(ctx, FlagTrigger, 0)
}

// Armed reports whether a warming run has been requested.
func (g *Guard) Armed(ctx context.Context) (bool, error) {
	var value int64
	err := g.db.QueryRow(ctx,
		`SELECT value FROM warmer_flags WHERE code = $1`, FlagTrigger,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read flag %s: %w", FlagTrigger, err)
	}
	return value != 0, nil
}

// TryAcquire takes the in-progress lock. It succeeds when no run holds the
// lock, or when the holder's start time is older than the TTL, in which case
// the stale lock is stolen. The compare-and-set runs as one statement so two
// concurrent callers cannot both win.
func (g *Guard) TryAcquire(ctx context.Context, ttl time.Duration) (bool, error) {
	now := g.now().Unix()
	stale := now - int64(ttl.Seconds())

	tag, err := g.db.Exec(ctx,
		`INSERT INTO warmer_flags (code, value, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (code) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
		 WHERE warmer_flags.value = 0 OR warmer_flags.value < $3`,
		FlagInProgress, now, stale,
	)
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", FlagInProgress, err)
	}
	if tag.RowsAffected() == 0 {
		g.logger.Info("Warming run already in progress, skipping")
		return false, nil
	}
	return true, nil
}

// Release clears the in-progress lock.
func (g *Guard) Release(ctx context.Context) error {
	return g.set(ctx, FlagInProgress, 0)
}

func (g *Guard) set(ctx context.Context, code string, value int64) error {
	_, err := g.db.Exec(ctx,
		`INSERT INTO warmer_flags (code, value, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (code) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		code, value,
	)
	if err != nil {
		return fmt.Errorf("set flag %s: %w", code, err)
	}
	return nil
}
