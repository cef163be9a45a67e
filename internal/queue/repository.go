package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/warmfront/warmfront/internal/database"
)

// Repository is the persistence boundary for queue items.
type Repository interface {
	// AddToQueue enqueues one pending item per store for the given entity.
	// Store ID 0 (the admin scope) is skipped. When a pending item for the
	// same (entity, type, store) tuple already exists it is reused instead
	// of inserting a duplicate. The returned slice holds the pending items,
	// reused and new alike, in store order.
	AddToQueue(ctx context.Context, targetEntityID int64, entityType string, storeIDs []int) ([]Item, error)
	// GetPending returns up to limit pending items, oldest rows first.
	GetPending(ctx context.Context, limit int) ([]Item, error)
	// GetByID returns one item or ErrNotFound.
	GetByID(ctx context.Context, id int64) (Item, error)
	// Save updates an existing item's status.
	Save(ctx context.Context, item Item) error
	// Delete removes one item by ID.
	Delete(ctx context.Context, id int64) error
	// GetOlderThan returns items whose updated_at is before the cutoff.
	GetOlderThan(ctx context.Context, cutoff time.Time) ([]Item, error)
	// CountByStatus returns the number of items per status.
	CountByStatus(ctx context.Context) (map[Status]int, error)
}

// PostgresRepository stores queue items in the warmer_queue table.
type PostgresRepository struct {
	db     database.Querier
	logger *zap.Logger
}

// NewPostgresRepository constructs a PostgresRepository.
func NewPostgresRepository(db database.Querier, logger *zap.Logger) *PostgresRepository {
	return &PostgresRepository{db: db, logger: logger}
}

const itemColumns = "entity_id, target_entity_id, entity_type, store_id, status, created_at, updated_at"

func (r *PostgresRepository) AddToQueue(ctx context.Context, targetEntityID int64, entityType string, storeIDs []int) ([]Item, error) {
	scoped := make([]int, 0, len(storeIDs))
	for _, id := range storeIDs {
		if id == 0 {
			continue
		}
		scoped = append(scoped, id)
	}
	if len(scoped) == 0 {
		return nil, nil
	}

	existing, err := r.pendingFor(ctx, targetEntityID, entityType, scoped)
	if err != nil {
		return nil, err
	}
	byStore := make(map[int]Item, len(existing))
	for _, item := range existing {
		byStore[item.StoreID] = item
	}

	items := make([]Item, 0, len(scoped))
	for _, storeID := range scoped {
		if item, ok := byStore[storeID]; ok {
			items = append(items, item)
			continue
		}

		var item Item
		err := r.db.QueryRow(ctx,
			`INSERT INTO warmer_queue (target_entity_id, entity_type, store_id, status)
			 VALUES ($1, $2, $3, $4)
			 RETURNING `+itemColumns,
			targetEntityID, entityType, storeID, StatusPending,
		).Scan(&item.ID, &item.TargetEntityID, &item.EntityType, &item.StoreID, &item.Status, &item.CreatedAt, &item.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("%w: insert for store %d: %v", ErrCouldNotSave, storeID, err)
		}
		items = append(items, item)
	}
	return items, nil
}

// pendingFor fetches the pending rows already queued for an entity across a
// set of stores.
func (r *PostgresRepository) pendingFor(ctx context.Context, targetEntityID int64, entityType string, storeIDs []int) ([]Item, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+itemColumns+` FROM warmer_queue
		 WHERE target_entity_id = $1 AND entity_type = $2 AND status = $3 AND store_id = ANY($4)`,
		targetEntityID, entityType, StatusPending, storeIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("select pending for entity %d: %w", targetEntityID, err)
	}
	defer rows.Close()
	return scanItems(rows)
}

func (r *PostgresRepository) GetPending(ctx context.Context, limit int) ([]Item, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+itemColumns+` FROM warmer_queue
		 WHERE status = $1 ORDER BY entity_id LIMIT $2`,
		StatusPending, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select pending items: %w", err)
	}
	defer rows.Close()
	return scanItems(rows)
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (Item, error) {
	var item Item
	err := r.db.QueryRow(ctx,
		`SELECT `+itemColumns+` FROM warmer_queue WHERE entity_id = $1`, id,
	).Scan(&item.ID, &item.TargetEntityID, &item.EntityType, &item.StoreID, &item.Status, &item.CreatedAt, &item.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, ErrNotFound
	}
	if err != nil {
		return Item{}, fmt.Errorf("select item %d: %w", id, err)
	}
	return item, nil
}

func (r *PostgresRepository) Save(ctx context.Context, item Item) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE warmer_queue SET status = $1, updated_at = now() WHERE entity_id = $2`,
		item.Status, item.ID,
	)
	if err != nil {
		return fmt.Errorf("%w: update item %d: %v", ErrCouldNotSave, item.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM warmer_queue WHERE entity_id = $1`, id)
	if err != nil {
		return fmt.Errorf("%w: delete item %d: %v", ErrCouldNotDelete, id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) GetOlderThan(ctx context.Context, cutoff time.Time) ([]Item, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+itemColumns+` FROM warmer_queue WHERE updated_at < $1 ORDER BY entity_id`,
		cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("select items older than %s: %w", cutoff.Format(time.RFC3339), err)
	}
	defer rows.Close()
	return scanItems(rows)
}

func (r *PostgresRepository) CountByStatus(ctx context.Context) (map[Status]int, error) {
	rows, err := r.db.Query(ctx,
		`SELECT status, count(*) FROM warmer_queue GROUP BY status`,
	)
	if err != nil {
		return nil, fmt.Errorf("count items by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status counts: %w", err)
	}
	return counts, nil
}

func scanItems(rows pgx.Rows) ([]Item, error) {
	var items []Item
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.TargetEntityID, &item.EntityType, &item.StoreID, &item.Status, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan queue item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate queue items: %w", err)
	}
	return items, nil
}
