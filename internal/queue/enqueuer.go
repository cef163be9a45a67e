package queue

import (
	"context"

	"go.uber.org/zap"

	"github.com/warmfront/warmfront/internal/store"
)

// Enqueuer translates entity changes into queue rows. It swallows persistence
// failures after logging them: dropping a warm request is acceptable, breaking
// the caller's save path is not.
type Enqueuer struct {
	repo   Repository
	stores *store.Manager
	logger *zap.Logger
}

// NewEnqueuer constructs an Enqueuer.
func NewEnqueuer(repo Repository, stores *store.Manager, logger *zap.Logger) *Enqueuer {
	return &Enqueuer{repo: repo, stores: stores, logger: logger}
}

// Enqueue records a change to one entity across a set of stores. An empty
// store list, or one containing only the admin scope, fans out to every
// configured store.
func (e *Enqueuer) Enqueue(ctx context.Context, entityType string, entityID int64, storeIDs []int) {
	switch entityType {
	case EntityTypeProduct, EntityTypeCategory, EntityTypeCMSPage:
	default:
		e.logger.Debug("Ignoring change for unsupported entity type",
			zap.String("entity_type", entityType), zap.Int64("entity_id", entityID))
		return
	}

	if allAdminScope(storeIDs) {
		storeIDs = e.stores.IDs()
	}

	items, err := e.repo.AddToQueue(ctx, entityID, entityType, storeIDs)
	if err != nil {
		e.logger.Error("Failed to enqueue entity change",
			zap.String("entity_type", entityType),
			zap.Int64("entity_id", entityID),
			zap.Ints("store_ids", storeIDs),
			zap.Error(err),
		)
		return
	}

	e.logger.Info("Enqueued entity change",
		zap.String("entity_type", entityType),
		zap.Int64("entity_id", entityID),
		zap.Int("items", len(items)),
	)
}

func allAdminScope(storeIDs []int) bool {
	for _, id := range storeIDs {
		if id != 0 {
			return false
		}
	}
	return true
}
