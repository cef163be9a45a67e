package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/warmfront/warmfront/internal/store"
)

type recordingRepo struct {
	fakeRepo
	addedStores []int
	addErr      error
}

func (r *recordingRepo) AddToQueue(_ context.Context, _ int64, _ string, storeIDs []int) ([]Item, error) {
	r.addedStores = append(r.addedStores, storeIDs...)
	if r.addErr != nil {
		return nil, r.addErr
	}
	return nil, nil
}

func testEnqueuer(repo Repository) *Enqueuer {
	stores := store.NewManager([]store.Store{
		{ID: 1, Code: "default", BaseURL: "https://shop.example.com"},
		{ID: 2, Code: "de", BaseURL: "https://de.example.com"},
	})
	return NewEnqueuer(repo, stores, zap.NewNop())
}

func TestEnqueueExpandsAdminScopeToAllStores(t *testing.T) {
	repo := &recordingRepo{}
	e := testEnqueuer(repo)

	e.Enqueue(context.Background(), EntityTypeCMSPage, 7, []int{0})
	assert.Equal(t, []int{1, 2}, repo.addedStores)
}

func TestEnqueueExpandsEmptyScope(t *testing.T) {
	repo := &recordingRepo{}
	e := testEnqueuer(repo)

	e.Enqueue(context.Background(), EntityTypeProduct, 7, nil)
	assert.Equal(t, []int{1, 2}, repo.addedStores)
}

func TestEnqueueKeepsExplicitScope(t *testing.T) {
	repo := &recordingRepo{}
	e := testEnqueuer(repo)

	e.Enqueue(context.Background(), EntityTypeCategory, 7, []int{2})
	assert.Equal(t, []int{2}, repo.addedStores)
}

func TestEnqueueIgnoresUnsupportedType(t *testing.T) {
	repo := &recordingRepo{}
	e := testEnqueuer(repo)

	e.Enqueue(context.Background(), "customer", 7, []int{1})
	assert.Empty(t, repo.addedStores)
}

func TestEnqueueSwallowsPersistenceFailure(t *testing.T) {
	repo := &recordingRepo{addErr: errors.New("db down")}
	e := testEnqueuer(repo)

	// Must not panic or propagate; the caller's save path is never broken.
	e.Enqueue(context.Background(), EntityTypeProduct, 7, []int{1})
}
