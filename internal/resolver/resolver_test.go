package resolver

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/warmfront/warmfront/internal/store"
)

func testStores() *store.Manager {
	return store.NewManager([]store.Store{
		{ID: 1, Code: "default", BaseURL: "https://shop.example.com"},
	})
}

func TestProductResolverIncludesParentURLs(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT parent_id FROM catalog_product_relation`).
		WithArgs(int64(42)).
		WillReturnRows(pgxmock.NewRows([]string{"parent_id"}).AddRow(int64(100)))

	mock.ExpectQuery(`SELECT request_path FROM url_rewrite`).
		WithArgs("product", int64(42), 1).
		WillReturnRows(pgxmock.NewRows([]string{"request_path"}).AddRow("simple-tee.html"))

	mock.ExpectQuery(`SELECT request_path FROM url_rewrite`).
		WithArgs("product", int64(100), 1).
		WillReturnRows(pgxmock.NewRows([]string{"request_path"}).AddRow("configurable-tee.html"))

	r := NewProductResolver(mock, testStores(), zap.NewNop())
	urls, err := r.GetURLs(context.Background(), 42, 1)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"https://shop.example.com/simple-tee.html",
		"https://shop.example.com/configurable-tee.html",
	}, urls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductResolverSkipsParentWithoutRewrite(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT parent_id FROM catalog_product_relation`).
		WithArgs(int64(42)).
		WillReturnRows(pgxmock.NewRows([]string{"parent_id"}).AddRow(int64(100)))

	mock.ExpectQuery(`SELECT request_path FROM url_rewrite`).
		WithArgs("product", int64(42), 1).
		WillReturnRows(pgxmock.NewRows([]string{"request_path"}).AddRow("simple-tee.html"))

	mock.ExpectQuery(`SELECT request_path FROM url_rewrite`).
		WithArgs("product", int64(100), 1).
		WillReturnRows(pgxmock.NewRows([]string{"request_path"}))

	r := NewProductResolver(mock, testStores(), zap.NewNop())
	urls, err := r.GetURLs(context.Background(), 42, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://shop.example.com/simple-tee.html"}, urls)
}

func TestCategoryResolver(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT request_path FROM url_rewrite`).
		WithArgs("category", int64(5), 1).
		WillReturnRows(pgxmock.NewRows([]string{"request_path"}).AddRow("men/tops.html"))

	r := NewCategoryResolver(mock, testStores())
	urls, err := r.GetURLs(context.Background(), 5, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://shop.example.com/men/tops.html"}, urls)
}

func TestCMSPageResolverFallsBackToGlobalScope(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT request_path FROM url_rewrite`).
		WithArgs("cms-page", int64(3), 1).
		WillReturnRows(pgxmock.NewRows([]string{"request_path"}))

	mock.ExpectQuery(`SELECT request_path FROM url_rewrite`).
		WithArgs("cms-page", int64(3), 0).
		WillReturnRows(pgxmock.NewRows([]string{"request_path"}).AddRow("about-us"))

	r := NewCMSPageResolver(mock, testStores())
	urls, err := r.GetURLs(context.Background(), 3, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://shop.example.com/about-us"}, urls)
}

func TestCompositeMissingEntityResolvesToNoURLs(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT request_path FROM url_rewrite`).
		WithArgs("category", int64(9), 1).
		WillReturnRows(pgxmock.NewRows([]string{"request_path"}))

	c := NewComposite(NewCategoryResolver(mock, testStores()))
	urls, err := c.GetURLsForType(context.Background(), "category", 9, 1)
	require.NoError(t, err)
	assert.Empty(t, urls)
}

func TestCompositeUnsupportedType(t *testing.T) {
	c := NewComposite()
	_, err := c.GetURLsForType(context.Background(), "customer", 1, 1)
	assert.ErrorIs(t, err, ErrUnsupportedType)
}
