package warmer

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/warmfront/warmfront/internal/metrics"
	"github.com/warmfront/warmfront/internal/store"
)

func newTestEngine(t *testing.T, stores ...store.Store) *Engine {
	t.Helper()
	metrics.Init()
	logger := zap.NewNop()
	manager := store.NewManager(stores)
	return New(NewClientFactory(manager, logger), NewNotifier(logger), logger)
}

func TestWarmEmptyURLListMakesNoRequests(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	st := store.Store{ID: 1, Code: "default", BaseURL: srv.URL}
	engine := newTestEngine(t, st)

	results, err := engine.Warm(context.Background(), nil, Options{Store: st, Concurrency: 2})
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Zero(t, hits.Load())
}

func TestWarmRecordsStatusPerURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			w.WriteHeader(http.StatusOK)
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	st := store.Store{ID: 1, Code: "default", BaseURL: srv.URL}
	engine := newTestEngine(t, st)

	urls := []string{srv.URL + "/ok", srv.URL + "/missing", srv.URL + "/boom"}
	results, err := engine.Warm(context.Background(), urls, Options{Store: st, Concurrency: 2})
	require.NoError(t, err)
	require.Len(t, results, 1)

	res, ok := results["default/guest"]
	require.True(t, ok)
	require.Len(t, res.Statuses, len(urls))
	require.Len(t, res.Durations, len(urls))
	assert.Equal(t, http.StatusOK, res.Statuses[0])
	assert.Equal(t, http.StatusNotFound, res.Statuses[1])
	assert.Equal(t, http.StatusInternalServerError, res.Statuses[2])
	assert.True(t, res.HasServerError())
}

func TestWarmTransportFailureRecordedAsZero(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	addr := srv.URL
	srv.Close() // nothing listens here anymore

	st := store.Store{ID: 1, Code: "default", BaseURL: addr}
	engine := newTestEngine(t, st)

	results, err := engine.Warm(context.Background(), []string{addr + "/page"}, Options{Store: st, Concurrency: 1})
	require.NoError(t, err)

	res := results["default/guest"]
	require.Len(t, res.Statuses, 1)
	assert.Equal(t, StatusTransportFailure, res.Statuses[0])
	assert.False(t, IsSuccess(res.Statuses[0]))
}

func TestWarmDoesNotFollowRedirects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/elsewhere", http.StatusMovedPermanently)
	}))
	defer srv.Close()

	st := store.Store{ID: 1, Code: "default", BaseURL: srv.URL}
	engine := newTestEngine(t, st)

	results, err := engine.Warm(context.Background(), []string{srv.URL + "/old"}, Options{Store: st, Concurrency: 1})
	require.NoError(t, err)
	assert.Equal(t, http.StatusMovedPermanently, results["default/guest"].Statuses[0])
}

func TestWarmRunsOnePoolPerIdentity(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/customer/account/login" {
			_, _ = w.Write([]byte(`<html><input name="form_key" value="k1"/></html>`))
			return
		}
		if r.URL.Path == "/customer/account/loginPost/" {
			w.WriteHeader(http.StatusOK)
			return
		}
		hits.Add(1)
	}))
	defer srv.Close()

	st := store.Store{ID: 1, Code: "default", BaseURL: srv.URL}
	engine := newTestEngine(t, st)

	opts := Options{
		Store:       st,
		Concurrency: 2,
		Credentials: []Credential{{Username: "shopper@example.com", Password: "secret"}},
	}
	results, err := engine.Warm(context.Background(), []string{srv.URL + "/page"}, opts)
	require.NoError(t, err)

	assert.Len(t, results, 2)
	assert.Contains(t, results, "default/guest")
	assert.Contains(t, results, "default/shopper@example.com")
	assert.Equal(t, int64(2), hits.Load())
}

func TestWarmGuestDisabled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/customer/account/login" {
			_, _ = w.Write([]byte(`<input name="form_key" value="k1"/>`))
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	st := store.Store{ID: 1, Code: "default", BaseURL: srv.URL}
	engine := newTestEngine(t, st)

	opts := Options{
		Store:             st,
		Concurrency:       1,
		DisableGuestCrawl: true,
		Credentials:       []Credential{{Username: "shopper@example.com", Password: "secret"}},
	}
	results, err := engine.Warm(context.Background(), []string{srv.URL + "/page"}, opts)
	require.NoError(t, err)

	assert.Len(t, results, 1)
	assert.NotContains(t, results, "default/guest")
}

func TestWarmServerErrorTriggersWebhook(t *testing.T) {
	var payload struct {
		Text string `json:"text"`
	}
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(r.Body)
		require.NoError(t, json.Unmarshal(buf.Bytes(), &payload))
	}))
	defer hook.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	st := store.Store{ID: 1, Code: "default", BaseURL: srv.URL}
	engine := newTestEngine(t, st)

	opts := Options{
		Store:          st,
		Concurrency:    1,
		WebhookEnabled: true,
		WebhookURL:     hook.URL,
	}
	_, err := engine.Warm(context.Background(), []string{srv.URL + "/page"}, opts)
	require.NoError(t, err)

	assert.Contains(t, payload.Text, "*Cache Warmer Error*")
	assert.Contains(t, payload.Text, "default")
}

func TestWarmProgressOutput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	st := store.Store{ID: 1, Code: "default", BaseURL: srv.URL}
	engine := newTestEngine(t, st)

	var out bytes.Buffer
	_, err := engine.Warm(context.Background(), []string{srv.URL + "/page"}, Options{
		Store: st, Concurrency: 1, Output: &out,
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "success in")
	assert.Contains(t, out.String(), "with status 200")
}
