// Package warmer implements the concurrent cache warming engine: a bounded
// fan-out of HTTP GETs over a URL list, executed once per crawl identity.
package warmer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/warmfront/warmfront/internal/metrics"
)

// Engine executes warming runs.
type Engine struct {
	clients  *ClientFactory
	notifier *Notifier
	logger   *zap.Logger
}

// New constructs an Engine.
func New(clients *ClientFactory, notifier *Notifier, logger *zap.Logger) *Engine {
	return &Engine{
		clients:  clients,
		notifier: notifier,
		logger:   logger,
	}
}

// Warm issues a GET for every (URL, identity) pair and aggregates one Result
// per identity pool. All identity pools run concurrently; within one pool the
// in-flight request count is capped at the configured concurrency. Warm
// returns after every pool has settled. Per-URL failures are recorded, never
// retried, and never abort a pool; a failed login or store switch aborts only
// its own pool and is reported in the returned error. The partial result map
// is valid even when the error is non-nil.
func (e *Engine) Warm(ctx context.Context, urls []string, opts Options) (map[string]Result, error) {
	results := make(map[string]Result)
	if len(urls) == 0 {
		return results, nil
	}
	urls = append([]string(nil), urls...)

	runID := uuid.NewString()
	ids := identities(opts)
	e.logger.Info("Starting warming run",
		zap.String("run_id", runID),
		zap.String("store", opts.Store.Code),
		zap.Int("urls", len(urls)),
		zap.Int("pools", len(ids)),
		zap.Int("concurrency", opts.Concurrency),
	)

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		poolErrs = make([]error, len(ids))
	)
	for i, identity := range ids {
		wg.Add(1)
		go func(i int, identity Identity) {
			defer wg.Done()
			metrics.IncActivePools()
			defer metrics.DecActivePools()

			res, err := e.runPool(ctx, urls, identity, opts)
			if err != nil {
				e.logger.Error("Crawl identity pool failed",
					zap.String("run_id", runID),
					zap.String("pool", identity.PoolID()),
					zap.Error(err),
				)
				poolErrs[i] = fmt.Errorf("pool %s: %w", identity.PoolID(), err)
				return
			}
			mu.Lock()
			results[identity.PoolID()] = res
			mu.Unlock()
		}(i, identity)
	}
	wg.Wait()

	if AnyServerError(results) {
		metrics.ObserveRun("error")
		if opts.WebhookEnabled {
			e.notifier.Notify(ctx, opts.WebhookURL, opts.Store,
				"Some pages returned an error. Check the warmer logs for more details.")
		}
	} else {
		metrics.ObserveRun("success")
	}

	e.logger.Info("Warming run finished",
		zap.String("run_id", runID),
		zap.String("store", opts.Store.Code),
		zap.Int("pools", len(results)),
	)
	return results, errors.Join(poolErrs...)
}

// runPool executes the full URL list for one identity under a bounded
// concurrency cap. Results are written by index, so completion order does not
// matter.
func (e *Engine) runPool(ctx context.Context, urls []string, identity Identity, opts Options) (Result, error) {
	client, err := e.clients.ClientFor(ctx, identity, opts)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		URLs:      urls,
		Statuses:  make([]int, len(urls)),
		Durations: make([]float64, len(urls)),
		Total:     len(urls),
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	g := new(errgroup.Group)
	g.SetLimit(concurrency)
	for i, u := range urls {
		g.Go(func() error {
			if limiter != nil {
				if err := limiter.Wait(ctx); err != nil {
					res.Statuses[i] = StatusTransportFailure
					return nil
				}
			}
			status, duration := e.fetch(ctx, client, u)
			res.Statuses[i] = status
			res.Durations[i] = float64(duration.Microseconds()) / 1000.0
			e.report(opts, identity, i, res.Total, u, status, res.Durations[i])
			metrics.ObserveWarm(opts.Store.Code, status, duration)
			return nil
		})
	}
	// Workers record failures instead of returning them, so Wait never errors.
	_ = g.Wait()

	return res, nil
}

// fetch issues one GET and returns the final status plus wall-clock transfer
// time. The body is drained so the backend renders the whole page and the
// connection can be reused.
func (e *Engine) fetch(ctx context.Context, client *http.Client, rawURL string) (int, time.Duration) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return StatusTransportFailure, 0
	}

	start := time.Now()
	resp, err := client.Do(req)
	duration := time.Since(start)
	if err != nil {
		return StatusTransportFailure, duration
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	return resp.StatusCode, duration
}

// report emits the per-URL progress line as each request settles.
func (e *Engine) report(opts Options, identity Identity, index, total int, url string, status int, ms float64) {
	fields := []zap.Field{
		zap.String("store", opts.Store.Code),
		zap.String("pool", identity.PoolID()),
		zap.String("url", url),
		zap.Int("status", status),
		zap.Float64("duration_ms", ms),
	}

	switch {
	case status >= 200 && status < 300:
		e.logger.Info(fmt.Sprintf("%d/%d %s success in %.2f ms with status %d", index+1, total, url, ms, status), fields...)
		e.println(opts, "%d/%d %s success in %.2f ms with status %d", index+1, total, url, ms, status)
	case status != StatusTransportFailure && status < 500:
		e.logger.Warn(fmt.Sprintf("%d/%d %s warning in %.2f ms with status %d", index+1, total, url, ms, status), fields...)
		e.println(opts, "%d/%d %s warning in %.2f ms with status %d", index+1, total, url, ms, status)
	case status == StatusTransportFailure:
		e.logger.Error(fmt.Sprintf("%d/%d %s failed in %.2f ms: no response", index+1, total, url, ms), fields...)
		e.println(opts, "%d/%d %s failed in %.2f ms: no response", index+1, total, url, ms)
	default:
		e.logger.Error(fmt.Sprintf("%d/%d %s error in %.2f ms with status %d", index+1, total, url, ms, status), fields...)
		e.println(opts, "%d/%d %s error in %.2f ms with status %d", index+1, total, url, ms, status)
	}
}

func (e *Engine) println(opts Options, format string, args ...any) {
	if opts.Output == nil {
		return
	}
	fmt.Fprintf(opts.Output, format+"\n", args...)
}

// AnyServerError reports whether any pool in a result set recorded a status
// >= 500. Callers use it to derive exit codes and alerting decisions.
func AnyServerError(results map[string]Result) bool {
	for _, res := range results {
		if res.HasServerError() {
			return true
		}
	}
	return false
}
