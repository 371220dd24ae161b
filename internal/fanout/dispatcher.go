package fanout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/omsfleet/binance-gateway/internal/keymanager"
	"github.com/omsfleet/binance-gateway/pkg/types"
	"github.com/omsfleet/binance-gateway/services/binance"
)

const (
	defaultWorkers      = 10
	defaultBatchTimeout = 30 * time.Second
	defaultRatePerSec   = 15
)

// Operation is one domain call executed against one account's client.
type Operation func(ctx context.Context, client *binance.AccountClient) (interface{}, error)

// Dispatcher fans one operation out across many accounts on a bounded
// worker pool and aggregates per-account outcomes. One account's failure
// never aborts its siblings.
type Dispatcher struct {
	resolver *keymanager.Resolver
	workers  int
	timeout  time.Duration
	limiter  *rate.Limiter
	opts     []binance.Option
	logger   *logrus.Entry
}

// Config tunes the dispatcher. Zero values fall back to defaults.
type Config struct {
	Workers      int
	BatchTimeout time.Duration
	// RequestsPerSecond bounds the aggregate request rate across all
	// workers; Binance rate limits are per IP and per key, and an
	// unthrottled fan-out over enough accounts triggers bans.
	RequestsPerSecond int
	// Limiter, when set, is used instead of building one from
	// RequestsPerSecond. The caller shares it with clients built outside
	// the dispatcher so every request draws from one bucket.
	Limiter *rate.Limiter
	// ClientOptions are applied to every account client the dispatcher
	// builds (host overrides for testnets and fakes).
	ClientOptions []binance.Option
}

// NewDispatcher creates a dispatcher over the given credential resolver.
func NewDispatcher(resolver *keymanager.Resolver, cfg Config) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = defaultBatchTimeout
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = defaultRatePerSec
	}
	limiter := cfg.Limiter
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.RequestsPerSecond)
	}

	return &Dispatcher{
		resolver: resolver,
		workers:  cfg.Workers,
		timeout:  cfg.BatchTimeout,
		limiter:  limiter,
		opts:     append([]binance.Option{binance.WithLimiter(limiter)}, cfg.ClientOptions...),
		logger:   logrus.WithField("component", "fanout"),
	}
}

// Dispatch runs op once per identifier and returns exactly one result per
// identifier, whatever happens inside the workers. Result order follows
// completion, not input order; consumers key results by identifier.
func (d *Dispatcher) Dispatch(ctx context.Context, identifiers []string, op Operation) *types.FanOutBatch {
	batch := &types.FanOutBatch{
		Total:   len(identifiers),
		Results: make([]types.FanOutResult, 0, len(identifiers)),
	}
	if len(identifiers) == 0 {
		return batch
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, d.workers)
	)

	for _, identifier := range identifiers {
		identifier := identifier
		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				mu.Lock()
				batch.Results = append(batch.Results, timeoutResult(identifier))
				batch.Failed++
				mu.Unlock()
				return
			}

			result := d.runOne(ctx, identifier, op)

			mu.Lock()
			batch.Results = append(batch.Results, result)
			if result.Success {
				batch.Successful++
			} else {
				batch.Failed++
			}
			mu.Unlock()
		}()
	}

	wg.Wait()
	d.logger.WithFields(logrus.Fields{
		"total":      batch.Total,
		"successful": batch.Successful,
		"failed":     batch.Failed,
	}).Info("batch dispatch complete")
	return batch
}

// runOne resolves one account and executes the operation, converting
// every failure mode into a result row.
func (d *Dispatcher) runOne(ctx context.Context, identifier string, op Operation) types.FanOutResult {
	cred, err := d.resolver.Resolve(ctx, identifier)
	if err != nil {
		if errors.Is(err, keymanager.ErrNotConfigured) {
			return types.FanOutResult{Identifier: identifier, Error: "credential not configured"}
		}
		return types.FanOutResult{Identifier: identifier, Error: err.Error()}
	}

	client := binance.NewAccountClient(cred, d.opts...)

	data, err := d.withRateLimitRetry(ctx, client, op)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return timeoutResult(identifier)
		}
		d.logger.WithError(err).WithField("identifier", identifier).Warn("operation failed")
		return types.FanOutResult{Identifier: identifier, Error: err.Error()}
	}
	return types.FanOutResult{Identifier: identifier, Success: true, Data: data}
}

// withRateLimitRetry retries a 429 once after the upstream hint, then
// reports it. Anything else passes straight through.
func (d *Dispatcher) withRateLimitRetry(ctx context.Context, client *binance.AccountClient, op Operation) (interface{}, error) {
	data, err := op(ctx, client)
	if err == nil || !binance.IsRateLimited(err) {
		return data, err
	}

	wait := time.Duration(binance.RetryAfterSeconds(err)) * time.Second
	if wait <= 0 {
		wait = time.Second
	}
	d.logger.WithField("identifier", client.Identifier()).
		Warnf("rate limited upstream, retrying once in %s", wait)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(wait):
	}

	data, err = op(ctx, client)
	if err != nil && binance.IsRateLimited(err) {
		return nil, fmt.Errorf("rate limited by upstream: %w", err)
	}
	return data, err
}

func timeoutResult(identifier string) types.FanOutResult {
	return types.FanOutResult{Identifier: identifier, Error: "timeout"}
}
