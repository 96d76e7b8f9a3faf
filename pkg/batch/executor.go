// Package batch runs independent remote operations with a concurrency cap
// and per-element retry.
//
// A failing element never aborts its siblings: every element runs to
// completion and the Result partitions outcomes into succeeded and failed.
//
// Usage:
//
//	res := batch.Run(ctx, batch.Config{Name: "order-detail", MaxConcurrency: 16,
//		Retry: batch.DefaultRetryPolicy()}, ids, fetchOrder)
//	if err := res.Err(); err != nil {
//		// errors.Is(err, batch.ErrPartialFailure)
//	}
//	orders := res.Values()
package batch

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"

	"github.com/Sternrassler/storesync/pkg/logging"
	"github.com/Sternrassler/storesync/pkg/ratelimit"
)

// Prometheus metrics for batch runs.
var (
	itemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storesync_batch_items_total",
		Help: "Batch elements processed by batch name and outcome",
	}, []string{"batch", "outcome"})

	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storesync_batch_retries_total",
		Help: "Retry attempts by batch name",
	}, []string{"batch"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storesync_batch_retry_exhausted_total",
		Help: "Elements that exhausted their retry attempts by batch name",
	}, []string{"batch"})

	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storesync_batch_duration_seconds",
		Help:    "Wall time of a batch run by batch name",
		Buckets: prometheus.DefBuckets,
	}, []string{"batch"})
)

// Config holds the settings of one batch run.
type Config struct {
	// Name labels logs and metrics.
	Name string

	// MaxConcurrency caps in-flight operations. Values <= 0 mean 1.
	MaxConcurrency int

	// Retry is applied to every element.
	Retry RetryPolicy

	// Limiter optionally paces attempts and collects the store's error budget.
	Limiter *ratelimit.Limiter
}

// Outcome is the result of one element.
type Outcome[I, O any] struct {
	Index    int
	Item     I
	Value    O
	Err      error
	Attempts int
}

// Succeeded reports whether the element completed without error.
func (o Outcome[I, O]) Succeeded() bool {
	return o.Err == nil
}

// Result partitions the outcomes of a run.
type Result[I, O any] struct {
	Name      string
	Succeeded []Outcome[I, O]
	Failed    []Outcome[I, O]
}

// Values returns the payloads of the succeeded elements.
func (r Result[I, O]) Values() []O {
	out := make([]O, 0, len(r.Succeeded))
	for _, o := range r.Succeeded {
		out = append(out, o.Value)
	}
	return out
}

// FailedItems returns the inputs of the failed elements.
func (r Result[I, O]) FailedItems() []I {
	out := make([]I, 0, len(r.Failed))
	for _, o := range r.Failed {
		out = append(out, o.Item)
	}
	return out
}

// Err returns a *PartialFailure when any element failed, nil otherwise.
func (r Result[I, O]) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	pf := &PartialFailure{
		Batch:    r.Name,
		Total:    len(r.Succeeded) + len(r.Failed),
		Failures: make([]*ElementError, 0, len(r.Failed)),
	}
	for _, o := range r.Failed {
		pf.Failures = append(pf.Failures, &ElementError{Index: o.Index, Item: o.Item, Err: o.Err})
	}
	return pf
}

// Run executes op for every item with at most cfg.MaxConcurrency in flight.
// Outcomes keep input order but callers must not rely on completion order.
func Run[I, O any](ctx context.Context, cfg Config, items []I, op func(context.Context, I) (O, error)) Result[I, O] {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 1
	}
	if cfg.Name == "" {
		cfg.Name = "batch"
	}

	start := time.Now()
	logger := logging.NewLogger(logging.ComponentBatch).With().Str("batch", cfg.Name).Logger()
	logger.Debug().
		Int("items", len(items)).
		Int("max_concurrency", cfg.MaxConcurrency).
		Msg("Starting batch run")

	outcomes := make([]Outcome[I, O], len(items))

	// Plain Group: one element's failure must not cancel its siblings.
	var g errgroup.Group
	g.SetLimit(cfg.MaxConcurrency)
	for i, item := range items {
		g.Go(func() error {
			outcomes[i] = runElement(ctx, cfg, i, item, op)
			return nil
		})
	}
	_ = g.Wait()

	res := Result[I, O]{Name: cfg.Name}
	for _, o := range outcomes {
		if o.Err == nil {
			res.Succeeded = append(res.Succeeded, o)
			itemsTotal.WithLabelValues(cfg.Name, "succeeded").Inc()
			continue
		}
		res.Failed = append(res.Failed, o)
		itemsTotal.WithLabelValues(cfg.Name, "failed").Inc()
	}

	elapsed := time.Since(start)
	runDuration.WithLabelValues(cfg.Name).Observe(elapsed.Seconds())

	event := logger.Debug()
	if len(res.Failed) > 0 {
		event = logger.Warn()
	}
	event.
		Int("succeeded", len(res.Succeeded)).
		Int("failed", len(res.Failed)).
		Dur("duration", elapsed).
		Msg("Batch run complete")

	return res
}

func runElement[I, O any](ctx context.Context, cfg Config, index int, item I, op func(context.Context, I) (O, error)) Outcome[I, O] {
	var value O
	attempts, err := Retry(ctx, cfg.Name, cfg.Retry, func() error {
		if cfg.Limiter != nil {
			if werr := cfg.Limiter.Wait(ctx); werr != nil {
				return werr
			}
		}
		v, opErr := op(ctx, item)
		if cfg.Limiter != nil && Classify(opErr) == ErrorClassTransient {
			cfg.Limiter.Report(opErr)
		}
		if opErr != nil {
			return opErr
		}
		value = v
		return nil
	})

	return Outcome[I, O]{Index: index, Item: item, Value: value, Err: err, Attempts: attempts}
}
