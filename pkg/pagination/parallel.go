package pagination

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/Sternrassler/storesync/pkg/identity"
)

// PageCounter hands out page numbers to parallel workers.
type PageCounter struct {
	page atomic.Int64
}

// NewPageCounter returns a counter whose next page is last+1.
func NewPageCounter(last int) *PageCounter {
	c := &PageCounter{}
	c.page.Store(int64(last))
	return c
}

// Next claims the next page number.
func (c *PageCounter) Next() int {
	return int(c.page.Add(1))
}

// Last returns the highest page number handed out so far.
func (c *PageCounter) Last() int {
	return int(c.page.Load())
}

// ParallelConfig extends Config with a worker count.
type ParallelConfig struct {
	Config

	// Workers is the number of concurrent page fetchers.
	Workers int
}

// DefaultParallelConfig returns four workers over the default page shape.
func DefaultParallelConfig() ParallelConfig {
	return ParallelConfig{Config: DefaultConfig(), Workers: 4}
}

// worker scans pages claimed from a shared counter. Its repetition check
// compares each page with the previous page this worker fetched.
type worker[T any, K comparable] struct {
	id      int
	cfg     Config
	counter *PageCounter
	key     identity.KeyFunc[T, K]
	fetch   FetchFunc[T]
	prev    []T
}

func (w *worker[T, K]) run(ctx context.Context) ([]T, error) {
	var received []T
	pages := 0

	for {
		page := w.counter.Next()
		if page > w.cfg.MaxPages {
			return received, fmt.Errorf("scan %s: %w (%d pages)", w.cfg.Name, ErrPageLimit, w.cfg.MaxPages)
		}

		cur, err := fetchPage(ctx, w.cfg, w.fetch, page)
		if err != nil {
			return received, err
		}
		pages++

		if len(cur) == 0 {
			break
		}

		repeated := identity.Intersect(cur, w.prev, w.key)
		w.prev = cur
		if len(repeated) > 0 {
			received = append(received, identity.Subtract(cur, repeated, w.key)...)
			break
		}
		received = append(received, cur...)
	}

	log.Debug().
		Str("scan", w.cfg.Name).
		Int("worker_id", w.id).
		Int("pages_processed", pages).
		Int("records", len(received)).
		Msg("Worker stopping (converged)")
	return received, nil
}

// ScanParallel fetches page 1, then lets cfg.Workers workers claim further
// pages from one PageCounter. Each worker stops on its own repetition
// signal; the merged result is deduplicated by identity.
func ScanParallel[T any, K comparable](ctx context.Context, cfg ParallelConfig, key identity.KeyFunc[T, K], fetch FetchFunc[T]) ([]T, error) {
	cfg.Config = cfg.Config.withDefaults()
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultParallelConfig().Workers
	}
	start := time.Now()

	first, err := fetchPage(ctx, cfg.Config, fetch, 1)
	if err != nil {
		return nil, err
	}
	if len(first) < cfg.PageSize {
		convergenceTotal.WithLabelValues(cfg.Name, "short_first_page").Inc()
		return identity.Distinct(first, key), nil
	}

	log.Info().
		Str("scan", cfg.Name).
		Int("workers", cfg.Workers).
		Msg("Starting parallel page scan")

	counter := NewPageCounter(1)
	parts := make([][]T, cfg.Workers)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < cfg.Workers; i++ {
		w := &worker[T, K]{
			id:      i,
			cfg:     cfg.Config,
			counter: counter,
			key:     key,
			fetch:   fetch,
			prev:    first,
		}
		g.Go(func() error {
			part, err := w.run(gctx)
			parts[i] = part
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := append([]T(nil), first...)
	for _, part := range parts {
		merged = append(merged, part...)
	}
	result := identity.Distinct(merged, key)

	convergenceTotal.WithLabelValues(cfg.Name, "repetition").Inc()
	log.Info().
		Str("scan", cfg.Name).
		Int("pages", counter.Last()).
		Int("records", len(result)).
		Dur("duration", time.Since(start)).
		Msg("Parallel scan complete")

	return result, nil
}
