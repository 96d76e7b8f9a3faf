// Package inventory writes stock levels to the platform, choosing between
// one call per item and chunked bulk calls by platform version.
package inventory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/storesync/pkg/batch"
	"github.com/Sternrassler/storesync/pkg/logging"
	"github.com/Sternrassler/storesync/pkg/platform"
	"github.com/Sternrassler/storesync/pkg/ratelimit"
	"github.com/Sternrassler/storesync/pkg/router"
)

// Update strategies.
const (
	StrategyPiecewise = "piecewise"
	StrategyBulk      = "bulk"
)

// BulkWriter writes a chunk of items and returns one verdict per item.
// Both platform.StockWriter and platform.ResourceClient satisfy it.
type BulkWriter interface {
	PutStockItems(ctx context.Context, items []platform.InventoryItem) ([]platform.StockWriteResult, error)
}

// PieceWriter writes a single item.
type PieceWriter interface {
	PutStockItem(ctx context.Context, item platform.InventoryItem) (bool, error)
}

// Config holds orchestrator configuration.
type Config struct {
	// PiecewiseVersions reject bulk stock writes and get one call per item.
	PiecewiseVersions []string

	// ChunkSize is the number of items per bulk call.
	ChunkSize int

	// BulkConcurrency caps concurrent bulk calls.
	BulkConcurrency int

	// PieceConcurrency caps concurrent single-item calls.
	PieceConcurrency int

	// PieceRetry applies to single-item calls, BulkRetry to chunk calls.
	PieceRetry batch.RetryPolicy
	BulkRetry  batch.RetryPolicy

	// Limiter optionally paces calls.
	Limiter *ratelimit.Limiter
}

// DefaultConfig returns the production configuration.
func DefaultConfig() Config {
	return Config{
		PiecewiseVersions: []string{"1.7.0.2"},
		ChunkSize:         50,
		BulkConcurrency:   1,
		PieceConcurrency:  5,
		PieceRetry:        batch.DefaultRetryPolicy(),
		BulkRetry:         batch.DefaultRetryPolicy(),
	}
}

// Report describes a successful update.
type Report struct {
	Strategy string
	Updated  []platform.InventoryItem
}

// Orchestrator decides the write strategy and aggregates item verdicts.
type Orchestrator struct {
	router *router.Router
	config Config
	logger zerolog.Logger
}

// New creates an orchestrator.
func New(r *router.Router, cfg Config) *Orchestrator {
	d := DefaultConfig()
	if cfg.PiecewiseVersions == nil {
		cfg.PiecewiseVersions = d.PiecewiseVersions
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = d.ChunkSize
	}
	if cfg.BulkConcurrency <= 0 {
		cfg.BulkConcurrency = d.BulkConcurrency
	}
	if cfg.PieceConcurrency <= 0 {
		cfg.PieceConcurrency = d.PieceConcurrency
	}

	return &Orchestrator{
		router: r,
		config: cfg,
		logger: logging.NewLogger(logging.ComponentInventory),
	}
}

// Piecewise reports whether version must be written one item at a time.
func (o *Orchestrator) Piecewise(version string) bool {
	version = strings.TrimSpace(version)
	for _, v := range o.config.PiecewiseVersions {
		if strings.EqualFold(v, version) {
			return true
		}
	}
	return false
}

// Update probes the platform and writes items with the matching strategy.
// An empty input makes no remote call. When any item fails the returned
// error is an *UpdateError.
func (o *Orchestrator) Update(ctx context.Context, items []platform.InventoryItem) (Report, error) {
	if len(items) == 0 {
		return Report{}, nil
	}

	id, err := o.router.Resolve(ctx)
	if err != nil {
		return Report{}, err
	}

	if o.Piecewise(id.Version) {
		adapter, err := o.router.Legacy()
		if err != nil {
			return Report{}, err
		}
		return o.WritePiecewise(ctx, adapter, items)
	}

	adapter, err := o.router.Select(id, false)
	if err != nil {
		return Report{}, err
	}
	return o.WriteBulk(ctx, adapter, items)
}

// WritePiecewise issues one call per item.
func (o *Orchestrator) WritePiecewise(ctx context.Context, w PieceWriter, items []platform.InventoryItem) (Report, error) {
	start := time.Now()
	cfg := batch.Config{
		Name:           "stock-item",
		MaxConcurrency: o.config.PieceConcurrency,
		Retry:          o.config.PieceRetry,
		Limiter:        o.config.Limiter,
	}

	res := batch.Run(ctx, cfg, items, func(ctx context.Context, it platform.InventoryItem) (struct{}, error) {
		ok, err := w.PutStockItem(ctx, it)
		if err != nil {
			return struct{}{}, err
		}
		if !ok {
			return struct{}{}, fmt.Errorf("stock item %s: %w", it.ItemID, platform.ErrRejected)
		}
		return struct{}{}, nil
	})

	report := Report{Strategy: StrategyPiecewise}
	for _, s := range res.Succeeded {
		report.Updated = append(report.Updated, s.Item)
	}

	var failed []FailedItem
	for _, f := range res.Failed {
		failed = append(failed, FailedItem{Item: f.Item, Err: f.Err})
	}
	return o.finish(report, failed, start)
}

// WriteBulk splits items into chunks and writes them through w, classifying
// each returned line by its code. A chunk whose call fails marks all of its
// items failed.
func (o *Orchestrator) WriteBulk(ctx context.Context, w BulkWriter, items []platform.InventoryItem) (Report, error) {
	start := time.Now()
	chunks := Chunk(items, o.config.ChunkSize)
	cfg := batch.Config{
		Name:           "stock-items-bulk",
		MaxConcurrency: o.config.BulkConcurrency,
		Retry:          o.config.BulkRetry,
		Limiter:        o.config.Limiter,
	}

	res := batch.Run(ctx, cfg, chunks, func(ctx context.Context, chunk []platform.InventoryItem) ([]platform.StockWriteResult, error) {
		return w.PutStockItems(ctx, chunk)
	})

	report := Report{Strategy: StrategyBulk}
	var failed []FailedItem
	for _, s := range res.Succeeded {
		updated, notUpdated := classify(s.Item, s.Value)
		report.Updated = append(report.Updated, updated...)
		failed = append(failed, notUpdated...)
	}
	for _, f := range res.Failed {
		for _, it := range f.Item {
			failed = append(failed, FailedItem{Item: it, Err: f.Err})
		}
	}
	return o.finish(report, failed, start)
}

func (o *Orchestrator) finish(report Report, failed []FailedItem, start time.Time) (Report, error) {
	if len(failed) > 0 {
		o.logger.Warn().
			Str("strategy", report.Strategy).
			Int("updated", len(report.Updated)).
			Int("failed", len(failed)).
			Dur("duration", time.Since(start)).
			Msg("Inventory update incomplete")
		return report, &UpdateError{Strategy: report.Strategy, Failed: failed, Updated: report.Updated}
	}

	o.logger.Debug().
		Str("strategy", report.Strategy).
		Int("updated", len(report.Updated)).
		Dur("duration", time.Since(start)).
		Msg("Inventory update complete")
	return report, nil
}

// classify pairs chunk items with their verdicts, by ItemID when the
// platform echoes it and by position otherwise. Items without a verdict fail.
func classify(chunk []platform.InventoryItem, verdicts []platform.StockWriteResult) ([]platform.InventoryItem, []FailedItem) {
	byID := make(map[string]platform.StockWriteResult, len(verdicts))
	for _, v := range verdicts {
		if v.ItemID != "" {
			byID[v.ItemID] = v
		}
	}

	var updated []platform.InventoryItem
	var failed []FailedItem
	for i, it := range chunk {
		v, ok := byID[it.ItemID]
		if !ok && len(verdicts) == len(chunk) && verdicts[i].ItemID == "" {
			v, ok = verdicts[i], true
		}
		switch {
		case !ok:
			failed = append(failed, FailedItem{Item: it, Message: "no verdict returned"})
		case v.Succeeded():
			updated = append(updated, it)
		default:
			failed = append(failed, FailedItem{Item: it, Code: v.Code, Message: v.Message})
		}
	}
	return updated, failed
}

// Chunk splits items into consecutive slices of at most size items.
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = 1
	}
	var out [][]T
	for lo := 0; lo < len(items); lo += size {
		hi := min(lo+size, len(items))
		out = append(out, items[lo:hi:hi])
	}
	return out
}
