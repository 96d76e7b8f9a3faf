// Package client is the public surface of the sync engine. Every operation
// probes the platform, picks the adapter that speaks its version, runs its
// remote calls through bounded batches and returns in-memory results or a
// single *OperationError.
package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/storesync/pkg/batch"
	"github.com/Sternrassler/storesync/pkg/enrich"
	"github.com/Sternrassler/storesync/pkg/inventory"
	"github.com/Sternrassler/storesync/pkg/logging"
	"github.com/Sternrassler/storesync/pkg/pagination"
	"github.com/Sternrassler/storesync/pkg/platform"
	"github.com/Sternrassler/storesync/pkg/ratelimit"
	"github.com/Sternrassler/storesync/pkg/rest"
	"github.com/Sternrassler/storesync/pkg/router"
	"github.com/Sternrassler/storesync/pkg/timerange"
)

// Config holds the client configuration.
type Config struct {
	// Concurrency caps per call site.
	CreateProductConcurrency int
	DeleteProductConcurrency int
	CreateOrderConcurrency   int
	OrderWindowConcurrency   int
	OrderDetailConcurrency   int
	ProductDetailConcurrency int
	PieceStockConcurrency    int
	BulkStockConcurrency     int

	// StockChunkSize is the number of items per bulk stock write.
	StockChunkSize int

	// StockLookupChunkSize is the number of SKUs per legacy stock lookup.
	StockLookupChunkSize int

	// OrderResultChunkSize is the number of orders per result log line.
	OrderResultChunkSize int

	// PageSize of resource-protocol scans, at most rest.MaxPageSize.
	PageSize int

	// MaxPages bounds every scan.
	MaxPages int

	// ScanWorkers is the worker count of parallel product scans.
	ScanWorkers int

	// WindowChunk and WindowOverlap shape historical order windows.
	WindowChunk   time.Duration
	WindowOverlap time.Duration

	// PiecewiseVersions write stock one item at a time.
	PiecewiseVersions []string

	// LegacyOnly resolves SKUs through the legacy protocol instead of the
	// resource catalog.
	LegacyOnly bool

	// Retry applies to call sites that retry.
	Retry batch.RetryPolicy

	// Limiter optionally paces remote calls against the store.
	Limiter *ratelimit.Limiter

	// Cache optionally holds enrichment reference data.
	Cache enrich.ReferenceCache
}

// DefaultConfig returns the production configuration.
func DefaultConfig() Config {
	return Config{
		CreateProductConcurrency: 30,
		DeleteProductConcurrency: 30,
		CreateOrderConcurrency:   30,
		OrderWindowConcurrency:   30,
		OrderDetailConcurrency:   16,
		ProductDetailConcurrency: 10,
		PieceStockConcurrency:    5,
		BulkStockConcurrency:     1,
		StockChunkSize:           50,
		StockLookupChunkSize:     1000,
		OrderResultChunkSize:     500,
		PageSize:                 100,
		MaxPages:                 10000,
		ScanWorkers:              4,
		WindowChunk:              timerange.DefaultChunk,
		WindowOverlap:            timerange.DefaultOverlap,
		PiecewiseVersions:        []string{"1.7.0.2"},
		Retry:                    batch.DefaultRetryPolicy(),
	}
}

// Client is the sync engine. It is safe for concurrent use.
type Client struct {
	router    *router.Router
	resource  platform.ResourceClient
	inventory *inventory.Orchestrator
	config    Config
	validate  *validator.Validate
	logger    zerolog.Logger
}

// New creates a client. Either r or resource may be nil, not both.
// Operations of a missing protocol fail with ErrNoRouter or
// ErrNoResourceClient.
func New(r *router.Router, resource platform.ResourceClient, cfg Config) (*Client, error) {
	if r == nil && resource == nil {
		return nil, errors.New("router or resource client is required")
	}
	cfg = withDefaults(cfg)

	orch := inventory.New(r, inventory.Config{
		PiecewiseVersions: cfg.PiecewiseVersions,
		ChunkSize:         cfg.StockChunkSize,
		BulkConcurrency:   cfg.BulkStockConcurrency,
		PieceConcurrency:  cfg.PieceStockConcurrency,
		PieceRetry:        cfg.Retry,
		BulkRetry:         cfg.Retry,
		Limiter:           cfg.Limiter,
	})

	return &Client{
		router:    r,
		resource:  resource,
		inventory: orch,
		config:    cfg,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		logger:    logging.NewLogger(logging.ComponentClient),
	}, nil
}

func withDefaults(cfg Config) Config {
	d := DefaultConfig()
	positive := func(v *int, def int) {
		if *v <= 0 {
			*v = def
		}
	}
	positive(&cfg.CreateProductConcurrency, d.CreateProductConcurrency)
	positive(&cfg.DeleteProductConcurrency, d.DeleteProductConcurrency)
	positive(&cfg.CreateOrderConcurrency, d.CreateOrderConcurrency)
	positive(&cfg.OrderWindowConcurrency, d.OrderWindowConcurrency)
	positive(&cfg.OrderDetailConcurrency, d.OrderDetailConcurrency)
	positive(&cfg.ProductDetailConcurrency, d.ProductDetailConcurrency)
	positive(&cfg.PieceStockConcurrency, d.PieceStockConcurrency)
	positive(&cfg.BulkStockConcurrency, d.BulkStockConcurrency)
	positive(&cfg.StockChunkSize, d.StockChunkSize)
	positive(&cfg.StockLookupChunkSize, d.StockLookupChunkSize)
	positive(&cfg.OrderResultChunkSize, d.OrderResultChunkSize)
	positive(&cfg.PageSize, d.PageSize)
	if cfg.PageSize > rest.MaxPageSize {
		cfg.PageSize = rest.MaxPageSize
	}
	positive(&cfg.MaxPages, d.MaxPages)
	positive(&cfg.ScanWorkers, d.ScanWorkers)
	if cfg.WindowChunk <= 0 {
		cfg.WindowChunk = d.WindowChunk
	}
	if cfg.WindowOverlap < 0 {
		cfg.WindowOverlap = d.WindowOverlap
	}
	if cfg.PiecewiseVersions == nil {
		cfg.PiecewiseVersions = d.PiecewiseVersions
	}
	return cfg
}

// batchConfig builds the executor settings for one call site.
func (c *Client) batchConfig(name string, concurrency int, retry bool) batch.Config {
	policy := batch.NoRetry()
	if retry {
		policy = c.config.Retry
	}
	return batch.Config{
		Name:           name,
		MaxConcurrency: concurrency,
		Retry:          policy,
		Limiter:        c.config.Limiter,
	}
}

func (c *Client) scanConfig(name string) pagination.Config {
	return pagination.Config{Name: name, PageSize: c.config.PageSize, MaxPages: c.config.MaxPages}
}

func (c *Client) enrichConfig() enrich.Config {
	cfg := enrich.DefaultConfig()
	cfg.DetailConcurrency = c.config.ProductDetailConcurrency
	cfg.MediaConcurrency = c.config.ProductDetailConcurrency
	cfg.Retry = c.config.Retry
	cfg.Limiter = c.config.Limiter
	cfg.Cache = c.config.Cache
	return cfg
}

// validateAll checks every model and joins the failures.
func validateAll[T any](v *validator.Validate, models []T) error {
	var errs []error
	for i := range models {
		if err := v.Struct(models[i]); err != nil {
			errs = append(errs, fmt.Errorf("item %d: %w", i, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidInput, errors.Join(errs...))
	}
	return nil
}

// route probes the platform and selects its adapter.
func (c *Client) route(ctx context.Context, applyLegacyOverride bool) (platform.ProtocolAdapter, error) {
	if c.router == nil {
		return nil, ErrNoRouter
	}
	_, adapter, err := c.router.ResolveAndSelect(ctx, applyLegacyOverride)
	return adapter, err
}

func (c *Client) resourceClient() (platform.ResourceClient, error) {
	if c.resource == nil {
		return nil, ErrNoResourceClient
	}
	return c.resource, nil
}
