// Package enrich widens bare catalog records with pricing, media,
// manufacturer and category detail.
//
// Four remote queries run concurrently (product info, media, category tree,
// manufacturer options), then four ordered left-outer-join passes apply
// them. A record without a matching detail row passes through unchanged.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Sternrassler/storesync/pkg/batch"
	"github.com/Sternrassler/storesync/pkg/logging"
	"github.com/Sternrassler/storesync/pkg/platform"
	"github.com/Sternrassler/storesync/pkg/ratelimit"
)

// Attribute codes requested with product info.
const (
	AttributeCost         = "cost"
	AttributeManufacturer = "manufacturer"
	AttributeUpc          = "upc"
)

// Cache keys for reference data.
const (
	cacheKeyCategoryTree = "category-tree"
	cacheKeyOptionsFmt   = "attribute-options:%s"
)

// DetailSource is the part of a catalog reader the pipeline queries.
type DetailSource interface {
	ProductInfo(ctx context.Context, productID string, attributes []string) (*platform.ProductDetail, error)
	MediaList(ctx context.Context, productID string) (*platform.MediaList, error)
	CategoryTree(ctx context.Context) (*platform.CategoryNode, error)
	AttributeOptions(ctx context.Context, attribute string) ([]platform.AttributeOption, error)
}

// ReferenceCache stores slowly changing reference data between runs.
type ReferenceCache interface {
	Load(ctx context.Context, key string, dst any) (bool, error)
	Store(ctx context.Context, key string, value any) error
}

// Config holds pipeline configuration.
type Config struct {
	// Attributes are the custom attributes requested with product info.
	Attributes []string

	// ManufacturerAttribute names the option table used for labels.
	ManufacturerAttribute string

	// DetailConcurrency caps concurrent product-info calls.
	DetailConcurrency int

	// MediaConcurrency caps concurrent media calls.
	MediaConcurrency int

	// Retry applies to every per-product call.
	Retry batch.RetryPolicy

	// Limiter optionally paces per-product calls.
	Limiter *ratelimit.Limiter

	// Cache optionally holds the category tree and option tables.
	Cache ReferenceCache
}

// DefaultConfig returns the production configuration.
func DefaultConfig() Config {
	return Config{
		Attributes:            []string{AttributeCost, AttributeManufacturer, AttributeUpc},
		ManufacturerAttribute: AttributeManufacturer,
		DetailConcurrency:     10,
		MediaConcurrency:      10,
		Retry:                 batch.DefaultRetryPolicy(),
	}
}

// Pipeline runs the enrichment passes against one detail source.
type Pipeline struct {
	src    DetailSource
	config Config
	logger zerolog.Logger
}

// New creates a pipeline.
func New(src DetailSource, cfg Config) *Pipeline {
	d := DefaultConfig()
	if cfg.Attributes == nil {
		cfg.Attributes = d.Attributes
	}
	if cfg.ManufacturerAttribute == "" {
		cfg.ManufacturerAttribute = d.ManufacturerAttribute
	}
	if cfg.DetailConcurrency <= 0 {
		cfg.DetailConcurrency = d.DetailConcurrency
	}
	if cfg.MediaConcurrency <= 0 {
		cfg.MediaConcurrency = d.MediaConcurrency
	}

	return &Pipeline{
		src:    src,
		config: cfg,
		logger: logging.NewLogger(logging.ComponentEnrich),
	}
}

// sources holds the results of the four detail queries.
type sources struct {
	details map[string]platform.ProductDetail
	media   map[string][]string
	tree    []platform.Category
	options []platform.AttributeOption
}

// Enrich returns new records widened by every detail source. Records are
// never mutated. A product without detail, media or category match keeps
// its base fields.
func (p *Pipeline) Enrich(ctx context.Context, records []platform.CatalogRecord) ([]platform.CatalogRecord, error) {
	if len(records) == 0 {
		return nil, nil
	}
	start := time.Now()

	src, err := p.fetch(ctx, records)
	if err != nil {
		return nil, err
	}

	// Strictly ordered: category filtering reads the ids set by JoinDetails.
	out := JoinDetails(records, src.details)
	out = JoinImages(out, src.media)
	out = JoinManufacturers(out, src.options)
	out = FilterCategories(out, src.tree)

	p.logger.Debug().
		Int("records", len(out)).
		Int("details", len(src.details)).
		Int("media", len(src.media)).
		Int("categories", len(src.tree)).
		Int("manufacturers", len(src.options)).
		Dur("duration", time.Since(start)).
		Msg("Enrichment complete")

	return out, nil
}

func (p *Pipeline) fetch(ctx context.Context, records []platform.CatalogRecord) (sources, error) {
	var src sources
	ids := productIDs(records)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		opts, err := p.manufacturerOptions(gctx)
		src.options = opts
		return err
	})
	g.Go(func() error {
		details, err := p.productDetails(gctx, ids)
		src.details = details
		return err
	})
	g.Go(func() error {
		media, err := p.mediaLists(gctx, ids)
		src.media = media
		return err
	})
	g.Go(func() error {
		tree, err := p.categoryTree(gctx)
		src.tree = tree
		return err
	})

	if err := g.Wait(); err != nil {
		return sources{}, fmt.Errorf("enrich: %w", err)
	}
	return src, nil
}

func (p *Pipeline) productDetails(ctx context.Context, ids []string) (map[string]platform.ProductDetail, error) {
	res := batch.Run(ctx, p.batchConfig("product-info", p.config.DetailConcurrency), ids,
		func(ctx context.Context, id string) (*platform.ProductDetail, error) {
			return missToNil(p.src.ProductInfo(ctx, id, p.config.Attributes))
		})
	if err := res.Err(); err != nil {
		return nil, err
	}

	out := make(map[string]platform.ProductDetail, len(res.Succeeded))
	for _, o := range res.Succeeded {
		if o.Value != nil {
			out[o.Item] = *o.Value
		}
	}
	return out, nil
}

func (p *Pipeline) mediaLists(ctx context.Context, ids []string) (map[string][]string, error) {
	res := batch.Run(ctx, p.batchConfig("media-list", p.config.MediaConcurrency), ids,
		func(ctx context.Context, id string) (*platform.MediaList, error) {
			return missToNil(p.src.MediaList(ctx, id))
		})
	if err := res.Err(); err != nil {
		return nil, err
	}

	out := make(map[string][]string, len(res.Succeeded))
	for _, o := range res.Succeeded {
		if o.Value != nil {
			out[o.Item] = o.Value.URLs
		}
	}
	return out, nil
}

func (p *Pipeline) categoryTree(ctx context.Context) ([]platform.Category, error) {
	var root *platform.CategoryNode
	if p.cacheLoad(ctx, cacheKeyCategoryTree, &root) {
		return root.Flatten(), nil
	}

	root, err := p.src.CategoryTree(ctx)
	if err != nil {
		return nil, fmt.Errorf("category tree: %w", err)
	}
	p.cacheStore(ctx, cacheKeyCategoryTree, root)
	return root.Flatten(), nil
}

func (p *Pipeline) manufacturerOptions(ctx context.Context) ([]platform.AttributeOption, error) {
	key := fmt.Sprintf(cacheKeyOptionsFmt, p.config.ManufacturerAttribute)
	var opts []platform.AttributeOption
	if p.cacheLoad(ctx, key, &opts) {
		return opts, nil
	}

	opts, err := p.src.AttributeOptions(ctx, p.config.ManufacturerAttribute)
	if err != nil {
		return nil, fmt.Errorf("attribute options %s: %w", p.config.ManufacturerAttribute, err)
	}
	p.cacheStore(ctx, key, opts)
	return opts, nil
}

// cacheLoad reports a hit. Cache failures are logged and treated as misses.
func (p *Pipeline) cacheLoad(ctx context.Context, key string, dst any) bool {
	if p.config.Cache == nil {
		return false
	}
	ok, err := p.config.Cache.Load(ctx, key, dst)
	if err != nil {
		p.logger.Warn().Err(err).Str("key", key).Msg("Reference cache load failed")
		return false
	}
	return ok
}

func (p *Pipeline) cacheStore(ctx context.Context, key string, value any) {
	if p.config.Cache == nil {
		return
	}
	if err := p.config.Cache.Store(ctx, key, value); err != nil {
		p.logger.Warn().Err(err).Str("key", key).Msg("Reference cache store failed")
	}
}

func (p *Pipeline) batchConfig(name string, concurrency int) batch.Config {
	return batch.Config{
		Name:           name,
		MaxConcurrency: concurrency,
		Retry:          p.config.Retry,
		Limiter:        p.config.Limiter,
	}
}

// missToNil turns ErrNotFound into an empty, successful result.
func missToNil[T any](v *T, err error) (*T, error) {
	if errors.Is(err, platform.ErrNotFound) {
		return nil, nil
	}
	return v, err
}

func productIDs(records []platform.CatalogRecord) []string {
	seen := make(map[string]bool, len(records))
	ids := make([]string, 0, len(records))
	for _, r := range records {
		if r.ProductID == "" || seen[r.ProductID] {
			continue
		}
		seen[r.ProductID] = true
		ids = append(ids, r.ProductID)
	}
	return ids
}
