package client

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/Sternrassler/storesync/pkg/batch"
	"github.com/Sternrassler/storesync/pkg/enrich"
	"github.com/Sternrassler/storesync/pkg/identity"
	"github.com/Sternrassler/storesync/pkg/inventory"
	"github.com/Sternrassler/storesync/pkg/pagination"
	"github.com/Sternrassler/storesync/pkg/platform"
)

// CreateProducts creates every product. Each creation is retried on
// transient failure; products that still fail are reported in a partial
// failure next to the created ones.
func (c *Client) CreateProducts(ctx context.Context, models []platform.CreateProductRequest) ([]platform.CreateProductResult, error) {
	op := c.begin(OpCreateProducts, models)
	out, err := c.createProducts(ctx, op, models)
	return out, op.finish(err, len(out))
}

func (c *Client) createProducts(ctx context.Context, op *operation, models []platform.CreateProductRequest) ([]platform.CreateProductResult, error) {
	if err := validateAll(c.validate, models); err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}

	adapter, err := c.route(ctx, false)
	if err != nil {
		return nil, err
	}

	res := batch.Run(ctx, c.batchConfig("create-product", c.config.CreateProductConcurrency, true), models,
		func(ctx context.Context, m platform.CreateProductRequest) (platform.CreateProductResult, error) {
			op.trace("Creating product", m)
			id, err := adapter.CreateProduct(ctx, m.StoreID, m.Name, m.Sku, m.IsInStock)
			if err != nil {
				return platform.CreateProductResult{}, err
			}
			result := platform.CreateProductResult{Request: m, ProductID: id}
			op.trace("Product created", result)
			return result, nil
		})
	return res.Values(), res.Err()
}

// DeleteProducts deletes every product. Deletes are not retried.
func (c *Client) DeleteProducts(ctx context.Context, models []platform.DeleteProductRequest) ([]platform.DeleteProductResult, error) {
	op := c.begin(OpDeleteProducts, models)
	out, err := c.deleteProducts(ctx, op, models)
	return out, op.finish(err, len(out))
}

func (c *Client) deleteProducts(ctx context.Context, op *operation, models []platform.DeleteProductRequest) ([]platform.DeleteProductResult, error) {
	if err := validateAll(c.validate, models); err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}

	adapter, err := c.route(ctx, false)
	if err != nil {
		return nil, err
	}

	res := batch.Run(ctx, c.batchConfig("delete-product", c.config.DeleteProductConcurrency, false), models,
		func(ctx context.Context, m platform.DeleteProductRequest) (platform.DeleteProductResult, error) {
			op.trace("Deleting product", m)
			ok, err := adapter.DeleteProduct(ctx, m.StoreID, m.CategoryID, m.ProductID, m.IdentifierType)
			if err != nil {
				return platform.DeleteProductResult{}, err
			}
			result := platform.DeleteProductResult{Request: m, Deleted: ok}
			op.trace("Product deleted", result)
			return result, nil
		})
	return res.Values(), res.Err()
}

// GetProductsSimple scans the resource product listing without stock or
// detail.
func (c *Client) GetProductsSimple(ctx context.Context) ([]platform.CatalogRecord, error) {
	op := c.begin(OpGetProductsSimple, nil)
	out, err := c.getProductsSimple(ctx)
	return out, op.finish(err, len(out))
}

func (c *Client) getProductsSimple(ctx context.Context) ([]platform.CatalogRecord, error) {
	rc, err := c.resourceClient()
	if err != nil {
		return nil, err
	}

	products, err := pagination.ScanAll(ctx, c.scanConfig("resource-products"), identity.ResourceProductKey,
		retryFetch(c, "resource-products", rc.Products))
	if err != nil {
		return nil, err
	}

	out := make([]platform.CatalogRecord, 0, len(products))
	for _, p := range products {
		out = append(out, platform.CatalogRecord{
			EntityID:    p.EntityID,
			ProductID:   p.EntityID,
			Sku:         p.Sku,
			Name:        p.Name,
			Price:       p.Price,
			Description: p.Description,
		})
	}
	return out, nil
}

// GetProducts lists the catalog through the legacy protocol joined with
// stock levels. With includeDetails the records run through the enrichment
// pipeline.
func (c *Client) GetProducts(ctx context.Context, includeDetails bool) ([]platform.CatalogRecord, error) {
	op := c.begin(OpGetProducts, map[string]bool{"include_details": includeDetails})
	out, err := c.getProducts(ctx, includeDetails)
	return out, op.finish(err, len(out))
}

func (c *Client) getProducts(ctx context.Context, includeDetails bool) ([]platform.CatalogRecord, error) {
	adapter, err := c.route(ctx, false)
	if err != nil {
		return nil, err
	}

	var products []platform.ProductSummary
	if _, err := batch.Retry(ctx, "product-list", c.config.Retry, func() error {
		var err error
		products, err = adapter.Products(ctx)
		return err
	}); err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, nil
	}

	skus := make([]string, 0, len(products))
	for _, p := range products {
		skus = append(skus, p.Sku)
	}
	stock, err := c.stockBySku(ctx, adapter, skus)
	if err != nil {
		return nil, err
	}

	records := joinLegacyCatalog(products, stock)
	if !includeDetails {
		return records, nil
	}
	return enrich.New(adapter, c.enrichConfig()).Enrich(ctx, records)
}

// stockBySku looks SKUs up in chunks, one chunk at a time.
func (c *Client) stockBySku(ctx context.Context, adapter platform.CatalogReader, skus []string) ([]platform.StockItem, error) {
	var stock []platform.StockItem
	for _, chunk := range inventory.Chunk(skus, c.config.StockLookupChunkSize) {
		var rows []platform.StockItem
		if _, err := batch.Retry(ctx, "stock-lookup", c.config.Retry, func() error {
			var err error
			rows, err = adapter.StockItems(ctx, chunk)
			return err
		}); err != nil {
			return nil, err
		}
		stock = append(stock, rows...)
	}
	return stock, nil
}

// joinLegacyCatalog inner-joins stock rows to products on product id. The
// record's EntityID is the id legacy stock writes address: the product id.
func joinLegacyCatalog(products []platform.ProductSummary, stock []platform.StockItem) []platform.CatalogRecord {
	byID := identity.Index(products, func(p platform.ProductSummary) string { return p.ProductID })

	out := make([]platform.CatalogRecord, 0, len(stock))
	for _, s := range stock {
		p, ok := byID[s.ProductID]
		if !ok {
			continue
		}
		out = append(out, platform.CatalogRecord{
			EntityID:  s.ProductID,
			ProductID: p.ProductID,
			Sku:       p.Sku,
			Name:      p.Name,
			Qty:       s.Qty,
		})
	}
	return out
}

// FillProductDetails runs the enrichment pipeline over caller records.
func (c *Client) FillProductDetails(ctx context.Context, records []platform.CatalogRecord) ([]platform.CatalogRecord, error) {
	op := c.begin(OpFillProductDetails, len(records))
	out, err := c.fillProductDetails(ctx, records)
	return out, op.finish(err, len(out))
}

func (c *Client) fillProductDetails(ctx context.Context, records []platform.CatalogRecord) ([]platform.CatalogRecord, error) {
	if len(records) == 0 {
		return nil, nil
	}
	adapter, err := c.route(ctx, false)
	if err != nil {
		return nil, err
	}
	return enrich.New(adapter, c.enrichConfig()).Enrich(ctx, records)
}

// resourceCatalog scans stock items and products of the resource protocol
// concurrently and inner-joins them on product id. The record's EntityID is
// the stock item id.
func (c *Client) resourceCatalog(ctx context.Context) ([]platform.CatalogRecord, error) {
	rc, err := c.resourceClient()
	if err != nil {
		return nil, err
	}

	var stock []platform.StockItem
	var products []platform.ResourceProduct

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		stock, err = pagination.ScanAll(gctx, c.scanConfig("resource-stock"), identity.StockKey,
			retryFetch(c, "resource-stock", rc.StockItems))
		if err != nil {
			return fmt.Errorf("scan stock items: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		cfg := pagination.ParallelConfig{Config: c.scanConfig("resource-products-parallel"), Workers: c.config.ScanWorkers}
		products, err = pagination.ScanParallel(gctx, cfg, identity.ResourceProductKey,
			retryFetch(c, "resource-products", rc.Products))
		if err != nil {
			return fmt.Errorf("scan products: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byEntity := identity.Index(products, identity.ResourceProductKey)
	out := make([]platform.CatalogRecord, 0, len(stock))
	for _, s := range stock {
		p, ok := byEntity[s.ProductID]
		if !ok {
			continue
		}
		out = append(out, platform.CatalogRecord{
			EntityID:    s.ItemID,
			ProductID:   s.ProductID,
			Sku:         p.Sku,
			Name:        p.Name,
			Qty:         s.Qty,
			Price:       p.Price,
			Description: p.Description,
		})
	}
	return out, nil
}

// retryFetch wraps a page fetch in the client's retry policy.
func retryFetch[T any](c *Client, name string, fetch pagination.FetchFunc[T]) pagination.FetchFunc[T] {
	return func(ctx context.Context, page, limit int) ([]T, error) {
		var rows []T
		_, err := batch.Retry(ctx, name, c.config.Retry, func() error {
			var err error
			rows, err = fetch(ctx, page, limit)
			return err
		})
		return rows, err
	}
}
