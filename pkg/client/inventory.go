package client

import (
	"context"
	"strings"

	"github.com/Sternrassler/storesync/pkg/identity"
	"github.com/Sternrassler/storesync/pkg/inventory"
	"github.com/Sternrassler/storesync/pkg/platform"
)

// UpdateInventory writes stock levels, one call per item on platforms that
// reject bulk writes and in chunks otherwise. When any item fails the error
// wraps an *inventory.UpdateError listing failed and updated items.
func (c *Client) UpdateInventory(ctx context.Context, items []platform.InventoryItem) error {
	op := c.begin(OpUpdateInventory, items)
	rep, err := c.updateInventory(ctx, items)
	return op.finish(err, len(rep.Updated))
}

func (c *Client) updateInventory(ctx context.Context, items []platform.InventoryItem) (inventory.Report, error) {
	if err := validateAll(c.validate, items); err != nil {
		return inventory.Report{}, err
	}
	if c.router == nil {
		return inventory.Report{}, ErrNoRouter
	}
	return c.inventory.Update(ctx, items)
}

// UpdateInventoryResource writes stock levels through the resource protocol
// in chunks.
func (c *Client) UpdateInventoryResource(ctx context.Context, items []platform.InventoryItem) error {
	op := c.begin(OpUpdateInventoryResource, items)
	rep, err := c.updateInventoryResource(ctx, items)
	return op.finish(err, len(rep.Updated))
}

func (c *Client) updateInventoryResource(ctx context.Context, items []platform.InventoryItem) (inventory.Report, error) {
	if err := validateAll(c.validate, items); err != nil {
		return inventory.Report{}, err
	}
	if len(items) == 0 {
		return inventory.Report{}, nil
	}
	rc, err := c.resourceClient()
	if err != nil {
		return inventory.Report{}, err
	}
	return c.inventory.WriteBulk(ctx, rc, items)
}

// UpdateInventoryBySku resolves SKUs to products and writes the caller's
// quantities through the legacy protocol, which addresses stock by product
// id. SKUs the platform does not know are skipped.
func (c *Client) UpdateInventoryBySku(ctx context.Context, items []platform.InventoryBySku) error {
	op := c.begin(OpUpdateInventoryBySku, items)
	rep, err := c.updateInventoryBySku(ctx, op, items)
	return op.finish(err, len(rep.Updated))
}

func (c *Client) updateInventoryBySku(ctx context.Context, op *operation, items []platform.InventoryBySku) (inventory.Report, error) {
	if err := validateAll(c.validate, items); err != nil {
		return inventory.Report{}, err
	}
	if len(items) == 0 {
		return inventory.Report{}, nil
	}

	var known []platform.CatalogRecord
	if c.config.LegacyOnly {
		adapter, err := c.route(ctx, true)
		if err != nil {
			return inventory.Report{}, err
		}
		skus := make([]string, 0, len(items))
		for _, it := range items {
			skus = append(skus, it.Sku)
		}
		stock, err := c.stockBySku(ctx, adapter, skus)
		if err != nil {
			return inventory.Report{}, err
		}
		for _, s := range stock {
			known = append(known, platform.CatalogRecord{EntityID: s.ProductID, ProductID: s.ProductID, Sku: s.Sku})
		}
	} else {
		var err error
		known, err = c.resourceCatalog(ctx)
		if err != nil {
			return inventory.Report{}, err
		}
	}

	updates, unknown := resolveSkus(items, known)
	if len(unknown) > 0 {
		op.logger.Warn().Strs("skus", unknown).Msg("Unknown SKUs skipped")
	}
	if len(updates) > 0 && c.router == nil {
		return inventory.Report{}, ErrNoRouter
	}
	return c.inventory.Update(ctx, updates)
}

// resolveSkus pairs caller quantities with the product ids of known records,
// the id legacy stock writes address whichever catalog resolved the SKU.
// SKUs compare case-insensitively; the first record of a SKU wins.
func resolveSkus(items []platform.InventoryBySku, known []platform.CatalogRecord) ([]platform.InventoryItem, []string) {
	bySku := identity.Index(known, func(r platform.CatalogRecord) string {
		return strings.ToLower(strings.TrimSpace(r.Sku))
	})

	var updates []platform.InventoryItem
	var unknown []string
	for _, it := range items {
		rec, ok := bySku[strings.ToLower(strings.TrimSpace(it.Sku))]
		if !ok {
			unknown = append(unknown, it.Sku)
			continue
		}
		updates = append(updates, platform.InventoryItem{
			ItemID:    rec.ProductID,
			ProductID: rec.ProductID,
			Sku:       it.Sku,
			Qty:       it.Qty,
		})
	}
	return updates, unknown
}
