// Package platform defines the records exchanged with a remote commerce
// platform and the capability interfaces the sync engine calls through.
//
// Transport clients live outside this package: a legacy RPC-style adapter per
// platform version implements ProtocolAdapter, and the resource-oriented
// protocol is reached through ResourceClient (see pkg/rest).
package platform

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Identity is the version/edition pair reported by the platform's core-info probe.
type Identity struct {
	Version string `json:"version"`
	Edition string `json:"edition"`
}

// Working reports whether the probe returned anything usable.
func (i Identity) Working() bool {
	return strings.TrimSpace(i.Version) != "" || strings.TrimSpace(i.Edition) != ""
}

// Category is a node of the remote category tree, flattened.
type Category struct {
	ID       int    `json:"id"`
	ParentID int    `json:"parent_id"`
	Name     string `json:"name"`
	Level    int    `json:"level"`
}

// CategoryNode is one node of the hierarchical category tree.
type CategoryNode struct {
	Category
	Children []CategoryNode `json:"children,omitempty"`
}

// Flatten returns the node and all of its descendants in depth-first order.
func (n *CategoryNode) Flatten() []Category {
	if n == nil {
		return nil
	}
	out := []Category{n.Category}
	for i := range n.Children {
		out = append(out, n.Children[i].Flatten()...)
	}
	return out
}

// CatalogRecord is a product as seen by the caller. Values are never mutated
// in place: every enrichment step returns a new record.
type CatalogRecord struct {
	EntityID         string          `json:"entity_id"`
	ProductID        string          `json:"product_id"`
	Sku              string          `json:"sku"`
	Name             string          `json:"name"`
	Qty              decimal.Decimal `json:"qty"`
	Price            decimal.Decimal `json:"price"`
	SpecialPrice     decimal.Decimal `json:"special_price"`
	Cost             decimal.Decimal `json:"cost"`
	Weight           decimal.Decimal `json:"weight"`
	Description      string          `json:"description"`
	ShortDescription string          `json:"short_description"`
	Manufacturer     string          `json:"manufacturer"`
	Upc              string          `json:"upc"`
	Images           []string        `json:"images,omitempty"`
	Categories       []Category      `json:"categories,omitempty"`
}

// ProductDetail carries the fields returned by a product-info query.
// Zero values mean "not supplied" and never overwrite a record field.
type ProductDetail struct {
	ProductID        string
	Price            decimal.Decimal
	SpecialPrice     decimal.Decimal
	Cost             decimal.Decimal
	Weight           decimal.Decimal
	Description      string
	ShortDescription string
	Manufacturer     string
	Upc              string
	CategoryIDs      []int
}

// WithDetail returns a copy of r widened by the supplied detail fields.
func (r CatalogRecord) WithDetail(d ProductDetail) CatalogRecord {
	out := r.clone()
	if !d.Price.IsZero() {
		out.Price = d.Price
	}
	if !d.SpecialPrice.IsZero() {
		out.SpecialPrice = d.SpecialPrice
	}
	if !d.Cost.IsZero() {
		out.Cost = d.Cost
	}
	if !d.Weight.IsZero() {
		out.Weight = d.Weight
	}
	if d.Description != "" {
		out.Description = d.Description
	}
	if d.ShortDescription != "" {
		out.ShortDescription = d.ShortDescription
	}
	if d.Manufacturer != "" {
		out.Manufacturer = d.Manufacturer
	}
	if d.Upc != "" {
		out.Upc = d.Upc
	}
	if len(d.CategoryIDs) > 0 {
		cats := make([]Category, 0, len(d.CategoryIDs))
		for _, id := range d.CategoryIDs {
			cats = append(cats, Category{ID: id})
		}
		out.Categories = cats
	}
	return out
}

// WithImages returns a copy of r carrying the given image URLs.
func (r CatalogRecord) WithImages(urls []string) CatalogRecord {
	out := r.clone()
	out.Images = append([]string(nil), urls...)
	return out
}

// WithManufacturer returns a copy of r with the manufacturer label replaced.
func (r CatalogRecord) WithManufacturer(label string) CatalogRecord {
	out := r.clone()
	out.Manufacturer = label
	return out
}

// WithCategories returns a copy of r with the category list replaced.
func (r CatalogRecord) WithCategories(cats []Category) CatalogRecord {
	out := r.clone()
	out.Categories = append([]Category(nil), cats...)
	return out
}

func (r CatalogRecord) clone() CatalogRecord {
	out := r
	if r.Images != nil {
		out.Images = append([]string(nil), r.Images...)
	}
	if r.Categories != nil {
		out.Categories = append([]Category(nil), r.Categories...)
	}
	return out
}

// ProductSummary is one row of the legacy catalog listing.
type ProductSummary struct {
	ProductID string `json:"product_id"`
	Sku       string `json:"sku"`
	Name      string `json:"name"`
}

// StockItem is one row of a stock-item query on either protocol.
type StockItem struct {
	ItemID     string          `json:"item_id"`
	ProductID  string          `json:"product_id"`
	Sku        string          `json:"sku"`
	Qty        decimal.Decimal `json:"qty"`
	BackOrders int             `json:"backorders"`
}

// ResourceProduct is one row of the resource protocol's product listing.
type ResourceProduct struct {
	EntityID    string          `json:"entity_id"`
	Sku         string          `json:"sku"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description"`
}

// MediaList holds the images attached to one product.
type MediaList struct {
	ProductID string
	URLs      []string
}

// AttributeOption maps a stored attribute code to its display label.
type AttributeOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// OrderLine is one item of an order.
type OrderLine struct {
	Sku   string          `json:"sku"`
	Name  string          `json:"name"`
	Qty   decimal.Decimal `json:"qty"`
	Price decimal.Decimal `json:"price"`
}

// OrderRecord is an order. Brief listings fill only identity, status and dates;
// detail fetches fill the rest. Identity is (OrderID, IncrementID).
type OrderRecord struct {
	OrderID       string          `json:"order_id"`
	IncrementID   string          `json:"increment_id"`
	Status        string          `json:"status"`
	CustomerEmail string          `json:"customer_email,omitempty"`
	GrandTotal    decimal.Decimal `json:"grand_total"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Lines         []OrderLine     `json:"lines,omitempty"`
}

// InventoryItem is one stock update requested by the caller.
type InventoryItem struct {
	ItemID    string `json:"item_id" validate:"required"`
	ProductID string `json:"product_id"`
	Sku       string `json:"sku,omitempty"`
	Qty       int64  `json:"qty"`
	MinQty    int64  `json:"min_qty"`
	StockID   string `json:"stock_id"`
}

// InventoryBySku is a stock update addressed by SKU. The engine resolves the
// SKU to a stock item before writing.
type InventoryBySku struct {
	Sku string `json:"sku" validate:"required"`
	Qty int64  `json:"qty"`
}

// StatusOK is the per-item response code of a successful stock write.
const StatusOK = 200

// StockWriteResult is the remote verdict for one written stock item.
type StockWriteResult struct {
	ItemID    string `json:"item_id"`
	ProductID string `json:"product_id"`
	Code      int    `json:"code"`
	Message   string `json:"message,omitempty"`
}

// Succeeded reports whether the platform accepted the write.
func (r StockWriteResult) Succeeded() bool {
	return r.Code == StatusOK
}
