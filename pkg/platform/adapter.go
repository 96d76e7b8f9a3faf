package platform

import (
	"context"
	"time"
)

// Prober reports the platform's version and edition.
type Prober interface {
	PlatformInfo(ctx context.Context) (Identity, error)
}

// CatalogReader lists products and their detail sources.
type CatalogReader interface {
	// Products returns the full catalog listing.
	Products(ctx context.Context) ([]ProductSummary, error)
	// StockItems returns stock rows for the given SKUs.
	StockItems(ctx context.Context, skus []string) ([]StockItem, error)
	// ProductInfo returns detail for one product restricted to the given
	// custom attributes. ErrNotFound means the platform has no detail.
	ProductInfo(ctx context.Context, productID string, attributes []string) (*ProductDetail, error)
	// MediaList returns image URLs for one product.
	MediaList(ctx context.Context, productID string) (*MediaList, error)
	// CategoryTree returns the root of the category tree, or nil if none.
	CategoryTree(ctx context.Context) (*CategoryNode, error)
	// AttributeOptions returns the option table for one attribute.
	AttributeOptions(ctx context.Context, attribute string) ([]AttributeOption, error)
}

// OrderReader lists orders and fetches order detail.
type OrderReader interface {
	// Orders returns brief orders created or updated within [from, to].
	Orders(ctx context.Context, from, to time.Time) ([]OrderRecord, error)
	// Order returns the full order for one increment id.
	Order(ctx context.Context, incrementID string) (*OrderRecord, error)
}

// CatalogWriter creates and deletes products.
type CatalogWriter interface {
	CreateProduct(ctx context.Context, storeID, name, sku string, inStock bool) (string, error)
	DeleteProduct(ctx context.Context, storeID string, categoryID int, productID, identifierType string) (bool, error)
}

// StockWriter writes stock levels.
type StockWriter interface {
	// PutStockItem writes a single item and reports whether it was accepted.
	PutStockItem(ctx context.Context, item InventoryItem) (bool, error)
	// PutStockItems writes a batch and returns one verdict per item.
	PutStockItems(ctx context.Context, items []InventoryItem) ([]StockWriteResult, error)
}

// CartBuilder is the step sequence that turns a guest cart into an order.
type CartBuilder interface {
	CreateCart(ctx context.Context, storeID string) (string, error)
	SetCartCustomer(ctx context.Context, cartID string, customer Customer, storeID string) error
	SetCartAddress(ctx context.Context, cartID, storeID string) error
	AddCartProduct(ctx context.Context, cartID, productID, storeID string) error
	SetCartShipping(ctx context.Context, cartID, storeID string) error
	SetCartPayment(ctx context.Context, cartID, storeID string) error
	PlaceOrder(ctx context.Context, cartID, storeID string) (string, error)
}

// ProtocolAdapter is the full capability set of one legacy protocol/version
// combination. Implementations must be safe for concurrent use.
type ProtocolAdapter interface {
	Prober
	CatalogReader
	OrderReader
	CatalogWriter
	StockWriter
	CartBuilder
}

// ResourceClient is the resource-oriented protocol surface. Paged listings use
// 1-based pages and a fixed page size; the platform may re-serve its last
// page for any page number past the end.
type ResourceClient interface {
	Products(ctx context.Context, page, limit int) ([]ResourceProduct, error)
	StockItems(ctx context.Context, page, limit int) ([]StockItem, error)
	Orders(ctx context.Context) ([]OrderRecord, error)
	PutStockItems(ctx context.Context, items []InventoryItem) ([]StockWriteResult, error)
}
