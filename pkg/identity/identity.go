// Package identity provides identity-based equality for records returned by
// the platform. Pagination, window merging and joins all compare records
// through a key function rather than by value.
package identity

import (
	"github.com/Sternrassler/storesync/pkg/platform"
	"github.com/shopspring/decimal"
)

// KeyFunc extracts the identity of a record.
type KeyFunc[T any, K comparable] func(T) K

// Distinct returns items with later duplicates removed. The first occurrence
// of every identity wins and input order is preserved.
func Distinct[T any, K comparable](items []T, key KeyFunc[T, K]) []T {
	seen := make(map[K]struct{}, len(items))
	out := make([]T, 0, len(items))
	for _, it := range items {
		k := key(it)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, it)
	}
	return out
}

// Intersect returns the items of a whose identity also appears in b.
func Intersect[T any, K comparable](a, b []T, key KeyFunc[T, K]) []T {
	in := Set(b, key)
	var out []T
	for _, it := range a {
		if _, ok := in[key(it)]; ok {
			out = append(out, it)
		}
	}
	return out
}

// Subtract returns the items of a whose identity does not appear in b.
func Subtract[T any, K comparable](a, b []T, key KeyFunc[T, K]) []T {
	in := Set(b, key)
	out := make([]T, 0, len(a))
	for _, it := range a {
		if _, ok := in[key(it)]; !ok {
			out = append(out, it)
		}
	}
	return out
}

// Set returns the identities present in items.
func Set[T any, K comparable](items []T, key KeyFunc[T, K]) map[K]struct{} {
	set := make(map[K]struct{}, len(items))
	for _, it := range items {
		set[key(it)] = struct{}{}
	}
	return set
}

// Index maps every identity to its first record.
func Index[T any, K comparable](items []T, key KeyFunc[T, K]) map[K]T {
	idx := make(map[K]T, len(items))
	for _, it := range items {
		k := key(it)
		if _, ok := idx[k]; !ok {
			idx[k] = it
		}
	}
	return idx
}

// OrderID identifies an order. The platform can return the same order from
// overlapping time windows; both halves must match.
type OrderID struct {
	OrderID     string
	IncrementID string
}

// OrderKey is the identity of an order record.
func OrderKey(o platform.OrderRecord) OrderID {
	return OrderID{OrderID: o.OrderID, IncrementID: o.IncrementID}
}

// ResourceProductKey is the identity of a resource-protocol product row.
func ResourceProductKey(p platform.ResourceProduct) string {
	return p.EntityID
}

// CatalogKey is the identity of a catalog record.
func CatalogKey(r platform.CatalogRecord) string {
	return r.ProductID
}

// StockID identifies a stock row during scans. Quantity and backorder flag
// are part of it: a row re-served unchanged is a repeat, a changed one is not.
type StockID struct {
	ItemID     string
	BackOrders int
	Qty        string
}

// StockKey is the scan identity of a stock row.
func StockKey(s platform.StockItem) StockID {
	return StockID{ItemID: s.ItemID, BackOrders: s.BackOrders, Qty: normalizeQty(s.Qty)}
}

func normalizeQty(d decimal.Decimal) string {
	return d.String()
}
