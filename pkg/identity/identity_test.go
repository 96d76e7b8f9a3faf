package identity

import (
	"testing"

	"github.com/Sternrassler/storesync/pkg/platform"
	"github.com/shopspring/decimal"
)

func TestDistinct_OrdersByIdentity(t *testing.T) {
	first := []platform.OrderRecord{
		{OrderID: "1", IncrementID: "100000001", Status: "pending"},
		{OrderID: "2", IncrementID: "100000002"},
	}
	second := []platform.OrderRecord{
		{OrderID: "2", IncrementID: "100000002", Status: "processing"},
		{OrderID: "3", IncrementID: "100000003"},
		{OrderID: "1", IncrementID: "100000001"},
	}

	merged := Distinct(append(append([]platform.OrderRecord{}, first...), second...), OrderKey)

	if len(merged) != 3 {
		t.Fatalf("Distinct returned %d orders, want 3", len(merged))
	}
	counts := map[OrderID]int{}
	for _, o := range merged {
		counts[OrderKey(o)]++
	}
	for id, n := range counts {
		if n != 1 {
			t.Errorf("identity %+v appears %d times", id, n)
		}
	}
	if merged[0].Status != "pending" {
		t.Errorf("first occurrence should win, got status %q", merged[0].Status)
	}
}

func TestOrderKey_RequiresBothHalves(t *testing.T) {
	a := platform.OrderRecord{OrderID: "1", IncrementID: "100000001"}
	b := platform.OrderRecord{OrderID: "1", IncrementID: "100000009"}
	if OrderKey(a) == OrderKey(b) {
		t.Error("orders sharing only OrderID must not be equal")
	}
}

func TestIntersectAndSubtract(t *testing.T) {
	prev := []platform.ResourceProduct{{EntityID: "1"}, {EntityID: "2"}, {EntityID: "3"}}
	cur := []platform.ResourceProduct{{EntityID: "3"}, {EntityID: "4"}}

	repeated := Intersect(cur, prev, ResourceProductKey)
	if len(repeated) != 1 || repeated[0].EntityID != "3" {
		t.Errorf("Intersect = %+v, want [3]", repeated)
	}

	fresh := Subtract(cur, prev, ResourceProductKey)
	if len(fresh) != 1 || fresh[0].EntityID != "4" {
		t.Errorf("Subtract = %+v, want [4]", fresh)
	}
}

func TestStockKey(t *testing.T) {
	a := platform.StockItem{ItemID: "7", Qty: decimal.RequireFromString("5.0000"), BackOrders: 0}
	b := platform.StockItem{ItemID: "7", Qty: decimal.NewFromInt(5), BackOrders: 0}
	c := platform.StockItem{ItemID: "7", Qty: decimal.NewFromInt(6), BackOrders: 0}

	if StockKey(a) != StockKey(b) {
		t.Errorf("equal quantities should share a key: %+v vs %+v", StockKey(a), StockKey(b))
	}
	if StockKey(a) == StockKey(c) {
		t.Error("different quantities should not share a key")
	}
}

func TestIndexKeepsFirst(t *testing.T) {
	idx := Index([]platform.CatalogRecord{
		{ProductID: "1", Name: "first"},
		{ProductID: "1", Name: "second"},
	}, CatalogKey)
	if idx["1"].Name != "first" {
		t.Errorf("Index kept %q, want first", idx["1"].Name)
	}
}
