// Package testutil provides in-memory platform fakes and a mock store server
// for tests.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Sternrassler/storesync/pkg/platform"
)

// ErrInjected is the transient failure returned by fakes when told to fail.
var ErrInjected = errors.New("injected failure")

// FakeAdapter is an in-memory platform.ProtocolAdapter. Fields are read under
// a mutex so tests may configure it before use; counters are safe to read
// while calls are in flight.
type FakeAdapter struct {
	Name string

	Identity platform.Identity
	ProbeErr error

	ProductList []platform.ProductSummary
	Stock       []platform.StockItem
	Details     map[string]platform.ProductDetail
	Media       map[string][]string
	Tree        *platform.CategoryNode
	Options     map[string][]platform.AttributeOption
	OrderList   []platform.OrderRecord

	// FailTimes makes the named call fail transiently that many times
	// per key before succeeding. Keys are "Op" or "Op:arg".
	FailTimes map[string]int

	// FailAlways makes the named call fail with the given error.
	FailAlways map[string]error

	// StockItemsChunkLimit rejects StockItems calls with more SKUs.
	StockItemsChunkLimit int

	// BulkVerdict decides the code of each item in PutStockItems.
	// Defaults to platform.StatusOK for every item.
	BulkVerdict func(platform.InventoryItem) int

	// Delay is slept at the start of every call.
	Delay time.Duration

	mu          sync.Mutex
	calls       map[string]int
	failed      map[string]int
	written     []platform.InventoryItem
	bulkBatches [][]platform.InventoryItem
	carts       map[string]*fakeCart
	nextID      atomic.Int64

	inFlight     atomic.Int32
	peakInFlight atomic.Int32
}

type fakeCart struct {
	storeID  string
	customer platform.Customer
	products []string
	steps    []string
}

// NewFakeAdapter returns an adapter reporting the given version and edition.
func NewFakeAdapter(name, version, edition string) *FakeAdapter {
	return &FakeAdapter{
		Name:     name,
		Identity: platform.Identity{Version: version, Edition: edition},
	}
}

// Calls returns how often op was invoked.
func (f *FakeAdapter) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// PeakInFlight returns the highest number of concurrent calls observed.
func (f *FakeAdapter) PeakInFlight() int {
	return int(f.peakInFlight.Load())
}

// Written returns the items accepted by PutStockItem.
func (f *FakeAdapter) Written() []platform.InventoryItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]platform.InventoryItem(nil), f.written...)
}

// BulkBatches returns the item batches passed to PutStockItems.
func (f *FakeAdapter) BulkBatches() [][]platform.InventoryItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]platform.InventoryItem(nil), f.bulkBatches...)
}

// CartSteps returns the step names recorded for a cart.
func (f *FakeAdapter) CartSteps(cartID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.carts[cartID]; ok {
		return append([]string(nil), c.steps...)
	}
	return nil
}

// enter records a call and applies injected failures.
func (f *FakeAdapter) enter(ctx context.Context, op, arg string) (func(), error) {
	cur := f.inFlight.Add(1)
	for {
		p := f.peakInFlight.Load()
		if cur <= p || f.peakInFlight.CompareAndSwap(p, cur) {
			break
		}
	}
	done := func() { f.inFlight.Add(-1) }

	if f.Delay > 0 {
		select {
		case <-ctx.Done():
			done()
			return nil, ctx.Err()
		case <-time.After(f.Delay):
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
		f.failed = map[string]int{}
	}
	f.calls[op]++

	for _, k := range []string{op + ":" + arg, op} {
		if err, ok := f.FailAlways[k]; ok {
			done()
			return nil, err
		}
		if n, ok := f.FailTimes[k]; ok && f.failed[k] < n {
			f.failed[k]++
			done()
			return nil, fmt.Errorf("%s(%s): %w", op, arg, ErrInjected)
		}
	}
	return done, nil
}

// PlatformInfo implements platform.Prober.
func (f *FakeAdapter) PlatformInfo(ctx context.Context) (platform.Identity, error) {
	done, err := f.enter(ctx, "PlatformInfo", "")
	if err != nil {
		return platform.Identity{}, err
	}
	defer done()
	if f.ProbeErr != nil {
		return platform.Identity{}, f.ProbeErr
	}
	return f.Identity, nil
}

// Products implements platform.CatalogReader.
func (f *FakeAdapter) Products(ctx context.Context) ([]platform.ProductSummary, error) {
	done, err := f.enter(ctx, "Products", "")
	if err != nil {
		return nil, err
	}
	defer done()
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]platform.ProductSummary(nil), f.ProductList...), nil
}

// StockItems implements platform.CatalogReader.
func (f *FakeAdapter) StockItems(ctx context.Context, skus []string) ([]platform.StockItem, error) {
	done, err := f.enter(ctx, "StockItems", "")
	if err != nil {
		return nil, err
	}
	defer done()
	if f.StockItemsChunkLimit > 0 && len(skus) > f.StockItemsChunkLimit {
		return nil, fmt.Errorf("too many skus (%d): %w", len(skus), platform.ErrRejected)
	}

	want := make(map[string]bool, len(skus))
	for _, s := range skus {
		want[s] = true
	}
	var out []platform.StockItem
	for _, s := range f.Stock {
		if want[s.Sku] {
			out = append(out, s)
		}
	}
	return out, nil
}

// ProductInfo implements platform.CatalogReader.
func (f *FakeAdapter) ProductInfo(ctx context.Context, productID string, _ []string) (*platform.ProductDetail, error) {
	done, err := f.enter(ctx, "ProductInfo", productID)
	if err != nil {
		return nil, err
	}
	defer done()
	d, ok := f.Details[productID]
	if !ok {
		return nil, platform.ErrNotFound
	}
	d.ProductID = productID
	return &d, nil
}

// MediaList implements platform.CatalogReader.
func (f *FakeAdapter) MediaList(ctx context.Context, productID string) (*platform.MediaList, error) {
	done, err := f.enter(ctx, "MediaList", productID)
	if err != nil {
		return nil, err
	}
	defer done()
	urls, ok := f.Media[productID]
	if !ok {
		return nil, platform.ErrNotFound
	}
	return &platform.MediaList{ProductID: productID, URLs: append([]string(nil), urls...)}, nil
}

// CategoryTree implements platform.CatalogReader.
func (f *FakeAdapter) CategoryTree(ctx context.Context) (*platform.CategoryNode, error) {
	done, err := f.enter(ctx, "CategoryTree", "")
	if err != nil {
		return nil, err
	}
	defer done()
	return f.Tree, nil
}

// AttributeOptions implements platform.CatalogReader.
func (f *FakeAdapter) AttributeOptions(ctx context.Context, attribute string) ([]platform.AttributeOption, error) {
	done, err := f.enter(ctx, "AttributeOptions", attribute)
	if err != nil {
		return nil, err
	}
	defer done()
	return append([]platform.AttributeOption(nil), f.Options[attribute]...), nil
}

// Orders implements platform.OrderReader. An order matches when it was
// created or updated inside [from, to].
func (f *FakeAdapter) Orders(ctx context.Context, from, to time.Time) ([]platform.OrderRecord, error) {
	done, err := f.enter(ctx, "Orders", "")
	if err != nil {
		return nil, err
	}
	defer done()

	in := func(t time.Time) bool { return !t.Before(from) && !t.After(to) }
	var out []platform.OrderRecord
	for _, o := range f.OrderList {
		if in(o.CreatedAt) || in(o.UpdatedAt) {
			brief := o
			brief.Lines = nil
			out = append(out, brief)
		}
	}
	return out, nil
}

// Order implements platform.OrderReader.
func (f *FakeAdapter) Order(ctx context.Context, incrementID string) (*platform.OrderRecord, error) {
	done, err := f.enter(ctx, "Order", incrementID)
	if err != nil {
		return nil, err
	}
	defer done()
	for _, o := range f.OrderList {
		if o.IncrementID == incrementID {
			full := o
			return &full, nil
		}
	}
	return nil, platform.ErrNotFound
}

// CreateProduct implements platform.CatalogWriter.
func (f *FakeAdapter) CreateProduct(ctx context.Context, storeID, name, sku string, _ bool) (string, error) {
	done, err := f.enter(ctx, "CreateProduct", sku)
	if err != nil {
		return "", err
	}
	defer done()
	id := strconv.FormatInt(f.nextID.Add(1), 10)

	f.mu.Lock()
	f.ProductList = append(f.ProductList, platform.ProductSummary{ProductID: id, Sku: sku, Name: name})
	f.mu.Unlock()
	return id, nil
}

// DeleteProduct implements platform.CatalogWriter.
func (f *FakeAdapter) DeleteProduct(ctx context.Context, _ string, _ int, productID, identifierType string) (bool, error) {
	done, err := f.enter(ctx, "DeleteProduct", productID)
	if err != nil {
		return false, err
	}
	defer done()

	f.mu.Lock()
	defer f.mu.Unlock()
	for i, p := range f.ProductList {
		match := p.ProductID == productID
		if identifierType == "sku" {
			match = p.Sku == productID
		}
		if match {
			f.ProductList = append(f.ProductList[:i], f.ProductList[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

// PutStockItem implements platform.StockWriter.
func (f *FakeAdapter) PutStockItem(ctx context.Context, item platform.InventoryItem) (bool, error) {
	done, err := f.enter(ctx, "PutStockItem", item.ItemID)
	if err != nil {
		return false, err
	}
	defer done()

	if f.BulkVerdict != nil && f.BulkVerdict(item) != platform.StatusOK {
		return false, nil
	}
	f.mu.Lock()
	f.written = append(f.written, item)
	f.mu.Unlock()
	return true, nil
}

// PutStockItems implements platform.StockWriter.
func (f *FakeAdapter) PutStockItems(ctx context.Context, items []platform.InventoryItem) ([]platform.StockWriteResult, error) {
	done, err := f.enter(ctx, "PutStockItems", "")
	if err != nil {
		return nil, err
	}
	defer done()

	f.mu.Lock()
	f.bulkBatches = append(f.bulkBatches, append([]platform.InventoryItem(nil), items...))
	f.mu.Unlock()
	return verdicts(items, f.BulkVerdict), nil
}

func verdicts(items []platform.InventoryItem, verdict func(platform.InventoryItem) int) []platform.StockWriteResult {
	out := make([]platform.StockWriteResult, 0, len(items))
	for _, it := range items {
		code := platform.StatusOK
		if verdict != nil {
			code = verdict(it)
		}
		out = append(out, platform.StockWriteResult{ItemID: it.ItemID, ProductID: it.ProductID, Code: code})
	}
	return out
}

// CreateCart implements platform.CartBuilder.
func (f *FakeAdapter) CreateCart(ctx context.Context, storeID string) (string, error) {
	done, err := f.enter(ctx, "CreateCart", storeID)
	if err != nil {
		return "", err
	}
	defer done()
	id := "cart-" + strconv.FormatInt(f.nextID.Add(1), 10)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.carts == nil {
		f.carts = map[string]*fakeCart{}
	}
	f.carts[id] = &fakeCart{storeID: storeID, steps: []string{"create"}}
	return id, nil
}

func (f *FakeAdapter) cartStep(ctx context.Context, op, cartID, step string, apply func(*fakeCart)) error {
	done, err := f.enter(ctx, op, cartID)
	if err != nil {
		return err
	}
	defer done()

	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.carts[cartID]
	if !ok {
		return fmt.Errorf("cart %s: %w", cartID, platform.ErrNotFound)
	}
	if apply != nil {
		apply(c)
	}
	c.steps = append(c.steps, step)
	return nil
}

// SetCartCustomer implements platform.CartBuilder.
func (f *FakeAdapter) SetCartCustomer(ctx context.Context, cartID string, customer platform.Customer, _ string) error {
	return f.cartStep(ctx, "SetCartCustomer", cartID, "customer", func(c *fakeCart) { c.customer = customer })
}

// SetCartAddress implements platform.CartBuilder.
func (f *FakeAdapter) SetCartAddress(ctx context.Context, cartID, _ string) error {
	return f.cartStep(ctx, "SetCartAddress", cartID, "address", nil)
}

// AddCartProduct implements platform.CartBuilder.
func (f *FakeAdapter) AddCartProduct(ctx context.Context, cartID, productID, _ string) error {
	return f.cartStep(ctx, "AddCartProduct", cartID, "product", func(c *fakeCart) { c.products = append(c.products, productID) })
}

// SetCartShipping implements platform.CartBuilder.
func (f *FakeAdapter) SetCartShipping(ctx context.Context, cartID, _ string) error {
	return f.cartStep(ctx, "SetCartShipping", cartID, "shipping", nil)
}

// SetCartPayment implements platform.CartBuilder.
func (f *FakeAdapter) SetCartPayment(ctx context.Context, cartID, _ string) error {
	return f.cartStep(ctx, "SetCartPayment", cartID, "payment", nil)
}

// PlaceOrder implements platform.CartBuilder.
func (f *FakeAdapter) PlaceOrder(ctx context.Context, cartID, _ string) (string, error) {
	if err := f.cartStep(ctx, "PlaceOrder", cartID, "place", nil); err != nil {
		return "", err
	}
	return fmt.Sprintf("1000%05d", f.nextID.Add(1)), nil
}

// FakeResourceClient is an in-memory platform.ResourceClient whose paged
// listings re-serve the last page for every page number past the end.
type FakeResourceClient struct {
	ProductRows []platform.ResourceProduct
	StockRows   []platform.StockItem
	OrderRows   []platform.OrderRecord

	// FailAlways makes the named call fail with the given error.
	FailAlways map[string]error

	// BulkVerdict decides the code of each item in PutStockItems.
	BulkVerdict func(platform.InventoryItem) int

	mu          sync.Mutex
	calls       map[string]int
	pages       map[string][]int
	bulkBatches [][]platform.InventoryItem
}

// Calls returns how often op was invoked.
func (f *FakeResourceClient) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// Pages returns the page numbers requested from op, sorted.
func (f *FakeResourceClient) Pages(op string) []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]int(nil), f.pages[op]...)
	sort.Ints(out)
	return out
}

// BulkBatches returns the item batches passed to PutStockItems.
func (f *FakeResourceClient) BulkBatches() [][]platform.InventoryItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]platform.InventoryItem(nil), f.bulkBatches...)
}

func (f *FakeResourceClient) record(op string, page int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
		f.pages = map[string][]int{}
	}
	f.calls[op]++
	if page > 0 {
		f.pages[op] = append(f.pages[op], page)
	}
	if err, ok := f.FailAlways[op]; ok {
		return err
	}
	return nil
}

// Products implements platform.ResourceClient.
func (f *FakeResourceClient) Products(_ context.Context, page, limit int) ([]platform.ResourceProduct, error) {
	if err := f.record("Products", page); err != nil {
		return nil, err
	}
	return pageOf(f.ProductRows, page, limit), nil
}

// StockItems implements platform.ResourceClient.
func (f *FakeResourceClient) StockItems(_ context.Context, page, limit int) ([]platform.StockItem, error) {
	if err := f.record("StockItems", page); err != nil {
		return nil, err
	}
	return pageOf(f.StockRows, page, limit), nil
}

// Orders implements platform.ResourceClient.
func (f *FakeResourceClient) Orders(_ context.Context) ([]platform.OrderRecord, error) {
	if err := f.record("Orders", 0); err != nil {
		return nil, err
	}
	return append([]platform.OrderRecord(nil), f.OrderRows...), nil
}

// PutStockItems implements platform.ResourceClient.
func (f *FakeResourceClient) PutStockItems(_ context.Context, items []platform.InventoryItem) ([]platform.StockWriteResult, error) {
	if err := f.record("PutStockItems", 0); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.bulkBatches = append(f.bulkBatches, append([]platform.InventoryItem(nil), items...))
	f.mu.Unlock()
	return verdicts(items, f.BulkVerdict), nil
}

// pageOf returns the 1-based page of rows, re-serving the last page past the end.
func pageOf[T any](rows []T, page, limit int) []T {
	if len(rows) == 0 || limit <= 0 {
		return nil
	}
	pages := (len(rows) + limit - 1) / limit
	if page < 1 {
		page = 1
	}
	if page > pages {
		page = pages
	}
	lo := (page - 1) * limit
	hi := min(lo+limit, len(rows))
	return append([]T(nil), rows[lo:hi]...)
}
