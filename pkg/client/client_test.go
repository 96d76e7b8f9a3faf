package client

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sternrassler/storesync/internal/testutil"
	"github.com/Sternrassler/storesync/pkg/batch"
	"github.com/Sternrassler/storesync/pkg/inventory"
	"github.com/Sternrassler/storesync/pkg/platform"
	"github.com/Sternrassler/storesync/pkg/rest"
	"github.com/Sternrassler/storesync/pkg/router"
)

type fixture struct {
	client   *Client
	probe    *testutil.FakeAdapter
	legacy   *testutil.FakeAdapter
	ce       *testutil.FakeAdapter
	ee       *testutil.FakeAdapter
	resource *testutil.FakeResourceClient
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Retry = batch.RetryPolicy{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}
	return cfg
}

func newFixture(t *testing.T, version, edition string, cfg Config) fixture {
	t.Helper()
	fx := fixture{
		probe:    testutil.NewFakeAdapter("probe", version, edition),
		legacy:   testutil.NewFakeAdapter(router.AdapterLegacy, "", ""),
		ce:       testutil.NewFakeAdapter(router.AdapterCE1921, "", ""),
		ee:       testutil.NewFakeAdapter(router.AdapterEE1141, "", ""),
		resource: &testutil.FakeResourceClient{},
	}
	r, err := router.New(fx.probe, router.DefaultTable(), map[string]platform.ProtocolAdapter{
		router.AdapterLegacy: fx.legacy,
		router.AdapterCE1921: fx.ce,
		router.AdapterEE1141: fx.ee,
	})
	require.NoError(t, err)

	fx.client, err = New(r, fx.resource, cfg)
	require.NoError(t, err)
	return fx
}

func productModels(n int) []platform.CreateProductRequest {
	out := make([]platform.CreateProductRequest, n)
	for i := range out {
		out[i] = platform.CreateProductRequest{StoreID: "0", Name: fmt.Sprintf("Product %d", i), Sku: fmt.Sprintf("sku-%d", i)}
	}
	return out
}

func orderModel() platform.CreateOrderRequest {
	return platform.CreateOrderRequest{
		StoreID:    "0",
		Customer:   platform.Customer{FirstName: "Ada", LastName: "Byron", Email: "ada@example.com"},
		ProductIDs: []string{"p1", "p2"},
	}
}

func TestNew_RequiresAProtocol(t *testing.T) {
	_, err := New(nil, nil, DefaultConfig())
	assert.Error(t, err)
}

func TestResourceOnlyClient(t *testing.T) {
	rc := &testutil.FakeResourceClient{OrderRows: []platform.OrderRecord{{OrderID: "1", IncrementID: "1001"}}}
	c, err := New(nil, rc, testConfig())
	require.NoError(t, err)

	orders, err := c.GetOrders(context.Background())
	require.NoError(t, err)
	assert.Len(t, orders, 1)

	_, err = c.GetOrdersByID(context.Background(), []string{"1001"})
	assert.ErrorIs(t, err, ErrNoRouter)

	_, err = c.PingLegacy(context.Background())
	assert.ErrorIs(t, err, ErrNoRouter)

	err = c.UpdateInventory(context.Background(), []platform.InventoryItem{{ItemID: "1"}})
	assert.ErrorIs(t, err, ErrNoRouter)
}

func TestWithDefaults_FillsZeroValues(t *testing.T) {
	cfg := withDefaults(Config{CreateOrderConcurrency: 3})
	d := DefaultConfig()

	assert.Equal(t, 3, cfg.CreateOrderConcurrency)
	assert.Equal(t, d.OrderDetailConcurrency, cfg.OrderDetailConcurrency)
	assert.Equal(t, d.StockChunkSize, cfg.StockChunkSize)
	assert.Equal(t, d.WindowChunk, cfg.WindowChunk)
	assert.Equal(t, d.PiecewiseVersions, cfg.PiecewiseVersions)
}

func TestWithDefaults_ClampsPageSize(t *testing.T) {
	cfg := withDefaults(Config{PageSize: 200})
	assert.Equal(t, rest.MaxPageSize, cfg.PageSize)
}

func TestGetProductsSimple_LargePageSizeScansEverything(t *testing.T) {
	store := testutil.NewMockStore()
	defer store.Close()
	for i := 1; i <= 150; i++ {
		store.Products = append(store.Products, platform.ResourceProduct{EntityID: strconv.Itoa(i), Sku: fmt.Sprintf("sku-%d", i)})
	}

	rc, err := rest.New(rest.DefaultConfig(store.URL()))
	require.NoError(t, err)
	cfg := testConfig()
	cfg.PageSize = 200
	c, err := New(nil, rc, cfg)
	require.NoError(t, err)

	out, err := c.GetProductsSimple(context.Background())
	require.NoError(t, err)
	assert.Len(t, out, 150)
}

func TestCreateProducts_RetriesTransientFailures(t *testing.T) {
	fx := newFixture(t, "1.9.2.1", "Community", testConfig())
	fx.ce.FailTimes = map[string]int{"CreateProduct:sku-1": 2}

	out, err := fx.client.CreateProducts(context.Background(), productModels(3))
	require.NoError(t, err)
	require.Len(t, out, 3)
	for _, r := range out {
		assert.NotEmpty(t, r.ProductID)
	}
	assert.Equal(t, 5, fx.ce.Calls("CreateProduct"))
	assert.Zero(t, fx.legacy.Calls("CreateProduct"))
}

func TestCreateProducts_PartialFailure(t *testing.T) {
	fx := newFixture(t, "1.9.2.1", "Community", testConfig())
	fx.ce.FailAlways = map[string]error{"CreateProduct:sku-2": platform.ErrRejected}

	out, err := fx.client.CreateProducts(context.Background(), productModels(4))
	require.Error(t, err)
	assert.Len(t, out, 3, "created products are returned next to the failure")

	var opErr *OperationError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, OpCreateProducts, opErr.Operation)
	assert.NotEmpty(t, opErr.Mark)
	assert.Contains(t, opErr.Params, "sku-2")
	assert.ErrorIs(t, err, batch.ErrPartialFailure)
	assert.ErrorIs(t, err, platform.ErrRejected)
}

func TestCreateProducts_ValidationSkipsProbe(t *testing.T) {
	fx := newFixture(t, "1.9.2.1", "Community", testConfig())
	models := productModels(2)
	models[1].Name = ""

	_, err := fx.client.CreateProducts(context.Background(), models)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Zero(t, fx.probe.Calls("PlatformInfo"))
}

func TestCreateProducts_EmptyInput(t *testing.T) {
	fx := newFixture(t, "1.9.2.1", "Community", testConfig())

	out, err := fx.client.CreateProducts(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Zero(t, fx.probe.Calls("PlatformInfo"))
}

func TestCreateProducts_ConnectivityFailure(t *testing.T) {
	fx := newFixture(t, "", "", testConfig())

	_, err := fx.client.CreateProducts(context.Background(), productModels(1))
	assert.ErrorIs(t, err, router.ErrConnectivity)
}

func TestDeleteProducts(t *testing.T) {
	fx := newFixture(t, "1.9.2.1", "Community", testConfig())
	fx.ce.ProductList = []platform.ProductSummary{{ProductID: "7", Sku: "a"}, {ProductID: "8", Sku: "b"}}

	out, err := fx.client.DeleteProducts(context.Background(), []platform.DeleteProductRequest{
		{StoreID: "0", ProductID: "7"},
		{StoreID: "0", ProductID: "b", IdentifierType: "sku"},
		{StoreID: "0", ProductID: "missing"},
	})
	require.NoError(t, err)
	require.Len(t, out, 3)

	deleted := map[string]bool{}
	for _, r := range out {
		deleted[r.Request.ProductID] = r.Deleted
	}
	assert.Equal(t, map[string]bool{"7": true, "b": true, "missing": false}, deleted)
}

func TestDeleteProducts_NotRetried(t *testing.T) {
	fx := newFixture(t, "1.9.2.1", "Community", testConfig())
	fx.ce.FailTimes = map[string]int{"DeleteProduct": 1}

	_, err := fx.client.DeleteProducts(context.Background(), []platform.DeleteProductRequest{{StoreID: "0", ProductID: "7"}})
	assert.ErrorIs(t, err, batch.ErrPartialFailure)
	assert.Equal(t, 1, fx.ce.Calls("DeleteProduct"))
}

func TestCreateOrders_WalksCartSteps(t *testing.T) {
	fx := newFixture(t, "1.9.2.1", "Community", testConfig())

	out, err := fx.client.CreateOrders(context.Background(), []platform.CreateOrderRequest{orderModel()})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.NotEmpty(t, out[0].OrderID)

	assert.Equal(t,
		[]string{"create", "customer", "address", "product", "shipping", "payment", "place"},
		fx.ce.CartSteps("cart-1"))
	assert.Equal(t, 1, fx.ce.Calls("AddCartProduct"), "only the first product is added")
}

func TestCreateOrders_NotRetried(t *testing.T) {
	fx := newFixture(t, "1.9.2.1", "Community", testConfig())
	fx.ce.FailTimes = map[string]int{"SetCartAddress": 1}

	out, err := fx.client.CreateOrders(context.Background(), []platform.CreateOrderRequest{orderModel()})
	assert.ErrorIs(t, err, batch.ErrPartialFailure)
	assert.Empty(t, out)
	assert.Equal(t, 1, fx.ce.Calls("CreateCart"))
	assert.Zero(t, fx.ce.Calls("PlaceOrder"))
}

func TestCreateOrders_RequiresProduct(t *testing.T) {
	fx := newFixture(t, "1.9.2.1", "Community", testConfig())
	m := orderModel()
	m.ProductIDs = nil

	_, err := fx.client.CreateOrders(context.Background(), []platform.CreateOrderRequest{m})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestGetOrdersByID_AppliesLegacyOverride(t *testing.T) {
	fx := newFixture(t, "1.14.1.0", "1.14.1.0", testConfig())
	fx.legacy.OrderList = []platform.OrderRecord{
		{OrderID: "1", IncrementID: "100000001"},
		{OrderID: "2", IncrementID: "100000002"},
	}

	out, err := fx.client.GetOrdersByID(context.Background(), []string{"100000001", "100000002"})
	require.NoError(t, err)
	assert.Len(t, out, 2)
	assert.Equal(t, 2, fx.legacy.Calls("Order"))
	assert.Zero(t, fx.ee.Calls("Order"))
}

func TestGetOrdersByID_MissingOrderIsPartial(t *testing.T) {
	fx := newFixture(t, "1.9.2.1", "Community", testConfig())
	fx.ce.OrderList = []platform.OrderRecord{{OrderID: "1", IncrementID: "100000001"}}

	out, err := fx.client.GetOrdersByID(context.Background(), []string{"100000001", "100000404"})
	assert.Len(t, out, 1)
	assert.ErrorIs(t, err, batch.ErrPartialFailure)
	assert.ErrorIs(t, err, platform.ErrNotFound)
	assert.Equal(t, 2, fx.ce.Calls("Order"), "not-found is permanent")
}

func TestGetOrdersByRange_DeduplicatesAcrossWindows(t *testing.T) {
	fx := newFixture(t, "1.9.2.1", "Community", testConfig())
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	day := 24 * time.Hour
	fx.ce.OrderList = []platform.OrderRecord{
		{OrderID: "1", IncrementID: "1001", CreatedAt: t0.Add(day), UpdatedAt: t0.Add(day)},
		{OrderID: "2", IncrementID: "1002", CreatedAt: t0.Add(7 * day), UpdatedAt: t0.Add(7 * day)},
		{OrderID: "3", IncrementID: "1003", CreatedAt: t0.Add(2 * day), UpdatedAt: t0.Add(10 * day)},
		{OrderID: "4", IncrementID: "1004", CreatedAt: t0.Add(14*day + 12*time.Hour), UpdatedAt: t0.Add(14*day + 12*time.Hour)},
		{OrderID: "5", IncrementID: "1005", CreatedAt: t0.Add(30 * day), UpdatedAt: t0.Add(30 * day)},
	}

	out, err := fx.client.GetOrdersByRange(context.Background(), t0, t0.Add(15*day))
	require.NoError(t, err)

	ids := map[string]bool{}
	for _, o := range out {
		ids[o.IncrementID] = true
	}
	assert.Len(t, out, 4)
	assert.Equal(t, map[string]bool{"1001": true, "1002": true, "1003": true, "1004": true}, ids)
	assert.Equal(t, 3, fx.ce.Calls("Orders"), "15 days split into three windows")
	assert.Equal(t, 4, fx.ce.Calls("Order"), "each order fetched once")
}

func TestGetOrdersByRange_FromAfterToMakesNoCall(t *testing.T) {
	fx := newFixture(t, "1.9.2.1", "Community", testConfig())
	now := time.Now()

	out, err := fx.client.GetOrdersByRange(context.Background(), now, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Zero(t, fx.probe.Calls("PlatformInfo"))
}

func TestGetOrdersByRange_WindowFailureFailsOperation(t *testing.T) {
	fx := newFixture(t, "1.9.2.1", "Community", testConfig())
	fx.ce.FailAlways = map[string]error{"Orders": platform.ErrRejected}
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	out, err := fx.client.GetOrdersByRange(context.Background(), t0, t0.Add(48*time.Hour))
	assert.Empty(t, out)
	assert.ErrorIs(t, err, platform.ErrRejected)
	assert.Zero(t, fx.ce.Calls("Order"))
}

func TestGetOrders_Snapshot(t *testing.T) {
	fx := newFixture(t, "1.9.2.1", "Community", testConfig())
	fx.resource.OrderRows = []platform.OrderRecord{
		{OrderID: "1", IncrementID: "1001"},
		{OrderID: "2", IncrementID: "1002"},
		{OrderID: "1", IncrementID: "1001"},
	}

	out, err := fx.client.GetOrders(context.Background())
	require.NoError(t, err)
	assert.Len(t, out, 2)
	assert.Zero(t, fx.probe.Calls("PlatformInfo"), "resource protocol needs no probe")
}

func TestGetOrders_NoResourceClient(t *testing.T) {
	fx := newFixture(t, "1.9.2.1", "Community", testConfig())
	c, err := New(fx.client.router, nil, testConfig())
	require.NoError(t, err)

	_, err = c.GetOrders(context.Background())
	assert.ErrorIs(t, err, ErrNoResourceClient)
}

func TestGetProductsSimple_ScansAllPages(t *testing.T) {
	fx := newFixture(t, "1.9.2.1", "Community", testConfig())
	for i := 1; i <= 250; i++ {
		fx.resource.ProductRows = append(fx.resource.ProductRows, platform.ResourceProduct{
			EntityID: fmt.Sprint(i), Sku: fmt.Sprintf("sku-%d", i),
		})
	}

	out, err := fx.client.GetProductsSimple(context.Background())
	require.NoError(t, err)
	assert.Len(t, out, 250)
	assert.Equal(t, out[0].EntityID, out[0].ProductID)
	assert.Equal(t, []int{1, 2, 3, 4}, fx.resource.Pages("Products"))
}

func TestGetProducts_JoinsStockInChunks(t *testing.T) {
	fx := newFixture(t, "1.9.2.1", "Community", testConfig())
	fx.ce.StockItemsChunkLimit = 1000
	for i := range 2500 {
		sku := fmt.Sprintf("sku-%d", i)
		id := fmt.Sprint(i)
		fx.ce.ProductList = append(fx.ce.ProductList, platform.ProductSummary{ProductID: id, Sku: sku, Name: "P" + id})
		if i%2 == 0 {
			fx.ce.Stock = append(fx.ce.Stock, platform.StockItem{ItemID: "s" + id, ProductID: id, Sku: sku, Qty: decimal.NewFromInt(int64(i))})
		}
	}

	out, err := fx.client.GetProducts(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, out, 1250, "products without stock are dropped")
	assert.Equal(t, 3, fx.ce.Calls("StockItems"))
	assert.Zero(t, fx.ce.Calls("ProductInfo"))

	for _, r := range out {
		assert.Equal(t, r.ProductID, r.EntityID)
	}
}

func TestGetProducts_IncludeDetails(t *testing.T) {
	fx := newFixture(t, "1.9.2.1", "Community", testConfig())
	fx.ce.ProductList = []platform.ProductSummary{{ProductID: "1", Sku: "W-1", Name: "Widget"}}
	fx.ce.Stock = []platform.StockItem{{ItemID: "s1", ProductID: "1", Sku: "W-1", Qty: decimal.NewFromInt(4)}}
	fx.ce.Details = map[string]platform.ProductDetail{"1": {Price: decimal.RequireFromString("19.99")}}
	fx.ce.Media = map[string][]string{"1": {"http://img/1.jpg"}}

	out, err := fx.client.GetProducts(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.True(t, out[0].Price.Equal(decimal.RequireFromString("19.99")))
	assert.Equal(t, []string{"http://img/1.jpg"}, out[0].Images)
	assert.True(t, out[0].Qty.Equal(decimal.NewFromInt(4)))
}

func TestFillProductDetails(t *testing.T) {
	fx := newFixture(t, "1.9.2.1", "Community", testConfig())
	fx.ce.Details = map[string]platform.ProductDetail{"1": {Description: "A widget"}}

	out, err := fx.client.FillProductDetails(context.Background(), []platform.CatalogRecord{
		{ProductID: "1"}, {ProductID: "2", Description: "keep"},
	})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "A widget", out[0].Description)
	assert.Equal(t, "keep", out[1].Description)
}

func TestFillProductDetails_EmptyInput(t *testing.T) {
	fx := newFixture(t, "1.9.2.1", "Community", testConfig())

	out, err := fx.client.FillProductDetails(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Zero(t, fx.probe.Calls("PlatformInfo"))
}

func TestUpdateInventory_Bulk(t *testing.T) {
	fx := newFixture(t, "1.9.2.1", "Community", testConfig())

	err := fx.client.UpdateInventory(context.Background(), []platform.InventoryItem{
		{ItemID: "1", ProductID: "p1", Qty: 3},
		{ItemID: "2", ProductID: "p2", Qty: 0},
	})
	require.NoError(t, err)
	require.Len(t, fx.ce.BulkBatches(), 1)
	assert.Len(t, fx.ce.BulkBatches()[0], 2)
}

func TestUpdateInventory_PiecewiseVersion(t *testing.T) {
	fx := newFixture(t, "1.7.0.2", "Community", testConfig())

	err := fx.client.UpdateInventory(context.Background(), []platform.InventoryItem{{ItemID: "1", Qty: 3}})
	require.NoError(t, err)
	assert.Len(t, fx.legacy.Written(), 1)
	assert.Empty(t, fx.legacy.BulkBatches())
}

func TestUpdateInventory_FailedItemsReported(t *testing.T) {
	fx := newFixture(t, "1.9.2.1", "Community", testConfig())
	fx.ce.BulkVerdict = func(it platform.InventoryItem) int {
		if it.ItemID == "2" {
			return 404
		}
		return platform.StatusOK
	}

	err := fx.client.UpdateInventory(context.Background(), []platform.InventoryItem{
		{ItemID: "1", Qty: 3}, {ItemID: "2", Qty: 1},
	})
	require.Error(t, err)

	var upd *inventory.UpdateError
	require.ErrorAs(t, err, &upd)
	require.Len(t, upd.Failed, 1)
	assert.Equal(t, "2", upd.Failed[0].Item.ItemID)
	assert.Len(t, upd.Updated, 1)
	assert.ErrorIs(t, err, batch.ErrPartialFailure)
}

func TestUpdateInventory_RequiresItemID(t *testing.T) {
	fx := newFixture(t, "1.9.2.1", "Community", testConfig())

	err := fx.client.UpdateInventory(context.Background(), []platform.InventoryItem{{Qty: 3}})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestUpdateInventoryResource(t *testing.T) {
	fx := newFixture(t, "1.9.2.1", "Community", testConfig())
	items := make([]platform.InventoryItem, 120)
	for i := range items {
		items[i] = platform.InventoryItem{ItemID: fmt.Sprint(i), Qty: int64(i)}
	}

	require.NoError(t, fx.client.UpdateInventoryResource(context.Background(), items))
	batches := fx.resource.BulkBatches()
	require.Len(t, batches, 3)
	total := 0
	for _, b := range batches {
		assert.LessOrEqual(t, len(b), 50)
		total += len(b)
	}
	assert.Equal(t, 120, total)
	assert.Zero(t, fx.probe.Calls("PlatformInfo"))
}

func TestUpdateInventoryBySku_ResourceCatalog(t *testing.T) {
	fx := newFixture(t, "1.9.2.1", "Community", testConfig())
	fx.resource.StockRows = []platform.StockItem{
		{ItemID: "s1", ProductID: "10", Qty: decimal.NewFromInt(3)},
		{ItemID: "s2", ProductID: "11"},
	}
	fx.resource.ProductRows = []platform.ResourceProduct{
		{EntityID: "10", Sku: "A"},
		{EntityID: "11", Sku: "B"},
	}

	err := fx.client.UpdateInventoryBySku(context.Background(), []platform.InventoryBySku{
		{Sku: "a", Qty: 7},
		{Sku: "unknown", Qty: 1},
	})
	require.NoError(t, err)

	batches := fx.ce.BulkBatches()
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 1)
	assert.Equal(t, "10", batches[0][0].ItemID, "legacy writes address the product id")
	assert.Equal(t, "10", batches[0][0].ProductID)
	assert.Equal(t, int64(7), batches[0][0].Qty, "caller quantity wins")
}

func TestUpdateInventoryBySku_LegacyOnly(t *testing.T) {
	cfg := testConfig()
	cfg.LegacyOnly = true
	fx := newFixture(t, "1.8.1.0", "1.8.1.0", cfg)
	fx.legacy.Stock = []platform.StockItem{{ItemID: "i20", ProductID: "20", Sku: "A"}}

	err := fx.client.UpdateInventoryBySku(context.Background(), []platform.InventoryBySku{{Sku: "A", Qty: 5}})
	require.NoError(t, err)

	assert.Zero(t, fx.resource.Calls("StockItems"))
	batches := fx.legacy.BulkBatches()
	require.Len(t, batches, 1)
	assert.Equal(t, "20", batches[0][0].ItemID, "legacy writes address the product id")
	assert.Equal(t, int64(5), batches[0][0].Qty)
}

func TestUpdateInventoryBySku_SameIDInBothModes(t *testing.T) {
	write := func(legacyOnly bool) platform.InventoryItem {
		cfg := testConfig()
		cfg.LegacyOnly = legacyOnly
		fx := newFixture(t, "1.9.2.1", "Community", cfg)
		fx.resource.StockRows = []platform.StockItem{{ItemID: "s1", ProductID: "10"}}
		fx.resource.ProductRows = []platform.ResourceProduct{{EntityID: "10", Sku: "A"}}
		fx.ce.Stock = []platform.StockItem{{ItemID: "s1", ProductID: "10", Sku: "A"}}

		err := fx.client.UpdateInventoryBySku(context.Background(), []platform.InventoryBySku{{Sku: "A", Qty: 4}})
		require.NoError(t, err)
		batches := fx.ce.BulkBatches()
		require.Len(t, batches, 1)
		require.Len(t, batches[0], 1)
		return batches[0][0]
	}

	viaResource := write(false)
	viaLegacy := write(true)
	assert.Equal(t, "10", viaResource.ItemID)
	assert.Equal(t, viaLegacy.ItemID, viaResource.ItemID)
}

func TestUpdateInventoryBySku_NothingKnown(t *testing.T) {
	fx := newFixture(t, "1.9.2.1", "Community", testConfig())

	err := fx.client.UpdateInventoryBySku(context.Background(), []platform.InventoryBySku{{Sku: "x", Qty: 1}})
	require.NoError(t, err)
	assert.Empty(t, fx.ce.BulkBatches())
	assert.Zero(t, fx.probe.Calls("PlatformInfo"))
}

func TestResolveSkus(t *testing.T) {
	known := []platform.CatalogRecord{
		{EntityID: "s1", ProductID: "1", Sku: "Abc"},
		{EntityID: "s9", ProductID: "9", Sku: "ABC"},
		{EntityID: "s2", ProductID: "2", Sku: "def"},
	}

	updates, unknown := resolveSkus([]platform.InventoryBySku{
		{Sku: " abc ", Qty: 1},
		{Sku: "DEF", Qty: 2},
		{Sku: "ghi", Qty: 3},
	}, known)

	require.Len(t, updates, 2)
	assert.Equal(t, "1", updates[0].ItemID, "first record of a SKU wins")
	assert.Equal(t, int64(1), updates[0].Qty)
	assert.Equal(t, "2", updates[1].ItemID)
	assert.Equal(t, []string{"ghi"}, unknown)
}

func TestJoinLegacyCatalog(t *testing.T) {
	products := []platform.ProductSummary{
		{ProductID: "1", Sku: "a", Name: "A"},
		{ProductID: "2", Sku: "b", Name: "B"},
	}
	stock := []platform.StockItem{
		{ItemID: "s1", ProductID: "1", Qty: decimal.NewFromInt(9)},
		{ItemID: "s9", ProductID: "9"},
	}

	out := joinLegacyCatalog(products, stock)
	require.Len(t, out, 1)
	assert.Equal(t, "1", out[0].EntityID)
	assert.Equal(t, "A", out[0].Name)
	assert.True(t, out[0].Qty.Equal(decimal.NewFromInt(9)))
}

func TestPingLegacy(t *testing.T) {
	tests := []struct {
		name        string
		version     string
		edition     string
		probeErr    error
		wantWorking bool
		wantErr     error
	}{
		{name: "working", version: "1.9.2.1", edition: "Community", wantWorking: true},
		{name: "empty identity", wantWorking: false},
		{name: "probe failure", probeErr: errors.New("connection refused"), wantErr: router.ErrConnectivity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t, tt.version, tt.edition, testConfig())
			fx.probe.ProbeErr = tt.probeErr

			ping, err := fx.client.PingLegacy(context.Background())
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				var opErr *OperationError
				assert.ErrorAs(t, err, &opErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantWorking, ping.Working)
			assert.Equal(t, tt.version, ping.Version)
		})
	}
}

func TestPingResource(t *testing.T) {
	fx := newFixture(t, "1.9.2.1", "Community", testConfig())

	ping, err := fx.client.PingResource(context.Background())
	require.NoError(t, err)
	assert.True(t, ping.Working)

	fx.resource.FailAlways = map[string]error{"Products": platform.ErrUnavailable}
	_, err = fx.client.PingResource(context.Background())
	assert.ErrorIs(t, err, platform.ErrUnavailable)
}

func TestOperationError_Message(t *testing.T) {
	err := &OperationError{Operation: OpGetOrders, Mark: "m-1", Params: `["x"]`, Err: platform.ErrUnavailable}
	assert.Contains(t, err.Error(), "GetOrders")
	assert.Contains(t, err.Error(), "m-1")
	assert.Contains(t, err.Error(), `["x"]`)
	assert.ErrorIs(t, err, platform.ErrUnavailable)
}

func TestSummarize_Truncates(t *testing.T) {
	long := make([]string, 200)
	for i := range long {
		long[i] = "sku-00000"
	}
	s := summarize(long)
	assert.LessOrEqual(t, len(s), maxParamsLen+3)
	assert.Equal(t, "", summarize(nil))
}
