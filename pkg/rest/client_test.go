package rest

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Sternrassler/storesync/internal/testutil"
	"github.com/Sternrassler/storesync/pkg/batch"
	"github.com/Sternrassler/storesync/pkg/platform"
)

func newTestClient(t *testing.T, mock *testutil.MockStore) *Client {
	t.Helper()
	c, err := New(DefaultConfig(mock.URL()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name        string
		baseURL     string
		expectError bool
	}{
		{name: "valid", baseURL: "https://shop.example.com", expectError: false},
		{name: "trailing slash", baseURL: "https://shop.example.com/", expectError: false},
		{name: "empty", baseURL: "", expectError: true},
		{name: "no scheme", baseURL: "shop.example.com", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(DefaultConfig(tt.baseURL))
			if tt.expectError {
				if !errors.Is(err, ErrInvalidConfig) {
					t.Errorf("New() error = %v, want ErrInvalidConfig", err)
				}
				return
			}
			if err != nil {
				t.Errorf("New() unexpected error = %v", err)
			}
		})
	}
}

func TestProducts_OrderedByEntityID(t *testing.T) {
	mock := testutil.NewMockStore()
	defer mock.Close()
	mock.Products = []platform.ResourceProduct{
		{EntityID: "2", Sku: "b", Name: "Bolt", Price: decimal.RequireFromString("1.5")},
		{EntityID: "10", Sku: "j", Name: "Jack"},
		{EntityID: "9", Sku: "i", Name: "Iron"},
	}

	got, err := newTestClient(t, mock).Products(context.Background(), 1, 100)
	if err != nil {
		t.Fatalf("Products() error = %v", err)
	}

	want := []string{"2", "9", "10"}
	if len(got) != len(want) {
		t.Fatalf("Products() returned %d rows, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].EntityID != id {
			t.Errorf("row %d entity_id = %s, want %s", i, got[i].EntityID, id)
		}
	}
	if !got[0].Price.Equal(decimal.RequireFromString("1.5")) {
		t.Errorf("price = %s, want 1.5", got[0].Price)
	}
}

func TestProducts_PageQuery(t *testing.T) {
	mock := testutil.NewMockStore()
	defer mock.Close()

	var gotQuery string
	mock.SetHandler(PathProducts, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`[]`))
	})

	rows, err := newTestClient(t, mock).Products(context.Background(), 3, 500)
	if err != nil {
		t.Fatalf("Products() error = %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("rows = %v, want empty", rows)
	}
	if gotQuery != "limit=100&page=3" {
		t.Errorf("query = %q, want limit capped at 100", gotQuery)
	}
}

func TestStockItems_StringEncodedNumbers(t *testing.T) {
	mock := testutil.NewMockStore()
	defer mock.Close()
	mock.Stock = []platform.StockItem{
		{ItemID: "1", ProductID: "16", Qty: decimal.NewFromInt(12), BackOrders: 1},
	}

	got, err := newTestClient(t, mock).StockItems(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("StockItems() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("StockItems() returned %d rows, want 1", len(got))
	}
	if !got[0].Qty.Equal(decimal.NewFromInt(12)) || got[0].BackOrders != 1 || got[0].ProductID != "16" {
		t.Errorf("row = %+v", got[0])
	}
}

func TestOrders_ParsesTimestamps(t *testing.T) {
	mock := testutil.NewMockStore()
	defer mock.Close()
	created := time.Date(2014, 3, 1, 10, 30, 0, 0, time.UTC)
	mock.Orders = []platform.OrderRecord{
		{OrderID: "1", IncrementID: "100000001", Status: "pending", CreatedAt: created, UpdatedAt: created},
	}

	got, err := newTestClient(t, mock).Orders(context.Background())
	if err != nil {
		t.Fatalf("Orders() error = %v", err)
	}
	if len(got) != 1 || got[0].IncrementID != "100000001" {
		t.Fatalf("Orders() = %+v", got)
	}
	if !got[0].CreatedAt.Equal(created) {
		t.Errorf("created_at = %v, want %v", got[0].CreatedAt, created)
	}
}

func TestPutStockItems_MultiStatus(t *testing.T) {
	mock := testutil.NewMockStore()
	defer mock.Close()
	mock.RejectItems = map[string]int{"2": 404}

	items := []platform.InventoryItem{
		{ItemID: "1", ProductID: "p1", Qty: 5},
		{ItemID: "2", ProductID: "p2", Qty: 0},
	}
	got, err := newTestClient(t, mock).PutStockItems(context.Background(), items)
	if err != nil {
		t.Fatalf("PutStockItems() error = %v", err)
	}

	codes := map[string]int{}
	for _, v := range got {
		codes[v.ItemID] = v.Code
	}
	if codes["1"] != 200 || codes["2"] != 404 {
		t.Errorf("codes = %v, want 1:200 2:404", codes)
	}
	if written := mock.GetWritten(); len(written) != 1 {
		t.Errorf("written = %d lines, want 1", len(written))
	}
}

func TestDo_StatusClassification(t *testing.T) {
	tests := []struct {
		name      string
		resp      testutil.MockResponse
		class     ErrorClass
		transient bool
		sentinel  error
	}{
		{"server error", testutil.NewServerErrorResponse(), ErrorClassServer, true, platform.ErrUnavailable},
		{"rate limited", testutil.NewRateLimitResponse(), ErrorClassRateLimit, true, platform.ErrUnavailable},
		{"forbidden", testutil.NewForbiddenResponse(), ErrorClassClient, false, platform.ErrRejected},
		{"not found", testutil.MockResponse{StatusCode: http.StatusNotFound}, ErrorClassClient, false, platform.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockStore()
			defer mock.Close()
			mock.SetResponse(PathProducts, tt.resp)

			_, err := newTestClient(t, mock).Products(context.Background(), 1, 1)

			var se *StatusError
			if !errors.As(err, &se) {
				t.Fatalf("error = %v, want *StatusError", err)
			}
			if se.ErrorClass != tt.class {
				t.Errorf("class = %s, want %s", se.ErrorClass, tt.class)
			}
			if se.Transient() != tt.transient {
				t.Errorf("Transient() = %v, want %v", se.Transient(), tt.transient)
			}
			if !errors.Is(err, tt.sentinel) {
				t.Errorf("errors.Is(%v) = false", tt.sentinel)
			}
			wantBatch := batch.ErrorClassPermanent
			if tt.transient {
				wantBatch = batch.ErrorClassTransient
			}
			if got := batch.Classify(err); got != wantBatch {
				t.Errorf("batch.Classify() = %s, want %s", got, wantBatch)
			}
		})
	}
}

func TestDo_ErrorMessageFromBody(t *testing.T) {
	mock := testutil.NewMockStore()
	defer mock.Close()
	mock.SetResponse(PathOrders, testutil.NewForbiddenResponse())

	_, err := newTestClient(t, mock).Orders(context.Background())
	if err == nil || !strings.Contains(err.Error(), "Access denied") {
		t.Errorf("error = %v, want message from body", err)
	}
}

func TestDo_DecodeError(t *testing.T) {
	mock := testutil.NewMockStore()
	defer mock.Close()
	mock.SetResponse(PathProducts, testutil.MockResponse{StatusCode: http.StatusOK, Body: `<html>`})

	_, err := newTestClient(t, mock).Products(context.Background(), 1, 1)
	var se *StatusError
	if !errors.As(err, &se) || se.ErrorClass != ErrorClassDecode {
		t.Errorf("error = %v, want decode StatusError", err)
	}
}

func TestDo_SignerAndHeaders(t *testing.T) {
	mock := testutil.NewMockStore()
	defer mock.Close()

	cfg := DefaultConfig(mock.URL())
	cfg.UserAgent = "storesync-test/1.0"
	cfg.Signer = SignerFunc(func(req *http.Request) error {
		req.Header.Set("Authorization", `OAuth oauth_token="t"`)
		return nil
	})
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := c.Products(context.Background(), 1, 1); err != nil {
		t.Fatalf("Products() error = %v", err)
	}
	h := mock.GetLastRequestHeader()
	if h.Get("Authorization") != `OAuth oauth_token="t"` {
		t.Errorf("Authorization = %q", h.Get("Authorization"))
	}
	if h.Get("User-Agent") != "storesync-test/1.0" {
		t.Errorf("User-Agent = %q", h.Get("User-Agent"))
	}
	if h.Get("Accept") != "application/json" {
		t.Errorf("Accept = %q", h.Get("Accept"))
	}
}

func TestDo_SignerFailure(t *testing.T) {
	mock := testutil.NewMockStore()
	defer mock.Close()

	signErr := errors.New("no token")
	cfg := DefaultConfig(mock.URL())
	cfg.Signer = SignerFunc(func(*http.Request) error { return signErr })
	c, _ := New(cfg)

	if _, err := c.Orders(context.Background()); !errors.Is(err, signErr) {
		t.Errorf("error = %v, want signer error", err)
	}
	if mock.GetRequestCount() != 0 {
		t.Errorf("request sent despite signer failure")
	}
}

func TestDo_NetworkErrorIsTransient(t *testing.T) {
	mock := testutil.NewMockStore()
	c := newTestClient(t, mock)
	mock.Close()

	_, err := c.StockItems(context.Background(), 1, 1)
	var se *StatusError
	if !errors.As(err, &se) || se.ErrorClass != ErrorClassNetwork {
		t.Fatalf("error = %v, want network StatusError", err)
	}
	if batch.Classify(err) != batch.ErrorClassTransient {
		t.Errorf("network error should be transient")
	}
}

func TestCollectionValues(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{``, `[]`},
		{`null`, `[]`},
		{`[{"a":1}]`, `[{"a":1}]`},
		{`{}`, `[]`},
		{`{"10":{"a":10},"2":{"a":2}}`, `[{"a":2},{"a":10}]`},
	}
	for _, tt := range tests {
		got, err := collectionValues([]byte(tt.in))
		if err != nil {
			t.Errorf("collectionValues(%q) error = %v", tt.in, err)
			continue
		}
		if string(got) != tt.want {
			t.Errorf("collectionValues(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
