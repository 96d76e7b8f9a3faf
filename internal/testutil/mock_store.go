package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"

	"github.com/Sternrassler/storesync/pkg/platform"
)

// MockResponse defines a canned response for one mock store path.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockStore is an httptest server speaking the resource protocol. Paged
// listings re-serve their last page for any page past the end, the way the
// platform does.
type MockStore struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	Products []platform.ResourceProduct
	Stock    []platform.StockItem
	Orders   []platform.OrderRecord

	// RejectItems maps item ids to the per-line code returned on stock writes.
	RejectItems map[string]int

	// Tracking
	RequestCount      int
	LastRequestHeader http.Header
	Written           []map[string]any
}

// NewMockStore creates and starts a mock store server.
func NewMockStore() *MockStore {
	mock := &MockStore{
		handlers: make(map[string]func(w http.ResponseWriter, r *http.Request)),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.LastRequestHeader = r.Header.Clone()
		handler, exists := mock.handlers[r.Method+" "+r.URL.Path]
		if !exists {
			handler, exists = mock.handlers[r.URL.Path]
		}
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}
		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockStore) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockStore) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.LastRequestHeader = nil
	m.Written = nil
}

// SetHandler sets a custom handler for a path, optionally prefixed with a
// method ("PUT /api/rest/stockitems").
func (m *MockStore) SetHandler(route string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[route] = handler
}

// SetResponse configures a simple response for a route.
func (m *MockStore) SetResponse(route string, resp MockResponse) {
	m.SetHandler(route, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockStore) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetLastRequestHeader returns the headers of the most recent request.
func (m *MockStore) GetLastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastRequestHeader
}

// GetWritten returns the stock lines received by PUT requests.
func (m *MockStore) GetWritten() []map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]map[string]any(nil), m.Written...)
}

func (m *MockStore) defaultHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/api/rest/products":
		m.mu.RLock()
		rows := make([]map[string]any, 0, len(m.Products))
		for _, p := range m.Products {
			rows = append(rows, map[string]any{
				"entity_id":   p.EntityID,
				"sku":         p.Sku,
				"name":        p.Name,
				"price":       p.Price.StringFixed(4),
				"description": p.Description,
			})
		}
		m.mu.RUnlock()
		writeKeyed(w, page(rows, r), "entity_id")

	case r.Method == http.MethodGet && r.URL.Path == "/api/rest/stockitems":
		m.mu.RLock()
		rows := make([]map[string]any, 0, len(m.Stock))
		for _, s := range m.Stock {
			rows = append(rows, map[string]any{
				"item_id":    s.ItemID,
				"product_id": s.ProductID,
				"sku":        s.Sku,
				"qty":        s.Qty.StringFixed(4),
				"backorders": strconv.Itoa(s.BackOrders),
			})
		}
		m.mu.RUnlock()
		writeKeyed(w, page(rows, r), "item_id")

	case r.Method == http.MethodGet && r.URL.Path == "/api/rest/orders":
		m.mu.RLock()
		rows := make([]map[string]any, 0, len(m.Orders))
		for _, o := range m.Orders {
			rows = append(rows, map[string]any{
				"entity_id":    o.OrderID,
				"increment_id": o.IncrementID,
				"status":       o.Status,
				"grand_total":  o.GrandTotal.StringFixed(4),
				"created_at":   o.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
				"updated_at":   o.UpdatedAt.UTC().Format("2006-01-02 15:04:05"),
			})
		}
		m.mu.RUnlock()
		writeKeyed(w, rows, "entity_id")

	case r.Method == http.MethodPut && r.URL.Path == "/api/rest/stockitems":
		var lines []map[string]any
		if err := json.NewDecoder(r.Body).Decode(&lines); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"messages":{"error":[{"code":400,"message":"Decoding error."}]}}`))
			return
		}
		type verdict struct {
			Message string `json:"message"`
			Code    int    `json:"code"`
			ItemID  string `json:"item_id"`
		}
		var resp struct {
			Messages struct {
				Success []verdict `json:"success"`
				Error   []verdict `json:"error"`
			} `json:"messages"`
		}
		m.mu.Lock()
		for _, line := range lines {
			id := fmt.Sprint(line["item_id"])
			if code, rejected := m.RejectItems[id]; rejected {
				resp.Messages.Error = append(resp.Messages.Error, verdict{Message: "Resource not found.", Code: code, ItemID: id})
				continue
			}
			m.Written = append(m.Written, line)
			resp.Messages.Success = append(resp.Messages.Success, verdict{Message: "Resource updated successful.", Code: http.StatusOK, ItemID: id})
		}
		m.mu.Unlock()
		w.WriteHeader(http.StatusMultiStatus)
		json.NewEncoder(w).Encode(resp)

	default:
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"messages":{"error":[{"code":404,"message":"Request does not match any route."}]}}`))
	}
}

// page slices rows by the page/limit query, re-serving the last page when
// the requested page is past the end.
func page(rows []map[string]any, r *http.Request) []map[string]any {
	p, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if p < 1 {
		p = 1
	}
	if limit <= 0 {
		limit = 10
	}
	if len(rows) == 0 {
		return rows
	}
	lo := (p - 1) * limit
	if lo >= len(rows) {
		lo = ((len(rows) - 1) / limit) * limit
	}
	hi := min(lo+limit, len(rows))
	return rows[lo:hi]
}

func writeKeyed(w http.ResponseWriter, rows []map[string]any, idField string) {
	keyed := make(map[string]map[string]any, len(rows))
	for _, row := range rows {
		keyed[fmt.Sprint(row[idField])] = row
	}
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(keyed)
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"messages":{"error":[{"code":500,"message":"Internal server error"}]}}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"messages":{"error":[{"code":429,"message":"Rate limit exceeded"}]}}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewForbiddenResponse creates a 403 response as sent for a bad signature.
func NewForbiddenResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusForbidden,
		Body:       `{"messages":{"error":[{"code":403,"message":"Access denied"}]}}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}
