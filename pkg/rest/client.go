// Package rest implements the resource-oriented protocol of the remote
// platform: paged product and stock listings, the order snapshot, and
// batched stock writes over HTTP/JSON.
//
// Requests are signed by an injected Signer. The client never retries on its
// own; callers run it under pkg/batch, which reads StatusError.Transient.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Sternrassler/storesync/pkg/logging"
	"github.com/Sternrassler/storesync/pkg/platform"
)

// Prometheus metrics for resource-protocol requests.
var (
	restRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storesync_rest_requests_total",
		Help: "Total resource-protocol requests by endpoint and status",
	}, []string{"endpoint", "status"})

	restRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storesync_rest_request_duration_seconds",
		Help:    "Resource-protocol request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	restErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storesync_rest_errors_total",
		Help: "Total resource-protocol errors by class",
	}, []string{"class"})
)

// Resource paths.
const (
	PathProducts   = "/api/rest/products"
	PathStockItems = "/api/rest/stockitems"
	PathOrders     = "/api/rest/orders"
)

// MaxPageSize is the largest page the platform serves.
const MaxPageSize = 100

const timeLayout = "2006-01-02 15:04:05"

// Signer authorizes an outgoing request, e.g. with OAuth 1.0a headers.
type Signer interface {
	Sign(req *http.Request) error
}

// SignerFunc adapts a function to Signer.
type SignerFunc func(req *http.Request) error

// Sign calls f(req).
func (f SignerFunc) Sign(req *http.Request) error {
	return f(req)
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the store, e.g. "https://shop.example.com".
	BaseURL string

	// UserAgent header sent with every request.
	UserAgent string

	// Timeout per request.
	Timeout time.Duration

	// Signer authorizes requests. Nil sends them unsigned.
	Signer Signer
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:   baseURL,
		UserAgent: "storesync/1.0",
		Timeout:   30 * time.Second,
	}
}

// Client is the resource-protocol client. It is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	config     Config
	logger     zerolog.Logger
}

var _ platform.ResourceClient = (*Client)(nil)

// New creates a new resource-protocol client.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("%w: base url is required", ErrInvalidConfig)
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%w: base url %q", ErrInvalidConfig, cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "storesync/1.0"
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    base,
		config:     cfg,
		logger:     logging.NewLogger(logging.ComponentREST),
	}, nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// BaseURL returns the store base URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

type productWire struct {
	EntityID    string          `json:"entity_id"`
	Sku         string          `json:"sku"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description"`
}

// Products returns one page of the product listing.
func (c *Client) Products(ctx context.Context, page, limit int) ([]platform.ResourceProduct, error) {
	var rows []productWire
	if err := c.getCollection(ctx, PathProducts, pageQuery(page, limit), &rows); err != nil {
		return nil, err
	}
	out := make([]platform.ResourceProduct, 0, len(rows))
	for _, r := range rows {
		out = append(out, platform.ResourceProduct{
			EntityID:    r.EntityID,
			Sku:         r.Sku,
			Name:        r.Name,
			Price:       r.Price,
			Description: r.Description,
		})
	}
	return out, nil
}

type stockWire struct {
	ItemID     string          `json:"item_id"`
	ProductID  string          `json:"product_id"`
	Sku        string          `json:"sku"`
	Qty        decimal.Decimal `json:"qty"`
	BackOrders decimal.Decimal `json:"backorders"`
}

// StockItems returns one page of the stock-item listing.
func (c *Client) StockItems(ctx context.Context, page, limit int) ([]platform.StockItem, error) {
	var rows []stockWire
	if err := c.getCollection(ctx, PathStockItems, pageQuery(page, limit), &rows); err != nil {
		return nil, err
	}
	out := make([]platform.StockItem, 0, len(rows))
	for _, r := range rows {
		out = append(out, platform.StockItem{
			ItemID:     r.ItemID,
			ProductID:  r.ProductID,
			Sku:        r.Sku,
			Qty:        r.Qty,
			BackOrders: int(r.BackOrders.IntPart()),
		})
	}
	return out, nil
}

type orderLineWire struct {
	Sku        string          `json:"sku"`
	Name       string          `json:"name"`
	QtyOrdered decimal.Decimal `json:"qty_ordered"`
	Price      decimal.Decimal `json:"price"`
}

type orderWire struct {
	EntityID      string          `json:"entity_id"`
	IncrementID   string          `json:"increment_id"`
	Status        string          `json:"status"`
	CustomerEmail string          `json:"customer_email"`
	GrandTotal    decimal.Decimal `json:"grand_total"`
	CreatedAt     string          `json:"created_at"`
	UpdatedAt     string          `json:"updated_at"`
	Items         []orderLineWire `json:"order_items"`
}

// Orders returns the order snapshot.
func (c *Client) Orders(ctx context.Context) ([]platform.OrderRecord, error) {
	var rows []orderWire
	if err := c.getCollection(ctx, PathOrders, nil, &rows); err != nil {
		return nil, err
	}
	out := make([]platform.OrderRecord, 0, len(rows))
	for _, r := range rows {
		o := platform.OrderRecord{
			OrderID:       r.EntityID,
			IncrementID:   r.IncrementID,
			Status:        r.Status,
			CustomerEmail: r.CustomerEmail,
			GrandTotal:    r.GrandTotal,
			CreatedAt:     parseTime(r.CreatedAt),
			UpdatedAt:     parseTime(r.UpdatedAt),
		}
		for _, l := range r.Items {
			o.Lines = append(o.Lines, platform.OrderLine{Sku: l.Sku, Name: l.Name, Qty: l.QtyOrdered, Price: l.Price})
		}
		out = append(out, o)
	}
	return out, nil
}

type stockWriteWire struct {
	ItemID    string `json:"item_id"`
	ProductID string `json:"product_id,omitempty"`
	Qty       int64  `json:"qty"`
	MinQty    int64  `json:"min_qty"`
	StockID   string `json:"stock_id,omitempty"`
	InStock   int    `json:"is_in_stock"`
}

type verdictWire struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
	ItemID  string `json:"item_id"`
}

type multiStatusWire struct {
	Messages struct {
		Success []verdictWire `json:"success"`
		Error   []verdictWire `json:"error"`
	} `json:"messages"`
}

// PutStockItems writes a batch of stock levels and returns one verdict per
// line the platform reported.
func (c *Client) PutStockItems(ctx context.Context, items []platform.InventoryItem) ([]platform.StockWriteResult, error) {
	body := make([]stockWriteWire, 0, len(items))
	for _, it := range items {
		inStock := 0
		if it.Qty > 0 {
			inStock = 1
		}
		body = append(body, stockWriteWire{
			ItemID:    it.ItemID,
			ProductID: it.ProductID,
			Qty:       it.Qty,
			MinQty:    it.MinQty,
			StockID:   it.StockID,
			InStock:   inStock,
		})
	}

	raw, err := c.do(ctx, http.MethodPut, PathStockItems, nil, body)
	if err != nil {
		return nil, err
	}

	var ms multiStatusWire
	if err := json.Unmarshal(raw, &ms); err != nil {
		return nil, c.decodeError(PathStockItems, err)
	}

	byID := make(map[string]platform.InventoryItem, len(items))
	for _, it := range items {
		byID[it.ItemID] = it
	}
	verdict := func(v verdictWire) platform.StockWriteResult {
		return platform.StockWriteResult{
			ItemID:    v.ItemID,
			ProductID: byID[v.ItemID].ProductID,
			Code:      v.Code,
			Message:   v.Message,
		}
	}

	out := make([]platform.StockWriteResult, 0, len(ms.Messages.Success)+len(ms.Messages.Error))
	for _, v := range ms.Messages.Success {
		out = append(out, verdict(v))
	}
	for _, v := range ms.Messages.Error {
		out = append(out, verdict(v))
	}
	return out, nil
}

// getCollection fetches a collection the platform encodes as an object keyed
// by entity id, and decodes its values into dst in ascending id order.
func (c *Client) getCollection(ctx context.Context, path string, query url.Values, dst any) error {
	raw, err := c.do(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}

	values, err := collectionValues(raw)
	if err != nil {
		return c.decodeError(path, err)
	}
	if err := json.Unmarshal(values, dst); err != nil {
		return c.decodeError(path, err)
	}
	return nil
}

// collectionValues turns {"2":{..},"10":{..}} or [{..}] into a JSON array.
func collectionValues(raw []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(raw)
	switch {
	case len(trimmed) == 0, bytes.Equal(trimmed, []byte("null")):
		return []byte("[]"), nil
	case trimmed[0] == '[':
		return trimmed, nil
	}

	var keyed map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &keyed); err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(keyed))
	for k := range keyed {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.Atoi(keys[i])
		b, errB := strconv.Atoi(keys[j])
		if errA == nil && errB == nil {
			return a < b
		}
		return keys[i] < keys[j]
	})

	values := make([]json.RawMessage, 0, len(keys))
	for _, k := range keys {
		values = append(values, keyed[k])
	}
	return json.Marshal(values)
}

// do executes one request and returns the body of a 2xx response.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error) {
	startTime := time.Now()
	defer func() {
		restRequestDuration.WithLabelValues(path).Observe(time.Since(startTime).Seconds())
	}()

	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawQuery = query.Encode()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s body: %w", path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.config.Signer != nil {
		if err := c.config.Signer.Sign(req); err != nil {
			return nil, fmt.Errorf("sign request: %w", err)
		}
	}

	c.logger.Debug().
		Str("endpoint", path).
		Str("method", method).
		Msg("Executing resource request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		restErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		restRequestsTotal.WithLabelValues(path, "network_error").Inc()
		c.logger.Error().Err(err).Str("endpoint", path).Msg("HTTP request failed")
		return nil, &StatusError{
			Endpoint:   path,
			ErrorClass: ErrorClassNetwork,
			Message:    err.Error(),
			Err:        errors.Join(platform.ErrUnavailable, err),
		}
	}
	defer resp.Body.Close()

	restRequestsTotal.WithLabelValues(path, strconv.Itoa(resp.StatusCode)).Inc()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		restErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return nil, &StatusError{
			Endpoint:   path,
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassNetwork,
			Message:    err.Error(),
			Err:        errors.Join(platform.ErrUnavailable, err),
		}
	}

	if class, sentinel := classifyStatus(resp.StatusCode); class != "" {
		restErrorsTotal.WithLabelValues(string(class)).Inc()
		c.logger.Warn().
			Str("endpoint", path).
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Msg("Resource request error")
		return nil, &StatusError{
			Endpoint:   path,
			StatusCode: resp.StatusCode,
			ErrorClass: class,
			Message:    errorMessage(resp.Status, raw),
			Err:        sentinel,
		}
	}

	return raw, nil
}

func (c *Client) decodeError(path string, err error) error {
	restErrorsTotal.WithLabelValues(string(ErrorClassDecode)).Inc()
	return &StatusError{
		Endpoint:   path,
		ErrorClass: ErrorClassDecode,
		Message:    err.Error(),
		Err:        err,
	}
}

// errorMessage extracts {"messages":{"error":[{"message":..}]}} when present.
func errorMessage(status string, raw []byte) string {
	var ms multiStatusWire
	if err := json.Unmarshal(raw, &ms); err == nil && len(ms.Messages.Error) > 0 {
		return ms.Messages.Error[0].Message
	}
	return status
}

func pageQuery(page, limit int) url.Values {
	if page < 1 {
		page = 1
	}
	if limit <= 0 || limit > MaxPageSize {
		limit = MaxPageSize
	}
	return url.Values{
		"page":  []string{strconv.Itoa(page)},
		"limit": []string{strconv.Itoa(limit)},
	}
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.ParseInLocation(timeLayout, s, time.UTC); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC()
	}
	return time.Time{}
}
