package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/storesync/pkg/batch"
	"github.com/Sternrassler/storesync/pkg/client"
	"github.com/Sternrassler/storesync/pkg/inventory"
	"github.com/Sternrassler/storesync/pkg/metrics"
	"github.com/Sternrassler/storesync/pkg/platform"
)

// maxInventoryBody caps the size of a PUT /inventory body.
const maxInventoryBody = 4 << 20

// catalogKey names the cached GET /products snapshot.
const catalogKey = "catalog-snapshot"

// snapshotCache holds JSON snapshots between requests.
type snapshotCache interface {
	Load(ctx context.Context, name string, dst any) (bool, error)
	Store(ctx context.Context, name string, value any) error
}

// syncer is the part of the sync client the proxy serves.
type syncer interface {
	GetProductsSimple(ctx context.Context) ([]platform.CatalogRecord, error)
	GetOrders(ctx context.Context) ([]platform.OrderRecord, error)
	UpdateInventoryResource(ctx context.Context, items []platform.InventoryItem) error
	PingResource(ctx context.Context) (client.ResourcePing, error)
}

type server struct {
	sync    syncer
	redis   *redis.Client
	catalog snapshotCache
	timeout time.Duration
	maxBody int64
	logger  zerolog.Logger
}

func (s *server) routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", healthHandler).Methods(http.MethodGet)
	r.HandleFunc("/ready", s.readyHandler).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/products", s.productsHandler).Methods(http.MethodGet)
	r.HandleFunc("/orders", s.ordersHandler).Methods(http.MethodGet)
	r.HandleFunc("/inventory", s.inventoryHandler).Methods(http.MethodPut)
	return r
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// readyHandler reports ready when the store answers and, if configured,
// Redis responds.
func (s *server) readyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			s.logger.Warn().Err(err).Msg("Redis not ready")
			http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	if _, err := s.sync.PingResource(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Store not ready")
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// productsHandler serves the product listing, from the snapshot cache when
// one is configured and still holds it.
func (s *server) productsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	var products []platform.CatalogRecord
	if s.catalog != nil {
		hit, err := s.catalog.Load(ctx, catalogKey, &products)
		if err != nil {
			s.logger.Warn().Err(err).Msg("Catalog cache read failed")
		}
		if hit {
			w.Header().Set("X-Cache", "HIT")
			s.writeJSON(w, http.StatusOK, products)
			return
		}
	}

	products, err := s.sync.GetProductsSimple(ctx)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if s.catalog != nil {
		if err := s.catalog.Store(ctx, catalogKey, products); err != nil {
			s.logger.Warn().Err(err).Msg("Catalog cache write failed")
		}
		w.Header().Set("X-Cache", "MISS")
	}
	s.writeJSON(w, http.StatusOK, products)
}

func (s *server) ordersHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	orders, err := s.sync.GetOrders(ctx)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, orders)
}

// inventoryResponse is the body of a PUT /inventory answer.
type inventoryResponse struct {
	Updated []platform.InventoryItem `json:"updated"`
	Failed  []failedItem             `json:"failed"`
}

type failedItem struct {
	ItemID  string `json:"item_id"`
	Code    int    `json:"code,omitempty"`
	Message string `json:"message"`
}

func (s *server) inventoryHandler(w http.ResponseWriter, r *http.Request) {
	limit := s.maxBody
	if limit <= 0 {
		limit = maxInventoryBody
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	var items []platform.InventoryItem
	if err := json.NewDecoder(r.Body).Decode(&items); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "inventory body too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "invalid inventory body: "+err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	err := s.sync.UpdateInventoryResource(ctx, items)
	if err == nil {
		s.writeJSON(w, http.StatusOK, inventoryResponse{Updated: items, Failed: []failedItem{}})
		return
	}

	var upd *inventory.UpdateError
	if !errors.As(err, &upd) {
		s.writeError(w, err)
		return
	}
	resp := inventoryResponse{Updated: upd.Updated, Failed: make([]failedItem, 0, len(upd.Failed))}
	for _, f := range upd.Failed {
		msg := f.Message
		if f.Err != nil {
			msg = f.Err.Error()
		}
		resp.Failed = append(resp.Failed, failedItem{ItemID: f.Item.ItemID, Code: f.Code, Message: msg})
	}
	s.writeJSON(w, http.StatusMultiStatus, resp)
}

// statusFor maps an operation error to the proxy's HTTP status. Remote
// failures of every other kind are reported as 502.
func statusFor(err error) int {
	switch {
	case errors.Is(err, client.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, batch.ErrPartialFailure):
		return http.StatusMultiStatus
	case errors.Is(err, client.ErrNoResourceClient), errors.Is(err, client.ErrNoRouter):
		return http.StatusNotImplemented
	default:
		return http.StatusBadGateway
	}
}

func (s *server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	body := map[string]string{"error": err.Error()}

	var opErr *client.OperationError
	if errors.As(err, &opErr) {
		body["operation"] = opErr.Operation
		body["mark"] = opErr.Mark
	}
	s.writeJSON(w, status, body)
}

func (s *server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("Failed to write response")
	}
}
