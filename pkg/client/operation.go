package client

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/storesync/pkg/batch"
	"github.com/Sternrassler/storesync/pkg/logging"
)

// Prometheus metrics for public operations.
var (
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storesync_operations_total",
		Help: "Total public operations by name and status",
	}, []string{"operation", "status"})

	operationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storesync_operation_duration_seconds",
		Help:    "Public operation duration in seconds by name",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
	}, []string{"operation"})
)

// Operation names used in logs, metrics and errors.
const (
	OpCreateProducts          = "CreateProducts"
	OpCreateOrders            = "CreateOrders"
	OpDeleteProducts          = "DeleteProducts"
	OpGetOrdersByID           = "GetOrdersByID"
	OpGetOrdersByRange        = "GetOrdersByRange"
	OpGetOrders               = "GetOrders"
	OpGetProductsSimple       = "GetProductsSimple"
	OpGetProducts             = "GetProducts"
	OpFillProductDetails      = "FillProductDetails"
	OpUpdateInventory         = "UpdateInventory"
	OpUpdateInventoryBySku    = "UpdateInventoryBySku"
	OpUpdateInventoryResource = "UpdateInventoryResource"
	OpPingLegacy              = "PingLegacy"
	OpPingResource            = "PingResource"
)

const maxParamsLen = 512

// operation tracks one public call from start to finish.
type operation struct {
	name   string
	mark   string
	params string
	start  time.Time
	logger zerolog.Logger
}

func (c *Client) begin(name string, params any) *operation {
	op := &operation{
		name:   name,
		mark:   uuid.NewString(),
		params: summarize(params),
		start:  time.Now(),
	}
	op.logger = logging.WithOperation(c.logger, name, op.mark)

	op.logger.Info().Str("params", op.params).Msg("Operation started")
	return op
}

// finish records the outcome and wraps a failure into *OperationError.
func (o *operation) finish(err error, results int) error {
	elapsed := time.Since(o.start)
	operationDuration.WithLabelValues(o.name).Observe(elapsed.Seconds())

	if err == nil {
		operationsTotal.WithLabelValues(o.name, "success").Inc()
		o.logger.Info().
			Dur("duration", elapsed).
			Int("results", results).
			Msg("Operation finished")
		return nil
	}

	status := "error"
	if errors.Is(err, batch.ErrPartialFailure) {
		status = "partial"
	}
	operationsTotal.WithLabelValues(o.name, status).Inc()

	wrapped := &OperationError{Operation: o.name, Params: o.params, Mark: o.mark, Err: err}
	o.logger.Error().
		Err(err).
		Str("params", o.params).
		Dur("duration", elapsed).
		Int("results", results).
		Msg("Operation failed")
	return wrapped
}

// trace logs one unit of work at Debug.
func (o *operation) trace(msg string, item any) {
	if e := o.logger.Debug(); e.Enabled() {
		e.Str("item", summarize(item)).Msg(msg)
	}
}

func summarize(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return truncate(s)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "<unencodable>"
	}
	return truncate(string(data))
}

func truncate(s string) string {
	if len(s) <= maxParamsLen {
		return s
	}
	return s[:maxParamsLen] + "..."
}
