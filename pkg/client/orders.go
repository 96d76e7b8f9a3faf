package client

import (
	"context"
	"fmt"
	"time"

	"github.com/Sternrassler/storesync/pkg/batch"
	"github.com/Sternrassler/storesync/pkg/identity"
	"github.com/Sternrassler/storesync/pkg/inventory"
	"github.com/Sternrassler/storesync/pkg/platform"
	"github.com/Sternrassler/storesync/pkg/timerange"
)

// CreateOrders places one guest order per model. Each order walks the cart
// sequence in order and is not retried: a half-built cart cannot be resumed.
func (c *Client) CreateOrders(ctx context.Context, models []platform.CreateOrderRequest) ([]platform.CreateOrderResult, error) {
	op := c.begin(OpCreateOrders, models)
	out, err := c.createOrders(ctx, op, models)
	return out, op.finish(err, len(out))
}

func (c *Client) createOrders(ctx context.Context, op *operation, models []platform.CreateOrderRequest) ([]platform.CreateOrderResult, error) {
	if err := validateAll(c.validate, models); err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}

	adapter, err := c.route(ctx, false)
	if err != nil {
		return nil, err
	}

	res := batch.Run(ctx, c.batchConfig("create-order", c.config.CreateOrderConcurrency, false), models,
		func(ctx context.Context, m platform.CreateOrderRequest) (platform.CreateOrderResult, error) {
			op.trace("Creating order", m)
			orderID, err := placeOrder(ctx, adapter, m)
			if err != nil {
				return platform.CreateOrderResult{}, err
			}
			result := platform.CreateOrderResult{Request: m, OrderID: orderID}
			op.trace("Order created", result)
			return result, nil
		})
	return res.Values(), res.Err()
}

// placeOrder runs the cart steps. The first product of the model is added.
func placeOrder(ctx context.Context, cart platform.CartBuilder, m platform.CreateOrderRequest) (string, error) {
	cartID, err := cart.CreateCart(ctx, m.StoreID)
	if err != nil {
		return "", fmt.Errorf("create cart: %w", err)
	}
	if err := cart.SetCartCustomer(ctx, cartID, m.Customer, m.StoreID); err != nil {
		return "", fmt.Errorf("cart %s: set customer: %w", cartID, err)
	}
	if err := cart.SetCartAddress(ctx, cartID, m.StoreID); err != nil {
		return "", fmt.Errorf("cart %s: set address: %w", cartID, err)
	}
	if err := cart.AddCartProduct(ctx, cartID, m.ProductIDs[0], m.StoreID); err != nil {
		return "", fmt.Errorf("cart %s: add product: %w", cartID, err)
	}
	if err := cart.SetCartShipping(ctx, cartID, m.StoreID); err != nil {
		return "", fmt.Errorf("cart %s: set shipping: %w", cartID, err)
	}
	if err := cart.SetCartPayment(ctx, cartID, m.StoreID); err != nil {
		return "", fmt.Errorf("cart %s: set payment: %w", cartID, err)
	}
	orderID, err := cart.PlaceOrder(ctx, cartID, m.StoreID)
	if err != nil {
		return "", fmt.Errorf("cart %s: place order: %w", cartID, err)
	}
	return orderID, nil
}

// GetOrdersByID fetches full orders by increment id.
func (c *Client) GetOrdersByID(ctx context.Context, incrementIDs []string) ([]platform.OrderRecord, error) {
	op := c.begin(OpGetOrdersByID, incrementIDs)
	out, err := c.getOrdersByID(ctx, op, incrementIDs)
	return out, op.finish(err, len(out))
}

func (c *Client) getOrdersByID(ctx context.Context, op *operation, incrementIDs []string) ([]platform.OrderRecord, error) {
	if len(incrementIDs) == 0 {
		return nil, nil
	}
	adapter, err := c.route(ctx, true)
	if err != nil {
		return nil, err
	}
	return c.orderDetails(ctx, op, adapter, incrementIDs)
}

// GetOrdersByRange fetches every order created or updated within
// [from, to]. The interval is split into overlapping windows queried
// concurrently; orders seen in two windows are returned once.
func (c *Client) GetOrdersByRange(ctx context.Context, from, to time.Time) ([]platform.OrderRecord, error) {
	from, to = from.UTC(), to.UTC()
	op := c.begin(OpGetOrdersByRange, map[string]time.Time{"from": from, "to": to})
	out, err := c.getOrdersByRange(ctx, op, from, to)
	return out, op.finish(err, len(out))
}

func (c *Client) getOrdersByRange(ctx context.Context, op *operation, from, to time.Time) ([]platform.OrderRecord, error) {
	windows := timerange.Split(from, to, c.config.WindowChunk, c.config.WindowOverlap)
	if len(windows) == 0 {
		return nil, nil
	}

	adapter, err := c.route(ctx, true)
	if err != nil {
		return nil, err
	}

	listed := batch.Run(ctx, c.batchConfig("order-window", c.config.OrderWindowConcurrency, true), windows,
		func(ctx context.Context, w timerange.Window) ([]platform.OrderRecord, error) {
			op.trace("Orders requested", w.String())
			orders, err := adapter.Orders(ctx, w.Start, w.End)
			if err != nil {
				return nil, err
			}
			op.logger.Debug().Str("window", w.String()).Int("orders", len(orders)).Msg("Orders received")
			return orders, nil
		})
	if err := listed.Err(); err != nil {
		return nil, err
	}

	var brief []platform.OrderRecord
	for _, orders := range listed.Values() {
		brief = append(brief, orders...)
	}
	brief = identity.Distinct(brief, identity.OrderKey)
	op.logger.Debug().Int("orders", len(brief)).Msg("Brief orders received")

	ids := make([]string, 0, len(brief))
	for _, o := range brief {
		ids = append(ids, o.IncrementID)
	}
	return c.orderDetails(ctx, op, adapter, ids)
}

// orderDetails fetches full orders and logs them in fixed-size parts.
func (c *Client) orderDetails(ctx context.Context, op *operation, adapter platform.OrderReader, incrementIDs []string) ([]platform.OrderRecord, error) {
	res := batch.Run(ctx, c.batchConfig("order-detail", c.config.OrderDetailConcurrency, true), incrementIDs,
		func(ctx context.Context, id string) (platform.OrderRecord, error) {
			op.trace("Order requested", id)
			o, err := adapter.Order(ctx, id)
			if err != nil {
				return platform.OrderRecord{}, err
			}
			if o == nil {
				return platform.OrderRecord{}, fmt.Errorf("order %s: %w", id, platform.ErrNotFound)
			}
			return *o, nil
		})

	orders := make([]platform.OrderRecord, 0, len(res.Succeeded))
	for i, part := range inventory.Chunk(res.Values(), c.config.OrderResultChunkSize) {
		orders = append(orders, part...)
		op.logger.Info().
			Int("part", i).
			Int("from", i*c.config.OrderResultChunkSize).
			Int("count", len(part)).
			Msg("Orders part received")
	}
	return orders, res.Err()
}

// GetOrders returns the resource protocol's order snapshot.
func (c *Client) GetOrders(ctx context.Context) ([]platform.OrderRecord, error) {
	op := c.begin(OpGetOrders, nil)
	out, err := c.getOrders(ctx)
	return out, op.finish(err, len(out))
}

func (c *Client) getOrders(ctx context.Context) ([]platform.OrderRecord, error) {
	rc, err := c.resourceClient()
	if err != nil {
		return nil, err
	}
	var orders []platform.OrderRecord
	_, err = batch.Retry(ctx, "orders-snapshot", c.config.Retry, func() error {
		var err error
		orders, err = rc.Orders(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return identity.Distinct(orders, identity.OrderKey), nil
}
