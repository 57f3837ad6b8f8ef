package iorderrepo

import (
	"context"

	"github.com/corray333/mall/internal/order/service/models/order"
)

// IOrderRepository defines the interface for order persistence.
type IOrderRepository interface {
	// Insert stores a new order and returns it with its generated id
	Insert(ctx context.Context, o order.Order) (order.Order, error)

	// GetByOrderNo returns the order with the given order number
	GetByOrderNo(ctx context.Context, orderNo int64) (*order.Order, error)

	// QueryByUser returns orders belonging to a user, newest first
	QueryByUser(ctx context.Context, filter order.QueryOrdersModel) ([]order.Order, error)

	// ConditionalUpdateStatus performs a single atomic compare-and-swap on
	// the order row. It reports whether the write committed; losing the
	// race is not an error.
	ConditionalUpdateStatus(ctx context.Context, upd order.ConditionalStatusUpdate) (bool, error)
}
