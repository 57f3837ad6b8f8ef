package iorderitemrepo

import (
	"context"

	"github.com/corray333/mall/internal/order/service/models/orderitem"
)

// IOrderItemRepository defines the interface for order line items.
type IOrderItemRepository interface {
	// BulkInsert stores the line items of a new order
	BulkInsert(ctx context.Context, items []orderitem.OrderItem) ([]orderitem.OrderItem, error)

	// GetByOrderNos returns the line items of the given orders
	GetByOrderNos(ctx context.Context, orderNos []int64) ([]orderitem.OrderItem, error)
}
