package iproductrepo

import (
	"context"

	"github.com/corray333/mall/internal/order/service/models/product"
)

// IProductRepository defines the interface for product stock counters.
type IProductRepository interface {
	// GetByIDsForUpdate loads products by id, taking row locks so the
	// stock check and decrement of order creation see a stable snapshot
	GetByIDsForUpdate(ctx context.Context, ids []int64) (map[int64]product.Product, error)

	// DecrementStockIfSufficient atomically subtracts quantity from the
	// stock counter; reports false when stock would go negative
	DecrementStockIfSufficient(ctx context.Context, productID, quantity int64) (bool, error)

	// IncrementStock atomically adds quantity back to the stock counter
	IncrementStock(ctx context.Context, productID, quantity int64) error
}
