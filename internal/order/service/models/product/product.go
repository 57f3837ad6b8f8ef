package product

// SaleStatus is the product shelf status.
type SaleStatus int

const (
	SaleStatusOnSale  SaleStatus = 1
	SaleStatusOffSale SaleStatus = 2
	SaleStatusDeleted SaleStatus = 3
)

// Product represents a catalog product with its stock counter.
type Product struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	Status     SaleStatus `json:"status"`
	PriceCents int64      `json:"priceCents"`
	Stock      int64      `json:"stock"`
}
