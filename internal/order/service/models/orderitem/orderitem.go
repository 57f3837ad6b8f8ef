package orderitem

// OrderItem is a single line of an order. Immutable once the order exists;
// Quantity is exactly the amount returned to stock if the order is canceled.
type OrderItem struct {
	ID             int64  `json:"id"`
	OrderNo        int64  `json:"orderNo"`
	ProductID      int64  `json:"productId"`
	ProductName    string `json:"productName"`
	UnitPriceCents int64  `json:"unitPriceCents"`
	Quantity       int64  `json:"quantity"`
	TotalCents     int64  `json:"totalCents"`
}
