package order

import (
	"time"

	"github.com/corray333/mall/internal/order/service/models/orderitem"
)

// Status is the order lifecycle status. Codes follow the storefront's
// storage encoding.
type Status int

const (
	StatusCanceled     Status = 0
	StatusNoPay        Status = 10
	StatusPaid         Status = 20
	StatusShipped      Status = 40
	StatusTradeSuccess Status = 50
)

func (s Status) String() string {
	switch s {
	case StatusCanceled:
		return "CANCELED"
	case StatusNoPay:
		return "NO_PAY"
	case StatusPaid:
		return "PAID"
	case StatusShipped:
		return "SHIPPED"
	case StatusTradeSuccess:
		return "TRADE_SUCCESS"
	default:
		return "UNKNOWN"
	}
}

// PaidOrLater reports whether the payment has already been applied or the
// order has moved past payment.
func (s Status) PaidOrLater() bool {
	return s == StatusPaid || s == StatusShipped || s == StatusTradeSuccess
}

// Order represents an order in the system. UpdatedAt doubles as the
// optimistic-concurrency version token: every committed write moves it, and
// no status transition commits without matching the expected prior value.
type Order struct {
	ID           int64                 `json:"id"`
	OrderNo      int64                 `json:"orderNo"`
	UserID       int64                 `json:"userId"`
	ShippingID   int64                 `json:"shippingId"`
	PaymentCents int64                 `json:"paymentCents"`
	Status       Status                `json:"status"`
	CloseTime    *time.Time            `json:"closeTime,omitempty"`
	CreatedAt    time.Time             `json:"createdAt"`
	UpdatedAt    time.Time             `json:"updatedAt"`
	OrderItems   []orderitem.OrderItem `json:"orderItems"`
}

// ConditionalStatusUpdate describes a single compare-and-swap write against
// the order row: it commits only if the stored row still has FromStatus and
// ExpectedVersion, and on commit sets ToStatus and NewVersion (plus CloseTime
// when non-nil).
type ConditionalStatusUpdate struct {
	OrderNo         int64
	FromStatus      Status
	ExpectedVersion time.Time
	ToStatus        Status
	NewVersion      time.Time
	CloseTime       *time.Time
}

// CreateOrderModel is the input of order creation.
type CreateOrderModel struct {
	UserID     int64
	ShippingID int64
	Items      []CreateOrderItemModel
}

// CreateOrderItemModel is one requested line of a new order.
type CreateOrderItemModel struct {
	ProductID int64
	Quantity  int64
}

// QueryOrdersModel is a filter for order listing.
type QueryOrdersModel struct {
	UserID int64
	Limit  int
	Offset int
}
