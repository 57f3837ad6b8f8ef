package payinfo

import (
	"time"

	"github.com/shopspring/decimal"
)

// Platform statuses as reported by the payment gateway.
const (
	PlatformStatusNotPay  = "NOTPAY"
	PlatformStatusSuccess = "SUCCESS"
)

// PayInfo is the payment record kept per order.
type PayInfo struct {
	ID             int64           `json:"id"`
	OrderNo        int64           `json:"orderNo"`
	PlatformStatus string          `json:"platformStatus"`
	PlatformNumber string          `json:"platformNumber"`
	PayAmount      decimal.Decimal `json:"payAmount"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// Notification is a verified gateway callback, after signature checking
// (which is the gateway SDK's concern, outside this service).
type Notification struct {
	OrderNo        int64
	PlatformStatus string
	PlatformNumber string
	Amount         decimal.Decimal
}
