package payevent

// PlatformStatusSuccess is the only platform status the order service acts
// upon; any other value is accepted and ignored.
const PlatformStatusSuccess = "SUCCESS"

// PaymentNotification is the wire payload carried on the payNotify queue
// from the payment service.
type PaymentNotification struct {
	OrderNo        int64  `json:"orderNo"`
	PlatformStatus string `json:"platformStatus"`
}
