package ipayinforepo

import (
	"context"

	"github.com/corray333/mall/internal/payment/service/models/payinfo"
)

// IPayInfoRepository defines the interface for payment records.
type IPayInfoRepository interface {
	// Insert stores a new payment record
	Insert(ctx context.Context, info payinfo.PayInfo) (payinfo.PayInfo, error)

	// GetByOrderNo returns the payment record for an order
	GetByOrderNo(ctx context.Context, orderNo int64) (*payinfo.PayInfo, error)

	// UpdateStatusIfNot sets platform status and number unless the record
	// already carries notStatus; reports whether a row changed
	UpdateStatusIfNot(ctx context.Context, orderNo int64, notStatus, newStatus, platformNumber string) (bool, error)
}
