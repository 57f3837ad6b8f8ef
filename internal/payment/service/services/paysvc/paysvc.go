package paysvc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/corray333/mall/internal/apperr"
	"github.com/corray333/mall/internal/payevent"
	"github.com/corray333/mall/internal/payment/dal/interfaces/ipayinforepo"
	"github.com/corray333/mall/internal/payment/service/models/payinfo"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
)

// publisher delivers payment events with at-least-once semantics.
type publisher interface {
	Publish(queue string, payload []byte) error
}

// PayService keeps payment records and notifies the order service of
// successful payments.
type PayService struct {
	payInfoRepo ipayinforepo.IPayInfoRepository
	publisher   publisher
}

// option is a function that configures the PayService.
type option func(*PayService)

// MustNewPayService creates a new PayService.
func MustNewPayService(opts ...option) *PayService {
	s := &PayService{}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// WithPayInfoRepository sets the pay info repository for the PayService.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithPayInfoRepository(repo ipayinforepo.IPayInfoRepository) option {
	return func(s *PayService) {
		s.payInfoRepo = repo
	}
}

// WithPublisher sets the reliable publisher for the PayService.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithPublisher(p publisher) option {
	return func(s *PayService) {
		s.publisher = p
	}
}

// Create records a new payment attempt for an order. The gateway request
// itself is the SDK's concern and not reproduced here.
func (s *PayService) Create(ctx context.Context, orderNo int64, amount decimal.Decimal) (*payinfo.PayInfo, error) {
	ctx, span := otel.Tracer("service").Start(ctx, "PayService.Create")
	defer span.End()

	now := time.Now()
	info, err := s.payInfoRepo.Insert(ctx, payinfo.PayInfo{
		OrderNo:        orderNo,
		PlatformStatus: payinfo.PlatformStatusNotPay,
		PayAmount:      amount,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		return nil, err
	}

	slog.Info("pay info created", "order_no", orderNo, "amount", amount.String())

	return &info, nil
}

// AsyncNotify handles a verified gateway callback. The gateway retries the
// callback until acknowledged, so this path must tolerate duplicates: the
// status flip is conditional, and re-publishing the event is harmless
// because the order service applies payments idempotently.
func (s *PayService) AsyncNotify(ctx context.Context, n payinfo.Notification) error {
	ctx, span := otel.Tracer("service").Start(ctx, "PayService.AsyncNotify")
	defer span.End()

	info, err := s.payInfoRepo.GetByOrderNo(ctx, n.OrderNo)
	if err != nil {
		// A callback for an order we never created a record for is an
		// inconsistency worth an alert, not a retry.
		slog.Error("gateway notified about unknown pay info", "order_no", n.OrderNo, "error", err)

		return err
	}

	if n.PlatformStatus != payinfo.PlatformStatusSuccess {
		slog.Info("ignoring non-success gateway notification",
			"order_no", n.OrderNo,
			"platform_status", n.PlatformStatus,
		)

		return nil
	}

	if info.PlatformStatus != payinfo.PlatformStatusSuccess {
		if !info.PayAmount.Equal(n.Amount) {
			slog.Error("notified amount does not match pay info",
				"order_no", n.OrderNo,
				"expected", info.PayAmount.String(),
				"got", n.Amount.String(),
			)

			return fmt.Errorf("order %d: %w", n.OrderNo, apperr.ErrAmountMismatch)
		}

		changed, err := s.payInfoRepo.UpdateStatusIfNot(
			ctx,
			n.OrderNo,
			payinfo.PlatformStatusSuccess,
			payinfo.PlatformStatusSuccess,
			n.PlatformNumber,
		)
		if err != nil {
			return err
		}
		if !changed {
			slog.Info("pay info already marked successful", "order_no", n.OrderNo)
		}
	}

	payload, err := json.Marshal(payevent.PaymentNotification{
		OrderNo:        n.OrderNo,
		PlatformStatus: payevent.PlatformStatusSuccess,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal payment notification: %w", err)
	}

	queue := viper.GetString("rabbitmq.pay_notify_queue")
	if err := s.publisher.Publish(queue, payload); err != nil {
		return fmt.Errorf("failed to publish payment notification: %w", err)
	}

	slog.Info("payment notification published", "order_no", n.OrderNo)

	return nil
}

// Query returns the payment record for an order.
func (s *PayService) Query(ctx context.Context, orderNo int64) (*payinfo.PayInfo, error) {
	return s.payInfoRepo.GetByOrderNo(ctx, orderNo)
}
