package closesvc

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/corray333/mall/internal/apperr"
	"github.com/corray333/mall/internal/order/dal/interfaces/iorderitemrepo"
	"github.com/corray333/mall/internal/order/dal/interfaces/iorderrepo"
	"github.com/corray333/mall/internal/order/dal/interfaces/iproductrepo"
	"github.com/corray333/mall/internal/order/dal/uow"
	"github.com/corray333/mall/internal/order/service/models/order"
	"github.com/corray333/mall/internal/postgres"
	"go.opentelemetry.io/otel"
)

// CloseService cancels unpaid orders and restores their stock.
type CloseService struct {
	pgClient *postgres.Client
	newUOW   func() unitOfWork
}

type unitOfWork interface {
	OrderRepository() iorderrepo.IOrderRepository
	OrderItemRepository() iorderitemrepo.IOrderItemRepository
	ProductRepository() iproductrepo.IProductRepository
}

// option is a function that configures the CloseService.
type option func(*CloseService)

// MustNewCloseService creates a new CloseService.
func MustNewCloseService(opts ...option) *CloseService {
	s := &CloseService{}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// WithPostgresClient sets the Postgres client for the CloseService.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithPostgresClient(pgClient *postgres.Client) option {
	return func(s *CloseService) {
		s.pgClient = pgClient
		s.newUOW = func() unitOfWork {
			return uow.NewUnitOfWork(pgClient)
		}
	}
}

// WithUnitOfWorkFactory overrides how units of work are created.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithUnitOfWorkFactory(factory func() unitOfWork) option {
	return func(s *CloseService) {
		s.newUOW = factory
	}
}

// CancelIfUnpaid cancels the order if it is still unpaid and restores the
// stock of every line item. Both the user-facing cancel endpoint and the
// timeout job call this.
//
// The status flip commits strictly before any stock is restored. If the
// process dies in between, stock is left short until an external
// reconciliation pass; the reverse order would restore stock for an order
// that is still payable.
func (s *CloseService) CancelIfUnpaid(ctx context.Context, orderNo int64) error {
	ctx, span := otel.Tracer("service").Start(ctx, "CloseService.CancelIfUnpaid")
	defer span.End()

	work := s.newUOW()

	ord, err := work.OrderRepository().GetByOrderNo(ctx, orderNo)
	if err != nil {
		if errors.Is(err, apperr.ErrOrderNotFound) {
			slog.Warn("order to cancel does not exist, skipping", "order_no", orderNo)

			return nil
		}

		return err
	}

	if ord.Status != order.StatusNoPay {
		slog.Info("order is not unpaid, nothing to cancel",
			"order_no", orderNo,
			"status", ord.Status.String(),
		)

		return nil
	}

	now := time.Now()
	committed, err := work.OrderRepository().ConditionalUpdateStatus(ctx, order.ConditionalStatusUpdate{
		OrderNo:         orderNo,
		FromStatus:      order.StatusNoPay,
		ExpectedVersion: ord.UpdatedAt,
		ToStatus:        order.StatusCanceled,
		NewVersion:      now,
		CloseTime:       &now,
	})
	if err != nil {
		return err
	}
	if !committed {
		// A concurrent writer (most likely the payment) got there first.
		slog.Info("cancel lost the race, leaving order as is", "order_no", orderNo)

		return nil
	}

	items, err := work.OrderItemRepository().GetByOrderNos(ctx, []int64{orderNo})
	if err != nil {
		return err
	}

	for _, item := range items {
		if err := work.ProductRepository().IncrementStock(ctx, item.ProductID, item.Quantity); err != nil {
			slog.Error("failed to restore stock after cancellation",
				"order_no", orderNo,
				"product_id", item.ProductID,
				"quantity", item.Quantity,
				"error", err,
			)

			return err
		}
	}

	slog.Info("order canceled and stock restored", "order_no", orderNo, "items", len(items))

	return nil
}
