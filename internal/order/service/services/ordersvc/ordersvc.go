package ordersvc

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/corray333/mall/internal/apperr"
	"github.com/corray333/mall/internal/order/dal/interfaces/iorderitemrepo"
	"github.com/corray333/mall/internal/order/dal/interfaces/iorderrepo"
	"github.com/corray333/mall/internal/order/dal/interfaces/iproductrepo"
	"github.com/corray333/mall/internal/order/dal/uow"
	"github.com/corray333/mall/internal/order/service/models/order"
	"github.com/corray333/mall/internal/order/service/models/orderitem"
	"github.com/corray333/mall/internal/order/service/models/product"
	"github.com/corray333/mall/internal/postgres"
	"go.opentelemetry.io/otel"
)

// OrderService is a service for managing orders and applying payment
// confirmations.
type OrderService struct {
	pgClient  *postgres.Client
	scheduler scheduler
	canceler  canceler
	newUOW    func() unitOfWork
}

type unitOfWork interface {
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error

	OrderRepository() iorderrepo.IOrderRepository
	OrderItemRepository() iorderitemrepo.IOrderItemRepository
	ProductRepository() iproductrepo.IProductRepository
}

// scheduler registers the deferred auto-cancellation for a new order.
type scheduler interface {
	Schedule(orderNo int64)
}

// canceler is the shared cancel-and-restore primitive.
type canceler interface {
	CancelIfUnpaid(ctx context.Context, orderNo int64) error
}

// option is a function that configures the OrderService.
type option func(*OrderService)

// MustNewOrderService creates a new OrderService.
func MustNewOrderService(opts ...option) *OrderService {
	s := &OrderService{}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// WithPostgresClient sets the Postgres client for the OrderService.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithPostgresClient(pgClient *postgres.Client) option {
	return func(s *OrderService) {
		s.pgClient = pgClient
		s.newUOW = func() unitOfWork {
			return uow.NewUnitOfWork(pgClient)
		}
	}
}

// WithScheduler sets the timeout scheduler for the OrderService.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithScheduler(sched scheduler) option {
	return func(s *OrderService) {
		s.scheduler = sched
	}
}

// WithCanceler sets the cancellation service for the OrderService.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithCanceler(c canceler) option {
	return func(s *OrderService) {
		s.canceler = c
	}
}

// WithUnitOfWorkFactory overrides how units of work are created.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithUnitOfWorkFactory(factory func() unitOfWork) option {
	return func(s *OrderService) {
		s.newUOW = factory
	}
}

// Create places a new order: it checks and decrements stock for every
// requested item, inserts the order with its line items in one transaction
// and registers the auto-cancellation timeout. Insufficient stock rejects
// the whole order, nothing is committed partially.
func (s *OrderService) Create(
	ctx context.Context,
	model order.CreateOrderModel,
) (*order.Order, error) {
	ctx, span := otel.Tracer("service").Start(ctx, "OrderService.Create")
	defer span.End()

	work := s.newUOW()

	if err := work.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = work.Rollback(ctx)
	}()

	productIDs := make([]int64, 0, len(model.Items))
	for _, item := range model.Items {
		productIDs = append(productIDs, item.ProductID)
	}

	products, err := work.ProductRepository().GetByIDsForUpdate(ctx, productIDs)
	if err != nil {
		return nil, err
	}

	orderNo := generateOrderNo()
	now := time.Now()

	items := make([]orderitem.OrderItem, 0, len(model.Items))
	var paymentCents int64
	for _, requested := range model.Items {
		p, ok := products[requested.ProductID]
		if !ok {
			return nil, fmt.Errorf("product %d: %w", requested.ProductID, apperr.ErrProductNotFound)
		}
		if p.Status != product.SaleStatusOnSale {
			return nil, fmt.Errorf("product %d: %w", p.ID, apperr.ErrProductNotOnSale)
		}
		if p.Stock < requested.Quantity {
			return nil, fmt.Errorf("product %d has stock %d, need %d: %w",
				p.ID, p.Stock, requested.Quantity, apperr.ErrInsufficientStock)
		}

		ok, err := work.ProductRepository().DecrementStockIfSufficient(ctx, p.ID, requested.Quantity)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("product %d: %w", p.ID, apperr.ErrInsufficientStock)
		}

		items = append(items, orderitem.OrderItem{
			OrderNo:        orderNo,
			ProductID:      p.ID,
			ProductName:    p.Name,
			UnitPriceCents: p.PriceCents,
			Quantity:       requested.Quantity,
			TotalCents:     p.PriceCents * requested.Quantity,
		})
		paymentCents += p.PriceCents * requested.Quantity
	}

	created, err := work.OrderRepository().Insert(ctx, order.Order{
		OrderNo:      orderNo,
		UserID:       model.UserID,
		ShippingID:   model.ShippingID,
		PaymentCents: paymentCents,
		Status:       order.StatusNoPay,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return nil, err
	}

	items, err = work.OrderItemRepository().BulkInsert(ctx, items)
	if err != nil {
		return nil, err
	}
	created.OrderItems = items

	if err := work.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	if s.scheduler != nil {
		s.scheduler.Schedule(orderNo)
	}

	slog.Info("order created", "order_no", orderNo, "user_id", model.UserID, "payment_cents", paymentCents)

	return &created, nil
}

// List returns the user's orders with their line items, newest first.
func (s *OrderService) List(ctx context.Context, userID int64, page, pageSize int) ([]order.Order, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}

	work := s.newUOW()

	orders, err := work.OrderRepository().QueryByUser(ctx, order.QueryOrdersModel{
		UserID: userID,
		Limit:  pageSize,
		Offset: (page - 1) * pageSize,
	})
	if err != nil {
		return nil, err
	}

	if len(orders) == 0 {
		return []order.Order{}, nil
	}

	orderNos := make([]int64, 0, len(orders))
	for _, o := range orders {
		orderNos = append(orderNos, o.OrderNo)
	}

	items, err := work.OrderItemRepository().GetByOrderNos(ctx, orderNos)
	if err != nil {
		return nil, err
	}

	for i := range orders {
		for _, item := range items {
			if item.OrderNo == orders[i].OrderNo {
				orders[i].OrderItems = append(orders[i].OrderItems, item)
			}
		}
	}

	return orders, nil
}

// Detail returns a single order with its line items, checking ownership.
func (s *OrderService) Detail(ctx context.Context, userID, orderNo int64) (*order.Order, error) {
	work := s.newUOW()

	ord, err := work.OrderRepository().GetByOrderNo(ctx, orderNo)
	if err != nil {
		return nil, err
	}
	if ord.UserID != userID {
		return nil, fmt.Errorf("order %d: %w", orderNo, apperr.ErrOrderNotFound)
	}

	items, err := work.OrderItemRepository().GetByOrderNos(ctx, []int64{orderNo})
	if err != nil {
		return nil, err
	}
	ord.OrderItems = items

	return ord, nil
}

// Cancel is the user-initiated cancellation. Ownership and state are
// verified here; the transition and stock restoration go through the same
// primitive the timeout job uses.
func (s *OrderService) Cancel(ctx context.Context, userID, orderNo int64) error {
	ctx, span := otel.Tracer("service").Start(ctx, "OrderService.Cancel")
	defer span.End()

	work := s.newUOW()

	ord, err := work.OrderRepository().GetByOrderNo(ctx, orderNo)
	if err != nil {
		return err
	}
	if ord.UserID != userID {
		return fmt.Errorf("order %d: %w", orderNo, apperr.ErrOrderNotFound)
	}
	if ord.Status != order.StatusNoPay {
		return fmt.Errorf("order %d has status %s, only unpaid orders can be canceled: %w",
			orderNo, ord.Status, apperr.ErrOrderStatusConflict)
	}

	return s.canceler.CancelIfUnpaid(ctx, orderNo)
}

// ApplyPayment moves an order to paid after a payment-success event. It is
// idempotent and safe under arbitrary redelivery:
//
//  1. try NO_PAY -> PAID on the version read in the snapshot;
//  2. on a lost race, re-read: paid-or-later means the payment is already
//     applied, a no-op;
//  3. a canceled order is revived CANCELED -> PAID, but only on the exact
//     version the cancellation wrote. A second lost race there means some
//     third writer touched the order in between and is surfaced as a
//     conflict, never retried blindly.
func (s *OrderService) ApplyPayment(ctx context.Context, orderNo int64) error {
	ctx, span := otel.Tracer("service").Start(ctx, "OrderService.ApplyPayment")
	defer span.End()

	repo := s.newUOW().OrderRepository()

	snap, err := repo.GetByOrderNo(ctx, orderNo)
	if err != nil {
		return err
	}

	committed, err := repo.ConditionalUpdateStatus(ctx, order.ConditionalStatusUpdate{
		OrderNo:         orderNo,
		FromStatus:      order.StatusNoPay,
		ExpectedVersion: snap.UpdatedAt,
		ToStatus:        order.StatusPaid,
		NewVersion:      time.Now(),
	})
	if err != nil {
		return err
	}
	if committed {
		slog.Info("order paid", "order_no", orderNo)

		return nil
	}

	cur, err := repo.GetByOrderNo(ctx, orderNo)
	if err != nil {
		return err
	}

	if cur.Status.PaidOrLater() {
		slog.Info("payment already applied", "order_no", orderNo, "status", cur.Status.String())

		return nil
	}

	if cur.Status == order.StatusCanceled {
		committed, err := repo.ConditionalUpdateStatus(ctx, order.ConditionalStatusUpdate{
			OrderNo:         orderNo,
			FromStatus:      order.StatusCanceled,
			ExpectedVersion: cur.UpdatedAt,
			ToStatus:        order.StatusPaid,
			NewVersion:      time.Now(),
		})
		if err != nil {
			return err
		}
		if committed {
			slog.Info("canceled order revived to paid", "order_no", orderNo)

			return nil
		}

		slog.Error("revive lost a second race, needs manual reconciliation",
			"order_no", orderNo,
			"status", cur.Status.String(),
		)

		return fmt.Errorf("revive of order %d failed: %w", orderNo, apperr.ErrOrderStatusConflict)
	}

	slog.Error("payment arrived for order in unexpected status",
		"order_no", orderNo,
		"status", cur.Status.String(),
	)

	return fmt.Errorf("order %d has status %s: %w", orderNo, cur.Status, apperr.ErrOrderStatusConflict)
}

func generateOrderNo() int64 {
	return time.Now().UnixMilli() + rand.Int63n(999)
}
