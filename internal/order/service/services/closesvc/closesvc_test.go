package closesvc

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/corray333/mall/internal/apperr"
	"github.com/corray333/mall/internal/order/dal/interfaces/iorderitemrepo"
	"github.com/corray333/mall/internal/order/dal/interfaces/iorderrepo"
	"github.com/corray333/mall/internal/order/dal/interfaces/iproductrepo"
	"github.com/corray333/mall/internal/order/service/models/order"
	"github.com/corray333/mall/internal/order/service/models/orderitem"
	"github.com/corray333/mall/internal/order/service/models/product"
)

type memStore struct {
	mu       sync.Mutex
	orders   map[int64]order.Order
	items    map[int64][]orderitem.OrderItem
	products map[int64]product.Product
}

func newMemStore() *memStore {
	return &memStore{
		orders:   make(map[int64]order.Order),
		items:    make(map[int64][]orderitem.OrderItem),
		products: make(map[int64]product.Product),
	}
}

func (s *memStore) Insert(_ context.Context, o order.Order) (order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.orders[o.OrderNo] = o

	return o, nil
}

func (s *memStore) GetByOrderNo(_ context.Context, orderNo int64) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderNo]
	if !ok {
		return nil, apperr.ErrOrderNotFound
	}

	return &o, nil
}

func (s *memStore) QueryByUser(context.Context, order.QueryOrdersModel) ([]order.Order, error) {
	return nil, nil
}

func (s *memStore) ConditionalUpdateStatus(_ context.Context, upd order.ConditionalStatusUpdate) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[upd.OrderNo]
	if !ok || o.Status != upd.FromStatus || !o.UpdatedAt.Equal(upd.ExpectedVersion) {
		return false, nil
	}

	o.Status = upd.ToStatus
	o.UpdatedAt = upd.NewVersion
	if upd.CloseTime != nil {
		o.CloseTime = upd.CloseTime
	}
	s.orders[upd.OrderNo] = o

	return true, nil
}

func (s *memStore) BulkInsert(_ context.Context, items []orderitem.OrderItem) ([]orderitem.OrderItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, item := range items {
		s.items[item.OrderNo] = append(s.items[item.OrderNo], item)
	}

	return items, nil
}

func (s *memStore) GetByOrderNos(_ context.Context, orderNos []int64) ([]orderitem.OrderItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []orderitem.OrderItem{}
	for _, no := range orderNos {
		out = append(out, s.items[no]...)
	}

	return out, nil
}

func (s *memStore) GetByIDsForUpdate(context.Context, []int64) (map[int64]product.Product, error) {
	return nil, nil
}

func (s *memStore) DecrementStockIfSufficient(context.Context, int64, int64) (bool, error) {
	return false, nil
}

func (s *memStore) IncrementStock(_ context.Context, productID, quantity int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.products[productID]
	p.Stock += quantity
	s.products[productID] = p

	return nil
}

func (s *memStore) order(orderNo int64) order.Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.orders[orderNo]
}

func (s *memStore) stock(productID int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.products[productID].Stock
}

type memUOW struct {
	store *memStore
}

func (u *memUOW) OrderRepository() iorderrepo.IOrderRepository             { return u.store }
func (u *memUOW) OrderItemRepository() iorderitemrepo.IOrderItemRepository { return u.store }
func (u *memUOW) ProductRepository() iproductrepo.IProductRepository       { return u.store }

func newTestService(store *memStore) *CloseService {
	return MustNewCloseService(
		WithUnitOfWorkFactory(func() unitOfWork { return &memUOW{store: store} }),
	)
}

func TestCancelIfUnpaidCancelsAndRestoresStock(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.orders[1001] = order.Order{
		OrderNo:   1001,
		UserID:    7,
		Status:    order.StatusNoPay,
		UpdatedAt: time.Now().Add(-time.Minute),
	}
	store.items[1001] = []orderitem.OrderItem{
		{OrderNo: 1001, ProductID: 1, Quantity: 2},
		{OrderNo: 1001, ProductID: 2, Quantity: 1},
	}
	store.products[1] = product.Product{ID: 1, Stock: 8}
	store.products[2] = product.Product{ID: 2, Stock: 2}

	svc := newTestService(store)

	if err := svc.CancelIfUnpaid(context.Background(), 1001); err != nil {
		t.Fatalf("CancelIfUnpaid() error = %v", err)
	}

	got := store.order(1001)
	if got.Status != order.StatusCanceled {
		t.Errorf("order status = %s, want CANCELED", got.Status)
	}
	if got.CloseTime == nil {
		t.Error("close time not set on canceled order")
	}
	if s := store.stock(1); s != 10 {
		t.Errorf("product 1 stock = %d, want 10", s)
	}
	if s := store.stock(2); s != 3 {
		t.Errorf("product 2 stock = %d, want 3", s)
	}
}

func TestCancelIfUnpaidSkipsNonUnpaidOrders(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status order.Status
	}{
		{name: "paid", status: order.StatusPaid},
		{name: "already canceled", status: order.StatusCanceled},
		{name: "shipped", status: order.StatusShipped},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := newMemStore()
			version := time.Now().Add(-time.Minute)
			store.orders[1001] = order.Order{OrderNo: 1001, Status: tt.status, UpdatedAt: version}
			store.items[1001] = []orderitem.OrderItem{{OrderNo: 1001, ProductID: 1, Quantity: 2}}
			store.products[1] = product.Product{ID: 1, Stock: 8}

			svc := newTestService(store)

			if err := svc.CancelIfUnpaid(context.Background(), 1001); err != nil {
				t.Fatalf("CancelIfUnpaid() error = %v", err)
			}

			got := store.order(1001)
			if got.Status != tt.status {
				t.Errorf("order status = %s, want %s untouched", got.Status, tt.status)
			}
			if !got.UpdatedAt.Equal(version) {
				t.Error("no-op cancellation moved the version")
			}
			if s := store.stock(1); s != 8 {
				t.Errorf("product 1 stock = %d, want 8 untouched", s)
			}
		})
	}
}

func TestCancelIfUnpaidMissingOrderIsNoOp(t *testing.T) {
	t.Parallel()

	svc := newTestService(newMemStore())

	if err := svc.CancelIfUnpaid(context.Background(), 404); err != nil {
		t.Fatalf("CancelIfUnpaid() on missing order error = %v", err)
	}
}

// racingOrderRepo hands out unpaid snapshots but loses every
// compare-and-swap, as if a payment always sneaks in between the read and
// the write.
type racingOrderRepo struct {
	ord order.Order
}

func (r *racingOrderRepo) Insert(context.Context, order.Order) (order.Order, error) {
	return order.Order{}, nil
}

func (r *racingOrderRepo) GetByOrderNo(context.Context, int64) (*order.Order, error) {
	o := r.ord

	return &o, nil
}

func (r *racingOrderRepo) QueryByUser(context.Context, order.QueryOrdersModel) ([]order.Order, error) {
	return nil, nil
}

func (r *racingOrderRepo) ConditionalUpdateStatus(context.Context, order.ConditionalStatusUpdate) (bool, error) {
	return false, nil
}

type racingUOW struct {
	orders iorderrepo.IOrderRepository
	store  *memStore
}

func (u *racingUOW) OrderRepository() iorderrepo.IOrderRepository             { return u.orders }
func (u *racingUOW) OrderItemRepository() iorderitemrepo.IOrderItemRepository { return u.store }
func (u *racingUOW) ProductRepository() iproductrepo.IProductRepository       { return u.store }

func TestCancelIfUnpaidLostRaceRestoresNothing(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.items[1001] = []orderitem.OrderItem{{OrderNo: 1001, ProductID: 1, Quantity: 2}}
	store.products[1] = product.Product{ID: 1, Stock: 8}

	repo := &racingOrderRepo{ord: order.Order{
		OrderNo:   1001,
		Status:    order.StatusNoPay,
		UpdatedAt: time.Now().Add(-time.Minute),
	}}
	svc := MustNewCloseService(
		WithUnitOfWorkFactory(func() unitOfWork { return &racingUOW{orders: repo, store: store} }),
	)

	if err := svc.CancelIfUnpaid(context.Background(), 1001); err != nil {
		t.Fatalf("CancelIfUnpaid() on lost race error = %v", err)
	}

	// Stock is restored only after a committed status flip.
	if s := store.stock(1); s != 8 {
		t.Errorf("product 1 stock = %d after lost race, want 8", s)
	}
}
