package postgresrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/corray333/mall/internal/apperr"
	"github.com/corray333/mall/internal/order/service/models/order"
	"github.com/corray333/mall/internal/order/service/models/orderitem"
	"github.com/corray333/mall/internal/postgres"
	"github.com/jackc/pgx/v5"
)

// OrderDal represents order data access layer model
type OrderDal struct {
	Id           int64
	OrderNo      int64
	UserId       int64
	ShippingId   int64
	PaymentCents int64
	Status       int
	CloseTime    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ToModel converts OrderDal to service layer Order model
func (o *OrderDal) ToModel() *order.Order {
	return &order.Order{
		ID:           o.Id,
		OrderNo:      o.OrderNo,
		UserID:       o.UserId,
		ShippingID:   o.ShippingId,
		PaymentCents: o.PaymentCents,
		Status:       order.Status(o.Status),
		CloseTime:    o.CloseTime,
		CreatedAt:    o.CreatedAt,
		UpdatedAt:    o.UpdatedAt,
		OrderItems:   []orderitem.OrderItem{}, // Will be populated separately
	}
}

var orderColumns = []string{
	"id",
	"order_no",
	"user_id",
	"shipping_id",
	"payment_cents",
	"status",
	"close_time",
	"created_at",
	"updated_at",
}

type PostgresOrderRepository struct {
	conn postgres.Querier
}

func NewPostgresOrderRepository(conn postgres.Querier) *PostgresOrderRepository {
	return &PostgresOrderRepository{
		conn: conn,
	}
}

// Insert stores a new order and returns it with its generated id.
func (r *PostgresOrderRepository) Insert(ctx context.Context, o order.Order) (order.Order, error) {
	query, args, err := sq.Insert("orders").
		Columns(
			"order_no",
			"user_id",
			"shipping_id",
			"payment_cents",
			"status",
			"created_at",
			"updated_at",
		).
		Values(
			o.OrderNo,
			o.UserID,
			o.ShippingID,
			o.PaymentCents,
			int(o.Status),
			o.CreatedAt,
			o.UpdatedAt,
		).
		Suffix("RETURNING id").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return order.Order{}, fmt.Errorf("failed to build insert query: %w", err)
	}

	if err := r.conn.QueryRow(ctx, query, args...).Scan(&o.ID); err != nil {
		return order.Order{}, fmt.Errorf("failed to insert order: %w", err)
	}

	return o, nil
}

// GetByOrderNo returns the order with the given order number.
func (r *PostgresOrderRepository) GetByOrderNo(ctx context.Context, orderNo int64) (*order.Order, error) {
	query, args, err := sq.Select(orderColumns...).
		From("orders").
		Where(sq.Eq{"order_no": orderNo}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	var dal OrderDal
	err = r.conn.QueryRow(ctx, query, args...).Scan(
		&dal.Id,
		&dal.OrderNo,
		&dal.UserId,
		&dal.ShippingId,
		&dal.PaymentCents,
		&dal.Status,
		&dal.CloseTime,
		&dal.CreatedAt,
		&dal.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("order %d: %w", orderNo, apperr.ErrOrderNotFound)
		}

		return nil, fmt.Errorf("failed to get order by order_no: %w", err)
	}

	return dal.ToModel(), nil
}

// QueryByUser returns orders belonging to a user, newest first.
func (r *PostgresOrderRepository) QueryByUser(ctx context.Context, filter order.QueryOrdersModel) ([]order.Order, error) {
	builder := sq.Select(orderColumns...).
		From("orders").
		Where(sq.Eq{"user_id": filter.UserID}).
		OrderBy("created_at DESC").
		PlaceholderFormat(sq.Dollar)

	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		builder = builder.Offset(uint64(filter.Offset))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var result []order.Order
	for rows.Next() {
		var dal OrderDal
		err := rows.Scan(
			&dal.Id,
			&dal.OrderNo,
			&dal.UserId,
			&dal.ShippingId,
			&dal.PaymentCents,
			&dal.Status,
			&dal.CloseTime,
			&dal.CreatedAt,
			&dal.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		result = append(result, *dal.ToModel())
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return result, nil
}

// ConditionalUpdateStatus performs the compare-and-swap write on the order
// row. The statement is the only place a status transition can commit, so
// concurrent writers for the same order serialize here: the row must still
// carry the expected status AND the expected updated_at version, otherwise
// zero rows match and the swap reports false.
func (r *PostgresOrderRepository) ConditionalUpdateStatus(
	ctx context.Context,
	upd order.ConditionalStatusUpdate,
) (bool, error) {
	builder := sq.Update("orders").
		Set("status", int(upd.ToStatus)).
		Set("updated_at", upd.NewVersion).
		Where(sq.Eq{
			"order_no":   upd.OrderNo,
			"status":     int(upd.FromStatus),
			"updated_at": upd.ExpectedVersion,
		}).
		PlaceholderFormat(sq.Dollar)

	if upd.CloseTime != nil {
		builder = builder.Set("close_time", *upd.CloseTime)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build update query: %w", err)
	}

	tag, err := r.conn.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to update order status: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}
