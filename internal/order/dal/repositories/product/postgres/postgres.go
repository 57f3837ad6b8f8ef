package postgresrepo

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/corray333/mall/internal/order/service/models/product"
	"github.com/corray333/mall/internal/postgres"
)

type PostgresProductRepository struct {
	conn postgres.Querier
}

func NewPostgresProductRepository(conn postgres.Querier) *PostgresProductRepository {
	return &PostgresProductRepository{
		conn: conn,
	}
}

// GetByIDsForUpdate loads products by id with row locks, so the stock check
// and the decrements of a single order creation observe a stable snapshot.
func (r *PostgresProductRepository) GetByIDsForUpdate(
	ctx context.Context,
	ids []int64,
) (map[int64]product.Product, error) {
	if len(ids) == 0 {
		return map[int64]product.Product{}, nil
	}

	query, args, err := sq.Select(
		"id",
		"name",
		"status",
		"price_cents",
		"stock",
	).
		From("products").
		Where(sq.Eq{"id": ids}).
		Suffix("FOR UPDATE").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	result := make(map[int64]product.Product, len(ids))
	for rows.Next() {
		var p product.Product
		var status int
		if err := rows.Scan(&p.ID, &p.Name, &status, &p.PriceCents, &p.Stock); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		p.Status = product.SaleStatus(status)
		result[p.ID] = p
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return result, nil
}

// DecrementStockIfSufficient subtracts quantity from the stock counter in a
// single statement guarded by stock >= quantity, so the counter can never go
// negative under concurrent order creation.
func (r *PostgresProductRepository) DecrementStockIfSufficient(
	ctx context.Context,
	productID, quantity int64,
) (bool, error) {
	query, args, err := sq.Update("products").
		Set("stock", sq.Expr("stock - ?", quantity)).
		Where(sq.Eq{"id": productID}).
		Where(sq.GtOrEq{"stock": quantity}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build update query: %w", err)
	}

	tag, err := r.conn.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to decrement stock: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// IncrementStock returns quantity to the stock counter.
func (r *PostgresProductRepository) IncrementStock(
	ctx context.Context,
	productID, quantity int64,
) error {
	query, args, err := sq.Update("products").
		Set("stock", sq.Expr("stock + ?", quantity)).
		Where(sq.Eq{"id": productID}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to increment stock: %w", err)
	}

	return nil
}
