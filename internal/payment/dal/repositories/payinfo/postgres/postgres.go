package postgresrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/corray333/mall/internal/apperr"
	"github.com/corray333/mall/internal/payment/service/models/payinfo"
	"github.com/corray333/mall/internal/postgres"
	"github.com/jackc/pgx/v5"
)

type PostgresPayInfoRepository struct {
	conn postgres.Querier
}

func NewPostgresPayInfoRepository(conn postgres.Querier) *PostgresPayInfoRepository {
	return &PostgresPayInfoRepository{
		conn: conn,
	}
}

// Insert stores a new payment record.
func (r *PostgresPayInfoRepository) Insert(ctx context.Context, info payinfo.PayInfo) (payinfo.PayInfo, error) {
	query, args, err := sq.Insert("pay_info").
		Columns(
			"order_no",
			"platform_status",
			"platform_number",
			"pay_amount",
			"created_at",
			"updated_at",
		).
		Values(
			info.OrderNo,
			info.PlatformStatus,
			info.PlatformNumber,
			info.PayAmount,
			info.CreatedAt,
			info.UpdatedAt,
		).
		Suffix("RETURNING id").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return payinfo.PayInfo{}, fmt.Errorf("failed to build insert query: %w", err)
	}

	if err := r.conn.QueryRow(ctx, query, args...).Scan(&info.ID); err != nil {
		return payinfo.PayInfo{}, fmt.Errorf("failed to insert pay info: %w", err)
	}

	return info, nil
}

// GetByOrderNo returns the payment record for an order.
func (r *PostgresPayInfoRepository) GetByOrderNo(ctx context.Context, orderNo int64) (*payinfo.PayInfo, error) {
	query, args, err := sq.Select(
		"id",
		"order_no",
		"platform_status",
		"platform_number",
		"pay_amount",
		"created_at",
		"updated_at",
	).
		From("pay_info").
		Where(sq.Eq{"order_no": orderNo}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	var info payinfo.PayInfo
	err = r.conn.QueryRow(ctx, query, args...).Scan(
		&info.ID,
		&info.OrderNo,
		&info.PlatformStatus,
		&info.PlatformNumber,
		&info.PayAmount,
		&info.CreatedAt,
		&info.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("pay info for order %d: %w", orderNo, apperr.ErrPayInfoNotFound)
		}

		return nil, fmt.Errorf("failed to get pay info by order_no: %w", err)
	}

	return &info, nil
}

// UpdateStatusIfNot sets platform status and number unless the record
// already carries notStatus. Guarantees the NOTPAY -> SUCCESS flip happens
// at most once even under concurrent gateway callbacks.
func (r *PostgresPayInfoRepository) UpdateStatusIfNot(
	ctx context.Context,
	orderNo int64,
	notStatus, newStatus, platformNumber string,
) (bool, error) {
	query, args, err := sq.Update("pay_info").
		Set("platform_status", newStatus).
		Set("platform_number", platformNumber).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"order_no": orderNo}).
		Where(sq.NotEq{"platform_status": notStatus}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build update query: %w", err)
	}

	tag, err := r.conn.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to update pay info status: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}
