// Package repositories implements the persistence adapters on pgx. Each
// repository satisfies a port owned by the services package and translates
// driver failures into the port sentinels.
package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avelinor/orders-service/internal/models/po"
	"github.com/avelinor/orders-service/internal/services"

	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolation = "23505"

// querier is the subset of pgx shared by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// OrderRepository persists orders in PostgreSQL. It implements both
// services.OrderCommandRepo and services.OrderQueryRepo.
type OrderRepository struct {
	db  *pgxpool.Pool
	log *log.Helper
}

// NewOrderRepository constructs the Postgres order adapter.
func NewOrderRepository(db *pgxpool.Pool, logger log.Logger) *OrderRepository {
	return &OrderRepository{
		db:  db,
		log: log.NewHelper(logger),
	}
}

// exec picks the transaction when a session is present, the pool otherwise.
func (r *OrderRepository) exec(sess txmanager.Session) querier {
	if sess != nil {
		return sess.Tx()
	}
	return r.db
}

const orderColumns = `order_id, user_id, currency, total_minor, status, payment_ref,
       cancel_reason, idempotency_key, version, created_at, updated_at`

// Insert writes the order row and its item lines. A duplicate idempotency
// key surfaces as services.ErrIdempotencyConflict via ON CONFLICT DO NOTHING
// rather than a raised unique violation: a raised 23505 would abort the
// enclosing transaction, and callers must still be able to re-select the
// winning row in the same session.
func (r *OrderRepository) Insert(ctx context.Context, sess txmanager.Session, order *po.Order) (*po.Order, error) {
	q := r.exec(sess)

	const insertOrder = `
INSERT INTO orders.orders (order_id, user_id, currency, total_minor, status, payment_ref,
                           cancel_reason, idempotency_key, version, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (user_id, idempotency_key) WHERE idempotency_key IS NOT NULL DO NOTHING
RETURNING created_at, updated_at`

	row := q.QueryRow(ctx, insertOrder,
		order.OrderID,
		order.UserID,
		order.Currency,
		order.TotalMinor,
		string(order.Status),
		order.PaymentRef,
		order.CancelReason,
		order.IdempotencyKey,
		order.Version,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err := row.Scan(&order.CreatedAt, &order.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isUniqueViolation(err) {
			return nil, services.ErrIdempotencyConflict
		}
		r.log.WithContext(ctx).Errorf("insert order failed: order_id=%s err=%v", order.OrderID, err)
		return nil, fmt.Errorf("insert order: %w", err)
	}

	const insertItem = `
INSERT INTO orders.order_items (order_id, line_no, sku, quantity, unit_price_minor)
VALUES ($1, $2, $3, $4, $5)`

	for _, item := range order.Items {
		if _, err := q.Exec(ctx, insertItem,
			item.OrderID, item.LineNo, item.SKU, item.Quantity, item.UnitPriceMinor,
		); err != nil {
			r.log.WithContext(ctx).Errorf("insert order item failed: order_id=%s line=%d err=%v", order.OrderID, item.LineNo, err)
			return nil, fmt.Errorf("insert order item %d: %w", item.LineNo, err)
		}
	}

	return order, nil
}

// Get loads one order with its items.
func (r *OrderRepository) Get(ctx context.Context, sess txmanager.Session, orderID uuid.UUID) (*po.Order, error) {
	q := r.exec(sess)

	query := `SELECT ` + orderColumns + ` FROM orders.orders WHERE order_id = $1`
	order, err := scanOrder(q.QueryRow(ctx, query, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, services.ErrOrderNotFound
		}
		r.log.WithContext(ctx).Errorf("get order failed: order_id=%s err=%v", orderID, err)
		return nil, fmt.Errorf("get order: %w", err)
	}

	if err := r.loadItems(ctx, q, order); err != nil {
		return nil, err
	}
	return order, nil
}

// FindByID is the read-side alias of Get; it satisfies
// services.OrderQueryRepo.
func (r *OrderRepository) FindByID(ctx context.Context, sess txmanager.Session, orderID uuid.UUID) (*po.Order, error) {
	return r.Get(ctx, sess, orderID)
}

// FindByIdempotencyKey resolves a previous submission with the same key.
func (r *OrderRepository) FindByIdempotencyKey(ctx context.Context, sess txmanager.Session, userID uuid.UUID, key string) (*po.Order, error) {
	q := r.exec(sess)

	query := `SELECT ` + orderColumns + ` FROM orders.orders WHERE user_id = $1 AND idempotency_key = $2`
	order, err := scanOrder(q.QueryRow(ctx, query, userID, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, services.ErrOrderNotFound
		}
		r.log.WithContext(ctx).Errorf("find order by idempotency key failed: user_id=%s err=%v", userID, err)
		return nil, fmt.Errorf("find order by idempotency key: %w", err)
	}

	if err := r.loadItems(ctx, q, order); err != nil {
		return nil, err
	}
	return order, nil
}

// UpdateStatus applies one transition under the optimistic version guard.
// payment_ref and cancel_reason are only written when the caller sets them.
func (r *OrderRepository) UpdateStatus(ctx context.Context, sess txmanager.Session, input services.UpdateOrderStatusInput) (*po.Order, error) {
	q := r.exec(sess)

	const update = `
UPDATE orders.orders
   SET status          = $2,
       payment_ref     = COALESCE($3, payment_ref),
       cancel_reason   = COALESCE($4, cancel_reason),
       version         = version + 1,
       updated_at      = now()
 WHERE order_id = $1 AND version = $5
RETURNING ` + orderColumns

	order, err := scanOrder(q.QueryRow(ctx, update,
		input.OrderID,
		string(input.Status),
		input.PaymentRef,
		input.CancelReason,
		input.ExpectedVersion,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.classifyUpdateMiss(ctx, q, input.OrderID)
		}
		r.log.WithContext(ctx).Errorf("update order status failed: order_id=%s err=%v", input.OrderID, err)
		return nil, fmt.Errorf("update order status: %w", err)
	}

	if err := r.loadItems(ctx, q, order); err != nil {
		return nil, err
	}
	return order, nil
}

// List pages orders under the filter and reports the unpaged total.
func (r *OrderRepository) List(ctx context.Context, sess txmanager.Session, filter services.ListOrdersFilter) ([]*po.Order, int64, error) {
	q := r.exec(sess)

	where := ""
	args := []any{}
	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		where = fmt.Sprintf(" WHERE user_id = $%d", len(args))
	}
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		clause := fmt.Sprintf("status = $%d", len(args))
		if where == "" {
			where = " WHERE " + clause
		} else {
			where += " AND " + clause
		}
	}

	var total int64
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM orders.orders`+where, args...).Scan(&total); err != nil {
		r.log.WithContext(ctx).Errorf("count orders failed: err=%v", err)
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	args = append(args, filter.Limit, filter.Offset)
	query := fmt.Sprintf(
		`SELECT `+orderColumns+` FROM orders.orders%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		where, len(args)-1, len(args),
	)
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		r.log.WithContext(ctx).Errorf("list orders failed: err=%v", err)
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []*po.Order
	for rows.Next() {
		order, scanErr := scanOrder(rows)
		if scanErr != nil {
			return nil, 0, fmt.Errorf("scan order row: %w", scanErr)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate orders: %w", err)
	}
	return orders, total, nil
}

// classifyUpdateMiss tells a stale version apart from a missing row.
func (r *OrderRepository) classifyUpdateMiss(ctx context.Context, q querier, orderID uuid.UUID) error {
	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders.orders WHERE order_id = $1)`, orderID).Scan(&exists); err != nil {
		return fmt.Errorf("classify update miss: %w", err)
	}
	if exists {
		return services.ErrVersionConflict
	}
	return services.ErrOrderNotFound
}

func (r *OrderRepository) loadItems(ctx context.Context, q querier, order *po.Order) error {
	const query = `
SELECT order_id, line_no, sku, quantity, unit_price_minor
  FROM orders.order_items
 WHERE order_id = $1
 ORDER BY line_no`

	rows, err := q.Query(ctx, query, order.OrderID)
	if err != nil {
		r.log.WithContext(ctx).Errorf("load order items failed: order_id=%s err=%v", order.OrderID, err)
		return fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	var items []po.OrderItem
	for rows.Next() {
		var item po.OrderItem
		if err := rows.Scan(&item.OrderID, &item.LineNo, &item.SKU, &item.Quantity, &item.UnitPriceMinor); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate order items: %w", err)
	}
	order.Items = items
	return nil
}

// scanOrder reads one orders.orders row; works for QueryRow and Rows.
func scanOrder(row pgx.Row) (*po.Order, error) {
	var order po.Order
	var status string
	var createdAt, updatedAt time.Time
	if err := row.Scan(
		&order.OrderID,
		&order.UserID,
		&order.Currency,
		&order.TotalMinor,
		&status,
		&order.PaymentRef,
		&order.CancelReason,
		&order.IdempotencyKey,
		&order.Version,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}
	order.Status = po.OrderStatus(status)
	order.CreatedAt = createdAt
	order.UpdatedAt = updatedAt
	return &order, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
