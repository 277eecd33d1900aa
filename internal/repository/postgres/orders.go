package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/matheusmosca/commerce-settlement/internal/domain"
	"github.com/matheusmosca/commerce-settlement/internal/repository"
)

// OrderRepository implementa repository.OrderRepository usando PostgreSQL
type OrderRepository struct {
	db *DB
}

// NewOrderRepository cria uma nova instância de OrderRepository
func NewOrderRepository(db *DB) *OrderRepository {
	return &OrderRepository{db: db}
}

const orderColumns = `id, number, user_id, address_id, shipping_method, shipping_cost, item_total,
	discount, total, coupon_id, payment_method, payment_status, status,
	COALESCE(payment_reference, ''), created_at, updated_at`

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	err := row.Scan(
		&o.ID, &o.Number, &o.UserID, &o.AddressID, &o.ShippingMethod, &o.ShippingCost, &o.ItemTotal,
		&o.Discount, &o.Total, &o.CouponID, &o.PaymentMethod, &o.PaymentStatus, &o.Status,
		&o.PaymentReference, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// NextOrderNumber incrementa o contador com lock de linha
func (r *OrderRepository) NextOrderNumber(ctx context.Context, tx repository.Tx) (int64, error) {
	if tx == nil {
		return 0, fmt.Errorf("next order number: %w", domain.ErrTxRequired)
	}
	var n int64
	err := r.db.q(tx).QueryRow(ctx, `
		UPDATE counters SET value = value + 1 WHERE name = 'order_number' RETURNING value
	`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to increment order counter: %w", err)
	}
	return n, nil
}

// CreateOrder insere o pedido e seus itens
func (r *OrderRepository) CreateOrder(ctx context.Context, tx repository.Tx, order *domain.Order) error {
	if tx == nil {
		return fmt.Errorf("create order: %w", domain.ErrTxRequired)
	}
	q := r.db.q(tx)

	_, err := q.Exec(ctx, `
		INSERT INTO orders (id, number, user_id, address_id, shipping_method, shipping_cost, item_total,
			discount, total, coupon_id, payment_method, payment_status, status, payment_reference,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`, order.ID, order.Number, order.UserID, order.AddressID, order.ShippingMethod, order.ShippingCost,
		order.ItemTotal, order.Discount, order.Total, order.CouponID, order.PaymentMethod,
		order.PaymentStatus, order.Status, nullable(order.PaymentReference), order.CreatedAt, order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for _, item := range order.Items {
		_, err := q.Exec(ctx, `
			INSERT INTO order_items (id, order_id, product_id, product_name, category, quantity, unit_price)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, item.ID, order.ID, item.ProductID, item.ProductName, item.Category, item.Quantity, item.UnitPrice)
		if err != nil {
			return fmt.Errorf("failed to insert order item %s: %w", item.ProductID, err)
		}
	}
	return nil
}

func (r *OrderRepository) loadItems(ctx context.Context, tx repository.Tx, order *domain.Order) error {
	rows, err := r.db.q(tx).Query(ctx, `
		SELECT id, order_id, product_id, product_name, category, quantity, unit_price
		FROM order_items WHERE order_id = $1 ORDER BY product_id
	`, order.ID)
	if err != nil {
		return fmt.Errorf("failed to list order items: %w", err)
	}
	defer rows.Close()

	order.Items = nil
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.Category, &it.Quantity, &it.UnitPrice); err != nil {
			return fmt.Errorf("failed to scan order item: %w", err)
		}
		order.Items = append(order.Items, it)
	}
	return rows.Err()
}

// GetOrder busca o pedido com seus itens
func (r *OrderRepository) GetOrder(ctx context.Context, tx repository.Tx, orderID string) (*domain.Order, error) {
	o, err := scanOrder(r.db.q(tx).QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("order %s: %w", orderID, domain.ErrOrderNotFound)
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if err := r.loadItems(ctx, tx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// GetOrderByReference resolve o pedido a partir da referência do gateway
func (r *OrderRepository) GetOrderByReference(ctx context.Context, tx repository.Tx, reference string) (*domain.Order, error) {
	o, err := scanOrder(r.db.q(tx).QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE payment_reference = $1`, reference))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("order with reference %s: %w", reference, domain.ErrOrderNotFound)
		}
		return nil, fmt.Errorf("failed to get order by reference: %w", err)
	}
	if err := r.loadItems(ctx, tx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// ListOrders lista pedidos do mais recente para o mais antigo, sem itens
func (r *OrderRepository) ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if filter.UserID != "" {
		add("user_id = $%d", filter.UserID)
	}
	if filter.PaymentStatus != "" {
		add("payment_status = $%d", filter.PaymentStatus)
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if filter.PaymentMethod != "" {
		add("payment_method = $%d", filter.PaymentMethod)
	}

	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, filter.Offset)
	query += fmt.Sprintf(` ORDER BY created_at DESC, number DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

// SetPaymentReference grava a referência enquanto o pagamento está pendente.
// A primeira referência gravada vale; as seguintes não sobrescrevem.
func (r *OrderRepository) SetPaymentReference(ctx context.Context, tx repository.Tx, orderID, reference string) (bool, error) {
	tag, err := r.db.q(tx).Exec(ctx, `
		UPDATE orders SET payment_reference = $2, updated_at = NOW()
		WHERE id = $1 AND payment_status = 'PENDING' AND payment_reference IS NULL
	`, orderID, reference)
	if err != nil {
		return false, fmt.Errorf("failed to set payment reference: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// TransitionPaymentStatus altera o status de pagamento apenas se o atual for from
func (r *OrderRepository) TransitionPaymentStatus(ctx context.Context, tx repository.Tx, orderID string, from, to domain.PaymentStatus) (bool, error) {
	tag, err := r.db.q(tx).Exec(ctx, `
		UPDATE orders SET payment_status = $3, updated_at = NOW()
		WHERE id = $1 AND payment_status = $2
	`, orderID, from, to)
	if err != nil {
		return false, fmt.Errorf("failed to transition payment status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkPaid é o compare-and-swap que autoriza a liquidação
func (r *OrderRepository) MarkPaid(ctx context.Context, tx repository.Tx, orderID string) (bool, error) {
	if tx == nil {
		return false, fmt.Errorf("mark paid: %w", domain.ErrTxRequired)
	}
	tag, err := r.db.q(tx).Exec(ctx, `
		UPDATE orders
		SET payment_status = 'COMPLETED',
		    status = 'PROCESSING',
		    updated_at = NOW()
		WHERE id = $1 AND payment_status = 'PENDING'
	`, orderID)
	if err != nil {
		return false, fmt.Errorf("failed to mark order paid: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// TransitionOrderStatus altera o status de fulfillment apenas se o atual for from
func (r *OrderRepository) TransitionOrderStatus(ctx context.Context, tx repository.Tx, orderID string, from, to domain.OrderStatus) (bool, error) {
	tag, err := r.db.q(tx).Exec(ctx, `
		UPDATE orders SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
	`, orderID, from, to)
	if err != nil {
		return false, fmt.Errorf("failed to transition order status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

var _ repository.OrderRepository = (*OrderRepository)(nil)
