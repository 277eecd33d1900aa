package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/matheusmosca/commerce-settlement/internal/domain"
	"github.com/matheusmosca/commerce-settlement/internal/repository"
)

// CatalogRepository implementa as leituras de catálogo (produto, cupom,
// frete, endereço) e a escrita de estoque usando PostgreSQL
type CatalogRepository struct {
	db *DB
}

// NewCatalogRepository cria uma nova instância de CatalogRepository
func NewCatalogRepository(db *DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

const productColumns = `id, name, category, price, discount_price, stock, sold_count, updated_at`

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.Name, &p.Category, &p.Price, &p.DiscountPrice, &p.Stock, &p.SoldCount, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetProduct busca um produto pelo ID
func (r *CatalogRepository) GetProduct(ctx context.Context, tx repository.Tx, productID string) (*domain.Product, error) {
	p, err := scanProduct(r.db.q(tx).QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, productID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("product %s: %w", productID, domain.ErrProductNotFound)
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return p, nil
}

// GetProducts busca vários produtos; IDs ausentes simplesmente não aparecem no mapa
func (r *CatalogRepository) GetProducts(ctx context.Context, tx repository.Tx, productIDs []string) (map[string]domain.Product, error) {
	out := make(map[string]domain.Product, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}

	rows, err := r.db.q(tx).Query(ctx, `SELECT `+productColumns+` FROM products WHERE id = ANY($1)`, productIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		out[p.ID] = *p
	}
	return out, rows.Err()
}

// DecreaseStock baixa o estoque e incrementa sold_count na mesma instrução
func (r *CatalogRepository) DecreaseStock(ctx context.Context, tx repository.Tx, productID string, qty int, allowNegative bool) (int, error) {
	query := `
		UPDATE products
		SET stock = stock - $2,
		    sold_count = sold_count + $2,
		    updated_at = NOW()
		WHERE id = $1
	`
	if !allowNegative {
		query += ` AND stock >= $2`
	}
	query += ` RETURNING stock`

	var stock int
	err := r.db.q(tx).QueryRow(ctx, query, productID, qty).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := r.GetProduct(ctx, tx, productID); getErr != nil {
			return 0, getErr
		}
		return 0, fmt.Errorf("product %s (requested %d): %w", productID, qty, domain.ErrInsufficientStock)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to decrease stock: %w", err)
	}
	return stock, nil
}

// AdjustStock aplica um delta assinado; nunca deixa o estoque negativo
func (r *CatalogRepository) AdjustStock(ctx context.Context, tx repository.Tx, productID string, delta int) (int, error) {
	var stock int
	err := r.db.q(tx).QueryRow(ctx, `
		UPDATE products
		SET stock = stock + $2,
		    updated_at = NOW()
		WHERE id = $1 AND stock + $2 >= 0
		RETURNING stock
	`, productID, delta).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := r.GetProduct(ctx, tx, productID); getErr != nil {
			return 0, getErr
		}
		return 0, fmt.Errorf("product %s (delta %d): %w", productID, delta, domain.ErrInsufficientStock)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to adjust stock: %w", err)
	}
	return stock, nil
}

// GetCoupon busca um cupom pelo ID
func (r *CatalogRepository) GetCoupon(ctx context.Context, tx repository.Tx, couponID string) (*domain.Coupon, error) {
	var (
		c     domain.Coupon
		value string
	)
	err := r.db.q(tx).QueryRow(ctx, `
		SELECT id, code, type, value::text, active, starts_at, ends_at, expires_at, usage_count, usage_limit
		FROM coupons WHERE id = $1
	`, couponID).Scan(&c.ID, &c.Code, &c.Type, &value, &c.Active, &c.StartsAt, &c.EndsAt, &c.ExpiresAt, &c.UsageCount, &c.UsageLimit)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("coupon %s not found: %w", couponID, domain.ErrInvalidOrExpiredCoupon)
		}
		return nil, fmt.Errorf("failed to get coupon: %w", err)
	}

	c.Value, err = decimal.NewFromString(value)
	if err != nil {
		return nil, fmt.Errorf("invalid coupon value %q: %w", value, err)
	}
	return &c, nil
}

// IncrementCouponUsage consome um uso do cupom se ainda houver limite
func (r *CatalogRepository) IncrementCouponUsage(ctx context.Context, tx repository.Tx, couponID string) (bool, error) {
	tag, err := r.db.q(tx).Exec(ctx, `
		UPDATE coupons
		SET usage_count = usage_count + 1
		WHERE id = $1 AND (usage_limit <= 0 OR usage_count < usage_limit)
	`, couponID)
	if err != nil {
		return false, fmt.Errorf("failed to increment coupon usage: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetShippingMethod busca o método de envio pelo código
func (r *CatalogRepository) GetShippingMethod(ctx context.Context, tx repository.Tx, code string) (*domain.ShippingMethod, error) {
	var m domain.ShippingMethod
	err := r.db.q(tx).QueryRow(ctx, `
		SELECT code, name, cost, active FROM shipping_methods WHERE code = $1
	`, code).Scan(&m.Code, &m.Name, &m.Cost, &m.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("shipping method %s not found: %w", code, domain.ErrInvalidShippingMethod)
		}
		return nil, fmt.Errorf("failed to get shipping method: %w", err)
	}
	return &m, nil
}

// GetAddress busca o endereço pelo ID
func (r *CatalogRepository) GetAddress(ctx context.Context, tx repository.Tx, addressID string) (*domain.Address, error) {
	var a domain.Address
	err := r.db.q(tx).QueryRow(ctx, `
		SELECT id, user_id, label FROM addresses WHERE id = $1
	`, addressID).Scan(&a.ID, &a.UserID, &a.Label)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("address %s not found: %w", addressID, domain.ErrInvalidAddress)
		}
		return nil, fmt.Errorf("failed to get address: %w", err)
	}
	return &a, nil
}

var (
	_ repository.ProductRepository  = (*CatalogRepository)(nil)
	_ repository.CouponRepository   = (*CatalogRepository)(nil)
	_ repository.ShippingRepository = (*CatalogRepository)(nil)
	_ repository.AddressRepository  = (*CatalogRepository)(nil)
)
