package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/matheusmosca/commerce-settlement/internal/domain"
	"github.com/matheusmosca/commerce-settlement/internal/repository"
)

func (s *Store) GetProduct(ctx context.Context, tx repository.Tx, productID string) (*domain.Product, error) {
	st, unlock := s.view(tx)
	defer unlock()
	p, ok := st.products[productID]
	if !ok {
		return nil, fmt.Errorf("product %s: %w", productID, domain.ErrProductNotFound)
	}
	return &p, nil
}

func (s *Store) GetProducts(ctx context.Context, tx repository.Tx, productIDs []string) (map[string]domain.Product, error) {
	st, unlock := s.view(tx)
	defer unlock()
	out := make(map[string]domain.Product, len(productIDs))
	for _, id := range productIDs {
		if p, ok := st.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (s *Store) DecreaseStock(ctx context.Context, tx repository.Tx, productID string, qty int, allowNegative bool) (int, error) {
	st, unlock := s.view(tx)
	defer unlock()
	p, ok := st.products[productID]
	if !ok {
		return 0, fmt.Errorf("product %s: %w", productID, domain.ErrProductNotFound)
	}
	if !allowNegative && p.Stock < qty {
		return 0, fmt.Errorf("product %s (requested %d): %w", productID, qty, domain.ErrInsufficientStock)
	}
	p.Stock -= qty
	p.SoldCount += qty
	p.UpdatedAt = time.Now().UTC()
	st.products[productID] = p
	return p.Stock, nil
}

func (s *Store) AdjustStock(ctx context.Context, tx repository.Tx, productID string, delta int) (int, error) {
	st, unlock := s.view(tx)
	defer unlock()
	p, ok := st.products[productID]
	if !ok {
		return 0, fmt.Errorf("product %s: %w", productID, domain.ErrProductNotFound)
	}
	if p.Stock+delta < 0 {
		return 0, fmt.Errorf("product %s (delta %d): %w", productID, delta, domain.ErrInsufficientStock)
	}
	p.Stock += delta
	p.UpdatedAt = time.Now().UTC()
	st.products[productID] = p
	return p.Stock, nil
}

func (s *Store) GetCoupon(ctx context.Context, tx repository.Tx, couponID string) (*domain.Coupon, error) {
	st, unlock := s.view(tx)
	defer unlock()
	c, ok := st.coupons[couponID]
	if !ok {
		return nil, fmt.Errorf("coupon %s not found: %w", couponID, domain.ErrInvalidOrExpiredCoupon)
	}
	return &c, nil
}

func (s *Store) IncrementCouponUsage(ctx context.Context, tx repository.Tx, couponID string) (bool, error) {
	st, unlock := s.view(tx)
	defer unlock()
	c, ok := st.coupons[couponID]
	if !ok {
		return false, nil
	}
	if c.UsageLimit > 0 && c.UsageCount >= c.UsageLimit {
		return false, nil
	}
	c.UsageCount++
	st.coupons[couponID] = c
	return true, nil
}

func (s *Store) GetShippingMethod(ctx context.Context, tx repository.Tx, code string) (*domain.ShippingMethod, error) {
	st, unlock := s.view(tx)
	defer unlock()
	m, ok := st.shipping[code]
	if !ok {
		return nil, fmt.Errorf("shipping method %s not found: %w", code, domain.ErrInvalidShippingMethod)
	}
	return &m, nil
}

func (s *Store) GetAddress(ctx context.Context, tx repository.Tx, addressID string) (*domain.Address, error) {
	st, unlock := s.view(tx)
	defer unlock()
	a, ok := st.addresses[addressID]
	if !ok {
		return nil, fmt.Errorf("address %s not found: %w", addressID, domain.ErrInvalidAddress)
	}
	return &a, nil
}
