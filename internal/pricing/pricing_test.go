package pricing

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matheusmosca/commerce-settlement/internal/domain"
)

func lines100k() []Line {
	return []Line{
		{ProductID: "p1", Name: "Mug", Quantity: 2, UnitPrice: 30000},
		{ProductID: "p2", Name: "Plate", Quantity: 1, UnitPrice: 40000},
	}
}

func TestPrice_CouponArithmetic(t *testing.T) {
	now := time.Now()
	shipping := &domain.ShippingMethod{Code: "post", Cost: 15000, Active: true}

	tests := []struct {
		name         string
		coupon       *domain.Coupon
		wantDiscount int64
		wantTotal    int64
	}{
		{
			name:         "no coupon",
			wantDiscount: 0,
			wantTotal:    115000,
		},
		{
			name:         "fixed",
			coupon:       &domain.Coupon{Code: "F20", Type: domain.CouponTypeFixed, Value: decimal.NewFromInt(20000), Active: true},
			wantDiscount: 20000,
			wantTotal:    95000,
		},
		{
			name:         "percentage",
			coupon:       &domain.Coupon{Code: "P15", Type: domain.CouponTypePercentage, Value: decimal.NewFromInt(15), Active: true},
			wantDiscount: 15000,
			wantTotal:    100000,
		},
		{
			name:         "fixed larger than item total floors at zero",
			coupon:       &domain.Coupon{Code: "BIG", Type: domain.CouponTypeFixed, Value: decimal.NewFromInt(250000), Active: true},
			wantDiscount: 100000,
			wantTotal:    15000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := Price(lines100k(), tt.coupon, shipping, now)
			require.NoError(t, err)
			assert.Equal(t, int64(100000), q.ItemTotal)
			assert.Equal(t, int64(15000), q.ShippingCost)
			assert.Equal(t, tt.wantDiscount, q.Discount)
			assert.Equal(t, tt.wantTotal, q.Total)
		})
	}
}

func TestPrice_RoundsOnlyTheFinalTotal(t *testing.T) {
	lines := []Line{{ProductID: "p1", Quantity: 1, UnitPrice: 999}}
	coupon := &domain.Coupon{Code: "P12", Type: domain.CouponTypePercentage, Value: decimal.RequireFromString("12.5"), Active: true}

	// 999 * 0.875 = 874.125 + 10 = 884.125 -> 884
	q, err := Price(lines, coupon, &domain.ShippingMethod{Code: "x", Cost: 10, Active: true}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(884), q.Total)
	assert.Equal(t, int64(125), q.Discount)
}

func TestPrice_InvalidCouponAborts(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name   string
		coupon domain.Coupon
	}{
		{"inactive", domain.Coupon{Type: domain.CouponTypeFixed, Value: decimal.NewFromInt(1)}},
		{"expired", domain.Coupon{Type: domain.CouponTypeFixed, Value: decimal.NewFromInt(1), Active: true, ExpiresAt: &past}},
		{"expires exactly now", domain.Coupon{Type: domain.CouponTypeFixed, Value: decimal.NewFromInt(1), Active: true, ExpiresAt: &now}},
		{"window not started", domain.Coupon{Type: domain.CouponTypeFixed, Value: decimal.NewFromInt(1), Active: true, StartsAt: &future}},
		{"window ended", domain.Coupon{Type: domain.CouponTypeFixed, Value: decimal.NewFromInt(1), Active: true, EndsAt: &past}},
		{"exhausted", domain.Coupon{Type: domain.CouponTypeFixed, Value: decimal.NewFromInt(1), Active: true, UsageCount: 5, UsageLimit: 5}},
		{"unknown type", domain.Coupon{Type: "BOGO", Value: decimal.NewFromInt(1), Active: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := tt.coupon
			_, err := Price(lines100k(), &c, nil, now)
			assert.True(t, errors.Is(err, domain.ErrInvalidOrExpiredCoupon), "got %v", err)
		})
	}
}

func TestPrice_WindowBoundariesAreInclusive(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	c := &domain.Coupon{Type: domain.CouponTypeFixed, Value: decimal.NewFromInt(1), Active: true, StartsAt: &now, EndsAt: &now}

	_, err := Price(lines100k(), c, nil, now)
	assert.NoError(t, err)
}

func TestPrice_InactiveShippingAborts(t *testing.T) {
	_, err := Price(lines100k(), nil, &domain.ShippingMethod{Code: "old", Cost: 1, Active: false}, time.Now())
	assert.ErrorIs(t, err, domain.ErrInvalidShippingMethod)
}

func TestLineFromProduct_PrefersDiscountPrice(t *testing.T) {
	discount := int64(800)
	p := domain.Product{ID: "p1", Name: "Mug", Category: "kitchen", Price: 1000, DiscountPrice: &discount}

	l := LineFromProduct(p, 3)
	assert.Equal(t, int64(800), l.UnitPrice)
	assert.Equal(t, int64(2400), l.Subtotal())

	p.DiscountPrice = nil
	assert.Equal(t, int64(1000), LineFromProduct(p, 1).UnitPrice)
}
