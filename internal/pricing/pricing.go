// Package pricing calcula o total de um carrinho: soma dos itens, desconto do
// cupom e frete. Não tem efeitos colaterais; é chamado fora da transação para
// preview e dentro dela no commit do pedido.
package pricing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/matheusmosca/commerce-settlement/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// Line é uma linha de carrinho já resolvida contra o produto vivo
type Line struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Category  string `json:"category"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

// LineFromProduct resolve o preço unitário (promocional ou de lista)
func LineFromProduct(p domain.Product, quantity int) Line {
	return Line{
		ProductID: p.ID,
		Name:      p.Name,
		Category:  p.Category,
		Quantity:  quantity,
		UnitPrice: p.UnitPrice(),
	}
}

func (l Line) Subtotal() int64 {
	return int64(l.Quantity) * l.UnitPrice
}

// Quote é o total detalhado. Todos os valores em unidades menores da moeda.
type Quote struct {
	Lines        []Line `json:"lines"`
	ItemTotal    int64  `json:"item_total"`
	Discount     int64  `json:"discount"`
	ShippingCost int64  `json:"shipping_cost"`
	Total        int64  `json:"total"`
}

// Price calcula o Quote. coupon e shipping podem ser nil no preview do
// carrinho; no pedido o frete é obrigatório.
func Price(lines []Line, coupon *domain.Coupon, shipping *domain.ShippingMethod, now time.Time) (Quote, error) {
	q := Quote{Lines: lines}
	for _, l := range lines {
		if l.Quantity <= 0 {
			return Quote{}, fmt.Errorf("line %s: %w", l.ProductID, domain.ErrInvalidQuantity)
		}
		q.ItemTotal += l.Subtotal()
	}

	discounted := decimal.NewFromInt(q.ItemTotal)
	if coupon != nil {
		if err := ValidateCoupon(coupon, now); err != nil {
			return Quote{}, err
		}
		discounted = applyCoupon(q.ItemTotal, coupon)
	}

	total := discounted
	if shipping != nil {
		if !shipping.Active {
			return Quote{}, fmt.Errorf("shipping method %s is inactive: %w", shipping.Code, domain.ErrInvalidShippingMethod)
		}
		q.ShippingCost = shipping.Cost
		total = total.Add(decimal.NewFromInt(shipping.Cost))
	}

	// arredondamento só no total final
	q.Total = total.Round(0).IntPart()
	q.Discount = q.ItemTotal + q.ShippingCost - q.Total
	return q, nil
}

func applyCoupon(itemTotal int64, c *domain.Coupon) decimal.Decimal {
	base := decimal.NewFromInt(itemTotal)
	switch c.Type {
	case domain.CouponTypeFixed:
		d := base.Sub(c.Value)
		if d.IsNegative() {
			return decimal.Zero
		}
		return d
	case domain.CouponTypePercentage:
		pct := c.Value
		if pct.GreaterThan(hundred) {
			pct = hundred
		}
		return base.Mul(hundred.Sub(pct)).Div(hundred)
	}
	return base
}

// ValidateCoupon verifica ativo, janela de validade e limite de uso
func ValidateCoupon(c *domain.Coupon, now time.Time) error {
	if !c.Active {
		return fmt.Errorf("coupon %s is inactive: %w", c.Code, domain.ErrInvalidOrExpiredCoupon)
	}
	if c.Type != domain.CouponTypeFixed && c.Type != domain.CouponTypePercentage {
		return fmt.Errorf("coupon %s has unknown type %q: %w", c.Code, c.Type, domain.ErrInvalidOrExpiredCoupon)
	}
	if c.Value.IsNegative() {
		return fmt.Errorf("coupon %s has negative value: %w", c.Code, domain.ErrInvalidOrExpiredCoupon)
	}
	if c.ExpiresAt != nil && !now.Before(*c.ExpiresAt) {
		return fmt.Errorf("coupon %s expired at %s: %w", c.Code, c.ExpiresAt.Format(time.RFC3339), domain.ErrInvalidOrExpiredCoupon)
	}
	if c.StartsAt != nil && now.Before(*c.StartsAt) {
		return fmt.Errorf("coupon %s is not valid before %s: %w", c.Code, c.StartsAt.Format(time.RFC3339), domain.ErrInvalidOrExpiredCoupon)
	}
	if c.EndsAt != nil && now.After(*c.EndsAt) {
		return fmt.Errorf("coupon %s ended at %s: %w", c.Code, c.EndsAt.Format(time.RFC3339), domain.ErrInvalidOrExpiredCoupon)
	}
	if c.UsageLimit > 0 && c.UsageCount >= c.UsageLimit {
		return fmt.Errorf("coupon %s usage limit reached (%d/%d): %w", c.Code, c.UsageCount, c.UsageLimit, domain.ErrInvalidOrExpiredCoupon)
	}
	return nil
}
