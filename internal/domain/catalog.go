package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product é a visão do catálogo que o pipeline consome. Preços em unidades
// menores da moeda.
type Product struct {
	ID            string    `json:"id" db:"id"`
	Name          string    `json:"name" db:"name"`
	Category      string    `json:"category" db:"category"`
	Price         int64     `json:"price" db:"price"`
	DiscountPrice *int64    `json:"discount_price,omitempty" db:"discount_price"`
	Stock         int       `json:"stock" db:"stock"`
	SoldCount     int       `json:"sold_count" db:"sold_count"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// UnitPrice retorna o preço promocional quando definido, senão o preço de lista
func (p Product) UnitPrice() int64 {
	if p.DiscountPrice != nil && *p.DiscountPrice > 0 {
		return *p.DiscountPrice
	}
	return p.Price
}

type CouponType string

const (
	CouponTypeFixed      CouponType = "FIXED"
	CouponTypePercentage CouponType = "PERCENTAGE"
)

// Coupon suporta dois formatos de validade: ExpiresAt (expira em) ou a
// janela StartsAt/EndsAt. UsageLimit zero significa sem limite.
type Coupon struct {
	ID         string          `json:"id" db:"id"`
	Code       string          `json:"code" db:"code"`
	Type       CouponType      `json:"type" db:"type"`
	Value      decimal.Decimal `json:"value" db:"value"`
	Active     bool            `json:"active" db:"active"`
	StartsAt   *time.Time      `json:"starts_at,omitempty" db:"starts_at"`
	EndsAt     *time.Time      `json:"ends_at,omitempty" db:"ends_at"`
	ExpiresAt  *time.Time      `json:"expires_at,omitempty" db:"expires_at"`
	UsageCount int             `json:"usage_count" db:"usage_count"`
	UsageLimit int             `json:"usage_limit" db:"usage_limit"`
}

// ShippingMethod representa um método de envio com custo fixo
type ShippingMethod struct {
	Code   string `json:"code" db:"code"`
	Name   string `json:"name" db:"name"`
	Cost   int64  `json:"cost" db:"cost"`
	Active bool   `json:"active" db:"active"`
}

// Address é apenas uma referência validada: pertence ao usuário que cria o pedido
type Address struct {
	ID     string `json:"id" db:"id"`
	UserID string `json:"user_id" db:"user_id"`
	Label  string `json:"label" db:"label"`
}
