package domain

import (
	"time"

	"github.com/google/uuid"
)

// StockReason representa os motivos de movimentação de estoque
type StockReason string

const (
	StockReasonInitial    StockReason = "INITIAL"
	StockReasonSale       StockReason = "SALE"
	StockReasonReturn     StockReason = "RETURN"
	StockReasonPurchase   StockReason = "PURCHASE"
	StockReasonAdjustment StockReason = "ADJUSTMENT"
	StockReasonDamage     StockReason = "DAMAGE"
)

func (r StockReason) Valid() bool {
	switch r {
	case StockReasonInitial, StockReasonSale, StockReasonReturn,
		StockReasonPurchase, StockReasonAdjustment, StockReasonDamage:
		return true
	}
	return false
}

// StockEntry é uma linha imutável do ledger de estoque. Nunca é atualizada
// nem removida.
type StockEntry struct {
	ID             string      `json:"id" db:"id"`
	ProductID      string      `json:"product_id" db:"product_id"`
	Delta          int         `json:"delta" db:"delta"`
	ResultingStock int         `json:"resulting_stock" db:"resulting_stock"`
	Reason         StockReason `json:"reason" db:"reason"`
	ActorID        *string     `json:"actor_id,omitempty" db:"actor_id"`
	OrderID        *string     `json:"order_id,omitempty" db:"order_id"`
	Note           string      `json:"note" db:"note"`
	CreatedAt      time.Time   `json:"created_at" db:"created_at"`
}

// NewStockEntry cria uma nova instância de StockEntry
func NewStockEntry(productID string, delta, resultingStock int, reason StockReason, actorID *string, note string) *StockEntry {
	return &StockEntry{
		ID:             uuid.New().String(),
		ProductID:      productID,
		Delta:          delta,
		ResultingStock: resultingStock,
		Reason:         reason,
		ActorID:        actorID,
		Note:           note,
		CreatedAt:      time.Now().UTC(),
	}
}
