package domain

import (
	"time"

	"github.com/google/uuid"
)

// Cart pertence a exatamente um Owner. Criado sob demanda no primeiro add.
type Cart struct {
	ID        string    `json:"id" db:"id"`
	Owner     Owner     `json:"owner"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// NewCart cria uma nova instância de Cart
func NewCart(owner Owner) *Cart {
	return &Cart{
		ID:        uuid.New().String(),
		Owner:     owner,
		CreatedAt: time.Now().UTC(),
	}
}

// CartLine é única por (CartID, ProductID). O preço nunca é guardado aqui,
// é sempre resolvido do produto no momento da leitura.
type CartLine struct {
	ID        string    `json:"id" db:"id"`
	CartID    string    `json:"cart_id" db:"cart_id"`
	ProductID string    `json:"product_id" db:"product_id"`
	Quantity  int       `json:"quantity" db:"quantity"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// NewCartLine cria uma nova instância de CartLine
func NewCartLine(cartID, productID string, quantity int) *CartLine {
	now := time.Now().UTC()
	return &CartLine{
		ID:        uuid.New().String(),
		CartID:    cartID,
		ProductID: productID,
		Quantity:  quantity,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
