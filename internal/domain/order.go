package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type PaymentMethod string

const (
	PaymentMethodGateway        PaymentMethod = "GATEWAY"
	PaymentMethodManualTransfer PaymentMethod = "MANUAL_TRANSFER"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentMethodGateway || m == PaymentMethodManualTransfer
}

// PaymentStatus: PENDING -> {COMPLETED, FAILED, CANCELLED}. Os três estados
// da direita são terminais.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
	PaymentStatusCancelled PaymentStatus = "CANCELLED"
)

func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusCompleted || s == PaymentStatusFailed || s == PaymentStatusCancelled
}

// CanTransitionTo só permite sair de PENDING
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	return s == PaymentStatusPending && next.IsTerminal()
}

// OrderStatus é o ciclo de fulfillment, independente do pagamento:
// PENDING -> PROCESSING -> SHIPPED -> DELIVERED
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
)

// Next retorna o sucessor imediato; false para DELIVERED
func (s OrderStatus) Next() (OrderStatus, bool) {
	switch s {
	case OrderStatusPending:
		return OrderStatusProcessing, true
	case OrderStatusProcessing:
		return OrderStatusShipped, true
	case OrderStatusShipped:
		return OrderStatusDelivered, true
	}
	return "", false
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered:
		return true
	}
	return false
}

// Order é o snapshot imutável criado a partir de um carrinho precificado.
// Total nunca muda depois da criação.
type Order struct {
	ID               string        `json:"id" db:"id"`
	Number           int64         `json:"number" db:"number"`
	UserID           string        `json:"user_id" db:"user_id"`
	AddressID        string        `json:"address_id" db:"address_id"`
	ShippingMethod   string        `json:"shipping_method" db:"shipping_method"`
	ShippingCost     int64         `json:"shipping_cost" db:"shipping_cost"`
	ItemTotal        int64         `json:"item_total" db:"item_total"`
	Discount         int64         `json:"discount" db:"discount"`
	Total            int64         `json:"total" db:"total"`
	CouponID         *string       `json:"coupon_id,omitempty" db:"coupon_id"`
	PaymentMethod    PaymentMethod `json:"payment_method" db:"payment_method"`
	PaymentStatus    PaymentStatus `json:"payment_status" db:"payment_status"`
	Status           OrderStatus   `json:"status" db:"status"`
	PaymentReference string        `json:"payment_reference,omitempty" db:"payment_reference"`
	Items            []OrderItem   `json:"items"`
	CreatedAt        time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at" db:"updated_at"`
}

// NewOrder cria uma nova instância de Order em PENDING/PENDING
func NewOrder(userID string, number int64, method PaymentMethod) *Order {
	now := time.Now().UTC()
	return &Order{
		ID:            uuid.New().String(),
		Number:        number,
		UserID:        userID,
		PaymentMethod: method,
		PaymentStatus: PaymentStatusPending,
		Status:        OrderStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// DisplayNumber é o número legível exibido ao comprador
func (o *Order) DisplayNumber() string {
	return fmt.Sprintf("ORD-%06d", o.Number)
}

// OrderItem é uma cópia congelada do produto no momento da compra. ProductID
// é guardado só para a baixa de estoque; nome, categoria e preço nunca são
// relidos do catálogo.
type OrderItem struct {
	ID          string `json:"id" db:"id"`
	OrderID     string `json:"order_id" db:"order_id"`
	ProductID   string `json:"product_id" db:"product_id"`
	ProductName string `json:"product_name" db:"product_name"`
	Category    string `json:"category" db:"category"`
	Quantity    int    `json:"quantity" db:"quantity"`
	UnitPrice   int64  `json:"unit_price" db:"unit_price"`
}

// OrderFilter parâmetros de listagem administrativa
type OrderFilter struct {
	UserID        string
	PaymentStatus PaymentStatus
	Status        OrderStatus
	PaymentMethod PaymentMethod
	Limit         int
	Offset        int
}
