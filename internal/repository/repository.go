// Package repository define os contratos de persistência do pipeline. Todo
// método recebe um Tx opcional: nil executa fora de transação (leituras de
// preview), não-nil participa da transação aberta pelo use case.
package repository

import (
	"context"
	"fmt"

	"github.com/matheusmosca/commerce-settlement/internal/domain"
)

// Tx interface para transações
type Tx interface {
	Commit() error
	Rollback() error
}

// TxManager abre transações com pelo menos read-committed
type TxManager interface {
	BeginTx(ctx context.Context) (Tx, error)
}

// WithTx executa fn dentro de uma transação. Qualquer erro (ou panic) de fn
// desfaz tudo; Rollback depois de Commit é no-op.
func WithTx(ctx context.Context, m TxManager, fn func(tx Tx) error) error {
	tx, err := m.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ProductRepository é a fronteira com o catálogo. Escrita de estoque só via
// liquidação ou ajuste de inventário.
type ProductRepository interface {
	GetProduct(ctx context.Context, tx Tx, productID string) (*domain.Product, error)
	GetProducts(ctx context.Context, tx Tx, productIDs []string) (map[string]domain.Product, error)
	// DecreaseStock baixa qty do estoque e soma qty em sold_count, retornando
	// o estoque resultante. Com allowNegative=false falha com
	// ErrInsufficientStock em vez de ficar abaixo de zero.
	DecreaseStock(ctx context.Context, tx Tx, productID string, qty int, allowNegative bool) (int, error)
	// AdjustStock aplica um delta assinado sem tocar sold_count
	AdjustStock(ctx context.Context, tx Tx, productID string, delta int) (int, error)
}

type CouponRepository interface {
	GetCoupon(ctx context.Context, tx Tx, couponID string) (*domain.Coupon, error)
	// IncrementCouponUsage só incrementa enquanto usage_count < usage_limit
	IncrementCouponUsage(ctx context.Context, tx Tx, couponID string) (bool, error)
}

type ShippingRepository interface {
	GetShippingMethod(ctx context.Context, tx Tx, code string) (*domain.ShippingMethod, error)
}

type AddressRepository interface {
	GetAddress(ctx context.Context, tx Tx, addressID string) (*domain.Address, error)
}

type CartRepository interface {
	GetCartByOwner(ctx context.Context, tx Tx, owner domain.Owner) (*domain.Cart, error)
	GetCart(ctx context.Context, tx Tx, cartID string) (*domain.Cart, error)
	CreateCart(ctx context.Context, tx Tx, cart *domain.Cart) error
	DeleteCart(ctx context.Context, tx Tx, cartID string) error
	ListCartLines(ctx context.Context, tx Tx, cartID string) ([]domain.CartLine, error)
	GetCartLine(ctx context.Context, tx Tx, lineID string) (*domain.CartLine, error)
	// UpsertCartLine incrementa a quantidade se (cart, product) já existe
	UpsertCartLine(ctx context.Context, tx Tx, cartID, productID string, qty int) (*domain.CartLine, error)
	SetCartLineQuantity(ctx context.Context, tx Tx, lineID string, qty int) error
	DeleteCartLine(ctx context.Context, tx Tx, lineID string) error
	ClearCartLines(ctx context.Context, tx Tx, cartID string) error
	// RetireGuest marca a sessão anônima como absorvida por um usuário
	RetireGuest(ctx context.Context, tx Tx, guestID string) error
	IsGuestRetired(ctx context.Context, tx Tx, guestID string) (bool, error)
}

type OrderRepository interface {
	// NextOrderNumber incrementa atomicamente a linha do contador
	NextOrderNumber(ctx context.Context, tx Tx) (int64, error)
	CreateOrder(ctx context.Context, tx Tx, order *domain.Order) error
	GetOrder(ctx context.Context, tx Tx, orderID string) (*domain.Order, error)
	GetOrderByReference(ctx context.Context, tx Tx, reference string) (*domain.Order, error)
	ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error)
	// SetPaymentReference grava a referência do gateway enquanto PENDING e
	// ainda sem referência
	SetPaymentReference(ctx context.Context, tx Tx, orderID, reference string) (bool, error)
	// TransitionPaymentStatus é um compare-and-swap: só altera se o status
	// atual for from. false significa zero linhas afetadas.
	TransitionPaymentStatus(ctx context.Context, tx Tx, orderID string, from, to domain.PaymentStatus) (bool, error)
	// MarkPaid é o único portão para a liquidação:
	// PENDING -> COMPLETED e status -> PROCESSING, condicional.
	MarkPaid(ctx context.Context, tx Tx, orderID string) (bool, error)
	TransitionOrderStatus(ctx context.Context, tx Tx, orderID string, from, to domain.OrderStatus) (bool, error)
}

type ReceiptRepository interface {
	GetReceipt(ctx context.Context, tx Tx, receiptID string) (*domain.PaymentReceipt, error)
	GetReceiptByOrder(ctx context.Context, tx Tx, orderID string) (*domain.PaymentReceipt, error)
	// UpsertReceipt substitui o comprovante do pedido, sempre em PENDING
	UpsertReceipt(ctx context.Context, tx Tx, receipt *domain.PaymentReceipt) error
	// TransitionReceipt é condicional no status atual
	TransitionReceipt(ctx context.Context, tx Tx, receiptID string, from, to domain.ReceiptStatus, staffNote string, reviewerID string) (bool, error)
	ListReceipts(ctx context.Context, status domain.ReceiptStatus, limit, offset int) ([]domain.PaymentReceipt, error)
}

type LedgerRepository interface {
	// AppendStockEntry exige tx não-nil: o ledger só é escrito na mesma
	// transação da mutação de estoque que ele registra.
	AppendStockEntry(ctx context.Context, tx Tx, entry *domain.StockEntry) error
	ListStockEntries(ctx context.Context, productID string, limit int) ([]domain.StockEntry, error)
}
