// Package memory implementa todos os repositórios em memória. Cada
// transação trabalha numa cópia do estado e só a publica no Commit, então
// um Rollback (ou um erro no meio) nunca deixa efeito parcial visível.
// Transações são serializadas pelo mutex do Store.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/matheusmosca/commerce-settlement/internal/domain"
	"github.com/matheusmosca/commerce-settlement/internal/repository"
)

type state struct {
	products    map[string]domain.Product
	coupons     map[string]domain.Coupon
	shipping    map[string]domain.ShippingMethod
	addresses   map[string]domain.Address
	carts       map[string]domain.Cart
	lines       map[string]domain.CartLine
	orders      map[string]domain.Order
	receipts    map[string]domain.PaymentReceipt
	ledger      []domain.StockEntry
	orderNumber int64
	retired     map[string]bool
}

func newState() *state {
	return &state{
		products:  make(map[string]domain.Product),
		coupons:   make(map[string]domain.Coupon),
		shipping:  make(map[string]domain.ShippingMethod),
		addresses: make(map[string]domain.Address),
		carts:     make(map[string]domain.Cart),
		lines:     make(map[string]domain.CartLine),
		orders:    make(map[string]domain.Order),
		receipts:  make(map[string]domain.PaymentReceipt),
		retired:   make(map[string]bool),
	}
}

func copyMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (s *state) clone() *state {
	return &state{
		products:    copyMap(s.products),
		coupons:     copyMap(s.coupons),
		shipping:    copyMap(s.shipping),
		addresses:   copyMap(s.addresses),
		carts:       copyMap(s.carts),
		lines:       copyMap(s.lines),
		orders:      copyMap(s.orders),
		receipts:    copyMap(s.receipts),
		ledger:      append([]domain.StockEntry(nil), s.ledger...),
		orderNumber: s.orderNumber,
		retired:     copyMap(s.retired),
	}
}

// Store é o armazenamento em memória usado pelos testes e por execuções
// locais sem banco
type Store struct {
	mu   sync.Mutex
	live *state
}

// NewStore cria uma nova instância de Store vazia
func NewStore() *Store {
	return &Store{live: newState()}
}

// MemoryTx implementa repository.Tx sobre uma cópia do estado
type MemoryTx struct {
	store *Store
	st    *state
	done  bool
}

func (t *MemoryTx) Commit() error {
	if t.done {
		return nil
	}
	t.store.live = t.st
	t.done = true
	t.store.mu.Unlock()
	return nil
}

func (t *MemoryTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	t.store.mu.Unlock()
	return nil
}

// BeginTx bloqueia o store até Commit ou Rollback
func (s *Store) BeginTx(ctx context.Context) (repository.Tx, error) {
	s.mu.Lock()
	if err := ctx.Err(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	return &MemoryTx{store: s, st: s.live.clone()}, nil
}

// view devolve o estado que a operação enxerga. Sem tx, trava o store
// durante a operação e escreve direto no estado publicado.
func (s *Store) view(tx repository.Tx) (*state, func()) {
	if tx != nil {
		return tx.(*MemoryTx).st, func() {}
	}
	s.mu.Lock()
	return s.live, s.mu.Unlock
}

// PutProduct grava um produto no catálogo
func (s *Store) PutProduct(p domain.Product) {
	st, unlock := s.view(nil)
	defer unlock()
	st.products[p.ID] = p
}

// DeleteProduct remove um produto do catálogo
func (s *Store) DeleteProduct(productID string) {
	st, unlock := s.view(nil)
	defer unlock()
	delete(st.products, productID)
}

// PutCoupon grava um cupom
func (s *Store) PutCoupon(c domain.Coupon) {
	st, unlock := s.view(nil)
	defer unlock()
	st.coupons[c.ID] = c
}

// PutShippingMethod grava um método de envio
func (s *Store) PutShippingMethod(m domain.ShippingMethod) {
	st, unlock := s.view(nil)
	defer unlock()
	st.shipping[m.Code] = m
}

// PutAddress grava um endereço
func (s *Store) PutAddress(a domain.Address) {
	st, unlock := s.view(nil)
	defer unlock()
	st.addresses[a.ID] = a
}

// OrderCount retorna quantos pedidos existem
func (s *Store) OrderCount() int {
	st, unlock := s.view(nil)
	defer unlock()
	return len(st.orders)
}

// CurrentOrderNumber retorna o valor atual do contador de pedidos
func (s *Store) CurrentOrderNumber() int64 {
	st, unlock := s.view(nil)
	defer unlock()
	return st.orderNumber
}

func sortedLines(lines []domain.CartLine) []domain.CartLine {
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })
	return lines
}

var (
	_ repository.TxManager          = (*Store)(nil)
	_ repository.ProductRepository  = (*Store)(nil)
	_ repository.CouponRepository   = (*Store)(nil)
	_ repository.ShippingRepository = (*Store)(nil)
	_ repository.AddressRepository  = (*Store)(nil)
	_ repository.CartRepository     = (*Store)(nil)
	_ repository.OrderRepository    = (*Store)(nil)
	_ repository.ReceiptRepository  = (*Store)(nil)
	_ repository.LedgerRepository   = (*Store)(nil)
)
