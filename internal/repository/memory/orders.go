package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/matheusmosca/commerce-settlement/internal/domain"
	"github.com/matheusmosca/commerce-settlement/internal/repository"
)

func copyOrder(o domain.Order) *domain.Order {
	o.Items = append([]domain.OrderItem(nil), o.Items...)
	return &o
}

func (s *Store) NextOrderNumber(ctx context.Context, tx repository.Tx) (int64, error) {
	if tx == nil {
		return 0, fmt.Errorf("next order number: %w", domain.ErrTxRequired)
	}
	st, unlock := s.view(tx)
	defer unlock()
	st.orderNumber++
	return st.orderNumber, nil
}

func (s *Store) CreateOrder(ctx context.Context, tx repository.Tx, order *domain.Order) error {
	if tx == nil {
		return fmt.Errorf("create order: %w", domain.ErrTxRequired)
	}
	st, unlock := s.view(tx)
	defer unlock()
	for _, o := range st.orders {
		if o.Number == order.Number {
			return fmt.Errorf("order number %d already taken", order.Number)
		}
	}
	st.orders[order.ID] = *copyOrder(*order)
	return nil
}

func (s *Store) GetOrder(ctx context.Context, tx repository.Tx, orderID string) (*domain.Order, error) {
	st, unlock := s.view(tx)
	defer unlock()
	o, ok := st.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", orderID, domain.ErrOrderNotFound)
	}
	return copyOrder(o), nil
}

func (s *Store) GetOrderByReference(ctx context.Context, tx repository.Tx, reference string) (*domain.Order, error) {
	st, unlock := s.view(tx)
	defer unlock()
	for _, o := range st.orders {
		if reference != "" && o.PaymentReference == reference {
			return copyOrder(o), nil
		}
	}
	return nil, fmt.Errorf("order with reference %s: %w", reference, domain.ErrOrderNotFound)
}

func (s *Store) ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	st, unlock := s.view(nil)
	defer unlock()

	var out []domain.Order
	for _, o := range st.orders {
		if filter.UserID != "" && o.UserID != filter.UserID {
			continue
		}
		if filter.PaymentStatus != "" && o.PaymentStatus != filter.PaymentStatus {
			continue
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		if filter.PaymentMethod != "" && o.PaymentMethod != filter.PaymentMethod {
			continue
		}
		o.Items = nil
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number > out[j].Number })

	if filter.Offset >= len(out) {
		return nil, nil
	}
	out = out[filter.Offset:]
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) SetPaymentReference(ctx context.Context, tx repository.Tx, orderID, reference string) (bool, error) {
	st, unlock := s.view(tx)
	defer unlock()
	o, ok := st.orders[orderID]
	if !ok || o.PaymentStatus != domain.PaymentStatusPending || o.PaymentReference != "" {
		return false, nil
	}
	for id, other := range st.orders {
		if id != orderID && other.PaymentReference == reference {
			return false, fmt.Errorf("payment reference %s already in use", reference)
		}
	}
	o.PaymentReference = reference
	o.UpdatedAt = time.Now().UTC()
	st.orders[orderID] = o
	return true, nil
}

func (s *Store) TransitionPaymentStatus(ctx context.Context, tx repository.Tx, orderID string, from, to domain.PaymentStatus) (bool, error) {
	st, unlock := s.view(tx)
	defer unlock()
	o, ok := st.orders[orderID]
	if !ok || o.PaymentStatus != from {
		return false, nil
	}
	o.PaymentStatus = to
	o.UpdatedAt = time.Now().UTC()
	st.orders[orderID] = o
	return true, nil
}

func (s *Store) MarkPaid(ctx context.Context, tx repository.Tx, orderID string) (bool, error) {
	if tx == nil {
		return false, fmt.Errorf("mark paid: %w", domain.ErrTxRequired)
	}
	st, unlock := s.view(tx)
	defer unlock()
	o, ok := st.orders[orderID]
	if !ok || o.PaymentStatus != domain.PaymentStatusPending {
		return false, nil
	}
	o.PaymentStatus = domain.PaymentStatusCompleted
	o.Status = domain.OrderStatusProcessing
	o.UpdatedAt = time.Now().UTC()
	st.orders[orderID] = o
	return true, nil
}

func (s *Store) TransitionOrderStatus(ctx context.Context, tx repository.Tx, orderID string, from, to domain.OrderStatus) (bool, error) {
	st, unlock := s.view(tx)
	defer unlock()
	o, ok := st.orders[orderID]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	o.UpdatedAt = time.Now().UTC()
	st.orders[orderID] = o
	return true, nil
}
