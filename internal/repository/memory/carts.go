package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/matheusmosca/commerce-settlement/internal/domain"
	"github.com/matheusmosca/commerce-settlement/internal/repository"
)

func findCart(st *state, owner domain.Owner) (domain.Cart, bool) {
	for _, c := range st.carts {
		if c.Owner == owner {
			return c, true
		}
	}
	return domain.Cart{}, false
}

func (s *Store) GetCartByOwner(ctx context.Context, tx repository.Tx, owner domain.Owner) (*domain.Cart, error) {
	st, unlock := s.view(tx)
	defer unlock()
	c, ok := findCart(st, owner)
	if !ok {
		return nil, fmt.Errorf("cart for %s: %w", owner, domain.ErrCartNotFound)
	}
	return &c, nil
}

func (s *Store) GetCart(ctx context.Context, tx repository.Tx, cartID string) (*domain.Cart, error) {
	st, unlock := s.view(tx)
	defer unlock()
	c, ok := st.carts[cartID]
	if !ok {
		return nil, fmt.Errorf("cart %s: %w", cartID, domain.ErrCartNotFound)
	}
	return &c, nil
}

func (s *Store) CreateCart(ctx context.Context, tx repository.Tx, cart *domain.Cart) error {
	st, unlock := s.view(tx)
	defer unlock()
	if existing, ok := findCart(st, cart.Owner); ok {
		*cart = existing
		return nil
	}
	st.carts[cart.ID] = *cart
	return nil
}

func (s *Store) DeleteCart(ctx context.Context, tx repository.Tx, cartID string) error {
	st, unlock := s.view(tx)
	defer unlock()
	delete(st.carts, cartID)
	for id, l := range st.lines {
		if l.CartID == cartID {
			delete(st.lines, id)
		}
	}
	return nil
}

func (s *Store) ListCartLines(ctx context.Context, tx repository.Tx, cartID string) ([]domain.CartLine, error) {
	st, unlock := s.view(tx)
	defer unlock()
	var out []domain.CartLine
	for _, l := range st.lines {
		if l.CartID == cartID {
			out = append(out, l)
		}
	}
	return sortedLines(out), nil
}

func (s *Store) GetCartLine(ctx context.Context, tx repository.Tx, lineID string) (*domain.CartLine, error) {
	st, unlock := s.view(tx)
	defer unlock()
	l, ok := st.lines[lineID]
	if !ok {
		return nil, fmt.Errorf("cart line %s: %w", lineID, domain.ErrCartLineNotFound)
	}
	return &l, nil
}

func (s *Store) UpsertCartLine(ctx context.Context, tx repository.Tx, cartID, productID string, qty int) (*domain.CartLine, error) {
	st, unlock := s.view(tx)
	defer unlock()
	for id, l := range st.lines {
		if l.CartID == cartID && l.ProductID == productID {
			l.Quantity += qty
			l.UpdatedAt = time.Now().UTC()
			st.lines[id] = l
			return &l, nil
		}
	}
	l := domain.NewCartLine(cartID, productID, qty)
	st.lines[l.ID] = *l
	return l, nil
}

func (s *Store) SetCartLineQuantity(ctx context.Context, tx repository.Tx, lineID string, qty int) error {
	st, unlock := s.view(tx)
	defer unlock()
	l, ok := st.lines[lineID]
	if !ok {
		return fmt.Errorf("cart line %s: %w", lineID, domain.ErrCartLineNotFound)
	}
	l.Quantity = qty
	l.UpdatedAt = time.Now().UTC()
	st.lines[lineID] = l
	return nil
}

func (s *Store) DeleteCartLine(ctx context.Context, tx repository.Tx, lineID string) error {
	st, unlock := s.view(tx)
	defer unlock()
	if _, ok := st.lines[lineID]; !ok {
		return fmt.Errorf("cart line %s: %w", lineID, domain.ErrCartLineNotFound)
	}
	delete(st.lines, lineID)
	return nil
}

func (s *Store) ClearCartLines(ctx context.Context, tx repository.Tx, cartID string) error {
	st, unlock := s.view(tx)
	defer unlock()
	for id, l := range st.lines {
		if l.CartID == cartID {
			delete(st.lines, id)
		}
	}
	return nil
}

func (s *Store) RetireGuest(ctx context.Context, tx repository.Tx, guestID string) error {
	st, unlock := s.view(tx)
	defer unlock()
	st.retired[guestID] = true
	return nil
}

func (s *Store) IsGuestRetired(ctx context.Context, tx repository.Tx, guestID string) (bool, error) {
	st, unlock := s.view(tx)
	defer unlock()
	return st.retired[guestID], nil
}
