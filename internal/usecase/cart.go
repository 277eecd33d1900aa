package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"

	"go.opentelemetry.io/otel/attribute"

	"github.com/matheusmosca/commerce-settlement/internal/domain"
	"github.com/matheusmosca/commerce-settlement/internal/repository"
	"github.com/matheusmosca/commerce-settlement/internal/telemetry"
)

// CartUseCase contém a lógica de negócio do carrinho
type CartUseCase struct {
	repos Repositories
}

// NewCartUseCase cria uma nova instância de CartUseCase
func NewCartUseCase(repos Repositories) *CartUseCase {
	return &CartUseCase{repos: repos}
}

// CartLineView é a linha do carrinho com o preço resolvido na leitura
type CartLineView struct {
	LineID    string `json:"line_id"`
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
	Subtotal  int64  `json:"subtotal"`
	Stock     int    `json:"stock"`
	Available bool   `json:"available"`
}

// CartView é a projeção do carrinho para o comprador
type CartView struct {
	CartID    string         `json:"cart_id,omitempty"`
	Lines     []CartLineView `json:"lines"`
	ItemTotal int64          `json:"item_total"`
}

// GetCart retorna o carrinho do dono; sem carrinho, retorna vazio
func (uc *CartUseCase) GetCart(ctx context.Context, owner domain.Owner) (*CartView, error) {
	ctx, span := telemetry.StartSpan(ctx, "cart.get", attribute.String("owner", owner.String()))
	defer span.End()

	if err := owner.Validate(); err != nil {
		return nil, err
	}

	cart, err := uc.repos.Carts.GetCartByOwner(ctx, nil, owner)
	if errors.Is(err, domain.ErrCartNotFound) {
		if err := uc.checkGuestActive(ctx, nil, owner); err != nil {
			recordError(span, err)
			return nil, err
		}
		return &CartView{Lines: []CartLineView{}}, nil
	}
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	lines, err := uc.repos.Carts.ListCartLines(ctx, nil, cart.ID)
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}
	products, err := uc.repos.Products.GetProducts(ctx, nil, ids)
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	view := &CartView{CartID: cart.ID, Lines: make([]CartLineView, 0, len(lines))}
	for _, l := range lines {
		lv := CartLineView{LineID: l.ID, ProductID: l.ProductID, Quantity: l.Quantity}
		if p, ok := products[l.ProductID]; ok {
			lv.Name = p.Name
			lv.UnitPrice = p.UnitPrice()
			lv.Subtotal = lv.UnitPrice * int64(l.Quantity)
			lv.Stock = p.Stock
			lv.Available = p.Stock >= l.Quantity
			view.ItemTotal += lv.Subtotal
		}
		view.Lines = append(view.Lines, lv)
	}
	return view, nil
}

// getOrCreateCart busca o carrinho do dono ou cria na mesma transação
func (uc *CartUseCase) getOrCreateCart(ctx context.Context, tx repository.Tx, owner domain.Owner) (*domain.Cart, error) {
	cart, err := uc.repos.Carts.GetCartByOwner(ctx, tx, owner)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, domain.ErrCartNotFound) {
		return nil, err
	}
	if err := uc.checkGuestActive(ctx, tx, owner); err != nil {
		return nil, err
	}
	cart = domain.NewCart(owner)
	if err := uc.repos.Carts.CreateCart(ctx, tx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// checkGuestActive barra sessões anônimas já absorvidas num merge
func (uc *CartUseCase) checkGuestActive(ctx context.Context, tx repository.Tx, owner domain.Owner) error {
	if owner.IsAuthenticated() {
		return nil
	}
	retired, err := uc.repos.Carts.IsGuestRetired(ctx, tx, owner.GuestID)
	if err != nil {
		return err
	}
	if retired {
		return fmt.Errorf("guest %s: %w", owner.GuestID, domain.ErrGuestSessionRetired)
	}
	return nil
}

// AddItem incrementa a linha do produto ou cria com qty
func (uc *CartUseCase) AddItem(ctx context.Context, owner domain.Owner, productID string, qty int) (*domain.CartLine, error) {
	ctx, span := telemetry.StartSpan(ctx, "cart.add_item",
		attribute.String("owner", owner.String()),
		attribute.String("product_id", productID),
		attribute.Int("quantity", qty),
	)
	defer span.End()

	if err := owner.Validate(); err != nil {
		return nil, err
	}
	if qty <= 0 {
		return nil, fmt.Errorf("quantity %d: %w", qty, domain.ErrInvalidQuantity)
	}

	var line *domain.CartLine
	err := repository.WithTx(ctx, uc.repos.Tx, func(tx repository.Tx) error {
		product, err := uc.repos.Products.GetProduct(ctx, tx, productID)
		if err != nil {
			return err
		}

		cart, err := uc.getOrCreateCart(ctx, tx, owner)
		if err != nil {
			return err
		}

		lines, err := uc.repos.Carts.ListCartLines(ctx, tx, cart.ID)
		if err != nil {
			return err
		}
		current := 0
		for _, l := range lines {
			if l.ProductID == productID {
				current = l.Quantity
			}
		}
		if current+qty > product.Stock {
			return fmt.Errorf("product %s: requested %d, available %d: %w",
				productID, current+qty, product.Stock, domain.ErrInsufficientStock)
		}

		line, err = uc.repos.Carts.UpsertCartLine(ctx, tx, cart.ID, productID, qty)
		return err
	})
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	return line, nil
}

// ownedLine carrega a linha e garante que pertence ao carrinho do dono
func (uc *CartUseCase) ownedLine(ctx context.Context, tx repository.Tx, owner domain.Owner, lineID string) (*domain.CartLine, error) {
	line, err := uc.repos.Carts.GetCartLine(ctx, tx, lineID)
	if err != nil {
		return nil, err
	}
	cart, err := uc.repos.Carts.GetCart(ctx, tx, line.CartID)
	if err != nil {
		return nil, err
	}
	if cart.Owner != owner {
		return nil, fmt.Errorf("cart line %s: %w", lineID, domain.ErrUnauthorizedOwner)
	}
	return line, nil
}

// SetQuantity define a quantidade absoluta da linha. Zero remove a linha;
// acima do estoque atual falha com ErrInsufficientStock.
func (uc *CartUseCase) SetQuantity(ctx context.Context, owner domain.Owner, lineID string, qty int) error {
	ctx, span := telemetry.StartSpan(ctx, "cart.set_quantity",
		attribute.String("line_id", lineID),
		attribute.Int("quantity", qty),
	)
	defer span.End()

	if err := owner.Validate(); err != nil {
		return err
	}
	if qty < 0 {
		return fmt.Errorf("quantity %d: %w", qty, domain.ErrInvalidQuantity)
	}
	if qty == 0 {
		return uc.RemoveItem(ctx, owner, lineID)
	}

	err := repository.WithTx(ctx, uc.repos.Tx, func(tx repository.Tx) error {
		line, err := uc.ownedLine(ctx, tx, owner, lineID)
		if err != nil {
			return err
		}
		product, err := uc.repos.Products.GetProduct(ctx, tx, line.ProductID)
		if err != nil {
			return err
		}
		if qty > product.Stock {
			return fmt.Errorf("product %s: requested %d, available %d: %w",
				line.ProductID, qty, product.Stock, domain.ErrInsufficientStock)
		}
		return uc.repos.Carts.SetCartLineQuantity(ctx, tx, lineID, qty)
	})
	recordError(span, err)
	return err
}

// RemoveItem remove a linha do carrinho do dono
func (uc *CartUseCase) RemoveItem(ctx context.Context, owner domain.Owner, lineID string) error {
	ctx, span := telemetry.StartSpan(ctx, "cart.remove_item", attribute.String("line_id", lineID))
	defer span.End()

	if err := owner.Validate(); err != nil {
		return err
	}

	err := repository.WithTx(ctx, uc.repos.Tx, func(tx repository.Tx) error {
		if _, err := uc.ownedLine(ctx, tx, owner, lineID); err != nil {
			return err
		}
		return uc.repos.Carts.DeleteCartLine(ctx, tx, lineID)
	})
	recordError(span, err)
	return err
}

// Clear esvazia o carrinho do dono sem apagá-lo
func (uc *CartUseCase) Clear(ctx context.Context, owner domain.Owner) error {
	ctx, span := telemetry.StartSpan(ctx, "cart.clear", attribute.String("owner", owner.String()))
	defer span.End()

	if err := owner.Validate(); err != nil {
		return err
	}

	err := repository.WithTx(ctx, uc.repos.Tx, func(tx repository.Tx) error {
		cart, err := uc.repos.Carts.GetCartByOwner(ctx, tx, owner)
		if errors.Is(err, domain.ErrCartNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return uc.repos.Carts.ClearCartLines(ctx, tx, cart.ID)
	})
	recordError(span, err)
	return err
}

// MergeGuestIntoUser soma as linhas do carrinho anônimo no carrinho do
// usuário, apaga o carrinho anônimo e aposenta a sessão, tudo numa
// transação. A sessão aposentada não abre carrinho novo. As linhas são
// processadas em ordem de produto. A soma não é limitada pelo estoque: o
// limite é checado de novo na próxima mutação e na liquidação.
func (uc *CartUseCase) MergeGuestIntoUser(ctx context.Context, guestID, userID string) error {
	ctx, span := telemetry.StartSpan(ctx, "cart.merge",
		attribute.String("guest_id", guestID),
		attribute.String("user_id", userID),
	)
	defer span.End()

	if guestID == "" || userID == "" {
		return fmt.Errorf("merge needs both guest and user: %w", domain.ErrUnauthorizedOwner)
	}

	log.Printf("➡️ [MERGE CART] GuestID=%s | UserID=%s", guestID, userID)

	merged := 0
	err := repository.WithTx(ctx, uc.repos.Tx, func(tx repository.Tx) error {
		if err := uc.repos.Carts.RetireGuest(ctx, tx, guestID); err != nil {
			return err
		}

		guestCart, err := uc.repos.Carts.GetCartByOwner(ctx, tx, domain.GuestOwner(guestID))
		if errors.Is(err, domain.ErrCartNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		lines, err := uc.repos.Carts.ListCartLines(ctx, tx, guestCart.ID)
		if err != nil {
			return err
		}

		if len(lines) > 0 {
			userCart, err := uc.getOrCreateCart(ctx, tx, domain.UserOwner(userID))
			if err != nil {
				return err
			}
			for _, l := range sortLinesByProduct(lines) {
				if _, err := uc.repos.Carts.UpsertCartLine(ctx, tx, userCart.ID, l.ProductID, l.Quantity); err != nil {
					return err
				}
				merged++
			}
		}

		return uc.repos.Carts.DeleteCart(ctx, tx, guestCart.ID)
	})
	if err != nil {
		log.Printf("❌ [MERGE CART] GuestID=%s failed: %v", guestID, err)
		recordError(span, err)
		return err
	}

	log.Printf("✅ [MERGE CART] GuestID=%s | UserID=%s | Lines=%d", guestID, userID, merged)
	return nil
}
