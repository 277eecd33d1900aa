package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/matheusmosca/commerce-settlement/internal/domain"
	"github.com/matheusmosca/commerce-settlement/internal/repository"
)

// CartRepository implementa repository.CartRepository usando PostgreSQL
type CartRepository struct {
	db *DB
}

// NewCartRepository cria uma nova instância de CartRepository
func NewCartRepository(db *DB) *CartRepository {
	return &CartRepository{db: db}
}

func scanCart(row pgx.Row) (*domain.Cart, error) {
	var (
		c       domain.Cart
		userID  *string
		guestID *string
	)
	if err := row.Scan(&c.ID, &userID, &guestID, &c.CreatedAt); err != nil {
		return nil, err
	}
	if userID != nil {
		c.Owner.UserID = *userID
	}
	if guestID != nil {
		c.Owner.GuestID = *guestID
	}
	return &c, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// GetCartByOwner busca o carrinho do dono
func (r *CartRepository) GetCartByOwner(ctx context.Context, tx repository.Tx, owner domain.Owner) (*domain.Cart, error) {
	query := `SELECT id, user_id, guest_id, created_at FROM carts WHERE guest_id = $1`
	key := owner.GuestID
	if owner.IsAuthenticated() {
		query = `SELECT id, user_id, guest_id, created_at FROM carts WHERE user_id = $1`
		key = owner.UserID
	}

	c, err := scanCart(r.db.q(tx).QueryRow(ctx, query, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("cart for %s: %w", owner, domain.ErrCartNotFound)
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}
	return c, nil
}

// GetCart busca o carrinho pelo ID
func (r *CartRepository) GetCart(ctx context.Context, tx repository.Tx, cartID string) (*domain.Cart, error) {
	c, err := scanCart(r.db.q(tx).QueryRow(ctx, `
		SELECT id, user_id, guest_id, created_at FROM carts WHERE id = $1
	`, cartID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("cart %s: %w", cartID, domain.ErrCartNotFound)
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}
	return c, nil
}

// CreateCart cria o carrinho. Se outro request criou o carrinho do mesmo
// dono ao mesmo tempo, devolve o existente. ON CONFLICT DO NOTHING evita o
// erro de unicidade, que abortaria a transação do chamador.
func (r *CartRepository) CreateCart(ctx context.Context, tx repository.Tx, cart *domain.Cart) error {
	created, err := scanCart(r.db.q(tx).QueryRow(ctx, `
		INSERT INTO carts (id, user_id, guest_id, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT DO NOTHING
		RETURNING id, user_id, guest_id, created_at
	`, cart.ID, nullable(cart.Owner.UserID), nullable(cart.Owner.GuestID), cart.CreatedAt))
	if errors.Is(err, pgx.ErrNoRows) {
		existing, getErr := r.GetCartByOwner(ctx, tx, cart.Owner)
		if getErr != nil {
			return getErr
		}
		*cart = *existing
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to create cart: %w", err)
	}
	*cart = *created
	return nil
}

// DeleteCart apaga o carrinho e, em cascata, suas linhas
func (r *CartRepository) DeleteCart(ctx context.Context, tx repository.Tx, cartID string) error {
	_, err := r.db.q(tx).Exec(ctx, `DELETE FROM carts WHERE id = $1`, cartID)
	if err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}
	return nil
}

const cartLineColumns = `id, cart_id, product_id, quantity, created_at, updated_at`

func scanCartLine(row pgx.Row) (*domain.CartLine, error) {
	var l domain.CartLine
	if err := row.Scan(&l.ID, &l.CartID, &l.ProductID, &l.Quantity, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return nil, err
	}
	return &l, nil
}

// ListCartLines lista as linhas ordenadas por produto
func (r *CartRepository) ListCartLines(ctx context.Context, tx repository.Tx, cartID string) ([]domain.CartLine, error) {
	rows, err := r.db.q(tx).Query(ctx, `
		SELECT `+cartLineColumns+` FROM cart_lines WHERE cart_id = $1 ORDER BY product_id
	`, cartID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cart lines: %w", err)
	}
	defer rows.Close()

	var lines []domain.CartLine
	for rows.Next() {
		l, err := scanCartLine(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cart line: %w", err)
		}
		lines = append(lines, *l)
	}
	return lines, rows.Err()
}

// GetCartLine busca uma linha pelo ID
func (r *CartRepository) GetCartLine(ctx context.Context, tx repository.Tx, lineID string) (*domain.CartLine, error) {
	l, err := scanCartLine(r.db.q(tx).QueryRow(ctx, `
		SELECT `+cartLineColumns+` FROM cart_lines WHERE id = $1
	`, lineID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("cart line %s: %w", lineID, domain.ErrCartLineNotFound)
		}
		return nil, fmt.Errorf("failed to get cart line: %w", err)
	}
	return l, nil
}

// UpsertCartLine incrementa a quantidade ou cria a linha
func (r *CartRepository) UpsertCartLine(ctx context.Context, tx repository.Tx, cartID, productID string, qty int) (*domain.CartLine, error) {
	l, err := scanCartLine(r.db.q(tx).QueryRow(ctx, `
		INSERT INTO cart_lines (id, cart_id, product_id, quantity, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (cart_id, product_id)
		DO UPDATE SET quantity = cart_lines.quantity + EXCLUDED.quantity,
		              updated_at = NOW()
		RETURNING `+cartLineColumns+`
	`, uuid.New().String(), cartID, productID, qty))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert cart line: %w", err)
	}
	return l, nil
}

// SetCartLineQuantity define a quantidade absoluta de uma linha
func (r *CartRepository) SetCartLineQuantity(ctx context.Context, tx repository.Tx, lineID string, qty int) error {
	tag, err := r.db.q(tx).Exec(ctx, `
		UPDATE cart_lines SET quantity = $2, updated_at = NOW() WHERE id = $1
	`, lineID, qty)
	if err != nil {
		return fmt.Errorf("failed to set cart line quantity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("cart line %s: %w", lineID, domain.ErrCartLineNotFound)
	}
	return nil
}

// DeleteCartLine remove uma linha
func (r *CartRepository) DeleteCartLine(ctx context.Context, tx repository.Tx, lineID string) error {
	tag, err := r.db.q(tx).Exec(ctx, `DELETE FROM cart_lines WHERE id = $1`, lineID)
	if err != nil {
		return fmt.Errorf("failed to delete cart line: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("cart line %s: %w", lineID, domain.ErrCartLineNotFound)
	}
	return nil
}

// ClearCartLines esvazia o carrinho sem apagá-lo
func (r *CartRepository) ClearCartLines(ctx context.Context, tx repository.Tx, cartID string) error {
	_, err := r.db.q(tx).Exec(ctx, `DELETE FROM cart_lines WHERE cart_id = $1`, cartID)
	if err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

// RetireGuest registra a sessão anônima absorvida num merge
func (r *CartRepository) RetireGuest(ctx context.Context, tx repository.Tx, guestID string) error {
	_, err := r.db.q(tx).Exec(ctx, `
		INSERT INTO retired_guest_sessions (guest_id, retired_at)
		VALUES ($1, NOW())
		ON CONFLICT (guest_id) DO NOTHING
	`, guestID)
	if err != nil {
		return fmt.Errorf("failed to retire guest session: %w", err)
	}
	return nil
}

// IsGuestRetired informa se a sessão anônima já foi absorvida
func (r *CartRepository) IsGuestRetired(ctx context.Context, tx repository.Tx, guestID string) (bool, error) {
	var retired bool
	err := r.db.q(tx).QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM retired_guest_sessions WHERE guest_id = $1)
	`, guestID).Scan(&retired)
	if err != nil {
		return false, fmt.Errorf("failed to check guest session: %w", err)
	}
	return retired, nil
}

var _ repository.CartRepository = (*CartRepository)(nil)
