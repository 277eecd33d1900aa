package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/matheusmosca/commerce-settlement/internal/domain"
	"github.com/matheusmosca/commerce-settlement/internal/repository"
)

// ReceiptRepository implementa repository.ReceiptRepository usando PostgreSQL
type ReceiptRepository struct {
	db *DB
}

// NewReceiptRepository cria uma nova instância de ReceiptRepository
func NewReceiptRepository(db *DB) *ReceiptRepository {
	return &ReceiptRepository{db: db}
}

const receiptColumns = `id, order_id, image_url, image_public_id, buyer_note, staff_note, status,
	reviewed_by, reviewed_at, created_at, updated_at`

func scanReceipt(row pgx.Row) (*domain.PaymentReceipt, error) {
	var rc domain.PaymentReceipt
	err := row.Scan(&rc.ID, &rc.OrderID, &rc.ImageURL, &rc.ImagePublicID, &rc.BuyerNote, &rc.StaffNote,
		&rc.Status, &rc.ReviewedBy, &rc.ReviewedAt, &rc.CreatedAt, &rc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &rc, nil
}

// GetReceipt busca o comprovante pelo ID
func (r *ReceiptRepository) GetReceipt(ctx context.Context, tx repository.Tx, receiptID string) (*domain.PaymentReceipt, error) {
	rc, err := scanReceipt(r.db.q(tx).QueryRow(ctx, `SELECT `+receiptColumns+` FROM payment_receipts WHERE id = $1`, receiptID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("receipt %s: %w", receiptID, domain.ErrReceiptNotFound)
		}
		return nil, fmt.Errorf("failed to get receipt: %w", err)
	}
	return rc, nil
}

// GetReceiptByOrder busca o comprovante do pedido
func (r *ReceiptRepository) GetReceiptByOrder(ctx context.Context, tx repository.Tx, orderID string) (*domain.PaymentReceipt, error) {
	rc, err := scanReceipt(r.db.q(tx).QueryRow(ctx, `SELECT `+receiptColumns+` FROM payment_receipts WHERE order_id = $1`, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("receipt for order %s: %w", orderID, domain.ErrReceiptNotFound)
		}
		return nil, fmt.Errorf("failed to get receipt: %w", err)
	}
	return rc, nil
}

// UpsertReceipt substitui o comprovante existente e volta para PENDING.
// Um comprovante já aprovado nunca é sobrescrito.
func (r *ReceiptRepository) UpsertReceipt(ctx context.Context, tx repository.Tx, receipt *domain.PaymentReceipt) error {
	rc, err := scanReceipt(r.db.q(tx).QueryRow(ctx, `
		INSERT INTO payment_receipts (id, order_id, image_url, image_public_id, buyer_note, staff_note,
			status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, '', 'PENDING', $6, $6)
		ON CONFLICT (order_id) DO UPDATE
		SET image_url = EXCLUDED.image_url,
		    image_public_id = EXCLUDED.image_public_id,
		    buyer_note = EXCLUDED.buyer_note,
		    staff_note = '',
		    status = 'PENDING',
		    reviewed_by = NULL,
		    reviewed_at = NULL,
		    updated_at = NOW()
		WHERE payment_receipts.status <> 'APPROVED'
		RETURNING `+receiptColumns+`
	`, receipt.ID, receipt.OrderID, receipt.ImageURL, receipt.ImagePublicID, receipt.BuyerNote, receipt.CreatedAt))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("receipt for order %s already approved: %w", receipt.OrderID, domain.ErrInvalidState)
		}
		return fmt.Errorf("failed to upsert receipt: %w", err)
	}
	*receipt = *rc
	return nil
}

// TransitionReceipt altera o status apenas se o atual for from
func (r *ReceiptRepository) TransitionReceipt(ctx context.Context, tx repository.Tx, receiptID string, from, to domain.ReceiptStatus, staffNote string, reviewerID string) (bool, error) {
	tag, err := r.db.q(tx).Exec(ctx, `
		UPDATE payment_receipts
		SET status = $3,
		    staff_note = $4,
		    reviewed_by = $5,
		    reviewed_at = NOW(),
		    updated_at = NOW()
		WHERE id = $1 AND status = $2
	`, receiptID, from, to, staffNote, nullable(reviewerID))
	if err != nil {
		return false, fmt.Errorf("failed to transition receipt: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListReceipts lista comprovantes por status, mais antigos primeiro
func (r *ReceiptRepository) ListReceipts(ctx context.Context, status domain.ReceiptStatus, limit, offset int) ([]domain.PaymentReceipt, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.pool.Query(ctx, `
		SELECT `+receiptColumns+` FROM payment_receipts
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at ASC
		LIMIT $2 OFFSET $3
	`, string(status), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list receipts: %w", err)
	}
	defer rows.Close()

	var out []domain.PaymentReceipt
	for rows.Next() {
		rc, err := scanReceipt(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan receipt: %w", err)
		}
		out = append(out, *rc)
	}
	return out, rows.Err()
}

var _ repository.ReceiptRepository = (*ReceiptRepository)(nil)
