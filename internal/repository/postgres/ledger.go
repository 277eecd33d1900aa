package postgres

import (
	"context"
	"fmt"

	"github.com/matheusmosca/commerce-settlement/internal/domain"
	"github.com/matheusmosca/commerce-settlement/internal/repository"
)

// LedgerRepository implementa repository.LedgerRepository sobre stock_history
type LedgerRepository struct {
	db *DB
}

// NewLedgerRepository cria uma nova instância de LedgerRepository
func NewLedgerRepository(db *DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// AppendStockEntry insere uma linha no ledger dentro da transação
func (r *LedgerRepository) AppendStockEntry(ctx context.Context, tx repository.Tx, entry *domain.StockEntry) error {
	if tx == nil {
		return fmt.Errorf("append stock entry: %w", domain.ErrTxRequired)
	}
	_, err := r.db.q(tx).Exec(ctx, `
		INSERT INTO stock_history (id, product_id, delta, resulting_stock, reason, actor_id, order_id, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, entry.ID, entry.ProductID, entry.Delta, entry.ResultingStock, entry.Reason,
		entry.ActorID, entry.OrderID, entry.Note, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append stock entry: %w", err)
	}
	return nil
}

// ListStockEntries retorna o histórico do produto, mais recente primeiro
func (r *LedgerRepository) ListStockEntries(ctx context.Context, productID string, limit int) ([]domain.StockEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, product_id, delta, resulting_stock, reason, actor_id, order_id, note, created_at
		FROM stock_history
		WHERE product_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, productID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list stock entries: %w", err)
	}
	defer rows.Close()

	var out []domain.StockEntry
	for rows.Next() {
		var e domain.StockEntry
		if err := rows.Scan(&e.ID, &e.ProductID, &e.Delta, &e.ResultingStock, &e.Reason,
			&e.ActorID, &e.OrderID, &e.Note, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan stock entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

var _ repository.LedgerRepository = (*LedgerRepository)(nil)
