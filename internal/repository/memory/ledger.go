package memory

import (
	"context"
	"fmt"

	"github.com/matheusmosca/commerce-settlement/internal/domain"
	"github.com/matheusmosca/commerce-settlement/internal/repository"
)

func (s *Store) AppendStockEntry(ctx context.Context, tx repository.Tx, entry *domain.StockEntry) error {
	if tx == nil {
		return fmt.Errorf("append stock entry: %w", domain.ErrTxRequired)
	}
	st, unlock := s.view(tx)
	defer unlock()
	st.ledger = append(st.ledger, *entry)
	return nil
}

// ListStockEntries retorna o histórico do produto, mais recente primeiro
func (s *Store) ListStockEntries(ctx context.Context, productID string, limit int) ([]domain.StockEntry, error) {
	st, unlock := s.view(nil)
	defer unlock()
	if limit <= 0 {
		limit = 100
	}
	var out []domain.StockEntry
	for i := len(st.ledger) - 1; i >= 0 && len(out) < limit; i-- {
		if st.ledger[i].ProductID == productID {
			out = append(out, st.ledger[i])
		}
	}
	return out, nil
}
