package usecase

import (
	"context"
	"fmt"
	"log"

	"go.opentelemetry.io/otel/attribute"

	"github.com/matheusmosca/commerce-settlement/internal/domain"
	"github.com/matheusmosca/commerce-settlement/internal/events"
	"github.com/matheusmosca/commerce-settlement/internal/repository"
	"github.com/matheusmosca/commerce-settlement/internal/telemetry"
)

// InventoryLedger grava as entradas do ledger de estoque. Toda escrita
// acontece na mesma transação da mutação de estoque registrada.
type InventoryLedger struct {
	repository repository.LedgerRepository
}

// NewInventoryLedger cria uma nova instância de InventoryLedger
func NewInventoryLedger(repository repository.LedgerRepository) *InventoryLedger {
	return &InventoryLedger{repository: repository}
}

// LedgerEntry são os campos de uma movimentação
type LedgerEntry struct {
	ProductID      string
	Delta          int
	ResultingStock int
	Reason         domain.StockReason
	ActorID        *string
	OrderID        *string
	Note           string
}

// Append registra a movimentação; tx nil é rejeitado
func (l *InventoryLedger) Append(ctx context.Context, tx repository.Tx, e LedgerEntry) (*domain.StockEntry, error) {
	if tx == nil {
		return nil, fmt.Errorf("ledger append for product %s: %w", e.ProductID, domain.ErrTxRequired)
	}
	if !e.Reason.Valid() {
		return nil, fmt.Errorf("reason %q: %w", e.Reason, domain.ErrInvalidReason)
	}

	entry := domain.NewStockEntry(e.ProductID, e.Delta, e.ResultingStock, e.Reason, e.ActorID, e.Note)
	entry.OrderID = e.OrderID
	if err := l.repository.AppendStockEntry(ctx, tx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// InventoryUseCase contém os ajustes manuais de estoque feitos pela equipe
type InventoryUseCase struct {
	repos   Repositories
	ledger  *InventoryLedger
	metrics *telemetry.Metrics
	events  events.Publisher
}

// NewInventoryUseCase cria uma nova instância de InventoryUseCase
func NewInventoryUseCase(repos Repositories, obs Observability) *InventoryUseCase {
	obs = obs.withDefaults()
	return &InventoryUseCase{
		repos:   repos,
		ledger:  NewInventoryLedger(repos.Ledger),
		metrics: obs.Metrics,
		events:  obs.Publisher,
	}
}

// AdjustStockRequest representa um ajuste manual de estoque
type AdjustStockRequest struct {
	ProductID string
	Delta     int
	Reason    domain.StockReason
	ActorID   string
	Note      string
}

// Adjust aplica o delta ao estoque e grava o ledger na mesma transação.
// SALE é reservado para a liquidação.
func (uc *InventoryUseCase) Adjust(ctx context.Context, req AdjustStockRequest) (*domain.StockEntry, error) {
	ctx, span := telemetry.StartSpan(ctx, "inventory.adjust",
		attribute.String("product_id", req.ProductID),
		attribute.Int("delta", req.Delta),
		attribute.String("reason", string(req.Reason)),
	)
	defer span.End()

	log.Printf("➡️ [ADJUST STOCK] ProductID=%s | Delta=%d | Reason=%s | Actor=%s",
		req.ProductID, req.Delta, req.Reason, req.ActorID)

	if !req.Reason.Valid() || req.Reason == domain.StockReasonSale {
		err := fmt.Errorf("reason %q: %w", req.Reason, domain.ErrInvalidReason)
		recordError(span, err)
		return nil, err
	}
	if req.Delta == 0 {
		err := fmt.Errorf("delta must not be zero: %w", domain.ErrInvalidQuantity)
		recordError(span, err)
		return nil, err
	}

	var actor *string
	if req.ActorID != "" {
		actor = &req.ActorID
	}

	var entry *domain.StockEntry
	err := repository.WithTx(ctx, uc.repos.Tx, func(tx repository.Tx) error {
		stock, err := uc.repos.Products.AdjustStock(ctx, tx, req.ProductID, req.Delta)
		if err != nil {
			return err
		}
		entry, err = uc.ledger.Append(ctx, tx, LedgerEntry{
			ProductID:      req.ProductID,
			Delta:          req.Delta,
			ResultingStock: stock,
			Reason:         req.Reason,
			ActorID:        actor,
			Note:           req.Note,
		})
		return err
	})
	if err != nil {
		log.Printf("❌ [ADJUST STOCK] ProductID=%s failed: %v", req.ProductID, err)
		recordError(span, err)
		return nil, err
	}

	telemetry.Add(ctx, uc.metrics.StockMovements, 1, attribute.String("reason", string(req.Reason)))
	events.PublishAfterCommit(ctx, uc.events, events.New(events.TypeStockAdjusted, req.ProductID, map[string]any{
		"product_id":      req.ProductID,
		"delta":           req.Delta,
		"resulting_stock": entry.ResultingStock,
		"reason":          req.Reason,
	}))

	log.Printf("✅ [ADJUST STOCK] ProductID=%s | Stock=%d", req.ProductID, entry.ResultingStock)
	return entry, nil
}

// History lista as movimentações do produto, mais recente primeiro
func (uc *InventoryUseCase) History(ctx context.Context, productID string, limit int) ([]domain.StockEntry, error) {
	ctx, span := telemetry.StartSpan(ctx, "inventory.history", attribute.String("product_id", productID))
	defer span.End()

	if _, err := uc.repos.Products.GetProduct(ctx, nil, productID); err != nil {
		recordError(span, err)
		return nil, err
	}
	entries, err := uc.repos.Ledger.ListStockEntries(ctx, productID, limit)
	recordError(span, err)
	return entries, err
}
