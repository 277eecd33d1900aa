package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"

	"go.opentelemetry.io/otel/attribute"

	"github.com/matheusmosca/commerce-settlement/internal/domain"
	"github.com/matheusmosca/commerce-settlement/internal/events"
	"github.com/matheusmosca/commerce-settlement/internal/repository"
	"github.com/matheusmosca/commerce-settlement/internal/telemetry"
)

// SettlementPath identifica o gatilho da liquidação
type SettlementPath string

const (
	PathGateway        SettlementPath = "gateway"
	PathManualTransfer SettlementPath = "manual_transfer"
)

// Settler é a única implementação da liquidação, usada tanto pelo callback
// do gateway quanto pela aprovação de comprovante
type Settler struct {
	repos         Repositories
	ledger        *InventoryLedger
	allowNegative bool
	metrics       *telemetry.Metrics
	events        events.Publisher
}

// NewSettler cria uma nova instância de Settler
func NewSettler(repos Repositories, allowNegativeStock bool, obs Observability) *Settler {
	obs = obs.withDefaults()
	return &Settler{
		repos:         repos,
		ledger:        NewInventoryLedger(repos.Ledger),
		allowNegative: allowNegativeStock,
		metrics:       obs.Metrics,
		events:        obs.Publisher,
	}
}

// Settle liquida o pedido na sua própria transação
func (s *Settler) Settle(ctx context.Context, orderID string, actorID *string, path SettlementPath) (*domain.Order, error) {
	var order *domain.Order
	err := repository.WithTx(ctx, s.repos.Tx, func(tx repository.Tx) error {
		var err error
		order, err = s.SettleTx(ctx, tx, orderID, actorID, path)
		return err
	})
	if err != nil {
		if errors.Is(err, domain.ErrAlreadySettled) {
			telemetry.Add(ctx, s.metrics.SettlementReplay, 1, attribute.String("path", string(path)))
		} else {
			telemetry.Add(ctx, s.metrics.Settlements, 1,
				attribute.String("path", string(path)), attribute.String("outcome", "error"))
		}
		return nil, err
	}

	s.AfterCommit(ctx, order, path)
	return order, nil
}

// SettleTx executa a liquidação dentro de tx:
//  1. compare-and-swap PENDING -> COMPLETED (status -> PROCESSING)
//  2. baixa de estoque e entrada SALE no ledger por item, em ordem de produto
//  3. limpeza do carrinho do comprador
//
// Zero linhas afetadas no passo 1 retorna ErrAlreadySettled se o pedido já
// está COMPLETED, ou ErrInvalidState se terminou em FAILED/CANCELLED.
func (s *Settler) SettleTx(ctx context.Context, tx repository.Tx, orderID string, actorID *string, path SettlementPath) (*domain.Order, error) {
	ctx, span := telemetry.StartSpan(ctx, "settlement.settle",
		attribute.String("order_id", orderID),
		attribute.String("path", string(path)),
	)
	defer span.End()

	log.Printf("➡️ [SETTLE] OrderID=%s | Path=%s", orderID, path)

	swapped, err := s.repos.Orders.MarkPaid(ctx, tx, orderID)
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	order, err := s.repos.Orders.GetOrder(ctx, tx, orderID)
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	if !swapped {
		if order.PaymentStatus == domain.PaymentStatusCompleted {
			log.Printf("ℹ️ [IDEMPOTENCY] Order already settled OrderID=%s", orderID)
			span.SetAttributes(attribute.Bool("replay", true))
			return order, fmt.Errorf("order %s: %w", orderID, domain.ErrAlreadySettled)
		}
		err := fmt.Errorf("order %s is %s: %w", orderID, order.PaymentStatus, domain.ErrInvalidState)
		recordError(span, err)
		return nil, err
	}

	items := append([]domain.OrderItem(nil), order.Items...)
	sort.Slice(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })

	note := "sale " + order.DisplayNumber()
	for _, item := range items {
		stock, err := s.repos.Products.DecreaseStock(ctx, tx, item.ProductID, item.Quantity, s.allowNegative)
		if errors.Is(err, domain.ErrProductNotFound) {
			log.Printf("⚠️ [SETTLE] Product removed from catalog, skipping stock | OrderID=%s | ProductID=%s", orderID, item.ProductID)
			continue
		}
		if err != nil {
			log.Printf("❌ [SETTLE] OrderID=%s | ProductID=%s stock decrease failed: %v", orderID, item.ProductID, err)
			recordError(span, err)
			return nil, err
		}

		if _, err := s.ledger.Append(ctx, tx, LedgerEntry{
			ProductID:      item.ProductID,
			Delta:          -item.Quantity,
			ResultingStock: stock,
			Reason:         domain.StockReasonSale,
			ActorID:        actorID,
			OrderID:        &order.ID,
			Note:           note,
		}); err != nil {
			recordError(span, err)
			return nil, err
		}
	}

	cart, err := s.repos.Carts.GetCartByOwner(ctx, tx, domain.UserOwner(order.UserID))
	switch {
	case errors.Is(err, domain.ErrCartNotFound):
	case err != nil:
		recordError(span, err)
		return nil, err
	default:
		if err := s.repos.Carts.ClearCartLines(ctx, tx, cart.ID); err != nil {
			recordError(span, err)
			return nil, err
		}
	}

	return order, nil
}

// AfterCommit registra métricas, log e evento de uma liquidação já
// confirmada
func (s *Settler) AfterCommit(ctx context.Context, order *domain.Order, path SettlementPath) {
	telemetry.Add(ctx, s.metrics.Settlements, 1,
		attribute.String("path", string(path)), attribute.String("outcome", "completed"))
	telemetry.Add(ctx, s.metrics.StockMovements, int64(len(order.Items)),
		attribute.String("reason", string(domain.StockReasonSale)))

	events.PublishAfterCommit(ctx, s.events, events.New(events.TypeOrderPaid, order.ID, map[string]any{
		"order_id": order.ID,
		"number":   order.DisplayNumber(),
		"user_id":  order.UserID,
		"total":    order.Total,
		"path":     path,
	}))

	log.Printf("✅ [SETTLE] OrderID=%s | Number=%s | Path=%s | Items=%d", order.ID, order.DisplayNumber(), path, len(order.Items))
}
