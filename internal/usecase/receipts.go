package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"

	"go.opentelemetry.io/otel/attribute"

	"github.com/matheusmosca/commerce-settlement/internal/domain"
	"github.com/matheusmosca/commerce-settlement/internal/events"
	"github.com/matheusmosca/commerce-settlement/internal/repository"
	"github.com/matheusmosca/commerce-settlement/internal/telemetry"
)

// ReceiptUseCase contém o caminho de liquidação por comprovante de
// transferência
type ReceiptUseCase struct {
	repos   Repositories
	settler *Settler
	metrics *telemetry.Metrics
	events  events.Publisher
}

// NewReceiptUseCase cria uma nova instância de ReceiptUseCase
func NewReceiptUseCase(repos Repositories, settler *Settler, obs Observability) *ReceiptUseCase {
	obs = obs.withDefaults()
	return &ReceiptUseCase{
		repos:   repos,
		settler: settler,
		metrics: obs.Metrics,
		events:  obs.Publisher,
	}
}

// SubmitReceiptRequest representa o envio do comprovante
type SubmitReceiptRequest struct {
	Owner         domain.Owner
	OrderID       string
	ImageURL      string
	ImagePublicID string
	Note          string
}

// Submit grava ou substitui o comprovante do pedido, sempre em PENDING.
// Só o dono de um pedido MANUAL_TRANSFER ainda não pago pode enviar.
func (uc *ReceiptUseCase) Submit(ctx context.Context, req SubmitReceiptRequest) (*domain.PaymentReceipt, error) {
	ctx, span := telemetry.StartSpan(ctx, "receipt.submit", attribute.String("order_id", req.OrderID))
	defer span.End()

	log.Printf("➡️ [SUBMIT RECEIPT] OrderID=%s | UserID=%s", req.OrderID, req.Owner.UserID)

	if !req.Owner.IsAuthenticated() {
		return nil, fmt.Errorf("order %s: %w", req.OrderID, domain.ErrUnauthorizedOwner)
	}

	receipt := domain.NewPaymentReceipt(req.OrderID, req.ImageURL, req.ImagePublicID, req.Note)
	err := repository.WithTx(ctx, uc.repos.Tx, func(tx repository.Tx) error {
		order, err := uc.repos.Orders.GetOrder(ctx, tx, req.OrderID)
		if err != nil {
			return err
		}
		if order.UserID != req.Owner.UserID {
			return fmt.Errorf("order %s: %w", req.OrderID, domain.ErrUnauthorizedOwner)
		}
		if order.PaymentMethod != domain.PaymentMethodManualTransfer {
			return fmt.Errorf("order %s uses %s: %w", req.OrderID, order.PaymentMethod, domain.ErrInvalidPayment)
		}
		if order.PaymentStatus != domain.PaymentStatusPending {
			return fmt.Errorf("order %s is %s: %w", req.OrderID, order.PaymentStatus, domain.ErrInvalidState)
		}
		return uc.repos.Receipts.UpsertReceipt(ctx, tx, receipt)
	})
	if err != nil {
		log.Printf("❌ [SUBMIT RECEIPT] OrderID=%s failed: %v", req.OrderID, err)
		recordError(span, err)
		return nil, err
	}

	events.PublishAfterCommit(ctx, uc.events, events.New(events.TypeReceiptSubmitted, req.OrderID, map[string]any{
		"order_id":   req.OrderID,
		"receipt_id": receipt.ID,
	}))

	log.Printf("✅ [SUBMIT RECEIPT] OrderID=%s | ReceiptID=%s", req.OrderID, receipt.ID)
	return receipt, nil
}

// GetForOrder retorna o comprovante do pedido para o dono
func (uc *ReceiptUseCase) GetForOrder(ctx context.Context, owner domain.Owner, orderID string) (*domain.PaymentReceipt, error) {
	order, err := uc.repos.Orders.GetOrder(ctx, nil, orderID)
	if err != nil {
		return nil, err
	}
	if !owner.IsAuthenticated() || order.UserID != owner.UserID {
		return nil, fmt.Errorf("order %s: %w", orderID, domain.ErrUnauthorizedOwner)
	}
	return uc.repos.Receipts.GetReceiptByOrder(ctx, nil, orderID)
}

// List lista comprovantes por status para a fila da equipe
func (uc *ReceiptUseCase) List(ctx context.Context, status domain.ReceiptStatus, limit, offset int) ([]domain.PaymentReceipt, error) {
	return uc.repos.Receipts.ListReceipts(ctx, status, limit, offset)
}

// ReviewRequest representa a revisão feita pela equipe
type ReviewRequest struct {
	ReceiptID string
	Action    domain.ReviewAction
	StaffNote string
	StaffID   string
}

// ReviewResult traz o comprovante revisado; Replay indica que a ação já
// tinha sido aplicada antes
type ReviewResult struct {
	Receipt *domain.PaymentReceipt `json:"receipt"`
	Order   *domain.Order          `json:"order,omitempty"`
	Replay  bool                   `json:"replay"`
}

// Review aplica APPROVE ou REJECT. APPROVE troca o comprovante para
// APPROVED e liquida o pedido na mesma transação, pelo mesmo Settler do
// caminho do gateway.
func (uc *ReceiptUseCase) Review(ctx context.Context, req ReviewRequest) (*ReviewResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "receipt.review",
		attribute.String("receipt_id", req.ReceiptID),
		attribute.String("action", string(req.Action)),
	)
	defer span.End()

	log.Printf("➡️ [REVIEW RECEIPT] ReceiptID=%s | Action=%s | Staff=%s", req.ReceiptID, req.Action, req.StaffID)

	var (
		result *ReviewResult
		err    error
	)
	switch req.Action {
	case domain.ReviewActionApprove:
		result, err = uc.approve(ctx, req)
	case domain.ReviewActionReject:
		result, err = uc.reject(ctx, req)
	default:
		err = fmt.Errorf("review action %q: %w", req.Action, domain.ErrInvalidState)
	}
	if err != nil {
		log.Printf("❌ [REVIEW RECEIPT] ReceiptID=%s failed: %v", req.ReceiptID, err)
		recordError(span, err)
		return nil, err
	}

	if result.Replay {
		log.Printf("ℹ️ [IDEMPOTENCY] Receipt already %s ReceiptID=%s", result.Receipt.Status, req.ReceiptID)
		return result, nil
	}

	telemetry.Add(ctx, uc.metrics.ReceiptsReviewed, 1, attribute.String("action", string(req.Action)))
	events.PublishAfterCommit(ctx, uc.events, events.New(events.TypeReceiptReviewed, result.Receipt.OrderID, map[string]any{
		"order_id":   result.Receipt.OrderID,
		"receipt_id": result.Receipt.ID,
		"status":     result.Receipt.Status,
		"staff_note": result.Receipt.StaffNote,
	}))

	log.Printf("✅ [REVIEW RECEIPT] ReceiptID=%s | Status=%s", req.ReceiptID, result.Receipt.Status)
	return result, nil
}

func (uc *ReceiptUseCase) reject(ctx context.Context, req ReviewRequest) (*ReviewResult, error) {
	swapped, err := uc.repos.Receipts.TransitionReceipt(ctx, nil, req.ReceiptID,
		domain.ReceiptStatusPending, domain.ReceiptStatusRejected, req.StaffNote, req.StaffID)
	if err != nil {
		return nil, err
	}

	receipt, err := uc.repos.Receipts.GetReceipt(ctx, nil, req.ReceiptID)
	if err != nil {
		return nil, err
	}
	if swapped {
		return &ReviewResult{Receipt: receipt}, nil
	}
	if receipt.Status == domain.ReceiptStatusRejected {
		return &ReviewResult{Receipt: receipt, Replay: true}, nil
	}
	return nil, fmt.Errorf("receipt %s is %s: %w", req.ReceiptID, receipt.Status, domain.ErrInvalidState)
}

func (uc *ReceiptUseCase) approve(ctx context.Context, req ReviewRequest) (*ReviewResult, error) {
	var (
		result  = &ReviewResult{}
		settled bool
	)
	actor := &req.StaffID
	if req.StaffID == "" {
		actor = nil
	}

	err := repository.WithTx(ctx, uc.repos.Tx, func(tx repository.Tx) error {
		swapped, err := uc.repos.Receipts.TransitionReceipt(ctx, tx, req.ReceiptID,
			domain.ReceiptStatusPending, domain.ReceiptStatusApproved, req.StaffNote, req.StaffID)
		if err != nil {
			return err
		}

		receipt, err := uc.repos.Receipts.GetReceipt(ctx, tx, req.ReceiptID)
		if err != nil {
			return err
		}
		result.Receipt = receipt

		if !swapped {
			if receipt.Status == domain.ReceiptStatusApproved {
				result.Replay = true
				return nil
			}
			return fmt.Errorf("receipt %s is %s: %w", req.ReceiptID, receipt.Status, domain.ErrInvalidState)
		}

		order, err := uc.settler.SettleTx(ctx, tx, receipt.OrderID, actor, PathManualTransfer)
		switch {
		case err == nil:
			settled = true
		case errors.Is(err, domain.ErrAlreadySettled):
			// pedido já pago por outro gatilho: aprova sem nova baixa
		default:
			return err
		}
		result.Order = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	if settled {
		uc.settler.AfterCommit(ctx, result.Order, PathManualTransfer)
	}
	return result, nil
}
