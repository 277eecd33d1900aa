package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"

	"go.opentelemetry.io/otel/attribute"

	"github.com/matheusmosca/commerce-settlement/internal/domain"
	"github.com/matheusmosca/commerce-settlement/internal/events"
	"github.com/matheusmosca/commerce-settlement/internal/gateway"
	"github.com/matheusmosca/commerce-settlement/internal/telemetry"
)

// PaymentGateway é o contrato com o gateway externo
type PaymentGateway interface {
	CreatePayment(ctx context.Context, req gateway.PaymentRequest) (*gateway.Payment, error)
	Verify(ctx context.Context, authority string, amount int64) (*gateway.Verification, error)
	StartURL(authority string) string
}

// Outcome é o resultado exibido ao comprador depois do callback
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeFailed    Outcome = "failed"
	OutcomeCancelled Outcome = "cancelled"
	OutcomePending   Outcome = "pending"
)

// CallbackResult é o resultado do processamento de um callback
type CallbackResult struct {
	OrderID string  `json:"order_id"`
	Outcome Outcome `json:"outcome"`
	Reason  string  `json:"reason,omitempty"`
	Replay  bool    `json:"replay"`
}

func outcomeFor(status domain.PaymentStatus) Outcome {
	switch status {
	case domain.PaymentStatusCompleted:
		return OutcomeSuccess
	case domain.PaymentStatusFailed:
		return OutcomeFailed
	case domain.PaymentStatusCancelled:
		return OutcomeCancelled
	}
	return OutcomePending
}

// PaymentUseCase coordena o caminho do gateway: início do pagamento e
// callback
type PaymentUseCase struct {
	repos         Repositories
	gateway       PaymentGateway
	settler       *Settler
	publicBaseURL string
	metrics       *telemetry.Metrics
	events        events.Publisher
}

// NewPaymentUseCase cria uma nova instância de PaymentUseCase
func NewPaymentUseCase(repos Repositories, gw PaymentGateway, settler *Settler, publicBaseURL string, obs Observability) *PaymentUseCase {
	obs = obs.withDefaults()
	return &PaymentUseCase{
		repos:         repos,
		gateway:       gw,
		settler:       settler,
		publicBaseURL: publicBaseURL,
		metrics:       obs.Metrics,
		events:        obs.Publisher,
	}
}

// StartPayment registra o pagamento no gateway com o total persistido e
// grava a referência no pedido enquanto ele estiver PENDING. Um pedido que
// já tem referência reaproveita a mesma autorização, então um callback
// atrasado do primeiro start continua resolvendo o pedido.
func (uc *PaymentUseCase) StartPayment(ctx context.Context, owner domain.Owner, orderID string) (string, error) {
	ctx, span := telemetry.StartSpan(ctx, "payment.start", attribute.String("order_id", orderID))
	defer span.End()

	log.Printf("➡️ [START PAYMENT] OrderID=%s | UserID=%s", orderID, owner.UserID)

	order, err := uc.repos.Orders.GetOrder(ctx, nil, orderID)
	if err != nil {
		recordError(span, err)
		return "", err
	}
	if !owner.IsAuthenticated() || order.UserID != owner.UserID {
		err := fmt.Errorf("order %s: %w", orderID, domain.ErrUnauthorizedOwner)
		recordError(span, err)
		return "", err
	}
	if order.PaymentMethod != domain.PaymentMethodGateway {
		err := fmt.Errorf("order %s uses %s: %w", orderID, order.PaymentMethod, domain.ErrInvalidPayment)
		recordError(span, err)
		return "", err
	}
	switch order.PaymentStatus {
	case domain.PaymentStatusPending:
	case domain.PaymentStatusCompleted:
		return "", fmt.Errorf("order %s: %w", orderID, domain.ErrAlreadySettled)
	default:
		err := fmt.Errorf("order %s is %s: %w", orderID, order.PaymentStatus, domain.ErrInvalidState)
		recordError(span, err)
		return "", err
	}

	if order.PaymentReference != "" {
		log.Printf("ℹ️ [START PAYMENT] OrderID=%s reusing Authority=%s", orderID, order.PaymentReference)
		return uc.gateway.StartURL(order.PaymentReference), nil
	}

	payment, err := uc.gateway.CreatePayment(ctx, gateway.PaymentRequest{
		OrderID:     order.ID,
		Amount:      order.Total,
		CallbackURL: uc.publicBaseURL + "/api/payments/callback",
		Description: "Order " + order.DisplayNumber(),
	})
	if err != nil {
		log.Printf("❌ [START PAYMENT] OrderID=%s gateway error: %v", orderID, err)
		recordError(span, err)
		return "", err
	}

	ok, err := uc.repos.Orders.SetPaymentReference(ctx, nil, order.ID, payment.Authority)
	if err != nil {
		recordError(span, err)
		return "", err
	}
	if !ok {
		// outro start concorrente gravou primeiro
		current, getErr := uc.repos.Orders.GetOrder(ctx, nil, order.ID)
		if getErr == nil && current.PaymentStatus == domain.PaymentStatusPending && current.PaymentReference != "" {
			log.Printf("ℹ️ [START PAYMENT] OrderID=%s lost the race, using Authority=%s", orderID, current.PaymentReference)
			return uc.gateway.StartURL(current.PaymentReference), nil
		}
		err := fmt.Errorf("order %s left PENDING before the reference was stored: %w", orderID, domain.ErrInvalidState)
		recordError(span, err)
		return "", err
	}

	log.Printf("✅ [START PAYMENT] OrderID=%s | Authority=%s", orderID, payment.Authority)
	return payment.RedirectURL, nil
}

// HandleCallback processa o retorno do gateway. Replays de um pedido já
// terminal devolvem o resultado anterior sem nova verificação. Verify com
// timeout ou erro de transporte deixa o pedido PENDING para que o mesmo
// callback possa ser reprocessado.
func (uc *PaymentUseCase) HandleCallback(ctx context.Context, reference, statusFlag string) (*CallbackResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "payment.callback",
		attribute.String("reference", reference),
		attribute.String("status_flag", statusFlag),
	)
	defer span.End()

	log.Printf("➡️ [PAYMENT CALLBACK] Reference=%s | Status=%s", reference, statusFlag)

	if reference == "" {
		err := fmt.Errorf("empty gateway reference: %w", domain.ErrOrderNotFound)
		recordError(span, err)
		return nil, err
	}

	order, err := uc.repos.Orders.GetOrderByReference(ctx, nil, reference)
	if err != nil {
		log.Printf("❌ [PAYMENT CALLBACK] Reference=%s lookup failed: %v", reference, err)
		recordError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.String("order_id", order.ID))

	if order.PaymentStatus.IsTerminal() {
		log.Printf("ℹ️ [IDEMPOTENCY] Callback replay OrderID=%s | PaymentStatus=%s", order.ID, order.PaymentStatus)
		telemetry.Add(ctx, uc.metrics.SettlementReplay, 1, attribute.String("path", string(PathGateway)))
		return &CallbackResult{OrderID: order.ID, Outcome: outcomeFor(order.PaymentStatus), Replay: true}, nil
	}

	if statusFlag != gateway.StatusOK {
		target := domain.PaymentStatusFailed
		reason := "gateway_status_" + statusFlag
		if statusFlag == gateway.StatusNOK {
			target = domain.PaymentStatusCancelled
			reason = "cancelled_by_user"
		}
		return uc.terminate(ctx, order, target, reason)
	}

	verification, err := uc.gateway.Verify(ctx, reference, order.Total)
	if err != nil {
		if errors.Is(err, domain.ErrGatewayVerificationFailed) {
			reason := "verification_failed"
			if verification != nil && verification.Code != 0 {
				reason = gateway.ReasonCode(verification.Code)
			}
			return uc.terminate(ctx, order, domain.PaymentStatusFailed, reason)
		}
		log.Printf("⏳ [PAYMENT CALLBACK] OrderID=%s verify unavailable, order stays PENDING: %v", order.ID, err)
		recordError(span, err)
		telemetry.Add(ctx, uc.metrics.Settlements, 1,
			attribute.String("path", string(PathGateway)), attribute.String("outcome", "pending"))
		return &CallbackResult{OrderID: order.ID, Outcome: OutcomePending, Reason: "gateway_unavailable"}, err
	}

	_, err = uc.settler.Settle(ctx, order.ID, nil, PathGateway)
	switch {
	case err == nil:
		return &CallbackResult{OrderID: order.ID, Outcome: OutcomeSuccess}, nil
	case errors.Is(err, domain.ErrAlreadySettled):
		return &CallbackResult{OrderID: order.ID, Outcome: OutcomeSuccess, Replay: true}, nil
	case errors.Is(err, domain.ErrInvalidState):
		// outro gatilho levou o pedido a um estado terminal de falha
		current, getErr := uc.repos.Orders.GetOrder(ctx, nil, order.ID)
		if getErr != nil {
			return nil, getErr
		}
		return &CallbackResult{OrderID: order.ID, Outcome: outcomeFor(current.PaymentStatus), Replay: true}, nil
	case errors.Is(err, domain.ErrInsufficientStock):
		log.Printf("❌ [PAYMENT CALLBACK] OrderID=%s settlement blocked by stock, order stays PENDING: %v", order.ID, err)
		recordError(span, err)
		return &CallbackResult{OrderID: order.ID, Outcome: OutcomePending, Reason: "insufficient_stock"}, err
	default:
		log.Printf("❌ [PAYMENT CALLBACK] OrderID=%s settlement failed: %v", order.ID, err)
		recordError(span, err)
		return nil, err
	}
}

// terminate leva o pedido de PENDING para um estado terminal de falha.
// Se outro gatilho chegou antes, devolve o estado que ele gravou.
func (uc *PaymentUseCase) terminate(ctx context.Context, order *domain.Order, target domain.PaymentStatus, reason string) (*CallbackResult, error) {
	swapped, err := uc.repos.Orders.TransitionPaymentStatus(ctx, nil, order.ID, domain.PaymentStatusPending, target)
	if err != nil {
		return nil, err
	}
	if !swapped {
		current, err := uc.repos.Orders.GetOrder(ctx, nil, order.ID)
		if err != nil {
			return nil, err
		}
		log.Printf("ℹ️ [IDEMPOTENCY] OrderID=%s already %s", order.ID, current.PaymentStatus)
		return &CallbackResult{OrderID: order.ID, Outcome: outcomeFor(current.PaymentStatus), Replay: true}, nil
	}

	telemetry.Add(ctx, uc.metrics.Settlements, 1,
		attribute.String("path", string(PathGateway)), attribute.String("outcome", string(outcomeFor(target))))
	events.PublishAfterCommit(ctx, uc.events, events.New(events.TypeOrderPaymentFailed, order.ID, map[string]any{
		"order_id":       order.ID,
		"user_id":        order.UserID,
		"payment_status": target,
		"reason":         reason,
	}))

	log.Printf("↩️ [PAYMENT CALLBACK] OrderID=%s -> %s | Reason=%s", order.ID, target, reason)
	return &CallbackResult{OrderID: order.ID, Outcome: outcomeFor(target), Reason: reason}, nil
}
