package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/matheusmosca/commerce-settlement/internal/domain"
	"github.com/matheusmosca/commerce-settlement/internal/events"
	"github.com/matheusmosca/commerce-settlement/internal/pricing"
	"github.com/matheusmosca/commerce-settlement/internal/repository"
	"github.com/matheusmosca/commerce-settlement/internal/telemetry"
)

// OrderUseCase contém a criação do pedido e suas projeções
type OrderUseCase struct {
	repos         Repositories
	publicBaseURL string
	metrics       *telemetry.Metrics
	events        events.Publisher
	now           func() time.Time
}

// NewOrderUseCase cria uma nova instância de OrderUseCase
func NewOrderUseCase(repos Repositories, publicBaseURL string, obs Observability) *OrderUseCase {
	obs = obs.withDefaults()
	return &OrderUseCase{
		repos:         repos,
		publicBaseURL: publicBaseURL,
		metrics:       obs.Metrics,
		events:        obs.Publisher,
		now:           time.Now,
	}
}

// CreateOrderRequest são os parâmetros da criação de pedido
type CreateOrderRequest struct {
	Owner          domain.Owner
	AddressID      string
	ShippingMethod string
	CouponID       string
	PaymentMethod  domain.PaymentMethod
}

// CreateOrderResult traz o pedido criado e, para GATEWAY, a URL de início
// do pagamento
type CreateOrderResult struct {
	Order       *domain.Order `json:"order"`
	RedirectURL string        `json:"redirect_url,omitempty"`
}

// QuoteRequest é o preview de preço do carrinho
type QuoteRequest struct {
	Owner          domain.Owner
	ShippingMethod string
	CouponID       string
}

// pricedCart é o carrinho carregado e precificado
type pricedCart struct {
	cart  *domain.Cart
	quote pricing.Quote
}

// priceCart carrega o carrinho com produtos vivos e roda o motor de preço.
// Com tx nil é o preview; com tx é o cálculo de commit.
func (uc *OrderUseCase) priceCart(ctx context.Context, tx repository.Tx, owner domain.Owner, shippingCode, couponID string) (*pricedCart, error) {
	cart, err := uc.repos.Carts.GetCartByOwner(ctx, tx, owner)
	if errors.Is(err, domain.ErrCartNotFound) {
		return nil, fmt.Errorf("owner %s: %w", owner, domain.ErrEmptyCart)
	}
	if err != nil {
		return nil, err
	}

	lines, err := uc.repos.Carts.ListCartLines(ctx, tx, cart.ID)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("cart %s: %w", cart.ID, domain.ErrEmptyCart)
	}

	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}
	products, err := uc.repos.Products.GetProducts(ctx, tx, ids)
	if err != nil {
		return nil, err
	}

	priced := make([]pricing.Line, 0, len(lines))
	for _, l := range sortLinesByProduct(lines) {
		p, ok := products[l.ProductID]
		if !ok {
			return nil, fmt.Errorf("cart line %s: product %s: %w", l.ID, l.ProductID, domain.ErrProductNotFound)
		}
		priced = append(priced, pricing.LineFromProduct(p, l.Quantity))
	}

	var shipping *domain.ShippingMethod
	if shippingCode != "" {
		shipping, err = uc.repos.Shipping.GetShippingMethod(ctx, tx, shippingCode)
		if err != nil {
			return nil, err
		}
	}

	var coupon *domain.Coupon
	if couponID != "" {
		coupon, err = uc.repos.Coupons.GetCoupon(ctx, tx, couponID)
		if err != nil {
			return nil, err
		}
	}

	quote, err := pricing.Price(priced, coupon, shipping, uc.now())
	if err != nil {
		return nil, err
	}
	return &pricedCart{cart: cart, quote: quote}, nil
}

// Quote calcula o preview de preço do carrinho sem persistir nada
func (uc *OrderUseCase) Quote(ctx context.Context, req QuoteRequest) (*pricing.Quote, error) {
	ctx, span := telemetry.StartSpan(ctx, "order.quote", attribute.String("owner", req.Owner.String()))
	defer span.End()

	if err := req.Owner.Validate(); err != nil {
		return nil, err
	}
	priced, err := uc.priceCart(ctx, nil, req.Owner, req.ShippingMethod, req.CouponID)
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	return &priced.quote, nil
}

func (uc *OrderUseCase) validateAddress(ctx context.Context, tx repository.Tx, owner domain.Owner, addressID string) error {
	if addressID == "" {
		return fmt.Errorf("address is required: %w", domain.ErrInvalidAddress)
	}
	addr, err := uc.repos.Addresses.GetAddress(ctx, tx, addressID)
	if err != nil {
		return err
	}
	if addr.UserID != owner.UserID {
		return fmt.Errorf("address %s does not belong to %s: %w", addressID, owner, domain.ErrInvalidAddress)
	}
	return nil
}

// CreateOrder valida e precifica fora da transação e depois, numa única
// transação, reprecifica, consome o cupom, aloca o número, grava o pedido
// com itens congelados e, para MANUAL_TRANSFER, esvazia o carrinho.
// Estoque nunca é tocado aqui.
func (uc *OrderUseCase) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "order.create",
		attribute.String("owner", req.Owner.String()),
		attribute.String("payment_method", string(req.PaymentMethod)),
		attribute.String("shipping_method", req.ShippingMethod),
	)
	defer span.End()

	log.Printf("➡️ [CREATE ORDER] UserID=%s | Method=%s | Shipping=%s | Coupon=%s",
		req.Owner.UserID, req.PaymentMethod, req.ShippingMethod, req.CouponID)

	if !req.Owner.IsAuthenticated() {
		err := fmt.Errorf("checkout requires an authenticated user: %w", domain.ErrUnauthorizedOwner)
		recordError(span, err)
		return nil, err
	}
	if !req.PaymentMethod.Valid() {
		err := fmt.Errorf("payment method %q: %w", req.PaymentMethod, domain.ErrInvalidPayment)
		recordError(span, err)
		return nil, err
	}
	if req.ShippingMethod == "" {
		err := fmt.Errorf("shipping method is required: %w", domain.ErrInvalidShippingMethod)
		recordError(span, err)
		return nil, err
	}

	// validação síncrona antes de abrir a transação
	if err := uc.validateAddress(ctx, nil, req.Owner, req.AddressID); err != nil {
		log.Printf("❌ [CREATE ORDER] UserID=%s validation failed: %v", req.Owner.UserID, err)
		recordError(span, err)
		return nil, err
	}
	if _, err := uc.priceCart(ctx, nil, req.Owner, req.ShippingMethod, req.CouponID); err != nil {
		log.Printf("❌ [CREATE ORDER] UserID=%s validation failed: %v", req.Owner.UserID, err)
		recordError(span, err)
		return nil, err
	}

	var order *domain.Order
	err := repository.WithTx(ctx, uc.repos.Tx, func(tx repository.Tx) error {
		priced, err := uc.priceCart(ctx, tx, req.Owner, req.ShippingMethod, req.CouponID)
		if err != nil {
			return err
		}

		var couponID *string
		if req.CouponID != "" {
			ok, err := uc.repos.Coupons.IncrementCouponUsage(ctx, tx, req.CouponID)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("coupon %s usage limit reached: %w", req.CouponID, domain.ErrInvalidOrExpiredCoupon)
			}
			couponID = &req.CouponID
		}

		number, err := uc.repos.Orders.NextOrderNumber(ctx, tx)
		if err != nil {
			return err
		}

		order = domain.NewOrder(req.Owner.UserID, number, req.PaymentMethod)
		order.AddressID = req.AddressID
		order.ShippingMethod = req.ShippingMethod
		order.ShippingCost = priced.quote.ShippingCost
		order.ItemTotal = priced.quote.ItemTotal
		order.Discount = priced.quote.Discount
		order.Total = priced.quote.Total
		order.CouponID = couponID
		for _, l := range priced.quote.Lines {
			order.Items = append(order.Items, domain.OrderItem{
				ID:          uuid.New().String(),
				OrderID:     order.ID,
				ProductID:   l.ProductID,
				ProductName: l.Name,
				Category:    l.Category,
				Quantity:    l.Quantity,
				UnitPrice:   l.UnitPrice,
			})
		}

		if err := uc.repos.Orders.CreateOrder(ctx, tx, order); err != nil {
			return err
		}

		if req.PaymentMethod == domain.PaymentMethodManualTransfer {
			return uc.repos.Carts.ClearCartLines(ctx, tx, priced.cart.ID)
		}
		return nil
	})
	if err != nil {
		log.Printf("❌ [CREATE ORDER] UserID=%s failed: %v", req.Owner.UserID, err)
		recordError(span, err)
		return nil, err
	}

	result := &CreateOrderResult{Order: order}
	if order.PaymentMethod == domain.PaymentMethodGateway {
		result.RedirectURL = uc.publicBaseURL + "/api/payments/" + order.ID + "/start"
	}

	span.SetAttributes(attribute.String("order_id", order.ID), attribute.Int64("total", order.Total))
	telemetry.Add(ctx, uc.metrics.OrdersCreated, 1, attribute.String("payment_method", string(order.PaymentMethod)))
	events.PublishAfterCommit(ctx, uc.events, events.New(events.TypeOrderCreated, order.ID, map[string]any{
		"order_id":       order.ID,
		"number":         order.DisplayNumber(),
		"user_id":        order.UserID,
		"total":          order.Total,
		"payment_method": order.PaymentMethod,
	}))

	log.Printf("✅ [CREATE ORDER] OrderID=%s | Number=%s | Total=%d", order.ID, order.DisplayNumber(), order.Total)
	return result, nil
}

// GetOrder retorna o pedido se pertencer ao usuário
func (uc *OrderUseCase) GetOrder(ctx context.Context, owner domain.Owner, orderID string) (*domain.Order, error) {
	ctx, span := telemetry.StartSpan(ctx, "order.get", attribute.String("order_id", orderID))
	defer span.End()

	if !owner.IsAuthenticated() {
		return nil, fmt.Errorf("order %s: %w", orderID, domain.ErrUnauthorizedOwner)
	}
	order, err := uc.repos.Orders.GetOrder(ctx, nil, orderID)
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	if order.UserID != owner.UserID {
		return nil, fmt.Errorf("order %s: %w", orderID, domain.ErrUnauthorizedOwner)
	}
	return order, nil
}

// ListOrders lista os pedidos do usuário, mais recentes primeiro
func (uc *OrderUseCase) ListOrders(ctx context.Context, owner domain.Owner, limit, offset int) ([]domain.Order, error) {
	if !owner.IsAuthenticated() {
		return nil, fmt.Errorf("list orders: %w", domain.ErrUnauthorizedOwner)
	}
	return uc.repos.Orders.ListOrders(ctx, domain.OrderFilter{UserID: owner.UserID, Limit: limit, Offset: offset})
}

// AdminListOrders lista pedidos com filtros administrativos
func (uc *OrderUseCase) AdminListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	return uc.repos.Orders.ListOrders(ctx, filter)
}

// AdvanceStatus move o fulfillment para o sucessor imediato. Só pedidos
// pagos avançam; a transição é condicional no status atual.
func (uc *OrderUseCase) AdvanceStatus(ctx context.Context, orderID string, next domain.OrderStatus, staffID string) (*domain.Order, error) {
	ctx, span := telemetry.StartSpan(ctx, "order.advance_status",
		attribute.String("order_id", orderID),
		attribute.String("next", string(next)),
	)
	defer span.End()

	log.Printf("➡️ [ADVANCE STATUS] OrderID=%s | Next=%s | Staff=%s", orderID, next, staffID)

	order, err := uc.repos.Orders.GetOrder(ctx, nil, orderID)
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	if order.PaymentStatus != domain.PaymentStatusCompleted {
		err := fmt.Errorf("order %s payment is %s: %w", orderID, order.PaymentStatus, domain.ErrInvalidState)
		recordError(span, err)
		return nil, err
	}
	successor, ok := order.Status.Next()
	if !ok || successor != next {
		err := fmt.Errorf("order %s cannot move from %s to %s: %w", orderID, order.Status, next, domain.ErrInvalidState)
		recordError(span, err)
		return nil, err
	}

	swapped, err := uc.repos.Orders.TransitionOrderStatus(ctx, nil, orderID, order.Status, next)
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	if !swapped {
		err := fmt.Errorf("order %s status changed concurrently: %w", orderID, domain.ErrInvalidState)
		recordError(span, err)
		return nil, err
	}

	previous := order.Status
	order.Status = next
	events.PublishAfterCommit(ctx, uc.events, events.New(events.TypeOrderStatusChanged, orderID, map[string]any{
		"order_id": orderID,
		"from":     previous,
		"to":       next,
		"staff_id": staffID,
	}))

	log.Printf("✅ [ADVANCE STATUS] OrderID=%s | %s -> %s", orderID, previous, next)
	return order, nil
}
