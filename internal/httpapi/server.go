// Package httpapi expõe o pipeline de checkout e liquidação via HTTP (gin).
package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/matheusmosca/commerce-settlement/internal/domain"
	"github.com/matheusmosca/commerce-settlement/internal/pricing"
	"github.com/matheusmosca/commerce-settlement/internal/usecase"
)

// CartService define a interface do carrinho usada pelos handlers
type CartService interface {
	GetCart(ctx context.Context, owner domain.Owner) (*usecase.CartView, error)
	AddItem(ctx context.Context, owner domain.Owner, productID string, qty int) (*domain.CartLine, error)
	SetQuantity(ctx context.Context, owner domain.Owner, lineID string, qty int) error
	RemoveItem(ctx context.Context, owner domain.Owner, lineID string) error
	Clear(ctx context.Context, owner domain.Owner) error
	MergeGuestIntoUser(ctx context.Context, guestID, userID string) error
}

// OrderService define a interface de pedidos usada pelos handlers
type OrderService interface {
	Quote(ctx context.Context, req usecase.QuoteRequest) (*pricing.Quote, error)
	CreateOrder(ctx context.Context, req usecase.CreateOrderRequest) (*usecase.CreateOrderResult, error)
	GetOrder(ctx context.Context, owner domain.Owner, orderID string) (*domain.Order, error)
	ListOrders(ctx context.Context, owner domain.Owner, limit, offset int) ([]domain.Order, error)
	AdminListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error)
	AdvanceStatus(ctx context.Context, orderID string, next domain.OrderStatus, staffID string) (*domain.Order, error)
}

// PaymentService define a interface do caminho do gateway
type PaymentService interface {
	StartPayment(ctx context.Context, owner domain.Owner, orderID string) (string, error)
	HandleCallback(ctx context.Context, reference, statusFlag string) (*usecase.CallbackResult, error)
}

// ReceiptService define a interface do caminho do comprovante manual
type ReceiptService interface {
	Submit(ctx context.Context, req usecase.SubmitReceiptRequest) (*domain.PaymentReceipt, error)
	GetForOrder(ctx context.Context, owner domain.Owner, orderID string) (*domain.PaymentReceipt, error)
	List(ctx context.Context, status domain.ReceiptStatus, limit, offset int) ([]domain.PaymentReceipt, error)
	Review(ctx context.Context, req usecase.ReviewRequest) (*usecase.ReviewResult, error)
}

// InventoryService define a interface dos ajustes de estoque
type InventoryService interface {
	Adjust(ctx context.Context, req usecase.AdjustStockRequest) (*domain.StockEntry, error)
	History(ctx context.Context, productID string, limit int) ([]domain.StockEntry, error)
}

// Services agrupa os use cases expostos
type Services struct {
	Carts     CartService
	Orders    OrderService
	Payments  PaymentService
	Receipts  ReceiptService
	Inventory InventoryService
}

// Options configura o servidor
type Options struct {
	ServiceName      string
	PaymentResultURL string
	RequestTimeout   time.Duration
}

type Server struct {
	engine   *gin.Engine
	carts    *CartHandler
	orders   *OrderHandler
	payments *PaymentHandler
	admin    *AdminHandler
	opts     Options
}

// NewServer cria o engine gin com middlewares e rotas registradas
func NewServer(svc Services, opts Options) *Server {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	if opts.ServiceName != "" {
		r.Use(otelgin.Middleware(opts.ServiceName))
	}
	r.Use(requestTimeout(opts.RequestTimeout))

	v := newValidator()
	s := &Server{
		engine:   r,
		carts:    NewCartHandler(svc.Carts, svc.Orders, v),
		orders:   NewOrderHandler(svc.Orders, svc.Receipts, v),
		payments: NewPaymentHandler(svc.Payments, opts.PaymentResultURL),
		admin:    NewAdminHandler(svc.Orders, svc.Receipts, svc.Inventory, v),
		opts:     opts,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Engine() *gin.Engine { return s.engine }

func (s *Server) registerRoutes() {
	s.engine.GET("/health", s.healthCheck)

	api := s.engine.Group("/api", resolveOwner())
	{
		cart := api.Group("/cart")
		cart.GET("", s.carts.GetCart)
		cart.DELETE("", s.carts.Clear)
		cart.POST("/items", s.carts.AddItem)
		cart.PATCH("/items/:lineId", s.carts.SetQuantity)
		cart.DELETE("/items/:lineId", s.carts.RemoveItem)
		cart.POST("/merge", requireUser(), s.carts.Merge)
		cart.POST("/quote", s.carts.Quote)

		orders := api.Group("/orders", requireUser())
		orders.POST("", s.orders.CreateOrder)
		orders.GET("", s.orders.ListOrders)
		orders.GET("/:id", s.orders.GetOrder)
		orders.POST("/:id/receipt", s.orders.SubmitReceipt)
		orders.GET("/:id/receipt", s.orders.GetReceipt)

		payments := api.Group("/payments")
		payments.GET("/callback", s.payments.Callback)
		payments.GET("/:orderId/start", requireUser(), s.payments.StartRedirect)
		payments.POST("/:orderId/start", requireUser(), s.payments.Start)

		admin := api.Group("/admin", requireStaff())
		admin.GET("/orders", s.admin.ListOrders)
		admin.POST("/orders/:id/status", s.admin.AdvanceStatus)
		admin.GET("/receipts", s.admin.ListReceipts)
		admin.POST("/receipts/:id/review", s.admin.ReviewReceipt)
		admin.POST("/inventory/:productId/adjust", s.admin.AdjustStock)
		admin.GET("/inventory/:productId/history", s.admin.StockHistory)
	}
}

// healthCheck verifica a saúde do serviço
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": s.opts.ServiceName,
	})
}

// requestTimeout limita o contexto de cada requisição
func requestTimeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func queryInt(c *gin.Context, key string, defaultValue int) int {
	if v, err := strconv.Atoi(c.Query(key)); err == nil && v >= 0 {
		return v
	}
	return defaultValue
}
