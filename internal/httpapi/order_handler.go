package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/matheusmosca/commerce-settlement/internal/domain"
	"github.com/matheusmosca/commerce-settlement/internal/usecase"
)

// OrderHandler contém os handlers HTTP de pedidos e comprovantes do comprador
type OrderHandler struct {
	orders   OrderService
	receipts ReceiptService
	validate *validatorv10.Validate
}

// NewOrderHandler cria uma nova instância de OrderHandler
func NewOrderHandler(orders OrderService, receipts ReceiptService, v *validatorv10.Validate) *OrderHandler {
	return &OrderHandler{orders: orders, receipts: receipts, validate: v}
}

type createOrderRequest struct {
	AddressID      string `json:"address_id" validate:"required"`
	ShippingMethod string `json:"shipping_method" validate:"required"`
	CouponID       string `json:"coupon_id"`
	PaymentMethod  string `json:"payment_method" validate:"required,oneof=GATEWAY MANUAL_TRANSFER"`
}

type submitReceiptRequest struct {
	ImageURL      string `json:"image_url" validate:"required,url"`
	ImagePublicID string `json:"image_public_id"`
	Note          string `json:"note" validate:"max=1000"`
}

// CreateOrder cria o pedido a partir do carrinho do usuário
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req createOrderRequest
	if err := bindAndValidate(c, &req, h.validate); err != nil {
		return
	}
	res, err := h.orders.CreateOrder(c.Request.Context(), usecase.CreateOrderRequest{
		Owner:          ownerFrom(c),
		AddressID:      req.AddressID,
		ShippingMethod: req.ShippingMethod,
		CouponID:       req.CouponID,
		PaymentMethod:  domain.PaymentMethod(req.PaymentMethod),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *OrderHandler) ListOrders(c *gin.Context) {
	list, err := h.orders.ListOrders(c.Request.Context(), ownerFrom(c), queryInt(c, "limit", 20), queryInt(c, "offset", 0))
	if err != nil {
		writeError(c, err)
		return
	}
	if list == nil {
		list = []domain.Order{}
	}
	c.JSON(http.StatusOK, list)
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	order, err := h.orders.GetOrder(c.Request.Context(), ownerFrom(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// SubmitReceipt grava ou substitui o comprovante de transferência
func (h *OrderHandler) SubmitReceipt(c *gin.Context) {
	var req submitReceiptRequest
	if err := bindAndValidate(c, &req, h.validate); err != nil {
		return
	}
	rc, err := h.receipts.Submit(c.Request.Context(), usecase.SubmitReceiptRequest{
		Owner:         ownerFrom(c),
		OrderID:       c.Param("id"),
		ImageURL:      req.ImageURL,
		ImagePublicID: req.ImagePublicID,
		Note:          req.Note,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rc)
}

func (h *OrderHandler) GetReceipt(c *gin.Context) {
	rc, err := h.receipts.GetForOrder(c.Request.Context(), ownerFrom(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rc)
}
