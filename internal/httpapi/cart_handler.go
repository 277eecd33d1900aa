package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/matheusmosca/commerce-settlement/internal/usecase"
)

// CartHandler contém os handlers HTTP do carrinho
type CartHandler struct {
	carts    CartService
	orders   OrderService
	validate *validatorv10.Validate
}

// NewCartHandler cria uma nova instância de CartHandler
func NewCartHandler(carts CartService, orders OrderService, v *validatorv10.Validate) *CartHandler {
	return &CartHandler{carts: carts, orders: orders, validate: v}
}

type addItemRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
}

type setQuantityRequest struct {
	Quantity *int `json:"quantity" validate:"required,min=0"`
}

type quoteRequest struct {
	ShippingMethod string `json:"shipping_method"`
	CouponID       string `json:"coupon_id"`
}

func (h *CartHandler) GetCart(c *gin.Context) {
	owner := ownerFrom(c)
	if owner.Validate() != nil {
		c.JSON(http.StatusOK, usecase.CartView{Lines: []usecase.CartLineView{}})
		return
	}
	view, err := h.carts.GetCart(c.Request.Context(), owner)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// AddItem soma qty à linha do produto; a primeira escrita de um visitante
// sem sessão emite o cookie anônimo
func (h *CartHandler) AddItem(c *gin.Context) {
	var req addItemRequest
	if err := bindAndValidate(c, &req, h.validate); err != nil {
		return
	}
	owner := ensureOwner(c)
	line, err := h.carts.AddItem(c.Request.Context(), owner, req.ProductID, req.Quantity)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, line)
}

func (h *CartHandler) SetQuantity(c *gin.Context) {
	var req setQuantityRequest
	if err := bindAndValidate(c, &req, h.validate); err != nil {
		return
	}
	if err := h.carts.SetQuantity(c.Request.Context(), ownerFrom(c), c.Param("lineId"), *req.Quantity); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *CartHandler) RemoveItem(c *gin.Context) {
	if err := h.carts.RemoveItem(c.Request.Context(), ownerFrom(c), c.Param("lineId")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *CartHandler) Clear(c *gin.Context) {
	owner := ownerFrom(c)
	if owner.Validate() != nil {
		c.Status(http.StatusNoContent)
		return
	}
	if err := h.carts.Clear(c.Request.Context(), owner); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Merge leva o carrinho anônimo para o usuário autenticado no login e
// invalida o cookie da sessão anônima
func (h *CartHandler) Merge(c *gin.Context) {
	guestID, err := c.Cookie(GuestCookie)
	if err != nil || guestID == "" {
		c.Status(http.StatusNoContent)
		return
	}
	if err := h.carts.MergeGuestIntoUser(c.Request.Context(), guestID, ownerFrom(c).UserID); err != nil {
		writeError(c, err)
		return
	}
	expireGuestCookie(c)
	c.Status(http.StatusNoContent)
}

// Quote retorna o preview de preço sem persistir nada
func (h *CartHandler) Quote(c *gin.Context) {
	var req quoteRequest
	if err := bindAndValidate(c, &req, h.validate); err != nil {
		return
	}
	q, err := h.orders.Quote(c.Request.Context(), usecase.QuoteRequest{
		Owner:          ownerFrom(c),
		ShippingMethod: req.ShippingMethod,
		CouponID:       req.CouponID,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}
