package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/matheusmosca/commerce-settlement/internal/domain"
	"github.com/matheusmosca/commerce-settlement/internal/usecase"
)

// AdminHandler contém as rotas da equipe: fila de pedidos, revisão de
// comprovantes e ajustes de estoque
type AdminHandler struct {
	orders    OrderService
	receipts  ReceiptService
	inventory InventoryService
	validate  *validatorv10.Validate
}

// NewAdminHandler cria uma nova instância de AdminHandler
func NewAdminHandler(orders OrderService, receipts ReceiptService, inventory InventoryService, v *validatorv10.Validate) *AdminHandler {
	return &AdminHandler{orders: orders, receipts: receipts, inventory: inventory, validate: v}
}

type advanceStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=PROCESSING SHIPPED DELIVERED"`
}

type reviewReceiptRequest struct {
	Action    string `json:"action" validate:"required,oneof=APPROVE REJECT"`
	StaffNote string `json:"staff_note" validate:"max=1000"`
}

type adjustStockRequest struct {
	Delta  int    `json:"delta" validate:"required"`
	Reason string `json:"reason" validate:"required,oneof=INITIAL PURCHASE RETURN ADJUSTMENT DAMAGE"`
	Note   string `json:"note" validate:"max=500"`
}

func (h *AdminHandler) ListOrders(c *gin.Context) {
	list, err := h.orders.AdminListOrders(c.Request.Context(), domain.OrderFilter{
		UserID:        c.Query("user_id"),
		PaymentStatus: domain.PaymentStatus(c.Query("payment_status")),
		Status:        domain.OrderStatus(c.Query("status")),
		PaymentMethod: domain.PaymentMethod(c.Query("payment_method")),
		Limit:         queryInt(c, "limit", 50),
		Offset:        queryInt(c, "offset", 0),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	if list == nil {
		list = []domain.Order{}
	}
	c.JSON(http.StatusOK, list)
}

func (h *AdminHandler) AdvanceStatus(c *gin.Context) {
	var req advanceStatusRequest
	if err := bindAndValidate(c, &req, h.validate); err != nil {
		return
	}
	order, err := h.orders.AdvanceStatus(c.Request.Context(), c.Param("id"), domain.OrderStatus(req.Status), staffFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *AdminHandler) ListReceipts(c *gin.Context) {
	list, err := h.receipts.List(c.Request.Context(), domain.ReceiptStatus(c.Query("status")),
		queryInt(c, "limit", 50), queryInt(c, "offset", 0))
	if err != nil {
		writeError(c, err)
		return
	}
	if list == nil {
		list = []domain.PaymentReceipt{}
	}
	c.JSON(http.StatusOK, list)
}

// ReviewReceipt aprova ou rejeita o comprovante. Repetir a mesma ação
// responde 200 com replay=true.
func (h *AdminHandler) ReviewReceipt(c *gin.Context) {
	var req reviewReceiptRequest
	if err := bindAndValidate(c, &req, h.validate); err != nil {
		return
	}
	res, err := h.receipts.Review(c.Request.Context(), usecase.ReviewRequest{
		ReceiptID: c.Param("id"),
		Action:    domain.ReviewAction(req.Action),
		StaffNote: req.StaffNote,
		StaffID:   staffFrom(c),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *AdminHandler) AdjustStock(c *gin.Context) {
	var req adjustStockRequest
	if err := bindAndValidate(c, &req, h.validate); err != nil {
		return
	}
	entry, err := h.inventory.Adjust(c.Request.Context(), usecase.AdjustStockRequest{
		ProductID: c.Param("productId"),
		Delta:     req.Delta,
		Reason:    domain.StockReason(req.Reason),
		ActorID:   staffFrom(c),
		Note:      req.Note,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

func (h *AdminHandler) StockHistory(c *gin.Context) {
	entries, err := h.inventory.History(c.Request.Context(), c.Param("productId"), queryInt(c, "limit", 100))
	if err != nil {
		writeError(c, err)
		return
	}
	if entries == nil {
		entries = []domain.StockEntry{}
	}
	c.JSON(http.StatusOK, entries)
}
