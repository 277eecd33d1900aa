package httpapi

import (
	"errors"
	"log"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/matheusmosca/commerce-settlement/internal/domain"
	"github.com/matheusmosca/commerce-settlement/internal/usecase"
)

// PaymentHandler contém o início do pagamento e o callback do gateway
type PaymentHandler struct {
	payments  PaymentService
	resultURL string
}

// NewPaymentHandler cria uma nova instância de PaymentHandler
func NewPaymentHandler(payments PaymentService, resultURL string) *PaymentHandler {
	return &PaymentHandler{payments: payments, resultURL: resultURL}
}

// Start registra o pagamento no gateway e devolve a URL de redirecionamento
func (h *PaymentHandler) Start(c *gin.Context) {
	redirect, err := h.payments.StartPayment(c.Request.Context(), ownerFrom(c), c.Param("orderId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"redirect_url": redirect})
}

// StartRedirect é a variante navegável de Start: redireciona direto para
// o gateway
func (h *PaymentHandler) StartRedirect(c *gin.Context) {
	redirect, err := h.payments.StartPayment(c.Request.Context(), ownerFrom(c), c.Param("orderId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.Redirect(http.StatusFound, redirect)
}

// Callback recebe o retorno do gateway (Authority e Status na query) e
// redireciona o comprador para a página de resultado
func (h *PaymentHandler) Callback(c *gin.Context) {
	reference := c.Query("Authority")
	status := c.Query("Status")

	res, err := h.payments.HandleCallback(c.Request.Context(), reference, status)
	if res == nil {
		res = &usecase.CallbackResult{Outcome: usecase.OutcomePending, Reason: "processing_error"}
		if errors.Is(err, domain.ErrOrderNotFound) {
			res.Outcome = usecase.OutcomeFailed
			res.Reason = errorCode(err)
		}
	}
	if err != nil {
		log.Printf("⚠️ [PAYMENT CALLBACK] Reference=%s | Outcome=%s | Err=%v", reference, res.Outcome, err)
	}

	c.Redirect(http.StatusFound, h.resultLocation(res))
}

func (h *PaymentHandler) resultLocation(res *usecase.CallbackResult) string {
	q := url.Values{}
	q.Set("order", res.OrderID)
	q.Set("status", string(res.Outcome))
	if res.Reason != "" {
		q.Set("reason", res.Reason)
	}
	return h.resultURL + "?" + q.Encode()
}
