package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/matheusmosca/commerce-settlement/internal/domain"
)

// errorCodes é a forma estável do erro exposta ao cliente
var errorCodes = []struct {
	err  error
	code string
}{
	{domain.ErrEmptyCart, "empty_cart"},
	{domain.ErrInsufficientStock, "insufficient_stock"},
	{domain.ErrInvalidAddress, "invalid_address"},
	{domain.ErrInvalidShippingMethod, "invalid_shipping_method"},
	{domain.ErrInvalidOrExpiredCoupon, "invalid_or_expired_coupon"},
	{domain.ErrOrderNotFound, "order_not_found"},
	{domain.ErrAlreadySettled, "already_settled"},
	{domain.ErrGatewayVerificationFailed, "gateway_verification_failed"},
	{domain.ErrGatewayUnavailable, "gateway_unavailable"},
	{domain.ErrReceiptNotFound, "receipt_not_found"},
	{domain.ErrUnauthorizedOwner, "unauthorized_owner"},
	{domain.ErrGuestSessionRetired, "guest_session_retired"},
	{domain.ErrProductNotFound, "product_not_found"},
	{domain.ErrCartNotFound, "cart_not_found"},
	{domain.ErrCartLineNotFound, "cart_line_not_found"},
	{domain.ErrInvalidQuantity, "invalid_quantity"},
	{domain.ErrInvalidState, "invalid_state"},
	{domain.ErrInvalidPayment, "invalid_payment_method"},
	{domain.ErrInvalidReason, "invalid_reason"},
}

func errorCode(err error) string {
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			return e.code
		}
	}
	return "internal_error"
}

func mapErrorToStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrInvalidReason):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorizedOwner),
		errors.Is(err, domain.ErrGuestSessionRetired):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, domain.ErrReceiptNotFound),
		errors.Is(err, domain.ErrProductNotFound),
		errors.Is(err, domain.ErrCartNotFound),
		errors.Is(err, domain.ErrCartLineNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrInvalidState),
		errors.Is(err, domain.ErrAlreadySettled):
		return http.StatusConflict
	case errors.Is(err, domain.ErrEmptyCart),
		errors.Is(err, domain.ErrInvalidAddress),
		errors.Is(err, domain.ErrInvalidShippingMethod),
		errors.Is(err, domain.ErrInvalidOrExpiredCoupon),
		errors.Is(err, domain.ErrInvalidPayment):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrGatewayVerificationFailed),
		errors.Is(err, domain.ErrGatewayUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError escreve o erro com o status mapeado. Erros internos não
// vazam a mensagem original. Uma sessão anônima aposentada perde o cookie
// para que a próxima escrita emita uma nova.
func writeError(c *gin.Context, err error) {
	if errors.Is(err, domain.ErrGuestSessionRetired) {
		expireGuestCookie(c)
	}
	status := mapErrorToStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	c.JSON(status, gin.H{"error": errorCode(err), "msg": msg})
}
