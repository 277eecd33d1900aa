package domain

import "errors"

// Erros de negócio do pipeline de liquidação. Os handlers HTTP traduzem
// cada um deles para um status code; as camadas internas apenas embrulham
// com fmt.Errorf("...: %w", err).
var (
	ErrEmptyCart                 = errors.New("cart is empty")
	ErrInsufficientStock         = errors.New("insufficient stock")
	ErrInvalidAddress            = errors.New("invalid address")
	ErrInvalidShippingMethod     = errors.New("invalid shipping method")
	ErrInvalidOrExpiredCoupon    = errors.New("invalid or expired coupon")
	ErrOrderNotFound             = errors.New("order not found")
	ErrAlreadySettled            = errors.New("order already settled")
	ErrGatewayVerificationFailed = errors.New("gateway verification failed")
	ErrGatewayUnavailable        = errors.New("gateway unavailable")
	ErrReceiptNotFound           = errors.New("receipt not found")
	ErrUnauthorizedOwner         = errors.New("caller does not own this resource")
	ErrGuestSessionRetired       = errors.New("guest session was merged into a user")

	ErrProductNotFound  = errors.New("product not found")
	ErrCartNotFound     = errors.New("cart not found")
	ErrCartLineNotFound = errors.New("cart line not found")
	ErrInvalidQuantity  = errors.New("invalid quantity")
	ErrInvalidState     = errors.New("invalid state transition")
	ErrInvalidPayment   = errors.New("invalid payment method")
	ErrInvalidReason    = errors.New("invalid stock movement reason")
	ErrTxRequired       = errors.New("operation requires an open transaction")
)
