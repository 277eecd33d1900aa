package usecase

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/matheusmosca/commerce-settlement/internal/config"
	"github.com/matheusmosca/commerce-settlement/internal/domain"
	"github.com/matheusmosca/commerce-settlement/internal/gateway"
)

const testAuthority = "A00000000000000000000000000000000001"

func TestPaymentUseCase_StartPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.placeOrder(t, domain.PaymentMethodGateway)

	f.gateway.On("CreatePayment", mock.Anything, mock.MatchedBy(func(req gateway.PaymentRequest) bool {
		return req.OrderID == order.ID &&
			req.Amount == 95000 &&
			req.CallbackURL == testBaseURL+"/api/payments/callback"
	})).Return(&gateway.Payment{Authority: testAuthority, RedirectURL: "https://gw.test/pg/StartPay/" + testAuthority}, nil).Once()

	redirect, err := f.payments.StartPayment(ctx, domain.UserOwner(testUser), order.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://gw.test/pg/StartPay/"+testAuthority, redirect)

	stored, err := f.store.GetOrder(ctx, nil, order.ID)
	require.NoError(t, err)
	assert.Equal(t, testAuthority, stored.PaymentReference)
	f.gateway.AssertExpectations(t)
}

// Um segundo start do mesmo pedido devolve a autorização já gravada
func TestPaymentUseCase_StartPaymentReusesReference(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.placeOrder(t, domain.PaymentMethodGateway)

	f.gateway.On("CreatePayment", mock.Anything, mock.Anything).
		Return(&gateway.Payment{Authority: testAuthority, RedirectURL: "https://gw.test/pg/StartPay/" + testAuthority}, nil).Once()

	first, err := f.payments.StartPayment(ctx, domain.UserOwner(testUser), order.ID)
	require.NoError(t, err)
	second, err := f.payments.StartPayment(ctx, domain.UserOwner(testUser), order.ID)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	f.gateway.AssertNumberOfCalls(t, "CreatePayment", 1)

	// o callback da primeira autorização continua resolvendo o pedido
	f.gateway.On("Verify", mock.Anything, testAuthority, int64(95000)).
		Return(&gateway.Verification{Code: gateway.CodeSuccess, RefID: "7"}, nil).Once()
	res, err := f.payments.HandleCallback(ctx, testAuthority, gateway.StatusOK)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, res.Outcome)
}

// Quem grava a referência por último perde; o start usa a que já está no pedido
func TestPaymentUseCase_StartPaymentLosesReferenceRace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.placeOrder(t, domain.PaymentMethodGateway)

	f.gateway.On("CreatePayment", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			// start concorrente grava antes desta chamada terminar
			f.withReference(t, order.ID, "AUTH-WINNER")
		}).
		Return(&gateway.Payment{Authority: "AUTH-LOSER", RedirectURL: "https://gw.test/pg/StartPay/AUTH-LOSER"}, nil).Once()

	redirect, err := f.payments.StartPayment(ctx, domain.UserOwner(testUser), order.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://gw.test/pg/StartPay/AUTH-WINNER", redirect)

	stored, err := f.store.GetOrder(ctx, nil, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "AUTH-WINNER", stored.PaymentReference)
}

func TestPaymentUseCase_StartPaymentRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	gw := f.placeOrder(t, domain.PaymentMethodGateway)
	manual := f.placeOrder(t, domain.PaymentMethodManualTransfer)

	_, err := f.payments.StartPayment(ctx, domain.UserOwner("user-2"), gw.ID)
	assert.ErrorIs(t, err, domain.ErrUnauthorizedOwner)

	_, err = f.payments.StartPayment(ctx, domain.UserOwner(testUser), manual.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidPayment)

	_, err = f.settler.Settle(ctx, gw.ID, nil, PathGateway)
	require.NoError(t, err)
	_, err = f.payments.StartPayment(ctx, domain.UserOwner(testUser), gw.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadySettled)

	f.gateway.AssertNotCalled(t, "CreatePayment", mock.Anything, mock.Anything)
}

func TestPaymentUseCase_StartPaymentGatewayDown(t *testing.T) {
	f := newFixture(t)
	order := f.placeOrder(t, domain.PaymentMethodGateway)
	f.gateway.On("CreatePayment", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("dial: %w", domain.ErrGatewayUnavailable)).Once()

	_, err := f.payments.StartPayment(context.Background(), domain.UserOwner(testUser), order.ID)
	assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)
	assert.Equal(t, domain.PaymentStatusPending, f.paymentStatus(t, order.ID))
}

func TestPaymentUseCase_CallbackSuccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.placeOrder(t, domain.PaymentMethodGateway)
	f.withReference(t, order.ID, testAuthority)

	f.gateway.On("Verify", mock.Anything, testAuthority, int64(95000)).
		Return(&gateway.Verification{Code: gateway.CodeSuccess, RefID: "42"}, nil).Once()

	res, err := f.payments.HandleCallback(ctx, testAuthority, gateway.StatusOK)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.False(t, res.Replay)
	assert.Equal(t, domain.PaymentStatusCompleted, f.paymentStatus(t, order.ID))
	assert.Equal(t, 8, f.stock(t, productMug))

	// replay do mesmo callback: sem nova verificação nem baixa
	res, err = f.payments.HandleCallback(ctx, testAuthority, gateway.StatusOK)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.True(t, res.Replay)
	assert.Equal(t, 8, f.stock(t, productMug))
	f.gateway.AssertNumberOfCalls(t, "Verify", 1)
}

func TestPaymentUseCase_CallbackFlags(t *testing.T) {
	tests := []struct {
		name    string
		flag    string
		status  domain.PaymentStatus
		outcome Outcome
		reason  string
	}{
		{name: "buyer cancelled", flag: gateway.StatusNOK, status: domain.PaymentStatusCancelled, outcome: OutcomeCancelled, reason: "cancelled_by_user"},
		{name: "unknown flag", flag: "WHATEVER", status: domain.PaymentStatusFailed, outcome: OutcomeFailed, reason: "gateway_status_WHATEVER"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			order := f.placeOrder(t, domain.PaymentMethodGateway)
			f.withReference(t, order.ID, testAuthority)

			res, err := f.payments.HandleCallback(context.Background(), testAuthority, tt.flag)
			require.NoError(t, err)
			assert.Equal(t, tt.outcome, res.Outcome)
			assert.Equal(t, tt.reason, res.Reason)
			assert.Equal(t, tt.status, f.paymentStatus(t, order.ID))
			assert.Equal(t, 10, f.stock(t, productMug))
			f.gateway.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestPaymentUseCase_CallbackVerificationRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.placeOrder(t, domain.PaymentMethodGateway)
	f.withReference(t, order.ID, testAuthority)

	f.gateway.On("Verify", mock.Anything, testAuthority, int64(95000)).
		Return(&gateway.Verification{Code: -51}, fmt.Errorf("code -51: %w", domain.ErrGatewayVerificationFailed)).Once()

	res, err := f.payments.HandleCallback(ctx, testAuthority, gateway.StatusOK)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, "gateway_-51", res.Reason)
	assert.Equal(t, domain.PaymentStatusFailed, f.paymentStatus(t, order.ID))

	// pedido terminal não volta a PENDING nem é liquidado
	_, err = f.settler.Settle(ctx, order.ID, nil, PathGateway)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	assert.Equal(t, domain.PaymentStatusFailed, f.paymentStatus(t, order.ID))
	assert.Equal(t, 10, f.stock(t, productMug))
}

func TestPaymentUseCase_CallbackGatewayUnavailableThenRetry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.placeOrder(t, domain.PaymentMethodGateway)
	f.withReference(t, order.ID, testAuthority)

	f.gateway.On("Verify", mock.Anything, testAuthority, int64(95000)).
		Return(nil, fmt.Errorf("timeout: %w", domain.ErrGatewayUnavailable)).Once()
	f.gateway.On("Verify", mock.Anything, testAuthority, int64(95000)).
		Return(&gateway.Verification{Code: gateway.CodeAlreadyVerified, RefID: "7"}, nil).Once()

	res, err := f.payments.HandleCallback(ctx, testAuthority, gateway.StatusOK)
	assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)
	require.NotNil(t, res)
	assert.Equal(t, OutcomePending, res.Outcome)
	assert.Equal(t, domain.PaymentStatusPending, f.paymentStatus(t, order.ID))
	assert.Equal(t, 10, f.stock(t, productMug))

	res, err = f.payments.HandleCallback(ctx, testAuthority, gateway.StatusOK)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Equal(t, domain.PaymentStatusCompleted, f.paymentStatus(t, order.ID))
	assert.Equal(t, 8, f.stock(t, productMug))
	f.gateway.AssertExpectations(t)
}

// Uma resposta sem código do gateway (rate limit, página de manutenção)
// não pode encerrar o pedido: ele fica PENDING e o mesmo callback liquida
// quando o gateway volta.
func TestPaymentUseCase_CallbackVerifyWithoutCodeKeepsOrderPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.placeOrder(t, domain.PaymentMethodGateway)
	f.withReference(t, order.ID, testAuthority)

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Content-Type", "text/plain")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte("slow down"))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"code":100,"ref_id":42},"errors":[]}`))
	}))
	t.Cleanup(srv.Close)

	client := gateway.NewClient(config.Gateway{BaseURL: srv.URL, MerchantID: "merchant-1", Timeout: time.Second})
	payments := NewPaymentUseCase(f.repos, client, f.settler, testBaseURL, Observability{Publisher: f.publisher})

	res, err := payments.HandleCallback(ctx, testAuthority, gateway.StatusOK)
	assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)
	require.NotNil(t, res)
	assert.Equal(t, OutcomePending, res.Outcome)
	assert.Equal(t, domain.PaymentStatusPending, f.paymentStatus(t, order.ID))
	assert.Equal(t, 10, f.stock(t, productMug))

	res, err = payments.HandleCallback(ctx, testAuthority, gateway.StatusOK)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Equal(t, domain.PaymentStatusCompleted, f.paymentStatus(t, order.ID))
	assert.Equal(t, 8, f.stock(t, productMug))
}

func TestPaymentUseCase_CallbackUnknownReference(t *testing.T) {
	f := newFixture(t)

	_, err := f.payments.HandleCallback(context.Background(), "nope", gateway.StatusOK)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)

	_, err = f.payments.HandleCallback(context.Background(), "", gateway.StatusOK)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestPaymentUseCase_CallbackFloorZeroStaysPending(t *testing.T) {
	f := newFixture(t)
	f.settler.allowNegative = false
	ctx := context.Background()
	order := f.placeOrder(t, domain.PaymentMethodGateway)
	f.withReference(t, order.ID, testAuthority)
	f.store.PutProduct(domain.Product{ID: productMug, Name: "Mug", Price: 30000, Stock: 0})

	f.gateway.On("Verify", mock.Anything, testAuthority, int64(95000)).
		Return(&gateway.Verification{Code: gateway.CodeSuccess}, nil).Once()

	res, err := f.payments.HandleCallback(ctx, testAuthority, gateway.StatusOK)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	require.NotNil(t, res)
	assert.Equal(t, OutcomePending, res.Outcome)
	assert.Equal(t, domain.PaymentStatusPending, f.paymentStatus(t, order.ID))
}

func TestPaymentUseCase_CallbackAfterCancellationIsReplay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.placeOrder(t, domain.PaymentMethodGateway)
	f.withReference(t, order.ID, testAuthority)

	_, err := f.payments.HandleCallback(ctx, testAuthority, gateway.StatusNOK)
	require.NoError(t, err)

	res, err := f.payments.HandleCallback(ctx, testAuthority, gateway.StatusOK)
	require.NoError(t, err)
	assert.True(t, res.Replay)
	assert.Equal(t, OutcomeCancelled, res.Outcome)
	assert.Equal(t, domain.PaymentStatusCancelled, f.paymentStatus(t, order.ID))
	f.gateway.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything, mock.Anything)
}
