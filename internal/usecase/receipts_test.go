package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/matheusmosca/commerce-settlement/internal/domain"
	"github.com/matheusmosca/commerce-settlement/internal/gateway"
)

func (f *fixture) submitReceipt(t *testing.T, orderID string) *domain.PaymentReceipt {
	t.Helper()
	rc, err := f.receipts.Submit(context.Background(), SubmitReceiptRequest{
		Owner:    domain.UserOwner(testUser),
		OrderID:  orderID,
		ImageURL: "https://cdn.test/receipts/" + orderID + ".jpg",
		Note:     "paid via bank transfer",
	})
	require.NoError(t, err)
	return rc
}

func TestReceiptUseCase_Submit(t *testing.T) {
	f := newFixture(t)
	order := f.placeOrder(t, domain.PaymentMethodManualTransfer)

	rc := f.submitReceipt(t, order.ID)
	assert.Equal(t, domain.ReceiptStatusPending, rc.Status)
	assert.Equal(t, order.ID, rc.OrderID)

	got, err := f.receipts.GetForOrder(context.Background(), domain.UserOwner(testUser), order.ID)
	require.NoError(t, err)
	assert.Equal(t, rc.ID, got.ID)
}

func TestReceiptUseCase_SubmitRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	manual := f.placeOrder(t, domain.PaymentMethodManualTransfer)
	gw := f.placeOrder(t, domain.PaymentMethodGateway)

	_, err := f.receipts.Submit(ctx, SubmitReceiptRequest{Owner: domain.UserOwner("user-2"), OrderID: manual.ID, ImageURL: "x"})
	assert.ErrorIs(t, err, domain.ErrUnauthorizedOwner)

	_, err = f.receipts.Submit(ctx, SubmitReceiptRequest{Owner: domain.GuestOwner("g"), OrderID: manual.ID, ImageURL: "x"})
	assert.ErrorIs(t, err, domain.ErrUnauthorizedOwner)

	_, err = f.receipts.Submit(ctx, SubmitReceiptRequest{Owner: domain.UserOwner(testUser), OrderID: gw.ID, ImageURL: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidPayment)

	_, err = f.settler.Settle(ctx, manual.ID, nil, PathManualTransfer)
	require.NoError(t, err)
	_, err = f.receipts.Submit(ctx, SubmitReceiptRequest{Owner: domain.UserOwner(testUser), OrderID: manual.ID, ImageURL: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestReceiptUseCase_RejectThenResubmit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.placeOrder(t, domain.PaymentMethodManualTransfer)
	rc := f.submitReceipt(t, order.ID)

	res, err := f.receipts.Review(ctx, ReviewRequest{ReceiptID: rc.ID, Action: domain.ReviewActionReject, StaffNote: "blurry", StaffID: "staff-1"})
	require.NoError(t, err)
	assert.Equal(t, domain.ReceiptStatusRejected, res.Receipt.Status)
	assert.Equal(t, "blurry", res.Receipt.StaffNote)
	require.NotNil(t, res.Receipt.ReviewedBy)
	assert.Equal(t, "staff-1", *res.Receipt.ReviewedBy)
	assert.Equal(t, domain.PaymentStatusPending, f.paymentStatus(t, order.ID))

	again, err := f.receipts.Review(ctx, ReviewRequest{ReceiptID: rc.ID, Action: domain.ReviewActionReject, StaffID: "staff-1"})
	require.NoError(t, err)
	assert.True(t, again.Replay)

	resubmitted := f.submitReceipt(t, order.ID)
	assert.Equal(t, rc.ID, resubmitted.ID, "one receipt per order")
	assert.Equal(t, domain.ReceiptStatusPending, resubmitted.Status)
	assert.Empty(t, resubmitted.StaffNote)
	assert.Nil(t, resubmitted.ReviewedBy)
}

func TestReceiptUseCase_ApproveSettles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.placeOrder(t, domain.PaymentMethodManualTransfer)
	rc := f.submitReceipt(t, order.ID)

	res, err := f.receipts.Review(ctx, ReviewRequest{ReceiptID: rc.ID, Action: domain.ReviewActionApprove, StaffID: "staff-1"})
	require.NoError(t, err)
	assert.False(t, res.Replay)
	assert.Equal(t, domain.ReceiptStatusApproved, res.Receipt.Status)
	require.NotNil(t, res.Order)
	assert.Equal(t, domain.PaymentStatusCompleted, res.Order.PaymentStatus)
	assert.Equal(t, domain.OrderStatusProcessing, res.Order.Status)

	assert.Equal(t, 8, f.stock(t, productMug))
	entries := f.saleEntries(t, productMug, order.ID)
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].ActorID)
	assert.Equal(t, "staff-1", *entries[0].ActorID)

	// aprovar de novo não baixa estoque outra vez
	res, err = f.receipts.Review(ctx, ReviewRequest{ReceiptID: rc.ID, Action: domain.ReviewActionApprove, StaffID: "staff-2"})
	require.NoError(t, err)
	assert.True(t, res.Replay)
	assert.Equal(t, 8, f.stock(t, productMug))
	assert.Len(t, f.saleEntries(t, productMug, order.ID), 1)

	// comprovante aprovado não volta
	_, err = f.receipts.Review(ctx, ReviewRequest{ReceiptID: rc.ID, Action: domain.ReviewActionReject, StaffID: "staff-2"})
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	_, err = f.receipts.Submit(ctx, SubmitReceiptRequest{Owner: domain.UserOwner(testUser), OrderID: order.ID, ImageURL: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestReceiptUseCase_ApproveAfterOrderAlreadySettled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.placeOrder(t, domain.PaymentMethodManualTransfer)
	rc := f.submitReceipt(t, order.ID)

	_, err := f.settler.Settle(ctx, order.ID, nil, PathManualTransfer)
	require.NoError(t, err)

	res, err := f.receipts.Review(ctx, ReviewRequest{ReceiptID: rc.ID, Action: domain.ReviewActionApprove, StaffID: "staff-1"})
	require.NoError(t, err)
	assert.Equal(t, domain.ReceiptStatusApproved, res.Receipt.Status)
	assert.Equal(t, 8, f.stock(t, productMug))
	assert.Len(t, f.saleEntries(t, productMug, order.ID), 1)
}

func TestReceiptUseCase_ReviewErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.receipts.Review(ctx, ReviewRequest{ReceiptID: "missing", Action: domain.ReviewActionApprove})
	assert.ErrorIs(t, err, domain.ErrReceiptNotFound)

	_, err = f.receipts.Review(ctx, ReviewRequest{ReceiptID: "missing", Action: "MAYBE"})
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestReceiptUseCase_List(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.placeOrder(t, domain.PaymentMethodManualTransfer)
	second := f.placeOrder(t, domain.PaymentMethodManualTransfer)
	rc1 := f.submitReceipt(t, first.ID)
	f.submitReceipt(t, second.ID)

	_, err := f.receipts.Review(ctx, ReviewRequest{ReceiptID: rc1.ID, Action: domain.ReviewActionReject})
	require.NoError(t, err)

	pending, err := f.receipts.List(ctx, domain.ReceiptStatusPending, 10, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, second.ID, pending[0].OrderID)

	all, err := f.receipts.List(ctx, "", 10, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

// Os dois caminhos de liquidação produzem os mesmos efeitos de estoque e
// ledger para o mesmo pedido
func TestSettlementPathsAreEquivalent(t *testing.T) {
	type effects struct {
		mugStock, posterStock int
		mugDelta, posterDelta int
		cartLines             int
		status                domain.OrderStatus
	}

	capture := func(t *testing.T, f *fixture, orderID string) effects {
		mug := f.saleEntries(t, productMug, orderID)
		poster := f.saleEntries(t, productPoster, orderID)
		require.Len(t, mug, 1)
		require.Len(t, poster, 1)
		view, err := f.carts.GetCart(context.Background(), domain.UserOwner(testUser))
		require.NoError(t, err)
		o, err := f.store.GetOrder(context.Background(), nil, orderID)
		require.NoError(t, err)
		return effects{
			mugStock: f.stock(t, productMug), posterStock: f.stock(t, productPoster),
			mugDelta: mug[0].Delta, posterDelta: poster[0].Delta,
			cartLines: len(view.Lines), status: o.Status,
		}
	}

	gw := newFixture(t)
	gwOrder := gw.placeOrder(t, domain.PaymentMethodGateway)
	gw.withReference(t, gwOrder.ID, testAuthority)
	gw.gateway.On("Verify", mock.Anything, testAuthority, gwOrder.Total).
		Return(&gateway.Verification{Code: gateway.CodeSuccess}, nil).Once()
	_, err := gw.payments.HandleCallback(context.Background(), testAuthority, gateway.StatusOK)
	require.NoError(t, err)

	manual := newFixture(t)
	manualOrder := manual.placeOrder(t, domain.PaymentMethodManualTransfer)
	rc := manual.submitReceipt(t, manualOrder.ID)
	_, err = manual.receipts.Review(context.Background(), ReviewRequest{ReceiptID: rc.ID, Action: domain.ReviewActionApprove, StaffID: "staff-1"})
	require.NoError(t, err)

	assert.Equal(t, capture(t, gw, gwOrder.ID), capture(t, manual, manualOrder.ID))
}
