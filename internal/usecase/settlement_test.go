package usecase

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matheusmosca/commerce-settlement/internal/domain"
	"github.com/matheusmosca/commerce-settlement/internal/repository/memory"
)

func (f *fixture) saleEntries(t *testing.T, productID, orderID string) []domain.StockEntry {
	t.Helper()
	entries, err := f.store.ListStockEntries(context.Background(), productID, 0)
	require.NoError(t, err)
	var out []domain.StockEntry
	for _, e := range entries {
		if e.Reason == domain.StockReasonSale && e.OrderID != nil && *e.OrderID == orderID {
			out = append(out, e)
		}
	}
	return out
}

func TestSettler_Settle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.placeOrder(t, domain.PaymentMethodGateway)

	settled, err := f.settler.Settle(ctx, order.ID, nil, PathGateway)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCompleted, settled.PaymentStatus)
	assert.Equal(t, domain.OrderStatusProcessing, settled.Status)

	assert.Equal(t, 8, f.stock(t, productMug))
	assert.Equal(t, 4, f.stock(t, productPoster))

	mug := f.saleEntries(t, productMug, order.ID)
	require.Len(t, mug, 1)
	assert.Equal(t, -2, mug[0].Delta)
	assert.Equal(t, 8, mug[0].ResultingStock)
	assert.Len(t, f.saleEntries(t, productPoster, order.ID), 1)

	view, err := f.carts.GetCart(ctx, domain.UserOwner(testUser))
	require.NoError(t, err)
	assert.Empty(t, view.Lines)
}

func TestSettler_SettleIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.placeOrder(t, domain.PaymentMethodGateway)

	_, err := f.settler.Settle(ctx, order.ID, nil, PathGateway)
	require.NoError(t, err)

	_, err = f.settler.Settle(ctx, order.ID, nil, PathGateway)
	assert.ErrorIs(t, err, domain.ErrAlreadySettled)

	assert.Equal(t, 8, f.stock(t, productMug))
	assert.Len(t, f.saleEntries(t, productMug, order.ID), 1)
}

func TestSettler_ConcurrentSettleAppliesOnce(t *testing.T) {
	f := newFixture(t)
	order := f.placeOrder(t, domain.PaymentMethodGateway)

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
		replays int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			path := PathGateway
			if i%2 == 1 {
				path = PathManualTransfer
			}
			_, err := f.settler.Settle(context.Background(), order.ID, nil, path)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				success++
			case assert.ErrorIs(t, err, domain.ErrAlreadySettled):
				replays++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, success)
	assert.Equal(t, workers-1, replays)
	assert.Equal(t, 8, f.stock(t, productMug))
	assert.Equal(t, 4, f.stock(t, productPoster))
	assert.Len(t, f.saleEntries(t, productMug, order.ID), 1)
	assert.Len(t, f.saleEntries(t, productPoster, order.ID), 1)
}

func TestSettler_TerminalFailureIsNotSettled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.placeOrder(t, domain.PaymentMethodGateway)

	ok, err := f.store.TransitionPaymentStatus(ctx, nil, order.ID, domain.PaymentStatusPending, domain.PaymentStatusCancelled)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.settler.Settle(ctx, order.ID, nil, PathGateway)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	assert.Equal(t, domain.PaymentStatusCancelled, f.paymentStatus(t, order.ID))
	assert.Equal(t, 10, f.stock(t, productMug))
}

func TestSettler_AllowsNegativeStockByDefault(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.placeOrder(t, domain.PaymentMethodGateway)
	f.store.PutProduct(domain.Product{ID: productMug, Name: "Mug", Price: 30000, Stock: 1})

	_, err := f.settler.Settle(ctx, order.ID, nil, PathGateway)
	require.NoError(t, err)
	assert.Equal(t, -1, f.stock(t, productMug))
}

func TestSettler_FloorZeroKeepsOrderPending(t *testing.T) {
	f := newFixtureWith(t, memory.NewStore(), false)
	ctx := context.Background()
	order := f.placeOrder(t, domain.PaymentMethodGateway)
	f.store.PutProduct(domain.Product{ID: productMug, Name: "Mug", Price: 30000, Stock: 1})

	_, err := f.settler.Settle(ctx, order.ID, nil, PathGateway)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	assert.Equal(t, domain.PaymentStatusPending, f.paymentStatus(t, order.ID))
	assert.Equal(t, 1, f.stock(t, productMug))
	assert.Equal(t, 5, f.stock(t, productPoster))
	assert.Empty(t, f.saleEntries(t, productPoster, order.ID))
}

func TestSettler_SkipsDeletedProducts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.placeOrder(t, domain.PaymentMethodGateway)
	f.store.DeleteProduct(productPoster)

	settled, err := f.settler.Settle(ctx, order.ID, nil, PathGateway)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCompleted, settled.PaymentStatus)
	assert.Equal(t, 8, f.stock(t, productMug))
	assert.Empty(t, f.saleEntries(t, productPoster, order.ID))
}

func TestSettler_UnknownOrder(t *testing.T) {
	f := newFixture(t)
	_, err := f.settler.Settle(context.Background(), "missing", nil, PathGateway)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}
