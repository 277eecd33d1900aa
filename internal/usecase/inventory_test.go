package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matheusmosca/commerce-settlement/internal/domain"
)

func TestInventoryUseCase_Adjust(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	entry, err := f.inventory.Adjust(ctx, AdjustStockRequest{
		ProductID: productMug, Delta: 5, Reason: domain.StockReasonPurchase, ActorID: "staff-1", Note: "restock",
	})
	require.NoError(t, err)
	assert.Equal(t, 15, entry.ResultingStock)
	assert.Equal(t, 15, f.stock(t, productMug))

	_, err = f.inventory.Adjust(ctx, AdjustStockRequest{
		ProductID: productMug, Delta: -2, Reason: domain.StockReasonDamage, ActorID: "staff-1",
	})
	require.NoError(t, err)

	history, err := f.inventory.History(ctx, productMug, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, domain.StockReasonDamage, history[0].Reason)
	assert.Equal(t, 13, history[0].ResultingStock)
	assert.Equal(t, domain.StockReasonPurchase, history[1].Reason)
	assert.Equal(t, "restock", history[1].Note)
	require.NotNil(t, history[1].ActorID)
	assert.Equal(t, "staff-1", *history[1].ActorID)
}

func TestInventoryUseCase_AdjustRejections(t *testing.T) {
	tests := []struct {
		name    string
		req     AdjustStockRequest
		wantErr error
	}{
		{name: "sale is reserved", req: AdjustStockRequest{ProductID: productMug, Delta: -1, Reason: domain.StockReasonSale}, wantErr: domain.ErrInvalidReason},
		{name: "unknown reason", req: AdjustStockRequest{ProductID: productMug, Delta: 1, Reason: "GIFT"}, wantErr: domain.ErrInvalidReason},
		{name: "zero delta", req: AdjustStockRequest{ProductID: productMug, Delta: 0, Reason: domain.StockReasonAdjustment}, wantErr: domain.ErrInvalidQuantity},
		{name: "below zero", req: AdjustStockRequest{ProductID: productMug, Delta: -11, Reason: domain.StockReasonDamage}, wantErr: domain.ErrInsufficientStock},
		{name: "unknown product", req: AdjustStockRequest{ProductID: "missing", Delta: 1, Reason: domain.StockReasonReturn}, wantErr: domain.ErrProductNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.inventory.Adjust(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, 10, f.stock(t, productMug))

			history, err := f.inventory.History(context.Background(), productMug, 0)
			require.NoError(t, err)
			assert.Empty(t, history)
		})
	}
}

func TestInventoryLedger_AppendRequiresTx(t *testing.T) {
	f := newFixture(t)
	ledger := NewInventoryLedger(f.store)

	_, err := ledger.Append(context.Background(), nil, LedgerEntry{ProductID: productMug, Delta: 1, Reason: domain.StockReasonReturn})
	assert.ErrorIs(t, err, domain.ErrTxRequired)
}

func TestInventoryUseCase_HistoryUnknownProduct(t *testing.T) {
	f := newFixture(t)
	_, err := f.inventory.History(context.Background(), "missing", 10)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}
