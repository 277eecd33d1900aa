package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matheusmosca/commerce-settlement/internal/domain"
	"github.com/matheusmosca/commerce-settlement/internal/repository"
)

func TestStore_RollbackDiscardsWrites(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	store.PutProduct(domain.Product{ID: "p1", Name: "Mug", Price: 100, Stock: 5})

	errBoom := errors.New("boom")
	err := repository.WithTx(ctx, store, func(tx repository.Tx) error {
		if _, err := store.NextOrderNumber(ctx, tx); err != nil {
			return err
		}
		if _, err := store.DecreaseStock(ctx, tx, "p1", 3, false); err != nil {
			return err
		}
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)

	p, err := store.GetProduct(ctx, nil, "p1")
	require.NoError(t, err)
	assert.Equal(t, 5, p.Stock)
	assert.Equal(t, int64(0), store.CurrentOrderNumber())
}

func TestStore_CommitPublishesWrites(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	store.PutProduct(domain.Product{ID: "p1", Name: "Mug", Price: 100, Stock: 5})

	err := repository.WithTx(ctx, store, func(tx repository.Tx) error {
		stock, err := store.DecreaseStock(ctx, tx, "p1", 2, false)
		if err != nil {
			return err
		}
		return store.AppendStockEntry(ctx, tx, domain.NewStockEntry("p1", -2, stock, domain.StockReasonSale, nil, ""))
	})
	require.NoError(t, err)

	p, _ := store.GetProduct(ctx, nil, "p1")
	assert.Equal(t, 3, p.Stock)
	assert.Equal(t, 2, p.SoldCount)

	entries, err := store.ListStockEntries(ctx, "p1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 3, entries[0].ResultingStock)
}

func TestStore_DecreaseStockFloor(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	store.PutProduct(domain.Product{ID: "p1", Stock: 1})

	tx, err := store.BeginTx(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	_, err = store.DecreaseStock(ctx, tx, "p1", 2, false)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	stock, err := store.DecreaseStock(ctx, tx, "p1", 2, true)
	require.NoError(t, err)
	assert.Equal(t, -1, stock)
}

func TestStore_UpsertCartLineSums(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	cart := domain.NewCart(domain.GuestOwner("g1"))
	require.NoError(t, store.CreateCart(ctx, nil, cart))

	_, err := store.UpsertCartLine(ctx, nil, cart.ID, "p1", 2)
	require.NoError(t, err)
	line, err := store.UpsertCartLine(ctx, nil, cart.ID, "p1", 3)
	require.NoError(t, err)
	assert.Equal(t, 5, line.Quantity)

	lines, _ := store.ListCartLines(ctx, nil, cart.ID)
	assert.Len(t, lines, 1)
}

func TestStore_MarkPaidOnlyOnce(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	order := domain.NewOrder("u1", 1, domain.PaymentMethodGateway)

	require.NoError(t, repository.WithTx(ctx, store, func(tx repository.Tx) error {
		return store.CreateOrder(ctx, tx, order)
	}))

	var results []bool
	for i := 0; i < 2; i++ {
		require.NoError(t, repository.WithTx(ctx, store, func(tx repository.Tx) error {
			ok, err := store.MarkPaid(ctx, tx, order.ID)
			results = append(results, ok)
			return err
		}))
	}
	assert.Equal(t, []bool{true, false}, results)

	got, _ := store.GetOrder(ctx, nil, order.ID)
	assert.Equal(t, domain.PaymentStatusCompleted, got.PaymentStatus)
	assert.Equal(t, domain.OrderStatusProcessing, got.Status)
}

func TestStore_AppendRequiresTx(t *testing.T) {
	store := NewStore()
	err := store.AppendStockEntry(context.Background(), nil, domain.NewStockEntry("p1", 1, 1, domain.StockReasonInitial, nil, ""))
	assert.ErrorIs(t, err, domain.ErrTxRequired)
}
