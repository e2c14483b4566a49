package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lavka/internal/domain"
)

func f64(v float64) *float64 { return &v }

func TestMemoryStore_ProductCRUD(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	p := domain.Product{Name: "Kettle", SKU: "KT-1", Price: 1500, Stock: 3}
	require.NoError(t, store.Create(ctx, &p))
	assert.Equal(t, int64(1), p.ID)

	got, err := store.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Kettle", got.Name)

	// репозиторий отдаёт копию, мутация не протекает в хранилище
	got.Price = 1
	again, err := store.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.InEpsilon(t, 1500.0, again.Price, 1e-6)

	p.Price = 1700
	require.NoError(t, store.Update(ctx, &p))
	got, err = store.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.InEpsilon(t, 1700.0, got.Price, 1e-6)

	require.NoError(t, store.Delete(ctx, p.ID))
	_, err = store.GetByID(ctx, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.Update(ctx, &p), ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, p.ID), ErrNotFound)
}

func TestMemoryStore_ListFilter(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	for _, p := range []domain.Product{
		{Name: "Green Tea", SKU: "T-1", Price: 300},
		{Name: "Black Tea", SKU: "T-2", Price: 500},
		{Name: "Coffee", SKU: "C-1", Price: 900},
	} {
		cp := p
		require.NoError(t, store.Create(ctx, &cp))
	}

	out, err := store.List(ctx, ProductFilter{NameSubstring: "tea"})
	require.NoError(t, err)
	assert.Len(t, out, 2)

	out, err = store.List(ctx, ProductFilter{MinPrice: f64(400), MaxPrice: f64(1000)})
	require.NoError(t, err)
	assert.Len(t, out, 2)

	out, err = store.List(ctx, ProductFilter{NameSubstring: "tea", MinPrice: f64(400)})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "Black Tea", out[0].Name)
}

func TestMemoryStore_DecrementStock(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	p := domain.Product{Name: "A", SKU: "A-1", Price: 10, Stock: 5}
	require.NoError(t, store.Create(ctx, &p))

	require.NoError(t, store.DecrementStock(ctx, p.ID, 3))
	got, _ := store.GetByID(ctx, p.ID)
	assert.Equal(t, int64(2), got.Stock)

	// нехватка не списывает ничего
	err := store.DecrementStock(ctx, p.ID, 3)
	assert.ErrorIs(t, err, ErrStockConflict)
	got, _ = store.GetByID(ctx, p.ID)
	assert.Equal(t, int64(2), got.Stock)

	require.NoError(t, store.DecrementStock(ctx, p.ID, 2))
	got, _ = store.GetByID(ctx, p.ID)
	assert.Equal(t, int64(0), got.Stock)

	assert.ErrorIs(t, store.DecrementStock(ctx, 999, 1), ErrNotFound)
}

func TestMemoryCarts_GetByIDsOwnership(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	carts := NewMemoryCarts(store)

	mine := domain.CartItem{CustomerID: 1, ProductID: 10, Quantity: 2}
	foreign := domain.CartItem{CustomerID: 2, ProductID: 10, Quantity: 1}
	require.NoError(t, carts.Add(ctx, &mine))
	require.NoError(t, carts.Add(ctx, &foreign))

	out, err := carts.GetByIDs(ctx, 1, []int64{mine.ID})
	require.NoError(t, err)
	assert.Len(t, out, 1)

	// чужая строка в запросе отклоняет выборку целиком
	_, err = carts.GetByIDs(ctx, 1, []int64{mine.ID, foreign.ID})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = carts.GetByIDs(ctx, 1, []int64{mine.ID, 999})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryCarts_DeleteByIDsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	carts := NewMemoryCarts(store)

	it := domain.CartItem{CustomerID: 1, ProductID: 10, Quantity: 2}
	require.NoError(t, carts.Add(ctx, &it))

	err := carts.DeleteByIDs(ctx, []int64{it.ID, 999})
	assert.ErrorIs(t, err, ErrNotFound)
	left, _ := carts.ListByCustomer(ctx, 1)
	assert.Len(t, left, 1, "partial delete must not happen")

	require.NoError(t, carts.DeleteByIDs(ctx, []int64{it.ID}))
	left, _ = carts.ListByCustomer(ctx, 1)
	assert.Empty(t, left)
}

func TestMemoryTx_RollbackRestoresEverything(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	orders := NewMemoryOrders(store)
	carts := NewMemoryCarts(store)
	tx := NewMemoryTx(store)

	p := domain.Product{Name: "A", SKU: "A-1", Price: 10, Stock: 5}
	require.NoError(t, store.Create(ctx, &p))
	it := domain.CartItem{CustomerID: 1, ProductID: p.ID, Quantity: 1}
	require.NoError(t, carts.Add(ctx, &it))

	boom := errors.New("boom")
	err := tx.WithTransaction(ctx, func(ctx context.Context) error {
		o := domain.Order{UUID: "u-1", CustomerID: 1, Status: domain.OrderStatusPaymentPending}
		if err := orders.Create(ctx, &o); err != nil {
			return err
		}
		if err := store.DecrementStock(ctx, p.ID, 3); err != nil {
			return err
		}
		if err := carts.DeleteByIDs(ctx, []int64{it.ID}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	// откат вернул остаток, заказ и корзину
	got, _ := store.GetByID(ctx, p.ID)
	assert.Equal(t, int64(5), got.Stock)
	_, err = orders.GetByID(ctx, 1)
	assert.ErrorIs(t, err, ErrNotFound)
	left, _ := carts.ListByCustomer(ctx, 1)
	assert.Len(t, left, 1)
}

func TestMemoryTx_CommitKeepsWrites(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	orders := NewMemoryOrders(store)
	tx := NewMemoryTx(store)

	p := domain.Product{Name: "A", SKU: "A-1", Price: 10, Stock: 5}
	require.NoError(t, store.Create(ctx, &p))

	var orderID int64
	err := tx.WithTransaction(ctx, func(ctx context.Context) error {
		o := domain.Order{UUID: "u-1", CustomerID: 1, Status: domain.OrderStatusPaymentPending}
		if err := orders.Create(ctx, &o); err != nil {
			return err
		}
		orderID = o.ID
		return store.DecrementStock(ctx, p.ID, 2)
	})
	require.NoError(t, err)

	got, _ := store.GetByID(ctx, p.ID)
	assert.Equal(t, int64(3), got.Stock)
	o, err := orders.GetByID(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, "u-1", o.UUID)
}
