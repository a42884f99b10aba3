package service_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"

	"github.com/linemk/storefront/internal/domain/models"
)

var decimalEqual = cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })

func TestCheckout_ScarcityPriceCapturedAndCartCleared(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	seller := e.store.addUser(true)
	buyer := e.store.addUser(false)
	product := e.store.addProduct(seller.ID, "10.00", 3)
	e.store.putInCart(buyer.ID, product.ID, 2)

	order, err := e.engine.Checkout(ctx, buyer.ID)
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.True(t, decimal.RequireFromString("24.00").Equal(order.TotalPrice), "total %s", order.TotalPrice)

	want := []*models.OrderItem{{
		OrderID:         order.ID,
		ProductID:       product.ID,
		ProductTitle:    product.Title,
		SellerID:        seller.ID,
		Quantity:        2,
		PriceAtPurchase: decimal.RequireFromString("12.00"),
		Status:          models.ItemStatusPending,
	}}
	if diff := cmp.Diff(want, order.Items, decimalEqual, cmpopts.IgnoreFields(models.OrderItem{}, "ID", "CreatedAt")); diff != "" {
		t.Errorf("order items mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, 1, e.store.inventory(t, product.ID))
	assert.Empty(t, e.store.cartOf(buyer.ID))
	assert.Contains(t, e.scrape(t), `storefront_orders_checkouts_total{result="ok"} 1`)
}

func TestCheckout_PriceTakenBeforeReservation(t *testing.T) {
	e := newEnv(t)
	seller := e.store.addUser(true)
	buyer := e.store.addUser(false)
	// остаток 6 не дефицитный, после покупки станет 1, но цена фиксируется до списания
	product := e.store.addProduct(seller.ID, "10.00", 6)
	e.store.putInCart(buyer.ID, product.ID, 5)

	order, err := e.engine.Checkout(context.Background(), buyer.ID)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("10.00").Equal(order.Items[0].PriceAtPurchase))
	assert.True(t, decimal.RequireFromString("50.00").Equal(order.TotalPrice))
	assert.Equal(t, 1, e.store.inventory(t, product.ID))
}

func TestCheckout_EmptyCart(t *testing.T) {
	e := newEnv(t)
	buyer := e.store.addUser(false)

	_, err := e.engine.Checkout(context.Background(), buyer.ID)
	assert.ErrorIs(t, err, models.ErrEmptyCart)
	assert.Equal(t, 0, e.store.orderCount())
	assert.Contains(t, e.scrape(t), `storefront_orders_checkouts_total{result="empty_cart"} 1`)
}

func TestCheckout_InsufficientStockAppliesNothing(t *testing.T) {
	e := newEnv(t)
	seller := e.store.addUser(true)
	buyer := e.store.addUser(false)
	a := e.store.addProduct(seller.ID, "5.00", 5)
	b := e.store.addProduct(seller.ID, "7.50", 1)
	e.store.putInCart(buyer.ID, a.ID, 2)
	e.store.putInCart(buyer.ID, b.ID, 3)

	_, err := e.engine.Checkout(context.Background(), buyer.ID)
	require.Error(t, err)

	var stockErr *models.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, b.ID, stockErr.ProductID)
	assert.Equal(t, 3, stockErr.Requested)
	assert.Equal(t, 1, stockErr.Available)
	assert.ErrorIs(t, err, models.ErrInsufficientStock)

	assert.Equal(t, 5, e.store.inventory(t, a.ID))
	assert.Equal(t, 1, e.store.inventory(t, b.ID))
	assert.Equal(t, 0, e.store.orderCount())
	assert.Equal(t, map[int64]int{a.ID: 2, b.ID: 3}, e.store.cartOf(buyer.ID))
}

func TestCheckout_FailureAfterReservationRollsBack(t *testing.T) {
	e := newEnv(t)
	seller := e.store.addUser(true)
	buyer := e.store.addUser(false)
	product := e.store.addProduct(seller.ID, "3.00", 10)
	e.store.putInCart(buyer.ID, product.ID, 4)
	e.store.failCreateOrder = errors.New("disk full")

	_, err := e.engine.Checkout(context.Background(), buyer.ID)
	require.Error(t, err)

	e.store.failCreateOrder = nil
	assert.Equal(t, 10, e.store.inventory(t, product.ID))
	assert.Equal(t, map[int64]int{product.ID: 4}, e.store.cartOf(buyer.ID))
}

func TestCheckout_WithdrawnProduct(t *testing.T) {
	e := newEnv(t)
	seller := e.store.addUser(true)
	buyer := e.store.addUser(false)
	product := e.store.addProduct(seller.ID, "3.00", 10)
	e.store.putInCart(buyer.ID, product.ID, 1)
	require.NoError(t, e.seller.DeleteProduct(context.Background(), seller.ID, product.ID))

	_, err := e.engine.Checkout(context.Background(), buyer.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.Equal(t, 10, e.store.inventory(t, product.ID))
}

// memTx выполняет транзакции по одной, поэтому тест проверяет логику движка при
// последовательном исполнении. Блокировки базы покрыты в inventory_test.go.
func TestCheckout_ConcurrentLastUnit(t *testing.T) {
	defer goleak.VerifyNone(t)

	e := newEnv(t)
	seller := e.store.addUser(true)
	product := e.store.addProduct(seller.ID, "20.00", 1)

	const buyers = 8
	ids := make([]int64, buyers)
	for i := range ids {
		ids[i] = e.store.addUser(false).ID
		e.store.putInCart(ids[i], product.ID, 1)
	}

	var succeeded, outOfStock atomic.Int32
	g, ctx := errgroup.WithContext(context.Background())
	for _, id := range ids {
		g.Go(func() error {
			_, err := e.engine.Checkout(ctx, id)
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, models.ErrInsufficientStock):
				outOfStock.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(1), succeeded.Load())
	assert.Equal(t, int32(buyers-1), outOfStock.Load())
	assert.Equal(t, 0, e.store.inventory(t, product.ID))
	assert.Equal(t, 1, e.store.orderCount())
}

func TestCreateOrder_Lines(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	seller := e.store.addUser(true)
	buyer := e.store.addUser(false)
	a := e.store.addProduct(seller.ID, "2.50", 20)
	b := e.store.addProduct(seller.ID, "1.00", 20)
	e.store.putInCart(buyer.ID, a.ID, 1)

	t.Run("duplicates merged", func(t *testing.T) {
		order, err := e.engine.CreateOrder(ctx, buyer.ID, []models.CartLine{
			{ProductID: b.ID, Quantity: 1},
			{ProductID: a.ID, Quantity: 2},
			{ProductID: b.ID, Quantity: 3},
		})
		require.NoError(t, err)
		require.Len(t, order.Items, 2)
		assert.Equal(t, a.ID, order.Items[0].ProductID)
		assert.Equal(t, 4, order.Items[1].Quantity)
		assert.True(t, decimal.RequireFromString("9.00").Equal(order.TotalPrice))
		// корзина не трогается
		assert.Equal(t, map[int64]int{a.ID: 1}, e.store.cartOf(buyer.ID))
	})

	t.Run("empty", func(t *testing.T) {
		_, err := e.engine.CreateOrder(ctx, buyer.ID, nil)
		assert.ErrorIs(t, err, models.ErrEmptyCart)
	})

	t.Run("non-positive quantity", func(t *testing.T) {
		_, err := e.engine.CreateOrder(ctx, buyer.ID, []models.CartLine{{ProductID: a.ID, Quantity: 0}})
		assert.ErrorIs(t, err, models.ErrInvalidQuantity)
	})

	t.Run("unknown product", func(t *testing.T) {
		_, err := e.engine.CreateOrder(ctx, buyer.ID, []models.CartLine{{ProductID: 9999, Quantity: 1}})
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}

func TestCancelOrder(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	seller := e.store.addUser(true)
	buyer := e.store.addUser(false)
	stranger := e.store.addUser(false)
	product := e.store.addProduct(seller.ID, "4.00", 8)

	order, err := e.engine.CreateOrder(ctx, buyer.ID, []models.CartLine{{ProductID: product.ID, Quantity: 3}})
	require.NoError(t, err)
	require.Equal(t, 5, e.store.inventory(t, product.ID))

	_, err = e.engine.CancelOrder(ctx, stranger.ID, order.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	cancelled, err := e.engine.CancelOrder(ctx, buyer.ID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, cancelled.Status)
	assert.Equal(t, 8, e.store.inventory(t, product.ID))

	_, err = e.engine.CancelOrder(ctx, buyer.ID, order.ID)
	assert.ErrorIs(t, err, models.ErrInvalidState)
	assert.Equal(t, 8, e.store.inventory(t, product.ID))
}

func TestCancelOrder_PaidOrderRejected(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	seller := e.store.addUser(true)
	buyer := e.store.addUser(false)
	product := e.store.addProduct(seller.ID, "4.00", 8)

	order, err := e.engine.CreateOrder(ctx, buyer.ID, []models.CartLine{{ProductID: product.ID, Quantity: 1}})
	require.NoError(t, err)
	_, err = e.payments.Pay(ctx, buyer.ID, order.ID)
	require.NoError(t, err)

	_, err = e.engine.CancelOrder(ctx, buyer.ID, order.ID)
	assert.ErrorIs(t, err, models.ErrInvalidState)
	assert.Equal(t, 7, e.store.inventory(t, product.ID))
}

func TestListAndGetOrders(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	seller := e.store.addUser(true)
	buyer := e.store.addUser(false)
	other := e.store.addUser(false)
	product := e.store.addProduct(seller.ID, "1.00", 50)

	first, err := e.engine.CreateOrder(ctx, buyer.ID, []models.CartLine{{ProductID: product.ID, Quantity: 1}})
	require.NoError(t, err)
	second, err := e.engine.CreateOrder(ctx, buyer.ID, []models.CartLine{{ProductID: product.ID, Quantity: 2}})
	require.NoError(t, err)

	orders, err := e.engine.ListOrders(ctx, buyer.ID)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, second.ID, orders[0].ID)
	assert.Equal(t, first.ID, orders[1].ID)
	assert.Len(t, orders[0].Items, 1)

	got, err := e.engine.GetOrder(ctx, buyer.ID, first.ID)
	require.NoError(t, err)
	assert.Equal(t, product.Title, got.Items[0].ProductTitle)

	_, err = e.engine.GetOrder(ctx, other.ID, first.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}
