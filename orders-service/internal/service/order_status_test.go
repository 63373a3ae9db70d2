package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fjod/go_backoffice/orders-service/internal/domain"
)

func TestUpdateOrderStatus_TransitionTable(t *testing.T) {
	for _, from := range domain.AllOrderStatuses {
		for _, to := range domain.AllOrderStatuses {
			t.Run(string(from)+"->"+string(to), func(t *testing.T) {
				f := newFixture(t)
				ctx := context.Background()
				customerID := f.store.AddCustomer()
				productID := f.store.AddProduct(domain.CatalogProduct{Price: dec("1"), StockQuantity: 5, IsActive: true})

				order, err := f.svc.CreateOrder(ctx, productOrder(customerID, ItemInput{ProductID: productID, Quantity: 2}))
				require.NoError(t, err)
				f.store.SetStatus(order.ID, from)
				stockBefore := f.store.Stock(productID)

				_, err = f.svc.UpdateOrderStatus(ctx, UpdateOrderStatusInput{OrderID: order.ID, Status: to})

				got, getErr := f.svc.GetOrder(ctx, order.ID)
				require.NoError(t, getErr)

				switch {
				case domain.CanTransitionTo(from, to):
					require.NoError(t, err)
					assert.Equal(t, to, got.Status)
					if to == domain.OrderStatusCancelled {
						assert.Equal(t, stockBefore+2, f.store.Stock(productID))
					} else {
						assert.Equal(t, stockBefore, f.store.Stock(productID))
					}
				case from == domain.OrderStatusCancelled && to == domain.OrderStatusCancelled:
					require.NoError(t, err)
					assert.Equal(t, domain.OrderStatusCancelled, got.Status)
					assert.Equal(t, stockBefore, f.store.Stock(productID))
				default:
					require.ErrorIs(t, err, domain.ErrInvalidStatusTransition)
					assert.Equal(t, from, got.Status, "rejected transition leaves the order unchanged")
					assert.Equal(t, stockBefore, f.store.Stock(productID))
				}
			})
		}
	}
}

func TestUpdateOrderStatus_CancelIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customerID := f.store.AddCustomer()
	p1 := f.store.AddProduct(domain.CatalogProduct{Price: dec("3"), StockQuantity: 10, IsActive: true})
	p2 := f.store.AddProduct(domain.CatalogProduct{Price: dec("4"), StockQuantity: 7, IsActive: true})

	order, err := f.svc.CreateOrder(ctx, productOrder(customerID,
		ItemInput{ProductID: p1, Quantity: 4},
		ItemInput{ProductID: p2, Quantity: 7}))
	require.NoError(t, err)
	assert.Equal(t, 6, f.store.Stock(p1))
	assert.Equal(t, 0, f.store.Stock(p2))

	for range 2 {
		got, err := f.svc.UpdateOrderStatus(ctx, UpdateOrderStatusInput{OrderID: order.ID, Status: domain.OrderStatusCancelled})
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusCancelled, got.Status)
	}

	assert.Equal(t, 10, f.store.Stock(p1))
	assert.Equal(t, 7, f.store.Stock(p2))
	assert.Len(t, f.store.ReleaseCalls, 2)

	statusEvents := 0
	for _, e := range f.store.Outbox {
		if e.EventType == EventOrderStatusChanged {
			statusEvents++
		}
	}
	assert.Equal(t, 1, statusEvents, "the repeated cancel records nothing")
}

func TestUpdateOrderStatus_FailedWriteRollsBackRelease(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customerID := f.store.AddCustomer()
	productID := f.store.AddProduct(domain.CatalogProduct{Price: dec("1"), StockQuantity: 5, IsActive: true})

	order, err := f.svc.CreateOrder(ctx, productOrder(customerID, ItemInput{ProductID: productID, Quantity: 2}))
	require.NoError(t, err)

	f.store.FailOn["UpdateOrder"] = assert.AnError
	_, err = f.svc.UpdateOrderStatus(ctx, UpdateOrderStatusInput{OrderID: order.ID, Status: domain.OrderStatusCancelled})
	require.ErrorIs(t, err, assert.AnError)

	got, err := f.svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, got.Status)
	assert.Equal(t, 3, f.store.Stock(productID), "stock release rolled back with the status write")
}

func TestUpdateOrderStatus_NotesAndValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customerID := f.store.AddCustomer()
	productID := f.store.AddProduct(domain.CatalogProduct{Price: dec("1"), StockQuantity: 5, IsActive: true})
	order, err := f.svc.CreateOrder(ctx, productOrder(customerID, ItemInput{ProductID: productID, Quantity: 1}))
	require.NoError(t, err)

	notes := "customer called to confirm"
	got, err := f.svc.UpdateOrderStatus(ctx, UpdateOrderStatusInput{OrderID: order.ID, Status: "confirmed", Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusConfirmed, got.Status)
	assert.Equal(t, notes, got.Notes)
	require.NotNil(t, got.ConfirmedAt)
	assert.Equal(t, f.now, *got.ConfirmedAt)

	_, err = f.svc.UpdateOrderStatus(ctx, UpdateOrderStatusInput{OrderID: order.ID, Status: "LOST"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.svc.UpdateOrderStatus(ctx, UpdateOrderStatusInput{OrderID: order.ID, Status: domain.OrderStatusDelivered})
	assert.ErrorIs(t, err, domain.ErrInvalidStatusTransition)

	_, err = f.svc.UpdateOrderStatus(ctx, UpdateOrderStatusInput{OrderID: f.svc.newID(), Status: domain.OrderStatusCancelled})
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}
