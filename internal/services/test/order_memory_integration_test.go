package services_test

import (
	"context"
	"io"
	"testing"

	"github.com/avelinor/orders-service/internal/models/po"
	"github.com/avelinor/orders-service/internal/repositories/memory"
	"github.com/avelinor/orders-service/internal/services"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// The in-memory adapters satisfy the same ports as the Postgres ones, so the
// full workflow runs here without a database.
func newMemoryStack(t *testing.T) (*services.OrderCommandService, *services.OrderQueryService, *memory.OutboxRepository) {
	t.Helper()
	logger := log.NewStdLogger(io.Discard)
	orders := memory.NewOrderRepository()
	outbox := memory.NewOutboxRepository()
	cmd := services.NewOrderCommandService(orders, outbox, noopTxManager{}, logger)
	qry := services.NewOrderQueryService(orders, noopTxManager{}, logger)
	return cmd, qry, outbox
}

func TestOrderWorkflowAgainstMemoryAdapters(t *testing.T) {
	cmd, qry, outbox := newMemoryStack(t)
	ctx := context.Background()
	userID := uuid.New()

	created, err := cmd.CreateOrder(ctx, services.CreateOrderInput{
		UserID:   userID,
		Currency: "EUR",
		Items: []services.CreateOrderItem{
			{SKU: "SKU-A", Quantity: 3, UnitPriceMinor: 250},
		},
	})
	require.NoError(t, err)
	require.Equal(t, int64(750), created.TotalMinor)

	paid, err := cmd.MarkOrderPaid(ctx, services.MarkOrderPaidInput{
		OrderID:    created.OrderID,
		PaymentRef: "pay-9",
	})
	require.NoError(t, err)
	require.Equal(t, string(po.OrderStatusPaid), paid.Status)
	require.Equal(t, int64(2), paid.Version)

	detail, err := qry.GetOrder(ctx, created.OrderID)
	require.NoError(t, err)
	require.Equal(t, string(po.OrderStatusPaid), detail.Status)
	require.NotNil(t, detail.PaymentRef)
	require.Equal(t, "pay-9", *detail.PaymentRef)

	events := outbox.ByAggregate(created.OrderID)
	require.Len(t, events, 2)
	require.Equal(t, "order.created", events[0].EventType)
	require.Equal(t, "order.paid", events[1].EventType)
}

func TestCancelPaidOrderAgainstMemoryAdapters(t *testing.T) {
	cmd, _, outbox := newMemoryStack(t)
	ctx := context.Background()

	created, err := cmd.CreateOrder(ctx, services.CreateOrderInput{
		UserID:   uuid.New(),
		Currency: "USD",
		Items:    []services.CreateOrderItem{{SKU: "SKU-B", Quantity: 1, UnitPriceMinor: 400}},
	})
	require.NoError(t, err)

	_, err = cmd.MarkOrderPaid(ctx, services.MarkOrderPaidInput{OrderID: created.OrderID, PaymentRef: "pay-1"})
	require.NoError(t, err)

	reason := "refund requested"
	cancelled, err := cmd.CancelOrder(ctx, services.CancelOrderInput{OrderID: created.OrderID, Reason: &reason})
	require.NoError(t, err)
	require.Equal(t, string(po.OrderStatusPaid), cancelled.PreviousStatus)
	require.Equal(t, string(po.OrderStatusCancelled), cancelled.Status)

	// cancelling twice violates the lifecycle
	_, err = cmd.CancelOrder(ctx, services.CancelOrderInput{OrderID: created.OrderID})
	require.True(t, kerrors.IsConflict(err))

	events := outbox.ByAggregate(created.OrderID)
	require.Len(t, events, 3)
	require.Equal(t, "order.cancelled", events[2].EventType)
}

func TestIdempotentCreateAgainstMemoryAdapters(t *testing.T) {
	cmd, _, outbox := newMemoryStack(t)
	ctx := context.Background()
	userID := uuid.New()
	key := "checkout-1"

	input := services.CreateOrderInput{
		UserID:         userID,
		Currency:       "USD",
		Items:          []services.CreateOrderItem{{SKU: "SKU-C", Quantity: 2, UnitPriceMinor: 150}},
		IdempotencyKey: &key,
	}

	first, err := cmd.CreateOrder(ctx, input)
	require.NoError(t, err)
	require.False(t, first.Reused)

	second, err := cmd.CreateOrder(ctx, input)
	require.NoError(t, err)
	require.True(t, second.Reused)
	require.Equal(t, first.OrderID, second.OrderID)

	require.Len(t, outbox.Events(), 1)
}

func TestListOrdersFiltersAgainstMemoryAdapters(t *testing.T) {
	cmd, qry, _ := newMemoryStack(t)
	ctx := context.Background()
	alice := uuid.New()
	bob := uuid.New()

	for _, user := range []uuid.UUID{alice, alice, bob} {
		_, err := cmd.CreateOrder(ctx, services.CreateOrderInput{
			UserID:   user,
			Currency: "USD",
			Items:    []services.CreateOrderItem{{SKU: "SKU-D", Quantity: 1, UnitPriceMinor: 100}},
		})
		require.NoError(t, err)
	}

	page, err := qry.ListOrders(ctx, services.ListOrdersFilter{UserID: &alice})
	require.NoError(t, err)
	require.Equal(t, int64(2), page.Total)
	for _, summary := range page.Orders {
		require.Equal(t, alice, summary.UserID)
	}

	pending := po.OrderStatusPending
	page, err = qry.ListOrders(ctx, services.ListOrdersFilter{Status: &pending})
	require.NoError(t, err)
	require.Equal(t, int64(3), page.Total)
}

// A losing duplicate insert must not poison the session: the adapter reports
// the conflict as a sentinel and the same session can still re-select the
// winning row. The Postgres adapter upholds this with ON CONFLICT DO NOTHING
// instead of letting a unique violation abort the transaction.
func TestInsertRaceLoserReadsWinnerOnSameSession(t *testing.T) {
	orders := memory.NewOrderRepository()
	ctx := context.Background()
	sess := noopSession{}
	userID := uuid.New()
	key := "req-77"

	winner := pendingOrder(userID)
	winner.IdempotencyKey = &key
	_, err := orders.Insert(ctx, sess, winner)
	require.NoError(t, err)

	loser := pendingOrder(userID)
	loser.IdempotencyKey = &key
	_, err = orders.Insert(ctx, sess, loser)
	require.ErrorIs(t, err, services.ErrIdempotencyConflict)

	got, err := orders.FindByIdempotencyKey(ctx, sess, userID, key)
	require.NoError(t, err)
	require.Equal(t, winner.OrderID, got.OrderID)
}
