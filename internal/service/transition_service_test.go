package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"camarero/internal/domain"
	"camarero/internal/events"
	"camarero/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestTransitionService_FullLifecycle(t *testing.T) {
	eachBackend(t, func(t *testing.T, h *harness) {
		ctx := context.Background()
		o := h.newOrder(t, domain.DestinationKitchen, domain.DestinationBar)
		require.Equal(t, domain.OrderStatusReceived, o.Status)
		food, drink := o.Items[0].ID, o.Items[1].ID

		res := h.advance(t, kitchen, food, domain.ItemStatusPreparing)
		assert.Equal(t, domain.OrderStatusInProgress, res.Order.Status)
		require.NotNil(t, res.Order.ConfirmedAt)
		confirmed := *res.Order.ConfirmedAt

		res = h.advance(t, kitchen, food, domain.ItemStatusReady)
		assert.Equal(t, domain.OrderStatusPartiallyReady, res.Order.Status)
		assert.NotNil(t, res.Item.PreparedAt)

		res = h.advance(t, bar, drink, domain.ItemStatusPreparing)
		assert.Equal(t, domain.OrderStatusPartiallyReady, res.Order.Status)
		res = h.advance(t, bar, drink, domain.ItemStatusReady)
		assert.Equal(t, domain.OrderStatusAllItemsReady, res.Order.Status)

		res = h.advance(t, waiter, food, domain.ItemStatusServed)
		assert.Equal(t, domain.OrderStatusAllItemsReady, res.Order.Status)
		assert.Equal(t, "w1", res.Item.ServedBy)
		res = h.advance(t, waiter, drink, domain.ItemStatusServed)
		assert.Equal(t, domain.OrderStatusCompleted, res.Order.Status)
		assert.True(t, res.Order.ConfirmedAt.Equal(confirmed), "confirmed_at set once")

		billed, err := h.svc.RequestBill(ctx, waiter, o.ID, "CARD")
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusPendingPayment, billed.Status)
		assert.True(t, billed.BillRequested)
		assert.NotNil(t, billed.BilledAt)

		paid, err := h.svc.MarkPaid(ctx, waiter, o.ID, PaymentDetails{Reference: "RCPT-1", Method: "card"})
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusPaid, paid.Status)
		assert.Equal(t, "RCPT-1", paid.PaymentReference)
		assert.Equal(t, "CARD", paid.PaymentMethod)
		assert.NotNil(t, paid.PaidAt)
		assert.True(t, paid.FinalAmount.Equal(decimal.NewFromInt(20)))

		_, err = h.svc.CancelItem(ctx, admin, food, domain.ItemStatusPending)
		assert.ErrorIs(t, err, domain.ErrOrderClosed)
		_, err = h.svc.MarkPaid(ctx, waiter, o.ID, PaymentDetails{Reference: "RCPT-2"})
		assert.ErrorIs(t, err, domain.ErrOrderClosed)
	})
}

func TestTransitionService_DoubleServeSingleWinner(t *testing.T) {
	eachBackend(t, func(t *testing.T, h *harness) {
		ctx := context.Background()
		o := h.newOrder(t, domain.DestinationKitchen, domain.DestinationKitchen)
		item := o.Items[0].ID
		h.advance(t, kitchen, item, domain.ItemStatusPreparing)
		h.advance(t, kitchen, item, domain.ItemStatusReady)

		const devices = 8
		var wins, stale atomic.Int32
		var g errgroup.Group
		for i := 0; i < devices; i++ {
			g.Go(func() error {
				_, err := h.svc.AdvanceItem(ctx, waiter, AdvanceRequest{ItemID: item, Target: domain.ItemStatusServed})
				switch {
				case err == nil:
					wins.Add(1)
				case errors.Is(err, domain.ErrStaleState):
					stale.Add(1)
				default:
					return err
				}
				return nil
			})
		}
		require.NoError(t, g.Wait())
		assert.EqualValues(t, 1, wins.Load())
		assert.EqualValues(t, devices-1, stale.Load())

		served := 0
		for _, ev := range h.pub.Events() {
			if ev.ItemID == item && ev.To == string(domain.ItemStatusServed) {
				served++
			}
		}
		assert.Equal(t, 1, served)
	})
}

func TestTransitionService_ConcurrentStationsConverge(t *testing.T) {
	eachBackend(t, func(t *testing.T, h *harness) {
		ctx := context.Background()
		o := h.newOrder(t, domain.DestinationKitchen, domain.DestinationBar)
		h.advance(t, kitchen, o.Items[0].ID, domain.ItemStatusPreparing)
		h.advance(t, bar, o.Items[1].ID, domain.ItemStatusPreparing)

		var g errgroup.Group
		g.Go(func() error {
			_, err := h.svc.AdvanceItem(ctx, kitchen, AdvanceRequest{ItemID: o.Items[0].ID, Target: domain.ItemStatusReady})
			return err
		})
		g.Go(func() error {
			_, err := h.svc.AdvanceItem(ctx, bar, AdvanceRequest{ItemID: o.Items[1].ID, Target: domain.ItemStatusReady})
			return err
		})
		require.NoError(t, g.Wait())

		got, err := h.svc.GetOrder(ctx, waiter, o.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusAllItemsReady, got.Status)
	})
}

func TestTransitionService_OrderIndependentAggregation(t *testing.T) {
	eachBackend(t, func(t *testing.T, h *harness) {
		a := h.newOrder(t, domain.DestinationKitchen, domain.DestinationBar)
		b := h.newOrder(t, domain.DestinationKitchen, domain.DestinationBar)

		h.advance(t, kitchen, a.Items[0].ID, domain.ItemStatusPreparing)
		h.advance(t, kitchen, a.Items[0].ID, domain.ItemStatusReady)
		resA := h.advance(t, bar, a.Items[1].ID, domain.ItemStatusPreparing)

		h.advance(t, bar, b.Items[1].ID, domain.ItemStatusPreparing)
		h.advance(t, kitchen, b.Items[0].ID, domain.ItemStatusPreparing)
		resB := h.advance(t, kitchen, b.Items[0].ID, domain.ItemStatusReady)

		assert.Equal(t, resA.Order.Status, resB.Order.Status)
		assert.Equal(t, domain.OrderStatusPartiallyReady, resA.Order.Status)
	})
}

func TestTransitionService_CancellationDominance(t *testing.T) {
	eachBackend(t, func(t *testing.T, h *harness) {
		ctx := context.Background()

		all := h.newOrder(t, domain.DestinationKitchen, domain.DestinationKitchen)
		_, err := h.svc.CancelItem(ctx, kitchen, all.Items[0].ID, "")
		require.NoError(t, err)
		res, err := h.svc.CancelItem(ctx, admin, all.Items[1].ID, domain.ItemStatusPending)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusCancelled, res.Order.Status)
		assert.True(t, res.Order.FinalAmount.IsZero())

		mixed := h.newOrder(t, domain.DestinationKitchen, domain.DestinationBar)
		_, err = h.svc.CancelItem(ctx, bar, mixed.Items[1].ID, "")
		require.NoError(t, err)
		h.advance(t, kitchen, mixed.Items[0].ID, domain.ItemStatusPreparing)
		h.advance(t, kitchen, mixed.Items[0].ID, domain.ItemStatusReady)
		res = h.advance(t, waiter, mixed.Items[0].ID, domain.ItemStatusServed)
		assert.Equal(t, domain.OrderStatusCompleted, res.Order.Status)
		assert.True(t, res.Order.TotalAmount.Equal(decimal.NewFromInt(10)))
	})
}

func TestTransitionService_TerminalItems(t *testing.T) {
	eachBackend(t, func(t *testing.T, h *harness) {
		ctx := context.Background()
		o := h.newOrder(t, domain.DestinationKitchen, domain.DestinationKitchen)
		item := o.Items[0].ID
		h.advance(t, kitchen, item, domain.ItemStatusPreparing)
		h.advance(t, kitchen, item, domain.ItemStatusReady)
		h.advance(t, waiter, item, domain.ItemStatusServed)

		_, err := h.svc.AdvanceItem(ctx, admin, AdvanceRequest{ItemID: item, Target: domain.ItemStatusCancelled, Expected: domain.ItemStatusServed})
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
		_, err = h.svc.CancelItem(ctx, admin, item, "")
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)

		// без expected из терминального статуса ребра нет
		_, err = h.svc.AdvanceItem(ctx, kitchen, AdvanceRequest{ItemID: item, Target: domain.ItemStatusPreparing})
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
		_, err = h.svc.AdvanceItem(ctx, kitchen, AdvanceRequest{ItemID: item, Target: domain.ItemStatusReady})
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)

		// повторная подача той же позиции: гонку проиграл второй официант
		_, err = h.svc.AdvanceItem(ctx, waiter, AdvanceRequest{ItemID: item, Target: domain.ItemStatusServed})
		assert.ErrorIs(t, err, domain.ErrStaleState)

		_, err = h.svc.AdvanceItem(ctx, kitchen, AdvanceRequest{ItemID: o.Items[1].ID, Target: domain.ItemStatusServed, Expected: domain.ItemStatusPending})
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)

		_, err = h.svc.CancelItem(ctx, kitchen, o.Items[1].ID, "")
		require.NoError(t, err)
		_, err = h.svc.AdvanceItem(ctx, kitchen, AdvanceRequest{ItemID: o.Items[1].ID, Target: domain.ItemStatusReady})
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
		_, err = h.svc.AdvanceItem(ctx, kitchen, AdvanceRequest{ItemID: o.Items[1].ID, Target: domain.ItemStatusPreparing})
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)

		it, err := h.store.GetItem(ctx, item)
		require.NoError(t, err)
		assert.Equal(t, domain.ItemStatusServed, it.Status)
	})
}

func TestTransitionService_Authorization(t *testing.T) {
	eachBackend(t, func(t *testing.T, h *harness) {
		ctx := context.Background()
		o := h.newOrder(t, domain.DestinationKitchen, domain.DestinationBar)
		food, drink := o.Items[0].ID, o.Items[1].ID

		cases := []struct {
			name  string
			actor domain.Actor
			req   AdvanceRequest
		}{
			{"waiter cannot start cooking", waiter, AdvanceRequest{ItemID: food, Target: domain.ItemStatusPreparing}},
			{"bar cannot touch kitchen item", bar, AdvanceRequest{ItemID: food, Target: domain.ItemStatusPreparing}},
			{"kitchen cannot touch bar item", kitchen, AdvanceRequest{ItemID: drink, Target: domain.ItemStatusPreparing}},
			{"customer cannot cancel item", guest, AdvanceRequest{ItemID: food, Target: domain.ItemStatusCancelled}},
			{"waiter cannot cancel item", waiter, AdvanceRequest{ItemID: food, Target: domain.ItemStatusCancelled}},
			{"admin cannot cook", admin, AdvanceRequest{ItemID: food, Target: domain.ItemStatusPreparing}},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := h.svc.AdvanceItem(ctx, tc.actor, tc.req)
				assert.ErrorIs(t, err, domain.ErrUnauthorized)
			})
		}

		h.advance(t, kitchen, food, domain.ItemStatusPreparing)
		h.advance(t, kitchen, food, domain.ItemStatusReady)
		_, err := h.svc.AdvanceItem(ctx, kitchen, AdvanceRequest{ItemID: food, Target: domain.ItemStatusServed})
		assert.ErrorIs(t, err, domain.ErrUnauthorized)

		_, err = h.svc.CancelOrder(ctx, guest, o.ID, "")
		assert.ErrorIs(t, err, domain.ErrInvalidTransition, "partially ready order is not cancellable")

		fresh := h.newOrder(t, domain.DestinationKitchen)
		_, err = h.svc.CancelOrder(ctx, kitchen, fresh.ID, "")
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
		_, err = h.svc.CancelOrder(ctx, guest, fresh.ID, "")
		assert.ErrorIs(t, err, domain.ErrUnauthorized)

		// отдельная станция по явному тегу
		other := h.newOrder(t, domain.DestinationOther)
		_, err = h.svc.AdvanceItem(ctx, kitchen, AdvanceRequest{ItemID: other.Items[0].ID, Target: domain.ItemStatusPreparing})
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
		station := domain.Actor{TenantID: tenant, UserID: "s1", Role: domain.RoleKitchenStaff, Station: "other"}
		h.advance(t, station, other.Items[0].ID, domain.ItemStatusPreparing)
	})
}

func TestTransitionService_TenantIsolation(t *testing.T) {
	eachBackend(t, func(t *testing.T, h *harness) {
		ctx := context.Background()
		o := h.newOrder(t, domain.DestinationKitchen)
		stranger := domain.Actor{TenantID: "cafe-2", UserID: "k9", Role: domain.RoleKitchenStaff}

		_, err := h.svc.AdvanceItem(ctx, stranger, AdvanceRequest{ItemID: o.Items[0].ID, Target: domain.ItemStatusPreparing})
		assert.ErrorIs(t, err, domain.ErrNotFound)
		_, err = h.svc.GetOrder(ctx, stranger, o.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		_, err = h.svc.History(ctx, stranger, o.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		_, err = h.svc.CancelOrder(ctx, domain.Actor{TenantID: "cafe-2", Role: domain.RoleBusinessAdmin}, o.ID, "")
		assert.ErrorIs(t, err, domain.ErrNotFound)

		queue, err := h.queues.KitchenQueue(ctx, "cafe-2", domain.DestinationKitchen, nil)
		require.NoError(t, err)
		assert.Empty(t, queue)

		it, err := h.store.GetItem(ctx, o.Items[0].ID)
		require.NoError(t, err)
		assert.Equal(t, domain.ItemStatusPending, it.Status)
	})
}

func TestTransitionService_CancelOrderCascade(t *testing.T) {
	eachBackend(t, func(t *testing.T, h *harness) {
		ctx := context.Background()
		o := h.newOrder(t, domain.DestinationKitchen, domain.DestinationBar)
		h.advance(t, kitchen, o.Items[0].ID, domain.ItemStatusPreparing)

		_, err := h.svc.CancelOrder(ctx, waiter, o.ID, domain.OrderStatusReceived)
		assert.ErrorIs(t, err, domain.ErrStaleState)
		// отказ не оставляет частично отменённых позиций
		before, err := h.store.GetOrder(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.ItemStatusPreparing, before.Items[0].Status)
		assert.Equal(t, domain.ItemStatusPending, before.Items[1].Status)

		out, err := h.svc.CancelOrder(ctx, waiter, o.ID, "")
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusCancelled, out.Status)
		for _, it := range out.Items {
			assert.Equal(t, domain.ItemStatusCancelled, it.Status)
		}
		assert.True(t, out.FinalAmount.IsZero())

		got, err := h.svc.GetOrder(ctx, admin, o.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusCancelled, got.Status)
		for _, it := range got.Items {
			assert.Equal(t, domain.ItemStatusCancelled, it.Status)
		}

		_, err = h.svc.CancelOrder(ctx, admin, o.ID, "")
		assert.ErrorIs(t, err, domain.ErrOrderClosed)
		_, err = h.svc.AdvanceItem(ctx, kitchen, AdvanceRequest{ItemID: o.Items[0].ID, Target: domain.ItemStatusReady})
		assert.ErrorIs(t, err, domain.ErrOrderClosed)

		cancelled := map[string]bool{}
		for _, ev := range h.pub.Events() {
			if ev.Kind == events.KindItem && ev.To == string(domain.ItemStatusCancelled) {
				cancelled[ev.ItemID] = true
			}
		}
		assert.Len(t, cancelled, 2)

		ready := h.newOrder(t, domain.DestinationKitchen, domain.DestinationBar)
		h.advance(t, bar, ready.Items[1].ID, domain.ItemStatusPreparing)
		h.advance(t, bar, ready.Items[1].ID, domain.ItemStatusReady)
		_, err = h.svc.CancelOrder(ctx, admin, ready.ID, "")
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
		kept, err := h.store.GetOrder(ctx, ready.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.ItemStatusPending, kept.Items[0].Status)
		assert.Equal(t, domain.ItemStatusReady, kept.Items[1].Status)
	})
}

func TestTransitionService_CancelRacesWithStation(t *testing.T) {
	eachBackend(t, func(t *testing.T, h *harness) {
		ctx := context.Background()
		o := h.newOrder(t, domain.DestinationKitchen, domain.DestinationKitchen)
		h.advance(t, kitchen, o.Items[0].ID, domain.ItemStatusPreparing)

		var cancelErr, readyErr error
		var g errgroup.Group
		g.Go(func() error {
			_, cancelErr = h.svc.CancelOrder(ctx, admin, o.ID, domain.OrderStatusInProgress)
			return nil
		})
		g.Go(func() error {
			_, readyErr = h.svc.AdvanceItem(ctx, kitchen, AdvanceRequest{ItemID: o.Items[0].ID, Target: domain.ItemStatusReady})
			return nil
		})
		require.NoError(t, g.Wait())

		got, err := h.svc.GetOrder(ctx, admin, o.ID)
		require.NoError(t, err)
		if cancelErr == nil {
			assert.ErrorIs(t, readyErr, domain.ErrOrderClosed)
			assert.Equal(t, domain.OrderStatusCancelled, got.Status)
			for _, it := range got.Items {
				assert.Equal(t, domain.ItemStatusCancelled, it.Status)
			}
			return
		}
		require.NoError(t, readyErr)
		assert.ErrorIs(t, cancelErr, domain.ErrStaleState)
		assert.Equal(t, domain.OrderStatusPartiallyReady, got.Status)
	})
}

func TestTransitionService_BillAndPayment(t *testing.T) {
	eachBackend(t, func(t *testing.T, h *harness) {
		ctx := context.Background()
		o := h.newOrder(t, domain.DestinationKitchen)

		_, err := h.svc.RequestBill(ctx, waiter, o.ID, "")
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
		_, err = h.svc.MarkPaid(ctx, waiter, o.ID, PaymentDetails{Reference: "R1"})
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)

		h.serveAll(t, o)

		_, err = h.svc.RequestBill(ctx, kitchen, o.ID, "")
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
		billed, err := h.svc.RequestBill(ctx, guest, o.ID, "CASH")
		require.NoError(t, err)
		assert.Equal(t, "CASH", billed.PaymentPreference)

		_, err = h.svc.RequestBill(ctx, waiter, o.ID, "")
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)

		_, err = h.svc.MarkPaid(ctx, guest, o.ID, PaymentDetails{Reference: "R1"})
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
		_, err = h.svc.MarkPaid(ctx, waiter, o.ID, PaymentDetails{})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)

		paid, err := h.svc.MarkPaid(ctx, admin, o.ID, PaymentDetails{Reference: "R1"})
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusPaid, paid.Status)
		assert.Equal(t, "a1", paid.PaidBy)

		// пересчёт после оплаты ничего не меняет
		again, err := h.orders.RecomputeAndPersist(ctx, o.ID, "system")
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusPaid, again.Status)
		assert.Equal(t, paid.Version, again.Version)
	})
}

func TestTransitionService_AddItemsReopensOrder(t *testing.T) {
	eachBackend(t, func(t *testing.T, h *harness) {
		ctx := context.Background()
		dessert := []NewOrderItem{{Name: "flan", Quantity: 2, UnitPrice: decimal.RequireFromString("4.50")}}

		received := h.newOrder(t, domain.DestinationBar)
		out, err := h.svc.AddItems(ctx, guest, received.ID, dessert)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusReceived, out.Status)
		require.Len(t, out.Items, 2)
		assert.Equal(t, domain.DestinationKitchen, out.Items[1].KDSDestination)
		assert.True(t, out.TotalAmount.Equal(decimal.NewFromInt(19)))

		completed := h.newOrder(t, domain.DestinationKitchen)
		require.Equal(t, domain.OrderStatusCompleted, h.serveAll(t, completed).Status)
		out, err = h.svc.AddItems(ctx, waiter, completed.ID, dessert)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusPartiallyReady, out.Status)
		assert.False(t, out.BillRequested)
		assert.True(t, out.FinalAmount.Equal(decimal.NewFromInt(19)))

		queue, err := h.queues.KitchenQueue(ctx, tenant, domain.DestinationKitchen, nil)
		require.NoError(t, err)
		found := false
		for _, q := range queue {
			if q.ItemID == out.Items[1].ID {
				found = true
			}
		}
		assert.True(t, found, "added item is on the kitchen screen")

		billed := h.newOrder(t, domain.DestinationKitchen)
		h.serveAll(t, billed)
		_, err = h.svc.RequestBill(ctx, waiter, billed.ID, "CARD")
		require.NoError(t, err)
		out, err = h.svc.AddItems(ctx, guest, billed.ID, dessert)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusPartiallyReady, out.Status)

		stored, err := h.store.GetOrder(ctx, billed.ID)
		require.NoError(t, err)
		assert.False(t, stored.BillRequested)
		assert.Nil(t, stored.BilledAt)
		assert.Empty(t, stored.PaymentPreference)

		// доеденный дозаказ возвращает заказ в COMPLETED, а не в ожидание оплаты
		added := out.Items[1].ID
		h.advance(t, kitchen, added, domain.ItemStatusPreparing)
		h.advance(t, kitchen, added, domain.ItemStatusReady)
		res := h.advance(t, waiter, added, domain.ItemStatusServed)
		assert.Equal(t, domain.OrderStatusCompleted, res.Order.Status)
		rebilled, err := h.svc.RequestBill(ctx, waiter, billed.ID, "CASH")
		require.NoError(t, err)
		assert.NotNil(t, rebilled.BilledAt)

		history, err := h.svc.History(ctx, waiter, billed.ID)
		require.NoError(t, err)
		logged := false
		for _, e := range history {
			if e.ItemID == added && e.From == "" && e.To == string(domain.ItemStatusPending) {
				logged = true
			}
		}
		assert.True(t, logged, "added item is in the status log")
	})
}

func TestTransitionService_AddItemsRejected(t *testing.T) {
	eachBackend(t, func(t *testing.T, h *harness) {
		ctx := context.Background()
		extra := []NewOrderItem{{Name: "bread", Quantity: 1, UnitPrice: decimal.NewFromInt(2)}}

		o := h.newOrder(t, domain.DestinationKitchen)
		_, err := h.svc.AddItems(ctx, kitchen, o.ID, extra)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
		_, err = h.svc.AddItems(ctx, waiter, o.ID, nil)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		_, err = h.svc.AddItems(ctx, waiter, o.ID, []NewOrderItem{{Name: "bread", Quantity: 0}})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		other := domain.Actor{TenantID: "cafe-2", UserID: "w9", Role: domain.RoleWaiter}
		_, err = h.svc.AddItems(ctx, other, o.ID, extra)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		h.serveAll(t, o)
		_, err = h.svc.RequestBill(ctx, waiter, o.ID, "")
		require.NoError(t, err)
		paid, err := h.svc.MarkPaid(ctx, waiter, o.ID, PaymentDetails{Reference: "R1"})
		require.NoError(t, err)
		_, err = h.svc.AddItems(ctx, guest, o.ID, extra)
		assert.ErrorIs(t, err, domain.ErrOrderClosed)

		cancelled := h.newOrder(t, domain.DestinationKitchen)
		_, err = h.svc.CancelOrder(ctx, waiter, cancelled.ID, "")
		require.NoError(t, err)
		_, err = h.svc.AddItems(ctx, waiter, cancelled.ID, extra)
		assert.ErrorIs(t, err, domain.ErrOrderClosed)

		got, err := h.store.GetOrder(ctx, o.ID)
		require.NoError(t, err)
		assert.Len(t, got.Items, 1)
		assert.True(t, got.FinalAmount.Equal(paid.FinalAmount))
	})
}

func TestOrderStore_RecomputeIsIdempotent(t *testing.T) {
	eachBackend(t, func(t *testing.T, h *harness) {
		ctx := context.Background()
		o := h.newOrder(t, domain.DestinationKitchen)
		first, err := h.orders.RecomputeAndPersist(ctx, o.ID, "system")
		require.NoError(t, err)
		second, err := h.orders.RecomputeAndPersist(ctx, o.ID, "system")
		require.NoError(t, err)
		assert.Equal(t, first.Version, second.Version)
		assert.Equal(t, domain.OrderStatusReceived, second.Status)

		_, err = h.orders.RecomputeAndPersist(ctx, "missing", "system")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestTransitionService_RequestBillReconcilesLaggingStatus(t *testing.T) {
	eachBackend(t, func(t *testing.T, h *harness) {
		ctx := context.Background()
		o := h.newOrder(t, domain.DestinationKitchen)

		// позиция дошла до SERVED, а пересчёт заказа не выполнялся
		steps := []domain.ItemStatus{domain.ItemStatusPending, domain.ItemStatusPreparing, domain.ItemStatusReady, domain.ItemStatusServed}
		for i := 1; i < len(steps); i++ {
			_, err := h.store.UpdateItemStatus(ctx, repository.ItemStatusUpdate{
				ItemID: o.Items[0].ID, Expected: steps[i-1], Next: steps[i], At: time.Now(), By: "w1",
			})
			require.NoError(t, err)
		}
		stored, err := h.store.GetOrder(ctx, o.ID)
		require.NoError(t, err)
		require.Equal(t, domain.OrderStatusReceived, stored.Status)

		_, err = h.svc.RequestBill(ctx, kitchen, o.ID, "")
		assert.ErrorIs(t, err, domain.ErrUnauthorized)

		billed, err := h.svc.RequestBill(ctx, waiter, o.ID, "CARD")
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusPendingPayment, billed.Status)
		assert.True(t, billed.BillRequested)
	})
}

func TestTransitionService_EventsAndHistory(t *testing.T) {
	eachBackend(t, func(t *testing.T, h *harness) {
		ctx := context.Background()
		o := h.newOrder(t, domain.DestinationBar)
		h.advance(t, bar, o.Items[0].ID, domain.ItemStatusPreparing)

		evs := h.pub.Events()
		require.Len(t, evs, 2)
		assert.Equal(t, events.KindItem, evs[0].Kind)
		assert.Equal(t, domain.DestinationBar, evs[0].KDSDestination)
		assert.Equal(t, "b1", evs[0].ChangedBy)
		assert.Equal(t, events.KindOrder, evs[1].Kind)
		assert.Equal(t, string(domain.OrderStatusInProgress), evs[1].To)
		assert.Equal(t, o.OrderNumber, evs[1].OrderNumber)

		hist, err := h.svc.History(ctx, waiter, o.ID)
		require.NoError(t, err)
		require.Len(t, hist, 3)
		assert.Equal(t, "", hist[0].From)
		assert.Equal(t, string(domain.OrderStatusReceived), hist[0].To)
		assert.Equal(t, o.Items[0].ID, hist[1].ItemID)
		assert.Equal(t, string(domain.OrderStatusInProgress), hist[2].To)
	})
}

func TestTransitionService_PublishFailureIsLogged(t *testing.T) {
	h := newHarness(repository.NewMemory(), failingPublisher{})
	o := h.newOrder(t, domain.DestinationKitchen)

	res := h.advance(t, kitchen, o.Items[0].ID, domain.ItemStatusPreparing)
	assert.Equal(t, domain.OrderStatusInProgress, res.Order.Status)
	assert.Contains(t, h.logs.String(), "status event not published")
	assert.Contains(t, h.logs.String(), "broker unavailable")
}

func TestTransitionService_InputValidation(t *testing.T) {
	h := newHarness(repository.NewMemory(), nil)
	ctx := context.Background()

	_, err := h.svc.AdvanceItem(ctx, kitchen, AdvanceRequest{Target: domain.ItemStatusPreparing})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = h.svc.AdvanceItem(ctx, kitchen, AdvanceRequest{ItemID: "nope", Target: domain.ItemStatusPreparing})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = h.svc.GetOrder(ctx, waiter, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	o := h.newOrder(t, domain.DestinationKitchen)
	_, err = h.svc.AdvanceItem(ctx, kitchen, AdvanceRequest{ItemID: o.Items[0].ID, Target: "BURNT"})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}
