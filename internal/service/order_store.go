package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"camarero/internal/domain"
	"camarero/internal/events"
	"camarero/internal/payment"
	"camarero/internal/repository"
)

// OrderStore агрегат заказа: пересчёт статуса и явные переходы уровня заказа.
// Каждая операция выполняется короткой транзакцией с блокировкой строки заказа.
type OrderStore struct {
	items  repository.ItemRepository
	orders repository.OrderRepository
	logs   repository.LogRepository
	tx     repository.TxManager
	pub    events.Publisher
	log    *slog.Logger
	retry  RetryConfig
	now    func() time.Time
}

func NewOrderStore(store repository.Store, pub events.Publisher, log *slog.Logger) *OrderStore {
	if pub == nil {
		pub = events.Nop{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &OrderStore{
		items:  store,
		orders: store,
		logs:   store,
		tx:     store,
		pub:    pub,
		log:    log,
		retry:  DefaultRetryConfig(),
		now:    time.Now,
	}
}

// classify переводит ошибки хранилища в доменные
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: %v", domain.ErrNotFound, err)
	case errors.Is(err, repository.ErrPreconditionFailed):
		return fmt.Errorf("%w: stored status changed concurrently", domain.ErrStaleState)
	}
	return err
}

// RecomputeAndPersist выводит статус заказа из свежего набора позиций и пишет его, если он изменился.
// Повторный вызов без изменений позиций ничего не пишет.
func (s *OrderStore) RecomputeAndPersist(ctx context.Context, orderID, by string) (*domain.Order, error) {
	var changes []events.StatusChanged
	o, err := retryTransient(ctx, s.retry, func() (*domain.Order, error) {
		changes = changes[:0]
		var out *domain.Order
		err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
			o, err := s.orders.GetOrderForUpdate(ctx, orderID)
			if err != nil {
				return classify(err)
			}
			ch, err := s.recomputeLocked(ctx, o, by)
			if err != nil {
				return err
			}
			changes = appendChange(changes, ch)
			out = o
			return nil
		})
		return out, err
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, changes...)
	return o, nil
}

// recomputeLocked вызывается под блокировкой заказа с только что прочитанным o
func (s *OrderStore) recomputeLocked(ctx context.Context, o *domain.Order, by string) (*events.StatusChanged, error) {
	derived, err := domain.Aggregate(o.ItemStatuses(), domain.FlagsOf(o))
	if err != nil {
		return nil, err
	}
	from, version := o.Status, o.Version
	dirty := false

	// после оплаты суммы заморожены
	if from != domain.OrderStatusPaid {
		total, final := o.Totals()
		if !total.Equal(o.TotalAmount) || !final.Equal(o.FinalAmount) {
			o.TotalAmount, o.FinalAmount = total, final
			dirty = true
		}
	}
	if derived != from {
		o.Status = derived
		dirty = true
		if o.ConfirmedAt == nil && derived != domain.OrderStatusReceived && derived != domain.OrderStatusCancelled {
			now := s.now().UTC()
			o.ConfirmedAt = &now
		}
	}
	if !dirty {
		return nil, nil
	}
	if err := s.orders.UpdateOrder(ctx, o, from, version); err != nil {
		return nil, classify(err)
	}
	if derived == from {
		return nil, nil
	}
	ch := s.orderChange(o, from, derived, by)
	if err := s.appendLog(ctx, ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

// MarkBillRequested COMPLETED -> PENDING_PAYMENT
func (s *OrderStore) MarkBillRequested(ctx context.Context, orderID, preference, by string) (*domain.Order, error) {
	var (
		out     *domain.Order
		changes []events.StatusChanged
	)
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return classify(err)
		}
		ch, err := s.recomputeLocked(ctx, o, by)
		if err != nil {
			return err
		}
		changes = appendChange(changes, ch)

		if err := domain.ValidateOrderTransition(o.Status, domain.OrderStatusPendingPayment); err != nil {
			return err
		}
		from, version := o.Status, o.Version
		now := s.now().UTC()
		o.BillRequested = true
		o.PaymentPreference = preference
		o.BilledAt = &now
		o.Status = domain.OrderStatusPendingPayment
		if err := s.orders.UpdateOrder(ctx, o, from, version); err != nil {
			return classify(err)
		}
		c := s.orderChange(o, from, o.Status, by)
		if err := s.appendLog(ctx, c); err != nil {
			return err
		}
		changes = append(changes, c)
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, changes...)
	return out, nil
}

// MarkPaid PENDING_PAYMENT -> PAID по подтверждённому расчёту. После этого заказ закрыт.
func (s *OrderStore) MarkPaid(ctx context.Context, orderID string, st payment.Settlement, by string) (*domain.Order, error) {
	var out *domain.Order
	var change events.StatusChanged
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return classify(err)
		}
		if err := domain.ValidateOrderTransition(o.Status, domain.OrderStatusPaid); err != nil {
			return err
		}
		from, version := o.Status, o.Version
		paidAt := st.SettledAt.UTC()
		if paidAt.IsZero() {
			paidAt = s.now().UTC()
		}
		o.Status = domain.OrderStatusPaid
		o.PaidAt = &paidAt
		o.PaymentReference = st.Reference
		o.PaymentMethod = st.Method
		o.PaidBy = by
		if err := s.orders.UpdateOrder(ctx, o, from, version); err != nil {
			return classify(err)
		}
		change = s.orderChange(o, from, o.Status, by)
		if err := s.appendLog(ctx, change); err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, change)
	return out, nil
}

// CancelOrder отменяет заказ в статусе expected и каскадно отменяет незавершённые позиции.
// Любая проигранная условная запись откатывает всю отмену.
func (s *OrderStore) CancelOrder(ctx context.Context, orderID string, expected domain.OrderStatus, by string) (*domain.Order, error) {
	var (
		out     *domain.Order
		changes []events.StatusChanged
	)
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		changes = changes[:0]
		o, err := s.orders.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return classify(err)
		}
		ch, err := s.recomputeLocked(ctx, o, by)
		if err != nil {
			return err
		}
		changes = appendChange(changes, ch)

		if o.Status.Closed() {
			return fmt.Errorf("%w: order is %s", domain.ErrOrderClosed, o.Status)
		}
		if o.Status != expected {
			return fmt.Errorf("%w: order is %s, expected %s", domain.ErrStaleState, o.Status, expected)
		}
		if err := domain.ValidateOrderTransition(o.Status, domain.OrderStatusCancelled); err != nil {
			return err
		}

		// in-memory хранилище не откатывает, поэтому все позиции проверяются до первой записи
		for _, it := range o.Items {
			if it.Status.Terminal() {
				continue
			}
			if err := domain.ValidateItemTransition(it.Status, domain.ItemStatusCancelled); err != nil {
				return fmt.Errorf("%w: item %s is %s", domain.ErrStaleState, it.ID, it.Status)
			}
		}

		now := s.now().UTC()
		for i := range o.Items {
			it := &o.Items[i]
			if it.Status.Terminal() {
				continue
			}
			updated, err := s.items.UpdateItemStatus(ctx, repository.ItemStatusUpdate{
				ItemID:   it.ID,
				Expected: it.Status,
				Next:     domain.ItemStatusCancelled,
				At:       now,
				By:       by,
			})
			if err != nil {
				return classify(err)
			}
			c := s.itemChange(o, it, it.Status, updated.Status, by)
			if err := s.appendLog(ctx, c); err != nil {
				return err
			}
			changes = append(changes, c)
			*it = *updated
		}

		from, version := o.Status, o.Version
		o.Status = domain.OrderStatusCancelled
		o.TotalAmount, o.FinalAmount = o.Totals()
		if err := s.orders.UpdateOrder(ctx, o, from, version); err != nil {
			return classify(err)
		}
		c := s.orderChange(o, from, o.Status, by)
		if err := s.appendLog(ctx, c); err != nil {
			return err
		}
		changes = append(changes, c)
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, changes...)
	return out, nil
}

// AddItems дописывает позиции PENDING в открытый заказ и выводит статус заново.
// Готовый или ожидающий оплаты заказ возвращается в работу, запрос счёта снимается.
func (s *OrderStore) AddItems(ctx context.Context, orderID string, items []domain.OrderItem, by string) (*domain.Order, error) {
	var (
		out     *domain.Order
		changes []events.StatusChanged
	)
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		changes = changes[:0]
		o, err := s.orders.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return classify(err)
		}
		ch, err := s.recomputeLocked(ctx, o, by)
		if err != nil {
			return err
		}
		changes = appendChange(changes, ch)
		if o.Status.Closed() {
			return fmt.Errorf("%w: order %s is %s", domain.ErrOrderClosed, o.OrderNumber, o.Status)
		}

		if err := s.orders.AddItems(ctx, o.ID, items); err != nil {
			return classify(err)
		}
		for i := range items {
			c := s.itemChange(o, &items[i], "", items[i].Status, by)
			if err := s.appendLog(ctx, c); err != nil {
				return err
			}
			changes = append(changes, c)
		}
		o.Items = append(o.Items, items...)
		if o.BillRequested {
			o.BillRequested = false
			o.BilledAt = nil
			o.PaymentPreference = ""
		}

		ch, err = s.recomputeLocked(ctx, o, by)
		if err != nil {
			return err
		}
		changes = appendChange(changes, ch)
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, changes...)
	return out, nil
}

func (s *OrderStore) orderChange(o *domain.Order, from, to domain.OrderStatus, by string) events.StatusChanged {
	return events.StatusChanged{
		Kind:        events.KindOrder,
		TenantID:    o.TenantID,
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		From:        string(from),
		To:          string(to),
		ChangedBy:   by,
		At:          s.now().UTC(),
	}
}

func (s *OrderStore) itemChange(o *domain.Order, it *domain.OrderItem, from, to domain.ItemStatus, by string) events.StatusChanged {
	return events.StatusChanged{
		Kind:           events.KindItem,
		TenantID:       o.TenantID,
		OrderID:        o.ID,
		OrderNumber:    o.OrderNumber,
		ItemID:         it.ID,
		KDSDestination: it.KDSDestination,
		From:           string(from),
		To:             string(to),
		ChangedBy:      by,
		At:             s.now().UTC(),
	}
}

func (s *OrderStore) appendLog(ctx context.Context, c events.StatusChanged) error {
	err := s.logs.AppendStatusLog(ctx, domain.StatusLogEntry{
		OrderID:   c.OrderID,
		ItemID:    c.ItemID,
		From:      c.From,
		To:        c.To,
		ChangedBy: c.ChangedBy,
		ChangedAt: c.At,
	})
	if err != nil {
		return fmt.Errorf("status log: %w", err)
	}
	return nil
}

// publish вызывается только после коммита; сбой доставки не отменяет переход
func (s *OrderStore) publish(ctx context.Context, changes ...events.StatusChanged) {
	for _, c := range changes {
		if err := s.pub.Publish(ctx, c); err != nil {
			s.log.Warn("status event not published",
				"action", "publish",
				"order_id", c.OrderID,
				"item_id", c.ItemID,
				"to", c.To,
				"error", err)
		}
	}
}

func appendChange(list []events.StatusChanged, c *events.StatusChanged) []events.StatusChanged {
	if c == nil {
		return list
	}
	return append(list, *c)
}
