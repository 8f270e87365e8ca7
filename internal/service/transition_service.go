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

// TransitionService единственная точка изменения статусов для клиентов.
// StaleState не повторяется автоматически: клиент перечитывает очередь и решает сам.
type TransitionService struct {
	items  repository.ItemRepository
	orders repository.OrderRepository
	logs   repository.LogRepository
	tx     repository.TxManager
	store  *OrderStore
	gate   payment.Gate
	log    *slog.Logger
	now    func() time.Time
}

func NewTransitionService(store repository.Store, orders *OrderStore, gate payment.Gate, log *slog.Logger) *TransitionService {
	if log == nil {
		log = slog.Default()
	}
	return &TransitionService{
		items:  store,
		orders: store,
		logs:   store,
		tx:     store,
		store:  orders,
		gate:   gate,
		log:    log,
		now:    time.Now,
	}
}

// ItemResult обновлённая позиция вместе с пересчитанным заказом
type ItemResult struct {
	Order *domain.Order     `json:"order"`
	Item  *domain.OrderItem `json:"item"`
}

// AdvanceRequest Expected можно не указывать: для прямых рёбер берётся единственный предшественник Target
type AdvanceRequest struct {
	ItemID   string            `json:"item_id"`
	Target   domain.ItemStatus `json:"target"`
	Expected domain.ItemStatus `json:"expected,omitempty"`
}

// PaymentDetails данные, которые кассир передаёт при оплате
type PaymentDetails struct {
	Reference string `json:"reference"`
	Method    string `json:"method,omitempty"`
}

// loadOrder чужой тенант неотличим от отсутствующего заказа
func (s *TransitionService) loadOrder(ctx context.Context, actor domain.Actor, orderID string) (*domain.Order, error) {
	if orderID == "" {
		return nil, fmt.Errorf("%w: order id required", domain.ErrInvalidInput)
	}
	o, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, classify(err)
	}
	if o.TenantID != actor.TenantID {
		return nil, fmt.Errorf("%w: order %s", domain.ErrNotFound, orderID)
	}
	return o, nil
}

func (s *TransitionService) loadItem(ctx context.Context, actor domain.Actor, itemID string) (*domain.OrderItem, *domain.Order, error) {
	if itemID == "" {
		return nil, nil, fmt.Errorf("%w: item id required", domain.ErrInvalidInput)
	}
	it, err := s.items.GetItem(ctx, itemID)
	if err != nil {
		return nil, nil, classify(err)
	}
	o, err := s.orders.GetOrder(ctx, it.OrderID)
	if err != nil {
		return nil, nil, classify(err)
	}
	if o.TenantID != actor.TenantID {
		return nil, nil, fmt.Errorf("%w: item %s", domain.ErrNotFound, itemID)
	}
	return it, o, nil
}

// authorizeItem права на ребро позиции
func authorizeItem(actor domain.Actor, it *domain.OrderItem, target domain.ItemStatus) error {
	stationMatches := actor.IsStation() && actor.StationDestination() == domain.NormalizeDestination(it.KDSDestination)
	switch target {
	case domain.ItemStatusPreparing, domain.ItemStatusReady:
		if stationMatches {
			return nil
		}
	case domain.ItemStatusServed:
		if actor.Role == domain.RoleWaiter {
			return nil
		}
	case domain.ItemStatusCancelled:
		if stationMatches || actor.Role == domain.RoleBusinessAdmin {
			return nil
		}
	}
	return fmt.Errorf("%w: %s may not move %s item to %s", domain.ErrUnauthorized, actor.Role, it.KDSDestination, target)
}

func requireRole(actor domain.Actor, action string, roles ...domain.Role) error {
	for _, r := range roles {
		if actor.Role == r {
			return nil
		}
	}
	return fmt.Errorf("%w: %s may not %s", domain.ErrUnauthorized, actor.Role, action)
}

// AdvanceItem проверки по порядку: NotFound, OrderClosed, InvalidTransition, Unauthorized, условная запись
func (s *TransitionService) AdvanceItem(ctx context.Context, actor domain.Actor, req AdvanceRequest) (*ItemResult, error) {
	log := s.log.With("action", "advance_item", "item_id", req.ItemID, "target", req.Target)

	it, o, err := s.loadItem(ctx, actor, req.ItemID)
	if err != nil {
		return nil, err
	}
	if o.Status.Closed() {
		return nil, fmt.Errorf("%w: order %s is %s", domain.ErrOrderClosed, o.OrderNumber, o.Status)
	}

	from := req.Expected
	if from == "" {
		// из SERVED/CANCELLED ребра нет; совпадение с Target означает проигранную гонку
		if it.Status.Terminal() && it.Status != req.Target {
			return nil, fmt.Errorf("%w: item %s is %s", domain.ErrInvalidTransition, it.ID, it.Status)
		}
		if p, ok := domain.CanonicalPredecessor(req.Target); ok {
			from = p
		} else {
			from = it.Status
		}
	}
	if err := domain.ValidateItemTransition(from, req.Target); err != nil {
		return nil, err
	}
	if err := authorizeItem(actor, it, req.Target); err != nil {
		return nil, err
	}

	updated, err := s.writeItem(ctx, o, it, from, req.Target, actor.Name())
	if err != nil {
		if errors.Is(err, domain.ErrStaleState) {
			log.Info("conditional write lost", "expected", from)
		}
		return nil, err
	}

	order, err := s.store.RecomputeAndPersist(ctx, o.ID, actor.Name())
	if err != nil {
		log.Error("recompute failed after item update", "order_id", o.ID, "error", err)
		return nil, fmt.Errorf("recompute order %s: %w", o.ID, err)
	}
	log.Debug("item advanced", "from", from, "order_status", order.Status)
	return &ItemResult{Order: order, Item: updated}, nil
}

// CancelItem PENDING/PREPARING -> CANCELLED; станция позиции или администратор
func (s *TransitionService) CancelItem(ctx context.Context, actor domain.Actor, itemID string, expected domain.ItemStatus) (*ItemResult, error) {
	return s.AdvanceItem(ctx, actor, AdvanceRequest{ItemID: itemID, Target: domain.ItemStatusCancelled, Expected: expected})
}

// writeItem условная запись позиции и журнал в одной транзакции
func (s *TransitionService) writeItem(ctx context.Context, o *domain.Order, it *domain.OrderItem, from, to domain.ItemStatus, by string) (*domain.OrderItem, error) {
	var (
		updated *domain.OrderItem
		change  events.StatusChanged
	)
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		updated, err = s.items.UpdateItemStatus(ctx, repository.ItemStatusUpdate{
			ItemID:   it.ID,
			Expected: from,
			Next:     to,
			At:       s.now(),
			By:       by,
		})
		if err != nil {
			return err
		}
		change = s.store.itemChange(o, updated, from, to, by)
		return s.store.appendLog(ctx, change)
	})
	if errors.Is(err, repository.ErrPreconditionFailed) {
		// проигравший гонку с отменой или оплатой видит закрытый заказ
		if cur, gerr := s.orders.GetOrder(ctx, o.ID); gerr == nil && cur.Status.Closed() {
			return nil, fmt.Errorf("%w: order %s is %s", domain.ErrOrderClosed, cur.OrderNumber, cur.Status)
		}
		return nil, fmt.Errorf("%w: item %s is no longer %s", domain.ErrStaleState, it.ID, from)
	}
	if err != nil {
		return nil, classify(err)
	}
	s.store.publish(ctx, change)
	return updated, nil
}

// CancelOrder RECEIVED/IN_PROGRESS -> CANCELLED. Пустой expected означает текущий сохранённый статус.
func (s *TransitionService) CancelOrder(ctx context.Context, actor domain.Actor, orderID string, expected domain.OrderStatus) (*domain.Order, error) {
	o, err := s.loadOrder(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status.Closed() {
		return nil, fmt.Errorf("%w: order %s is %s", domain.ErrOrderClosed, o.OrderNumber, o.Status)
	}
	from := expected
	if from == "" {
		from = o.Status
	}
	if err := domain.ValidateOrderTransition(from, domain.OrderStatusCancelled); err != nil {
		return nil, err
	}
	if err := requireRole(actor, "cancel orders", domain.RoleWaiter, domain.RoleBusinessAdmin); err != nil {
		return nil, err
	}

	out, err := s.store.CancelOrder(ctx, orderID, from, actor.Name())
	if err != nil {
		return nil, err
	}
	s.log.Info("order cancelled", "action", "cancel_order", "order_id", orderID, "by", actor.Name())
	return out, nil
}

// RequestBill COMPLETED -> PENDING_PAYMENT. Статус сверяется с позициями под блокировкой заказа:
// сохранённый мог отстать, если пересчёт после обновления позиции не прошёл.
func (s *TransitionService) RequestBill(ctx context.Context, actor domain.Actor, orderID, preference string) (*domain.Order, error) {
	o, err := s.loadOrder(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status.Closed() {
		return nil, fmt.Errorf("%w: order %s is %s", domain.ErrOrderClosed, o.OrderNumber, o.Status)
	}
	if o, err = s.store.RecomputeAndPersist(ctx, o.ID, actor.Name()); err != nil {
		return nil, err
	}
	if err := domain.ValidateOrderTransition(o.Status, domain.OrderStatusPendingPayment); err != nil {
		return nil, err
	}
	if err := requireRole(actor, "request the bill", domain.RoleWaiter, domain.RoleBusinessAdmin, domain.RoleCustomer); err != nil {
		return nil, err
	}
	return s.store.MarkBillRequested(ctx, orderID, preference, actor.Name())
}

// MarkPaid PENDING_PAYMENT -> PAID после подтверждения шлюзом
func (s *TransitionService) MarkPaid(ctx context.Context, actor domain.Actor, orderID string, details PaymentDetails) (*domain.Order, error) {
	log := s.log.With("action", "mark_paid", "order_id", orderID)

	o, err := s.loadOrder(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status.Closed() {
		return nil, fmt.Errorf("%w: order %s is %s", domain.ErrOrderClosed, o.OrderNumber, o.Status)
	}
	if err := domain.ValidateOrderTransition(o.Status, domain.OrderStatusPaid); err != nil {
		return nil, err
	}
	if err := requireRole(actor, "mark orders paid", domain.RoleWaiter, domain.RoleBusinessAdmin); err != nil {
		return nil, err
	}

	st, err := s.gate.Settle(ctx, payment.SettlementRequest{
		TenantID:    o.TenantID,
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		Amount:      o.FinalAmount,
		Method:      details.Method,
		Reference:   details.Reference,
		RequestedBy: actor.Name(),
	})
	if err != nil {
		log.Warn("settlement failed", "error", err)
		return nil, err
	}

	out, err := s.store.MarkPaid(ctx, orderID, st, actor.Name())
	if err != nil {
		return nil, err
	}
	log.Info("order paid", "reference", st.Reference, "method", st.Method)
	return out, nil
}

// AddItems дозаказ к открытому заказу (RECEIVED..PENDING_PAYMENT)
func (s *TransitionService) AddItems(ctx context.Context, actor domain.Actor, orderID string, items []NewOrderItem) (*domain.Order, error) {
	if err := validateItems(items); err != nil {
		return nil, err
	}
	o, err := s.loadOrder(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status.Closed() {
		return nil, fmt.Errorf("%w: order %s is %s", domain.ErrOrderClosed, o.OrderNumber, o.Status)
	}
	if err := requireRole(actor, "add items", domain.RoleWaiter, domain.RoleBusinessAdmin, domain.RoleCustomer); err != nil {
		return nil, err
	}

	out, err := s.store.AddItems(ctx, o.ID, buildItems(items, s.now().UTC()), actor.Name())
	if err != nil {
		return nil, err
	}
	s.log.Info("items added", "action", "add_items", "order_id", o.ID, "items", len(items), "order_status", out.Status)
	return out, nil
}

// GetOrder чтение заказа в рамках тенанта актора
func (s *TransitionService) GetOrder(ctx context.Context, actor domain.Actor, orderID string) (*domain.Order, error) {
	return s.loadOrder(ctx, actor, orderID)
}

// History журнал смены статусов заказа и его позиций
func (s *TransitionService) History(ctx context.Context, actor domain.Actor, orderID string) ([]domain.StatusLogEntry, error) {
	if _, err := s.loadOrder(ctx, actor, orderID); err != nil {
		return nil, err
	}
	return s.logs.ListStatusLog(ctx, orderID)
}
