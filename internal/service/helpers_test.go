package service

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"camarero/internal/domain"
	"camarero/internal/events"
	"camarero/internal/payment"
	"camarero/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const tenant = "cafe-1"

var (
	kitchen = domain.Actor{TenantID: tenant, UserID: "k1", Role: domain.RoleKitchenStaff}
	bar     = domain.Actor{TenantID: tenant, UserID: "b1", Role: domain.RoleBarStaff}
	waiter  = domain.Actor{TenantID: tenant, UserID: "w1", Role: domain.RoleWaiter}
	admin   = domain.Actor{TenantID: tenant, UserID: "a1", Role: domain.RoleBusinessAdmin}
	guest   = domain.Actor{TenantID: tenant, UserID: "c1", Role: domain.RoleCustomer}
)

type harness struct {
	store  repository.Store
	pub    *events.Memory
	logs   *bytes.Buffer
	orders *OrderStore
	svc    *TransitionService
	intake *OrderIntake
	queues *QueueService
}

type backend struct {
	name string
	open func(t *testing.T) repository.Store
}

var backends = []backend{
	{name: "memory", open: func(t *testing.T) repository.Store { return repository.NewMemory() }},
	{name: "sqlite", open: func(t *testing.T) repository.Store {
		s, err := repository.OpenSQL(context.Background(), repository.BackendSQLite, ":memory:")
		require.NoError(t, err)
		return s
	}},
}

// eachBackend прогоняет тест на всех хранилищах
func eachBackend(t *testing.T, fn func(t *testing.T, h *harness)) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			store := b.open(t)
			t.Cleanup(func() { _ = store.Close() })
			fn(t, newHarness(store, nil))
		})
	}
}

func newHarness(store repository.Store, pub events.Publisher) *harness {
	mem := events.NewMemory()
	if pub == nil {
		pub = mem
	}
	buf := &bytes.Buffer{}
	log := slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	orders := NewOrderStore(store, pub, log)
	return &harness{
		store:  store,
		pub:    mem,
		logs:   buf,
		orders: orders,
		svc:    NewTransitionService(store, orders, payment.NewManualGate(), log),
		intake: NewOrderIntake(store, log),
		queues: NewQueueService(store),
	}
}

// newOrder заказ с позициями на указанные станции по 10.00 за штуку
func (h *harness) newOrder(t *testing.T, dests ...string) *domain.Order {
	t.Helper()
	in := NewOrder{TableIdentifier: "T4", OrderType: domain.OrderTypeDineIn}
	for _, d := range dests {
		in.Items = append(in.Items, NewOrderItem{Name: "dish " + d, Destination: d, Quantity: 1, UnitPrice: decimal.NewFromInt(10)})
	}
	o, err := h.intake.CreateOrder(context.Background(), waiter, in)
	require.NoError(t, err)
	return o
}

// advance переводит позицию по каноническому ребру и требует успеха
func (h *harness) advance(t *testing.T, actor domain.Actor, itemID string, target domain.ItemStatus) *ItemResult {
	t.Helper()
	res, err := h.svc.AdvanceItem(context.Background(), actor, AdvanceRequest{ItemID: itemID, Target: target})
	require.NoError(t, err)
	return res
}

// serveAll проводит позиции заказа до SERVED
func (h *harness) serveAll(t *testing.T, o *domain.Order) *domain.Order {
	t.Helper()
	var last *domain.Order
	for _, it := range o.Items {
		station := kitchen
		if it.KDSDestination == domain.DestinationBar {
			station = bar
		}
		h.advance(t, station, it.ID, domain.ItemStatusPreparing)
		h.advance(t, station, it.ID, domain.ItemStatusReady)
		last = h.advance(t, waiter, it.ID, domain.ItemStatusServed).Order
	}
	return last
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, events.StatusChanged) error {
	return errors.New("broker unavailable")
}
