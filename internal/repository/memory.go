package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"camarero/internal/domain"
)

// MemoryStore объединённое in-memory хранилище заказов и позиций
type MemoryStore struct {
	mu          sync.RWMutex
	ordersByID  map[string]domain.Order
	itemsByID   map[string]domain.OrderItem
	itemIDs     map[string][]string // orderID -> ids позиций в порядке создания
	seqByTenant map[string]int64
	statusLog   []domain.StatusLogEntry
	nextLogID   int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		ordersByID:  make(map[string]domain.Order),
		itemsByID:   make(map[string]domain.OrderItem),
		itemIDs:     make(map[string][]string),
		seqByTenant: make(map[string]int64),
		nextLogID:   1,
	}
}

// transaction-aware locking helpers
type txKey struct{}

func isTx(ctx context.Context) bool {
	v := ctx.Value(txKey{})
	if v == nil {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

func (m *MemoryStore) rlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.RLock()
	}
}
func (m *MemoryStore) runlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.RUnlock()
	}
}
func (m *MemoryStore) wlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.Lock()
	}
}
func (m *MemoryStore) wunlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.Unlock()
	}
}

// Ensure interfaces
var _ ItemRepository = (*MemoryStore)(nil)

// ItemRepository implementation
func (m *MemoryStore) GetItem(ctx context.Context, id string) (*domain.OrderItem, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	it, ok := m.itemsByID[id]
	if !ok {
		return nil, ErrNotFound
	}
	// return copy
	cp := it
	return &cp, nil
}

func (m *MemoryStore) UpdateItemStatus(ctx context.Context, u ItemStatusUpdate) (*domain.OrderItem, error) {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	it, ok := m.itemsByID[u.ItemID]
	if !ok {
		return nil, ErrNotFound
	}
	if it.Status != u.Expected {
		return nil, ErrPreconditionFailed
	}
	it.Status = u.Next
	at := u.At.UTC()
	switch u.Next {
	case domain.ItemStatusReady:
		if it.PreparedAt == nil {
			it.PreparedAt = &at
		}
	case domain.ItemStatusServed:
		if it.ServedAt == nil {
			it.ServedAt = &at
		}
		it.ServedBy = u.By
	}
	m.itemsByID[it.ID] = it
	cp := it
	return &cp, nil
}

// assemble собирает заказ с позициями; вызывать под блокировкой
func (m *MemoryStore) assemble(id string) (*domain.Order, bool) {
	o, ok := m.ordersByID[id]
	if !ok {
		return nil, false
	}
	ids := m.itemIDs[id]
	o.Items = make([]domain.OrderItem, 0, len(ids))
	for _, itemID := range ids {
		o.Items = append(o.Items, m.itemsByID[itemID])
	}
	return &o, true
}

// OrderRepository implementation on wrapper type
type MemoryOrders struct{ store *MemoryStore }

func NewMemoryOrders(store *MemoryStore) *MemoryOrders { return &MemoryOrders{store: store} }

var (
	_ OrderRepository = (*MemoryOrders)(nil)
	_ LogRepository   = (*MemoryOrders)(nil)
)

func (mo *MemoryOrders) CreateOrder(ctx context.Context, o *domain.Order) error {
	mo.store.wlock(ctx)
	defer mo.store.wunlock(ctx)
	if _, exists := mo.store.ordersByID[o.ID]; exists {
		return fmt.Errorf("order %s already exists", o.ID)
	}
	mo.store.seqByTenant[o.TenantID]++
	o.OrderNumber = FormatOrderNumber(mo.store.seqByTenant[o.TenantID])
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	o.UpdatedAt = o.CreatedAt

	ids := make([]string, 0, len(o.Items))
	for i := range o.Items {
		o.Items[i].OrderID = o.ID
		if o.Items[i].CreatedAt.IsZero() {
			o.Items[i].CreatedAt = o.CreatedAt
		}
		mo.store.itemsByID[o.Items[i].ID] = o.Items[i]
		ids = append(ids, o.Items[i].ID)
	}
	stored := *o
	stored.Items = nil
	mo.store.ordersByID[o.ID] = stored
	mo.store.itemIDs[o.ID] = ids
	return nil
}

func (mo *MemoryOrders) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	mo.store.rlock(ctx)
	defer mo.store.runlock(ctx)
	o, ok := mo.store.assemble(id)
	if !ok {
		return nil, ErrNotFound
	}
	return o, nil
}

// GetOrderForUpdate: внутри транзакции глобальная блокировка уже взята
func (mo *MemoryOrders) GetOrderForUpdate(ctx context.Context, id string) (*domain.Order, error) {
	return mo.GetOrder(ctx, id)
}

func (mo *MemoryOrders) UpdateOrder(ctx context.Context, o *domain.Order, expected domain.OrderStatus, expectedVersion int64) error {
	mo.store.wlock(ctx)
	defer mo.store.wunlock(ctx)
	cur, ok := mo.store.ordersByID[o.ID]
	if !ok {
		return ErrNotFound
	}
	if cur.Status != expected || cur.Version != expectedVersion {
		return ErrPreconditionFailed
	}
	next := *o
	next.Items = nil
	// lifecycle timestamps are set at most once
	next.ConfirmedAt = firstTime(cur.ConfirmedAt, o.ConfirmedAt)
	// новая позиция снимает запрос счёта вместе с его временем
	next.BilledAt = nil
	if next.BillRequested {
		next.BilledAt = firstTime(cur.BilledAt, o.BilledAt)
	}
	next.PaidAt = firstTime(cur.PaidAt, o.PaidAt)
	next.Version = expectedVersion + 1
	next.UpdatedAt = time.Now().UTC()
	next.CreatedAt = cur.CreatedAt
	next.OrderNumber = cur.OrderNumber
	next.TenantID = cur.TenantID
	mo.store.ordersByID[o.ID] = next

	o.Version = next.Version
	o.UpdatedAt = next.UpdatedAt
	o.ConfirmedAt, o.BilledAt, o.PaidAt = next.ConfirmedAt, next.BilledAt, next.PaidAt
	return nil
}

func (mo *MemoryOrders) AddItems(ctx context.Context, orderID string, items []domain.OrderItem) error {
	mo.store.wlock(ctx)
	defer mo.store.wunlock(ctx)
	if _, ok := mo.store.ordersByID[orderID]; !ok {
		return ErrNotFound
	}
	for i := range items {
		if _, exists := mo.store.itemsByID[items[i].ID]; exists {
			return fmt.Errorf("item %s already exists", items[i].ID)
		}
	}
	now := time.Now().UTC()
	for i := range items {
		items[i].OrderID = orderID
		if items[i].CreatedAt.IsZero() {
			items[i].CreatedAt = now
		}
		mo.store.itemsByID[items[i].ID] = items[i]
		mo.store.itemIDs[orderID] = append(mo.store.itemIDs[orderID], items[i].ID)
	}
	return nil
}

func (mo *MemoryOrders) ListOrders(ctx context.Context, f OrderFilter) ([]domain.Order, error) {
	mo.store.rlock(ctx)
	defer mo.store.runlock(ctx)
	out := make([]domain.Order, 0)
	for id, o := range mo.store.ordersByID {
		if o.TenantID != f.TenantID {
			continue
		}
		if len(f.Statuses) > 0 && !containsOrderStatus(f.Statuses, o.Status) {
			continue
		}
		full, _ := mo.store.assemble(id)
		out = append(out, *full)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].OrderNumber < out[j].OrderNumber
	})
	return out, nil
}

func (mo *MemoryOrders) ListItems(ctx context.Context, f ItemFilter) ([]ItemRow, error) {
	mo.store.rlock(ctx)
	defer mo.store.runlock(ctx)
	out := make([]ItemRow, 0)
	for orderID, o := range mo.store.ordersByID {
		if o.TenantID != f.TenantID || !f.orderMatches(o.Status) {
			continue
		}
		ref := OrderRef{
			ID:              orderID,
			OrderNumber:     o.OrderNumber,
			Status:          o.Status,
			TableIdentifier: o.TableIdentifier,
			CreatedAt:       o.CreatedAt,
		}
		for _, itemID := range mo.store.itemIDs[orderID] {
			it := mo.store.itemsByID[itemID]
			if f.Destination != "" && it.KDSDestination != f.Destination {
				continue
			}
			if len(f.ItemStatuses) > 0 && !containsItemStatus(f.ItemStatuses, it.Status) {
				continue
			}
			out = append(out, ItemRow{Item: it, Order: ref})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Order.CreatedAt.Equal(b.Order.CreatedAt) {
			return a.Order.CreatedAt.Before(b.Order.CreatedAt)
		}
		if a.Order.ID != b.Order.ID {
			return a.Order.OrderNumber < b.Order.OrderNumber
		}
		return a.Item.CreatedAt.Before(b.Item.CreatedAt)
	})
	return out, nil
}

func (mo *MemoryOrders) AppendStatusLog(ctx context.Context, e domain.StatusLogEntry) error {
	mo.store.wlock(ctx)
	defer mo.store.wunlock(ctx)
	e.ID = mo.store.nextLogID
	mo.store.nextLogID++
	mo.store.statusLog = append(mo.store.statusLog, e)
	return nil
}

func (mo *MemoryOrders) ListStatusLog(ctx context.Context, orderID string) ([]domain.StatusLogEntry, error) {
	mo.store.rlock(ctx)
	defer mo.store.runlock(ctx)
	out := make([]domain.StatusLogEntry, 0)
	for _, e := range mo.store.statusLog {
		if e.OrderID == orderID {
			out = append(out, e)
		}
	}
	return out, nil
}

// Tx manager using write lock to emulate transaction boundary
type MemoryTx struct{ store *MemoryStore }

func NewMemoryTx(store *MemoryStore) *MemoryTx { return &MemoryTx{store: store} }

func (tx *MemoryTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if isTx(ctx) {
		return fn(ctx)
	}
	// Для in-memory используем блокировку записи и помечаем контекст, чтобы репозитории пропускали внутренние локи.
	// Откат не поддерживается: fn должна проверять условия до первой записи.
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	ctx = context.WithValue(ctx, txKey{}, true)
	return fn(ctx)
}

// Memory собирает in-memory реализации в один Store
type Memory struct {
	*MemoryStore
	*MemoryOrders
	*MemoryTx
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	store := NewMemoryStore()
	return &Memory{
		MemoryStore:  store,
		MemoryOrders: NewMemoryOrders(store),
		MemoryTx:     NewMemoryTx(store),
	}
}

func (m *Memory) Close() error { return nil }

// FormatOrderNumber человекочитаемый номер заказа
func FormatOrderNumber(seq int64) string {
	return fmt.Sprintf("P-%06d", seq)
}

func firstTime(cur, next *time.Time) *time.Time {
	if cur != nil {
		return cur
	}
	if next == nil {
		return nil
	}
	t := next.UTC()
	return &t
}
