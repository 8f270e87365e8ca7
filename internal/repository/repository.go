package repository

import (
	"context"
	"errors"
	"time"

	"camarero/internal/domain"
)

var (
	// ErrNotFound возвращается, когда сущность не найдена
	ErrNotFound = errors.New("not found")
	// ErrPreconditionFailed условная запись не применилась: хранимое состояние отличается от ожидаемого
	ErrPreconditionFailed = errors.New("precondition failed")
)

// ItemStatusUpdate условная запись статуса позиции
type ItemStatusUpdate struct {
	ItemID   string
	Expected domain.ItemStatus
	Next     domain.ItemStatus
	At       time.Time
	By       string
}

// ItemRepository хранилище позиций (OrderItemStore)
type ItemRepository interface {
	GetItem(ctx context.Context, id string) (*domain.OrderItem, error)
	// UpdateItemStatus ставит Next только если текущий статус равен Expected.
	// Из N конкурентных вызовов с одинаковым Expected успешен ровно один.
	UpdateItemStatus(ctx context.Context, u ItemStatusUpdate) (*domain.OrderItem, error)
}

// OrderFilter параметры списка заказов
type OrderFilter struct {
	TenantID string
	Statuses []domain.OrderStatus
}

// ItemFilter параметры выборки позиций для очередей
type ItemFilter struct {
	TenantID      string
	Destination   string
	ItemStatuses  []domain.ItemStatus
	OrderStatuses []domain.OrderStatus
	// ExcludeOrderStatuses применяется, если OrderStatuses пуст
	ExcludeOrderStatuses []domain.OrderStatus
}

// OrderRef минимальный контекст заказа для экранов
type OrderRef struct {
	ID              string
	OrderNumber     string
	Status          domain.OrderStatus
	TableIdentifier string
	CreatedAt       time.Time
}

// ItemRow позиция вместе с контекстом заказа
type ItemRow struct {
	Item  domain.OrderItem
	Order OrderRef
}

// OrderRepository хранилище заказов (OrderStore)
type OrderRepository interface {
	// CreateOrder присваивает следующий номер заказа в рамках тенанта и сохраняет заказ с позициями
	CreateOrder(ctx context.Context, o *domain.Order) error
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	// GetOrderForUpdate читает заказ с позициями и блокирует строку до конца транзакции
	GetOrderForUpdate(ctx context.Context, id string) (*domain.Order, error)
	// UpdateOrder пишет агрегат только если статус и версия совпадают с ожидаемыми
	UpdateOrder(ctx context.Context, o *domain.Order, expected domain.OrderStatus, expectedVersion int64) error
	// AddItems дописывает позиции в конец заказа; статус и суммы заказа не трогает
	AddItems(ctx context.Context, orderID string, items []domain.OrderItem) error
	ListOrders(ctx context.Context, f OrderFilter) ([]domain.Order, error)
	ListItems(ctx context.Context, f ItemFilter) ([]ItemRow, error)
}

// LogRepository журнал смены статусов
type LogRepository interface {
	AppendStatusLog(ctx context.Context, e domain.StatusLogEntry) error
	ListStatusLog(ctx context.Context, orderID string) ([]domain.StatusLogEntry, error)
}

// TxManager абстракция транзакции. Для in-memory это глобальная блокировка записи.
type TxManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Store полный набор репозиториев одного бэкенда
type Store interface {
	ItemRepository
	OrderRepository
	LogRepository
	TxManager
	Close() error
}

func containsOrderStatus(list []domain.OrderStatus, s domain.OrderStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsItemStatus(list []domain.ItemStatus, s domain.ItemStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// orderMatches общий фильтр статусов заказа для ListItems
func (f ItemFilter) orderMatches(s domain.OrderStatus) bool {
	if len(f.OrderStatuses) > 0 {
		return containsOrderStatus(f.OrderStatuses, s)
	}
	return !containsOrderStatus(f.ExcludeOrderStatuses, s)
}
