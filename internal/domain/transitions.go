package domain

import "fmt"

// itemEdges допустимые переходы позиции
var itemEdges = map[ItemStatus][]ItemStatus{
	ItemStatusPending:   {ItemStatusPreparing, ItemStatusCancelled},
	ItemStatusPreparing: {ItemStatusReady, ItemStatusCancelled},
	ItemStatusReady:     {ItemStatusServed},
}

// ValidateItemTransition проверяет ребро from -> to без учёта хранимого состояния
func ValidateItemTransition(from, to ItemStatus) error {
	if !from.Valid() || !to.Valid() {
		return fmt.Errorf("%w: unknown item status %q -> %q", ErrInvalidTransition, from, to)
	}
	for _, next := range itemEdges[from] {
		if next == to {
			return nil
		}
	}
	return fmt.Errorf("%w: item %s -> %s", ErrInvalidTransition, from, to)
}

// CanonicalPredecessor единственный статус, из которого ведёт прямое ребро в to.
// Для CANCELLED предшественников два, поэтому ok=false.
func CanonicalPredecessor(to ItemStatus) (ItemStatus, bool) {
	switch to {
	case ItemStatusPreparing:
		return ItemStatusPending, true
	case ItemStatusReady:
		return ItemStatusPreparing, true
	case ItemStatusServed:
		return ItemStatusReady, true
	}
	return "", false
}

// Flags явные сигналы уровня заказа, не выводимые из позиций
type Flags struct {
	BillRequested bool
	Paid          bool
	Cancelled     bool
}

// FlagsOf извлекает флаги из сохранённого заказа
func FlagsOf(o *Order) Flags {
	return Flags{
		BillRequested: o.BillRequested,
		Paid:          o.Status == OrderStatusPaid,
		Cancelled:     o.Status == OrderStatusCancelled,
	}
}

// Aggregate выводит статус заказа из мультимножества статусов позиций.
// Результат не зависит от порядка элементов.
func Aggregate(items []ItemStatus, f Flags) (OrderStatus, error) {
	if len(items) == 0 {
		return "", fmt.Errorf("%w: order without items has no status", ErrInvalidInput)
	}
	if f.Paid {
		return OrderStatusPaid, nil
	}
	if f.Cancelled {
		return OrderStatusCancelled, nil
	}

	var active, pending, ready, served int
	for _, s := range items {
		switch s {
		case ItemStatusCancelled:
			continue
		case ItemStatusPending:
			pending++
		case ItemStatusReady:
			ready++
		case ItemStatusServed:
			served++
		}
		active++
	}

	switch {
	case active == 0:
		// cancellation dominates
		return OrderStatusCancelled, nil
	case served == active:
		if f.BillRequested {
			return OrderStatusPendingPayment, nil
		}
		return OrderStatusCompleted, nil
	case ready+served == active:
		return OrderStatusAllItemsReady, nil
	case ready+served > 0:
		return OrderStatusPartiallyReady, nil
	case pending == active:
		return OrderStatusReceived, nil
	default:
		return OrderStatusInProgress, nil
	}
}

// orderEdges явные переходы заказа; остальные статусы выводятся через Aggregate
var orderEdges = map[OrderStatus][]OrderStatus{
	OrderStatusReceived:       {OrderStatusCancelled},
	OrderStatusInProgress:     {OrderStatusCancelled},
	OrderStatusCompleted:      {OrderStatusPendingPayment},
	OrderStatusPendingPayment: {OrderStatusPaid},
}

// ValidateOrderTransition проверяет явный переход заказа (отмена, счёт, оплата)
func ValidateOrderTransition(from, to OrderStatus) error {
	if from.Closed() {
		return fmt.Errorf("%w: order is %s", ErrOrderClosed, from)
	}
	for _, next := range orderEdges[from] {
		if next == to {
			return nil
		}
	}
	return fmt.Errorf("%w: order %s -> %s", ErrInvalidTransition, from, to)
}
