package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus агрегированный статус заказа
type OrderStatus string

const (
	OrderStatusReceived       OrderStatus = "RECEIVED"
	OrderStatusInProgress     OrderStatus = "IN_PROGRESS"
	OrderStatusPartiallyReady OrderStatus = "PARTIALLY_READY"
	OrderStatusAllItemsReady  OrderStatus = "ALL_ITEMS_READY"
	OrderStatusCompleted      OrderStatus = "COMPLETED"
	OrderStatusPendingPayment OrderStatus = "PENDING_PAYMENT"
	OrderStatusPaid           OrderStatus = "PAID"
	OrderStatusCancelled      OrderStatus = "CANCELLED"
)

// AllOrderStatuses в порядке жизненного цикла
var AllOrderStatuses = []OrderStatus{
	OrderStatusReceived,
	OrderStatusInProgress,
	OrderStatusPartiallyReady,
	OrderStatusAllItemsReady,
	OrderStatusCompleted,
	OrderStatusPendingPayment,
	OrderStatusPaid,
	OrderStatusCancelled,
}

// Valid сообщает, известен ли статус
func (s OrderStatus) Valid() bool {
	for _, v := range AllOrderStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Closed после PAID и CANCELLED заказ и его позиции не меняются
func (s OrderStatus) Closed() bool {
	return s == OrderStatusPaid || s == OrderStatusCancelled
}

// ItemStatus статус позиции заказа
type ItemStatus string

const (
	ItemStatusPending   ItemStatus = "PENDING"
	ItemStatusPreparing ItemStatus = "PREPARING"
	ItemStatusReady     ItemStatus = "READY"
	ItemStatusServed    ItemStatus = "SERVED"
	ItemStatusCancelled ItemStatus = "CANCELLED"
)

var AllItemStatuses = []ItemStatus{
	ItemStatusPending,
	ItemStatusPreparing,
	ItemStatusReady,
	ItemStatusServed,
	ItemStatusCancelled,
}

func (s ItemStatus) Valid() bool {
	for _, v := range AllItemStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Terminal SERVED и CANCELLED неизменяемы
func (s ItemStatus) Terminal() bool {
	return s == ItemStatusServed || s == ItemStatusCancelled
}

// OrderType тип заказа, только для отображения
type OrderType string

const (
	OrderTypeDineIn   OrderType = "DINE_IN"
	OrderTypeTakeAway OrderType = "TAKE_AWAY"
	OrderTypeDelivery OrderType = "DELIVERY"
)

func (t OrderType) Valid() bool {
	switch t {
	case OrderTypeDineIn, OrderTypeTakeAway, OrderTypeDelivery:
		return true
	}
	return false
}

// Стандартные станции KDS. Допускаются и другие теги в верхнем регистре.
const (
	DestinationKitchen = "KITCHEN"
	DestinationBar     = "BAR"
	DestinationOther   = "OTHER"
)

// OrderItem позиция в заказе. Снимки имени и цены не меняются после создания.
type OrderItem struct {
	ID               string          `json:"id"`
	OrderID          string          `json:"order_id"`
	Status           ItemStatus      `json:"status"`
	KDSDestination   string          `json:"kds_destination"`
	Quantity         int             `json:"quantity"`
	ItemNameSnapshot string          `json:"item_name_snapshot"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	Notes            string          `json:"notes,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	PreparedAt       *time.Time      `json:"prepared_at,omitempty"`
	ServedAt         *time.Time      `json:"served_at,omitempty"`
	ServedBy         string          `json:"served_by,omitempty"`
}

// LineTotal сумма позиции
func (it OrderItem) LineTotal() decimal.Decimal {
	return it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

// Order сущность заказа
type Order struct {
	ID                string          `json:"id"`
	TenantID          string          `json:"tenant_id"`
	OrderNumber       string          `json:"order_number"`
	Status            OrderStatus     `json:"status"`
	Items             []OrderItem     `json:"items"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	DiscountAmount    decimal.Decimal `json:"discount_amount"`
	FinalAmount       decimal.Decimal `json:"final_amount"`
	TableIdentifier   string          `json:"table_identifier,omitempty"`
	OrderType         OrderType       `json:"order_type"`
	BillRequested     bool            `json:"bill_requested"`
	PaymentPreference string          `json:"payment_preference,omitempty"`
	PaymentReference  string          `json:"payment_reference,omitempty"`
	PaymentMethod     string          `json:"payment_method,omitempty"`
	PaidBy            string          `json:"paid_by,omitempty"`
	Version           int64           `json:"version"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	ConfirmedAt       *time.Time      `json:"confirmed_at,omitempty"`
	BilledAt          *time.Time      `json:"billed_at,omitempty"`
	PaidAt            *time.Time      `json:"paid_at,omitempty"`
}

// ItemStatuses мультимножество статусов позиций
func (o *Order) ItemStatuses() []ItemStatus {
	out := make([]ItemStatus, 0, len(o.Items))
	for _, it := range o.Items {
		out = append(out, it.Status)
	}
	return out
}

// Item ищет позицию по id
func (o *Order) Item(id string) (*OrderItem, bool) {
	for i := range o.Items {
		if o.Items[i].ID == id {
			return &o.Items[i], true
		}
	}
	return nil, false
}

// Totals пересчитывает суммы по неотменённым позициям
func (o *Order) Totals() (total, final decimal.Decimal) {
	total = decimal.Zero
	for _, it := range o.Items {
		if it.Status == ItemStatusCancelled {
			continue
		}
		total = total.Add(it.LineTotal())
	}
	final = total.Sub(o.DiscountAmount)
	if final.IsNegative() {
		final = decimal.Zero
	}
	return total, final
}

// StatusLogEntry запись журнала смены статусов. ItemID пуст для уровня заказа.
type StatusLogEntry struct {
	ID        int64     `json:"id"`
	OrderID   string    `json:"order_id"`
	ItemID    string    `json:"item_id,omitempty"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	ChangedBy string    `json:"changed_by"`
	ChangedAt time.Time `json:"changed_at"`
}
