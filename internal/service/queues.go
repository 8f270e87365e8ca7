package service

import (
	"context"
	"fmt"
	"time"

	"camarero/internal/domain"
	"camarero/internal/repository"
	"github.com/shopspring/decimal"
)

// QueueItem позиция на экране станции или официанта с минимальным контекстом заказа
type QueueItem struct {
	ItemID           string             `json:"item_id"`
	OrderID          string             `json:"order_id"`
	OrderNumber      string             `json:"order_number"`
	OrderStatus      domain.OrderStatus `json:"order_status"`
	TableIdentifier  string             `json:"table_identifier,omitempty"`
	OrderCreatedAt   time.Time          `json:"order_created_at"`
	ItemNameSnapshot string             `json:"item_name_snapshot"`
	Quantity         int                `json:"quantity"`
	Notes            string             `json:"notes,omitempty"`
	KDSDestination   string             `json:"kds_destination"`
	Status           domain.ItemStatus  `json:"status"`
	CreatedAt        time.Time          `json:"created_at"`
	PreparedAt       *time.Time         `json:"prepared_at,omitempty"`
}

// OrderSummary строка списка заказов для персонала
type OrderSummary struct {
	ID              string             `json:"id"`
	OrderNumber     string             `json:"order_number"`
	Status          domain.OrderStatus `json:"status"`
	TableIdentifier string             `json:"table_identifier,omitempty"`
	OrderType       domain.OrderType   `json:"order_type"`
	ItemCount       int                `json:"item_count"`
	FinalAmount     decimal.Decimal    `json:"final_amount"`
	BillRequested   bool               `json:"bill_requested"`
	CreatedAt       time.Time          `json:"created_at"`
}

var (
	// DefaultKitchenStatuses то, что станция ещё должна приготовить
	DefaultKitchenStatuses = []domain.ItemStatus{domain.ItemStatusPending, domain.ItemStatusPreparing}

	kitchenHiddenOrders = []domain.OrderStatus{domain.OrderStatusCompleted, domain.OrderStatusPaid, domain.OrderStatusCancelled}

	pickupOrders = []domain.OrderStatus{
		domain.OrderStatusInProgress,
		domain.OrderStatusPartiallyReady,
		domain.OrderStatusAllItemsReady,
	}

	// DefaultStaffOrderStatuses активные заказы в зале
	DefaultStaffOrderStatuses = []domain.OrderStatus{
		domain.OrderStatusReceived,
		domain.OrderStatusInProgress,
		domain.OrderStatusPartiallyReady,
		domain.OrderStatusAllItemsReady,
		domain.OrderStatusCompleted,
		domain.OrderStatusPendingPayment,
	}
)

// QueueService read-модели для опроса. Данные могут отставать; авторитетна только условная запись.
type QueueService struct {
	orders repository.OrderRepository
}

func NewQueueService(orders repository.OrderRepository) *QueueService {
	return &QueueService{orders: orders}
}

// KitchenQueue позиции станции destination в порядке создания заказов
func (s *QueueService) KitchenQueue(ctx context.Context, tenantID, destination string, statuses []domain.ItemStatus) ([]QueueItem, error) {
	destination = domain.NormalizeDestination(destination)
	if tenantID == "" || destination == "" {
		return nil, fmt.Errorf("%w: tenant and destination required", domain.ErrInvalidInput)
	}
	if len(statuses) == 0 {
		statuses = DefaultKitchenStatuses
	}
	for _, st := range statuses {
		if !st.Valid() {
			return nil, fmt.Errorf("%w: unknown item status %q", domain.ErrInvalidInput, st)
		}
	}
	rows, err := s.orders.ListItems(ctx, repository.ItemFilter{
		TenantID:             tenantID,
		Destination:          destination,
		ItemStatuses:         statuses,
		ExcludeOrderStatuses: kitchenHiddenOrders,
	})
	if err != nil {
		return nil, err
	}
	return toQueueItems(rows), nil
}

// PickupQueue готовые позиции, ожидающие официанта
func (s *QueueService) PickupQueue(ctx context.Context, tenantID string) ([]QueueItem, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenant required", domain.ErrInvalidInput)
	}
	rows, err := s.orders.ListItems(ctx, repository.ItemFilter{
		TenantID:      tenantID,
		ItemStatuses:  []domain.ItemStatus{domain.ItemStatusReady},
		OrderStatuses: pickupOrders,
	})
	if err != nil {
		return nil, err
	}
	return toQueueItems(rows), nil
}

// StaffOrders сводка заказов; по умолчанию все незакрытые
func (s *QueueService) StaffOrders(ctx context.Context, tenantID string, statuses []domain.OrderStatus) ([]OrderSummary, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenant required", domain.ErrInvalidInput)
	}
	if len(statuses) == 0 {
		statuses = DefaultStaffOrderStatuses
	}
	for _, st := range statuses {
		if !st.Valid() {
			return nil, fmt.Errorf("%w: unknown order status %q", domain.ErrInvalidInput, st)
		}
	}
	list, err := s.orders.ListOrders(ctx, repository.OrderFilter{TenantID: tenantID, Statuses: statuses})
	if err != nil {
		return nil, err
	}
	out := make([]OrderSummary, 0, len(list))
	for _, o := range list {
		count := 0
		for _, it := range o.Items {
			if it.Status != domain.ItemStatusCancelled {
				count += it.Quantity
			}
		}
		out = append(out, OrderSummary{
			ID:              o.ID,
			OrderNumber:     o.OrderNumber,
			Status:          o.Status,
			TableIdentifier: o.TableIdentifier,
			OrderType:       o.OrderType,
			ItemCount:       count,
			FinalAmount:     o.FinalAmount,
			BillRequested:   o.BillRequested,
			CreatedAt:       o.CreatedAt,
		})
	}
	return out, nil
}

func toQueueItems(rows []repository.ItemRow) []QueueItem {
	out := make([]QueueItem, 0, len(rows))
	for _, r := range rows {
		out = append(out, QueueItem{
			ItemID:           r.Item.ID,
			OrderID:          r.Order.ID,
			OrderNumber:      r.Order.OrderNumber,
			OrderStatus:      r.Order.Status,
			TableIdentifier:  r.Order.TableIdentifier,
			OrderCreatedAt:   r.Order.CreatedAt,
			ItemNameSnapshot: r.Item.ItemNameSnapshot,
			Quantity:         r.Item.Quantity,
			Notes:            r.Item.Notes,
			KDSDestination:   r.Item.KDSDestination,
			Status:           r.Item.Status,
			CreatedAt:        r.Item.CreatedAt,
			PreparedAt:       r.Item.PreparedAt,
		})
	}
	return out
}
