package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"camarero/internal/domain"
	"camarero/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// NewOrderItem строка нового заказа; имя и цена фиксируются снимком
type NewOrderItem struct {
	Name        string          `json:"name"`
	Destination string          `json:"destination"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Notes       string          `json:"notes,omitempty"`
}

// NewOrder входные данные приёма заказа
type NewOrder struct {
	TableIdentifier string           `json:"table_identifier,omitempty"`
	OrderType       domain.OrderType `json:"order_type"`
	Discount        decimal.Decimal  `json:"discount"`
	Items           []NewOrderItem   `json:"items"`
}

// OrderIntake создаёт заказы в RECEIVED со всеми позициями в PENDING
type OrderIntake struct {
	orders repository.OrderRepository
	logs   repository.LogRepository
	tx     repository.TxManager
	log    *slog.Logger
	retry  RetryConfig
	now    func() time.Time
}

func NewOrderIntake(store repository.Store, log *slog.Logger) *OrderIntake {
	if log == nil {
		log = slog.Default()
	}
	return &OrderIntake{orders: store, logs: store, tx: store, log: log, retry: DefaultRetryConfig(), now: time.Now}
}

func validateNewOrder(in *NewOrder) error {
	if len(in.Items) == 0 {
		return fmt.Errorf("%w: order needs at least one item", domain.ErrInvalidInput)
	}
	if in.OrderType == "" {
		in.OrderType = domain.OrderTypeDineIn
	}
	if !in.OrderType.Valid() {
		return fmt.Errorf("%w: unknown order type %q", domain.ErrInvalidInput, in.OrderType)
	}
	if in.Discount.IsNegative() {
		return fmt.Errorf("%w: negative discount", domain.ErrInvalidInput)
	}
	return validateItems(in.Items)
}

func validateItems(items []NewOrderItem) error {
	if len(items) == 0 {
		return fmt.Errorf("%w: at least one item required", domain.ErrInvalidInput)
	}
	for i, it := range items {
		if strings.TrimSpace(it.Name) == "" {
			return fmt.Errorf("%w: item %d has no name", domain.ErrInvalidInput, i)
		}
		if it.Quantity <= 0 {
			return fmt.Errorf("%w: item %d quantity must be positive", domain.ErrInvalidInput, i)
		}
		if it.UnitPrice.IsNegative() {
			return fmt.Errorf("%w: item %d has negative price", domain.ErrInvalidInput, i)
		}
	}
	return nil
}

// buildItems снимки новых позиций в статусе PENDING; станция по умолчанию KITCHEN
func buildItems(in []NewOrderItem, now time.Time) []domain.OrderItem {
	out := make([]domain.OrderItem, 0, len(in))
	for _, it := range in {
		dest := domain.NormalizeDestination(it.Destination)
		if dest == "" {
			dest = domain.DestinationKitchen
		}
		out = append(out, domain.OrderItem{
			ID:               uuid.NewString(),
			Status:           domain.ItemStatusPending,
			KDSDestination:   dest,
			Quantity:         it.Quantity,
			ItemNameSnapshot: strings.TrimSpace(it.Name),
			UnitPrice:        it.UnitPrice,
			Notes:            it.Notes,
			CreatedAt:        now,
		})
	}
	return out
}

// CreateOrder присваивает номер внутри транзакции; конфликт номера при гонке повторяется
func (s *OrderIntake) CreateOrder(ctx context.Context, actor domain.Actor, in NewOrder) (*domain.Order, error) {
	if actor.TenantID == "" {
		return nil, fmt.Errorf("%w: tenant required", domain.ErrInvalidInput)
	}
	if err := validateNewOrder(&in); err != nil {
		return nil, err
	}

	created, err := retryTransient(ctx, s.retry, func() (*domain.Order, error) {
		now := s.now().UTC()
		o := &domain.Order{
			ID:              uuid.NewString(),
			TenantID:        actor.TenantID,
			Status:          domain.OrderStatusReceived,
			TableIdentifier: in.TableIdentifier,
			OrderType:       in.OrderType,
			DiscountAmount:  in.Discount,
			CreatedAt:       now,
		}
		o.Items = buildItems(in.Items, now)
		o.TotalAmount, o.FinalAmount = o.Totals()

		err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
			if err := s.orders.CreateOrder(ctx, o); err != nil {
				return err
			}
			return s.logs.AppendStatusLog(ctx, domain.StatusLogEntry{
				OrderID:   o.ID,
				To:        string(o.Status),
				ChangedBy: actor.Name(),
				ChangedAt: now,
			})
		})
		if err != nil {
			return nil, err
		}
		return o, nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("order created", "action", "create_order", "order_id", created.ID, "order_number", created.OrderNumber, "items", len(created.Items))
	return created, nil
}
