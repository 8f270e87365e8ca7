package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"camarero/internal/domain"
	"github.com/shopspring/decimal"
)

// ErrDeclined платёж отклонён шлюзом
var ErrDeclined = errors.New("payment declined")

// Методы оплаты по умолчанию
const (
	MethodCash = "CASH"
	MethodCard = "CARD"
)

// SettlementRequest запрос на расчёт по заказу
type SettlementRequest struct {
	TenantID    string          `json:"tenant_id"`
	OrderID     string          `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	Amount      decimal.Decimal `json:"amount"`
	Method      string          `json:"method"`
	Reference   string          `json:"reference,omitempty"`
	RequestedBy string          `json:"requested_by"`
}

// Settlement подтверждённая оплата
type Settlement struct {
	Reference string    `json:"reference"`
	Method    string    `json:"method"`
	SettledAt time.Time `json:"settled_at"`
}

// Gate подтверждает, что оплата прошла. Вызывается до перевода заказа в PAID.
type Gate interface {
	Settle(ctx context.Context, req SettlementRequest) (Settlement, error)
}

// ManualGate оплата подтверждена человеком: наличные или внешний терминал
type ManualGate struct {
	now func() time.Time
}

func NewManualGate() *ManualGate {
	return &ManualGate{now: time.Now}
}

func (g *ManualGate) Settle(ctx context.Context, req SettlementRequest) (Settlement, error) {
	if err := ctx.Err(); err != nil {
		return Settlement{}, err
	}
	ref := strings.TrimSpace(req.Reference)
	if ref == "" {
		return Settlement{}, fmt.Errorf("%w: payment reference required", domain.ErrInvalidInput)
	}
	if req.Amount.IsNegative() {
		return Settlement{}, fmt.Errorf("%w: negative amount %s", ErrDeclined, req.Amount)
	}
	return Settlement{
		Reference: ref,
		Method:    normalizeMethod(req.Method),
		SettledAt: g.now().UTC(),
	}, nil
}

func normalizeMethod(m string) string {
	m = strings.ToUpper(strings.TrimSpace(m))
	if m == "" {
		return MethodCash
	}
	return m
}
