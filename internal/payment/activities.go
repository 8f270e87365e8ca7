package payment

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
)

// Activities шаги расчёта с платёжным провайдером
type Activities struct {
	// Limit верхняя граница авторизации; ноль означает без ограничения
	Limit decimal.Decimal
}

func NewActivities(limit decimal.Decimal) *Activities {
	return &Activities{Limit: limit}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// Authorize резервирует сумму
func (a *Activities) Authorize(ctx context.Context, req SettlementRequest) (string, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Authorizing payment", "order_id", req.OrderID, "amount", req.Amount.String())

	if req.Amount.IsNegative() {
		return "", temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("invalid payment amount: %s", req.Amount), "InvalidAmount", nil)
	}
	if !a.Limit.IsZero() && req.Amount.GreaterThan(a.Limit) {
		return "", temporal.NewNonRetryableApplicationError(
			"payment amount exceeds authorization limit", "LimitExceeded", nil)
	}

	info := activity.GetInfo(ctx)
	return fmt.Sprintf("AUTH-%s-%d", shortID(req.OrderID), info.Attempt), nil
}

// Capture списывает авторизованную сумму
func (a *Activities) Capture(ctx context.Context, req SettlementRequest, authorizationID string) (string, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Capturing payment", "order_id", req.OrderID, "authorization_id", authorizationID)

	if authorizationID == "" {
		return "", temporal.NewNonRetryableApplicationError("invalid authorization ID", "InvalidAuthorization", nil)
	}
	if req.Reference != "" {
		// терминал уже выдал номер транзакции
		return req.Reference, nil
	}
	info := activity.GetInfo(ctx)
	return fmt.Sprintf("TXN-%s-%d", shortID(req.OrderID), info.Attempt), nil
}

// Void снимает авторизацию
func (a *Activities) Void(ctx context.Context, authorizationID string) error {
	activity.GetLogger(ctx).Info("Voiding authorization", "authorization_id", authorizationID)
	return nil
}
