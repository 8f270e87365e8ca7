package payment

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const (
	SettlementWorkflowName = "SettlementWorkflow"

	// DefaultTaskQueue очередь воркера расчётов
	DefaultTaskQueue = "camarero-settlement"
)

// WorkflowID один расчёт на заказ: повторные запросы присоединяются к той же execution
func WorkflowID(orderID string) string {
	return "settle-" + orderID
}

// SettlementWorkflow authorize -> capture; при сбое capture авторизация отменяется
func SettlementWorkflow(ctx workflow.Context, req SettlementRequest) (Settlement, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("SettlementWorkflow started", "order_id", req.OrderID, "amount", req.Amount.String())

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 20 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    10 * time.Second,
			MaximumAttempts:    3,
		},
	})

	var acts *Activities

	var authorizationID string
	if err := workflow.ExecuteActivity(ctx, acts.Authorize, req).Get(ctx, &authorizationID); err != nil {
		logger.Error("Authorization failed", "order_id", req.OrderID, "error", err)
		return Settlement{}, fmt.Errorf("authorization failed: %w", err)
	}

	var transactionID string
	if err := workflow.ExecuteActivity(ctx, acts.Capture, req, authorizationID).Get(ctx, &transactionID); err != nil {
		logger.Error("Capture failed", "order_id", req.OrderID, "error", err)

		voidCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
			StartToCloseTimeout: 10 * time.Second,
		})
		_ = workflow.ExecuteActivity(voidCtx, acts.Void, authorizationID).Get(ctx, nil)

		return Settlement{}, fmt.Errorf("capture failed: %w", err)
	}

	logger.Info("Settlement captured", "order_id", req.OrderID, "transaction_id", transactionID)
	return Settlement{
		Reference: transactionID,
		Method:    normalizeMethod(req.Method),
		SettledAt: workflow.Now(ctx).UTC(),
	}, nil
}
