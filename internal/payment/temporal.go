package payment

import (
	"context"
	"errors"
	"fmt"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"
)

// TemporalGate проводит расчёт через SettlementWorkflow
type TemporalGate struct {
	client    client.Client
	taskQueue string
}

func NewTemporalGate(c client.Client, taskQueue string) *TemporalGate {
	if taskQueue == "" {
		taskQueue = DefaultTaskQueue
	}
	return &TemporalGate{client: c, taskQueue: taskQueue}
}

func (g *TemporalGate) Settle(ctx context.Context, req SettlementRequest) (Settlement, error) {
	opts := client.StartWorkflowOptions{
		ID:                       WorkflowID(req.OrderID),
		TaskQueue:                g.taskQueue,
		WorkflowIDReusePolicy:    enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE_FAILED_ONLY,
		WorkflowIDConflictPolicy: enumspb.WORKFLOW_ID_CONFLICT_POLICY_USE_EXISTING,
	}
	run, err := g.client.ExecuteWorkflow(ctx, opts, SettlementWorkflow, req)
	if err != nil {
		return Settlement{}, fmt.Errorf("start settlement: %w", err)
	}

	var out Settlement
	if err := run.Get(ctx, &out); err != nil {
		var wfErr *temporal.WorkflowExecutionError
		if errors.As(err, &wfErr) {
			return Settlement{}, fmt.Errorf("%w: %v", ErrDeclined, err)
		}
		return Settlement{}, fmt.Errorf("settlement result: %w", err)
	}
	return out, nil
}

// NewWorker регистрирует workflow и activities расчёта
func NewWorker(c client.Client, taskQueue string, acts *Activities) worker.Worker {
	if taskQueue == "" {
		taskQueue = DefaultTaskQueue
	}
	w := worker.New(c, taskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     100,
		MaxConcurrentWorkflowTaskExecutionSize: 50,
	})
	w.RegisterWorkflow(SettlementWorkflow)
	w.RegisterActivity(acts)
	return w
}
