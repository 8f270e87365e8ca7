package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"camarero/internal/domain"
	"camarero/internal/events"
	"camarero/internal/payment"
	"camarero/internal/repository"
	"camarero/internal/service"
)

// ToolsTestSuite вызывает обработчики инструментов напрямую
type ToolsTestSuite struct {
	suite.Suite
	server *Server
	intake *service.OrderIntake
	ctx    context.Context
}

func (s *ToolsTestSuite) SetupTest() {
	s.ctx = context.Background()
	store := repository.NewMemory()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	orders := service.NewOrderStore(store, events.NewMemory(), log)
	transitions := service.NewTransitionService(store, orders, payment.NewManualGate(), log)
	s.server = NewServer(transitions, service.NewQueueService(store), log)
	s.intake = service.NewOrderIntake(store, log)
}

func (s *ToolsTestSuite) newOrder() *domain.Order {
	o, err := s.intake.CreateOrder(s.ctx, domain.Actor{TenantID: "cafe-1", Role: domain.RoleWaiter}, service.NewOrder{
		Items: []service.NewOrderItem{{Name: "Croquetas", Destination: "KITCHEN", Quantity: 2, UnitPrice: decimal.NewFromInt(3)}},
	})
	s.Require().NoError(err)
	return o
}

func call(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{Name: name, Arguments: args},
	}
}

func textOf(s *ToolsTestSuite, res *mcp.CallToolResult) string {
	s.Require().NotNil(res)
	s.Require().NotEmpty(res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	s.Require().True(ok)
	return tc.Text
}

func (s *ToolsTestSuite) TestKitchenQueueAndAdvance() {
	o := s.newOrder()
	station := map[string]interface{}{"tenant_id": "cafe-1", "role": "KITCHEN_STAFF", "actor_id": "k1"}

	res, err := s.server.handleKitchenQueue(s.ctx, call("kitchen_queue", station))
	s.Require().NoError(err)
	var queue []service.QueueItem
	s.Require().NoError(json.Unmarshal([]byte(textOf(s, res)), &queue))
	s.Require().Len(queue, 1)
	s.Equal(o.Items[0].ID, queue[0].ItemID)

	args := map[string]interface{}{"tenant_id": "cafe-1", "role": "KITCHEN_STAFF", "item_id": o.Items[0].ID, "target": "PREPARING"}
	res, err = s.server.handleAdvanceItem(s.ctx, call("advance_item", args))
	s.Require().NoError(err)
	s.False(res.IsError)
	var out service.ItemResult
	s.Require().NoError(json.Unmarshal([]byte(textOf(s, res)), &out))
	s.Equal(domain.OrderStatusInProgress, out.Order.Status)

	// повтор с того же устройства
	res, err = s.server.handleAdvanceItem(s.ctx, call("advance_item", args))
	s.Require().NoError(err)
	s.True(res.IsError)
	s.Contains(textOf(s, res), "STALE_STATE")
}

func (s *ToolsTestSuite) TestOrderLevelTools() {
	o := s.newOrder()
	waiter := func(extra map[string]interface{}) map[string]interface{} {
		args := map[string]interface{}{"tenant_id": "cafe-1", "role": "WAITER", "order_id": o.ID}
		for k, v := range extra {
			args[k] = v
		}
		return args
	}

	res, err := s.server.handleGetOrder(s.ctx, call("get_order", waiter(nil)))
	s.Require().NoError(err)
	s.Contains(textOf(s, res), o.OrderNumber)

	res, err = s.server.handleRequestBill(s.ctx, call("request_bill", waiter(nil)))
	s.Require().NoError(err)
	s.True(res.IsError)
	s.Contains(textOf(s, res), "INVALID_TRANSITION")

	res, err = s.server.handlePickupQueue(s.ctx, call("pickup_queue", waiter(nil)))
	s.Require().NoError(err)
	s.Equal("[]", textOf(s, res))

	res, err = s.server.handleCancelOrder(s.ctx, call("cancel_order", waiter(nil)))
	s.Require().NoError(err)
	s.False(res.IsError)

	res, err = s.server.handleMarkPaid(s.ctx, call("mark_paid", waiter(map[string]interface{}{"reference": "R1"})))
	s.Require().NoError(err)
	s.Contains(textOf(s, res), "ORDER_CLOSED")

	res, err = s.server.handleCancelItem(s.ctx, call("cancel_item", map[string]interface{}{
		"tenant_id": "cafe-1", "role": "BUSINESS_ADMIN", "item_id": o.Items[0].ID,
	}))
	s.Require().NoError(err)
	s.Contains(textOf(s, res), "ORDER_CLOSED")
}

func (s *ToolsTestSuite) TestAddItems() {
	o := s.newOrder()
	args := map[string]interface{}{
		"tenant_id": "cafe-1", "role": "CUSTOMER", "order_id": o.ID,
		"items": []interface{}{
			map[string]interface{}{"name": "Flan", "quantity": float64(1), "unit_price": "4.50"},
			map[string]interface{}{"name": "Caña", "destination": "bar", "quantity": float64(2), "unit_price": 2.5},
		},
	}
	res, err := s.server.handleAddItems(s.ctx, call("add_items", args))
	s.Require().NoError(err)
	s.Require().False(res.IsError, textOf(s, res))
	var out domain.Order
	s.Require().NoError(json.Unmarshal([]byte(textOf(s, res)), &out))
	s.Require().Len(out.Items, 3)
	s.Equal(domain.DestinationBar, out.Items[2].KDSDestination)
	s.True(out.TotalAmount.Equal(decimal.RequireFromString("15.5")))

	_, err = s.server.handleAddItems(s.ctx, call("add_items", map[string]interface{}{
		"tenant_id": "cafe-1", "role": "WAITER", "order_id": o.ID, "items": "flan",
	}))
	var mcpErr *MCPError
	s.Require().ErrorAs(err, &mcpErr)
	s.Equal(ErrorCodeInvalidParams, mcpErr.Code)

	res, err = s.server.handleCancelOrder(s.ctx, call("cancel_order", map[string]interface{}{
		"tenant_id": "cafe-1", "role": "WAITER", "order_id": o.ID,
	}))
	s.Require().NoError(err)
	s.Require().False(res.IsError)
	res, err = s.server.handleAddItems(s.ctx, call("add_items", args))
	s.Require().NoError(err)
	s.True(res.IsError)
	s.Contains(textOf(s, res), "ORDER_CLOSED")
}

func (s *ToolsTestSuite) TestServeStopsOnCancel() {
	in, w := io.Pipe()
	defer w.Close()
	ctx, cancel := context.WithCancel(s.ctx)
	done := make(chan error, 1)
	go func() { done <- s.server.listen(ctx, in, io.Discard) }()

	cancel()
	select {
	case err := <-done:
		s.NoError(err)
	case <-time.After(5 * time.Second):
		s.Fail("stdio server ignored context cancellation")
	}
}

func (s *ToolsTestSuite) TestServeEndsOnEOF() {
	var out bytes.Buffer
	err := s.server.listen(s.ctx, strings.NewReader(""), &out)
	s.NoError(err)
}

func (s *ToolsTestSuite) TestInvalidParams() {
	_, err := s.server.handleGetOrder(s.ctx, call("get_order", map[string]interface{}{"tenant_id": "cafe-1", "role": "WAITER"}))
	var mcpErr *MCPError
	s.Require().ErrorAs(err, &mcpErr)
	s.Equal(ErrorCodeInvalidParams, mcpErr.Code)

	_, err = s.server.handlePickupQueue(s.ctx, call("pickup_queue", map[string]interface{}{"tenant_id": "cafe-1", "role": "CHEF"}))
	s.Require().ErrorAs(err, &mcpErr)

	_, err = s.server.handlePickupQueue(s.ctx, mcp.CallToolRequest{})
	s.Require().Error(err)
}

func TestToolsTestSuite(t *testing.T) {
	suite.Run(t, new(ToolsTestSuite))
}
