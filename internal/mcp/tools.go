package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"camarero/internal/domain"
	"camarero/internal/service"
)

// MCP error codes
const (
	ErrorCodeInvalidParams = -32602 // Invalid method parameters
	ErrorCodeInternalError = -32603 // Internal JSON-RPC error
)

// MCPError ошибка протокола; доменные отказы возвращаются результатом с IsError
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{Code: code, Message: message, Data: data}
}

func (s *Server) handleKitchenQueue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, actor, err := parseActor(request)
	if err != nil {
		return nil, err
	}
	dest := getStringDefault(args, "destination", actor.StationDestination())
	var statuses []domain.ItemStatus
	for _, st := range getStringSlice(args, "statuses") {
		statuses = append(statuses, domain.ItemStatus(st))
	}
	list, err := s.queues.KitchenQueue(ctx, actor.TenantID, dest, statuses)
	return s.result("kitchen_queue", list, err)
}

func (s *Server) handlePickupQueue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	_, actor, err := parseActor(request)
	if err != nil {
		return nil, err
	}
	list, err := s.queues.PickupQueue(ctx, actor.TenantID)
	return s.result("pickup_queue", list, err)
}

func (s *Server) handleGetOrder(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, actor, err := parseActor(request)
	if err != nil {
		return nil, err
	}
	orderID, err := requireString(args, "order_id")
	if err != nil {
		return nil, err
	}
	o, err := s.transitions.GetOrder(ctx, actor, orderID)
	return s.result("get_order", o, err)
}

func (s *Server) handleAdvanceItem(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, actor, err := parseActor(request)
	if err != nil {
		return nil, err
	}
	itemID, err := requireString(args, "item_id")
	if err != nil {
		return nil, err
	}
	target, err := requireString(args, "target")
	if err != nil {
		return nil, err
	}
	res, err := s.transitions.AdvanceItem(ctx, actor, service.AdvanceRequest{
		ItemID:   itemID,
		Target:   domain.ItemStatus(target),
		Expected: domain.ItemStatus(getStringDefault(args, "expected", "")),
	})
	return s.result("advance_item", res, err)
}

func (s *Server) handleCancelItem(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, actor, err := parseActor(request)
	if err != nil {
		return nil, err
	}
	itemID, err := requireString(args, "item_id")
	if err != nil {
		return nil, err
	}
	res, err := s.transitions.CancelItem(ctx, actor, itemID, domain.ItemStatus(getStringDefault(args, "expected", "")))
	return s.result("cancel_item", res, err)
}

func (s *Server) handleCancelOrder(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, actor, err := parseActor(request)
	if err != nil {
		return nil, err
	}
	orderID, err := requireString(args, "order_id")
	if err != nil {
		return nil, err
	}
	o, err := s.transitions.CancelOrder(ctx, actor, orderID, domain.OrderStatus(getStringDefault(args, "expected", "")))
	return s.result("cancel_order", o, err)
}

func (s *Server) handleAddItems(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, actor, err := parseActor(request)
	if err != nil {
		return nil, err
	}
	orderID, err := requireString(args, "order_id")
	if err != nil {
		return nil, err
	}
	items, err := getItems(args, "items")
	if err != nil {
		return nil, err
	}
	o, err := s.transitions.AddItems(ctx, actor, orderID, items)
	return s.result("add_items", o, err)
}

func (s *Server) handleRequestBill(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, actor, err := parseActor(request)
	if err != nil {
		return nil, err
	}
	orderID, err := requireString(args, "order_id")
	if err != nil {
		return nil, err
	}
	o, err := s.transitions.RequestBill(ctx, actor, orderID, getStringDefault(args, "payment_preference", ""))
	return s.result("request_bill", o, err)
}

func (s *Server) handleMarkPaid(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, actor, err := parseActor(request)
	if err != nil {
		return nil, err
	}
	orderID, err := requireString(args, "order_id")
	if err != nil {
		return nil, err
	}
	o, err := s.transitions.MarkPaid(ctx, actor, orderID, service.PaymentDetails{
		Reference: getStringDefault(args, "reference", ""),
		Method:    getStringDefault(args, "method", ""),
	})
	return s.result("mark_paid", o, err)
}

// result доменные ошибки видны модели как текст с кодом, прочие уходят ошибкой протокола
func (s *Server) result(tool string, v any, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		if domain.IsDomain(err) {
			return mcp.NewToolResultError(fmt.Sprintf("%s: %v", domain.Code(err), err)), nil
		}
		s.log.Error("tool failed", "action", tool, "error", err)
		return nil, newMCPError(ErrorCodeInternalError, tool+" failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return mcp.NewToolResultText(formatJSON(v)), nil
}

func parseActor(request mcp.CallToolRequest) (map[string]interface{}, domain.Actor, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, domain.Actor{}, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}
	tenant, err := requireString(args, "tenant_id")
	if err != nil {
		return nil, domain.Actor{}, err
	}
	role := domain.Role(getStringDefault(args, "role", ""))
	if !role.Valid() {
		return nil, domain.Actor{}, newMCPError(ErrorCodeInvalidParams, "invalid role", map[string]interface{}{
			"param": "role",
			"value": string(role),
		})
	}
	return args, domain.Actor{
		TenantID: tenant,
		Role:     role,
		UserID:   getStringDefault(args, "actor_id", ""),
		Station:  getStringDefault(args, "station", ""),
	}, nil
}

func requireString(args map[string]interface{}, key string) (string, error) {
	v, ok := args[key].(string)
	if !ok || v == "" {
		return "", newMCPError(ErrorCodeInvalidParams, key+" parameter is required", map[string]interface{}{
			"param":  key,
			"reason": "missing or empty",
		})
	}
	return v, nil
}

func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if v, ok := args[key].(string); ok && v != "" {
		return v
	}
	return defaultValue
}

func getStringSlice(args map[string]interface{}, key string) []string {
	raw, ok := args[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// getItems разбирает массив позиций через JSON, чтобы цена принималась и строкой, и числом
func getItems(args map[string]interface{}, key string) ([]service.NewOrderItem, error) {
	raw, ok := args[key].([]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, key+" parameter must be an array", map[string]interface{}{
			"param": key,
		})
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid "+key, map[string]interface{}{"error": err.Error()})
	}
	var items []service.NewOrderItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid "+key, map[string]interface{}{"error": err.Error()})
	}
	return items, nil
}

func formatJSON(data any) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}
