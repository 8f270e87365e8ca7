package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// actorProperties общие поля личности: аутентификация внешняя, роль заявляется вызывающим
func actorProperties() map[string]interface{} {
	return map[string]interface{}{
		"tenant_id": map[string]interface{}{
			"type":        "string",
			"description": "Tenant (restaurant) identifier",
		},
		"role": map[string]interface{}{
			"type":        "string",
			"description": "Actor role",
			"enum":        []string{"KITCHEN_STAFF", "BAR_STAFF", "WAITER", "BUSINESS_ADMIN", "CUSTOMER"},
		},
		"actor_id": map[string]interface{}{
			"type":        "string",
			"description": "User identifier recorded in the status log",
		},
		"station": map[string]interface{}{
			"type":        "string",
			"description": "KDS station tag for station staff (KITCHEN, BAR, ...)",
		},
	}
}

func withActor(props map[string]interface{}, required ...string) mcp.ToolInputSchema {
	all := actorProperties()
	for k, v := range props {
		all[k] = v
	}
	return mcp.ToolInputSchema{
		Type:       "object",
		Properties: all,
		Required:   append([]string{"tenant_id", "role"}, required...),
	}
}

func stringProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": description}
}

func kitchenQueueTool() mcp.Tool {
	return mcp.Tool{
		Name:        "kitchen_queue",
		Description: "List items a KDS station still has to prepare, oldest orders first",
		InputSchema: withActor(map[string]interface{}{
			"destination": stringProp("Station tag; defaults to the actor station"),
			"statuses": map[string]interface{}{
				"type":        "array",
				"description": "Item statuses to include (default PENDING, PREPARING)",
				"items": map[string]interface{}{
					"type": "string",
					"enum": []string{"PENDING", "PREPARING", "READY", "SERVED", "CANCELLED"},
				},
			},
		}),
	}
}

func pickupQueueTool() mcp.Tool {
	return mcp.Tool{
		Name:        "pickup_queue",
		Description: "List READY items waiting for a waiter",
		InputSchema: withActor(nil),
	}
}

func getOrderTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_order",
		Description: "Fetch an order with its items and current statuses",
		InputSchema: withActor(map[string]interface{}{
			"order_id": stringProp("Order identifier"),
		}, "order_id"),
	}
}

func advanceItemTool() mcp.Tool {
	return mcp.Tool{
		Name:        "advance_item",
		Description: "Move an item along PENDING -> PREPARING -> READY -> SERVED. Fails with STALE_STATE if another device moved it first.",
		InputSchema: withActor(map[string]interface{}{
			"item_id": stringProp("Item identifier"),
			"target": map[string]interface{}{
				"type": "string",
				"enum": []string{"PREPARING", "READY", "SERVED"},
			},
			"expected": stringProp("Status the caller last saw; defaults to the direct predecessor of target"),
		}, "item_id", "target"),
	}
}

func cancelItemTool() mcp.Tool {
	return mcp.Tool{
		Name:        "cancel_item",
		Description: "Cancel an item that is still PENDING or PREPARING",
		InputSchema: withActor(map[string]interface{}{
			"item_id":  stringProp("Item identifier"),
			"expected": stringProp("Status the caller last saw"),
		}, "item_id"),
	}
}

func cancelOrderTool() mcp.Tool {
	return mcp.Tool{
		Name:        "cancel_order",
		Description: "Cancel a RECEIVED or IN_PROGRESS order together with its open items",
		InputSchema: withActor(map[string]interface{}{
			"order_id": stringProp("Order identifier"),
			"expected": stringProp("Order status the caller last saw"),
		}, "order_id"),
	}
}

func addItemsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "add_items",
		Description: "Add PENDING items to an open order. A ready or billed order goes back to the kitchen and its bill request is cleared.",
		InputSchema: withActor(map[string]interface{}{
			"order_id": stringProp("Order identifier"),
			"items": map[string]interface{}{
				"type":        "array",
				"description": "Items to add",
				"items": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"name":        stringProp("Dish name"),
						"destination": stringProp("KDS station; defaults to KITCHEN"),
						"quantity":    map[string]interface{}{"type": "integer", "minimum": 1},
						"unit_price":  stringProp("Unit price as a decimal string"),
						"notes":       stringProp("Free text for the station"),
					},
					"required": []string{"name", "quantity", "unit_price"},
				},
			},
		}, "order_id", "items"),
	}
}

func requestBillTool() mcp.Tool {
	return mcp.Tool{
		Name:        "request_bill",
		Description: "Move a COMPLETED order to PENDING_PAYMENT",
		InputSchema: withActor(map[string]interface{}{
			"order_id":           stringProp("Order identifier"),
			"payment_preference": stringProp("CASH or CARD"),
		}, "order_id"),
	}
}

func markPaidTool() mcp.Tool {
	return mcp.Tool{
		Name:        "mark_paid",
		Description: "Record the payment of an order in PENDING_PAYMENT",
		InputSchema: withActor(map[string]interface{}{
			"order_id":  stringProp("Order identifier"),
			"reference": stringProp("Receipt or terminal reference"),
			"method":    stringProp("CASH or CARD"),
		}, "order_id", "reference"),
	}
}
