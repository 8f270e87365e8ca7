package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"camarero/internal/domain"
	"camarero/internal/payment"
	"camarero/internal/service"
)

// Client HTTP-клиент экранов кухни, бара и официанта. Очереди опрашиваются, push нет.
type Client struct {
	baseURL    string
	actor      domain.Actor
	httpClient *http.Client
}

func New(baseURL string, actor domain.Actor) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		actor:   actor,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// APIError ответ сервера с ошибкой; Unwrap возвращает доменную ошибку по коду
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	switch e.Code {
	case "NOT_FOUND":
		return domain.ErrNotFound
	case "INVALID_TRANSITION":
		return domain.ErrInvalidTransition
	case "STALE_STATE":
		return domain.ErrStaleState
	case "UNAUTHORIZED":
		return domain.ErrUnauthorized
	case "ORDER_CLOSED":
		return domain.ErrOrderClosed
	case "INVALID_INPUT":
		return domain.ErrInvalidInput
	case "PAYMENT_DECLINED":
		return payment.ErrDeclined
	}
	return nil
}

func (c *Client) KitchenQueue(ctx context.Context, destination string, statuses ...domain.ItemStatus) ([]service.QueueItem, error) {
	q := url.Values{}
	if destination != "" {
		q.Set("destination", destination)
	}
	if len(statuses) > 0 {
		parts := make([]string, len(statuses))
		for i, st := range statuses {
			parts[i] = string(st)
		}
		q.Set("status", strings.Join(parts, ","))
	}
	var out []service.QueueItem
	err := c.do(ctx, http.MethodGet, "/api/v1/kds/items?"+q.Encode(), nil, &out)
	return out, err
}

func (c *Client) PickupQueue(ctx context.Context) ([]service.QueueItem, error) {
	var out []service.QueueItem
	err := c.do(ctx, http.MethodGet, "/api/v1/pickup/items", nil, &out)
	return out, err
}

func (c *Client) StaffOrders(ctx context.Context, statuses ...domain.OrderStatus) ([]service.OrderSummary, error) {
	path := "/api/v1/orders"
	if len(statuses) > 0 {
		parts := make([]string, len(statuses))
		for i, st := range statuses {
			parts[i] = string(st)
		}
		path += "?status=" + url.QueryEscape(strings.Join(parts, ","))
	}
	var out []service.OrderSummary
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func (c *Client) CreateOrder(ctx context.Context, in service.NewOrder) (*domain.Order, error) {
	var out domain.Order
	if err := c.do(ctx, http.MethodPost, "/api/v1/orders", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	var out domain.Order
	if err := c.do(ctx, http.MethodGet, "/api/v1/orders/"+url.PathEscape(orderID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AdvanceItem expected пустой: сервер берёт прямого предшественника target
func (c *Client) AdvanceItem(ctx context.Context, itemID string, target, expected domain.ItemStatus) (*service.ItemResult, error) {
	body := map[string]string{"status": string(target)}
	if expected != "" {
		body["expected"] = string(expected)
	}
	var out service.ItemResult
	if err := c.do(ctx, http.MethodPatch, "/api/v1/items/"+url.PathEscape(itemID)+"/status", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CancelItem(ctx context.Context, itemID string, expected domain.ItemStatus) (*service.ItemResult, error) {
	var out service.ItemResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/items/"+url.PathEscape(itemID)+"/cancel", map[string]string{"expected": string(expected)}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CancelOrder(ctx context.Context, orderID string, expected domain.OrderStatus) (*domain.Order, error) {
	var out domain.Order
	if err := c.do(ctx, http.MethodPost, "/api/v1/orders/"+url.PathEscape(orderID)+"/cancel", map[string]string{"expected": string(expected)}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AddItems дозаказ; готовый или ожидающий оплаты заказ возвращается в работу
func (c *Client) AddItems(ctx context.Context, orderID string, items []service.NewOrderItem) (*domain.Order, error) {
	var out domain.Order
	body := map[string][]service.NewOrderItem{"items": items}
	if err := c.do(ctx, http.MethodPost, "/api/v1/orders/"+url.PathEscape(orderID)+"/items", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RequestBill(ctx context.Context, orderID, preference string) (*domain.Order, error) {
	var out domain.Order
	if err := c.do(ctx, http.MethodPost, "/api/v1/orders/"+url.PathEscape(orderID)+"/bill", map[string]string{"payment_preference": preference}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) MarkPaid(ctx context.Context, orderID string, details service.PaymentDetails) (*domain.Order, error) {
	var out domain.Order
	if err := c.do(ctx, http.MethodPost, "/api/v1/orders/"+url.PathEscape(orderID)+"/pay", details, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Poll вызывает fn сразу и затем каждые interval, пока ctx не отменён или fn не вернёт ошибку.
// Ошибки запроса передаются в fn: экран решает сам, показывать ли их.
func (c *Client) Poll(ctx context.Context, interval time.Duration, fn func(ctx context.Context) error) error {
	if interval <= 0 {
		return errors.New("poll interval must be positive")
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := fn(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", c.actor.TenantID)
	req.Header.Set("X-Actor-Role", string(c.actor.Role))
	if c.actor.UserID != "" {
		req.Header.Set("X-Actor-ID", c.actor.UserID)
	}
	if c.actor.Station != "" {
		req.Header.Set("X-Station", c.actor.Station)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("API request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		var e struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return &APIError{Status: resp.StatusCode, Code: e.Code, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
