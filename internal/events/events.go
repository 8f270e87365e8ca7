package events

import (
	"context"
	"sync"
	"time"
)

// Kind уровень изменения
type Kind string

const (
	KindItem  Kind = "ITEM"
	KindOrder Kind = "ORDER"
)

// StatusChanged факт зафиксированной смены статуса. Подсказка для экранов, не источник истины.
type StatusChanged struct {
	Kind           Kind      `json:"kind"`
	TenantID       string    `json:"tenant_id"`
	OrderID        string    `json:"order_id"`
	OrderNumber    string    `json:"order_number,omitempty"`
	ItemID         string    `json:"item_id,omitempty"`
	KDSDestination string    `json:"kds_destination,omitempty"`
	From           string    `json:"from"`
	To             string    `json:"to"`
	ChangedBy      string    `json:"changed_by"`
	At             time.Time `json:"at"`
}

// Publisher доставка фактов наружу; at-most-once
type Publisher interface {
	Publish(ctx context.Context, ev StatusChanged) error
}

// Nop отбрасывает события
type Nop struct{}

func (Nop) Publish(context.Context, StatusChanged) error { return nil }

// Memory копит события, для тестов и локального запуска
type Memory struct {
	mu     sync.Mutex
	events []StatusChanged
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Publish(_ context.Context, ev StatusChanged) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

// Events копия накопленных событий
func (m *Memory) Events() []StatusChanged {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]StatusChanged, len(m.events))
	copy(out, m.events)
	return out
}
