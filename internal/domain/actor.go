package domain

import "strings"

// Role роль персонала, приходит от внешнего слоя аутентификации
type Role string

const (
	RoleKitchenStaff  Role = "KITCHEN_STAFF"
	RoleBarStaff      Role = "BAR_STAFF"
	RoleWaiter        Role = "WAITER"
	RoleBusinessAdmin Role = "BUSINESS_ADMIN"
	RoleCustomer      Role = "CUSTOMER"
)

func (r Role) Valid() bool {
	switch r {
	case RoleKitchenStaff, RoleBarStaff, RoleWaiter, RoleBusinessAdmin, RoleCustomer:
		return true
	}
	return false
}

// Actor тот, кто запрашивает переход. Ядро доверяет заявленной роли.
type Actor struct {
	TenantID string `json:"tenant_id"`
	UserID   string `json:"user_id"`
	Role     Role   `json:"role"`
	// Station явная станция KDS; для KITCHEN_STAFF/BAR_STAFF по умолчанию берётся из роли
	Station string `json:"station,omitempty"`
}

// IsStation сообщает, является ли актор экраном кухни или бара
func (a Actor) IsStation() bool {
	return a.Role == RoleKitchenStaff || a.Role == RoleBarStaff
}

// StationDestination станция, которую обслуживает актор
func (a Actor) StationDestination() string {
	if a.Station != "" {
		return NormalizeDestination(a.Station)
	}
	switch a.Role {
	case RoleKitchenStaff:
		return DestinationKitchen
	case RoleBarStaff:
		return DestinationBar
	}
	return ""
}

// Name для журнала и событий
func (a Actor) Name() string {
	if a.UserID != "" {
		return a.UserID
	}
	return string(a.Role)
}

// NormalizeDestination приводит тег станции к верхнему регистру
func NormalizeDestination(d string) string {
	return strings.ToUpper(strings.TrimSpace(d))
}
