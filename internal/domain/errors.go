package domain

import "errors"

// Ошибки ядра. Сервис оборачивает их через fmt.Errorf("%w: ...").
var (
	// ErrNotFound позиция или заказ не существуют (или принадлежат другому тенанту)
	ErrNotFound = errors.New("not found")

	// ErrInvalidTransition ребра нет в таблице переходов
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrStaleState сохранённый статус не совпал с ожидаемым; перечитать и решить заново
	ErrStaleState = errors.New("stale state")

	ErrUnauthorized = errors.New("unauthorized")

	// ErrOrderClosed заказ уже PAID или CANCELLED
	ErrOrderClosed = errors.New("order closed")

	ErrInvalidInput = errors.New("invalid input")
)

// Code машинный код ошибки для транспорта
func Code(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrInvalidTransition):
		return "INVALID_TRANSITION"
	case errors.Is(err, ErrStaleState):
		return "STALE_STATE"
	case errors.Is(err, ErrUnauthorized):
		return "UNAUTHORIZED"
	case errors.Is(err, ErrOrderClosed):
		return "ORDER_CLOSED"
	case errors.Is(err, ErrInvalidInput):
		return "INVALID_INPUT"
	}
	return "INTERNAL"
}

// IsDomain отличает доменные ошибки от сбоев хранилища
func IsDomain(err error) bool {
	return Code(err) != "INTERNAL"
}
