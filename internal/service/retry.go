package service

import (
	"context"
	"errors"
	"time"

	"camarero/internal/domain"
	"camarero/internal/repository"
)

// RetryConfig повтор пересчёта при сбоях хранилища; задержка растёт линейно
type RetryConfig struct {
	Attempts int
	Delay    time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{Attempts: 3, Delay: 25 * time.Millisecond}
}

// transient доменные ошибки и проигранные условные записи не повторяются
func transient(err error) bool {
	switch {
	case err == nil:
		return false
	case domain.IsDomain(err):
		return false
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, repository.ErrPreconditionFailed):
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}

func retryTransient[T any](ctx context.Context, cfg RetryConfig, fn func() (T, error)) (T, error) {
	var zero T
	attempts := cfg.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !transient(err) || ctx.Err() != nil {
			return zero, err
		}
		if attempt < attempts {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(time.Duration(attempt) * cfg.Delay):
			}
		}
	}
	return zero, lastErr
}
