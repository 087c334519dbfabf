package channel

import (
	"errors"
	"fmt"
)

var (
	// ErrSendFailed — канал вернул ошибку.
	ErrSendFailed = errors.New("channel send failed")

	// ErrRetryExhausted — все попытки отправки исчерпаны.
	ErrRetryExhausted = errors.New("send retry attempts exhausted")
)

// APIError — ошибка, возвращённая Cloud API.
type APIError struct {
	StatusCode int
	Code       int
	Message    string
}

// Error реализует интерфейс error.
func (e *APIError) Error() string {
	return fmt.Sprintf("whatsapp api: status %d, code %d: %s", e.StatusCode, e.Code, e.Message)
}

// Unwrap связывает ошибку с ErrSendFailed.
func (e *APIError) Unwrap() error {
	return ErrSendFailed
}

// Retryable — стоит ли повторять запрос (5xx и 429).
func (e *APIError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}
