package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shaiso/Botflow/internal/domain"
)

const (
	defaultBaseURL     = "https://graph.facebook.com/v18.0"
	defaultTimeout     = 30 * time.Second
	defaultMaxAttempts = 3
	defaultBaseDelay   = 2 * time.Second
	defaultMaxDelay    = 10 * time.Second

	// maxButtonTitle — ограничение Cloud API на заголовок кнопки.
	maxButtonTitle = 20
)

// WhatsAppConfig — настройки клиента Cloud API.
type WhatsAppConfig struct {
	BaseURL       string        // default: https://graph.facebook.com/v18.0
	PhoneNumberID string        // номер бизнеса, с которого идёт отправка
	Token         string        // access token
	Timeout       time.Duration // таймаут одного запроса (default: 30s)
	MaxAttempts   int           // попыток на сообщение (default: 3)
	BaseDelay     time.Duration // первая задержка между попытками (default: 2s)
	MaxDelay      time.Duration // потолок задержки (default: 10s)
	HTTPClient    *http.Client
	Logger        *slog.Logger
}

// WhatsApp — клиент WhatsApp Cloud API.
//
// Сетевые ошибки, 429 и 5xx повторяются с экспоненциальной задержкой,
// остальные 4xx возвращаются сразу.
type WhatsApp struct {
	endpoint    string
	token       string
	client      *http.Client
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	logger      *slog.Logger
}

// NewWhatsApp создаёт клиента.
func NewWhatsApp(cfg WhatsAppConfig) *WhatsApp {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}

	w := &WhatsApp{
		endpoint:    baseURL + "/" + cfg.PhoneNumberID + "/messages",
		token:       cfg.Token,
		client:      client,
		maxAttempts: cfg.MaxAttempts,
		baseDelay:   cfg.BaseDelay,
		maxDelay:    cfg.MaxDelay,
		logger:      cfg.Logger,
	}
	if w.maxAttempts <= 0 {
		w.maxAttempts = defaultMaxAttempts
	}
	if w.baseDelay <= 0 {
		w.baseDelay = defaultBaseDelay
	}
	if w.maxDelay <= 0 {
		w.maxDelay = defaultMaxDelay
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	return w
}

// SendText отправляет текстовое сообщение.
func (w *WhatsApp) SendText(ctx context.Context, to, text string) (string, error) {
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"recipient_type":    "individual",
		"to":                to,
		"type":              "text",
		"text": map[string]any{
			"preview_url": false,
			"body":        text,
		},
	}
	return w.send(ctx, payload)
}

// SendButtons отправляет интерактивное сообщение с кнопками ответа (не больше трёх).
func (w *WhatsApp) SendButtons(ctx context.Context, to, body string, options []domain.ButtonOption) (string, error) {
	if len(options) > domain.MaxButtons {
		options = options[:domain.MaxButtons]
	}

	buttons := make([]map[string]any, len(options))
	for i, opt := range options {
		buttons[i] = map[string]any{
			"type": "reply",
			"reply": map[string]string{
				"id":    opt.ID,
				"title": truncate(opt.Title, maxButtonTitle),
			},
		}
	}

	payload := map[string]any{
		"messaging_product": "whatsapp",
		"recipient_type":    "individual",
		"to":                to,
		"type":              "interactive",
		"interactive": map[string]any{
			"type":   "button",
			"body":   map[string]string{"text": body},
			"action": map[string]any{"buttons": buttons},
		},
	}
	return w.send(ctx, payload)
}

// send выполняет запрос с повторами.
func (w *WhatsApp) send(ctx context.Context, payload any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		id, err := w.post(ctx, body)
		if err == nil {
			return id, nil
		}
		lastErr = err

		if !shouldRetry(err) || attempt == w.maxAttempts {
			break
		}

		delay := calculateBackoff(attempt, w.baseDelay, w.maxDelay)
		w.logger.Warn("whatsapp send failed, retrying",
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
	}

	if shouldRetry(lastErr) {
		return "", fmt.Errorf("%w: %w", ErrRetryExhausted, lastErr)
	}
	return "", lastErr
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// post выполняет одну попытку.
func (w *WhatsApp) post(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+w.token)

	resp, err := w.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", ErrSendFailed, err)
	}

	var parsed sendResponse
	_ = json.Unmarshal(raw, &parsed)

	if resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
		if parsed.Error != nil {
			apiErr.Code = parsed.Error.Code
			apiErr.Message = parsed.Error.Message
		}
		return "", apiErr
	}

	if len(parsed.Messages) == 0 {
		return "", nil
	}
	return parsed.Messages[0].ID, nil
}

// shouldRetry — сетевые ошибки и повторяемые ответы API.
func shouldRetry(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	return errors.Is(err, ErrSendFailed)
}

// calculateBackoff вычисляет задержку перед попыткой attempt+1:
// base * 2^(attempt-1), не больше maxDelay.
func calculateBackoff(attempt int, base, maxDelay time.Duration) time.Duration {
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maxDelay {
			return maxDelay
		}
	}
	return min(delay, maxDelay)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
