package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Botflow/internal/domain"
	"github.com/shaiso/Botflow/internal/telemetry"
)

func newTestClient(url string) *WhatsApp {
	return NewWhatsApp(WhatsAppConfig{
		BaseURL:       url,
		PhoneNumberID: "12345",
		Token:         "secret",
		MaxAttempts:   3,
		BaseDelay:     time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		Logger:        telemetry.NopLogger(),
	})
}

func TestWhatsApp_SendText(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/12345/messages", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"messages":[{"id":"wamid.1"}]}`))
	}))
	defer server.Close()

	id, err := newTestClient(server.URL).SendText(context.Background(), "79990001122", "hi")
	require.NoError(t, err)
	assert.Equal(t, "wamid.1", id)

	assert.Equal(t, "text", got["type"])
	assert.Equal(t, "79990001122", got["to"])
	assert.Equal(t, "hi", got["text"].(map[string]any)["body"])
}

func TestWhatsApp_SendButtons(t *testing.T) {
	var got struct {
		Type        string `json:"type"`
		Interactive struct {
			Type string `json:"type"`
			Body struct {
				Text string `json:"text"`
			} `json:"body"`
			Action struct {
				Buttons []struct {
					Type  string `json:"type"`
					Reply struct {
						ID    string `json:"id"`
						Title string `json:"title"`
					} `json:"reply"`
				} `json:"buttons"`
			} `json:"action"`
		} `json:"interactive"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"messages":[{"id":"wamid.2"}]}`))
	}))
	defer server.Close()

	options := []domain.ButtonOption{
		{ID: "0", Title: "Yes"},
		{ID: "1", Title: "A very long button title indeed"},
		{ID: "2", Title: "No"},
		{ID: "3", Title: "Dropped"},
	}

	id, err := newTestClient(server.URL).SendButtons(context.Background(), "7999", "Pick one", options)
	require.NoError(t, err)
	assert.Equal(t, "wamid.2", id)

	assert.Equal(t, "interactive", got.Type)
	assert.Equal(t, "button", got.Interactive.Type)
	assert.Equal(t, "Pick one", got.Interactive.Body.Text)
	require.Len(t, got.Interactive.Action.Buttons, 3)
	assert.Equal(t, "reply", got.Interactive.Action.Buttons[0].Type)
	assert.Equal(t, "A very long button t", got.Interactive.Action.Buttons[1].Reply.Title)
}

func TestWhatsApp_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"messages":[{"id":"wamid.3"}]}`))
	}))
	defer server.Close()

	id, err := newTestClient(server.URL).SendText(context.Background(), "7999", "hi")
	require.NoError(t, err)
	assert.Equal(t, "wamid.3", id)
	assert.Equal(t, int32(3), calls.Load())
}

func TestWhatsApp_RetryExhausted(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).SendText(context.Background(), "7999", "hi")
	assert.ErrorIs(t, err, ErrRetryExhausted)
	assert.ErrorIs(t, err, ErrSendFailed)
	assert.Equal(t, int32(3), calls.Load())
}

func TestWhatsApp_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"Invalid parameter","code":100}}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).SendText(context.Background(), "bad", "hi")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 100, apiErr.Code)
	assert.Equal(t, "Invalid parameter", apiErr.Message)
	assert.NotErrorIs(t, err, ErrRetryExhausted)
	assert.Equal(t, int32(1), calls.Load())
}

func TestWhatsApp_NetworkErrorRetried(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := newTestClient(url).SendText(context.Background(), "7999", "hi")
	assert.ErrorIs(t, err, ErrRetryExhausted)
}

func TestCalculateBackoff(t *testing.T) {
	base := 2 * time.Second
	maxDelay := 10 * time.Second

	assert.Equal(t, 2*time.Second, calculateBackoff(1, base, maxDelay))
	assert.Equal(t, 4*time.Second, calculateBackoff(2, base, maxDelay))
	assert.Equal(t, 8*time.Second, calculateBackoff(3, base, maxDelay))
	assert.Equal(t, 10*time.Second, calculateBackoff(4, base, maxDelay))
	assert.Equal(t, 10*time.Second, calculateBackoff(10, base, maxDelay))
}

func TestConsole(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)

	id1, err := c.SendText(context.Background(), "", "hello")
	require.NoError(t, err)
	id2, err := c.SendButtons(context.Background(), "", "pick", []domain.ButtonOption{{ID: "0", Title: "A"}, {ID: "1", Title: "B"}})
	require.NoError(t, err)

	assert.NotEqual(t, id1, id2)
	assert.Equal(t, "bot> hello\nbot> pick\n     [A] [B]\n", buf.String())
}
