package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// --- Response types (дублируются из api/dto.go, клиент не импортирует internal/api) ---

// BotResponse — бот из API.
type BotResponse struct {
	ID              string `json:"id"`
	BusinessID      string `json:"business_id"`
	ChannelNumberID string `json:"channel_number_id"`
	Name            string `json:"name"`
	DefaultResponse string `json:"default_response,omitempty"`
	IsActive        bool   `json:"is_active"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

// TriggerResponse — триггер из API.
type TriggerResponse struct {
	ID        string   `json:"id"`
	BotID     string   `json:"bot_id"`
	Keywords  []string `json:"keywords"`
	Response  string   `json:"response"`
	Priority  int      `json:"priority"`
	IsActive  bool     `json:"is_active"`
	CreatedAt string   `json:"created_at"`
}

// ScenarioResponse — версия сценария из API.
type ScenarioResponse struct {
	ID        string          `json:"id"`
	BotID     string          `json:"bot_id"`
	Name      string          `json:"name"`
	Version   int             `json:"version"`
	IsActive  bool            `json:"is_active"`
	Graph     json.RawMessage `json:"graph,omitempty"`
	CreatedAt string          `json:"created_at"`
}

// GraphError — ошибка узла графа из API.
type GraphError struct {
	NodeID  string `json:"node_id,omitempty"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// ValidateResponse — результат проверки графа на сервере.
type ValidateResponse struct {
	Valid  bool         `json:"valid"`
	Nodes  int          `json:"nodes"`
	Errors []GraphError `json:"errors,omitempty"`
}

// ConversationResponse — диалог из API.
type ConversationResponse struct {
	ID              string  `json:"id"`
	BusinessID      string  `json:"business_id"`
	CustomerID      string  `json:"customer_id"`
	CustomerPhone   string  `json:"customer_phone"`
	CustomerName    string  `json:"customer_name,omitempty"`
	ChannelNumberID string  `json:"channel_number_id"`
	AssignedBotID   *string `json:"assigned_bot_id,omitempty"`
	IsBotActive     bool    `json:"is_bot_active"`
	Status          string  `json:"status"`
	LastMessageAt   string  `json:"last_message_at,omitempty"`
	CreatedAt       string  `json:"created_at"`
}

// StateResponse — позиция диалога в сценарии.
type StateResponse struct {
	ConversationID string            `json:"conversation_id"`
	CurrentNodeID  string            `json:"current_node_id,omitempty"`
	Variables      map[string]string `json:"variables"`
	Started        bool              `json:"started"`
	Ended          bool              `json:"ended"`
	Version        int64             `json:"version"`
	UpdatedAt      string            `json:"updated_at,omitempty"`
}

// MessageResponse — сообщение журнала диалога.
type MessageResponse struct {
	ID           string `json:"id"`
	Direction    string `json:"direction"`
	Type         string `json:"message_type"`
	Content      string `json:"content"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
	SentByBot    bool   `json:"sent_by_bot"`
	CreatedAt    string `json:"created_at"`
}

// InboundResponse — результат отправки входящего сообщения.
type InboundResponse struct {
	MessageID      string `json:"message_id,omitempty"`
	ConversationID string `json:"conversation_id"`
	Duplicate      bool   `json:"duplicate,omitempty"`
	Queued         bool   `json:"queued"`
}

// --- Request types ---

// CreateBotRequest — создание бота.
type CreateBotRequest struct {
	BusinessID      string `json:"business_id"`
	ChannelNumberID string `json:"channel_number_id"`
	Name            string `json:"name"`
	DefaultResponse string `json:"default_response,omitempty"`
	IsActive        bool   `json:"is_active"`
}

// UpdateBotRequest — обновление бота.
type UpdateBotRequest struct {
	Name            *string `json:"name,omitempty"`
	ChannelNumberID *string `json:"channel_number_id,omitempty"`
	DefaultResponse *string `json:"default_response,omitempty"`
	IsActive        *bool   `json:"is_active,omitempty"`
}

// TriggerRequest — создание триггера.
type TriggerRequest struct {
	Keywords []string `json:"keywords"`
	Response string   `json:"response"`
	Priority int      `json:"priority"`
	IsActive *bool    `json:"is_active,omitempty"`
}

// UpdateTriggerRequest — обновление триггера.
type UpdateTriggerRequest struct {
	Keywords []string `json:"keywords,omitempty"`
	Response *string  `json:"response,omitempty"`
	Priority *int     `json:"priority,omitempty"`
	IsActive *bool    `json:"is_active,omitempty"`
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string       `json:"code"`
		Message string       `json:"message"`
		Details []GraphError `json:"details,omitempty"`
	} `json:"error"`
}

// APIError — ошибка, которую вернул сервер.
type APIError struct {
	Status  int
	Code    string
	Message string
	Details []GraphError
}

// Error реализует интерфейс error.
func (e *APIError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	for _, d := range e.Details {
		if d.NodeID != "" {
			msg += fmt.Sprintf("\n  node %s: %s", d.NodeID, d.Message)
		} else {
			msg += "\n  " + d.Message
		}
	}
	return msg
}

// --- Client ---

// Client — HTTP-клиент для Botflow API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Bots ---

// ListBots возвращает ботов. Если businessID не пустой — фильтрует.
func (c *Client) ListBots(businessID string) ([]BotResponse, error) {
	params := url.Values{}
	if businessID != "" {
		params.Set("business_id", businessID)
	}

	var bots []BotResponse
	err := c.list("/api/v1/bots", params, &bots)
	return bots, err
}

// CreateBot создаёт бота.
func (c *Client) CreateBot(req CreateBotRequest) (*BotResponse, error) {
	var bot BotResponse
	err := c.post("/api/v1/bots", req, &bot)
	return &bot, err
}

// GetBot возвращает бота по ID.
func (c *Client) GetBot(id string) (*BotResponse, error) {
	var bot BotResponse
	err := c.get("/api/v1/bots/"+id, &bot)
	return &bot, err
}

// UpdateBot обновляет бота.
func (c *Client) UpdateBot(id string, req UpdateBotRequest) (*BotResponse, error) {
	var bot BotResponse
	err := c.put("/api/v1/bots/"+id, req, &bot)
	return &bot, err
}

// DeleteBot удаляет бота.
func (c *Client) DeleteBot(id string) error {
	return c.delete("/api/v1/bots/" + id)
}

// --- Triggers ---

// ListTriggers возвращает триггеры бота.
func (c *Client) ListTriggers(botID string) ([]TriggerResponse, error) {
	var triggers []TriggerResponse
	err := c.list("/api/v1/bots/"+botID+"/triggers", nil, &triggers)
	return triggers, err
}

// CreateTrigger создаёт триггер.
func (c *Client) CreateTrigger(botID string, req TriggerRequest) (*TriggerResponse, error) {
	var t TriggerResponse
	err := c.post("/api/v1/bots/"+botID+"/triggers", req, &t)
	return &t, err
}

// UpdateTrigger обновляет триггер.
func (c *Client) UpdateTrigger(id string, req UpdateTriggerRequest) (*TriggerResponse, error) {
	var t TriggerResponse
	err := c.put("/api/v1/triggers/"+id, req, &t)
	return &t, err
}

// DeleteTrigger удаляет триггер.
func (c *Client) DeleteTrigger(id string) error {
	return c.delete("/api/v1/triggers/" + id)
}

// --- Scenarios ---

// ListScenarios возвращает версии сценария бота.
func (c *Client) ListScenarios(botID string) ([]ScenarioResponse, error) {
	var versions []ScenarioResponse
	err := c.list("/api/v1/bots/"+botID+"/scenarios", nil, &versions)
	return versions, err
}

// PublishScenario публикует граф новой версией.
func (c *Client) PublishScenario(botID, name string, graph json.RawMessage, activate bool) (*ScenarioResponse, error) {
	body := map[string]any{"name": name, "graph": graph, "activate": activate}
	var s ScenarioResponse
	err := c.post("/api/v1/bots/"+botID+"/scenarios", body, &s)
	return &s, err
}

// GetActiveScenario возвращает активную версию сценария.
func (c *Client) GetActiveScenario(botID string) (*ScenarioResponse, error) {
	var s ScenarioResponse
	err := c.get("/api/v1/bots/"+botID+"/scenarios/active", &s)
	return &s, err
}

// ActivateScenario делает версию активной.
func (c *Client) ActivateScenario(botID string, version int) (*ScenarioResponse, error) {
	var s ScenarioResponse
	err := c.post("/api/v1/bots/"+botID+"/scenarios/"+strconv.Itoa(version)+"/activate", nil, &s)
	return &s, err
}

// ValidateScenario проверяет граф на сервере.
func (c *Client) ValidateScenario(graph json.RawMessage) (*ValidateResponse, error) {
	body := map[string]json.RawMessage{"graph": graph}
	var v ValidateResponse
	err := c.post("/api/v1/scenarios/validate", body, &v)
	return &v, err
}

// --- Conversations ---

// ListConversations возвращает последние диалоги бизнеса.
func (c *Client) ListConversations(businessID string, limit int) ([]ConversationResponse, error) {
	params := url.Values{}
	params.Set("business_id", businessID)
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var convs []ConversationResponse
	err := c.list("/api/v1/conversations", params, &convs)
	return convs, err
}

// GetConversation возвращает диалог по ID.
func (c *Client) GetConversation(id string) (*ConversationResponse, error) {
	var conv ConversationResponse
	err := c.get("/api/v1/conversations/"+id, &conv)
	return &conv, err
}

// GetState возвращает позицию диалога в сценарии.
func (c *Client) GetState(id string) (*StateResponse, error) {
	var st StateResponse
	err := c.get("/api/v1/conversations/"+id+"/state", &st)
	return &st, err
}

// SetBot включает или выключает бота в диалоге.
func (c *Client) SetBot(id string, active bool) (*ConversationResponse, error) {
	var conv ConversationResponse
	err := c.put("/api/v1/conversations/"+id+"/bot", map[string]bool{"is_active": active}, &conv)
	return &conv, err
}

// ListMessages возвращает журнал сообщений диалога.
func (c *Client) ListMessages(id string, limit int) ([]MessageResponse, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var msgs []MessageResponse
	err := c.list("/api/v1/conversations/"+id+"/messages", params, &msgs)
	return msgs, err
}

// SendMessage отправляет входящее сообщение от имени клиента.
func (c *Client) SendMessage(id, content string) (*InboundResponse, error) {
	var res InboundResponse
	err := c.post("/api/v1/conversations/"+id+"/messages", map[string]string{"content": content}, &res)
	return &res, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) put(path string, body any, result any) error {
	return c.doData(http.MethodPut, path, body, result)
}

func (c *Client) delete(path string) error {
	resp, err := c.do(http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.checkError(resp)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return &APIError{
		Status:  resp.StatusCode,
		Code:    er.Error.Code,
		Message: er.Error.Message,
		Details: er.Error.Details,
	}
}
