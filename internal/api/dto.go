package api

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Botflow/internal/domain"
	"github.com/shaiso/Botflow/internal/engine"
)

// Bot DTOs

// CreateBotRequest — запрос на создание бота.
type CreateBotRequest struct {
	BusinessID      uuid.UUID `json:"business_id"`
	ChannelNumberID string    `json:"channel_number_id"`
	Name            string    `json:"name"`
	DefaultResponse string    `json:"default_response,omitempty"`
	IsActive        bool      `json:"is_active"`
}

// UpdateBotRequest — запрос на обновление бота.
type UpdateBotRequest struct {
	Name            *string `json:"name,omitempty"`
	ChannelNumberID *string `json:"channel_number_id,omitempty"`
	DefaultResponse *string `json:"default_response,omitempty"`
	IsActive        *bool   `json:"is_active,omitempty"`
}

// BotResponse — ответ с ботом.
type BotResponse struct {
	ID              uuid.UUID `json:"id"`
	BusinessID      uuid.UUID `json:"business_id"`
	ChannelNumberID string    `json:"channel_number_id"`
	Name            string    `json:"name"`
	DefaultResponse string    `json:"default_response,omitempty"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// BotFromDomain конвертирует domain.Bot в BotResponse.
func BotFromDomain(b domain.Bot) BotResponse {
	return BotResponse{
		ID:              b.ID,
		BusinessID:      b.BusinessID,
		ChannelNumberID: b.ChannelNumberID,
		Name:            b.Name,
		DefaultResponse: b.DefaultResponse,
		IsActive:        b.IsActive,
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
}

// Trigger DTOs

// TriggerRequest — запрос на создание триггера.
type TriggerRequest struct {
	Keywords []string `json:"keywords"`
	Response string   `json:"response"`
	Priority int      `json:"priority"`
	IsActive *bool    `json:"is_active,omitempty"`
}

// UpdateTriggerRequest — запрос на обновление триггера.
type UpdateTriggerRequest struct {
	Keywords []string `json:"keywords,omitempty"`
	Response *string  `json:"response,omitempty"`
	Priority *int     `json:"priority,omitempty"`
	IsActive *bool    `json:"is_active,omitempty"`
}

// TriggerResponse — ответ с триггером.
type TriggerResponse struct {
	ID        uuid.UUID `json:"id"`
	BotID     uuid.UUID `json:"bot_id"`
	Keywords  []string  `json:"keywords"`
	Response  string    `json:"response"`
	Priority  int       `json:"priority"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// TriggerFromDomain конвертирует domain.Trigger в TriggerResponse.
func TriggerFromDomain(t domain.Trigger) TriggerResponse {
	keywords := t.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	return TriggerResponse{
		ID:        t.ID,
		BotID:     t.BotID,
		Keywords:  keywords,
		Response:  t.Response,
		Priority:  t.Priority,
		IsActive:  t.IsActive,
		CreatedAt: t.CreatedAt,
	}
}

// Scenario DTOs

// PublishScenarioRequest — запрос на публикацию новой версии сценария.
type PublishScenarioRequest struct {
	Name     string          `json:"name"`
	Graph    json.RawMessage `json:"graph"`
	Activate *bool           `json:"activate,omitempty"`
}

// ValidateScenarioRequest — запрос на проверку графа без публикации.
type ValidateScenarioRequest struct {
	Graph json.RawMessage `json:"graph"`
}

// ValidateScenarioResponse — результат проверки графа.
type ValidateScenarioResponse struct {
	Valid  bool               `json:"valid"`
	Nodes  int                `json:"nodes"`
	Errors []GraphErrorDetail `json:"errors,omitempty"`
}

// GraphErrorDetail — ошибка узла графа.
type GraphErrorDetail struct {
	NodeID  string `json:"node_id,omitempty"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// GraphErrors раскладывает ошибку engine.Validate по узлам.
func GraphErrors(err error) []GraphErrorDetail {
	if err == nil {
		return nil
	}

	var errs []error
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs = joined.Unwrap()
	} else {
		errs = []error{err}
	}

	details := make([]GraphErrorDetail, 0, len(errs))
	for _, e := range errs {
		var ve *engine.ValidationError
		if errors.As(e, &ve) {
			details = append(details, GraphErrorDetail{NodeID: ve.NodeID, Field: ve.Field, Message: ve.Message})
			continue
		}
		details = append(details, GraphErrorDetail{Message: e.Error()})
	}
	return details
}

// ScenarioResponse — ответ с версией сценария.
type ScenarioResponse struct {
	ID        uuid.UUID       `json:"id"`
	BotID     uuid.UUID       `json:"bot_id"`
	Name      string          `json:"name"`
	Version   int             `json:"version"`
	IsActive  bool            `json:"is_active"`
	Graph     json.RawMessage `json:"graph,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// ScenarioFromDomain конвертирует domain.Scenario в ScenarioResponse.
// withGraph=false — для списков версий.
func ScenarioFromDomain(s domain.Scenario, withGraph bool) ScenarioResponse {
	resp := ScenarioResponse{
		ID:        s.ID,
		BotID:     s.BotID,
		Name:      s.Name,
		Version:   s.Version,
		IsActive:  s.IsActive,
		CreatedAt: s.CreatedAt,
	}
	if withGraph {
		resp.Graph = s.Graph
	}
	return resp
}

// Conversation DTOs

// SetBotRequest — включение и выключение бота в диалоге.
type SetBotRequest struct {
	IsActive *bool `json:"is_active"`
}

// ConversationResponse — ответ с диалогом.
type ConversationResponse struct {
	ID              uuid.UUID                 `json:"id"`
	BusinessID      uuid.UUID                 `json:"business_id"`
	CustomerID      uuid.UUID                 `json:"customer_id"`
	CustomerPhone   string                    `json:"customer_phone"`
	CustomerName    string                    `json:"customer_name,omitempty"`
	ChannelNumberID string                    `json:"channel_number_id"`
	AssignedBotID   *uuid.UUID                `json:"assigned_bot_id,omitempty"`
	AssignedAgentID *uuid.UUID                `json:"assigned_agent_id,omitempty"`
	IsBotActive     bool                      `json:"is_bot_active"`
	Status          domain.ConversationStatus `json:"status"`
	LastMessageAt   *time.Time                `json:"last_message_at,omitempty"`
	CreatedAt       time.Time                 `json:"created_at"`
}

// ConversationFromDomain конвертирует domain.Conversation в ConversationResponse.
func ConversationFromDomain(c domain.Conversation) ConversationResponse {
	return ConversationResponse{
		ID:              c.ID,
		BusinessID:      c.BusinessID,
		CustomerID:      c.CustomerID,
		CustomerPhone:   c.CustomerPhone,
		CustomerName:    c.CustomerName,
		ChannelNumberID: c.ChannelNumberID,
		AssignedBotID:   c.AssignedBotID,
		AssignedAgentID: c.AssignedAgentID,
		IsBotActive:     c.IsBotActive,
		Status:          c.Status,
		LastMessageAt:   c.LastMessageAt,
		CreatedAt:       c.CreatedAt,
	}
}

// StateResponse — позиция диалога в сценарии.
type StateResponse struct {
	ConversationID uuid.UUID         `json:"conversation_id"`
	CurrentNodeID  string            `json:"current_node_id,omitempty"`
	Variables      map[string]string `json:"variables"`
	Started        bool              `json:"started"`
	Ended          bool              `json:"ended"`
	Version        int64             `json:"version"`
	UpdatedAt      *time.Time        `json:"updated_at,omitempty"`
}

// StateFromDomain конвертирует domain.ConversationState в StateResponse.
func StateFromDomain(s domain.ConversationState) StateResponse {
	vars := s.Variables
	if vars == nil {
		vars = map[string]string{}
	}
	resp := StateResponse{
		ConversationID: s.ConversationID,
		CurrentNodeID:  s.CurrentNodeID,
		Variables:      vars,
		Started:        s.IsStarted(),
		Ended:          s.Ended,
		Version:        s.Version,
	}
	if !s.UpdatedAt.IsZero() {
		t := s.UpdatedAt
		resp.UpdatedAt = &t
	}
	return resp
}

// Message DTOs

// InboundRequest — нормализованное входящее сообщение от канала.
type InboundRequest struct {
	BusinessID      uuid.UUID `json:"business_id"`
	ChannelNumberID string    `json:"channel_number_id"`
	Phone           string    `json:"phone"`
	Name            string    `json:"name,omitempty"`
	ExternalID      string    `json:"external_id,omitempty"`
	Type            string    `json:"message_type,omitempty"`
	Content         string    `json:"content"`
}

// PostMessageRequest — входящее сообщение в существующий диалог.
type PostMessageRequest struct {
	ExternalID string `json:"external_id,omitempty"`
	Type       string `json:"message_type,omitempty"`
	Content    string `json:"content"`
}

// InboundResponse — результат приёма входящего сообщения.
type InboundResponse struct {
	MessageID      uuid.UUID `json:"message_id,omitempty"`
	ConversationID uuid.UUID `json:"conversation_id"`
	Duplicate      bool      `json:"duplicate,omitempty"`
	Queued         bool      `json:"queued"`
}

// MessageResponse — ответ с сообщением журнала.
type MessageResponse struct {
	ID           uuid.UUID               `json:"id"`
	Direction    domain.MessageDirection `json:"direction"`
	Type         domain.MessageType      `json:"message_type"`
	Content      string                  `json:"content"`
	Status       domain.MessageStatus    `json:"status"`
	ExternalID   string                  `json:"external_id,omitempty"`
	ErrorMessage string                  `json:"error_message,omitempty"`
	SentByBot    bool                    `json:"sent_by_bot"`
	ProcessedAt  *time.Time              `json:"processed_at,omitempty"`
	CreatedAt    time.Time               `json:"created_at"`
}

// MessageFromDomain конвертирует domain.Message в MessageResponse.
func MessageFromDomain(m domain.Message) MessageResponse {
	return MessageResponse{
		ID:           m.ID,
		Direction:    m.Direction,
		Type:         m.Type,
		Content:      m.Content,
		Status:       m.Status,
		ExternalID:   m.ExternalID,
		ErrorMessage: m.ErrorMessage,
		SentByBot:    m.SentByBot,
		ProcessedAt:  m.ProcessedAt,
		CreatedAt:    m.CreatedAt,
	}
}
