package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/shaiso/Botflow/internal/domain"
	"github.com/shaiso/Botflow/internal/repo"
)

// ReceiveInbound принимает нормализованное сообщение канала:
// находит или создаёт клиента и открытый диалог, сохраняет сообщение
// и сообщает процессору.
// POST /api/v1/messages/inbound
func (h *Handler) ReceiveInbound(w http.ResponseWriter, r *http.Request) {
	var req InboundRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.BusinessID == uuid.Nil {
		BadRequest(w, "business_id is required")
		return
	}
	if strings.TrimSpace(req.ChannelNumberID) == "" {
		BadRequest(w, "channel_number_id is required")
		return
	}
	if strings.TrimSpace(req.Phone) == "" {
		BadRequest(w, "phone is required")
		return
	}

	customer, err := h.customers.UpsertCustomer(r.Context(), req.BusinessID, req.Phone, req.Name)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	conv, err := h.conversations.FindOrCreateOpen(r.Context(), customer, req.ChannelNumberID)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	h.ingest(w, r, conv.ID, req.ExternalID, req.Type, req.Content)
}

// PostConversationMessage добавляет входящее сообщение в диалог.
// POST /api/v1/conversations/{id}/messages
func (h *Handler) PostConversationMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "conversation")
	if !ok {
		return
	}

	var req PostMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if _, err := h.conversations.GetByID(r.Context(), id); HandleRepoError(w, h.logger, err, "conversation not found") {
		return
	}

	h.ingest(w, r, id, req.ExternalID, req.Type, req.Content)
}

// ingest сохраняет входящее и публикует событие.
// Повтор с тем же external_id не создаёт второе сообщение.
func (h *Handler) ingest(w http.ResponseWriter, r *http.Request, conversationID uuid.UUID, externalID, typ, content string) {
	msg := &domain.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		Direction:      domain.DirectionInbound,
		Type:           domain.ParseMessageType(typ),
		Content:        content,
		ExternalID:     externalID,
	}

	err := h.messages.CreateInbound(r.Context(), msg)
	if errors.Is(err, repo.ErrAlreadyExists) {
		h.logger.Debug("duplicate inbound message", "external_id", externalID)
		Success(w, InboundResponse{ConversationID: conversationID, Duplicate: true})
		return
	}
	if HandleRepoError(w, h.logger, err, "conversation not found") {
		return
	}

	if err := h.conversations.Touch(r.Context(), conversationID); err != nil {
		h.logger.Warn("failed to touch conversation", "conversation_id", conversationID, "error", err)
	}

	queued := h.publish(r.Context(), msg)

	JSON(w, http.StatusAccepted, DataResponse{Data: InboundResponse{
		MessageID:      msg.ID,
		ConversationID: conversationID,
		Queued:         queued,
	}})
}

// publish отправляет событие в очередь. Сбой не ошибка запроса:
// сообщение уже сохранено, процессор подхватит его polling'ом.
func (h *Handler) publish(ctx context.Context, msg *domain.Message) bool {
	if h.publisher == nil {
		return false
	}
	if err := h.publisher.PublishInbound(ctx, msg.ID, msg.ConversationID); err != nil {
		h.logger.Warn("failed to publish inbound message, left for polling",
			"message_id", msg.ID,
			"error", err,
		)
		return false
	}
	return true
}

// ListMessages возвращает журнал сообщений диалога.
// GET /api/v1/conversations/{id}/messages?limit=
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "conversation")
	if !ok {
		return
	}

	limit, err := queryInt(r, "limit", 100)
	if err != nil || limit < 1 {
		BadRequest(w, "invalid limit")
		return
	}

	msgs, err := h.messages.ListByConversation(r.Context(), id, limit)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]MessageResponse, len(msgs))
	for i, m := range msgs {
		result[i] = MessageFromDomain(m)
	}

	List(w, result, len(result))
}
