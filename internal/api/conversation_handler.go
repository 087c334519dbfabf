package api

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/shaiso/Botflow/internal/domain"
	"github.com/shaiso/Botflow/internal/state"
)

// ListConversations возвращает последние диалоги бизнеса.
// GET /api/v1/conversations?business_id=&limit=
func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	businessID, err := uuid.Parse(r.URL.Query().Get("business_id"))
	if err != nil {
		BadRequest(w, "business_id is required")
		return
	}

	limit, err := queryInt(r, "limit", 50)
	if err != nil || limit < 1 {
		BadRequest(w, "invalid limit")
		return
	}

	convs, err := h.conversations.List(r.Context(), businessID, limit)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]ConversationResponse, len(convs))
	for i, c := range convs {
		result[i] = ConversationFromDomain(c)
	}

	List(w, result, len(result))
}

// GetConversation возвращает диалог по ID.
// GET /api/v1/conversations/{id}
func (h *Handler) GetConversation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "conversation")
	if !ok {
		return
	}

	conv, err := h.conversations.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "conversation not found") {
		return
	}

	Success(w, ConversationFromDomain(*conv))
}

// GetConversationState возвращает позицию диалога в сценарии.
// GET /api/v1/conversations/{id}/state
func (h *Handler) GetConversationState(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "conversation")
	if !ok {
		return
	}

	if _, err := h.conversations.GetByID(r.Context(), id); HandleRepoError(w, h.logger, err, "conversation not found") {
		return
	}

	st, err := h.states.Load(r.Context(), id)
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Success(w, StateFromDomain(st))
}

// SetConversationBot включает или выключает бота в диалоге.
//
// Включение после завершённого сценария (или передачи оператору)
// сбрасывает состояние: следующее сообщение начнёт сценарий заново.
// PUT /api/v1/conversations/{id}/bot
func (h *Handler) SetConversationBot(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "conversation")
	if !ok {
		return
	}

	var req SetBotRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.IsActive == nil {
		BadRequest(w, "is_active is required")
		return
	}

	if *req.IsActive {
		st, err := h.states.Load(r.Context(), id)
		if err != nil {
			InternalError(w, h.logger, err)
			return
		}
		if st.Ended {
			fresh := domain.NewConversationState(id)
			fresh.Version = st.Version
			if _, err := h.states.Save(r.Context(), fresh); err != nil {
				if errors.Is(err, state.ErrVersionConflict) {
					Conflict(w, "conversation state changed concurrently, retry")
					return
				}
				InternalError(w, h.logger, err)
				return
			}
			h.logger.Info("conversation flow reset", "conversation_id", id)
		}
	}

	if err := h.conversations.SetBotActive(r.Context(), id, *req.IsActive); HandleRepoError(w, h.logger, err, "conversation not found") {
		return
	}

	conv, err := h.conversations.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "conversation not found") {
		return
	}

	h.logger.Info("conversation bot toggled",
		"conversation_id", id,
		"is_bot_active", conv.IsBotActive,
	)
	Success(w, ConversationFromDomain(*conv))
}

// GetCustomer возвращает клиента CRM.
// GET /api/v1/customers/{id}
func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "customer")
	if !ok {
		return
	}

	customer, err := h.customers.GetCustomer(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "customer not found") {
		return
	}

	Success(w, customer)
}

// ListDeals возвращает сделки клиента.
// GET /api/v1/customers/{id}/deals
func (h *Handler) ListDeals(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "customer")
	if !ok {
		return
	}

	deals, err := h.customers.ListDeals(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}
	if deals == nil {
		deals = []domain.Deal{}
	}

	List(w, deals, len(deals))
}
