package api

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/shaiso/Botflow/internal/domain"
)

// ListBots возвращает ботов бизнеса.
// GET /api/v1/bots?business_id=
func (h *Handler) ListBots(w http.ResponseWriter, r *http.Request) {
	businessID := uuid.Nil
	if v := r.URL.Query().Get("business_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			BadRequest(w, "invalid business_id")
			return
		}
		businessID = id
	}

	bots, err := h.bots.List(r.Context(), businessID)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]BotResponse, len(bots))
	for i, b := range bots {
		result[i] = BotFromDomain(b)
	}

	List(w, result, len(result))
}

// CreateBot создаёт бота.
// POST /api/v1/bots
func (h *Handler) CreateBot(w http.ResponseWriter, r *http.Request) {
	var req CreateBotRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.BusinessID == uuid.Nil {
		BadRequest(w, "business_id is required")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		BadRequest(w, "name is required")
		return
	}
	if strings.TrimSpace(req.ChannelNumberID) == "" {
		BadRequest(w, "channel_number_id is required")
		return
	}

	bot := &domain.Bot{
		ID:              uuid.New(),
		BusinessID:      req.BusinessID,
		ChannelNumberID: req.ChannelNumberID,
		Name:            req.Name,
		DefaultResponse: req.DefaultResponse,
		IsActive:        req.IsActive,
	}

	if err := h.bots.Create(r.Context(), bot); HandleRepoError(w, h.logger, err, "") {
		return
	}

	Created(w, BotFromDomain(*bot))
}

// GetBot возвращает бота по ID.
// GET /api/v1/bots/{id}
func (h *Handler) GetBot(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "bot")
	if !ok {
		return
	}

	bot, err := h.bots.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "bot not found") {
		return
	}

	Success(w, BotFromDomain(*bot))
}

// UpdateBot обновляет бота.
// PUT /api/v1/bots/{id}
func (h *Handler) UpdateBot(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "bot")
	if !ok {
		return
	}

	var req UpdateBotRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	bot, err := h.bots.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "bot not found") {
		return
	}

	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			BadRequest(w, "name must not be empty")
			return
		}
		bot.Name = *req.Name
	}
	if req.ChannelNumberID != nil {
		bot.ChannelNumberID = *req.ChannelNumberID
	}
	if req.DefaultResponse != nil {
		bot.DefaultResponse = *req.DefaultResponse
	}
	if req.IsActive != nil {
		bot.IsActive = *req.IsActive
	}

	if err := h.bots.Update(r.Context(), bot); HandleRepoError(w, h.logger, err, "bot not found") {
		return
	}

	Success(w, BotFromDomain(*bot))
}

// DeleteBot удаляет бота вместе с триггерами и сценариями.
// DELETE /api/v1/bots/{id}
func (h *Handler) DeleteBot(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "bot")
	if !ok {
		return
	}

	if err := h.bots.Delete(r.Context(), id); HandleRepoError(w, h.logger, err, "bot not found") {
		return
	}

	NoContent(w)
}

// ListTriggers возвращает триггеры бота.
// GET /api/v1/bots/{id}/triggers
func (h *Handler) ListTriggers(w http.ResponseWriter, r *http.Request) {
	botID, ok := pathID(w, r, "id", "bot")
	if !ok {
		return
	}

	triggers, err := h.triggers.ListByBot(r.Context(), botID)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]TriggerResponse, len(triggers))
	for i, t := range triggers {
		result[i] = TriggerFromDomain(t)
	}

	List(w, result, len(result))
}

// CreateTrigger создаёт триггер бота.
// POST /api/v1/bots/{id}/triggers
func (h *Handler) CreateTrigger(w http.ResponseWriter, r *http.Request) {
	botID, ok := pathID(w, r, "id", "bot")
	if !ok {
		return
	}

	var req TriggerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	keywords := cleanKeywords(req.Keywords)
	if len(keywords) == 0 {
		BadRequest(w, "at least one keyword is required")
		return
	}
	if strings.TrimSpace(req.Response) == "" {
		BadRequest(w, "response is required")
		return
	}

	if _, err := h.bots.GetByID(r.Context(), botID); HandleRepoError(w, h.logger, err, "bot not found") {
		return
	}

	t := &domain.Trigger{
		ID:       uuid.New(),
		BotID:    botID,
		Keywords: keywords,
		Response: req.Response,
		Priority: req.Priority,
		IsActive: req.IsActive == nil || *req.IsActive,
	}

	if err := h.triggers.Create(r.Context(), t); HandleRepoError(w, h.logger, err, "") {
		return
	}

	Created(w, TriggerFromDomain(*t))
}

// UpdateTrigger обновляет триггер.
// PUT /api/v1/triggers/{id}
func (h *Handler) UpdateTrigger(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "trigger")
	if !ok {
		return
	}

	var req UpdateTriggerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	t, err := h.triggers.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "trigger not found") {
		return
	}

	if req.Keywords != nil {
		keywords := cleanKeywords(req.Keywords)
		if len(keywords) == 0 {
			BadRequest(w, "at least one keyword is required")
			return
		}
		t.Keywords = keywords
	}
	if req.Response != nil {
		if strings.TrimSpace(*req.Response) == "" {
			BadRequest(w, "response must not be empty")
			return
		}
		t.Response = *req.Response
	}
	if req.Priority != nil {
		t.Priority = *req.Priority
	}
	if req.IsActive != nil {
		t.IsActive = *req.IsActive
	}

	if err := h.triggers.Update(r.Context(), t); HandleRepoError(w, h.logger, err, "trigger not found") {
		return
	}

	Success(w, TriggerFromDomain(*t))
}

// DeleteTrigger удаляет триггер.
// DELETE /api/v1/triggers/{id}
func (h *Handler) DeleteTrigger(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "trigger")
	if !ok {
		return
	}

	if err := h.triggers.Delete(r.Context(), id); HandleRepoError(w, h.logger, err, "trigger not found") {
		return
	}

	NoContent(w)
}

// cleanKeywords убирает пустые ключевые слова: они никогда не совпадают.
func cleanKeywords(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			out = append(out, kw)
		}
	}
	return out
}
