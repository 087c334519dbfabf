package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/shaiso/Botflow/internal/engine"
)

// ListScenarioVersions возвращает версии сценария бота без графов.
// GET /api/v1/bots/{id}/scenarios
func (h *Handler) ListScenarioVersions(w http.ResponseWriter, r *http.Request) {
	botID, ok := pathID(w, r, "id", "bot")
	if !ok {
		return
	}

	versions, err := h.scenarios.ListVersions(r.Context(), botID)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]ScenarioResponse, len(versions))
	for i, s := range versions {
		result[i] = ScenarioFromDomain(s, false)
	}

	List(w, result, len(result))
}

// PublishScenario проверяет граф и сохраняет его новой версией.
// По умолчанию новая версия сразу становится активной.
// POST /api/v1/bots/{id}/scenarios
func (h *Handler) PublishScenario(w http.ResponseWriter, r *http.Request) {
	botID, ok := pathID(w, r, "id", "bot")
	if !ok {
		return
	}

	var req PublishScenarioRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if strings.TrimSpace(req.Name) == "" {
		BadRequest(w, "name is required")
		return
	}
	if len(req.Graph) == 0 {
		BadRequest(w, "graph is required")
		return
	}

	graph, err := engine.ParseGraph(req.Graph)
	if err != nil {
		InvalidGraph(w, []GraphErrorDetail{{Message: err.Error()}})
		return
	}
	if err := engine.Validate(graph); err != nil {
		InvalidGraph(w, GraphErrors(err))
		return
	}

	// Храним граф в нормализованном виде.
	normalized, err := graph.MarshalJSON()
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}

	activate := req.Activate == nil || *req.Activate
	scenario, err := h.scenarios.CreateVersion(r.Context(), botID, req.Name, normalized, activate)
	if HandleRepoError(w, h.logger, err, "bot not found") {
		return
	}

	h.logger.Info("scenario published",
		"bot_id", botID,
		"scenario_id", scenario.ID,
		"version", scenario.Version,
		"active", scenario.IsActive,
	)

	Created(w, ScenarioFromDomain(*scenario, true))
}

// GetActiveScenario возвращает активную версию сценария.
// GET /api/v1/bots/{id}/scenarios/active
func (h *Handler) GetActiveScenario(w http.ResponseWriter, r *http.Request) {
	botID, ok := pathID(w, r, "id", "bot")
	if !ok {
		return
	}

	scenario, err := h.scenarios.GetActive(r.Context(), botID)
	if HandleRepoError(w, h.logger, err, "bot has no active scenario") {
		return
	}

	Success(w, ScenarioFromDomain(*scenario, true))
}

// GetScenarioVersion возвращает версию сценария.
// GET /api/v1/bots/{id}/scenarios/{version}
func (h *Handler) GetScenarioVersion(w http.ResponseWriter, r *http.Request) {
	botID, ok := pathID(w, r, "id", "bot")
	if !ok {
		return
	}
	version, ok := pathVersion(w, r)
	if !ok {
		return
	}

	scenario, err := h.scenarios.GetVersion(r.Context(), botID, version)
	if HandleRepoError(w, h.logger, err, "scenario version not found") {
		return
	}

	Success(w, ScenarioFromDomain(*scenario, true))
}

// ActivateScenario делает версию активной (откат к прошлой версии).
// POST /api/v1/bots/{id}/scenarios/{version}/activate
func (h *Handler) ActivateScenario(w http.ResponseWriter, r *http.Request) {
	botID, ok := pathID(w, r, "id", "bot")
	if !ok {
		return
	}
	version, ok := pathVersion(w, r)
	if !ok {
		return
	}

	if err := h.scenarios.Activate(r.Context(), botID, version); HandleRepoError(w, h.logger, err, "scenario version not found") {
		return
	}

	scenario, err := h.scenarios.GetVersion(r.Context(), botID, version)
	if HandleRepoError(w, h.logger, err, "scenario version not found") {
		return
	}

	h.logger.Info("scenario activated", "bot_id", botID, "version", version)
	Success(w, ScenarioFromDomain(*scenario, false))
}

// ValidateScenario проверяет граф без сохранения.
// POST /api/v1/scenarios/validate
func (h *Handler) ValidateScenario(w http.ResponseWriter, r *http.Request) {
	var req ValidateScenarioRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Graph) == 0 {
		BadRequest(w, "graph is required")
		return
	}

	graph, err := engine.ParseGraph(req.Graph)
	if err != nil {
		Success(w, ValidateScenarioResponse{Errors: []GraphErrorDetail{{Message: err.Error()}}})
		return
	}

	errs := GraphErrors(engine.Validate(graph))
	Success(w, ValidateScenarioResponse{
		Valid:  len(errs) == 0,
		Nodes:  graph.Len(),
		Errors: errs,
	})
}

func pathVersion(w http.ResponseWriter, r *http.Request) (int, bool) {
	version, err := strconv.Atoi(chi.URLParam(r, "version"))
	if err != nil || version < 1 {
		BadRequest(w, "invalid scenario version")
		return 0, false
	}
	return version, true
}
