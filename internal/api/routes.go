package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

var defaultCORSOrigins = []string{"http://localhost:*", "http://127.0.0.1:*"}

// Routes возвращает router со всеми маршрутами API.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	// Middleware chain
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(Recovery(h.logger))
	r.Use(Logging(h.logger))
	r.Use(middleware.Timeout(30 * time.Second))

	origins := h.corsOrigins
	if len(origins) == 0 {
		origins = defaultCORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		NotFound(w, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		MethodNotAllowed(w)
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Bots
		r.Get("/bots", h.ListBots)
		r.Post("/bots", h.CreateBot)
		r.Get("/bots/{id}", h.GetBot)
		r.Put("/bots/{id}", h.UpdateBot)
		r.Delete("/bots/{id}", h.DeleteBot)

		// Triggers
		r.Get("/bots/{id}/triggers", h.ListTriggers)
		r.Post("/bots/{id}/triggers", h.CreateTrigger)
		r.Put("/triggers/{id}", h.UpdateTrigger)
		r.Delete("/triggers/{id}", h.DeleteTrigger)

		// Scenario versions
		r.Get("/bots/{id}/scenarios", h.ListScenarioVersions)
		r.Post("/bots/{id}/scenarios", h.PublishScenario)
		r.Get("/bots/{id}/scenarios/active", h.GetActiveScenario)
		r.Get("/bots/{id}/scenarios/{version}", h.GetScenarioVersion)
		r.Post("/bots/{id}/scenarios/{version}/activate", h.ActivateScenario)
		r.Post("/scenarios/validate", h.ValidateScenario)

		// Conversations
		r.Get("/conversations", h.ListConversations)
		r.Get("/conversations/{id}", h.GetConversation)
		r.Get("/conversations/{id}/state", h.GetConversationState)
		r.Put("/conversations/{id}/bot", h.SetConversationBot)
		r.Get("/conversations/{id}/messages", h.ListMessages)
		r.Post("/conversations/{id}/messages", h.PostConversationMessage)

		// Inbound ingestion
		r.Post("/messages/inbound", h.ReceiveInbound)

		// CRM
		r.Get("/customers/{id}", h.GetCustomer)
		r.Get("/customers/{id}/deals", h.ListDeals)
	})

	return r
}
