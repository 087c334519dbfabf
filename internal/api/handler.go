package api

import (
	"log/slog"

	"github.com/shaiso/Botflow/internal/state"
)

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	bots          Bots
	triggers      Triggers
	scenarios     Scenarios
	conversations Conversations
	customers     Customers
	messages      Messages
	states        state.Store
	publisher     InboundPublisher
	corsOrigins   []string
	logger        *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Bots          Bots
	Triggers      Triggers
	Scenarios     Scenarios
	Conversations Conversations
	Customers     Customers
	Messages      Messages
	States        state.Store

	// Publisher — nil: процессор подхватит сообщения polling'ом.
	Publisher InboundPublisher

	// CORSOrigins — разрешённые origin редактора сценариев (default: localhost).
	CORSOrigins []string

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		bots:          cfg.Bots,
		triggers:      cfg.Triggers,
		scenarios:     cfg.Scenarios,
		conversations: cfg.Conversations,
		customers:     cfg.Customers,
		messages:      cfg.Messages,
		states:        cfg.States,
		publisher:     cfg.Publisher,
		corsOrigins:   cfg.CORSOrigins,
		logger:        logger,
	}
}
