package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Scenario — версия сценария бота (flow graph).
//
// Сценарии неизменяемы: редактирование создаёт новую версию.
// Graph хранится в исходном JSON виде и разбирается пакетом engine.
type Scenario struct {
	ID    uuid.UUID `json:"id"`
	BotID uuid.UUID `json:"bot_id"`
	Name  string    `json:"name"`

	// Version — монотонный номер версии в рамках бота (1, 2, 3, ...).
	Version int `json:"version"`

	IsActive bool `json:"is_active"`

	// Graph — {"nodes": [...], "edges": [...]}.
	Graph json.RawMessage `json:"graph"`

	CreatedAt time.Time `json:"created_at"`
}

// Trigger — быстрый ответ по ключевым словам.
//
// Триггеры принадлежат боту, а не сценарию, и не меняют состояние диалога.
type Trigger struct {
	ID       uuid.UUID `json:"id"`
	BotID    uuid.UUID `json:"bot_id"`
	Keywords []string  `json:"keywords"`
	Response string    `json:"response"`

	// Priority — меньшее значение проверяется раньше.
	Priority int `json:"priority"`

	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}
