// Package repo — доступ к PostgreSQL через pgx.
//
// Репозитории:
//   - BotRepo          — боты бизнеса
//   - TriggerRepo      — триггеры ботов
//   - ScenarioRepo     — версии сценариев
//   - ConversationRepo — диалоги и флаг бота
//   - MessageRepo      — журнал сообщений и очередь входящих
//   - CRMRepo          — клиенты и сделки
//
// Состояние диалога хранится в conversation_states (пакет state).
// Схема — schema.sql, применяется Migrate.
package repo
