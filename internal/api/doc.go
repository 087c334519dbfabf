// Package api содержит HTTP API управления ботами.
//
// Структура:
//   - handler.go              — Handler с DI (хранилища, publisher, logger)
//   - ports.go                — интерфейсы хранилищ, которые использует API
//   - routes.go               — chi router, middleware и маршруты
//   - middleware.go           — logging и recovery
//   - response.go             — унифицированные JSON-ответы и обработка ошибок
//   - dto.go                  — Data Transfer Objects (request/response)
//   - bot_handler.go          — обработчики для /bots и /triggers
//   - scenario_handler.go     — публикация и активация версий сценария
//   - conversation_handler.go — диалоги, состояние сценария, переключение бота
//   - message_handler.go      — приём входящих сообщений и журнал диалога
//
// Входящие сообщения сохраняются и публикуются в RabbitMQ для Bot Processor.
package api
