// Package cli реализует инструмент командной строки Botflow.
//
// # Обзор
//
// CLI — клиентская утилита для Botflow API. Работает через HTTP
// и не импортирует internal/api. Исключение — simulate: он запускает
// сценарий локально через те же processor и executor, что и сервис,
// поверх sandbox-хранилищ и консольного канала.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для Botflow API. Разбирает обёртки data/error,
// ошибки сервера возвращает как *APIError (с ошибками узлов графа,
// если сервер их прислал).
//
//	client := cli.NewClient("http://localhost:8080")
//	bots, err := client.ListBots(businessID)
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (json.MarshalIndent) — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: botflow bot list --json | jq .
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - bot: list, create, show, update, delete
//   - trigger: list, create, update, delete
//   - scenario: list, publish, active, activate, validate, simulate
//   - conversation: list, show, state, bot, messages, send
//
// Каждая группа создаётся через фабричную функцию (NewBotCmd и т.д.),
// принимающую clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
//
// ## Simulate
//
// Каждая строка stdin — входящее сообщение клиента. Граф читается
// из YAML или JSON (ReadGraph), триггеры задаются флагами
// "kw1,kw2=response" (ParseTrigger).
package cli
