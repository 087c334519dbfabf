// Package sandbox — in-memory реализации внешних зависимостей бота:
// CRM, журнал сообщений, диалоги и каталог ботов.
//
// Используется командой `botflow scenario simulate` и тестами,
// где нужен полный цикл обработки без PostgreSQL и мессенджера.
package sandbox
