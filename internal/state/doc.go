// Package state хранит позицию диалогов в сценариях.
//
// Включает:
//   - store.go    — контракт хранилища с оптимистической версией
//   - memory.go   — хранилище в памяти (тесты, симуляция)
//   - sqlite.go   — SQLite (одиночный инстанс, CLI)
//   - postgres.go — PostgreSQL (production)
//   - locker.go   — блокировка диалога внутри процесса
//   - redis.go    — распределённая блокировка через Redis
//
// Изменение состояния — read-modify-write под блокировкой диалога,
// а Save дополнительно проверяет версию. Потерянное обновление
// невозможно даже при ошибке блокировки.
package state
