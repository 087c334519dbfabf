// Package telemetry обеспечивает наблюдаемость сервисов Botflow.
//
// Включает:
//   - logging.go — structured logging через slog
//   - metrics.go — Prometheus метрики (экспорт на /metrics)
package telemetry
