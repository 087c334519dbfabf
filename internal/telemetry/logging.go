package telemetry

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
)

// ParseLevel переводит строку конфигурации в уровень slog.
// Возможные значения: DEBUG, INFO, WARN, ERROR. По умолчанию INFO.
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetupLogger создаёт логгер и делает его глобальным.
//
// format:
//   - "json" (по умолчанию) — для production
//   - "text" — для разработки
func SetupLogger(level, format string) *slog.Logger {
	logger := NewLogger(os.Stdout, level, format)
	slog.SetDefault(logger)
	return logger
}

// NewLogger создаёт логгер, пишущий в w.
func NewLogger(w io.Writer, level, format string) *slog.Logger {
	lvl := ParseLevel(level)
	opts := &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl == slog.LevelDebug,
	}

	var handler slog.Handler
	if strings.EqualFold(format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler)
}

// NopLogger возвращает логгер, отбрасывающий записи.
func NopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type ctxKey string

// CtxLogger — ключ логгера в контексте.
const CtxLogger ctxKey = "logger"

// WithLogger добавляет логгер в контекст.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, CtxLogger, logger)
}

// FromContext извлекает логгер из контекста, иначе возвращает глобальный.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(CtxLogger).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// WithConversationID возвращает логгер с conversation_id.
func WithConversationID(logger *slog.Logger, id uuid.UUID) *slog.Logger {
	return logger.With("conversation_id", id.String())
}

// WithBotID возвращает логгер с bot_id.
func WithBotID(logger *slog.Logger, id uuid.UUID) *slog.Logger {
	return logger.With("bot_id", id.String())
}

// WithMessageID возвращает логгер с message_id.
func WithMessageID(logger *slog.Logger, id uuid.UUID) *slog.Logger {
	return logger.With("message_id", id.String())
}

// WithScenario возвращает логгер с идентификатором и версией сценария.
func WithScenario(logger *slog.Logger, id uuid.UUID, version int) *slog.Logger {
	return logger.With("scenario_id", id.String(), "scenario_version", version)
}
