package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/Botflow/internal/domain"
	"github.com/shaiso/Botflow/internal/engine"
	"github.com/shaiso/Botflow/internal/state"
	"github.com/shaiso/Botflow/internal/telemetry"
)

// Default configuration values.
const (
	DefaultMaxSteps    = 50
	defaultLockTimeout = 10 * time.Second
)

// Виды ошибок для метрики FlowErrors.
const (
	errKindConfig   = "config"
	errKindStepCap  = "step_limit"
	errKindConflict = "conflict"
	errKindAction   = "action"
	errKindDelivery = "delivery"
	errKindStore    = "store"
)

// Executor выполняет сценарии.
// Все зависимости передаются явно, общего состояния между вызовами нет.
type Executor struct {
	store         state.Store
	locker        state.Locker
	crm           CRM
	conversations Conversations
	outbound      Deliverer

	maxSteps    int
	lockTimeout time.Duration
	logger      *slog.Logger
}

// Config — конфигурация Executor.
type Config struct {
	Store         state.Store
	Locker        state.Locker
	CRM           CRM
	Conversations Conversations
	Outbound      Deliverer

	MaxSteps    int           // предел узлов на одно сообщение (default: 50)
	LockTimeout time.Duration // ожидание блокировки диалога (default: 10s)

	Logger *slog.Logger
}

// New создаёт Executor.
func New(cfg Config) *Executor {
	maxSteps := cfg.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}

	lockTimeout := cfg.LockTimeout
	if lockTimeout <= 0 {
		lockTimeout = defaultLockTimeout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	locker := cfg.Locker
	if locker == nil {
		locker = state.NewKeyedLocker()
	}

	return &Executor{
		store:         cfg.Store,
		locker:        locker,
		crm:           cfg.CRM,
		conversations: cfg.Conversations,
		outbound:      cfg.Outbound,
		maxSteps:      maxSteps,
		lockTimeout:   lockTimeout,
		logger:        logger,
	}
}

// Result — итог обработки сообщения сценарием.
type Result struct {
	// Executed — сколько узлов выполнено (вход в узел или ответ на него).
	Executed int

	// Delivered — сколько ответов принял канал.
	Delivered int

	// State — последнее сохранённое состояние диалога.
	State domain.ConversationState
}

// Handled возвращает true, если сценарий обработал сообщение.
func (r Result) Handled() bool {
	return r.Executed > 0
}

// Run обрабатывает входящее сообщение сценарием graph.
//
// Ошибка не отменяет уже сделанное: позиция сохранена до последнего
// выполненного узла, накопленные ответы доставлены.
func (e *Executor) Run(ctx context.Context, conv domain.Conversation, msg domain.IncomingMessage, graph *engine.Graph) (Result, error) {
	logger := telemetry.WithMessageID(telemetry.WithConversationID(e.logger, conv.ID), msg.ID)

	lockCtx, cancel := context.WithTimeout(ctx, e.lockTimeout)
	unlock, err := e.locker.Lock(lockCtx, conv.ID.String())
	cancel()
	if err != nil {
		return Result{}, fmt.Errorf("lock conversation: %w", err)
	}

	w, runErr := e.walkLocked(ctx, conv, msg, graph, logger)

	if err := unlock(context.WithoutCancel(ctx)); err != nil {
		logger.Warn("failed to release conversation lock", "error", err)
	}

	res := Result{Executed: w.executed, State: w.state}
	if runErr != nil {
		telemetry.FlowErrors.WithLabelValues(errorKind(runErr)).Inc()
		logger.Warn("flow stopped with error",
			"node_id", w.state.CurrentNodeID,
			"executed", w.executed,
			"error", runErr,
		)
	}

	delivered, deliverErr := e.outbound.Deliver(ctx, conv, w.replies...)
	res.Delivered = delivered
	if deliverErr != nil {
		telemetry.FlowErrors.WithLabelValues(errKindDelivery).Inc()
	}

	return res, errors.Join(runErr, deliverErr)
}

// walkLocked загружает состояние и проходит граф.
// Конфликт версии до первого сохранения — повод перечитать
// состояние один раз: параллельная обработка уже сдвинула диалог.
func (e *Executor) walkLocked(ctx context.Context, conv domain.Conversation, msg domain.IncomingMessage, graph *engine.Graph, logger *slog.Logger) (*walk, error) {
	for attempt := 1; ; attempt++ {
		st, err := e.store.Load(ctx, conv.ID)
		if err != nil {
			return &walk{state: domain.NewConversationState(conv.ID)}, fmt.Errorf("load state: %w", err)
		}

		w := &walk{
			exec:   e,
			conv:   conv,
			msg:    msg,
			graph:  graph,
			state:  st,
			logger: logger,
		}
		err = w.run(ctx)
		if !errors.Is(err, state.ErrVersionConflict) {
			return w, err
		}

		telemetry.StateConflicts.Inc()
		if w.commits == 0 && attempt < 2 {
			logger.Debug("state changed concurrently, reloading")
			continue
		}
		return w, fmt.Errorf("%w: %v", ErrConcurrentUpdate, err)
	}
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrStepLimit):
		return errKindStepCap
	case errors.Is(err, ErrConcurrentUpdate), errors.Is(err, state.ErrVersionConflict):
		return errKindConflict
	case errors.Is(err, ErrActionFailed):
		return errKindAction
	case errors.Is(err, engine.ErrNodeNotFound),
		errors.Is(err, engine.ErrInvalidNodeData),
		errors.Is(err, engine.ErrUnknownNodeType):
		return errKindConfig
	default:
		return errKindStore
	}
}
