package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Botflow/internal/domain"
	"github.com/shaiso/Botflow/internal/engine"
	"github.com/shaiso/Botflow/internal/executor"
	"github.com/shaiso/Botflow/internal/mq"
	"github.com/shaiso/Botflow/internal/outbound"
	"github.com/shaiso/Botflow/internal/repo"
	"github.com/shaiso/Botflow/internal/telemetry"
)

// Default configuration values.
const (
	defaultPollInterval = 10 * time.Second
	defaultBatchSize    = 100
	defaultPrefetch     = 10
	defaultConcurrency  = 8
	maxCachedGraphs     = 256
)

// Processor обрабатывает входящие сообщения.
type Processor struct {
	bots          Bots
	triggers      Triggers
	scenarios     Scenarios
	conversations Conversations
	inbox         Inbox
	flows         FlowRunner
	outbound      executor.Deliverer

	// MQ (nil — только polling)
	conn     *mq.Connection
	consumer *mq.Consumer

	// Разобранные графы по ID версии сценария. Версии неизменяемы.
	graphs   map[uuid.UUID]*engine.Graph
	graphsMu sync.Mutex

	// Configuration
	pollInterval time.Duration
	batchSize    int
	prefetch     int
	concurrency  int

	// Lifecycle
	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopped    bool
	stoppedMu  sync.RWMutex
}

// Config — конфигурация Processor.
type Config struct {
	Bots          Bots
	Triggers      Triggers
	Scenarios     Scenarios
	Conversations Conversations
	Inbox         Inbox
	Flows         FlowRunner
	Outbound      executor.Deliverer

	// Conn — соединение RabbitMQ; nil отключает consumer.
	Conn *mq.Connection

	PollInterval time.Duration // интервал polling (default: 10s)
	BatchSize    int           // сообщений за один poll (default: 100)
	Prefetch     int           // prefetch consumer (default: 10)
	Concurrency  int           // диалогов параллельно при polling (default: 8)

	Logger *slog.Logger
}

// New создаёт Processor.
func New(cfg Config) *Processor {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = defaultPrefetch
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Processor{
		bots:          cfg.Bots,
		triggers:      cfg.Triggers,
		scenarios:     cfg.Scenarios,
		conversations: cfg.Conversations,
		inbox:         cfg.Inbox,
		flows:         cfg.Flows,
		outbound:      cfg.Outbound,
		conn:          cfg.Conn,
		graphs:        make(map[uuid.UUID]*engine.Graph),
		pollInterval:  pollInterval,
		batchSize:     batchSize,
		prefetch:      prefetch,
		concurrency:   concurrency,
		logger:        logger,
	}
}

// Process выбирает ответ на входящее сообщение.
//
// Возвращает true, если бот ответил (триггер, сценарий или ответ
// по умолчанию), false — сообщение остаётся оператору.
// Ошибка означает сбой инфраструктуры: обработку стоит повторить.
func (p *Processor) Process(ctx context.Context, conv domain.Conversation, msg domain.IncomingMessage) (bool, error) {
	start := time.Now()
	defer func() {
		telemetry.ProcessDuration.Observe(time.Since(start).Seconds())
	}()

	logger := telemetry.WithMessageID(telemetry.WithConversationID(p.logger, conv.ID), msg.ID)

	// 1. Бот выключен в диалоге — ни триггеры, ни сценарий не работают
	if !conv.IsBotActive {
		return p.done(logger, telemetry.OutcomeInactive, false), nil
	}

	// 2. Бот диалога
	bot, err := p.resolveBot(ctx, &conv)
	if err != nil {
		return false, err
	}
	if bot == nil {
		return p.done(logger, telemetry.OutcomeNoBot, false), nil
	}
	logger = telemetry.WithBotID(logger, bot.ID)

	// 3. Триггеры важнее сценария, даже посреди него
	triggers, err := p.triggers.ListByBot(ctx, bot.ID)
	if err != nil {
		return false, fmt.Errorf("list triggers: %w", err)
	}
	if t, ok := engine.MatchTrigger(triggers, msg.Content); ok {
		logger.Debug("trigger matched", "trigger_id", t.ID)
		p.reply(ctx, logger, conv, t.Response)
		return p.done(logger, telemetry.OutcomeTrigger, true), nil
	}

	// 4. Сценарий
	handled, err := p.runFlow(ctx, logger, conv, msg, bot)
	if err != nil {
		return false, err
	}
	if handled {
		return p.done(logger, telemetry.OutcomeFlow, true), nil
	}

	// 5. Ответ по умолчанию
	if bot.HasDefaultResponse() {
		p.reply(ctx, logger, conv, bot.DefaultResponse)
		return p.done(logger, telemetry.OutcomeDefault, true), nil
	}

	return p.done(logger, telemetry.OutcomeSilent, false), nil
}

// resolveBot возвращает назначенного боту диалога или находит и назначает
// активного бота бизнеса на номере. nil — бота нет.
func (p *Processor) resolveBot(ctx context.Context, conv *domain.Conversation) (*domain.Bot, error) {
	if conv.HasBot() {
		bot, err := p.bots.GetByID(ctx, *conv.AssignedBotID)
		if errors.Is(err, repo.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("get assigned bot: %w", err)
		}
		if !bot.IsActive {
			return nil, nil
		}
		return bot, nil
	}

	bot, err := p.bots.FindActive(ctx, conv.BusinessID, conv.ChannelNumberID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find active bot: %w", err)
	}

	if err := p.conversations.AssignBot(ctx, conv.ID, bot.ID); err != nil {
		return nil, fmt.Errorf("assign bot: %w", err)
	}
	conv.AssignedBotID = &bot.ID

	p.logger.Info("bot assigned to conversation",
		"conversation_id", conv.ID,
		"bot_id", bot.ID,
	)
	return bot, nil
}

// runFlow выполняет активный сценарий бота.
// Ошибка сценария не ошибка обработки: сообщение получает ответ по умолчанию.
func (p *Processor) runFlow(ctx context.Context, logger *slog.Logger, conv domain.Conversation, msg domain.IncomingMessage, bot *domain.Bot) (bool, error) {
	scenario, err := p.scenarios.GetActive(ctx, bot.ID)
	if errors.Is(err, repo.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get active scenario: %w", err)
	}
	logger = telemetry.WithScenario(logger, scenario.ID, scenario.Version)

	graph, err := p.graph(scenario)
	if err != nil {
		logger.Warn("active scenario is not a valid graph", "error", err)
		return false, nil
	}

	res, err := p.flows.Run(ctx, conv, msg, graph)
	if err != nil {
		logger.Warn("flow did not handle message",
			"executed", res.Executed,
			"error", err,
		)
		return false, nil
	}
	return res.Handled(), nil
}

// graph возвращает разобранный граф сценария из кэша.
func (p *Processor) graph(s *domain.Scenario) (*engine.Graph, error) {
	p.graphsMu.Lock()
	defer p.graphsMu.Unlock()

	if g, ok := p.graphs[s.ID]; ok {
		return g, nil
	}

	g, err := engine.ParseGraph(s.Graph)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScenario, err)
	}

	if len(p.graphs) >= maxCachedGraphs {
		clear(p.graphs)
	}
	p.graphs[s.ID] = g
	return g, nil
}

// reply отправляет фиксированный ответ. Сбой канала записан в журнал
// сообщений, на результат обработки он не влияет.
func (p *Processor) reply(ctx context.Context, logger *slog.Logger, conv domain.Conversation, text string) {
	if _, err := p.outbound.Deliver(ctx, conv, outbound.Text(text)); err != nil {
		logger.Warn("reply delivery failed", "error", err)
	}
}

func (p *Processor) done(logger *slog.Logger, outcome string, handled bool) bool {
	telemetry.MessagesProcessed.WithLabelValues(outcome).Inc()
	logger.Debug("message processed", "outcome", outcome, "handled", handled)
	return handled
}

// Start запускает consumer (если есть соединение) и polling.
func (p *Processor) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	p.cancelFunc = cancel

	p.logger.Info("starting processor",
		"poll_interval", p.pollInterval,
		"batch_size", p.batchSize,
		"mq", p.conn != nil,
	)

	if p.conn != nil {
		p.consumer = mq.NewConsumer(p.conn, p.logger, mq.ConsumerConfig{
			Queue:    mq.QueueInbound,
			Handler:  p.handleInbound,
			Prefetch: p.prefetch,
		})

		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			if err := p.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				p.logger.Error("inbound consumer error", "error", err)
			}
		}()
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.pollLoop(ctx)
	}()

	p.logger.Info("processor started")
	return nil
}

// Stop останавливает Processor и ждёт текущую обработку.
func (p *Processor) Stop() {
	p.stoppedMu.Lock()
	p.stopped = true
	p.stoppedMu.Unlock()

	p.logger.Info("stopping processor...")

	if p.cancelFunc != nil {
		p.cancelFunc()
	}
	if p.consumer != nil {
		p.consumer.Stop()
	}

	p.wg.Wait()
	p.logger.Info("processor stopped")
}

// IsStopped проверяет, остановлен ли Processor.
func (p *Processor) IsStopped() bool {
	p.stoppedMu.RLock()
	defer p.stoppedMu.RUnlock()
	return p.stopped
}
