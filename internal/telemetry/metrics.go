package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Исходы обработки входящего сообщения (метка outcome).
const (
	OutcomeInactive = "inactive"
	OutcomeNoBot    = "no_bot"
	OutcomeTrigger  = "trigger"
	OutcomeFlow     = "flow"
	OutcomeDefault  = "default"
	OutcomeSilent   = "silent"
)

var (
	// MessagesProcessed — входящие сообщения по исходу обработки.
	MessagesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "botflow_messages_processed_total",
		Help: "Inbound messages processed by the bot processor, by outcome",
	}, []string{"outcome"})

	// NodesExecuted — выполненные узлы сценариев по типу.
	NodesExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "botflow_nodes_executed_total",
		Help: "Flow nodes executed, by node type",
	}, []string{"type"})

	// FlowErrors — ошибки выполнения сценария по виду.
	FlowErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "botflow_flow_errors_total",
		Help: "Flow executor errors, by kind",
	}, []string{"kind"})

	// StateConflicts — конфликты версии состояния диалога.
	StateConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "botflow_state_conflicts_total",
		Help: "Optimistic concurrency conflicts on conversation state",
	})

	// OutboundMessages — исходящие сообщения бота по статусу.
	OutboundMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "botflow_outbound_messages_total",
		Help: "Outbound bot messages, by final status",
	}, []string{"status"})

	// ProcessDuration — длительность обработки одного входящего сообщения.
	ProcessDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "botflow_process_duration_seconds",
		Help:    "Time spent processing one inbound message",
		Buckets: prometheus.DefBuckets,
	})
)
