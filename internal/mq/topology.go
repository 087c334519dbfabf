package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	ExchangeMessages Exchange = "botflow.messages"
	ExchangeDLQ      Exchange = "botflow.dlq"
)

// Queues — имена очередей.
const (
	QueueInbound    Queue = "messages.inbound"
	QueueDLQInbound Queue = "dlq.inbound"
)

// Routing keys.
const (
	RoutingKeyInbound    RoutingKey = "inbound"
	RoutingKeyDLQInbound RoutingKey = "inbound"
)

// binding — очередь, её аргументы и привязка к обменнику.
type binding struct {
	queue      Queue
	exchange   Exchange
	routingKey RoutingKey
	args       amqp.Table
}

var exchanges = []Exchange{ExchangeMessages, ExchangeDLQ}

var bindings = []binding{
	// messages.inbound — отклонённые без requeue сообщения уходят в DLQ.
	{
		queue:      QueueInbound,
		exchange:   ExchangeMessages,
		routingKey: RoutingKeyInbound,
		args: amqp.Table{
			"x-dead-letter-exchange":    string(ExchangeDLQ),
			"x-dead-letter-routing-key": string(RoutingKeyDLQInbound),
		},
	},
	{
		queue:      QueueDLQInbound,
		exchange:   ExchangeDLQ,
		routingKey: RoutingKeyDLQInbound,
	},
}

// SetupTopology объявляет обменники, очереди и привязки.
// Операции идемпотентны: повторный вызов на том же брокере безопасен.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		for _, ex := range exchanges {
			// durable, не auto-delete, не internal, с ожиданием ответа
			if err := ch.ExchangeDeclare(string(ex), "direct", true, false, false, false, nil); err != nil {
				return fmt.Errorf("declare exchange %s: %w", ex, err)
			}
		}

		for _, b := range bindings {
			if _, err := ch.QueueDeclare(string(b.queue), true, false, false, false, b.args); err != nil {
				return fmt.Errorf("declare queue %s: %w", b.queue, err)
			}
			if err := ch.QueueBind(string(b.queue), string(b.routingKey), string(b.exchange), false, nil); err != nil {
				return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
			}
		}

		return nil
	})
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  Botflow RabbitMQ Topology:

    botflow.messages (direct)
    └── messages.inbound [routing: inbound]
            Consumer: Bot Processor
            DLQ: dlq.inbound

    botflow.dlq (direct)
    └── dlq.inbound [routing: inbound]
            Manual processing
  `
}
