package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler обрабатывает событие.
// Ошибка — nack: обычная возвращает сообщение в очередь,
// Permanent и повторная неудача отправляют его в DLQ.
type Handler func(ctx context.Context, d *Delivery) error

// Delivery — доставленное событие.
type Delivery struct {
	Message     Message
	Redelivered bool
}

// permanentError — ошибка, повтор которой не поможет.
type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Permanent помечает ошибку как неисправимую: сообщение уйдёт в DLQ без повтора.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// IsPermanent проверяет пометку Permanent.
func IsPermanent(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}

// outcome — решение по доставке.
type outcome int

const (
	outcomeAck outcome = iota
	outcomeRequeue
	outcomeReject
)

// decide выбирает ack/nack по результату обработчика.
// Сообщение, уже возвращённое в очередь, повторно не возвращается.
func decide(err error, redelivered bool) outcome {
	switch {
	case err == nil:
		return outcomeAck
	case IsPermanent(err), redelivered:
		return outcomeReject
	default:
		return outcomeRequeue
	}
}

// ConsumerConfig — конфигурация consumer.
type ConsumerConfig struct {
	Queue    Queue
	Handler  Handler
	Prefetch int // default: 1
}

// Consumer потребляет события из очереди.
type Consumer struct {
	conn     *Connection
	logger   *slog.Logger
	queue    Queue
	handler  Handler
	prefetch int

	cancel context.CancelFunc
}

// NewConsumer создаёт Consumer.
func NewConsumer(conn *Connection, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Consumer{
		conn:     conn,
		logger:   logger.With("queue", cfg.Queue),
		queue:    cfg.Queue,
		handler:  cfg.Handler,
		prefetch: prefetch,
	}
}

// Start потребляет события до отмены ctx или вызова Stop.
// После разрыва соединения ждёт переподключения и продолжает.
func (c *Consumer) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)

	for {
		deliveries, err := c.subscribe()
		if err != nil {
			c.logger.Error("failed to subscribe", "error", err)
		} else {
			c.logger.Info("consumer started")
			c.drain(ctx, deliveries)
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		c.logger.Warn("consumer interrupted, waiting for reconnect")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.conn.ReconnectNotify():
		}
	}
}

// Stop останавливает consumer.
func (c *Consumer) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
}

func (c *Consumer) subscribe() (<-chan amqp.Delivery, error) {
	ch := c.conn.Channel()
	if ch == nil {
		return nil, ErrNoChannel
	}

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}

	// ручной ack, не exclusive
	deliveries, err := ch.Consume(string(c.queue), "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume: %w", err)
	}
	return deliveries, nil
}

func (c *Consumer) drain(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-deliveries:
			if !ok {
				return
			}
			c.handle(ctx, raw)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, raw amqp.Delivery) {
	var msg Message
	if err := json.Unmarshal(raw.Body, &msg); err != nil {
		c.logger.Error("malformed message, rejecting", "error", err, "body", string(raw.Body))
		c.settle(raw, outcomeReject)
		return
	}

	logger := c.logger.With("message_id", msg.ID, "type", msg.Type)
	logger.Debug("received message", "redelivered", raw.Redelivered)

	err := c.handler(ctx, &Delivery{Message: msg, Redelivered: raw.Redelivered})
	out := decide(err, raw.Redelivered)

	switch out {
	case outcomeRequeue:
		logger.Warn("handler failed, requeueing", "error", err)
	case outcomeReject:
		logger.Error("handler failed, dead-lettering", "error", err)
	}
	c.settle(raw, out)
}

func (c *Consumer) settle(raw amqp.Delivery, out outcome) {
	var err error
	switch out {
	case outcomeAck:
		err = raw.Ack(false)
	case outcomeRequeue:
		err = raw.Nack(false, true)
	case outcomeReject:
		err = raw.Nack(false, false)
	}
	if err != nil {
		c.logger.Warn("failed to settle delivery", "error", err)
	}
}

// ParsePayload разбирает payload события.
func ParsePayload[T any](msg *Message) (T, error) {
	var result T
	if len(msg.Payload) == 0 {
		return result, Permanent(fmt.Errorf("empty payload in %s", msg.Type))
	}
	if err := json.Unmarshal(msg.Payload, &result); err != nil {
		return result, Permanent(fmt.Errorf("unmarshal %s payload: %w", msg.Type, err))
	}
	return result, nil
}
