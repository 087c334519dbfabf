package mq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Ошибки соединения.
var (
	// ErrNoChannel — канал не открыт (идёт переподключение).
	ErrNoChannel = errors.New("amqp channel not available")

	// ErrClosed — соединение закрыто вызовом Close.
	ErrClosed = errors.New("amqp connection closed")
)

const (
	defaultHeartbeat         = 10 * time.Second
	defaultMaxReconnectDelay = 30 * time.Second
)

// ConnectionConfig — параметры соединения.
type ConnectionConfig struct {
	URL string

	// Name — имя соединения в management UI брокера.
	Name string

	Heartbeat         time.Duration // default: 10s
	MaxReconnectDelay time.Duration // default: 30s

	Logger *slog.Logger
}

// Connection — AMQP соединение с автоматическим переподключением.
// Один канал разделяется между publisher и consumers.
type Connection struct {
	cfg    ConnectionConfig
	logger *slog.Logger

	mu      sync.RWMutex
	conn    *amqp.Connection
	channel *amqp.Channel
	closed  bool

	closedCh    chan struct{}
	reconnectCh chan struct{}
}

// Dial устанавливает соединение и запускает наблюдение за ним.
func Dial(cfg ConnectionConfig) (*Connection, error) {
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = defaultHeartbeat
	}
	if cfg.MaxReconnectDelay <= 0 {
		cfg.MaxReconnectDelay = defaultMaxReconnectDelay
	}
	if cfg.Name == "" {
		cfg.Name = "botflow"
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Connection{
		cfg:         cfg,
		logger:      logger.With("component", "amqp"),
		closedCh:    make(chan struct{}),
		reconnectCh: make(chan struct{}, 1),
	}

	if err := c.connect(); err != nil {
		return nil, err
	}

	go c.watch()
	return c, nil
}

func (c *Connection) connect() error {
	conn, err := amqp.DialConfig(c.cfg.URL, amqp.Config{
		Heartbeat:  c.cfg.Heartbeat,
		Properties: amqp.Table{"connection_name": c.cfg.Name},
	})
	if err != nil {
		return fmt.Errorf("dial amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.channel = ch
	c.mu.Unlock()

	c.logger.Info("connected to RabbitMQ", "name", c.cfg.Name)
	return nil
}

// watch ждёт разрыва соединения и переподключается.
func (c *Connection) watch() {
	for {
		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()

		notify := conn.NotifyClose(make(chan *amqp.Error, 1))

		select {
		case <-c.closedCh:
			return
		case amqpErr := <-notify:
			if amqpErr != nil {
				c.logger.Warn("connection lost", "code", amqpErr.Code, "reason", amqpErr.Reason)
			}
		}

		c.mu.Lock()
		c.channel = nil
		c.mu.Unlock()

		if !c.reconnect() {
			return
		}
	}
}

// reconnect повторяет попытки с удвоением задержки.
// Возвращает false, если соединение закрыто во время ожидания.
func (c *Connection) reconnect() bool {
	delay := time.Second

	for {
		c.logger.Info("attempting to reconnect", "delay", delay)

		select {
		case <-c.closedCh:
			return false
		case <-time.After(delay):
		}

		if err := c.connect(); err != nil {
			c.logger.Warn("reconnect failed", "error", err)
			delay = min(delay*2, c.cfg.MaxReconnectDelay)
			continue
		}

		select {
		case c.reconnectCh <- struct{}{}:
		default:
		}
		return true
	}
}

// ReconnectNotify сигналит после каждого успешного переподключения.
func (c *Connection) ReconnectNotify() <-chan struct{} {
	return c.reconnectCh
}

// Channel возвращает текущий канал или nil.
func (c *Connection) Channel() *amqp.Channel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.channel
}

// WithChannel выполняет fn с текущим каналом.
func (c *Connection) WithChannel(ctx context.Context, fn func(ch *amqp.Channel) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.RLock()
	ch, closed := c.channel, c.closed
	c.mu.RUnlock()

	switch {
	case closed:
		return ErrClosed
	case ch == nil:
		return ErrNoChannel
	}
	return fn(ch)
}

// IsConnected проверяет, установлено ли соединение.
func (c *Connection) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil && !c.conn.IsClosed() && c.channel != nil
}

// Close закрывает канал и соединение.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	close(c.closedCh)

	var errs []error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, fmt.Errorf("close channel: %w", err))
		}
	}
	if c.conn != nil && !c.conn.IsClosed() {
		if err := c.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close connection: %w", err))
		}
	}

	c.logger.Info("connection closed")
	return errors.Join(errs...)
}

