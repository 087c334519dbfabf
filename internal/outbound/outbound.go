package outbound

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shaiso/Botflow/internal/domain"
	"github.com/shaiso/Botflow/internal/telemetry"
)

// ErrDeliveryFailed — канал не принял сообщение.
var ErrDeliveryFailed = errors.New("outbound delivery failed")

// Sender — клиент канала обмена сообщениями.
// Возвращает внешний идентификатор сообщения.
type Sender interface {
	SendText(ctx context.Context, to, text string) (string, error)
	SendButtons(ctx context.Context, to, body string, options []domain.ButtonOption) (string, error)
}

// MessageLog — журнал сообщений диалога.
type MessageLog interface {
	AppendOutbound(ctx context.Context, msg *domain.Message) error
	UpdateDelivery(ctx context.Context, msg *domain.Message) error
}

// Reply — один ответ бота.
type Reply struct {
	Text    string
	Options []domain.ButtonOption

	// NodeID — узел сценария, породивший ответ (пусто для триггеров и default).
	NodeID string
}

// Text создаёт текстовый ответ.
func Text(text string) Reply {
	return Reply{Text: text}
}

// Buttons создаёт интерактивный ответ с кнопками.
func Buttons(body string, options []domain.ButtonOption) Reply {
	return Reply{Text: body, Options: options}
}

// Type возвращает тип сообщения для журнала.
func (r Reply) Type() domain.MessageType {
	if len(r.Options) > 0 {
		return domain.MessageTypeInteractive
	}
	return domain.MessageTypeText
}

// Dispatcher записывает и отправляет ответы по порядку.
type Dispatcher struct {
	sender Sender
	log    MessageLog
	logger *slog.Logger
}

// NewDispatcher создаёт Dispatcher.
func NewDispatcher(sender Sender, log MessageLog, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{sender: sender, log: log, logger: logger}
}

// Deliver отправляет ответы клиенту диалога по порядку.
//
// На первой ошибке канала запись помечается failed, оставшиеся
// ответы не отправляются, возвращается ErrDeliveryFailed.
// Возвращает число успешно отправленных ответов.
func (d *Dispatcher) Deliver(ctx context.Context, conv domain.Conversation, replies ...Reply) (int, error) {
	logger := telemetry.WithConversationID(d.logger, conv.ID)

	for i, r := range replies {
		msg := domain.NewBotMessage(conv.ID, r.Type(), r.Text)
		if err := d.log.AppendOutbound(ctx, msg); err != nil {
			return i, fmt.Errorf("append outbound: %w", err)
		}

		externalID, sendErr := d.send(ctx, conv.CustomerPhone, r)
		if sendErr != nil {
			msg.MarkFailed(sendErr.Error())
		} else {
			msg.MarkSent(externalID)
		}
		telemetry.OutboundMessages.WithLabelValues(string(msg.Status)).Inc()

		if err := d.log.UpdateDelivery(ctx, msg); err != nil {
			logger.Warn("failed to record delivery status",
				"message_id", msg.ID,
				"status", msg.Status,
				"error", err,
			)
		}

		if sendErr != nil {
			logger.Warn("outbound message failed",
				"message_id", msg.ID,
				"node_id", r.NodeID,
				"error", sendErr,
			)
			return i, fmt.Errorf("%w: %v", ErrDeliveryFailed, sendErr)
		}
	}

	return len(replies), nil
}

func (d *Dispatcher) send(ctx context.Context, to string, r Reply) (string, error) {
	if len(r.Options) > 0 {
		return d.sender.SendButtons(ctx, to, r.Text, r.Options)
	}
	return d.sender.SendText(ctx, to, r.Text)
}
