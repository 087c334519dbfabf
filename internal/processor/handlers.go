package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/shaiso/Botflow/internal/domain"
	"github.com/shaiso/Botflow/internal/mq"
	"github.com/shaiso/Botflow/internal/repo"
)

// handleInbound обрабатывает событие inbound.received.
func (p *Processor) handleInbound(ctx context.Context, d *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.InboundPayload](&d.Message)
	if err != nil {
		return err
	}

	err = p.HandleInbound(ctx, payload.MessageID)
	if errors.Is(err, ErrMessageNotFound) || errors.Is(err, ErrNotInbound) || errors.Is(err, ErrConversationNotFound) {
		return mq.Permanent(err)
	}
	return err
}

// HandleInbound обрабатывает сохранённое входящее сообщение.
//
// Сообщение помечается обработанным до запуска бота, так что
// событие из очереди и polling не ответят дважды. При сбое
// инфраструктуры пометка снимается и возвращается ошибка.
func (p *Processor) HandleInbound(ctx context.Context, messageID uuid.UUID) error {
	msg, err := p.inbox.GetByID(ctx, messageID)
	if errors.Is(err, repo.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrMessageNotFound, messageID)
	}
	if err != nil {
		return fmt.Errorf("get message: %w", err)
	}
	if msg.Direction != domain.DirectionInbound {
		return fmt.Errorf("%w: %s", ErrNotInbound, messageID)
	}
	if msg.ProcessedAt != nil {
		p.logger.Debug("message already processed, skipping", "message_id", messageID)
		return nil
	}

	conv, err := p.conversations.GetByID(ctx, msg.ConversationID)
	if errors.Is(err, repo.ErrNotFound) {
		// Сообщение без диалога обработать нельзя: снимаем его с polling.
		_ = p.inbox.Claim(ctx, messageID)
		return fmt.Errorf("%w: %s", ErrConversationNotFound, msg.ConversationID)
	}
	if err != nil {
		return fmt.Errorf("get conversation: %w", err)
	}

	if err := p.inbox.Claim(ctx, messageID); err != nil {
		if errors.Is(err, repo.ErrInvalidState) {
			p.logger.Debug("message claimed by another handler", "message_id", messageID)
			return nil
		}
		return fmt.Errorf("claim message: %w", err)
	}

	if _, err := p.Process(ctx, *conv, msg.Incoming()); err != nil {
		if relErr := p.inbox.Release(context.WithoutCancel(ctx), messageID); relErr != nil {
			p.logger.Error("failed to release message", "message_id", messageID, "error", relErr)
		}
		return err
	}
	return nil
}

// pollLoop — цикл polling для fallback.
func (p *Processor) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	// Первый poll сразу: подхватываем сообщения, пришедшие пока процессор был выключен
	p.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

// poll обрабатывает одну пачку необработанных сообщений.
// Диалоги обрабатываются параллельно, сообщения одного диалога — по порядку.
func (p *Processor) poll(ctx context.Context) {
	msgs, err := p.inbox.ListUnprocessedInbound(ctx, p.batchSize)
	if err != nil {
		p.logger.Error("failed to list unprocessed messages", "error", err)
		return
	}
	if len(msgs) == 0 {
		return
	}

	p.logger.Debug("poll found unprocessed messages", "count", len(msgs))

	var order []uuid.UUID
	byConv := make(map[uuid.UUID][]uuid.UUID)
	for _, m := range msgs {
		if _, ok := byConv[m.ConversationID]; !ok {
			order = append(order, m.ConversationID)
		}
		byConv[m.ConversationID] = append(byConv[m.ConversationID], m.ID)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for _, convID := range order {
		convID := convID
		ids := byConv[convID]
		g.Go(func() error {
			for _, id := range ids {
				if gctx.Err() != nil {
					return nil
				}
				if err := p.HandleInbound(gctx, id); err != nil {
					p.logger.Error("failed to process message from poll",
						"message_id", id,
						"conversation_id", convID,
						"error", err,
					)
					// Порядок внутри диалога важнее: остальные подождут следующего poll.
					return nil
				}
			}
			return nil
		})
	}

	_ = g.Wait()
}
