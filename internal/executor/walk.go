package executor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shaiso/Botflow/internal/domain"
	"github.com/shaiso/Botflow/internal/engine"
	"github.com/shaiso/Botflow/internal/outbound"
	"github.com/shaiso/Botflow/internal/telemetry"
)

// step — результат обработки одного узла.
type step struct {
	next string // следующий узел; пусто — конец сценария
	stop bool   // ждём ответа клиента или сценарий уже завершён
}

// walk — один проход по графу под блокировкой диалога.
type walk struct {
	exec   *Executor
	conv   domain.Conversation
	msg    domain.IncomingMessage
	graph  *engine.Graph
	logger *slog.Logger

	state    domain.ConversationState
	executed int
	commits  int
	replies  []outbound.Reply
}

func (w *walk) run(ctx context.Context) error {
	if w.state.Ended {
		w.logger.Debug("flow already ended")
		return nil
	}

	cur := w.state.CurrentNodeID
	resume := cur != ""

	if resume {
		if _, ok := w.graph.Raw(cur); !ok {
			// Сценарий опубликован заново, узла больше нет.
			w.logger.Warn("current node missing in active scenario, restarting", "node_id", cur)
			resume = false
			cur = ""
		}
	}

	if !resume {
		entry, ok := w.graph.Entry()
		if !ok {
			w.logger.Debug("scenario has no welcome node")
			return nil
		}
		cur = entry
	}

	for steps := 0; ; steps++ {
		if steps >= w.exec.maxSteps {
			return fmt.Errorf("%w: %d steps, stopped before %q", ErrStepLimit, w.exec.maxSteps, cur)
		}

		node, err := w.graph.Node(cur)
		if err != nil {
			return fmt.Errorf("node %q: %w", cur, err)
		}

		var s step
		if resume {
			resume = false
			s, err = w.respond(ctx, node)
		} else {
			s, err = w.enter(ctx, node)
		}
		if err != nil {
			return err
		}

		if s.stop {
			return nil
		}
		if s.next == "" {
			return w.finish(ctx)
		}
		cur = s.next
	}
}

// enter выполняет вход в узел: сохраняет позицию, затем эффекты.
func (w *walk) enter(ctx context.Context, node engine.Node) (step, error) {
	if err := w.commit(ctx, w.state.AtNode(node.NodeID())); err != nil {
		return step{}, err
	}
	w.executed++
	telemetry.NodesExecuted.WithLabelValues(string(node.Kind())).Inc()

	switch n := node.(type) {
	case engine.WelcomeNode:
		w.say(n.ID, n.Message)
		return w.advance(n.ID), nil

	case engine.MessageNode:
		w.say(n.ID, n.Message)
		return w.advance(n.ID), nil

	case engine.QuestionNode:
		w.say(n.ID, n.Question)
		return step{stop: true}, nil

	case engine.ButtonsNode:
		w.replies = append(w.replies, outbound.Reply{
			Text:    engine.Render(n.Message, w.state.Variables),
			Options: n.Options(),
			NodeID:  n.ID,
		})
		return step{stop: true}, nil

	case engine.ConditionNode:
		return w.branch(n), nil

	case engine.ActionNode:
		return w.act(ctx, n)

	default:
		return step{}, fmt.Errorf("%w: %T", engine.ErrUnknownNodeType, node)
	}
}

// respond обрабатывает сообщение как ответ на текущий узел.
func (w *walk) respond(ctx context.Context, node engine.Node) (step, error) {
	switch n := node.(type) {
	case engine.QuestionNode:
		if err := w.capture(ctx, n.SaveAs); err != nil {
			return step{}, err
		}
		w.executed++
		return w.advance(n.ID), nil

	case engine.ButtonsNode:
		if err := w.capture(ctx, n.SaveAs); err != nil {
			return step{}, err
		}
		w.executed++
		return w.advance(n.ID), nil

	default:
		// Узлы без ожидания ответа: позиция сохранена, но выполнение
		// прервалось до перехода. Выполняем узел заново.
		return w.enter(ctx, node)
	}
}

// capture сохраняет ответ клиента в переменную, не сдвигая позицию,
// затем пишет его в поле CRM. При сбое CRM диалог остаётся на том же
// узле: следующее сообщение снова считается ответом на него.
func (w *walk) capture(ctx context.Context, saveAs string) error {
	if saveAs == "" {
		return nil
	}
	if err := w.commit(ctx, w.state.WithVariable(saveAs, w.msg.Content)); err != nil {
		return err
	}
	if err := w.exec.crm.WriteCustomerField(ctx, w.conv.CustomerID, saveAs, w.msg.Content); err != nil {
		return fmt.Errorf("%w: save %q: %v", ErrActionFailed, saveAs, err)
	}
	return nil
}

func (w *walk) branch(n engine.ConditionNode) step {
	result, err := engine.Check(n.ConditionType, n.Value, w.msg.Content)
	if err != nil {
		w.logger.Warn("condition evaluation failed",
			"node_id", n.ID,
			"condition_type", n.ConditionType,
			"error", err,
		)
	}

	next, ok := w.graph.Branch(n.ID, result)
	if !ok {
		w.logger.Debug("no branch for condition result", "node_id", n.ID, "result", result)
	}
	return step{next: next}
}

func (w *walk) act(ctx context.Context, n engine.ActionNode) (step, error) {
	crm := w.exec.crm
	customerID := w.conv.CustomerID

	var err error
	switch n.ActionType {
	case engine.ActionSaveToCRM:
		if strings.TrimSpace(w.msg.Content) != "" {
			w.state = w.state.WithVariable(n.Field, w.msg.Content)
			err = crm.WriteCustomerField(ctx, customerID, n.Field, w.msg.Content)
		}

	case engine.ActionCreateDeal:
		err = crm.CreateDeal(ctx, customerID, domain.DealTitle(w.conv.CustomerName))

	case engine.ActionAssignTag:
		err = crm.AddCustomerTag(ctx, customerID, n.Tag)

	case engine.ActionHumanTakeover:
		if err := w.finish(ctx); err != nil {
			return step{}, err
		}
		w.say(n.ID, n.HandoffMessage())
		w.logger.Info("conversation handed off to operator", "node_id", n.ID)
		return step{stop: true}, nil

	default:
		return step{}, fmt.Errorf("%w: unknown action %q", engine.ErrInvalidNodeData, n.ActionType)
	}

	if err != nil {
		return step{}, fmt.Errorf("%w: %s at %q: %v", ErrActionFailed, n.ActionType, n.ID, err)
	}
	return w.advance(n.ID), nil
}

// finish завершает сценарий и выключает бота в диалоге.
func (w *walk) finish(ctx context.Context) error {
	if err := w.commit(ctx, w.state.End()); err != nil {
		return err
	}
	if err := w.exec.conversations.SetBotActive(ctx, w.conv.ID, false); err != nil {
		return fmt.Errorf("%w: deactivate bot: %v", ErrActionFailed, err)
	}
	w.logger.Debug("flow ended")
	return nil
}

func (w *walk) advance(nodeID string) step {
	next, _ := w.graph.Next(nodeID)
	return step{next: next}
}

func (w *walk) say(nodeID, text string) {
	w.replies = append(w.replies, outbound.Reply{
		Text:   engine.Render(text, w.state.Variables),
		NodeID: nodeID,
	})
}

// commit сохраняет состояние с проверкой версии.
func (w *walk) commit(ctx context.Context, next domain.ConversationState) error {
	saved, err := w.exec.store.Save(ctx, next)
	if err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	w.state = saved
	w.commits++
	return nil
}
