package engine

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/shaiso/Botflow/internal/domain"
)

// Node — закрытый набор узлов сценария.
//
// Реализации: WelcomeNode, MessageNode, QuestionNode, ButtonsNode,
// ConditionNode, ActionNode. Обработка идёт через type switch по значению.
type Node interface {
	NodeID() string
	Kind() NodeType
	sealed()
}

// WelcomeNode — стартовое приветствие. Отправляет текст и идёт дальше.
type WelcomeNode struct {
	ID      string `mapstructure:"-"`
	Message string `mapstructure:"message"`
}

// MessageNode — отправка текста и переход дальше.
type MessageNode struct {
	ID      string `mapstructure:"-"`
	Message string `mapstructure:"message"`
}

// QuestionNode — вопрос. Ждёт ответа и сохраняет его в переменную SaveAs.
type QuestionNode struct {
	ID       string `mapstructure:"-"`
	Question string `mapstructure:"question"`
	SaveAs   string `mapstructure:"saveAs"`
}

// Button — кнопка в data узла.
type Button struct {
	ID    string `mapstructure:"id"`
	Label string `mapstructure:"label"`
}

// ButtonsNode — интерактивное сообщение с кнопками. Ждёт нажатия или текста.
type ButtonsNode struct {
	ID      string   `mapstructure:"-"`
	Message string   `mapstructure:"message"`
	Buttons []Button `mapstructure:"buttons"`

	// SaveAs — необязательная переменная для выбранного ответа.
	SaveAs string `mapstructure:"saveAs"`
}

// Options возвращает не больше domain.MaxButtons кнопок для отправки.
func (n ButtonsNode) Options() []domain.ButtonOption {
	count := min(len(n.Buttons), domain.MaxButtons)
	opts := make([]domain.ButtonOption, 0, count)
	for i := 0; i < count; i++ {
		b := n.Buttons[i]
		id := b.ID
		if id == "" {
			id = strconv.Itoa(i)
		}
		title := b.Label
		if title == "" {
			title = "Option " + strconv.Itoa(i)
		}
		opts = append(opts, domain.ButtonOption{ID: id, Title: title})
	}
	return opts
}

// ConditionNode — ветвление по тексту входящего сообщения.
type ConditionNode struct {
	ID            string        `mapstructure:"-"`
	ConditionType ConditionType `mapstructure:"conditionType"`
	Value         string        `mapstructure:"value"`
}

// ActionType — действие action узла.
type ActionType string

const (
	ActionSaveToCRM     ActionType = "save_to_crm"
	ActionCreateDeal    ActionType = "create_deal"
	ActionAssignTag     ActionType = "assign_tag"
	ActionHumanTakeover ActionType = "human_takeover"
)

// DefaultHandoffMessage отправляется клиенту при передаче оператору.
const DefaultHandoffMessage = "Соединяю вас с оператором..."

// ActionNode — побочный эффект в CRM или передача диалога оператору.
type ActionNode struct {
	ID         string     `mapstructure:"-"`
	ActionType ActionType `mapstructure:"actionType"`

	// Field — поле клиента для save_to_crm.
	Field string `mapstructure:"field"`

	// Tag — тег для assign_tag.
	Tag string `mapstructure:"tag"`

	// Message — текст для human_takeover (по умолчанию DefaultHandoffMessage).
	Message string `mapstructure:"message"`
}

// HandoffMessage возвращает текст передачи оператору.
func (n ActionNode) HandoffMessage() string {
	if strings.TrimSpace(n.Message) == "" {
		return DefaultHandoffMessage
	}
	return n.Message
}

func (n WelcomeNode) NodeID() string   { return n.ID }
func (n MessageNode) NodeID() string   { return n.ID }
func (n QuestionNode) NodeID() string  { return n.ID }
func (n ButtonsNode) NodeID() string   { return n.ID }
func (n ConditionNode) NodeID() string { return n.ID }
func (n ActionNode) NodeID() string    { return n.ID }

func (WelcomeNode) Kind() NodeType   { return NodeWelcome }
func (MessageNode) Kind() NodeType   { return NodeMessage }
func (QuestionNode) Kind() NodeType  { return NodeQuestion }
func (ButtonsNode) Kind() NodeType   { return NodeButtons }
func (ConditionNode) Kind() NodeType { return NodeCondition }
func (ActionNode) Kind() NodeType    { return NodeAction }

func (WelcomeNode) sealed()   {}
func (MessageNode) sealed()   {}
func (QuestionNode) sealed()  {}
func (ButtonsNode) sealed()   {}
func (ConditionNode) sealed() {}
func (ActionNode) sealed()    {}

// DecodeNode разбирает data узла в типизированную структуру
// и проверяет обязательные поля.
func DecodeNode(raw RawNode) (Node, error) {
	switch raw.Type {
	case NodeWelcome:
		n := WelcomeNode{ID: raw.ID}
		if err := decodeData(raw, &n); err != nil {
			return nil, err
		}
		if err := require(raw.ID, "message", n.Message); err != nil {
			return nil, err
		}
		return n, nil

	case NodeMessage:
		n := MessageNode{ID: raw.ID}
		if err := decodeData(raw, &n); err != nil {
			return nil, err
		}
		if err := require(raw.ID, "message", n.Message); err != nil {
			return nil, err
		}
		return n, nil

	case NodeQuestion:
		n := QuestionNode{ID: raw.ID}
		if err := decodeData(raw, &n); err != nil {
			return nil, err
		}
		if err := require(raw.ID, "question", n.Question); err != nil {
			return nil, err
		}
		return n, nil

	case NodeButtons:
		n := ButtonsNode{ID: raw.ID}
		if err := decodeData(raw, &n); err != nil {
			return nil, err
		}
		if err := require(raw.ID, "message", n.Message); err != nil {
			return nil, err
		}
		if len(n.Buttons) == 0 {
			return nil, NewValidationError(raw.ID, "buttons", "buttons node has no buttons", ErrInvalidNodeData)
		}
		return n, nil

	case NodeCondition:
		n := ConditionNode{ID: raw.ID, ConditionType: ConditionContains}
		if err := decodeData(raw, &n); err != nil {
			return nil, err
		}
		if n.ConditionType == "" {
			n.ConditionType = ConditionContains
		}
		return n, nil

	case NodeAction:
		n := ActionNode{ID: raw.ID, ActionType: ActionSaveToCRM}
		if err := decodeData(raw, &n); err != nil {
			return nil, err
		}
		if err := validateAction(n); err != nil {
			return nil, err
		}
		return n, nil

	case "":
		return nil, NewValidationError(raw.ID, "type", "node has empty type", ErrUnknownNodeType)

	default:
		return nil, NewValidationError(raw.ID, "type",
			fmt.Sprintf("unknown node type: %s", raw.Type), ErrUnknownNodeType)
	}
}

func validateAction(n ActionNode) error {
	switch n.ActionType {
	case ActionSaveToCRM:
		return require(n.ID, "field", n.Field)
	case ActionAssignTag:
		return require(n.ID, "tag", n.Tag)
	case ActionCreateDeal, ActionHumanTakeover:
		return nil
	case "":
		return NewValidationError(n.ID, "actionType", "action node has empty actionType", ErrInvalidNodeData)
	default:
		return NewValidationError(n.ID, "actionType",
			fmt.Sprintf("unknown action type: %s", n.ActionType), ErrInvalidNodeData)
	}
}

func decodeData(raw RawNode, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.DecodeHookFuncType(buttonLabelHook),
	})
	if err != nil {
		return fmt.Errorf("new decoder: %w", err)
	}
	if err := dec.Decode(raw.Data); err != nil {
		return NewValidationError(raw.ID, "data", err.Error(), ErrInvalidNodeData)
	}
	return nil
}

// buttonLabelHook позволяет задавать кнопки строками: buttons: ["Да", "Нет"].
func buttonLabelHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() == reflect.String && to == reflect.TypeOf(Button{}) {
		return map[string]any{"label": data}, nil
	}
	return data, nil
}

func require(nodeID, field, value string) error {
	if strings.TrimSpace(value) == "" {
		return NewValidationError(nodeID, field,
			fmt.Sprintf("data.%s is required", field), ErrInvalidNodeData)
	}
	return nil
}
