package engine

import "errors"

// Ошибки графа и узлов.
var (
	// ErrInvalidGraph — граф не разбирается или нарушает структурные правила.
	ErrInvalidGraph = errors.New("invalid flow graph")

	// ErrNodeNotFound — ребро или состояние ссылается на отсутствующий узел.
	ErrNodeNotFound = errors.New("node not found")

	// ErrUnknownNodeType — тип узла не поддерживается.
	ErrUnknownNodeType = errors.New("unknown node type")

	// ErrInvalidNodeData — в data узла нет обязательного поля или оно неверного типа.
	ErrInvalidNodeData = errors.New("invalid node data")

	// ErrNoEntryNode — в графе нет welcome узла.
	ErrNoEntryNode = errors.New("flow has no welcome node")
)

// Ошибки условий.
var (
	// ErrUnknownCondition — неизвестный conditionType.
	ErrUnknownCondition = errors.New("unknown condition type")

	// ErrBadPattern — regex не компилируется.
	ErrBadPattern = errors.New("bad condition pattern")
)

// ValidationError — ошибка узла с контекстом.
type ValidationError struct {
	NodeID  string // ID узла, пусто для ошибок графа целиком
	Field   string // поле data или атрибут узла
	Message string
	Err     error
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	if e.NodeID != "" {
		return "node " + e.NodeID + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError создаёт ошибку узла.
func NewValidationError(nodeID, field, message string, err error) *ValidationError {
	return &ValidationError{
		NodeID:  nodeID,
		Field:   field,
		Message: message,
		Err:     err,
	}
}
