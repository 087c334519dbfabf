package executor

import "errors"

// Ошибки выполнения сценария.
var (
	// ErrStepLimit — за одно сообщение пройдено больше MaxSteps узлов.
	ErrStepLimit = errors.New("flow step limit exceeded")

	// ErrConcurrentUpdate — состояние диалога изменено параллельной обработкой.
	ErrConcurrentUpdate = errors.New("concurrent conversation update")

	// ErrActionFailed — CRM или диалоговое действие завершилось ошибкой.
	ErrActionFailed = errors.New("flow action failed")
)
