package state

import "errors"

var (
	// ErrVersionConflict — состояние изменили после чтения.
	ErrVersionConflict = errors.New("conversation state version conflict")

	// ErrLockTimeout — не удалось захватить блокировку диалога.
	ErrLockTimeout = errors.New("conversation lock timeout")
)
