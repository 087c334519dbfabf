package state

import (
	"context"
	"fmt"
	"sync"
)

// UnlockFunc освобождает блокировку.
type UnlockFunc func(ctx context.Context) error

// Locker сериализует обработку одного диалога.
// Lock блокируется до захвата или отмены ctx.
type Locker interface {
	Lock(ctx context.Context, key string) (UnlockFunc, error)
}

// lockEntry — семафор ключа и счётчик ссылок на него.
type lockEntry struct {
	sem  chan struct{}
	refs int
}

// KeyedLocker — блокировка по ключу внутри процесса.
// Записи удаляются, когда на ключ никто не ссылается.
type KeyedLocker struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

// NewKeyedLocker создаёт KeyedLocker.
func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{locks: make(map[string]*lockEntry)}
}

// Lock захватывает ключ.
func (l *KeyedLocker) Lock(ctx context.Context, key string) (UnlockFunc, error) {
	entry := l.acquire(key)

	select {
	case entry.sem <- struct{}{}:
	case <-ctx.Done():
		l.release(key)
		return nil, fmt.Errorf("%w: %s: %v", ErrLockTimeout, key, ctx.Err())
	}

	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			<-entry.sem
			l.release(key)
		})
		return nil
	}, nil
}

// Len возвращает число ключей с активными ссылками.
func (l *KeyedLocker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

func (l *KeyedLocker) acquire(key string) *lockEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.locks[key]
	if !ok {
		entry = &lockEntry{sem: make(chan struct{}, 1)}
		l.locks[key] = entry
	}
	entry.refs++
	return entry
}

func (l *KeyedLocker) release(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.locks[key]
	if !ok {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(l.locks, key)
	}
}
