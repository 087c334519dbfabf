package channel

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/shaiso/Botflow/internal/domain"
)

// Console печатает ответы бота вместо отправки в канал.
type Console struct {
	mu  sync.Mutex
	w   io.Writer
	seq int
}

// NewConsole создаёт Console, пишущий в w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

// SendText печатает текст.
func (c *Console) SendText(_ context.Context, _ string, text string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	fmt.Fprintf(c.w, "bot> %s\n", text)
	return fmt.Sprintf("console-%d", c.seq), nil
}

// SendButtons печатает текст и кнопки.
func (c *Console) SendButtons(_ context.Context, _ string, body string, options []domain.ButtonOption) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	titles := make([]string, len(options))
	for i, o := range options {
		titles[i] = "[" + o.Title + "]"
	}
	fmt.Fprintf(c.w, "bot> %s\n     %s\n", body, strings.Join(titles, " "))
	return fmt.Sprintf("console-%d", c.seq), nil
}
