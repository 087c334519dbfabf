package engine

import (
	"math"
	"testing"

	"github.com/google/uuid"

	"github.com/shaiso/Botflow/internal/domain"
)

func trigger(priority int, response string, keywords ...string) domain.Trigger {
	return domain.Trigger{
		ID:       uuid.New(),
		Keywords: keywords,
		Response: response,
		Priority: priority,
		IsActive: true,
	}
}

func TestMatchTrigger_PriorityAndSubstring(t *testing.T) {
	// Порядок на входе обратный приоритету
	triggers := []domain.Trigger{
		trigger(2, "T2", "pricing"),
		trigger(1, "T1", "price"),
	}

	tests := []struct {
		input string
		want  string
	}{
		{"price", "T1"},                // равенство
		{"pricing", "T2"},              // "price" не подстрока "pricing"
		{"xprice", "T1"},               // keyword внутри входа
		{"pric", "T1"},                 // вход внутри keyword, T1 раньше
		{"what's your pricing", "T2"},  // только T2 совпадает
		{"  PRICE  ", "T1"},            // нормализация
		{"what's your price?", "T1"},   // keyword внутри входа
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := MatchTrigger(triggers, tt.input)
			if !ok {
				t.Fatalf("expected match for %q", tt.input)
			}
			if got.Response != tt.want {
				t.Errorf("input %q: got %s, want %s", tt.input, got.Response, tt.want)
			}
		})
	}
}

func TestMatchTrigger_FirstMatchWins(t *testing.T) {
	// Оба триггера совпадают; побеждает меньший priority, а не более точный
	triggers := []domain.Trigger{
		trigger(5, "exact", "hello world"),
		trigger(1, "loose", "hello"),
	}

	got, ok := MatchTrigger(triggers, "hello world")
	if !ok || got.Response != "loose" {
		t.Errorf("expected loose, got %+v", got)
	}
}

func TestMatchTrigger_TiesKeepDeclarationOrder(t *testing.T) {
	triggers := []domain.Trigger{
		trigger(1, "first", "hi"),
		trigger(1, "second", "hi"),
	}

	for i := 0; i < 10; i++ {
		got, _ := MatchTrigger(triggers, "hi")
		if got.Response != "first" {
			t.Fatalf("expected first, got %s", got.Response)
		}
	}
}

func TestMatchTrigger_SkipsInactiveAndEmpty(t *testing.T) {
	inactive := trigger(0, "inactive", "hi")
	inactive.IsActive = false

	triggers := []domain.Trigger{
		inactive,
		trigger(1, "blank", "", "  "),
		trigger(2, "active", "hi"),
	}

	got, ok := MatchTrigger(triggers, "hi")
	if !ok || got.Response != "active" {
		t.Errorf("expected active, got %+v", got)
	}

	if _, ok := MatchTrigger(triggers, "   "); ok {
		t.Error("empty input should not match")
	}

	if _, ok := MatchTrigger(triggers, "unrelated"); ok {
		t.Error("unrelated input should not match")
	}
}

func TestPrioritize_DoesNotMutateInput(t *testing.T) {
	triggers := []domain.Trigger{trigger(3, "c"), trigger(1, "a"), trigger(2, "b")}

	sorted := Prioritize(triggers)

	if triggers[0].Response != "c" {
		t.Error("input slice should not be reordered")
	}
	if sorted[0].Response != "a" || sorted[1].Response != "b" || sorted[2].Response != "c" {
		t.Errorf("unexpected order: %v", sorted)
	}
}

func TestPrioritize_ExtremePriorities(t *testing.T) {
	sorted := Prioritize([]domain.Trigger{
		trigger(math.MaxInt, "last"),
		trigger(math.MinInt, "first"),
		trigger(0, "middle"),
	})

	if sorted[0].Response != "first" || sorted[1].Response != "middle" || sorted[2].Response != "last" {
		t.Errorf("unexpected order: %v", sorted)
	}
}
