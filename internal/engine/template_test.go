package engine

import "testing"

func TestRender(t *testing.T) {
	vars := map[string]string{"name": "Alice", "order.id": "42"}

	tests := []struct {
		text string
		want string
	}{
		{"thanks {name}", "thanks Alice"},
		{"{ name }, заказ {order.id}", "Alice, заказ 42"},
		{"unknown {city}", "unknown {city}"},
		{"no placeholders", "no placeholders"},
		{"json {\"a\": 1}", "json {\"a\": 1}"},
	}

	for _, tt := range tests {
		if got := Render(tt.text, vars); got != tt.want {
			t.Errorf("Render(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestRender_NoVars(t *testing.T) {
	if got := Render("hi {name}", nil); got != "hi {name}" {
		t.Errorf("unexpected: %q", got)
	}
}
