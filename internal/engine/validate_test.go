package engine

import (
	"errors"
	"testing"
)

func TestValidate_Valid(t *testing.T) {
	g, _ := ParseGraph([]byte(branchingGraph))
	if err := Validate(g); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidate_CycleAllowed(t *testing.T) {
	g := NewGraph(Definition{
		Nodes: []RawNode{
			{ID: "w", Type: NodeWelcome, Data: map[string]any{"message": "hi"}},
			{ID: "q", Type: NodeQuestion, Data: map[string]any{"question": "again?"}},
		},
		Edges: []Edge{{Source: "w", Target: "q"}, {Source: "q", Target: "q"}},
	})
	if err := Validate(g); err != nil {
		t.Errorf("loops through waiting nodes are valid: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	welcome := RawNode{ID: "w", Type: NodeWelcome, Data: map[string]any{"message": "hi"}}
	msg := func(id string) RawNode {
		return RawNode{ID: id, Type: NodeMessage, Data: map[string]any{"message": id}}
	}

	tests := []struct {
		name string
		def  Definition
		want error
	}{
		{"empty", Definition{}, ErrInvalidGraph},
		{"duplicate id", Definition{Nodes: []RawNode{welcome, welcome}}, ErrInvalidGraph},
		{"empty id", Definition{Nodes: []RawNode{welcome, {Type: NodeMessage}}}, ErrInvalidGraph},
		{"no welcome", Definition{Nodes: []RawNode{msg("m")}}, ErrNoEntryNode},
		{"dangling target", Definition{
			Nodes: []RawNode{welcome},
			Edges: []Edge{{Source: "w", Target: "ghost"}},
		}, ErrNodeNotFound},
		{"dangling source", Definition{
			Nodes: []RawNode{welcome},
			Edges: []Edge{{Source: "ghost", Target: "w"}},
		}, ErrNodeNotFound},
		{"linear fan-out", Definition{
			Nodes: []RawNode{welcome, msg("a"), msg("b")},
			Edges: []Edge{{Source: "w", Target: "a"}, {Source: "w", Target: "b"}},
		}, ErrInvalidGraph},
		{"bad condition label", Definition{
			Nodes: []RawNode{welcome, {ID: "c", Type: NodeCondition}, msg("a")},
			Edges: []Edge{{Source: "w", Target: "c"}, {Source: "c", Target: "a", Label: "maybe"}},
		}, ErrInvalidGraph},
		{"duplicate condition label", Definition{
			Nodes: []RawNode{welcome, {ID: "c", Type: NodeCondition}, msg("a"), msg("b")},
			Edges: []Edge{
				{Source: "c", Target: "a", Label: "true"},
				{Source: "c", Target: "b", Label: "true"},
			},
		}, ErrInvalidGraph},
		{"two entries", Definition{Nodes: []RawNode{
			{ID: "w1", Type: NodeWelcome, Entry: true, Data: map[string]any{"message": "a"}},
			{ID: "w2", Type: NodeWelcome, Entry: true, Data: map[string]any{"message": "b"}},
		}}, ErrInvalidGraph},
		{"entry on message", Definition{Nodes: []RawNode{
			welcome,
			{ID: "m", Type: NodeMessage, Entry: true, Data: map[string]any{"message": "m"}},
		}}, ErrInvalidGraph},
		{"bad node data", Definition{Nodes: []RawNode{{ID: "w", Type: NodeWelcome}}}, ErrInvalidNodeData},
		{"unknown node type", Definition{Nodes: []RawNode{welcome, {ID: "x", Type: "video"}}}, ErrUnknownNodeType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(NewGraph(tt.def))
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	g := NewGraph(Definition{
		Nodes: []RawNode{
			{ID: "w", Type: NodeWelcome},
			{ID: "q", Type: NodeQuestion},
		},
		Edges: []Edge{{Source: "w", Target: "ghost"}},
	})

	err := Validate(g)

	joined, ok := err.(interface{ Unwrap() []error })
	if !ok {
		t.Fatalf("expected joined error, got %T", err)
	}
	if n := len(joined.Unwrap()); n != 3 {
		t.Errorf("expected 3 errors, got %d: %v", n, err)
	}
}
