package engine

import (
	"errors"
	"testing"
)

func TestDecodeNode_Variants(t *testing.T) {
	tests := []struct {
		raw  RawNode
		kind NodeType
	}{
		{RawNode{ID: "w", Type: NodeWelcome, Data: map[string]any{"message": "hi"}}, NodeWelcome},
		{RawNode{ID: "m", Type: NodeMessage, Data: map[string]any{"message": "hi"}}, NodeMessage},
		{RawNode{ID: "q", Type: NodeQuestion, Data: map[string]any{"question": "?"}}, NodeQuestion},
		{RawNode{ID: "b", Type: NodeButtons, Data: map[string]any{
			"message": "pick", "buttons": []any{map[string]any{"label": "A"}},
		}}, NodeButtons},
		{RawNode{ID: "c", Type: NodeCondition}, NodeCondition},
		{RawNode{ID: "a", Type: NodeAction, Data: map[string]any{"actionType": "create_deal"}}, NodeAction},
	}

	for _, tt := range tests {
		node, err := DecodeNode(tt.raw)
		if err != nil {
			t.Errorf("%s: unexpected error: %v", tt.raw.ID, err)
			continue
		}
		if node.Kind() != tt.kind || node.NodeID() != tt.raw.ID {
			t.Errorf("%s: got kind %s id %s", tt.raw.ID, node.Kind(), node.NodeID())
		}
	}
}

func TestDecodeNode_MissingRequired(t *testing.T) {
	tests := []RawNode{
		{ID: "w", Type: NodeWelcome},
		{ID: "m", Type: NodeMessage, Data: map[string]any{"message": "  "}},
		{ID: "q", Type: NodeQuestion, Data: map[string]any{"saveAs": "x"}},
		{ID: "b", Type: NodeButtons, Data: map[string]any{"message": "pick"}},
		{ID: "a1", Type: NodeAction, Data: map[string]any{"actionType": "save_to_crm"}},
		{ID: "a2", Type: NodeAction, Data: map[string]any{"actionType": "assign_tag"}},
		{ID: "a3", Type: NodeAction, Data: map[string]any{"actionType": "launch_rocket"}},
		{ID: "w2", Type: NodeWelcome, Data: map[string]any{"message": []any{1, 2}}},
	}

	for _, raw := range tests {
		_, err := DecodeNode(raw)
		if !errors.Is(err, ErrInvalidNodeData) {
			t.Errorf("%s: expected ErrInvalidNodeData, got %v", raw.ID, err)
			continue
		}
		var verr *ValidationError
		if !errors.As(err, &verr) || verr.NodeID != raw.ID {
			t.Errorf("%s: expected ValidationError with node id, got %v", raw.ID, err)
		}
	}
}

func TestDecodeNode_UnknownType(t *testing.T) {
	_, err := DecodeNode(RawNode{ID: "x", Type: "carousel"})
	if !errors.Is(err, ErrUnknownNodeType) {
		t.Errorf("expected ErrUnknownNodeType, got %v", err)
	}
}

func TestDecodeNode_Defaults(t *testing.T) {
	node, err := DecodeNode(RawNode{ID: "c", Type: NodeCondition, Data: map[string]any{"value": "x"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if node.(ConditionNode).ConditionType != ConditionContains {
		t.Error("condition type should default to contains")
	}

	node, err = DecodeNode(RawNode{ID: "a", Type: NodeAction, Data: map[string]any{"field": "email"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if node.(ActionNode).ActionType != ActionSaveToCRM {
		t.Error("action type should default to save_to_crm")
	}
}

func TestButtonsNode_Options(t *testing.T) {
	node, err := DecodeNode(RawNode{ID: "b", Type: NodeButtons, Data: map[string]any{
		"message": "pick",
		"buttons": []any{
			map[string]any{"label": "Yes"},
			map[string]any{"id": "custom"},
			"Maybe",
			map[string]any{"label": "Fourth"},
		},
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	opts := node.(ButtonsNode).Options()
	if len(opts) != 3 {
		t.Fatalf("expected 3 options, got %d", len(opts))
	}
	if opts[0].ID != "0" || opts[0].Title != "Yes" {
		t.Errorf("unexpected first option: %+v", opts[0])
	}
	if opts[1].ID != "custom" || opts[1].Title != "Option 1" {
		t.Errorf("unexpected second option: %+v", opts[1])
	}
	if opts[2].Title != "Maybe" {
		t.Errorf("unexpected third option: %+v", opts[2])
	}
}

func TestActionNode_HandoffMessage(t *testing.T) {
	if (ActionNode{}).HandoffMessage() != DefaultHandoffMessage {
		t.Error("expected default handoff message")
	}
	if (ActionNode{Message: "Wait"}).HandoffMessage() != "Wait" {
		t.Error("expected custom handoff message")
	}
}
