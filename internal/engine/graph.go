package engine

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// NodeType — тип узла сценария.
type NodeType string

const (
	NodeWelcome   NodeType = "welcome"
	NodeMessage   NodeType = "message"
	NodeQuestion  NodeType = "question"
	NodeButtons   NodeType = "buttons"
	NodeCondition NodeType = "condition"
	NodeAction    NodeType = "action"
)

// Метки рёбер condition узла.
const (
	LabelTrue  = "true"
	LabelFalse = "false"
)

// RawNode — узел в том виде, в каком он хранится.
// Data разбирается в типизированный узел только при обращении (Graph.Node).
type RawNode struct {
	ID   string   `json:"id" yaml:"id"`
	Type NodeType `json:"type" yaml:"type"`

	// Entry помечает стартовый welcome узел.
	Entry bool `json:"entry,omitempty" yaml:"entry,omitempty"`

	Data map[string]any `json:"data,omitempty" yaml:"data,omitempty"`
}

// Edge — переход между узлами.
// Label используется только condition узлами ("true"/"false").
type Edge struct {
	Source string `json:"source" yaml:"source"`
	Target string `json:"target" yaml:"target"`
	Label  string `json:"label,omitempty" yaml:"label,omitempty"`
}

// Definition — сериализуемое содержимое графа.
type Definition struct {
	Nodes []RawNode `json:"nodes" yaml:"nodes"`
	Edges []Edge    `json:"edges" yaml:"edges"`
}

// Graph — неизменяемый flow graph одной версии сценария.
//
// Порядок узлов и рёбер сохраняется из определения:
// он важен для выбора стартового узла и первого подходящего ребра.
type Graph struct {
	def      Definition
	index    map[string]int
	outgoing map[string][]Edge
}

// NewGraph строит граф из определения.
// При дублировании ID побеждает первый узел; Validate сообщит о дубле.
func NewGraph(def Definition) *Graph {
	g := &Graph{
		def:      def,
		index:    make(map[string]int, len(def.Nodes)),
		outgoing: make(map[string][]Edge),
	}

	for i, n := range def.Nodes {
		if _, exists := g.index[n.ID]; !exists {
			g.index[n.ID] = i
		}
	}

	for _, e := range def.Edges {
		g.outgoing[e.Source] = append(g.outgoing[e.Source], e)
	}

	return g
}

// ParseGraph разбирает граф из JSON.
func ParseGraph(data []byte) (*Graph, error) {
	var def Definition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGraph, err)
	}
	return NewGraph(def), nil
}

// ParseGraphYAML разбирает граф из YAML (файлы сценариев для CLI).
func ParseGraphYAML(data []byte) (*Graph, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGraph, err)
	}
	return NewGraph(def), nil
}

// MarshalJSON сериализует граф в формат хранения.
func (g *Graph) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.def)
}

// Definition возвращает исходное определение графа.
func (g *Graph) Definition() Definition {
	return g.def
}

// Len возвращает количество узлов.
func (g *Graph) Len() int {
	return len(g.def.Nodes)
}

// Raw возвращает узел без разбора data.
func (g *Graph) Raw(id string) (RawNode, bool) {
	i, ok := g.index[id]
	if !ok {
		return RawNode{}, false
	}
	return g.def.Nodes[i], true
}

// Node возвращает типизированный узел.
// Отсутствующий узел — ErrNodeNotFound, некорректные data — ErrInvalidNodeData.
func (g *Graph) Node(id string) (Node, error) {
	raw, ok := g.Raw(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNodeNotFound, id)
	}
	return DecodeNode(raw)
}

// Entry возвращает стартовый узел: welcome с пометкой entry,
// иначе первый welcome в порядке объявления.
func (g *Graph) Entry() (string, bool) {
	first := ""
	for _, n := range g.def.Nodes {
		if n.Type != NodeWelcome {
			continue
		}
		if n.Entry {
			return n.ID, true
		}
		if first == "" {
			first = n.ID
		}
	}
	return first, first != ""
}

// Outgoing возвращает исходящие рёбра узла в порядке объявления.
func (g *Graph) Outgoing(id string) []Edge {
	return g.outgoing[id]
}

// Next возвращает цель первого исходящего ребра линейного узла.
func (g *Graph) Next(id string) (string, bool) {
	edges := g.outgoing[id]
	if len(edges) == 0 {
		return "", false
	}
	return edges[0].Target, true
}

// Branch выбирает переход condition узла по результату условия:
// ребро с меткой "true"/"false", иначе первое ребро без метки.
func (g *Graph) Branch(id string, result bool) (string, bool) {
	want := LabelFalse
	if result {
		want = LabelTrue
	}

	edges := g.outgoing[id]
	for _, e := range edges {
		if normalizeLabel(e.Label) == want {
			return e.Target, true
		}
	}
	for _, e := range edges {
		if normalizeLabel(e.Label) == "" {
			return e.Target, true
		}
	}
	return "", false
}

func normalizeLabel(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}
