package engine

import (
	"errors"
	"fmt"
)

// Validate строго проверяет граф перед публикацией новой версии.
//
// Проверяется:
//   - граф не пустой, ID узлов не пустые и уникальны
//   - data каждого узла разбирается и содержит обязательные поля
//   - рёбра ссылаются на существующие узлы
//   - у линейного узла не больше одного исходящего ребра
//   - у condition узла метки только "true"/"false"/пусто, каждая не больше раза
//   - есть welcome узел, пометка entry не больше чем у одного и только у welcome
//
// Выполнение сценария не зависит от Validate: ошибки конфигурации
// всё равно обнаруживаются лениво. Возвращает все найденные ошибки через errors.Join.
func Validate(g *Graph) error {
	def := g.Definition()
	if len(def.Nodes) == 0 {
		return NewValidationError("", "nodes", "flow graph has no nodes", ErrInvalidGraph)
	}

	var errs []error
	seen := make(map[string]bool, len(def.Nodes))
	entries := 0

	for _, raw := range def.Nodes {
		if raw.ID == "" {
			errs = append(errs, NewValidationError("", "id", "node has empty ID", ErrInvalidGraph))
			continue
		}
		if seen[raw.ID] {
			errs = append(errs, NewValidationError(raw.ID, "id",
				fmt.Sprintf("duplicate node ID: %s", raw.ID), ErrInvalidGraph))
			continue
		}
		seen[raw.ID] = true

		if _, err := DecodeNode(raw); err != nil {
			errs = append(errs, err)
		}

		if raw.Entry {
			entries++
			if raw.Type != NodeWelcome {
				errs = append(errs, NewValidationError(raw.ID, "entry",
					"only a welcome node can be the entry point", ErrInvalidGraph))
			}
		}
	}

	if entries > 1 {
		errs = append(errs, NewValidationError("", "entry",
			fmt.Sprintf("%d nodes marked as entry, at most one allowed", entries), ErrInvalidGraph))
	}
	if _, ok := g.Entry(); !ok {
		errs = append(errs, NewValidationError("", "nodes", "flow has no welcome node", ErrNoEntryNode))
	}

	for _, e := range def.Edges {
		if !seen[e.Source] {
			errs = append(errs, NewValidationError(e.Source, "source",
				fmt.Sprintf("edge %s -> %s: unknown source", e.Source, e.Target), ErrNodeNotFound))
		}
		if !seen[e.Target] {
			errs = append(errs, NewValidationError(e.Source, "target",
				fmt.Sprintf("edge %s -> %s: unknown target", e.Source, e.Target), ErrNodeNotFound))
		}
	}

	checked := make(map[string]bool, len(seen))
	for _, raw := range def.Nodes {
		if raw.ID == "" || checked[raw.ID] {
			continue
		}
		checked[raw.ID] = true
		if err := validateFanOut(raw, g.Outgoing(raw.ID)); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func validateFanOut(raw RawNode, edges []Edge) error {
	if raw.Type != NodeCondition {
		if len(edges) > 1 {
			return NewValidationError(raw.ID, "edges",
				fmt.Sprintf("%s node has %d outgoing edges, at most one allowed", raw.Type, len(edges)),
				ErrInvalidGraph)
		}
		return nil
	}

	counts := map[string]int{}
	for _, e := range edges {
		label := normalizeLabel(e.Label)
		switch label {
		case LabelTrue, LabelFalse, "":
			counts[label]++
		default:
			return NewValidationError(raw.ID, "edges",
				fmt.Sprintf("condition edge label %q, expected true, false or empty", e.Label),
				ErrInvalidGraph)
		}
	}
	for label, n := range counts {
		if n > 1 {
			name := label
			if name == "" {
				name = "fallback"
			}
			return NewValidationError(raw.ID, "edges",
				fmt.Sprintf("condition node has %d %s edges", n, name), ErrInvalidGraph)
		}
	}
	return nil
}
