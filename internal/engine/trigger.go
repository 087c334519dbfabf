package engine

import (
	"cmp"
	"slices"
	"strings"

	"github.com/shaiso/Botflow/internal/domain"
)

// MatchTrigger ищет первый подходящий активный триггер.
//
// Триггеры проверяются по возрастанию Priority, при равенстве — в порядке
// входного списка. Ключевое слово совпадает, если оно содержится во входе,
// вход содержится в нём, или они равны. Побеждает первое совпадение,
// а не лучшее.
//
// Пустой вход и пустые ключевые слова не совпадают ни с чем.
func MatchTrigger(triggers []domain.Trigger, input string) (domain.Trigger, bool) {
	text := normalize(input)
	if text == "" {
		return domain.Trigger{}, false
	}

	for _, t := range Prioritize(triggers) {
		for _, kw := range t.Keywords {
			if keywordMatches(normalize(kw), text) {
				return t, true
			}
		}
	}

	return domain.Trigger{}, false
}

// Prioritize возвращает активные триггеры, устойчиво отсортированные по Priority.
// Входной срез не меняется.
func Prioritize(triggers []domain.Trigger) []domain.Trigger {
	active := make([]domain.Trigger, 0, len(triggers))
	for _, t := range triggers {
		if t.IsActive {
			active = append(active, t)
		}
	}
	slices.SortStableFunc(active, func(a, b domain.Trigger) int {
		return cmp.Compare(a.Priority, b.Priority)
	})
	return active
}

func keywordMatches(keyword, text string) bool {
	if keyword == "" {
		return false
	}
	return keyword == text ||
		strings.Contains(text, keyword) ||
		strings.Contains(keyword, text)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
