package engine

import "regexp"

var placeholder = regexp.MustCompile(`\{\s*([A-Za-z_][A-Za-z0-9_.\-]*)\s*\}`)

// Render подставляет переменные диалога в текст узла: "Спасибо, {name}!".
// Неизвестные плейсхолдеры остаются как есть.
func Render(text string, vars map[string]string) string {
	if len(vars) == 0 {
		return text
	}
	return placeholder.ReplaceAllStringFunc(text, func(m string) string {
		key := placeholder.FindStringSubmatch(m)[1]
		if v, ok := vars[key]; ok {
			return v
		}
		return m
	})
}
