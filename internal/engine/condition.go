package engine

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// ConditionType — вид проверки condition узла.
type ConditionType string

const (
	ConditionContains   ConditionType = "contains"
	ConditionEquals     ConditionType = "equals"
	ConditionStartsWith ConditionType = "starts_with"
	ConditionEndsWith   ConditionType = "ends_with"
	ConditionRegex      ConditionType = "regex"
)

// patterns кэширует скомпилированные выражения по исходному тексту.
var patterns sync.Map

// Evaluate проверяет условие. Сравнение регистронезависимое,
// обе строки обрезаются по краям. Любая ошибка даёт false.
func Evaluate(condType ConditionType, value, input string) bool {
	ok, _ := Check(condType, value, input)
	return ok
}

// Check — как Evaluate, но сообщает причину отказа
// (неизвестный тип, невалидный regex), чтобы вызывающий мог её залогировать.
func Check(condType ConditionType, value, input string) (bool, error) {
	input = strings.ToLower(strings.TrimSpace(input))
	pattern := strings.TrimSpace(value)
	value = strings.ToLower(pattern)

	switch condType {
	case ConditionContains:
		return strings.Contains(input, value), nil
	case ConditionEquals:
		return input == value, nil
	case ConditionStartsWith:
		return strings.HasPrefix(input, value), nil
	case ConditionEndsWith:
		return strings.HasSuffix(input, value), nil
	case ConditionRegex:
		re, err := compilePattern(pattern)
		if err != nil {
			return false, err
		}
		return re.MatchString(input), nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownCondition, condType)
	}
}

// compilePattern компилирует выражение без учёта регистра.
// Сам шаблон не переводится в нижний регистр: иначе \D, \S, \W меняют смысл.
func compilePattern(pattern string) (*regexp.Regexp, error) {
	if re, ok := patterns.Load(pattern); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPattern, err)
	}
	patterns.Store(pattern, re)
	return re, nil
}
