// Package engine содержит декларативную часть бота.
//
// Включает:
//   - graph.go     — flow graph: узлы, рёбра, выбор следующего узла
//   - node.go      — закрытый набор типов узлов с типизированными данными
//   - validate.go  — строгая проверка графа при публикации версии
//   - trigger.go   — поиск триггера по ключевым словам
//   - condition.go — вычисление условий (contains, equals, regex, ...)
//   - template.go  — подстановка переменных {name} в тексты
//
// Всё в пакете — чистые функции без побочных эффектов.
// Ошибки конфигурации узла обнаруживаются лениво, при обращении к узлу.
package engine
