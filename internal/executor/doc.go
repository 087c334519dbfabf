// Package executor выполняет сценарий бота для одного входящего сообщения.
//
// Executor — явный цикл по графу сценария:
//   - Берёт блокировку диалога и загружает его состояние
//   - Начинает с welcome узла или продолжает с текущего
//   - Проходит узлы, не требующие ответа клиента (welcome, message,
//     condition, action), не более MaxSteps шагов
//   - Останавливается на question/buttons в ожидании ответа
//
// Перед любым внешним эффектом узла (CRM, ответ клиенту) позиция
// сохраняется в хранилище с проверкой версии. Ответы клиенту
// отправляются после снятия блокировки, в порядке выполнения узлов.
package executor
