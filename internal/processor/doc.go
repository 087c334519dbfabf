// Package processor решает, кто отвечает на входящее сообщение клиента.
//
// Processor отвечает за:
//   - Получение событий о входящих сообщениях из RabbitMQ
//   - Периодический опрос необработанных сообщений (fallback)
//   - Назначение бота диалогу
//   - Выбор ответа: триггер, сценарий или ответ по умолчанию
//
// Порядок проверки фиксирован. Выключенный в диалоге бот (передача
// оператору, конец сценария) проверяется первым, до любой логики.
package processor
