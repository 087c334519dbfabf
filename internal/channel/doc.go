// Package channel содержит клиентов каналов обмена сообщениями.
//
// Включает:
//   - whatsapp.go — WhatsApp Cloud API (текст и кнопки, retry с backoff)
//   - console.go  — вывод в терминал для симуляции сценариев
package channel
