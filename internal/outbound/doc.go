// Package outbound доставляет ответы бота клиенту.
//
// Каждый ответ сначала записывается в журнал сообщений (pending),
// затем уходит в канал, и запись обновляется до sent или failed.
// Повторы отправки — ответственность канала (см. пакет channel).
package outbound
