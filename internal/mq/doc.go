// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — соединение с автоматическим переподключением
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация событий
//   - consumer.go   — потребление событий с ack/nack
//
// Типы сообщений:
//   - inbound.received — входящее сообщение клиента сохранено и ждёт бота
//
// Exchanges:
//   - botflow.messages — события сообщений
//   - botflow.dlq      — dead letter queue
package mq
