// Package config загружает конфигурацию сервисов Botflow.
//
// Порядок источников (каждый следующий перекрывает предыдущий):
//   - Default() — значения для локальной разработки
//   - YAML файл (botflow.yaml или путь из --config)
//   - переменные окружения BOTFLOW_*, вложенность через "__":
//     BOTFLOW_DATABASE__URL, BOTFLOW_PROCESSOR__POLL_INTERVAL=5s
//
// Перед чтением подгружается .env из текущего каталога, если он есть.
// Списки (api.cors_origins) в переменных окружения задаются через запятую.
package config
