// Botflow API — HTTP API для управления ботами, триггерами и сценариями
// и приёма входящих сообщений.
//
// Входящее сообщение сохраняется в журнал и публикуется в RabbitMQ.
// Без брокера API продолжает работать: процессор подхватит сообщения polling'ом.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Botflow/internal/api"
	"github.com/shaiso/Botflow/internal/config"
	"github.com/shaiso/Botflow/internal/mq"
	"github.com/shaiso/Botflow/internal/repo"
	"github.com/shaiso/Botflow/internal/state"
	"github.com/shaiso/Botflow/internal/telemetry"
)

var (
	startTime = time.Now()
	reqTotal  = promauto.NewCounter(prometheus.CounterOpts{
		Name: "botflow_api_http_requests_total",
		Help: "Total HTTP requests handled by botflow-api",
	})
)

func main() {
	cfg, err := config.Load(os.Getenv("BOTFLOW_CONFIG"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	// Инициализируем structured logging
	logger := telemetry.SetupLogger(cfg.Log.Level, cfg.Log.Format)
	logger.Info("starting botflow-api")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Подключаемся к базе данных
	pool, err := repo.NewPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := repo.Migrate(ctx, pool); err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database")

	// RabbitMQ (опционально)
	var publisher api.InboundPublisher
	if cfg.RabbitMQ.URL != "" {
		conn, err := mq.Dial(mq.ConnectionConfig{URL: cfg.RabbitMQ.URL, Name: "botflow-api", Logger: logger})
		if err != nil {
			logger.Warn("RabbitMQ not available, inbound messages left for polling", "error", err)
		} else {
			defer conn.Close()
			if err := mq.SetupTopology(ctx, conn); err != nil {
				logger.Warn("failed to setup topology", "error", err)
			}
			publisher = mq.NewPublisher(conn, logger)
		}
	}

	// Создаём репозитории
	crmRepo := repo.NewCRMRepo(pool)

	handler := api.NewHandler(api.Config{
		Bots:          repo.NewBotRepo(pool),
		Triggers:      repo.NewTriggerRepo(pool),
		Scenarios:     repo.NewScenarioRepo(pool),
		Conversations: repo.NewConversationRepo(pool),
		Customers:     crmRepo,
		Messages:      repo.NewMessageRepo(pool),
		States:        state.NewPostgresStore(pool),
		Publisher:     publisher,
		CORSOrigins:   cfg.API.CORSOrigins,
		Logger:        logger,
	})

	mux := http.NewServeMux()

	// Health и metrics
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime))
	})
	mux.Handle("/metrics", promhttp.Handler())

	// API маршруты
	routes := handler.Routes()
	mux.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqTotal.Inc()
		routes.ServeHTTP(w, r)
	}))

	addr := ":" + strconv.Itoa(cfg.API.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("stopped")
}
