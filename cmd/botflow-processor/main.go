// Botflow Processor — обрабатывает входящие сообщения ботами.
//
// Processor:
//   - Получает уведомления о входящих сообщениях из RabbitMQ
//   - Подбирает необработанные сообщения polling'ом (страховка без брокера)
//   - Выбирает ответ: триггер, шаг сценария или ответ по умолчанию
//   - Отправляет ответы в WhatsApp и пишет их в журнал
//
// Реплики процессора масштабируются горизонтально; диалог блокируется
// через Redis, если он настроен.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/shaiso/Botflow/internal/channel"
	"github.com/shaiso/Botflow/internal/config"
	"github.com/shaiso/Botflow/internal/executor"
	"github.com/shaiso/Botflow/internal/mq"
	"github.com/shaiso/Botflow/internal/outbound"
	"github.com/shaiso/Botflow/internal/processor"
	"github.com/shaiso/Botflow/internal/repo"
	"github.com/shaiso/Botflow/internal/state"
	"github.com/shaiso/Botflow/internal/telemetry"
)

func main() {
	cfg, err := config.Load(os.Getenv("BOTFLOW_CONFIG"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger := telemetry.SetupLogger(cfg.Log.Level, cfg.Log.Format)
	logger.Info("starting botflow-processor")

	if err := run(cfg, logger); err != nil {
		logger.Error("processor failed", "error", err)
		os.Exit(1)
	}
	logger.Info("botflow-processor stopped")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := repo.NewPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	if err := repo.Migrate(ctx, pool); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	logger.Info("database connected")

	// Блокировки диалогов
	var locker state.Locker = state.NewKeyedLocker()
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("parse redis url: %w", err)
		}
		client := redis.NewClient(opts)
		defer client.Close()

		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		locker = state.NewRedisLocker(client, state.RedisLockerConfig{TTL: cfg.Processor.LockTTL})
		logger.Info("redis locker enabled")
	} else {
		logger.Warn("redis not configured, conversation locks are local to this replica")
	}

	// Канал отправки
	var sender outbound.Sender
	if cfg.HasWhatsApp() {
		sender = channel.NewWhatsApp(channel.WhatsAppConfig{
			BaseURL:       cfg.WhatsApp.BaseURL,
			PhoneNumberID: cfg.WhatsApp.PhoneNumberID,
			Token:         cfg.WhatsApp.Token,
			Timeout:       cfg.WhatsApp.Timeout,
			MaxAttempts:   cfg.WhatsApp.MaxAttempts,
			Logger:        logger,
		})
	} else {
		logger.Warn("whatsapp not configured, replies are printed to stdout")
		sender = channel.NewConsole(os.Stdout)
	}

	// RabbitMQ (опционально)
	var mqConn *mq.Connection
	if cfg.RabbitMQ.URL != "" {
		mqConn, err = mq.Dial(mq.ConnectionConfig{URL: cfg.RabbitMQ.URL, Name: "botflow-processor", Logger: logger})
		if err != nil {
			logger.Warn("RabbitMQ not available, running in polling-only mode", "error", err)
			mqConn = nil
		} else {
			defer mqConn.Close()
			if err := mq.SetupTopology(ctx, mqConn); err != nil {
				logger.Warn("failed to setup topology", "error", err)
			}
		}
	}

	// Создаём репозитории
	conversations := repo.NewConversationRepo(pool)
	messages := repo.NewMessageRepo(pool)
	dispatcher := outbound.NewDispatcher(sender, messages, logger)

	p := processor.New(processor.Config{
		Bots:          repo.NewBotRepo(pool),
		Triggers:      repo.NewTriggerRepo(pool),
		Scenarios:     repo.NewScenarioRepo(pool),
		Conversations: conversations,
		Inbox:         messages,
		Flows: executor.New(executor.Config{
			Store:         state.NewPostgresStore(pool),
			Locker:        locker,
			CRM:           repo.NewCRMRepo(pool),
			Conversations: conversations,
			Outbound:      dispatcher,
			MaxSteps:      cfg.Processor.MaxSteps,
			Logger:        logger,
		}),
		Outbound:     dispatcher,
		Conn:         mqConn,
		PollInterval: cfg.Processor.PollInterval,
		BatchSize:    cfg.Processor.BatchSize,
		Prefetch:     cfg.Processor.Prefetch,
		Concurrency:  cfg.Processor.Concurrency,
		Logger:       logger,
	})

	if err := p.Start(ctx); err != nil {
		return fmt.Errorf("start processor: %w", err)
	}

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if p.IsStopped() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	addr := ":" + strconv.Itoa(cfg.Processor.Port)
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		// Ожидаем сигнал завершения или падение HTTP сервера
		<-gctx.Done()

		p.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
