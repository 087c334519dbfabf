package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/shaiso/Botflow/internal/channel"
	"github.com/shaiso/Botflow/internal/domain"
	"github.com/shaiso/Botflow/internal/engine"
	"github.com/shaiso/Botflow/internal/executor"
	"github.com/shaiso/Botflow/internal/outbound"
	"github.com/shaiso/Botflow/internal/processor"
	"github.com/shaiso/Botflow/internal/sandbox"
	"github.com/shaiso/Botflow/internal/state"
	"github.com/shaiso/Botflow/internal/telemetry"
)

const simulatorChannel = "simulator"

// SimulateConfig — параметры прогона сценария без сервера.
type SimulateConfig struct {
	Graph           *engine.Graph
	Triggers        []domain.Trigger
	DefaultResponse string

	// Store — состояние диалога; nil — в памяти.
	Store state.Store

	// ConversationID — продолжить диалог из Store. uuid.Nil — новый диалог.
	ConversationID uuid.UUID

	MaxSteps int
	Logger   *slog.Logger
}

// SimulateResult — итог прогона.
type SimulateResult struct {
	ConversationID uuid.UUID
	Messages       int
	Handled        int
	Customer       domain.Customer
	Deals          []domain.Deal
	State          domain.ConversationState
}

// Simulate прогоняет строки из in как сообщения клиента через тот же
// Processor, что и сервис. Ответы бота печатаются в out.
func Simulate(ctx context.Context, cfg SimulateConfig, in io.Reader, out io.Writer) (*SimulateResult, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.NopLogger()
	}
	store := cfg.Store
	if store == nil {
		store = state.NewMemoryStore()
	}

	graphData, err := graphJSON(cfg.Graph)
	if err != nil {
		return nil, err
	}

	businessID := uuid.New()
	catalog := sandbox.NewCatalog()
	bot := domain.Bot{
		ID:              uuid.New(),
		BusinessID:      businessID,
		ChannelNumberID: simulatorChannel,
		Name:            "simulator",
		DefaultResponse: cfg.DefaultResponse,
		IsActive:        true,
	}
	catalog.AddBot(bot)
	catalog.AddScenario(domain.Scenario{
		ID:       uuid.New(),
		BotID:    bot.ID,
		Name:     "simulation",
		Version:  1,
		IsActive: true,
		Graph:    graphData,
	})
	for _, t := range cfg.Triggers {
		t.BotID = bot.ID
		catalog.AddTrigger(t)
	}

	customer := domain.Customer{ID: uuid.New(), BusinessID: businessID, Phone: "+10000000000", Name: "Simulator"}
	crm := sandbox.NewCRM()
	crm.AddCustomer(customer)

	convID := cfg.ConversationID
	if convID == uuid.Nil {
		convID = uuid.New()
	}
	convs := sandbox.NewConversations()
	convs.Put(domain.Conversation{
		ID:              convID,
		BusinessID:      businessID,
		CustomerID:      customer.ID,
		CustomerPhone:   customer.Phone,
		CustomerName:    customer.Name,
		ChannelNumberID: simulatorChannel,
		IsBotActive:     true,
		Status:          domain.ConversationStatusOpen,
	})

	msgs := sandbox.NewMessages()
	dispatcher := outbound.NewDispatcher(channel.NewConsole(out), msgs, logger)

	proc := processor.New(processor.Config{
		Bots:          catalog,
		Triggers:      catalog,
		Scenarios:     catalog,
		Conversations: convs,
		Inbox:         msgs,
		Flows: executor.New(executor.Config{
			Store:         store,
			CRM:           crm,
			Conversations: convs,
			Outbound:      dispatcher,
			MaxSteps:      cfg.MaxSteps,
			Logger:        logger,
		}),
		Outbound: dispatcher,
		Logger:   logger,
	})

	res := &SimulateResult{ConversationID: convID}

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		text := strings.TrimRight(scanner.Text(), "\r")
		if ctx.Err() != nil {
			return res, ctx.Err()
		}

		msg := msgs.AddInbound(convID, text)
		wasActive := botActive(ctx, convs, convID)
		sent := len(msgs.Outbound(convID))

		fmt.Fprintf(out, "you> %s\n", text)
		if err := proc.HandleInbound(ctx, msg.ID); err != nil {
			return res, fmt.Errorf("process %q: %w", text, err)
		}
		res.Messages++

		if len(msgs.Outbound(convID)) > sent {
			res.Handled++
		} else {
			fmt.Fprintln(out, "     (no reply: left for an operator)")
		}

		if wasActive && !botActive(ctx, convs, convID) {
			fmt.Fprintln(out, "---- bot switched off for this conversation")
		}
	}
	if err := scanner.Err(); err != nil {
		return res, fmt.Errorf("read input: %w", err)
	}

	res.Customer, _ = crm.Customer(customer.ID)
	res.Deals = crm.Deals()
	st, err := store.Load(ctx, convID)
	if err != nil {
		return res, fmt.Errorf("load state: %w", err)
	}
	res.State = st
	return res, nil
}

func botActive(ctx context.Context, convs *sandbox.Conversations, id uuid.UUID) bool {
	conv, err := convs.GetByID(ctx, id)
	return err == nil && conv.IsBotActive
}

// ParseTrigger разбирает триггер вида "kw1,kw2=response".
// Приоритет задаётся порядком флагов.
func ParseTrigger(def string, priority int) (domain.Trigger, error) {
	keywords, response, ok := strings.Cut(def, "=")
	if !ok || strings.TrimSpace(response) == "" {
		return domain.Trigger{}, fmt.Errorf("invalid trigger %q: want keywords=response", def)
	}

	var kws []string
	for _, kw := range strings.Split(keywords, ",") {
		if kw = strings.TrimSpace(kw); kw != "" {
			kws = append(kws, kw)
		}
	}
	if len(kws) == 0 {
		return domain.Trigger{}, fmt.Errorf("invalid trigger %q: no keywords", def)
	}

	return domain.Trigger{
		ID:       uuid.New(),
		Keywords: kws,
		Response: strings.TrimSpace(response),
		Priority: priority,
		IsActive: true,
	}, nil
}
