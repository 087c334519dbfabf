package executor_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Botflow/internal/domain"
	"github.com/shaiso/Botflow/internal/engine"
	"github.com/shaiso/Botflow/internal/executor"
	"github.com/shaiso/Botflow/internal/outbound"
	"github.com/shaiso/Botflow/internal/sandbox"
	"github.com/shaiso/Botflow/internal/state"
	"github.com/shaiso/Botflow/internal/telemetry"
)

// --- harness ---

type recordingSender struct {
	mu      sync.Mutex
	buttons [][]domain.ButtonOption
	fail    bool
}

func (s *recordingSender) SendText(context.Context, string, string) (string, error) {
	return s.send(nil)
}

func (s *recordingSender) SendButtons(_ context.Context, _ string, _ string, options []domain.ButtonOption) (string, error) {
	return s.send(options)
}

func (s *recordingSender) send(options []domain.ButtonOption) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return "", errors.New("channel unavailable")
	}
	if options != nil {
		s.buttons = append(s.buttons, options)
	}
	return "wamid." + uuid.NewString(), nil
}

type harness struct {
	store  *state.MemoryStore
	crm    *sandbox.CRM
	convs  *sandbox.Conversations
	msgs   *sandbox.Messages
	sender *recordingSender
	conv   domain.Conversation
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		store:  state.NewMemoryStore(),
		crm:    sandbox.NewCRM(),
		convs:  sandbox.NewConversations(),
		msgs:   sandbox.NewMessages(),
		sender: &recordingSender{},
	}

	customer := domain.Customer{ID: uuid.New(), BusinessID: uuid.New(), Phone: "+15550001111", Name: "Alice"}
	h.crm.AddCustomer(customer)

	h.conv = domain.Conversation{
		ID:            uuid.New(),
		BusinessID:    customer.BusinessID,
		CustomerID:    customer.ID,
		CustomerPhone: customer.Phone,
		CustomerName:  customer.Name,
		IsBotActive:   true,
		Status:        domain.ConversationStatusOpen,
	}
	h.convs.Put(h.conv)
	return h
}

func (h *harness) config() executor.Config {
	return executor.Config{
		Store:         h.store,
		CRM:           h.crm,
		Conversations: h.convs,
		Outbound:      outbound.NewDispatcher(h.sender, h.msgs, telemetry.NopLogger()),
		Logger:        telemetry.NopLogger(),
	}
}

func (h *harness) executor() *executor.Executor {
	return executor.New(h.config())
}

func (h *harness) send(t *testing.T, ex *executor.Executor, g *engine.Graph, text string) (executor.Result, error) {
	t.Helper()
	msg := domain.IncomingMessage{ID: uuid.New(), ConversationID: h.conv.ID, Content: text, Type: domain.MessageTypeText}
	return ex.Run(context.Background(), h.conv, msg, g)
}

func (h *harness) texts() []string {
	return h.msgs.Texts(h.conv.ID)
}

func (h *harness) botActive(t *testing.T) bool {
	t.Helper()
	conv, err := h.convs.GetByID(context.Background(), h.conv.ID)
	require.NoError(t, err)
	return conv.IsBotActive
}

func mustGraph(t *testing.T, src string) *engine.Graph {
	t.Helper()
	g, err := engine.ParseGraphYAML([]byte(src))
	require.NoError(t, err)
	return g
}

const linearFlow = `
nodes:
  - {id: w, type: welcome, data: {message: hi}}
  - {id: m, type: message, data: {message: bye}}
edges:
  - {source: w, target: m}
`

const questionFlow = `
nodes:
  - {id: w, type: welcome, data: {message: "Hi!"}}
  - {id: q, type: question, data: {question: "What's your name?", saveAs: name}}
  - {id: m, type: message, data: {message: "thanks {name}"}}
edges:
  - {source: w, target: q}
  - {source: q, target: m}
`

const branchingFlow = `
nodes:
  - {id: w, type: welcome, data: {message: hi}}
  - {id: c, type: condition, data: {conditionType: equals, value: "yes"}}
  - {id: a, type: message, data: {message: A}}
  - {id: b, type: message, data: {message: B}}
edges:
  - {source: w, target: c}
  - {source: c, target: a, label: "true"}
  - {source: c, target: b, label: "false"}
`

const twoQuestionFlow = `
nodes:
  - {id: w, type: welcome, data: {message: hi}}
  - {id: q1, type: question, data: {question: "first?", saveAs: a}}
  - {id: q2, type: question, data: {question: "second?", saveAs: b}}
  - {id: m, type: message, data: {message: "done {a} {b}"}}
edges:
  - {source: w, target: q1}
  - {source: q1, target: q2}
  - {source: q2, target: m}
`

// --- tests ---

func TestRun_LinearFlowAutoAdvances(t *testing.T) {
	h := newHarness(t)

	res, err := h.send(t, h.executor(), mustGraph(t, linearFlow), "hello")
	require.NoError(t, err)

	assert.Equal(t, 2, res.Executed)
	assert.Equal(t, 2, res.Delivered)
	assert.Equal(t, []string{"hi", "bye"}, h.texts())
	assert.True(t, res.State.Ended)
	assert.Empty(t, res.State.CurrentNodeID)
	assert.False(t, h.botActive(t))
}

func TestRun_QuestionCapture(t *testing.T) {
	h := newHarness(t)
	ex := h.executor()
	g := mustGraph(t, questionFlow)

	res, err := h.send(t, ex, g, "hello")
	require.NoError(t, err)
	assert.Equal(t, "q", res.State.CurrentNodeID)
	assert.Equal(t, []string{"Hi!", "What's your name?"}, h.texts())
	assert.True(t, h.botActive(t))

	res, err = h.send(t, ex, g, "Alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"Hi!", "What's your name?", "thanks Alice"}, h.texts())
	assert.True(t, res.State.Ended)
	assert.Equal(t, "Alice", res.State.Variables["name"])

	customer, ok := h.crm.Customer(h.conv.CustomerID)
	require.True(t, ok)
	assert.Equal(t, "Alice", customer.CustomFields["name"])
}

func TestRun_ConditionBranching(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Yes", "A"},
		{"  yes ", "A"},
		{"no", "B"},
		{"yes please", "B"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			h := newHarness(t)

			_, err := h.send(t, h.executor(), mustGraph(t, branchingFlow), tt.input)
			require.NoError(t, err)
			assert.Equal(t, []string{"hi", tt.want}, h.texts())
		})
	}
}

func TestRun_ConditionWithoutMatchingEdgeEnds(t *testing.T) {
	const flow = `
nodes:
  - {id: w, type: welcome, data: {message: hi}}
  - {id: c, type: condition, data: {conditionType: contains, value: "yes"}}
  - {id: a, type: message, data: {message: A}}
edges:
  - {source: w, target: c}
  - {source: c, target: a, label: "true"}
`
	h := newHarness(t)

	res, err := h.send(t, h.executor(), mustGraph(t, flow), "maybe")
	require.NoError(t, err)
	assert.Equal(t, []string{"hi"}, h.texts())
	assert.True(t, res.State.Ended)
	assert.False(t, h.botActive(t))
}

func TestRun_ConditionReevaluatedOnResume(t *testing.T) {
	h := newHarness(t)

	// Выполнение прервалось после сохранения позиции на condition узле.
	_, err := h.store.Save(context.Background(), domain.NewConversationState(h.conv.ID).AtNode("c"))
	require.NoError(t, err)

	_, err = h.send(t, h.executor(), mustGraph(t, branchingFlow), "no")
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, h.texts())
}

func TestRun_ResumesWithFreshExecutor(t *testing.T) {
	h := newHarness(t)
	g := mustGraph(t, questionFlow)

	_, err := h.send(t, h.executor(), g, "hello")
	require.NoError(t, err)

	// Новый экземпляр видит только хранилище: как после перезапуска процесса.
	res, err := h.send(t, h.executor(), g, "Alice")
	require.NoError(t, err)

	assert.Equal(t, []string{"Hi!", "What's your name?", "thanks Alice"}, h.texts())
	assert.True(t, res.State.Ended)
}

func TestRun_EndedFlowDoesNotRestart(t *testing.T) {
	h := newHarness(t)
	ex := h.executor()
	g := mustGraph(t, linearFlow)

	_, err := h.send(t, ex, g, "hello")
	require.NoError(t, err)

	res, err := h.send(t, ex, g, "hello again")
	require.NoError(t, err)
	assert.False(t, res.Handled())
	assert.Equal(t, []string{"hi", "bye"}, h.texts())
}

func TestRun_HumanTakeover(t *testing.T) {
	const flow = `
nodes:
  - {id: w, type: welcome, data: {message: hi}}
  - {id: h, type: action, data: {actionType: human_takeover}}
  - {id: m, type: message, data: {message: never}}
edges:
  - {source: w, target: h}
  - {source: h, target: m}
`
	h := newHarness(t)

	res, err := h.send(t, h.executor(), mustGraph(t, flow), "help")
	require.NoError(t, err)

	assert.Equal(t, []string{"hi", engine.DefaultHandoffMessage}, h.texts())
	assert.True(t, res.State.Ended)
	assert.False(t, h.botActive(t))
}

func TestRun_Actions(t *testing.T) {
	const flow = `
nodes:
  - {id: w, type: welcome, data: {message: hi}}
  - {id: a1, type: action, data: {actionType: save_to_crm, field: email}}
  - {id: a2, type: action, data: {actionType: create_deal}}
  - {id: a3, type: action, data: {actionType: assign_tag, tag: vip}}
  - {id: a4, type: action, data: {actionType: assign_tag, tag: vip}}
  - {id: m, type: message, data: {message: "saved {email}"}}
edges:
  - {source: w, target: a1}
  - {source: a1, target: a2}
  - {source: a2, target: a3}
  - {source: a3, target: a4}
  - {source: a4, target: m}
`
	h := newHarness(t)

	res, err := h.send(t, h.executor(), mustGraph(t, flow), "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, 6, res.Executed)
	assert.Equal(t, []string{"hi", "saved alice@example.com"}, h.texts())

	customer, ok := h.crm.Customer(h.conv.CustomerID)
	require.True(t, ok)
	assert.Equal(t, "alice@example.com", customer.CustomFields["email"])
	assert.Equal(t, []string{"vip"}, customer.Tags)

	deals := h.crm.Deals()
	require.Len(t, deals, 1)
	assert.Equal(t, "Deal from Alice", deals[0].Title)
	assert.Equal(t, domain.DealStageNew, deals[0].Stage)
	assert.Equal(t, h.conv.CustomerID, deals[0].CustomerID)
}

func TestRun_ActionFailureKeepsPosition(t *testing.T) {
	const flow = `
nodes:
  - {id: w, type: welcome, data: {message: hi}}
  - {id: t, type: action, data: {actionType: assign_tag, tag: vip}}
edges:
  - {source: w, target: t}
`
	h := newHarness(t)
	h.conv.CustomerID = uuid.New() // клиента нет в CRM

	res, err := h.send(t, h.executor(), mustGraph(t, flow), "hello")
	require.ErrorIs(t, err, executor.ErrActionFailed)
	assert.Equal(t, "t", res.State.CurrentNodeID)
	assert.Equal(t, []string{"hi"}, h.texts())
}

func TestRun_AnswerCRMFailureStaysOnQuestion(t *testing.T) {
	h := newHarness(t)
	ex := h.executor()
	g := mustGraph(t, twoQuestionFlow)

	_, err := h.send(t, ex, g, "hello")
	require.NoError(t, err)

	customerID := h.conv.CustomerID
	h.conv.CustomerID = uuid.New() // клиента нет в CRM

	res, err := h.send(t, ex, g, "x")
	require.ErrorIs(t, err, executor.ErrActionFailed)
	assert.Equal(t, "q1", res.State.CurrentNodeID)
	assert.Equal(t, "x", res.State.Variables["a"])
	assert.Equal(t, []string{"hi", "first?"}, h.texts())

	st, err := h.store.Load(context.Background(), h.conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "q1", st.CurrentNodeID)

	h.conv.CustomerID = customerID

	res, err = h.send(t, ex, g, "y")
	require.NoError(t, err)
	assert.Equal(t, "q2", res.State.CurrentNodeID)
	assert.Equal(t, "y", res.State.Variables["a"])
	assert.Equal(t, []string{"hi", "first?", "second?"}, h.texts())
}

func TestRun_Buttons(t *testing.T) {
	const flow = `
nodes:
  - {id: w, type: welcome, data: {message: hi}}
  - id: b
    type: buttons
    data:
      message: Pick one
      saveAs: topic
      buttons: [Sales, {id: sup, label: Support}]
  - {id: m, type: message, data: {message: "You chose {topic}"}}
edges:
  - {source: w, target: b}
  - {source: b, target: m}
`
	h := newHarness(t)
	ex := h.executor()
	g := mustGraph(t, flow)

	res, err := h.send(t, ex, g, "hello")
	require.NoError(t, err)
	assert.Equal(t, "b", res.State.CurrentNodeID)

	require.Len(t, h.sender.buttons, 1)
	assert.Equal(t, []domain.ButtonOption{{ID: "0", Title: "Sales"}, {ID: "sup", Title: "Support"}}, h.sender.buttons[0])

	msgs := h.msgs.Outbound(h.conv.ID)
	require.Len(t, msgs, 2)
	assert.Equal(t, domain.MessageTypeInteractive, msgs[1].Type)

	_, err = h.send(t, ex, g, "Support")
	require.NoError(t, err)
	assert.Equal(t, []string{"hi", "Pick one", "You chose Support"}, h.texts())
}

func TestRun_StepLimit(t *testing.T) {
	const flow = `
nodes:
  - {id: w, type: welcome, data: {message: hi}}
  - {id: m1, type: message, data: {message: ping}}
  - {id: m2, type: message, data: {message: pong}}
edges:
  - {source: w, target: m1}
  - {source: m1, target: m2}
  - {source: m2, target: m1}
`
	h := newHarness(t)

	res, err := h.send(t, h.executor(), mustGraph(t, flow), "go")
	require.ErrorIs(t, err, executor.ErrStepLimit)
	assert.Equal(t, executor.DefaultMaxSteps, res.Executed)
	assert.Len(t, h.texts(), executor.DefaultMaxSteps)
	assert.False(t, res.State.Ended)
}

func TestRun_StepLimitConfigurable(t *testing.T) {
	const flow = `
nodes:
  - {id: w, type: welcome, data: {message: hi}}
  - {id: m, type: message, data: {message: loop}}
edges:
  - {source: w, target: m}
  - {source: m, target: m}
`
	h := newHarness(t)
	cfg := h.config()
	cfg.MaxSteps = 3

	res, err := h.send(t, executor.New(cfg), mustGraph(t, flow), "go")
	require.ErrorIs(t, err, executor.ErrStepLimit)
	assert.Equal(t, 3, res.Executed)
}

func TestRun_DanglingEdgeIsConfigError(t *testing.T) {
	const flow = `
nodes:
  - {id: w, type: welcome, data: {message: hi}}
edges:
  - {source: w, target: ghost}
`
	h := newHarness(t)

	res, err := h.send(t, h.executor(), mustGraph(t, flow), "hello")
	require.ErrorIs(t, err, engine.ErrNodeNotFound)

	// Позиция до ошибки сохранена, ответ welcome доставлен.
	assert.Equal(t, "w", res.State.CurrentNodeID)
	assert.Equal(t, []string{"hi"}, h.texts())

	st, err := h.store.Load(context.Background(), h.conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "w", st.CurrentNodeID)
}

func TestRun_NoWelcomeNode(t *testing.T) {
	const flow = `
nodes:
  - {id: m, type: message, data: {message: orphan}}
edges: []
`
	h := newHarness(t)

	res, err := h.send(t, h.executor(), mustGraph(t, flow), "hello")
	require.NoError(t, err)
	assert.False(t, res.Handled())
	assert.Empty(t, h.texts())
}

func TestRun_RestartsWhenNodeRemoved(t *testing.T) {
	h := newHarness(t)

	_, err := h.store.Save(context.Background(), domain.NewConversationState(h.conv.ID).AtNode("removed"))
	require.NoError(t, err)

	res, err := h.send(t, h.executor(), mustGraph(t, linearFlow), "hello")
	require.NoError(t, err)
	assert.Equal(t, []string{"hi", "bye"}, h.texts())
	assert.True(t, res.State.Ended)
}

func TestRun_DeliveryFailureKeepsState(t *testing.T) {
	h := newHarness(t)
	h.sender.fail = true

	res, err := h.send(t, h.executor(), mustGraph(t, questionFlow), "hello")
	require.ErrorIs(t, err, outbound.ErrDeliveryFailed)
	assert.Equal(t, 2, res.Executed)
	assert.Zero(t, res.Delivered)
	assert.Equal(t, "q", res.State.CurrentNodeID)

	msgs := h.msgs.Outbound(h.conv.ID)
	require.Len(t, msgs, 1)
	assert.Equal(t, domain.MessageStatusFailed, msgs[0].Status)
}

// --- concurrency ---

type noLock struct{}

func (noLock) Lock(context.Context, string) (state.UnlockFunc, error) {
	return func(context.Context) error { return nil }, nil
}

// barrierStore задерживает первые n загрузок, пока все n не начнутся:
// оба обработчика гарантированно читают одну и ту же версию.
type barrierStore struct {
	*state.MemoryStore
	n     int32
	calls atomic.Int32
	wg    sync.WaitGroup
}

func newBarrierStore(inner *state.MemoryStore, n int) *barrierStore {
	s := &barrierStore{MemoryStore: inner, n: int32(n)}
	s.wg.Add(n)
	return s
}

func (s *barrierStore) Load(ctx context.Context, id uuid.UUID) (domain.ConversationState, error) {
	if s.calls.Add(1) <= s.n {
		s.wg.Done()
		s.wg.Wait()
	}
	return s.MemoryStore.Load(ctx, id)
}

func runConcurrentAnswers(t *testing.T, h *harness, ex *executor.Executor, g *engine.Graph) {
	t.Helper()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, answer := range []string{"x", "y"} {
		i, answer := i, answer
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = h.send(t, ex, g, answer)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	st, err := h.store.Load(context.Background(), h.conv.ID)
	require.NoError(t, err)
	assert.True(t, st.Ended)

	a, b := st.Variables["a"], st.Variables["b"]
	assert.ElementsMatch(t, []string{"x", "y"}, []string{a, b})

	// Второй вопрос задан один раз, итог содержит оба ответа в порядке фиксации.
	counts := map[string]int{}
	for _, text := range h.texts() {
		counts[text]++
	}
	assert.Equal(t, 1, counts["second?"])
	assert.Equal(t, 1, counts[fmt.Sprintf("done %s %s", a, b)])
	assert.Len(t, h.texts(), 4)

	customer, ok := h.crm.Customer(h.conv.CustomerID)
	require.True(t, ok)
	assert.Equal(t, a, customer.CustomFields["a"])
	assert.Equal(t, b, customer.CustomFields["b"])
}

func TestRun_ConcurrentAnswersStaleRead(t *testing.T) {
	h := newHarness(t)
	g := mustGraph(t, twoQuestionFlow)

	_, err := h.send(t, h.executor(), g, "hello")
	require.NoError(t, err)

	cfg := h.config()
	cfg.Store = newBarrierStore(h.store, 2)
	cfg.Locker = noLock{}

	runConcurrentAnswers(t, h, executor.New(cfg), g)
}

func TestRun_ConcurrentAnswersSerialized(t *testing.T) {
	h := newHarness(t)
	g := mustGraph(t, twoQuestionFlow)
	ex := h.executor()

	_, err := h.send(t, ex, g, "hello")
	require.NoError(t, err)

	runConcurrentAnswers(t, h, ex, g)
}

func TestRun_LockTimeout(t *testing.T) {
	h := newHarness(t)
	locker := state.NewKeyedLocker()

	unlock, err := locker.Lock(context.Background(), h.conv.ID.String())
	require.NoError(t, err)
	defer func() { _ = unlock(context.Background()) }()

	cfg := h.config()
	cfg.Locker = locker
	cfg.LockTimeout = 20 * time.Millisecond

	_, err = h.send(t, executor.New(cfg), mustGraph(t, linearFlow), "hello")
	require.ErrorIs(t, err, state.ErrLockTimeout)
	assert.Empty(t, h.texts())
}
