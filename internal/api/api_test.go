package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Botflow/internal/domain"
	"github.com/shaiso/Botflow/internal/repo"
	"github.com/shaiso/Botflow/internal/state"
	"github.com/shaiso/Botflow/internal/telemetry"
)

// --- fakes ---

type fakeBots struct {
	mu   sync.Mutex
	bots map[uuid.UUID]domain.Bot
}

func (f *fakeBots) Create(_ context.Context, b *domain.Bot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b.CreatedAt, b.UpdatedAt = time.Now(), time.Now()
	f.bots[b.ID] = *b
	return nil
}

func (f *fakeBots) GetByID(_ context.Context, id uuid.UUID) (*domain.Bot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bots[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &b, nil
}

func (f *fakeBots) List(_ context.Context, businessID uuid.UUID) ([]domain.Bot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Bot
	for _, b := range f.bots {
		if businessID == uuid.Nil || b.BusinessID == businessID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeBots) Update(_ context.Context, b *domain.Bot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.bots[b.ID]; !ok {
		return repo.ErrNotFound
	}
	f.bots[b.ID] = *b
	return nil
}

func (f *fakeBots) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.bots[id]; !ok {
		return repo.ErrNotFound
	}
	delete(f.bots, id)
	return nil
}

type fakeTriggers struct {
	mu       sync.Mutex
	triggers []domain.Trigger
}

func (f *fakeTriggers) Create(_ context.Context, t *domain.Trigger) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.triggers = append(f.triggers, *t)
	return nil
}

func (f *fakeTriggers) GetByID(_ context.Context, id uuid.UUID) (*domain.Trigger, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.triggers {
		if t.ID == id {
			return &t, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (f *fakeTriggers) ListByBot(_ context.Context, botID uuid.UUID) ([]domain.Trigger, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Trigger
	for _, t := range f.triggers {
		if t.BotID == botID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTriggers) Update(_ context.Context, t *domain.Trigger) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.triggers {
		if f.triggers[i].ID == t.ID {
			f.triggers[i] = *t
			return nil
		}
	}
	return repo.ErrNotFound
}

func (f *fakeTriggers) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.triggers {
		if f.triggers[i].ID == id {
			f.triggers = slices.Delete(f.triggers, i, i+1)
			return nil
		}
	}
	return repo.ErrNotFound
}

type fakeScenarios struct {
	mu        sync.Mutex
	bots      *fakeBots
	scenarios []domain.Scenario
}

func (f *fakeScenarios) CreateVersion(ctx context.Context, botID uuid.UUID, name string, graph json.RawMessage, activate bool) (*domain.Scenario, error) {
	if _, err := f.bots.GetByID(ctx, botID); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	version := 1
	for i := range f.scenarios {
		if f.scenarios[i].BotID != botID {
			continue
		}
		version = max(version, f.scenarios[i].Version+1)
		if activate {
			f.scenarios[i].IsActive = false
		}
	}
	s := domain.Scenario{ID: uuid.New(), BotID: botID, Name: name, Version: version, IsActive: activate, Graph: graph, CreatedAt: time.Now()}
	f.scenarios = append(f.scenarios, s)
	return &s, nil
}

func (f *fakeScenarios) GetActive(_ context.Context, botID uuid.UUID) (*domain.Scenario, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.scenarios {
		if s.BotID == botID && s.IsActive {
			return &s, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (f *fakeScenarios) GetVersion(_ context.Context, botID uuid.UUID, version int) (*domain.Scenario, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.scenarios {
		if s.BotID == botID && s.Version == version {
			return &s, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (f *fakeScenarios) ListVersions(_ context.Context, botID uuid.UUID) ([]domain.Scenario, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Scenario
	for _, s := range f.scenarios {
		if s.BotID == botID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeScenarios) Activate(_ context.Context, botID uuid.UUID, version int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	found := false
	for i := range f.scenarios {
		if f.scenarios[i].BotID == botID {
			f.scenarios[i].IsActive = f.scenarios[i].Version == version
			found = found || f.scenarios[i].IsActive
		}
	}
	if !found {
		return repo.ErrNotFound
	}
	return nil
}

type fakeConversations struct {
	mu    sync.Mutex
	convs map[uuid.UUID]domain.Conversation
}

func (f *fakeConversations) GetByID(_ context.Context, id uuid.UUID) (*domain.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.convs[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &c, nil
}

func (f *fakeConversations) FindOrCreateOpen(_ context.Context, customer *domain.Customer, channelNumberID string) (*domain.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.convs {
		if c.CustomerID == customer.ID && c.ChannelNumberID == channelNumberID && c.Status == domain.ConversationStatusOpen {
			return &c, nil
		}
	}
	c := domain.Conversation{
		ID:              uuid.New(),
		BusinessID:      customer.BusinessID,
		CustomerID:      customer.ID,
		CustomerPhone:   customer.Phone,
		CustomerName:    customer.Name,
		ChannelNumberID: channelNumberID,
		IsBotActive:     true,
		Status:          domain.ConversationStatusOpen,
		CreatedAt:       time.Now(),
	}
	f.convs[c.ID] = c
	return &c, nil
}

func (f *fakeConversations) List(_ context.Context, businessID uuid.UUID, limit int) ([]domain.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Conversation
	for _, c := range f.convs {
		if c.BusinessID == businessID && len(out) < limit {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeConversations) SetBotActive(_ context.Context, id uuid.UUID, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.convs[id]
	if !ok {
		return repo.ErrNotFound
	}
	c.IsBotActive = active
	f.convs[id] = c
	return nil
}

func (f *fakeConversations) Touch(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.convs[id]
	if !ok {
		return repo.ErrNotFound
	}
	now := time.Now()
	c.LastMessageAt = &now
	f.convs[id] = c
	return nil
}

type fakeCustomers struct {
	mu        sync.Mutex
	customers []domain.Customer
}

func (f *fakeCustomers) UpsertCustomer(_ context.Context, businessID uuid.UUID, phone, name string) (*domain.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.customers {
		if c.BusinessID == businessID && c.Phone == phone {
			return &c, nil
		}
	}
	c := domain.Customer{ID: uuid.New(), BusinessID: businessID, Phone: phone, Name: name}
	f.customers = append(f.customers, c)
	return &c, nil
}

func (f *fakeCustomers) GetCustomer(_ context.Context, id uuid.UUID) (*domain.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.customers {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (f *fakeCustomers) ListDeals(context.Context, uuid.UUID) ([]domain.Deal, error) {
	return nil, nil
}

type fakeMessages struct {
	mu   sync.Mutex
	msgs []domain.Message
}

func (f *fakeMessages) CreateInbound(_ context.Context, m *domain.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.msgs {
		if m.ExternalID != "" && existing.ExternalID == m.ExternalID {
			return repo.ErrAlreadyExists
		}
	}
	m.Direction = domain.DirectionInbound
	m.Status = domain.MessageStatusDelivered
	m.CreatedAt = time.Now()
	f.msgs = append(f.msgs, *m)
	return nil
}

func (f *fakeMessages) ListByConversation(_ context.Context, conversationID uuid.UUID, limit int) ([]domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Message
	for _, m := range f.msgs {
		if m.ConversationID == conversationID && len(out) < limit {
			out = append(out, m)
		}
	}
	return out, nil
}

type fakePublisher struct {
	mu        sync.Mutex
	published []uuid.UUID
	err       error
}

func (f *fakePublisher) PublishInbound(_ context.Context, messageID, _ uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, messageID)
	return nil
}

// --- harness ---

type testAPI struct {
	server    *httptest.Server
	bots      *fakeBots
	triggers  *fakeTriggers
	scenarios *fakeScenarios
	convs     *fakeConversations
	customers *fakeCustomers
	messages  *fakeMessages
	states    *state.MemoryStore
	publisher *fakePublisher
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	bots := &fakeBots{bots: make(map[uuid.UUID]domain.Bot)}
	a := &testAPI{
		bots:      bots,
		triggers:  &fakeTriggers{},
		scenarios: &fakeScenarios{bots: bots},
		convs:     &fakeConversations{convs: make(map[uuid.UUID]domain.Conversation)},
		customers: &fakeCustomers{},
		messages:  &fakeMessages{},
		states:    state.NewMemoryStore(),
		publisher: &fakePublisher{},
	}

	h := NewHandler(Config{
		Bots:          a.bots,
		Triggers:      a.triggers,
		Scenarios:     a.scenarios,
		Conversations: a.convs,
		Customers:     a.customers,
		Messages:      a.messages,
		States:        a.states,
		Publisher:     a.publisher,
		Logger:        telemetry.NopLogger(),
	})

	a.server = httptest.NewServer(h.Routes())
	t.Cleanup(a.server.Close)
	return a
}

func (a *testAPI) do(t *testing.T, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, a.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func (a *testAPI) createBot(t *testing.T) uuid.UUID {
	t.Helper()
	resp, body := a.do(t, http.MethodPost, "/api/v1/bots", CreateBotRequest{
		BusinessID:      uuid.New(),
		ChannelNumberID: "1029384756",
		Name:            "support",
		IsActive:        true,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id, err := uuid.Parse(data(body)["id"].(string))
	require.NoError(t, err)
	return id
}

func (a *testAPI) openConversation(t *testing.T) domain.Conversation {
	t.Helper()
	customer, err := a.customers.UpsertCustomer(context.Background(), uuid.New(), "+15550003333", "Carol")
	require.NoError(t, err)
	conv, err := a.convs.FindOrCreateOpen(context.Background(), customer, "1029384756")
	require.NoError(t, err)
	return *conv
}

func data(body map[string]any) map[string]any {
	return body["data"].(map[string]any)
}

func errorCode(body map[string]any) string {
	return body["error"].(map[string]any)["code"].(string)
}

const validGraph = `{
  "nodes": [
    {"id": "w", "type": "welcome", "data": {"message": "Hi!"}},
    {"id": "q", "type": "question", "data": {"question": "Name?", "saveAs": "name"}}
  ],
  "edges": [{"id": "e1", "source": "w", "target": "q"}]
}`

const invalidGraph = `{
  "nodes": [
    {"id": "w", "type": "welcome", "data": {"message": "Hi!"}},
    {"id": "q", "type": "question", "data": {}}
  ],
  "edges": [{"id": "e1", "source": "w", "target": "ghost"}]
}`

// --- bots & triggers ---

func TestBots_CRUD(t *testing.T) {
	a := newTestAPI(t)
	id := a.createBot(t)

	resp, body := a.do(t, http.MethodGet, "/api/v1/bots/"+id.String(), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "support", data(body)["name"])

	resp, body = a.do(t, http.MethodPut, "/api/v1/bots/"+id.String(), map[string]any{
		"default_response": "We'll get back to you",
		"is_active":        false,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "We'll get back to you", data(body)["default_response"])
	assert.Equal(t, false, data(body)["is_active"])

	resp, body = a.do(t, http.MethodGet, "/api/v1/bots", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, body["total"])

	resp, _ = a.do(t, http.MethodDelete, "/api/v1/bots/"+id.String(), nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = a.do(t, http.MethodGet, "/api/v1/bots/"+id.String(), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, string(ErrCodeNotFound), errorCode(body))
}

func TestCreateBot_Validation(t *testing.T) {
	a := newTestAPI(t)

	tests := []struct {
		name string
		body any
	}{
		{"malformed", `{"name":`},
		{"no business", CreateBotRequest{Name: "x", ChannelNumberID: "1"}},
		{"no name", CreateBotRequest{BusinessID: uuid.New(), ChannelNumberID: "1"}},
		{"no channel", CreateBotRequest{BusinessID: uuid.New(), Name: "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := a.do(t, http.MethodPost, "/api/v1/bots", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, string(ErrCodeBadRequest), errorCode(body))
		})
	}
}

func TestGetBot_InvalidID(t *testing.T) {
	a := newTestAPI(t)

	resp, body := a.do(t, http.MethodGet, "/api/v1/bots/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid bot id", body["error"].(map[string]any)["message"])
}

func TestTriggers(t *testing.T) {
	a := newTestAPI(t)
	botID := a.createBot(t)

	resp, body := a.do(t, http.MethodPost, "/api/v1/bots/"+botID.String()+"/triggers", TriggerRequest{
		Keywords: []string{" price ", "", "cost"},
		Response: "From $10",
		Priority: 1,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := data(body)
	assert.Equal(t, []any{"price", "cost"}, created["keywords"])
	assert.Equal(t, true, created["is_active"])

	triggerID := created["id"].(string)
	resp, body = a.do(t, http.MethodPut, "/api/v1/triggers/"+triggerID, map[string]any{"priority": 5})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 5, data(body)["priority"])

	resp, body = a.do(t, http.MethodGet, "/api/v1/bots/"+botID.String()+"/triggers", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, body["total"])

	resp, _ = a.do(t, http.MethodDelete, "/api/v1/triggers/"+triggerID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestCreateTrigger_Validation(t *testing.T) {
	a := newTestAPI(t)
	botID := a.createBot(t)

	resp, _ := a.do(t, http.MethodPost, "/api/v1/bots/"+botID.String()+"/triggers", TriggerRequest{
		Keywords: []string{"  "},
		Response: "x",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = a.do(t, http.MethodPost, "/api/v1/bots/"+uuid.NewString()+"/triggers", TriggerRequest{
		Keywords: []string{"price"},
		Response: "x",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// --- scenarios ---

func TestPublishScenario(t *testing.T) {
	a := newTestAPI(t)
	botID := a.createBot(t)
	path := "/api/v1/bots/" + botID.String() + "/scenarios"

	resp, body := a.do(t, http.MethodPost, path, map[string]any{"name": "main", "graph": json.RawMessage(validGraph)})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.EqualValues(t, 1, data(body)["version"])
	assert.Equal(t, true, data(body)["is_active"])

	resp, body = a.do(t, http.MethodPost, path, map[string]any{"name": "main", "graph": json.RawMessage(validGraph), "activate": false})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.EqualValues(t, 2, data(body)["version"])
	assert.Equal(t, false, data(body)["is_active"])

	resp, body = a.do(t, http.MethodGet, path+"/active", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, data(body)["version"])

	resp, _ = a.do(t, http.MethodPost, path+"/2/activate", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = a.do(t, http.MethodGet, path+"/active", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 2, data(body)["version"])

	resp, body = a.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 2, body["total"])
}

func TestPublishScenario_InvalidGraph(t *testing.T) {
	a := newTestAPI(t)
	botID := a.createBot(t)

	resp, body := a.do(t, http.MethodPost, "/api/v1/bots/"+botID.String()+"/scenarios",
		map[string]any{"name": "main", "graph": json.RawMessage(invalidGraph)})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	detail := body["error"].(map[string]any)
	assert.Equal(t, string(ErrCodeInvalidGraph), detail["code"])

	var nodes []string
	for _, d := range detail["details"].([]any) {
		if id, ok := d.(map[string]any)["node_id"].(string); ok {
			nodes = append(nodes, id)
		}
	}
	assert.Contains(t, nodes, "q")
	assert.Contains(t, nodes, "w")

	versions, err := a.scenarios.ListVersions(context.Background(), botID)
	require.NoError(t, err)
	assert.Empty(t, versions)
}

func TestPublishScenario_UnknownBot(t *testing.T) {
	a := newTestAPI(t)

	resp, _ := a.do(t, http.MethodPost, "/api/v1/bots/"+uuid.NewString()+"/scenarios",
		map[string]any{"name": "main", "graph": json.RawMessage(validGraph)})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestValidateScenario(t *testing.T) {
	a := newTestAPI(t)

	resp, body := a.do(t, http.MethodPost, "/api/v1/scenarios/validate", map[string]any{"graph": json.RawMessage(validGraph)})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, data(body)["valid"])
	assert.EqualValues(t, 2, data(body)["nodes"])

	resp, body = a.do(t, http.MethodPost, "/api/v1/scenarios/validate", map[string]any{"graph": json.RawMessage(invalidGraph)})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, data(body)["valid"])
	assert.NotEmpty(t, data(body)["errors"])
}

// --- conversations ---

func TestSetConversationBot_ResetsEndedFlow(t *testing.T) {
	a := newTestAPI(t)
	conv := a.openConversation(t)
	ctx := context.Background()

	st, err := a.states.Save(ctx, domain.NewConversationState(conv.ID).AtNode("q"))
	require.NoError(t, err)
	st, err = a.states.Save(ctx, st.WithVariable("name", "Carol").End())
	require.NoError(t, err)
	require.NoError(t, a.convs.SetBotActive(ctx, conv.ID, false))

	resp, body := a.do(t, http.MethodPut, "/api/v1/conversations/"+conv.ID.String()+"/bot", map[string]any{"is_active": true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, data(body)["is_bot_active"])

	resp, body = a.do(t, http.MethodGet, "/api/v1/conversations/"+conv.ID.String()+"/state", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	reset := data(body)
	assert.Equal(t, false, reset["ended"])
	assert.Equal(t, false, reset["started"])
	assert.Empty(t, reset["variables"])
}

func TestSetConversationBot_Disable(t *testing.T) {
	a := newTestAPI(t)
	conv := a.openConversation(t)

	resp, body := a.do(t, http.MethodPut, "/api/v1/conversations/"+conv.ID.String()+"/bot", map[string]any{"is_active": false})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, data(body)["is_bot_active"])

	resp, _ = a.do(t, http.MethodPut, "/api/v1/conversations/"+conv.ID.String()+"/bot", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = a.do(t, http.MethodPut, "/api/v1/conversations/"+uuid.NewString()+"/bot", map[string]any{"is_active": false})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetConversationState_NotStarted(t *testing.T) {
	a := newTestAPI(t)
	conv := a.openConversation(t)

	resp, body := a.do(t, http.MethodGet, "/api/v1/conversations/"+conv.ID.String()+"/state", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 0, data(body)["version"])
	assert.Equal(t, false, data(body)["started"])
}

// --- inbound ---

func TestReceiveInbound(t *testing.T) {
	a := newTestAPI(t)
	req := InboundRequest{
		BusinessID:      uuid.New(),
		ChannelNumberID: "1029384756",
		Phone:           "+15550004444",
		Name:            "Dave",
		ExternalID:      "wamid.1",
		Content:         "hello",
	}

	resp, body := a.do(t, http.MethodPost, "/api/v1/messages/inbound", req)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	first := data(body)
	assert.Equal(t, true, first["queued"])

	convID := first["conversation_id"].(string)

	// Повтор от канала: то же сообщение не сохраняется дважды.
	resp, body = a.do(t, http.MethodPost, "/api/v1/messages/inbound", req)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, data(body)["duplicate"])
	assert.Equal(t, convID, data(body)["conversation_id"])

	req.ExternalID = "wamid.2"
	req.Content = "price?"
	resp, body = a.do(t, http.MethodPost, "/api/v1/messages/inbound", req)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, convID, data(body)["conversation_id"])

	assert.Len(t, a.publisher.published, 2)

	resp, body = a.do(t, http.MethodGet, "/api/v1/conversations/"+convID+"/messages", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 2, body["total"])

	conv, err := a.convs.GetByID(context.Background(), uuid.MustParse(convID))
	require.NoError(t, err)
	assert.NotNil(t, conv.LastMessageAt)
}

func TestReceiveInbound_PublishFailureLeavesForPolling(t *testing.T) {
	a := newTestAPI(t)
	a.publisher.err = errors.New("broker down")
	conv := a.openConversation(t)

	resp, body := a.do(t, http.MethodPost, "/api/v1/conversations/"+conv.ID.String()+"/messages", PostMessageRequest{Content: "hi"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, false, data(body)["queued"])
	assert.Len(t, a.messages.msgs, 1)
}

func TestReceiveInbound_Validation(t *testing.T) {
	a := newTestAPI(t)

	resp, _ := a.do(t, http.MethodPost, "/api/v1/messages/inbound", InboundRequest{
		BusinessID:      uuid.New(),
		ChannelNumberID: "1029384756",
		Content:         "hello",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = a.do(t, http.MethodPost, "/api/v1/conversations/"+uuid.NewString()+"/messages", PostMessageRequest{Content: "hi"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// --- router ---

func TestRoutes_NotFound(t *testing.T) {
	a := newTestAPI(t)

	resp, body := a.do(t, http.MethodGet, "/api/v1/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, string(ErrCodeNotFound), errorCode(body))
}

func TestRoutes_CORSPreflight(t *testing.T) {
	a := newTestAPI(t)

	req, err := http.NewRequest(http.MethodOptions, a.server.URL+"/api/v1/bots", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))
}
