package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/moneta/agent/handoff"
	"github.com/BaSui01/moneta/agent/orchestrator"
	"github.com/BaSui01/moneta/agent/persistence"
	"github.com/BaSui01/moneta/testutil"
	"github.com/BaSui01/moneta/testutil/fixtures"
	"github.com/BaSui01/moneta/testutil/mocks"
	"github.com/BaSui01/moneta/types"
)

// fakeProcessor replies with a fixed message and records what it was sent.
type fakeProcessor struct {
	mu     sync.Mutex
	reply  types.Message
	seen   []types.Conversation
	during func()
}

func (p *fakeProcessor) ProcessConversation(_ context.Context, _ string, conv types.Conversation, _ string) types.Message {
	p.mu.Lock()
	p.seen = append(p.seen, conv.Clone())
	during := p.during
	p.mu.Unlock()
	if during != nil {
		during()
	}
	return p.reply
}

func newFakeProcessor() *fakeProcessor {
	return &fakeProcessor{reply: types.NewAssistantMessage(fixtures.CRMAgent, "Pete Mitchell holds MSFT.")}
}

func resolverFor(p Processor) Resolver {
	return ResolverFunc(func(useCase string) (Processor, bool) {
		if useCase != "fsi_banking" {
			return nil, false
		}
		return p, true
	})
}

// failingStore fails the selected operations.
type failingStore struct {
	persistence.UserStore
	failRead, failCreate, failUpdate bool
	updates                          int
}

var errBackend = errors.New("backend unavailable")

func (s *failingStore) ReadUser(ctx context.Context, id string) (*persistence.UserRecord, error) {
	if s.failRead {
		return nil, errBackend
	}
	return s.UserStore.ReadUser(ctx, id)
}

func (s *failingStore) CreateUser(ctx context.Context, u *persistence.UserRecord) error {
	if s.failCreate {
		return errBackend
	}
	return s.UserStore.CreateUser(ctx, u)
}

func (s *failingStore) UpdateUser(ctx context.Context, u *persistence.UserRecord) error {
	s.updates++
	if s.failUpdate {
		return errBackend
	}
	return s.UserStore.UpdateUser(ctx, u)
}

func assertErrorCode(t *testing.T, err error, code types.ErrorCode, status int) {
	t.Helper()
	require.Error(t, err)
	e, ok := types.AsError(err)
	require.True(t, ok, "expected *types.Error, got %T", err)
	assert.Equal(t, code, e.Code)
	assert.Equal(t, status, e.HTTPStatus)
}

func TestRequest_Validate(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want string
	}{
		{"missing user", Request{Message: "hi", UseCase: "fsi_banking"}, MsgUserIDRequired},
		{"blank user", Request{UserID: "  ", Message: "hi", UseCase: "fsi_banking"}, MsgUserIDRequired},
		{"missing message", Request{UserID: "u", UseCase: "fsi_banking"}, MsgMessageRequired},
		{"user checked before message", Request{UseCase: "fsi_banking"}, MsgUserIDRequired},
		{"missing use case", Request{UserID: "u", Message: "hi"}, MsgUseCaseRequired},
		{"history needs use case", Request{UserID: "u", LoadHistory: true}, MsgUseCaseRequired},
		{"history without message", Request{UserID: "u", LoadHistory: true, UseCase: "fsi_banking"}, ""},
		{"valid", Request{UserID: "u", Message: "hi", UseCase: "fsi_banking"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			assertErrorCode(t, err, types.ErrInvalidRequest, http.StatusBadRequest)
			e, _ := types.AsError(err)
			assert.Equal(t, tt.want, e.Message)
		})
	}
}

func TestHandleRequest_UnknownUseCaseTouchesNothing(t *testing.T) {
	store := &failingStore{UserStore: persistence.NewMemoryUserStore()}
	h := NewHandler(store, resolverFor(newFakeProcessor()), nil)

	_, err := h.HandleRequest(context.Background(), Request{UserID: "u-1", Message: "hi", UseCase: "fsi_retail"})
	assertErrorCode(t, err, types.ErrUnknownUseCase, http.StatusBadRequest)

	_, readErr := store.ReadUser(context.Background(), "u-1")
	assert.ErrorIs(t, readErr, persistence.ErrNotFound)
	assert.Zero(t, store.updates)
}

func TestHandleRequest_NewSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewMemoryUserStore()
	proc := newFakeProcessor()
	h := NewHandler(store, resolverFor(proc), nil)

	// the empty session is on disk before the orchestrator runs
	var persistedBeforeRun bool
	proc.during = func() {
		u, err := store.ReadUser(ctx, "u-1")
		if err != nil {
			return
		}
		for _, chat := range u.ChatHistories {
			persistedBeforeRun = len(chat.Messages) == 0
		}
	}

	resp, err := h.HandleRequest(ctx, Request{UserID: "u-1", Message: "What does client 123456 hold?", UseCase: "fsi_banking"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.ChatID)
	assert.Equal(t, []types.Message{proc.reply}, resp.Reply)
	assert.True(t, persistedBeforeRun)

	u, err := store.ReadUser(ctx, "u-1")
	require.NoError(t, err)
	require.Contains(t, u.ChatHistories, resp.ChatID)
	chat := u.ChatHistories[resp.ChatID]
	assert.Equal(t, []types.Message{
		types.NewUserMessage("What does client 123456 hold?"),
		proc.reply,
	}, chat.Messages)
	assert.Equal(t, 1, chat.Metrics["turns"])
	assert.Equal(t, fixtures.CRMAgent, chat.Metrics["last_reply_agent"])

	// the processor saw exactly the persisted history minus the reply
	require.Len(t, proc.seen, 1)
	assert.Equal(t, types.Conversation(chat.Messages[:1]), proc.seen[0])
}

func TestHandleRequest_ContinueSession(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewMemoryUserStore()
	proc := newFakeProcessor()
	h := NewHandler(store, resolverFor(proc), nil)

	first, err := h.HandleRequest(ctx, Request{UserID: "u-1", Message: "first", UseCase: "fsi_banking"})
	require.NoError(t, err)

	second, err := h.HandleRequest(ctx, Request{UserID: "u-1", SessionID: first.ChatID, Message: "second", UseCase: "fsi_banking"})
	require.NoError(t, err)
	assert.Equal(t, first.ChatID, second.ChatID)

	require.Len(t, proc.seen, 2)
	assert.Equal(t, types.Conversation{
		types.NewUserMessage("first"),
		proc.reply,
		types.NewUserMessage("second"),
	}, proc.seen[1])

	u, err := store.ReadUser(ctx, "u-1")
	require.NoError(t, err)
	assert.Len(t, u.ChatHistories, 1)
	assert.Len(t, u.ChatHistories[first.ChatID].Messages, 4)
}

func TestHandleRequest_UnknownSession(t *testing.T) {
	store := &failingStore{UserStore: persistence.NewMemoryUserStore()}
	proc := newFakeProcessor()
	h := NewHandler(store, resolverFor(proc), nil)

	_, err := h.HandleRequest(context.Background(), Request{UserID: "u-1", SessionID: "missing", Message: "hi", UseCase: "fsi_banking"})
	assertErrorCode(t, err, types.ErrSessionNotFound, http.StatusNotFound)
	assert.Empty(t, proc.seen)
	assert.Zero(t, store.updates)

	// the user document was still bootstrapped
	u, err := store.ReadUser(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Empty(t, u.ChatHistories)
}

func TestHandleRequest_LoadHistoryOrdered(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewMemoryUserStore()
	proc := newFakeProcessor()

	clock := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	h := NewHandler(store, resolverFor(proc), nil, WithClock(func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}))

	var ids []string
	for _, msg := range []string{"one", "two", "three"} {
		resp, err := h.HandleRequest(ctx, Request{UserID: "u-1", Message: msg, UseCase: "fsi_banking"})
		require.NoError(t, err)
		ids = append(ids, resp.ChatID)
	}

	resp, err := h.HandleRequest(ctx, Request{UserID: "u-1", LoadHistory: true, UseCase: "fsi_banking"})
	require.NoError(t, err)
	require.Len(t, resp.History, 3)
	for i, hist := range resp.History {
		assert.Equal(t, ids[i], hist.Name)
		assert.Len(t, hist.Messages, 2)
	}
	assert.Empty(t, resp.ChatID)
	assert.Len(t, proc.seen, 3, "history loads bypass the orchestrator")
}

func TestHandleRequest_LoadHistoryForNewUser(t *testing.T) {
	h := NewHandler(persistence.NewMemoryUserStore(), resolverFor(newFakeProcessor()), nil)

	resp, err := h.HandleRequest(context.Background(), Request{UserID: "new", LoadHistory: true, UseCase: "fsi_banking"})
	require.NoError(t, err)
	assert.NotNil(t, resp.History)
	assert.Empty(t, resp.History)
}

func TestHandleRequest_StoreFailures(t *testing.T) {
	tests := []struct {
		name  string
		store func(*failingStore)
	}{
		{"read", func(s *failingStore) { s.failRead = true }},
		{"create", func(s *failingStore) { s.failCreate = true }},
		{"update", func(s *failingStore) { s.failUpdate = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &failingStore{UserStore: persistence.NewMemoryUserStore()}
			tt.store(store)
			h := NewHandler(store, resolverFor(newFakeProcessor()), nil)

			_, err := h.HandleRequest(context.Background(), Request{UserID: "u-1", Message: "hi", UseCase: "fsi_banking"})
			assertErrorCode(t, err, types.ErrInternalError, http.StatusInternalServerError)
			assert.ErrorIs(t, err, errBackend)
		})
	}
}

func TestHandleRequest_ConcurrentFirstContact(t *testing.T) {
	store := persistence.NewMemoryUserStore()
	h := NewHandler(store, resolverFor(newFakeProcessor()), nil)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.HandleRequest(context.Background(), Request{UserID: "u-1", LoadHistory: true, UseCase: "fsi_banking"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestHandleRequest_ThroughOrchestrator(t *testing.T) {
	runner := mocks.NewScriptedRunner().
		On(fixtures.Coordinator,
			handoff.Decision{Target: fixtures.CRMAgent, Note: "client lookup"},
			handoff.Decision{}).
		Reply(fixtures.CRMAgent, "Client 123456 is Pete Mitchell.")

	registry := orchestrator.NewRegistry()
	require.NoError(t, registry.Register(orchestrator.New("fsi_banking", fixtures.Coordinator,
		func(context.Context) (*handoff.Workflow, handoff.AgentRunner, error) {
			return fixtures.BankingWorkflow(), runner, nil
		}, nil)))

	store := persistence.NewMemoryUserStore()
	h := NewHandler(store, FromRegistry(registry), nil)

	resp, err := h.HandleRequest(testutil.TestContext(t), Request{UserID: "u-1", Message: "Who is client 123456?", UseCase: "fsi_banking"})
	require.NoError(t, err)
	require.Len(t, resp.Reply, 1)
	assert.Equal(t, fixtures.CRMAgent, resp.Reply[0].Name)
	assert.Equal(t, "Client 123456 is Pete Mitchell.", resp.Reply[0].Content)

	_, err = h.HandleRequest(testutil.TestContext(t), Request{UserID: "u-1", Message: "hi", UseCase: "fsi_insurance"})
	assertErrorCode(t, err, types.ErrUnknownUseCase, http.StatusBadRequest)
}
