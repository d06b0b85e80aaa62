package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/moneta/agent/persistence"
	"github.com/BaSui01/moneta/session"
	"github.com/BaSui01/moneta/types"
)

// echoProcessor answers every conversation with the last user message.
type echoProcessor struct{}

func (echoProcessor) ProcessConversation(_ context.Context, _ string, conv types.Conversation, _ string) types.Message {
	last, _ := conv.Last()
	return types.NewAssistantMessage("bank-coordinator", "echo: "+last.Content)
}

func newTestMux(t *testing.T, claim UserIDClaimFunc) (*http.ServeMux, persistence.UserStore) {
	t.Helper()
	store := persistence.NewMemoryUserStore()
	svc := session.NewHandler(store, session.ResolverFunc(func(useCase string) (session.Processor, bool) {
		return echoProcessor{}, useCase == "fsi_banking"
	}), nil)

	h := NewConversationHandler(svc, zap.NewNop())
	if claim != nil {
		h.WithUserIDClaim(claim)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/http_trigger", h.HandleTrigger)
	mux.HandleFunc("GET /api/v1/users/{user_id}/sessions", h.HandleListSessions)
	return mux, store
}

func postTrigger(t *testing.T, mux http.Handler, body string) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, "/api/http_trigger", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)

	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return w, resp
}

func TestConversationHandler_Trigger(t *testing.T) {
	mux, store := newTestMux(t, nil)

	w, resp := postTrigger(t, mux, `{"user_id":"u-1","message":"hello","use_case":"fsi_banking"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, resp.Success)

	data := resp.Data.(map[string]any)
	chatID, _ := data["chat_id"].(string)
	require.NotEmpty(t, chatID)
	reply := data["reply"].([]any)
	require.Len(t, reply, 1)
	msg := reply[0].(map[string]any)
	assert.Equal(t, "assistant", msg["role"])
	assert.Equal(t, "echo: hello", msg["content"])

	w, _ = postTrigger(t, mux, `{"user_id":"u-1","chat_id":"`+chatID+`","message":"again","use_case":"fsi_banking"}`)
	require.Equal(t, http.StatusOK, w.Code)

	u, err := store.ReadUser(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Len(t, u.ChatHistories[chatID].Messages, 4)
}

func TestConversationHandler_TriggerErrors(t *testing.T) {
	mux, _ := newTestMux(t, nil)

	tests := []struct {
		name    string
		body    string
		status  int
		code    types.ErrorCode
		message string
	}{
		{"missing user", `{"message":"hi","use_case":"fsi_banking"}`, http.StatusBadRequest, types.ErrInvalidRequest, session.MsgUserIDRequired},
		{"missing message", `{"user_id":"u","use_case":"fsi_banking"}`, http.StatusBadRequest, types.ErrInvalidRequest, session.MsgMessageRequired},
		{"missing use case", `{"user_id":"u","message":"hi"}`, http.StatusBadRequest, types.ErrInvalidRequest, session.MsgUseCaseRequired},
		{"unknown use case", `{"user_id":"u","message":"hi","use_case":"fsi_retail"}`, http.StatusBadRequest, types.ErrUnknownUseCase, ""},
		{"unknown session", `{"user_id":"u","chat_id":"nope","message":"hi","use_case":"fsi_banking"}`, http.StatusNotFound, types.ErrSessionNotFound, ""},
		{"malformed body", `{"user_id":`, http.StatusBadRequest, types.ErrInvalidRequest, "invalid JSON body"},
		{"unknown field", `{"user_id":"u","extra":1}`, http.StatusBadRequest, types.ErrInvalidRequest, "invalid JSON body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := postTrigger(t, mux, tt.body)
			assert.Equal(t, tt.status, w.Code)
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, string(tt.code), resp.Error.Code)
			if tt.message != "" {
				assert.Equal(t, tt.message, resp.Error.Message)
			}
		})
	}
}

func TestConversationHandler_ContentType(t *testing.T) {
	mux, _ := newTestMux(t, nil)

	r := httptest.NewRequest(http.MethodPost, "/api/http_trigger", strings.NewReader(`{}`))
	r.Header.Set("Content-Type", "text/plain")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestConversationHandler_LoadHistory(t *testing.T) {
	mux, _ := newTestMux(t, nil)

	postTrigger(t, mux, `{"user_id":"u-1","message":"first","use_case":"fsi_banking"}`)
	postTrigger(t, mux, `{"user_id":"u-1","message":"second","use_case":"fsi_banking"}`)

	t.Run("via trigger", func(t *testing.T) {
		w, resp := postTrigger(t, mux, `{"user_id":"u-1","load_history":true,"use_case":"fsi_banking"}`)
		require.Equal(t, http.StatusOK, w.Code)
		sessions := resp.Data.([]any)
		assert.Len(t, sessions, 2)
		first := sessions[0].(map[string]any)
		assert.NotEmpty(t, first["name"])
		assert.Len(t, first["messages"], 2)
	})

	t.Run("via sessions route", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api/v1/users/u-1/sessions?use_case=fsi_banking", nil)
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, r)
		require.Equal(t, http.StatusOK, w.Code)

		var resp Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Len(t, resp.Data, 2)
	})

	t.Run("sessions route needs use case", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api/v1/users/u-1/sessions", nil)
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, r)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("empty history is an empty list", func(t *testing.T) {
		w, resp := postTrigger(t, mux, `{"user_id":"fresh","load_history":true,"use_case":"fsi_banking"}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"data":[]`)
		assert.True(t, resp.Success)
	})
}

func TestConversationHandler_UserIDClaim(t *testing.T) {
	type ctxKey struct{}
	claim := func(ctx context.Context) (string, bool) {
		id, ok := ctx.Value(ctxKey{}).(string)
		return id, ok
	}
	mux, _ := newTestMux(t, claim)

	send := func(claimed, body string) int {
		r := httptest.NewRequest(http.MethodPost, "/api/http_trigger", strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
		r = r.WithContext(context.WithValue(r.Context(), ctxKey{}, claimed))
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, r)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, send("u-1", `{"user_id":"u-1","message":"hi","use_case":"fsi_banking"}`))
	assert.Equal(t, http.StatusForbidden, send("u-2", `{"user_id":"u-1","message":"hi","use_case":"fsi_banking"}`))
}
