package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/moneta/agent/orchestrator"
	"github.com/BaSui01/moneta/agent/persistence"
	"github.com/BaSui01/moneta/types"
)

// Validation messages returned with INVALID_REQUEST.
const (
	MsgUserIDRequired  = "user_id is required!"
	MsgMessageRequired = "message is required when not loading history!"
	MsgUseCaseRequired = "use_case is required!"
)

// Request is one conversation trigger.
type Request struct {
	UserID      string `json:"user_id"`
	SessionID   string `json:"chat_id,omitempty"`
	Message     string `json:"message"`
	LoadHistory bool   `json:"load_history"`
	UseCase     string `json:"use_case"`
}

// Validate checks the required fields in a fixed order so the first missing
// one is reported.
func (r Request) Validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return types.NewInvalidRequestError(MsgUserIDRequired)
	}
	if !r.LoadHistory && strings.TrimSpace(r.Message) == "" {
		return types.NewInvalidRequestError(MsgMessageRequired)
	}
	if strings.TrimSpace(r.UseCase) == "" {
		return types.NewInvalidRequestError(MsgUseCaseRequired)
	}
	return nil
}

// History is one stored session as returned by a history load.
type History struct {
	Name     string          `json:"name"`
	Messages []types.Message `json:"messages"`
}

// Response carries either a reply or, for history loads, every session.
type Response struct {
	ChatID  string          `json:"chat_id,omitempty"`
	Reply   []types.Message `json:"reply,omitempty"`
	History []History       `json:"-"`
}

// Processor produces the reply to a conversation. *orchestrator.Orchestrator
// satisfies it.
type Processor interface {
	ProcessConversation(ctx context.Context, userID string, conversation types.Conversation, sessionID string) types.Message
}

// Resolver finds the processor for a use case.
type Resolver interface {
	Resolve(useCase string) (Processor, bool)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(useCase string) (Processor, bool)

// Resolve implements Resolver.
func (f ResolverFunc) Resolve(useCase string) (Processor, bool) { return f(useCase) }

// FromRegistry resolves use cases against an orchestrator registry.
func FromRegistry(r *orchestrator.Registry) Resolver {
	return ResolverFunc(func(useCase string) (Processor, bool) {
		o, ok := r.Get(useCase)
		if !ok {
			return nil, false
		}
		return o, true
	})
}

// Handler runs the request lifecycle: validate, load or create the user
// document, resolve the session, dispatch and persist.
//
// Each turn is a read-modify-write of the whole user document. Two concurrent
// turns for the same user race and the later write wins.
type Handler struct {
	store    persistence.UserStore
	resolver Resolver
	logger   *zap.Logger
	now      func() time.Time
}

// Option configures a Handler.
type Option func(*Handler)

// WithClock overrides time.Now for session timestamps.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) { h.now = now }
}

// NewHandler creates a session handler.
func NewHandler(store persistence.UserStore, resolver Resolver, logger *zap.Logger, opts ...Option) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{
		store:    store,
		resolver: resolver,
		logger:   logger.With(zap.String("component", "session")),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandleRequest serves one trigger. Returned errors are *types.Error carrying
// an HTTP status: 400 for validation and unknown use cases, 404 for unknown
// sessions, 500 for store failures.
func (h *Handler) HandleRequest(ctx context.Context, req Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	processor, ok := h.resolver.Resolve(req.UseCase)
	if !ok {
		return nil, types.NewUnknownUseCaseError(req.UseCase)
	}

	user, err := h.loadOrCreateUser(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	if req.LoadHistory {
		return &Response{History: historyOf(user)}, nil
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = h.store.GenerateSessionID()
		now := h.now()
		user.ChatHistories[sessionID] = &persistence.ChatRecord{
			Messages:  []types.Message{},
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := h.store.UpdateUser(ctx, user); err != nil {
			return nil, h.storeError("failed to persist new session", err, req)
		}
		h.logger.Info("session started",
			zap.String("user_id", req.UserID),
			zap.String("session_id", sessionID),
			zap.String("use_case", req.UseCase),
		)
	}

	chat, ok := user.ChatHistories[sessionID]
	if !ok || chat == nil {
		return nil, types.NewSessionNotFoundError(sessionID)
	}

	conversation := types.Conversation(chat.Messages).Append(types.NewUserMessage(req.Message))

	start := h.now()
	reply := processor.ProcessConversation(ctx, req.UserID, conversation, sessionID)
	elapsed := h.now().Sub(start)

	conversation = conversation.Append(reply)
	chat.Messages = conversation
	chat.UpdatedAt = h.now()
	chat.Metrics = turnMetrics(conversation, reply, elapsed)

	// Persisted even when the caller has gone away.
	if err := h.store.UpdateUser(context.WithoutCancel(ctx), user); err != nil {
		return nil, h.storeError("failed to persist conversation", err, req)
	}

	h.logger.Debug("turn completed",
		zap.String("user_id", req.UserID),
		zap.String("session_id", sessionID),
		zap.String("reply_agent", reply.Name),
		zap.Int("messages", len(conversation)),
		zap.Duration("duration", elapsed),
	)

	return &Response{ChatID: sessionID, Reply: []types.Message{reply}}, nil
}

// loadOrCreateUser returns the user's document, creating an empty one on first
// contact.
func (h *Handler) loadOrCreateUser(ctx context.Context, userID string) (*persistence.UserRecord, error) {
	user, err := h.store.ReadUser(ctx, userID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, persistence.ErrNotFound) {
		return nil, h.storeError("failed to read user", err, Request{UserID: userID})
	}

	user = persistence.NewUserRecord(userID)
	err = h.store.CreateUser(ctx, user)
	switch {
	case err == nil:
		h.logger.Info("user created", zap.String("user_id", userID))
		return user, nil
	case errors.Is(err, persistence.ErrAlreadyExists):
		// created concurrently
		user, err = h.store.ReadUser(ctx, userID)
		if err != nil {
			return nil, h.storeError("failed to read user", err, Request{UserID: userID})
		}
		return user, nil
	default:
		return nil, h.storeError("failed to create user", err, Request{UserID: userID})
	}
}

func (h *Handler) storeError(msg string, err error, req Request) error {
	h.logger.Error(msg,
		zap.String("user_id", req.UserID),
		zap.String("session_id", req.SessionID),
		zap.Error(err),
	)
	return types.NewInternalError(msg, err)
}

func historyOf(user *persistence.UserRecord) []History {
	ids := user.SessionIDs()
	out := make([]History, 0, len(ids))
	for _, id := range ids {
		chat := user.ChatHistories[id]
		if chat == nil {
			continue
		}
		msgs := chat.Messages
		if msgs == nil {
			msgs = []types.Message{}
		}
		out = append(out, History{Name: id, Messages: msgs})
	}
	return out
}

func turnMetrics(conversation types.Conversation, reply types.Message, elapsed time.Duration) map[string]any {
	return map[string]any{
		"turns":            conversation.CountRole(types.RoleUser),
		"last_reply_agent": reply.Name,
		"last_duration_ms": elapsed.Milliseconds(),
	}
}
