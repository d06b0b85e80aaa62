package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/moneta/session"
	"github.com/BaSui01/moneta/types"
)

// =============================================================================
// 💬 会话触发 Handler
// =============================================================================

// ConversationService 处理一次会话请求，session.Handler 实现该接口
type ConversationService interface {
	HandleRequest(ctx context.Context, req session.Request) (*session.Response, error)
}

// UserIDClaimFunc 从请求上下文取出已认证的用户 ID（例如 JWT 的 user_id 声明）
type UserIDClaimFunc func(ctx context.Context) (string, bool)

// ConversationHandler 会话接口处理器
type ConversationHandler struct {
	service ConversationService
	claim   UserIDClaimFunc
	logger  *zap.Logger
}

// ConversationReply 是一次对话回合的响应数据
type ConversationReply struct {
	ChatID string          `json:"chat_id"`
	Reply  []types.Message `json:"reply"`
}

// NewConversationHandler 创建会话处理器
func NewConversationHandler(service ConversationService, logger *zap.Logger) *ConversationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConversationHandler{
		service: service,
		logger:  logger.With(zap.String("component", "conversation_handler")),
	}
}

// WithUserIDClaim 要求请求中的 user_id 与已认证身份一致
func (h *ConversationHandler) WithUserIDClaim(fn UserIDClaimFunc) *ConversationHandler {
	h.claim = fn
	return h
}

// HandleTrigger 处理会话触发请求
// @Summary 会话触发
// @Description 发送一条用户消息，或在 load_history 为 true 时返回全部历史会话
// @Tags 会话
// @Accept json
// @Produce json
// @Param request body session.Request true "会话请求"
// @Success 200 {object} Response "回复或历史"
// @Failure 400 {object} Response "无效请求或未知用例"
// @Failure 404 {object} Response "会话不存在"
// @Failure 500 {object} Response "存储错误"
// @Security ApiKeyAuth
// @Router /api/http_trigger [post]
func (h *ConversationHandler) HandleTrigger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteErrorMessage(w, http.StatusMethodNotAllowed, types.ErrInvalidRequest, "method not allowed", h.logger)
		return
	}
	if !ValidateContentType(w, r, h.logger) {
		return
	}

	var req session.Request
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	h.serve(w, r, req)
}

// HandleListSessions 返回用户的全部会话，等价于 load_history 请求
// @Summary 历史会话
// @Tags 会话
// @Produce json
// @Param user_id path string true "用户 ID"
// @Param use_case query string true "用例"
// @Success 200 {object} Response "历史会话列表"
// @Failure 400 {object} Response "无效请求"
// @Security ApiKeyAuth
// @Router /api/v1/users/{user_id}/sessions [get]
func (h *ConversationHandler) HandleListSessions(w http.ResponseWriter, r *http.Request) {
	req := session.Request{
		UserID:      r.PathValue("user_id"),
		UseCase:     r.URL.Query().Get("use_case"),
		LoadHistory: true,
	}
	h.serve(w, r, req)
}

func (h *ConversationHandler) serve(w http.ResponseWriter, r *http.Request, req session.Request) {
	if !h.authorized(w, r, req.UserID) {
		return
	}

	start := time.Now()
	resp, err := h.service.HandleRequest(r.Context(), req)
	if err != nil {
		WriteErr(w, err, h.logger)
		return
	}

	if req.LoadHistory {
		WriteSuccess(w, resp.History)
		return
	}

	h.logger.Info("conversation turn",
		zap.String("user_id", req.UserID),
		zap.String("chat_id", resp.ChatID),
		zap.String("use_case", req.UseCase),
		zap.Duration("duration", time.Since(start)),
	)
	WriteSuccess(w, ConversationReply{ChatID: resp.ChatID, Reply: resp.Reply})
}

// authorized 校验已认证身份；未启用认证或请求未带身份时放行
func (h *ConversationHandler) authorized(w http.ResponseWriter, r *http.Request, userID string) bool {
	if h.claim == nil {
		return true
	}
	claimed, ok := h.claim(r.Context())
	if !ok || strings.TrimSpace(userID) == "" {
		return true
	}
	if claimed != userID {
		WriteErrorMessage(w, http.StatusForbidden, types.ErrForbidden, "user_id does not match the authenticated user", h.logger)
		return false
	}
	return true
}
