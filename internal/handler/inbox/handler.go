package inbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/zhouzirui/estate-desk/backend/internal/model/chat"
	"github.com/zhouzirui/estate-desk/backend/internal/service/ai"
	chatservice "github.com/zhouzirui/estate-desk/backend/internal/service/chat"
	inboxservice "github.com/zhouzirui/estate-desk/backend/internal/service/inbox"
	"github.com/zhouzirui/estate-desk/backend/internal/service/realtime"
	"github.com/zhouzirui/estate-desk/backend/pkg/utils"
)

const maxDraftLength = 4000

var validate = validator.New()

type draftRequest struct {
	Text string `json:"text" validate:"max=4000"`
}

// Inbox 收件箱控制器面向客服的操作接口
type Inbox interface {
	Snapshot() []chat.SessionView
	Session(id string) (chat.SessionView, bool)
	Select(id string) error
	SetDraft(id, text string) error
	SendCurrentDraft(ctx context.Context, id string) error
	Subscribe() *inboxservice.Subscription
	Unsubscribe(id string)
}

// Assistant 回复草稿助手，可选
type Assistant interface {
	SuggestReply(ctx context.Context, session chat.SessionView) (string, error)
}

// Handler 收件箱的HTTP处理器
type Handler struct {
	log       *slog.Logger
	inbox     Inbox
	assistant Assistant
	keepalive time.Duration
}

// New 创建收件箱处理器，assistant 可以为 nil
func New(log *slog.Logger, inbox Inbox, assistant Assistant) *Handler {
	return &Handler{
		log:       log,
		inbox:     inbox,
		assistant: assistant,
		keepalive: 15 * time.Second,
	}
}

// RegisterRoutes 注册收件箱相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/sessions", h.handleListSessions)
	r.Route("/sessions/{sessionID}", func(r chi.Router) {
		r.Get("/", h.handleGetSession)
		r.Post("/select", h.handleSelect)
		r.Put("/draft", h.handleSetDraft)
		r.Post("/send", h.handleSend)
		r.Post("/suggest", h.handleSuggest)
	})
	r.Get("/stream", h.handleStream)
}

type sessionsResponse struct {
	Sessions []chat.SessionView `json:"sessions"`
}

func (h *Handler) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, sessionsResponse{Sessions: h.inbox.Snapshot()})
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	view, ok := h.inbox.Session(chi.URLParam(r, "sessionID"))
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "session not found")
		return
	}
	utils.RespondJSON(w, http.StatusOK, view)
}

func (h *Handler) handleSelect(w http.ResponseWriter, r *http.Request) {
	if err := h.inbox.Select(chi.URLParam(r, "sessionID")); err != nil {
		h.respondInboxError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSetDraft(w http.ResponseWriter, r *http.Request) {
	var payload draftRequest
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, fmt.Sprintf("draft longer than %d characters", maxDraftLength))
		return
	}

	if err := h.inbox.SetDraft(chi.URLParam(r, "sessionID"), payload.Text); err != nil {
		h.respondInboxError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	if err := h.inbox.SendCurrentDraft(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		h.respondInboxError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// handleSuggest 生成回复建议并保存为草稿
func (h *Handler) handleSuggest(w http.ResponseWriter, r *http.Request) {
	if h.assistant == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "reply suggestions unavailable")
		return
	}

	id := chi.URLParam(r, "sessionID")
	view, ok := h.inbox.Session(id)
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "session not found")
		return
	}

	suggestion, err := h.assistant.SuggestReply(r.Context(), view)
	switch {
	case errors.Is(err, ai.ErrNothingToAnswer):
		utils.RespondError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		h.log.Error("Reply suggestion failed", "session", id, "error", err)
		utils.RespondError(w, http.StatusBadGateway, "suggestion failed")
		return
	case strings.TrimSpace(suggestion) == "":
		utils.RespondError(w, http.StatusBadGateway, "empty suggestion")
		return
	}

	if err := h.inbox.SetDraft(id, suggestion); err != nil {
		h.respondInboxError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"suggestion": suggestion})
}

func (h *Handler) respondInboxError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chatservice.ErrSessionNotFound):
		utils.RespondError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, inboxservice.ErrEmptyDraft):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, inboxservice.ErrNotStarted),
		errors.Is(err, inboxservice.ErrStopped),
		errors.Is(err, realtime.ErrNotConnected):
		utils.RespondError(w, http.StatusServiceUnavailable, err.Error())
	default:
		h.log.Error("Inbox command failed", "error", err)
		utils.RespondError(w, http.StatusBadGateway, err.Error())
	}
}
