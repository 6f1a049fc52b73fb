package inbox

import (
	"net/http"
	"time"

	inboxservice "github.com/zhouzirui/estate-desk/backend/internal/service/inbox"
	"github.com/zhouzirui/estate-desk/backend/pkg/utils"
)

const (
	eventSnapshot = "snapshot"
	eventError    = "error"
)

type errorPayload struct {
	Kind      inboxservice.ErrorKind `json:"kind"`
	SessionID string                 `json:"sessionId,omitempty"`
	Message   string                 `json:"message,omitempty"`
	At        time.Time              `json:"at"`
}

func newErrorPayload(e inboxservice.Error) errorPayload {
	payload := errorPayload{Kind: e.Kind, SessionID: e.SessionID, At: e.At}
	if e.Err != nil {
		payload.Message = e.Err.Error()
	}
	return payload
}

// handleStream 向客户端推送快照变化与错误事件，直到连接断开或收件箱停止
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	sub := h.inbox.Subscribe()
	defer h.inbox.Unsubscribe(sub.ID)

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	log := h.log.With("subscription", sub.ID)
	log.Debug("Stream opened")

	ticker := time.NewTicker(h.keepalive)
	defer ticker.Stop()

	for {
		var err error
		select {
		case <-ctx.Done():
			log.Debug("Stream closed by client")
			return
		case snapshot, ok := <-sub.Snapshots:
			if !ok {
				return
			}
			err = utils.SendSSEEvent(w, flusher, eventSnapshot, sessionsResponse{Sessions: snapshot})
		case e, ok := <-sub.Errors:
			if !ok {
				return
			}
			err = utils.SendSSEEvent(w, flusher, eventError, newErrorPayload(e))
		case <-ticker.C:
			err = utils.SendSSEComment(w, flusher, "keepalive")
		}
		if err != nil {
			log.Debug("Stream write failed", "error", err)
			return
		}
	}
}
