package chat

import (
	"cmp"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/samber/lo"

	"github.com/zhouzirui/estate-desk/backend/internal/model/chat"
)

var ErrSessionNotFound = errors.New("session not found")

// Registry owns every visitor session known to the inbox.
// All mutation goes through its methods so the dedup and presence
// invariants live in one place.
type Registry struct {
	mu       sync.RWMutex
	log      *slog.Logger
	sessions map[string]*chat.Session
}

// NewRegistry returns an empty registry. Operations on unknown sessions are
// reported to log.
func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		log:      log,
		sessions: make(map[string]*chat.Session),
	}
}

// Ensure returns the session with the given id, creating it when absent.
// An existing session is returned untouched: its name and messages are
// never reset. created reports whether a new session was made.
func (r *Registry) Ensure(id, displayName string) (view chat.SessionView, created bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[id]; ok {
		return s.View(false), false
	}
	if displayName == "" {
		displayName = id
	}
	s := chat.NewSession(id, displayName)
	r.sessions[id] = s
	return s.View(false), true
}

// AppendMessage adds msg to the session unless an equal utterance is already
// there. The duplicate check and the append happen under one lock.
func (r *Registry) AppendMessage(id string, msg chat.Message) (appended bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		r.unknown("append message", id)
		return false, ErrSessionNotFound
	}
	return s.Append(msg), nil
}

// SetOnline updates the presence flag.
func (r *Registry) SetOnline(id string, online bool) error {
	return r.update("set online", id, func(s *chat.Session) { s.IsOnline = online })
}

// MarkRead clears the unread flag.
func (r *Registry) MarkRead(id string) error {
	return r.update("mark read", id, func(s *chat.Session) { s.HasUnread = false })
}

// SetDraft stores the operator's pending input for the session.
func (r *Registry) SetDraft(id, text string) error {
	return r.update("set draft", id, func(s *chat.Session) { s.Draft = text })
}

// MarkHistoryLoaded records that the backlog has been merged.
func (r *Registry) MarkHistoryLoaded(id string) error {
	return r.update("mark history loaded", id, func(s *chat.Session) { s.HistoryLoaded = true })
}

// Get returns the read-model of one session.
func (r *Registry) Get(id string) (chat.SessionView, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return chat.SessionView{}, false
	}
	return s.View(false), true
}

// Has reports whether the session is known.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[id]
	return ok
}

// Draft returns the pending operator input of a session.
func (r *Registry) Draft(id string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return "", false
	}
	return s.Draft, true
}

// IDs lists every known session id in no particular order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Keys(r.sessions)
}

// Len returns the number of sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Snapshot returns every session ordered for display: online and unread
// first, then by id. active marks the selected session.
func (r *Registry) Snapshot(active string) []chat.SessionView {
	r.mu.RLock()
	views := lo.MapToSlice(r.sessions, func(id string, s *chat.Session) chat.SessionView {
		return s.View(id == active)
	})
	r.mu.RUnlock()

	slices.SortFunc(views, func(a, b chat.SessionView) int {
		if c := cmp.Compare(rank(a.IsOnline), rank(b.IsOnline)); c != 0 {
			return c
		}
		if c := cmp.Compare(rank(a.HasUnread), rank(b.HasUnread)); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return views
}

// rank orders true before false.
func rank(b bool) int {
	if b {
		return 0
	}
	return 1
}

func (r *Registry) update(op, id string, fn func(s *chat.Session)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		r.unknown(op, id)
		return ErrSessionNotFound
	}
	fn(s)
	return nil
}

func (r *Registry) unknown(op, id string) {
	r.log.Warn("Operation on unknown session skipped", "op", op, "session", id)
}
