package chat

// Session is one visitor conversation tracked by the inbox.
// Messages is append-only and never holds two equal utterances.
type Session struct {
	ID            string
	DisplayName   string
	Messages      []Message
	IsOnline      bool
	HasUnread     bool
	Draft         string
	HistoryLoaded bool

	seen map[messageKey]struct{}
}

// NewSession returns an empty, offline, read session.
func NewSession(id, displayName string) *Session {
	return &Session{
		ID:          id,
		DisplayName: displayName,
		Messages:    make([]Message, 0, 16),
		seen:        make(map[messageKey]struct{}),
	}
}

// Contains reports whether an equal utterance is already in the session.
// The last message is compared first since re-delivery of the newest
// message is by far the most common duplicate.
func (s *Session) Contains(m Message) bool {
	if n := len(s.Messages); n > 0 && s.Messages[n-1] == m {
		return true
	}
	_, ok := s.seen[m.key()]
	return ok
}

// Append adds m unless an equal utterance is already present.
// It reports whether the message was appended. A visitor message flags the
// session unread; operator messages leave the flag untouched.
func (s *Session) Append(m Message) bool {
	if s.Contains(m) {
		return false
	}
	if s.seen == nil {
		s.seen = make(map[messageKey]struct{})
	}
	s.seen[m.key()] = struct{}{}
	s.Messages = append(s.Messages, m)
	if !m.FromOperator() {
		s.HasUnread = true
	}
	return true
}

// View copies the session into its read-model form.
func (s *Session) View(active bool) SessionView {
	messages := make([]Message, len(s.Messages))
	copy(messages, s.Messages)
	return SessionView{
		ID:            s.ID,
		DisplayName:   s.DisplayName,
		Messages:      messages,
		IsOnline:      s.IsOnline,
		HasUnread:     s.HasUnread,
		Draft:         s.Draft,
		HistoryLoaded: s.HistoryLoaded,
		Active:        active,
	}
}

// SessionView is the presentation-ready snapshot of a Session.
type SessionView struct {
	ID            string    `json:"id"`
	DisplayName   string    `json:"displayName"`
	Messages      []Message `json:"messages"`
	IsOnline      bool      `json:"isOnline"`
	HasUnread     bool      `json:"hasUnread"`
	Draft         string    `json:"draft"`
	HistoryLoaded bool      `json:"historyLoaded"`
	Active        bool      `json:"active"`
}
