package chat

// AdminSender is the sender name the transport uses for operator-authored messages.
const AdminSender = "Admin"

// Message is a single chat utterance as observed by the operator.
// SentAt is the timestamp text reported by the transport or history service,
// kept verbatim so equality never depends on parsing.
type Message struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
	SentAt string `json:"sentAt"`
}

// FromOperator reports whether the message was authored by the admin side.
func (m Message) FromOperator() bool {
	return m.Sender == AdminSender
}

// messageKey identifies an utterance for deduplication.
type messageKey struct {
	sender string
	text   string
	sentAt string
}

func (m Message) key() messageKey {
	return messageKey{sender: m.Sender, text: m.Text, sentAt: m.SentAt}
}

// DirectoryEntry is one row of the session directory listing.
type DirectoryEntry struct {
	SessionID    string `json:"sessionId"`
	UserName     string `json:"userName"`
	LastActivity string `json:"lastActivity,omitempty"`
	Status       string `json:"status,omitempty"`
}
