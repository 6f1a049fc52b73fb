package realtime

import "github.com/zhouzirui/estate-desk/backend/internal/model/chat"

// Kind classifies what the channel observed.
type Kind uint8

const (
	// KindConnected fires after every successful (re)connect.
	KindConnected Kind = iota + 1
	// KindSessionAnnounced is a visitor session the operator has not joined yet.
	KindSessionAnnounced
	// KindRoster carries the complete set of online session ids.
	KindRoster
	// KindMessage is one chat utterance in a joined room.
	KindMessage
	// KindDisconnected fires when an established connection drops.
	KindDisconnected
	// KindConnectFailed fires when a dial attempt fails.
	KindConnectFailed
)

func (k Kind) String() string {
	switch k {
	case KindConnected:
		return "connected"
	case KindSessionAnnounced:
		return "session_announced"
	case KindRoster:
		return "roster"
	case KindMessage:
		return "message"
	case KindDisconnected:
		return "disconnected"
	case KindConnectFailed:
		return "connect_failed"
	default:
		return "unknown"
	}
}

// Event is the channel's normalized view of transport traffic.
type Event struct {
	Kind        Kind
	SessionID   string
	DisplayName string
	Roster      []string
	Message     chat.Message
	Err         error
}
