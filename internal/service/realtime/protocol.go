package realtime

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zhouzirui/estate-desk/backend/internal/model/chat"
)

// Transport event names.
const (
	EventConnect        = "connect"
	EventRoomList       = "roomList"
	EventNewUserMessage = "newUserMessage"
	EventMessage        = "message"
	EventAdminJoinRoom  = "adminJoinRoom"
	EventAdminMessage   = "adminMessage"
)

var (
	ErrUnknownEvent   = errors.New("unknown transport event")
	ErrMalformedEvent = errors.New("malformed transport event")
)

// Envelope is the JSON frame exchanged with the transport server.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type roomListPayload struct {
	Rooms []string `json:"rooms"`
}

type newUserMessagePayload struct {
	SessionID string `json:"sessionId"`
	UserName  string `json:"userName"`
}

// messagePayload accepts both spellings the chat server has used for the
// room and sender fields.
type messagePayload struct {
	Room      string        `json:"room"`
	SessionID string        `json:"sessionId"`
	Name      string        `json:"name"`
	UserName  string        `json:"userName"`
	Text      string        `json:"text"`
	Time      chat.WireTime `json:"time"`
}

func (p messagePayload) sessionID() string {
	if p.SessionID != "" {
		return p.SessionID
	}
	return p.Room
}

func (p messagePayload) sender() string {
	if p.UserName != "" {
		return p.UserName
	}
	return p.Name
}

type joinRoomPayload struct {
	Room string `json:"room"`
}

type adminMessagePayload struct {
	Room string `json:"room"`
	Text string `json:"text"`
}

// DecodeEvent turns one inbound frame into an Event. ok is false for frames
// that carry nothing the inbox acts on.
func DecodeEvent(frame []byte) (evt Event, ok bool, err error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Event{}, false, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	switch env.Event {
	case EventConnect:
		// The dialer already reports the connection.
		return Event{}, false, nil

	case EventRoomList:
		var p roomListPayload
		if err := decodeData(env, &p); err != nil {
			return Event{}, false, err
		}
		return Event{Kind: KindRoster, Roster: p.Rooms}, true, nil

	case EventNewUserMessage:
		var p newUserMessagePayload
		if err := decodeData(env, &p); err != nil {
			return Event{}, false, err
		}
		if p.SessionID == "" {
			return Event{}, false, fmt.Errorf("%w: %s without sessionId", ErrMalformedEvent, env.Event)
		}
		return Event{Kind: KindSessionAnnounced, SessionID: p.SessionID, DisplayName: p.UserName}, true, nil

	case EventMessage:
		var p messagePayload
		if err := decodeData(env, &p); err != nil {
			return Event{}, false, err
		}
		if p.sessionID() == "" {
			return Event{}, false, fmt.Errorf("%w: %s without room", ErrMalformedEvent, env.Event)
		}
		return Event{
			Kind:      KindMessage,
			SessionID: p.sessionID(),
			Message:   chat.Message{Sender: p.sender(), Text: p.Text, SentAt: string(p.Time)},
		}, true, nil

	default:
		return Event{}, false, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
}

func decodeData(env Envelope, out any) error {
	if len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedEvent, env.Event, err)
	}
	return nil
}

func encodeFrame(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}

// EncodeJoinRoom builds the frame that subscribes the operator to a session room.
func EncodeJoinRoom(sessionID string) ([]byte, error) {
	return encodeFrame(EventAdminJoinRoom, joinRoomPayload{Room: sessionID})
}

// EncodeAdminMessage builds the frame that publishes an operator message.
func EncodeAdminMessage(sessionID, text string) ([]byte, error) {
	return encodeFrame(EventAdminMessage, adminMessagePayload{Room: sessionID, Text: text})
}
