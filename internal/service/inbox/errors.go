package inbox

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotStarted     = errors.New("inbox not started")
	ErrAlreadyStarted = errors.New("inbox already started")
	ErrStopped        = errors.New("inbox stopped")
	ErrEmptyDraft     = errors.New("draft is empty")
)

// ErrorKind classifies failures surfaced to the presentation layer.
type ErrorKind uint8

const (
	ErrorTransportConnect ErrorKind = iota + 1
	ErrorTransportLost
	ErrorDirectoryFetch
	ErrorHistoryFetch
	ErrorUnknownSession
	ErrorJoinFailed
	ErrorSendFailed
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorTransportConnect:
		return "transport_connect"
	case ErrorTransportLost:
		return "transport_lost"
	case ErrorDirectoryFetch:
		return "directory_fetch"
	case ErrorHistoryFetch:
		return "history_fetch"
	case ErrorUnknownSession:
		return "unknown_session"
	case ErrorJoinFailed:
		return "join_failed"
	case ErrorSendFailed:
		return "send_failed"
	default:
		return "unknown"
	}
}

func (k ErrorKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Error is one failed operation. It never stops the inbox.
type Error struct {
	Kind      ErrorKind
	SessionID string
	Err       error
	At        time.Time
}

func (e Error) Error() string {
	if e.SessionID != "" {
		return fmt.Sprintf("%s (session %s): %v", e.Kind, e.SessionID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e Error) Unwrap() error {
	return e.Err
}
