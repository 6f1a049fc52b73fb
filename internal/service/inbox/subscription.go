package inbox

import (
	"github.com/google/uuid"

	"github.com/zhouzirui/estate-desk/backend/internal/model/chat"
)

const errorBuffer = 16

// Subscription receives read-model updates. Snapshots is coalesced: a slow
// reader only ever sees the latest snapshot. Errors drops on overflow.
// Both channels are closed by Unsubscribe or when the inbox stops.
type Subscription struct {
	ID        string
	Snapshots <-chan []chat.SessionView
	Errors    <-chan Error

	snapshots chan []chat.SessionView
	errors    chan Error
}

func newSubscription() *Subscription {
	snapshots := make(chan []chat.SessionView, 1)
	errs := make(chan Error, errorBuffer)
	return &Subscription{
		ID:        uuid.NewString(),
		Snapshots: snapshots,
		Errors:    errs,
		snapshots: snapshots,
		errors:    errs,
	}
}

// offer replaces any unread snapshot with the latest one.
func (s *Subscription) offer(snapshot []chat.SessionView) {
	select {
	case <-s.snapshots:
	default:
	}
	select {
	case s.snapshots <- snapshot:
	default:
	}
}

func (s *Subscription) notify(e Error) bool {
	select {
	case s.errors <- e:
		return true
	default:
		return false
	}
}

func (s *Subscription) close() {
	close(s.snapshots)
	close(s.errors)
}
