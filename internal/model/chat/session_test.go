package chat

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSession_Append_Skips_Duplicate_Keeps_First_Position(t *testing.T) {
	req := require.New(t)
	s := NewSession("s1", "Ali")
	hi := Message{Sender: "Ali", Text: "hi", SentAt: "10:00"}
	there := Message{Sender: "Ali", Text: "there", SentAt: "10:01"}

	req.True(s.Append(hi))
	req.True(s.Append(there))
	// Not the tail any more, so the index has to catch it
	req.False(s.Append(hi))
	req.False(s.Append(there))

	req.Equal([]Message{hi, there}, s.Messages)
}

func TestSession_Append_Same_Text_Different_Time_Is_New(t *testing.T) {
	req := require.New(t)
	s := NewSession("s1", "Ali")

	req.True(s.Append(Message{Sender: "Ali", Text: "ok", SentAt: "10:00"}))
	req.True(s.Append(Message{Sender: "Ali", Text: "ok", SentAt: "10:02"}))
	req.True(s.Append(Message{Sender: "Admin", Text: "ok", SentAt: "10:02"}))

	req.Len(s.Messages, 3)
}

func TestSession_Append_Operator_Message_Leaves_Unread_Alone(t *testing.T) {
	req := require.New(t)
	s := NewSession("s1", "Ali")

	s.Append(Message{Sender: AdminSender, Text: "hello", SentAt: "09:59"})
	req.False(s.HasUnread)

	s.Append(Message{Sender: "Ali", Text: "hi", SentAt: "10:00"})
	req.True(s.HasUnread)

	// a duplicate does not touch the flag
	s.Append(Message{Sender: "Ali", Text: "hi", SentAt: "10:00"})
	req.True(s.HasUnread)

	s.Append(Message{Sender: AdminSender, Text: "how can I help?", SentAt: "10:01"})
	req.True(s.HasUnread)
}

func TestSession_View_Copies_Messages(t *testing.T) {
	req := require.New(t)
	s := NewSession("s1", "Ali")
	s.Append(Message{Sender: "Ali", Text: "hi", SentAt: "10:00"})

	view := s.View(true)
	view.Messages[0].Text = "changed"

	req.Equal("hi", s.Messages[0].Text)
	req.True(view.Active)
}
