package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/estate-desk/backend/internal/model/chat"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// transportServer accepts operator connections. The first connection gets a
// roster and one message once the operator joins a room, then is closed by
// the server. Later connections stay open until the client leaves.
func transportServer(t *testing.T, joined chan<- string) (string, *atomic.Int32) {
	t.Helper()
	var connections atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer operator-token" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		if connections.Add(1) > 1 {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}

		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			return
		}
		var join joinRoomPayload
		_ = json.Unmarshal(env.Data, &join)
		joined <- env.Event + ":" + join.Room

		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"roomList","data":{"rooms":["s1"]}}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"bogus"}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"message","data":{"room":"s1","name":"Ali","text":"hi","time":"10:00"}}`))
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http"), &connections
}

func nextEvent(t *testing.T, ch *Channel) Event {
	t.Helper()
	select {
	case evt := <-ch.Events():
		return evt
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for transport event")
		return Event{}
	}
}

func TestChannel_Delivers_Events_And_Reconnects(t *testing.T) {
	req := require.New(t)
	joined := make(chan string, 1)
	url, connections := transportServer(t, joined)

	ch := NewChannel(slog.New(slog.DiscardHandler), Options{
		URL:        url,
		Token:      "operator-token",
		MinBackoff: 10 * time.Millisecond,
		MaxBackoff: 20 * time.Millisecond,
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = ch.Run(ctx) }()

	req.Equal(KindConnected, nextEvent(t, ch).Kind)
	req.True(ch.Connected())
	req.NoError(ch.JoinRoom(ctx, "s1"))
	req.Equal(EventAdminJoinRoom+":s1", <-joined)

	roster := nextEvent(t, ch)
	req.Equal(KindRoster, roster.Kind)
	req.Equal([]string{"s1"}, roster.Roster)

	msg := nextEvent(t, ch)
	req.Equal(KindMessage, msg.Kind)
	req.Equal("s1", msg.SessionID)
	req.Equal(chat.Message{Sender: "Ali", Text: "hi", SentAt: "10:00"}, msg.Message)

	req.Equal(KindDisconnected, nextEvent(t, ch).Kind)
	req.Equal(KindConnected, nextEvent(t, ch).Kind)
	req.Equal(int32(2), connections.Load())
}

func TestChannel_Reports_Rejected_Handshake(t *testing.T) {
	req := require.New(t)
	url, _ := transportServer(t, make(chan string, 1))

	ch := NewChannel(slog.New(slog.DiscardHandler), Options{
		URL:        url,
		Token:      "stolen",
		MinBackoff: time.Hour,
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = ch.Run(ctx) }()

	evt := nextEvent(t, ch)
	req.Equal(KindConnectFailed, evt.Kind)
	req.ErrorIs(evt.Err, websocket.ErrBadHandshake)
	req.ErrorIs(ch.SendAsAdmin(ctx, "s1", "hello"), ErrNotConnected)
}
