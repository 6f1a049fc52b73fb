package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var ErrNotConnected = errors.New("transport not connected")

// Channel 维护与聊天服务端的一条鉴权长连接，断线后按退避策略重连，
// 并把收到的帧转换为 Event。事件不会被丢弃，消费慢时读循环随之变慢。
type Channel struct {
	opts   Options
	log    *slog.Logger
	events chan Event

	mu   sync.Mutex // guards conn and serializes writes
	conn *websocket.Conn
}

func NewChannel(log *slog.Logger, opts Options) *Channel {
	opts = opts.withDefaults()
	return &Channel{
		opts:   opts,
		log:    log,
		events: make(chan Event, opts.EventBuffer),
	}
}

// Events 返回归一化后的传输事件流。
func (c *Channel) Events() <-chan Event {
	return c.events
}

// Connected 表示当前是否已建立连接。
func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Run 建立连接并持续重连，直到 ctx 被取消。
func (c *Channel) Run(ctx context.Context) error {
	retry := newBackoff(c.opts.MinBackoff, c.opts.MaxBackoff)

	for {
		started := time.Now()
		err := c.session(ctx)
		if ctx.Err() != nil {
			c.log.Debug("Context done, stopping transport")
			return nil
		}
		if time.Since(started) >= c.opts.StableAfter {
			retry.Reset()
		}

		delay := retry.Next()
		c.log.Warn("Transport unavailable, reconnecting", "error", err, "in", delay)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}

// session 处理一次连接从建立到断开的全过程。
func (c *Channel) session(ctx context.Context) error {
	conn, err := dial(ctx, c.opts)
	if err != nil {
		c.emit(ctx, Event{Kind: KindConnectFailed, Err: err})
		return err
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.setConn(conn)
	defer c.dropConn(conn)

	go func() {
		<-sessionCtx.Done()
		_ = conn.Close()
	}()
	go keepalive(sessionCtx, conn, c.opts)

	c.log.Info("Transport connected", "url", c.opts.URL)
	if !c.emit(ctx, Event{Kind: KindConnected}) {
		return ctx.Err()
	}

	err = c.readLoop(ctx, conn)
	if ctx.Err() == nil {
		if isExpectedClose(err) {
			c.log.Info("Transport closed by server")
		}
		c.emit(ctx, Event{Kind: KindDisconnected, Err: err})
	}
	return err
}

func (c *Channel) readLoop(ctx context.Context, conn *websocket.Conn) error {
	extend := func() {
		_ = conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	}
	extend()
	conn.SetPongHandler(func(string) error {
		extend()
		return nil
	})

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		extend()

		evt, ok, err := DecodeEvent(frame)
		if err != nil {
			c.log.Warn("Dropping transport frame", "error", err)
			continue
		}
		if !ok {
			continue
		}
		if !c.emit(ctx, evt) {
			return ctx.Err()
		}
	}
}

// emit 将 evt 交给消费者，仅在 ctx 结束时放弃。
func (c *Channel) emit(ctx context.Context, evt Event) bool {
	select {
	case c.events <- evt:
		return true
	case <-ctx.Done():
		return false
	}
}

// JoinRoom 让客服加入会话房间。
func (c *Channel) JoinRoom(ctx context.Context, sessionID string) error {
	frame, err := EncodeJoinRoom(sessionID)
	if err != nil {
		return err
	}
	return c.write(ctx, EventAdminJoinRoom, frame)
}

// SendAsAdmin 以客服身份发送消息。发送后不等待确认，
// 消息在服务端回显后才会出现在会话中。
func (c *Channel) SendAsAdmin(ctx context.Context, sessionID, text string) error {
	frame, err := EncodeAdminMessage(sessionID, text)
	if err != nil {
		return err
	}
	return c.write(ctx, EventAdminMessage, frame)
}

func (c *Channel) write(ctx context.Context, event string, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return ErrNotConnected
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("write %s: %w", event, err)
	}
	return nil
}

func (c *Channel) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

func (c *Channel) dropConn(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
	_ = conn.Close()
}
