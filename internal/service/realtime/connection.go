package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

// Options 传输连接配置
type Options struct {
	URL              string        // ws:// or wss:// endpoint of the chat server
	Token            string        // operator token sent at connect time
	TokenParam       string        // if set, the token is also passed as this query parameter
	HandshakeTimeout time.Duration // dial + upgrade timeout
	WriteTimeout     time.Duration // per-frame write deadline
	PongWait         time.Duration // read deadline, refreshed by any frame or pong
	PingInterval     time.Duration // keepalive period, must be below PongWait
	MaxMessageSize   int64         // inbound frame limit in bytes
	MinBackoff       time.Duration // first reconnect delay
	MaxBackoff       time.Duration // reconnect delay cap
	StableAfter      time.Duration // a connection up this long resets the backoff
	EventBuffer      int           // capacity of the Events channel
}

// DefaultOptions 返回未配置时使用的默认连接参数
func DefaultOptions() Options {
	return Options{
		HandshakeTimeout: 15 * time.Second,
		WriteTimeout:     10 * time.Second,
		PongWait:         60 * time.Second,
		PingInterval:     54 * time.Second,
		MaxMessageSize:   64 << 10,
		MinBackoff:       2 * time.Second,
		MaxBackoff:       30 * time.Second,
		StableAfter:      60 * time.Second,
		EventBuffer:      256,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = d.HandshakeTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = d.WriteTimeout
	}
	if o.PongWait <= 0 {
		o.PongWait = d.PongWait
	}
	if o.PingInterval <= 0 || o.PingInterval >= o.PongWait {
		o.PingInterval = o.PongWait * 9 / 10
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = d.MaxMessageSize
	}
	if o.MinBackoff <= 0 {
		o.MinBackoff = d.MinBackoff
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = d.MaxBackoff
	}
	if o.StableAfter <= 0 {
		o.StableAfter = d.StableAfter
	}
	if o.EventBuffer <= 0 {
		o.EventBuffer = d.EventBuffer
	}
	return o
}

// dial 建立一条带鉴权的 WebSocket 连接
func dial(ctx context.Context, opts Options) (*websocket.Conn, error) {
	target, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid transport url: %w", err)
	}
	if opts.TokenParam != "" && opts.Token != "" {
		q := target.Query()
		q.Set(opts.TokenParam, opts.Token)
		target.RawQuery = q.Encode()
	}

	header := http.Header{}
	if opts.Token != "" {
		header.Set("Authorization", "Bearer "+opts.Token)
	}

	dialer := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: opts.HandshakeTimeout,
	}

	conn, resp, err := dialer.DialContext(ctx, target.String(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial failed (%s): %w", resp.Status, err)
		}
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	conn.SetReadLimit(opts.MaxMessageSize)
	return conn, nil
}

// keepalive 定期发送ping消息，直到 ctx 结束或写入失败
func keepalive(ctx context.Context, conn *websocket.Conn, opts Options) {
	ticker := time.NewTicker(opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deadline := time.Now().Add(opts.WriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

// isExpectedClose 判断 err 是否为正常关闭
func isExpectedClose(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}
