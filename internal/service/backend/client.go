package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/zhouzirui/estate-desk/backend/internal/model/chat"
)

var ErrUnexpectedStatus = errors.New("unexpected status from chat backend")

const maxErrorBody = 512

// Options 聊天后端HTTP客户端配置
type Options struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Client talks to the chat backend's admin HTTP API: the session directory
// and per-session message history.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
	log     *slog.Logger
}

func NewClient(log *slog.Logger, opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		token:   opts.Token,
		client:  &http.Client{Timeout: timeout},
		log:     log,
	}
}

type directoryRow struct {
	SessionID    string        `json:"sessionId"`
	UserName     string        `json:"userName"`
	LastActivity chat.WireTime `json:"lastActivity"`
	Status       string        `json:"status"`
}

type historyRow struct {
	UserName string        `json:"userName"`
	Text     string        `json:"text"`
	Time     chat.WireTime `json:"time"`
}

// FetchDirectory 获取客服连接前已存在的会话列表，忽略没有会话ID的记录
func (c *Client) FetchDirectory(ctx context.Context) ([]chat.DirectoryEntry, error) {
	var rows []directoryRow
	if err := c.get(ctx, "/admin/sessions", &rows); err != nil {
		return nil, fmt.Errorf("fetch session directory: %w", err)
	}

	entries := lo.FilterMap(rows, func(row directoryRow, _ int) (chat.DirectoryEntry, bool) {
		if row.SessionID == "" {
			c.log.Warn("Directory row without session id skipped", "userName", row.UserName)
			return chat.DirectoryEntry{}, false
		}
		return chat.DirectoryEntry{
			SessionID:    row.SessionID,
			UserName:     row.UserName,
			LastActivity: string(row.LastActivity),
			Status:       row.Status,
		}, true
	})
	return entries, nil
}

// FetchHistory 获取单个会话的历史消息，按时间从早到晚排列
func (c *Client) FetchHistory(ctx context.Context, sessionID string) ([]chat.Message, error) {
	var rows []historyRow
	if err := c.get(ctx, "/messages/"+url.PathEscape(sessionID), &rows); err != nil {
		return nil, fmt.Errorf("fetch history for session %s: %w", sessionID, err)
	}

	return lo.Map(rows, func(row historyRow, _ int) chat.Message {
		return chat.Message{Sender: row.UserName, Text: row.Text, SentAt: string(row.Time)}
	}), nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%w: %s body=%s", ErrUnexpectedStatus, resp.Status, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
