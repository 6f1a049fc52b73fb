package inbox

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zhouzirui/estate-desk/backend/internal/model/chat"
	chatservice "github.com/zhouzirui/estate-desk/backend/internal/service/chat"
	"github.com/zhouzirui/estate-desk/backend/internal/service/realtime"
)

// Channel 收件箱所依赖的实时传输通道
type Channel interface {
	Run(ctx context.Context) error
	Events() <-chan realtime.Event
	JoinRoom(ctx context.Context, sessionID string) error
	SendAsAdmin(ctx context.Context, sessionID, text string) error
}

// Controller 将所有访客会话汇聚到同一个客服收件箱。
//
// 会话注册表与在线状态只在单个 goroutine（actor 循环）中修改。传输事件、
// 目录与历史结果以及客服命令都会进入该循环，因此同一会话的历史回填与
// 实时消息总是经过同一条去重路径合并。
type Controller struct {
	log       *slog.Logger
	channel   Channel
	directory DirectoryFetcher
	registry  *chatservice.Registry
	presence  *chatservice.PresenceTracker
	history   *chatservice.HistoryLoader

	cmds    chan func()
	done    chan struct{}
	cancel  context.CancelFunc
	wg      sync.WaitGroup // transport and actor loop
	started atomic.Bool
	stop    sync.Once

	active atomic.Value // string, id of the selected session

	// owned by the actor loop
	dirty bool

	subsMu sync.Mutex
	subs   map[string]*Subscription
	closed bool
}

func NewController(log *slog.Logger, channel Channel, directory DirectoryFetcher, history chatservice.HistoryFetcher) *Controller {
	c := &Controller{
		log:       log,
		channel:   channel,
		directory: directory,
		registry:  chatservice.NewRegistry(log),
		presence:  chatservice.NewPresenceTracker(),
		history:   chatservice.NewHistoryLoader(log, history),
		cmds:      make(chan func()),
		done:      make(chan struct{}),
		subs:      make(map[string]*Subscription),
	}
	c.active.Store("")
	return c
}

// Start 建立传输连接并开始处理事件。调用立即返回，
// 收件箱持续运行直到调用 Stop 或 ctx 结束。
func (c *Controller) Start(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		if err := c.channel.Run(runCtx); err != nil {
			c.log.Error("Transport stopped", "error", err)
		}
	}()
	go func() {
		defer c.wg.Done()
		c.loop(runCtx)
	}()
	return nil
}

// Stop 断开传输连接并停止处理事件。进行中的拉取与加入房间请求通过 ctx
// 取消但不会等待，循环退出后返回的结果一律丢弃。所有订阅都会被关闭。
func (c *Controller) Stop() {
	if !c.started.Load() {
		return
	}
	c.stop.Do(func() {
		c.cancel()
		c.wg.Wait()

		c.subsMu.Lock()
		c.closed = true
		for id, sub := range c.subs {
			sub.close()
			delete(c.subs, id)
		}
		c.subsMu.Unlock()
		c.log.Info("Inbox stopped")
	})
}

func (c *Controller) loop(ctx context.Context) {
	defer close(c.done)
	events := c.channel.Events()

	for {
		select {
		case <-ctx.Done():
			c.log.Debug("Context done, stopping inbox loop")
			return
		case fn := <-c.cmds:
			fn()
		case evt := <-events:
			c.handleEvent(ctx, evt)
		}
		if c.dirty {
			c.dirty = false
			c.publish()
		}
	}
}

func (c *Controller) handleEvent(ctx context.Context, evt realtime.Event) {
	c.log.Debug("Transport event", "kind", evt.Kind, "session", evt.SessionID)

	switch evt.Kind {
	case realtime.KindConnected:
		c.rejoinAll(ctx)
		c.refreshDirectory(ctx)
	case realtime.KindSessionAnnounced:
		// the operator is not in this room yet, even if the session is known
		if !c.track(ctx, evt.SessionID, evt.DisplayName) {
			c.joinRooms(ctx, evt.SessionID)
		}
	case realtime.KindRoster:
		c.applyRoster(evt.Roster)
	case realtime.KindMessage:
		name := evt.Message.Sender
		if evt.Message.FromOperator() {
			name = ""
		}
		c.track(ctx, evt.SessionID, name)
		c.appendMessage(evt.SessionID, evt.Message)
	case realtime.KindDisconnected:
		c.report(Error{Kind: ErrorTransportLost, Err: evt.Err})
	case realtime.KindConnectFailed:
		c.report(Error{Kind: ErrorTransportConnect, Err: evt.Err})
	}
}

// track makes sure a session exists and reports whether it was created. A
// session seen for the first time is joined and gets its backlog requested,
// whichever way it was discovered.
func (c *Controller) track(ctx context.Context, id, displayName string) bool {
	if _, created := c.registry.Ensure(id, displayName); !created {
		return false
	}
	c.dirty = true
	c.log.Info("Session registered", "session", id)

	if c.presence.IsOnline(id) {
		_ = c.registry.SetOnline(id, true)
	}
	c.joinRooms(ctx, id)
	c.history.Schedule(ctx, id, c.deliverHistory)
	return true
}

// joinRooms sends the joins from a helper goroutine so a stalled socket
// never holds up the loop. Failures come back through submit.
func (c *Controller) joinRooms(ctx context.Context, ids ...string) {
	if len(ids) == 0 {
		return
	}
	go func() {
		for _, id := range ids {
			if ctx.Err() != nil {
				return
			}
			if err := c.channel.JoinRoom(ctx, id); err != nil {
				c.submit(func() { c.report(Error{Kind: ErrorJoinFailed, SessionID: id, Err: err}) })
			}
		}
	}()
}

func (c *Controller) rejoinAll(ctx context.Context) {
	c.joinRooms(ctx, c.registry.IDs()...)
}

func (c *Controller) refreshDirectory(ctx context.Context) {
	go func() {
		entries, err := c.directory.FetchDirectory(ctx)
		c.submit(func() { c.applyDirectory(ctx, entries, err) })
	}()
}

func (c *Controller) applyDirectory(ctx context.Context, entries []chat.DirectoryEntry, err error) {
	if err != nil {
		c.report(Error{Kind: ErrorDirectoryFetch, Err: err})
		return
	}
	c.log.Debug("Directory loaded", "count", len(entries))
	for _, entry := range entries {
		c.track(ctx, entry.SessionID, entry.UserName)
	}
}

// deliverHistory runs on the loader's goroutine.
func (c *Controller) deliverHistory(res chatservice.HistoryResult) {
	c.submit(func() { c.applyHistory(res) })
}

func (c *Controller) applyHistory(res chatservice.HistoryResult) {
	if res.Err != nil {
		c.report(Error{Kind: ErrorHistoryFetch, SessionID: res.SessionID, Err: res.Err})
		return
	}
	for _, msg := range res.Messages {
		c.appendMessage(res.SessionID, msg)
	}
	if err := c.registry.MarkHistoryLoaded(res.SessionID); err == nil {
		c.dirty = true
	}
}

func (c *Controller) appendMessage(id string, msg chat.Message) {
	appended, err := c.registry.AppendMessage(id, msg)
	if err != nil {
		c.report(Error{Kind: ErrorUnknownSession, SessionID: id, Err: err})
		return
	}
	if !appended {
		return
	}
	c.dirty = true
	if id == c.activeID() && !msg.FromOperator() {
		_ = c.registry.MarkRead(id)
	}
}

func (c *Controller) applyRoster(roster []string) {
	cameOnline, wentOffline := c.presence.Replace(roster)
	for _, id := range cameOnline {
		if c.registry.Has(id) {
			_ = c.registry.SetOnline(id, true)
			c.dirty = true
		}
	}
	for _, id := range wentOffline {
		if c.registry.Has(id) {
			_ = c.registry.SetOnline(id, false)
			c.dirty = true
		}
	}
}

// submit queues fn on the actor loop without waiting. fn is dropped once
// the loop has exited.
func (c *Controller) submit(fn func()) {
	select {
	case c.cmds <- fn:
	case <-c.done:
	}
}

// do runs fn on the actor loop and waits for its result.
func (c *Controller) do(fn func() error) error {
	if !c.started.Load() {
		return ErrNotStarted
	}
	errc := make(chan error, 1)
	select {
	case c.cmds <- func() { errc <- fn() }:
	case <-c.done:
		return ErrStopped
	}
	select {
	case err := <-errc:
		return err
	case <-c.done:
		select {
		case err := <-errc:
			return err
		default:
			return ErrStopped
		}
	}
}

func (c *Controller) activeID() string {
	return c.active.Load().(string)
}

// Select 打开会话并清除未读标记
func (c *Controller) Select(id string) error {
	return c.do(func() error {
		if err := c.registry.MarkRead(id); err != nil {
			c.report(Error{Kind: ErrorUnknownSession, SessionID: id, Err: err})
			return err
		}
		c.active.Store(id)
		c.dirty = true
		return nil
	})
}

// SetDraft 保存会话的待发送草稿
func (c *Controller) SetDraft(id, text string) error {
	return c.do(func() error {
		if err := c.registry.SetDraft(id, text); err != nil {
			c.report(Error{Kind: ErrorUnknownSession, SessionID: id, Err: err})
			return err
		}
		c.dirty = true
		return nil
	})
}

// SendCurrentDraft 以客服身份发送会话草稿并清空草稿。消息不会在本地追加，
// 服务端回显后才会出现。发送期间被修改过的草稿会保留。
func (c *Controller) SendCurrentDraft(ctx context.Context, id string) error {
	var draft string
	err := c.do(func() error {
		text, ok := c.registry.Draft(id)
		if !ok {
			c.report(Error{Kind: ErrorUnknownSession, SessionID: id, Err: chatservice.ErrSessionNotFound})
			return chatservice.ErrSessionNotFound
		}
		draft = text
		return nil
	})
	if err != nil {
		return err
	}
	if strings.TrimSpace(draft) == "" {
		return ErrEmptyDraft
	}

	if err := c.channel.SendAsAdmin(ctx, id, draft); err != nil {
		c.report(Error{Kind: ErrorSendFailed, SessionID: id, Err: err})
		return fmt.Errorf("send draft: %w", err)
	}

	return c.do(func() error {
		if current, ok := c.registry.Draft(id); ok && current == draft {
			_ = c.registry.SetDraft(id, "")
			c.dirty = true
		}
		return nil
	})
}

// Snapshot 返回排好序的全部会话视图
func (c *Controller) Snapshot() []chat.SessionView {
	return c.registry.Snapshot(c.activeID())
}

// Session 返回单个会话视图
func (c *Controller) Session(id string) (chat.SessionView, bool) {
	view, ok := c.registry.Get(id)
	if !ok {
		return chat.SessionView{}, false
	}
	view.Active = id == c.activeID()
	return view, true
}

// Subscribe 订阅快照变化与错误事件，当前快照会立即推送
func (c *Controller) Subscribe() *Subscription {
	sub := newSubscription()

	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	if c.closed {
		sub.close()
		return sub
	}
	c.subs[sub.ID] = sub
	sub.offer(c.Snapshot())
	return sub
}

// Unsubscribe 关闭并移除订阅
func (c *Controller) Unsubscribe(id string) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	if sub, ok := c.subs[id]; ok {
		sub.close()
		delete(c.subs, id)
	}
}

func (c *Controller) publish() {
	snapshot := c.Snapshot()

	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	for _, sub := range c.subs {
		sub.offer(snapshot)
	}
}

// report logs e and fans it out to subscribers without blocking.
func (c *Controller) report(e Error) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	c.log.Warn("Inbox operation failed", "kind", e.Kind, "session", e.SessionID, "error", e.Err)

	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	for _, sub := range c.subs {
		if !sub.notify(e) {
			c.log.Debug("Error event lost for slow subscriber", "subscription", sub.ID)
		}
	}
}
