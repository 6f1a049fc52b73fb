package chat

import (
	"context"
	"log/slog"
	"sync"

	"github.com/zhouzirui/estate-desk/backend/internal/model/chat"
)

//go:generate mockgen -source=history.go -destination=../../mocks/mock_history.go -package=mocks

// HistoryFetcher reads a session's persisted backlog.
type HistoryFetcher interface {
	FetchHistory(ctx context.Context, sessionID string) ([]chat.Message, error)
}

// HistoryResult is what a finished fetch hands back to its caller.
type HistoryResult struct {
	SessionID string
	Messages  []chat.Message
	Err       error
}

// HistoryLoader fetches each session's backlog at most once for its lifetime.
// Fetches run in their own goroutine; the result is passed to deliver, which
// is expected to feed it back into the caller's serialized command queue.
// Failed fetches are not retried.
type HistoryLoader struct {
	mu      sync.Mutex
	log     *slog.Logger
	fetcher HistoryFetcher
	started Set
	wg      sync.WaitGroup
}

func NewHistoryLoader(log *slog.Logger, fetcher HistoryFetcher) *HistoryLoader {
	return &HistoryLoader{
		log:     log,
		fetcher: fetcher,
		started: make(Set),
	}
}

// Schedule starts the backlog fetch for sessionID unless one was already
// started. It reports whether a fetch was started.
func (l *HistoryLoader) Schedule(ctx context.Context, sessionID string, deliver func(HistoryResult)) bool {
	l.mu.Lock()
	if _, ok := l.started[sessionID]; ok {
		l.mu.Unlock()
		return false
	}
	l.started[sessionID] = struct{}{}
	l.mu.Unlock()

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		messages, err := l.fetcher.FetchHistory(ctx, sessionID)
		if err != nil {
			l.log.Error("History fetch failed", "session", sessionID, "error", err)
		} else {
			l.log.Debug("History fetched", "session", sessionID, "count", len(messages))
		}
		deliver(HistoryResult{SessionID: sessionID, Messages: messages, Err: err})
	}()
	return true
}

// Scheduled reports whether a fetch was ever started for sessionID.
func (l *HistoryLoader) Scheduled(sessionID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.started[sessionID]
	return ok
}

// Wait blocks until every started fetch has delivered.
func (l *HistoryLoader) Wait() {
	l.wg.Wait()
}
