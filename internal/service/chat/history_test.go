package chat

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/zhouzirui/estate-desk/backend/internal/mocks"
	"github.com/zhouzirui/estate-desk/backend/internal/model/chat"
)

func TestHistoryLoader_Fetches_Once_Per_Session(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	fetcher := mocks.NewMockHistoryFetcher(ctrl)
	backlog := []chat.Message{{Sender: "Ali", Text: "hi", SentAt: "10:00"}}
	fetcher.EXPECT().FetchHistory(gomock.Any(), "s1").Return(backlog, nil).Times(1)

	loader := NewHistoryLoader(slog.New(slog.DiscardHandler), fetcher)
	results := make(chan HistoryResult, 2)
	deliver := func(r HistoryResult) { results <- r }

	req.True(loader.Schedule(context.Background(), "s1", deliver))
	req.False(loader.Schedule(context.Background(), "s1", deliver))
	loader.Wait()

	req.Len(results, 1)
	got := <-results
	req.Equal("s1", got.SessionID)
	req.Equal(backlog, got.Messages)
	req.NoError(got.Err)
	req.True(loader.Scheduled("s1"))
	req.False(loader.Scheduled("s2"))
}

func TestHistoryLoader_Failure_Is_Delivered_And_Not_Retried(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	fetcher := mocks.NewMockHistoryFetcher(ctrl)
	boom := errors.New("503 service unavailable")
	fetcher.EXPECT().FetchHistory(gomock.Any(), "s1").Return(nil, boom).Times(1)

	loader := NewHistoryLoader(slog.New(slog.DiscardHandler), fetcher)
	results := make(chan HistoryResult, 2)
	deliver := func(r HistoryResult) { results <- r }

	loader.Schedule(context.Background(), "s1", deliver)
	loader.Wait()
	req.False(loader.Schedule(context.Background(), "s1", deliver))

	got := <-results
	req.ErrorIs(got.Err, boom)
	req.Empty(got.Messages)
}
