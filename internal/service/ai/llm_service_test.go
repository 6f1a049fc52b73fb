package ai

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/estate-desk/backend/internal/model/chat"
)

type fakeChatModel struct {
	reply string
	err   error
	input []*schema.Message
}

func (f *fakeChatModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.input = input
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.reply, nil), nil
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := f.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func newTestService(t *testing.T, fake *fakeChatModel, historyLimit int) *Service {
	t.Helper()
	svc, err := NewServiceWithModel(t.Context(), slog.New(slog.DiscardHandler), fake, historyLimit)
	require.NoError(t, err)
	return svc
}

func TestSuggestReply(t *testing.T) {
	req := require.New(t)
	fake := &fakeChatModel{reply: "  Yes, the flat is still available. Would Tuesday suit you?  "}
	svc := newTestService(t, fake, 2)
	session := chat.SessionView{
		ID:          "s1",
		DisplayName: "Sara",
		Draft:       "yes its free",
		Messages: []chat.Message{
			{Sender: "Sara", Text: "Hello", SentAt: "09:00"},
			{Sender: chat.AdminSender, Text: "Hi Sara", SentAt: "09:01"},
			{Sender: "Sara", Text: "Is the flat on Elm St available?", SentAt: "09:02"},
		},
	}

	suggestion, err := svc.SuggestReply(t.Context(), session)

	req.NoError(err)
	req.Equal("Yes, the flat is still available. Would Tuesday suit you?", suggestion)

	// system + two history turns + instruction
	req.Len(fake.input, 4)
	req.Equal(schema.System, fake.input[0].Role)
	req.Equal(schema.Assistant, fake.input[1].Role)
	req.Equal("Hi Sara", fake.input[1].Content)
	req.Equal(schema.User, fake.input[2].Role)
	req.Equal("Is the flat on Elm St available?", fake.input[2].Content)
	req.Contains(fake.input[3].Content, "Sara")
	req.Contains(fake.input[3].Content, "yes its free")
}

func TestSuggestReply_Empty_Session(t *testing.T) {
	svc := newTestService(t, &fakeChatModel{reply: "unused"}, 0)

	_, err := svc.SuggestReply(t.Context(), chat.SessionView{ID: "s1"})

	require.ErrorIs(t, err, ErrNothingToAnswer)
}

func TestSuggestReply_Model_Failure(t *testing.T) {
	boom := errors.New("quota exceeded")
	svc := newTestService(t, &fakeChatModel{err: boom}, 0)

	_, err := svc.SuggestReply(t.Context(), chat.SessionView{
		ID:       "s1",
		Messages: []chat.Message{{Sender: "Ali", Text: "hi", SentAt: "10:00"}},
	})

	require.ErrorContains(t, err, boom.Error())
}

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		name     string
		messages []chat.Message
		want     string
	}{
		{
			name:     "no visitor text",
			messages: []chat.Message{{Sender: chat.AdminSender, Text: "Hello, how can I help you today?"}},
			want:     unknownLanguage,
		},
		{
			name: "english",
			messages: []chat.Message{
				{Sender: "Sara", Text: "Good morning, I would like to know whether the apartment near the river is still available for rent next month."},
				{Sender: chat.AdminSender, Text: "Здравствуйте"},
			},
			want: "en",
		},
		{
			name: "russian",
			messages: []chat.Message{
				{Sender: "Oleg", Text: "Здравствуйте, я хотел бы узнать, свободна ли ещё квартира в центре города и сколько стоит аренда в месяц."},
			},
			want: "ru",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, detectLanguage(tt.messages))
		})
	}
}
