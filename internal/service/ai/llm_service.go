package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/abadojack/whatlanggo"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/estate-desk/backend/internal/config"
	"github.com/zhouzirui/estate-desk/backend/internal/model/chat"
)

// ErrNothingToAnswer is returned when a session has no messages yet.
var ErrNothingToAnswer = errors.New("session has no messages to answer")

// Service 根据会话记录为客服生成回复草稿
type Service struct {
	log          *slog.Logger
	chain        compose.Runnable[map[string]any, *schema.Message]
	historyLimit int
}

// NewService 基于配置的 Ark 模型创建回复助手
func NewService(ctx context.Context, log *slog.Logger, cfg config.AIConfig) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return NewServiceWithModel(ctx, log, chatModel, cfg.HistoryLimit)
}

// NewServiceWithModel 基于已有模型创建回复助手
func NewServiceWithModel(ctx context.Context, log *slog.Logger, chatModel model.BaseChatModel, historyLimit int) (*Service, error) {
	if historyLimit <= 0 {
		historyLimit = 12
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(draftSystemPrompt),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage(draftUserPrompt),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile draft chain: %w", err)
	}

	return &Service{log: log, chain: runnable, historyLimit: historyLimit}, nil
}

// SuggestReply 为会话生成下一条客服回复建议
func (s *Service) SuggestReply(ctx context.Context, session chat.SessionView) (string, error) {
	if len(session.Messages) == 0 {
		return "", ErrNothingToAnswer
	}

	response, err := s.chain.Invoke(ctx, s.buildChainInput(session))
	if err != nil {
		return "", fmt.Errorf("failed to run draft chain: %w", err)
	}

	suggestion := strings.TrimSpace(response.Content)
	s.log.Info("Reply drafted", "session", session.ID, "length", len(suggestion))
	return suggestion, nil
}

func (s *Service) buildChainInput(session chat.SessionView) map[string]any {
	draft := strings.TrimSpace(session.Draft)
	if draft == "" {
		draft = noDraft
	}
	return map[string]any{
		"visitor":  session.DisplayName,
		"language": detectLanguage(session.Messages),
		"draft":    draft,
		"history":  s.buildHistoryMessages(session.Messages),
	}
}

// minLanguageConfidence keeps short or mixed texts from steering the reply.
const minLanguageConfidence = 0.5

// detectLanguage returns the ISO 639-1 code of what the visitor writes in,
// or unknownLanguage.
func detectLanguage(messages []chat.Message) string {
	var text strings.Builder
	for _, msg := range messages {
		if msg.FromOperator() {
			continue
		}
		text.WriteString(msg.Text)
		text.WriteByte('\n')
	}
	if text.Len() == 0 {
		return unknownLanguage
	}

	info := whatlanggo.Detect(text.String())
	code := info.Lang.Iso6391()
	if code == "" || info.Confidence < minLanguageConfidence {
		return unknownLanguage
	}
	return code
}

// buildHistoryMessages maps the tail of the transcript onto model roles:
// the operator speaks as the assistant.
func (s *Service) buildHistoryMessages(messages []chat.Message) []*schema.Message {
	start := max(len(messages)-s.historyLimit, 0)

	history := make([]*schema.Message, 0, len(messages)-start)
	for _, msg := range messages[start:] {
		if msg.FromOperator() {
			history = append(history, schema.AssistantMessage(msg.Text, nil))
			continue
		}
		history = append(history, schema.UserMessage(msg.Text))
	}
	return history
}
