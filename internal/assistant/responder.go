package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"careline/internal/config"
	"careline/internal/conversations"
	"careline/internal/escalation"
	"careline/pkg/logger"

	openai "github.com/sashabaranov/go-openai"
)

// personaPreamble frames every completion. Risk detection itself does
// not rely on the model: the escalation decider runs over the caller's
// own words.
const personaPreamble = "You are a compassionate mental health AI assistant. " +
	"Listen actively, provide support, and detect if the user needs professional help. " +
	"If they mention suicide or self-harm, suggest immediate help."

// Fixed fallback lines. These are spoken to the caller, so they must
// stay plain text with no markup-significant characters.
const (
	replyEmptyFallback = "I'm here to listen. How are you feeling?"
	replySlowUpstream  = "I'm taking a bit longer to respond. Please hold on."
	replyUpstreamError = "I'm sorry, I'm having trouble responding right now. Please try again."
)

// MessageStore is the transcript access the responder needs.
// *conversations.Repo satisfies it.
type MessageStore interface {
	Append(ctx context.Context, conversationID string, role conversations.MessageRole, content string) (conversations.Message, error)
	List(ctx context.Context, conversationID string) ([]conversations.Message, error)
}

// ChatClient is the slice of the OpenAI client we use.
// *openai.Client satisfies it.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Reply is one assistant turn plus the escalation signal derived from
// the caller's utterance.
type Reply struct {
	Text     string
	Escalate bool
	Reason   escalation.Reason
}

// Responder produces one assistant turn per caller utterance.
//
// Ordering contract: the user message is persisted before generation,
// so the transcript survives a failed or timed-out completion. The
// assistant message is persisted only on success; timeout and upstream
// failure return fixed filler text with no stored assistant row and no
// escalation.
type Responder struct {
	chat     ChatClient
	messages MessageStore

	model     string
	maxTokens int
	timeout   time.Duration
}

func NewResponder(chat ChatClient, messages MessageStore, cfg config.AssistantConfig) *Responder {
	return &Responder{
		chat:      chat,
		messages:  messages,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		timeout:   cfg.ReplyTimeout,
	}
}

func (r *Responder) Reply(ctx context.Context, conversationID, utterance string) (Reply, error) {
	if conversationID == "" || strings.TrimSpace(utterance) == "" {
		return Reply{}, errors.New("assistant: conversation id and utterance required")
	}

	// Persist first so the context survives even if generation fails.
	if _, err := r.messages.Append(ctx, conversationID, conversations.MessageRoleUser, utterance); err != nil {
		return Reply{}, fmt.Errorf("append user message: %w", err)
	}

	history, err := r.messages.List(ctx, conversationID)
	if err != nil {
		return Reply{}, fmt.Errorf("load transcript: %w", err)
	}

	genCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	resp, err := r.chat.CreateChatCompletion(genCtx, openai.ChatCompletionRequest{
		Model:     r.model,
		MaxTokens: r.maxTokens,
		Messages:  toChatMessages(history),
	})
	if err != nil {
		log := logger.From(ctx)
		if errors.Is(err, context.DeadlineExceeded) {
			log.Warn("assistant completion timed out", "conversation_id", conversationID, "timeout", r.timeout)
			return Reply{Text: replySlowUpstream}, nil
		}
		log.Error("assistant completion failed", "conversation_id", conversationID, "err", err)
		return Reply{Text: replyUpstreamError}, nil
	}

	text := ""
	if len(resp.Choices) > 0 {
		text = strings.TrimSpace(resp.Choices[0].Message.Content)
	}
	if text == "" {
		text = replyEmptyFallback
	}

	if _, err := r.messages.Append(ctx, conversationID, conversations.MessageRoleAssistant, text); err != nil {
		return Reply{}, fmt.Errorf("append assistant message: %w", err)
	}

	// Classification runs over the caller's words, not the reply.
	reason := escalation.Classify(utterance)
	return Reply{
		Text:     text,
		Escalate: reason != escalation.ReasonNone,
		Reason:   reason,
	}, nil
}

func toChatMessages(history []conversations.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	out = append(out, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: personaPreamble,
	})
	for _, m := range history {
		role := openai.ChatMessageRoleUser
		if m.Role == conversations.MessageRoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return out
}
