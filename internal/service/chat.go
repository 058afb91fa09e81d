package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/capitalize-ai/alpine-chat/internal/llm"
	"github.com/capitalize-ai/alpine-chat/internal/model"
	"github.com/capitalize-ai/alpine-chat/internal/store"
	"github.com/capitalize-ai/alpine-chat/pkg/logger"
	"github.com/capitalize-ai/alpine-chat/pkg/metrics"
	"github.com/capitalize-ai/alpine-chat/pkg/tracing"
)

// DefaultSystemInstruction is the assistant persona sent with every exchange.
const DefaultSystemInstruction = "You are Alpine, a helpful and friendly AI assistant created to help " +
	"users with any questions or tasks. Be conversational, informative, and helpful."

// ChatConfig configures the chat orchestrator.
type ChatConfig struct {
	Model             string
	MaxTokens         int
	SystemInstruction string
}

// ChatService runs a single message exchange end to end.
type ChatService struct {
	store   ConversationStore
	history *HistoryAssembler
	titles  *TitleGenerator
	llm     llm.Client
	events  EventPublisher
	logger  *logger.Logger
	cfg     ChatConfig
	locks   *keyedMutex
	now     func() time.Time
}

// NewChatService creates a chat orchestrator.
func NewChatService(st ConversationStore, client llm.Client, events EventPublisher, cfg ChatConfig, log *logger.Logger) *ChatService {
	if events == nil {
		events = NopPublisher{}
	}
	if cfg.SystemInstruction == "" {
		cfg.SystemInstruction = DefaultSystemInstruction
	}
	return &ChatService{
		store:   st,
		history: NewHistoryAssembler(st, log),
		titles:  NewTitleGenerator(client, cfg.Model, log),
		llm:     client,
		events:  events,
		logger:  log,
		cfg:     cfg,
		locks:   newKeyedMutex(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SendMessage persists the user's message, asks the model for a reply,
// persists the reply and refreshes the conversation. A failed model call
// leaves the user message stored and returns the classified llm error.
//
// Exchanges on the same conversation run one at a time. Once the lock is
// held the exchange runs to completion even if ctx is cancelled.
func (s *ChatService) SendMessage(ctx context.Context, userID string, req *model.SendMessageRequest) (*model.SendMessageResponse, error) {
	ctx, span := tracing.Tracer().Start(ctx, "chat.SendMessage")
	defer span.End()
	span.SetAttributes(
		attribute.String("conversation.id", req.ConversationID),
		attribute.Bool("message.has_upload", req.Upload != nil),
	)

	unlock, err := s.locks.Lock(ctx, req.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("wait for conversation: %w", err)
	}
	defer unlock()

	ctx = context.WithoutCancel(ctx)
	log := s.logger.WithExchange(userID, req.ConversationID, s.cfg.Model)

	resp, err := s.exchange(ctx, log, userID, req)
	outcome := exchangeOutcome(err)
	metrics.RecordExchange(outcome)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		return nil, err
	}
	return resp, nil
}

func (s *ChatService) exchange(ctx context.Context, log *logger.Logger, userID string, req *model.SendMessageRequest) (*model.SendMessageResponse, error) {
	conv, err := s.store.GetConversation(ctx, userID, req.ConversationID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}

	history, err := s.history.Load(ctx, conv.ID)
	if err != nil {
		return nil, err
	}
	first := len(history) == 0

	input := ingest(req.Content, req.Upload)

	userMsg := input.message(conv.ID, s.now())
	if err := s.appendMessage(ctx, userMsg); err != nil {
		return nil, err
	}

	reply, err := s.llm.Generate(ctx, &llm.GenerateRequest{
		Model:             s.cfg.Model,
		SystemInstruction: s.cfg.SystemInstruction,
		History:           history,
		Parts:             input.parts(),
		MaxTokens:         s.cfg.MaxTokens,
	})
	if err != nil {
		log.Error("model call failed", zap.Error(err))
		publishEvent(ctx, s.events, s.logger, userID, conv.ID, model.EventExchangeFailed, err.Error(),
			map[string]string{"user_message_id": userMsg.ID})
		return nil, err
	}

	assistantMsg := &model.Message{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: conv.ID,
		Role:           model.RoleAssistant,
		Content:        reply.Text,
		CreatedAt:      s.now(),
	}
	if err := s.appendMessage(ctx, assistantMsg); err != nil {
		return nil, err
	}

	var title *string
	if first {
		t := s.titles.Generate(ctx, input.original)
		title = &t
	}
	err = s.store.UpdateConversation(ctx, conv.ID, s.now(), title)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update conversation: %w", err)
	}
	if title != nil {
		publishEvent(ctx, s.events, s.logger, userID, conv.ID, model.EventConversationTitled, "",
			map[string]string{"title": *title})
	}

	publishEvent(ctx, s.events, s.logger, userID, conv.ID, model.EventExchangeCompleted, "", map[string]string{
		"user_message_id":      userMsg.ID,
		"assistant_message_id": assistantMsg.ID,
		"model":                reply.Model,
		"tokens_in":            strconv.Itoa(reply.TokensIn),
		"tokens_out":           strconv.Itoa(reply.TokensOut),
		"latency_ms":           strconv.FormatInt(reply.LatencyMs, 10),
	})

	log.Info("exchange completed",
		zap.String("served_model", reply.Model),
		zap.Int64("latency_ms", reply.LatencyMs),
		zap.Bool("titled", title != nil),
	)

	return &model.SendMessageResponse{
		UserMessage:      userMsg,
		AssistantMessage: assistantMsg,
	}, nil
}

func (s *ChatService) appendMessage(ctx context.Context, msg *model.Message) error {
	err := s.store.AppendMessage(ctx, msg)
	if errors.Is(err, store.ErrNotFound) {
		return ErrConversationNotFound
	}
	if err != nil {
		return fmt.Errorf("append %s message: %w", msg.Role, err)
	}
	metrics.MessagesTotal.WithLabelValues(string(msg.Role)).Inc()
	return nil
}

func exchangeOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrConversationNotFound):
		return "not_found"
	case errors.Is(err, llm.ErrUnavailable):
		return "upstream_unavailable"
	case errors.Is(err, llm.ErrTimeout):
		return "upstream_timeout"
	case errors.Is(err, llm.ErrUpstream):
		return "upstream_error"
	default:
		return "error"
	}
}
