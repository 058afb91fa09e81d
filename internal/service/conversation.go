package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/capitalize-ai/alpine-chat/internal/model"
	"github.com/capitalize-ai/alpine-chat/internal/store"
	"github.com/capitalize-ai/alpine-chat/pkg/logger"
	"github.com/capitalize-ai/alpine-chat/pkg/metrics"
)

// ConversationStore is the subset of the repository used by the services.
type ConversationStore interface {
	CreateConversation(ctx context.Context, conv *model.Conversation) error
	GetConversation(ctx context.Context, userID, conversationID string) (*model.Conversation, error)
	ListConversations(ctx context.Context, userID string) ([]model.Conversation, error)
	UpdateConversation(ctx context.Context, conversationID string, updatedAt time.Time, title *string) error
	DeleteConversation(ctx context.Context, userID, conversationID string) error
	AppendMessage(ctx context.Context, msg *model.Message) error
	ListMessages(ctx context.Context, conversationID string) ([]model.Message, error)
}

// ConversationService handles conversation operations with per-user ownership.
type ConversationService struct {
	store  ConversationStore
	events EventPublisher
	logger *logger.Logger
}

// NewConversationService creates a new conversation service.
func NewConversationService(st ConversationStore, events EventPublisher, log *logger.Logger) *ConversationService {
	if events == nil {
		events = NopPublisher{}
	}
	return &ConversationService{
		store:  st,
		events: events,
		logger: log,
	}
}

// Create creates a new conversation. An empty title yields the placeholder.
func (s *ConversationService) Create(ctx context.Context, userID string, req *model.CreateConversationRequest) (*model.Conversation, error) {
	title := model.DefaultConversationTitle
	if req != nil && strings.TrimSpace(req.Title) != "" {
		title = strings.TrimSpace(req.Title)
	}

	now := time.Now().UTC()
	conv := &model.Conversation{
		ID:        uuid.Must(uuid.NewV7()).String(),
		UserID:    userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.CreateConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}

	metrics.ConversationsTotal.Inc()
	s.logger.WithConversation(userID, conv.ID).Info("conversation created")
	publishEvent(ctx, s.events, s.logger, userID, conv.ID, model.EventConversationCreated, "", nil)

	return conv, nil
}

// Get retrieves a conversation owned by userID.
func (s *ConversationService) Get(ctx context.Context, userID, conversationID string) (*model.Conversation, error) {
	conv, err := s.store.GetConversation(ctx, userID, conversationID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return conv, nil
}

// List returns the user's conversations, most recently updated first.
func (s *ConversationService) List(ctx context.Context, userID string) ([]model.Conversation, error) {
	convs, err := s.store.ListConversations(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return convs, nil
}

// ListMessages returns an owned conversation's messages in creation order.
func (s *ConversationService) ListMessages(ctx context.Context, userID, conversationID string) ([]model.Message, error) {
	if _, err := s.Get(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	msgs, err := s.store.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

// Delete removes an owned conversation and all of its messages.
func (s *ConversationService) Delete(ctx context.Context, userID, conversationID string) error {
	err := s.store.DeleteConversation(ctx, userID, conversationID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrConversationNotFound
	}
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}

	s.logger.WithConversation(userID, conversationID).Info("conversation deleted")
	publishEvent(ctx, s.events, s.logger, userID, conversationID, model.EventConversationDeleted, "", nil)
	return nil
}
