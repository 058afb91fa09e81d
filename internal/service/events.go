package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/capitalize-ai/alpine-chat/internal/model"
	"github.com/capitalize-ai/alpine-chat/pkg/logger"
)

// EventPublisher receives conversation lifecycle events.
type EventPublisher interface {
	Publish(ctx context.Context, event *model.ConversationEvent) error
}

// NopPublisher discards events.
type NopPublisher struct{}

// Publish does nothing.
func (NopPublisher) Publish(context.Context, *model.ConversationEvent) error { return nil }

// publishEvent sends an event; failures are logged and never returned.
func publishEvent(ctx context.Context, pub EventPublisher, log *logger.Logger, userID, conversationID string, typ model.EventType, reason string, meta map[string]string) {
	event := &model.ConversationEvent{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: conversationID,
		UserID:         userID,
		Type:           typ,
		Reason:         reason,
		Metadata:       meta,
		CreatedAt:      time.Now().UTC(),
	}
	if err := pub.Publish(ctx, event); err != nil {
		log.WithConversation(userID, conversationID).Warn("failed to publish conversation event",
			zap.String("type", string(typ)),
			zap.Error(err),
		)
	}
}
