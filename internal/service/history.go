package service

import (
	"context"
	"encoding/base64"
	"fmt"

	"go.uber.org/zap"

	"github.com/capitalize-ai/alpine-chat/internal/llm"
	"github.com/capitalize-ai/alpine-chat/internal/model"
	"github.com/capitalize-ai/alpine-chat/pkg/logger"
	"github.com/capitalize-ai/alpine-chat/pkg/metrics"
)

// MessageLister lists a conversation's persisted messages in order.
type MessageLister interface {
	ListMessages(ctx context.Context, conversationID string) ([]model.Message, error)
}

// HistoryAssembler rebuilds provider-neutral turns from stored messages.
type HistoryAssembler struct {
	messages MessageLister
	logger   *logger.Logger
}

// NewHistoryAssembler creates a history assembler.
func NewHistoryAssembler(messages MessageLister, log *logger.Logger) *HistoryAssembler {
	return &HistoryAssembler{messages: messages, logger: log}
}

// Load returns the conversation's turns in creation order.
func (a *HistoryAssembler) Load(ctx context.Context, conversationID string) ([]llm.Turn, error) {
	msgs, err := a.messages.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return a.Assemble(msgs), nil
}

// Assemble maps messages to turns. Each turn's text comes first, followed
// by its image when one is stored and decodes cleanly. Undecodable images
// are dropped and the turn keeps its text.
func (a *HistoryAssembler) Assemble(msgs []model.Message) []llm.Turn {
	turns := make([]llm.Turn, 0, len(msgs))
	for i := range msgs {
		msg := &msgs[i]

		role := llm.RoleUser
		if msg.Role == model.RoleAssistant {
			role = llm.RoleModel
		}

		parts := []llm.Part{llm.TextPart(msg.Content)}
		if msg.HasImage() {
			data, err := base64.StdEncoding.DecodeString(msg.AttachmentData)
			if err != nil || len(data) == 0 {
				metrics.AttachmentDecodeFailures.Inc()
				a.logger.Warn("skipping undecodable attachment in history",
					zap.String("message_id", msg.ID),
					zap.String("conversation_id", msg.ConversationID),
					zap.Error(err),
				)
			} else {
				parts = append(parts, llm.ImagePart(data, msg.AttachmentType))
			}
		}

		turns = append(turns, llm.Turn{Role: role, Parts: parts})
	}
	return turns
}
