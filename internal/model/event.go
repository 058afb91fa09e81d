package model

import (
	"time"
)

// EventType represents the type of conversation event.
type EventType string

const (
	EventConversationCreated EventType = "conversation.created"
	EventConversationDeleted EventType = "conversation.deleted"
	EventConversationTitled  EventType = "conversation.titled"
	EventExchangeCompleted   EventType = "exchange.completed"
	EventExchangeFailed      EventType = "exchange.failed"
)

// ConversationEvent represents a lifecycle event in a conversation.
type ConversationEvent struct {
	ID             string            `json:"id"`
	ConversationID string            `json:"conversation_id"`
	UserID         string            `json:"user_id"`
	Type           EventType         `json:"type"`
	Reason         string            `json:"reason,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}
