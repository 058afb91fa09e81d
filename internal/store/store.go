// Package store provides persistence for users, conversations and messages.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/capitalize-ai/alpine-chat/internal/model"
)

var (
	// ErrNotFound is returned when a record does not exist or is not owned by the caller.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique key (user email) is already taken.
	ErrDuplicate = errors.New("duplicate record")
)

// timeLayout is fixed width so stored timestamps sort lexicographically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Repository defines the persistence operations the service layer needs.
// Implementations must be safe for concurrent use.
type Repository interface {
	// CreateUser inserts a user; ErrDuplicate if the email is taken.
	CreateUser(ctx context.Context, user *model.User) error

	// GetUser retrieves a user by ID.
	GetUser(ctx context.Context, userID string) (*model.User, error)

	// GetUserByEmail retrieves a user by normalized email.
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)

	// CreateConversation inserts a conversation.
	CreateConversation(ctx context.Context, conv *model.Conversation) error

	// GetConversation returns the conversation only if userID owns it.
	GetConversation(ctx context.Context, userID, conversationID string) (*model.Conversation, error)

	// ListConversations returns the user's conversations, most recently updated first.
	ListConversations(ctx context.Context, userID string) ([]model.Conversation, error)

	// UpdateConversation sets updated_at and, when title is non-nil, the title.
	UpdateConversation(ctx context.Context, conversationID string, updatedAt time.Time, title *string) error

	// DeleteConversation removes an owned conversation and all of its messages.
	DeleteConversation(ctx context.Context, userID, conversationID string) error

	// AppendMessage stores a message and assigns msg.Seq. It returns ErrNotFound
	// if the parent conversation no longer exists.
	AppendMessage(ctx context.Context, msg *model.Message) error

	// ListMessages returns a conversation's messages in creation order.
	ListMessages(ctx context.Context, conversationID string) ([]model.Message, error)

	// Ping verifies connectivity to the backing database.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
