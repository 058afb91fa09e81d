package model

import (
	"time"
)

// DefaultConversationTitle is the placeholder title until the first exchange completes.
const DefaultConversationTitle = "New Chat"

// Conversation represents a conversation thread owned by one user.
type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateConversationRequest is the request to create a new conversation.
type CreateConversationRequest struct {
	Title string `json:"title,omitempty"`
}

// DeleteConversationResponse confirms a deletion.
type DeleteConversationResponse struct {
	Message string `json:"message"`
}
