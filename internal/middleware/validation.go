package middleware

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	maxEmailLength    = 254
	maxPasswordBytes  = 72
	maxFullNameLength = 100
	maxTitleLength    = 256
	maxContentLength  = 100000
)

// ValidationError describes a rejected request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// ValidateEmail validates an email address.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return invalid("email", "is required")
	}
	if len(email) > maxEmailLength {
		return invalid("email", "exceeds maximum length")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return invalid("email", "is not a valid address")
	}
	return nil
}

// ValidatePassword validates a password. bcrypt ignores bytes past 72.
func ValidatePassword(password string) error {
	if password == "" {
		return invalid("password", "is required")
	}
	if len(password) > maxPasswordBytes {
		return invalid("password", "exceeds maximum length")
	}
	return nil
}

// ValidateFullName validates a display name.
func ValidateFullName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return invalid("full_name", "is required")
	}
	if utf8.RuneCountInString(name) > maxFullNameLength {
		return invalid("full_name", "exceeds maximum length")
	}
	if !utf8.ValidString(name) {
		return invalid("full_name", "must be valid UTF-8")
	}
	return nil
}

// ValidateMessageContent validates message content. Text may be blank
// only when a file accompanies it.
func ValidateMessageContent(content string, hasAttachment bool) error {
	if !hasAttachment && strings.TrimSpace(content) == "" {
		return invalid("message", "is required")
	}
	if len(content) > maxContentLength {
		return invalid("message", "exceeds maximum length")
	}
	if !utf8.ValidString(content) {
		return invalid("message", "must be valid UTF-8")
	}
	return nil
}

// ValidateConversationID validates a conversation ID.
func ValidateConversationID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return invalid("conversation_id", "has an invalid format")
	}
	return nil
}

// ValidateTitle validates a conversation title.
func ValidateTitle(title string) error {
	if utf8.RuneCountInString(title) > maxTitleLength {
		return invalid("title", "exceeds maximum length")
	}
	if !utf8.ValidString(title) {
		return invalid("title", "must be valid UTF-8")
	}
	return nil
}
