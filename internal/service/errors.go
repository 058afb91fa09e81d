// Package service implements conversation storage rules and chat orchestration.
package service

import (
	"errors"
)

// ErrConversationNotFound covers both a missing conversation and one owned
// by another user. Callers cannot tell the two apart.
var ErrConversationNotFound = errors.New("conversation not found")
