package service

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/capitalize-ai/alpine-chat/internal/llm"
	"github.com/capitalize-ai/alpine-chat/internal/model"
)

type inputKind int

const (
	inputText inputKind = iota
	inputImage
	inputAnnotated
)

const defaultUploadType = "application/octet-stream"

// userInput is an inbound message after attachment ingestion.
type userInput struct {
	kind     inputKind
	original string
	text     string
	image    []byte
	mimeType string
}

// ingest classifies the optional upload. Images travel inline; any other
// file is reduced to a text annotation and its bytes are discarded.
func ingest(content string, upload *model.Upload) userInput {
	in := userInput{kind: inputText, original: content, text: content}
	if upload == nil || len(upload.Data) == 0 {
		return in
	}

	contentType := strings.TrimSpace(upload.ContentType)
	if contentType == "" {
		contentType = defaultUploadType
	}

	if model.IsImageType(contentType) {
		in.kind = inputImage
		in.image = upload.Data
		in.mimeType = contentType
		return in
	}

	in.kind = inputAnnotated
	note := fmt.Sprintf("(Attached file: %s, type: %s. Content not processed.)", upload.Filename, contentType)
	in.text = strings.TrimSpace(content + " " + note)
	return in
}

// parts returns the outbound request parts, text first.
func (in userInput) parts() []llm.Part {
	parts := []llm.Part{llm.TextPart(in.text)}
	if in.kind == inputImage {
		parts = append(parts, llm.ImagePart(in.image, in.mimeType))
	}
	return parts
}

// message builds the user message to persist.
func (in userInput) message(conversationID string, now time.Time) *model.Message {
	msg := &model.Message{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: conversationID,
		Role:           model.RoleUser,
		Content:        in.text,
		CreatedAt:      now,
	}
	if in.kind == inputImage {
		msg.HasAttachment = true
		msg.AttachmentData = base64.StdEncoding.EncodeToString(in.image)
		msg.AttachmentType = in.mimeType
	}
	return msg
}
