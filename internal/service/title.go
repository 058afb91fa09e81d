package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/capitalize-ai/alpine-chat/internal/llm"
	"github.com/capitalize-ai/alpine-chat/pkg/logger"
	"github.com/capitalize-ai/alpine-chat/pkg/metrics"
)

// FallbackTitle is used when a title cannot be generated.
const FallbackTitle = "New Chat Topic"

const (
	maxTitleWords  = 7
	titleMaxTokens = 32

	titleInstruction = "You are a title generator. Create a short title of 3 to 5 words " +
		"that summarizes the user's message. Reply with the title only, " +
		"without quotes or trailing punctuation."
)

// titleTrimSet holds characters stripped from both ends of a generated title.
const titleTrimSet = " \t\r\n\"'`.“”‘’"

// TitleGenerator produces short conversation titles. It never fails.
type TitleGenerator struct {
	llm    llm.Client
	model  string
	logger *logger.Logger
}

// NewTitleGenerator creates a title generator.
func NewTitleGenerator(client llm.Client, model string, log *logger.Logger) *TitleGenerator {
	return &TitleGenerator{llm: client, model: model, logger: log}
}

// Generate returns a title for the first message of a conversation, or
// FallbackTitle on any failure.
func (g *TitleGenerator) Generate(ctx context.Context, firstMessage string) string {
	if strings.TrimSpace(firstMessage) == "" {
		metrics.RecordTitle("fallback")
		return FallbackTitle
	}

	resp, err := g.llm.Generate(ctx, &llm.GenerateRequest{
		Model:             g.model,
		SystemInstruction: titleInstruction,
		Parts:             []llm.Part{llm.TextPart(fmt.Sprintf("Generate a title for this chat: %q", firstMessage))},
		MaxTokens:         titleMaxTokens,
	})
	if err != nil {
		g.logger.Warn("title generation failed", zap.Error(err))
		metrics.RecordTitle("error")
		return FallbackTitle
	}

	title, ok := cleanTitle(resp.Text)
	if !ok {
		g.logger.Debug("discarding generated title", zap.String("raw", resp.Text))
		metrics.RecordTitle("fallback")
		return FallbackTitle
	}

	metrics.RecordTitle("success")
	return title
}

// cleanTitle strips surrounding quotes and periods and collapses
// whitespace. It rejects empty titles and titles over maxTitleWords words.
func cleanTitle(raw string) (string, bool) {
	words := strings.Fields(strings.Trim(raw, titleTrimSet))
	if len(words) == 0 || len(words) > maxTitleWords {
		return "", false
	}
	return strings.Join(words, " "), true
}
