package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

const defaultOllamaModel = "llava"

// OllamaClient talks to a local Ollama server through langchaingo.
type OllamaClient struct {
	llm   *ollama.LLM
	model string
}

// NewOllamaClient creates a new Ollama client. An empty serverURL uses the
// langchaingo default (OLLAMA_HOST or localhost:11434).
func NewOllamaClient(serverURL, model string) (*OllamaClient, error) {
	model = pick(model, defaultOllamaModel)

	opts := []ollama.Option{ollama.WithModel(model)}
	if serverURL != "" {
		opts = append(opts, ollama.WithServerURL(serverURL))
	}

	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, err
	}
	return &OllamaClient{llm: llm, model: model}, nil
}

// Name returns the provider name.
func (c *OllamaClient) Name() string {
	return string(ProviderOllama)
}

// Models returns the configured model.
func (c *OllamaClient) Models() []string {
	return []string{c.model}
}

// Generate sends a chat request.
func (c *OllamaClient) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	turns := req.Turns()
	messages := make([]llms.MessageContent, 0, len(turns)+1)
	if req.SystemInstruction != "" {
		messages = append(messages, llms.MessageContent{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(req.SystemInstruction)},
		})
	}
	for _, turn := range turns {
		role := llms.ChatMessageTypeHuman
		if turn.Role == RoleModel {
			role = llms.ChatMessageTypeAI
		}
		sendable := sendableParts(turn.Parts)
		parts := make([]llms.ContentPart, 0, len(sendable))
		for _, p := range sendable {
			if p.Kind == PartImage {
				parts = append(parts, llms.BinaryPart(p.MIMEType, p.Data))
				continue
			}
			parts = append(parts, llms.TextPart(p.Text))
		}
		messages = append(messages, llms.MessageContent{Role: role, Parts: parts})
	}

	var opts []llms.CallOption
	if req.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(req.MaxTokens))
	}
	if req.Temperature > 0 {
		opts = append(opts, llms.WithTemperature(req.Temperature))
	}

	resp, err := c.llm.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("ollama returned no choices")
	}

	choice := resp.Choices[0]
	if strings.TrimSpace(choice.Content) == "" {
		return nil, errEmptyReply
	}
	return &GenerateResponse{
		Text:       choice.Content,
		Model:      pick(req.Model, c.model),
		StopReason: choice.StopReason,
	}, nil
}
