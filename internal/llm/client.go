// Package llm provides a provider-neutral LLM client and provider adapters.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Role is a provider-neutral turn role.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// PartKind tags the variant held by a Part.
type PartKind int

const (
	PartText PartKind = iota
	PartImage
)

// Part is one unit of turn content: text, or raw image bytes with a MIME type.
type Part struct {
	Kind     PartKind
	Text     string
	Data     []byte
	MIMEType string
}

// TextPart builds a text part.
func TextPart(text string) Part {
	return Part{Kind: PartText, Text: text}
}

// ImagePart builds a binary image part.
func ImagePart(data []byte, mimeType string) Part {
	return Part{Kind: PartImage, Data: data, MIMEType: mimeType}
}

// Turn is one message of history.
type Turn struct {
	Role  Role
	Parts []Part
}

// GenerateRequest is a stateless generation call: system instruction,
// prior history and the parts of the new user turn.
type GenerateRequest struct {
	Model             string
	SystemInstruction string
	History           []Turn
	Parts             []Part
	MaxTokens         int
	Temperature       float64
}

// Turns returns the history followed by the new user turn.
func (r *GenerateRequest) Turns() []Turn {
	turns := make([]Turn, 0, len(r.History)+1)
	turns = append(turns, r.History...)
	if len(r.Parts) > 0 {
		turns = append(turns, Turn{Role: RoleUser, Parts: r.Parts})
	}
	return turns
}

// GenerateResponse is the reply text plus usage metadata.
type GenerateResponse struct {
	Text       string
	Model      string
	TokensIn   int
	TokensOut  int
	StopReason string
	LatencyMs  int64
}

// Client is the interface for LLM providers. Implementations are safe for
// concurrent use and hold no per-conversation state.
type Client interface {
	// Generate produces one reply.
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)

	// Name returns the provider name.
	Name() string

	// Models returns known model names; the first is the default.
	Models() []string
}

// Provider is the type of LLM provider.
type Provider string

const (
	ProviderGemini    Provider = "gemini"
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
	ProviderOllama    Provider = "ollama"
)

// Config selects and configures a provider.
type Config struct {
	Provider Provider
	APIKey   string
	BaseURL  string
	Model    string
}

// ErrNotConfigured is returned by New when the provider lacks credentials.
var ErrNotConfigured = errors.New("llm provider not configured")

// New creates a client for cfg.Provider. It never returns a non-nil
// Client together with an error.
func New(ctx context.Context, cfg Config) (Client, error) {
	switch cfg.Provider {
	case ProviderGemini:
		c, err := NewGeminiClient(ctx, cfg.APIKey, cfg.Model)
		if err != nil {
			return nil, err
		}
		return c, nil
	case ProviderAnthropic:
		c, err := NewAnthropicClient(cfg.APIKey, cfg.Model)
		if err != nil {
			return nil, err
		}
		return c, nil
	case ProviderOpenAI:
		c, err := NewOpenAIClient(cfg.APIKey, cfg.BaseURL, cfg.Model)
		if err != nil {
			return nil, err
		}
		return c, nil
	case ProviderOllama:
		c, err := NewOllamaClient(cfg.BaseURL, cfg.Model)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// sendableParts drops empty text parts, which providers reject. A turn
// left with nothing carries a single space.
func sendableParts(parts []Part) []Part {
	out := make([]Part, 0, len(parts))
	for _, p := range parts {
		if p.Kind == PartText && strings.TrimSpace(p.Text) == "" {
			continue
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		out = append(out, TextPart(" "))
	}
	return out
}

// mergeConsecutive folds adjacent turns with the same role into one turn.
// History may hold several user turns in a row when earlier replies failed,
// and some providers require strict alternation.
func mergeConsecutive(turns []Turn) []Turn {
	merged := make([]Turn, 0, len(turns))
	for _, turn := range turns {
		if n := len(merged); n > 0 && merged[n-1].Role == turn.Role {
			parts := make([]Part, 0, len(merged[n-1].Parts)+len(turn.Parts))
			parts = append(parts, merged[n-1].Parts...)
			parts = append(parts, turn.Parts...)
			merged[n-1].Parts = parts
			continue
		}
		merged = append(merged, turn)
	}
	return merged
}

// textOf concatenates the text parts of a turn.
func textOf(parts []Part) string {
	var text string
	for _, p := range parts {
		if p.Kind != PartText || p.Text == "" {
			continue
		}
		if text != "" {
			text += "\n"
		}
		text += p.Text
	}
	return text
}

func pick(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}
