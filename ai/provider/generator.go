package provider

import (
	"context"
	"strings"

	"github.com/teranos/threatbrief/ai/openai"
	"github.com/teranos/threatbrief/errors"
)

// Generator adapts an AIClient to the (role description, prompt) → text
// capability the pipeline consumes. Every failure is marked as a generation error.
type Generator struct {
	client   AIClient
	provider Provider
}

// NewGenerator wraps client; provider is used for error context only
func NewGenerator(client AIClient, provider Provider) *Generator {
	return &Generator{client: client, provider: provider}
}

// Provider returns the backend this generator talks to
func (g *Generator) Provider() Provider {
	return g.provider
}

// Generate sends roleDescription as the system prompt and prompt as the user turn
func (g *Generator) Generate(ctx context.Context, roleDescription, prompt string) (string, error) {
	resp, err := g.client.Chat(ctx, openai.ChatRequest{
		SystemPrompt: roleDescription,
		UserPrompt:   prompt,
	})
	if err != nil {
		wrapped := errors.Wrapf(err, "%s generation", g.provider)
		if errors.Is(err, context.DeadlineExceeded) {
			wrapped = errors.Mark(wrapped, errors.ErrTimeout)
		}
		return "", errors.MarkGeneration(wrapped)
	}

	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return "", errors.NewGenerationErrorf("%s returned an empty response", g.provider)
	}
	return text, nil
}
