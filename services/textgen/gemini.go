// Package textgensvc completes prompts with hosted generative-text models.
package textgensvc

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"google.golang.org/genai"

	"github.com/trezcool/smartlearn/core"
)

type geminiGenerator struct {
	client *genai.Client
	model  string
}

var _ core.TextGenerator = (*geminiGenerator)(nil)

// NewGeminiGenerator returns nil, nil when no API key is configured: callers then answer with their fallbacks.
func NewGeminiGenerator(ctx context.Context, conf core.GeminiConfig) (core.TextGenerator, error) {
	if conf.ApiKey == "" {
		return nil, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  conf.ApiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating gemini client")
	}
	return &geminiGenerator{client: client, model: conf.Model}, nil
}

func (g *geminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", errors.Wrap(err, "generating content")
	}
	return responseText(resp), nil
}

// responseText joins the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}
