// Package tutor answers student questions and summarizes lessons with a generative-text model.
// It never fails: every problem is logged and answered with a fixed message.
package tutor

import (
	"context"
	"fmt"
	"strings"

	"github.com/trezcool/smartlearn/core"
)

// Fallback answers
const (
	AskUnavailable     = "AI Service Unavailable."
	AskFailed          = "My brain is having a hiccup. Try again?"
	AskEmpty           = "I couldn't understand that. Could you rephrase?"
	SummaryUnavailable = "AI Service Unavailable (Check API Key)."
	SummaryFailed      = "Error generating summary. Please try again later."
	SummaryEmpty       = "Could not generate summary."
)

const (
	askPrompt = `Context: You are a helpful, friendly AI tutor on the %s platform. The student is currently watching a lesson about: %s.

Student Question: %s

Answer concisely and clearly. If the question is off-topic, politely guide them back to learning.`

	summaryPrompt = `Provide a concise 3-bullet point summary of what a student might expect to learn from a lesson titled %q with the description: %q. Keep it encouraging.`
)

type Service struct {
	gen     core.TextGenerator
	appName string
	logger  core.Logger
}

// NewService accepts a nil generator: every call then answers with the "unavailable" fallbacks.
func NewService(gen core.TextGenerator, appName string, logger core.Logger) *Service {
	if appName == "" {
		appName = "Smartlearn"
	}
	return &Service{gen: gen, appName: appName, logger: logger}
}

func (svc *Service) Ask(ctx context.Context, question, lessonContext string) string {
	if svc.gen == nil {
		svc.logger.Warn("tutor.Ask: no text generator configured")
		return AskUnavailable
	}
	prompt := fmt.Sprintf(askPrompt, svc.appName, core.CleanString(lessonContext), core.CleanString(question))
	return svc.generate(ctx, "tutor.Ask", prompt, AskFailed, AskEmpty)
}

func (svc *Service) Summarize(ctx context.Context, title, description string) string {
	if svc.gen == nil {
		svc.logger.Warn("tutor.Summarize: no text generator configured")
		return SummaryUnavailable
	}
	prompt := fmt.Sprintf(summaryPrompt, core.CleanString(title), core.CleanString(description))
	return svc.generate(ctx, "tutor.Summarize", prompt, SummaryFailed, SummaryEmpty)
}

func (svc *Service) generate(ctx context.Context, op, prompt, failed, empty string) string {
	text, err := svc.gen.Generate(ctx, prompt)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("%s: %v", op, err), err)
		return failed
	}
	if strings.TrimSpace(text) == "" {
		return empty
	}
	return text
}
