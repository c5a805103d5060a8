package core

import "context"

// TextGenerator completes a prompt with an external generative-text model.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
