package llm

import (
	"context"
)

// LLMClient generates an utterance from a fully-assembled prompt.
type LLMClient interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// EmbedderClient turns text into an embedding vector.
type EmbedderClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
