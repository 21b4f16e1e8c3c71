package llm

import (
	"context"
)

// LLMClient is the black-box text-completion capability. The core never
// prompts it directly; the collab package wraps it as the classification and
// summarization collaborators.
type LLMClient interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
