package collab

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/agenthands/sleuth/internal/config"
	"github.com/agenthands/sleuth/internal/core/common"
	"github.com/agenthands/sleuth/internal/llm"
)

const defaultSummaryPrompt = `Compress the following investigation turns into one short insight a future
investigation could reuse. Keep the root cause and what fixed it if present.
Return a JSON object: {"summary": "<at most three sentences>"}.

Turns:
%s`

type summaryResult struct {
	Summary string `json:"summary"`
}

type Summarizer struct {
	LLM     llm.LLMClient
	Prompt  string
	Timeout time.Duration
}

func NewSummarizer(client llm.LLMClient, prompts config.PromptsConfig) *Summarizer {
	return &Summarizer{
		LLM:     client,
		Prompt:  prompts.Summary,
		Timeout: 30 * time.Second,
	}
}

// Summarize compresses turn records into a bounded insight. Errors are
// returned to the caller, which falls back to truncation; summarization is
// never a hard dependency.
func (s *Summarizer) Summarize(ctx context.Context, turns []string) (string, error) {
	if s.LLM == nil {
		return "", fmt.Errorf("no llm client configured")
	}

	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	promptTemplate := s.Prompt
	if promptTemplate == "" {
		promptTemplate = defaultSummaryPrompt
	}
	var list strings.Builder
	for _, t := range turns {
		fmt.Fprintf(&list, "- %s\n", t)
	}
	prompt := strings.Replace(promptTemplate, "%s", list.String(), 1)

	response, err := s.LLM.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("failed to generate summary: %w", err)
	}

	result, err := common.ParseJSON[summaryResult](response)
	if err != nil {
		// Some models answer in plain text; accept it rather than fail.
		trimmed := strings.TrimSpace(response)
		if trimmed != "" {
			return trimmed, nil
		}
		return "", fmt.Errorf("failed to parse summary result: %w", err)
	}
	return result.Summary, nil
}
