// Package collab wraps the external collaborator capabilities the core
// consumes but must not implement: text classification and text
// summarization. Both are best-effort; a timeout or failure degrades to a
// local fallback and never fails the turn.
package collab

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/agenthands/sleuth/internal/config"
	"github.com/agenthands/sleuth/internal/core/common"
	"github.com/agenthands/sleuth/internal/core/model"
	"github.com/agenthands/sleuth/internal/llm"
)

const defaultClassifyPrompt = `Classify the following piece of troubleshooting evidence.
Return a JSON object: {"type": "<log|metric|config|timeline|report|other>", "sensitivity": "<public|internal|confidential>", "relevance": <0.0-1.0>}.
Relevance measures how useful the content is for diagnosing an incident.

Content:
%s`

type Classifier struct {
	LLM     llm.LLMClient
	Prompt  string
	Timeout time.Duration
}

func NewClassifier(client llm.LLMClient, prompts config.PromptsConfig) *Classifier {
	return &Classifier{
		LLM:     client,
		Prompt:  prompts.Classification,
		Timeout: 10 * time.Second,
	}
}

// Classify tags evidence content. It never returns an error: when the
// collaborator is unavailable the heuristic fallback supplies a usable tag.
func (c *Classifier) Classify(ctx context.Context, content string) model.Classification {
	if c.LLM == nil {
		return heuristicClassification(content)
	}

	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	promptTemplate := c.Prompt
	if promptTemplate == "" {
		promptTemplate = defaultClassifyPrompt
	}
	prompt := strings.Replace(promptTemplate, "%s", content, 1)

	response, err := c.LLM.Generate(ctx, prompt)
	if err != nil {
		log.Printf("classification collaborator unavailable, using heuristic: %v", err)
		return heuristicClassification(content)
	}

	result, err := common.ParseJSON[model.Classification](response)
	if err != nil {
		log.Printf("failed to parse classification result: %v", err)
		return heuristicClassification(content)
	}
	result.Relevance = common.Clamp01(result.Relevance)
	return result
}

// heuristicClassification is the degraded path: a coarse keyword scan.
func heuristicClassification(content string) model.Classification {
	lower := strings.ToLower(content)
	cls := model.Classification{Type: "other", Sensitivity: "internal", Relevance: 0.5}

	switch {
	case strings.Contains(lower, "error") || strings.Contains(lower, "panic") || strings.Contains(lower, "stack trace"):
		cls.Type = "log"
		cls.Relevance = 0.7
	case strings.Contains(lower, "cpu") || strings.Contains(lower, "latency") || strings.Contains(lower, "%"):
		cls.Type = "metric"
		cls.Relevance = 0.6
	case strings.Contains(lower, "config") || strings.Contains(lower, "deploy"):
		cls.Type = "config"
		cls.Relevance = 0.6
	}
	if strings.Contains(lower, "password") || strings.Contains(lower, "secret") || strings.Contains(lower, "token") {
		cls.Sensitivity = "confidential"
	}
	return cls
}
