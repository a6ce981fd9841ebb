package consolidate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/scrypster/mnemora/internal/collaborator"
)

// LLMExtractor asks an LLM collaborator to extract structured candidates
// from a transcript. The prompt asks for a JSON array so extraction is
// parseable without a bespoke grammar; a malformed response degrades to no
// candidates rather than a hard failure, since consolidation of one
// session should not abort the whole batch.
type LLMExtractor struct {
	llm collaborator.LLM
}

type llmCandidate struct {
	Content    string  `json:"content"`
	Importance float64 `json:"importance"`
	Confidence float64 `json:"confidence"`
	MemoryType string  `json:"memory_type"`
}

// Extract implements Extractor.
func (e *LLMExtractor) Extract(ctx context.Context, messages []Message) ([]Candidate, error) {
	prompt := buildPrompt(messages)
	raw, err := e.llm.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("consolidate: llm extract: %w", err)
	}

	var parsed []llmCandidate
	if err := json.Unmarshal([]byte(extractJSONArray(raw)), &parsed); err != nil {
		return nil, nil
	}

	candidates := make([]Candidate, 0, len(parsed))
	for _, p := range parsed {
		content := strings.TrimSpace(p.Content)
		if content == "" {
			continue
		}
		candidates = append(candidates, Candidate{
			Content:    content,
			Importance: clamp01(p.Importance),
			Confidence: clamp01(p.Confidence),
			MemoryType: p.MemoryType,
		})
	}
	return candidates, nil
}

func buildPrompt(messages []Message) string {
	var b strings.Builder
	b.WriteString("Extract durable, reusable memories from this conversation as a JSON array of ")
	b.WriteString(`objects with fields content, importance (0-1), confidence (0-1), memory_type. `)
	b.WriteString("Skip small talk and acknowledgements.\n\n")
	for _, m := range messages {
		b.WriteString(m.Role)
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	return b.String()
}

// extractJSONArray trims any leading/trailing prose an LLM response might
// wrap its JSON array in.
func extractJSONArray(raw string) string {
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start == -1 || end == -1 || end < start {
		return "[]"
	}
	return raw[start : end+1]
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
