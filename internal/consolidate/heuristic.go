package consolidate

import (
	"context"
	"strings"
)

// heuristicMinTurnLength is the minimum trimmed-content length a turn must
// have to be worth extracting, grounded in original_source/src/
// entity_extractor.py's boilerplate filter.
const heuristicMinTurnLength = 20

// heuristicConfidenceCap is the ceiling on confidence for
// heuristically-extracted candidates (SPEC_FULL.md's augmentation): the
// fallback path is less reliable than an LLM extractor, which may reach 1.0.
const heuristicConfidenceCap = 0.6

var acknowledgementPhrases = []string{
	"ok", "okay", "sure", "thanks", "thank you", "got it", "sounds good",
	"yep", "yes", "no problem", "will do", "understood",
}

// keywordBuckets maps a memory_type guess to its trigger keywords,
// following schema_classifier.py's closed type-set mapping.
var keywordBuckets = map[string][]string{
	"decision": {"decided", "decision", "going with", "chose", "let's use", "we'll use"},
	"process":  {"step", "workflow", "procedure", "first,", "then,", "pipeline"},
	"concept":  {"concept", "idea", "approach", "pattern", "principle"},
	"event":    {"happened", "occurred", "yesterday", "today", "incident", "deployed"},
}

// HeuristicExtractor extracts candidates without an LLM: it keeps
// sufficiently long, non-boilerplate turns and assigns a coarse
// memory_type guess from keyword buckets. Confidence is capped at
// heuristicConfidenceCap.
type HeuristicExtractor struct{}

// Extract implements Extractor.
func (HeuristicExtractor) Extract(_ context.Context, messages []Message) ([]Candidate, error) {
	var candidates []Candidate
	for _, msg := range messages {
		content := strings.TrimSpace(msg.Content)
		if len(content) < heuristicMinTurnLength {
			continue
		}
		if isAcknowledgement(content) {
			continue
		}

		candidates = append(candidates, Candidate{
			Content:    content,
			Importance: heuristicImportance(content),
			Confidence: heuristicConfidenceCap,
			MemoryType: classify(content),
		})
	}
	return candidates, nil
}

func isAcknowledgement(content string) bool {
	lower := strings.ToLower(strings.Trim(content, " .!"))
	for _, phrase := range acknowledgementPhrases {
		if lower == phrase {
			return true
		}
	}
	return false
}

func classify(content string) string {
	lower := strings.ToLower(content)
	for memType, keywords := range keywordBuckets {
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				return memType
			}
		}
	}
	return "concept"
}

// heuristicImportance scores a turn by length and classified type, since
// the heuristic path has no LLM judgment to lean on: decisions and events
// are weighted slightly higher than generic concepts.
func heuristicImportance(content string) float64 {
	base := 0.4
	switch classify(content) {
	case "decision", "event":
		base = 0.75
	}
	if len(content) > 200 {
		base += 0.1
	}
	if base > 1.0 {
		base = 1.0
	}
	return base
}
