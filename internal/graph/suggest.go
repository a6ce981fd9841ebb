package graph

import (
	"strings"
	"unicode"

	"github.com/scrypster/mnemora/pkg/types"
)

const (
	minSignificantTokenLen  = 4 // shorter tokens are too common to be meaningful overlap signals
	minSharedSignificantTok = 2
	suggestedEdgeWeight     = 0.3
)

// SuggestEdges proposes auto_detected "related_to" edges between memories
// saved in the same consolidation session, when two candidates share at
// least minSharedSignificantTok significant tokens. It never overrides a
// caller-specified edge: callers should AddEdge only suggestions that
// survive their own merge with explicit relationships.
func SuggestEdges(ids []string, contents []string) []*types.RelationshipEdge {
	var suggestions []*types.RelationshipEdge

	tokenSets := make([]map[string]bool, len(contents))
	for i, c := range contents {
		tokenSets[i] = significantTokens(c)
	}

	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			shared := countShared(tokenSets[i], tokenSets[j])
			if shared >= minSharedSignificantTok {
				suggestions = append(suggestions, &types.RelationshipEdge{
					FromID:       ids[i],
					ToID:         ids[j],
					Type:         types.RelRelatedTo,
					Weight:       suggestedEdgeWeight,
					AutoDetected: true,
				})
			}
		}
	}
	return suggestions
}

// negationMarkers are cues that a sentence asserts the opposite of a plain
// statement, used by SuggestContradiction's coarse polarity check.
var negationMarkers = []string{
	" not ", " no longer ", " never ", " isn't ", " doesn't ", " don't ",
	" won't ", " can't ", " instead of ", " rather than ", " reversed ",
}

func hasNegation(content string) bool {
	lower := " " + strings.ToLower(content) + " "
	for _, m := range negationMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// SuggestContradiction proposes a "contradicts" edge between two memories
// when they share enough significant tokens to be about the same topic but
// differ in negation polarity. It is a coarse heuristic, not a semantic
// judgment: a caller that also has an LLM collaborator should prefer that
// for anything load-bearing.
func SuggestContradiction(fromID, fromContent, toID, toContent string) *types.RelationshipEdge {
	shared := countShared(significantTokens(fromContent), significantTokens(toContent))
	if shared < minSharedSignificantTok {
		return nil
	}
	if hasNegation(fromContent) == hasNegation(toContent) {
		return nil
	}
	return &types.RelationshipEdge{
		FromID:       fromID,
		ToID:         toID,
		Type:         types.RelContradicts,
		Weight:       suggestedEdgeWeight,
		AutoDetected: true,
	}
}

func significantTokens(content string) map[string]bool {
	tokens := map[string]bool{}
	for _, f := range strings.FieldsFunc(strings.ToLower(content), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len(f) >= minSignificantTokenLen {
			tokens[f] = true
		}
	}
	return tokens
}

func countShared(a, b map[string]bool) int {
	count := 0
	for t := range a {
		if b[t] {
			count++
		}
	}
	return count
}
