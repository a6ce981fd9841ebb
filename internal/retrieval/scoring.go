// Package retrieval implements the Hybrid Retrieval & Search Cache (spec
// §4.D): semantic/keyword/recency/importance scoring combined into a single
// rank, a per-query result cache, and a thin orchestrator tying the
// Embedding Cache, Memory Store, and Relationship Graph together.
package retrieval

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/scrypster/mnemora/pkg/types"
)

const (
	weightSemantic   = 0.5
	weightKeyword    = 0.2
	weightRecency    = 0.2
	weightImportance = 0.1

	recencyHorizonDays = 365.0

	// bm25K1 and bm25B are the standard Okapi BM25 tuning constants.
	bm25K1 = 1.2
	bm25B  = 0.75
)

// CosineSimilarity computes cosine similarity between two equal-length
// vectors, returning 0 for mismatched or zero-magnitude inputs.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// bm25Corpus precomputes the document-frequency statistics BM25 needs over
// a fixed candidate set, so per-query scoring doesn't rescan every document.
type bm25Corpus struct {
	docTokens map[string][]string
	docFreq   map[string]int
	avgDocLen float64
	n         int
}

func newBM25Corpus(memories []*types.Memory) *bm25Corpus {
	c := &bm25Corpus{docTokens: make(map[string][]string), docFreq: make(map[string]int)}
	var totalLen int
	for _, m := range memories {
		tokens := tokenize(m.Content)
		c.docTokens[m.ID] = tokens
		totalLen += len(tokens)
		seen := map[string]bool{}
		for _, t := range tokens {
			if !seen[t] {
				c.docFreq[t]++
				seen[t] = true
			}
		}
	}
	c.n = len(memories)
	if c.n > 0 {
		c.avgDocLen = float64(totalLen) / float64(c.n)
	}
	return c
}

// score returns the raw (unnormalized) BM25 score of query against the
// document identified by memoryID.
func (c *bm25Corpus) score(query []string, memoryID string) float64 {
	tokens := c.docTokens[memoryID]
	if len(tokens) == 0 || c.n == 0 {
		return 0
	}
	termFreq := map[string]int{}
	for _, t := range tokens {
		termFreq[t]++
	}
	docLen := float64(len(tokens))

	var score float64
	for _, qt := range query {
		df := c.docFreq[qt]
		if df == 0 {
			continue
		}
		idf := math.Log(1 + (float64(c.n)-float64(df)+0.5)/(float64(df)+0.5))
		tf := float64(termFreq[qt])
		denom := tf + bm25K1*(1-bm25B+bm25B*docLen/c.avgDocLen)
		if denom == 0 {
			continue
		}
		score += idf * (tf * (bm25K1 + 1) / denom)
	}
	return score
}

// Recency computes max(0, 1 - age_days/365) relative to now.
func Recency(ageDays float64) float64 {
	v := 1 - ageDays/recencyHorizonDays
	if v < 0 {
		return 0
	}
	return v
}

// Score ranks candidates against query, combining semantic similarity
// (queryEmbedding vs each candidate's embedding), BM25 keyword overlap
// normalized to [0,1] by the candidate set's own maximum, recency, and
// importance, per the spec §4.D weighting. ageDays and pageRank are
// supplied per memory id by the caller (the orchestrator owns fetching
// them). A missing ageDays entry is treated as age 0 (full recency); a
// missing pageRank entry reports 0. pageRank is copied onto each result but
// does not enter Combined.
func Score(
	query string,
	queryEmbedding []float64,
	candidates []*types.Memory,
	embeddings map[string][]float64,
	ageDays map[string]float64,
	pageRank map[string]float64,
) []*types.ScoredResult {
	corpus := newBM25Corpus(candidates)
	queryTokens := tokenize(query)

	var maxKeyword float64
	rawKeyword := make(map[string]float64, len(candidates))
	for _, m := range candidates {
		raw := corpus.score(queryTokens, m.ID)
		rawKeyword[m.ID] = raw
		if raw > maxKeyword {
			maxKeyword = raw
		}
	}

	results := make([]*types.ScoredResult, 0, len(candidates))
	for _, m := range candidates {
		semantic := CosineSimilarity(queryEmbedding, embeddings[m.ID])

		keywordNorm := 0.0
		if maxKeyword > 0 {
			keywordNorm = rawKeyword[m.ID] / maxKeyword
		}

		recency := Recency(ageDays[m.ID])
		importance := m.Importance

		combined := weightSemantic*semantic + weightKeyword*keywordNorm +
			weightRecency*recency + weightImportance*importance

		results = append(results, &types.ScoredResult{
			Memory:      m,
			Semantic:    semantic,
			Keyword:     keywordNorm,
			Recency:     recency,
			Importance:  importance,
			PageRank:    pageRank[m.ID],
			Combined:    combined,
			Explanation: explain(semantic, keywordNorm, queryTokens, m),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Combined != b.Combined {
			return a.Combined > b.Combined
		}
		if !a.Memory.Updated.Equal(b.Memory.Updated) {
			return a.Memory.Updated.After(b.Memory.Updated)
		}
		return a.Memory.ID < b.Memory.ID
	})
	return results
}

// explain builds a short human-readable rationale for a result. The exact
// wording is not load-bearing, only that it is non-empty.
func explain(semantic, keywordNorm float64, queryTokens []string, m *types.Memory) string {
	var b strings.Builder
	switch {
	case semantic >= 0.8:
		b.WriteString("Strong semantic match")
	case semantic >= 0.5:
		b.WriteString("Moderate semantic match")
	default:
		b.WriteString("Weak semantic match")
	}
	b.WriteString(" ")
	b.WriteString(percentage(semantic))

	matched := matchedKeywords(queryTokens, m.Content)
	if len(matched) > 0 {
		b.WriteString("; keywords: ")
		b.WriteString(strings.Join(matched, ", "))
	}
	return b.String()
}

func percentage(v float64) string {
	return strconv.Itoa(int(v*100+0.5)) + "%"
}

func matchedKeywords(queryTokens []string, content string) []string {
	contentSet := map[string]bool{}
	for _, t := range tokenize(content) {
		contentSet[t] = true
	}
	seen := map[string]bool{}
	var out []string
	for _, qt := range queryTokens {
		if contentSet[qt] && !seen[qt] {
			out = append(out, qt)
			seen[qt] = true
		}
		if len(out) >= 5 {
			break
		}
	}
	return out
}
