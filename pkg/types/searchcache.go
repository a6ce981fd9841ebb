package types

import "time"

// SearchCacheEntry is a cached, ranked result-id list for a single query
// (spec §3, §4.D). The query hash covers (query, project_id-or-"global").
type SearchCacheEntry struct {
	QueryHash string
	Query     string
	ProjectID string
	ResultIDs []string
	Hits      int
	LastHit   time.Time
	CreatedAt time.Time
	ExpiresAt time.Time
}

// ScoredResult is a single hybrid-retrieval hit, carrying the component
// scores that fed the combined rank plus a human-readable explanation
// (spec §4.D).
type ScoredResult struct {
	Memory      *Memory
	Semantic    float64
	Keyword     float64
	Recency     float64
	Importance  float64
	PageRank    float64
	Combined    float64
	Explanation string
}

// EmotionalTag records arousal/valence annotations for a memory (the
// GLOSSARY's "flashbulb memory": high-arousal memories decay more slowly).
type EmotionalTag struct {
	MemoryID  string
	Arousal   float64
	Valence   float64
	Flashbulb bool
	UpdatedAt time.Time
}

// FlashbulbArousalThreshold is the arousal level at or above which a memory
// is classified as a flashbulb memory.
const FlashbulbArousalThreshold = 0.85
