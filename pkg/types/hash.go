package types

// ContentHash holds the three tiers of content fingerprinting used by the
// dedup registry (spec §3, §4.B). Semantic is optional: it is only
// populated when a caller has an embedding available at registration time.
type ContentHash struct {
	Exact      string `json:"exact"`
	Normalized string `json:"normalized"`
	Semantic   string `json:"semantic,omitempty"`
}

// DedupLevel is the tier at which a duplicate was classified.
type DedupLevel string

const (
	DedupNone       DedupLevel = ""
	DedupExact      DedupLevel = "exact"
	DedupNormalized DedupLevel = "normalized"
	DedupSemantic   DedupLevel = "semantic"
)

// DedupResult is the outcome of classifying a candidate against the
// registry (spec §4.B).
type DedupResult struct {
	Duplicate    bool
	Level        DedupLevel
	Confidence   float64
	MatchedID    string
}
