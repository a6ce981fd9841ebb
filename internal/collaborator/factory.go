package collaborator

import (
	"time"

	"github.com/scrypster/mnemora/internal/breaker"
	"github.com/scrypster/mnemora/internal/clock"
	"github.com/scrypster/mnemora/internal/config"
	"github.com/scrypster/mnemora/internal/db"
	"github.com/scrypster/mnemora/internal/ratelimit"
)

// NewFromConfig builds the Embedder and LLM collaborators described by
// cfg. Provider "ollama" constructs OllamaEmbedder/OllamaLLM, each guarded
// by its own circuit breaker and rate limiter built from cfg and persisted
// to store so breaker state survives a restart (spec §5). Any other
// provider value, including the default "heuristic", returns a
// HeuristicEmbedder and a nil LLM — the same fallback System.New already
// documents for an absent Embedder/LLM.
func NewFromConfig(cfg config.LLMConfig, store *db.DB, c clock.Clock) (Embedder, LLM) {
	if cfg.Provider != "ollama" {
		return HeuristicEmbedder{}, nil
	}

	timeout := time.Duration(cfg.RequestTimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	breakerCfg := breaker.DefaultConfig()
	if cfg.BreakerMaxFailures > 0 {
		breakerCfg.MaxFailures = cfg.BreakerMaxFailures
	}
	if cfg.BreakerTimeoutSecs > 0 {
		breakerCfg.Timeout = time.Duration(cfg.BreakerTimeoutSecs) * time.Second
	}

	rate := cfg.RateLimitPerSecond
	if rate <= 0 {
		rate = 5
	}
	burst := cfg.RateLimitBurst
	if burst <= 0 {
		burst = 10
	}

	dims := cfg.EmbeddingDims
	if dims <= 0 {
		dims = heuristicDimensions
	}

	embedder := NewOllamaEmbedder(cfg.OllamaURL, cfg.EmbeddingModel, dims, timeout,
		breaker.New("ollama-embed", breakerCfg, c, store), ratelimit.New(rate, burst))
	llm := NewOllamaLLM(cfg.OllamaURL, cfg.CompletionModel, timeout,
		breaker.New("ollama-llm", breakerCfg, c, store), ratelimit.New(rate, burst))

	return embedder, llm
}
