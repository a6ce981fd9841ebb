package collaborator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/scrypster/mnemora/internal/breaker"
	"github.com/scrypster/mnemora/internal/ratelimit"
	"github.com/scrypster/mnemora/pkg/mnemerr"
)

// OllamaEmbedder calls a local Ollama server's /api/embeddings endpoint,
// guarded by a circuit breaker and rate limiter so a stalled or overloaded
// model server degrades to mnemerr.ErrEmbedderUnavailable rather than
// cascading timeouts through the caller.
type OllamaEmbedder struct {
	baseURL string
	model   string
	dims    int
	client  *http.Client
	breaker *breaker.Breaker
	limiter *ratelimit.Limiter
}

// NewOllamaEmbedder constructs an OllamaEmbedder. dims is the known output
// dimensionality of model, used by callers sizing storage ahead of the
// first real call.
func NewOllamaEmbedder(baseURL, model string, dims int, timeout time.Duration, b *breaker.Breaker, l *ratelimit.Limiter) *OllamaEmbedder {
	return &OllamaEmbedder{
		baseURL: baseURL,
		model:   model,
		dims:    dims,
		client:  &http.Client{Timeout: timeout},
		breaker: b,
		limiter: l,
	}
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float64 `json:"embedding"`
}

// Embed requests an embedding for text from the Ollama server.
func (o *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if err := o.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	result, err := o.breaker.Execute(ctx, func() (interface{}, error) {
		return o.doEmbed(ctx, text)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", mnemerr.ErrEmbedderUnavailable, err)
	}
	return result.([]float64), nil
}

func (o *OllamaEmbedder) doEmbed(ctx context.Context, text string) ([]float64, error) {
	body, err := json.Marshal(ollamaEmbedRequest{Model: o.model, Prompt: text})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama embeddings: status %d: %s", resp.StatusCode, string(data))
	}

	var parsed ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	return parsed.Embedding, nil
}

// Model returns the configured embedding model name.
func (o *OllamaEmbedder) Model() string { return o.model }

// Dimensions returns the configured output dimensionality.
func (o *OllamaEmbedder) Dimensions() int { return o.dims }

// OllamaLLM calls a local Ollama server's /api/generate endpoint for
// single-prompt completion, guarded the same way as OllamaEmbedder.
type OllamaLLM struct {
	baseURL string
	model   string
	client  *http.Client
	breaker *breaker.Breaker
	limiter *ratelimit.Limiter
}

// NewOllamaLLM constructs an OllamaLLM.
func NewOllamaLLM(baseURL, model string, timeout time.Duration, b *breaker.Breaker, l *ratelimit.Limiter) *OllamaLLM {
	return &OllamaLLM{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: timeout},
		breaker: b,
		limiter: l,
	}
}

type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
}

// Complete requests a completion for prompt from the Ollama server.
func (o *OllamaLLM) Complete(ctx context.Context, prompt string) (string, error) {
	if err := o.limiter.Wait(ctx); err != nil {
		return "", err
	}

	result, err := o.breaker.Execute(ctx, func() (interface{}, error) {
		return o.doComplete(ctx, prompt)
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", mnemerr.ErrLLMTimeout, err)
	}
	return result.(string), nil
}

func (o *OllamaLLM) doComplete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(ollamaGenerateRequest{Model: o.model, Prompt: prompt, Stream: false})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("ollama generate: status %d: %s", resp.StatusCode, string(data))
	}

	var parsed ollamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	return parsed.Response, nil
}

// Model returns the configured completion model name.
func (o *OllamaLLM) Model() string { return o.model }
