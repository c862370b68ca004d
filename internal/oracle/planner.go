// Package oracle provides the planner backends that turn prompts into
// free-form text. Output is untrusted; callers parse and validate it.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Provider names accepted by New.
const (
	ProviderAnthropic = "anthropic"
	ProviderBedrock   = "bedrock"
	ProviderGemini    = "gemini"
)

// DefaultMaxTokens bounds each planner response.
const DefaultMaxTokens = 8192

// ErrEmptyResponse is returned when the backend produced no text.
var ErrEmptyResponse = errors.New("planner returned empty text")

// Planner generates text for a prompt.
type Planner interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Config selects and configures a planner backend.
type Config struct {
	// Provider is one of anthropic, bedrock or gemini.
	Provider string
	// Model is the backend model name. Empty picks the provider default.
	Model string
	// APIKey is used by the anthropic and gemini providers.
	APIKey string
	// AWSRegion and AWSProfile configure the bedrock provider.
	AWSRegion  string
	AWSProfile string
	// GCPProject and GCPLocation switch the gemini provider to Vertex AI.
	GCPProject  string
	GCPLocation string
	// MaxTokens caps the response length.
	MaxTokens int
}

// New creates the planner for cfg.Provider.
func New(ctx context.Context, cfg Config) (Planner, error) {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	switch cfg.Provider {
	case "", ProviderAnthropic:
		return NewAnthropic(cfg)
	case ProviderBedrock:
		return NewAnthropic(cfg)
	case ProviderGemini:
		return NewGemini(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown planner provider %q", cfg.Provider)
	}
}

// TokenTracker tracks token usage across planner calls.
type TokenTracker struct {
	mu        sync.Mutex
	inputTok  int64
	outputTok int64
	calls     int
}

// NewTokenTracker creates a new token tracker.
func NewTokenTracker() *TokenTracker {
	return &TokenTracker{}
}

// Add records token usage from a call.
func (t *TokenTracker) Add(input, output int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inputTok += input
	t.outputTok += output
	t.calls++
}

// Total returns the total input and output tokens tracked.
func (t *TokenTracker) Total() (input, output int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inputTok, t.outputTok
}

// Calls returns the number of calls made.
func (t *TokenTracker) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}
