package oracle

import (
	"context"
	"fmt"
	"os"

	"google.golang.org/genai"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

// Gemini is a Planner backed by Google's Gemini models, through the Gemini
// API (API key) or Vertex AI (GCP project and location).
type Gemini struct {
	client    *genai.Client
	model     string
	maxTokens int32
	tracker   *TokenTracker
}

// NewGemini creates a Gemini planner.
func NewGemini(ctx context.Context, cfg Config) (*Gemini, error) {
	cc, err := geminiClientConfig(cfg)
	if err != nil {
		return nil, err
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = DefaultGeminiModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	return &Gemini{
		client:    client,
		model:     model,
		maxTokens: int32(maxTokens),
		tracker:   NewTokenTracker(),
	}, nil
}

// geminiClientConfig picks Vertex AI when a GCP project and location are
// set, and the Gemini API otherwise.
func geminiClientConfig(cfg Config) (*genai.ClientConfig, error) {
	if cfg.GCPProject != "" || cfg.GCPLocation != "" {
		if cfg.GCPProject == "" || cfg.GCPLocation == "" {
			return nil, fmt.Errorf("gcp_project and gcp_location must both be set for Vertex AI")
		}
		return &genai.ClientConfig{
			Project:  cfg.GCPProject,
			Location: cfg.GCPLocation,
			Backend:  genai.BackendVertexAI,
		}, nil
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable is not set")
	}
	return &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}, nil
}

// Model returns the configured model name.
func (g *Gemini) Model() string {
	return g.model
}

// Tracker returns the token tracker for this planner.
func (g *Gemini) Tracker() *TokenTracker {
	return g.tracker
}

// Generate sends prompt as a single user turn and returns the response text.
func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	temp := float32(0.2)
	cfg := &genai.GenerateContentConfig{
		Temperature:     &temp,
		MaxOutputTokens: g.maxTokens,
	}

	res, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}
	if res.UsageMetadata != nil {
		g.tracker.Add(int64(res.UsageMetadata.PromptTokenCount), int64(res.UsageMetadata.CandidatesTokenCount))
	}

	text := res.Text()
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

var _ Planner = (*Gemini)(nil)
