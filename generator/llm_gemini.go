package generator

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// GeminiLLM implements LLMClient against the Gemini API.
type GeminiLLM struct {
	client *genai.Client
	model  string
	config genai.GenerateContentConfig
}

func NewGeminiLLM(ctx context.Context, cfg *LLMSettings) (*GeminiLLM, error) {
	if cfg == nil {
		return nil, errors.New("llm config is nil")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("gemini api key missing; provide llm.api_key or llm.api_key_env")
	}
	if cfg.Model == "" {
		return nil, errors.New("llm model is required")
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	if cfg.HTTPClient != nil {
		cc.HTTPClient = cfg.HTTPClient
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	var gc genai.GenerateContentConfig
	if cfg.Temperature != nil {
		gc.Temperature = genai.Ptr(float32(*cfg.Temperature))
	}
	if cfg.MaxOutputTokens > 0 {
		gc.MaxOutputTokens = int32(cfg.MaxOutputTokens)
	}
	return &GeminiLLM{client: client, model: cfg.Model, config: gc}, nil
}

func (g *GeminiLLM) Complete(ctx context.Context, prompt Prompt) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt.User), &g.config)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	return resp.Text(), nil
}
