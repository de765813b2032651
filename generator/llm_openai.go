package generator

import (
	"context"
	"errors"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
)

func openAIOptions(cfg *LLMSettings) ([]option.RequestOption, error) {
	if cfg == nil {
		return nil, errors.New("llm config is nil")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key missing; provide llm.api_key or llm.api_key_env")
	}
	if cfg.Model == "" {
		return nil, errors.New("llm model is required")
	}
	// SDK 自带重试关闭，退避节奏只由 Client 控制。
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	return opts, nil
}

// OpenAIResponses implements LLMClient on the Responses API.
type OpenAIResponses struct {
	client      openai.Client
	model       string
	temperature *float64
	maxTokens   int64
}

func NewOpenAIResponses(cfg *LLMSettings) (*OpenAIResponses, error) {
	opts, err := openAIOptions(cfg)
	if err != nil {
		return nil, err
	}
	return &OpenAIResponses{
		client:      openai.NewClient(opts...),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxOutputTokens,
	}, nil
}

func (o *OpenAIResponses) Complete(ctx context.Context, prompt Prompt) (string, error) {
	params := responses.ResponseNewParams{
		Model: o.model,
		Input: responses.ResponseNewParamsInputUnion{
			OfString: openai.String(prompt.User),
		},
	}
	if o.temperature != nil {
		params.Temperature = openai.Float(*o.temperature)
	}
	if o.maxTokens > 0 {
		params.MaxOutputTokens = openai.Int(o.maxTokens)
	}

	resp, err := o.client.Responses.New(ctx, params)
	if err != nil {
		return "", err
	}
	return resp.OutputText(), nil
}

// OpenAIChat implements LLMClient using chat completions, for OpenAI-compatible
// endpoints (DeepSeek, gateways) that do not serve the Responses API.
type OpenAIChat struct {
	client      openai.Client
	model       string
	temperature *float64
	maxTokens   int64
}

func NewOpenAIChat(cfg *LLMSettings) (*OpenAIChat, error) {
	opts, err := openAIOptions(cfg)
	if err != nil {
		return nil, err
	}
	return &OpenAIChat{
		client:      openai.NewClient(opts...),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxOutputTokens,
	}, nil
}

func (o *OpenAIChat) Complete(ctx context.Context, prompt Prompt) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt.User),
		},
	}
	if o.temperature != nil {
		params.Temperature = openai.Float(*o.temperature)
	}
	if o.maxTokens > 0 {
		params.MaxTokens = openai.Int(o.maxTokens)
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}
