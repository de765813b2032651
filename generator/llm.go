package generator

import (
	"context"
	"net/http"
)

// LLMClient 抽象大模型客户端，便于替换/Mock。
// Complete 只做单次调用；重试由 Client 统一负责。
type LLMClient interface {
	Complete(ctx context.Context, prompt Prompt) (string, error)
}

// LLMSettings 提供给具体实现的基础配置。
type LLMSettings struct {
	Provider        string
	Model           string
	APIKey          string
	BaseURL         string
	Temperature     *float64
	MaxOutputTokens int64
	// HTTPClient 为空时使用 SDK 默认客户端。
	HTTPClient      *http.Client
}
