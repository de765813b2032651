package generator

import (
	"context"
	"strings"
)

// MockLLM 一个简单的占位实现，便于本地调试，不调用外部模型。
// Reply 为空时原样返回提示词中围起来的原始笔记。
type MockLLM struct {
	Reply string
}

func (m MockLLM) Complete(_ context.Context, prompt Prompt) (string, error) {
	if m.Reply != "" {
		return m.Reply, nil
	}
	return extractOriginal(prompt.User), nil
}

func extractOriginal(rendered string) string {
	_, rest, ok := strings.Cut(rendered, noteStart+"\n")
	if !ok {
		return rendered
	}
	note, _, ok := strings.Cut(rest, "\n"+noteEnd)
	if !ok {
		return rest
	}
	return note
}
