package generator

import (
	"fmt"
	"strings"
)

const (
	noteStart = "** start **"
	noteEnd   = "** end **"
)

// Prompt 表示发送给 LLM 的单条用户消息。
type Prompt struct {
	User string
}

// String 返回写入审计日志的完整提示词。
func (p Prompt) String() string {
	return p.User
}

// BuildRewritePrompt 生成改写提示词。只渲染约束，不做校验。
func BuildRewritePrompt(req RewriteRequest) Prompt {
	var sb strings.Builder
	sb.WriteString("\nRewrite the clinical note below to sound more human and imperfect, while keeping all medical facts.\n")
	sb.WriteString(fmt.Sprintf("Use the style described here: %s\n", req.Style))
	sb.WriteString("Introduce mild typos, shorthand, pauses, and messy structure, but do NOT change diagnoses, medications, or objective facts. Only use ASCII characters.\n")
	sb.WriteString("\nOriginal note:\n")
	sb.WriteString(noteStart + "\n")
	sb.WriteString(req.Original + "\n")
	sb.WriteString(noteEnd + "\n")
	sb.WriteString("\nReturn only the rewritten note.\n")

	return Prompt{User: sb.String()}
}
