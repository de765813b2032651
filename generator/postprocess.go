package generator

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// DefaultMinOutputChars 输出去空白后必须严格长于该值。
const DefaultMinOutputChars = 5

var ErrOutputTooShort = errors.New("llm output empty or too short")

// PostProcess 校验模型输出：去首尾空白，拆掉整段代码围栏，再检查长度。
func PostProcess(raw string, minChars int) (string, error) {
	out := strings.TrimSpace(raw)
	out = strings.TrimSpace(unwrapFence(out))
	if utf8.RuneCountInString(out) <= minChars {
		return "", fmt.Errorf("%w: %q", ErrOutputTooShort, out)
	}
	return out, nil
}

// 模型偶尔会把整段回复包进 ``` 里；只有整个文档就是一个围栏代码块时才拆。
func unwrapFence(md string) string {
	src := []byte(md)
	doc := goldmark.DefaultParser().Parse(text.NewReader(src))
	if doc.ChildCount() != 1 {
		return md
	}
	block, ok := doc.FirstChild().(*ast.FencedCodeBlock)
	if !ok {
		return md
	}
	var b strings.Builder
	lines := block.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(src))
	}
	return b.String()
}
