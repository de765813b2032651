package generator

// Style 描述改写时模仿的临床医生风格。
type Style string

// RewriteRequest 是一次改写的输入：解码后的原始笔记和选中的风格。
type RewriteRequest struct {
	Original string
	Style    Style
}
