package notes

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"clinical_note_noiser/generator"
)

// Generator turns a prompt into accepted text. *generator.Client implements it.
type Generator interface {
	Generate(ctx context.Context, prompt generator.Prompt) (string, error)
}

// Rewriter rewrites a single attachment token.
type Rewriter struct {
	gen    Generator
	styles generator.StyleSelector
	logger *zap.Logger
}

func NewRewriter(gen Generator, styles generator.StyleSelector, logger *zap.Logger) (*Rewriter, error) {
	if gen == nil {
		return nil, errors.New("generator is required")
	}
	if styles == nil {
		styles = generator.DefaultStyles()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Rewriter{gen: gen, styles: styles, logger: logger}, nil
}

// RewriteAttachment returns the re-encoded rewrite of token and true. A token
// that does not decode comes back unchanged with false; it is neither retried
// nor counted. Generation errors are returned as-is.
func (r *Rewriter) RewriteAttachment(ctx context.Context, token string) (string, bool, error) {
	original, err := DecodeText(token)
	if err != nil {
		r.logger.Warn("could not decode note, leaving unchanged", zap.Error(err))
		return token, false, nil
	}

	prompt := generator.BuildRewritePrompt(generator.RewriteRequest{
		Original: original,
		Style:    r.styles(),
	})
	text, err := r.gen.Generate(ctx, prompt)
	if err != nil {
		return "", false, err
	}
	return EncodeText(text), true, nil
}
