package notes

import (
	"context"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
	"go.uber.org/zap"
)

var ErrInvalidDocument = errors.New("document is not valid JSON")

// Processor applies a Rewriter to every presentedForm attachment of a document.
type Processor struct {
	rw     *Rewriter
	logger *zap.Logger
}

func NewProcessor(rw *Rewriter, logger *zap.Logger) (*Processor, error) {
	if rw == nil {
		return nil, errors.New("rewriter is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{rw: rw, logger: logger}, nil
}

// Process walks entry[*].resource.presentedForm[*].data in entry order and
// splices each rewrite back into doc. Bytes outside rewritten values are kept
// as they were. On error the partial count is returned without a document.
func (p *Processor) Process(ctx context.Context, doc []byte) ([]byte, int, error) {
	if !gjson.ValidBytes(doc) {
		return nil, 0, ErrInvalidDocument
	}

	out := doc
	count := 0
	entries := gjson.GetBytes(doc, "entry")
	if !entries.IsArray() {
		return out, 0, nil
	}
	for i, entry := range entries.Array() {
		resource := entry.Get("resource")
		if !resource.IsObject() {
			continue
		}
		forms := resource.Get("presentedForm")
		if !forms.IsArray() {
			continue
		}
		for j, form := range forms.Array() {
			data := form.Get("data")
			if !data.Exists() {
				continue
			}
			if data.Type != gjson.String {
				p.logger.Warn("note data is not a string, leaving unchanged",
					zap.Int("entry", i), zap.Int("form", j))
				continue
			}

			token, rewritten, err := p.rw.RewriteAttachment(ctx, data.String())
			if err != nil {
				return nil, count, fmt.Errorf("entry %d presentedForm %d: %w", i, j, err)
			}
			if !rewritten {
				continue
			}
			path := fmt.Sprintf("entry.%d.resource.presentedForm.%d.data", i, j)
			out, err = sjson.SetBytes(out, path, token)
			if err != nil {
				return nil, count, fmt.Errorf("set %s: %w", path, err)
			}
			count++
			p.logger.Info("processed note", zap.Int("count", count))
		}
	}
	return out, count, nil
}

var formatOptions = &pretty.Options{
	Width:    0,
	Prefix:   "",
	Indent:   "  ",
	SortKeys: false,
}

// Format re-indents doc with two spaces. Key order and non-ASCII text are kept.
func Format(doc []byte) []byte {
	return pretty.PrettyOptions(doc, formatOptions)
}
