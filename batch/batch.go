// Package batch drives a directory of documents through the note rewrite pipeline.
package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"clinical_note_noiser/generator"
	"clinical_note_noiser/notes"
)

// DocumentProcessor rewrites one document. *notes.Processor implements it.
type DocumentProcessor interface {
	Process(ctx context.Context, doc []byte) ([]byte, int, error)
}

// Options describes one batch run. Delay is slept between consecutive documents.
type Options struct {
	InDir   string
	OutDir  string
	Pattern string
	Delay   time.Duration
	Sleep   func(ctx context.Context, d time.Duration) error
}

// Summary reports one completed document.
type Summary struct {
	File      string
	Rewritten int
}

// Runner processes documents one at a time, in glob order.
type Runner struct {
	proc   DocumentProcessor
	opts   Options
	logger *zap.Logger
}

func New(proc DocumentProcessor, opts Options, logger *zap.Logger) (*Runner, error) {
	if proc == nil {
		return nil, errors.New("document processor is required")
	}
	if opts.InDir == "" || opts.OutDir == "" {
		return nil, errors.New("input and output directories are required")
	}
	if opts.Pattern == "" {
		opts.Pattern = DefaultPattern
	}
	if !doublestar.ValidatePattern(opts.Pattern) {
		return nil, fmt.Errorf("invalid pattern %q", opts.Pattern)
	}
	if opts.Sleep == nil {
		opts.Sleep = generator.SleepContext
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{proc: proc, opts: opts, logger: logger}, nil
}

// Inputs lists matching files relative to InDir, in walk order.
func (r *Runner) Inputs() ([]string, error) {
	matches, err := doublestar.Glob(os.DirFS(r.opts.InDir), r.opts.Pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("glob %s in %s: %w", r.opts.Pattern, r.opts.InDir, err)
	}
	return matches, nil
}

// Run stops at the first failing document. Outputs already written stay in
// place; summaries of the documents finished before the failure are returned.
func (r *Runner) Run(ctx context.Context) ([]Summary, error) {
	if err := os.MkdirAll(r.opts.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	inputs, err := r.Inputs()
	if err != nil {
		return nil, err
	}
	r.logger.Info("starting batch",
		zap.String("in_dir", r.opts.InDir),
		zap.String("out_dir", r.opts.OutDir),
		zap.Int("documents", len(inputs)))

	var summaries []Summary
	for i, name := range inputs {
		if i > 0 && r.opts.Delay > 0 {
			if err := r.opts.Sleep(ctx, r.opts.Delay); err != nil {
				return summaries, err
			}
		}
		s, err := r.processFile(ctx, name)
		if err != nil {
			return summaries, fmt.Errorf("%s: %w", name, err)
		}
		summaries = append(summaries, s)
		r.logger.Info("rewrote notes",
			zap.String("file", s.File),
			zap.Int("rewritten", s.Rewritten))
	}
	return summaries, nil
}

func (r *Runner) processFile(ctx context.Context, name string) (Summary, error) {
	data, err := os.ReadFile(filepath.Join(r.opts.InDir, filepath.FromSlash(name)))
	if err != nil {
		return Summary{}, err
	}
	out, n, err := r.proc.Process(ctx, data)
	if err != nil {
		return Summary{}, err
	}

	base := path.Base(name)
	if err := writeAtomic(filepath.Join(r.opts.OutDir, base), notes.Format(out)); err != nil {
		return Summary{}, fmt.Errorf("write output: %w", err)
	}
	return Summary{File: base, Rewritten: n}, nil
}

// writeAtomic writes to a temp file in the destination directory and renames it over dest.
func writeAtomic(dest string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	_ = os.Chmod(tmpPath, 0o644)
	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}
