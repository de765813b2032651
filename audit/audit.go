// Package audit keeps the append-only trail of accepted prompt/response pairs.
package audit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entry is one accepted rewrite. Entries are never mutated after Append.
type Entry struct {
	ID        string
	RunID     string
	Model     string
	Attempt   int
	Prompt    string
	Response  string
	CreatedAt time.Time
}

// Sink receives exactly one Entry per accepted response.
type Sink interface {
	Append(ctx context.Context, e Entry) error
}

// NewEntry stamps an entry with a fresh ID and the current time.
func NewEntry(runID, model string, attempt int, prompt, response string) Entry {
	return Entry{
		ID:        uuid.New().String(),
		RunID:     runID,
		Model:     model,
		Attempt:   attempt,
		Prompt:    prompt,
		Response:  response,
		CreatedAt: time.Now().UTC(),
	}
}

// NewRunID returns an identifier shared by all entries of one process run.
func NewRunID() string {
	return uuid.New().String()
}

// Memory collects entries in memory, mostly for tests.
type Memory struct {
	mu      sync.Mutex
	entries []Entry
}

func (m *Memory) Append(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

// Entries returns a copy of everything appended so far.
func (m *Memory) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

type multi []Sink

// Multi fans an entry out to every non-nil sink in order.
func Multi(sinks ...Sink) Sink {
	var m multi
	for _, s := range sinks {
		if s != nil {
			m = append(m, s)
		}
	}
	return m
}

func (m multi) Append(ctx context.Context, e Entry) error {
	var errs []error
	for _, s := range m {
		if err := s.Append(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type discard struct{}

func (discard) Append(context.Context, Entry) error { return nil }

// Discard drops every entry.
var Discard Sink = discard{}
