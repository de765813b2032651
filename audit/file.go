package audit

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
)

// DefaultLogFile is where the CLI appends audit blocks unless configured otherwise.
const DefaultLogFile = "note_rewrite_log.txt"

var (
	heavyRule = strings.Repeat("=", 80)
	lightRule = strings.Repeat("-", 80)
)

// FileSink appends human-readable blocks to a text file. The file is opened
// per append with O_APPEND so earlier runs are never truncated.
type FileSink struct {
	path string
	mu   sync.Mutex
}

func NewFileSink(path string) (*FileSink, error) {
	if path == "" {
		return nil, errors.New("audit log path is empty")
	}
	return &FileSink{path: path}, nil
}

func (s *FileSink) Append(_ context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	if _, err := f.WriteString(FormatBlock(e)); err != nil {
		f.Close()
		return fmt.Errorf("write audit log: %w", err)
	}
	return f.Close()
}

// FormatBlock renders the delimited PROMPT/OUTPUT block written for e.
func FormatBlock(e Entry) string {
	var sb strings.Builder
	sb.WriteString("\n" + heavyRule + "\n")
	sb.WriteString("PROMPT:\n")
	sb.WriteString(e.Prompt + "\n")
	sb.WriteString(lightRule + "\n")
	sb.WriteString("OUTPUT:\n")
	sb.WriteString(e.Response + "\n")
	sb.WriteString(heavyRule + "\n")
	return sb.String()
}
