package jobs

import (
	"fmt"
	"os"
	"sync"
)

// Sink receives job log lines. Write appends one line; the sink adds the newline.
type Sink interface {
	Write(line string) error
}

// FileSink appends lines to a file, opening it in append mode for every
// write so external log rotation is safe.
type FileSink struct {
	Path string
	mu   sync.Mutex
}

func NewFileSink(path string) *FileSink {
	return &FileSink{Path: path}
}

func (s *FileSink) Write(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", s.Path, err)
	}
	if _, err := fmt.Fprintln(f, line); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", s.Path, err)
	}
	return f.Close()
}
