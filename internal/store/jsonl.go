package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/nao1215/jobharvest/internal/model"
)

// JSONLines writes one JSON-encoded record per line.
type JSONLines struct {
	mu     sync.Mutex
	enc    *json.Encoder
	closer io.Closer
}

// NewJSONLines writes to w. Closing the sink does not close w.
func NewJSONLines(w io.Writer) *JSONLines {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &JSONLines{enc: enc}
}

// OpenJSONLines appends to the file at path, creating it if needed.
// The path "-" writes to stdout.
func OpenJSONLines(path string) (*JSONLines, error) {
	if path == "-" {
		return NewJSONLines(os.Stdout), nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600) //nolint:gosec // path is user supplied on purpose
	if err != nil {
		return nil, fmt.Errorf("failed to open output file: %w", err)
	}
	s := NewJSONLines(f)
	s.closer = f
	return s, nil
}

// Append implements Sink.
func (s *JSONLines) Append(_ context.Context, rec model.CanonicalRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(rec); err != nil {
		return fmt.Errorf("failed to write record %s: %w", rec.ID, err)
	}
	return nil
}

// Close implements Sink.
func (s *JSONLines) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
