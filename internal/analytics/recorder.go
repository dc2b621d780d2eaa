package analytics

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"haggle-go/internal/negotiation"
)

// JSONLSink appends transitions as JSON lines for later analysis.
type JSONLSink struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewJSONLSink creates/opens the target file and returns a sink.
func NewJSONLSink(path string) (*JSONLSink, error) {
	if path == "" {
		return nil, errors.New("jsonl sink requires a path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &JSONLSink{
		file: file,
		enc:  json.NewEncoder(file),
	}, nil
}

// Record writes a single transition to the underlying JSONL file.
func (r *JSONLSink) Record(tr negotiation.Transition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return errors.New("jsonl sink closed")
	}
	return r.enc.Encode(tr)
}

// Close flushes and closes the file handle.
func (r *JSONLSink) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

// LogSink writes transitions to a zerolog logger.
type LogSink struct{ log zerolog.Logger }

// NewLogSink wraps log.
func NewLogSink(log zerolog.Logger) *LogSink { return &LogSink{log: log} }

// Record logs tr at info level.
func (s *LogSink) Record(tr negotiation.Transition) error {
	s.log.Info().
		Str("session", tr.SessionID).
		Str("deal", tr.DealID).
		Str("event", tr.Event).
		Str("from", string(tr.From)).
		Str("to", string(tr.To)).
		Int("round", tr.Round).
		Str("amount", tr.Amount.String()).
		Str("zone", string(tr.Zone)).
		Msg("negotiation event")
	return nil
}
