package analytics

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"haggle-go/internal/negotiation"
)

func TestJSONLSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "transitions.jsonl")

	sink, err := NewJSONLSink(path)
	if err != nil {
		t.Fatalf("NewJSONLSink error: %v", err)
	}
	tr := sampleTransition("counter")
	if err := sink.Record(tr); err != nil {
		t.Fatalf("Record error: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if err := sink.Record(tr); err == nil {
		t.Fatalf("expected error recording to a closed sink")
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open recorded file: %v", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	if !scanner.Scan() {
		t.Fatalf("expected one line in sink output")
	}
	var decoded negotiation.Transition
	if err := json.Unmarshal(scanner.Bytes(), &decoded); err != nil {
		t.Fatalf("json decode: %v", err)
	}
	if decoded.Event != tr.Event || decoded.DealID != tr.DealID || !decoded.Amount.Equal(tr.Amount) {
		t.Fatalf("unexpected decoded transition %+v", decoded)
	}
}
