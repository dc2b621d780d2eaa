package negotiation

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestTranscriptAppendSnapshot(t *testing.T) {
	tr := NewTranscript(-1)
	if _, ok := tr.Last(); ok {
		t.Fatalf("expected empty transcript")
	}
	tr.Append(Entry{Source: SourceCounterparty, Kind: KindOffer, Amount: decimal.NewFromInt(100)})
	tr.Append(Entry{Source: SourceClient, Kind: KindBid, Amount: decimal.NewFromInt(104)})

	entries := tr.Entries()
	if len(entries) != 2 || tr.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	entries[0].Message = "mutated"
	if tr.Entries()[0].Message == "mutated" {
		t.Fatalf("Entries must return a copy")
	}
}

func TestReplacePlaceholderOnlyReplacesPlaceholder(t *testing.T) {
	tr := NewTranscript(0)
	if tr.ReplacePlaceholder(Entry{Source: SourceCounterparty}) {
		t.Fatalf("replace on empty transcript succeeded")
	}
	tr.Append(Entry{Source: SourceClient, Kind: KindBid})
	if tr.ReplacePlaceholder(Entry{Source: SourceCounterparty}) {
		t.Fatalf("replaced a non-placeholder entry")
	}
	tr.Append(Entry{Source: SourcePlaceholder, Kind: KindReviewing})
	if !tr.ReplacePlaceholder(Entry{Source: SourceCounterparty, Kind: KindCounter}) {
		t.Fatalf("expected placeholder replaced")
	}
	if tr.Len() != 2 {
		t.Fatalf("replacement changed length to %d", tr.Len())
	}
	last, _ := tr.Last()
	if last.Kind != KindCounter {
		t.Fatalf("unexpected last entry %+v", last)
	}
	if tr.ReplacePlaceholder(Entry{Source: SourceCounterparty}) {
		t.Fatalf("placeholder replaced twice")
	}
}
