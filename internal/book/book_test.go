package book

import "testing"

func TestValidate(t *testing.T) {
	ok := &Snapshot{
		Symbol: "BTCUSDT",
		Bids:   []Level{{Price: 100}, {Price: 99.5}},
		Asks:   []Level{{Price: 100.5}, {Price: 101}},
	}
	if err := ok.Validate(); err != nil {
		t.Fatalf("valid snapshot rejected: %v", err)
	}

	badBids := &Snapshot{Symbol: "X", Bids: []Level{{Price: 100}, {Price: 100}}}
	if err := badBids.Validate(); err == nil {
		t.Fatalf("expected error for non-decreasing bids")
	}

	badAsks := &Snapshot{Symbol: "X", Asks: []Level{{Price: 101}, {Price: 100}}}
	if err := badAsks.Validate(); err == nil {
		t.Fatalf("expected error for non-increasing asks")
	}
}
