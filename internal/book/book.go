// Package book defines the order book snapshot shared between exchange
// adapters and pricing.
package book

import (
	"fmt"
	"time"
)

// Level is one price level. Slices hold the best level first.
type Level struct {
	Price float64
	Size  float64
}

// Snapshot is a point-in-time view of one symbol's book. A snapshot is
// built fresh for every execution and never reused: the book can move
// between signals.
type Snapshot struct {
	Symbol string
	Bids   []Level // strictly decreasing price
	Asks   []Level // strictly increasing price
	Ts     time.Time
}

// Validate checks the level ordering invariants.
func (s *Snapshot) Validate() error {
	for i := 1; i < len(s.Bids); i++ {
		if s.Bids[i].Price >= s.Bids[i-1].Price {
			return fmt.Errorf("%s: bids not strictly decreasing at level %d", s.Symbol, i)
		}
	}
	for i := 1; i < len(s.Asks); i++ {
		if s.Asks[i].Price <= s.Asks[i-1].Price {
			return fmt.Errorf("%s: asks not strictly increasing at level %d", s.Symbol, i)
		}
	}
	return nil
}
