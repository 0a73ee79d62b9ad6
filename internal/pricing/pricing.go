// Package pricing computes weighted-average limit prices from order book
// snapshots.
package pricing

import (
	"fmt"

	"github.com/thana249/tradingview-executor/internal/book"
	"github.com/thana249/tradingview-executor/internal/execution"
)

// DefaultWeights is applied when the config omits orderbook_weights.
var DefaultWeights = []float64{4, 2, 1, 1, 0, 0}

// ValidateWeights rejects weight vectors the pricer cannot use: empty,
// negative entries, or no positive entry at all.
func ValidateWeights(weights []float64) error {
	if len(weights) == 0 {
		return fmt.Errorf("weight vector is empty")
	}
	positive := false
	for i, w := range weights {
		if w < 0 {
			return fmt.Errorf("weight %d is negative", i)
		}
		if w > 0 {
			positive = true
		}
	}
	if !positive {
		return fmt.Errorf("weight vector has no positive entry")
	}
	return nil
}

// Compute returns the weighted average of the top book levels on the side a
// marketable limit order must cross: asks for a buy, bids for a sell.
// Weights are rank weights (index 0 = best level); level sizes are
// informational only. Weights beyond the available depth are dropped and
// the remainder is renormalized over the levels actually present.
//
// Pure and deterministic: accumulation runs level 0 first so the same
// snapshot and weights always reproduce the same price bit for bit.
func Compute(s *book.Snapshot, side execution.Side, weights []float64) (float64, error) {
	levels := s.Asks
	if side == execution.Sell {
		levels = s.Bids
	}
	if len(levels) == 0 {
		return 0, fmt.Errorf("%s %s: %w", s.Symbol, side, execution.ErrInsufficientBookDepth)
	}

	n := len(weights)
	if len(levels) < n {
		n = len(levels)
	}
	var num, den float64
	for i := 0; i < n; i++ {
		num += weights[i] * levels[i].Price
		den += weights[i]
	}
	// All weight mass sits below the available depth, so no weighted level
	// is actually present.
	if den <= 0 {
		return 0, fmt.Errorf("%s %s: zero weight over %d levels: %w",
			s.Symbol, side, n, execution.ErrInsufficientBookDepth)
	}
	return num / den, nil
}
