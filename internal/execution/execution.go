// Package execution holds the order types and the failure taxonomy shared
// by the dispatcher and the exchange adapters.
package execution

import (
	"fmt"
	"strings"
)

// Side enumerates order directions.
type Side string

const (
	// Buy crosses the ask side of the book.
	Buy Side = "BUY"
	// Sell crosses the bid side of the book.
	Sell Side = "SELL"
)

// ParseSide maps the webhook spelling ("buy"/"sell", any case) to a Side.
func ParseSide(raw string) (Side, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "BUY":
		return Buy, nil
	case "SELL":
		return Sell, nil
	default:
		return "", fmt.Errorf("invalid side %q", raw)
	}
}

// Lower returns the REST-body spelling used by FTX and KuCoin.
func (s Side) Lower() string { return strings.ToLower(string(s)) }

// Pair identifies a market as asset plus quote currency. Each adapter owns
// the translation to its venue's symbol format.
type Pair struct {
	Asset string
	Base  string
}

// Concat returns the unified "BTCUSDT"-style symbol.
func (p Pair) Concat() string { return p.Asset + p.Base }

// Order is a single limit order placement request. It lives for one
// dispatcher invocation and is not retained.
type Order struct {
	Pair  Pair
	Side  Side
	Price float64
	Qty   float64
}

// Receipt reports a submitted order back to the caller for notification.
type Receipt struct {
	Exchange string  `json:"exchange"`
	OrderID  string  `json:"order_id"`
	Filled   bool    `json:"filled"`
	Price    float64 `json:"price"`
	Qty      float64 `json:"qty"`
}
