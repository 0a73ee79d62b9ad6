// Package exchange hosts the venue adapters behind one capability
// interface. Each adapter differs only in wire format and authentication;
// callers never branch on the concrete variant.
package exchange

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/thana249/tradingview-executor/internal/book"
	"github.com/thana249/tradingview-executor/internal/execution"
)

// Client is the capability every venue provides.
//
// FetchOrderBook is a read against the venue's public market-data endpoint
// and has no side effects. SubmitOrder places a real order through a signed
// request and must never be retried by the adapter itself; whether a failed
// submit is retried is the caller's decision.
type Client interface {
	Name() string
	FetchOrderBook(ctx context.Context, pair execution.Pair, depth int) (*book.Snapshot, error)
	SubmitOrder(ctx context.Context, order execution.Order) (*execution.Receipt, error)
	FreeBalance(ctx context.Context, asset string) (float64, error)
}

// Credentials for one venue, read from process env by the caller.
// Passphrase is only used by KuCoin.
type Credentials struct {
	Key        string
	Secret     string
	Passphrase string
}

// wireDecimal renders a float for REST bodies and query strings. Venues
// reject scientific notation, which fmt happily produces for sub-cent
// prices, so everything goes through decimal.
func wireDecimal(v float64) string {
	return decimal.NewFromFloat(v).String()
}
