// Package dispatch orchestrates one trade signal through pricing and
// execution: secret check, universe check, book fetch, weighted pricing,
// sizing, and submission.
package dispatch

import (
	"context"
	"crypto/hmac"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/thana249/tradingview-executor/internal/config"
	"github.com/thana249/tradingview-executor/internal/exchange"
	"github.com/thana249/tradingview-executor/internal/execution"
	"github.com/thana249/tradingview-executor/internal/metrics"
	"github.com/thana249/tradingview-executor/internal/pricing"
	"github.com/thana249/tradingview-executor/internal/signal"
)

// Notifier delivers best-effort human-readable messages. Failures are
// logged and counted but never affect the invocation's result.
type Notifier interface {
	Notify(ctx context.Context, msg string) error
}

// Outcome classifies a successful invocation.
type Outcome string

const (
	OutcomeExecuted   Outcome = "executed"
	OutcomeNotifyOnly Outcome = "notification_only"
)

// Result is what a successful Execute returns. Receipt is nil for
// notification-only signals.
type Result struct {
	Outcome Outcome            `json:"status"`
	Receipt *execution.Receipt `json:"receipt,omitempty"`
}

// Dispatcher holds the process-wide read-only state: shared secret, weight
// vector, per-exchange config, and one client per wired venue. Safe for
// concurrent use; invocations share nothing mutable except the per-pair
// locks.
type Dispatcher struct {
	secret    string
	weights   []float64
	depth     int
	notional  float64
	exchanges map[string]config.Exchange
	clients   map[string]exchange.Client
	sizer     Sizer
	notifier  Notifier
	log       zerolog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option configures Dispatcher construction.
type Option func(*Dispatcher)

// WithSizer swaps the quantity sizing function.
func WithSizer(s Sizer) Option {
	return func(d *Dispatcher) {
		if s != nil {
			d.sizer = s
		}
	}
}

// New wires a dispatcher from the loaded config, the webhook shared secret,
// and one client per configured exchange.
func New(cfg *config.Config, secret string, clients map[string]exchange.Client, notifier Notifier, log zerolog.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		secret:    secret,
		weights:   cfg.OrderbookWeights,
		depth:     cfg.Order.BookDepth,
		notional:  cfg.Order.Notional,
		exchanges: cfg.Exchanges,
		clients:   clients,
		sizer:     NotionalSizer,
		notifier:  notifier,
		log:       log,
		locks:     make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Execute runs one signal to completion. Every step is terminal on
// failure; there are no retries anywhere on this path, since resubmitting
// blindly risks a duplicate fill.
func (d *Dispatcher) Execute(ctx context.Context, sig *signal.TradeSignal) (*Result, error) {
	if !hmac.Equal([]byte(sig.Secret), []byte(d.secret)) {
		d.count(sig.Exchange, "unauthorized")
		return nil, execution.ErrUnauthorized
	}

	if !sig.SendOrder {
		d.count(sig.Exchange, string(OutcomeNotifyOnly))
		return &Result{Outcome: OutcomeNotifyOnly}, nil
	}

	excfg, ok := d.exchanges[sig.Exchange]
	if !ok {
		d.count(sig.Exchange, "unknown_exchange")
		return nil, fmt.Errorf("%s: %w", sig.Exchange, execution.ErrUnknownExchange)
	}
	asset := strings.TrimSuffix(sig.Symbol, excfg.BaseAsset)
	if !excfg.InUniverse(asset) {
		d.count(sig.Exchange, "symbol_not_in_universe")
		return nil, fmt.Errorf("%s on %s: %w", asset, sig.Exchange, execution.ErrSymbolNotInUniverse)
	}
	client, ok := d.clients[sig.Exchange]
	if !ok {
		d.count(sig.Exchange, "unknown_exchange")
		return nil, fmt.Errorf("%s has no wired client: %w", sig.Exchange, execution.ErrUnknownExchange)
	}
	pair := execution.Pair{Asset: asset, Base: excfg.BaseAsset}

	// Serialize fetch-price-submit per (exchange, symbol) so rapid repeated
	// signals cannot race each other on stale book data.
	unlock := d.lockPair(sig.Exchange, asset)
	defer unlock()

	snap, err := client.FetchOrderBook(ctx, pair, d.depth)
	if err != nil {
		d.count(sig.Exchange, execution.Kind(err))
		return nil, err
	}
	price, err := pricing.Compute(snap, sig.Side, d.weights)
	if err != nil {
		d.count(sig.Exchange, execution.Kind(err))
		return nil, err
	}
	qty := d.sizer(price, excfg.Fee, d.notional)
	if qty <= 0 {
		d.count(sig.Exchange, "execution_rejected")
		return nil, &execution.RejectError{Exchange: sig.Exchange, Reason: "sized quantity is not positive"}
	}

	order := execution.Order{Pair: pair, Side: sig.Side, Price: price, Qty: qty}
	receipt, err := client.SubmitOrder(ctx, order)
	if err != nil {
		d.count(sig.Exchange, execution.Kind(err))
		d.log.Error().Err(err).
			Str("exchange", sig.Exchange).
			Str("symbol", pair.Concat()).
			Str("side", string(sig.Side)).
			Float64("px", price).
			Float64("qty", qty).
			Msg("order submission failed")
		return nil, err
	}

	metrics.OrdersTotal.WithLabelValues(sig.Exchange, pair.Concat(), string(sig.Side)).Inc()
	d.count(sig.Exchange, string(OutcomeExecuted))
	d.log.Info().
		Str("exchange", sig.Exchange).
		Str("symbol", pair.Concat()).
		Str("side", string(sig.Side)).
		Str("order_id", receipt.OrderID).
		Float64("px", price).
		Float64("qty", qty).
		Msg("order submitted")

	d.notify(ctx, fmt.Sprintf("%s %s %s: limit %s qty %s, order id %s",
		sig.Exchange, sig.Side, pair.Concat(),
		trimFloat(price), trimFloat(qty), receipt.OrderID))

	return &Result{Outcome: OutcomeExecuted, Receipt: receipt}, nil
}

// BalanceEntry is one exchange's free base-asset balance for /balance.
type BalanceEntry struct {
	Asset string  `json:"asset"`
	Free  float64 `json:"free"`
	Err   string  `json:"error,omitempty"`
}

// Balances reports the free base-asset balance on every wired exchange.
// Per-exchange failures are reported inline, never fatal.
func (d *Dispatcher) Balances(ctx context.Context) map[string]BalanceEntry {
	out := make(map[string]BalanceEntry, len(d.clients))
	for name, client := range d.clients {
		excfg := d.exchanges[name]
		free, err := client.FreeBalance(ctx, excfg.BaseAsset)
		entry := BalanceEntry{Asset: excfg.BaseAsset, Free: free}
		if err != nil {
			d.log.Warn().Err(err).Str("exchange", name).Msg("balance fetch failed")
			entry = BalanceEntry{Asset: excfg.BaseAsset, Err: "cannot connect"}
		}
		out[name] = entry
	}
	return out
}

func (d *Dispatcher) notify(ctx context.Context, msg string) {
	if d.notifier == nil {
		return
	}
	if err := d.notifier.Notify(ctx, msg); err != nil {
		metrics.NotifyFailures.Inc()
		d.log.Warn().Err(err).Msg("notification failed")
	}
}

func (d *Dispatcher) count(exchangeName, outcome string) {
	if exchangeName == "" {
		exchangeName = "unknown"
	}
	metrics.SignalsTotal.WithLabelValues(exchangeName, outcome).Inc()
}

func (d *Dispatcher) lockPair(exchangeName, asset string) func() {
	key := exchangeName + "/" + asset
	d.mu.Lock()
	l, ok := d.locks[key]
	if !ok {
		l = &sync.Mutex{}
		d.locks[key] = l
	}
	d.mu.Unlock()
	l.Lock()
	return l.Unlock
}

func trimFloat(v float64) string {
	return fmt.Sprintf("%g", v)
}
