package dispatch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/thana249/tradingview-executor/internal/book"
	"github.com/thana249/tradingview-executor/internal/config"
	"github.com/thana249/tradingview-executor/internal/exchange"
	"github.com/thana249/tradingview-executor/internal/execution"
	"github.com/thana249/tradingview-executor/internal/signal"
)

type fakeClient struct {
	mu          sync.Mutex
	fetchCalls  int
	submitCalls int
	fetchErr    error
	submitErr   error
	snapshot    *book.Snapshot
	submitted   []execution.Order
	inFlight    bool
	overlapped  bool
	delay       time.Duration
}

func (f *fakeClient) Name() string { return "FAKE" }

func (f *fakeClient) FetchOrderBook(ctx context.Context, pair execution.Pair, depth int) (*book.Snapshot, error) {
	f.mu.Lock()
	f.fetchCalls++
	if f.inFlight {
		f.overlapped = true
	}
	f.inFlight = true
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.fetchErr != nil {
		f.mu.Lock()
		f.inFlight = false
		f.mu.Unlock()
		return nil, f.fetchErr
	}
	return f.snapshot, nil
}

func (f *fakeClient) SubmitOrder(ctx context.Context, order execution.Order) (*execution.Receipt, error) {
	f.mu.Lock()
	f.submitCalls++
	f.submitted = append(f.submitted, order)
	f.inFlight = false
	f.mu.Unlock()
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	return &execution.Receipt{Exchange: "FAKE", OrderID: "42", Price: order.Price, Qty: order.Qty}, nil
}

func (f *fakeClient) FreeBalance(ctx context.Context, asset string) (float64, error) {
	return 1000, nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []string
	err  error
}

func (n *recordingNotifier) Notify(ctx context.Context, msg string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
	return n.err
}

func testConfig() *config.Config {
	return &config.Config{
		Order:            config.Order{Notional: 100, BookDepth: 20},
		OrderbookWeights: []float64{4, 2, 1, 1, 0, 0},
		Exchanges: map[string]config.Exchange{
			"BINANCE": {Fee: 0.001, BaseAsset: "USDT", Universe: []string{"BTC"}},
		},
	}
}

func testSnapshot() *book.Snapshot {
	return &book.Snapshot{
		Symbol: "BTCUSDT",
		Asks:   []book.Level{{Price: 100, Size: 1}, {Price: 101, Size: 1}, {Price: 102, Size: 1}, {Price: 103, Size: 1}},
		Bids:   []book.Level{{Price: 99, Size: 1}, {Price: 98, Size: 1}},
		Ts:     time.Now(),
	}
}

func testSignal() *signal.TradeSignal {
	return &signal.TradeSignal{
		Exchange:  "BINANCE",
		Symbol:    "BTC",
		Side:      execution.Buy,
		SendOrder: true,
		Secret:    "hunter2",
	}
}

func newTestDispatcher(client exchange.Client, notifier Notifier) *Dispatcher {
	return New(testConfig(), "hunter2", map[string]exchange.Client{"BINANCE": client}, notifier, zerolog.Nop())
}

func TestExecuteHappyPath(t *testing.T) {
	client := &fakeClient{snapshot: testSnapshot()}
	notifier := &recordingNotifier{}
	d := newTestDispatcher(client, notifier)

	result, err := d.Execute(context.Background(), testSignal())
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if result.Outcome != OutcomeExecuted || result.Receipt == nil {
		t.Fatalf("unexpected result: %+v", result)
	}
	if client.fetchCalls != 1 || client.submitCalls != 1 {
		t.Fatalf("fetch=%d submit=%d want 1/1", client.fetchCalls, client.submitCalls)
	}

	order := client.submitted[0]
	if order.Price != 100.875 {
		t.Fatalf("price=%v want=100.875", order.Price)
	}
	wantQty := 100 * (1 - 0.001) / 100.875
	if math.Abs(order.Qty-wantQty) > 1e-12 {
		t.Fatalf("qty=%v want=%v", order.Qty, wantQty)
	}
	if order.Pair != (execution.Pair{Asset: "BTC", Base: "USDT"}) {
		t.Fatalf("unexpected pair: %+v", order.Pair)
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.msgs) != 1 {
		t.Fatalf("expected one notification, got %d", len(notifier.msgs))
	}
}

func TestExecuteWrongSecret(t *testing.T) {
	client := &fakeClient{snapshot: testSnapshot()}
	d := newTestDispatcher(client, &recordingNotifier{})

	sig := testSignal()
	sig.Secret = "wrong"
	_, err := d.Execute(context.Background(), sig)
	if !errors.Is(err, execution.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if client.fetchCalls != 0 || client.submitCalls != 0 {
		t.Fatalf("exchange touched on auth failure: fetch=%d submit=%d", client.fetchCalls, client.submitCalls)
	}
}

func TestExecuteNotificationOnly(t *testing.T) {
	client := &fakeClient{snapshot: testSnapshot()}
	d := newTestDispatcher(client, &recordingNotifier{})

	sig := testSignal()
	sig.SendOrder = false
	result, err := d.Execute(context.Background(), sig)
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if result.Outcome != OutcomeNotifyOnly || result.Receipt != nil {
		t.Fatalf("unexpected result: %+v", result)
	}
	if client.fetchCalls != 0 || client.submitCalls != 0 {
		t.Fatalf("exchange touched for notification-only signal")
	}
}

func TestExecuteUnknownExchange(t *testing.T) {
	d := newTestDispatcher(&fakeClient{snapshot: testSnapshot()}, &recordingNotifier{})

	sig := testSignal()
	sig.Exchange = "KRAKEN"
	_, err := d.Execute(context.Background(), sig)
	if !errors.Is(err, execution.ErrUnknownExchange) {
		t.Fatalf("expected ErrUnknownExchange, got %v", err)
	}
}

func TestExecuteSymbolNotInUniverse(t *testing.T) {
	client := &fakeClient{snapshot: testSnapshot()}
	d := newTestDispatcher(client, &recordingNotifier{})

	sig := testSignal()
	sig.Symbol = "ETH"
	_, err := d.Execute(context.Background(), sig)
	if !errors.Is(err, execution.ErrSymbolNotInUniverse) {
		t.Fatalf("expected ErrSymbolNotInUniverse, got %v", err)
	}
	if client.fetchCalls != 0 || client.submitCalls != 0 {
		t.Fatalf("exchange touched for out-of-universe symbol")
	}
}

func TestExecutePairSymbolAccepted(t *testing.T) {
	// TradingView alerts often carry the full pair; the base suffix is
	// stripped before the universe check.
	client := &fakeClient{snapshot: testSnapshot()}
	d := newTestDispatcher(client, &recordingNotifier{})

	sig := testSignal()
	sig.Symbol = "BTCUSDT"
	if _, err := d.Execute(context.Background(), sig); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
}

func TestExecuteFetchFailureStopsPipeline(t *testing.T) {
	client := &fakeClient{
		fetchErr: fmt.Errorf("binance depth: %w", execution.ErrMarketDataUnavailable),
	}
	d := newTestDispatcher(client, &recordingNotifier{})

	_, err := d.Execute(context.Background(), testSignal())
	if !errors.Is(err, execution.ErrMarketDataUnavailable) {
		t.Fatalf("expected ErrMarketDataUnavailable, got %v", err)
	}
	if client.submitCalls != 0 {
		t.Fatalf("submit called after fetch failure")
	}
}

func TestExecuteSubmitRejectionPropagates(t *testing.T) {
	client := &fakeClient{
		snapshot:  testSnapshot(),
		submitErr: &execution.RejectError{Exchange: "BINANCE", Reason: "insufficient balance"},
	}
	d := newTestDispatcher(client, &recordingNotifier{})

	_, err := d.Execute(context.Background(), testSignal())
	if !errors.Is(err, execution.ErrExecutionRejected) {
		t.Fatalf("expected ErrExecutionRejected, got %v", err)
	}
	if client.submitCalls != 1 {
		t.Fatalf("submit calls=%d want=1 (no retries)", client.submitCalls)
	}
}

func TestExecuteNotifierFailureIsSwallowed(t *testing.T) {
	client := &fakeClient{snapshot: testSnapshot()}
	notifier := &recordingNotifier{err: errors.New("line is down")}
	d := newTestDispatcher(client, notifier)

	result, err := d.Execute(context.Background(), testSignal())
	if err != nil {
		t.Fatalf("notifier failure escalated: %v", err)
	}
	if result.Outcome != OutcomeExecuted {
		t.Fatalf("unexpected outcome: %s", result.Outcome)
	}
}

func TestExecuteSerializesPerPair(t *testing.T) {
	client := &fakeClient{snapshot: testSnapshot(), delay: 20 * time.Millisecond}
	d := newTestDispatcher(client, &recordingNotifier{})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := d.Execute(context.Background(), testSignal()); err != nil {
				t.Errorf("Execute returned error: %v", err)
			}
		}()
	}
	wg.Wait()

	if client.overlapped {
		t.Fatalf("concurrent executions overlapped on the same pair")
	}
	if client.fetchCalls != 4 || client.submitCalls != 4 {
		t.Fatalf("fetch=%d submit=%d want 4/4", client.fetchCalls, client.submitCalls)
	}
}

func TestExecuteCustomSizer(t *testing.T) {
	client := &fakeClient{snapshot: testSnapshot()}
	d := New(testConfig(), "hunter2", map[string]exchange.Client{"BINANCE": client}, &recordingNotifier{}, zerolog.Nop(),
		WithSizer(func(price, fee, notional float64) float64 { return 0.25 }))

	if _, err := d.Execute(context.Background(), testSignal()); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if client.submitted[0].Qty != 0.25 {
		t.Fatalf("qty=%v want=0.25", client.submitted[0].Qty)
	}
}

func TestExecuteZeroQuantityRejected(t *testing.T) {
	client := &fakeClient{snapshot: testSnapshot()}
	d := New(testConfig(), "hunter2", map[string]exchange.Client{"BINANCE": client}, &recordingNotifier{}, zerolog.Nop(),
		WithSizer(func(price, fee, notional float64) float64 { return 0 }))

	_, err := d.Execute(context.Background(), testSignal())
	if !errors.Is(err, execution.ErrExecutionRejected) {
		t.Fatalf("expected ErrExecutionRejected, got %v", err)
	}
	if client.submitCalls != 0 {
		t.Fatalf("submit called with zero quantity")
	}
}

func TestBalances(t *testing.T) {
	client := &fakeClient{snapshot: testSnapshot()}
	d := newTestDispatcher(client, &recordingNotifier{})

	entries := d.Balances(context.Background())
	entry, ok := entries["BINANCE"]
	if !ok {
		t.Fatalf("BINANCE missing from balances: %v", entries)
	}
	if entry.Asset != "USDT" || entry.Free != 1000 || entry.Err != "" {
		t.Fatalf("unexpected entry: %+v", entry)
	}
}

func TestNotionalSizer(t *testing.T) {
	qty := NotionalSizer(100, 0.001, 100)
	want := 100 * 0.999 / 100.0
	if math.Abs(qty-want) > 1e-12 {
		t.Fatalf("qty=%v want=%v", qty, want)
	}
	if NotionalSizer(0, 0.001, 100) != 0 {
		t.Fatalf("zero price must size to zero")
	}
}
