package exchange

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/thana249/tradingview-executor/internal/book"
	"github.com/thana249/tradingview-executor/internal/execution"
)

// Paper is an in-process Client for the paper environment and tests. It
// serves a synthetic book around a fixed mid price and records submissions
// instead of touching a venue.
type Paper struct {
	mid  float64
	step float64

	mu     sync.Mutex
	seq    int
	orders []execution.Order
	cash   map[string]float64
}

// NewPaper builds a paper venue quoting around mid with levels step apart.
func NewPaper(mid, step float64) *Paper {
	if step <= 0 {
		step = mid * 0.0005
	}
	return &Paper{
		mid:  mid,
		step: step,
		cash: map[string]float64{},
	}
}

func (p *Paper) Name() string { return "PAPER" }

func (p *Paper) FetchOrderBook(ctx context.Context, pair execution.Pair, depth int) (*book.Snapshot, error) {
	snap := &book.Snapshot{Symbol: pair.Concat(), Ts: time.Now().UTC()}
	for i := 0; i < depth; i++ {
		offset := float64(i+1) * p.step
		snap.Asks = append(snap.Asks, book.Level{Price: p.mid + offset, Size: 1})
		snap.Bids = append(snap.Bids, book.Level{Price: p.mid - offset, Size: 1})
	}
	return snap, nil
}

func (p *Paper) SubmitOrder(ctx context.Context, order execution.Order) (*execution.Receipt, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	p.orders = append(p.orders, order)
	return &execution.Receipt{
		Exchange: p.Name(),
		OrderID:  strconv.Itoa(p.seq),
		Filled:   true,
		Price:    order.Price,
		Qty:      order.Qty,
	}, nil
}

func (p *Paper) FreeBalance(ctx context.Context, asset string) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cash[asset], nil
}

// Deposit credits virtual funds so balance reporting has something to show.
func (p *Paper) Deposit(asset string, amount float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cash[asset] += amount
}

// Orders returns a copy of everything submitted so far.
func (p *Paper) Orders() []execution.Order {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]execution.Order, len(p.orders))
	copy(out, p.orders)
	return out
}
