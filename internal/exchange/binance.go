package exchange

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	gbinance "github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/rs/zerolog"

	"github.com/thana249/tradingview-executor/internal/book"
	"github.com/thana249/tradingview-executor/internal/execution"
)

// Binance places spot orders through the official REST API via the adshao
// SDK, which handles request signing.
type Binance struct {
	client *gbinance.Client
	log    zerolog.Logger
}

func NewBinance(creds Credentials, log zerolog.Logger) *Binance {
	client := gbinance.NewClient(creds.Key, creds.Secret)
	client.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	return &Binance{client: client, log: log}
}

func (b *Binance) Name() string { return "BINANCE" }

// Binance only serves fixed depth tiers.
var binanceDepths = []int{5, 10, 20, 50, 100}

func (b *Binance) FetchOrderBook(ctx context.Context, pair execution.Pair, depth int) (*book.Snapshot, error) {
	symbol := pair.Concat()
	limit := binanceDepths[len(binanceDepths)-1]
	for _, d := range binanceDepths {
		if depth <= d {
			limit = d
			break
		}
	}

	res, err := b.client.NewDepthService().Symbol(symbol).Limit(limit).Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance depth %s: %v: %w", symbol, err, execution.ErrMarketDataUnavailable)
	}

	snap := &book.Snapshot{Symbol: symbol, Ts: time.Now().UTC()}
	for _, a := range res.Asks {
		lvl, err := parseLevel(a.Price, a.Quantity)
		if err != nil {
			return nil, fmt.Errorf("binance depth %s: %v: %w", symbol, err, execution.ErrMarketDataUnavailable)
		}
		snap.Asks = append(snap.Asks, lvl)
	}
	for _, bd := range res.Bids {
		lvl, err := parseLevel(bd.Price, bd.Quantity)
		if err != nil {
			return nil, fmt.Errorf("binance depth %s: %v: %w", symbol, err, execution.ErrMarketDataUnavailable)
		}
		snap.Bids = append(snap.Bids, lvl)
	}
	return snap, nil
}

func (b *Binance) SubmitOrder(ctx context.Context, order execution.Order) (*execution.Receipt, error) {
	symbol := order.Pair.Concat()
	side := gbinance.SideTypeBuy
	if order.Side == execution.Sell {
		side = gbinance.SideTypeSell
	}

	res, err := b.client.NewCreateOrderService().
		Symbol(symbol).
		Side(side).
		Type(gbinance.OrderTypeLimit).
		TimeInForce(gbinance.TimeInForceTypeGTC).
		Price(wireDecimal(order.Price)).
		Quantity(wireDecimal(order.Qty)).
		Do(ctx)
	if err != nil {
		var apiErr *common.APIError
		if errors.As(err, &apiErr) {
			return nil, &execution.RejectError{Exchange: b.Name(), Reason: apiErr.Message}
		}
		return nil, fmt.Errorf("binance order %s: %v: %w", symbol, err, execution.ErrExecutionTransport)
	}

	return &execution.Receipt{
		Exchange: b.Name(),
		OrderID:  strconv.FormatInt(res.OrderID, 10),
		Filled:   res.Status == gbinance.OrderStatusTypeFilled,
		Price:    order.Price,
		Qty:      order.Qty,
	}, nil
}

func (b *Binance) FreeBalance(ctx context.Context, asset string) (float64, error) {
	res, err := b.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("binance account: %w", err)
	}
	for _, bal := range res.Balances {
		if bal.Asset != asset {
			continue
		}
		free, err := strconv.ParseFloat(bal.Free, 64)
		if err != nil {
			return 0, fmt.Errorf("binance balance %s: %w", asset, err)
		}
		return free, nil
	}
	return 0, nil
}

func parseLevel(price, size string) (book.Level, error) {
	px, err := strconv.ParseFloat(price, 64)
	if err != nil {
		return book.Level{}, fmt.Errorf("bad price %q", price)
	}
	sz, err := strconv.ParseFloat(size, 64)
	if err != nil {
		return book.Level{}, fmt.Errorf("bad size %q", size)
	}
	return book.Level{Price: px, Size: sz}, nil
}
