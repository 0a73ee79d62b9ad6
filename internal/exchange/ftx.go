package exchange

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/thana249/tradingview-executor/internal/book"
	"github.com/thana249/tradingview-executor/internal/execution"
)

const ftxDefaultBaseURL = "https://ftx.com"

// FTX talks to the FTX REST API. Authenticated requests carry a hex
// HMAC-SHA256 of ts+method+path+body in the FTX-SIGN header.
type FTX struct {
	baseURL string
	creds   Credentials
	http    *http.Client
	log     zerolog.Logger
	now     func() time.Time
}

func NewFTX(creds Credentials, log zerolog.Logger) *FTX {
	return &FTX{
		baseURL: ftxDefaultBaseURL,
		creds:   creds,
		http:    &http.Client{Timeout: 10 * time.Second},
		log:     log,
		now:     time.Now,
	}
}

func (f *FTX) Name() string { return "FTX" }

func ftxMarket(pair execution.Pair) string { return pair.Asset + "/" + pair.Base }

type ftxEnvelope struct {
	Success bool            `json:"success"`
	Error   string          `json:"error"`
	Result  json.RawMessage `json:"result"`
}

func (f *FTX) do(ctx context.Context, method, path string, body []byte, signed bool) (*ftxEnvelope, int, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, f.baseURL+path, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if signed {
		ts := strconv.FormatInt(f.now().UnixMilli(), 10)
		payload := ts + method + path + string(body)
		mac := hmac.New(sha256.New, []byte(f.creds.Secret))
		mac.Write([]byte(payload))
		req.Header.Set("FTX-KEY", f.creds.Key)
		req.Header.Set("FTX-SIGN", hex.EncodeToString(mac.Sum(nil)))
		req.Header.Set("FTX-TS", ts)
	}

	resp, err := f.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	var env ftxEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	return &env, resp.StatusCode, nil
}

type ftxBookResult struct {
	Bids [][2]float64 `json:"bids"`
	Asks [][2]float64 `json:"asks"`
}

func (f *FTX) FetchOrderBook(ctx context.Context, pair execution.Pair, depth int) (*book.Snapshot, error) {
	market := ftxMarket(pair)
	path := fmt.Sprintf("/api/markets/%s/orderbook?depth=%d", url.PathEscape(market), depth)
	env, _, err := f.do(ctx, http.MethodGet, path, nil, false)
	if err != nil {
		return nil, fmt.Errorf("ftx orderbook %s: %v: %w", market, err, execution.ErrMarketDataUnavailable)
	}
	if !env.Success {
		return nil, fmt.Errorf("ftx orderbook %s: %s: %w", market, env.Error, execution.ErrMarketDataUnavailable)
	}

	var result ftxBookResult
	if err := json.Unmarshal(env.Result, &result); err != nil {
		return nil, fmt.Errorf("ftx orderbook %s: %v: %w", market, err, execution.ErrMarketDataUnavailable)
	}

	snap := &book.Snapshot{Symbol: pair.Concat(), Ts: time.Now().UTC()}
	for _, lvl := range result.Bids {
		snap.Bids = append(snap.Bids, book.Level{Price: lvl[0], Size: lvl[1]})
	}
	for _, lvl := range result.Asks {
		snap.Asks = append(snap.Asks, book.Level{Price: lvl[0], Size: lvl[1]})
	}
	return snap, nil
}

type ftxOrderResult struct {
	ID            int64   `json:"id"`
	Status        string  `json:"status"`
	FilledSize    float64 `json:"filledSize"`
	RemainingSize float64 `json:"remainingSize"`
}

func (f *FTX) SubmitOrder(ctx context.Context, order execution.Order) (*execution.Receipt, error) {
	market := ftxMarket(order.Pair)
	payload := map[string]any{
		"market": market,
		"side":   order.Side.Lower(),
		"type":   "limit",
		"price":  json.Number(wireDecimal(order.Price)),
		"size":   json.Number(wireDecimal(order.Qty)),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("ftx order %s: %v: %w", market, err, execution.ErrExecutionTransport)
	}

	env, status, err := f.do(ctx, http.MethodPost, "/api/orders", body, true)
	if err != nil {
		return nil, fmt.Errorf("ftx order %s: %v: %w", market, err, execution.ErrExecutionTransport)
	}
	if !env.Success {
		reason := env.Error
		if reason == "" {
			reason = fmt.Sprintf("HTTP %d", status)
		}
		return nil, &execution.RejectError{Exchange: f.Name(), Reason: reason}
	}

	var result ftxOrderResult
	if err := json.Unmarshal(env.Result, &result); err != nil {
		return nil, fmt.Errorf("ftx order %s: %v: %w", market, err, execution.ErrExecutionTransport)
	}
	return &execution.Receipt{
		Exchange: f.Name(),
		OrderID:  strconv.FormatInt(result.ID, 10),
		Filled:   result.Status == "closed" && result.RemainingSize == 0,
		Price:    order.Price,
		Qty:      order.Qty,
	}, nil
}

type ftxBalanceResult []struct {
	Coin string  `json:"coin"`
	Free float64 `json:"free"`
}

func (f *FTX) FreeBalance(ctx context.Context, asset string) (float64, error) {
	env, status, err := f.do(ctx, http.MethodGet, "/api/wallet/balances", nil, true)
	if err != nil {
		return 0, fmt.Errorf("ftx balances: %w", err)
	}
	if !env.Success {
		return 0, fmt.Errorf("ftx balances: %s (HTTP %d)", env.Error, status)
	}
	var result ftxBalanceResult
	if err := json.Unmarshal(env.Result, &result); err != nil {
		return 0, fmt.Errorf("ftx balances: %w", err)
	}
	for _, b := range result {
		if b.Coin == asset {
			return b.Free, nil
		}
	}
	return 0, nil
}
