package exchange

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/thana249/tradingview-executor/internal/book"
	"github.com/thana249/tradingview-executor/internal/execution"
)

const kucoinDefaultBaseURL = "https://api.kucoin.com"

// KuCoin talks to the KuCoin v1 REST API. Signed requests carry a base64
// HMAC-SHA256 of ts+method+path+body under KC-API-SIGN, with the API
// passphrase itself signed per the v2 key scheme.
type KuCoin struct {
	baseURL string
	creds   Credentials
	http    *http.Client
	log     zerolog.Logger
	now     func() time.Time
	newOID  func() string
}

func NewKuCoin(creds Credentials, log zerolog.Logger) *KuCoin {
	return &KuCoin{
		baseURL: kucoinDefaultBaseURL,
		creds:   creds,
		http:    &http.Client{Timeout: 10 * time.Second},
		log:     log,
		now:     time.Now,
		newOID:  uuid.NewString,
	}
}

func (k *KuCoin) Name() string { return "KUCOIN" }

func kucoinSymbol(pair execution.Pair) string { return pair.Asset + "-" + pair.Base }

func (k *KuCoin) sign(req *http.Request, method, pathWithQuery string, body []byte) {
	ts := strconv.FormatInt(k.now().UnixMilli(), 10)
	mac := hmac.New(sha256.New, []byte(k.creds.Secret))
	mac.Write([]byte(ts + method + pathWithQuery + string(body)))

	passMac := hmac.New(sha256.New, []byte(k.creds.Secret))
	passMac.Write([]byte(k.creds.Passphrase))

	req.Header.Set("KC-API-KEY", k.creds.Key)
	req.Header.Set("KC-API-SIGN", base64.StdEncoding.EncodeToString(mac.Sum(nil)))
	req.Header.Set("KC-API-TIMESTAMP", ts)
	req.Header.Set("KC-API-PASSPHRASE", base64.StdEncoding.EncodeToString(passMac.Sum(nil)))
	req.Header.Set("KC-API-KEY-VERSION", "2")
}

type kucoinEnvelope struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

const kucoinCodeOK = "200000"

func (k *KuCoin) do(ctx context.Context, method, pathWithQuery string, body []byte, signed bool) (*kucoinEnvelope, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, k.baseURL+pathWithQuery, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if signed {
		k.sign(req, method, pathWithQuery, body)
	}

	resp, err := k.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var env kucoinEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &env, nil
}

type kucoinBookData struct {
	Time int64      `json:"time"`
	Bids [][]string `json:"bids"`
	Asks [][]string `json:"asks"`
}

func (k *KuCoin) FetchOrderBook(ctx context.Context, pair execution.Pair, depth int) (*book.Snapshot, error) {
	symbol := kucoinSymbol(pair)
	// Only the 20- and 100-level aggregated books are public.
	tier := 20
	if depth > 20 {
		tier = 100
	}
	path := fmt.Sprintf("/api/v1/market/orderbook/level2_%d?symbol=%s", tier, symbol)

	env, err := k.do(ctx, http.MethodGet, path, nil, false)
	if err != nil {
		return nil, fmt.Errorf("kucoin orderbook %s: %v: %w", symbol, err, execution.ErrMarketDataUnavailable)
	}
	if env.Code != kucoinCodeOK {
		return nil, fmt.Errorf("kucoin orderbook %s: code %s %s: %w", symbol, env.Code, env.Msg, execution.ErrMarketDataUnavailable)
	}
	var data kucoinBookData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("kucoin orderbook %s: %v: %w", symbol, err, execution.ErrMarketDataUnavailable)
	}

	snap := &book.Snapshot{Symbol: pair.Concat(), Ts: time.UnixMilli(data.Time).UTC()}
	take := func(src [][]string, dst *[]book.Level) error {
		n := depth
		if n > len(src) {
			n = len(src)
		}
		for i := 0; i < n; i++ {
			if len(src[i]) < 2 {
				return fmt.Errorf("short level %d", i)
			}
			lvl, err := parseLevel(src[i][0], src[i][1])
			if err != nil {
				return err
			}
			*dst = append(*dst, lvl)
		}
		return nil
	}
	if err := take(data.Bids, &snap.Bids); err != nil {
		return nil, fmt.Errorf("kucoin orderbook %s: %v: %w", symbol, err, execution.ErrMarketDataUnavailable)
	}
	if err := take(data.Asks, &snap.Asks); err != nil {
		return nil, fmt.Errorf("kucoin orderbook %s: %v: %w", symbol, err, execution.ErrMarketDataUnavailable)
	}
	return snap, nil
}

func (k *KuCoin) SubmitOrder(ctx context.Context, order execution.Order) (*execution.Receipt, error) {
	symbol := kucoinSymbol(order.Pair)
	payload := map[string]string{
		"clientOid": k.newOID(),
		"side":      order.Side.Lower(),
		"symbol":    symbol,
		"type":      "limit",
		"price":     wireDecimal(order.Price),
		"size":      wireDecimal(order.Qty),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("kucoin order %s: %v: %w", symbol, err, execution.ErrExecutionTransport)
	}

	env, err := k.do(ctx, http.MethodPost, "/api/v1/orders", body, true)
	if err != nil {
		return nil, fmt.Errorf("kucoin order %s: %v: %w", symbol, err, execution.ErrExecutionTransport)
	}
	if env.Code != kucoinCodeOK {
		return nil, &execution.RejectError{
			Exchange: k.Name(),
			Reason:   fmt.Sprintf("code %s: %s", env.Code, env.Msg),
		}
	}

	var data struct {
		OrderID string `json:"orderId"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("kucoin order %s: %v: %w", symbol, err, execution.ErrExecutionTransport)
	}
	// KuCoin acknowledges placement without a fill status.
	return &execution.Receipt{
		Exchange: k.Name(),
		OrderID:  data.OrderID,
		Filled:   false,
		Price:    order.Price,
		Qty:      order.Qty,
	}, nil
}

func (k *KuCoin) FreeBalance(ctx context.Context, asset string) (float64, error) {
	path := "/api/v1/accounts?currency=" + asset + "&type=trade"
	env, err := k.do(ctx, http.MethodGet, path, nil, true)
	if err != nil {
		return 0, fmt.Errorf("kucoin accounts: %w", err)
	}
	if env.Code != kucoinCodeOK {
		return 0, fmt.Errorf("kucoin accounts: code %s %s", env.Code, env.Msg)
	}
	var data []struct {
		Available string `json:"available"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return 0, fmt.Errorf("kucoin accounts: %w", err)
	}
	var total float64
	for _, acct := range data {
		free, err := strconv.ParseFloat(acct.Available, 64)
		if err != nil {
			return 0, fmt.Errorf("kucoin balance %s: %w", asset, err)
		}
		total += free
	}
	return total, nil
}
