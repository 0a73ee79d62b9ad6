// Package signal standardizes the webhook payload shared between the HTTP
// transport and the dispatcher.
package signal

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/thana249/tradingview-executor/internal/execution"
)

// TradeSignal is one inbound TradingView-style alert. It is owned by a
// single execution cycle and discarded afterwards.
type TradeSignal struct {
	Exchange  string
	Symbol    string
	Side      execution.Side
	SendOrder bool
	Secret    string
	LineToken string         // optional per-request notification token
	Extra     map[string]any // free-form fields, surfaced to the notifier only
}

// Parse decodes a webhook body. Required fields are exchange, symbol, and
// side; send_order accepts 0/1 as well as booleans since charting services
// disagree on the encoding. Everything except secret and line_token is kept
// in Extra for the human-readable notification.
func Parse(body []byte) (*TradeSignal, error) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode webhook: %w", err)
	}

	sig := &TradeSignal{Extra: make(map[string]any, len(raw))}
	for k, v := range raw {
		switch k {
		case "exchange":
			sig.Exchange = strings.ToUpper(stringField(v))
		case "symbol":
			sig.Symbol = strings.ToUpper(stringField(v))
		case "side":
			side, err := execution.ParseSide(stringField(v))
			if err != nil {
				return nil, err
			}
			sig.Side = side
		case "send_order":
			sig.SendOrder = truthy(v)
		case "secret":
			sig.Secret = stringField(v)
			continue
		case "line_token":
			sig.LineToken = stringField(v)
			continue
		}
		sig.Extra[k] = v
	}

	if sig.Exchange == "" {
		return nil, fmt.Errorf("webhook missing exchange")
	}
	if sig.Symbol == "" {
		return nil, fmt.Errorf("webhook missing symbol")
	}
	if sig.Side == "" {
		return nil, fmt.Errorf("webhook missing side")
	}
	return sig, nil
}

func stringField(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t == "1" || strings.EqualFold(t, "true")
	default:
		return false
	}
}
