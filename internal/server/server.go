// Package server exposes the webhook HTTP transport. It stays thin: decode,
// notify, dispatch, and map failure kinds to response statuses.
package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/thana249/tradingview-executor/internal/dispatch"
	"github.com/thana249/tradingview-executor/internal/execution"
	"github.com/thana249/tradingview-executor/internal/notify"
	"github.com/thana249/tradingview-executor/internal/signal"
)

const maxBodyBytes = 1 << 20

// Executor runs one signal; implemented by dispatch.Dispatcher.
type Executor interface {
	Execute(ctx context.Context, sig *signal.TradeSignal) (*dispatch.Result, error)
}

// BalanceReporter backs the /balance endpoint.
type BalanceReporter interface {
	Balances(ctx context.Context) map[string]dispatch.BalanceEntry
}

// Notifier mirrors the LINE client surface the transport needs.
type Notifier interface {
	Notify(ctx context.Context, msg string) error
	NotifyWithToken(ctx context.Context, msg, token string) error
}

type Server struct {
	exec     Executor
	balances BalanceReporter
	notifier Notifier
	log      zerolog.Logger
}

func New(exec Executor, balances BalanceReporter, notifier Notifier, log zerolog.Logger) *Server {
	return &Server{exec: exec, balances: balances, notifier: notifier, log: log}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/webhook", s.handleWebhook)
	mux.HandleFunc("/balance", s.handleBalance)
	return mux
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "online"})
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, errBody("method_not_allowed", "POST only"))
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errBody("bad_request", "unreadable body"))
		return
	}

	sig, err := signal.Parse(body)
	if err != nil {
		// Still worth a human's attention, raw.
		s.notifyAsync("", string(body))
		writeJSON(w, http.StatusBadRequest, errBody("bad_request", err.Error()))
		return
	}

	s.notifyAsync(sig.LineToken, notify.FormatSignal(sig.Extra))

	result, err := s.exec.Execute(r.Context(), sig)
	if err != nil {
		kind := execution.Kind(err)
		s.log.Warn().Err(err).
			Str("exchange", sig.Exchange).
			Str("symbol", sig.Symbol).
			Str("kind", kind).
			Msg("webhook dispatch failed")
		writeJSON(w, statusFor(kind), errBody(kind, err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeJSON(w, http.StatusMethodNotAllowed, errBody("method_not_allowed", "GET only"))
		return
	}
	entries := s.balances.Balances(r.Context())
	var total float64
	for _, e := range entries {
		if e.Err == "" {
			total += e.Free
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total":     total,
		"exchanges": entries,
	})
}

// notifyAsync delivers the signal notification without tying it to the
// request lifetime; delivery failures never influence the response.
func (s *Server) notifyAsync(token, msg string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := s.notifier.NotifyWithToken(ctx, msg, token); err != nil {
			s.log.Warn().Err(err).Msg("signal notification failed")
		}
	}()
}

func statusFor(kind string) int {
	switch kind {
	case "unauthorized":
		return http.StatusUnauthorized
	case "unknown_exchange", "symbol_not_in_universe":
		return http.StatusBadRequest
	case "insufficient_book_depth", "market_data_unavailable",
		"execution_rejected", "execution_transport_error":
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func errBody(kind, msg string) map[string]string {
	return map[string]string{"error": kind, "message": msg}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
