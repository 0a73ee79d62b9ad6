package execution

import (
	"errors"
	"fmt"
)

// Failure kinds. Every failure is terminal for its invocation: neither the
// adapters nor the dispatcher retry, since a blind resubmit risks a
// duplicate fill.
var (
	ErrUnauthorized          = errors.New("unauthorized")
	ErrUnknownExchange       = errors.New("unknown exchange")
	ErrSymbolNotInUniverse   = errors.New("symbol not in universe")
	ErrInsufficientBookDepth = errors.New("insufficient book depth")
	ErrMarketDataUnavailable = errors.New("market data unavailable")
	ErrExecutionRejected     = errors.New("execution rejected")
	ErrExecutionTransport    = errors.New("execution transport error")
)

// RejectError carries the venue's rejection reason (insufficient balance,
// invalid price tick, rate limit). It matches ErrExecutionRejected under
// errors.Is.
type RejectError struct {
	Exchange string
	Reason   string
}

func (e *RejectError) Error() string {
	return fmt.Sprintf("%s rejected order: %s", e.Exchange, e.Reason)
}

func (e *RejectError) Is(target error) bool { return target == ErrExecutionRejected }

// Kind names the taxonomy bucket for err, for metrics labels and HTTP
// status mapping.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrUnknownExchange):
		return "unknown_exchange"
	case errors.Is(err, ErrSymbolNotInUniverse):
		return "symbol_not_in_universe"
	case errors.Is(err, ErrInsufficientBookDepth):
		return "insufficient_book_depth"
	case errors.Is(err, ErrMarketDataUnavailable):
		return "market_data_unavailable"
	case errors.Is(err, ErrExecutionRejected):
		return "execution_rejected"
	case errors.Is(err, ErrExecutionTransport):
		return "execution_transport_error"
	default:
		return "internal"
	}
}
