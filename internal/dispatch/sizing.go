package dispatch

// Sizer converts the configured notional into base-asset units at the
// computed price. The exact formula is deliberately pluggable; deployments
// override it with WithSizer.
type Sizer func(price, fee, notional float64) float64

// NotionalSizer spends the full notional minus the venue's fee:
// qty = notional*(1-fee)/price.
func NotionalSizer(price, fee, notional float64) float64 {
	if price <= 0 {
		return 0
	}
	return notional * (1 - fee) / price
}
