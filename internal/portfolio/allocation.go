package portfolio

import "math"

// Allocation is one symbol's share of the account at a point in time.
type Allocation struct {
	Quota      float64
	QuotaKnown bool
	Used       float64 // capital already deployed in this symbol
	Free       float64 // account-wide free quote balance
}

// Remaining is the unused part of the quota, never negative. Unknown quotas
// are unbounded.
func (a Allocation) Remaining() float64 {
	if !a.QuotaKnown {
		return math.Inf(1)
	}
	return math.Max(0, a.Quota-a.Used)
}

// Effective is the buying power this symbol may use: the remaining quota
// capped by the account's free balance.
func (a Allocation) Effective() float64 {
	free := math.Max(0, a.Free)
	return math.Min(free, a.Remaining())
}

// UsagePercent is used capital relative to quota, 0 when the quota is unknown.
func (a Allocation) UsagePercent() float64 {
	if !a.QuotaKnown || a.Quota <= 0 {
		return 0
	}
	return a.Used / a.Quota * 100
}

// SpotUsedCapital values a spot holding at price.
func SpotUsedCapital(held, price float64) float64 {
	if held <= 0 || price <= 0 {
		return 0
	}
	return held * price
}
