package service

import (
	"math"

	"ahLedgerApp/internal/domain/model"
)

// AggregateTotals computes windowed sale totals. Sales, when present, always
// take precedence; payouts are only summed when the sales window is empty,
// never alongside sales, so the same economic event is not counted twice.
//
// For the sales path, a correlated payout carrying an explicit cut overrides
// the derived round-half-up(gross * cutRate) cut for that sale. All amounts
// are integer copper.
func AggregateTotals(sales, payouts []model.LedgerEvent, cutRate float64) model.Totals {
	sales = dedupEvents(sales)
	payouts = dedupEvents(payouts)

	if len(sales) > 0 {
		cutBySaleID := make(map[string]int64, len(payouts))
		for _, p := range payouts {
			if p.SaleID != "" && p.Cut > 0 {
				cutBySaleID[p.SaleID] = p.Cut
			}
		}
		var totals model.Totals
		for _, s := range sales {
			gross := s.Unit * s.Qty
			cut, ok := int64(0), false
			if s.SaleID != "" {
				cut, ok = cutBySaleID[s.SaleID]
			}
			if !ok {
				cut = roundHalfUp(float64(gross) * cutRate)
			}
			totals.SalesCount++
			totals.Gross += gross
			totals.AHCut += cut
		}
		totals.Net = totals.Gross - totals.AHCut
		return totals
	}

	var totals model.Totals
	for _, p := range payouts {
		totals.SalesCount++
		totals.Gross += p.Gross
		totals.AHCut += p.Cut
		totals.Net += p.Net
	}
	return totals
}

func roundHalfUp(v float64) int64 {
	return int64(math.Floor(v + 0.5))
}
