// Package service provides implementations of domain services that implement core business logic.
// This package depends only on domain models and repository interfaces (not implementations).
package service

import (
	"sort"

	"ahLedgerApp/internal/domain/model"
)

// itemQty is the fallback correlation key for sales without a sale ID.
type itemQty struct {
	itemID int64
	qty    int64
}

// dedupEvents drops events whose dedup key was already seen, preserving
// order. Protects against a backend that could return logically-equal rows
// twice.
func dedupEvents(events []model.LedgerEvent) []model.LedgerEvent {
	seen := make(map[string]struct{}, len(events))
	out := events[:0:0]
	for _, ev := range events {
		key := ev.DedupKey()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, ev)
	}
	return out
}

// ReconcileAwaiting computes the sales still awaiting payout. Matching is
// greedy and order-deterministic: sales are walked in ascending t order,
// earlier sales claim eligible payouts first, and each payout is consumed by
// at most one sale. A payout is eligible by shared sale ID, or by equal
// (itemId, qty) with a timestamp within [sale.t, sale.t+graceSec].
//
// Sales with qty <= 0 are dropped before matching and appear in neither set.
// The returned slice is ordered by ascending t.
func ReconcileAwaiting(sales, payouts []model.LedgerEvent, graceSec int64) []model.AwaitingSale {
	sales = dedupEvents(sales)
	payouts = dedupEvents(payouts)

	valid := sales[:0:0]
	for _, s := range sales {
		if s.Qty <= 0 {
			continue
		}
		valid = append(valid, s)
	}
	sort.SliceStable(valid, func(i, j int) bool { return valid[i].T < valid[j].T })

	consumed := make([]bool, len(payouts))
	bySaleID := make(map[string]int, len(payouts))
	byItemQty := make(map[itemQty][]int)
	for i, p := range payouts {
		if p.SaleID != "" {
			if _, ok := bySaleID[p.SaleID]; !ok {
				bySaleID[p.SaleID] = i
			}
		}
		k := itemQty{p.ItemID, p.Qty}
		byItemQty[k] = append(byItemQty[k], i)
	}
	// Fallback candidates are claimed oldest-first.
	for _, idxs := range byItemQty {
		sort.SliceStable(idxs, func(a, b int) bool { return payouts[idxs[a]].T < payouts[idxs[b]].T })
	}

	awaiting := make([]model.AwaitingSale, 0)
	for _, s := range valid {
		if s.SaleID != "" {
			if i, ok := bySaleID[s.SaleID]; ok && !consumed[i] {
				consumed[i] = true
				continue
			}
		}
		if i, ok := claimFallback(byItemQty[itemQty{s.ItemID, s.Qty}], payouts, consumed, s.T, graceSec); ok {
			consumed[i] = true
			continue
		}
		awaiting = append(awaiting, model.AwaitingSale{
			ItemID: s.ItemID,
			Qty:    s.Qty,
			Unit:   s.Unit,
			Gross:  s.Unit * s.Qty,
			T:      s.T,
		})
	}
	return awaiting
}

// claimFallback finds the first unconsumed payout candidate whose timestamp
// falls inside the grace interval after the sale.
func claimFallback(candidates []int, payouts []model.LedgerEvent, consumed []bool, saleT, graceSec int64) (int, bool) {
	for _, i := range candidates {
		if consumed[i] {
			continue
		}
		if payouts[i].T >= saleT && payouts[i].T <= saleT+graceSec {
			return i, true
		}
	}
	return 0, false
}

// SliceAwaiting applies (limit, offset) pagination. An offset at or beyond
// the total yields an empty slice, never an error. limit <= 0 means no limit.
func SliceAwaiting(items []model.AwaitingSale, limit, offset int) []model.AwaitingSale {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []model.AwaitingSale{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	out := make([]model.AwaitingSale, len(items))
	copy(out, items)
	return out
}
