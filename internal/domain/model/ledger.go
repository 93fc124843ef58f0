package model

import "fmt"

// Event kinds as exported by the add-on.
const (
	KindPostings = "postings"
	KindSales    = "sales"
	KindPayouts  = "payouts"
	KindBuys     = "buys"
	KindCancels  = "cancels"
	KindExpires  = "expires"
)

// Kinds lists every recognized bucket kind in canonical order.
var Kinds = []string{KindPostings, KindSales, KindPayouts, KindBuys, KindCancels, KindExpires}

// LedgerEvent is a single auction-house ledger row. All currency values are
// integer copper amounts. Gross/Cut/Net are only populated on payout events.
type LedgerEvent struct {
	T      int64  // unix seconds
	ItemID int64
	Qty    int64
	Unit   int64  // copper per unit
	Gross  int64
	Cut    int64
	Net    int64
	SaleID string // correlates a sale with its payout, may be empty
}

// DedupKey is the identity of an event within (realm, character, kind).
// Events sharing a SaleID are the same event; otherwise identity is the
// composite of item, timestamp, quantity and price. Payout rows without a
// unit price use gross as the price component so two same-second payouts
// of different size stay distinct.
func (e LedgerEvent) DedupKey() string {
	if e.SaleID != "" {
		return "s:" + e.SaleID
	}
	price := e.Unit
	if price == 0 {
		price = e.Gross
	}
	return fmt.Sprintf("i:%d|t:%d|q:%d|u:%d", e.ItemID, e.T, e.Qty, price)
}

// EventBuckets holds one upload's events for a single (realm, character)
// pair, partitioned by kind.
type EventBuckets map[string][]LedgerEvent

// Total returns the number of events across all kinds.
func (b EventBuckets) Total() int {
	n := 0
	for _, evs := range b {
		n += len(evs)
	}
	return n
}

// Totals is the windowed financial aggregate for a character.
type Totals struct {
	SalesCount int64 `json:"salesCount"`
	Gross      int64 `json:"gross"`
	AHCut      int64 `json:"ahCut"`
	Net        int64 `json:"net"`
}

// AwaitingSale is a sale with no correlated payout yet.
type AwaitingSale struct {
	ItemID int64 `json:"itemId"`
	Qty    int64 `json:"qty"`
	Unit   int64 `json:"unit"`
	Gross  int64 `json:"gross"` // unit * qty
	T      int64 `json:"t"`
}

// AwaitingPage is one requested slice of the awaiting-payout set.
// Count is the pre-pagination total.
type AwaitingPage struct {
	Count int            `json:"count"`
	Items []AwaitingSale `json:"items"`
}

// UploadResult reports what an upsert did with a batch.
type UploadResult struct {
	Accepted   int
	Duplicates int
}
