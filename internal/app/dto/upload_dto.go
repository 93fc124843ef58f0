package dto

import (
	"math"

	"ahLedgerApp/internal/domain/model"
)

// EventDTO is one ledger row as the add-on exports it. Numeric fields are
// floats because the add-on occasionally emits partial or junk rows; missing
// optional fields read as zero. The price field arrives as either "unit" or
// "unitPrice" depending on the add-on version.
type EventDTO struct {
	T         float64 `json:"t"`
	ItemID    float64 `json:"itemId"`
	Qty       float64 `json:"qty"`
	Unit      float64 `json:"unit,omitempty"`
	UnitPrice float64 `json:"unitPrice,omitempty"`
	Gross     float64 `json:"gross,omitempty"`
	Cut       float64 `json:"cut,omitempty"`
	Net       float64 `json:"net,omitempty"`
	SaleID    string  `json:"saleId,omitempty"`
}

// BucketsDTO maps kind name to events for one character.
type BucketsDTO map[string][]EventDTO

// UploadRequest is the ingestion payload: realm -> character -> buckets.
type UploadRequest map[string]map[string]BucketsDTO

// UploadResponse reports accepted vs. duplicate-skipped counts.
type UploadResponse struct {
	Accepted   int `json:"accepted"`
	Duplicates int `json:"duplicates"`
}

// StatsResponse is the stats query reply shape.
type StatsResponse struct {
	Realm      string       `json:"realm"`
	Character  string       `json:"character"`
	SinceHours int          `json:"sinceHours"`
	Totals     model.Totals `json:"totals"`
}

// TotalsUpdate is pushed to websocket clients after an accepted upload.
type TotalsUpdate struct {
	Realm     string       `json:"realm"`
	Character string       `json:"character"`
	Totals    model.Totals `json:"totals"`
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// ToModel converts one row, reporting false for rows that must be dropped
// (non-finite numeric fields).
func (e EventDTO) ToModel() (model.LedgerEvent, bool) {
	if !finite(e.T, e.ItemID, e.Qty, e.Unit, e.UnitPrice, e.Gross, e.Cut, e.Net) {
		return model.LedgerEvent{}, false
	}
	unit := e.Unit
	if unit == 0 {
		unit = e.UnitPrice
	}
	return model.LedgerEvent{
		T:      int64(e.T),
		ItemID: int64(e.ItemID),
		Qty:    int64(e.Qty),
		Unit:   int64(unit),
		Gross:  int64(e.Gross),
		Cut:    int64(e.Cut),
		Net:    int64(e.Net),
		SaleID: e.SaleID,
	}, true
}

// ToBuckets converts one character's payload to domain buckets. Only
// recognized kinds are carried over; unrecognized keys are ignored. A kind
// that is present but empty still counts as recognized, so the result being
// empty means the payload had no recognizable kind at all.
func (b BucketsDTO) ToBuckets() model.EventBuckets {
	buckets := make(model.EventBuckets)
	for _, kind := range model.Kinds {
		events, ok := b[kind]
		if !ok {
			continue
		}
		kept := make([]model.LedgerEvent, 0, len(events))
		for _, e := range events {
			if ev, ok := e.ToModel(); ok {
				kept = append(kept, ev)
			}
		}
		buckets[kind] = kept
	}
	return buckets
}
