package dto_test

import (
	"math"
	"testing"

	"ahLedgerApp/internal/app/dto"
	"ahLedgerApp/internal/domain/model"
)

func TestToModelDropsNonFiniteRows(t *testing.T) {
	cases := []struct {
		name string
		row  dto.EventDTO
	}{
		{"NaN qty", dto.EventDTO{T: 1000, ItemID: 1, Qty: math.NaN(), Unit: 100}},
		{"Inf unit", dto.EventDTO{T: 1000, ItemID: 1, Qty: 1, Unit: math.Inf(1)}},
		{"negative Inf gross", dto.EventDTO{T: 1000, ItemID: 1, Qty: 1, Gross: math.Inf(-1)}},
	}
	for _, c := range cases {
		if _, ok := c.row.ToModel(); ok {
			t.Errorf("%s: expected row to be dropped", c.name)
		}
	}

	ev, ok := dto.EventDTO{T: 1000, ItemID: 1, Qty: 2, Unit: 500}.ToModel()
	if !ok {
		t.Fatal("expected finite row to convert")
	}
	if ev.T != 1000 || ev.ItemID != 1 || ev.Qty != 2 || ev.Unit != 500 {
		t.Errorf("unexpected converted event: %+v", ev)
	}
}

func TestToModelUnitPriceAlias(t *testing.T) {
	// Older add-on versions send "unitPrice" instead of "unit".
	ev, ok := dto.EventDTO{T: 1000, ItemID: 1, Qty: 1, UnitPrice: 750}.ToModel()
	if !ok {
		t.Fatal("expected row to convert")
	}
	if ev.Unit != 750 {
		t.Errorf("expected unitPrice to populate Unit, got %d", ev.Unit)
	}

	// When both are present, "unit" wins.
	ev, _ = dto.EventDTO{T: 1000, ItemID: 1, Qty: 1, Unit: 300, UnitPrice: 750}.ToModel()
	if ev.Unit != 300 {
		t.Errorf("expected unit to win over unitPrice, got %d", ev.Unit)
	}
}

func TestToBucketsIgnoresUnrecognizedKinds(t *testing.T) {
	b := dto.BucketsDTO{
		"sales":  {{T: 1000, ItemID: 1, Qty: 1, Unit: 100}},
		"bogus":  {{T: 1000, ItemID: 2, Qty: 1, Unit: 100}},
		"wishes": {},
	}
	buckets := b.ToBuckets()
	if len(buckets) != 1 {
		t.Fatalf("expected only the recognized kind, got %v", buckets)
	}
	if len(buckets[model.KindSales]) != 1 {
		t.Errorf("expected 1 sale, got %d", len(buckets[model.KindSales]))
	}
}

func TestToBucketsEmptyRecognizedKindStillCounts(t *testing.T) {
	// A present-but-empty recognized kind is a valid, empty upload; only a
	// payload with no recognizable kind at all converts to an empty result.
	buckets := dto.BucketsDTO{"payouts": {}}.ToBuckets()
	if len(buckets) != 1 {
		t.Fatalf("expected empty payouts bucket to be carried, got %v", buckets)
	}

	buckets = dto.BucketsDTO{"bogus": {}}.ToBuckets()
	if len(buckets) != 0 {
		t.Errorf("expected no recognizable kind to yield empty buckets, got %v", buckets)
	}
}
