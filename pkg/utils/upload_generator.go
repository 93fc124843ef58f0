package utils

import (
	"math/rand"
	"time"

	"github.com/google/uuid"

	"ahLedgerApp/internal/app/dto"
)

// UploadGenerator produces synthetic add-on exports for demos and tests.
type UploadGenerator struct {
	realms     []string
	characters []string
	itemIDs    []int64
}

func NewUploadGenerator() *UploadGenerator {
	return &UploadGenerator{
		realms:     []string{"Stormrage", "Area-52", "Tichondrius"},
		characters: []string{"Brewbelly", "Maraxxia", "Goldtooth", "Silkwind"},
		itemIDs:    []int64{2589, 3356, 12359, 52185, 152512, 168185, 171276},
	}
}

// GenerateBuckets creates one character's bucket set with saleCount sales,
// roughly half of them already paid out.
func (g *UploadGenerator) GenerateBuckets(saleCount int) dto.BucketsDTO {
	now := time.Now().Unix()
	sales := make([]dto.EventDTO, 0, saleCount)
	payouts := make([]dto.EventDTO, 0, saleCount/2)

	for i := 0; i < saleCount; i++ {
		saleID := uuid.New().String()
		qty := float64(1 + rand.Intn(20))
		unit := float64(100 + rand.Intn(100000))
		t := float64(now - int64(rand.Intn(86400)))
		sales = append(sales, dto.EventDTO{
			T:      t,
			ItemID: float64(g.itemIDs[rand.Intn(len(g.itemIDs))]),
			Qty:    qty,
			Unit:   unit,
			SaleID: saleID,
		})
		if i%2 == 0 {
			gross := unit * qty
			cut := float64(int64(gross * 0.05))
			payouts = append(payouts, dto.EventDTO{
				T:      t + float64(rand.Intn(3600)),
				ItemID: sales[i].ItemID,
				Qty:    qty,
				Gross:  gross,
				Cut:    cut,
				Net:    gross - cut,
				SaleID: saleID,
			})
		}
	}

	return dto.BucketsDTO{
		"sales":   sales,
		"payouts": payouts,
	}
}

// GenerateUpload creates a full upload payload for a random (realm, character).
func (g *UploadGenerator) GenerateUpload(saleCount int) (realm, character string, buckets dto.BucketsDTO) {
	realm = g.realms[rand.Intn(len(g.realms))]
	character = g.characters[rand.Intn(len(g.characters))]
	return realm, character, g.GenerateBuckets(saleCount)
}
