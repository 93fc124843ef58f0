package useCases

import (
	"ahLedgerApp/internal/domain/model"
	"context"
	"net/http"
)

// LedgerService defines the interface for ledger ingestion and querying.
type LedgerService interface {
	IngestBatch(ctx context.Context, realm, character string, buckets model.EventBuckets, payloadBytes int) (model.UploadResult, error)
	Stats(ctx context.Context, realm, character string, sinceHours int) (model.Totals, error)
	Awaiting(ctx context.Context, realm, character string, windowMin, limit, offset int) (model.AwaitingPage, error)
}

// Broadcaster defines an interface for pushing updates to WebSocket/API layers.
type Broadcaster interface {
	BroadcastTotals(realm, character string, totals model.Totals)
	HasClients() bool
	Handler() func(http.ResponseWriter, *http.Request)
}
