package app

import (
	"context"
	"errors"
	"log"

	"ahLedgerApp/internal/domain/repository"
	"ahLedgerApp/internal/domain/useCases"
	"ahLedgerApp/internal/infrastructure/queue"
)

// UploadProcessor ingests upload batches arriving on the queue. The store
// itself deduplicates, so redelivered messages only produce duplicate-skips.
type UploadProcessor struct {
	Consumer    queue.UploadConsumer
	Ledger      useCases.LedgerService
	Broadcaster useCases.Broadcaster
}

func NewUploadProcessor(consumer queue.UploadConsumer, ledger useCases.LedgerService, broadcaster useCases.Broadcaster) *UploadProcessor {
	return &UploadProcessor{
		Consumer:    consumer,
		Ledger:      ledger,
		Broadcaster: broadcaster,
	}
}

// Run consumes uploads until the context is canceled.
func (p *UploadProcessor) Run(ctx context.Context) error {
	uploadCh, err := p.Consumer.Subscribe(ctx)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env, ok := <-uploadCh:
			if !ok {
				return nil
			}
			if env == nil {
				continue
			}
			p.processUpload(ctx, env)
		}
	}
}

func (p *UploadProcessor) processUpload(ctx context.Context, env *queue.UploadEnvelope) {
	result, err := p.Ledger.IngestBatch(ctx, env.Realm, env.Character, env.Buckets.ToBuckets(), env.Bytes)
	if err != nil {
		if errors.Is(err, repository.ErrValidation) {
			// Malformed forever; commit so the partition does not wedge.
			log.Printf("Dropping invalid upload %s: %v", env.ID, err)
			if err := p.Consumer.Commit(ctx, env.ID); err != nil && ctx.Err() == nil {
				log.Printf("Failed to commit invalid upload %s: %v", env.ID, err)
			}
			return
		}
		// Storage errors: leave uncommitted, redelivery will retry.
		log.Printf("Failed to ingest upload %s: %v", env.ID, err)
		return
	}

	if err := p.Consumer.Commit(ctx, env.ID); err != nil && ctx.Err() == nil {
		log.Printf("Failed to commit upload %s: %v", env.ID, err)
	}

	if result.Accepted > 0 && p.Broadcaster != nil && p.Broadcaster.HasClients() {
		totals, err := p.Ledger.Stats(ctx, env.Realm, env.Character, 24)
		if err != nil {
			log.Printf("Failed to refresh totals for %s/%s: %v", env.Realm, env.Character, err)
			return
		}
		p.Broadcaster.BroadcastTotals(env.Realm, env.Character, totals)
	}
}
