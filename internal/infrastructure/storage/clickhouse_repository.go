package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"ahLedgerApp/internal/domain/model"
	"ahLedgerApp/internal/domain/repository"
)

// ClickHouseRepository implements the EventStore interface using ClickHouse
// as the backend, for deployments that want analytical queries over the raw
// ledger. The table is a ReplacingMergeTree ordered by the event identity,
// so racing inserts of the same dedup key collapse to a single row; reads
// use FINAL to observe the collapsed state.
type ClickHouseRepository struct {
	conn driver.Conn
}

type ClickHouseConfig struct {
	Addr     string
	Username string
	Password string
	Timeout  int
}

func NewClickHouseRepository(cfg ClickHouseConfig) (*ClickHouseRepository, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: "default",
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout: time.Duration(cfg.Timeout) * time.Second,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", repository.ErrStorageUnavailable, err)
	}

	// Check the connection
	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("%w: ping failed: %v", repository.ErrStorageUnavailable, err)
	}

	if err := createTablesIfNotExist(conn); err != nil {
		return nil, fmt.Errorf("%w: creating tables: %v", repository.ErrStorageUnavailable, err)
	}

	return &ClickHouseRepository{conn: conn}, nil
}

var _ repository.EventStore = (*ClickHouseRepository)(nil)

func createTablesIfNotExist(conn driver.Conn) error {
	return conn.Exec(context.Background(), `
		CREATE TABLE IF NOT EXISTS ledger_events (
			realm String,
			character_name String,
			kind String,
			dedup_key String,
			t Int64,
			item_id Int64,
			qty Int64,
			unit Int64,
			gross Int64,
			cut Int64,
			net Int64,
			sale_id String,
			ingested_at DateTime DEFAULT now()
		) ENGINE = ReplacingMergeTree()
		ORDER BY (realm, character_name, kind, dedup_key)
	`)
}

func (r *ClickHouseRepository) Upsert(ctx context.Context, realm, character string, buckets model.EventBuckets) (model.UploadResult, error) {
	var result model.UploadResult
	for kind, events := range buckets {
		if len(events) == 0 {
			continue
		}

		keys := make([]string, len(events))
		for i, ev := range events {
			keys[i] = ev.DedupKey()
		}
		existing, err := r.existingKeys(ctx, realm, character, kind, keys)
		if err != nil {
			return model.UploadResult{}, err
		}

		batch, err := r.conn.PrepareBatch(ctx, `
			INSERT INTO ledger_events (
				realm, character_name, kind, dedup_key,
				t, item_id, qty, unit, gross, cut, net, sale_id
			)
		`)
		if err != nil {
			return model.UploadResult{}, fmt.Errorf("%w: preparing batch: %v", repository.ErrStorageUnavailable, err)
		}

		appended := 0
		for i, ev := range events {
			if _, dup := existing[keys[i]]; dup {
				result.Duplicates++
				continue
			}
			// First sighting wins within the batch too.
			existing[keys[i]] = struct{}{}
			if err := batch.Append(
				realm, character, kind, keys[i],
				ev.T, ev.ItemID, ev.Qty, ev.Unit, ev.Gross, ev.Cut, ev.Net, ev.SaleID,
			); err != nil {
				return model.UploadResult{}, fmt.Errorf("%w: appending to batch: %v", repository.ErrStorageUnavailable, err)
			}
			appended++
		}
		if appended > 0 {
			if err := batch.Send(); err != nil {
				return model.UploadResult{}, fmt.Errorf("%w: sending batch: %v", repository.ErrStorageUnavailable, err)
			}
		} else if err := batch.Abort(); err != nil {
			return model.UploadResult{}, fmt.Errorf("%w: aborting batch: %v", repository.ErrStorageUnavailable, err)
		}
		result.Accepted += appended
	}
	return result, nil
}

// existingKeys returns which of the candidate dedup keys are already stored
// for (realm, character, kind).
func (r *ClickHouseRepository) existingKeys(ctx context.Context, realm, character, kind string, keys []string) (map[string]struct{}, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT DISTINCT dedup_key
		FROM ledger_events
		WHERE realm = ? AND character_name = ? AND kind = ? AND dedup_key IN (?)
	`, realm, character, kind, keys)
	if err != nil {
		return nil, fmt.Errorf("%w: querying existing keys: %v", repository.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	existing := make(map[string]struct{})
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("%w: scanning key: %v", repository.ErrStorageUnavailable, err)
		}
		existing[key] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading keys: %v", repository.ErrStorageUnavailable, err)
	}
	return existing, nil
}

func (r *ClickHouseRepository) Query(ctx context.Context, realm, character, kind string, sinceT int64) ([]model.LedgerEvent, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT t, item_id, qty, unit, gross, cut, net, sale_id
		FROM ledger_events FINAL
		WHERE realm = ? AND character_name = ? AND kind = ? AND t >= ?
		ORDER BY t ASC
	`, realm, character, kind, sinceT)
	if err != nil {
		return nil, fmt.Errorf("%w: querying events: %v", repository.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var results []model.LedgerEvent
	for rows.Next() {
		var ev model.LedgerEvent
		if err := rows.Scan(&ev.T, &ev.ItemID, &ev.Qty, &ev.Unit, &ev.Gross, &ev.Cut, &ev.Net, &ev.SaleID); err != nil {
			return nil, fmt.Errorf("%w: scanning event: %v", repository.ErrStorageUnavailable, err)
		}
		results = append(results, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading events: %v", repository.ErrStorageUnavailable, err)
	}
	return results, nil
}

func (r *ClickHouseRepository) Close() error {
	return r.conn.Close()
}
