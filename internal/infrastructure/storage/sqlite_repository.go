package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"ahLedgerApp/internal/domain/model"
	"ahLedgerApp/internal/domain/repository"
)

// SQLiteRepository is the default durable EventStore. Idempotence is enforced
// by the database itself: a unique index over (realm, character, kind,
// dedup_key) with INSERT OR IGNORE makes concurrent re-uploads of the same
// event a silent no-op rather than an error.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", repository.ErrStorageUnavailable, err)
	}

	// WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: enabling WAL: %v", repository.ErrStorageUnavailable, err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: setting busy timeout: %v", repository.ErrStorageUnavailable, err)
	}

	repo := &SQLiteRepository{db: db}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

var _ repository.EventStore = (*SQLiteRepository)(nil)

func (r *SQLiteRepository) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS ledger_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		realm TEXT NOT NULL,
		character_name TEXT NOT NULL,
		kind TEXT NOT NULL,
		dedup_key TEXT NOT NULL,
		t INTEGER NOT NULL,
		item_id INTEGER NOT NULL,
		qty INTEGER NOT NULL,
		unit INTEGER NOT NULL DEFAULT 0,
		gross INTEGER NOT NULL DEFAULT 0,
		cut INTEGER NOT NULL DEFAULT 0,
		net INTEGER NOT NULL DEFAULT 0,
		sale_id TEXT NOT NULL DEFAULT ''
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_ledger_identity
		ON ledger_events(realm, character_name, kind, dedup_key);
	CREATE INDEX IF NOT EXISTS idx_ledger_window
		ON ledger_events(realm, character_name, kind, t);
	`
	if _, err := r.db.Exec(schema); err != nil {
		return fmt.Errorf("%w: migrating schema: %v", repository.ErrStorageUnavailable, err)
	}
	return nil
}

func (r *SQLiteRepository) Upsert(ctx context.Context, realm, character string, buckets model.EventBuckets) (model.UploadResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.UploadResult{}, fmt.Errorf("%w: begin tx: %v", repository.ErrStorageUnavailable, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO ledger_events (
			realm, character_name, kind, dedup_key,
			t, item_id, qty, unit, gross, cut, net, sale_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return model.UploadResult{}, fmt.Errorf("%w: prepare insert: %v", repository.ErrStorageUnavailable, err)
	}
	defer stmt.Close()

	var result model.UploadResult
	for kind, events := range buckets {
		for _, ev := range events {
			res, err := stmt.ExecContext(ctx,
				realm, character, kind, ev.DedupKey(),
				ev.T, ev.ItemID, ev.Qty, ev.Unit, ev.Gross, ev.Cut, ev.Net, ev.SaleID,
			)
			if err != nil {
				return model.UploadResult{}, fmt.Errorf("%w: inserting event: %v", repository.ErrStorageUnavailable, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return model.UploadResult{}, fmt.Errorf("%w: rows affected: %v", repository.ErrStorageUnavailable, err)
			}
			if n > 0 {
				result.Accepted++
			} else {
				result.Duplicates++
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return model.UploadResult{}, fmt.Errorf("%w: commit: %v", repository.ErrStorageUnavailable, err)
	}
	return result, nil
}

func (r *SQLiteRepository) Query(ctx context.Context, realm, character, kind string, sinceT int64) ([]model.LedgerEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT t, item_id, qty, unit, gross, cut, net, sale_id
		FROM ledger_events
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

// Reset drops every stored event. Used by the debug reset endpoint.
func (r *SQLiteRepository) Reset() error {
	if _, err := r.db.Exec("DELETE FROM ledger_events"); err != nil {
		return fmt.Errorf("%w: resetting store: %v", repository.ErrStorageUnavailable, err)
	}
	return nil
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}
