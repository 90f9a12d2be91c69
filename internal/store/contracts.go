package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Alltagsbruecke/SignUp-APP/internal/record"
)

// RecordContract logs a rendered contract. place is called inside the
// transaction after the log row is written; it moves the document into
// its final location. If place fails the log row is rolled back, so the
// log never points at a document that was not placed.
//
// place may be nil when the document is already in place.
func (s *Store) RecordContract(ctx context.Context, e record.ContractLogEntry, place func() error) error {
	const op = "record_contract"

	if e.ID == "" {
		return record.NewValidationError(op, "contract id must not be empty")
	}
	if e.Snapshot.IsZero() {
		return record.NewValidationError(op, "contract snapshot must not be empty")
	}

	snap, err := json.Marshal(e.Snapshot)
	if err != nil {
		return fmt.Errorf("%s: marshal snapshot: %w", op, err)
	}

	return s.withTx(ctx, op, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO contracts (id, client_id, generated_at, path, digest, snapshot)
			VALUES (?, ?, ?, ?, ?, ?)
		`, e.ID, e.ClientID, e.GeneratedAt.UTC().Format(record.TimeLayout), e.Path, e.Digest, string(snap))
		if err != nil {
			return s.storageErr(op, fmt.Errorf("insert contract: %w", err))
		}

		if place != nil {
			if err := place(); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListContracts returns logged contracts ordered by generation time.
// A clientID of 0 lists contracts for every client.
func (s *Store) ListContracts(ctx context.Context, clientID int64) ([]record.ContractLogEntry, error) {
	const op = "list_contracts"

	query := `
		SELECT id, client_id, generated_at, path, digest, snapshot
		FROM contracts
	`
	var args []any
	if clientID != 0 {
		query += ` WHERE client_id = ?`
		args = append(args, clientID)
	}
	query += ` ORDER BY generated_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.storageErr(op, fmt.Errorf("query contracts: %w", err))
	}
	defer rows.Close()

	entries := []record.ContractLogEntry{}
	for rows.Next() {
		var (
			e           record.ContractLogEntry
			generatedAt string
			snap        string
		)
		if err := rows.Scan(&e.ID, &e.ClientID, &generatedAt, &e.Path, &e.Digest, &snap); err != nil {
			return nil, s.storageErr(op, fmt.Errorf("scan contract: %w", err))
		}
		ts, err := time.Parse(record.TimeLayout, generatedAt)
		if err != nil {
			return nil, s.storageErr(op, fmt.Errorf("parse generated_at: %w", err))
		}
		e.GeneratedAt = ts.UTC()
		if err := json.Unmarshal([]byte(snap), &e.Snapshot); err != nil {
			return nil, s.storageErr(op, fmt.Errorf("decode snapshot of %s: %w", e.ID, err))
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, s.storageErr(op, fmt.Errorf("iterate contracts: %w", err))
	}
	return entries, nil
}
