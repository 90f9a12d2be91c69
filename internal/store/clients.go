package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Alltagsbruecke/SignUp-APP/internal/record"
	"github.com/Alltagsbruecke/SignUp-APP/internal/sequence"
)

// Create validates and inserts a new client with its extra fields.
// The customer number comes from the sequence generator; the client row,
// its fields and the new high-water mark commit in one transaction.
func (s *Store) Create(ctx context.Context, name string, fields []record.Field) (record.Client, error) {
	const op = "create"

	name, err := record.ValidateName(op, name)
	if err != nil {
		return record.Client{}, err
	}
	fs, err := record.ValidateFields(op, fields)
	if err != nil {
		return record.Client{}, err
	}

	var c record.Client
	err = s.withTx(ctx, op, func(tx *sql.Tx) error {
		id, err := s.allocateID(ctx, tx, op)
		if err != nil {
			return err
		}
		createdAt := s.now().UTC().Truncate(time.Second)

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO clients (id, name, created_at)
			VALUES (?, ?, ?)
		`, id, name, createdAt.Format(record.TimeLayout)); err != nil {
			return s.storageErr(op, fmt.Errorf("insert client: %w", err))
		}

		for i, f := range fs {
			if err := insertField(ctx, tx, id, f, int64(i+1)); err != nil {
				return s.storageErr(op, err)
			}
		}

		c = record.Client{ID: id, Name: name, Fields: fs, CreatedAt: createdAt}
		return nil
	})
	if err != nil {
		return record.Client{}, err
	}
	return c, nil
}

// allocateID reads the persisted high-water mark, asks the generator for
// the next number above it and stores the new mark. Must run inside the
// mutation transaction.
func (s *Store) allocateID(ctx context.Context, tx *sql.Tx, op string) (int64, error) {
	var mark, maxID int64
	err := tx.QueryRowContext(ctx, `
		SELECT
			COALESCE((SELECT value FROM sequences WHERE name = ?), 0),
			COALESCE((SELECT MAX(id) FROM clients), 0)
	`, clientSequence).Scan(&mark, &maxID)
	if err != nil {
		return 0, s.storageErr(op, fmt.Errorf("read sequence: %w", err))
	}

	floor := mark
	if maxID > floor {
		floor = maxID
	}

	id, err := s.seq.Next(floor)
	if errors.Is(err, sequence.ErrExhausted) {
		return 0, record.NewExhaustedError(op, err)
	}
	if err != nil {
		return 0, err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sequences (name, value) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value
	`, clientSequence, id); err != nil {
		return 0, s.storageErr(op, fmt.Errorf("write sequence: %w", err))
	}
	return id, nil
}

func insertField(ctx context.Context, tx *sql.Tx, clientID int64, f record.Field, position int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO client_fields (client_id, key, value, position)
		VALUES (?, ?, ?, ?)
	`, clientID, f.Key, f.Value, position)
	if err != nil {
		return fmt.Errorf("insert field %q: %w", f.Key, err)
	}
	return nil
}

// AddField appends a new extra field to an existing client.
// Returns a not-found error for an unknown client and a validation error
// if the key is already present; the field set is unchanged in both cases.
func (s *Store) AddField(ctx context.Context, clientID int64, key, value string) error {
	const op = "add_field"

	key, err := record.ValidateKey(op, key)
	if err != nil {
		return err
	}
	if err := record.ValidateValue(op, key, value); err != nil {
		return err
	}

	return s.withTx(ctx, op, func(tx *sql.Tx) error {
		if err := s.requireClient(ctx, tx, op, clientID); err != nil {
			return err
		}

		var exists int
		err := tx.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM client_fields WHERE client_id = ? AND key = ?
		`, clientID, key).Scan(&exists)
		if err != nil {
			return s.storageErr(op, fmt.Errorf("check field: %w", err))
		}
		if exists > 0 {
			e := record.NewValidationError(op, fmt.Sprintf("field key %q already present", key))
			e.ClientID = clientID
			return e
		}

		var position int64
		err = tx.QueryRowContext(ctx, `
			SELECT COALESCE(MAX(position), 0) + 1 FROM client_fields WHERE client_id = ?
		`, clientID).Scan(&position)
		if err != nil {
			return s.storageErr(op, fmt.Errorf("next position: %w", err))
		}

		if err := insertField(ctx, tx, clientID, record.Field{Key: key, Value: value}, position); err != nil {
			return s.storageErr(op, err)
		}
		return nil
	})
}

// Update applies a rename, value changes and key removals atomically.
// Set may only touch keys that already exist (use AddField for new keys);
// Remove may only name existing keys. A key may not be both set and removed.
func (s *Store) Update(ctx context.Context, clientID int64, upd record.Update) error {
	const op = "update"

	if upd.IsZero() {
		return record.NewValidationError(op, "nothing to update")
	}

	var name string
	if upd.Name != nil {
		n, err := record.ValidateName(op, *upd.Name)
		if err != nil {
			return err
		}
		name = n
	}
	set, err := record.ValidateFields(op, upd.Set)
	if err != nil {
		return err
	}
	remove := make([]string, 0, len(upd.Remove))
	removing := make(map[string]struct{}, len(upd.Remove))
	for _, k := range upd.Remove {
		key, err := record.ValidateKey(op, k)
		if err != nil {
			return err
		}
		if set.Has(key) {
			return record.NewValidationError(op, fmt.Sprintf("field key %q is both set and removed", key))
		}
		if _, dup := removing[key]; dup {
			continue
		}
		removing[key] = struct{}{}
		remove = append(remove, key)
	}

	return s.withTx(ctx, op, func(tx *sql.Tx) error {
		if err := s.requireClient(ctx, tx, op, clientID); err != nil {
			return err
		}

		if upd.Name != nil {
			if _, err := tx.ExecContext(ctx, `UPDATE clients SET name = ? WHERE id = ?`, name, clientID); err != nil {
				return s.storageErr(op, fmt.Errorf("rename: %w", err))
			}
		}

		for _, f := range set {
			res, err := tx.ExecContext(ctx, `
				UPDATE client_fields SET value = ? WHERE client_id = ? AND key = ?
			`, f.Value, clientID, f.Key)
			if err != nil {
				return s.storageErr(op, fmt.Errorf("set field %q: %w", f.Key, err))
			}
			if err := requireAffected(res, op, clientID, f.Key); err != nil {
				return err
			}
		}

		for _, key := range remove {
			res, err := tx.ExecContext(ctx, `
				DELETE FROM client_fields WHERE client_id = ? AND key = ?
			`, clientID, key)
			if err != nil {
				return s.storageErr(op, fmt.Errorf("remove field %q: %w", key, err))
			}
			if err := requireAffected(res, op, clientID, key); err != nil {
				return err
			}
		}
		return nil
	})
}

// requireAffected turns a zero-row field update into a validation error.
func requireAffected(res sql.Result, op string, clientID int64, key string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if n == 0 {
		e := record.NewValidationError(op, fmt.Sprintf("field key %q not present", key))
		e.ClientID = clientID
		return e
	}
	return nil
}

// Delete removes a client and its fields. Its customer number stays
// consumed and is never handed out again.
func (s *Store) Delete(ctx context.Context, clientID int64) error {
	const op = "delete"

	return s.withTx(ctx, op, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM client_fields WHERE client_id = ?`, clientID); err != nil {
			return s.storageErr(op, fmt.Errorf("delete fields: %w", err))
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM clients WHERE id = ?`, clientID)
		if err != nil {
			return s.storageErr(op, fmt.Errorf("delete client: %w", err))
		}
		n, err := res.RowsAffected()
		if err != nil {
			return s.storageErr(op, fmt.Errorf("rows affected: %w", err))
		}
		if n == 0 {
			return record.NewNotFoundError(op, clientID)
		}
		return nil
	})
}

// requireClient returns a not-found error unless the client exists.
func (s *Store) requireClient(ctx context.Context, tx *sql.Tx, op string, clientID int64) error {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM clients WHERE id = ?`, clientID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return record.NewNotFoundError(op, clientID)
	}
	if err != nil {
		return s.storageErr(op, fmt.Errorf("lookup client: %w", err))
	}
	return nil
}

// Get retrieves a single client with its fields in insertion order.
// Returns a not-found error if the client does not exist.
func (s *Store) Get(ctx context.Context, clientID int64) (record.Client, error) {
	const op = "get"

	var (
		c         record.Client
		createdAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, created_at FROM clients WHERE id = ?
	`, clientID).Scan(&c.ID, &c.Name, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return record.Client{}, record.NewNotFoundError(op, clientID)
	}
	if err != nil {
		return record.Client{}, s.storageErr(op, fmt.Errorf("query client: %w", err))
	}
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return record.Client{}, s.storageErr(op, err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT key, value FROM client_fields
		WHERE client_id = ?
		ORDER BY position ASC
	`, clientID)
	if err != nil {
		return record.Client{}, s.storageErr(op, fmt.Errorf("query fields: %w", err))
	}
	defer rows.Close()

	c.Fields = record.Fields{}
	for rows.Next() {
		var f record.Field
		if err := rows.Scan(&f.Key, &f.Value); err != nil {
			return record.Client{}, s.storageErr(op, fmt.Errorf("scan field: %w", err))
		}
		c.Fields = append(c.Fields, f)
	}
	if err := rows.Err(); err != nil {
		return record.Client{}, s.storageErr(op, fmt.Errorf("iterate fields: %w", err))
	}

	return c, nil
}

// ListAll returns every client ordered by customer number ascending,
// each with its fields in insertion order. Returns an empty slice (not
// nil) for an empty store.
func (s *Store) ListAll(ctx context.Context) ([]record.Client, error) {
	const op = "list_all"

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.name, c.created_at, f.key, f.value
		FROM clients c
		LEFT JOIN client_fields f ON f.client_id = c.id
		ORDER BY c.id ASC, f.position ASC
	`)
	if err != nil {
		return nil, s.storageErr(op, fmt.Errorf("query clients: %w", err))
	}
	defer rows.Close()

	clients := []record.Client{}
	for rows.Next() {
		var (
			id         int64
			name       string
			createdAt  string
			key, value sql.NullString
		)
		if err := rows.Scan(&id, &name, &createdAt, &key, &value); err != nil {
			return nil, s.storageErr(op, fmt.Errorf("scan client: %w", err))
		}

		if n := len(clients); n == 0 || clients[n-1].ID != id {
			ts, err := parseTime(createdAt)
			if err != nil {
				return nil, s.storageErr(op, err)
			}
			clients = append(clients, record.Client{
				ID:        id,
				Name:      name,
				Fields:    record.Fields{},
				CreatedAt: ts,
			})
		}
		if key.Valid {
			last := &clients[len(clients)-1]
			last.Fields = append(last.Fields, record.Field{Key: key.String, Value: value.String})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, s.storageErr(op, fmt.Errorf("iterate clients: %w", err))
	}

	return clients, nil
}

func parseTime(v string) (time.Time, error) {
	t, err := time.Parse(record.TimeLayout, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", v, err)
	}
	return t.UTC(), nil
}
