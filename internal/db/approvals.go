package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Dicklesworthstone/gatekeeper/internal/ledger"
)

// ApprovalStore persists the approval ledger in the approvals table.
type ApprovalStore struct {
	db *DB
}

// NewApprovalStore returns a ledger.Store backed by db.
func NewApprovalStore(db *DB) *ApprovalStore {
	return &ApprovalStore{db: db}
}

const approvalColumns = `key, command_id, request_id, status, description, created_at, decided_at, consumed_at`

// Load reads every approval row.
func (s *ApprovalStore) Load(ctx context.Context) (map[string]ledger.Record, error) {
	rows, err := s.db.conn.QueryContext(ctx, `SELECT `+approvalColumns+` FROM approvals`)
	if err != nil {
		return nil, fmt.Errorf("querying approvals: %w", err)
	}
	defer rows.Close()

	out := make(map[string]ledger.Record)
	for rows.Next() {
		rec, err := scanApproval(rows)
		if err != nil {
			return nil, err
		}
		out[rec.Key] = *rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating approvals: %w", err)
	}
	return out, nil
}

// Save replaces the approvals table with records in one transaction.
func (s *ApprovalStore) Save(ctx context.Context, records map[string]ledger.Record) error {
	return s.db.TransactionContext(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM approvals`); err != nil {
			return fmt.Errorf("clearing approvals: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO approvals (`+approvalColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("preparing approval insert: %w", err)
		}
		defer stmt.Close()

		for key, r := range records {
			if _, err := stmt.ExecContext(ctx,
				key, r.CommandID, r.RequestID, string(r.Status), r.Description,
				r.CreatedAt.UTC().Format(time.RFC3339Nano), nullTime(r.DecidedAt), nullTime(r.ConsumedAt),
			); err != nil {
				return fmt.Errorf("inserting approval %q: %w", key, err)
			}
		}
		return nil
	})
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanApproval(row scanner) (*ledger.Record, error) {
	var (
		r         ledger.Record
		status    string
		createdAt  string
		decidedAt  sql.NullString
		consumedAt sql.NullString
	)
	err := row.Scan(&r.Key, &r.CommandID, &r.RequestID, &status, &r.Description, &createdAt, &decidedAt, &consumedAt)
	if err != nil {
		return nil, fmt.Errorf("scanning approval: %w", err)
	}
	if r.Status, err = ledger.ParseStatus(status); err != nil {
		return nil, fmt.Errorf("approval %q: %w", r.Key, err)
	}

	r.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at for %q: %w", r.Key, err)
	}
	if r.DecidedAt, err = parseNullTime(decidedAt); err != nil {
		return nil, fmt.Errorf("parsing decided_at for %q: %w", r.Key, err)
	}
	if r.ConsumedAt, err = parseNullTime(consumedAt); err != nil {
		return nil, fmt.Errorf("parsing consumed_at for %q: %w", r.Key, err)
	}
	return &r, nil
}
