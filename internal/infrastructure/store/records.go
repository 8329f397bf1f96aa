package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"scout-agent/internal/domain/entity"
)

// Persist stores rows for a run, skipping any row already stored for it. It returns
// how many rows were new.
func (s *Store) Persist(ctx context.Context, runID string, stepID int, rows []entity.Row) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	inserted := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO records (run_id, step_id, row_hash, data, created_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (run_id, row_hash) DO NOTHING`)
		if err != nil {
			return fmt.Errorf("prepare insert record: %w", err)
		}
		defer stmt.Close()

		created := s.timestamp()
		for _, row := range rows {
			data, hash, err := canonical(row)
			if err != nil {
				return err
			}
			res, err := stmt.ExecContext(ctx, runID, stepID, hash, data, created)
			if err != nil {
				return fmt.Errorf("insert record: %w", err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("insert record: %w", err)
			}
			inserted += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// Records returns a run's stored rows in insertion order.
func (s *Store) Records(ctx context.Context, runID string) ([]entity.Row, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM records WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var out []entity.Row
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		var row entity.Row
		if err := json.Unmarshal([]byte(data), &row); err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// canonical encodes a row with sorted keys and hashes the encoding.
func canonical(row entity.Row) (string, string, error) {
	data, err := json.Marshal(row)
	if err != nil {
		return "", "", fmt.Errorf("encode record: %w", err)
	}
	sum := sha256.Sum256(data)
	return string(data), hex.EncodeToString(sum[:]), nil
}
