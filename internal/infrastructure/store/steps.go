package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"scout-agent/internal/domain/entity"
)

// Append assigns the run's next turn index and stores the record.
func (s *Store) Append(ctx context.Context, rec entity.StepRecord) (entity.StepRecord, error) {
	if rec.RunID == "" {
		return entity.StepRecord{}, fmt.Errorf("append step: empty run id")
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var next int
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(turn_index), 0) + 1 FROM steps WHERE run_id = ?`, rec.RunID,
		).Scan(&next); err != nil {
			return fmt.Errorf("next turn index: %w", err)
		}
		rec.TurnIndex = next

		_, err := tx.ExecContext(ctx, `
			INSERT INTO steps (run_id, turn_index, actor, reflection_text, chosen_action, observed_state_digest, heavy_artifact_ref)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			rec.RunID, rec.TurnIndex, string(rec.Actor), rec.ReflectionText, rec.ChosenAction,
			rec.ObservedStateDigest, nullable(rec.HeavyArtifactRef),
		)
		if err != nil {
			return fmt.Errorf("insert step: %w", err)
		}
		return nil
	})
	if err != nil {
		return entity.StepRecord{}, err
	}
	return rec, nil
}

// Steps returns a run's records in turn order.
func (s *Store) Steps(ctx context.Context, runID string) ([]entity.StepRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, turn_index, actor, reflection_text, chosen_action, observed_state_digest, heavy_artifact_ref
		FROM steps WHERE run_id = ? ORDER BY turn_index`, runID)
	if err != nil {
		return nil, fmt.Errorf("query steps: %w", err)
	}
	defer rows.Close()

	var out []entity.StepRecord
	for rows.Next() {
		var (
			rec   entity.StepRecord
			actor string
			ref   sql.NullString
		)
		if err := rows.Scan(&rec.RunID, &rec.TurnIndex, &actor, &rec.ReflectionText, &rec.ChosenAction,
			&rec.ObservedStateDigest, &ref); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		rec.Actor = entity.Actor(actor)
		rec.HeavyArtifactRef = ref.String
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Compact clears the heavy artifact references of a finished run and returns them
// so the caller can drop the blobs. Running or unknown runs are refused.
func (s *Store) Compact(ctx context.Context, runID string) ([]string, error) {
	var refs []string
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var status string
		err := tx.QueryRowContext(ctx, `SELECT status FROM runs WHERE run_id = ?`, runID).Scan(&status)
		if err == sql.ErrNoRows {
			return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		if err != nil {
			return fmt.Errorf("query run status: %w", err)
		}
		if !entity.RunStatus(status).IsTerminal() {
			return fmt.Errorf("%w: %s is %s", ErrRunActive, runID, strings.ToLower(status))
		}

		rows, err := tx.QueryContext(ctx,
			`SELECT heavy_artifact_ref FROM steps WHERE run_id = ? AND heavy_artifact_ref IS NOT NULL ORDER BY turn_index`, runID)
		if err != nil {
			return fmt.Errorf("query artifact refs: %w", err)
		}
		for rows.Next() {
			var ref string
			if err := rows.Scan(&ref); err != nil {
				rows.Close()
				return fmt.Errorf("scan artifact ref: %w", err)
			}
			refs = append(refs, ref)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE steps SET heavy_artifact_ref = NULL WHERE run_id = ?`, runID); err != nil {
			return fmt.Errorf("clear artifact refs: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return refs, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
