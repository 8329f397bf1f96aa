package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"scout-agent/internal/domain/entity"
)

func (s *Store) BeginRun(ctx context.Context, runID, goal string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO runs (run_id, goal, status, started_at) VALUES (?, ?, ?, ?)
			ON CONFLICT (run_id) DO NOTHING`,
			runID, goal, string(entity.RunPlanning), s.timestamp())
		if err != nil {
			return fmt.Errorf("insert run: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("run %s already exists", runID)
		}
		return nil
	})
}

func (s *Store) FinishRun(ctx context.Context, report *entity.RunReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode run report: %w", err)
	}
	finished := s.timestamp()
	if !report.FinishedAt.IsZero() {
		finished = report.FinishedAt.UTC().Format(timeLayout)
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE runs SET status = ?, explanation = ?, persisted_count = ?, invocations = ?, report = ?, finished_at = ?
			WHERE run_id = ?`,
			string(report.Status), report.Explanation, report.PersistedCount, report.Invocations,
			string(data), finished, report.RunID)
		if err != nil {
			return fmt.Errorf("update run: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: %s", ErrRunNotFound, report.RunID)
		}
		return nil
	})
}

// ListRuns returns every archived run, newest first.
func (s *Store) ListRuns(ctx context.Context) ([]entity.RunInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, goal, status, started_at FROM runs ORDER BY started_at DESC, run_id`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []entity.RunInfo
	for rows.Next() {
		var (
			info    entity.RunInfo
			status  string
			started sql.NullString
		)
		if err := rows.Scan(&info.RunID, &info.Goal, &status, &started); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		info.Status = entity.RunStatus(status)
		info.StartedAt = parseTime(started)
		out = append(out, info)
	}
	return out, rows.Err()
}

// Report returns the stored terminal report of a run. A run still in progress has none.
func (s *Store) Report(ctx context.Context, runID string) (*entity.RunReport, error) {
	var data sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT report FROM runs WHERE run_id = ?`, runID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("query run report: %w", err)
	}
	if !data.Valid {
		return nil, nil
	}
	var report entity.RunReport
	if err := json.Unmarshal([]byte(data.String), &report); err != nil {
		return nil, fmt.Errorf("decode run report: %w", err)
	}
	return &report, nil
}
