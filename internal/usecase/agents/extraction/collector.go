package extraction

import (
	"context"
	"fmt"
	"strings"

	"scout-agent/internal/application/port/output"
	"scout-agent/internal/domain/entity"
)

var _ output.ActionExecutor = (*rowCollector)(nil)

// rowCollector sits between the step loop and the session. It handles submit_rows itself
// and forwards every other action.
type rowCollector struct {
	next     output.ActionExecutor
	records  output.RecordSink
	runID    string
	stepID   int
	schema   entity.Schema
	logger   output.LoggerPort
	last     *entity.Snapshot
	inserted int
	rejected int
}

func newRowCollector(
	next output.ActionExecutor,
	records output.RecordSink,
	runID string,
	stepID int,
	schema entity.Schema,
	logger output.LoggerPort,
) *rowCollector {
	return &rowCollector{
		next:    next,
		records: records,
		runID:   runID,
		stepID:  stepID,
		schema:  schema,
		logger:  logger,
	}
}

func (c *rowCollector) Inserted() int {
	return c.inserted
}

func (c *rowCollector) Observe(ctx context.Context) (*entity.Snapshot, error) {
	snap, err := c.next.Observe(ctx)
	if err == nil {
		c.last = snap
	}
	return snap, err
}

func (c *rowCollector) Execute(ctx context.Context, action entity.Action) (*entity.Snapshot, error) {
	if action.Kind != entity.ActionSubmitRows {
		snap, err := c.next.Execute(ctx, action)
		if err == nil {
			c.last = snap
		}
		return snap, err
	}

	if c.last == nil {
		if _, err := c.Observe(ctx); err != nil {
			return nil, err
		}
	}

	rows, errs := c.normalize(action.Rows)
	if len(errs) > 0 {
		c.rejected += len(action.Rows)
		c.logger.Warn("Rows rejected", "runId", c.runID, "stepId", c.stepID, "errors", len(errs))
		return c.last.WithNote("Error: nothing stored. " + strings.Join(errs, "; ")), nil
	}
	if len(rows) == 0 {
		return c.last.WithNote("No rows submitted."), nil
	}

	n, err := c.records.Persist(ctx, c.runID, c.stepID, rows)
	if err != nil {
		return nil, fmt.Errorf("persist rows: %w", err)
	}
	c.inserted += n

	return c.last.WithNote(fmt.Sprintf("Stored %d new rows (%d duplicates). %d stored so far in this step.",
		n, len(rows)-n, c.inserted)), nil
}

func (c *rowCollector) normalize(rows []entity.Row) ([]entity.Row, []string) {
	var (
		out  = make([]entity.Row, 0, len(rows))
		errs []string
	)
	for i, row := range rows {
		norm, err := c.schema.NormalizeRow(row)
		if err != nil {
			errs = append(errs, fmt.Sprintf("row %d: %v", i+1, err))
			continue
		}
		out = append(out, norm)
	}
	return out, errs
}
