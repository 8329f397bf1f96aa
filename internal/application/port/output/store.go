package output

import (
	"context"

	"scout-agent/internal/domain/entity"
)

// ArtifactLog is the append-only per-run step log. Append assigns the turn index.
type ArtifactLog interface {
	Append(ctx context.Context, rec entity.StepRecord) (entity.StepRecord, error)
	Steps(ctx context.Context, runID string) ([]entity.StepRecord, error)
}

type BlobStore interface {
	Put(ctx context.Context, runID string, data []byte, ext string) (string, error)
}

// RecordSink persists extracted rows and reports how many were new.
type RecordSink interface {
	Persist(ctx context.Context, runID string, stepID int, rows []entity.Row) (int, error)
}

type RunArchive interface {
	BeginRun(ctx context.Context, runID, goal string) error
	FinishRun(ctx context.Context, report *entity.RunReport) error
	ListRuns(ctx context.Context) ([]entity.RunInfo, error)
}
