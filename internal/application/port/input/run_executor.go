package input

import (
	"context"

	"scout-agent/internal/domain/entity"
)

type RunRequest struct {
	RunID  string
	Goal   string
	Schema entity.Schema
}

type RunExecutor interface {
	Execute(ctx context.Context, req RunRequest) (*entity.RunReport, error)
}
