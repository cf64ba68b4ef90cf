package refreshlog

import (
	"context"
	"time"
)

type Repository interface {
	InsertEvent(ctx context.Context, path string) error
	StartBatchRun(ctx context.Context, gameweekID int) (int64, error)
	FinishBatchRun(ctx context.Context, id int64, success bool, failureReason string, phases map[string]time.Duration) error
	HasSuccessfulBatch(ctx context.Context, gameweekID int) (bool, error)
}
