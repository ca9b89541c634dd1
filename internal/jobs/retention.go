package jobs

import (
	"context"
	"log/slog"
	"time"
)

const retentionBatchSize = 1000

// EventPruner deletes events older than a cutoff.
type EventPruner interface {
	DeleteBefore(ctx context.Context, cutoff time.Time, batchSize int) (int64, error)
}

// RetentionJob removes visit events older than the retention period.
type RetentionJob struct {
	store  EventPruner
	days   int
	now    func() time.Time
	logger *slog.Logger
}

func NewRetentionJob(store EventPruner, days int, logger *slog.Logger) *RetentionJob {
	return &RetentionJob{store: store, days: days, now: time.Now, logger: logger}
}

func (j *RetentionJob) Name() string { return "retention" }

// Enabled reports whether a positive retention period is configured.
func (j *RetentionJob) Enabled() bool { return j.days > 0 }

// Run deletes expired events. A non-positive retention keeps everything.
func (j *RetentionJob) Run(ctx context.Context) error {
	if !j.Enabled() {
		return nil
	}
	cutoff := j.now().UTC().AddDate(0, 0, -j.days)

	deleted, err := j.store.DeleteBefore(ctx, cutoff, retentionBatchSize)
	if err != nil {
		j.logger.Error("Failed to prune visit events",
			slog.Any("error", err),
			slog.Int64("deleted_so_far", deleted))
		return err
	}

	if deleted > 0 {
		j.logger.Info("Pruned old visit events",
			slog.Int64("deleted_count", deleted),
			slog.Int("retention_days", j.days),
			slog.Time("cutoff", cutoff))
	}
	return nil
}
