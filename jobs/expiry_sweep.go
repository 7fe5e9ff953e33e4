package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
)

// Sweeper marks approved batches past expiry as EXPIRED.
// Implemented by the ledger service.
type Sweeper interface {
	SweepExpired(ctx context.Context) (int64, error)
}

// SweepMetrics counts swept batches.
type SweepMetrics interface {
	BatchesExpired(n int64)
}

// ExpirySweepJob runs the periodic expiry sweep. Expired stock stays on the
// books for audit; the sweep only removes it from allocation.
type ExpirySweepJob struct {
	sweeper Sweeper
	logger  *slog.Logger
	metrics SweepMetrics
}

// NewExpirySweepJob constructs the job.
func NewExpirySweepJob(sweeper Sweeper, logger *slog.Logger, metrics SweepMetrics) *ExpirySweepJob {
	return &ExpirySweepJob{sweeper: sweeper, logger: logger, metrics: metrics}
}

// Handle processes TaskExpirySweep tasks.
func (j *ExpirySweepJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload ExpirySweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	count, err := j.sweeper.SweepExpired(ctx)
	if err != nil {
		if j.logger != nil {
			j.logger.Error("expiry sweep", slog.Any("error", err))
		}
		return err
	}
	if j.metrics != nil {
		j.metrics.BatchesExpired(count)
	}
	if j.logger != nil {
		j.logger.Info("expiry sweep complete", slog.Int64("batches_expired", count))
	}
	return nil
}
