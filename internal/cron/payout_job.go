package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/fulfillment-backend/internal/payouts"
	"github.com/angelmondragon/fulfillment-backend/pkg/logger"
)

type payoutRunner interface {
	RunBatch(ctx context.Context) (payouts.BatchReport, error)
}

type PayoutBatchJobParams struct {
	Logger *logger.Logger
	Engine payoutRunner
}

// NewPayoutBatchJob wraps the payout engine as a cron job. Failed vendor
// transfers are recorded by the engine and do not fail the job.
func NewPayoutBatchJob(params PayoutBatchJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Engine == nil {
		return nil, fmt.Errorf("payout engine required")
	}
	return &payoutBatchJob{logg: params.Logger, engine: params.Engine}, nil
}

type payoutBatchJob struct {
	logg   *logger.Logger
	engine payoutRunner
}

func (j *payoutBatchJob) Name() string { return "payout-batch" }

func (j *payoutBatchJob) Run(ctx context.Context) error {
	report, err := j.engine.RunBatch(ctx)
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"vendors":   report.Vendors,
		"succeeded": report.Succeeded,
		"failed":    report.Failed,
		"skipped":   report.Skipped,
		"paid":      report.Paid.StringFixed(2),
	})
	if err != nil {
		return fmt.Errorf("payout batch: %w", err)
	}
	if report.Failed > 0 {
		j.logg.Warn(logCtx, "payout batch finished with failed transfers")
		return nil
	}
	j.logg.Info(logCtx, "payout batch finished")
	return nil
}
