package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/storeledger/internal/jobs"
	"github.com/odyssey-erp/storeledger/internal/reconcile"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// ReportBuilder computes reconciliation reports through the cache.
type ReportBuilder interface {
	Report(ctx context.Context, window reconcile.Window) (reconcile.Report, error)
}

// ReconcileWarmupJob pre-populates the reconciliation cache.
type ReconcileWarmupJob struct {
	Reports ReportBuilder
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewReconcileWarmupJob wires dependencies for the warmup handler.
func NewReconcileWarmupJob(reports ReportBuilder, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReconcileWarmupJob {
	return &ReconcileWarmupJob{Reports: reports, Logger: logger, Metrics: metrics}
}

// Handle processes reconciliation warmup tasks.
func (j *ReconcileWarmupJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Reports == nil {
		return errors.New("reconcile warmup: handler not configured")
	}
	var payload ReconcileWarmupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}

	tracker := j.metrics().Track(TaskReconcileWarmup)
	defer func() {
		err = tracker.End(err)
	}()

	logger := j.logger()
	scopeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	start := time.Now()
	report, err := j.Reports.Report(scopeCtx, reconcile.Window{From: payload.From, To: payload.To})
	if err != nil {
		logger.Error("warm reconciliation report", slog.Any("error", err))
		return err
	}
	logger.Info("completed reconciliation warmup", slog.Int("rows", len(report.Rows)), slog.Duration("duration", time.Since(start)))
	return nil
}

func (j *ReconcileWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskReconcileWarmup))
	}
	return slog.Default().With(slog.String("job", TaskReconcileWarmup))
}

func (j *ReconcileWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
