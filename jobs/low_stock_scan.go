package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/storeledger/internal/inventory"
	jobmetrics "github.com/odyssey-erp/storeledger/internal/jobs"
)

// LowStockSource lists items under their reorder threshold.
type LowStockSource interface {
	LowStock(ctx context.Context) ([]inventory.StockItem, error)
}

// LowStockScanJob logs and counts tracked items at or below threshold.
type LowStockScanJob struct {
	Stock   LowStockSource
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewLowStockScanJob wires dependencies for the scan handler.
func NewLowStockScanJob(stock LowStockSource, logger *slog.Logger, metrics *jobmetrics.Metrics) *LowStockScanJob {
	return &LowStockScanJob{Stock: stock, Logger: logger, Metrics: metrics}
}

// Handle processes low stock scan tasks.
func (j *LowStockScanJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Stock == nil {
		return errors.New("low stock scan: handler not configured")
	}
	var payload LowStockScanPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}

	tracker := j.metrics().Track(TaskInventoryLowStockScan)
	defer func() {
		err = tracker.End(err)
	}()

	logger := j.logger()
	items, err := j.Stock.LowStock(ctx)
	if err != nil {
		logger.Error("list low stock", slog.Any("error", err))
		return err
	}
	if payload.Category != "" {
		filtered := items[:0]
		for _, item := range items {
			if strings.EqualFold(item.Category, payload.Category) {
				filtered = append(filtered, item)
			}
		}
		items = filtered
	}
	for _, item := range items {
		logger.Warn("item below threshold",
			slog.String("item_id", item.ID.String()),
			slog.String("name", item.Name),
			slog.String("quantity", item.Quantity.String()),
			slog.String("min_threshold", item.MinThreshold.String()))
	}
	j.metrics().SetLowStock(len(items))
	logger.Info("completed low stock scan", slog.Int("items", len(items)))
	return nil
}

func (j *LowStockScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskInventoryLowStockScan))
	}
	return slog.Default().With(slog.String("job", TaskInventoryLowStockScan))
}

func (j *LowStockScanJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
