package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskInventoryLowStockScan reports tracked items at or below their threshold.
	TaskInventoryLowStockScan = "inventory:low_stock_scan"
	// TaskReconcileWarmup precomputes the reconciliation report into the cache.
	TaskReconcileWarmup = "reconcile:warmup"
)

// LowStockScanPayload carries options for the low stock scan.
type LowStockScanPayload struct {
	Category string `json:"category,omitempty"`
}

// ReconcileWarmupPayload selects the report window to warm. A zero window
// warms the all-time report.
type ReconcileWarmupPayload struct {
	From time.Time `json:"from,omitempty"`
	To   time.Time `json:"to,omitempty"`
}

// NewLowStockScanTask constructs a low stock scan task.
func NewLowStockScanTask(category string) (*asynq.Task, error) {
	data, err := json.Marshal(LowStockScanPayload{Category: category})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInventoryLowStockScan, data), nil
}

// NewReconcileWarmupTask constructs a reconciliation warmup task.
func NewReconcileWarmupTask(payload ReconcileWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReconcileWarmup, data), nil
}
