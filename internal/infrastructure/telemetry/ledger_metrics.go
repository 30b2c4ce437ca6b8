package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// LedgerMetrics tracks stock ledger activity: movement throughput, lot
// allocation outcomes and inventory health gauges.
type LedgerMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	movementTotal    *Counter
	allocationTotal  *Counter
	conflictRetries  *Counter
	movementDuration *Histogram

	lowStockSKUCount *Gauge
	reservedUnits    *Gauge
	allocatableLots  *Gauge

	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once

	provider StockMetricsProvider
}

// StockMetricsProvider supplies aggregate inventory state for periodic gauge
// collection without coupling the telemetry layer to the domain packages.
type StockMetricsProvider interface {
	// GetLowStockCount returns the number of SKUs below their low-stock threshold
	GetLowStockCount(ctx context.Context) (int64, error)

	// GetTotalReservedUnits returns the sum of reserved stock across all SKUs
	GetTotalReservedUnits(ctx context.Context) (int64, error)

	// GetAllocatableLotCount returns the number of active lots with remaining quantity
	GetAllocatableLotCount(ctx context.Context) (int64, error)
}

// LedgerMetricsConfig holds configuration for ledger metrics.
type LedgerMetricsConfig struct {
	Meter           metric.Meter
	Logger          *zap.Logger
	CollectInterval time.Duration // Default: 5 minutes
	Provider        StockMetricsProvider
}

// NewLedgerMetrics creates a new LedgerMetrics instance.
func NewLedgerMetrics(cfg LedgerMetricsConfig) (*LedgerMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	lm := &LedgerMetrics{
		meter:    cfg.Meter,
		logger:   logger,
		stopChan: make(chan struct{}),
		provider: cfg.Provider,
	}

	var err error

	lm.movementTotal, err = NewCounter(
		cfg.Meter,
		"inventory_stock_movement_total",
		"Total number of stock movements recorded",
		"{movements}",
	)
	if err != nil {
		return nil, err
	}

	lm.allocationTotal, err = NewCounter(
		cfg.Meter,
		"inventory_lot_allocation_total",
		"Total number of lot allocation attempts",
		"{allocations}",
	)
	if err != nil {
		return nil, err
	}

	lm.conflictRetries, err = NewCounter(
		cfg.Meter,
		"inventory_concurrency_retry_total",
		"Total number of optimistic lock retries",
		"{retries}",
	)
	if err != nil {
		return nil, err
	}

	lm.movementDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "inventory_stock_operation_duration_seconds",
		Description: "Duration of stock operations",
		Unit:        "s",
		Boundaries:  DBDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	lm.lowStockSKUCount, err = NewGauge(
		cfg.Meter,
		"inventory_low_stock_sku_count",
		"Number of SKUs below their low-stock threshold",
		"{skus}",
	)
	if err != nil {
		return nil, err
	}

	lm.reservedUnits, err = NewGauge(
		cfg.Meter,
		"inventory_reserved_units",
		"Total reserved stock across all SKUs",
		"{units}",
	)
	if err != nil {
		return nil, err
	}

	lm.allocatableLots, err = NewGauge(
		cfg.Meter,
		"inventory_allocatable_lot_count",
		"Number of active lots with remaining quantity",
		"{lots}",
	)
	if err != nil {
		return nil, err
	}

	return lm, nil
}

// Outcome labels for lot allocation attempts.
const (
	AllocationOutcomeSuccess      = "success"
	AllocationOutcomeInsufficient = "insufficient_stock"
	AllocationOutcomeConflict     = "conflict"
)

// RecordMovement records a stock movement of the given type.
func (lm *LedgerMetrics) RecordMovement(ctx context.Context, movementType, referenceType string) {
	lm.movementTotal.Inc(ctx,
		AttrMovementType.String(movementType),
		AttrReferenceType.String(referenceType),
	)
}

// RecordAllocation records a lot allocation attempt.
func (lm *LedgerMetrics) RecordAllocation(ctx context.Context, strategy, outcome string) {
	lm.allocationTotal.Inc(ctx,
		AttrAllocationStrategy.String(strategy),
		AttrOutcome.String(outcome),
	)
}

// RecordConflictRetry records an optimistic lock retry during a stock operation.
func (lm *LedgerMetrics) RecordConflictRetry(ctx context.Context, operation string) {
	lm.conflictRetries.Inc(ctx, AttrDBOperation.String(operation))
}

// RecordOperationDuration records how long a stock operation took.
func (lm *LedgerMetrics) RecordOperationDuration(ctx context.Context, operation string, d time.Duration) {
	lm.movementDuration.RecordDuration(ctx, d, AttrDBOperation.String(operation))
}

// StartPeriodicCollection starts the gauge collection loop. It is
// non-blocking; use Stop() to stop collection.
func (lm *LedgerMetrics) StartPeriodicCollection(ctx context.Context, interval time.Duration) {
	lm.collectOnce.Do(func() {
		if interval <= 0 {
			interval = 5 * time.Minute
		}
		go lm.runPeriodicCollection(ctx, interval)
	})
}

func (lm *LedgerMetrics) runPeriodicCollection(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lm.collectStockGauges(ctx)

	for {
		select {
		case <-lm.stopChan:
			lm.logger.Info("stopping ledger metrics collection")
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			lm.collectStockGauges(ctx)
		}
	}
}

func (lm *LedgerMetrics) collectStockGauges(ctx context.Context) {
	if lm.provider == nil {
		return
	}

	if count, err := lm.provider.GetLowStockCount(ctx); err != nil {
		lm.logger.Warn("failed to collect low stock count", zap.Error(err))
	} else {
		lm.lowStockSKUCount.Record(ctx, count)
	}

	if units, err := lm.provider.GetTotalReservedUnits(ctx); err != nil {
		lm.logger.Warn("failed to collect reserved units", zap.Error(err))
	} else {
		lm.reservedUnits.Record(ctx, units)
	}

	if lots, err := lm.provider.GetAllocatableLotCount(ctx); err != nil {
		lm.logger.Warn("failed to collect allocatable lot count", zap.Error(err))
	} else {
		lm.allocatableLots.Record(ctx, lots)
	}
}

// Stop stops the periodic collection.
func (lm *LedgerMetrics) Stop() {
	lm.stopOnce.Do(func() {
		close(lm.stopChan)
	})
}

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewLedgerMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
