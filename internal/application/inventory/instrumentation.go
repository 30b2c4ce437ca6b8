package inventory

import (
	"context"
	"time"
)

// Instrumentation receives ledger activity for metrics export. The services
// report through it without depending on the telemetry layer; a nil
// instrumentation is a no-op.
type Instrumentation interface {
	RecordMovement(ctx context.Context, movementType, referenceType string)
	RecordAllocation(ctx context.Context, strategy, outcome string)
	RecordConflictRetry(ctx context.Context, operation string)
	RecordOperationDuration(ctx context.Context, operation string, d time.Duration)
}

// Allocation outcome labels, matching the telemetry layer's.
const (
	allocationOutcomeSuccess      = "success"
	allocationOutcomeInsufficient = "insufficient_stock"
	allocationOutcomeConflict     = "conflict"
)
