// Package scheduler runs periodic maintenance jobs for the stock ledger.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	appinv "github.com/commerce/backend/internal/application/inventory"
	"github.com/commerce/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// ErrSchedulerNotRunning is returned when a manual trigger is requested
// while the scheduler is stopped.
var ErrSchedulerNotRunning = errors.New("scheduler is not running")

// Config holds configuration for the stock maintenance scheduler.
type Config struct {
	// Enabled determines if the scheduler is active
	Enabled bool

	// ExpirySweepInterval is how often expired lots are written off
	ExpirySweepInterval time.Duration

	// ReconciliationEnabled enables periodic ledger reconciliation
	ReconciliationEnabled bool

	// ReconciliationInterval is how often counters are verified against the movement log
	ReconciliationInterval time.Duration

	// JobTimeout is the maximum time for a single maintenance run
	JobTimeout time.Duration
}

// DefaultConfig returns default scheduler configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:                true,
		ExpirySweepInterval:    time.Hour,
		ReconciliationEnabled:  true,
		ReconciliationInterval: 6 * time.Hour,
		JobTimeout:             10 * time.Minute,
	}
}

// StockMaintenanceScheduler periodically writes off expired lots and
// reconciles ledger counters against the movement log.
type StockMaintenanceScheduler struct {
	lots   *appinv.LotService
	audit  *appinv.AuditTrailService
	ledger *appinv.LedgerService
	logger *zap.Logger
	config Config

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewStockMaintenanceScheduler creates a new scheduler.
func NewStockMaintenanceScheduler(
	lots *appinv.LotService,
	audit *appinv.AuditTrailService,
	ledger *appinv.LedgerService,
	logger *zap.Logger,
	config Config,
) *StockMaintenanceScheduler {
	return &StockMaintenanceScheduler{
		lots:   lots,
		audit:  audit,
		ledger: ledger,
		logger: logger,
		config: config,
	}
}

// Start starts the maintenance loops.
func (s *StockMaintenanceScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	if !s.config.Enabled {
		s.mu.Unlock()
		s.logger.Info("stock maintenance scheduler is disabled")
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	if s.config.ExpirySweepInterval > 0 {
		s.wg.Add(1)
		go s.runExpirySweepLoop(ctx)
	}

	if s.config.ReconciliationEnabled && s.config.ReconciliationInterval > 0 {
		s.wg.Add(1)
		go s.runReconciliationLoop(ctx)
	}

	s.logger.Info("stock maintenance scheduler started",
		zap.Duration("expiry_sweep_interval", s.config.ExpirySweepInterval),
		zap.Bool("reconciliation_enabled", s.config.ReconciliationEnabled),
		zap.Duration("reconciliation_interval", s.config.ReconciliationInterval),
	)

	return nil
}

// Stop gracefully stops the scheduler.
func (s *StockMaintenanceScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("stock maintenance scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("stock maintenance scheduler stop timed out")
		return ctx.Err()
	}
}

// IsRunning returns whether the scheduler is running.
func (s *StockMaintenanceScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// TriggerExpirySweep runs an expiry sweep immediately and synchronously.
func (s *StockMaintenanceScheduler) TriggerExpirySweep(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.mu.Unlock()

	s.executeExpirySweep(ctx)
	return nil
}

// TriggerReconciliation runs a full reconciliation pass immediately.
func (s *StockMaintenanceScheduler) TriggerReconciliation(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.mu.Unlock()

	s.executeReconciliation(ctx)
	return nil
}

func (s *StockMaintenanceScheduler) runExpirySweepLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.ExpirySweepInterval)
	defer ticker.Stop()

	s.executeExpirySweep(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("expiry sweep loop stopping")
			return
		case <-ticker.C:
			s.executeExpirySweep(ctx)
		}
	}
}

func (s *StockMaintenanceScheduler) runReconciliationLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.ReconciliationInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("reconciliation loop stopping")
			return
		case <-ticker.C:
			s.executeReconciliation(ctx)
		}
	}
}

// executeExpirySweep writes off every lot whose expiry date has passed.
func (s *StockMaintenanceScheduler) executeExpirySweep(ctx context.Context) {
	jobCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	startTime := time.Now()
	results, err := s.lots.WriteOffExpiredLots(jobCtx, startTime)
	duration := time.Since(startTime)

	if err != nil {
		s.logger.Error("expiry sweep failed",
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return
	}

	if len(results) == 0 {
		s.logger.Debug("expiry sweep found no expired lots", zap.Duration("duration", duration))
		return
	}

	for _, r := range results {
		s.logger.Info("expired lot written off",
			zap.String("sku_id", r.SKUID),
			zap.String("lot_id", r.LotID.String()),
			zap.Int64("written_off", r.WrittenOff),
		)
	}

	s.logger.Info("expiry sweep completed",
		zap.Int("lots_written_off", len(results)),
		zap.Duration("duration", duration),
	)
}

// executeReconciliation verifies every SKU's counters against its movement
// log and repairs records that have drifted.
func (s *StockMaintenanceScheduler) executeReconciliation(ctx context.Context) {
	jobCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	startTime := time.Now()
	var checked, repaired, failed int

	filter := shared.Filter{Page: 1, PageSize: 100}
	for {
		page, err := s.ledger.List(jobCtx, filter)
		if err != nil {
			s.logger.Error("reconciliation failed to list inventory records", zap.Error(err))
			return
		}

		for _, record := range page.Items {
			result, err := s.audit.Reconcile(jobCtx, record.SKUID)
			if err != nil {
				failed++
				s.logger.Error("reconciliation failed for SKU",
					zap.String("sku_id", record.SKUID),
					zap.Error(err),
				)
				continue
			}
			checked++
			if !result.Consistent {
				repaired++
				s.logger.Warn("ledger drift repaired",
					zap.String("sku_id", record.SKUID),
					zap.Int64("available_drift", result.AvailableDrift),
					zap.Int64("reserved_drift", result.ReservedDrift),
				)
			}
		}

		if filter.Page >= page.TotalPages {
			break
		}
		filter.Page++
	}

	s.logger.Info("reconciliation completed",
		zap.Int("skus_checked", checked),
		zap.Int("skus_repaired", repaired),
		zap.Int("skus_failed", failed),
		zap.Duration("duration", time.Since(startTime)),
	)
}
