package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-sla/internal/service"
)

// Scanner runs one SLA scan pass.
type Scanner interface {
	RunScanOnce(ctx context.Context) (service.ScanReport, error)
}

// SLAWorker triggers a scan on every tick until its context ends.
type SLAWorker struct {
	scanner  Scanner
	interval time.Duration
	logger   *zap.Logger
}

// NewSLAWorker creates the worker.
func NewSLAWorker(scanner Scanner, interval time.Duration, logger *zap.Logger) *SLAWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SLAWorker{scanner: scanner, interval: interval, logger: logger}
}

// Start blocks until ctx is done. Tick failures are logged and the next tick retries.
func (w *SLAWorker) Start(ctx context.Context) error {
	if w.interval <= 0 {
		return fmt.Errorf("sla worker: interval must be positive, got %s", w.interval)
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	w.logger.Info("sla worker started", zap.Duration("interval", w.interval))
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("sla worker stopped")
			return nil
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *SLAWorker) runOnce(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("sla scan panicked", zap.Any("panic", r))
		}
	}()
	_, err := w.scanner.RunScanOnce(ctx)
	switch {
	case err == nil:
	case errors.Is(err, service.ErrScanInProgress):
		w.logger.Debug("sla scan skipped, previous pass still running")
	case ctx.Err() != nil:
	default:
		w.logger.Error("sla scan failed", zap.Error(err))
	}
}
