package projects

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// OverdueMarker is the part of the service the sweeper drives
type OverdueMarker interface {
	MarkOverdue(ctx context.Context) (int, error)
}

// DeadlineSweeper periodically moves overdue projects to delayed
type DeadlineSweeper struct {
	cron    *cron.Cron
	spec    string
	marker  OverdueMarker
	timeout time.Duration
	logger  *zap.Logger
	mu      sync.Mutex
	running bool
}

// NewDeadlineSweeper runs marker on a six-field cron spec (seconds first)
func NewDeadlineSweeper(marker OverdueMarker, spec string, logger *zap.Logger) *DeadlineSweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeadlineSweeper{
		cron:    cron.New(cron.WithSeconds()),
		spec:    spec,
		marker:  marker,
		timeout: 5 * time.Minute,
		logger:  logger,
	}
}

// Start schedules the sweep; it runs until Stop is called
func (d *DeadlineSweeper) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return fmt.Errorf("deadline sweeper already running")
	}

	if _, err := d.cron.AddFunc(d.spec, func() { d.Sweep(ctx) }); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", d.spec, err)
	}

	d.logger.Info("Starting deadline sweeper", zap.String("schedule", d.spec))
	d.cron.Start()
	d.running = true
	return nil
}

// Stop waits for a running sweep to finish
func (d *DeadlineSweeper) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running {
		return
	}

	d.logger.Info("Stopping deadline sweeper")
	stopCtx := d.cron.Stop()
	<-stopCtx.Done()
	d.running = false
}

// Sweep runs one pass
func (d *DeadlineSweeper) Sweep(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := time.Now()
	marked, err := d.marker.MarkOverdue(ctx)
	if err != nil {
		d.logger.Error("Deadline sweep failed", zap.Error(err))
		return
	}
	d.logger.Info("Deadline sweep finished",
		zap.Int("marked_delayed", marked),
		zap.Duration("duration", time.Since(start)),
	)
}
