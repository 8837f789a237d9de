// Package scheduler drives periodic reconciliation and the archive
// sweep. Jobs are isolated: one failing run never stops the loop.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/boostlane/boostlane/internal/clock"
	obsmetrics "github.com/boostlane/boostlane/internal/observability/metrics"
	reconciledomain "github.com/boostlane/boostlane/internal/reconcile/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("scheduler: invalid configuration")

type Params struct {
	fx.In

	Log          *zap.Logger
	ReconcileSvc reconciledomain.Service
	GenID        *snowflake.Node
	Clock        clock.Clock
	Config       Config `optional:"true"`
}

type Scheduler struct {
	log          *zap.Logger
	cfg          Config
	genID        *snowflake.Node
	clock        clock.Clock
	reconcileSvc reconciledomain.Service

	// nextSweepAt gates the archive sweep to its own, slower cadence.
	// Only the run loop touches it.
	nextSweepAt time.Time
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.ReconcileSvc == nil || p.GenID == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	cfg := p.Config.withDefaults()
	return &Scheduler{
		log:          p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:          cfg,
		genID:        p.GenID,
		clock:        p.Clock,
		reconcileSvc: p.ReconcileSvc,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run, owner := s.ensureJobRun(ctx, name, batchSize)
	if owner {
		s.logJobStart(run)
	}
	log := s.log.With(
		zap.String("job", name),
		zap.String("run_id", run.runID),
	)
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(name)

	err := fn(ctx)
	schedMetrics.ObserveJobDuration(name, time.Since(start))
	if owner {
		if err != nil && run != nil && run.errorCount == 0 {
			run.IncError()
		}
		s.logJobFinish(run)
	}
	if err == nil {
		return nil
	}

	// Deadline hits are soft-timeouts: the next tick picks up where the
	// batch left off.
	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		schedMetrics.IncJobTimeout(name)
	}
	schedMetrics.IncJobError(name, err)
	if isTimeout {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

// RunOnce executes one scheduler pass: always reconcile, and the
// archive sweep when its cadence says it is due.
func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	err = errors.Join(err, s.runJob(parent, "reconcile", s.cfg.BatchSize, s.cfg.JobTimeout, s.ReconcileJob))

	now := s.clock.Now()
	if s.nextSweepAt.IsZero() || !now.Before(s.nextSweepAt) {
		err = errors.Join(err, s.runJob(parent, "archive_sweep", s.cfg.BatchSize, s.cfg.JobTimeout, s.ArchiveSweepJob))
		s.nextSweepAt = now.Add(s.cfg.SweepInterval)
	}

	return err
}

func (s *Scheduler) ReconcileJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, "reconcile", s.cfg.BatchSize)
	if owner {
		s.logJobStart(run)
		defer s.logJobFinish(run)
	}

	summary, err := s.reconcileSvc.ReconcileAll(ctx)
	run.AddProcessed(summary.Processed)
	for i := 0; i < summary.Errors; i++ {
		run.IncError()
	}

	s.log.Info("reconcile pass finished",
		zap.String("run_id", run.runID),
		zap.Int("total_campaigns", summary.TotalCampaigns),
		zap.Int("processed", summary.Processed),
		zap.Int("errors", summary.Errors),
		zap.Int("auto_paused", summary.AutoPaused),
		zap.Int64("credits_deducted", summary.CreditsDeducted),
		zap.Int64("hits_billed", summary.HitsBilled),
	)
	return err
}

// ArchiveSweepJob runs the two-stage retention pass: mark, then purge.
func (s *Scheduler) ArchiveSweepJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, "archive_sweep", s.cfg.BatchSize)
	if owner {
		s.logJobStart(run)
		defer s.logJobFinish(run)
	}
	var jobErr error

	marked, err := s.reconcileSvc.SweepArchive(ctx, s.cfg.ArchiveRetention)
	if err != nil {
		jobErr = errors.Join(jobErr, err)
		s.logSchedulerError(run, "scheduler.sweep.failed", "archive_sweep", err)
	} else {
		run.AddProcessed(marked.MarkedEligible)
	}

	purged, err := s.reconcileSvc.PurgeExpired(ctx, s.cfg.PurgeRetention)
	if err != nil {
		jobErr = errors.Join(jobErr, err)
		s.logSchedulerError(run, "scheduler.purge.failed", "archive_sweep", err)
	} else {
		run.AddProcessed(purged.Purged)
	}

	return jobErr
}

// RunForever loops RunOnce on a fixed ticker until the context ends.
// The Controller wraps this for start/stop/interval control.
func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := s.clock.Now().Add(s.cfg.RunInterval)
	schedMetrics := obsmetrics.Scheduler()

	for {
		runLag := time.Since(nextRun)
		if runLag > 0 {
			schedMetrics.ObserveRunLoopLag(runLag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
