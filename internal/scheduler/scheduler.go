// Package scheduler drives the recurring billing jobs: the daily late
// fee sweep and the alert summary refresh. Every job is a short
// synchronous unit of work with its own timeout; re-running a job is
// always safe because the underlying operations are idempotent.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	alertssvc "github.com/clearhour/clearhour/internal/alerts/service"
	"github.com/clearhour/clearhour/internal/clock"
	latefeedomain "github.com/clearhour/clearhour/internal/latefee/domain"
	obsmetrics "github.com/clearhour/clearhour/internal/observability/metrics"
	"github.com/clearhour/clearhour/internal/orgcontext"
	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	jobLateFees      = "late_fees"
	jobAlertsRefresh = "alerts_refresh"
)

type Params struct {
	fx.In

	Log        *zap.Logger
	Clock      clock.Clock
	LateFeeSvc latefeedomain.Applier
	AlertCache *alertssvc.SummaryCache
	Locker     *Locker `optional:"true"`
	Config     Config  `optional:"true"`
}

type Scheduler struct {
	log        *zap.Logger
	cfg        Config
	clock      clock.Clock
	lateFeeSvc latefeedomain.Applier
	alertCache *alertssvc.SummaryCache
	locker     *Locker
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Clock == nil || p.LateFeeSvc == nil || p.AlertCache == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:        p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:        p.Config.withDefaults(),
		clock:      p.Clock,
		lateFeeSvc: p.LateFeeSvc,
		alertCache: p.AlertCache,
		locker:     p.Locker,
	}, nil
}

func (s *Scheduler) runJob(parent context.Context, name string, fn func(ctx context.Context) (int, error)) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	ctx = orgcontext.WithActor(ctx, "system", "scheduler")
	runID := uuid.NewString()
	log := s.log.With(
		zap.String("job", name),
		zap.String("run_id", runID),
	)

	if s.locker != nil {
		key := "clearhour:scheduler:" + name
		token, acquired, err := s.locker.TryLock(ctx, key, s.cfg.LockTTL)
		if err != nil {
			log.Warn("job lock unavailable, running unguarded", zap.Error(err))
		} else if !acquired {
			log.Debug("job held by another instance, skipping")
			return nil
		} else {
			defer func() {
				if err := s.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
					log.Warn("job lock release failed", zap.Error(err))
				}
			}()
		}
	}

	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(name)
	log.Info("job started")

	affected, err := fn(ctx)
	schedMetrics.ObserveJobDuration(name, time.Since(start))
	schedMetrics.AddItemsAffected(name, affected)
	if err == nil {
		log.Info("job finished", zap.Int("affected", affected))
		return nil
	}

	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		schedMetrics.IncJobTimeout(name)
	}
	schedMetrics.IncJobError(name, err)
	if isTimeout {
		log.Warn("job timed out",
			zap.Duration("timeout", s.cfg.JobTimeout),
			zap.Error(err),
		)
		return nil
	}

	log.Error("job failed", zap.Error(err))
	return fmt.Errorf("%s: %w", name, err)
}

// RunOnce runs every enabled job a single time and joins their errors.
func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name string
		Run  func(context.Context) (int, error)
	}{
		{jobLateFees, s.LateFeesJob},
		{jobAlertsRefresh, s.AlertsRefreshJob},
	}

	for _, job := range jobs {
		if !s.isJobEnabled(job.Name) {
			continue
		}
		err = errors.Join(err, s.runJob(parent, job.Name, job.Run))
	}
	return err
}

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

func (s *Scheduler) isJobEnabled(jobName string) bool {
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

// LateFeesJob charges overdue invoices that do not yet carry a fee.
func (s *Scheduler) LateFeesJob(ctx context.Context) (int, error) {
	return s.lateFeeSvc.ApplyDue(ctx)
}

// AlertsRefreshJob recomputes the cached alert summary.
func (s *Scheduler) AlertsRefreshJob(ctx context.Context) (int, error) {
	summary, err := s.alertCache.Refresh(ctx)
	if err != nil {
		return 0, err
	}
	return summary.TotalAlertCount(), nil
}
