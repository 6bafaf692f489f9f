package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/erp/returns/internal/application/returns"
	"github.com/erp/returns/internal/domain/shared"
	"github.com/erp/returns/internal/infrastructure/config"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// JobStatus represents the status of a reconciliation run
type JobStatus string

const (
	JobStatusPending JobStatus = "PENDING"
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusSuccess JobStatus = "SUCCESS"
	JobStatusFailed  JobStatus = "FAILED"
	JobStatusSkipped JobStatus = "SKIPPED"
)

// Trigger says what started a run
type Trigger string

const (
	TriggerStartup  Trigger = "startup"
	TriggerInterval Trigger = "interval"
	TriggerManual   Trigger = "manual"
)

// lockName is the cluster-wide lock held for the duration of a run
const lockName = "reconciliation"

// Run is one execution of the reconciliation job
type Run struct {
	ID          uuid.UUID                     `json:"id"`
	Trigger     Trigger                       `json:"trigger"`
	Status      JobStatus                     `json:"status"`
	Error       string                        `json:"error,omitempty"`
	StartedAt   *time.Time                    `json:"started_at,omitempty"`
	CompletedAt *time.Time                    `json:"completed_at,omitempty"`
	Report      *returns.ReconciliationReport `json:"report,omitempty"`
}

func newRun(trigger Trigger) *Run {
	return &Run{ID: uuid.New(), Trigger: trigger, Status: JobStatusPending}
}

func (r *Run) start() {
	now := time.Now()
	r.Status = JobStatusRunning
	r.StartedAt = &now
}

func (r *Run) finish(status JobStatus, err error) {
	now := time.Now()
	r.Status = status
	r.CompletedAt = &now
	if err != nil {
		r.Error = err.Error()
	}
}

// Duration returns how long the run took, or 0 while it is still running
func (r *Run) Duration() time.Duration {
	if r.StartedAt == nil || r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(*r.StartedAt)
}

// Reconciler is the work a run performs
type Reconciler interface {
	Run(ctx context.Context) (*returns.ReconciliationReport, error)
}

// Locker keeps a run to one instance at a time. TryLock returns
// shared.ErrAlreadyProcessed when another instance holds the lock.
type Locker interface {
	TryLock(ctx context.Context, name string, ttl time.Duration) (release func(), err error)
}

// RunRecorder receives the outcome of every run
type RunRecorder interface {
	RecordReconciliationRun(ctx context.Context, outcome string, duration time.Duration)
}

// JobConfig holds reconciliation job configuration
type JobConfig struct {
	Interval   time.Duration
	Timeout    time.Duration
	RunOnStart bool
}

// JobConfigFrom converts the application configuration
func JobConfigFrom(cfg config.ReconciliationConfig) JobConfig {
	return JobConfig{
		Interval:   cfg.Interval,
		Timeout:    cfg.Timeout,
		RunOnStart: true,
	}
}

// ReconciliationJob runs reconciliation on a fixed interval and on demand.
// Runs never overlap: a tick that fires during a run is dropped.
type ReconciliationJob struct {
	config     JobConfig
	reconciler Reconciler
	locker     Locker
	recorder   RunRecorder
	logger     *zap.Logger

	trigger   chan Trigger
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	lastRun   *Run
}

// JobOption is a functional option for ReconciliationJob
type JobOption func(*ReconciliationJob)

// WithLocker guards each run with a cluster-wide lock
func WithLocker(locker Locker) JobOption {
	return func(j *ReconciliationJob) {
		j.locker = locker
	}
}

// WithRunRecorder reports every run's outcome
func WithRunRecorder(recorder RunRecorder) JobOption {
	return func(j *ReconciliationJob) {
		j.recorder = recorder
	}
}

// NewReconciliationJob creates a reconciliation job
func NewReconciliationJob(cfg JobConfig, reconciler Reconciler, logger *zap.Logger, opts ...JobOption) (*ReconciliationJob, error) {
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("%w: interval must be positive, got %s", ErrInvalidConfig, cfg.Interval)
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("%w: timeout must be positive, got %s", ErrInvalidConfig, cfg.Timeout)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	j := &ReconciliationJob{
		config:     cfg,
		reconciler: reconciler,
		logger:     logger,
		trigger:    make(chan Trigger, 1),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

// Start starts the run loop
func (j *ReconciliationJob) Start(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.isRunning {
		return nil
	}
	j.isRunning = true

	ctx, cancel := context.WithCancel(ctx)
	j.cancel = cancel

	if j.config.RunOnStart {
		select {
		case j.trigger <- TriggerStartup:
		default:
		}
	}

	j.wg.Add(1)
	go j.loop(ctx)

	j.logger.Info("Reconciliation job started",
		zap.Duration("interval", j.config.Interval),
		zap.Duration("timeout", j.config.Timeout),
	)
	return nil
}

// Stop cancels the loop and waits for an in-flight run until ctx is done
func (j *ReconciliationJob) Stop(ctx context.Context) error {
	j.mu.Lock()
	if !j.isRunning {
		j.mu.Unlock()
		return nil
	}
	j.isRunning = false
	j.mu.Unlock()

	if j.cancel != nil {
		j.cancel()
	}

	done := make(chan struct{})
	go func() {
		j.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		j.logger.Info("Reconciliation job stopped")
		return nil
	case <-ctx.Done():
		j.logger.Warn("Reconciliation job stop timed out")
		return ctx.Err()
	}
}

// TriggerNow queues a manual run
func (j *ReconciliationJob) TriggerNow() error {
	j.mu.Lock()
	running := j.isRunning
	j.mu.Unlock()
	if !running {
		return ErrSchedulerNotRunning
	}

	select {
	case j.trigger <- TriggerManual:
		return nil
	default:
		return ErrRunAlreadyQueued
	}
}

// LastRun returns a copy of the most recent finished run, or nil
func (j *ReconciliationJob) LastRun() *Run {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.lastRun == nil {
		return nil
	}
	run := *j.lastRun
	return &run
}

func (j *ReconciliationJob) loop(ctx context.Context) {
	defer j.wg.Done()

	ticker := time.NewTicker(j.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case trigger := <-j.trigger:
			j.execute(ctx, trigger)
		case <-ticker.C:
			j.execute(ctx, TriggerInterval)
		}
	}
}

func (j *ReconciliationJob) execute(ctx context.Context, trigger Trigger) {
	run := newRun(trigger)
	run.start()

	runCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	log := j.logger.With(
		zap.String("run_id", run.ID.String()),
		zap.String("trigger", string(trigger)),
	)

	if j.locker != nil {
		release, err := j.locker.TryLock(runCtx, lockName, j.config.Timeout)
		if errors.Is(err, shared.ErrAlreadyProcessed) {
			run.finish(JobStatusSkipped, nil)
			log.Info("Reconciliation run skipped, another instance holds the lock")
			j.record(ctx, run)
			return
		}
		if err != nil {
			run.finish(JobStatusFailed, err)
			log.Error("Reconciliation lock failed", zap.Error(err))
			j.record(ctx, run)
			return
		}
		defer release()
	}

	report, err := j.reconciler.Run(runCtx)
	run.Report = report
	if err != nil {
		run.finish(JobStatusFailed, err)
		log.Error("Reconciliation run failed", zap.Error(err), zap.Duration("duration", run.Duration()))
	} else {
		run.finish(JobStatusSuccess, nil)
		log.Info("Reconciliation run completed",
			zap.Duration("duration", run.Duration()),
			zap.Int("postings_repaired", len(report.PostingsRepaired)),
			zap.Int("balances_repaired", len(report.BalancesRepaired)),
		)
	}
	j.record(ctx, run)
}

func (j *ReconciliationJob) record(ctx context.Context, run *Run) {
	j.mu.Lock()
	j.lastRun = run
	j.mu.Unlock()

	if j.recorder != nil {
		j.recorder.RecordReconciliationRun(context.WithoutCancel(ctx), outcome(run.Status), run.Duration())
	}
}

func outcome(status JobStatus) string {
	switch status {
	case JobStatusSuccess:
		return "success"
	case JobStatusSkipped:
		return "skipped"
	default:
		return "failed"
	}
}
