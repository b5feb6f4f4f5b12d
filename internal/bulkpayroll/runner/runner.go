package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/workforce/internal/bulkpayroll/domain"
	"github.com/smallbiznis/workforce/internal/bulkpayroll/guard"
	"github.com/smallbiznis/workforce/internal/clock"
	"github.com/smallbiznis/workforce/internal/lock"
	"github.com/smallbiznis/workforce/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const jobRecoverBatches = "recover_batches"

var ErrInvalidConfig = errors.New("invalid_runner_config")

type Params struct {
	fx.In

	Log     *zap.Logger
	Service domain.Service
	GenID   *snowflake.Node
	Locker  *lock.Locker           `optional:"true"`
	Metrics *metrics.PayrunMetrics `optional:"true"`
	Clock   clock.Clock            `optional:"true"`
	Config  Config                 `optional:"true"`
}

// Runner resumes batches whose driver stopped renewing its lease.
type Runner struct {
	log     *zap.Logger
	svc     domain.Service
	genID   *snowflake.Node
	locker  *lock.Locker
	metrics *metrics.PayrunMetrics
	clock   clock.Clock
	cfg     Config
}

func New(p Params) (*Runner, error) {
	if p.Log == nil || p.Service == nil || p.GenID == nil {
		return nil, ErrInvalidConfig
	}
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Runner{
		log:     p.Log.Named("bulkpayroll.runner").With(zap.String("component", "runner")),
		svc:     p.Service,
		genID:   p.GenID,
		locker:  p.Locker,
		metrics: p.Metrics,
		clock:   clk,
		cfg:     p.Config.withDefaults(),
	}, nil
}

func (r *Runner) RunOnce(parent context.Context) error {
	start := r.clock.Now()
	ctx, cancel := context.WithTimeout(withSystemActor(parent), r.cfg.JobTimeout)
	defer cancel()

	run := r.newJobRun(jobRecoverBatches)
	r.logJobStart(ctx, run)
	r.metrics.IncJobRun(jobRecoverBatches)

	err := r.recoverExpired(ctx, run)
	r.metrics.ObserveJobDuration(jobRecoverBatches, r.clock.Now().Sub(start))
	if err != nil && run.errorCount == 0 {
		run.IncError()
	}
	r.logJobFinish(ctx, run)
	if err == nil {
		return nil
	}

	r.metrics.IncJobError(jobRecoverBatches, err)
	if errors.Is(err, context.DeadlineExceeded) {
		r.logger(ctx).Warn("job timed out", zap.Duration("timeout", r.cfg.JobTimeout), zap.Error(err))
		return nil
	}
	return fmt.Errorf("%s: %w", jobRecoverBatches, err)
}

func (r *Runner) RunForever(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := r.RunOnce(ctx); err != nil {
			r.log.Warn("runner run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (r *Runner) recoverExpired(ctx context.Context, run *jobRun) error {
	batches, err := r.svc.ListExpired(ctx, r.cfg.BatchLimit)
	if err != nil {
		return err
	}

	var jobErr error
	for _, batch := range batches {
		if err := ctx.Err(); err != nil {
			return errors.Join(jobErr, err)
		}
		if err := r.recoverOne(ctx, batch); err != nil {
			run.IncError()
			jobErr = errors.Join(jobErr, err)
			continue
		}
		run.AddProcessed(1)
	}
	return jobErr
}

func (r *Runner) recoverOne(ctx context.Context, batch domain.Batch) error {
	key := lock.BatchDriverKey(batch.ID.String())
	token, ok, err := r.locker.TryLock(ctx, key, r.cfg.LockTTL)
	if err != nil {
		return fmt.Errorf("lock batch %s: %w", batch.ID, err)
	}
	if !ok {
		r.metrics.IncRecovery("locked")
		return nil
	}
	defer func() {
		if err := r.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
			r.logger(ctx).Warn("release batch lock", zap.String("batch_id", batch.ID.String()), zap.Error(err))
		}
	}()

	// A cancelled drive parks the batch as paused and nothing resumes paused
	// batches on its own. Run detached instead: if the process exits mid-run
	// the lease lapses and the next sweep takes the batch over again.
	result, err := r.svc.RecoverBatch(context.WithoutCancel(ctx), batch)
	switch {
	case err == nil:
		r.logger(ctx).Info("runner.batch.recovered",
			zap.String("batch_id", batch.ID.String()),
			zap.String("status", string(result.Status)),
			zap.Int("processed_records", result.Attempted),
		)
		return nil
	case errors.Is(err, domain.ErrBatchNotRecoverable), errors.Is(err, guard.ErrLeaseActive):
		return nil
	default:
		return fmt.Errorf("recover batch %s: %w", batch.ID, err)
	}
}
