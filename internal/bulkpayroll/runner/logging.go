package runner

import (
	"context"
	"time"

	"github.com/smallbiznis/workforce/internal/actorcontext"
	obscontext "github.com/smallbiznis/workforce/internal/observability/context"
	obslogger "github.com/smallbiznis/workforce/internal/observability/logger"
	"go.uber.org/zap"
)

type jobRun struct {
	job            string
	runID          string
	batchLimit     int
	startedAt      time.Time
	processedCount int
	errorCount     int
}

func (r *jobRun) AddProcessed(count int) {
	if r == nil || count <= 0 {
		return
	}
	r.processedCount += count
}

func (r *jobRun) IncError() {
	if r == nil {
		return
	}
	r.errorCount++
}

func (r *Runner) newJobRun(job string) *jobRun {
	return &jobRun{
		job:        job,
		runID:      r.genID.Generate().String(),
		batchLimit: r.cfg.BatchLimit,
		startedAt:  time.Now(),
	}
}

func withSystemActor(ctx context.Context) context.Context {
	ctx = actorcontext.WithActor(ctx, actorcontext.System)
	return obscontext.WithActor(ctx, actorcontext.RoleSystem, "runner")
}

func (r *Runner) logger(ctx context.Context) *zap.Logger {
	return obslogger.WithContext(ctx, r.log)
}

func (r *Runner) logJobStart(ctx context.Context, run *jobRun) {
	r.logger(ctx).Info("runner.job.start",
		zap.String("job", run.job),
		zap.String("run_id", run.runID),
		zap.Int("batch_limit", run.batchLimit),
	)
}

func (r *Runner) logJobFinish(ctx context.Context, run *jobRun) {
	fields := []zap.Field{
		zap.String("job", run.job),
		zap.String("run_id", run.runID),
		zap.Int64("duration_ms", time.Since(run.startedAt).Milliseconds()),
		zap.Int("processed_count", run.processedCount),
		zap.Int("error_count", run.errorCount),
	}
	log := r.logger(ctx)
	if run.errorCount > 0 {
		log.Warn("runner.job.finish", fields...)
		return
	}
	log.Info("runner.job.finish", fields...)
}
