package schedule

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type Scheduler interface {
	AddJob(job Job, spec string, opts ...JobOption) error
	Start(ctx context.Context)
	Stop()
}

type jobOptions struct {
	runAtStart bool
}

type JobOption func(*jobOptions)

// WithRunAtStart runs the job once when the scheduler starts, before
// its first cron tick. The feature store is empty on a cold boot, so
// waiting out the refresh spec would leave every early request on the
// slow path.
func WithRunAtStart() JobOption {
	return func(o *jobOptions) {
		o.runAtStart = true
	}
}

type CronScheduler struct {
	cron     *cron.Cron
	entries  map[string]cron.EntryID
	kickoffs []func()
	ctx      context.Context
}

func NewCronScheduler() *CronScheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return &CronScheduler{
		cron:    cron.New(cron.WithParser(parser)),
		entries: make(map[string]cron.EntryID),
	}
}

func (c *CronScheduler) AddJob(job Job, spec string, opts ...JobOption) error {
	name := job.Name()
	logger := logutil.GetLogger(context.Background()).With(zap.String("job", name), zap.String("spec", spec))
	if _, ok := c.entries[name]; ok {
		return fmt.Errorf("job %q already scheduled", name)
	}
	var o jobOptions
	for _, opt := range opts {
		opt(&o)
	}
	fn := c.wrap(job, spec)
	entryID, err := c.cron.AddFunc(spec, fn)
	if err != nil {
		logger.Error("schedule job failed", zap.Error(err))
		return err
	}
	c.entries[name] = entryID
	if o.runAtStart {
		c.kickoffs = append(c.kickoffs, fn)
	}
	logger.Info("job scheduled", zap.Bool("run_at_start", o.runAtStart))
	return nil
}

func (c *CronScheduler) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	c.ctx = ctx
	for _, fn := range c.kickoffs {
		go fn()
	}
	c.cron.Start()
}

func (c *CronScheduler) Stop() {
	ctx := c.cron.Stop()
	<-ctx.Done()
}

func (c *CronScheduler) wrap(job Job, spec string) func() {
	var running atomic.Bool
	return func() {
		if !running.CompareAndSwap(false, true) {
			logutil.GetLogger(context.Background()).With(
				zap.String("job", job.Name()),
				zap.String("spec", spec),
			).Info("job skipped: still running")
			return
		}
		defer running.Store(false)

		ctx := c.ctx
		if ctx == nil {
			ctx = context.Background()
		}
		logger := logutil.GetLogger(ctx).With(
			zap.String("job", job.Name()),
			zap.String("spec", spec),
		)
		start := time.Now()
		logger.Info("job started")
		err := job.Run(ctx)
		elapsed := time.Since(start)
		if err != nil {
			logger.Error("job finished", zap.Error(err), zap.Duration("duration", elapsed))
			return
		}
		logger.Info("job finished", zap.Duration("duration", elapsed))
	}
}
