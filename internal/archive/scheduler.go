package archive

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler runs an Archiver on a cron schedule.
type Scheduler struct {
	cron     *cron.Cron
	archiver *Archiver
	spec     string
	logger   *zap.Logger
}

// NewScheduler creates a Scheduler for spec, e.g. "@every 6h".
func NewScheduler(archiver *Archiver, spec string, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cron:     cron.New(cron.WithLogger(cronLogger{logger.Sugar()})),
		archiver: archiver,
		spec:     spec,
		logger:   logger,
	}
}

// Start registers the job, starts the scheduler, and runs one batch immediately
// so a restart does not wait a full interval.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.run(ctx) }); err != nil {
		return fmt.Errorf("invalid archive schedule %q: %w", s.spec, err)
	}
	s.cron.Start()
	s.logger.Info("archive scheduler started", zap.String("schedule", s.spec))

	go s.run(ctx)
	return nil
}

// Stop stops the scheduler and waits for a running batch to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("archive scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := s.archiver.Run(ctx); err != nil {
		s.logger.Warn("archive run failed", zap.Error(err))
	}
}

// cronLogger routes cron's own logging through zap.
type cronLogger struct {
	l *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Errorw(msg, append(keysAndValues, "error", err)...)
}
