package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	LimiterPruneSpec       = "0 * * * *"
	RequestLogPruneSpec    = "30 3 * * *"
	Timezone               = "UTC"
	TimezoneOffsetSeconds  = 0
	pruneRequestLogTimeout = 5 * time.Minute
)

type RequestLog interface {
	DeleteRequestsBefore(ctx context.Context, before time.Time) (int64, error)
}

type Limiter interface {
	Prune(now time.Time) int
}

type Scheduler struct {
	ctx        context.Context
	cron       *cron.Cron
	requestLog RequestLog
	limiter    Limiter
	retention  time.Duration
	log        *slog.Logger
	now        func() time.Time
}

func New(
	ctx context.Context,
	requestLog RequestLog,
	limiter Limiter,
	retention time.Duration,
	log *slog.Logger,
) *Scheduler {
	c := cron.New(cron.WithLocation(time.FixedZone(Timezone, TimezoneOffsetSeconds)))

	return &Scheduler{
		ctx:        ctx,
		cron:       c,
		requestLog: requestLog,
		limiter:    limiter,
		retention:  retention,
		log:        log,
		now:        time.Now,
	}
}

func (s *Scheduler) Start() error {
	if s.limiter != nil {
		if _, err := s.cron.AddFunc(LimiterPruneSpec, s.pruneLimiter); err != nil {
			return err
		}
	}

	if s.requestLog != nil && s.retention > 0 {
		if _, err := s.cron.AddFunc(RequestLogPruneSpec, s.pruneRequestLog); err != nil {
			return err
		}
	}

	s.cron.Start()

	return nil
}

func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) pruneLimiter() {
	pruned := s.limiter.Prune(s.now())

	s.log.DebugContext(s.ctx, "Rate limiter is pruned",
		"prunedKeys", pruned)
}

func (s *Scheduler) pruneRequestLog() {
	ctx, cancel := context.WithTimeout(s.ctx, pruneRequestLogTimeout)
	defer cancel()

	select {
	case <-ctx.Done():
		s.log.InfoContext(ctx, "Scheduler context is done",
			"error", ctx.Err())
		return
	default:
	}

	before := s.now().Add(-s.retention)

	deleted, err := s.requestLog.DeleteRequestsBefore(ctx, before)
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to prune request log",
			"error", err,
			"before", before,
			"retention", s.retention)
		return
	}

	s.log.InfoContext(ctx, "Request log is pruned",
		"deletedRows", deleted,
		"before", before)
}
