// Package scheduler runs the daily statistics report and provides the
// cancellable deferred actions used for status-message cleanup.
package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler triggers the daily report at 21:00 UTC.
type Scheduler struct {
	cron       *cron.Cron
	ctx        context.Context
	cancel     context.CancelFunc
	reportFunc func(ctx context.Context) error
}

func New() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(cron.WithLocation(time.UTC)),
		ctx:    ctx,
		cancel: cancel,
	}
}

// SetReportFunction sets the function invoked on the daily schedule.
func (s *Scheduler) SetReportFunction(f func(ctx context.Context) error) {
	s.reportFunc = f
}

func (s *Scheduler) Start() error {
	if s.reportFunc == nil {
		log.Println("report function not set, scheduler will not generate reports")
		return nil
	}

	_, err := s.cron.AddFunc("0 21 * * *", func() {
		if err := s.reportFunc(s.ctx); err != nil {
			log.Printf("daily report failed: %v", err)
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	log.Println("scheduler started, daily report at 21:00 UTC")
	return nil
}

// Stop drains running jobs and cancels the report context.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
	}
	if s.cancel != nil {
		s.cancel()
	}
}
