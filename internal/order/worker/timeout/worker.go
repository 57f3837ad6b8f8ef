package timeout

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/viper"
)

// canceler is the cancel-and-restore primitive invoked when a timeout fires.
type canceler interface {
	CancelIfUnpaid(ctx context.Context, orderNo int64) error
}

// Scheduler fires a one-shot cancellation attempt per order after a fixed
// delay. Timers live in process only: a restart drops pending timeouts, and
// an external reconciliation sweep is expected to cover that gap.
type Scheduler struct {
	canceler canceler
	delay    time.Duration
	workers  int
	jobs     chan int64
	stopCh   chan struct{}
}

// NewScheduler creates a new timeout Scheduler.
func NewScheduler(c canceler) *Scheduler {
	delayHours := viper.GetInt("order.timeout.delay_hours")
	if delayHours == 0 {
		delayHours = 48
	}

	workers := viper.GetInt("order.timeout.workers")
	if workers == 0 {
		workers = 3
	}

	return &Scheduler{
		canceler: c,
		delay:    time.Duration(delayHours) * time.Hour,
		workers:  workers,
		jobs:     make(chan int64, 1024),
		stopCh:   make(chan struct{}),
	}
}

// NewSchedulerWithDelay creates a Scheduler with an explicit delay and
// worker count.
func NewSchedulerWithDelay(c canceler, delay time.Duration, workers int) *Scheduler {
	return &Scheduler{
		canceler: c,
		delay:    delay,
		workers:  workers,
		jobs:     make(chan int64, 1024),
		stopCh:   make(chan struct{}),
	}
}

// Start launches the worker pool draining fired timeouts. Workers exist for
// throughput only; running the same order through CancelIfUnpaid twice is
// harmless.
func (s *Scheduler) Start(ctx context.Context) {
	slog.Info("Timeout scheduler started", "delay", s.delay, "workers", s.workers)

	for i := 0; i < s.workers; i++ {
		go s.worker(ctx)
	}
}

// Stop stops the scheduler. Pending timers are dropped.
func (s *Scheduler) Stop() {
	close(s.stopCh)
}

// Schedule registers the deferred cancellation attempt for an order. Called
// once, at order-creation time.
func (s *Scheduler) Schedule(orderNo int64) {
	slog.Info("Cancellation scheduled", "order_no", orderNo, "delay", s.delay)

	time.AfterFunc(s.delay, func() {
		select {
		case s.jobs <- orderNo:
		case <-s.stopCh:
		}
	})
}

func (s *Scheduler) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case orderNo := <-s.jobs:
			slog.Info("Cancellation timeout fired", "order_no", orderNo)
			if err := s.canceler.CancelIfUnpaid(ctx, orderNo); err != nil {
				slog.Error("Timeout cancellation failed", "order_no", orderNo, "error", err)
			}
		}
	}
}
