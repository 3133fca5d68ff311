package session

import (
	"context"
	"sync"
	"time"
)

// Handle cancels a scheduled recurring task. Cancel is idempotent and does
// not wait for an in-flight run to finish.
type Handle interface {
	Cancel()
}

// Scheduler runs a task at a fixed interval. Implementations must run the
// task sequentially: a tick that arrives while the task is still executing
// is coalesced, never run concurrently.
type Scheduler interface {
	Schedule(interval time.Duration, task func(ctx context.Context)) Handle
}

// TickerScheduler schedules tasks on a dedicated goroutine per schedule,
// driven by a time.Ticker. Ticks missed while the task runs are dropped by
// the ticker, so polls never overlap or queue up.
type TickerScheduler struct{}

// NewTickerScheduler returns the default wall-clock scheduler.
func NewTickerScheduler() *TickerScheduler {
	return &TickerScheduler{}
}

func (s *TickerScheduler) Schedule(interval time.Duration, task func(ctx context.Context)) Handle {
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				task(ctx)
			}
		}
	}()

	return &cancelHandle{cancel: cancel}
}

type cancelHandle struct {
	once   sync.Once
	cancel context.CancelFunc
}

func (h *cancelHandle) Cancel() {
	h.once.Do(h.cancel)
}
