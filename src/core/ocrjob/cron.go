package ocrjob

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrCronRunning = errors.New("cron already started")

// Cron fires a task on a fixed interval until stopped. Each firing runs in
// its own goroutine, so a slow task does not delay the next tick and firings
// may overlap.
type Cron struct {
	interval time.Duration
	task     func(ctx context.Context)

	mu     sync.Mutex
	cancel context.CancelFunc
	loop   chan struct{}
	tasks  sync.WaitGroup
}

func NewCron(interval time.Duration, task func(ctx context.Context)) *Cron {
	return &Cron{
		interval: interval,
		task:     task,
	}
}

// Start begins ticking. The first firing happens one interval after Start.
func (c *Cron) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		return ErrCronRunning
	}
	if c.interval <= 0 {
		return errors.New("cron interval must be positive")
	}

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.loop = make(chan struct{})

	go c.run(ctx, c.loop)
	return nil
}

func (c *Cron) run(ctx context.Context, loop chan struct{}) {
	defer close(loop)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.tasks.Add(1)
			go func() {
				defer c.tasks.Done()
				c.task(ctx)
			}()
		}
	}
}

// Stop halts the ticker, cancels the context given to running tasks and
// waits for them to return. It is a no-op on a stopped Cron.
func (c *Cron) Stop() {
	c.mu.Lock()
	cancel, loop := c.cancel, c.loop
	c.cancel, c.loop = nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-loop
	c.tasks.Wait()
}
