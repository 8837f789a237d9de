package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrAlreadyRunning  = errors.New("scheduler: already running")
	ErrNotRunning      = errors.New("scheduler: not running")
	ErrInvalidInterval = errors.New("scheduler: invalid interval")
)

// ControllerState is the controller's lifecycle state.
type ControllerState string

const (
	StateIdle    ControllerState = "idle"
	StateRunning ControllerState = "running"
)

// Controller owns the run loop's lifecycle. It is a singleton only by
// composition-root wiring; nothing here is package-level state.
type Controller struct {
	sched *Scheduler
	log   *zap.Logger

	mu       sync.Mutex
	state    ControllerState
	interval time.Duration
	updates  chan time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewController(sched *Scheduler) *Controller {
	return &Controller{
		sched: sched,
		log:   sched.log.Named("controller"),
		state: StateIdle,
	}
}

// Start launches the run loop at the given interval. A non-positive
// interval falls back to the configured one.
func (c *Controller) Start(interval time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateRunning {
		return ErrAlreadyRunning
	}
	if interval <= 0 {
		interval = c.sched.cfg.RunInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.state = StateRunning
	c.interval = interval
	c.updates = make(chan time.Duration, 1)
	c.cancel = cancel
	c.done = make(chan struct{})

	go c.run(ctx, interval, c.updates, c.done)
	c.log.Info("scheduler started", zap.Duration("interval", interval))
	return nil
}

// Stop halts the run loop and waits for the in-flight pass to finish.
func (c *Controller) Stop() error {
	c.mu.Lock()
	if c.state != StateRunning {
		c.mu.Unlock()
		return ErrNotRunning
	}
	cancel := c.cancel
	done := c.done
	c.mu.Unlock()

	cancel()
	<-done

	c.mu.Lock()
	c.state = StateIdle
	c.cancel = nil
	c.done = nil
	c.updates = nil
	c.mu.Unlock()

	c.log.Info("scheduler stopped")
	return nil
}

// UpdateInterval reschedules the next tick without restarting the loop.
func (c *Controller) UpdateInterval(interval time.Duration) error {
	if interval <= 0 {
		return ErrInvalidInterval
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateRunning {
		return ErrNotRunning
	}
	c.interval = interval

	// Drop a stale pending update so the latest one wins.
	select {
	case <-c.updates:
	default:
	}
	c.updates <- interval

	c.log.Info("scheduler interval updated", zap.Duration("interval", interval))
	return nil
}

// State reports idle or running.
func (c *Controller) State() ControllerState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Interval reports the currently configured tick.
func (c *Controller) Interval() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.interval
}

func (c *Controller) run(ctx context.Context, interval time.Duration, updates <-chan time.Duration, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := c.sched.RunOnce(ctx); err != nil && ctx.Err() == nil {
			c.log.Warn("scheduler run failed", zap.Error(err))
		}

		// An interval update only reschedules the next tick; it does not
		// trigger an extra pass.
		waiting := true
		for waiting {
			select {
			case <-ctx.Done():
				return
			case next := <-updates:
				ticker.Reset(next)
			case <-ticker.C:
				waiting = false
			}
		}
	}
}
