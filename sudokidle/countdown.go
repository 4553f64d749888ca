package sudokidle

import (
	"sync"
	"time"
)

// Countdown is a restartable tick counter. Each Start bumps a generation number so ticks and
// callbacks from a cancelled run are ignored.
type Countdown struct {
	mu        sync.Mutex
	scheduler Scheduler
	interval  time.Duration
	initial   int
	remaining int
	gen       uint64
	cancel    func()
	onZero    func(gen uint64)
}

// NewCountdown creates a stopped countdown of initial ticks. onZero runs outside the countdown's
// lock each time the count reaches zero, after which the count restarts from initial.
func NewCountdown(scheduler Scheduler, initial int, interval time.Duration, onZero func(gen uint64)) *Countdown {
	if initial < 1 {
		initial = 1
	}
	return &Countdown{
		scheduler: scheduler,
		interval:  interval,
		initial:   initial,
		remaining: initial,
		onZero:    onZero,
	}
}

// Start cancels any running countdown and starts a fresh one from the initial value.
func (c *Countdown) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()
	c.remaining = c.initial
	gen := c.gen
	c.cancel = c.scheduler.Every(c.interval, func() {
		c.tick(gen)
	})
}

// Stop cancels the countdown. It is safe to call on a stopped countdown.
func (c *Countdown) Stop() {
	c.mu.Lock()
	c.stopLocked()
	c.remaining = c.initial
	c.mu.Unlock()
}

func (c *Countdown) stopLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.gen++
}

func (c *Countdown) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancel != nil
}

func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Current reports whether gen belongs to the running countdown.
func (c *Countdown) Current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancel != nil && c.gen == gen
}

func (c *Countdown) tick(gen uint64) {
	c.mu.Lock()
	if c.cancel == nil || c.gen != gen {
		c.mu.Unlock()
		return
	}
	c.remaining--
	fire := c.remaining <= 0
	if fire {
		c.remaining = c.initial
	}
	c.mu.Unlock()

	if fire && c.onZero != nil {
		c.onZero(gen)
	}
}
