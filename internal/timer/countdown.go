// Package timer runs the advisory bidding countdown. An expiry is only
// announced; resolving the player stays with the auctioneer.
package timer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/jensholdgaard/cricket-auction/internal/clock"
	"github.com/jensholdgaard/cricket-auction/internal/event"
)

// ExpireFunc is called once when a countdown runs out.
type ExpireFunc func(ctx context.Context, playerNo int)

// Countdown tracks one running timer at a time.
type Countdown struct {
	ctx      context.Context
	clk      clock.Clock
	d        time.Duration
	logger   *slog.Logger
	onExpire ExpireFunc

	mu       sync.Mutex
	timer    clockwork.Timer
	cancel   chan struct{}
	gen      uint64
	playerNo int
	deadline time.Time
}

// NewCountdown returns a Countdown for duration d. Timers stop firing once
// ctx is done. A non-positive d disables the countdown.
func NewCountdown(ctx context.Context, clk clock.Clock, d time.Duration, logger *slog.Logger, onExpire ExpireFunc) *Countdown {
	return &Countdown{
		ctx:      ctx,
		clk:      clk,
		d:        d,
		logger:   logger,
		onExpire: onExpire,
	}
}

// Duration returns the configured countdown length.
func (c *Countdown) Duration() time.Duration { return c.d }

// Start (re)starts the countdown for playerNo.
func (c *Countdown) Start(playerNo int) {
	if c.d <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()

	c.gen++
	c.playerNo = playerNo
	c.deadline = c.clk.Now().Add(c.d)
	c.timer = c.clk.NewTimer(c.d)
	c.cancel = make(chan struct{})

	go c.wait(c.timer, c.cancel, c.gen, playerNo)
}

// Stop cancels the running countdown, if any.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

// Remaining reports the time left and the player it runs for.
func (c *Countdown) Remaining() (time.Duration, int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer == nil {
		return 0, 0, false
	}
	left := c.deadline.Sub(c.clk.Now())
	if left < 0 {
		left = 0
	}
	return left, c.playerNo, true
}

// Handle follows the auction: a selection starts the countdown and anything
// that ends the player's turn stops it.
func (c *Countdown) Handle(_ context.Context, e event.Event) {
	if e.Resolution() {
		c.Stop()
		return
	}
	switch e.Type {
	case event.PlayerSelected:
		var d event.PlayerSelectedData
		if err := e.Decode(&d); err != nil {
			c.logger.Warn("undecodable selection event", slog.Any("error", err))
			return
		}
		c.Start(d.PlayerNo)
	case event.AuctionRestarted, event.SessionCleared, event.RosterLoaded, event.RosterExhausted:
		c.Stop()
	}
}

func (c *Countdown) stopLocked() {
	if c.timer == nil {
		return
	}
	stopAndDrain(c.timer)
	close(c.cancel)
	c.timer = nil
	c.cancel = nil
}

func (c *Countdown) wait(t clockwork.Timer, cancel <-chan struct{}, gen uint64, playerNo int) {
	select {
	case <-t.Chan():
	case <-cancel:
		return
	case <-c.ctx.Done():
		return
	}

	c.mu.Lock()
	if gen != c.gen || c.timer == nil {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.cancel = nil
	c.mu.Unlock()

	c.logger.InfoContext(c.ctx, "bid timer expired", slog.Int("player_no", playerNo))
	c.onExpire(c.ctx, playerNo)
}

func stopAndDrain(t clockwork.Timer) {
	if !t.Stop() {
		select {
		case <-t.Chan():
		default:
		}
	}
}
