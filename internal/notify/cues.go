// Package notify turns auction events into audience-facing signals: sound
// cues for the auction page and announcements to a Discord channel.
package notify

import (
	"context"
	"sync"

	"github.com/jensholdgaard/cricket-auction/internal/event"
)

// Sound cue names understood by the page.
const (
	CueNext   = "next"
	CueBid    = "bid"
	CueSold   = "sold"
	CueUnsold = "unsold"
	CueBuzzer = "buzzer"
)

// Cue is the most recent sound the page should play. Seq increases with
// every cue so a client can tell a repeat from one it already played.
type Cue struct {
	Name string `json:"name"`
	Seq  uint64 `json:"seq"`
}

// Cues remembers the latest cue raised by the auction.
type Cues struct {
	mu     sync.Mutex
	latest Cue
}

// NewCues returns an empty Cues.
func NewCues() *Cues {
	return &Cues{}
}

// Handle records a cue for events that have one.
func (c *Cues) Handle(_ context.Context, e event.Event) {
	name, ok := cueFor(e.Type)
	if !ok {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latest = Cue{Name: name, Seq: c.latest.Seq + 1}
}

// Latest returns the last recorded cue. Seq is zero when there is none.
func (c *Cues) Latest() Cue {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latest
}

func cueFor(t event.Type) (string, bool) {
	switch t {
	case event.PlayerSelected:
		return CueNext, true
	case event.BidPlaced:
		return CueBid, true
	case event.PlayerSold:
		return CueSold, true
	case event.PlayerUnsold, event.PlayerSkipped:
		return CueUnsold, true
	case event.TimerExpired:
		return CueBuzzer, true
	}
	return "", false
}
