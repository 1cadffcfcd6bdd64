package auction

import (
	"fmt"
	"math/rand/v2"

	"github.com/jensholdgaard/cricket-auction/internal/config"
)

// Selector picks the next player to put up for auction.
type Selector interface {
	// Next returns the index of the next unresolved player, or false if
	// none remain. It may advance bookkeeping fields on s.
	Next(s *State) (int, bool)
}

// Sequential walks the roster in upload order.
type Sequential struct{}

func (Sequential) Next(s *State) (int, bool) {
	for i := s.Cursor; i < len(s.Players); i++ {
		if !s.Players[i].Auctioned {
			s.Cursor = i + 1
			return i, true
		}
	}
	s.Cursor = len(s.Players)
	return -1, false
}

// Random samples uniformly without replacement from unresolved players.
// It is not safe for concurrent use.
type Random struct {
	rng *rand.Rand
}

// NewRandom returns a Random selector drawing from src.
func NewRandom(src rand.Source) *Random {
	return &Random{rng: rand.New(src)}
}

func (r *Random) Next(s *State) (int, bool) {
	pool := make([]int, 0, len(s.Players))
	for i, p := range s.Players {
		if !p.Auctioned {
			pool = append(pool, i)
		}
	}
	if len(pool) == 0 {
		return -1, false
	}
	return pool[r.rng.IntN(len(pool))], true
}

// NewSelector returns the Selector for a configured mode.
func NewSelector(mode string, src rand.Source) (Selector, error) {
	switch mode {
	case config.SelectionSequential:
		return Sequential{}, nil
	case config.SelectionRandom:
		return NewRandom(src), nil
	default:
		return nil, fmt.Errorf("unknown selection mode %q", mode)
	}
}
