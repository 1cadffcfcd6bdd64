package auction

import (
	"fmt"
	"strings"
	"time"
)

// Outcome is the terminal disposition of a player for the round.
type Outcome string

const (
	OutcomeSold    Outcome = "sold"
	OutcomeUnsold  Outcome = "unsold"
	OutcomeSkipped Outcome = "skipped"
)

// Player is a roster entry.
type Player struct {
	No        int
	Name      string
	Role      string
	Auctioned bool
	// Extra holds uploaded columns beyond the required ones.
	Extra map[string]string
}

// Team is a bidding team. Budget is the live remaining balance and is
// decremented on every sale; Budget+Spent always equals InitialBudget.
type Team struct {
	Name          string
	InitialBudget int
	Budget        int
	Spent         int
	Players       []Player
}

// TeamSpec is the setup input for a team.
type TeamSpec struct {
	Name   string
	Budget int
}

// NewTeam validates and creates a team with nothing spent.
func NewTeam(name string, budget int) (Team, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Team{}, ErrEmptyTeamName
	}
	if budget <= 0 {
		return Team{}, fmt.Errorf("%w: %s has %d", ErrInvalidBudget, name, budget)
	}
	return Team{Name: name, InitialBudget: budget, Budget: budget}, nil
}

// NewTeams validates a full team setup against the rules.
func NewTeams(specs []TeamSpec, r Rules) ([]Team, error) {
	if len(specs) < r.MinTeams || len(specs) > r.MaxTeams {
		return nil, fmt.Errorf("%w: got %d, want %d-%d", ErrTeamCount, len(specs), r.MinTeams, r.MaxTeams)
	}

	teams := make([]Team, 0, len(specs))
	seen := make(map[string]struct{}, len(specs))
	for i, spec := range specs {
		t, err := NewTeam(spec.Name, spec.Budget)
		if err != nil {
			return nil, fmt.Errorf("team %d: %w", i+1, err)
		}
		if t.Budget < r.MinBudget {
			return nil, fmt.Errorf("%w: %s has %d, minimum is %d", ErrInvalidBudget, t.Name, t.Budget, r.MinBudget)
		}
		key := strings.ToLower(t.Name)
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTeam, t.Name)
		}
		seen[key] = struct{}{}
		teams = append(teams, t)
	}
	return teams, nil
}

func (t *Team) charge(p Player, price int) error {
	if price > t.Budget {
		return ErrInsufficientBudget
	}
	t.Budget -= price
	t.Spent += price
	t.Players = append(t.Players, p)
	return nil
}

func (t *Team) reset() {
	t.Budget = t.InitialBudget
	t.Spent = 0
	t.Players = nil
}

// BidState is the running bid for the active player.
type BidState struct {
	Amount int
	Leader string // empty when nobody has bid
}

// HasLeader reports whether any team has bid.
func (b BidState) HasLeader() bool { return b.Leader != "" }

// Result is an immutable ledger record for a resolved player.
type Result struct {
	PlayerNo   int
	PlayerName string
	Role       string
	BasePrice  int
	Outcome    Outcome
	Team       string
	Price      int
	ResolvedAt time.Time
}

// SoldTo is the export value of the "Sold To" column.
func (r Result) SoldTo() string {
	switch r.Outcome {
	case OutcomeSold:
		return r.Team
	case OutcomeSkipped:
		return "Skipped"
	default:
		return "Unsold"
	}
}

// State is the complete auction session. The zero value is not usable;
// start from EmptyState.
type State struct {
	Players []Player
	Teams   []Team
	Bid     BidState
	// Current indexes the active player in Players, or is -1.
	Current int
	// Cursor is the sequential selection pointer.
	Cursor int
	// Round increments on every player selection.
	Round   int
	Results []Result
}

// EmptyState returns a state with no roster, no teams and no active player.
func EmptyState(basePrice int) State {
	return State{Current: -1, Bid: BidState{Amount: basePrice}}
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	c := s
	c.Players = clonePlayers(s.Players)
	c.Results = append([]Result(nil), s.Results...)
	if s.Teams != nil {
		c.Teams = make([]Team, len(s.Teams))
		for i, t := range s.Teams {
			t.Players = clonePlayers(t.Players)
			c.Teams[i] = t
		}
	}
	return c
}

func clonePlayers(in []Player) []Player {
	if in == nil {
		return nil
	}
	out := make([]Player, len(in))
	for i, p := range in {
		if p.Extra != nil {
			extra := make(map[string]string, len(p.Extra))
			for k, v := range p.Extra {
				extra[k] = v
			}
			p.Extra = extra
		}
		out[i] = p
	}
	return out
}

// Ready reports whether both roster and teams are present.
func (s State) Ready() bool {
	return len(s.Players) > 0 && len(s.Teams) > 0
}

// Active returns the player currently under the hammer.
func (s State) Active() (Player, bool) {
	if s.Current < 0 || s.Current >= len(s.Players) {
		return Player{}, false
	}
	return s.Players[s.Current], true
}

// Remaining counts players not yet resolved.
func (s State) Remaining() int {
	n := 0
	for _, p := range s.Players {
		if !p.Auctioned {
			n++
		}
	}
	return n
}

// Exhausted reports whether every player of a non-empty roster is resolved.
func (s State) Exhausted() bool {
	return len(s.Players) > 0 && s.Remaining() == 0
}

// Team returns the named team.
func (s State) Team(name string) (Team, bool) {
	if i := s.teamIndex(name); i >= 0 {
		return s.Teams[i], true
	}
	return Team{}, false
}

func (s State) teamIndex(name string) int {
	for i, t := range s.Teams {
		if t.Name == name {
			return i
		}
	}
	return -1
}

// Standing is a leaderboard row.
type Standing struct {
	Team      string
	Spent     int
	Remaining int
	Bought    int
}
