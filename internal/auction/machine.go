package auction

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/jensholdgaard/cricket-auction/internal/clock"
	"github.com/jensholdgaard/cricket-auction/internal/config"
)

// Errors returned by auction operations. None of them leave the state changed.
var (
	ErrNotReady           = errors.New("upload the player list and set up teams first")
	ErrNoRoster           = errors.New("no player list uploaded")
	ErrEmptyRoster        = errors.New("player list is empty")
	ErrDuplicatePlayer    = errors.New("duplicate player number")
	ErrNoActivePlayer     = errors.New("no player is up for auction")
	ErrPlayerActive       = errors.New("current player must be resolved first")
	ErrRosterExhausted    = errors.New("all players have been auctioned")
	ErrAuctionStarted     = errors.New("auction already has results; restart it first")
	ErrUnknownTeam        = errors.New("unknown team")
	ErrInvalidIncrement   = errors.New("bid increment must be positive")
	ErrInsufficientBudget = errors.New("insufficient budget")
	ErrInvalidPrice       = errors.New("sold price must be positive")
	ErrEmptyTeamName      = errors.New("team name is required")
	ErrInvalidBudget      = errors.New("invalid team budget")
	ErrDuplicateTeam      = errors.New("duplicate team name")
	ErrTeamCount          = errors.New("invalid number of teams")
	ErrNoResults          = errors.New("no results yet")
)

// Rules are the fixed parameters of an auction.
type Rules struct {
	BasePrice int
	BidStep   int
	MinBudget int
	MinTeams  int
	MaxTeams  int
}

// RulesFromConfig maps the auction config block to Rules.
func RulesFromConfig(cfg config.AuctionConfig) Rules {
	return Rules{
		BasePrice: cfg.BasePrice,
		BidStep:   cfg.BidStep,
		MinBudget: cfg.MinBudget,
		MinTeams:  cfg.MinTeams,
		MaxTeams:  cfg.MaxTeams,
	}
}

// Action is a state transition request.
type Action interface {
	action() string
}

type (
	LoadRoster    struct{ Players []Player }
	ShuffleRoster struct{}
	SetupTeams    struct{ Specs []TeamSpec }
	SelectNext    struct{}
	PlaceBid      struct {
		Team      string
		Increment int
	}
	ConfirmSale struct{}
	MarkUnsold  struct{}
	SkipPlayer  struct{}
	Restart     struct{}
	ClearAll    struct{}
)

func (LoadRoster) action() string    { return "LoadRoster" }
func (ShuffleRoster) action() string { return "ShuffleRoster" }
func (SetupTeams) action() string    { return "SetupTeams" }
func (SelectNext) action() string    { return "SelectNext" }
func (PlaceBid) action() string      { return "PlaceBid" }
func (ConfirmSale) action() string   { return "ConfirmSale" }
func (MarkUnsold) action() string    { return "MarkUnsold" }
func (SkipPlayer) action() string    { return "SkipPlayer" }
func (Restart) action() string       { return "Restart" }
func (ClearAll) action() string      { return "ClearAll" }

// Machine applies actions to states. Apply never mutates its input.
type Machine struct {
	rules    Rules
	selector Selector
	rng      *rand.Rand
	clock    clock.Clock
}

// NewMachine returns a Machine. src drives roster shuffles.
func NewMachine(rules Rules, selector Selector, src rand.Source, clk clock.Clock) *Machine {
	return &Machine{rules: rules, selector: selector, rng: rand.New(src), clock: clk}
}

// Rules returns the machine's rules.
func (m *Machine) Rules() Rules { return m.rules }

// Empty returns the initial state for this machine's rules.
func (m *Machine) Empty() State { return EmptyState(m.rules.BasePrice) }

// Apply returns the state that results from applying a to s. On error the
// returned state is s.
func (m *Machine) Apply(s State, a Action) (State, error) {
	next := s.Clone()

	var err error
	switch a := a.(type) {
	case LoadRoster:
		err = m.loadRoster(&next, a.Players)
	case ShuffleRoster:
		err = m.shuffle(&next)
	case SetupTeams:
		err = m.setupTeams(&next, a.Specs)
	case SelectNext:
		err = m.selectNext(&next)
	case PlaceBid:
		err = m.placeBid(&next, a.Team, a.Increment)
	case ConfirmSale:
		err = m.confirmSale(&next)
	case MarkUnsold:
		err = m.resolve(&next, OutcomeUnsold, "", 0)
	case SkipPlayer:
		err = m.resolve(&next, OutcomeSkipped, "", 0)
	case Restart:
		m.restart(&next)
	case ClearAll:
		next = m.Empty()
		next.Round = s.Round
	default:
		err = fmt.Errorf("unsupported action %T", a)
	}
	if err != nil {
		return s, err
	}
	return next, nil
}

func (m *Machine) loadRoster(s *State, players []Player) error {
	if len(players) == 0 {
		return ErrEmptyRoster
	}
	seen := make(map[int]struct{}, len(players))
	for _, p := range players {
		if _, dup := seen[p.No]; dup {
			return fmt.Errorf("%w: %d", ErrDuplicatePlayer, p.No)
		}
		seen[p.No] = struct{}{}
	}

	s.Players = clonePlayers(players)
	m.restart(s)
	return nil
}

func (m *Machine) shuffle(s *State) error {
	if len(s.Players) == 0 {
		return ErrNoRoster
	}
	if len(s.Results) > 0 {
		return ErrAuctionStarted
	}
	m.rng.Shuffle(len(s.Players), func(i, j int) {
		s.Players[i], s.Players[j] = s.Players[j], s.Players[i]
	})
	m.restart(s)
	return nil
}

func (m *Machine) setupTeams(s *State, specs []TeamSpec) error {
	if len(s.Results) > 0 {
		return ErrAuctionStarted
	}
	teams, err := NewTeams(specs, m.rules)
	if err != nil {
		return err
	}
	s.Teams = teams
	m.restart(s)
	return nil
}

func (m *Machine) selectNext(s *State) error {
	if !s.Ready() {
		return ErrNotReady
	}
	if p, ok := s.Active(); ok && !p.Auctioned {
		return ErrPlayerActive
	}
	if !m.advance(s) {
		return ErrRosterExhausted
	}
	return nil
}

func (m *Machine) placeBid(s *State, team string, increment int) error {
	if !s.Ready() {
		return ErrNotReady
	}
	if _, ok := s.Active(); !ok {
		return ErrNoActivePlayer
	}
	if increment <= 0 {
		return ErrInvalidIncrement
	}
	t, ok := s.Team(team)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTeam, team)
	}
	amount := s.Bid.Amount + increment
	if t.Budget < amount {
		return fmt.Errorf("%w: %s has %d, bid is %d", ErrInsufficientBudget, t.Name, t.Budget, amount)
	}
	s.Bid = BidState{Amount: amount, Leader: t.Name}
	return nil
}

func (m *Machine) confirmSale(s *State) error {
	if !s.Bid.HasLeader() {
		return m.resolve(s, OutcomeUnsold, "", 0)
	}
	if s.Bid.Amount <= 0 {
		return ErrInvalidPrice
	}
	return m.resolve(s, OutcomeSold, s.Bid.Leader, s.Bid.Amount)
}

// resolve closes the active player's round and moves to the next one.
func (m *Machine) resolve(s *State, outcome Outcome, team string, price int) error {
	if !s.Ready() {
		return ErrNotReady
	}
	p, ok := s.Active()
	if !ok || p.Auctioned {
		return ErrNoActivePlayer
	}
	p.Auctioned = true

	if outcome == OutcomeSold {
		i := s.teamIndex(team)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrUnknownTeam, team)
		}
		if err := s.Teams[i].charge(p, price); err != nil {
			return fmt.Errorf("%w: %s has %d, price is %d", err, team, s.Teams[i].Budget, price)
		}
	}

	s.Players[s.Current] = p
	s.Results = append(s.Results, Result{
		PlayerNo:   p.No,
		PlayerName: p.Name,
		Role:       p.Role,
		BasePrice:  m.rules.BasePrice,
		Outcome:    outcome,
		Team:       team,
		Price:      price,
		ResolvedAt: m.clock.Now().UTC(),
	})
	m.advance(s)
	return nil
}

// restart resets teams, players and the ledger, keeping the roster and the
// configured team budgets.
func (m *Machine) restart(s *State) {
	for i := range s.Players {
		s.Players[i].Auctioned = false
	}
	for i := range s.Teams {
		s.Teams[i].reset()
	}
	s.Results = nil
	s.Cursor = 0
	s.Current = -1
	s.Bid = BidState{Amount: m.rules.BasePrice}
	if s.Ready() {
		m.advance(s)
	}
}

// advance selects the next player and resets the bid. It reports false when
// the roster is exhausted.
func (m *Machine) advance(s *State) bool {
	s.Bid = BidState{Amount: m.rules.BasePrice}
	i, ok := m.selector.Next(s)
	if !ok {
		s.Current = -1
		return false
	}
	s.Current = i
	s.Round++
	return true
}
