package auction

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/cricket-auction/internal/event"
)

const instrumentation = "github.com/jensholdgaard/cricket-auction/internal/auction"

// Session owns the auction state for one server process and serializes
// every action against it.
type Session struct {
	mu      sync.Mutex
	pub     sync.Mutex // orders bus delivery
	id      string
	state   State
	version int

	machine *Machine
	events  event.Store
	bus     *event.Bus
	logger  *slog.Logger
	tracer  trace.Tracer

	bids       metric.Int64Counter
	resolved   metric.Int64Counter
	saleAmount metric.Int64Histogram
}

// NewSession creates a Session with an empty state.
func NewSession(m *Machine, events event.Store, bus *event.Bus, logger *slog.Logger, tp trace.TracerProvider, mp metric.MeterProvider) (*Session, error) {
	meter := mp.Meter(instrumentation)

	bids, err := meter.Int64Counter("auction.bids",
		metric.WithDescription("Accepted bids."))
	if err != nil {
		return nil, fmt.Errorf("creating bids counter: %w", err)
	}
	resolved, err := meter.Int64Counter("auction.resolved",
		metric.WithDescription("Resolved players by outcome."))
	if err != nil {
		return nil, fmt.Errorf("creating resolved counter: %w", err)
	}
	saleAmount, err := meter.Int64Histogram("auction.sale_amount",
		metric.WithDescription("Final price of sold players."))
	if err != nil {
		return nil, fmt.Errorf("creating sale amount histogram: %w", err)
	}

	return &Session{
		id:         uuid.NewString(),
		state:      m.Empty(),
		machine:    m,
		events:     events,
		bus:        bus,
		logger:     logger,
		tracer:     tp.Tracer(instrumentation),
		bids:       bids,
		resolved:   resolved,
		saleAmount: saleAmount,
	}, nil
}

// ID identifies the session in the event store.
func (s *Session) ID() string { return s.id }

// Rules returns the auction rules.
func (s *Session) Rules() Rules { return s.machine.Rules() }

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Results returns the ledger.
func (s *Session) Results() []Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Result(nil), s.state.Results...)
}

// Teams returns the teams in setup order.
func (s *Session) Teams() []Team {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone().Teams
}

// Leaderboard returns team standings ordered by amount spent, highest first.
func (s *Session) Leaderboard() []Standing {
	s.mu.Lock()
	defer s.mu.Unlock()

	board := make([]Standing, 0, len(s.state.Teams))
	for _, t := range s.state.Teams {
		board = append(board, Standing{
			Team:      t.Name,
			Spent:     t.Spent,
			Remaining: t.Budget,
			Bought:    len(t.Players),
		})
	}
	sort.SliceStable(board, func(i, j int) bool { return board[i].Spent > board[j].Spent })
	return board
}

// LoadRoster replaces the roster and restarts the round.
func (s *Session) LoadRoster(ctx context.Context, players []Player) error {
	return s.dispatch(ctx, LoadRoster{Players: players})
}

// ShuffleRoster randomizes roster order before any result is recorded.
func (s *Session) ShuffleRoster(ctx context.Context) error {
	return s.dispatch(ctx, ShuffleRoster{})
}

// SetupTeams replaces the teams.
func (s *Session) SetupTeams(ctx context.Context, specs []TeamSpec) error {
	return s.dispatch(ctx, SetupTeams{Specs: specs})
}

// SelectNext puts the next player up once the active one is resolved.
func (s *Session) SelectNext(ctx context.Context) error {
	return s.dispatch(ctx, SelectNext{})
}

// PlaceBid raises the current bid by increment on behalf of team.
func (s *Session) PlaceBid(ctx context.Context, team string, increment int) error {
	return s.dispatch(ctx, PlaceBid{Team: team, Increment: increment})
}

// ConfirmSale sells the active player to the leading team, or marks them
// unsold when nobody bid. It returns the ledger record.
func (s *Session) ConfirmSale(ctx context.Context) (Result, error) {
	return s.resolve(ctx, ConfirmSale{})
}

// MarkUnsold resolves the active player as unsold.
func (s *Session) MarkUnsold(ctx context.Context) (Result, error) {
	return s.resolve(ctx, MarkUnsold{})
}

// Skip resolves the active player as skipped.
func (s *Session) Skip(ctx context.Context) (Result, error) {
	return s.resolve(ctx, SkipPlayer{})
}

// Restart clears results and restores every team's configured budget.
func (s *Session) Restart(ctx context.Context) error {
	return s.dispatch(ctx, Restart{})
}

// ClearAll discards the roster, the teams and the results.
func (s *Session) ClearAll(ctx context.Context) error {
	return s.dispatch(ctx, ClearAll{})
}

// Emit records an event raised outside the state machine, such as a timer
// expiry, and publishes it.
func (s *Session) Emit(ctx context.Context, t event.Type, payload any) {
	s.mu.Lock()
	evt := s.newEvent(t, payload)
	if err := s.events.Append(ctx, evt); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist event", slog.String("type", string(t)), slog.Any("error", err))
	}
	s.pub.Lock()
	defer s.pub.Unlock()
	s.mu.Unlock()

	s.bus.Publish(ctx, evt)
}

// Events returns the session's event log.
func (s *Session) Events(ctx context.Context) ([]event.Event, error) {
	return s.events.Load(ctx, s.id)
}

func (s *Session) resolve(ctx context.Context, a Action) (Result, error) {
	var res Result
	err := s.dispatchWith(ctx, a, func(_, after State) {
		res = after.Results[len(after.Results)-1]
	})
	return res, err
}

func (s *Session) dispatch(ctx context.Context, a Action) error {
	return s.dispatchWith(ctx, a, nil)
}

// dispatchWith applies a under the session lock, records the derived events
// and publishes them once the lock is released.
func (s *Session) dispatchWith(ctx context.Context, a Action, inspect func(before, after State)) error {
	ctx, span := s.tracer.Start(ctx, "Session."+a.action(),
		trace.WithAttributes(attribute.String("session.id", s.id)),
	)
	defer span.End()

	s.mu.Lock()
	before := s.state
	after, err := s.machine.Apply(before, a)
	if err != nil {
		s.mu.Unlock()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.WarnContext(ctx, "auction action rejected",
			slog.String("action", a.action()),
			slog.Any("error", err),
		)
		return err
	}
	s.state = after
	if inspect != nil {
		inspect(before, after)
	}

	events := s.derive(a, before, after)
	if err := s.events.Append(ctx, events...); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist auction events", slog.Any("error", err))
	}
	s.pub.Lock()
	s.mu.Unlock()

	s.record(ctx, events)
	s.bus.Publish(ctx, events...)
	s.pub.Unlock()

	s.logger.InfoContext(ctx, "auction action applied",
		slog.String("action", a.action()),
		slog.Int("events", len(events)),
		slog.Int("remaining", after.Remaining()),
	)
	return nil
}

// derive maps a successful transition to domain events. Callers hold s.mu.
func (s *Session) derive(a Action, before, after State) []event.Event {
	var events []event.Event

	switch a := a.(type) {
	case LoadRoster:
		events = append(events, s.newEvent(event.RosterLoaded, event.RosterLoadedData{Players: len(after.Players)}))
	case ShuffleRoster:
		events = append(events, s.newEvent(event.RosterShuffled, event.RosterLoadedData{Players: len(after.Players)}))
	case SetupTeams:
		d := event.TeamsConfiguredData{}
		for _, t := range after.Teams {
			d.Teams = append(d.Teams, t.Name)
			d.Budgets = append(d.Budgets, t.InitialBudget)
		}
		events = append(events, s.newEvent(event.TeamsConfigured, d))
	case PlaceBid:
		p, _ := after.Active()
		events = append(events, s.newEvent(event.BidPlaced, event.BidPlacedData{
			PlayerNo: p.No,
			Team:     a.Team,
			Amount:   after.Bid.Amount,
		}))
	case ConfirmSale, MarkUnsold, SkipPlayer:
		r := after.Results[len(after.Results)-1]
		t := event.PlayerUnsold
		switch r.Outcome {
		case OutcomeSold:
			t = event.PlayerSold
		case OutcomeSkipped:
			t = event.PlayerSkipped
		}
		events = append(events, s.newEvent(t, event.ResolvedData{
			PlayerNo:   r.PlayerNo,
			PlayerName: r.PlayerName,
			Role:       r.Role,
			Team:       r.Team,
			Price:      r.Price,
		}))
		if after.Exhausted() {
			events = append(events, s.newEvent(event.RosterExhausted, event.RosterLoadedData{Players: len(after.Players)}))
		}
	case Restart:
		events = append(events, s.newEvent(event.AuctionRestarted, json.RawMessage(`{}`)))
	case ClearAll:
		events = append(events, s.newEvent(event.SessionCleared, json.RawMessage(`{}`)))
	}

	if after.Round != before.Round {
		if p, ok := after.Active(); ok {
			events = append(events, s.newEvent(event.PlayerSelected, event.PlayerSelectedData{
				PlayerNo:   p.No,
				PlayerName: p.Name,
				Role:       p.Role,
				BasePrice:  after.Bid.Amount,
			}))
		}
	}
	return events
}

func (s *Session) newEvent(t event.Type, payload any) event.Event {
	data, ok := payload.(json.RawMessage)
	if !ok {
		data, _ = json.Marshal(payload)
	}
	s.version++
	return event.Event{
		AggregateID: s.id,
		Type:        t,
		Data:        data,
		Version:     s.version,
	}
}

func (s *Session) record(ctx context.Context, events []event.Event) {
	for _, e := range events {
		switch e.Type {
		case event.BidPlaced:
			s.bids.Add(ctx, 1)
		case event.PlayerSold, event.PlayerUnsold, event.PlayerSkipped:
			s.resolved.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", string(e.Type))))
			if e.Type == event.PlayerSold {
				var d event.ResolvedData
				if err := json.Unmarshal(e.Data, &d); err == nil {
					s.saleAmount.Record(ctx, int64(d.Price))
				}
			}
		}
	}
}
