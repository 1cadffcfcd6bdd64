package event

import (
	"encoding/json"
	"fmt"
	"time"
)

// Type identifies an event kind.
type Type string

const (
	RosterLoaded    Type = "roster.loaded"
	RosterShuffled  Type = "roster.shuffled"
	RosterExhausted Type = "roster.exhausted"
	TeamsConfigured Type = "teams.configured"

	PlayerSelected Type = "player.selected"
	BidPlaced      Type = "bid.placed"
	PlayerSold     Type = "player.sold"
	PlayerUnsold   Type = "player.unsold"
	PlayerSkipped  Type = "player.skipped"

	AuctionRestarted Type = "auction.restarted"
	SessionCleared   Type = "session.cleared"

	TimerExpired Type = "timer.expired"
)

// Event represents a single domain event.
type Event struct {
	ID          string          `json:"id"`
	AggregateID string          `json:"aggregate_id"`
	Type        Type            `json:"type"`
	Data        json.RawMessage `json:"data"`
	Version     int             `json:"version"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Resolution reports whether the event terminates a player's round.
func (e Event) Resolution() bool {
	switch e.Type {
	case PlayerSold, PlayerUnsold, PlayerSkipped:
		return true
	}
	return false
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v any) error {
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("decoding %s payload: %w", e.Type, err)
	}
	return nil
}

// RosterLoadedData is the payload for RosterLoaded events.
type RosterLoadedData struct {
	Players int `json:"players"`
}

// TeamsConfiguredData is the payload for TeamsConfigured events.
type TeamsConfiguredData struct {
	Teams   []string `json:"teams"`
	Budgets []int    `json:"budgets"`
}

// PlayerSelectedData is the payload for PlayerSelected events.
type PlayerSelectedData struct {
	PlayerNo   int    `json:"player_no"`
	PlayerName string `json:"player_name"`
	Role       string `json:"role"`
	BasePrice  int    `json:"base_price"`
}

// BidPlacedData is the payload for BidPlaced events.
type BidPlacedData struct {
	PlayerNo int    `json:"player_no"`
	Team     string `json:"team"`
	Amount   int    `json:"amount"`
}

// ResolvedData is the payload for PlayerSold, PlayerUnsold and PlayerSkipped events.
type ResolvedData struct {
	PlayerNo   int    `json:"player_no"`
	PlayerName string `json:"player_name"`
	Role       string `json:"role"`
	Team       string `json:"team,omitempty"`
	Price      int    `json:"price"`
}

// TimerExpiredData is the payload for TimerExpired events.
type TimerExpiredData struct {
	PlayerNo int `json:"player_no"`
}
