package web

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/jensholdgaard/cricket-auction/internal/auction"
	"github.com/jensholdgaard/cricket-auction/internal/notify"
)

type pageView struct {
	Msg   string
	Level string

	Players     int
	Remaining   int
	Ready       bool
	Exhausted   bool
	Active      *auction.Player
	Bid         auction.BidState
	Teams       []auction.Team
	Leaderboard []auction.Standing
	Results     []auction.Result

	TeamSlots     []int
	TeamCount     int
	MinTeams      int
	MaxTeams      int
	DefaultBudget int
	MinBudget     int
	BidStep       int
	BasePrice     int
	Started       bool

	Timer *timerView
}

type timerView struct {
	PlayerNo int `json:"player_no"`
	Seconds  int `json:"seconds"`
}

type playerView struct {
	No   int    `json:"no"`
	Name string `json:"name"`
	Role string `json:"role"`
}

type standingView struct {
	Team      string `json:"team"`
	Spent     int    `json:"spent"`
	Remaining int    `json:"remaining"`
	Bought    int    `json:"bought"`
}

type stateView struct {
	Ready       bool           `json:"ready"`
	Exhausted   bool           `json:"exhausted"`
	Players     int            `json:"players"`
	Remaining   int            `json:"remaining"`
	Results     int            `json:"results"`
	Player      *playerView    `json:"player,omitempty"`
	BidAmount   int            `json:"bid_amount"`
	BidLeader   string         `json:"bid_leader,omitempty"`
	Leaderboard []standingView `json:"leaderboard"`
	Timer       *timerView     `json:"timer,omitempty"`
	Cue         notify.Cue     `json:"cue"`
}

func (h *Handlers) pageData(msg, level, teams string) pageView {
	st := h.session.Snapshot()

	count := len(st.Teams)
	if n, err := strconv.Atoi(teams); err == nil && n >= h.cfg.MinTeams && n <= h.cfg.MaxTeams {
		count = n
	}
	if count == 0 {
		count = h.cfg.DefaultTeams
	}
	slots := make([]int, count)
	for i := range slots {
		slots[i] = i + 1
	}

	v := pageView{
		Msg:           msg,
		Level:         level,
		Players:       len(st.Players),
		Remaining:     st.Remaining(),
		Ready:         st.Ready(),
		Exhausted:     st.Exhausted(),
		Bid:           st.Bid,
		Teams:         st.Teams,
		Leaderboard:   h.session.Leaderboard(),
		Results:       st.Results,
		TeamSlots:     slots,
		TeamCount:     count,
		MinTeams:      h.cfg.MinTeams,
		MaxTeams:      h.cfg.MaxTeams,
		DefaultBudget: h.cfg.DefaultBudget,
		MinBudget:     h.cfg.MinBudget,
		BidStep:       h.cfg.BidStep,
		BasePrice:     h.cfg.BasePrice,
		Started:       len(st.Results) > 0,
		Timer:         h.timer(),
	}
	if p, ok := st.Active(); ok {
		v.Active = &p
	}
	return v
}

func (h *Handlers) timer() *timerView {
	if h.countdown == nil {
		return nil
	}
	left, no, ok := h.countdown.Remaining()
	if !ok {
		return nil
	}
	return &timerView{PlayerNo: no, Seconds: int(left.Seconds() + 0.5)}
}

// State serves a JSON snapshot for the page's polling script.
func (h *Handlers) State(w http.ResponseWriter, r *http.Request) {
	st := h.session.Snapshot()

	v := stateView{
		Ready:       st.Ready(),
		Exhausted:   st.Exhausted(),
		Players:     len(st.Players),
		Remaining:   st.Remaining(),
		Results:     len(st.Results),
		BidAmount:   st.Bid.Amount,
		BidLeader:   st.Bid.Leader,
		Leaderboard: []standingView{},
		Timer:       h.timer(),
	}
	if p, ok := st.Active(); ok {
		v.Player = &playerView{No: p.No, Name: p.Name, Role: p.Role}
	}
	for _, s := range h.session.Leaderboard() {
		v.Leaderboard = append(v.Leaderboard, standingView(s))
	}
	if h.cues != nil {
		v.Cue = h.cues.Latest()
	}
	writeJSON(w, http.StatusOK, v)
}

// Events serves the session's event log.
func (h *Handlers) Events(w http.ResponseWriter, r *http.Request) {
	events, err := h.session.Events(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "loading events", slog.Any("error", err))
		http.Error(w, "failed to load events", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
