// Package web serves the auction control page and its form actions.
package web

import (
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/jensholdgaard/cricket-auction/internal/auction"
	"github.com/jensholdgaard/cricket-auction/internal/config"
	"github.com/jensholdgaard/cricket-auction/internal/health"
	"github.com/jensholdgaard/cricket-auction/internal/notify"
	"github.com/jensholdgaard/cricket-auction/internal/roster"
	"github.com/jensholdgaard/cricket-auction/internal/sheet"
	"github.com/jensholdgaard/cricket-auction/internal/telemetry"
	"github.com/jensholdgaard/cricket-auction/internal/timer"
)

//go:embed templates/*.html
var templates embed.FS

// Message levels shown on the page.
const (
	LevelSuccess = "success"
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
)

var errInvalidField = errors.New("invalid field")

// Handlers serves HTTP requests against a single auction session.
type Handlers struct {
	session   *auction.Session
	countdown *timer.Countdown
	cues      *notify.Cues
	health    *health.Handler
	cfg       config.AuctionConfig
	logger    *slog.Logger
	page      *template.Template
}

// NewHandlers parses the page template. countdown, cues and hc may be nil.
func NewHandlers(s *auction.Session, countdown *timer.Countdown, cues *notify.Cues, hc *health.Handler, cfg config.AuctionConfig, logger *slog.Logger) (*Handlers, error) {
	page, err := template.New("index.html").Funcs(template.FuncMap{
		"inc": func(i int) int { return i + 1 },
	}).ParseFS(templates, "templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}
	return &Handlers{
		session:   s,
		countdown: countdown,
		cues:      cues,
		health:    hc,
		cfg:       cfg,
		logger:    logger,
		page:      page,
	}, nil
}

// Index renders the auction page.
func (h *Handlers) Index(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	data := h.pageData(q.Get("msg"), q.Get("level"), q.Get("teams"))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.page.Execute(w, data); err != nil {
		telemetry.LogWithTrace(r.Context(), h.logger).ErrorContext(r.Context(), "rendering page", slog.Any("error", err))
	}
}

// UploadRoster loads a multipart "file" upload as the new roster.
func (h *Handlers) UploadRoster(w http.ResponseWriter, r *http.Request) {
	if h.cfg.UploadLimit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.cfg.UploadLimit)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fail(w, r, fmt.Errorf("%w: upload exceeds %d bytes", errInvalidField, tooLarge.Limit))
			return
		}
		h.fail(w, r, fmt.Errorf("%w: choose a player list to upload", errInvalidField))
		return
	}
	defer file.Close()

	t, err := sheet.Read(header.Filename, file)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	players, err := roster.Parse(t)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.session.LoadRoster(r.Context(), players); err != nil {
		h.fail(w, r, err)
		return
	}
	redirect(w, r, LevelSuccess, fmt.Sprintf("Loaded %d players from %s.", len(players), path.Base(header.Filename)))
}

// ShuffleRoster randomizes the roster order.
func (h *Handlers) ShuffleRoster(w http.ResponseWriter, r *http.Request) {
	if err := h.session.ShuffleRoster(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	redirect(w, r, LevelSuccess, "Player list shuffled.")
}

// SetupTeams reads count, name_<i> and budget_<i> for i in 1..count.
func (h *Handlers) SetupTeams(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.fail(w, r, fmt.Errorf("%w: %w", errInvalidField, err))
		return
	}
	count, err := strconv.Atoi(r.PostFormValue("count"))
	if err != nil {
		h.fail(w, r, fmt.Errorf("%w: number of teams", errInvalidField))
		return
	}
	if count < h.cfg.MinTeams || count > h.cfg.MaxTeams {
		h.fail(w, r, fmt.Errorf("%w: got %d, want %d-%d", auction.ErrTeamCount, count, h.cfg.MinTeams, h.cfg.MaxTeams))
		return
	}

	specs := make([]auction.TeamSpec, 0, count)
	for i := 1; i <= count; i++ {
		budget, err := strconv.Atoi(strings.TrimSpace(r.PostFormValue(fmt.Sprintf("budget_%d", i))))
		if err != nil {
			h.fail(w, r, fmt.Errorf("%w: budget for team %d", errInvalidField, i))
			return
		}
		specs = append(specs, auction.TeamSpec{
			Name:   r.PostFormValue(fmt.Sprintf("name_%d", i)),
			Budget: budget,
		})
	}

	if err := h.session.SetupTeams(r.Context(), specs); err != nil {
		h.fail(w, r, err)
		return
	}
	redirect(w, r, LevelSuccess, fmt.Sprintf("Saved %d teams.", count))
}

// PlaceBid raises the bid by the configured step for the posted team.
func (h *Handlers) PlaceBid(w http.ResponseWriter, r *http.Request) {
	team := r.PostFormValue("team")
	if err := h.session.PlaceBid(r.Context(), team, h.cfg.BidStep); err != nil {
		h.fail(w, r, err)
		return
	}
	redirect(w, r, LevelSuccess, fmt.Sprintf("%s placed a bid of %d.", team, h.session.Snapshot().Bid.Amount))
}

// ConfirmSale sells to the leading bidder, or marks unsold without one.
func (h *Handlers) ConfirmSale(w http.ResponseWriter, r *http.Request) {
	res, err := h.session.ConfirmSale(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if res.Outcome != auction.OutcomeSold {
		redirect(w, r, LevelInfo, fmt.Sprintf("%s marked as Unsold.", res.PlayerName))
		return
	}
	redirect(w, r, LevelSuccess, fmt.Sprintf("%s sold to %s for %d.", res.PlayerName, res.Team, res.Price))
}

// MarkUnsold resolves the active player with no sale.
func (h *Handlers) MarkUnsold(w http.ResponseWriter, r *http.Request) {
	res, err := h.session.MarkUnsold(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	redirect(w, r, LevelInfo, fmt.Sprintf("%s marked as Unsold.", res.PlayerName))
}

// Skip passes over the active player.
func (h *Handlers) Skip(w http.ResponseWriter, r *http.Request) {
	res, err := h.session.Skip(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	redirect(w, r, LevelInfo, fmt.Sprintf("%s skipped.", res.PlayerName))
}

// SelectNext puts the next player up.
func (h *Handlers) SelectNext(w http.ResponseWriter, r *http.Request) {
	if err := h.session.SelectNext(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	redirect(w, r, LevelSuccess, "Next player selected.")
}

// Restart clears results and restores budgets.
func (h *Handlers) Restart(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Restart(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	redirect(w, r, LevelSuccess, "Auction restarted.")
}

// ClearAll discards the whole session.
func (h *Handlers) ClearAll(w http.ResponseWriter, r *http.Request) {
	if err := h.session.ClearAll(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	redirect(w, r, LevelSuccess, "All session data cleared.")
}

// ExportResults serves the ledger as CSV or XLSX, by the requested extension.
func (h *Handlers) ExportResults(w http.ResponseWriter, r *http.Request) {
	results := h.session.Results()
	if len(results) == 0 {
		h.fail(w, r, auction.ErrNoResults)
		return
	}
	h.export(w, r, "auction_results", roster.ResultsTable(results))
}

// ExportTeams serves every team's bought players as CSV.
func (h *Handlers) ExportTeams(w http.ResponseWriter, r *http.Request) {
	if len(h.session.Results()) == 0 {
		h.fail(w, r, auction.ErrNoResults)
		return
	}
	h.export(w, r, "team_rosters", roster.TeamsTable(h.session.Teams()))
}

func (h *Handlers) export(w http.ResponseWriter, r *http.Request, base string, t sheet.Table) {
	format, err := sheet.FormatOf(r.URL.Path)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	contentType := "text/csv; charset=utf-8"
	if format == sheet.XLSX {
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.%s"`, base, format))
	if err := sheet.Write(w, format, t); err != nil {
		telemetry.LogWithTrace(r.Context(), h.logger).ErrorContext(r.Context(), "writing export",
			slog.String("file", base),
			slog.Any("error", err),
		)
	}
}

// fail reports err back to the page at the level its kind deserves.
func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	level := levelFor(err)
	if level == LevelError {
		telemetry.LogWithTrace(r.Context(), h.logger).ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
	}
	redirect(w, r, level, capitalize(err.Error()))
}

func redirect(w http.ResponseWriter, r *http.Request, level, msg string) {
	q := url.Values{"msg": {msg}, "level": {level}}
	http.Redirect(w, r, "/?"+q.Encode(), http.StatusSeeOther)
}

var (
	warningErrs = []error{
		auction.ErrInsufficientBudget,
		auction.ErrInvalidIncrement,
		auction.ErrInvalidPrice,
		auction.ErrUnknownTeam,
		auction.ErrEmptyTeamName,
		auction.ErrInvalidBudget,
		auction.ErrDuplicateTeam,
		auction.ErrTeamCount,
		auction.ErrEmptyRoster,
		auction.ErrDuplicatePlayer,
		roster.ErrMissingColumns,
		roster.ErrInvalidPlayerNo,
		sheet.ErrUnsupportedFormat,
		errInvalidField,
	}
	infoErrs = []error{
		auction.ErrNotReady,
		auction.ErrNoResults,
		auction.ErrNoRoster,
		auction.ErrNoActivePlayer,
		auction.ErrPlayerActive,
		auction.ErrRosterExhausted,
		auction.ErrAuctionStarted,
	}
)

// levelFor maps budget and validation errors to warning and precondition
// errors to info.
func levelFor(err error) string {
	for _, target := range warningErrs {
		if errors.Is(err, target) {
			return LevelWarning
		}
	}
	for _, target := range infoErrs {
		if errors.Is(err, target) {
			return LevelInfo
		}
	}
	return LevelError
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
