package web_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"math/rand/v2"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/jensholdgaard/cricket-auction/internal/auction"
	"github.com/jensholdgaard/cricket-auction/internal/clock"
	"github.com/jensholdgaard/cricket-auction/internal/config"
	"github.com/jensholdgaard/cricket-auction/internal/event"
	"github.com/jensholdgaard/cricket-auction/internal/health"
	"github.com/jensholdgaard/cricket-auction/internal/notify"
	"github.com/jensholdgaard/cricket-auction/internal/web"
)

const rosterCSV = "Player No,Player Name,Role\n1,Virat,BAT\n2,Bumrah,BOWL\n"

func newServer(t *testing.T) http.Handler {
	t.Helper()
	cfg := config.Default()
	clk := clock.NewMock(time.Date(2025, 3, 1, 18, 30, 0, 0, time.UTC))

	bus := event.NewBus()
	cues := notify.NewCues()
	bus.Subscribe(cues.Handle)

	m := auction.NewMachine(auction.RulesFromConfig(cfg.Auction), auction.Sequential{}, rand.NewPCG(1, 2), clk)
	s, err := auction.NewSession(m, event.NewMemoryStore(clk), bus, slog.Default(), noop.NewTracerProvider(), metricnoop.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}

	hc := health.NewHandler(clk, "test")
	hc.SetReady(true)
	h, err := web.NewHandlers(s, nil, cues, hc, cfg.Auction, slog.Default())
	if err != nil {
		t.Fatalf("NewHandlers() error = %v", err)
	}
	return h.Routes(noop.NewTracerProvider())
}

// flash returns the level and message a form POST redirected with.
func flash(t *testing.T, rec *httptest.ResponseRecorder) (string, string) {
	t.Helper()
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusSeeOther)
	}
	loc, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parsing Location: %v", err)
	}
	return loc.Query().Get("level"), loc.Query().Get("msg")
}

func post(t *testing.T, h http.Handler, path string, form url.Values) (string, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return flash(t, rec)
}

func upload(t *testing.T, h http.Handler, name, content string) (string, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = fw.Write([]byte(content))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/roster", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return flash(t, rec)
}

func setupTeams(t *testing.T, h http.Handler) {
	t.Helper()
	level, msg := post(t, h, "/teams", url.Values{
		"count":    {"2"},
		"name_1":   {"Kings"},
		"budget_1": {"100"},
		"name_2":   {"Titans"},
		"budget_2": {"150"},
	})
	if level != web.LevelSuccess {
		t.Fatalf("POST /teams = %s %q, want success", level, msg)
	}
}

func getState(t *testing.T, h http.Handler) map[string]any {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/state", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/state = %d", rec.Code)
	}
	var v map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decoding state: %v", err)
	}
	return v
}

func TestIndex(t *testing.T) {
	h := newServer(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?msg=Hello&level=info&teams=3", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("GET / = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"Upload Player List", `class="msg info">Hello`, `name="name_3"`, "Please upload the player list"} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
	if strings.Contains(body, `name="name_4"`) {
		t.Error("page rendered more team slots than requested")
	}
}

func TestAuctionFlow(t *testing.T) {
	h := newServer(t)

	if level, _ := post(t, h, "/bid", url.Values{"team": {"Kings"}}); level != web.LevelInfo {
		t.Errorf("bid before setup level = %q, want info", level)
	}

	if level, msg := upload(t, h, "players.csv", rosterCSV); level != web.LevelSuccess || !strings.Contains(msg, "2 players") {
		t.Fatalf("upload = %s %q, want success with 2 players", level, msg)
	}
	setupTeams(t, h)

	st := getState(t, h)
	if st["ready"] != true || st["bid_amount"].(float64) != 20 {
		t.Fatalf("state after setup = %v", st)
	}
	if p := st["player"].(map[string]any); p["name"] != "Virat" {
		t.Errorf("active player = %v, want Virat", p)
	}

	for i := 0; i < 8; i++ {
		if level, msg := post(t, h, "/bid", url.Values{"team": {"Kings"}}); level != web.LevelSuccess {
			t.Fatalf("bid %d = %s %q", i, level, msg)
		}
	}
	// Kings has 100; the next raise to 110 is over budget.
	level, msg := post(t, h, "/bid", url.Values{"team": {"Kings"}})
	if level != web.LevelWarning || !strings.Contains(msg, "Insufficient budget") {
		t.Errorf("over-budget bid = %s %q, want warning", level, msg)
	}

	level, msg = post(t, h, "/sale", nil)
	if level != web.LevelSuccess || msg != "Virat sold to Kings for 100." {
		t.Errorf("sale = %s %q", level, msg)
	}

	if level, msg := post(t, h, "/sale", nil); level != web.LevelInfo || !strings.Contains(msg, "Unsold") {
		t.Errorf("sale without bids = %s %q, want unsold info", level, msg)
	}

	st = getState(t, h)
	if st["exhausted"] != true {
		t.Errorf("state after last player = %v, want exhausted", st)
	}
	if cue := st["cue"].(map[string]any); cue["name"] != notify.CueUnsold {
		t.Errorf("latest cue = %v, want unsold", cue)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/export/results.csv", nil))
	want := "Player No,Player Name,Role,Base Price,Sold To,Sold Price\n" +
		"1,Virat,BAT,20,Kings,100\n" +
		"2,Bumrah,BOWL,20,Unsold,0\n"
	if rec.Body.String() != want {
		t.Errorf("results.csv = %q, want %q", rec.Body.String(), want)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "auction_results.csv") {
		t.Errorf("Content-Disposition = %q", cd)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/export/teams.csv", nil))
	if !strings.Contains(rec.Body.String(), "Kings,1,Virat,BAT") {
		t.Errorf("teams.csv = %q", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/export/results.xlsx", nil))
	if rec.Code != http.StatusOK || rec.Body.Len() == 0 || !strings.Contains(rec.Header().Get("Content-Type"), "spreadsheetml") {
		t.Errorf("results.xlsx = %d, %d bytes, %q", rec.Code, rec.Body.Len(), rec.Header().Get("Content-Type"))
	}

	if level, _ := post(t, h, "/restart", nil); level != web.LevelSuccess {
		t.Errorf("restart level = %q", level)
	}
	st = getState(t, h)
	board := st["leaderboard"].([]any)
	for _, row := range board {
		r := row.(map[string]any)
		if r["spent"].(float64) != 0 {
			t.Errorf("after restart %v, want nothing spent", r)
		}
	}
}

func TestUploadErrors(t *testing.T) {
	h := newServer(t)

	tests := []struct {
		name      string
		file      string
		content   string
		wantLevel string
		wantMsg   string
	}{
		{
			name:      "missing columns",
			file:      "players.csv",
			content:   "Player Name\nVirat\n",
			wantLevel: web.LevelWarning,
			wantMsg:   "Player No, Role",
		},
		{
			name:      "unsupported format",
			file:      "players.txt",
			content:   rosterCSV,
			wantLevel: web.LevelWarning,
			wantMsg:   "unsupported",
		},
		{
			name:      "duplicate numbers",
			file:      "players.csv",
			content:   "Player No,Player Name,Role\n1,A,BAT\n1,B,BOWL\n",
			wantLevel: web.LevelWarning,
			wantMsg:   "duplicate",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, msg := upload(t, h, tt.file, tt.content)
			if level != tt.wantLevel || !strings.Contains(strings.ToLower(msg), strings.ToLower(tt.wantMsg)) {
				t.Errorf("upload = %s %q, want %s containing %q", level, msg, tt.wantLevel, tt.wantMsg)
			}
		})
	}
}

func TestSetupTeams_Validation(t *testing.T) {
	h := newServer(t)

	tests := []struct {
		name string
		form url.Values
	}{
		{name: "too few", form: url.Values{"count": {"1"}, "name_1": {"Kings"}, "budget_1": {"900"}}},
		{name: "blank name", form: url.Values{"count": {"2"}, "name_1": {"Kings"}, "budget_1": {"900"}, "name_2": {" "}, "budget_2": {"900"}}},
		{name: "duplicate", form: url.Values{"count": {"2"}, "name_1": {"Kings"}, "budget_1": {"900"}, "name_2": {"kings"}, "budget_2": {"900"}}},
		{name: "bad budget", form: url.Values{"count": {"2"}, "name_1": {"Kings"}, "budget_1": {"lots"}, "name_2": {"Titans"}, "budget_2": {"900"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if level, msg := post(t, h, "/teams", tt.form); level != web.LevelWarning {
				t.Errorf("POST /teams = %s %q, want warning", level, msg)
			}
		})
	}
}

func TestExport_NoResults(t *testing.T) {
	h := newServer(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/export/results.csv", nil))

	if level, msg := flash(t, rec); level != web.LevelInfo || msg != "No results yet" {
		t.Errorf("export without results = %s %q, want info", level, msg)
	}
}

func TestHealthRoutes(t *testing.T) {
	h := newServer(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, rec.Code)
		}
	}
}
