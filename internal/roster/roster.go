// Package roster converts between uploaded spreadsheets and auction records.
package roster

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/jensholdgaard/cricket-auction/internal/auction"
	"github.com/jensholdgaard/cricket-auction/internal/sheet"
)

// Column names of the roster upload.
const (
	ColPlayerNo   = "Player No"
	ColPlayerName = "Player Name"
	ColRole       = "Role"
)

// RequiredColumns must all be present in an uploaded roster.
var RequiredColumns = []string{ColPlayerNo, ColPlayerName, ColRole}

// Errors returned by Parse.
var (
	ErrMissingColumns  = errors.New("missing columns")
	ErrInvalidPlayerNo = errors.New("invalid player number")
)

// Parse validates the required columns and returns one player per non-blank
// row. Columns beyond the required ones are kept in Player.Extra.
func Parse(t sheet.Table) ([]auction.Player, error) {
	if missing := t.Missing(RequiredColumns...); len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}

	noCol, nameCol, roleCol := t.Column(ColPlayerNo), t.Column(ColPlayerName), t.Column(ColRole)

	var players []auction.Player
	for i, row := range t.Rows {
		if blank(row) {
			continue
		}
		no, err := parseNo(row[noCol])
		if err != nil {
			// Row numbers are 1-based and count the header.
			return nil, fmt.Errorf("row %d: %w: %q", i+2, ErrInvalidPlayerNo, row[noCol])
		}

		p := auction.Player{
			No:   no,
			Name: strings.TrimSpace(row[nameCol]),
			Role: strings.TrimSpace(row[roleCol]),
		}
		for j, h := range t.Header {
			if j == noCol || j == nameCol || j == roleCol || h == "" {
				continue
			}
			if p.Extra == nil {
				p.Extra = make(map[string]string)
			}
			p.Extra[h] = row[j]
		}
		players = append(players, p)
	}
	return players, nil
}

// parseNo accepts integers and integral floats such as "7.0", which is how
// spreadsheets commonly store numbers.
func parseNo(s string) (int, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, ErrInvalidPlayerNo
	}
	return int(f), nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// ResultHeader is the ledger export schema.
var ResultHeader = []string{"Player No", "Player Name", "Role", "Base Price", "Sold To", "Sold Price"}

// ResultsTable renders the ledger for export.
func ResultsTable(results []auction.Result) sheet.Table {
	t := sheet.Table{Header: append([]string(nil), ResultHeader...)}
	for _, r := range results {
		t.Rows = append(t.Rows, []string{
			strconv.Itoa(r.PlayerNo),
			r.PlayerName,
			r.Role,
			strconv.Itoa(r.BasePrice),
			r.SoldTo(),
			strconv.Itoa(r.Price),
		})
	}
	return t
}

// TeamsTable renders one row per bought player, grouped by team.
func TeamsTable(teams []auction.Team) sheet.Table {
	t := sheet.Table{Header: []string{"Team", ColPlayerNo, ColPlayerName, ColRole}}
	for _, team := range teams {
		for _, p := range team.Players {
			t.Rows = append(t.Rows, []string{team.Name, strconv.Itoa(p.No), p.Name, p.Role})
		}
	}
	return t
}
