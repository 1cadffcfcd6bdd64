package sheet_test

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jensholdgaard/cricket-auction/internal/sheet"
)

func TestRead_CSVPadsShortRows(t *testing.T) {
	in := "\ufeffPlayer No, Player Name ,Role,photo\n1,Virat,BAT,https://x/d/1\n2,Bumrah,BOWL\n"

	tbl, err := sheet.Read("roster.csv", strings.NewReader(in))
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	wantHeader := []string{"Player No", "Player Name", "Role", "photo"}
	for i, h := range wantHeader {
		if tbl.Header[i] != h {
			t.Errorf("Header[%d] = %q, want %q", i, tbl.Header[i], h)
		}
	}
	if len(tbl.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(tbl.Rows))
	}
	if got := len(tbl.Rows[1]); got != 4 {
		t.Errorf("short row width = %d, want 4", got)
	}
	if tbl.Rows[1][3] != "" {
		t.Errorf("padded cell = %q, want empty", tbl.Rows[1][3])
	}
}

func TestXLSX_WriteThenRead(t *testing.T) {
	in := sheet.Table{
		Header: []string{"Player No", "Player Name", "Role"},
		Rows: [][]string{
			{"1", "Virat", "BAT"},
			{"2", "Bumrah", ""},
		},
	}
	path := filepath.Join(t.TempDir(), "roster.xlsx")
	if err := sheet.WriteFile(path, in); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	got, err := sheet.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if got.Column("Role") != 2 {
		t.Errorf("Column(Role) = %d, want 2", got.Column("Role"))
	}
	if len(got.Rows) != 2 || got.Rows[0][1] != "Virat" || got.Rows[1][2] != "" {
		t.Errorf("rows = %v, want Virat row and padded Bumrah row", got.Rows)
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	err := sheet.WriteCSV(&buf, sheet.Table{
		Header: []string{"Team", "Price"},
		Rows:   [][]string{{"Kings, XI", "60"}},
	})
	if err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}
	want := "Team,Price\n\"Kings, XI\",60\n"
	if buf.String() != want {
		t.Errorf("WriteCSV() = %q, want %q", buf.String(), want)
	}
}

func TestFormatOf(t *testing.T) {
	tests := []struct {
		name    string
		want    sheet.Format
		wantErr bool
	}{
		{name: "players.xlsx", want: sheet.XLSX},
		{name: "PLAYERS.XLSX", want: sheet.XLSX},
		{name: "players.csv", want: sheet.CSV},
		{name: "players.xls", wantErr: true},
		{name: "players", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := sheet.FormatOf(tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("FormatOf() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, sheet.ErrUnsupportedFormat) {
				t.Errorf("FormatOf() error = %v, want ErrUnsupportedFormat", err)
			}
			if got != tt.want {
				t.Errorf("FormatOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTable_AddColumnAndMissing(t *testing.T) {
	tbl := sheet.Table{Header: []string{"photo"}, Rows: [][]string{{"a"}, {"b"}}}

	if err := tbl.AddColumn("downloaded_photo", []string{"x"}); err == nil {
		t.Error("AddColumn() with short values should fail")
	}
	if err := tbl.AddColumn("downloaded_photo", []string{"x", ""}); err != nil {
		t.Fatalf("AddColumn() error = %v", err)
	}
	if tbl.Rows[0][1] != "x" || tbl.Rows[1][1] != "" {
		t.Errorf("rows = %v after AddColumn", tbl.Rows)
	}

	missing := tbl.Missing("Player No", "photo", "Role")
	if len(missing) != 2 || missing[0] != "Player No" || missing[1] != "Role" {
		t.Errorf("Missing() = %v, want [Player No Role]", missing)
	}
}
