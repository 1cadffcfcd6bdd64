package fetcher_test

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"go.opentelemetry.io/otel/trace/noop"

	"github.com/jensholdgaard/cricket-auction/internal/config"
	"github.com/jensholdgaard/cricket-auction/internal/fetcher"
	"github.com/jensholdgaard/cricket-auction/internal/sheet"
)

func TestExtractFileID(t *testing.T) {
	tests := []struct {
		link   string
		want   string
		wantOK bool
	}{
		{link: "https://drive.google.com/file/d/1AbC_d-9/view?usp=sharing", want: "1AbC_d-9", wantOK: true},
		{link: "https://drive.google.com/open?id=XYZ123", want: "XYZ123", wantOK: true},
		{link: "https://drive.google.com/file/d/pathID/view?id=queryID", want: "pathID", wantOK: true},
		{link: "https://example.com/photo.jpg", wantOK: false},
		{link: "", wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.link, func(t *testing.T) {
			got, ok := fetcher.ExtractFileID(tt.link)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("ExtractFileID(%q) = %q, %v, want %q, %v", tt.link, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("id") {
		case "good":
			_, _ = w.Write([]byte("jpegbytes"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newClient(srv *httptest.Server) *fetcher.Client {
	return fetcher.NewClient(srv.Client(), srv.URL+"/uc?export=download&id=%s", noop.NewTracerProvider())
}

func TestClient_Fetch(t *testing.T) {
	srv := newServer(t)
	c := newClient(srv)
	dir := t.TempDir()

	dest := filepath.Join(dir, "ok.jpg")
	if err := c.Fetch(context.Background(), "good", dest); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil || string(data) != "jpegbytes" {
		t.Errorf("file = %q, %v, want jpegbytes", data, err)
	}

	missing := filepath.Join(dir, "missing.jpg")
	err = c.Fetch(context.Background(), "nope", missing)
	if !errors.Is(err, fetcher.ErrUnexpectedStatus) {
		t.Errorf("Fetch() error = %v, want %v", err, fetcher.ErrUnexpectedStatus)
	}
	if _, statErr := os.Stat(missing); !os.IsNotExist(statErr) {
		t.Errorf("non-200 response left a file behind: %v", statErr)
	}
}

func TestBatch_Run(t *testing.T) {
	srv := newServer(t)
	dir := t.TempDir()
	cfg := config.Default().Fetcher
	cfg.DownloadDir = dir

	b := fetcher.NewBatch(newClient(srv), cfg, slog.Default(), noop.NewTracerProvider())
	in := sheet.Table{
		Header: []string{"name", "photo"},
		Rows: [][]string{
			{"blank", ""},
			{"malformed", "https://example.com/photo.jpg"},
			{"valid", "https://drive.google.com/file/d/good/view"},
		},
	}

	out, report, err := b.Run(context.Background(), in)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	col := out.Column("downloaded_photo")
	if col != 2 {
		t.Fatalf("downloaded_photo column = %d, want 2", col)
	}
	want := []string{"", "", filepath.Join(dir, "photo_2.jpg")}
	for i, w := range want {
		if out.Rows[i][col] != w {
			t.Errorf("row %d downloaded_photo = %q, want %q", i, out.Rows[i][col], w)
		}
	}
	if report != (fetcher.Report{Rows: 3, Downloaded: 1, Blank: 1, Invalid: 1}) {
		t.Errorf("Run() report = %+v", report)
	}
	if len(in.Header) != 2 {
		t.Errorf("Run() modified its input header: %v", in.Header)
	}
}

type failingFetcher struct{ calls int }

func (f *failingFetcher) Fetch(context.Context, string, string) error {
	f.calls++
	return fetcher.ErrUnexpectedStatus
}

func TestBatch_Run_FailuresAreNonFatal(t *testing.T) {
	f := &failingFetcher{}
	b := fetcher.NewBatch(f, config.Default().Fetcher, slog.Default(), noop.NewTracerProvider())
	in := sheet.Table{
		Header: []string{"photo"},
		Rows:   [][]string{{"?id=a"}, {"?id=b"}},
	}

	out, report, err := b.Run(context.Background(), in)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if f.calls != 2 || report.Failed != 2 {
		t.Errorf("calls = %d, failed = %d, want 2 and 2", f.calls, report.Failed)
	}
	if out.Rows[0][1] != "" || out.Rows[1][1] != "" {
		t.Errorf("failed rows = %v, want empty cells", out.Rows)
	}
}

func TestBatch_Run_Errors(t *testing.T) {
	cfg := config.Default().Fetcher
	b := fetcher.NewBatch(&failingFetcher{}, cfg, slog.Default(), noop.NewTracerProvider())

	_, _, err := b.Run(context.Background(), sheet.Table{Header: []string{"link"}})
	if !errors.Is(err, fetcher.ErrMissingColumn) {
		t.Errorf("Run() error = %v, want %v", err, fetcher.ErrMissingColumn)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = b.Run(ctx, sheet.Table{Header: []string{"photo"}, Rows: [][]string{{"?id=a"}}})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want %v", err, context.Canceled)
	}
}
