// Package fetcher downloads player photos referenced by shared-drive links
// in a spreadsheet and records where each one was saved.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentation = "github.com/jensholdgaard/cricket-auction/internal/fetcher"

// Errors returned by the fetcher.
var (
	ErrMissingColumn    = errors.New("missing link column")
	ErrUnexpectedStatus = errors.New("unexpected response status")
)

var (
	pathID  = regexp.MustCompile(`/d/([a-zA-Z0-9_-]+)`)
	queryID = regexp.MustCompile(`id=([a-zA-Z0-9_-]+)`)
)

// ExtractFileID returns the file id from a sharing link of the form
// .../d/<id>/... or ...?id=<id>. The path form is tried first.
func ExtractFileID(link string) (string, bool) {
	for _, re := range []*regexp.Regexp{pathID, queryID} {
		if m := re.FindStringSubmatch(link); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// Fetcher downloads a single file by id.
type Fetcher interface {
	Fetch(ctx context.Context, fileID, dest string) error
}

// Client downloads files through a direct-download URL template.
type Client struct {
	http     *http.Client
	endpoint string
	tracer   trace.Tracer
}

// NewClient wraps httpClient's transport with OpenTelemetry instrumentation.
// endpoint must contain a single %s for the file id.
func NewClient(httpClient *http.Client, endpoint string, tp trace.TracerProvider) *Client {
	c := *httpClient
	base := c.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	c.Transport = otelhttp.NewTransport(base, otelhttp.WithTracerProvider(tp))

	return &Client{
		http:     &c,
		endpoint: endpoint,
		tracer:   tp.Tracer(instrumentation),
	}
}

// URL returns the download URL for fileID.
func (c *Client) URL(fileID string) string {
	return fmt.Sprintf(c.endpoint, fileID)
}

// Fetch streams the file to dest. Any partial file is removed on failure.
// There is no retry.
func (c *Client) Fetch(ctx context.Context, fileID, dest string) (err error) {
	ctx, span := c.tracer.Start(ctx, "Client.Fetch",
		trace.WithAttributes(attribute.String("file.id", fileID)),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(fileID), nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("requesting %s: %w", fileID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	f, err := os.Create(filepath.Clean(dest))
	if err != nil {
		return fmt.Errorf("creating %s: %w", dest, err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		_ = f.Close()
		_ = os.Remove(dest)
		return fmt.Errorf("writing %s: %w", dest, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(dest)
		return fmt.Errorf("closing %s: %w", dest, err)
	}
	return nil
}
