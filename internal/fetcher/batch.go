package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/cricket-auction/internal/config"
	"github.com/jensholdgaard/cricket-auction/internal/sheet"
)

// Report summarizes a batch run.
type Report struct {
	Rows       int
	Downloaded int
	Blank      int
	Invalid    int
	Failed     int
}

// Batch walks a spreadsheet of links and downloads each photo in row order.
type Batch struct {
	fetcher      Fetcher
	dir          string
	linkColumn   string
	outputColumn string
	logger       *slog.Logger
	tracer       trace.Tracer
}

// NewBatch creates a Batch that saves into cfg.DownloadDir.
func NewBatch(f Fetcher, cfg config.FetcherConfig, logger *slog.Logger, tp trace.TracerProvider) *Batch {
	return &Batch{
		fetcher:      f,
		dir:          cfg.DownloadDir,
		linkColumn:   cfg.LinkColumn,
		outputColumn: cfg.OutputColumn,
		logger:       logger,
		tracer:       tp.Tracer(instrumentation),
	}
}

// Run downloads every linked photo and returns a copy of t with the output
// column appended. Rows that are blank, unparseable or fail to download get
// an empty cell. Cancelling ctx aborts the run.
func (b *Batch) Run(ctx context.Context, t sheet.Table) (sheet.Table, Report, error) {
	col := t.Column(b.linkColumn)
	if col < 0 {
		return sheet.Table{}, Report{}, fmt.Errorf("%w: %q", ErrMissingColumn, b.linkColumn)
	}

	ctx, span := b.tracer.Start(ctx, "Batch.Run",
		trace.WithAttributes(attribute.Int("batch.rows", len(t.Rows))),
	)
	defer span.End()

	out := copyTable(t)
	paths := make([]string, len(out.Rows))
	report := Report{Rows: len(out.Rows)}

	for i, row := range out.Rows {
		if err := ctx.Err(); err != nil {
			return sheet.Table{}, report, fmt.Errorf("batch aborted at row %d: %w", i, err)
		}

		link := strings.TrimSpace(row[col])
		if link == "" {
			report.Blank++
			continue
		}
		id, ok := ExtractFileID(link)
		if !ok {
			report.Invalid++
			b.logger.WarnContext(ctx, "unrecognized photo link",
				slog.Int("row", i),
				slog.String("link", link),
			)
			continue
		}

		dest := filepath.Join(b.dir, fmt.Sprintf("photo_%d.jpg", i))
		if err := b.fetcher.Fetch(ctx, id, dest); err != nil {
			report.Failed++
			b.logger.WarnContext(ctx, "photo download failed",
				slog.Int("row", i),
				slog.String("file_id", id),
				slog.Any("error", err),
			)
			continue
		}
		paths[i] = dest
		report.Downloaded++
	}

	if err := out.AddColumn(b.outputColumn, paths); err != nil {
		return sheet.Table{}, report, err
	}

	span.SetAttributes(
		attribute.Int("batch.downloaded", report.Downloaded),
		attribute.Int("batch.failed", report.Failed),
	)
	b.logger.InfoContext(ctx, "photo batch complete",
		slog.Int("rows", report.Rows),
		slog.Int("downloaded", report.Downloaded),
		slog.Int("blank", report.Blank),
		slog.Int("invalid", report.Invalid),
		slog.Int("failed", report.Failed),
	)
	return out, report, nil
}

func copyTable(t sheet.Table) sheet.Table {
	out := sheet.Table{
		Header: append([]string(nil), t.Header...),
		Rows:   make([][]string, len(t.Rows)),
	}
	for i, r := range t.Rows {
		out.Rows[i] = append([]string(nil), r...)
	}
	return out
}
