// Package report renders backtest results and forecasts as text tables.
package report

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/sartorproj/goforecast/dataset"
	"github.com/sartorproj/goforecast/errs"
	"github.com/sartorproj/goforecast/pipeline"
)

// Format selects the table rendering.
type Format string

const (
	Table    Format = "table"
	Markdown Format = "markdown"
	CSV      Format = "csv"
)

// ParseFormat maps a format name to a Format. "md" is accepted for Markdown.
func ParseFormat(name string) (Format, error) {
	switch name {
	case "", string(Table):
		return Table, nil
	case "md", string(Markdown):
		return Markdown, nil
	case string(CSV):
		return CSV, nil
	}
	return "", errs.Configf("format", "unknown output format %q", name)
}

// Metrics writes one row per metric value. Aggregated rows show fold "all".
func Metrics(w io.Writer, rows []pipeline.MetricRow, format Format) error {
	if len(rows) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}
	t := newWriter(w)
	t.AppendHeader(table.Row{"fold", "segment", "metric", "value"})
	for _, r := range rows {
		fold := strconv.Itoa(r.Fold)
		if r.Fold < 0 {
			fold = "all"
		}
		t.AppendRow(table.Row{fold, r.Segment, r.Metric, formatValue(r.Value)})
	}
	return render(t, format)
}

// Folds writes the train and test windows of every fold.
func Folds(w io.Writer, folds []pipeline.FoldInfo, format Format) error {
	if len(folds) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}
	t := newWriter(w)
	t.AppendHeader(table.Row{"fold", "train_start", "train_end", "test_start", "test_end"})
	for _, f := range folds {
		t.AppendRow(table.Row{
			f.Fold,
			f.TrainStart.Format(time.RFC3339),
			f.TrainEnd.Format(time.RFC3339),
			f.TestStart.Format(time.RFC3339),
			f.TestEnd.Format(time.RFC3339),
		})
	}
	return render(t, format)
}

// Forecast writes ds in long format, one row per segment and timestamp. With
// no columns given only the target is shown.
func Forecast(w io.Writer, ds *dataset.Dataset, format Format, columns ...string) error {
	if len(columns) == 0 {
		columns = []string{dataset.TargetColumn}
	}
	for _, c := range columns {
		if !ds.HasColumn(c) {
			return errs.Configf("columns", "forecast has no column %q", c)
		}
	}
	if ds.Len() == 0 || len(ds.Segments()) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}

	t := newWriter(w)
	header := table.Row{"timestamp", "segment"}
	for _, c := range columns {
		header = append(header, c)
	}
	t.AppendHeader(header)
	for _, seg := range ds.Segments() {
		for i, ts := range ds.Timestamps() {
			row := table.Row{ts.Format(time.RFC3339), seg}
			for _, c := range columns {
				row = append(row, formatValue(ds.Value(seg, c, i)))
			}
			t.AppendRow(row)
		}
	}
	return render(t, format)
}

func newWriter(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

func render(t table.Writer, format Format) error {
	switch format {
	case Table, "":
		t.Render()
	case Markdown:
		t.RenderMarkdown()
	case CSV:
		t.RenderCSV()
	default:
		return errs.Configf("format", "unknown output format %q", format)
	}
	return nil
}

func formatValue(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', 4, 64)
}
