package dataset

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// CSVOptions holds options for loading long-format CSV data.
//
// Every row holds one timestamp of one segment. The value column becomes the
// target; every other column except the date and segment columns is loaded
// as an additional float column.
type CSVOptions struct {
	DateColumn    string        // Column name for timestamps (default: "timestamp")
	SegmentColumn string        // Column name for segment ids (optional)
	ValueColumn   string        // Column loaded as the target (default: "target"; empty loads no target)
	SegmentFilter string        // Keep only this segment (optional)
	DateFormat    string        // Date format (default: "2006-01-02")
	Delimiter     rune          // Field delimiter (default: ',')
	Freq          time.Duration // Time step; inferred from the smallest gap when zero
}

// DefaultSegment names the segment of data without a segment column.
const DefaultSegment = "main"

// DefaultCSVOptions returns default options for CSV loading.
func DefaultCSVOptions() *CSVOptions {
	return &CSVOptions{
		DateColumn:    "timestamp",
		SegmentColumn: "segment",
		ValueColumn:   TargetColumn,
		DateFormat:    "2006-01-02",
		Delimiter:     ',',
	}
}

// LoadCSV loads a dataset from a CSV file.
func LoadCSV(filename string, opts *CSVOptions) (*Dataset, error) {
	if opts == nil {
		opts = DefaultCSVOptions()
	}

	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return LoadCSVFromReader(file, opts)
}

type csvCell struct {
	t      time.Time
	seg    string
	values []float64
}

// LoadCSVFromReader loads a dataset from an io.Reader.
func LoadCSVFromReader(r io.Reader, opts *CSVOptions) (*Dataset, error) {
	if opts == nil {
		opts = DefaultCSVOptions()
	}

	reader := csv.NewReader(r)
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	dateIdx, segIdx := -1, -1
	var valueIdx []int
	var names []string
	for i, h := range header {
		h = strings.TrimSpace(strings.Trim(h, "\""))
		switch {
		case h == opts.DateColumn || (dateIdx == -1 && (h == "ds" || h == "date" || h == "timestamp")):
			dateIdx = i
		case opts.SegmentColumn != "" && h == opts.SegmentColumn,
			segIdx == -1 && (h == "unique_id" || h == "segment"):
			segIdx = i
		default:
			name := h
			if opts.ValueColumn != "" && h == opts.ValueColumn {
				name = TargetColumn
			}
			valueIdx = append(valueIdx, i)
			names = append(names, name)
		}
	}
	if dateIdx == -1 {
		return nil, errors.New("no date column found in CSV")
	}
	if len(valueIdx) == 0 {
		return nil, errors.New("no value columns found in CSV")
	}

	var cells []csvCell
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		seg := DefaultSegment
		if segIdx >= 0 && segIdx < len(record) {
			seg = strings.TrimSpace(strings.Trim(record[segIdx], "\""))
		}
		if opts.SegmentFilter != "" && seg != opts.SegmentFilter {
			continue
		}

		ts, err := parseDate(strings.TrimSpace(strings.Trim(record[dateIdx], "\"")), opts.DateFormat)
		if err != nil {
			return nil, err
		}

		values := make([]float64, len(valueIdx))
		for j, idx := range valueIdx {
			values[j] = math.NaN()
			if idx >= len(record) {
				continue
			}
			valStr := strings.TrimSpace(strings.Trim(record[idx], "\""))
			if valStr == "" || valStr == "NA" || valStr == "NaN" || valStr == "null" {
				continue
			}
			if v, err := strconv.ParseFloat(valStr, 64); err == nil {
				values[j] = v
			}
		}
		cells = append(cells, csvCell{t: ts, seg: seg, values: values})
	}

	if len(cells) == 0 {
		return nil, errors.New("no valid data found in CSV")
	}
	return assemble(cells, names, opts.Freq)
}

// assemble lays the parsed rows onto a regular time index.
func assemble(cells []csvCell, names []string, freq time.Duration) (*Dataset, error) {
	sort.Slice(cells, func(i, j int) bool { return cells[i].t.Before(cells[j].t) })
	start, end := cells[0].t, cells[len(cells)-1].t

	if freq <= 0 {
		for i := 1; i < len(cells); i++ {
			gap := cells[i].t.Sub(cells[i-1].t)
			if gap > 0 && (freq <= 0 || gap < freq) {
				freq = gap
			}
		}
		if freq <= 0 {
			freq = 24 * time.Hour
		}
	}
	if end.Sub(start)%freq != 0 {
		return nil, fmt.Errorf("timestamps are not aligned to frequency %s", freq)
	}

	d := New(freq, start, int(end.Sub(start)/freq)+1)
	columns := make(map[string][][]float64)
	for _, c := range cells {
		i := d.Index(c.t)
		if i < 0 {
			return nil, fmt.Errorf("timestamp %s is not aligned to frequency %s", c.t.Format(time.RFC3339), freq)
		}
		cols, ok := columns[c.seg]
		if !ok {
			cols = make([][]float64, len(names))
			for j := range cols {
				cols[j] = nanSlice(d.Len())
			}
			columns[c.seg] = cols
		}
		for j, v := range c.values {
			cols[j][i] = v
		}
	}
	for seg, cols := range columns {
		for j, name := range names {
			if err := d.Set(seg, name, cols[j]); err != nil {
				return nil, err
			}
		}
	}
	return d, nil
}

func parseDate(s, format string) (time.Time, error) {
	formats := []string{
		format,
		"2006-01-02",
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006/01/02",
		"01/02/2006",
	}
	for _, f := range formats {
		if f == "" {
			continue
		}
		if ts, err := time.Parse(f, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse date %q", s)
}

// SaveCSV writes the dataset in long format: timestamp, segment, then every column.
func SaveCSV(d *Dataset, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	if err := WriteCSV(d, writer); err != nil {
		return err
	}
	return writer.Flush()
}

// WriteCSV writes the dataset in long format to w.
func WriteCSV(d *Dataset, w io.Writer) error {
	cw := csv.NewWriter(w)
	columns := d.Columns()
	if err := cw.Write(append([]string{"timestamp", "segment"}, columns...)); err != nil {
		return err
	}

	row := make([]string, len(columns)+2)
	for _, seg := range d.Segments() {
		for i, t := range d.timestamps {
			row[0] = t.Format(time.RFC3339)
			row[1] = seg
			for j, c := range columns {
				v := d.data[seg][c][i]
				if math.IsNaN(v) {
					row[j+2] = ""
				} else {
					row[j+2] = strconv.FormatFloat(v, 'f', -1, 64)
				}
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}
