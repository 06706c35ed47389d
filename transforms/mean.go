package transforms

import (
	"fmt"
	"math"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"

	"github.com/sartorproj/goforecast/dataset"
	"github.com/sartorproj/goforecast/errs"
)

// Mean adds the rolling mean of the previous Window values of a column:
// <in>_mean_<w>[t] = mean(in[t-w .. t-1]). Rows whose window touches a
// missing value are NaN.
type Mean struct {
	InColumn  string
	Window    int
	OutColumn string
	fitted    bool
}

// NewMean creates a rolling mean transform. An empty inColumn means the target.
func NewMean(inColumn string, window int) (*Mean, error) {
	if inColumn == "" {
		inColumn = dataset.TargetColumn
	}
	if window < 1 {
		return nil, errs.Configf("window", "must be positive, got %d", window)
	}
	return &Mean{InColumn: inColumn, Window: window, OutColumn: fmt.Sprintf("%s_mean_%d", inColumn, window)}, nil
}

func (m *Mean) String() string { return fmt.Sprintf("Mean(%s, %d)", m.InColumn, m.Window) }

// RequiresRefit is true: the window slides over forecasted values.
func (m *Mean) RequiresRefit() bool { return true }

// MinHistory is one full window plus the current row.
func (m *Mean) MinHistory() int { return m.Window + 1 }

// Fit checks that ds holds at least one full window.
func (m *Mean) Fit(ds *dataset.Dataset) error {
	if err := requireColumn(ds, m.String(), m.InColumn); err != nil {
		return err
	}
	if ds.Len() < m.MinHistory() {
		return errs.Integrityf(m.String(), m.InColumn, "window %d needs %d rows of history, have %d",
			m.Window, m.MinHistory(), ds.Len())
	}
	m.fitted = true
	return nil
}

// Transform adds the rolling mean column.
func (m *Mean) Transform(ds *dataset.Dataset) (*dataset.Dataset, error) {
	if !m.fitted {
		return nil, errs.NotFitted(m.String())
	}
	if err := requireColumn(ds, m.String(), m.InColumn); err != nil {
		return nil, err
	}

	out := ds.Copy()
	for _, seg := range ds.Segments() {
		values, _ := ds.Column(seg, m.InColumn)
		if err := out.Set(seg, m.OutColumn, m.previousMeans(values)); err != nil {
			return nil, err
		}
	}
	if ds.IsRegressor(m.InColumn) {
		out.MarkRegressor(m.OutColumn)
	}
	return out, nil
}

// previousMeans runs the moving average separately over every run of
// observed values.
func (m *Mean) previousMeans(values []float64) []float64 {
	result := make([]float64, len(values))
	for i := range result {
		result[i] = math.NaN()
	}

	start := 0
	for start < len(values) {
		if math.IsNaN(values[start]) {
			start++
			continue
		}
		end := start
		for end < len(values) && !math.IsNaN(values[end]) {
			end++
		}
		if end-start >= m.Window {
			sma := trend.NewSmaWithPeriod[float64](m.Window)
			means := helper.ChanToSlice(sma.Compute(helper.SliceToChan(values[start:end])))
			// The last mean ends at the last value of the run and feeds the row after it.
			offset := end - start - len(means)
			for j, v := range means {
				if row := start + offset + j + 1; row < len(values) {
					result[row] = v
				}
			}
		}
		start = end
	}
	return result
}

// Clone returns an unfitted copy.
func (m *Mean) Clone() Transform {
	return &Mean{InColumn: m.InColumn, Window: m.Window, OutColumn: m.OutColumn}
}
