// Package metrics scores forecasts against actual values.
//
// A Metric compares the target column of two datasets with the same
// timestamps and segments. In PerSegment mode the result has one entry per
// segment; in Macro mode it has the single key AllSegments holding the mean
// over segments.
//
//	mae := metrics.MAE(metrics.PerSegment)
//	scores, err := mae.Compute(actual, forecast)
//	fmt.Println(scores["store_1"])
package metrics

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/sartorproj/goforecast/dataset"
	"github.com/sartorproj/goforecast/errs"
)

// Mode selects per-segment or averaged output.
type Mode string

const (
	PerSegment Mode = "per-segment"
	Macro      Mode = "macro"
)

// AllSegments is the result key of Macro mode.
const AllSegments = "all"

// Metric scores the target of yPred against yTrue.
type Metric interface {
	Name() string
	Mode() Mode
	Compute(yTrue, yPred *dataset.Dataset) (map[string]float64, error)
}

type metric struct {
	name  string
	mode  Mode
	score func(yTrue, yPred []float64) float64
}

func (m *metric) Name() string { return m.name }
func (m *metric) Mode() Mode   { return m.mode }

func (m *metric) Compute(yTrue, yPred *dataset.Dataset) (map[string]float64, error) {
	if err := checkAligned(yTrue, yPred); err != nil {
		return nil, fmt.Errorf("%s: %w", m.name, err)
	}

	perSegment := make(map[string]float64, len(yTrue.Segments()))
	for _, seg := range yTrue.Segments() {
		t, _ := yTrue.Column(seg, dataset.TargetColumn)
		p, _ := yPred.Column(seg, dataset.TargetColumn)
		t, p = observedPairs(t, p)
		if len(t) == 0 {
			perSegment[seg] = math.NaN()
			continue
		}
		perSegment[seg] = m.score(t, p)
	}

	if m.mode == Macro {
		values := make([]float64, 0, len(perSegment))
		for _, seg := range yTrue.Segments() {
			values = append(values, perSegment[seg])
		}
		return map[string]float64{AllSegments: NaNMean(values)}, nil
	}
	return perSegment, nil
}

func checkAligned(yTrue, yPred *dataset.Dataset) error {
	if !yTrue.HasColumn(dataset.TargetColumn) || !yPred.HasColumn(dataset.TargetColumn) {
		return errors.New("both datasets need a target column")
	}
	if yTrue.Len() != yPred.Len() || !yTrue.Start().Equal(yPred.Start()) {
		return fmt.Errorf("timestamps differ: %d rows from %s vs %d rows from %s",
			yTrue.Len(), yTrue.Start(), yPred.Len(), yPred.Start())
	}
	trueSegs, predSegs := yTrue.Segments(), yPred.Segments()
	if len(trueSegs) != len(predSegs) {
		return fmt.Errorf("segments differ: %v vs %v", trueSegs, predSegs)
	}
	for i := range trueSegs {
		if trueSegs[i] != predSegs[i] {
			return fmt.Errorf("segments differ: %v vs %v", trueSegs, predSegs)
		}
	}
	return nil
}

// NaNMean is the mean of the non-NaN values, or NaN when there are none.
func NaNMean(values []float64) float64 {
	observed := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			observed = append(observed, v)
		}
	}
	if len(observed) == 0 {
		return math.NaN()
	}
	return stat.Mean(observed, nil)
}

// observedPairs drops the positions where either value is missing.
func observedPairs(t, p []float64) ([]float64, []float64) {
	var ot, op []float64
	for i := range t {
		if math.IsNaN(t[i]) || math.IsNaN(p[i]) {
			continue
		}
		ot = append(ot, t[i])
		op = append(op, p[i])
	}
	return ot, op
}

// MAE is the mean absolute error.
func MAE(mode Mode) Metric {
	return &metric{name: "MAE", mode: mode, score: func(t, p []float64) float64 {
		return floats.Distance(t, p, 1) / float64(len(t))
	}}
}

// MSE is the mean squared error.
func MSE(mode Mode) Metric {
	return &metric{name: "MSE", mode: mode, score: func(t, p []float64) float64 {
		d := floats.Distance(t, p, 2)
		return d * d / float64(len(t))
	}}
}

// MAPE is the mean absolute percentage error, in percent.
func MAPE(mode Mode) Metric {
	return &metric{name: "MAPE", mode: mode, score: func(t, p []float64) float64 {
		terms := make([]float64, len(t))
		for i := range t {
			terms[i] = math.Abs((t[i] - p[i]) / t[i])
		}
		return 100 * stat.Mean(terms, nil)
	}}
}

// SMAPE is the symmetric mean absolute percentage error, in percent.
// Pairs where both values are zero count as zero error.
func SMAPE(mode Mode) Metric {
	return &metric{name: "SMAPE", mode: mode, score: func(t, p []float64) float64 {
		terms := make([]float64, len(t))
		for i := range t {
			if den := math.Abs(t[i]) + math.Abs(p[i]); den > 0 {
				terms[i] = 2 * math.Abs(t[i]-p[i]) / den
			}
		}
		return 100 * stat.Mean(terms, nil)
	}}
}

// ByName returns the metric called name (case-sensitive: MAE, MSE, MAPE, SMAPE).
func ByName(name string, mode Mode) (Metric, error) {
	if mode != PerSegment && mode != Macro {
		return nil, errs.Configf("mode", "unknown metric mode %q", mode)
	}
	switch name {
	case "MAE":
		return MAE(mode), nil
	case "MSE":
		return MSE(mode), nil
	case "MAPE":
		return MAPE(mode), nil
	case "SMAPE":
		return SMAPE(mode), nil
	}
	return nil, errs.Configf("metrics", "unknown metric %q", name)
}
