package models

import (
	"fmt"
	"math"
	"time"

	"github.com/sartorproj/goforecast/dataset"
	"github.com/sartorproj/goforecast/errs"
)

// featureColumns lists every column except the target in dataset order.
func featureColumns(ds *dataset.Dataset) []string {
	var out []string
	for _, c := range ds.Columns() {
		if c != dataset.TargetColumn {
			out = append(out, c)
		}
	}
	return out
}

// trainingRows collects the rows of seg where the target and every feature
// are observed.
func trainingRows(ds *dataset.Dataset, seg string, features []string) ([][]float64, []float64) {
	var x [][]float64
	var y []float64
	for i := 0; i < ds.Len(); i++ {
		target := ds.Value(seg, dataset.TargetColumn, i)
		if math.IsNaN(target) {
			continue
		}
		row, missing := featureRow(ds, seg, features, i)
		if missing != "" {
			continue
		}
		x = append(x, row)
		y = append(y, target)
	}
	return x, y
}

// featureRow returns row i of the features, or the name of the first
// missing feature.
func featureRow(ds *dataset.Dataset, seg string, features []string, i int) ([]float64, string) {
	row := make([]float64, len(features))
	for j, c := range features {
		v := ds.Value(seg, c, i)
		if math.IsNaN(v) {
			return nil, c
		}
		row[j] = v
	}
	return row, ""
}

// futureRows builds the feature matrix of the rows from first to the end.
func futureRows(ds *dataset.Dataset, seg string, features []string, first int) ([][]float64, error) {
	for _, c := range features {
		if !ds.HasColumn(c) {
			return nil, fmt.Errorf("feature column %q seen during fit is missing", c)
		}
	}
	x := make([][]float64, 0, ds.Len()-first)
	for i := first; i < ds.Len(); i++ {
		row, missing := featureRow(ds, seg, features, i)
		if missing != "" {
			return nil, errs.Integrityf("", missing, "segment %q has no value at %s", seg, ds.Timestamp(i).Format(time.RFC3339))
		}
		x = append(x, row)
	}
	return x, nil
}

// PerSegmentModel trains an independent regressor for every segment.
type PerSegmentModel struct {
	base     Regressor
	features []string
	models   map[string]Regressor
}

// NewPerSegment wraps base so each segment gets its own clone.
func NewPerSegment(base Regressor) *PerSegmentModel {
	return &PerSegmentModel{base: base}
}

// NewLinearPerSegment is a per-segment linear regression.
func NewLinearPerSegment() *PerSegmentModel {
	return NewPerSegment(NewLinearRegression())
}

// Fit trains one regressor per segment on the complete rows.
func (m *PerSegmentModel) Fit(ds *dataset.Dataset) error {
	features := featureColumns(ds)
	trained := make(map[string]Regressor, len(ds.Segments()))
	for _, seg := range ds.Segments() {
		x, y := trainingRows(ds, seg, features)
		if len(y) == 0 {
			return fmt.Errorf("per-segment model: segment %q has no complete training rows", seg)
		}
		r := m.base.Clone()
		if err := r.Fit(x, y); err != nil {
			return fmt.Errorf("per-segment model: segment %q: %w", seg, err)
		}
		trained[seg] = r
	}
	m.features, m.models = features, trained
	return nil
}

// Forecast predicts the target of the last predictionSize rows.
func (m *PerSegmentModel) Forecast(ds *dataset.Dataset, predictionSize int) (*dataset.Dataset, error) {
	if m.models == nil {
		return nil, errs.NotFitted("PerSegmentModel")
	}
	if err := checkWindow("per-segment model", ds, predictionSize, 0); err != nil {
		return nil, err
	}
	return fillTarget(ds, predictionSize, func(seg string, target []float64, first int) error {
		r, ok := m.models[seg]
		if !ok {
			return fmt.Errorf("per-segment model: segment %q was not seen during fit", seg)
		}
		x, err := futureRows(ds, seg, m.features, first)
		if err != nil {
			return err
		}
		pred, err := r.Predict(x)
		if err != nil {
			return err
		}
		copy(target[first:], pred)
		return nil
	})
}

// ContextSize is zero: features carry the history.
func (m *PerSegmentModel) ContextSize() int { return 0 }

// Clone returns an unfitted copy.
func (m *PerSegmentModel) Clone() Model {
	return NewPerSegment(m.base.Clone())
}

// MultiSegmentModel trains a single regressor on the rows of all segments.
type MultiSegmentModel struct {
	base     Regressor
	features []string
	model    Regressor
}

// NewMultiSegment wraps base so one fit is shared by every segment.
func NewMultiSegment(base Regressor) *MultiSegmentModel {
	return &MultiSegmentModel{base: base}
}

// NewLinearMultiSegment is a pooled linear regression.
func NewLinearMultiSegment() *MultiSegmentModel {
	return NewMultiSegment(NewLinearRegression())
}

// Fit trains on the complete rows of every segment.
func (m *MultiSegmentModel) Fit(ds *dataset.Dataset) error {
	features := featureColumns(ds)
	var x [][]float64
	var y []float64
	for _, seg := range ds.Segments() {
		sx, sy := trainingRows(ds, seg, features)
		x = append(x, sx...)
		y = append(y, sy...)
	}
	if len(y) == 0 {
		return fmt.Errorf("multi-segment model: no complete training rows")
	}
	r := m.base.Clone()
	if err := r.Fit(x, y); err != nil {
		return fmt.Errorf("multi-segment model: %w", err)
	}
	m.features, m.model = features, r
	return nil
}

// Forecast predicts the target of the last predictionSize rows.
func (m *MultiSegmentModel) Forecast(ds *dataset.Dataset, predictionSize int) (*dataset.Dataset, error) {
	if m.model == nil {
		return nil, errs.NotFitted("MultiSegmentModel")
	}
	if err := checkWindow("multi-segment model", ds, predictionSize, 0); err != nil {
		return nil, err
	}
	return fillTarget(ds, predictionSize, func(seg string, target []float64, first int) error {
		x, err := futureRows(ds, seg, m.features, first)
		if err != nil {
			return err
		}
		pred, err := m.model.Predict(x)
		if err != nil {
			return err
		}
		copy(target[first:], pred)
		return nil
	})
}

// ContextSize is zero: features carry the history.
func (m *MultiSegmentModel) ContextSize() int { return 0 }

// Clone returns an unfitted copy.
func (m *MultiSegmentModel) Clone() Model {
	return NewMultiSegment(m.base.Clone())
}
