package transforms

import (
	"fmt"
	"math"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/sartorproj/goforecast/dataset"
	"github.com/sartorproj/goforecast/errs"
)

type moments struct {
	mean, std float64
}

// StandardScaler standardizes a column in place per segment.
type StandardScaler struct {
	InColumn string
	id       string
	params   map[string]moments
}

// NewStandardScaler creates a scaler. An empty inColumn means the target.
func NewStandardScaler(inColumn string) *StandardScaler {
	if inColumn == "" {
		inColumn = dataset.TargetColumn
	}
	return &StandardScaler{InColumn: inColumn, id: uuid.NewString()}
}

func (s *StandardScaler) String() string { return fmt.Sprintf("StandardScaler(%s)", s.InColumn) }

// RequiresRefit is false: scale parameters come from the training data only.
func (s *StandardScaler) RequiresRefit() bool { return false }

// Fit computes mean and standard deviation of every segment, ignoring NaN.
func (s *StandardScaler) Fit(ds *dataset.Dataset) error {
	if err := requireColumn(ds, s.String(), s.InColumn); err != nil {
		return err
	}
	params := make(map[string]moments, len(ds.Segments()))
	for _, seg := range ds.Segments() {
		values, _ := ds.Column(seg, s.InColumn)
		observed := values[:0]
		for _, v := range values {
			if !math.IsNaN(v) {
				observed = append(observed, v)
			}
		}
		if len(observed) == 0 {
			return errs.Integrityf(s.String(), s.InColumn, "segment %q has no observed values", seg)
		}
		mean, std := observed[0], 0.0
		if len(observed) > 1 {
			mean, std = stat.MeanStdDev(observed, nil)
		}
		if std == 0 || math.IsNaN(std) {
			std = 1
		}
		params[seg] = moments{mean: mean, std: std}
	}
	s.params = params
	return nil
}

func (s *StandardScaler) apply(ds *dataset.Dataset, f func(v float64, m moments) float64) (*dataset.Dataset, error) {
	if s.params == nil {
		return nil, errs.NotFitted(s.String())
	}
	if err := requireColumn(ds, s.String(), s.InColumn); err != nil {
		return nil, err
	}
	out := ds.Copy()
	for _, seg := range ds.Segments() {
		m, ok := s.params[seg]
		if !ok {
			return nil, fmt.Errorf("%s: segment %q was not seen during fit", s, seg)
		}
		values, _ := ds.Column(seg, s.InColumn)
		for i, v := range values {
			values[i] = f(v, m)
		}
		if err := out.Set(seg, s.InColumn, values); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Transform returns (v - mean) / std. Already scaled data is returned as is.
func (s *StandardScaler) Transform(ds *dataset.Dataset) (*dataset.Dataset, error) {
	if ds.IsApplied(s.id) {
		return ds.Copy(), nil
	}
	out, err := s.apply(ds, func(v float64, m moments) float64 { return (v - m.mean) / m.std })
	if err != nil {
		return nil, err
	}
	out.MarkApplied(s.id)
	return out, nil
}

// InverseTransform returns v * std + mean.
func (s *StandardScaler) InverseTransform(ds *dataset.Dataset) (*dataset.Dataset, error) {
	if !ds.IsApplied(s.id) {
		return ds.Copy(), nil
	}
	out, err := s.apply(ds, func(v float64, m moments) float64 { return v*m.std + m.mean })
	if err != nil {
		return nil, err
	}
	out.Unmark(s.id)
	return out, nil
}

// Clone returns an unfitted copy with its own identity.
func (s *StandardScaler) Clone() Transform {
	return NewStandardScaler(s.InColumn)
}
