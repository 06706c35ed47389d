package transforms

import (
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/sartorproj/goforecast/dataset"
	"github.com/sartorproj/goforecast/errs"
)

// Log replaces a column with log(1+x) in place, so zeros stay finite.
// Negative values are rejected.
type Log struct {
	InColumn string
	id       string
	fitted   bool
}

// NewLog creates a log transform. An empty inColumn means the target.
func NewLog(inColumn string) *Log {
	if inColumn == "" {
		inColumn = dataset.TargetColumn
	}
	return &Log{InColumn: inColumn, id: uuid.NewString()}
}

func (l *Log) String() string { return fmt.Sprintf("Log(%s)", l.InColumn) }

// RequiresRefit is false.
func (l *Log) RequiresRefit() bool { return false }

// Fit only checks the column.
func (l *Log) Fit(ds *dataset.Dataset) error {
	if err := requireColumn(ds, l.String(), l.InColumn); err != nil {
		return err
	}
	l.fitted = true
	return nil
}

func (l *Log) apply(ds *dataset.Dataset, f func(float64) (float64, error)) (*dataset.Dataset, error) {
	if !l.fitted {
		return nil, errs.NotFitted(l.String())
	}
	if err := requireColumn(ds, l.String(), l.InColumn); err != nil {
		return nil, err
	}
	out := ds.Copy()
	for _, seg := range ds.Segments() {
		values, _ := ds.Column(seg, l.InColumn)
		for i, v := range values {
			r, err := f(v)
			if err != nil {
				return nil, errs.Integrityf(l.String(), l.InColumn, "segment %q row %d: %v", seg, i, err)
			}
			values[i] = r
		}
		if err := out.Set(seg, l.InColumn, values); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Transform takes the logarithm. Already transformed data is returned as is.
func (l *Log) Transform(ds *dataset.Dataset) (*dataset.Dataset, error) {
	if ds.IsApplied(l.id) {
		return ds.Copy(), nil
	}
	out, err := l.apply(ds, func(v float64) (float64, error) {
		if v < 0 {
			return 0, fmt.Errorf("negative value %v", v)
		}
		return math.Log1p(v), nil
	})
	if err != nil {
		return nil, err
	}
	out.MarkApplied(l.id)
	return out, nil
}

// InverseTransform maps the column back with exp(x)-1.
func (l *Log) InverseTransform(ds *dataset.Dataset) (*dataset.Dataset, error) {
	if !ds.IsApplied(l.id) {
		return ds.Copy(), nil
	}
	out, err := l.apply(ds, func(v float64) (float64, error) { return math.Expm1(v), nil })
	if err != nil {
		return nil, err
	}
	out.Unmark(l.id)
	return out, nil
}

// Clone returns an unfitted copy with its own identity.
func (l *Log) Clone() Transform {
	return NewLog(l.InColumn)
}
