package transforms

import (
	"fmt"

	"github.com/sartorproj/goforecast/dataset"
)

// Transform is a fitted feature step applied to a dataset.
//
// Transform never modifies its argument; it returns a new dataset. Applying a
// fitted transform to data it already transformed leaves that transform's
// columns unchanged.
type Transform interface {
	// Fit learns the transform's parameters from ds.
	Fit(ds *dataset.Dataset) error
	// Transform returns ds with the transform applied.
	Transform(ds *dataset.Dataset) (*dataset.Dataset, error)
	// RequiresRefit reports whether the transform depends on target
	// history and must be refit at every forecast iteration.
	RequiresRefit() bool
	// Clone returns an unfitted copy with the same configuration.
	Clone() Transform
}

// Inverter is implemented by transforms that rewrite a column in place and
// can restore it.
type Inverter interface {
	InverseTransform(ds *dataset.Dataset) (*dataset.Dataset, error)
}

// HistoryRequirer is implemented by transforms that need a minimum number of
// rows to fit.
type HistoryRequirer interface {
	MinHistory() int
}

// FitTransform fits t on ds and returns the transformed dataset.
func FitTransform(t Transform, ds *dataset.Dataset) (*dataset.Dataset, error) {
	if err := t.Fit(ds); err != nil {
		return nil, err
	}
	return t.Transform(ds)
}

// Inverse undoes t on ds when t is an Inverter and returns ds unchanged otherwise.
func Inverse(t Transform, ds *dataset.Dataset) (*dataset.Dataset, error) {
	if inv, ok := t.(Inverter); ok {
		return inv.InverseTransform(ds)
	}
	return ds, nil
}

// MinHistory returns the largest history requirement among ts, at least 1.
func MinHistory(ts []Transform) int {
	n := 1
	for _, t := range ts {
		if hr, ok := t.(HistoryRequirer); ok && hr.MinHistory() > n {
			n = hr.MinHistory()
		}
	}
	return n
}

// CloneAll returns unfitted copies of ts.
func CloneAll(ts []Transform) []Transform {
	out := make([]Transform, len(ts))
	for i, t := range ts {
		out[i] = t.Clone()
	}
	return out
}

// Name returns a short name for t used in errors and logs.
func Name(t Transform) string {
	if s, ok := t.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", t)
}

func requireColumn(ds *dataset.Dataset, name, column string) error {
	if !ds.HasColumn(column) {
		return fmt.Errorf("%s: column %q not found", name, column)
	}
	return nil
}
