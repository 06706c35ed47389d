package transforms

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/sartorproj/goforecast/dataset"
	"github.com/sartorproj/goforecast/errs"
)

type line struct {
	intercept, slope float64
}

// LinearTrend removes a per-segment least-squares line from a column in
// place. The line is fit on time measured in periods from a fixed origin,
// so it extends naturally to future rows.
type LinearTrend struct {
	InColumn string
	id       string
	origin   time.Time
	freq     time.Duration
	lines    map[string]line
}

// NewLinearTrend creates a detrending transform. An empty inColumn means the target.
func NewLinearTrend(inColumn string) *LinearTrend {
	if inColumn == "" {
		inColumn = dataset.TargetColumn
	}
	return &LinearTrend{InColumn: inColumn, id: uuid.NewString()}
}

func (lt *LinearTrend) String() string { return fmt.Sprintf("LinearTrend(%s)", lt.InColumn) }

// RequiresRefit is true: the line moves as forecasts extend the history.
func (lt *LinearTrend) RequiresRefit() bool { return true }

// MinHistory is two points per line.
func (lt *LinearTrend) MinHistory() int { return 2 }

// Fit estimates one line per segment from the non-missing values.
func (lt *LinearTrend) Fit(ds *dataset.Dataset) error {
	if err := requireColumn(ds, lt.String(), lt.InColumn); err != nil {
		return err
	}
	if ds.IsApplied(lt.id) {
		return fmt.Errorf("%s: cannot fit on detrended data", lt)
	}

	lt.origin, lt.freq = ds.Start(), ds.Freq()
	lines := make(map[string]line, len(ds.Segments()))
	for _, seg := range ds.Segments() {
		values, _ := ds.Column(seg, lt.InColumn)
		var xs, ys []float64
		for i, v := range values {
			if !math.IsNaN(v) {
				xs = append(xs, float64(i))
				ys = append(ys, v)
			}
		}
		if len(xs) < 2 {
			return errs.Integrityf(lt.String(), lt.InColumn, "segment %q has %d observed values, need 2", seg, len(xs))
		}
		alpha, beta := stat.LinearRegression(xs, ys, nil, false)
		lines[seg] = line{intercept: alpha, slope: beta}
	}
	lt.lines = lines
	return nil
}

func (lt *LinearTrend) apply(ds *dataset.Dataset, sign float64) (*dataset.Dataset, error) {
	if lt.lines == nil {
		return nil, errs.NotFitted(lt.String())
	}
	if err := requireColumn(ds, lt.String(), lt.InColumn); err != nil {
		return nil, err
	}

	out := ds.Copy()
	offset := float64(ds.Start().Sub(lt.origin)) / float64(lt.freq)
	for _, seg := range ds.Segments() {
		l, ok := lt.lines[seg]
		if !ok {
			return nil, fmt.Errorf("%s: segment %q was not seen during fit", lt, seg)
		}
		values, _ := ds.Column(seg, lt.InColumn)
		for i := range values {
			values[i] += sign * (l.intercept + l.slope*(offset+float64(i)))
		}
		if err := out.Set(seg, lt.InColumn, values); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Transform subtracts the fitted line. Already detrended data is returned as is.
func (lt *LinearTrend) Transform(ds *dataset.Dataset) (*dataset.Dataset, error) {
	if ds.IsApplied(lt.id) {
		return ds.Copy(), nil
	}
	out, err := lt.apply(ds, -1)
	if err != nil {
		return nil, err
	}
	out.MarkApplied(lt.id)
	return out, nil
}

// InverseTransform adds the fitted line back.
func (lt *LinearTrend) InverseTransform(ds *dataset.Dataset) (*dataset.Dataset, error) {
	if !ds.IsApplied(lt.id) {
		return ds.Copy(), nil
	}
	out, err := lt.apply(ds, 1)
	if err != nil {
		return nil, err
	}
	out.Unmark(lt.id)
	return out, nil
}

// Clone returns an unfitted copy with its own identity.
func (lt *LinearTrend) Clone() Transform {
	return NewLinearTrend(lt.InColumn)
}
