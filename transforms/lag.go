package transforms

import (
	"fmt"
	"math"
	"sort"

	"github.com/sartorproj/goforecast/dataset"
	"github.com/sartorproj/goforecast/errs"
)

// Lag adds shifted copies of a column: <out>_<k>[t] = in[t-k].
type Lag struct {
	InColumn  string
	Lags      []int
	OutPrefix string
	fitted    bool
}

// NewLag creates a lag transform. An empty inColumn means the target.
func NewLag(inColumn string, lags ...int) (*Lag, error) {
	if inColumn == "" {
		inColumn = dataset.TargetColumn
	}
	if len(lags) == 0 {
		return nil, errs.Configf("lags", "at least one lag is required")
	}
	sorted := append([]int(nil), lags...)
	sort.Ints(sorted)
	if sorted[0] < 1 {
		return nil, errs.Configf("lags", "must be positive, got %d", sorted[0])
	}
	return &Lag{InColumn: inColumn, Lags: sorted, OutPrefix: inColumn + "_lag"}, nil
}

func (l *Lag) String() string { return fmt.Sprintf("Lag(%s, %v)", l.InColumn, l.Lags) }

// Columns returns the output column names.
func (l *Lag) Columns() []string {
	out := make([]string, len(l.Lags))
	for i, k := range l.Lags {
		out[i] = fmt.Sprintf("%s_%d", l.OutPrefix, k)
	}
	return out
}

// MinHistory is one more than the deepest lag.
func (l *Lag) MinHistory() int { return l.Lags[len(l.Lags)-1] + 1 }

// RequiresRefit is true: lag values of future rows come from the latest
// forecasts.
func (l *Lag) RequiresRefit() bool { return true }

// Fit checks that ds is deep enough for every lag.
func (l *Lag) Fit(ds *dataset.Dataset) error {
	if err := requireColumn(ds, l.String(), l.InColumn); err != nil {
		return err
	}
	if ds.Len() < l.MinHistory() {
		return errs.Integrityf(l.String(), l.InColumn, "lag %d needs %d rows of history, have %d",
			l.Lags[len(l.Lags)-1], l.MinHistory(), ds.Len())
	}
	l.fitted = true
	return nil
}

// Transform adds one column per lag. Rows without enough history are NaN.
func (l *Lag) Transform(ds *dataset.Dataset) (*dataset.Dataset, error) {
	if !l.fitted {
		return nil, errs.NotFitted(l.String())
	}
	if err := requireColumn(ds, l.String(), l.InColumn); err != nil {
		return nil, err
	}

	out := ds.Copy()
	names := l.Columns()
	for _, seg := range ds.Segments() {
		values, _ := ds.Column(seg, l.InColumn)
		for i, k := range l.Lags {
			shifted := make([]float64, len(values))
			for t := range shifted {
				if t < k {
					shifted[t] = math.NaN()
				} else {
					shifted[t] = values[t-k]
				}
			}
			if err := out.Set(seg, names[i], shifted); err != nil {
				return nil, err
			}
		}
	}
	if ds.IsRegressor(l.InColumn) {
		for _, name := range names {
			out.MarkRegressor(name)
		}
	}
	return out, nil
}

// Clone returns an unfitted copy.
func (l *Lag) Clone() Transform {
	return &Lag{InColumn: l.InColumn, Lags: append([]int(nil), l.Lags...), OutPrefix: l.OutPrefix}
}
