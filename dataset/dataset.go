// Package dataset provides the segment-keyed, time-indexed table used by transforms,
// models and pipelines.
package dataset

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/sartorproj/goforecast/errs"
)

// TargetColumn is the name of the column models forecast.
const TargetColumn = "target"

// Dataset is an ordered sequence of regularly spaced timestamps, a set of
// segments (independent series) and a set of named float columns shared by
// every segment. Missing values are NaN.
//
// Columns are tagged as regressors when their values are known for future
// timestamps. Slicing and extension return new datasets and never touch the
// receiver.
type Dataset struct {
	freq       time.Duration
	timestamps []time.Time
	segments   []string
	columns    []string
	data       map[string]map[string][]float64
	regressors map[string]bool
	applied    map[string]bool
	exog       *Dataset // read-only once attached; shared between copies
}

// New creates an empty dataset with periods timestamps starting at start.
func New(freq time.Duration, start time.Time, periods int) *Dataset {
	if periods < 0 {
		periods = 0
	}
	timestamps := make([]time.Time, periods)
	for i := range timestamps {
		timestamps[i] = start.Add(time.Duration(i) * freq)
	}
	return &Dataset{
		freq:       freq,
		timestamps: timestamps,
		data:       make(map[string]map[string][]float64),
		regressors: make(map[string]bool),
		applied:    make(map[string]bool),
	}
}

// FromTargets creates a dataset whose target column holds the given series,
// one per segment. All series must have the same length.
func FromTargets(freq time.Duration, start time.Time, targets map[string][]float64) (*Dataset, error) {
	periods := -1
	for seg, values := range targets {
		if periods >= 0 && len(values) != periods {
			return nil, fmt.Errorf("segment %q has %d values, want %d", seg, len(values), periods)
		}
		periods = len(values)
	}
	if periods < 0 {
		return nil, errors.New("no segments given")
	}

	d := New(freq, start, periods)
	for seg, values := range targets {
		if err := d.Set(seg, TargetColumn, values); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Len returns the number of timestamps.
func (d *Dataset) Len() int {
	return len(d.timestamps)
}

// Freq returns the spacing between consecutive timestamps.
func (d *Dataset) Freq() time.Duration {
	return d.freq
}

// Start returns the first timestamp, or the zero time for an empty dataset.
func (d *Dataset) Start() time.Time {
	if len(d.timestamps) == 0 {
		return time.Time{}
	}
	return d.timestamps[0]
}

// End returns the last timestamp, or the zero time for an empty dataset.
func (d *Dataset) End() time.Time {
	if len(d.timestamps) == 0 {
		return time.Time{}
	}
	return d.timestamps[len(d.timestamps)-1]
}

// Timestamps returns a copy of the time index.
func (d *Dataset) Timestamps() []time.Time {
	out := make([]time.Time, len(d.timestamps))
	copy(out, d.timestamps)
	return out
}

// Timestamp returns the i-th timestamp.
func (d *Dataset) Timestamp(i int) time.Time {
	return d.timestamps[i]
}

// Index returns the row of t, or -1 if t is not on the index.
func (d *Dataset) Index(t time.Time) int {
	if len(d.timestamps) == 0 || d.freq <= 0 {
		return -1
	}
	offset := t.Sub(d.timestamps[0])
	if offset < 0 || offset%d.freq != 0 {
		return -1
	}
	i := int(offset / d.freq)
	if i >= len(d.timestamps) {
		return -1
	}
	return i
}

// Segments returns the sorted segment names.
func (d *Dataset) Segments() []string {
	out := make([]string, len(d.segments))
	copy(out, d.segments)
	return out
}

// Columns returns the column names in insertion order.
func (d *Dataset) Columns() []string {
	out := make([]string, len(d.columns))
	copy(out, d.columns)
	return out
}

// HasColumn reports whether column exists.
func (d *Dataset) HasColumn(column string) bool {
	for _, c := range d.columns {
		if c == column {
			return true
		}
	}
	return false
}

// HasSegment reports whether segment exists.
func (d *Dataset) HasSegment(segment string) bool {
	_, ok := d.data[segment]
	return ok
}

// Regressors returns the columns whose values are known for future timestamps.
func (d *Dataset) Regressors() []string {
	var out []string
	for _, c := range d.columns {
		if d.regressors[c] {
			out = append(out, c)
		}
	}
	return out
}

// IsRegressor reports whether column is known for future timestamps.
func (d *Dataset) IsRegressor(column string) bool {
	return d.regressors[column]
}

// MarkRegressor tags column as known for future timestamps.
func (d *Dataset) MarkRegressor(column string) {
	d.regressors[column] = true
}

// Set stores values as column of segment. The segment and the column are
// created when missing; other segments receive NaN for a new column.
func (d *Dataset) Set(segment, column string, values []float64) error {
	if len(values) != len(d.timestamps) {
		return fmt.Errorf("column %q of segment %q has %d values, want %d", column, segment, len(values), len(d.timestamps))
	}
	if segment == "" || column == "" {
		return errors.New("segment and column names must not be empty")
	}
	d.ensure(segment, column)
	copy(d.data[segment][column], values)
	return nil
}

// ensure creates segment and column storage filled with NaN.
func (d *Dataset) ensure(segment, column string) {
	if _, ok := d.data[segment]; !ok {
		cols := make(map[string][]float64, len(d.columns))
		for _, c := range d.columns {
			cols[c] = nanSlice(len(d.timestamps))
		}
		d.data[segment] = cols
		d.segments = append(d.segments, segment)
		sort.Strings(d.segments)
	}
	if !d.HasColumn(column) {
		d.columns = append(d.columns, column)
		for _, cols := range d.data {
			cols[column] = nanSlice(len(d.timestamps))
		}
	}
}

// Column returns a copy of column for segment.
func (d *Dataset) Column(segment, column string) ([]float64, bool) {
	values, ok := d.data[segment][column]
	if !ok {
		return nil, false
	}
	out := make([]float64, len(values))
	copy(out, values)
	return out, true
}

// Value returns the value at row i, or NaN when segment or column is missing.
func (d *Dataset) Value(segment, column string, i int) float64 {
	values, ok := d.data[segment][column]
	if !ok || i < 0 || i >= len(values) {
		return math.NaN()
	}
	return values[i]
}

// SetValue overwrites the value at row i. The column must exist.
func (d *Dataset) SetValue(segment, column string, i int, v float64) error {
	values, ok := d.data[segment][column]
	if !ok {
		return fmt.Errorf("unknown column %q for segment %q", column, segment)
	}
	if i < 0 || i >= len(values) {
		return fmt.Errorf("row %d out of range [0, %d)", i, len(values))
	}
	values[i] = v
	return nil
}

// MarkApplied records that the in-place transform with the given id has been applied.
func (d *Dataset) MarkApplied(id string) {
	d.applied[id] = true
}

// Unmark clears the applied record of id.
func (d *Dataset) Unmark(id string) {
	delete(d.applied, id)
}

// IsApplied reports whether the in-place transform with the given id has been applied.
func (d *Dataset) IsApplied(id string) bool {
	return d.applied[id]
}

// Exog returns the attached exogenous dataset, or nil.
func (d *Dataset) Exog() *Dataset {
	return d.exog
}

// AttachExog joins the columns of exog onto the dataset's timestamps and keeps
// exog for future extension. Columns listed in knownFuture become regressors.
func (d *Dataset) AttachExog(exog *Dataset, knownFuture ...string) error {
	if exog == nil {
		return errors.New("exogenous dataset is nil")
	}
	if exog.freq != d.freq {
		return fmt.Errorf("exogenous frequency %s differs from %s", exog.freq, d.freq)
	}
	for _, c := range knownFuture {
		if !exog.HasColumn(c) {
			return fmt.Errorf("known-future column %q is not in the exogenous data", c)
		}
	}
	for _, c := range exog.columns {
		if d.HasColumn(c) {
			return fmt.Errorf("exogenous column %q already exists", c)
		}
	}
	for _, seg := range d.segments {
		if !exog.HasSegment(seg) {
			return fmt.Errorf("exogenous data has no segment %q", seg)
		}
	}

	segments := d.Segments()
	for _, c := range exog.columns {
		for _, seg := range segments {
			values := make([]float64, len(d.timestamps))
			for i, t := range d.timestamps {
				values[i] = exog.Value(seg, c, exog.Index(t))
			}
			if err := d.Set(seg, c, values); err != nil {
				return err
			}
		}
	}
	for _, c := range knownFuture {
		d.regressors[c] = true
	}
	d.exog = exog.Copy()
	return nil
}

// Copy creates a deep copy of the dataset.
func (d *Dataset) Copy() *Dataset {
	return d.Slice(0, len(d.timestamps))
}

// Slice returns the rows from start to end (exclusive).
func (d *Dataset) Slice(start, end int) *Dataset {
	if start < 0 {
		start = 0
	}
	if end > len(d.timestamps) {
		end = len(d.timestamps)
	}
	if start > end {
		start = end
	}

	out := d.emptyLike(end - start)
	copy(out.timestamps, d.timestamps[start:end])
	for seg, cols := range d.data {
		out.data[seg] = make(map[string][]float64, len(cols))
		for c, values := range cols {
			v := make([]float64, end-start)
			copy(v, values[start:end])
			out.data[seg][c] = v
		}
	}
	return out
}

// Head returns the first n rows.
func (d *Dataset) Head(n int) *Dataset {
	return d.Slice(0, n)
}

// Tail returns the last n rows.
func (d *Dataset) Tail(n int) *Dataset {
	return d.Slice(len(d.timestamps)-n, len(d.timestamps))
}

// Until returns the rows with timestamps strictly before t.
func (d *Dataset) Until(t time.Time) *Dataset {
	n := sort.Search(len(d.timestamps), func(i int) bool {
		return !d.timestamps[i].Before(t)
	})
	return d.Slice(0, n)
}

// Select returns a copy restricted to the given columns. Unknown columns are skipped.
func (d *Dataset) Select(columns ...string) *Dataset {
	keep := make(map[string]bool, len(columns))
	for _, c := range columns {
		keep[c] = true
	}
	var drop []string
	for _, c := range d.columns {
		if !keep[c] {
			drop = append(drop, c)
		}
	}
	return d.Without(drop...)
}

// Without returns a copy without the given columns.
func (d *Dataset) Without(columns ...string) *Dataset {
	out := d.Copy()
	for _, c := range columns {
		if !out.HasColumn(c) {
			continue
		}
		for _, cols := range out.data {
			delete(cols, c)
		}
		delete(out.regressors, c)
		kept := out.columns[:0]
		for _, existing := range out.columns {
			if existing != c {
				kept = append(kept, existing)
			}
		}
		out.columns = kept
	}
	return out
}

// Extend returns the concatenation of d and other. other must start one
// period after d ends. The result carries the union of columns and segments;
// cells absent from either side are NaN.
func (d *Dataset) Extend(other *Dataset) (*Dataset, error) {
	if d.Len() == 0 {
		return other.Copy(), nil
	}
	if other.Len() == 0 {
		return d.Copy(), nil
	}
	if other.freq != d.freq {
		return nil, fmt.Errorf("cannot extend: frequency %s differs from %s", other.freq, d.freq)
	}
	if want := d.End().Add(d.freq); !other.Start().Equal(want) {
		return nil, fmt.Errorf("cannot extend: next timestamp is %s, got %s", want.Format(time.RFC3339), other.Start().Format(time.RFC3339))
	}

	n, m := d.Len(), other.Len()
	out := d.emptyLike(n + m)
	copy(out.timestamps, d.timestamps)
	copy(out.timestamps[n:], other.timestamps)
	for _, c := range other.columns {
		if !d.HasColumn(c) {
			out.columns = append(out.columns, c)
		}
	}
	for c, ok := range other.regressors {
		if ok {
			out.regressors[c] = true
		}
	}
	segments := unionSorted(d.segments, other.segments)
	out.segments = segments
	for _, seg := range segments {
		out.data[seg] = make(map[string][]float64, len(out.columns))
		for _, c := range out.columns {
			values := nanSlice(n + m)
			if src, ok := d.data[seg][c]; ok {
				copy(values, src)
			}
			if src, ok := other.data[seg][c]; ok {
				copy(values[n:], src)
			}
			out.data[seg][c] = values
		}
	}
	return out, nil
}

// FutureTimestamps returns the n timestamps following the last one.
func (d *Dataset) FutureTimestamps(n int) []time.Time {
	out := make([]time.Time, n)
	for i := range out {
		out[i] = d.End().Add(time.Duration(i+1) * d.freq)
	}
	return out
}

// MakeFuture returns the dataset extended by steps future rows. Regressor
// columns are filled from the exogenous data; every other column is NaN in
// the future rows.
func (d *Dataset) MakeFuture(steps int) (*Dataset, error) {
	if steps <= 0 {
		return nil, errs.Configf("steps", "must be positive, got %d", steps)
	}
	if d.Len() == 0 {
		return nil, errors.New("cannot make future of an empty dataset")
	}

	future := d.emptyLike(steps)
	future.timestamps = d.FutureTimestamps(steps)
	for _, seg := range d.segments {
		future.data[seg] = make(map[string][]float64, len(d.columns))
		for _, c := range d.columns {
			values := nanSlice(steps)
			if d.regressors[c] && d.exog != nil && d.exog.HasColumn(c) {
				for i, t := range future.timestamps {
					j := d.exog.Index(t)
					if j < 0 {
						return nil, errs.Integrityf("", c, "exogenous data does not cover %s", t.Format(time.RFC3339))
					}
					values[i] = d.exog.data[seg][c][j]
				}
			}
			future.data[seg][c] = values
		}
	}
	return d.Extend(future)
}

// emptyLike returns a dataset with d's metadata and n zero timestamps.
func (d *Dataset) emptyLike(n int) *Dataset {
	out := &Dataset{
		freq:       d.freq,
		timestamps: make([]time.Time, n),
		segments:   make([]string, len(d.segments)),
		columns:    make([]string, len(d.columns)),
		data:       make(map[string]map[string][]float64, len(d.data)),
		regressors: make(map[string]bool, len(d.regressors)),
		applied:    make(map[string]bool, len(d.applied)),
		exog:       d.exog,
	}
	copy(out.segments, d.segments)
	copy(out.columns, d.columns)
	for k, v := range d.regressors {
		out.regressors[k] = v
	}
	for k, v := range d.applied {
		out.applied[k] = v
	}
	return out
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func unionSorted(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, s := range append(append([]string{}, a...), b...) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
