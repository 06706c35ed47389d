package transforms

import (
	"time"

	"github.com/sartorproj/goforecast/dataset"
	"github.com/sartorproj/goforecast/errs"
)

// DateFlag selects a calendar feature.
type DateFlag string

// Supported calendar features.
const (
	DayOfWeek  DateFlag = "day_of_week"
	DayOfMonth DateFlag = "day_of_month"
	IsWeekend  DateFlag = "is_weekend"
	Month      DateFlag = "month"
)

var allFlags = []DateFlag{DayOfWeek, DayOfMonth, IsWeekend, Month}

// DateFlags adds calendar features derived from the timestamps. The features
// are known for every future timestamp, so the columns are regressors and the
// transform is fit once.
type DateFlags struct {
	Flags  []DateFlag
	fitted bool
}

// NewDateFlags creates a calendar transform. No flags means all of them.
func NewDateFlags(flags ...DateFlag) (*DateFlags, error) {
	if len(flags) == 0 {
		flags = allFlags
	}
	for _, f := range flags {
		if calendarValue(f, time.Time{}) < 0 {
			return nil, errs.Configf("flags", "unknown date flag %q", f)
		}
	}
	return &DateFlags{Flags: append([]DateFlag(nil), flags...)}, nil
}

func (d *DateFlags) String() string { return "DateFlags" }

// RequiresRefit is false.
func (d *DateFlags) RequiresRefit() bool { return false }

// Fit has nothing to learn.
func (d *DateFlags) Fit(*dataset.Dataset) error {
	d.fitted = true
	return nil
}

// Transform adds one regressor column per flag.
func (d *DateFlags) Transform(ds *dataset.Dataset) (*dataset.Dataset, error) {
	if !d.fitted {
		return nil, errs.NotFitted(d.String())
	}
	out := ds.Copy()
	timestamps := ds.Timestamps()
	for _, f := range d.Flags {
		values := make([]float64, len(timestamps))
		for i, t := range timestamps {
			values[i] = calendarValue(f, t)
		}
		for _, seg := range ds.Segments() {
			if err := out.Set(seg, string(f), values); err != nil {
				return nil, err
			}
		}
		out.MarkRegressor(string(f))
	}
	return out, nil
}

// Clone returns an unfitted copy.
func (d *DateFlags) Clone() Transform {
	return &DateFlags{Flags: append([]DateFlag(nil), d.Flags...)}
}

// calendarValue returns -1 for an unknown flag.
func calendarValue(f DateFlag, t time.Time) float64 {
	switch f {
	case DayOfWeek:
		return float64(t.Weekday())
	case DayOfMonth:
		return float64(t.Day())
	case IsWeekend:
		if wd := t.Weekday(); wd == time.Saturday || wd == time.Sunday {
			return 1
		}
		return 0
	case Month:
		return float64(t.Month())
	}
	return -1
}
