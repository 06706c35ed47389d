package models

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/sartorproj/goforecast/dataset"
	"github.com/sartorproj/goforecast/errs"
)

// NaiveModel repeats the value observed Lag periods earlier. Inside a long
// window it reads its own earlier forecasts.
type NaiveModel struct {
	Lag    int
	fitted bool
}

// NewNaive creates a naive model. A lag of 1 repeats the last value; a
// seasonal period repeats the last season.
func NewNaive(lag int) (*NaiveModel, error) {
	if lag < 1 {
		return nil, errs.Configf("lag", "must be positive, got %d", lag)
	}
	return &NaiveModel{Lag: lag}, nil
}

// Fit only checks that the target is present.
func (m *NaiveModel) Fit(ds *dataset.Dataset) error {
	if !ds.HasColumn(dataset.TargetColumn) {
		return fmt.Errorf("naive model: dataset has no %q column", dataset.TargetColumn)
	}
	m.fitted = true
	return nil
}

// Forecast sets target[t] = target[t-Lag] for every future row.
func (m *NaiveModel) Forecast(ds *dataset.Dataset, predictionSize int) (*dataset.Dataset, error) {
	if !m.fitted {
		return nil, errs.NotFitted("NaiveModel")
	}
	if err := checkWindow("naive model", ds, predictionSize, m.Lag); err != nil {
		return nil, err
	}
	return fillTarget(ds, predictionSize, func(seg string, target []float64, first int) error {
		for t := first; t < len(target); t++ {
			target[t] = target[t-m.Lag]
			if math.IsNaN(target[t]) {
				return errs.Integrityf("NaiveModel", dataset.TargetColumn, "segment %q has no value %d periods before row %d", seg, m.Lag, t)
			}
		}
		return nil
	})
}

// ContextSize is the lag.
func (m *NaiveModel) ContextSize() int { return m.Lag }

// Clone returns an unfitted copy.
func (m *NaiveModel) Clone() Model { return &NaiveModel{Lag: m.Lag} }

// MovingAverageModel forecasts the mean of the previous Window values,
// feeding each forecast into the next window.
type MovingAverageModel struct {
	Window int
	fitted bool
}

// NewMovingAverage creates a moving average model.
func NewMovingAverage(window int) (*MovingAverageModel, error) {
	if window < 1 {
		return nil, errs.Configf("window", "must be positive, got %d", window)
	}
	return &MovingAverageModel{Window: window}, nil
}

// Fit only checks that the target is present.
func (m *MovingAverageModel) Fit(ds *dataset.Dataset) error {
	if !ds.HasColumn(dataset.TargetColumn) {
		return fmt.Errorf("moving average model: dataset has no %q column", dataset.TargetColumn)
	}
	m.fitted = true
	return nil
}

// Forecast sets target[t] to the mean of target[t-Window .. t-1].
func (m *MovingAverageModel) Forecast(ds *dataset.Dataset, predictionSize int) (*dataset.Dataset, error) {
	if !m.fitted {
		return nil, errs.NotFitted("MovingAverageModel")
	}
	if err := checkWindow("moving average model", ds, predictionSize, m.Window); err != nil {
		return nil, err
	}
	return fillTarget(ds, predictionSize, func(seg string, target []float64, first int) error {
		for t := first; t < len(target); t++ {
			target[t] = stat.Mean(target[t-m.Window:t], nil)
			if math.IsNaN(target[t]) {
				return errs.Integrityf("MovingAverageModel", dataset.TargetColumn, "segment %q has missing values in the window before row %d", seg, t)
			}
		}
		return nil
	})
}

// ContextSize is the window length.
func (m *MovingAverageModel) ContextSize() int { return m.Window }

// Clone returns an unfitted copy.
func (m *MovingAverageModel) Clone() Model { return &MovingAverageModel{Window: m.Window} }
