package models

import (
	"fmt"
	"math"
	"time"

	"github.com/sartorproj/goforecast/arima"
	"github.com/sartorproj/goforecast/dataset"
	"github.com/sartorproj/goforecast/errs"
)

// ARIMAModel fits an ARIMA(p,d,q) estimator per segment on the target.
// Forecast rows are matched to the estimator's horizon by their distance in
// periods from the last training timestamp.
//
// With Auto set the order is selected per segment and Order is ignored.
type ARIMAModel struct {
	Order    arima.Order
	Auto     *arima.AutoConfig
	freq     time.Duration
	trainEnd time.Time
	models   map[string]*arima.Model
}

// NewARIMA creates a per-segment ARIMA model.
func NewARIMA(p, d, q int) (*ARIMAModel, error) {
	if p < 0 || d < 0 || q < 0 {
		return nil, errs.Configf("order", "p, d and q must be non-negative, got (%d,%d,%d)", p, d, q)
	}
	return &ARIMAModel{Order: arima.Order{P: p, D: d, Q: q}}, nil
}

// NewAutoARIMA creates a per-segment ARIMA model whose order is chosen by
// arima.Auto on each segment's training data. A nil config uses
// arima.DefaultAutoConfig.
func NewAutoARIMA(config *arima.AutoConfig) (*ARIMAModel, error) {
	if config == nil {
		config = arima.DefaultAutoConfig()
	}
	if config.MaxP < 0 || config.MaxD < 0 || config.MaxQ < 0 {
		return nil, errs.Configf("order", "maximum orders must be non-negative, got (%d,%d,%d)", config.MaxP, config.MaxD, config.MaxQ)
	}
	cfg := *config
	return &ARIMAModel{Auto: &cfg}, nil
}

// MinHistory is the shortest training series the estimator accepts. For
// automatic selection it is the requirement of the smallest candidate.
func (m *ARIMAModel) MinHistory() int {
	if m.Auto != nil {
		return arima.Order{D: m.Auto.MaxD}.MinObservations()
	}
	return m.Order.MinObservations()
}

// Orders returns the fitted order of every segment.
func (m *ARIMAModel) Orders() map[string]arima.Order {
	out := make(map[string]arima.Order, len(m.models))
	for seg, est := range m.models {
		out[seg] = est.Order
	}
	return out
}

// Fit trains one estimator per segment. Leading missing values are dropped;
// any other gap fails the fit.
func (m *ARIMAModel) Fit(ds *dataset.Dataset) error {
	if !ds.HasColumn(dataset.TargetColumn) {
		return fmt.Errorf("arima model: dataset has no %q column", dataset.TargetColumn)
	}
	trained := make(map[string]*arima.Model, len(ds.Segments()))
	for _, seg := range ds.Segments() {
		values, _ := ds.Column(seg, dataset.TargetColumn)
		for len(values) > 0 && math.IsNaN(values[0]) {
			values = values[1:]
		}
		est, err := m.fitSegment(values)
		if err != nil {
			return fmt.Errorf("arima model: segment %q: %w", seg, err)
		}
		trained[seg] = est
	}
	m.freq, m.trainEnd, m.models = ds.Freq(), ds.End(), trained
	return nil
}

func (m *ARIMAModel) fitSegment(values []float64) (*arima.Model, error) {
	if m.Auto != nil {
		res, err := arima.Auto(values, m.Auto)
		if err != nil {
			return nil, err
		}
		return res.Model, nil
	}
	est := arima.New(m.Order.P, m.Order.D, m.Order.Q)
	if err := est.Fit(values); err != nil {
		return nil, err
	}
	return est, nil
}

// Forecast fills the future rows, which must all lie after the training end.
func (m *ARIMAModel) Forecast(ds *dataset.Dataset, predictionSize int) (*dataset.Dataset, error) {
	if m.models == nil {
		return nil, errs.NotFitted("ARIMAModel")
	}
	if err := checkWindow("arima model", ds, predictionSize, 0); err != nil {
		return nil, err
	}

	first := ds.Len() - predictionSize
	offsets := make([]int, predictionSize)
	for i := range offsets {
		delta := ds.Timestamp(first + i).Sub(m.trainEnd)
		if delta <= 0 || delta%m.freq != 0 {
			return nil, fmt.Errorf("arima model: timestamp %s is not a future period of the training data",
				ds.Timestamp(first+i).Format(time.RFC3339))
		}
		offsets[i] = int(delta / m.freq)
	}
	steps := offsets[len(offsets)-1]

	return fillTarget(ds, predictionSize, func(seg string, target []float64, first int) error {
		est, ok := m.models[seg]
		if !ok {
			return fmt.Errorf("arima model: segment %q was not seen during fit", seg)
		}
		pred, err := est.Predict(steps)
		if err != nil {
			return err
		}
		for i, h := range offsets {
			target[first+i] = pred[h-1]
		}
		return nil
	})
}

// ContextSize is zero: the estimator keeps its own history.
func (m *ARIMAModel) ContextSize() int { return 0 }

// Clone returns an unfitted copy.
func (m *ARIMAModel) Clone() Model {
	c := &ARIMAModel{Order: m.Order}
	if m.Auto != nil {
		auto := *m.Auto
		c.Auto = &auto
	}
	return c
}
