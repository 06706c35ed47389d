package models

import (
	"fmt"

	"github.com/sartorproj/goforecast/dataset"
	"github.com/sartorproj/goforecast/errs"
)

// Model is a point forecaster over a dataset.
type Model interface {
	// Fit trains the model on ds.
	Fit(ds *dataset.Dataset) error
	// Forecast fills the target of the last predictionSize rows of ds.
	// The rows before them hold at least ContextSize() rows of history.
	// It returns exactly those predictionSize rows.
	Forecast(ds *dataset.Dataset, predictionSize int) (*dataset.Dataset, error)
	// ContextSize is the number of history rows Forecast reads.
	ContextSize() int
	// Clone returns an unfitted copy with the same configuration.
	Clone() Model
}

// checkWindow validates a forecast window against the context a model needs.
func checkWindow(name string, ds *dataset.Dataset, predictionSize, context int) error {
	if predictionSize < 1 {
		return errs.Configf("prediction_size", "must be positive, got %d", predictionSize)
	}
	if ds.Len() < predictionSize+context {
		return fmt.Errorf("%s: window has %d rows, need %d context rows and %d future rows",
			name, ds.Len(), context, predictionSize)
	}
	if !ds.HasColumn(dataset.TargetColumn) {
		return fmt.Errorf("%s: dataset has no %q column", name, dataset.TargetColumn)
	}
	return nil
}

// fillTarget runs fill over every segment's target, then returns the last
// predictionSize rows. fill receives the whole target column and the index
// of the first future row and overwrites the future values in place.
func fillTarget(ds *dataset.Dataset, predictionSize int, fill func(seg string, target []float64, first int) error) (*dataset.Dataset, error) {
	out := ds.Copy()
	first := ds.Len() - predictionSize
	for _, seg := range ds.Segments() {
		target, _ := ds.Column(seg, dataset.TargetColumn)
		if err := fill(seg, target, first); err != nil {
			return nil, err
		}
		if err := out.Set(seg, dataset.TargetColumn, target); err != nil {
			return nil, err
		}
	}
	return out.Tail(predictionSize), nil
}
