// Package models provides point forecasting models for pipelines.
//
// A Model is fit on a feature dataset and then asked to fill the target of
// the last rows of a window:
//
//	model := models.NewLinearPerSegment()
//	err := model.Fit(features)
//	filled, err := model.Forecast(window, 7) // the 7 future rows
//
// Feature-based models come in two strategies over a Regressor: NewPerSegment
// trains one regressor per segment, NewMultiSegment pools every segment into
// one fit. Every column other than the target is a feature.
//
// NaiveModel, MovingAverageModel and ARIMAModel read the target history
// directly. The first two need ContextSize() history rows in the window.
package models
