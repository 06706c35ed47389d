// Package transforms provides feature transforms for forecasting pipelines.
//
// Every transform implements Transform: Fit learns parameters, Transform
// returns a new dataset with the transform applied, and RequiresRefit tells a
// pipeline whether the transform depends on target history. Transforms that
// depend on history (Lag, Mean, LinearTrend) are refit at every forecast
// iteration; the rest (DateFlags, StandardScaler, Log) are fit once.
//
// # Basic Usage
//
//	lag, _ := transforms.NewLag("", 1, 7)
//	flags, _ := transforms.NewDateFlags(transforms.DayOfWeek)
//
//	features, err := transforms.FitTransform(lag, ds)
//
// # In-place Transforms
//
// LinearTrend, StandardScaler and Log rewrite their column and implement
// Inverter. Each instance marks the datasets it transformed, so applying it
// twice is a no-op and inverting an untransformed dataset returns it as is:
//
//	scaler := transforms.NewStandardScaler("")
//	scaled, _ := transforms.FitTransform(scaler, ds)
//	restored, _ := scaler.InverseTransform(scaled)
package transforms
