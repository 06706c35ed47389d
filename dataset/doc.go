// Package dataset provides the multi-segment time series table consumed by
// transforms, models and pipelines.
//
// A Dataset has a regular time index, a set of segments (independent series)
// and a set of named float columns shared by all segments. The column named
// TargetColumn is the one models forecast.
//
// # Creating a Dataset
//
// Build one column at a time:
//
//	ds := dataset.New(24*time.Hour, start, 30)
//	err := ds.Set("store_1", dataset.TargetColumn, values)
//
// Or from one target series per segment:
//
//	ds, err := dataset.FromTargets(24*time.Hour, start, map[string][]float64{
//	    "store_1": sales1,
//	    "store_2": sales2,
//	})
//
// # Exogenous Data and Regressors
//
// Exogenous columns are joined onto the dataset's timestamps. Columns whose
// values are known for future timestamps are regressors; MakeFuture fills
// them from the exogenous data:
//
//	err := ds.AttachExog(exog, "promo", "price")
//	future, err := ds.MakeFuture(7) // history + 7 rows, target NaN
//
// # Slicing and Extension
//
// All slicing returns copies; the receiver is never modified:
//
//	train := ds.Head(ds.Len() - 7)
//	test := ds.Tail(7)
//	joined, err := train.Extend(test)
//
// # Loading from CSV
//
// Load long-format data (one row per timestamp and segment):
//
//	ds, err := dataset.LoadCSV("sales.csv", nil)
//
//	opts := dataset.DefaultCSVOptions()
//	opts.ValueColumn = "sales"
//	opts.SegmentColumn = "store"
//	ds, err := dataset.LoadCSV("sales.csv", opts)
package dataset
