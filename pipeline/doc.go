// Package pipeline composes transforms and a model into forecasting
// pipelines and evaluates them by backtesting.
//
// # Autoregressive Forecasting
//
// An AutoRegressivePipeline forecasts Horizon steps by asking the model for
// Step rows at a time. After each call the forecast rows are appended to the
// raw history, and the transforms that depend on target history (lags,
// rolling means, trends) are refit before the next call. Transforms that do
// not depend on history are fit once by Fit.
//
//	lag, _ := transforms.NewLag("", 1, 2, 3)
//	flags, _ := transforms.NewDateFlags()
//
//	p, err := pipeline.NewAutoRegressive(
//	    models.NewLinearPerSegment(),
//	    []transforms.Transform{lag, flags},
//	    14, // horizon
//	    1,  // step
//	)
//	if err := p.Fit(ds); err != nil {
//	    log.Fatal(err)
//	}
//	forecast, err := p.Forecast()
//
// New builds the one-shot variant where Step equals Horizon.
//
// # Prediction Intervals
//
// ForecastWithInterval adds target_<q> columns estimated from backtest
// residuals:
//
//	forecast, err := p.ForecastWithInterval(ctx, []float64{0.025, 0.975})
//	lower, _ := forecast.Column("store_1", pipeline.QuantileColumn(0.025))
//
// # Backtesting
//
// Backtest fits a fresh clone of the pipeline on each of NFolds
// rolling-origin folds and scores the forecast of the following Horizon rows.
// Folds run on NJobs workers and the result is independent of NJobs:
//
//	cfg := pipeline.DefaultBacktestConfig()
//	cfg.NJobs = 4
//	res, err := p.Backtest(ctx, ds, []metrics.Metric{metrics.MAE(metrics.PerSegment)}, cfg)
//	for _, row := range res.Metrics {
//	    fmt.Println(row.Fold, row.Segment, row.Metric, row.Value)
//	}
package pipeline
