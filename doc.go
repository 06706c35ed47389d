// Package goforecast provides autoregressive forecasting pipelines and
// rolling-origin backtesting for panels of time series.
//
// A dataset holds many segments (independent series) on one regular time
// index. A pipeline chains feature transforms with a model and forecasts a
// horizon of future periods a few steps at a time, refitting history-dependent
// features (lags, rolling means, trends) on the growing history after every
// step.
//
// # Features
//
//   - Autoregressive pipelines with configurable horizon and step
//   - Transforms: lags, calendar flags, linear trend, scaling, log, rolling mean
//   - Models: linear regression per segment or across segments, naive,
//     moving average, ARIMA and automatic ARIMA order selection
//   - Prediction intervals from backtest residuals
//   - Parallel backtesting with MAE, MSE, MAPE and SMAPE
//   - Layered configuration, table rendering and SQLite result storage
//
// # Quick Start
//
// Forecast two weeks of daily data with lag features:
//
//	ds, _ := dataset.LoadCSV("sales.csv", nil)
//
//	lag, _ := transforms.NewLag("", 1, 2, 3, 7)
//	flags, _ := transforms.NewDateFlags()
//	p, _ := pipeline.NewAutoRegressive(models.NewLinearPerSegment(),
//	    []transforms.Transform{lag, flags}, 14, 1)
//
//	if err := p.Fit(ds); err != nil {
//	    log.Fatal(err)
//	}
//	forecast, _ := p.Forecast()
//
// Evaluate the same pipeline on five folds with four workers:
//
//	cfg := pipeline.DefaultBacktestConfig()
//	cfg.NJobs = 4
//	res, _ := p.Backtest(ctx, ds, []metrics.Metric{metrics.MAE(metrics.PerSegment)}, cfg)
//
// # Packages
//
// The library is organized into the following packages:
//
//   - dataset: Segment-keyed time-indexed tables and CSV loading
//   - transforms: Feature transforms
//   - models: Forecasting models
//   - arima: ARIMA estimation and automatic order selection
//   - metrics: Forecast accuracy metrics
//   - pipeline: Autoregressive pipeline, prediction intervals and backtesting
//   - errs: Configuration, not-fitted and data integrity errors
//   - config: Layered settings and pipeline construction
//   - report: Table rendering of forecasts and backtest results
//   - store: SQLite storage of backtest runs
//
// # References
//
//   - Hyndman, R.J., & Athanasopoulos, G. (2021). Forecasting: Principles and Practice
//   - Tashman, L. J. (2000). Out-of-sample tests of forecasting accuracy
package goforecast
