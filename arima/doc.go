// Package arima implements AutoRegressive Integrated Moving Average (ARIMA) models.
//
// An ARIMA(p,d,q) model combines:
//   - AR(p): AutoRegressive component with p lags
//   - I(d): Integration (differencing) of order d
//   - MA(q): Moving Average component with q lags
//
// The estimator works on plain float slices. The models package wraps it per
// segment so it can run inside a forecasting pipeline.
//
// # Basic Usage
//
//	model := arima.New(1, 1, 0)
//	if err := model.Fit(values); err != nil {
//	    log.Fatal(err)
//	}
//
//	summary := model.Summary()
//	fmt.Printf("AIC: %.2f, BIC: %.2f\n", summary.AIC, summary.BIC)
//
//	forecasts, _ := model.Predict(10)
//
// # Residual Analysis
//
// Summary carries a Ljung-Box test of the residuals. A small p-value means the
// residuals are still autocorrelated and a larger order may fit better:
//
//	if lb := summary.LjungBox; lb != nil && lb.PValue < 0.05 {
//	    // try a higher order
//	}
//
// # Automatic Order Selection
//
// Auto picks the differencing order with repeated KPSS tests, then searches
// AR and MA orders for the lowest information criterion:
//
//	config := arima.DefaultAutoConfig()
//	config.Criterion = arima.AICc
//
//	result, err := arima.Auto(values, config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Best model: %s, models evaluated: %d\n",
//	    result.Model.Order, result.ModelsEvaluated)
//
// The stepwise search (the default) starts from a few small orders and moves
// to neighbouring orders while the criterion improves. Set Stepwise to false
// to evaluate the full grid up to MaxP and MaxQ.
package arima
