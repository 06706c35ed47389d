package pipeline

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/sartorproj/goforecast/dataset"
	"github.com/sartorproj/goforecast/errs"
)

// DefaultQuantiles are the bounds of a 95% prediction interval.
var DefaultQuantiles = []float64{0.025, 0.975}

// QuantileColumn names the column holding quantile q of the target.
func QuantileColumn(q float64) string {
	return dataset.TargetColumn + "_" + strconv.FormatFloat(q, 'g', 4, 64)
}

// ForecastWithInterval forecasts like Forecast and adds one column per
// quantile. The spread comes from the residuals of a backtest with
// IntervalFolds folds over the fit data: each bound is the forecast plus the
// segment's standard error of the mean residual times the normal quantile.
// Bound columns are sorted row-wise, so a higher quantile is never below a
// lower one.
func (p *AutoRegressivePipeline) ForecastWithInterval(ctx context.Context, quantiles []float64) (*dataset.Dataset, error) {
	if !p.fitted {
		return nil, errs.NotFitted("AutoRegressivePipeline")
	}
	if len(quantiles) == 0 {
		quantiles = DefaultQuantiles
	}
	sorted := append([]float64(nil), quantiles...)
	sort.Float64s(sorted)
	for i, q := range sorted {
		if q <= 0 || q >= 1 || math.IsNaN(q) {
			return nil, errs.Configf("quantiles", "must lie in (0, 1), got %v", q)
		}
		if i > 0 && q == sorted[i-1] {
			return nil, errs.Configf("quantiles", "duplicate quantile %v", q)
		}
	}
	folds := p.IntervalFolds
	if folds < 1 {
		folds = DefaultIntervalFolds
	}

	forecast, err := p.Forecast()
	if err != nil {
		return nil, err
	}

	cfg := DefaultBacktestConfig()
	cfg.NFolds = folds
	cfg.Logger = p.logger()
	bt, err := Backtest(ctx, p, p.raw.Dataset, nil, cfg)
	if err != nil {
		return nil, fmt.Errorf("prediction interval backtest: %w", err)
	}

	for _, seg := range forecast.Segments() {
		se, err := residualStandardError(p.raw.Dataset, bt.Forecast, seg)
		if err != nil {
			return nil, err
		}
		pred, _ := forecast.Column(seg, dataset.TargetColumn)
		bounds := make([][]float64, len(sorted))
		for j, q := range sorted {
			z := distuv.UnitNormal.Quantile(q)
			bounds[j] = make([]float64, len(pred))
			for i, v := range pred {
				bounds[j][i] = v + se*z
			}
		}
		sortRows(bounds)
		for j, q := range sorted {
			if err := forecast.Set(seg, QuantileColumn(q), bounds[j]); err != nil {
				return nil, err
			}
		}
	}
	return forecast, nil
}

// residualStandardError is the standard error of the mean of the backtest
// residuals (forecast minus actual) of seg.
func residualStandardError(actual, backtest *dataset.Dataset, seg string) (float64, error) {
	var residuals []float64
	for i, t := range backtest.Timestamps() {
		row := actual.Index(t)
		if row < 0 {
			continue
		}
		r := backtest.Value(seg, dataset.TargetColumn, i) - actual.Value(seg, dataset.TargetColumn, row)
		if !math.IsNaN(r) {
			residuals = append(residuals, r)
		}
	}
	if len(residuals) < 2 {
		return 0, errs.Integrityf("", dataset.TargetColumn, "segment %q has %d backtest residuals, need 2", seg, len(residuals))
	}
	return stat.StdDev(residuals, nil) / math.Sqrt(float64(len(residuals))), nil
}

// sortRows sorts every row across the columns of bounds in place.
func sortRows(bounds [][]float64) {
	if len(bounds) == 0 {
		return
	}
	row := make([]float64, len(bounds))
	for i := range bounds[0] {
		for j := range bounds {
			row[j] = bounds[j][i]
		}
		sort.Float64s(row)
		for j := range bounds {
			bounds[j][i] = row[j]
		}
	}
}
