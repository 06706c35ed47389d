package pipeline

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sartorproj/goforecast/dataset"
	"github.com/sartorproj/goforecast/errs"
	"github.com/sartorproj/goforecast/metrics"
	"github.com/sartorproj/goforecast/models"
	"github.com/sartorproj/goforecast/transforms"
)

func linearPipeline(t *testing.T, horizon, step int) *AutoRegressivePipeline {
	t.Helper()
	flags, err := transforms.NewDateFlags(transforms.DayOfWeek, transforms.IsWeekend)
	require.NoError(t, err)
	p, err := NewAutoRegressive(models.NewLinearPerSegment(),
		[]transforms.Transform{mustLag(t, step, step+1), flags}, horizon, step)
	require.NoError(t, err)
	return p
}

func quietConfig(nFolds, nJobs int) *BacktestConfig {
	logger, _ := test.NewNullLogger()
	cfg := DefaultBacktestConfig()
	cfg.NFolds = nFolds
	cfg.NJobs = nJobs
	cfg.Logger = logger
	return cfg
}

func TestBacktestFolds(t *testing.T) {
	ds := series(t, 60, wavy, "a", "b")
	p := linearPipeline(t, 5, 1)
	ms := []metrics.Metric{metrics.MAE(metrics.PerSegment), metrics.SMAPE(metrics.Macro)}

	res, err := p.Backtest(context.Background(), ds, ms, quietConfig(4, 1))
	require.NoError(t, err)

	require.Len(t, res.Folds, 4)
	for k, fold := range res.Folds {
		assert.Equal(t, k, fold.Fold)
		assert.Equal(t, ds.Start(), fold.TrainStart, "expand mode trains from the start")
		assert.Equal(t, ds.Timestamp(40+5*k), fold.TestStart)
		assert.Equal(t, ds.Timestamp(44+5*k), fold.TestEnd)
		assert.Equal(t, fold.TestStart.Add(-day), fold.TrainEnd)
	}

	assert.Equal(t, 20, res.Forecast.Len())
	assert.Equal(t, ds.Timestamp(40), res.Forecast.Start())
	require.Len(t, res.Membership, 20)
	assert.Equal(t, 0, res.Membership[0].Fold)
	assert.Equal(t, 3, res.Membership[19].Fold)
	assert.Equal(t, ds.End(), res.Membership[19].Timestamp)

	// Per fold: MAE for two segments plus one macro SMAPE.
	require.Len(t, res.Metrics, 4*3)
	assert.Equal(t, MetricRow{Fold: 0, Segment: "a", Metric: "MAE", Value: res.Metrics[0].Value}, res.Metrics[0])
	assert.Equal(t, metrics.AllSegments, res.Metrics[2].Segment)
	assert.Equal(t, 3, res.Metrics[11].Fold)
	assert.Nil(t, res.Aggregated)
	assert.NotEmpty(t, res.RunID)
	assert.False(t, p.IsFitted(), "the template is never fitted")
}

func TestBacktestParallelMatchesSequential(t *testing.T) {
	ds := series(t, 80, wavy, "a", "b", "c")
	ms := []metrics.Metric{metrics.MAE(metrics.PerSegment), metrics.MSE(metrics.PerSegment)}

	sequential, err := linearPipeline(t, 7, 2).Backtest(context.Background(), ds, ms, quietConfig(5, 1))
	require.NoError(t, err)
	parallel, err := linearPipeline(t, 7, 2).Backtest(context.Background(), ds, ms, quietConfig(5, 4))
	require.NoError(t, err)

	assert.Equal(t, sequential.Metrics, parallel.Metrics)
	assert.Equal(t, sequential.Folds, parallel.Folds)
	assert.Equal(t, sequential.Membership, parallel.Membership)
	for _, seg := range sequential.Forecast.Segments() {
		for _, c := range sequential.Forecast.Columns() {
			want, _ := sequential.Forecast.Column(seg, c)
			got, _ := parallel.Forecast.Column(seg, c)
			assert.Equal(t, want, got, "segment %s column %s", seg, c)
		}
	}
}

func TestBacktestNaiveOnConstantSeries(t *testing.T) {
	ds := series(t, 30, func(int, int) float64 { return 5 }, "a")
	naive, err := models.NewNaive(1)
	require.NoError(t, err)
	p, err := NewAutoRegressive(naive, nil, 3, 1)
	require.NoError(t, err)

	cfg := quietConfig(3, 2)
	cfg.AggregateMetrics = true
	res, err := p.Backtest(context.Background(), ds, []metrics.Metric{metrics.MAE(metrics.PerSegment)}, cfg)
	require.NoError(t, err)

	for _, row := range res.Metrics {
		assert.Equal(t, 0.0, row.Value)
	}
	require.Len(t, res.Aggregated, 1)
	assert.Equal(t, MetricRow{Fold: -1, Segment: "a", Metric: "MAE", Value: 0}, res.Aggregated[0])
}

func TestBacktestConstantMode(t *testing.T) {
	ds := series(t, 50, wavy, "a")
	cfg := quietConfig(3, 1)
	cfg.Mode = Constant

	res, err := linearPipeline(t, 4, 1).Backtest(context.Background(), ds, nil, cfg)
	require.NoError(t, err)
	for k, fold := range res.Folds {
		assert.Equal(t, ds.Timestamp(4*k), fold.TrainStart)
		assert.Equal(t, 37*day, fold.TrainEnd.Sub(fold.TrainStart), "constant train length")
	}
	assert.Empty(t, res.Metrics)
}

func TestBacktestConfigErrors(t *testing.T) {
	ds := series(t, 30, wavy, "a")
	p := linearPipeline(t, 5, 1)

	tests := []struct {
		name   string
		mutate func(*BacktestConfig)
		field  string
	}{
		{"too many folds", func(c *BacktestConfig) { c.NFolds = 6 }, "n_folds"},
		{"zero folds", func(c *BacktestConfig) { c.NFolds = 0 }, "n_folds"},
		{"zero jobs", func(c *BacktestConfig) { c.NJobs = 0 }, "n_jobs"},
		{"unknown mode", func(c *BacktestConfig) { c.Mode = "rolling" }, "fold_mode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := quietConfig(5, 1)
			tt.mutate(cfg)
			_, err := p.Backtest(context.Background(), ds, nil, cfg)
			var config *errs.ConfigurationError
			require.True(t, errors.As(err, &config), "got %v", err)
			assert.Equal(t, tt.field, config.Field)
		})
	}
}

var errBoom = errors.New("boom")

// stubForecaster predicts zeros and fails to fit on a chosen train length.
type stubForecaster struct {
	horizon int
	failOn  int
	train   *dataset.Dataset
}

func (s *stubForecaster) Fit(ds *dataset.Dataset) error {
	if ds.Len() == s.failOn {
		return errBoom
	}
	s.train = ds
	return nil
}

func (s *stubForecaster) Forecast() (*dataset.Dataset, error) {
	future, err := s.train.MakeFuture(s.horizon)
	if err != nil {
		return nil, err
	}
	out := future.Tail(s.horizon)
	for _, seg := range out.Segments() {
		if err := out.Set(seg, dataset.TargetColumn, make([]float64, s.horizon)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *stubForecaster) Horizon() int    { return s.horizon }
func (s *stubForecaster) MinHistory() int { return 1 }
func (s *stubForecaster) Clone() Forecaster {
	return &stubForecaster{horizon: s.horizon, failOn: s.failOn}
}

func TestBacktestFailingFoldAborts(t *testing.T) {
	ds := series(t, 20, wavy, "a")

	_, err := Backtest(context.Background(), &stubForecaster{horizon: 2, failOn: 14}, ds, nil, quietConfig(4, 3))
	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)
	assert.Contains(t, err.Error(), "fold 1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Backtest(ctx, &stubForecaster{horizon: 2, failOn: -1}, ds, nil, quietConfig(4, 1))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBacktestLogsRun(t *testing.T) {
	ds := series(t, 20, wavy, "a")
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	cfg := DefaultBacktestConfig()
	cfg.NFolds = 2
	cfg.Logger = logger
	res, err := Backtest(context.Background(), &stubForecaster{horizon: 2, failOn: -1}, ds, nil, cfg)
	require.NoError(t, err)

	var folds int
	for _, entry := range hook.AllEntries() {
		assert.Equal(t, res.RunID, entry.Data["run_id"])
		if entry.Message == "backtest fold" {
			folds++
		}
	}
	assert.Equal(t, 2, folds)
	assert.Equal(t, "backtest finished", hook.LastEntry().Message)
}

func TestAggregateSkipsUnscoredFolds(t *testing.T) {
	rows := []MetricRow{
		{Fold: 0, Segment: "a", Metric: "MAE", Value: 2},
		{Fold: 0, Segment: "b", Metric: "MAE", Value: math.NaN()},
		{Fold: 1, Segment: "a", Metric: "MAE", Value: math.NaN()},
		{Fold: 1, Segment: "b", Metric: "MAE", Value: math.NaN()},
		{Fold: 2, Segment: "a", Metric: "MAE", Value: 4},
	}

	got := aggregate(rows)
	require.Len(t, got, 2)
	assert.Equal(t, MetricRow{Fold: -1, Segment: "a", Metric: "MAE", Value: 3}, got[0])
	assert.Equal(t, "b", got[1].Segment)
	assert.True(t, math.IsNaN(got[1].Value))
}

func TestBacktestUnobservedTestWindow(t *testing.T) {
	ds := series(t, 60, func(seg, i int) float64 {
		if seg == 1 && i >= 55 {
			return math.NaN()
		}
		return wavy(seg, i)
	}, "a", "b")

	cfg := quietConfig(4, 2)
	cfg.AggregateMetrics = true
	res, err := linearPipeline(t, 5, 1).Backtest(context.Background(), ds,
		[]metrics.Metric{metrics.MAE(metrics.PerSegment)}, cfg)
	require.NoError(t, err)

	require.Len(t, res.Metrics, 8)
	last := res.Metrics[7]
	assert.Equal(t, 3, last.Fold)
	assert.Equal(t, "b", last.Segment)
	assert.True(t, math.IsNaN(last.Value), "no actuals in the last test window")

	require.Len(t, res.Aggregated, 2)
	assert.False(t, math.IsNaN(res.Aggregated[1].Value), "earlier folds still score b")
}
