package store

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sartorproj/goforecast/dataset"
	"github.com/sartorproj/goforecast/metrics"
	"github.com/sartorproj/goforecast/models"
	"github.com/sartorproj/goforecast/pipeline"
)

var start = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

func openMemory(t *testing.T) *Store {
	t.Helper()
	logger, _ := test.NewNullLogger()
	st, err := Open(context.Background(), ":memory:", logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func sampleResult(t *testing.T) *pipeline.BacktestResult {
	t.Helper()
	forecast := dataset.New(24*time.Hour, start.AddDate(0, 0, 10), 4)
	require.NoError(t, forecast.Set("a", dataset.TargetColumn, []float64{1, 2, 3, 4}))
	require.NoError(t, forecast.Set("b", dataset.TargetColumn, []float64{5, math.NaN(), 7, 8}))
	require.NoError(t, forecast.Set("a", "target_lag_1", []float64{0, 1, 2, 3}))

	return &pipeline.BacktestResult{
		RunID: "run-1",
		Metrics: []pipeline.MetricRow{
			{Fold: 0, Segment: "a", Metric: "MAE", Value: 0.5},
			{Fold: 0, Segment: "b", Metric: "MAE", Value: math.NaN()},
			{Fold: 1, Segment: "a", Metric: "MAE", Value: 1.5},
		},
		Aggregated: []pipeline.MetricRow{{Fold: -1, Segment: "a", Metric: "MAE", Value: 1}},
		Forecast:   forecast,
		Folds: []pipeline.FoldInfo{
			{Fold: 0, TrainStart: start, TrainEnd: start.AddDate(0, 0, 9), TestStart: start.AddDate(0, 0, 10), TestEnd: start.AddDate(0, 0, 11)},
			{Fold: 1, TrainStart: start, TrainEnd: start.AddDate(0, 0, 11), TestStart: start.AddDate(0, 0, 12), TestEnd: start.AddDate(0, 0, 13)},
		},
	}
}

func TestSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	st := openMemory(t)
	res := sampleResult(t)
	require.NoError(t, st.SaveBacktest(ctx, res, 24*time.Hour))

	runs, err := st.Runs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"run-1"}, runs)

	rows, err := st.LoadMetrics(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, res.Metrics[0], rows[0])
	assert.True(t, math.IsNaN(rows[1].Value), "NaN survives as NULL")
	assert.Equal(t, res.Aggregated[0], rows[3])

	folds, err := st.LoadFolds(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, folds, 2)
	for i := range folds {
		assert.True(t, res.Folds[i].TestStart.Equal(folds[i].TestStart))
		assert.True(t, res.Folds[i].TrainEnd.Equal(folds[i].TrainEnd))
	}

	forecast, err := st.LoadForecast(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 4, forecast.Len())
	assert.True(t, res.Forecast.Start().Equal(forecast.Start()))
	assert.Equal(t, []string{"a", "b"}, forecast.Segments())
	assert.Equal(t, []string{dataset.TargetColumn, "target_lag_1"}, forecast.Columns())
	got, _ := forecast.Column("a", dataset.TargetColumn)
	assert.Equal(t, []float64{1, 2, 3, 4}, got)
	assert.True(t, math.IsNaN(forecast.Value("b", dataset.TargetColumn, 1)))
	assert.Equal(t, 8.0, forecast.Value("b", dataset.TargetColumn, 3))
}

func TestDuplicateRunRollsBack(t *testing.T) {
	ctx := context.Background()
	st := openMemory(t)
	res := sampleResult(t)
	require.NoError(t, st.SaveBacktest(ctx, res, 24*time.Hour))
	require.Error(t, st.SaveBacktest(ctx, res, 24*time.Hour))

	rows, err := st.LoadMetrics(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, rows, 4)
}

func TestUnknownRun(t *testing.T) {
	ctx := context.Background()
	st := openMemory(t)

	_, err := st.LoadMetrics(ctx, "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
	_, err = st.LoadFolds(ctx, "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
	_, err = st.LoadForecast(ctx, "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestPersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "backtests.db")
	logger, hook := test.NewNullLogger()

	st, err := Open(ctx, path, logger)
	require.NoError(t, err)
	require.NoError(t, st.SaveBacktest(ctx, sampleResult(t), 24*time.Hour))
	require.NoError(t, st.Close())
	assert.Equal(t, "backtest saved", hook.LastEntry().Message)
	assert.Equal(t, "run-1", hook.LastEntry().Data["run_id"])

	st, err = Open(ctx, path, logger)
	require.NoError(t, err)
	defer func() { _ = st.Close() }()
	runs, err := st.Runs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"run-1"}, runs)
}

func TestSaveRealBacktest(t *testing.T) {
	ctx := context.Background()
	values := make([]float64, 30)
	for i := range values {
		values[i] = float64(i % 7)
	}
	ds, err := dataset.FromTargets(time.Hour, start, map[string][]float64{"a": values})
	require.NoError(t, err)

	naive, err := models.NewNaive(7)
	require.NoError(t, err)
	p, err := pipeline.NewAutoRegressive(naive, nil, 3, 1)
	require.NoError(t, err)

	logger, _ := test.NewNullLogger()
	cfg := pipeline.DefaultBacktestConfig()
	cfg.NFolds = 2
	cfg.Logger = logger
	res, err := p.Backtest(ctx, ds, []metrics.Metric{metrics.MAE(metrics.PerSegment)}, cfg)
	require.NoError(t, err)

	st := openMemory(t)
	require.NoError(t, st.SaveBacktest(ctx, res, ds.Freq()))
	rows, err := st.LoadMetrics(ctx, res.RunID)
	require.NoError(t, err)
	assert.Equal(t, res.Metrics, rows)
	for _, r := range rows {
		assert.Equal(t, 0.0, r.Value, "weekly naive is exact on a period-7 series")
	}
}
