package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sartorproj/goforecast/arima"
	"github.com/sartorproj/goforecast/errs"
	"github.com/sartorproj/goforecast/metrics"
	"github.com/sartorproj/goforecast/models"
	"github.com/sartorproj/goforecast/pipeline"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Horizon)
	assert.Equal(t, 1, cfg.Step)
	assert.Equal(t, 5, cfg.NFolds)
	assert.Equal(t, "expand", cfg.FoldMode)
	assert.Equal(t, []float64{0.025, 0.975}, cfg.Quantiles)
	assert.Equal(t, ModelLinear, cfg.Model.Name)
	assert.Equal(t, StrategyPerSegment, cfg.Model.Strategy)
	require.Len(t, cfg.Transforms, 2)
	assert.Equal(t, TransformLag, cfg.Transforms[0].Name)
	assert.Equal(t, []int{1, 2, 3, 7}, cfg.Transforms[0].Lags)
	assert.Equal(t, TransformDateFlags, cfg.Transforms[1].Name)
	assert.Equal(t, []string{"MAE", "SMAPE"}, cfg.Metrics)
	assert.Equal(t, "segment", cfg.Data.SegmentColumn)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFileEnvAndFlags(t *testing.T) {
	path := writeFile(t, "goforecast.yaml", `
horizon: 14
step: 7
n_folds: 2
model:
  name: arima
  p: 2
  d: 1
transforms:
  - name: linear_trend
  - name: mean
    window: 3
metrics: [MAE]
`)
	t.Setenv("GOFORECAST_N_FOLDS", "3")
	t.Setenv("GOFORECAST_MODEL__Q", "1")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--n-jobs=2", "--quantiles=0.1,0.9", "--store", "runs.db"}))

	cfg, err := Load(path, fs)
	require.NoError(t, err)

	assert.Equal(t, 14, cfg.Horizon, "file")
	assert.Equal(t, 7, cfg.Step, "file")
	assert.Equal(t, 3, cfg.NFolds, "env beats file")
	assert.Equal(t, 2, cfg.NJobs, "flag")
	assert.Equal(t, []float64{0.1, 0.9}, cfg.Quantiles)
	assert.Equal(t, "runs.db", cfg.StorePath)
	assert.Equal(t, ModelConfig{
		Name: ModelARIMA, Strategy: StrategyPerSegment, Lag: 1, Window: 7, P: 2, D: 1, Q: 1,
		MaxP: 3, MaxD: 2, MaxQ: 3, Criterion: "aicc",
	}, cfg.Model)
	require.Len(t, cfg.Transforms, 2)
	assert.Equal(t, TransformConfig{Name: TransformMean, Window: 3}, cfg.Transforms[1])
	assert.False(t, fs.Changed("n-folds"), "unset flags keep lower sources")
}

func TestFlagsOverrideEnv(t *testing.T) {
	t.Setenv("GOFORECAST_N_FOLDS", "3")
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--n-folds=4", "--model", "naive", "--config", "ignored.yaml"}))

	cfg, err := Load("", fs)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.NFolds)
	assert.Equal(t, ModelNaive, cfg.Model.Name)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"zero horizon", func(c *Config) { c.Horizon = 0 }, "horizon"},
		{"step above horizon", func(c *Config) { c.Step = 8 }, "step"},
		{"zero folds", func(c *Config) { c.NFolds = 0 }, "n_folds"},
		{"fold mode", func(c *Config) { c.FoldMode = "rolling" }, "fold_mode"},
		{"log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"output", func(c *Config) { c.Output = "xml" }, "format"},
		{"regressors without exog", func(c *Config) { c.Data.Regressors = []string{"promo"} }, "data.regressors"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("", nil)
			require.NoError(t, err)
			tt.mutate(cfg)

			var config *errs.ConfigurationError
			require.True(t, errors.As(cfg.Validate(), &config))
			assert.Equal(t, tt.field, config.Field)
		})
	}
}

func TestBuildDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	p, ms, err := Build(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, 7, p.Horizon())
	assert.Equal(t, 1, p.Step())
	assert.Equal(t, 8, p.MinHistory(), "lag 7 needs eight rows")
	require.Len(t, ms, 2)
	assert.Equal(t, "MAE", ms[0].Name())
	assert.Equal(t, metrics.PerSegment, ms[1].Mode())
}

func TestBuildModels(t *testing.T) {
	tests := []struct {
		mc   ModelConfig
		want models.Model
	}{
		{ModelConfig{Name: ModelLinear, Strategy: StrategyMultiSegment}, models.NewLinearMultiSegment()},
		{ModelConfig{Name: ModelNaive, Lag: 7}, &models.NaiveModel{Lag: 7}},
		{ModelConfig{Name: ModelMovingAverage, Window: 3}, &models.MovingAverageModel{Window: 3}},
	}
	for _, tt := range tests {
		t.Run(tt.mc.Name, func(t *testing.T) {
			got, err := buildModel(tt.mc)
			require.NoError(t, err)
			assert.IsType(t, tt.want, got)
		})
	}

	fixed, err := buildModel(ModelConfig{Name: ModelARIMA, P: 1, D: 1})
	require.NoError(t, err)
	assert.Equal(t, "ARIMA(1,1,0)", fixed.(*models.ARIMAModel).Order.String())

	auto, err := buildModel(ModelConfig{Name: ModelAutoARIMA, MaxP: 2, MaxD: 1, MaxQ: 2, Criterion: "bic"})
	require.NoError(t, err)
	assert.Equal(t, arima.BIC, auto.(*models.ARIMAModel).Auto.Criterion)

	for _, mc := range []ModelConfig{
		{Name: "prophet"},
		{Name: ModelAutoARIMA, Criterion: "hqic"},
		{Name: ModelLinear, Strategy: "global"},
		{Name: ModelNaive, Lag: 0},
	} {
		_, err := buildModel(mc)
		var config *errs.ConfigurationError
		assert.True(t, errors.As(err, &config), "%+v", mc)
	}
}

func TestBuildTransformErrors(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)
	cfg.Transforms = []TransformConfig{{Name: TransformLag, Lags: []int{1}}, {Name: "fourier"}}

	_, _, err = Build(cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transforms[1]")

	cfg.Transforms = []TransformConfig{{Name: TransformDateFlags, Flags: []string{"hour"}}}
	_, _, err = Build(cfg, nil)
	assert.Error(t, err)
}

func TestBuildPipelineBacktests(t *testing.T) {
	dataPath := writeFile(t, "history.csv", historyCSV(40))
	cfg, err := Load("", nil)
	require.NoError(t, err)
	cfg.Data.Path = dataPath
	cfg.NFolds = 2
	cfg.Horizon = 3

	ds, err := cfg.LoadData()
	require.NoError(t, err)
	assert.Equal(t, 40, ds.Len())

	logger, err := cfg.Logger()
	require.NoError(t, err)
	logger.SetLevel(logrus.PanicLevel)
	p, ms, err := Build(cfg, logger)
	require.NoError(t, err)

	res, err := pipeline.Backtest(t.Context(), p, ds, ms, cfg.BacktestConfig(logger))
	require.NoError(t, err)
	assert.Len(t, res.Folds, 2)
	assert.Len(t, res.Metrics, 2*2)
}

func TestLoadDataWithExog(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)
	cfg.Data.Path = writeFile(t, "history.csv", historyCSV(10))
	cfg.Data.ExogPath = writeFile(t, "exog.csv", exogCSV(14))
	cfg.Data.Regressors = []string{"promo"}

	ds, err := cfg.LoadData()
	require.NoError(t, err)
	assert.True(t, ds.IsRegressor("promo"))
	assert.Equal(t, 1.0, ds.Value("a", "promo", 3))

	future, err := ds.MakeFuture(4)
	require.NoError(t, err)
	assert.Equal(t, 0.0, future.Value("a", "promo", 13))

	cfg.Data.Path = ""
	_, err = cfg.LoadData()
	assert.Error(t, err)
}

func historyCSV(n int) string {
	out := "timestamp,segment,target\n"
	for i := range n {
		day := fmt.Sprintf("2024-01-%02d", i+1)
		if i >= 31 {
			day = fmt.Sprintf("2024-02-%02d", i-30)
		}
		out += fmt.Sprintf("%s,a,%d\n", day, 10+i%5)
	}
	return out
}

func exogCSV(n int) string {
	out := "timestamp,segment,promo\n"
	for i := range n {
		out += fmt.Sprintf("2024-01-%02d,a,%d\n", i+1, boolInt(i%4 == 3))
	}
	return out
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
