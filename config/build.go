package config

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/sartorproj/goforecast/arima"
	"github.com/sartorproj/goforecast/dataset"
	"github.com/sartorproj/goforecast/errs"
	"github.com/sartorproj/goforecast/metrics"
	"github.com/sartorproj/goforecast/models"
	"github.com/sartorproj/goforecast/pipeline"
	"github.com/sartorproj/goforecast/report"
	"github.com/sartorproj/goforecast/transforms"
)

// Validate checks the settings that do not need a built pipeline.
func (c *Config) Validate() error {
	if c.Horizon < 1 {
		return errs.Configf("horizon", "must be positive, got %d", c.Horizon)
	}
	if c.Step < 1 || c.Step > c.Horizon {
		return errs.Configf("step", "must be in [1, horizon=%d], got %d", c.Horizon, c.Step)
	}
	if err := c.BacktestConfig(nil).Validate(); err != nil {
		return err
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return errs.Configf("log_level", "%v", err)
	}
	if _, err := report.ParseFormat(c.Output); err != nil {
		return err
	}
	if len(c.Data.Regressors) > 0 && c.Data.ExogPath == "" {
		return errs.Configf("data.regressors", "regressors need data.exog_path")
	}
	return nil
}

// Logger returns a logger at the configured level.
func (c *Config) Logger() (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, errs.Configf("log_level", "%v", err)
	}
	logger := logrus.New()
	logger.SetLevel(level)
	return logger, nil
}

// BacktestConfig returns the backtest settings.
func (c *Config) BacktestConfig(logger logrus.FieldLogger) *pipeline.BacktestConfig {
	return &pipeline.BacktestConfig{
		NFolds:           c.NFolds,
		NJobs:            c.NJobs,
		Mode:             pipeline.FoldMode(c.FoldMode),
		AggregateMetrics: c.AggregateMetrics,
		Logger:           logger,
	}
}

// CSVOptions returns the options for loading Data.Path.
func (c *Config) CSVOptions() *dataset.CSVOptions {
	opts := dataset.DefaultCSVOptions()
	if c.Data.DateColumn != "" {
		opts.DateColumn = c.Data.DateColumn
	}
	opts.SegmentColumn = c.Data.SegmentColumn
	if c.Data.ValueColumn != "" {
		opts.ValueColumn = c.Data.ValueColumn
	}
	if c.Data.DateFormat != "" {
		opts.DateFormat = c.Data.DateFormat
	}
	return opts
}

// LoadData loads the history and attaches the exogenous file when one is
// configured.
func (c *Config) LoadData() (*dataset.Dataset, error) {
	if c.Data.Path == "" {
		return nil, errs.Configf("data.path", "no input file given")
	}
	ds, err := dataset.LoadCSV(c.Data.Path, c.CSVOptions())
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", c.Data.Path, err)
	}
	if c.Data.ExogPath == "" {
		return ds, nil
	}

	opts := c.CSVOptions()
	opts.ValueColumn = ""
	opts.Freq = ds.Freq()
	exog, err := dataset.LoadCSV(c.Data.ExogPath, opts)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", c.Data.ExogPath, err)
	}
	if err := ds.AttachExog(exog, c.Data.Regressors...); err != nil {
		return nil, fmt.Errorf("attaching %s: %w", c.Data.ExogPath, err)
	}
	return ds, nil
}

// Build creates the pipeline and metrics described by the configuration.
func Build(c *Config, logger logrus.FieldLogger) (*pipeline.AutoRegressivePipeline, []metrics.Metric, error) {
	if err := c.Validate(); err != nil {
		return nil, nil, err
	}
	model, err := buildModel(c.Model)
	if err != nil {
		return nil, nil, err
	}
	ts := make([]transforms.Transform, 0, len(c.Transforms))
	for i, tc := range c.Transforms {
		t, err := buildTransform(tc)
		if err != nil {
			return nil, nil, fmt.Errorf("transforms[%d]: %w", i, err)
		}
		ts = append(ts, t)
	}
	p, err := pipeline.NewAutoRegressive(model, ts, c.Horizon, c.Step)
	if err != nil {
		return nil, nil, err
	}
	p.Logger = logger
	if c.IntervalFolds > 0 {
		p.IntervalFolds = c.IntervalFolds
	}

	ms := make([]metrics.Metric, 0, len(c.Metrics))
	for _, name := range c.Metrics {
		m, err := metrics.ByName(name, metrics.Mode(c.MetricMode))
		if err != nil {
			return nil, nil, err
		}
		ms = append(ms, m)
	}
	return p, ms, nil
}

func buildModel(mc ModelConfig) (models.Model, error) {
	switch mc.Name {
	case ModelLinear:
		switch mc.Strategy {
		case "", StrategyPerSegment:
			return models.NewLinearPerSegment(), nil
		case StrategyMultiSegment:
			return models.NewLinearMultiSegment(), nil
		}
		return nil, errs.Configf("model.strategy", "unknown strategy %q", mc.Strategy)
	case ModelNaive:
		return models.NewNaive(mc.Lag)
	case ModelMovingAverage:
		return models.NewMovingAverage(mc.Window)
	case ModelARIMA:
		return models.NewARIMA(mc.P, mc.D, mc.Q)
	case ModelAutoARIMA:
		criterion := arima.Criterion(mc.Criterion)
		switch criterion {
		case arima.AIC, arima.AICc, arima.BIC:
		default:
			return nil, errs.Configf("model.criterion", "unknown criterion %q", mc.Criterion)
		}
		return models.NewAutoARIMA(&arima.AutoConfig{
			MaxP:      mc.MaxP,
			MaxD:      mc.MaxD,
			MaxQ:      mc.MaxQ,
			Stepwise:  true,
			Criterion: criterion,
		})
	}
	return nil, errs.Configf("model.name", "unknown model %q", mc.Name)
}

func buildTransform(tc TransformConfig) (transforms.Transform, error) {
	switch tc.Name {
	case TransformLag:
		return transforms.NewLag(tc.InColumn, tc.Lags...)
	case TransformDateFlags:
		flags := make([]transforms.DateFlag, len(tc.Flags))
		for i, f := range tc.Flags {
			flags[i] = transforms.DateFlag(f)
		}
		return transforms.NewDateFlags(flags...)
	case TransformLinearTrend:
		return transforms.NewLinearTrend(tc.InColumn), nil
	case TransformStandardScaler:
		return transforms.NewStandardScaler(tc.InColumn), nil
	case TransformLog:
		return transforms.NewLog(tc.InColumn), nil
	case TransformMean:
		return transforms.NewMean(tc.InColumn, tc.Window)
	}
	return nil, errs.Configf("transforms.name", "unknown transform %q", tc.Name)
}
