// Package config loads forecasting settings from defaults, a YAML file,
// GOFORECAST_ environment variables and command line flags, and builds the
// pipeline and metrics they describe.
package config

// Config is the full set of forecasting settings.
type Config struct {
	Horizon          int               `koanf:"horizon"`
	Step             int               `koanf:"step"`
	NFolds           int               `koanf:"n_folds"`
	NJobs            int               `koanf:"n_jobs"`
	FoldMode         string            `koanf:"fold_mode"`
	AggregateMetrics bool              `koanf:"aggregate_metrics"`
	Quantiles        []float64         `koanf:"quantiles"`
	IntervalFolds    int               `koanf:"interval_folds"`
	Model            ModelConfig       `koanf:"model"`
	Transforms       []TransformConfig `koanf:"transforms"`
	Metrics          []string          `koanf:"metrics"`
	MetricMode       string            `koanf:"metric_mode"`
	Data             DataConfig        `koanf:"data"`
	Output           string            `koanf:"output"`
	LogLevel         string            `koanf:"log_level"`
	StorePath        string            `koanf:"store_path"`
}

// ModelConfig selects the model. Only the fields of the chosen model are read.
type ModelConfig struct {
	Name      string `koanf:"name"`     // linear, naive, moving_average, arima, auto_arima
	Strategy  string `koanf:"strategy"` // linear only: per_segment or multi_segment
	Lag       int    `koanf:"lag"`      // naive
	Window    int    `koanf:"window"`   // moving_average
	P         int    `koanf:"p"`
	D         int    `koanf:"d"`
	Q         int    `koanf:"q"`
	MaxP      int    `koanf:"max_p"` // auto_arima search bounds
	MaxD      int    `koanf:"max_d"`
	MaxQ      int    `koanf:"max_q"`
	Criterion string `koanf:"criterion"` // auto_arima: aic, aicc or bic
}

// TransformConfig describes one transform of the chain.
type TransformConfig struct {
	Name     string   `koanf:"name"` // lag, date_flags, linear_trend, standard_scaler, log, mean
	InColumn string   `koanf:"in_column"`
	Lags     []int    `koanf:"lags"`
	Window   int      `koanf:"window"`
	Flags    []string `koanf:"flags"`
}

// DataConfig describes the CSV input.
type DataConfig struct {
	Path          string   `koanf:"path"`
	DateColumn    string   `koanf:"date_column"`
	SegmentColumn string   `koanf:"segment_column"`
	ValueColumn   string   `koanf:"value_column"`
	DateFormat    string   `koanf:"date_format"`
	ExogPath      string   `koanf:"exog_path"`  // extra columns covering the forecast horizon
	Regressors    []string `koanf:"regressors"` // exog columns known in the future
}

// Model and strategy names.
const (
	ModelLinear        = "linear"
	ModelNaive         = "naive"
	ModelMovingAverage = "moving_average"
	ModelARIMA         = "arima"
	ModelAutoARIMA     = "auto_arima"

	StrategyPerSegment   = "per_segment"
	StrategyMultiSegment = "multi_segment"
)

// Transform names.
const (
	TransformLag            = "lag"
	TransformDateFlags      = "date_flags"
	TransformLinearTrend    = "linear_trend"
	TransformStandardScaler = "standard_scaler"
	TransformLog            = "log"
	TransformMean           = "mean"
)
