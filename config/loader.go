package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes environment overrides. A double underscore separates
// nested keys: GOFORECAST_MODEL__NAME sets model.name.
const EnvPrefix = "GOFORECAST_"

// flagKeys maps flag names that differ from their config key.
var flagKeys = map[string]string{
	"model":    "model.name",
	"strategy": "model.strategy",
	"data":     "data.path",
	"exog":     "data.exog_path",
	"store":    "store_path",
	"config":   "",
}

// Defaults returns the default settings as a flat koanf map.
func Defaults() map[string]interface{} {
	return map[string]interface{}{
		"horizon":             7,
		"step":                1,
		"n_folds":             5,
		"n_jobs":              1,
		"fold_mode":           "expand",
		"aggregate_metrics":   false,
		"quantiles":           []float64{0.025, 0.975},
		"interval_folds":      3,
		"model.name":          ModelLinear,
		"model.strategy":      StrategyPerSegment,
		"model.lag":           1,
		"model.window":        7,
		"model.p":             1,
		"model.d":             0,
		"model.q":             0,
		"model.max_p":         3,
		"model.max_d":         2,
		"model.max_q":         3,
		"model.criterion":     "aicc",
		"metrics":             []string{"MAE", "SMAPE"},
		"metric_mode":         "per-segment",
		"data.date_column":    "timestamp",
		"data.segment_column": "segment",
		"data.value_column":   "target",
		"data.date_format":    "2006-01-02",
		"output":              "table",
		"log_level":           "info",
		"transforms": []interface{}{
			map[string]interface{}{"name": TransformLag, "lags": []interface{}{1, 2, 3, 7}},
			map[string]interface{}{"name": TransformDateFlags},
		},
	}
}

// Load reads the configuration. Later sources override earlier ones:
// defaults, the YAML file at cfgFile (skipped when empty), environment
// variables, then flags the user set explicitly.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if cfgFile != "" {
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", cfgFile, err)
		}
	}

	// GOFORECAST_N_FOLDS -> n_folds, GOFORECAST_MODEL__NAME -> model.name
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				key = strings.ReplaceAll(f.Name, "-", "_")
			}
			if key == "" {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	return &cfg, nil
}

// RegisterFlags adds the flags Load understands to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "YAML config file")
	fs.Int("horizon", 7, "number of periods to forecast")
	fs.Int("step", 1, "periods forecast per autoregressive iteration")
	fs.Int("n-folds", 5, "number of backtest folds")
	fs.Int("n-jobs", 1, "folds evaluated concurrently")
	fs.String("fold-mode", "expand", "backtest training window: expand or constant")
	fs.Bool("aggregate-metrics", false, "also average metrics over folds")
	fs.Float64Slice("quantiles", []float64{0.025, 0.975}, "prediction interval quantiles")
	fs.String("model", ModelLinear, "model: linear, naive, moving_average, arima or auto_arima")
	fs.String("strategy", StrategyPerSegment, "linear model strategy: per_segment or multi_segment")
	fs.StringSlice("metrics", []string{"MAE", "SMAPE"}, "backtest metrics")
	fs.String("metric-mode", "per-segment", "metric aggregation: per-segment or macro")
	fs.String("data", "", "CSV file with the history")
	fs.String("exog", "", "CSV file with exogenous columns covering the horizon")
	fs.StringP("output", "o", "table", "output format: table, markdown or csv")
	fs.String("log-level", "info", "log level")
	fs.String("store", "", "SQLite file to save backtest results in")
}
