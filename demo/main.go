// Command demo forecasts and backtests CSV time series with an
// autoregressive pipeline.
//
//	demo forecast --data sales.csv --horizon 14 --interval
//	demo backtest --data sales.csv --n-folds 5 --n-jobs 4 --store runs.db
//	demo runs --store runs.db
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sartorproj/goforecast/config"
)

// settingsKey stores the loaded settings in the command context.
type settingsKey struct{}

type settings struct {
	cfg    *config.Config
	logger *logrus.Logger
}

func main() {
	if err := NewRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// NewRootCmd creates the root command with every subcommand attached.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "demo",
		Short: "Autoregressive forecasting and backtesting of CSV time series",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" {
				return nil
			}
			flags := cmd.Root().PersistentFlags()
			cfgFile, _ := flags.GetString("config")
			cfg, err := config.Load(cfgFile, flags)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			logger, err := cfg.Logger()
			if err != nil {
				return err
			}
			logger.SetOutput(cmd.ErrOrStderr())
			cmd.SetContext(context.WithValue(cmd.Context(), settingsKey{}, &settings{cfg: cfg, logger: logger}))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	config.RegisterFlags(rootCmd.PersistentFlags())
	_ = rootCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"table", "markdown", "csv"}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("model", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{config.ModelLinear, config.ModelNaive, config.ModelMovingAverage, config.ModelARIMA, config.ModelAutoARIMA}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(newForecastCommand())
	rootCmd.AddCommand(newBacktestCommand())
	rootCmd.AddCommand(newRunsCommand())
	return rootCmd
}

func getSettings(cmd *cobra.Command) *settings {
	if s, ok := cmd.Context().Value(settingsKey{}).(*settings); ok {
		return s
	}
	return nil
}
