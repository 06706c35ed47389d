package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sartorproj/goforecast/config"
	"github.com/sartorproj/goforecast/dataset"
	"github.com/sartorproj/goforecast/pipeline"
	"github.com/sartorproj/goforecast/report"
	"github.com/sartorproj/goforecast/store"
)

var errNoSettings = errors.New("configuration was not loaded")

func newForecastCommand() *cobra.Command {
	var interval bool
	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Fit on the whole history and forecast the next horizon periods",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s := getSettings(cmd)
			if s == nil {
				return errNoSettings
			}
			ds, err := s.cfg.LoadData()
			if err != nil {
				return err
			}
			p, _, err := config.Build(s.cfg, s.logger)
			if err != nil {
				return err
			}
			if err := p.Fit(ds); err != nil {
				return err
			}

			columns := []string{dataset.TargetColumn}
			var forecast *dataset.Dataset
			if interval {
				forecast, err = p.ForecastWithInterval(cmd.Context(), s.cfg.Quantiles)
				for _, q := range s.cfg.Quantiles {
					columns = append(columns, pipeline.QuantileColumn(q))
				}
			} else {
				forecast, err = p.Forecast()
			}
			if err != nil {
				return err
			}

			format, _ := report.ParseFormat(s.cfg.Output)
			if format == report.Table {
				printBanner(cmd, fmt.Sprintf("FORECAST: %d segments, horizon %d, step %d", len(forecast.Segments()), p.Horizon(), p.Step()))
			}
			return report.Forecast(cmd.OutOrStdout(), forecast, format, columns...)
		},
	}
	cmd.Flags().BoolVar(&interval, "interval", false, "add prediction interval columns for the configured quantiles")
	return cmd
}

func newBacktestCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "backtest",
		Short: "Evaluate the pipeline on rolling-origin folds of the history",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s := getSettings(cmd)
			if s == nil {
				return errNoSettings
			}
			ds, err := s.cfg.LoadData()
			if err != nil {
				return err
			}
			p, ms, err := config.Build(s.cfg, s.logger)
			if err != nil {
				return err
			}
			res, err := p.Backtest(cmd.Context(), ds, ms, s.cfg.BacktestConfig(s.logger))
			if err != nil {
				return err
			}

			format, _ := report.ParseFormat(s.cfg.Output)
			w := cmd.OutOrStdout()
			if format == report.Table {
				printBanner(cmd, "BACKTEST "+res.RunID)
			}
			if err := report.Folds(w, res.Folds, format); err != nil {
				return err
			}
			if err := report.Metrics(w, append(res.Metrics, res.Aggregated...), format); err != nil {
				return err
			}

			if s.cfg.StorePath == "" {
				return nil
			}
			st, err := store.Open(cmd.Context(), s.cfg.StorePath, s.logger)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()
			return st.SaveBacktest(cmd.Context(), res, ds.Freq())
		},
	}
}

func newRunsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "runs [run-id]",
		Short: "List stored backtest runs or show the metrics of one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := getSettings(cmd)
			if s == nil {
				return errNoSettings
			}
			if s.cfg.StorePath == "" {
				return errors.New("runs needs --store")
			}
			st, err := store.Open(cmd.Context(), s.cfg.StorePath, s.logger)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			w := cmd.OutOrStdout()
			if len(args) == 0 {
				runs, err := st.Runs(cmd.Context())
				if err != nil {
					return err
				}
				for _, id := range runs {
					_, _ = fmt.Fprintln(w, id)
				}
				return nil
			}

			rows, err := st.LoadMetrics(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			format, _ := report.ParseFormat(s.cfg.Output)
			return report.Metrics(w, rows, format)
		},
	}
}

func printBanner(cmd *cobra.Command, title string) {
	w := cmd.OutOrStdout()
	_, _ = fmt.Fprintln(w, strings.Repeat("=", 80))
	_, _ = fmt.Fprintln(w, title)
	_, _ = fmt.Fprintln(w, strings.Repeat("=", 80))
}
