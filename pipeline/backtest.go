package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/sartorproj/goforecast/dataset"
	"github.com/sartorproj/goforecast/errs"
	"github.com/sartorproj/goforecast/metrics"
)

// Forecaster is what the backtest engine fits and forecasts on every fold.
type Forecaster interface {
	Fit(ds *dataset.Dataset) error
	Forecast() (*dataset.Dataset, error)
	Horizon() int
	MinHistory() int
	// Clone returns an unfitted copy sharing no mutable state.
	Clone() Forecaster
}

// FoldMode selects how the training window moves between folds.
type FoldMode string

const (
	// Expand trains every fold from the start of the data.
	Expand FoldMode = "expand"
	// Constant slides a fixed-length training window.
	Constant FoldMode = "constant"
)

// BacktestConfig holds backtest settings.
type BacktestConfig struct {
	NFolds           int      // Number of folds (default: 5)
	NJobs            int      // Folds run concurrently (default: 1)
	Mode             FoldMode // Training window mode (default: Expand)
	AggregateMetrics bool     // Also average every metric over folds
	Logger           logrus.FieldLogger
}

// DefaultBacktestConfig returns the default backtest settings.
func DefaultBacktestConfig() *BacktestConfig {
	return &BacktestConfig{
		NFolds: 5,
		NJobs:  1,
		Mode:   Expand,
	}
}

// MetricRow is one metric value of one segment. Fold is -1 for values
// aggregated over folds.
type MetricRow struct {
	Fold    int
	Segment string
	Metric  string
	Value   float64
}

// FoldInfo describes the windows of one fold. End timestamps are inclusive.
type FoldInfo struct {
	Fold       int
	TrainStart time.Time
	TrainEnd   time.Time
	TestStart  time.Time
	TestEnd    time.Time
}

// FoldMembership maps a backtested timestamp to its fold.
type FoldMembership struct {
	Timestamp time.Time
	Fold      int
}

// BacktestResult collects the output of one backtest run.
type BacktestResult struct {
	RunID      string
	Metrics    []MetricRow
	Aggregated []MetricRow
	Forecast   *dataset.Dataset
	Folds      []FoldInfo
	Membership []FoldMembership
}

type foldSpec struct {
	index                int
	trainStart, trainEnd int // row range, end exclusive
	testStart, testEnd   int
}

type foldResult struct {
	forecast *dataset.Dataset
	metrics  []MetricRow
}

// Validate checks the settings.
func (c *BacktestConfig) Validate() error {
	if c.NFolds < 1 {
		return errs.Configf("n_folds", "must be positive, got %d", c.NFolds)
	}
	if c.NJobs < 1 {
		return errs.Configf("n_jobs", "must be positive, got %d", c.NJobs)
	}
	if c.Mode != Expand && c.Mode != Constant {
		return errs.Configf("fold_mode", "must be %q or %q, got %q", Expand, Constant, c.Mode)
	}
	return nil
}

// folds splits n rows into chronological folds whose test windows are the
// last nFolds*horizon rows.
func folds(n, horizon, minHistory int, cfg *BacktestConfig) ([]foldSpec, error) {
	trainLen := n - horizon*cfg.NFolds
	if trainLen < minHistory {
		return nil, errs.Configf("n_folds", "%d folds of horizon %d leave %d training rows of %d, need at least %d",
			cfg.NFolds, horizon, max(trainLen, 0), n, minHistory)
	}

	specs := make([]foldSpec, cfg.NFolds)
	for k := range specs {
		offset := cfg.NFolds - k
		testStart := n - horizon*offset
		trainStart := 0
		if cfg.Mode == Constant {
			trainStart = k * horizon
		}
		specs[k] = foldSpec{
			index:      k,
			trainStart: trainStart,
			trainEnd:   testStart,
			testStart:  testStart,
			testEnd:    testStart + horizon,
		}
	}
	return specs, nil
}

// Backtest evaluates template on rolling-origin folds of ds. Every fold fits a
// fresh clone of template, so folds share no state and the result does not
// depend on NJobs. The first failing fold cancels the rest.
func Backtest(ctx context.Context, template Forecaster, ds *dataset.Dataset, ms []metrics.Metric, cfg *BacktestConfig) (*BacktestResult, error) {
	if cfg == nil {
		cfg = DefaultBacktestConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	specs, err := folds(ds.Len(), template.Horizon(), template.MinHistory(), cfg)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	runID := uuid.NewString()
	logger = logger.WithField("run_id", runID)
	logger.WithFields(logrus.Fields{
		"n_folds": cfg.NFolds,
		"n_jobs":  cfg.NJobs,
		"mode":    cfg.Mode,
		"horizon": template.Horizon(),
	}).Info("backtest started")

	results := make([]*foldResult, len(specs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.NJobs)
	for _, spec := range specs {
		g.Go(func() error {
			res, err := runFold(gctx, template, ds, spec, ms, logger)
			if err != nil {
				return fmt.Errorf("fold %d: %w", spec.index, err)
			}
			results[spec.index] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &BacktestResult{RunID: runID}
	forecast := dataset.New(ds.Freq(), ds.Start(), 0)
	for k, spec := range specs {
		res := results[k]
		out.Metrics = append(out.Metrics, res.metrics...)
		if forecast, err = forecast.Extend(res.forecast); err != nil {
			return nil, fmt.Errorf("fold %d: %w", k, err)
		}
		out.Folds = append(out.Folds, FoldInfo{
			Fold:       k,
			TrainStart: ds.Timestamp(spec.trainStart),
			TrainEnd:   ds.Timestamp(spec.trainEnd - 1),
			TestStart:  ds.Timestamp(spec.testStart),
			TestEnd:    ds.Timestamp(spec.testEnd - 1),
		})
		for row := spec.testStart; row < spec.testEnd; row++ {
			out.Membership = append(out.Membership, FoldMembership{Timestamp: ds.Timestamp(row), Fold: k})
		}
	}
	out.Forecast = forecast
	if cfg.AggregateMetrics {
		out.Aggregated = aggregate(out.Metrics)
	}

	logger.WithField("metric_rows", len(out.Metrics)).Info("backtest finished")
	return out, nil
}

func runFold(ctx context.Context, template Forecaster, ds *dataset.Dataset, spec foldSpec, ms []metrics.Metric, logger logrus.FieldLogger) (*foldResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	train := ds.Slice(spec.trainStart, spec.trainEnd)
	test := ds.Slice(spec.testStart, spec.testEnd)
	logger.WithFields(logrus.Fields{
		"fold":       spec.index,
		"train_end":  train.End(),
		"test_start": test.Start(),
	}).Debug("backtest fold")

	f := template.Clone()
	if err := f.Fit(train); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	forecast, err := f.Forecast()
	if err != nil {
		return nil, err
	}

	res := &foldResult{forecast: forecast}
	for _, m := range ms {
		scores, err := m.Compute(test, forecast)
		if err != nil {
			return nil, err
		}
		segments := make([]string, 0, len(scores))
		for seg := range scores {
			segments = append(segments, seg)
		}
		sort.Strings(segments)
		for _, seg := range segments {
			res.metrics = append(res.metrics, MetricRow{Fold: spec.index, Segment: seg, Metric: m.Name(), Value: scores[seg]})
		}
	}
	return res, nil
}

// aggregate averages every (metric, segment) pair over the folds that
// scored it.
func aggregate(rows []MetricRow) []MetricRow {
	type key struct{ metric, segment string }
	values := make(map[key][]float64)
	var order []key
	for _, r := range rows {
		k := key{r.Metric, r.Segment}
		if _, ok := values[k]; !ok {
			order = append(order, k)
		}
		values[k] = append(values[k], r.Value)
	}
	out := make([]MetricRow, len(order))
	for i, k := range order {
		out[i] = MetricRow{Fold: -1, Segment: k.segment, Metric: k.metric, Value: metrics.NaNMean(values[k])}
	}
	return out
}

// Backtest runs the package-level Backtest with p as the template.
func (p *AutoRegressivePipeline) Backtest(ctx context.Context, ds *dataset.Dataset, ms []metrics.Metric, cfg *BacktestConfig) (*BacktestResult, error) {
	return Backtest(ctx, p, ds, ms, cfg)
}
