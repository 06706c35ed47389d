package pipeline

import (
	"errors"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/sartorproj/goforecast/dataset"
	"github.com/sartorproj/goforecast/errs"
	"github.com/sartorproj/goforecast/models"
	"github.com/sartorproj/goforecast/transforms"
)

// history holds raw data: the target and the columns supplied with it,
// without derived features.
type history struct {
	*dataset.Dataset
}

// features is a transformed view of a history.
type features struct {
	*dataset.Dataset
}

// AutoRegressivePipeline forecasts horizon steps by repeatedly forecasting
// step rows and feeding them back into the history.
type AutoRegressivePipeline struct {
	// Logger receives per-iteration debug events. Nil uses the logrus
	// standard logger.
	Logger logrus.FieldLogger
	// IntervalFolds is the number of backtest folds used to estimate
	// prediction intervals.
	IntervalFolds int

	model      models.Model
	transforms []transforms.Transform
	horizon    int
	step       int
	raw        history
	fitted     bool
}

// DefaultIntervalFolds is the fold count of the residual backtest behind
// prediction intervals.
const DefaultIntervalFolds = 3

// NewAutoRegressive creates a pipeline. step must lie in [1, horizon].
func NewAutoRegressive(model models.Model, ts []transforms.Transform, horizon, step int) (*AutoRegressivePipeline, error) {
	if model == nil {
		return nil, errs.Configf("model", "is required")
	}
	if horizon < 1 {
		return nil, errs.Configf("horizon", "must be positive, got %d", horizon)
	}
	if step < 1 {
		return nil, errs.Configf("step", "must be positive, got %d", step)
	}
	if step > horizon {
		return nil, errs.Configf("step", "must not exceed horizon %d, got %d", horizon, step)
	}
	for i, t := range ts {
		if t == nil {
			return nil, errs.Configf("transforms", "transform %d is nil", i)
		}
	}
	return &AutoRegressivePipeline{
		IntervalFolds: DefaultIntervalFolds,
		model:         model,
		transforms:    append([]transforms.Transform(nil), ts...),
		horizon:       horizon,
		step:          step,
	}, nil
}

// New creates a pipeline that forecasts the whole horizon in one model call.
func New(model models.Model, ts []transforms.Transform, horizon int) (*AutoRegressivePipeline, error) {
	return NewAutoRegressive(model, ts, horizon, horizon)
}

// Horizon returns the number of steps Forecast produces.
func (p *AutoRegressivePipeline) Horizon() int { return p.horizon }

// Step returns the number of steps produced per model call.
func (p *AutoRegressivePipeline) Step() int { return p.step }

// IsFitted reports whether Fit has succeeded.
func (p *AutoRegressivePipeline) IsFitted() bool { return p.fitted }

// MinHistory returns the fewest training rows the transforms and the model need.
func (p *AutoRegressivePipeline) MinHistory() int {
	n := max(transforms.MinHistory(p.transforms), p.model.ContextSize(), 1)
	if hr, ok := p.model.(transforms.HistoryRequirer); ok {
		n = max(n, hr.MinHistory())
	}
	return n
}

// Clone returns an unfitted pipeline with fresh copies of the model and
// every transform.
func (p *AutoRegressivePipeline) Clone() Forecaster {
	return &AutoRegressivePipeline{
		Logger:        p.Logger,
		IntervalFolds: p.IntervalFolds,
		model:         p.model.Clone(),
		transforms:    transforms.CloneAll(p.transforms),
		horizon:       p.horizon,
		step:          p.step,
	}
}

func (p *AutoRegressivePipeline) logger() logrus.FieldLogger {
	if p.Logger == nil {
		return logrus.StandardLogger()
	}
	return p.Logger
}

// Fit fits every transform in order on ds, fits the model on the result
// and keeps a copy of the raw ds for forecasting.
func (p *AutoRegressivePipeline) Fit(ds *dataset.Dataset) error {
	if ds == nil || ds.Len() == 0 {
		return fmt.Errorf("fit: dataset is empty")
	}
	p.fitted = false

	raw := history{ds.Copy()}
	feat := features{raw.Copy()}
	for _, t := range p.transforms {
		out, err := transforms.FitTransform(t, feat.Dataset)
		if err != nil {
			return fmt.Errorf("fit %s: %w", transforms.Name(t), err)
		}
		feat = features{out}
	}
	if err := p.model.Fit(feat.Dataset); err != nil {
		return fmt.Errorf("fit model: %w", err)
	}

	p.raw = raw
	p.fitted = true
	return nil
}

// Forecast returns the horizon rows following the fit data. Raw columns hold
// the forecast target and the known regressors; derived columns are
// recomputed over the whole forecast.
func (p *AutoRegressivePipeline) Forecast() (*dataset.Dataset, error) {
	if !p.fitted {
		return nil, errs.NotFitted("AutoRegressivePipeline")
	}

	working := history{p.raw.Copy()}
	nIterations := (p.horizon + p.step - 1) / p.step
	for i := 0; i < nIterations; i++ {
		n := min(p.step, p.horizon-i*p.step)
		next, err := p.iterate(i, working, n)
		if err != nil {
			return nil, err
		}
		extended, err := working.Extend(next.Dataset)
		if err != nil {
			return nil, fmt.Errorf("iteration %d: %w", i, err)
		}
		working = history{extended}
	}
	return p.finalize(working)
}

// iterationChain returns the transforms for one pass: fresh clones of the
// transforms that refit every iteration, the fitted instances otherwise.
func (p *AutoRegressivePipeline) iterationChain() []transforms.Transform {
	chain := make([]transforms.Transform, len(p.transforms))
	for i, t := range p.transforms {
		if t.RequiresRefit() {
			chain[i] = t.Clone()
		} else {
			chain[i] = t
		}
	}
	return chain
}

// iterate forecasts the n rows after h and returns them as raw rows.
func (p *AutoRegressivePipeline) iterate(i int, h history, n int) (history, error) {
	p.logger().WithFields(logrus.Fields{
		"iteration": i,
		"step":      n,
		"start":     h.End().Add(h.Freq()),
	}).Debug("forecast iteration")

	ext, err := h.MakeFuture(n)
	if err != nil {
		return history{}, withIteration(err, i)
	}

	chain := p.iterationChain()
	fitView, feat := features{h.Dataset}, features{ext}
	for _, t := range chain {
		if t.RequiresRefit() {
			if err := t.Fit(fitView.Dataset); err != nil {
				return history{}, withIteration(fmt.Errorf("fit %s: %w", transforms.Name(t), err), i)
			}
		}
		before := feat.Columns()
		if fitView, err = p.apply(t, fitView); err != nil {
			return history{}, withIteration(err, i)
		}
		if feat, err = p.apply(t, feat); err != nil {
			return history{}, withIteration(err, i)
		}
		if t.RequiresRefit() {
			if err := checkFuture(t, feat, before, n, i); err != nil {
				return history{}, err
			}
		}
	}

	window := feat.Tail(n + p.model.ContextSize())
	pred, err := p.model.Forecast(window, n)
	if err != nil {
		return history{}, withIteration(fmt.Errorf("model forecast: %w", err), i)
	}
	if pred.Len() != n {
		return history{}, fmt.Errorf("iteration %d: model returned %d rows, want %d", i, pred.Len(), n)
	}
	for j := len(chain) - 1; j >= 0; j-- {
		if pred, err = transforms.Inverse(chain[j], pred); err != nil {
			return history{}, withIteration(fmt.Errorf("inverse %s: %w", transforms.Name(chain[j]), err), i)
		}
	}

	next := ext.Tail(n)
	for _, seg := range next.Segments() {
		target, ok := pred.Column(seg, dataset.TargetColumn)
		if !ok {
			return history{}, fmt.Errorf("iteration %d: model returned no target for segment %q", i, seg)
		}
		if err := next.Set(seg, dataset.TargetColumn, target); err != nil {
			return history{}, err
		}
	}
	return history{next}, nil
}

func (p *AutoRegressivePipeline) apply(t transforms.Transform, f features) (features, error) {
	out, err := t.Transform(f.Dataset)
	if err != nil {
		return features{}, fmt.Errorf("transform %s: %w", transforms.Name(t), err)
	}
	return features{out}, nil
}

// checkFuture fails when a column added by a refit transform has no value in
// one of the n future rows.
func checkFuture(t transforms.Transform, feat features, before []string, n, iteration int) error {
	existed := make(map[string]bool, len(before))
	for _, c := range before {
		existed[c] = true
	}
	first := feat.Len() - n
	for _, c := range feat.Columns() {
		if existed[c] {
			continue
		}
		for _, seg := range feat.Segments() {
			for row := first; row < feat.Len(); row++ {
				if math.IsNaN(feat.Value(seg, c, row)) {
					return &errs.DataIntegrityError{
						Transform: transforms.Name(t),
						Column:    c,
						Iteration: iteration,
						Message:   fmt.Sprintf("segment %q has no value at %s", seg, feat.Timestamp(row)),
					}
				}
			}
		}
	}
	return nil
}

// finalize recomputes the derived columns over history plus forecast and
// returns the last horizon rows.
func (p *AutoRegressivePipeline) finalize(working history) (*dataset.Dataset, error) {
	chain := p.iterationChain()
	feat := features{working.Copy()}
	for _, t := range chain {
		if t.RequiresRefit() {
			if err := t.Fit(feat.Dataset); err != nil {
				return nil, fmt.Errorf("final fit %s: %w", transforms.Name(t), err)
			}
		}
		var err error
		if feat, err = p.apply(t, feat); err != nil {
			return nil, err
		}
	}
	out := feat.Dataset
	for j := len(chain) - 1; j >= 0; j-- {
		var err error
		if out, err = transforms.Inverse(chain[j], out); err != nil {
			return nil, fmt.Errorf("final inverse %s: %w", transforms.Name(chain[j]), err)
		}
	}

	out = out.Tail(p.horizon)
	tail := working.Tail(p.horizon)
	for _, seg := range tail.Segments() {
		for _, c := range tail.Columns() {
			values, _ := tail.Column(seg, c)
			if err := out.Set(seg, c, values); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// withIteration stamps the iteration on a DataIntegrityError that lacks one.
func withIteration(err error, iteration int) error {
	var integrity *errs.DataIntegrityError
	if errors.As(err, &integrity) && integrity.Iteration < 0 {
		stamped := *integrity
		stamped.Iteration = iteration
		return fmt.Errorf("iteration %d: %w", iteration, &stamped)
	}
	return fmt.Errorf("iteration %d: %w", iteration, err)
}
