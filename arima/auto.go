package arima

import (
	"errors"
	"fmt"
	"math"
)

// Criterion names the information criterion minimised by Auto.
type Criterion string

const (
	AIC  Criterion = "aic"
	AICc Criterion = "aicc"
	BIC  Criterion = "bic"
)

// AutoConfig holds configuration for automatic order selection.
type AutoConfig struct {
	MaxP      int       // Maximum AR order (default: 5)
	MaxD      int       // Maximum differencing order (default: 2)
	MaxQ      int       // Maximum MA order (default: 5)
	Stepwise  bool      // Stepwise search instead of the full grid
	Criterion Criterion // Information criterion (default: AIC)
}

// DefaultAutoConfig returns the default automatic selection settings.
func DefaultAutoConfig() *AutoConfig {
	return &AutoConfig{
		MaxP:      5,
		MaxD:      2,
		MaxQ:      5,
		Stepwise:  true,
		Criterion: AIC,
	}
}

// AutoResult is the model chosen by Auto.
type AutoResult struct {
	Model           *Model
	Criterion       float64
	ModelsEvaluated int
}

// ErrNoModel is returned when no candidate order could be fitted.
var ErrNoModel = errors.New("no candidate ARIMA order could be fitted")

// Auto selects the differencing order with repeated KPSS tests and then the
// AR and MA orders minimising the configured criterion.
func Auto(values []float64, config *AutoConfig) (*AutoResult, error) {
	if config == nil {
		config = DefaultAutoConfig()
	}
	switch config.Criterion {
	case "", AIC, AICc, BIC:
	default:
		return nil, fmt.Errorf("unknown criterion %q", config.Criterion)
	}

	d := Ndiffs(values, config.MaxD)
	if config.Stepwise {
		return stepwise(values, d, config)
	}
	return grid(values, d, config)
}

// Ndiffs returns the number of differences, at most maxD, after which the
// KPSS test no longer rejects level stationarity.
func Ndiffs(values []float64, maxD int) int {
	current := values
	for d := 0; d < maxD; d++ {
		kpss := KPSS(current, 0)
		if kpss == nil || kpss.IsStationary {
			return d
		}
		current = Diff(current)
		if len(current) < 10 {
			return d + 1
		}
	}
	return maxD
}

type searcher struct {
	values    []float64
	d         int
	config    *AutoConfig
	best      *Model
	bestScore float64
	evaluated int
	seen      map[Order]bool
}

// try fits one order and reports whether it improved the best score.
func (s *searcher) try(p, q int) bool {
	order := Order{P: p, D: s.d, Q: q}
	if p < 0 || q < 0 || p > s.config.MaxP || q > s.config.MaxQ || s.seen[order] {
		return false
	}
	s.seen[order] = true

	m := New(p, s.d, q)
	if err := m.Fit(s.values); err != nil {
		return false
	}
	s.evaluated++
	score := m.criterion(s.config.Criterion)
	if math.IsNaN(score) || score >= s.bestScore {
		return false
	}
	s.best, s.bestScore = m, score
	return true
}

func (s *searcher) result() (*AutoResult, error) {
	if s.best == nil {
		return nil, ErrNoModel
	}
	return &AutoResult{Model: s.best, Criterion: s.bestScore, ModelsEvaluated: s.evaluated}, nil
}

func newSearcher(values []float64, d int, config *AutoConfig) *searcher {
	return &searcher{values: values, d: d, config: config, bestScore: math.Inf(1), seen: make(map[Order]bool)}
}

func grid(values []float64, d int, config *AutoConfig) (*AutoResult, error) {
	s := newSearcher(values, d, config)
	for p := 0; p <= config.MaxP; p++ {
		for q := 0; q <= config.MaxQ; q++ {
			s.try(p, q)
		}
	}
	return s.result()
}

// stepwise starts from a few small orders and moves to the best neighbour
// until none improves.
func stepwise(values []float64, d int, config *AutoConfig) (*AutoResult, error) {
	s := newSearcher(values, d, config)
	for _, start := range [][2]int{{0, 0}, {1, 0}, {0, 1}, {1, 1}, {2, 2}} {
		s.try(start[0], start[1])
	}
	for improved := s.best != nil; improved; {
		improved = false
		p, q := s.best.Order.P, s.best.Order.Q
		for _, step := range [][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}, {1, 1}, {-1, -1}} {
			if s.try(p+step[0], q+step[1]) {
				improved = true
			}
		}
	}
	return s.result()
}

func (m *Model) criterion(c Criterion) float64 {
	switch c {
	case AICc:
		return m.AICc
	case BIC:
		return m.BIC
	}
	return m.AIC
}
