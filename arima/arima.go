// Package arima implements ARIMA (AutoRegressive Integrated Moving Average) models.
package arima

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Order represents ARIMA model order (p, d, q).
type Order struct {
	P int // AR order (number of autoregressive terms)
	D int // Differencing order
	Q int // MA order (number of moving average terms)
}

// String formats the order as ARIMA(p,d,q).
func (o Order) String() string {
	return fmt.Sprintf("ARIMA(%d,%d,%d)", o.P, o.D, o.Q)
}

// MinObservations returns the shortest series Fit accepts for the order.
func (o Order) MinObservations() int {
	return o.P + o.Q + o.D + 10
}

// ErrNotFitted is returned by Predict before a successful Fit.
var ErrNotFitted = errors.New("model must be fitted before prediction")

// Model represents an ARIMA model.
type Model struct {
	Order      Order
	ARCoeffs   []float64 // AR coefficients (phi)
	MACoeffs   []float64 // MA coefficients (theta)
	Intercept  float64
	Variance   float64 // Residual variance
	AIC        float64
	AICc       float64 // Corrected AIC for small sample sizes
	BIC        float64
	LogLik     float64
	fitted     bool
	levels     [][]float64 // levels[k] is the series differenced k times
	residuals  []float64
	fittedVals []float64
}

// New creates a new ARIMA model with the specified order.
func New(p, d, q int) *Model {
	return &Model{
		Order:    Order{P: p, D: d, Q: q},
		ARCoeffs: make([]float64, p),
		MACoeffs: make([]float64, q),
	}
}

// Fit fits the ARIMA model to values. Values must not contain NaN.
func (m *Model) Fit(values []float64) error {
	if m.Order.P < 0 || m.Order.D < 0 || m.Order.Q < 0 {
		return fmt.Errorf("invalid order %s", m.Order)
	}
	if len(values) < m.Order.MinObservations() {
		return fmt.Errorf("insufficient data points for %s: have %d, need %d",
			m.Order, len(values), m.Order.MinObservations())
	}
	if floats.HasNaN(values) {
		return errors.New("series contains missing values")
	}

	m.ARCoeffs = make([]float64, m.Order.P)
	m.MACoeffs = make([]float64, m.Order.Q)
	m.levels = make([][]float64, m.Order.D+1)
	m.levels[0] = append([]float64(nil), values...)
	for k := 1; k <= m.Order.D; k++ {
		m.levels[k] = Diff(m.levels[k-1])
	}

	m.fitCSS(m.levels[m.Order.D])
	m.calculateIC()

	m.fitted = true
	return nil
}

// fitCSS fits the model using Conditional Sum of Squares estimation.
func (m *Model) fitCSS(y []float64) {
	n := len(y)
	p, q := m.Order.P, m.Order.Q
	m.Intercept = stat.Mean(y, nil)

	if p == 0 && q == 0 {
		m.residuals = make([]float64, n)
		m.fittedVals = make([]float64, n)
		for i, v := range y {
			m.residuals[i] = v - m.Intercept
			m.fittedVals[i] = m.Intercept
		}
		m.Variance = stat.Variance(y, nil)
		return
	}

	if p > 0 {
		if acf := ACF(y, p); acf != nil {
			if phi := yuleWalker(acf, p); phi != nil {
				copy(m.ARCoeffs, phi)
			}
		}
	}
	for i := range m.MACoeffs {
		m.MACoeffs[i] = 0.1
	}

	m.optimizeCSS(y)
}

// recursion runs the ARMA recursion over y and fills residuals, returning the
// sum of squared residuals from the first fully conditioned index.
func (m *Model) recursion(y, residuals []float64) float64 {
	p, q := m.Order.P, m.Order.Q
	startIdx := max(p, q)
	sse := 0.0
	for t := startIdx; t < len(y); t++ {
		pred := m.Intercept
		for i := 0; i < p; i++ {
			pred += m.ARCoeffs[i] * (y[t-i-1] - m.Intercept)
		}
		for i := 0; i < q; i++ {
			pred += m.MACoeffs[i] * residuals[t-i-1]
		}
		residuals[t] = y[t] - pred
		sse += residuals[t] * residuals[t]
	}
	return sse
}

// optimizeCSS refines the coefficients by gradient descent on the
// conditional sum of squares.
func (m *Model) optimizeCSS(y []float64) {
	n := len(y)
	p, q := m.Order.P, m.Order.Q
	startIdx := max(p, q)

	const (
		maxIter      = 100
		tolerance    = 1e-6
		learningRate = 0.01
	)

	residuals := make([]float64, n)
	for iter := 0; iter < maxIter; iter++ {
		prevSSE := m.recursion(y, residuals)

		arGrad := make([]float64, p)
		maGrad := make([]float64, q)
		for t := startIdx; t < n; t++ {
			for i := 0; i < p; i++ {
				arGrad[i] -= 2 * residuals[t] * (y[t-i-1] - m.Intercept)
			}
			for i := 0; i < q; i++ {
				maGrad[i] -= 2 * residuals[t] * residuals[t-i-1]
			}
		}

		// Keep coefficients inside the stationary and invertible box.
		for i := 0; i < p; i++ {
			m.ARCoeffs[i] = clamp(m.ARCoeffs[i] - learningRate*arGrad[i]/float64(n))
		}
		for i := 0; i < q; i++ {
			m.MACoeffs[i] = clamp(m.MACoeffs[i] - learningRate*maGrad[i]/float64(n))
		}

		if math.Abs(prevSSE-m.recursion(y, residuals)) < tolerance {
			break
		}
	}

	m.residuals = make([]float64, n)
	sse := m.recursion(y, m.residuals)
	m.fittedVals = make([]float64, n)
	for t := range y {
		if t < startIdx {
			m.fittedVals[t] = m.Intercept
			m.residuals[t] = y[t] - m.Intercept
			continue
		}
		m.fittedVals[t] = y[t] - m.residuals[t]
	}

	count := n - startIdx
	if count > p+q+1 {
		m.Variance = sse / float64(count-p-q-1)
	} else if count > 0 {
		m.Variance = sse / float64(count)
	}
}

func clamp(v float64) float64 {
	return math.Max(-0.99, math.Min(0.99, v))
}

// calculateIC calculates AIC, AICc, and BIC.
func (m *Model) calculateIC() {
	n := float64(len(m.residuals))
	k := float64(m.Order.P + m.Order.Q + 1)
	sse := floats.Dot(m.residuals, m.residuals)

	if m.Variance > 0 {
		m.LogLik = -n/2*math.Log(2*math.Pi) - n/2*math.Log(m.Variance) - sse/(2*m.Variance)
	} else {
		m.LogLik = math.Inf(-1)
	}

	m.AIC = -2*m.LogLik + 2*k
	if n-k-1 > 0 {
		m.AICc = m.AIC + 2*k*(k+1)/(n-k-1)
	} else {
		m.AICc = math.Inf(1)
	}
	m.BIC = -2*m.LogLik + k*math.Log(n)
}

// Predict generates forecasts for the specified number of steps ahead.
func (m *Model) Predict(steps int) ([]float64, error) {
	if !m.fitted {
		return nil, ErrNotFitted
	}
	if steps < 1 {
		return nil, errors.New("steps must be at least 1")
	}

	p, q := m.Order.P, m.Order.Q
	y := m.levels[m.Order.D]
	n := len(y)

	extY := make([]float64, n+steps)
	copy(extY, y)
	extResiduals := make([]float64, n+steps)
	copy(extResiduals, m.residuals)

	for h := 0; h < steps; h++ {
		t := n + h
		pred := m.Intercept
		for i := 0; i < p && t-i-1 >= 0; i++ {
			pred += m.ARCoeffs[i] * (extY[t-i-1] - m.Intercept)
		}
		// Future shocks have zero expectation.
		for i := 0; i < q && t-i-1 >= 0 && t-i-1 < n; i++ {
			pred += m.MACoeffs[i] * extResiduals[t-i-1]
		}
		extY[t] = pred
	}

	return m.integrate(extY[n:]), nil
}

// integrate undoes differencing level by level, anchoring each cumulative sum
// on the last observed value of the level below.
func (m *Model) integrate(forecasts []float64) []float64 {
	result := append([]float64(nil), forecasts...)
	for k := m.Order.D - 1; k >= 0; k-- {
		level := m.levels[k]
		prev := level[len(level)-1]
		for j := range result {
			result[j] += prev
			prev = result[j]
		}
	}
	return result
}

// Residuals returns the model residuals on the differenced scale.
func (m *Model) Residuals() []float64 {
	if !m.fitted {
		return nil
	}
	return append([]float64(nil), m.residuals...)
}

// FittedValues returns the fitted values on the differenced scale.
func (m *Model) FittedValues() []float64 {
	if !m.fitted {
		return nil
	}
	return append([]float64(nil), m.fittedVals...)
}

// Clone returns an unfitted model with the same order.
func (m *Model) Clone() *Model {
	return New(m.Order.P, m.Order.D, m.Order.Q)
}

// Summary describes a fitted model.
type Summary struct {
	Order     Order
	ARCoeffs  []float64
	MACoeffs  []float64
	Intercept float64
	Variance  float64
	AIC       float64
	AICc      float64
	BIC       float64
	LogLik    float64
	NObs      int
	LjungBox  *LjungBoxResult
}

// Summary returns a summary of the fitted model, or nil before Fit.
func (m *Model) Summary() *Summary {
	if !m.fitted {
		return nil
	}
	return &Summary{
		Order:     m.Order,
		ARCoeffs:  append([]float64(nil), m.ARCoeffs...),
		MACoeffs:  append([]float64(nil), m.MACoeffs...),
		Intercept: m.Intercept,
		Variance:  m.Variance,
		AIC:       m.AIC,
		AICc:      m.AICc,
		BIC:       m.BIC,
		LogLik:    m.LogLik,
		NObs:      len(m.levels[0]),
		LjungBox:  LjungBox(m.residuals, 10, m.Order.P+m.Order.Q),
	}
}

// yuleWalker estimates AR coefficients by solving the Toeplitz system R phi = r.
func yuleWalker(acf []float64, order int) []float64 {
	if order <= 0 || len(acf) <= order {
		return nil
	}

	r := mat.NewSymDense(order, nil)
	for i := 0; i < order; i++ {
		for j := i; j < order; j++ {
			r.SetSym(i, j, acf[j-i])
		}
	}
	rhs := mat.NewVecDense(order, append([]float64(nil), acf[1:order+1]...))

	var chol mat.Cholesky
	if !chol.Factorize(r) {
		return nil
	}
	var phi mat.VecDense
	if err := chol.SolveVecTo(&phi, rhs); err != nil {
		return nil
	}
	return mat.Col(nil, 0, &phi)
}
