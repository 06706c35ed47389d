package arima

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Diff returns the first differences of values.
func Diff(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	out := make([]float64, len(values)-1)
	for i := 1; i < len(values); i++ {
		out[i-1] = values[i] - values[i-1]
	}
	return out
}

// ACF calculates the autocorrelation function for lags 0 to maxLag.
// It returns nil for a constant or too short series.
func ACF(values []float64, maxLag int) []float64 {
	n := len(values)
	if maxLag >= n {
		maxLag = n - 1
	}
	if maxLag < 0 {
		return nil
	}

	mean := stat.Mean(values, nil)
	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	if variance == 0 {
		return nil
	}

	acf := make([]float64, maxLag+1)
	for k := 0; k <= maxLag; k++ {
		sum := 0.0
		for i := k; i < n; i++ {
			sum += (values[i] - mean) * (values[i-k] - mean)
		}
		acf[k] = sum / variance
	}
	return acf
}

// LjungBoxResult represents the result of a Ljung-Box test.
type LjungBoxResult struct {
	Statistic float64
	PValue    float64
	Lags      int
	DOF       int // Degrees of freedom
}

// LjungBox tests residuals for autocorrelation up to lag lags. The null
// hypothesis is no autocorrelation; fitdf is the number of estimated ARMA
// parameters.
func LjungBox(residuals []float64, lags, fitdf int) *LjungBoxResult {
	n := len(residuals)
	if n < 10 || lags < 1 {
		return nil
	}
	if lags >= n {
		lags = n - 1
	}

	acf := ACF(residuals, lags)
	if acf == nil {
		return nil
	}

	q := 0.0
	for k := 1; k <= lags; k++ {
		q += acf[k] * acf[k] / float64(n-k)
	}
	q *= float64(n * (n + 2))

	dof := max(lags-fitdf, 1)
	chi := distuv.ChiSquared{K: float64(dof)}
	return &LjungBoxResult{
		Statistic: q,
		PValue:    chi.Survival(q),
		Lags:      lags,
		DOF:       dof,
	}
}

// KPSSResult is the result of a KPSS level-stationarity test.
type KPSSResult struct {
	Statistic    float64
	PValue       float64 // interpolated, clamped to [0.01, 0.10] outside the table
	Lags         int
	IsStationary bool // p-value >= 0.05
}

// KPSS tests the null hypothesis that values are level stationary. A
// non-positive nlags selects 12*(n/100)^(1/4) lags. It returns nil for fewer
// than 10 values.
func KPSS(values []float64, nlags int) *KPSSResult {
	n := len(values)
	if n < 10 {
		return nil
	}
	if nlags <= 0 {
		nlags = int(math.Ceil(12 * math.Pow(float64(n)/100, 0.25)))
	}

	residuals := make([]float64, n)
	copy(residuals, values)
	floats.AddConst(-stat.Mean(values, nil), residuals)
	partial := make([]float64, n)
	floats.CumSum(partial, residuals)

	// Newey-West long-run variance with Bartlett weights.
	s2 := floats.Dot(residuals, residuals) / float64(n)
	for l := 1; l <= nlags && l < n; l++ {
		cov := floats.Dot(residuals[l:], residuals[:n-l]) / float64(n)
		s2 += 2 * (1 - float64(l)/float64(nlags+1)) * cov
	}
	if s2 <= 0 {
		s2 = 1e-10
	}

	statistic := floats.Dot(partial, partial) / (float64(n) * float64(n) * s2)
	p := kpssPValue(statistic)
	return &KPSSResult{
		Statistic:    statistic,
		PValue:       p,
		Lags:         nlags,
		IsStationary: p >= 0.05,
	}
}

// kpssPValue interpolates the level-stationarity critical values
// 0.347 (10%), 0.463 (5%), 0.574 (2.5%) and 0.739 (1%).
func kpssPValue(statistic float64) float64 {
	crit := []float64{0.347, 0.463, 0.574, 0.739}
	pvals := []float64{0.10, 0.05, 0.025, 0.01}
	switch {
	case statistic <= crit[0]:
		return pvals[0]
	case statistic >= crit[len(crit)-1]:
		return pvals[len(pvals)-1]
	}
	for i := 1; i < len(crit); i++ {
		if statistic <= crit[i] {
			w := (statistic - crit[i-1]) / (crit[i] - crit[i-1])
			return pvals[i-1] + w*(pvals[i]-pvals[i-1])
		}
	}
	return pvals[len(pvals)-1]
}
