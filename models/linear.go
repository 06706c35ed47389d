package models

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Regressor is a tabular learner used by the segment strategies.
type Regressor interface {
	Fit(x [][]float64, y []float64) error
	Predict(x [][]float64) ([]float64, error)
	Clone() Regressor
}

// LinearRegression is ordinary least squares with an intercept, solved with a
// truncated SVD so collinear features do not fail the fit.
type LinearRegression struct {
	// Rcond drops singular values below Rcond times the largest one.
	Rcond     float64
	coef      []float64
	intercept float64
	fitted    bool
}

// NewLinearRegression creates an unfitted linear regressor.
func NewLinearRegression() *LinearRegression {
	return &LinearRegression{Rcond: 1e-10}
}

// Fit solves min |[1 x] beta - y|.
func (lr *LinearRegression) Fit(x [][]float64, y []float64) error {
	n := len(y)
	if n == 0 {
		return errors.New("linear regression: no training rows")
	}
	if len(x) != n {
		return fmt.Errorf("linear regression: %d feature rows for %d targets", len(x), n)
	}
	p := len(x[0])

	design := mat.NewDense(n, p+1, nil)
	for i, row := range x {
		if len(row) != p {
			return fmt.Errorf("linear regression: row %d has %d features, want %d", i, len(row), p)
		}
		design.Set(i, 0, 1)
		for j, v := range row {
			design.Set(i, j+1, v)
		}
	}

	var svd mat.SVD
	if !svd.Factorize(design, mat.SVDThin) {
		return errors.New("linear regression: SVD factorization failed")
	}
	beta := make([]float64, p+1)
	if rank := svd.Rank(lr.Rcond); rank > 0 {
		var sol mat.VecDense
		svd.SolveVecTo(&sol, mat.NewVecDense(n, append([]float64(nil), y...)), rank)
		beta = mat.Col(nil, 0, &sol)
	}

	lr.intercept = beta[0]
	lr.coef = beta[1:]
	lr.fitted = true
	return nil
}

// Predict returns intercept + x . coef for every row.
func (lr *LinearRegression) Predict(x [][]float64) ([]float64, error) {
	if !lr.fitted {
		return nil, errors.New("linear regression: model must be fitted before prediction")
	}
	out := make([]float64, len(x))
	for i, row := range x {
		if len(row) != len(lr.coef) {
			return nil, fmt.Errorf("linear regression: row %d has %d features, want %d", i, len(row), len(lr.coef))
		}
		out[i] = lr.intercept + floats.Dot(row, lr.coef)
	}
	return out, nil
}

// Coefficients returns the fitted feature weights.
func (lr *LinearRegression) Coefficients() []float64 {
	return append([]float64(nil), lr.coef...)
}

// Intercept returns the fitted intercept.
func (lr *LinearRegression) Intercept() float64 {
	return lr.intercept
}

// Clone returns an unfitted copy.
func (lr *LinearRegression) Clone() Regressor {
	return &LinearRegression{Rcond: lr.Rcond}
}
