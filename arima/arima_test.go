package arima

import (
	"errors"
	"math"
	"testing"
)

func ar1Series(n int, phi float64) []float64 {
	values := make([]float64, n)
	values[0] = 100
	for i := 1; i < n; i++ {
		values[i] = phi*(values[i-1]-100) + 100 + float64(i%7-3)/3
	}
	return values
}

func TestNewARIMA(t *testing.T) {
	model := New(2, 1, 1)

	if model.Order.P != 2 || model.Order.D != 1 || model.Order.Q != 1 {
		t.Errorf("Expected order (2,1,1), got %s", model.Order)
	}
	if model.Order.String() != "ARIMA(2,1,1)" {
		t.Errorf("Unexpected order string %q", model.Order.String())
	}
}

func TestARIMAFitAR1(t *testing.T) {
	phi := 0.7
	model := New(1, 0, 0)

	if err := model.Fit(ar1Series(200, phi)); err != nil {
		t.Fatalf("Failed to fit AR(1) model: %v", err)
	}
	if len(model.ARCoeffs) != 1 {
		t.Fatalf("Expected 1 AR coefficient, got %d", len(model.ARCoeffs))
	}
	if model.ARCoeffs[0] <= 0 || model.ARCoeffs[0] >= 0.99 {
		t.Errorf("AR coefficient out of range: %f", model.ARCoeffs[0])
	}
	t.Logf("True AR coeff: %f, Estimated: %f", phi, model.ARCoeffs[0])

	if len(model.Residuals()) != 200 {
		t.Errorf("Expected 200 residuals, got %d", len(model.Residuals()))
	}
}

func TestARIMAPredictWithDifferencing(t *testing.T) {
	n := 100
	values := make([]float64, n)
	for i := 0; i < n; i++ {
		values[i] = 100 + float64(i)/10 + float64(i%7-3)/2
	}

	model := New(1, 1, 0)
	if err := model.Fit(values); err != nil {
		t.Fatalf("Failed to fit model: %v", err)
	}

	forecasts, err := model.Predict(5)
	if err != nil {
		t.Fatalf("Failed to predict: %v", err)
	}
	if len(forecasts) != 5 {
		t.Fatalf("Expected 5 forecasts, got %d", len(forecasts))
	}

	lastValue := values[n-1]
	for i, f := range forecasts {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			t.Errorf("Forecast %d is NaN or Inf", i)
		}
		if math.Abs(f-lastValue) > 20 {
			t.Errorf("Forecast %d drifted: %f (last value: %f)", i, f, lastValue)
		}
	}
}

func TestARIMAIntegrateSecondOrder(t *testing.T) {
	// A quadratic has constant second differences.
	n := 40
	values := make([]float64, n)
	for i := range values {
		values[i] = float64(i * i)
	}

	model := New(0, 2, 0)
	if err := model.Fit(values); err != nil {
		t.Fatalf("Failed to fit: %v", err)
	}

	forecasts, err := model.Predict(3)
	if err != nil {
		t.Fatalf("Failed to predict: %v", err)
	}
	for h, f := range forecasts {
		want := float64((n + h) * (n + h))
		if math.Abs(f-want) > 1e-9 {
			t.Errorf("step %d: expected %f, got %f", h, want, f)
		}
	}
}

func TestARIMAPredictBeforeFit(t *testing.T) {
	_, err := New(1, 0, 0).Predict(3)
	if !errors.Is(err, ErrNotFitted) {
		t.Errorf("Expected ErrNotFitted, got %v", err)
	}
}

func TestARIMAInsufficientData(t *testing.T) {
	model := New(5, 2, 5)
	if err := model.Fit([]float64{1, 2, 3}); err == nil {
		t.Error("Expected error for insufficient data")
	}
}

func TestARIMARejectsNaN(t *testing.T) {
	values := ar1Series(50, 0.5)
	values[10] = math.NaN()
	if err := New(1, 0, 0).Fit(values); err == nil {
		t.Error("Expected error for missing values")
	}
}

func TestARIMAWhiteNoise(t *testing.T) {
	n := 200
	values := make([]float64, n)
	mean := 0.0
	for i := 0; i < n; i++ {
		values[i] = float64(i%7-3) / 3
		mean += values[i]
	}
	mean /= float64(n)

	model := New(0, 0, 0)
	if err := model.Fit(values); err != nil {
		t.Fatalf("Failed to fit white noise: %v", err)
	}
	if math.Abs(model.Intercept-mean) > 1e-9 {
		t.Errorf("Intercept should equal the mean: got %f, expected %f", model.Intercept, mean)
	}

	forecasts, _ := model.Predict(2)
	for _, f := range forecasts {
		if math.Abs(f-mean) > 1e-9 {
			t.Errorf("Expected flat forecast at the mean, got %f", f)
		}
	}
}

func TestARIMASummary(t *testing.T) {
	n := 100
	model := New(1, 0, 1)
	if err := model.Fit(ar1Series(n, 0.4)); err != nil {
		t.Fatalf("Failed to fit model: %v", err)
	}

	summary := model.Summary()
	if summary == nil {
		t.Fatal("Summary should not be nil")
	}
	if summary.NObs != n {
		t.Errorf("Expected NObs=%d, got %d", n, summary.NObs)
	}
	if summary.LjungBox != nil && (summary.LjungBox.PValue < 0 || summary.LjungBox.PValue > 1) {
		t.Errorf("Ljung-Box p-value out of range: %f", summary.LjungBox.PValue)
	}
}

func TestARIMAMultipleOrders(t *testing.T) {
	tests := []struct {
		name    string
		p, d, q int
	}{
		{"AR1", 1, 0, 0},
		{"AR2", 2, 0, 0},
		{"MA1", 0, 0, 1},
		{"ARMA11", 1, 0, 1},
		{"ARIMA110", 1, 1, 0},
		{"ARIMA011", 0, 1, 1},
		{"ARIMA212", 2, 1, 2},
	}

	values := ar1Series(150, 0.6)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := New(tt.p, tt.d, tt.q)
			if err := model.Fit(values); err != nil {
				t.Fatalf("Model %s failed to fit: %v", tt.name, err)
			}

			forecasts, err := model.Predict(3)
			if err != nil {
				t.Fatalf("Prediction failed: %v", err)
			}
			if len(forecasts) != 3 {
				t.Errorf("Expected 3 forecasts, got %d", len(forecasts))
			}
			for _, f := range forecasts {
				if math.IsNaN(f) || math.IsInf(f, 0) {
					t.Errorf("Forecast is not finite: %v", forecasts)
				}
			}
		})
	}
}

func TestYuleWalker(t *testing.T) {
	// ACF of an AR(1) process with phi = 0.6.
	acf := []float64{1.0, 0.6, 0.36, 0.216, 0.13}

	coeffs := yuleWalker(acf, 2)
	if len(coeffs) != 2 {
		t.Fatalf("Expected 2 coefficients, got %v", coeffs)
	}
	if math.Abs(coeffs[0]-0.6) > 1e-9 || math.Abs(coeffs[1]) > 1e-9 {
		t.Errorf("Expected [0.6 0], got %v", coeffs)
	}

	if yuleWalker(acf, 10) != nil {
		t.Error("Expected nil when the ACF is too short")
	}
}

func TestDiffAndACF(t *testing.T) {
	d := Diff([]float64{1, 4, 9, 16})
	want := []float64{3, 5, 7}
	for i := range want {
		if d[i] != want[i] {
			t.Fatalf("Diff: expected %v, got %v", want, d)
		}
	}

	if ACF([]float64{2, 2, 2}, 1) != nil {
		t.Error("ACF of a constant series should be nil")
	}
	acf := ACF([]float64{1, 2, 3, 4, 5}, 2)
	if acf[0] != 1 {
		t.Errorf("ACF at lag 0 should be 1, got %f", acf[0])
	}
}
