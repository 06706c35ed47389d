package arima

import (
	"errors"
	"testing"
)

func TestKPSS(t *testing.T) {
	if KPSS(make([]float64, 5), 0) != nil {
		t.Error("Expected nil for fewer than 10 values")
	}

	noise := make([]float64, 200)
	trend := make([]float64, 200)
	for i := range noise {
		noise[i] = float64(i%7 - 3)
		trend[i] = float64(i)
	}

	if r := KPSS(noise, 0); r == nil || !r.IsStationary {
		t.Errorf("Periodic noise should be level stationary, got %+v", r)
	}
	r := KPSS(trend, 0)
	if r == nil || r.IsStationary {
		t.Fatalf("A linear trend should not be stationary, got %+v", r)
	}
	if r.PValue != 0.01 {
		t.Errorf("Expected p-value 0.01 for a strong trend, got %f", r.PValue)
	}
	if r.Lags != 15 {
		t.Errorf("Expected 15 default lags for n=200, got %d", r.Lags)
	}
}

func TestNdiffs(t *testing.T) {
	linear := make([]float64, 100)
	quadratic := make([]float64, 100)
	for i := range linear {
		linear[i] = 3 * float64(i)
		quadratic[i] = float64(i * i)
	}

	tests := []struct {
		name   string
		values []float64
		maxD   int
		want   int
	}{
		{"linear", linear, 2, 1},
		{"quadratic", quadratic, 2, 2},
		{"quadratic capped", quadratic, 1, 1},
		{"stationary", ar1Series(100, 0.3), 2, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Ndiffs(tt.values, tt.maxD); got != tt.want {
				t.Errorf("Expected %d differences, got %d", tt.want, got)
			}
		})
	}
}

func TestAutoStepwise(t *testing.T) {
	result, err := Auto(ar1Series(200, 0.7), nil)
	if err != nil {
		t.Fatalf("Auto failed: %v", err)
	}
	if result.ModelsEvaluated < 5 {
		t.Errorf("Expected at least the 5 starting orders, got %d", result.ModelsEvaluated)
	}
	if result.Criterion != result.Model.AIC {
		t.Errorf("Criterion %f should be the chosen model's AIC %f", result.Criterion, result.Model.AIC)
	}
	if _, err := result.Model.Predict(5); err != nil {
		t.Errorf("Chosen model should predict: %v", err)
	}
	t.Logf("Selected %s", result.Model.Order)
}

func TestAutoGrid(t *testing.T) {
	config := &AutoConfig{MaxP: 1, MaxD: 0, MaxQ: 1, Criterion: BIC}
	result, err := Auto(ar1Series(120, 0.5), config)
	if err != nil {
		t.Fatalf("Auto failed: %v", err)
	}
	if result.ModelsEvaluated != 4 {
		t.Errorf("Expected 4 models on a 2x2 grid, got %d", result.ModelsEvaluated)
	}
	if result.Criterion != result.Model.BIC {
		t.Errorf("Criterion should be BIC")
	}
}

func TestAutoErrors(t *testing.T) {
	if _, err := Auto(ar1Series(50, 0.5), &AutoConfig{MaxP: 1, Criterion: "hqic"}); err == nil {
		t.Error("Expected error for unknown criterion")
	}
	if _, err := Auto([]float64{1, 2, 3, 4, 5}, &AutoConfig{MaxP: 2, MaxQ: 2}); !errors.Is(err, ErrNoModel) {
		t.Errorf("Expected ErrNoModel, got %v", err)
	}
}
