// Package ml 线性回归模型：拟合、评分与持久化
package ml

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
)

// LinearModel is rate ≈ Slope·profit + Intercept. It is never mutated after Fit or LoadModel.
type LinearModel struct {
	Slope     float64
	Intercept float64
	TrainedAt time.Time
}

var _ Model = (*LinearModel)(nil)

// Fit runs ordinary least squares with profit as the only predictor.
func Fit(profits, rates []float64) (*LinearModel, error) {
	if len(profits) != len(rates) {
		return nil, fmt.Errorf("%w: %d profits vs %d rates", ErrDegenerateFit, len(profits), len(rates))
	}
	if len(profits) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 points, got %d", ErrDegenerateFit, len(profits))
	}
	if stat.Variance(profits, nil) == 0 {
		return nil, fmt.Errorf("%w: profit has zero variance", ErrDegenerateFit)
	}

	intercept, slope := stat.LinearRegression(profits, rates, nil, false)
	if !finite(slope) || !finite(intercept) {
		return nil, fmt.Errorf("%w: non-finite coefficients", ErrDegenerateFit)
	}
	return &LinearModel{
		Slope:     slope,
		Intercept: intercept,
		TrainedAt: time.Now().UTC(),
	}, nil
}

func (m *LinearModel) Predict(profit float64) float64 {
	return m.Slope*profit + m.Intercept
}

// Score returns the coefficient of determination on the given points. It is NaN when
// R² is undefined: fewer than 2 points or no variance in rates.
func (m *LinearModel) Score(profits, rates []float64) float64 {
	if len(profits) != len(rates) || len(rates) < 2 {
		return math.NaN()
	}
	if stat.Variance(rates, nil) == 0 {
		return math.NaN()
	}
	estimates := make([]float64, len(profits))
	for i, p := range profits {
		estimates[i] = m.Predict(p)
	}
	return stat.RSquaredFrom(estimates, rates, nil)
}

// Round2 rounds to two decimal places, ties to even, the way numpy's round does.
func Round2(v float64) float64 {
	// no hundredths left to round at this magnitude, and v*100 may overflow
	if math.Abs(v) >= 1e15 || !finite(v) {
		return v
	}
	return math.RoundToEven(v*100) / 100
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
